// Copyright 2026 The Shac Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package a

import (
	"os/exec"
)

type runner struct {
	cmd *exec.Cmd
}

func Run() {
	cmd := exec.Command("true")

	_ = cmd.Start() // want `do not call cmd.Start\(\) directly, use execsupport.Start\(cmd\) instead`

	_ = cmd.Run() // want `do not call cmd.Run\(\) directly, use execsupport.Run\(cmd\) instead`

	_, _ = cmd.Output() // want `do not call cmd.Output\(\) directly`

	_, _ = cmd.CombinedOutput() // want `do not call cmd.CombinedOutput\(\) directly`

	r := runner{cmd: cmd}
	_ = r.cmd.Start() // want `do not call cmd.Start\(\) directly`

	// Waiting doesn't fork.
	_ = cmd.Wait()
}
