// Copyright 2023 The Shac Authors
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

package engine

import (
	"fmt"
	"runtime/debug"
)

type toolVersion [3]int

var (
	// Version is the current tool version.
	Version = toolVersion{0, 1, 0}
)

// String returns the version in semver form, e.g. "v0.1.0".
func (v toolVersion) String() string {
	return fmt.Sprintf("v%d.%d.%d", v[0], v[1], v[2])
}

// CommitHash returns the git commit hash that was used to build this
// executable.
func CommitHash() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" {
				return s.Value
			}
		}
	}
	return ""
}
