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

// Package execsupport implements wrappers around os/exec.Cmd Start() and Run()
// that acquire a read lock on a R/W mutex to work around fork+exec
// concurrency issue with open file handles on POSIX.
// See https://github.com/golang/go/issues/22315 and
// https://github.com/golang/go/issues/22220 for background.
//
// Snippets are written to disk while other goroutines fork tools validating
// other snippets. A child forked while a snippet file is open for writing
// inherits the descriptor, which keeps it alive after the parent closes it.
// Running a snippet that is still open for writing elsewhere fails with
// ETXTBSY, so code writing a file that may later be executed must hold Mu
// for writing, and all code must use Start() and Run() from this package
// instead of calling Cmd.Start() and Cmd.Run() directly. cmd/fork_check
// enforces the latter.
package execsupport

import (
	"os"
	"os/exec"
	"sync"
)

// Mu enables blocking all exec(), for example while writing a file that
// will later be exec()'ed.
var Mu sync.RWMutex

// Start is a fork-safe wrapper around os/exec.Cmd.Start.
func Start(cmd *exec.Cmd) error {
	Mu.RLock()
	defer Mu.RUnlock()
	return cmd.Start()
}

// Run is a fork-safe wrapper around os/exec.Cmd.Run.
func Run(cmd *exec.Cmd) error {
	Mu.RLock()
	defer Mu.RUnlock()
	return cmd.Run()
}

// WriteFile is os.WriteFile holding Mu for writing, so no descriptor to the
// file leaks into a concurrently forked process.
func WriteFile(name string, data []byte, perm os.FileMode) error {
	Mu.Lock()
	defer Mu.Unlock()
	return os.WriteFile(name, data, perm)
}
