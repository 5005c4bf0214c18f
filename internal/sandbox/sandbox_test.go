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

package sandbox

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestGeneric(t *testing.T) {
	t.Parallel()
	s, err := New(false)
	if err != nil {
		t.Fatal(err)
	}
	cmd := s.Command(context.Background(), &Config{
		Cmd: []string{"/bin/tool", "a", "b"},
		Cwd: "/tmp/x",
		Env: map[string]string{"PATH": "/bin", "HOME": "/home"},
	})
	if diff := cmp.Diff([]string{"/bin/tool", "a", "b"}, cmd.Args); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	if cmd.Dir != "/tmp/x" {
		t.Errorf("unexpected dir %q", cmd.Dir)
	}
	if diff := cmp.Diff([]string{"HOME=/home", "PATH=/bin"}, cmd.Env); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestNsjail(t *testing.T) {
	t.Parallel()
	s := nsjailSandbox{nsjailPath: "/usr/bin/nsjail"}
	c := &Config{
		Cmd: []string{"/bin/tool", "snippet.go"},
		Cwd: "/tmp/x",
		Env: map[string]string{"PATH": "/bin", "HOME": "/home"},
		Mounts: []Mount{
			{Path: "/tmp/x", Writable: true},
			{Path: "/lib"},
		},
	}
	cmd := s.Command(context.Background(), c)
	want := []string{
		"/usr/bin/nsjail",
		"--quiet",
		"--forward_signals",
		"--disable_rlimits",
		"--disable_clone_newcgroup",
		"--time_limit", "0",
		"--cwd", "/tmp/x",
		"--env", "HOME=/home",
		"--env", "PATH=/bin",
		"--bindmount_ro", "/lib",
		"--bindmount", "/tmp/x",
		"--",
		"/bin/tool", "snippet.go",
	}
	if diff := cmp.Diff(want, cmd.Args); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	// The caller's mounts must not be reordered.
	if c.Mounts[0].Path != "/tmp/x" {
		t.Errorf("Config.Mounts was mutated")
	}
}
