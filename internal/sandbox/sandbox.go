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

// Package sandbox provides capabilities for sandboxing the tools validating
// snippets.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"sort"
	"strings"
)

// Mount represents a directory or file from the filesystem to mount inside the
// nsjail so that processes inside the nsjail can access it.
type Mount struct {
	// Path outside the nsjail that should be mounted inside the nsjail.
	Path string
	// Writable controls whether the mount is writable by processes within the
	// nsjail.
	Writable bool
}

// Config represents the configuration for a sandboxed subprocess.
type Config struct {
	// The subprocess command line.
	Cmd          []string
	Cwd          string
	AllowNetwork bool
	Env          map[string]string
	Mounts       []Mount

	// Require keyed arguments.
	_ struct{}
}

// Sandbox creates commands confined according to a Config.
type Sandbox interface {
	Command(context.Context, *Config) *exec.Cmd
}

// ErrNoNsjail is returned by New when strict sandboxing was requested on
// Linux but nsjail is not in $PATH.
var ErrNoNsjail = errors.New("sandboxing requested but nsjail was not found in $PATH")

// New constructs a platform-appropriate sandbox.
//
// When strict is false, commands run unconfined, only with a controlled
// environment.
func New(strict bool) (Sandbox, error) {
	if !strict {
		return genericSandbox{}, nil
	}
	switch runtime.GOOS {
	case "linux":
		p, err := exec.LookPath("nsjail")
		if err != nil {
			return nil, ErrNoNsjail
		}
		return nsjailSandbox{nsjailPath: p}, nil
	case "darwin":
		return macSandbox{}, nil
	default:
		// TODO(maruel): Provide stricter sandboxing for Windows.
		return genericSandbox{}, nil
	}
}

// nsjailSandbox provides sandboxing for Linux using nsjail.
type nsjailSandbox struct {
	nsjailPath string
}

func (s nsjailSandbox) Command(ctx context.Context, config *Config) *exec.Cmd {
	args := []string{
		"--quiet",
		"--forward_signals",
		// Limits on file read sizes are not useful.
		"--disable_rlimits",
		"--disable_clone_newcgroup",
		// The caller enforces the timeout.
		"--time_limit", "0",
		"--cwd", config.Cwd,
	}
	if config.AllowNetwork {
		args = append(args, "--disable_clone_newnet")
	}
	keys := make([]string, 0, len(config.Env))
	for k := range config.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "--env", fmt.Sprintf("%s=%s", k, config.Env[k]))
	}
	// nsjail is strict about ordering of --bindmount flags. If /a and /a/b are
	// both to be mounted (/a might be read-only while /a/b is writable), then
	// /a must precede /a/b in the arguments.
	mounts := append([]Mount(nil), config.Mounts...)
	sort.Slice(mounts, func(i, j int) bool {
		return mounts[i].Path < mounts[j].Path
	})
	for _, mnt := range mounts {
		flag := "--bindmount_ro"
		if mnt.Writable {
			flag = "--bindmount"
		}
		args = append(args, flag, mnt.Path)
	}
	args = append(args, "--")
	args = append(args, config.Cmd...)
	return ownGroup(exec.CommandContext(ctx, s.nsjailPath, args...))
}

// macSandbox provides a sandbox specific to macOS using the preinstalled
// sandbox-exec tool.
//
// It only supports network access restrictions.
type macSandbox struct{}

func (s macSandbox) Command(ctx context.Context, config *Config) *exec.Cmd {
	profile := []string{
		"(version 1)",
		"(allow default)",
	}
	if !config.AllowNetwork {
		profile = append(profile, "(deny network*)")
	}
	args := append([]string{"-p", strings.Join(profile, "\n")}, config.Cmd...)
	cmd := exec.CommandContext(ctx, "/usr/bin/sandbox-exec", args...)
	cmd.Dir = config.Cwd
	cmd.Env = envList(config.Env)
	// config.Mounts intentionally ignored.
	return ownGroup(cmd)
}

// genericSandbox only controls the environment and working directory.
//
// Filesystem and network access restrictions are not supported.
type genericSandbox struct{}

func (s genericSandbox) Command(ctx context.Context, config *Config) *exec.Cmd {
	cmd := exec.CommandContext(ctx, config.Cmd[0], config.Cmd[1:]...)
	cmd.Dir = config.Cwd
	cmd.Env = envList(config.Env)
	// config.Mounts and config.AllowNetwork intentionally ignored.
	return ownGroup(cmd)
}

func envList(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, fmt.Sprintf("%s=%s", k, v))
	}
	sort.Strings(out)
	return out
}
