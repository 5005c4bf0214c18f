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

package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"go.fuchsia.dev/shac-project/snipcheck/internal/execsupport"
	"go.fuchsia.dev/shac-project/snipcheck/internal/sandbox"
)

// timeoutDiagnostic is the diagnostic of a snippet that ran out of time.
const timeoutDiagnostic = "timeout"

// Snippet is a normalized snippet, ready to be validated.
type Snippet struct {
	// Block is the block the snippet was built from.
	Block *CodeBlock
	// Source is the text to validate, preamble included.
	Source string
	// Lang is the subject language.
	Lang string
}

// Outcome is the verdict of a Validator on one snippet.
type Outcome struct {
	// Success is true when the tool accepted the snippet.
	Success bool
	// Diagnostic is the verbatim output of the tool.
	Diagnostic string
	// TimedOut is set when the time limit was exceeded.
	TimedOut bool
	// Cached is set when the outcome was not computed during this run.
	Cached bool
}

// Validator checks a snippet.
//
// Implementations must be safe for concurrent use and must not retain the
// snippet. A rejected snippet is not an error; errors are reserved for
// abnormal conditions, including the cancellation of ctx, which abort the
// run.
type Validator interface {
	Validate(ctx context.Context, s *Snippet) (Outcome, error)
}

// toolValidator runs an external compiler or interpreter as
// "<cmd...> <snippet-file>".
type toolValidator struct {
	cmd          []string
	timeout      time.Duration
	env          map[string]string
	sb           sandbox.Sandbox
	allowNetwork bool
	// tmpdir is the root of the per snippet temporary directories.
	tmpdir string
}

// newToolValidator resolves cmd[0] and returns a Validator running it.
func newToolValidator(cmd []string, timeout time.Duration, env map[string]string, sb sandbox.Sandbox, allowNetwork bool, tmpdir string) (*toolValidator, error) {
	if len(cmd) == 0 || cmd[0] == "" {
		return nil, errors.New("tool command must not be empty")
	}
	exe, err := resolveExecutable(cmd[0])
	if err != nil {
		return nil, err
	}
	full := append([]string{exe}, cmd[1:]...)
	return &toolValidator{
		cmd:          full,
		timeout:      timeout,
		env:          env,
		sb:           sb,
		allowNetwork: allowNetwork,
		tmpdir:       tmpdir,
	}, nil
}

// resolveExecutable returns the absolute path to an executable.
//
// nsjail doesn't do $PATH-based resolution of the command it's given. Do this
// resolution unconditionally for consistency across platforms.
func resolveExecutable(name string) (string, error) {
	if filepath.IsAbs(name) {
		if _, err := os.Stat(name); err != nil {
			return "", err
		}
		return name, nil
	}
	if strings.ContainsRune(name, filepath.Separator) || strings.Contains(name, "/") {
		p, err := filepath.Abs(name)
		if err != nil {
			return "", err
		}
		if _, err = os.Stat(p); err != nil {
			return "", err
		}
		return p, nil
	}
	return exec.LookPath(name)
}

func (v *toolValidator) String() string {
	return strings.Join(v.cmd, " ")
}

func (v *toolValidator) Validate(ctx context.Context, s *Snippet) (Outcome, error) {
	dir, err := os.MkdirTemp(v.tmpdir, "snippet")
	if err != nil {
		return Outcome{}, err
	}
	defer os.RemoveAll(dir)
	file := filepath.Join(dir, "snippet"+snippetExt(s.Lang))
	if err = execsupport.WriteFile(file, []byte(s.Source), 0o600); err != nil {
		return Outcome{}, err
	}

	env := map[string]string{
		"PATH":    os.Getenv("PATH"),
		"TEMP":    dir,
		"TMPDIR":  dir,
		"TEMPDIR": dir,
	}
	for k, val := range v.env {
		env[k] = val
	}
	config := &sandbox.Config{
		Cmd:          append(append([]string(nil), v.cmd...), file),
		Cwd:          dir,
		AllowNetwork: v.allowNetwork,
		Env:          env,
		Mounts:       v.mounts(dir, env["PATH"]),
	}

	tctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()
	cmd := v.sb.Command(tctx, config)
	b := buffers.get()
	defer buffers.push(b)
	out := &cappedWriter{b: b, limit: maxOutput}
	cmd.Stdout = out
	cmd.Stderr = out
	// The sandbox kills the whole process group on cancellation. Processes
	// that left the group may still hold the output pipes; do not wait for
	// them.
	cmd.WaitDelay = 250 * time.Millisecond

	if err = execsupport.Start(cmd); err != nil {
		if ctx.Err() != nil {
			return Outcome{}, ctx.Err()
		}
		// The limit can expire before the process is even started.
		if errors.Is(tctx.Err(), context.DeadlineExceeded) {
			return Outcome{Diagnostic: timeoutDiagnostic, TimedOut: true}, nil
		}
		return Outcome{}, fmt.Errorf("starting %s: %w", v.cmd[0], err)
	}
	err = cmd.Wait()
	// Reap what the tool left running in the background, whatever the exit
	// path.
	_ = sandbox.KillGroup(cmd)

	if ctx.Err() != nil {
		return Outcome{}, ctx.Err()
	}
	if errors.Is(tctx.Err(), context.DeadlineExceeded) {
		return Outcome{Diagnostic: timeoutDiagnostic, TimedOut: true}, nil
	}
	if err != nil {
		var errExit *exec.ExitError
		if !errors.As(err, &errExit) && !errors.Is(err, exec.ErrWaitDelay) {
			// Something other than a normal non-zero exit.
			return Outcome{}, err
		}
		if errExit == nil {
			return Outcome{Success: true, Diagnostic: out.String()}, nil
		}
		return Outcome{Diagnostic: out.String()}, nil
	}
	return Outcome{Success: true, Diagnostic: out.String()}, nil
}

// mounts returns the paths made visible to the tool when running under
// nsjail.
func (v *toolValidator) mounts(dir, path string) []sandbox.Mount {
	if runtime.GOOS == "windows" {
		return nil
	}
	m := []sandbox.Mount{
		{Path: dir, Writable: true},
		{Path: filepath.Dir(v.cmd[0])},
		// OS-provided utilities.
		{Path: "/dev/null", Writable: true},
		{Path: "/dev/urandom"},
		{Path: "/dev/zero"},
		// Required for https.
		{Path: "/etc/ssl/certs"},
		// These are required for bash to work.
		{Path: "/lib"},
		{Path: "/lib64"},
		// OS header files and system compilers.
		{Path: "/usr/include"},
		{Path: "/usr/lib"},
	}
	if runtime.GOROOT() != "" {
		m = append(m, sandbox.Mount{Path: runtime.GOROOT()})
	}
	// Mount all directories listed in $PATH.
	for _, p := range filepath.SplitList(path) {
		// $PATH may contain invalid elements. Filter them out.
		if !filepath.IsAbs(p) {
			continue
		}
		if fi, err := os.Stat(p); err != nil || !fi.IsDir() {
			continue
		}
		m = append(m, sandbox.Mount{Path: p})
	}
	seen := map[string]struct{}{}
	out := m[:0]
	for _, mnt := range m {
		if _, ok := seen[mnt.Path]; ok {
			continue
		}
		if _, err := os.Stat(mnt.Path); err == nil {
			seen[mnt.Path] = struct{}{}
			out = append(out, mnt)
		}
	}
	return out
}
