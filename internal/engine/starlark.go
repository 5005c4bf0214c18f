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
	"time"

	"go.starlark.net/lib/json"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
	"go.starlark.net/syntax"
)

// starlarkValidator executes Starlark snippets in-process.
//
// It is used when no external tool is configured for a Starlark tutorial.
type starlarkValidator struct {
	timeout time.Duration
}

func starlarkOptions() *syntax.FileOptions {
	return &syntax.FileOptions{
		// Enable not-yet-standard Starlark features.
		Set:       true,
		While:     true,
		Recursion: true,
	}
}

// starlarkPredeclared returns the symbols available to snippets in addition
// to https://pkg.go.dev/go.starlark.net/starlark#Universe.
func starlarkPredeclared() starlark.StringDict {
	return starlark.StringDict{
		// Add https://bazel.build/rules/lib/json so it feels more natural to
		// bazel users.
		"json":   json.Module,
		"struct": starlark.NewBuiltin("struct", starlarkstruct.Make),
	}
}

func (v *starlarkValidator) String() string {
	return "builtin starlark interpreter"
}

func (v *starlarkValidator) Validate(ctx context.Context, s *Snippet) (Outcome, error) {
	b := buffers.get()
	defer buffers.push(b)
	out := &cappedWriter{b: b, limit: maxOutput}
	th := &starlark.Thread{
		Name: "snippet",
		Print: func(_ *starlark.Thread, msg string) {
			_, _ = out.Write([]byte(msg + "\n"))
		},
	}
	tctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()
	stop := context.AfterFunc(tctx, func() {
		th.Cancel(tctx.Err().Error())
	})
	defer stop()

	_, err := starlark.ExecFileOptions(starlarkOptions(), th, "snippet.star", s.Source, starlarkPredeclared())
	if ctx.Err() != nil {
		return Outcome{}, ctx.Err()
	}
	if errors.Is(tctx.Err(), context.DeadlineExceeded) {
		return Outcome{Diagnostic: timeoutDiagnostic, TimedOut: true}, nil
	}
	if err != nil {
		var evalErr *starlark.EvalError
		if errors.As(err, &evalErr) {
			e := &evalError{evalErr}
			_, _ = out.Write([]byte(e.Backtrace() + "\nError: " + evalErr.Msg + "\n"))
		} else {
			// Syntax and resolve errors.
			_, _ = out.Write([]byte(err.Error() + "\n"))
		}
		return Outcome{Diagnostic: out.String()}, nil
	}
	return Outcome{Success: true, Diagnostic: out.String()}, nil
}
