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

package reporting

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"go.fuchsia.dev/shac-project/snipcheck/internal/engine"
)

// Report is a closable engine.Report.
type Report interface {
	io.Closer
	engine.Report
}

// Get returns the right reporting implementation based on the current
// environment.
func Get(ctx context.Context) (*MultiReport, error) {
	r := &MultiReport{}

	// The following reporters all emit to stdout so they are mutually
	// exclusive.
	switch {
	case os.Getenv("GITHUB_RUN_ID") != "":
		// On GitHub Actions. Emits GitHub Workflows commands.
		r.Reporters = append(r.Reporters, &github{out: os.Stdout})
	case os.Getenv("TERM") != "dumb" && isatty.IsTerminal(os.Stderr.Fd()):
		// Active terminal. Colors! This includes VSCode's integrated terminal.
		r.Reporters = append(r.Reporters, &interactive{
			out: colorable.NewColorableStdout(),
		})
	default:
		// Anything else, e.g. redirected output.
		r.Reporters = append(r.Reporters, &basic{out: os.Stdout})
	}

	return r, nil
}

// location formats the line range of a block.
func location(file string, b *engine.CodeBlock) string {
	return fmt.Sprintf("%s(%d-%d)", file, b.StartLine, b.EndLine)
}

// role returns the annotations worth displaying next to a result.
func role(r *engine.Result) string {
	var out []string
	if r.Preamble {
		out = append(out, "preamble")
	}
	if r.Block.Directives.ExpectFail {
		out = append(out, "expect-fail")
	}
	if r.Cached {
		out = append(out, "cached")
	}
	if len(out) == 0 {
		return ""
	}
	return " (" + strings.Join(out, ", ") + ")"
}

// indent prefixes every line of s, dropping the trailing empty line.
func indent(s, prefix string) string {
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return ""
	}
	return prefix + strings.ReplaceAll(s, "\n", "\n"+prefix) + "\n"
}

type basic struct {
	out io.Writer
}

func (b *basic) Close() error {
	return nil
}

func (b *basic) EmitResult(ctx context.Context, file string, r *engine.Result) error {
	loc := location(file, r.Block)
	switch r.Status {
	case engine.Skipped:
		_, err := fmt.Fprintf(b.out, "[%s] %s: %s\n", r.Status, loc, r.Diagnostic)
		return err
	case engine.Failed:
		_, err := fmt.Fprintf(b.out, "[%s] %s%s\n%s", r.Status, loc, role(r), indent(r.Diagnostic, "  "))
		return err
	default:
		_, err := fmt.Fprintf(b.out, "[%s] %s%s\n", r.Status, loc, role(r))
		return err
	}
}

func (b *basic) Summarize(ctx context.Context, file string, s *engine.Summary) error {
	_, err := fmt.Fprintf(b.out, "%s\n", s)
	return err
}

func (b *basic) Print(ctx context.Context, file string, line int, message string) {
	fmt.Fprintf(b.out, "[%s:%d] %s\n", file, line, message)
}

// github is the Report implementation when running inside a GitHub Actions
// Workflow.
//
// See https://docs.github.com/en/actions/using-workflows/workflow-commands-for-github-actions
type github struct {
	out io.Writer
}

func (g *github) Close() error {
	return nil
}

func (g *github) EmitResult(ctx context.Context, file string, r *engine.Result) error {
	b := r.Block
	switch r.Status {
	case engine.Failed:
		_, err := fmt.Fprintf(g.out, "::error file=%s,line=%d,endLine=%d,title=snipcheck::%s\n",
			file, b.StartLine, b.EndLine, escapeData("snippet failed validation\n"+r.Diagnostic))
		return err
	case engine.Skipped:
		_, err := fmt.Fprintf(g.out, "::debug::%s skipped: %s\n", location(file, b), escapeData(r.Diagnostic))
		return err
	default:
		_, err := fmt.Fprintf(g.out, "::debug::%s passed%s\n", location(file, b), role(r))
		return err
	}
}

func (g *github) Summarize(ctx context.Context, file string, s *engine.Summary) error {
	_, err := fmt.Fprintf(g.out, "%s\n", s)
	return err
}

func (g *github) Print(ctx context.Context, file string, line int, message string) {
	fmt.Fprintf(g.out, "::debug::[%s:%d] %s\n", file, line, escapeData(message))
}

// escapeData escapes a workflow command message so it fits on one line.
func escapeData(s string) string {
	s = strings.TrimRight(s, "\n")
	s = strings.ReplaceAll(s, "%", "%25")
	s = strings.ReplaceAll(s, "\r", "%0D")
	return strings.ReplaceAll(s, "\n", "%0A")
}

type interactive struct {
	out io.Writer
}

func (i *interactive) Close() error {
	return nil
}

func (i *interactive) EmitResult(ctx context.Context, file string, r *engine.Result) error {
	c := statusColor[r.Status]
	loc := location(file, r.Block)
	switch r.Status {
	case engine.Skipped:
		_, err := fmt.Fprintf(i.out, "%s[%s%s%s] %s%s%s: %s%s%s\n", reset, c, r.Status, reset, fgHiCyan, loc, reset, faint, r.Diagnostic, reset)
		return err
	case engine.Failed:
		fmt.Fprintf(i.out, "%s[%s%s%s] %s%s%s%s\n", reset, c, r.Status, reset, fgHiCyan, loc, reset, role(r))
		// Emit the block in interactive mode, it is usually short.
		fmt.Fprintf(i.out, "\n")
		lines := strings.Split(strings.TrimSuffix(r.Block.Raw, "\n"), "\n")
		for n, l := range lines {
			fmt.Fprintf(i.out, "  %s%4d%s %s\n", faint, r.Block.StartLine+1+n, reset, l)
		}
		fmt.Fprintf(i.out, "\n")
		_, err := fmt.Fprintf(i.out, "%s%s%s\n", c, strings.TrimSuffix(indent(r.Diagnostic, "  "), "\n"), reset)
		return err
	default:
		_, err := fmt.Fprintf(i.out, "%s[%s%s%s] %s%s%s%s\n", reset, c, r.Status, reset, fgHiCyan, loc, reset, role(r))
		return err
	}
}

func (i *interactive) Summarize(ctx context.Context, file string, s *engine.Summary) error {
	c := fgGreen
	if s.Failed != 0 {
		c = fgRed
	}
	if _, err := fmt.Fprintf(i.out, "%s%s%s: %d snippets checked%s\n", reset, bold, file, s.Total, reset); err != nil {
		return err
	}
	// The summary line must stay machine readable, only color the whole line.
	_, err := fmt.Fprintf(i.out, "%s%s%s\n", c, s, reset)
	return err
}

func (i *interactive) Print(ctx context.Context, file string, line int, message string) {
	fmt.Fprintf(i.out, "%s[%s%s:%d%s] %s%s%s\n", reset, fgHiBlue, file, line, reset, bold, message, reset)
}

var statusColor = map[engine.Status]ansiCode{
	engine.Passed:  fgGreen,
	engine.Skipped: fgYellow,
	engine.Failed:  fgRed,
}
