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
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestExtract(t *testing.T) {
	t.Parallel()
	data := []struct {
		name string
		in   string
		want []*CodeBlock
	}{
		{
			"empty",
			"",
			nil,
		},
		{
			"prose only",
			"# Title\n\nSome `inline` code.\n",
			nil,
		},
		{
			"tags and indentation",
			"# Tutorial\n" +
				"\n" +
				"```go\n" +
				"package main\n" +
				"```\n" +
				"text\n" +
				"```\n" +
				"plain\n" +
				"```\n" +
				"  ```python extra words\n" +
				"x = 1\n" +
				"  ```\n",
			[]*CodeBlock{
				{StartLine: 3, EndLine: 5, Lang: "go", Raw: "package main\n"},
				{StartLine: 7, EndLine: 9, Lang: "", Raw: "plain\n"},
				{StartLine: 10, EndLine: 12, Lang: "python", Raw: "x = 1\n"},
			},
		},
		{
			"empty block",
			"```go\n```\n",
			[]*CodeBlock{
				{StartLine: 1, EndLine: 2, Lang: "go"},
			},
		},
		{
			"blank lines are kept",
			"```go\n\nx\n\n```\n",
			[]*CodeBlock{
				{StartLine: 1, EndLine: 5, Lang: "go", Raw: "\nx\n\n"},
			},
		},
		{
			"close marker ends the nearest open block",
			"```md\n" +
				"```go\n" +
				"inner\n" +
				"```\n",
			[]*CodeBlock{
				{StartLine: 1, EndLine: 4, Lang: "md", Raw: "```go\ninner\n"},
			},
		},
		{
			"windows line endings",
			"```go\r\nx\r\n```\r\n",
			[]*CodeBlock{
				{StartLine: 1, EndLine: 3, Lang: "go", Raw: "x\n"},
			},
		},
	}
	for _, l := range data {
		l := l
		t.Run(l.name, func(t *testing.T) {
			t.Parallel()
			got, err := Extract(NewDocument("doc.md", l.in))
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(l.want, got); diff != "" {
				t.Fatalf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestExtract_Directives(t *testing.T) {
	t.Parallel()
	doc := NewDocument("doc.md",
		"<!-- snipcheck: skip prints the time -->\n"+
			"\n"+
			"```go\n"+
			"x\n"+
			"```\n"+
			"<!-- snipcheck: standalone -->\n"+
			"  <!--snipcheck:expect-fail-->\n"+
			"```go\n"+
			"y\n"+
			"```\n"+
			"<!-- snipcheck: preamble -->\n"+
			"Some prose.\n"+
			"```go\n"+
			"z\n"+
			"```\n"+
			"<!-- snipcheck: frobnicate -->\n"+
			"```go\n"+
			"w\n"+
			"```\n"+
			"<!-- a regular comment -->\n"+
			"```go\n"+
			"v\n"+
			"```\n")
	blocks, err := Extract(doc)
	if err != nil {
		t.Fatal(err)
	}
	var got []Directives
	for _, b := range blocks {
		got = append(got, b.Directives)
	}
	want := []Directives{
		{Skip: true, SkipReason: "prints the time"},
		{Standalone: true, ExpectFail: true},
		{},
		{Unknown: []string{"frobnicate"}},
		{},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
	if s := got[1].String(); s != "standalone,expect-fail" {
		t.Fatalf("unexpected String(): %q", s)
	}
}

func TestExtract_ShortComments(t *testing.T) {
	t.Parallel()
	for _, c := range []string{"<!-->", "<!--->", "  <!---->"} {
		blocks, err := Extract(NewDocument("doc.md", c+"\n```go\nx\n```\n"))
		if err != nil {
			t.Fatalf("%q: %s", c, err)
		}
		if len(blocks) != 1 || blocks[0].StartLine != 2 {
			t.Fatalf("%q: unexpected blocks %+v", c, blocks)
		}
		if diff := cmp.Diff(Directives{}, blocks[0].Directives); diff != "" {
			t.Errorf("%q: mismatch (-want +got):\n%s", c, diff)
		}
	}
}

func TestParseDirectiveLine(t *testing.T) {
	t.Parallel()
	data := []struct {
		in   string
		want Directives
		ok   bool
	}{
		{"<!-- snipcheck: skip -->", Directives{Skip: true}, true},
		{"<!-- snipcheck: skip  needs a network  -->", Directives{Skip: true, SkipReason: "needs a network"}, true},
		{"<!-- snipcheck: preamble -->", Directives{Preamble: true}, true},
		{"<!-- snipcheck: -->", Directives{Unknown: []string{""}}, true},
		{"<!-- other: skip -->", Directives{}, false},
		{"<!-- snipcheck: skip", Directives{}, false},
		{"snipcheck: skip", Directives{}, false},
		{"<!-->", Directives{}, false},
		{"<!--->", Directives{}, false},
		{"<!---->", Directives{}, false},
	}
	for i, l := range data {
		got, ok := parseDirectiveLine(l.in)
		if ok != l.ok {
			t.Errorf("#%d: want ok=%t, got %t", i, l.ok, ok)
		}
		if diff := cmp.Diff(l.want, got); diff != "" {
			t.Errorf("#%d: mismatch (-want +got):\n%s", i, diff)
		}
	}
}

func TestExtract_Unterminated(t *testing.T) {
	t.Parallel()
	data := []struct {
		in   string
		line int
	}{
		{"```go\n", 1},
		{"text\n```go\nx\n", 2},
		{"```go\na\n```\n\n```sh\nb\n", 5},
		// The second opening fence is content of the first block, the trailing
		// one is left open.
		{"```md\n```go\ninner\n```\n```\n", 5},
	}
	for i, l := range data {
		_, err := Extract(NewDocument("doc.md", l.in))
		var merr *MalformedBlockError
		if !errors.As(err, &merr) {
			t.Fatalf("#%d: expected *MalformedBlockError, got %v", i, err)
		}
		if merr.Line != l.line {
			t.Errorf("#%d: want line %d, got %d", i, l.line, merr.Line)
		}
		if want := fmt.Sprintf("doc.md(%d): malformed block: unterminated fence", l.line); err.Error() != want {
			t.Errorf("#%d: want %q, got %q", i, want, err.Error())
		}
	}
}

func TestBlocks_PartialThenError(t *testing.T) {
	t.Parallel()
	doc := NewDocument("doc.md", "```go\na\n```\n```sh\nb\n")
	var got []int
	var gotErr error
	for b, err := range doc.Blocks() {
		if err != nil {
			gotErr = err
			break
		}
		got = append(got, b.StartLine)
	}
	if diff := cmp.Diff([]int{1}, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
	if gotErr == nil {
		t.Fatal("expected an error")
	}
}

func TestBlocks_EarlyStop(t *testing.T) {
	t.Parallel()
	doc := NewDocument("doc.md", "```go\na\n```\n```go\nb\n```\n")
	n := 0
	for range doc.Blocks() {
		n++
		break
	}
	if n != 1 {
		t.Fatalf("expected one iteration, got %d", n)
	}
}

func TestBlocks_Deterministic(t *testing.T) {
	t.Parallel()
	doc := NewDocument("doc.md", tutorial(7))
	first, err := Extract(doc)
	if err != nil {
		t.Fatal(err)
	}
	second, err := Extract(doc)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("mismatch (-first +second):\n%s", diff)
	}
}

func TestBlocks_CountsFencePairs(t *testing.T) {
	t.Parallel()
	for n := 0; n < 20; n++ {
		blocks, err := Extract(NewDocument("doc.md", tutorial(n)))
		if err != nil {
			t.Fatal(err)
		}
		if len(blocks) != n {
			t.Fatalf("want %d blocks, got %d", n, len(blocks))
		}
		// Line ranges are ordered, in bounds and never overlap.
		prev := 0
		for _, b := range blocks {
			if b.StartLine <= prev || b.EndLine <= b.StartLine {
				t.Fatalf("invalid range %d-%d after %d", b.StartLine, b.EndLine, prev)
			}
			prev = b.EndLine
		}
	}
}

// tutorial returns a document with n fenced blocks of varying shapes.
func tutorial(n int) string {
	var b strings.Builder
	b.WriteString("# Learn X in Y minutes\n\n")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "Step %d.\n\n", i)
		switch i % 3 {
		case 0:
			fmt.Fprintf(&b, "```go\nfmt.Println(%d)\n```\n\n", i)
		case 1:
			b.WriteString("```\nuntagged\n\n```\n")
		default:
			b.WriteString("<!-- snipcheck: skip -->\n```go\nfunc (\n```\n")
		}
	}
	return b.String()
}
