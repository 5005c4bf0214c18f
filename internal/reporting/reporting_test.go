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
	"bytes"
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/mattn/go-colorable"
	"go.fuchsia.dev/shac-project/snipcheck/internal/engine"
)

func TestGet(t *testing.T) {
	r, err := Get(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(r.Reporters) != 1 {
		t.Fatalf("expected one reporter, got %d", len(r.Reporters))
	}
	if _, ok := r.Reporters[0].(*basic); !ok {
		t.Fatalf("expected basic reporter with TERM=dumb, got %T", r.Reporters[0])
	}
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
}

// sampleResults returns one result per status, in document order.
func sampleResults() ([]engine.Result, *engine.Summary) {
	results := []engine.Result{
		{
			Block: &engine.CodeBlock{
				StartLine: 3,
				EndLine:   7,
				Lang:      "go",
				Raw:       "package main\n\nimport \"fmt\"\n",
			},
			Status:   engine.Passed,
			Preamble: true,
		},
		{
			Block: &engine.CodeBlock{
				StartLine: 9,
				EndLine:   12,
				Lang:      "go",
				Raw:       "x := 1\ny()\n",
			},
			Status:     engine.Failed,
			Diagnostic: "snippet.go:3: undefined: y\n",
		},
		{
			Block: &engine.CodeBlock{
				StartLine: 14,
				EndLine:   16,
				Raw:       "$ go run .\n",
			},
			Status:     engine.Skipped,
			Diagnostic: "no language tag",
		},
	}
	s := &engine.Summary{Lang: "Go", Results: results, Total: 3, Passed: 1, Failed: 1, Skipped: 1}
	return results, s
}

// emitAll drives a Report the same way the engine does.
func emitAll(t *testing.T, r Report) {
	ctx := context.Background()
	results, s := sampleResults()
	r.Print(ctx, "doc.md", 3, "using block at lines 3-7 as preamble")
	for i := range results {
		if err := r.EmitResult(ctx, "doc.md", &results[i]); err != nil {
			t.Fatal(err)
		}
	}
	if err := r.Summarize(ctx, "doc.md", s); err != nil {
		t.Fatal(err)
	}
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestBasic(t *testing.T) {
	t.Parallel()
	buf := bytes.Buffer{}
	emitAll(t, &basic{out: &buf})
	want := "[doc.md:3] using block at lines 3-7 as preamble\n" +
		"[pass] doc.md(3-7) (preamble)\n" +
		"[fail] doc.md(9-12)\n" +
		"  snippet.go:3: undefined: y\n" +
		"[skip] doc.md(14-16): no language tag\n" +
		"PASS=1 FAIL=1 SKIP=1\n"
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

func TestBasic_Annotations(t *testing.T) {
	t.Parallel()
	data := []struct {
		name string
		r    engine.Result
		want string
	}{
		{
			"expect-fail",
			engine.Result{
				Block:  &engine.CodeBlock{StartLine: 1, EndLine: 3, Directives: engine.Directives{ExpectFail: true}},
				Status: engine.Passed,
			},
			"[pass] doc.md(1-3) (expect-fail)\n",
		},
		{
			"cached failure",
			engine.Result{
				Block:      &engine.CodeBlock{StartLine: 1, EndLine: 3},
				Status:     engine.Failed,
				Diagnostic: "line1\nline2",
				Cached:     true,
			},
			"[fail] doc.md(1-3) (cached)\n  line1\n  line2\n",
		},
		{
			"failure without output",
			engine.Result{
				Block:  &engine.CodeBlock{StartLine: 5, EndLine: 8},
				Status: engine.Failed,
			},
			"[fail] doc.md(5-8)\n",
		},
		{
			"skip with reason",
			engine.Result{
				Block:      &engine.CodeBlock{StartLine: 5, EndLine: 8, Lang: "sh"},
				Status:     engine.Skipped,
				Diagnostic: "sh is not the subject language",
			},
			"[skip] doc.md(5-8): sh is not the subject language\n",
		},
	}
	for _, l := range data {
		l := l
		t.Run(l.name, func(t *testing.T) {
			t.Parallel()
			buf := bytes.Buffer{}
			r := basic{out: &buf}
			if err := r.EmitResult(context.Background(), "doc.md", &l.r); err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(l.want, buf.String()); diff != "" {
				t.Fatalf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestGitHub(t *testing.T) {
	t.Parallel()
	buf := bytes.Buffer{}
	emitAll(t, &github{out: &buf})
	want := "::debug::[doc.md:3] using block at lines 3-7 as preamble\n" +
		"::debug::doc.md(3-7) passed (preamble)\n" +
		"::error file=doc.md,line=9,endLine=12,title=snipcheck::snippet failed validation%0Asnippet.go:3: undefined: y\n" +
		"::debug::doc.md(14-16) skipped: no language tag\n" +
		"PASS=1 FAIL=1 SKIP=1\n"
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

func TestEscapeData(t *testing.T) {
	t.Parallel()
	got := escapeData("100% done\r\nnext\n")
	if want := "100%25 done%0D%0Anext"; got != want {
		t.Fatalf("want %q, got %q", want, got)
	}
}

func TestInteractive(t *testing.T) {
	t.Parallel()
	buf := bytes.Buffer{}
	emitAll(t, &interactive{out: colorable.NewNonColorable(&buf)})
	want := "<R>[<Hb>doc.md:3<R>] <B>using block at lines 3-7 as preamble<R>\n" +
		"<R>[<G>pass<R>] <Hc>doc.md(3-7)<R> (preamble)\n" +
		"<R>[<Re>fail<R>] <Hc>doc.md(9-12)<R>\n" +
		"\n" +
		"  <F>  10<R> x := 1\n" +
		"  <F>  11<R> y()\n" +
		"\n" +
		"<Re>  snippet.go:3: undefined: y<R>\n" +
		"<R>[<Y>skip<R>] <Hc>doc.md(14-16)<R>: <F>no language tag<R>\n" +
		"<R><B>doc.md: 3 snippets checked<R>\n" +
		"<Re>PASS=1 FAIL=1 SKIP=1<R>\n"
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

func TestInteractive_Success(t *testing.T) {
	t.Parallel()
	buf := bytes.Buffer{}
	r := interactive{out: colorable.NewNonColorable(&buf)}
	if err := r.Summarize(context.Background(), "doc.md", &engine.Summary{Total: 2, Passed: 2}); err != nil {
		t.Fatal(err)
	}
	want := "<R><B>doc.md: 2 snippets checked<R>\n" +
		"<G>PASS=2 FAIL=0 SKIP=0<R>\n"
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

func TestMultiReport(t *testing.T) {
	t.Parallel()
	var a, b bytes.Buffer
	emitAll(t, &MultiReport{Reporters: []Report{&basic{out: &a}, &basic{out: &b}}})
	if a.Len() == 0 {
		t.Fatal("expected output")
	}
	if diff := cmp.Diff(a.String(), b.String()); diff != "" {
		t.Fatalf("mismatch (-first +second):\n%s", diff)
	}
}

func TestSarif(t *testing.T) {
	t.Parallel()
	buf := bytes.Buffer{}
	emitAll(t, &SarifReport{Out: &buf})
	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	location := func(start, end float64) []any {
		return []any{
			map[string]any{
				"physicalLocation": map[string]any{
					"artifactLocation": map[string]any{"uri": "doc.md"},
					"region": map[string]any{
						"startLine": start,
						"endLine":   end,
					},
				},
			},
		}
	}
	want := map[string]any{
		"$schema": sarifSchema,
		"version": sarifVersion,
		"runs": []any{
			map[string]any{
				"tool": map[string]any{
					"driver": map[string]any{
						"name":    "snipcheck",
						"version": engine.Version.String(),
						"rules": []any{
							map[string]any{
								"id":               ruleFailed,
								"shortDescription": map[string]any{"text": "A code snippet was rejected by its validator."},
							},
							map[string]any{
								"id":               ruleSkipped,
								"shortDescription": map[string]any{"text": "A code snippet was not validated."},
							},
						},
					},
				},
				"results": []any{
					map[string]any{
						"ruleId":    ruleFailed,
						"level":     "error",
						"message":   map[string]any{"text": "snippet failed validation\nsnippet.go:3: undefined: y\n"},
						"locations": location(9, 12),
					},
					map[string]any{
						"ruleId":    ruleSkipped,
						"level":     "note",
						"message":   map[string]any{"text": "snippet skipped: no language tag"},
						"locations": location(14, 16),
					},
				},
				"properties": map[string]any{"language": "Go"},
			},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

func TestSarif_Empty(t *testing.T) {
	t.Parallel()
	buf := bytes.Buffer{}
	r := &SarifReport{Out: &buf}
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
	var got struct {
		Runs []struct {
			Results []any `json:"results"`
		} `json:"runs"`
	}
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if len(got.Runs) != 1 || got.Runs[0].Results == nil || len(got.Runs[0].Results) != 0 {
		t.Fatalf("expected one run with an empty results list, got %+v", got)
	}
}

func init() {
	// Mutate the running environment to make the test deterministic.
	os.Unsetenv("GITHUB_RUN_ID")
	os.Setenv("TERM", "dumb")
}
