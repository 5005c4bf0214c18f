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
	"sync"

	"go.fuchsia.dev/shac-project/snipcheck/internal/engine"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	sarifVersion = "2.1.0"
	sarifSchema  = "https://json.schemastore.org/sarif-2.1.0.json"

	// Rule IDs. The SARIF specification states that ruleId "SHALL" be set.
	// https://docs.oasis-open.org/sarif/sarif/v2.1.0/os/sarif-v2.1.0-os.html#_Toc34317643
	ruleFailed  = "snippet-failed"
	ruleSkipped = "snippet-skipped"
)

// SarifReport converts results into SARIF JSON output.
//
// Passing snippets are not reported. Failures are errors and skipped
// snippets are notes.
type SarifReport struct {
	// SARIF output gets written here when Close() is called.
	Out io.Writer

	mu      sync.Mutex
	lang    string
	results []any
}

func (sr *SarifReport) EmitResult(ctx context.Context, file string, r *engine.Result) error {
	var level, rule, msg string
	switch r.Status {
	case engine.Failed:
		level, rule = "error", ruleFailed
		msg = "snippet failed validation"
		if r.Diagnostic != "" {
			msg += "\n" + r.Diagnostic
		}
	case engine.Skipped:
		level, rule = "note", ruleSkipped
		msg = "snippet skipped: " + r.Diagnostic
	default:
		return nil
	}
	result := map[string]any{
		"ruleId":  rule,
		"level":   level,
		"message": map[string]any{"text": msg},
		"locations": []any{
			map[string]any{
				"physicalLocation": map[string]any{
					"artifactLocation": map[string]any{"uri": file},
					"region": map[string]any{
						"startLine": r.Block.StartLine,
						"endLine":   r.Block.EndLine,
					},
				},
			},
		},
	}
	sr.mu.Lock()
	sr.results = append(sr.results, result)
	sr.mu.Unlock()
	return nil
}

func (sr *SarifReport) Summarize(ctx context.Context, file string, s *engine.Summary) error {
	sr.mu.Lock()
	sr.lang = s.Lang
	sr.mu.Unlock()
	return nil
}

func (sr *SarifReport) Print(context.Context, string, int, string) {}

func (sr *SarifReport) Close() error {
	sr.mu.Lock()
	defer sr.mu.Unlock()
	results := sr.results
	if results == nil {
		results = []any{}
	}
	driver := map[string]any{
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
	}
	run := map[string]any{
		"tool":    map[string]any{"driver": driver},
		"results": results,
	}
	if sr.lang != "" {
		run["properties"] = map[string]any{"language": sr.lang}
	}
	doc, err := structpb.NewStruct(map[string]any{
		"$schema": sarifSchema,
		"version": sarifVersion,
		"runs":    []any{run},
	})
	if err != nil {
		return fmt.Errorf("building SARIF document: %w", err)
	}
	b, err := protojson.MarshalOptions{Multiline: true}.Marshal(doc)
	if err != nil {
		return err
	}
	_, err = sr.Out.Write(b)
	return err
}
