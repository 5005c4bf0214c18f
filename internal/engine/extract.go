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
	"iter"
	"strings"
)

const fence = "```"

// CodeBlock is one fenced region of a Document.
//
// It is never modified after extraction.
type CodeBlock struct {
	// StartLine is the 1-based line of the opening fence.
	StartLine int
	// EndLine is the 1-based line of the closing fence.
	EndLine int
	// Lang is the declared language tag, as written. Empty when the fence has
	// no tag.
	Lang string
	// Raw is the text strictly between the fences. Each line is terminated by
	// "\n".
	Raw string
	// Directives are the snipcheck annotations preceding the block.
	Directives Directives

	// Require keyed arguments.
	_ struct{}
}

// Blocks returns the fenced code blocks of the document, in document order.
//
// The sequence is lazy and can be iterated any number of times; each
// iteration scans the document again. When a fence is left open, the last
// element is a *MalformedBlockError and iteration stops.
func (d *Document) Blocks() iter.Seq2[*CodeBlock, error] {
	return func(yield func(*CodeBlock, error) bool) {
		var pending Directives
		for i := 0; i < len(d.Lines); i++ {
			line := strings.TrimLeft(d.Lines[i], " \t")
			if dir, ok := parseDirectiveLine(line); ok {
				pending = pending.merge(dir)
				continue
			}
			if !strings.HasPrefix(line, fence) {
				if strings.TrimSpace(line) != "" {
					// Directives only attach to the next fence if nothing but
					// blank lines separates them.
					pending = Directives{}
				}
				continue
			}
			start := i
			tag := ""
			if f := strings.Fields(line[len(fence):]); len(f) != 0 {
				tag = f[0]
			}
			end := -1
			for j := i + 1; j < len(d.Lines); j++ {
				if strings.TrimSpace(d.Lines[j]) == fence {
					end = j
					break
				}
			}
			if end == -1 {
				yield(nil, &MalformedBlockError{
					Path:   d.Path,
					Line:   start + 1,
					Reason: "unterminated fence",
				})
				return
			}
			var raw strings.Builder
			for _, l := range d.Lines[start+1 : end] {
				raw.WriteString(l)
				raw.WriteByte('\n')
			}
			b := &CodeBlock{
				StartLine:  start + 1,
				EndLine:    end + 1,
				Lang:       tag,
				Raw:        raw.String(),
				Directives: pending,
			}
			pending = Directives{}
			if !yield(b, nil) {
				return
			}
			i = end
		}
	}
}

// Extract returns all the code blocks of the document.
func Extract(d *Document) ([]*CodeBlock, error) {
	var out []*CodeBlock
	for b, err := range d.Blocks() {
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}
