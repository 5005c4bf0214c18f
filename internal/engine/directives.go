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
	"strings"
)

// directivePrefix introduces an annotation in an HTML comment, e.g.
//
//	<!-- snipcheck: skip prints the current time -->
const directivePrefix = "snipcheck:"

// Directives are the annotations attached to a CodeBlock.
//
// They are written as HTML comments on the lines preceding the opening fence,
// optionally separated from it by blank lines.
type Directives struct {
	// Skip excludes the block from validation.
	Skip bool
	// SkipReason is the free form text following "skip".
	SkipReason string
	// Preamble marks the block as the document's preamble.
	Preamble bool
	// Standalone disables prepending the preamble.
	Standalone bool
	// ExpectFail inverts the outcome: the snippet must be rejected.
	ExpectFail bool
	// Unknown lists the directives that were not recognized. A block with
	// unknown directives is never validated.
	Unknown []string
}

// String returns the directives in their source form, comma separated.
func (d Directives) String() string {
	var out []string
	if d.Preamble {
		out = append(out, "preamble")
	}
	if d.Standalone {
		out = append(out, "standalone")
	}
	if d.ExpectFail {
		out = append(out, "expect-fail")
	}
	if d.Skip {
		out = append(out, "skip")
	}
	out = append(out, d.Unknown...)
	return strings.Join(out, ",")
}

func (d Directives) merge(o Directives) Directives {
	d.Skip = d.Skip || o.Skip
	if o.SkipReason != "" {
		d.SkipReason = o.SkipReason
	}
	d.Preamble = d.Preamble || o.Preamble
	d.Standalone = d.Standalone || o.Standalone
	d.ExpectFail = d.ExpectFail || o.ExpectFail
	d.Unknown = append(d.Unknown[:len(d.Unknown):len(d.Unknown)], o.Unknown...)
	return d
}

// parseDirectiveLine parses a "<!-- snipcheck: ... -->" line.
//
// It returns false when the line is not a snipcheck directive at all.
func parseDirectiveLine(line string) (Directives, bool) {
	s := strings.TrimSpace(line)
	// "<!-->" and "<!--->" are comments too, short enough for the markers to
	// overlap.
	if len(s) < len("<!--")+len("-->") || !strings.HasPrefix(s, "<!--") || !strings.HasSuffix(s, "-->") {
		return Directives{}, false
	}
	s = strings.TrimSpace(s[len("<!--") : len(s)-len("-->")])
	if !strings.HasPrefix(s, directivePrefix) {
		return Directives{}, false
	}
	s = strings.TrimSpace(s[len(directivePrefix):])
	name, rest, _ := strings.Cut(s, " ")
	rest = strings.TrimSpace(rest)
	var d Directives
	switch name {
	case "skip":
		d.Skip = true
		d.SkipReason = rest
	case "preamble":
		d.Preamble = true
	case "standalone":
		d.Standalone = true
	case "expect-fail":
		d.ExpectFail = true
	default:
		d.Unknown = []string{name}
	}
	return d, true
}
