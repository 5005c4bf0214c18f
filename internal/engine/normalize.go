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
	"fmt"
)

// PreambleMode controls how the preamble of a document is selected.
type PreambleMode string

// Valid PreambleMode values.
const (
	// PreambleFirst uses the block annotated with "preamble", or else the
	// first block in the subject language.
	PreambleFirst PreambleMode = "first"
	// PreambleMarker only uses the block annotated with "preamble".
	PreambleMarker PreambleMode = "marker"
	// PreambleNone disables the preamble.
	PreambleNone PreambleMode = "none"
)

func (p *PreambleMode) Set(value string) error {
	m := PreambleMode(value)
	if !m.isValid() {
		return fmt.Errorf("invalid preamble mode %q, must be one of first, marker, none", value)
	}
	*p = m
	return nil
}

func (p *PreambleMode) String() string {
	return string(*p)
}

func (p *PreambleMode) Type() string {
	return "mode"
}

func (p PreambleMode) isValid() bool {
	switch p {
	case PreambleFirst, PreambleMarker, PreambleNone:
		return true
	default:
		return false
	}
}

// selectPreamble returns the index of the preamble in blocks, or -1.
//
// More than one explicitly annotated preamble is an error, since the
// document's intent is then ambiguous.
func selectPreamble(path string, blocks []*CodeBlock, lang string, mode PreambleMode) (int, error) {
	if mode == PreambleNone {
		return -1, nil
	}
	marked := -1
	for i, b := range blocks {
		if !b.Directives.Preamble {
			continue
		}
		if marked != -1 {
			return -1, &MalformedBlockError{
				Path:   path,
				Line:   b.StartLine,
				Reason: fmt.Sprintf("second preamble, first one is at line %d", blocks[marked].StartLine),
			}
		}
		marked = i
	}
	if marked != -1 {
		if b := blocks[marked]; !sameLang(b.Lang, lang) || !validatable(b) {
			return -1, &MalformedBlockError{
				Path:   path,
				Line:   b.StartLine,
				Reason: "the preamble must be a validated block in the subject language",
			}
		}
		return marked, nil
	}
	if mode == PreambleMarker {
		return -1, nil
	}
	for i, b := range blocks {
		if sameLang(b.Lang, lang) && validatable(b) {
			return i, nil
		}
	}
	return -1, nil
}

// validatable returns true if the block's annotations permit validation.
func validatable(b *CodeBlock) bool {
	return !b.Directives.Skip && len(b.Directives.Unknown) == 0
}

// Normalize returns the source to validate for blocks[i].
//
// The preamble at index preamble (or -1 for none) is prepended when blocks[i]
// follows it in the document, is in the subject language lang and isn't
// annotated as standalone.
func Normalize(blocks []*CodeBlock, i, preamble int, lang string) (string, error) {
	if i < 0 || i >= len(blocks) {
		return "", fmt.Errorf("block index %d out of range [0, %d)", i, len(blocks))
	}
	if preamble >= len(blocks) {
		return "", fmt.Errorf("preamble index %d out of range [0, %d)", preamble, len(blocks))
	}
	b := blocks[i]
	if preamble < 0 || i <= preamble || b.Directives.Standalone || !sameLang(b.Lang, lang) {
		return b.Raw, nil
	}
	return blocks[preamble].Raw + b.Raw, nil
}
