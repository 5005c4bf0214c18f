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

	"github.com/src-d/enry/v2"
)

// canonicalLang maps a fence tag to a language name so that aliases compare
// equal, e.g. "js" and "javascript" both return "JavaScript".
//
// Tags unknown to linguist are returned lower cased.
func canonicalLang(tag string) string {
	if tag == "" {
		return ""
	}
	if l, ok := enry.GetLanguageByAlias(tag); ok {
		return l
	}
	return strings.ToLower(tag)
}

// sameLang returns true if both tags refer to the same language.
func sameLang(a, b string) bool {
	return a != "" && canonicalLang(a) == canonicalLang(b)
}

// inferLang returns the dominant canonical language among the tagged blocks.
//
// Ties are broken by the order of first appearance. Returns "" when no block
// is tagged.
func inferLang(blocks []*CodeBlock) string {
	counts := map[string]int{}
	var order []string
	for _, b := range blocks {
		l := canonicalLang(b.Lang)
		if l == "" {
			continue
		}
		if counts[l] == 0 {
			order = append(order, l)
		}
		counts[l]++
	}
	best := ""
	for _, l := range order {
		if counts[l] > counts[best] {
			best = l
		}
	}
	return best
}

// snippetExt returns the file extension to use for a snippet in lang,
// including the leading dot.
func snippetExt(lang string) string {
	if exts := enry.GetLanguageExtensions(canonicalLang(lang)); len(exts) != 0 {
		return exts[0]
	}
	if lang == "" {
		return ".txt"
	}
	return "." + strings.ToLower(lang)
}

// isStarlark returns true if lang is handled by the built-in validator.
func isStarlark(lang string) bool {
	switch strings.ToLower(canonicalLang(lang)) {
	case "starlark", "star", "bzl", "bazel":
		return true
	}
	return false
}
