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

// ansiCode is one of the SGR ANSI escape codes used by the interactive
// report.
//
// Only the codes without options are represented.
//
// https://en.wikipedia.org/wiki/ANSI_escape_code#SGR_.28Select_Graphic_Rendition.29_parameters
type ansiCode int

func (a ansiCode) String() string {
	return ansiCodeMap[a]
}

const (
	// Styling codes.
	reset ansiCode = 0
	bold  ansiCode = 1
	faint ansiCode = 2

	// Foreground colors. The bright variants are more readable on dark
	// themes, the plain ones are kept for status words.
	fgRed    ansiCode = 31
	fgGreen  ansiCode = 32
	fgYellow ansiCode = 33
	fgHiBlue ansiCode = 94
	fgHiCyan ansiCode = 96
)

// ansiCodeMap is precomputed to not pay for formatting on every result.
var ansiCodeMap = map[ansiCode]string{
	reset:    "\x1b[0m",
	bold:     "\x1b[1m",
	faint:    "\x1b[2m",
	fgRed:    "\x1b[31m",
	fgGreen:  "\x1b[32m",
	fgYellow: "\x1b[33m",
	fgHiBlue: "\x1b[94m",
	fgHiCyan: "\x1b[96m",
}
