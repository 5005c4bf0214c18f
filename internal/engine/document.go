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
	"io/fs"
	"os"
	"strings"
)

// Document is a loaded text document, exposed as an ordered sequence of
// lines.
//
// A Document must not be modified once loaded; CodeBlocks extracted from it
// reference its line numbers.
type Document struct {
	// Path is the path the document was loaded from. It is only used for
	// display.
	Path string
	// Lines are the document lines without their terminators. Lines[0] is
	// line 1.
	Lines []string
}

// Load reads the document at path.
//
// It returns an error wrapping ErrNotFound if the file doesn't exist and a
// *ReadError for any other failure.
func Load(path string) (*Document, error) {
	fi, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, &ReadError{Path: path, Err: err}
	}
	if fi.IsDir() {
		return nil, &ReadError{Path: path, Err: errors.New("is a directory")}
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, &ReadError{Path: path, Err: err}
	}
	return NewDocument(path, string(b)), nil
}

// NewDocument splits content into lines.
//
// A trailing newline doesn't create an empty last line. Windows line endings
// are accepted.
func NewDocument(path, content string) *Document {
	d := &Document{Path: path}
	if content == "" {
		return d
	}
	content = strings.TrimSuffix(content, "\n")
	for _, l := range strings.Split(content, "\n") {
		d.Lines = append(d.Lines, strings.TrimSuffix(l, "\r"))
	}
	return d
}
