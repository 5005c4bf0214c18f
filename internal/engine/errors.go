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

package engine

import (
	"errors"
	"fmt"

	"go.starlark.net/starlark"
)

// ErrCheckFailed is returned by Run() when at least one snippet failed
// validation.
//
// The information will have been provided via the Report interface.
var ErrCheckFailed = errors.New("a snippet failed validation")

// ErrNotFound is wrapped by the error Load() returns when the document
// doesn't exist.
var ErrNotFound = errors.New("no such document")

// ReadError is returned when a document exists but cannot be read.
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("cannot read %s: %s", e.Path, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// MalformedBlockError is returned when the fenced blocks of a document cannot
// be reliably delimited.
//
// Line is the 1-based line of the offending fence opening.
type MalformedBlockError struct {
	Path   string
	Line   int
	Reason string
}

func (e *MalformedBlockError) Error() string {
	return fmt.Sprintf("%s(%d): malformed block: %s", e.Path, e.Line, e.Reason)
}

// ConfigError is returned when the configuration file is invalid.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// BacktraceableError is an error that has a starlark backtrace attached to it.
type BacktraceableError interface {
	error
	// Backtrace returns a user-friendly error message describing the stack
	// of calls that led to this error, along with the error message itself.
	Backtrace() string
}

// evalError is starlark.EvalError with an optimized Backtrace() function.
type evalError struct {
	*starlark.EvalError
}

// Backtrace returns a user-friendly error message describing the stack
// of calls that led to this error.
func (e *evalError) Backtrace() string {
	c := e.CallStack
	if len(c) > 0 && c[len(c)-1].Pos.Filename() == "<builtin>" {
		c = c[:len(c)-1]
	}
	return c.String()
}

var _ BacktraceableError = (*evalError)(nil)
