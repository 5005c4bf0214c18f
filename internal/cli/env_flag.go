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

package cli

import (
	"errors"
	"maps"
	"slices"
	"strings"

	flag "github.com/spf13/pflag"
)

// envFlag is a repeatable KEY=VALUE flag adding environment variables to the
// tool's environment.
type envFlag map[string]string

var _ flag.Value = (*envFlag)(nil)

func (v envFlag) String() string {
	out := make([]string, 0, len(v))
	for _, k := range slices.Sorted(maps.Keys(v)) {
		out = append(out, k+"="+v[k])
	}
	return strings.Join(out, ",")
}

func (v envFlag) Set(s string) error {
	name, value, ok := strings.Cut(s, "=")
	if !ok || name == "" {
		return errors.New("must be of the form key=value")
	}
	if strings.ContainsAny(name, " \t") {
		return errors.New("key must not contain whitespace")
	}
	// The tool is resolved against the caller's $PATH.
	if name == "PATH" {
		return errors.New("$PATH cannot be overridden")
	}
	if _, ok := v[name]; ok {
		return errors.New("duplicate key")
	}
	v[name] = value
	return nil
}

func (v envFlag) Type() string {
	return "KEY=VALUE"
}
