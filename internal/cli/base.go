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

	flag "github.com/spf13/pflag"
	"go.fuchsia.dev/shac-project/snipcheck/internal/engine"
)

// commandBase holds the flags shared by the commands reading a document.
type commandBase struct {
	config   string
	lang     string
	preamble engine.PreambleMode
}

func (c *commandBase) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.config, "config", "", "path to the configuration file (default: "+engine.DefaultConfig+" next to the document)")
	f.StringVar(&c.lang, "lang", "", "subject language (default: the dominant fenced block language)")
	f.Var(&c.preamble, "preamble", "preamble selection: first, marker or none (default first)")
}

func (c *commandBase) options(args []string) (engine.Options, error) {
	if len(args) == 0 {
		return engine.Options{}, errors.New("a document is required")
	}
	if len(args) > 1 {
		return engine.Options{}, errors.New("only one document can be checked at a time")
	}
	return engine.Options{
		Path:     args[0],
		Config:   c.config,
		Lang:     c.lang,
		Preamble: c.preamble,
	}, nil
}
