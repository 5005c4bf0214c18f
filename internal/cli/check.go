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
	"context"
	"errors"
	"os"
	"strings"
	"time"

	flag "github.com/spf13/pflag"
	"go.fuchsia.dev/shac-project/snipcheck/internal/engine"
	"go.fuchsia.dev/shac-project/snipcheck/internal/reporting"
)

type checkCmd struct {
	commandBase
	tool      string
	timeoutMS int
	jobs      int
	cacheDir  string
	sarifOut  string
	env       envFlag
}

func (*checkCmd) Name() string {
	return "check"
}

func (*checkCmd) Description() string {
	return "Validate the code snippets of a document.\n" +
		"\"snipcheck <document>\" is a shorthand for \"snipcheck check <document>\"."
}

func (c *checkCmd) SetFlags(f *flag.FlagSet) {
	c.commandBase.SetFlags(f)
	c.env = envFlag{}
	f.StringVar(&c.tool, "tool", "", "command validating snippets, the snippet file is appended (default: from the configuration)")
	f.IntVar(&c.timeoutMS, "timeout-ms", 0, "per snippet timeout in milliseconds (default 5000)")
	f.IntVar(&c.jobs, "jobs", 0, "number of concurrent validations (default: number of CPUs)")
	f.StringVar(&c.cacheDir, "cache-dir", "", "directory caching validation results")
	f.StringVar(&c.sarifOut, "sarif-out", "", "path to a file to write SARIF results to")
	f.Var(&c.env, "env", "environment variable passed to the tool, as KEY=VALUE; can be repeated")
}

func (c *checkCmd) Execute(ctx context.Context, args []string) error {
	o, err := c.options(args)
	if err != nil {
		return err
	}
	if c.timeoutMS < 0 {
		return errors.New("--timeout-ms must not be negative")
	}
	if c.jobs < 0 {
		return errors.New("--jobs must not be negative")
	}
	o.Tool = strings.Fields(c.tool)
	o.Timeout = time.Duration(c.timeoutMS) * time.Millisecond
	o.Jobs = c.jobs
	o.CacheDir = c.cacheDir
	o.Env = c.env

	r, err := reporting.Get(ctx)
	if err != nil {
		return err
	}
	var sarifFile *os.File
	if c.sarifOut != "" {
		if sarifFile, err = os.Create(c.sarifOut); err != nil {
			return err
		}
		r.Reporters = append(r.Reporters, &reporting.SarifReport{Out: sarifFile})
	}
	o.Report = r
	err = engine.Run(ctx, &o)
	if err2 := r.Close(); err == nil {
		err = err2
	}
	if sarifFile != nil {
		if err2 := sarifFile.Close(); err == nil {
			err = err2
		}
	}
	return err
}
