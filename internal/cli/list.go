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

package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	flag "github.com/spf13/pflag"
	"go.fuchsia.dev/shac-project/snipcheck/internal/engine"
)

type listCmd struct {
	commandBase
}

func (*listCmd) Name() string {
	return "list"
}

func (*listCmd) Description() string {
	return "List the code blocks of a document and how they are handled."
}

func (c *listCmd) SetFlags(f *flag.FlagSet) {
	c.commandBase.SetFlags(f)
}

func (c *listCmd) Execute(ctx context.Context, args []string) error {
	o, err := c.options(args)
	if err != nil {
		return err
	}
	lang, infos, err := engine.Blocks(&o)
	if err != nil {
		return err
	}
	if _, err = fmt.Fprintf(stdout, "%s: subject language %s, %d blocks\n", o.Path, orDash(lang), len(infos)); err != nil {
		return err
	}
	w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "LINES\tLANG\tROLE\tDIRECTIVES")
	for _, i := range infos {
		fmt.Fprintf(w, "%d-%d\t%s\t%s\t%s\n",
			i.Block.StartLine, i.Block.EndLine,
			orDash(i.Block.Lang),
			role(i),
			orDash(i.Block.Directives.String()))
	}
	return w.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// role describes what check does with a block.
func role(i engine.BlockInfo) string {
	switch {
	case i.SkipReason != "":
		return "skip: " + i.SkipReason
	case i.Preamble:
		return "preamble"
	case i.Block.Directives.Standalone:
		return "standalone snippet"
	default:
		return "snippet"
	}
}
