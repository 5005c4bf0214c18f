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

import (
	"context"

	"go.fuchsia.dev/shac-project/snipcheck/internal/engine"
	"golang.org/x/sync/errgroup"
)

// MultiReport is a Report that wraps any number of other Report objects and
// tees output to all of them.
type MultiReport struct {
	Reporters []Report
}

var _ Report = (*MultiReport)(nil)

func (t *MultiReport) EmitResult(ctx context.Context, file string, r *engine.Result) error {
	return t.do(func(rep Report) error {
		return rep.EmitResult(ctx, file, r)
	})
}

func (t *MultiReport) Summarize(ctx context.Context, file string, s *engine.Summary) error {
	return t.do(func(rep Report) error {
		return rep.Summarize(ctx, file, s)
	})
}

func (t *MultiReport) Print(ctx context.Context, file string, line int, message string) {
	_ = t.do(func(rep Report) error {
		rep.Print(ctx, file, line, message)
		return nil
	})
}

func (t *MultiReport) Close() error {
	return t.do(func(rep Report) error {
		return rep.Close()
	})
}

// do calls f on every reporter concurrently and returns the first error.
func (t *MultiReport) do(f func(rep Report) error) error {
	var eg errgroup.Group
	for _, rep := range t.Reporters {
		rep := rep
		eg.Go(func() error {
			return f(rep)
		})
	}
	return eg.Wait()
}
