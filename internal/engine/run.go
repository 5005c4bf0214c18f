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
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"go.fuchsia.dev/shac-project/snipcheck/internal/sandbox"
	"golang.org/x/sync/errgroup"
)

// DefaultTimeout is the default per snippet wall clock limit.
const DefaultTimeout = 5 * time.Second

// Status is the final state of a snippet.
type Status string

// Valid Status values.
const (
	Passed  Status = "pass"
	Failed  Status = "fail"
	Skipped Status = "skip"
)

// Result is the validation result of one CodeBlock.
type Result struct {
	// Block is the block this result is about.
	Block *CodeBlock
	// Status is the final state of the block.
	Status Status
	// Diagnostic is the tool output for validated blocks, or the reason a
	// block was skipped.
	Diagnostic string
	// Preamble is set on the block that was prepended to the others.
	Preamble bool
	// Duration is the wall clock time of the validation.
	Duration time.Duration
	// Cached is set when the outcome comes from the result cache.
	Cached bool
}

// Success returns false only when the snippet failed validation. Skipped
// snippets are not failures.
func (r *Result) Success() bool {
	return r.Status != Failed
}

// Summary is the ordered set of results of a run, with their counts.
type Summary struct {
	// Lang is the subject language.
	Lang    string
	Results []Result
	Total   int
	Passed  int
	Failed  int
	Skipped int
}

// String returns the machine-readable summary line.
func (s *Summary) String() string {
	return fmt.Sprintf("PASS=%d FAIL=%d SKIP=%d", s.Passed, s.Failed, s.Skipped)
}

// Report exposes callbacks that the engine calls for everything generated by
// a run.
type Report interface {
	// EmitResult emits the result of one block.
	//
	// It is called once per block, in document order, after all the
	// validations completed.
	EmitResult(ctx context.Context, file string, r *Result) error
	// Summarize is called once, after all the results were emitted.
	Summarize(ctx context.Context, file string, s *Summary) error
	// Print is called for informational messages about a document location.
	Print(ctx context.Context, file string, line int, message string)
}

// Options is the options for Run().
type Options struct {
	// Report gets all the results.
	//
	// It is recommended to use reporting.Get() which returns the right
	// implementation based on the environment (CI, interactive, etc).
	Report Report
	// Path is the document to check. This is the only required argument
	// besides Report.
	Path string
	// Config is the configuration file. Defaults to snipcheck.toml next to
	// the document, if present.
	Config string
	// Lang overrides the subject language.
	Lang string
	// Tool overrides the command validating the subject language.
	Tool []string
	// Timeout bounds each validation. Defaults to DefaultTimeout.
	Timeout time.Duration
	// Jobs is the number of concurrent validations. Defaults to the number of
	// CPUs.
	Jobs int
	// Preamble selects the preamble. Defaults to PreambleFirst.
	Preamble PreambleMode
	// CacheDir enables the result cache.
	CacheDir string
	// Env contains environment variables passed to the tool.
	Env map[string]string

	// validator overrides the Validator. Only used in unit tests.
	validator Validator
}

// Run loads a document, validates its snippets and reports the results.
//
// It returns ErrCheckFailed if any snippet failed.
func Run(ctx context.Context, o *Options) error {
	tmpdir, err := os.MkdirTemp("", "snipcheck")
	if err != nil {
		return err
	}
	err = runInner(ctx, o, tmpdir)
	if err2 := os.RemoveAll(tmpdir); err == nil {
		err = err2
	}
	return err
}

// plan is the resolved state of a run before validation starts.
type plan struct {
	doc      *Document
	cfg      *Config
	blocks   []*CodeBlock
	lang     string
	preamble int
}

// prepare loads, extracts and resolves everything needed before validation.
func prepare(o *Options) (*plan, error) {
	if o.Path == "" {
		return nil, errors.New("a document is required")
	}
	doc, err := Load(o.Path)
	if err != nil {
		return nil, err
	}
	cfg, err := loadConfig(o.Config, filepath.Dir(o.Path))
	if err != nil {
		return nil, err
	}
	blocks, err := Extract(doc)
	if err != nil {
		return nil, err
	}
	lang := o.Lang
	if lang == "" {
		lang = cfg.Lang
	}
	if lang == "" {
		lang = inferLang(blocks)
		if lang != "" {
			log.Printf("inferred subject language %s", lang)
		}
	}
	mode := o.Preamble
	if mode == "" {
		mode = PreambleMode(cfg.Preamble)
	}
	if mode == "" {
		mode = PreambleFirst
	}
	if !mode.isValid() {
		return nil, fmt.Errorf("invalid preamble mode %q", mode)
	}
	preamble, err := selectPreamble(doc.Path, blocks, lang, mode)
	if err != nil {
		return nil, err
	}
	return &plan{doc: doc, cfg: cfg, blocks: blocks, lang: lang, preamble: preamble}, nil
}

// triage returns the results of blocks that are not validated, keyed by
// index. The other blocks move to the Normalized state.
func (p *plan) triage() map[int]Result {
	skipped := map[int]Result{}
	for i, b := range p.blocks {
		var reason string
		switch {
		case len(b.Directives.Unknown) != 0:
			reason = fmt.Sprintf("non-compilable fragment: unknown directive %q", b.Directives.Unknown[0])
		case b.Directives.Skip:
			reason = "non-compilable fragment"
			if b.Directives.SkipReason != "" {
				reason += ": " + b.Directives.SkipReason
			}
		case b.Lang == "":
			reason = "no language tag"
		case !sameLang(b.Lang, p.lang):
			reason = fmt.Sprintf("%s is not the subject language", b.Lang)
		default:
			continue
		}
		skipped[i] = Result{Block: b, Status: Skipped, Diagnostic: reason}
	}
	return skipped
}

func runInner(ctx context.Context, o *Options, tmpdir string) error {
	if o.Report == nil {
		return errors.New("a Report is required")
	}
	p, err := prepare(o)
	if err != nil {
		return err
	}
	file := displayPath(ctx, p.doc.Path)
	if p.preamble >= 0 {
		pb := p.blocks[p.preamble]
		o.Report.Print(ctx, file, pb.StartLine, fmt.Sprintf("using block at lines %d-%d as preamble", pb.StartLine, pb.EndLine))
	}

	results := make([]Result, len(p.blocks))
	skipped := p.triage()
	for i, r := range skipped {
		results[i] = r
	}

	if len(skipped) != len(p.blocks) {
		v := o.validator
		if v == nil {
			if v, err = p.newValidator(o, tmpdir); err != nil {
				return err
			}
		}
		jobs := o.Jobs
		if jobs <= 0 {
			jobs = p.cfg.Jobs
		}
		if jobs <= 0 {
			jobs = runtime.NumCPU()
		}
		eg, ectx := errgroup.WithContext(ctx)
		eg.SetLimit(jobs)
		for i := range p.blocks {
			if _, ok := skipped[i]; ok {
				continue
			}
			i := i
			// Cooperative cancellation between validations.
			if err := ectx.Err(); err != nil {
				break
			}
			eg.Go(func() error {
				r, err := p.validate(ectx, v, i)
				if err != nil {
					return err
				}
				// Each goroutine owns its slot, no lock needed.
				results[i] = r
				return nil
			})
		}
		if err := eg.Wait(); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}

	s := buildSummary(p.lang, results)
	for i := range s.Results {
		if err := o.Report.EmitResult(ctx, file, &s.Results[i]); err != nil {
			return err
		}
	}
	if err := o.Report.Summarize(ctx, file, s); err != nil {
		return err
	}
	if s.Failed != 0 {
		return ErrCheckFailed
	}
	return nil
}

// validate normalizes and validates blocks[i].
func (p *plan) validate(ctx context.Context, v Validator, i int) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	b := p.blocks[i]
	src, err := Normalize(p.blocks, i, p.preamble, p.lang)
	if err != nil {
		return Result{}, err
	}
	start := time.Now()
	out, err := v.Validate(ctx, &Snippet{Block: b, Source: src, Lang: p.lang})
	if err != nil {
		return Result{}, err
	}
	r := Result{
		Block:      b,
		Preamble:   i == p.preamble,
		Duration:   time.Since(start),
		Cached:     out.Cached,
		Diagnostic: out.Diagnostic,
		Status:     Failed,
	}
	switch {
	case out.TimedOut:
	case b.Directives.ExpectFail && !out.Success:
		r.Status = Passed
	case b.Directives.ExpectFail:
		r.Diagnostic = "expected a failure but the snippet was accepted\n" + out.Diagnostic
	case out.Success:
		r.Status = Passed
	}
	log.Printf("block at line %d: %s in %s", b.StartLine, r.Status, r.Duration.Round(time.Millisecond))
	return r, nil
}

// newValidator returns the Validator for the subject language.
func (p *plan) newValidator(o *Options, tmpdir string) (Validator, error) {
	timeout := o.Timeout
	if timeout <= 0 && p.cfg.TimeoutMS > 0 {
		timeout = time.Duration(p.cfg.TimeoutMS) * time.Millisecond
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	cmd := o.Tool
	if len(cmd) == 0 {
		cmd = p.cfg.tool(p.lang)
	}
	var v Validator
	var salt string
	if len(cmd) == 0 {
		if !isStarlark(p.lang) {
			return nil, fmt.Errorf("no tool configured for language %s; use --tool or the [tools] section of %s", p.lang, DefaultConfig)
		}
		v = &starlarkValidator{timeout: timeout}
		salt = "starlark"
	} else {
		sb, err := sandbox.New(p.cfg.Sandbox)
		if err != nil {
			return nil, err
		}
		env := p.cfg.passthroughEnv()
		for k, val := range o.Env {
			if k == "PATH" {
				return nil, errors.New("$PATH cannot be overridden")
			}
			env[k] = val
		}
		tv, err := newToolValidator(cmd, timeout, env, sb, p.cfg.AllowNetwork, tmpdir)
		if err != nil {
			return nil, err
		}
		v = tv
		salt = strings.Join(cmd, "\x00")
	}
	log.Printf("validating %s snippets with %s", p.lang, v)
	cacheDir := o.CacheDir
	if cacheDir == "" {
		cacheDir = p.cfg.cacheDir()
	}
	if cacheDir == "" {
		return v, nil
	}
	return newCachingValidator(v, cacheDir, salt)
}

// buildSummary sorts the results in document order and counts them.
func buildSummary(lang string, results []Result) *Summary {
	s := &Summary{Lang: lang, Results: append([]Result(nil), results...)}
	sort.SliceStable(s.Results, func(i, j int) bool {
		return s.Results[i].Block.StartLine < s.Results[j].Block.StartLine
	})
	for _, r := range s.Results {
		s.Total++
		switch r.Status {
		case Passed:
			s.Passed++
		case Failed:
			s.Failed++
		case Skipped:
			s.Skipped++
		}
	}
	return s
}

// BlockInfo describes how Run() handles a block.
type BlockInfo struct {
	Block *CodeBlock
	// Preamble is set on the document's preamble.
	Preamble bool
	// SkipReason is set when the block is not validated.
	SkipReason string
}

// Blocks loads a document and describes its blocks without validating
// anything. It also returns the subject language.
//
// It performs the same resolution as Run().
func Blocks(o *Options) (string, []BlockInfo, error) {
	p, err := prepare(o)
	if err != nil {
		return "", nil, err
	}
	skipped := p.triage()
	out := make([]BlockInfo, len(p.blocks))
	for i, b := range p.blocks {
		out[i] = BlockInfo{Block: b, Preamble: i == p.preamble, SkipReason: skipped[i].Diagnostic}
	}
	return p.lang, out, nil
}
