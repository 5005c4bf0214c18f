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
	"context"
	"encoding/hex"
	"errors"
	"log"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/zeebo/xxh3"
)

// cacheSchema must be incremented whenever cacheEntry changes.
const cacheSchema uint16 = 1

// cacheEntry is the on-disk form of an Outcome.
type cacheEntry struct {
	Schema     uint16
	Success    bool
	Diagnostic string
}

// cachingValidator memoizes the outcomes of another Validator on disk.
//
// Outcomes are keyed by the snippet source, its language and salt, which
// identifies the validating tool. Timeouts are never cached.
type cachingValidator struct {
	next Validator
	dir  string
	salt string
}

func newCachingValidator(next Validator, dir, salt string) (*cachingValidator, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &cachingValidator{next: next, dir: dir, salt: salt}, nil
}

func (c *cachingValidator) key(s *Snippet) string {
	h := xxh3.HashString128(c.salt + "\x00" + canonicalLang(s.Lang) + "\x00" + s.Source)
	b := h.Bytes()
	return hex.EncodeToString(b[:])
}

func (c *cachingValidator) pathFor(key string) string {
	// Shard by the first byte to keep directories small.
	return filepath.Join(c.dir, key[:2], key+".mp")
}

func (c *cachingValidator) Validate(ctx context.Context, s *Snippet) (Outcome, error) {
	key := c.key(s)
	p := c.pathFor(key)
	if o, ok := c.get(p); ok {
		log.Printf("cache hit for block at line %d", s.Block.StartLine)
		return o, nil
	}
	o, err := c.next.Validate(ctx, s)
	if err != nil || o.TimedOut {
		return o, err
	}
	if err := c.put(p, &cacheEntry{Schema: cacheSchema, Success: o.Success, Diagnostic: o.Diagnostic}); err != nil {
		// The cache is an optimization, never fail a run because of it.
		log.Printf("failed to write cache entry %s: %s", p, err)
	}
	return o, nil
}

func (c *cachingValidator) get(p string) (Outcome, bool) {
	f, err := os.Open(p)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Printf("failed to read cache entry %s: %s", p, err)
		}
		return Outcome{}, false
	}
	defer f.Close()
	var e cacheEntry
	if err := msgpack.NewDecoder(f).Decode(&e); err != nil {
		log.Printf("ignoring corrupted cache entry %s: %s", p, err)
		return Outcome{}, false
	}
	if e.Schema != cacheSchema {
		return Outcome{}, false
	}
	return Outcome{Success: e.Success, Diagnostic: e.Diagnostic, Cached: true}, true
}

// put writes the entry atomically, so concurrent runs sharing a cache
// directory never observe a partial entry.
func (c *cachingValidator) put(p string, e *cacheEntry) error {
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(p), "tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())
	err = msgpack.NewEncoder(f).Encode(e)
	if err2 := f.Close(); err == nil {
		err = err2
	}
	if err != nil {
		return err
	}
	return os.Rename(f.Name(), p)
}
