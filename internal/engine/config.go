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
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"golang.org/x/mod/semver"
)

// DefaultConfig is the basename of the configuration file looked up next to
// the document.
const DefaultConfig = "snipcheck.toml"

// Config is the content of a snipcheck.toml file.
//
// Every field is optional. Command line flags take precedence.
type Config struct {
	// MinVersion is the minimum snipcheck version, e.g. "v0.1.0".
	MinVersion string `toml:"min_version"`
	// Lang overrides the inferred subject language.
	Lang string `toml:"lang"`
	// TimeoutMS is the per snippet wall clock limit in milliseconds.
	TimeoutMS int `toml:"timeout_ms"`
	// Jobs is the number of concurrent validations.
	Jobs int `toml:"jobs"`
	// Preamble is one of "first", "marker" or "none".
	Preamble string `toml:"preamble"`
	// CacheDir enables the result cache when set. Relative paths are relative
	// to the configuration file.
	CacheDir string `toml:"cache_dir"`
	// PassthroughEnv lists environment variables forwarded to the tools.
	PassthroughEnv []string `toml:"passthrough_env"`
	// Sandbox runs the tools in nsjail when it is available.
	Sandbox bool `toml:"sandbox"`
	// AllowNetwork permits network access to sandboxed tools.
	AllowNetwork bool `toml:"allow_network"`
	// Tools maps a language tag to the command validating it. The snippet
	// file is appended as the last argument.
	Tools map[string][]string `toml:"tools"`

	// dir is the directory containing the file, empty when there's none.
	dir string
}

// loadConfig reads the configuration file.
//
// When path is empty, DefaultConfig is looked up in docDir and its absence is
// not an error.
func loadConfig(path, docDir string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = filepath.Join(docDir, DefaultConfig)
	}
	cfg := &Config{}
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return &Config{}, nil
		}
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &ConfigError{Path: path, Err: errors.New("no such file")}
		}
		var perr toml.ParseError
		if errors.As(err, &perr) {
			return nil, &ConfigError{Path: path, Err: errors.New(perr.ErrorWithPosition())}
		}
		return nil, &ConfigError{Path: path, Err: err}
	}
	// Check the version first, so users get an "unsupported version" error
	// if they set fields that are only available in a later version.
	if err := cfg.checkVersion(); err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}
	if undecoded := md.Undecoded(); len(undecoded) != 0 {
		var keys []string
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		return nil, &ConfigError{Path: path, Err: fmt.Errorf("unknown field: %s", strings.Join(keys, ", "))}
	}
	if err := cfg.Validate(); err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}
	cfg.dir = filepath.Dir(path)
	return cfg, nil
}

func (c *Config) checkVersion() error {
	if c.MinVersion == "" {
		return nil
	}
	if !semver.IsValid(c.MinVersion) {
		return errors.New("min_version is invalid")
	}
	if semver.Compare(c.MinVersion, Version.String()) > 0 {
		return fmt.Errorf("min_version specifies unsupported version %q, running %s", c.MinVersion, Version)
	}
	return nil
}

// Validate verifies a snipcheck.toml document is valid.
func (c *Config) Validate() error {
	if err := c.checkVersion(); err != nil {
		return err
	}
	if c.TimeoutMS < 0 {
		return errors.New("timeout_ms must not be negative")
	}
	if c.Jobs < 0 {
		return errors.New("jobs must not be negative")
	}
	if c.Preamble != "" && !PreambleMode(c.Preamble).isValid() {
		return fmt.Errorf("preamble %q is invalid, must be one of first, marker, none", c.Preamble)
	}
	for _, e := range c.PassthroughEnv {
		if e == "" || strings.Contains(e, "=") {
			return fmt.Errorf("passthrough_env %q is invalid", e)
		}
		if e == "PATH" {
			return errors.New("passthrough_env: $PATH is always forwarded")
		}
	}
	seen := map[string]string{}
	// Sort for deterministic error messages.
	var langs []string
	for l := range c.Tools {
		langs = append(langs, l)
	}
	sort.Strings(langs)
	for _, l := range langs {
		if l == "" {
			return errors.New("tools: language must not be empty")
		}
		if len(c.Tools[l]) == 0 || c.Tools[l][0] == "" {
			return fmt.Errorf("tools.%s: command must not be empty", l)
		}
		k := canonicalLang(l)
		if other, ok := seen[k]; ok {
			return fmt.Errorf("tools.%s: same language as tools.%s", l, other)
		}
		seen[k] = l
	}
	return nil
}

// tool returns the configured command for lang, or nil.
func (c *Config) tool(lang string) []string {
	for l, cmd := range c.Tools {
		if sameLang(l, lang) {
			return cmd
		}
	}
	return nil
}

// cacheDir returns the absolute cache directory, or "" when disabled.
func (c *Config) cacheDir() string {
	if c.CacheDir == "" || filepath.IsAbs(c.CacheDir) {
		return c.CacheDir
	}
	return filepath.Join(c.dir, c.CacheDir)
}

// passthroughEnv returns the forwarded environment variables that are set.
func (c *Config) passthroughEnv() map[string]string {
	out := map[string]string{}
	for _, name := range c.PassthroughEnv {
		if v, ok := os.LookupEnv(name); ok {
			out[name] = v
		}
	}
	return out
}
