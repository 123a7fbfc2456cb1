// Copyright 2025 walteh LLC
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

package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"
	"github.com/walteh/fillswap/pkg/match"
	"github.com/walteh/fillswap/pkg/model"
	"github.com/walteh/fillswap/pkg/session"
	"github.com/walteh/fillswap/pkg/source"
	"gitlab.com/tozd/go/errors"
)

// 🔌 Parser is the interface for config parsers
type Parser interface {
	// 📝 Parse parses the config from bytes, on top of Default()
	Parse(ctx context.Context, data []byte) (*Config, error)

	// 🔍 CanParse checks if this parser can handle the given file
	CanParse(filename string) bool
}

var (
	// 🗺️ parsers is a list of available parsers
	parsers []Parser
)

// 📝 Register registers a parser
func Register(p Parser) {
	parsers = append(parsers, p)
}

// 🎯 GetParser returns a parser that can handle the given file
func GetParser(filename string) Parser {
	for _, p := range parsers {
		if p.CanParse(filename) {
			return p
		}
	}
	return nil
}

// DefaultFilenames are looked up, in order, by Discover.
var DefaultFilenames = []string{".fillswap.yaml", ".fillswap.yml", ".fillswap.hcl", ".fillswap.json"}

// 🎚️ MatchConfig selects how filenames are compared to layer names
type MatchConfig struct {
	Mode             string `json:"mode" yaml:"mode"`
	IgnoreSeparators bool   `json:"ignore_separators" yaml:"ignore_separators"`
	PrefixMatch      bool   `json:"prefix_match" yaml:"prefix_match"`
}

// 📁 SourcesConfig controls how image folders are read
type SourcesConfig struct {
	Extensions     []string `json:"extensions" yaml:"extensions"`
	Ignore         []string `json:"ignore,omitempty" yaml:"ignore,omitempty"`
	Recursive      bool     `json:"recursive,omitempty" yaml:"recursive,omitempty"`
	MaxConcurrency int      `json:"max_concurrency" yaml:"max_concurrency"`
	MaxFileSize    int64    `json:"max_file_size" yaml:"max_file_size"`
}

// 🔁 ReplaceConfig tunes the replacement executor
type ReplaceConfig struct {
	ImageCacheSize int `json:"image_cache_size" yaml:"image_cache_size"`
}

// 🌉 ServerConfig configures the websocket bridge
type ServerConfig struct {
	Addr           string `json:"addr" yaml:"addr"`
	MaxSnapshotAge string `json:"max_snapshot_age,omitempty" yaml:"max_snapshot_age,omitempty"`
}

// SnapshotAge parses MaxSnapshotAge. An empty value is zero.
func (s ServerConfig) SnapshotAge() (time.Duration, error) {
	if strings.TrimSpace(s.MaxSnapshotAge) == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(s.MaxSnapshotAge))
	if err != nil {
		return 0, errors.Errorf("server.max_snapshot_age: %w", err)
	}
	if d < 0 {
		return 0, errors.Errorf("server.max_snapshot_age must not be negative, got %s", d)
	}
	return d, nil
}

// 📣 LogConfig sets the log level
type LogConfig struct {
	Level string `json:"level" yaml:"level"`
}

// 📚 Config represents the complete configuration
type Config struct {
	Scope   model.Scope   `json:"scope" yaml:"scope"`
	Match   MatchConfig   `json:"match" yaml:"match"`
	Sources SourcesConfig `json:"sources" yaml:"sources"`
	Replace ReplaceConfig `json:"replace" yaml:"replace"`
	Server  ServerConfig  `json:"server" yaml:"server"`
	Log     LogConfig     `json:"log" yaml:"log"`

	location string
}

// 🏭 Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		Scope: model.ScopeSelection,
		Match: MatchConfig{Mode: string(match.ModeExact)},
		Sources: SourcesConfig{
			Extensions:     append([]string(nil), source.DefaultExtensions...),
			MaxConcurrency: source.DefaultMaxConcurrency,
			MaxFileSize:    source.DefaultMaxFileSize,
		},
		Replace: ReplaceConfig{ImageCacheSize: 128},
		Server:  ServerConfig{Addr: "127.0.0.1:7878", MaxSnapshotAge: "2m"},
		Log:     LogConfig{Level: "info"},
	}
}

// 🎯 Load loads the configuration from a file. An empty path returns Default().
func Load(ctx context.Context, path string) (*Config, error) {
	logger := zerolog.Ctx(ctx)

	if path == "" {
		logger.Debug().Msg("no configuration file, using defaults")
		cfg := Default()
		return cfg, cfg.Validate()
	}

	logger.Debug().Str("path", path).Msg("loading configuration")

	// Read config file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Errorf("reading config file: %w", err)
	}

	// Get parser
	p := GetParser(path)
	if p == nil {
		return nil, errors.Errorf("no parser found for file: %s", path)
	}

	// Parse config
	cfg, err := p.Parse(ctx, data)
	if err != nil {
		return nil, errors.Errorf("parsing config: %w", err)
	}
	cfg.location = path

	// Validate
	if err := cfg.Validate(); err != nil {
		return nil, errors.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// 🔎 Discover returns the first of DefaultFilenames present in dir.
func Discover(dir string) (string, bool) {
	for _, name := range DefaultFilenames {
		p := filepath.Join(dir, name)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, true
		}
	}
	return "", false
}

// Location returns the file the config was loaded from, if any.
func (cfg *Config) Location() string {
	return cfg.location
}

// 🔍 Validate checks if the configuration is valid and normalizes it in place
func (cfg *Config) Validate() error {
	cfg.Scope = model.Scope(strings.ToLower(strings.TrimSpace(string(cfg.Scope))))
	if cfg.Scope == "" {
		cfg.Scope = model.ScopeSelection
	}
	if !cfg.Scope.Valid() {
		return errors.Errorf("scope must be one of selection, page, document; got %q", cfg.Scope)
	}

	mode, err := match.ParseMode(cfg.Match.Mode)
	if err != nil {
		return errors.Errorf("match.mode: %w", err)
	}
	cfg.Match.Mode = string(mode)

	if len(cfg.Sources.Extensions) == 0 {
		return errors.Errorf("sources.extensions must not be empty")
	}
	for i, ext := range cfg.Sources.Extensions {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext == "" || strings.ContainsAny(ext, "/\\{},*?[]") {
			return errors.Errorf("sources.extensions[%d] is not a valid extension: %q", i, cfg.Sources.Extensions[i])
		}
		cfg.Sources.Extensions[i] = ext
	}
	for _, ig := range cfg.Sources.Ignore {
		if !doublestar.ValidatePattern(ig) {
			return errors.Errorf("sources.ignore: invalid pattern %q", ig)
		}
	}
	if cfg.Sources.MaxConcurrency < 1 {
		return errors.Errorf("sources.max_concurrency must be at least 1")
	}
	if cfg.Sources.MaxFileSize < 1 {
		return errors.Errorf("sources.max_file_size must be positive")
	}

	if cfg.Replace.ImageCacheSize < 1 {
		return errors.Errorf("replace.image_cache_size must be at least 1")
	}

	if strings.TrimSpace(cfg.Server.Addr) == "" {
		return errors.Errorf("server.addr is required")
	}
	if _, err := cfg.Server.SnapshotAge(); err != nil {
		return err
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(cfg.Log.Level)); err != nil {
		return errors.Errorf("log.level: %w", err)
	}
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)

	return nil
}

// Matcher builds the matcher the config describes.
func (cfg *Config) Matcher() *match.Matcher {
	mode, _ := match.ParseMode(cfg.Match.Mode)
	return match.New(mode, match.FuzzyOptions{
		IgnoreSeparators: cfg.Match.IgnoreSeparators,
		PrefixMatch:      cfg.Match.PrefixMatch,
	})
}

// SourceOptions converts the sources block for source.Load.
func (cfg *Config) SourceOptions() source.Options {
	return source.Options{
		Extensions:     cfg.Sources.Extensions,
		Ignore:         cfg.Sources.Ignore,
		Recursive:      cfg.Sources.Recursive,
		MaxConcurrency: cfg.Sources.MaxConcurrency,
		MaxFileSize:    cfg.Sources.MaxFileSize,
	}
}

// SessionOptions converts the config for session.New. Validate must have succeeded.
func (cfg *Config) SessionOptions() session.Options {
	age, _ := cfg.Server.SnapshotAge()
	return session.Options{
		Matcher:        cfg.Matcher(),
		DefaultScope:   cfg.Scope,
		MaxSnapshotAge: age,
		ImageCacheSize: cfg.Replace.ImageCacheSize,
	}
}

// LogLevel returns the parsed log level, defaulting to info.
func (cfg *Config) LogLevel() zerolog.Level {
	lvl, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil || cfg.Log.Level == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

// 📝 String returns a string representation of the config
func (cfg *Config) String() string {
	m := cfg.Match.Mode
	if cfg.Match.Mode == string(match.ModeFuzzy) {
		m = fmt.Sprintf("%s(ignore_separators=%t, prefix_match=%t)", m, cfg.Match.IgnoreSeparators, cfg.Match.PrefixMatch)
	}
	return fmt.Sprintf("scope=%s match=%s extensions=%s", cfg.Scope, m, strings.Join(cfg.Sources.Extensions, ","))
}
