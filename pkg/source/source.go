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

// Package source loads image files from disk into SourceItems.
package source

import (
	"context"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"
	"github.com/walteh/fillswap/pkg/model"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/sync/errgroup"
)

// DefaultExtensions is the set of extensions picked up when none are configured.
var DefaultExtensions = []string{"png", "jpg", "jpeg", "gif", "webp"}

const (
	DefaultMaxConcurrency = 8
	// DefaultMaxFileSize is 20 MiB.
	DefaultMaxFileSize int64 = 20 << 20
)

// ⚙️ Options control which files Load picks up and how.
type Options struct {
	Extensions     []string
	Ignore         []string
	Recursive      bool
	MaxConcurrency int
	MaxFileSize    int64
}

func (o Options) withDefaults() Options {
	if len(o.Extensions) == 0 {
		o.Extensions = DefaultExtensions
	}
	if o.MaxConcurrency <= 0 {
		o.MaxConcurrency = DefaultMaxConcurrency
	}
	if o.MaxFileSize <= 0 {
		o.MaxFileSize = DefaultMaxFileSize
	}
	return o
}

// pattern returns the glob accepted files must match, in lowercase.
func (o Options) pattern() string {
	exts := make([]string, 0, len(o.Extensions))
	for _, e := range o.Extensions {
		exts = append(exts, strings.ToLower(strings.TrimPrefix(strings.TrimSpace(e), ".")))
	}
	prefix := ""
	if o.Recursive {
		prefix = "**/"
	}
	return prefix + "*.{" + strings.Join(exts, ",") + "}"
}

// 📥 Load reads every accepted file under dir into memory, sorted by filename.
//
// A file is accepted when its extension is in Extensions (case-insensitive) and it
// matches none of the Ignore globs, which are checked against the slash-separated path
// relative to dir. Dotfiles are always skipped. Filenames must be unique; with Recursive
// set, two files sharing a base name in different folders is an error.
func Load(ctx context.Context, dir string, opts Options) ([]model.SourceItem, error) {
	opts = opts.withDefaults()
	logger := zerolog.Ctx(ctx)

	pattern := opts.pattern()
	if !doublestar.ValidatePattern(pattern) {
		return nil, errors.Errorf("invalid extension set %v", opts.Extensions)
	}
	for _, ig := range opts.Ignore {
		if !doublestar.ValidatePattern(ig) {
			return nil, errors.Errorf("invalid ignore pattern %q", ig)
		}
	}

	fsys := os.DirFS(dir)
	var paths []string
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == "." {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if !opts.Recursive || ignored(opts.Ignore, p) {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		ok, err := doublestar.Match(pattern, strings.ToLower(p))
		if err != nil {
			return errors.Errorf("matching %s: %w", p, err)
		}
		if !ok {
			return nil
		}
		if ignored(opts.Ignore, p) {
			logger.Debug().Str("file", p).Msg("file ignored by pattern")
			return nil
		}
		paths = append(paths, p)
		return nil
	})
	if err != nil {
		return nil, errors.Errorf("walking %s: %w", dir, err)
	}

	seen := make(map[string]string, len(paths))
	for _, p := range paths {
		name := path.Base(p)
		if other, dup := seen[name]; dup {
			return nil, errors.Errorf("duplicate filename %q (%s and %s)", name, other, p)
		}
		seen[name] = p
	}

	items := make([]model.SourceItem, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.MaxConcurrency)
	for i, p := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			full := filepath.Join(dir, filepath.FromSlash(p))
			info, err := os.Stat(full)
			if err != nil {
				return errors.Errorf("stat %s: %w", p, err)
			}
			if info.Size() > opts.MaxFileSize {
				return errors.Errorf("%s is %d bytes, larger than the %d byte limit", p, info.Size(), opts.MaxFileSize)
			}
			content, err := os.ReadFile(full)
			if err != nil {
				return errors.Errorf("reading %s: %w", p, err)
			}
			items[i] = model.NewSourceItem(path.Base(p), content)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(items, func(a, b int) bool {
		return items[a].Filename < items[b].Filename
	})

	logger.Debug().Str("dir", dir).Int("files", len(items)).Msg("loaded sources")
	return items, nil
}

func ignored(patterns []string, p string) bool {
	for _, pattern := range patterns {
		if ok, _ := doublestar.Match(pattern, p); ok {
			return true
		}
	}
	return false
}

// FromBytes builds a single source item from an in-memory file. The filename is kept as
// given, so it must already be a bare base name: later assignments refer to it verbatim.
func FromBytes(filename string, content []byte) (model.SourceItem, error) {
	if strings.TrimSpace(filename) == "" {
		return model.SourceItem{}, errors.New("filename is empty")
	}
	if filename != strings.TrimSpace(filename) {
		return model.SourceItem{}, errors.Errorf("filename %q has surrounding whitespace", filename)
	}
	if strings.ContainsAny(filename, `/\`) {
		return model.SourceItem{}, errors.Errorf("filename %q must not contain a path", filename)
	}
	return model.NewSourceItem(filename, content), nil
}
