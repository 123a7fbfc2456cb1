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

// Package replace applies resolved assignments to a host document, one target at a time.
package replace

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
	"github.com/walteh/fillswap/pkg/host"
	"github.com/walteh/fillswap/pkg/model"
	"gitlab.com/tozd/go/errors"
)

const (
	// MsgTargetMissing is the outcome error for an assignment whose target cannot be resolved.
	MsgTargetMissing = "target no longer exists"
	// MsgSourceMissing is the outcome error for an assignment whose file is not loaded.
	MsgSourceMissing = "source not found"
)

// DefaultImageCacheSize is the number of registered image handles kept per executor.
const DefaultImageCacheSize = 128

const (
	defaultScaleMode     = "FILL"
	defaultBlendMode     = "NORMAL"
	defaultScalingFactor = 0.5
)

// ProgressFunc receives a notification after every successful replacement.
type ProgressFunc func(model.Progress)

// 🔁 Executor replaces image fills through a host.Mutator. Calls to Execute must not overlap.
type Executor struct {
	host   host.Mutator
	images *lru.Cache[string, host.ImageHandle]
}

// Option configures an Executor.
type Option func(*options)

type options struct {
	cacheSize int
}

// WithImageCacheSize bounds how many registered image handles are remembered.
func WithImageCacheSize(n int) Option {
	return func(o *options) {
		o.cacheSize = n
	}
}

// 🏭 New creates an executor over m.
func New(m host.Mutator, opts ...Option) (*Executor, error) {
	o := options{cacheSize: DefaultImageCacheSize}
	for _, opt := range opts {
		opt(&o)
	}
	if m == nil {
		return nil, errors.New("host mutator is nil")
	}

	cache, err := lru.New[string, host.ImageHandle](o.cacheSize)
	if err != nil {
		return nil, errors.Errorf("creating image cache: %w", err)
	}
	return &Executor{host: m, images: cache}, nil
}

// ▶️ Execute applies assignments strictly in order and returns one outcome per assignment.
//
// A missing target, a missing source or a host failure produces an error outcome for that
// assignment and the batch moves on. onProgress, when set, is called after each successful
// replacement with a completed count that only counts successes. A batch that has started
// always runs to the end.
func (e *Executor) Execute(ctx context.Context, sources []model.SourceItem, assignments []model.Assignment, onProgress ProgressFunc) []model.MatchEntry {
	logger := zerolog.Ctx(ctx)

	byName := make(map[string]model.SourceItem, len(sources))
	for _, s := range sources {
		byName[s.Filename] = s
	}

	total := len(assignments)
	completed := 0
	outcomes := make([]model.MatchEntry, 0, total)

	for _, a := range assignments {
		outcome := e.apply(ctx, byName, a)
		outcomes = append(outcomes, outcome)

		if outcome.Status != model.StatusReplaced {
			logger.Warn().Str("layer", a.CandidateID).Str("file", a.Filename).Str("error", outcome.Error).Msg("replacement failed")
			continue
		}

		completed++
		logger.Debug().Str("layer", a.CandidateID).Str("file", a.Filename).Int("completed", completed).Int("total", total).Msg("replaced fill")
		if onProgress != nil {
			onProgress(model.Progress{Completed: completed, Total: total, Current: outcome.CandidateName})
		}
	}

	return outcomes
}

func (e *Executor) apply(ctx context.Context, sources map[string]model.SourceItem, a model.Assignment) model.MatchEntry {
	out := model.MatchEntry{
		CandidateID:   a.CandidateID,
		CandidateName: a.CandidateName,
		Filename:      a.Filename,
		Status:        model.StatusError,
	}

	target, ok := e.host.Lookup(ctx, a.CandidateID)
	if !ok || target == nil {
		out.Error = MsgTargetMissing
		return out
	}
	out.CandidateName = target.Name()

	src, ok := sources[a.Filename]
	if !ok {
		out.Error = MsgSourceMissing
		return out
	}

	handle, err := e.register(ctx, src.Bytes)
	if err != nil {
		out.Error = err.Error()
		return out
	}

	fills, err := e.host.GetFills(ctx, target)
	if err != nil {
		out.Error = err.Error()
		return out
	}

	if err := e.host.SetFills(ctx, target, ApplyImageFill(fills, handle)); err != nil {
		out.Error = err.Error()
		return out
	}

	out.Status = model.StatusReplaced
	return out
}

func (e *Executor) register(ctx context.Context, content []byte) (host.ImageHandle, error) {
	sum := sha256.Sum256(content)
	key := hex.EncodeToString(sum[:])

	if h, ok := e.images.Get(key); ok {
		return h, nil
	}

	h, err := e.host.RegisterImage(ctx, content)
	if err != nil {
		return host.ImageHandle{}, err
	}
	e.images.Add(key, h)
	return h, nil
}

// 🖌️ ApplyImageFill returns a new fill list carrying h.
//
// When fills holds an image fill, only the first one has its image reference swapped and
// every other property and every other fill is kept in place. Otherwise DefaultImageFill(h)
// is appended after the existing fills. fills itself is not modified.
func ApplyImageFill(fills []host.Paint, h host.ImageHandle) []host.Paint {
	out := make([]host.Paint, 0, len(fills)+1)
	replaced := false
	for _, f := range fills {
		f = f.Clone()
		if f.IsImage() && !replaced {
			f.ImageHash = h.Hash
			replaced = true
		}
		out = append(out, f)
	}
	if !replaced {
		out = append(out, DefaultImageFill(h))
	}
	return out
}

// DefaultImageFill is the fill appended to targets that have no image fill yet.
func DefaultImageFill(h host.ImageHandle) host.Paint {
	transform := host.IdentityTransform
	return host.Paint{
		Type:           host.PaintImage,
		Visible:        true,
		Opacity:        1,
		BlendMode:      defaultBlendMode,
		ImageHash:      h.Hash,
		ScaleMode:      defaultScaleMode,
		ImageTransform: &transform,
		ScalingFactor:  defaultScalingFactor,
	}
}
