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

// Package host describes the document editor the engine runs against: scene traversal
// for candidates and the small mutation surface used to replace fills.
package host

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/walteh/fillswap/pkg/model"
	"gitlab.com/tozd/go/errors"
)

// ErrMixedFills is returned by GetFills when a node's fills cannot be read as one list.
var ErrMixedFills = errors.New("node has mixed fills")

// 🎨 PaintType is the kind of a fill.
type PaintType string

const (
	PaintSolid           PaintType = "SOLID"
	PaintImage           PaintType = "IMAGE"
	PaintVideo           PaintType = "VIDEO"
	PaintGradientLinear  PaintType = "GRADIENT_LINEAR"
	PaintGradientRadial  PaintType = "GRADIENT_RADIAL"
	PaintGradientAngular PaintType = "GRADIENT_ANGULAR"
	PaintGradientDiamond PaintType = "GRADIENT_DIAMOND"
)

// Color is an RGBA color with components in [0,1].
type Color struct {
	R float64 `json:"r" yaml:"r"`
	G float64 `json:"g" yaml:"g"`
	B float64 `json:"b" yaml:"b"`
	A float64 `json:"a,omitempty" yaml:"a,omitempty"`
}

// Transform is a 2x3 affine matrix.
type Transform [2][3]float64

// IdentityTransform leaves an image untouched.
var IdentityTransform = Transform{{1, 0, 0}, {0, 1, 0}}

// 🖌️ Paint is one entry of a node's fill list. Fields that do not apply to Type stay zero.
type Paint struct {
	Type           PaintType  `json:"type" yaml:"type"`
	Visible        bool       `json:"visible" yaml:"visible"`
	Opacity        float64    `json:"opacity" yaml:"opacity"`
	BlendMode      string     `json:"blendMode,omitempty" yaml:"blend_mode,omitempty"`
	Color          *Color     `json:"color,omitempty" yaml:"color,omitempty"`
	ImageHash      string     `json:"imageHash,omitempty" yaml:"image_hash,omitempty"`
	ScaleMode      string     `json:"scaleMode,omitempty" yaml:"scale_mode,omitempty"`
	ImageTransform *Transform `json:"imageTransform,omitempty" yaml:"image_transform,omitempty"`
	ScalingFactor  float64    `json:"scalingFactor,omitempty" yaml:"scaling_factor,omitempty"`
}

// IsImage reports whether p is an image fill.
func (p Paint) IsImage() bool {
	return p.Type == PaintImage
}

// HasImage reports whether any paint in fills is an image fill.
func HasImage(fills []Paint) bool {
	for _, f := range fills {
		if f.IsImage() {
			return true
		}
	}
	return false
}

// Clone returns p with its color and transform copied.
func (p Paint) Clone() Paint {
	if p.Color != nil {
		c := *p.Color
		p.Color = &c
	}
	if p.ImageTransform != nil {
		t := *p.ImageTransform
		p.ImageTransform = &t
	}
	return p
}

// ClonePaints deep-copies a fill list. A nil list stays nil.
func ClonePaints(fills []Paint) []Paint {
	if fills == nil {
		return nil
	}
	out := make([]Paint, len(fills))
	for i, f := range fills {
		out[i] = f.Clone()
	}
	return out
}

// ImageHandle is the host's reference to a registered image.
type ImageHandle struct {
	Hash string `json:"hash"`
}

// 🎯 Target is a live node resolved by id. It is only valid until the document changes.
type Target interface {
	ID() string
	Name() string
}

// 🌳 Traverser lists fill-capable nodes. Each item carries whether it already holds an
// image fill and its ancestor names joined by " > ".
type Traverser interface {
	ListSelected(ctx context.Context) ([]model.CandidateItem, error)
	ListPage(ctx context.Context) ([]model.CandidateItem, error)
	// ListDocument may load pages before scanning them.
	ListDocument(ctx context.Context) ([]model.CandidateItem, error)
}

// ✏️ Mutator is the only way the engine changes a document. Calls are never made concurrently.
type Mutator interface {
	Lookup(ctx context.Context, id string) (Target, bool)
	RegisterImage(ctx context.Context, content []byte) (ImageHandle, error)
	GetFills(ctx context.Context, target Target) ([]Paint, error)
	SetFills(ctx context.Context, target Target, fills []Paint) error
}

// Document is a host that can both be traversed and mutated.
type Document interface {
	Traverser
	Mutator
}

// List runs the traversal matching scope.
func List(ctx context.Context, t Traverser, scope model.Scope) ([]model.CandidateItem, error) {
	var (
		items []model.CandidateItem
		err   error
	)

	switch scope {
	case model.ScopeSelection, "":
		items, err = t.ListSelected(ctx)
	case model.ScopePage:
		items, err = t.ListPage(ctx)
	case model.ScopeDocument:
		items, err = t.ListDocument(ctx)
	default:
		return nil, errors.Errorf("unknown scope %q", scope)
	}
	if err != nil {
		return nil, errors.Errorf("listing %s candidates: %w", scope, err)
	}

	zerolog.Ctx(ctx).Debug().Str("scope", string(scope)).Int("count", len(items)).Msg("listed candidates")
	return items, nil
}

// 📸 Snapshot lists scope and stamps the result with now.
func Snapshot(ctx context.Context, t Traverser, scope model.Scope, now time.Time) (model.CandidateSet, error) {
	if scope == "" {
		scope = model.ScopeSelection
	}
	items, err := List(ctx, t, scope)
	if err != nil {
		return model.CandidateSet{}, err
	}
	if items == nil {
		items = []model.CandidateItem{}
	}
	return model.CandidateSet{Scope: scope, Items: items, CapturedAt: now}, nil
}
