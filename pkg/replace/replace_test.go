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

package replace

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/walteh/fillswap/pkg/host"
	"github.com/walteh/fillswap/pkg/host/memdoc"
	"github.com/walteh/fillswap/pkg/model"
	"gitlab.com/tozd/go/errors"
)

// 🔧 MockMutator is a mock implementation of host.Mutator
type MockMutator struct {
	mock.Mock
}

func (m *MockMutator) Lookup(ctx context.Context, id string) (host.Target, bool) {
	args := m.Called(ctx, id)
	t, _ := args.Get(0).(host.Target)
	return t, args.Bool(1)
}

func (m *MockMutator) RegisterImage(ctx context.Context, content []byte) (host.ImageHandle, error) {
	args := m.Called(ctx, content)
	return args.Get(0).(host.ImageHandle), args.Error(1)
}

func (m *MockMutator) GetFills(ctx context.Context, target host.Target) ([]host.Paint, error) {
	args := m.Called(ctx, target)
	fills, _ := args.Get(0).([]host.Paint)
	return fills, args.Error(1)
}

func (m *MockMutator) SetFills(ctx context.Context, target host.Target, fills []host.Paint) error {
	args := m.Called(ctx, target, fills)
	return args.Error(0)
}

type fakeTarget struct {
	id, name string
}

func (f fakeTarget) ID() string   { return f.id }
func (f fakeTarget) Name() string { return f.name }

func testContext(t *testing.T) context.Context {
	logger := zerolog.New(zerolog.NewTestWriter(t)).Level(zerolog.DebugLevel)
	return logger.WithContext(context.Background())
}

func pngBytes(t *testing.T, w int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, w, 1))))
	return buf.Bytes()
}

func solid() host.Paint {
	return host.Paint{Type: host.PaintSolid, Visible: true, Opacity: 1, Color: &host.Color{R: 1}}
}

func TestApplyImageFillReplacesOnlyFirstImage(t *testing.T) {
	old := host.Paint{Type: host.PaintImage, Visible: true, Opacity: 0.4, BlendMode: "MULTIPLY", ImageHash: "old", ScaleMode: "TILE", ScalingFactor: 2}
	second := host.Paint{Type: host.PaintImage, ImageHash: "second", Visible: true, Opacity: 1}
	fills := []host.Paint{solid(), old, solid(), second}

	got := ApplyImageFill(fills, host.ImageHandle{Hash: "new"})

	want := old
	want.ImageHash = "new"
	assert.Equal(t, []host.Paint{solid(), want, solid(), second}, got)
	assert.Equal(t, "old", fills[1].ImageHash, "input must not be modified")
}

func TestApplyImageFillDoesNotAliasInput(t *testing.T) {
	transform := host.IdentityTransform
	fills := []host.Paint{{Type: host.PaintImage, ImageHash: "old", ImageTransform: &transform}}

	got := ApplyImageFill(fills, host.ImageHandle{Hash: "new"})
	got[0].ImageTransform[0][0] = 3

	assert.Equal(t, host.IdentityTransform, *fills[0].ImageTransform)
}

func TestApplyImageFillSolidImageSolid(t *testing.T) {
	fills := []host.Paint{solid(), {Type: host.PaintImage, ImageHash: "old"}, solid()}

	got := ApplyImageFill(fills, host.ImageHandle{Hash: "new"})

	require.Len(t, got, 3)
	assert.Equal(t, host.PaintSolid, got[0].Type)
	assert.Equal(t, "new", got[1].ImageHash)
	assert.Equal(t, host.PaintSolid, got[2].Type)
}

func TestApplyImageFillAppendsDefault(t *testing.T) {
	gradient := host.Paint{Type: host.PaintGradientLinear, Visible: true, Opacity: 0.5}
	fills := []host.Paint{solid(), gradient}

	got := ApplyImageFill(fills, host.ImageHandle{Hash: "new"})

	require.Len(t, got, 3)
	assert.Equal(t, fills, got[:2])
	added := got[2]
	assert.Equal(t, host.PaintImage, added.Type)
	assert.Equal(t, "new", added.ImageHash)
	assert.True(t, added.Visible)
	assert.Equal(t, 1.0, added.Opacity)
	assert.Equal(t, "NORMAL", added.BlendMode)
	assert.Equal(t, "FILL", added.ScaleMode)
	assert.Equal(t, 0.5, added.ScalingFactor)
	require.NotNil(t, added.ImageTransform)
	assert.Equal(t, host.IdentityTransform, *added.ImageTransform)
}

func TestApplyImageFillEmpty(t *testing.T) {
	got := ApplyImageFill(nil, host.ImageHandle{Hash: "h"})
	assert.Equal(t, []host.Paint{DefaultImageFill(host.ImageHandle{Hash: "h"})}, got)
}

func TestExecuteDeletedTargetDoesNotAbortBatch(t *testing.T) {
	ctx := testContext(t)
	m := new(MockMutator)
	live := fakeTarget{id: "2", name: "Live Name"}

	m.On("Lookup", ctx, "1").Return(nil, false)
	m.On("Lookup", ctx, "2").Return(live, true)
	m.On("RegisterImage", ctx, []byte("b")).Return(host.ImageHandle{Hash: "hb"}, nil)
	m.On("GetFills", ctx, live).Return([]host.Paint{}, nil)
	m.On("SetFills", ctx, live, []host.Paint{DefaultImageFill(host.ImageHandle{Hash: "hb"})}).Return(nil)

	e, err := New(m)
	require.NoError(t, err)

	outcomes := e.Execute(ctx,
		[]model.SourceItem{model.NewSourceItem("a.png", []byte("a")), model.NewSourceItem("b.png", []byte("b"))},
		[]model.Assignment{
			{CandidateID: "1", CandidateName: "Gone", Filename: "a.png"},
			{CandidateID: "2", CandidateName: "Stale Name", Filename: "b.png"},
		},
		nil,
	)

	require.Len(t, outcomes, 2)
	assert.Equal(t, model.MatchEntry{CandidateID: "1", CandidateName: "Gone", Filename: "a.png", Status: model.StatusError, Error: MsgTargetMissing}, outcomes[0])
	assert.Equal(t, model.MatchEntry{CandidateID: "2", CandidateName: "Live Name", Filename: "b.png", Status: model.StatusReplaced}, outcomes[1])
	m.AssertExpectations(t)
}

func TestExecutePerItemErrors(t *testing.T) {
	ctx := testContext(t)
	m := new(MockMutator)
	tgt := fakeTarget{id: "1", name: "Layer"}

	m.On("Lookup", ctx, "1").Return(tgt, true)
	m.On("RegisterImage", ctx, []byte("bad")).Return(host.ImageHandle{}, errors.New("unsupported image"))
	m.On("RegisterImage", ctx, []byte("mixed")).Return(host.ImageHandle{Hash: "m"}, nil)
	m.On("RegisterImage", ctx, []byte("locked")).Return(host.ImageHandle{Hash: "l"}, nil)
	m.On("GetFills", ctx, tgt).Return(nil, host.ErrMixedFills).Once()
	m.On("GetFills", ctx, tgt).Return([]host.Paint{}, nil).Once()
	m.On("SetFills", ctx, tgt, mock.Anything).Return(errors.New("node is locked")).Once()

	e, err := New(m)
	require.NoError(t, err)

	var progress []model.Progress
	outcomes := e.Execute(ctx,
		[]model.SourceItem{
			model.NewSourceItem("bad.png", []byte("bad")),
			model.NewSourceItem("mixed.png", []byte("mixed")),
			model.NewSourceItem("locked.png", []byte("locked")),
		},
		[]model.Assignment{
			{CandidateID: "1", Filename: "missing.png"},
			{CandidateID: "1", Filename: "bad.png"},
			{CandidateID: "1", Filename: "mixed.png"},
			{CandidateID: "1", Filename: "locked.png"},
		},
		func(p model.Progress) { progress = append(progress, p) },
	)

	require.Len(t, outcomes, 4)
	for _, o := range outcomes {
		assert.Equal(t, model.StatusError, o.Status)
		assert.Equal(t, "Layer", o.CandidateName)
	}
	assert.Equal(t, MsgSourceMissing, outcomes[0].Error)
	assert.Equal(t, "unsupported image", outcomes[1].Error)
	assert.Contains(t, outcomes[2].Error, "mixed fills")
	assert.Equal(t, "node is locked", outcomes[3].Error)
	assert.Empty(t, progress)
	m.AssertExpectations(t)
}

func TestExecuteRegistersRepeatedContentOnce(t *testing.T) {
	ctx := testContext(t)
	m := new(MockMutator)
	a := fakeTarget{id: "a", name: "A"}
	b := fakeTarget{id: "b", name: "B"}

	m.On("Lookup", ctx, "a").Return(a, true)
	m.On("Lookup", ctx, "b").Return(b, true)
	m.On("RegisterImage", ctx, []byte("same")).Return(host.ImageHandle{Hash: "s"}, nil).Once()
	m.On("GetFills", ctx, mock.Anything).Return([]host.Paint{}, nil)
	m.On("SetFills", ctx, mock.Anything, mock.Anything).Return(nil)

	e, err := New(m, WithImageCacheSize(4))
	require.NoError(t, err)

	outcomes := e.Execute(ctx,
		[]model.SourceItem{model.NewSourceItem("x.png", []byte("same")), model.NewSourceItem("y.png", []byte("same"))},
		[]model.Assignment{{CandidateID: "a", Filename: "x.png"}, {CandidateID: "b", Filename: "y.png"}, {CandidateID: "a", Filename: "x.png"}},
		nil,
	)

	require.Len(t, outcomes, 3)
	assert.Equal(t, model.Summary{Total: 3, Replaced: 3}, model.Summarize(outcomes))
	m.AssertNumberOfCalls(t, "RegisterImage", 1)
}

func TestNewRejectsBadOptions(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)

	_, err = New(new(MockMutator), WithImageCacheSize(0))
	require.Error(t, err)
}

const doc = `
pages:
  - id: p
    name: Page
    children:
      - {id: "1", name: one, type: RECTANGLE}
      - {id: "2", name: two, type: RECTANGLE, fills: [{type: SOLID, visible: true, opacity: 1}, {type: IMAGE, visible: true, opacity: 0.3, image_hash: old, scale_mode: CROP}, {type: SOLID, visible: false, opacity: 1}]}
      - {id: "3", name: three, type: ELLIPSE}
      - {id: "4", name: four, type: GROUP}
`

func openDoc(t *testing.T) *memdoc.Document {
	t.Helper()
	d, err := memdoc.Parse([]byte(doc), memdoc.FormatYAML, memdoc.Options{})
	require.NoError(t, err)
	return d
}

func TestExecuteProgressAgainstDocument(t *testing.T) {
	ctx := testContext(t)
	d := openDoc(t)

	e, err := New(d)
	require.NoError(t, err)

	sources := []model.SourceItem{
		model.NewSourceItem("one.png", pngBytes(t, 1)),
		model.NewSourceItem("two.png", pngBytes(t, 2)),
		model.NewSourceItem("three.png", pngBytes(t, 3)),
	}
	assignments := []model.Assignment{
		{CandidateID: "1", Filename: "one.png"},
		{CandidateID: "2", Filename: "two.png"},
		{CandidateID: "3", Filename: "three.png"},
	}

	var progress []model.Progress
	outcomes := e.Execute(ctx, sources, assignments, func(p model.Progress) { progress = append(progress, p) })

	assert.Equal(t, model.Summary{Total: 3, Replaced: 3}, model.Summarize(outcomes))
	assert.Equal(t, []model.Progress{
		{Completed: 1, Total: 3, Current: "one"},
		{Completed: 2, Total: 3, Current: "two"},
		{Completed: 3, Total: 3, Current: "three"},
	}, progress)

	two, ok := d.Lookup(ctx, "2")
	require.True(t, ok)
	fills, err := d.GetFills(ctx, two)
	require.NoError(t, err)
	require.Len(t, fills, 3)
	assert.Equal(t, host.PaintSolid, fills[0].Type)
	assert.Equal(t, host.PaintSolid, fills[2].Type)
	assert.False(t, fills[2].Visible)
	assert.Equal(t, 0.3, fills[1].Opacity)
	assert.Equal(t, "CROP", fills[1].ScaleMode)
	assert.NotEqual(t, "old", fills[1].ImageHash)
	_, stored := d.Image(fills[1].ImageHash)
	assert.True(t, stored)

	one, _ := d.Lookup(ctx, "1")
	fills, err = d.GetFills(ctx, one)
	require.NoError(t, err)
	require.Len(t, fills, 1)
	assert.Equal(t, "FILL", fills[0].ScaleMode)
}

func TestExecuteProgressSkipsFailures(t *testing.T) {
	ctx := testContext(t)
	d := openDoc(t)
	require.True(t, d.Remove("1"))

	e, err := New(d)
	require.NoError(t, err)

	var progress []model.Progress
	outcomes := e.Execute(ctx,
		[]model.SourceItem{model.NewSourceItem("ok.png", pngBytes(t, 1)), model.NewSourceItem("junk.png", []byte("junk"))},
		[]model.Assignment{
			{CandidateID: "1", CandidateName: "one", Filename: "ok.png"},
			{CandidateID: "2", Filename: "junk.png"},
			{CandidateID: "4", Filename: "ok.png"},
			{CandidateID: "3", Filename: "ok.png"},
		},
		func(p model.Progress) { progress = append(progress, p) },
	)

	require.Len(t, outcomes, 4)
	assert.Equal(t, MsgTargetMissing, outcomes[0].Error)
	assert.Contains(t, outcomes[1].Error, "decoding image")
	assert.Contains(t, outcomes[2].Error, "cannot hold fills")
	assert.Equal(t, model.StatusReplaced, outcomes[3].Status)
	assert.Equal(t, []model.Progress{{Completed: 1, Total: 4, Current: "three"}}, progress)
}
