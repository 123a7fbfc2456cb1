package host

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/walteh/fillswap/pkg/model"
	"gitlab.com/tozd/go/errors"
)

// 🔧 MockTraverser is a mock implementation of Traverser
type MockTraverser struct {
	mock.Mock
}

func (m *MockTraverser) ListSelected(ctx context.Context) ([]model.CandidateItem, error) {
	args := m.Called(ctx)
	return args.Get(0).([]model.CandidateItem), args.Error(1)
}

func (m *MockTraverser) ListPage(ctx context.Context) ([]model.CandidateItem, error) {
	args := m.Called(ctx)
	return args.Get(0).([]model.CandidateItem), args.Error(1)
}

func (m *MockTraverser) ListDocument(ctx context.Context) ([]model.CandidateItem, error) {
	args := m.Called(ctx)
	return args.Get(0).([]model.CandidateItem), args.Error(1)
}

func TestListDispatchesByScope(t *testing.T) {
	ctx := context.Background()
	sel := []model.CandidateItem{model.NewCandidateItem("1", "a", "FRAME", false, "")}
	page := []model.CandidateItem{model.NewCandidateItem("2", "b", "FRAME", false, "")}
	doc := []model.CandidateItem{model.NewCandidateItem("3", "c", "FRAME", false, "")}

	tr := new(MockTraverser)
	tr.On("ListSelected", ctx).Return(sel, nil)
	tr.On("ListPage", ctx).Return(page, nil)
	tr.On("ListDocument", ctx).Return(doc, nil)

	got, err := List(ctx, tr, model.ScopeSelection)
	require.NoError(t, err)
	assert.Equal(t, sel, got)

	got, err = List(ctx, tr, "")
	require.NoError(t, err)
	assert.Equal(t, sel, got)

	got, err = List(ctx, tr, model.ScopePage)
	require.NoError(t, err)
	assert.Equal(t, page, got)

	got, err = List(ctx, tr, model.ScopeDocument)
	require.NoError(t, err)
	assert.Equal(t, doc, got)

	tr.AssertExpectations(t)
}

func TestListUnknownScope(t *testing.T) {
	_, err := List(context.Background(), new(MockTraverser), model.Scope("galaxy"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown scope")
}

func TestListWrapsTraversalError(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("page failed to load")

	tr := new(MockTraverser)
	tr.On("ListDocument", ctx).Return([]model.CandidateItem(nil), boom)

	_, err := List(ctx, tr, model.ScopeDocument)
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "listing document candidates")
}

func TestSnapshot(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	tr := new(MockTraverser)
	tr.On("ListSelected", ctx).Return([]model.CandidateItem(nil), nil)

	set, err := Snapshot(ctx, tr, "", now)
	require.NoError(t, err)
	assert.Equal(t, model.ScopeSelection, set.Scope)
	assert.Equal(t, now, set.CapturedAt)
	assert.NotNil(t, set.Items)
	assert.Empty(t, set.Items)
}

func TestHasImage(t *testing.T) {
	assert.False(t, HasImage(nil))
	assert.False(t, HasImage([]Paint{{Type: PaintSolid}}))
	assert.True(t, HasImage([]Paint{{Type: PaintSolid}, {Type: PaintImage}}))
}

func TestClonePaintsDoesNotShareColorOrTransform(t *testing.T) {
	transform := IdentityTransform
	fills := []Paint{
		{Type: PaintSolid, Color: &Color{R: 1}},
		{Type: PaintImage, ImageHash: "h", ImageTransform: &transform},
	}

	got := ClonePaints(fills)
	require.Equal(t, fills, got)

	got[0].Color.R = 0
	got[1].ImageTransform[0][0] = 9

	assert.Equal(t, 1.0, fills[0].Color.R)
	assert.Equal(t, 1.0, fills[1].ImageTransform[0][0])
	assert.Nil(t, ClonePaints(nil))
}
