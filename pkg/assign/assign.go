// Package assign validates user-confirmed assignments against the known candidates and loaded sources.
package assign

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/walteh/fillswap/pkg/model"
	"gitlab.com/tozd/go/errors"
)

// ErrNothingToApply is returned when no assignment survives resolution.
var ErrNothingToApply = errors.New("nothing to apply")

// 🚫 Reason explains why an assignment was dropped.
type Reason string

const (
	ReasonUnassigned       Reason = "unassigned"
	ReasonUnknownCandidate Reason = "unknown candidate"
	ReasonUnknownSource    Reason = "unknown source"
)

// Dropped is an assignment that did not survive resolution.
type Dropped struct {
	Assignment model.Assignment `json:"assignment"`
	Reason     Reason           `json:"reason"`
}

// 📋 Resolution is the outcome of Resolve.
type Resolution struct {
	Valid   []model.Assignment `json:"valid"`
	Dropped []Dropped          `json:"dropped"`
}

// ✅ Resolve keeps, in order, every proposed assignment that names a known candidate
// and a loaded source. Empty filenames are dropped as unassigned. The same filename
// may be assigned to several candidates.
//
// When nothing survives, the returned Resolution is still populated and the error is
// ErrNothingToApply.
func Resolve(ctx context.Context, proposed []model.Assignment, candidates []model.CandidateItem, sources []model.SourceItem) (Resolution, error) {
	knownCandidates := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		knownCandidates[c.ID] = struct{}{}
	}
	knownSources := make(map[string]struct{}, len(sources))
	for _, s := range sources {
		knownSources[s.Filename] = struct{}{}
	}

	res := Resolution{
		Valid:   make([]model.Assignment, 0, len(proposed)),
		Dropped: []Dropped{},
	}

	for _, a := range proposed {
		var reason Reason
		switch {
		case a.Filename == "":
			reason = ReasonUnassigned
		case !has(knownCandidates, a.CandidateID):
			reason = ReasonUnknownCandidate
		case !has(knownSources, a.Filename):
			reason = ReasonUnknownSource
		}

		if reason != "" {
			res.Dropped = append(res.Dropped, Dropped{Assignment: a, Reason: reason})
			continue
		}
		res.Valid = append(res.Valid, a)
	}

	zerolog.Ctx(ctx).Debug().
		Int("proposed", len(proposed)).
		Int("valid", len(res.Valid)).
		Int("dropped", len(res.Dropped)).
		Msg("resolved assignments")

	if len(res.Valid) == 0 {
		return res, ErrNothingToApply
	}
	return res, nil
}

func has(set map[string]struct{}, key string) bool {
	_, ok := set[key]
	return ok
}

// FromPreview turns the matched entries of a preview into assignments, in order.
func FromPreview(p model.PreviewResult) []model.Assignment {
	out := make([]model.Assignment, 0, len(p.Matches))
	for _, m := range p.Matches {
		if m.Status != model.StatusMatched {
			continue
		}
		out = append(out, model.Assignment{
			CandidateID:   m.CandidateID,
			CandidateName: m.CandidateName,
			Filename:      m.Filename,
		})
	}
	return out
}
