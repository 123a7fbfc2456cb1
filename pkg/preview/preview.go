// Package preview derives a display summary of matched and unmatched items from one matching pass.
package preview

import (
	"github.com/walteh/fillswap/pkg/match"
	"github.com/walteh/fillswap/pkg/model"
)

// 👀 Build computes a preview with the exact matcher.
func Build(sources []model.SourceItem, candidates []model.CandidateItem) model.PreviewResult {
	return BuildWith(match.NewExact(), sources, candidates)
}

// BuildWith computes a preview using m.
//
// Sources are visited in order and each is matched against the full candidate list.
// The first source to reach a candidate claims it; a later source whose first match
// is an already-claimed candidate is reported as unmatched. A filename repeated in
// sources is only considered once.
func BuildWith(m *match.Matcher, sources []model.SourceItem, candidates []model.CandidateItem) model.PreviewResult {
	res := model.PreviewResult{
		Matches:             []model.MatchEntry{},
		UnmatchedFiles:      []string{},
		UnmatchedCandidates: []model.CandidateItem{},
		TotalCandidates:     len(candidates),
		TotalSources:        len(sources),
	}

	claimedCandidates := make(map[string]struct{}, len(candidates))
	seenFiles := make(map[string]struct{}, len(sources))

	for _, s := range sources {
		if _, dup := seenFiles[s.Filename]; dup {
			continue
		}
		seenFiles[s.Filename] = struct{}{}

		idx := m.FindCandidate(s, candidates)
		if idx < 0 {
			res.UnmatchedFiles = append(res.UnmatchedFiles, s.Filename)
			continue
		}

		c := candidates[idx]
		if _, taken := claimedCandidates[c.ID]; taken {
			res.UnmatchedFiles = append(res.UnmatchedFiles, s.Filename)
			continue
		}
		claimedCandidates[c.ID] = struct{}{}

		res.Matches = append(res.Matches, model.MatchEntry{
			CandidateID:   c.ID,
			CandidateName: c.Name,
			Filename:      s.Filename,
			Status:        model.StatusMatched,
		})
	}

	for _, c := range candidates {
		if _, taken := claimedCandidates[c.ID]; taken || !c.HasImageFill {
			continue
		}
		res.UnmatchedCandidates = append(res.UnmatchedCandidates, c)
	}

	return res
}
