package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/fillswap/pkg/model"
)

func sources(names ...string) []model.SourceItem {
	out := make([]model.SourceItem, 0, len(names))
	for _, n := range names {
		out = append(out, model.NewSourceItem(n, []byte(n)))
	}
	return out
}

func candidate(id, name string) model.CandidateItem {
	return model.NewCandidateItem(id, name, "RECTANGLE", false, "")
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeExact, m)

	m, err = ParseMode(" Fuzzy ")
	require.NoError(t, err)
	assert.Equal(t, ModeFuzzy, m)

	_, err = ParseMode("levenshtein")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown match mode")
}

func TestExactMatch(t *testing.T) {
	cands := []model.CandidateItem{candidate("1", "A"), candidate("2", "B")}

	pairs := NewExact().Match(sources("A.png", "B.png"), cands)

	assert.Equal(t, []Pair{{Filename: "A.png", CandidateID: "1"}, {Filename: "B.png", CandidateID: "2"}}, pairs)
}

func TestExactMatchIsCaseAndExtensionInsensitive(t *testing.T) {
	cands := []model.CandidateItem{candidate("1", "hero   IMAGE")}

	pairs := NewExact().Match(sources("Hero Image.JPG"), cands)

	require.Len(t, pairs, 1)
	assert.Equal(t, "1", pairs[0].CandidateID)
}

func TestExactMatchFirstCandidateWins(t *testing.T) {
	cands := []model.CandidateItem{candidate("1", "card"), candidate("2", "Card")}

	idx := NewExact().FindCandidate(model.NewSourceItem("card.png", nil), cands)

	assert.Equal(t, 0, idx)
}

func TestExactMatchDoesNotConsumeCandidates(t *testing.T) {
	cands := []model.CandidateItem{candidate("1", "card")}

	pairs := NewExact().Match(sources("card.png", "CARD.jpg"), cands)

	assert.Equal(t, []Pair{{Filename: "card.png", CandidateID: "1"}, {Filename: "CARD.jpg", CandidateID: "1"}}, pairs)
}

func TestNoMatchIsAbsent(t *testing.T) {
	pairs := NewExact().Match(sources("missing.png"), []model.CandidateItem{candidate("1", "other")})
	assert.Empty(t, pairs)

	assert.Empty(t, NewExact().MatchMap(sources("missing.png"), nil))
}

func TestExactDoesNotIgnoreSeparators(t *testing.T) {
	pairs := NewExact().Match(sources("card_hero.png"), []model.CandidateItem{candidate("1", "card hero")})
	assert.Empty(t, pairs)
}

func TestFuzzyMatch(t *testing.T) {
	tests := []struct {
		name   string
		opts   FuzzyOptions
		source string
		cands  []model.CandidateItem
		wantID string
	}{
		{
			name:   "ignore_separators",
			opts:   FuzzyOptions{IgnoreSeparators: true},
			source: "card_hero-01.png",
			cands:  []model.CandidateItem{candidate("1", "Card Hero 01")},
			wantID: "1",
		},
		{
			name:   "ignore_separators_drops_punctuation",
			opts:   FuzzyOptions{IgnoreSeparators: true},
			source: "Hero (final).png",
			cands:  []model.CandidateItem{candidate("1", "hero final")},
			wantID: "1",
		},
		{
			name:   "separators_respected_without_option",
			opts:   FuzzyOptions{},
			source: "card_hero.png",
			cands:  []model.CandidateItem{candidate("1", "card hero")},
			wantID: "",
		},
		{
			name:   "prefix_match",
			opts:   FuzzyOptions{PrefixMatch: true},
			source: "hero.png",
			cands:  []model.CandidateItem{candidate("1", "Hero Banner")},
			wantID: "1",
		},
		{
			name:   "prefix_is_candidate_starts_with_source",
			opts:   FuzzyOptions{PrefixMatch: true},
			source: "hero banner.png",
			cands:  []model.CandidateItem{candidate("1", "Hero")},
			wantID: "",
		},
		{
			name:   "prefix_scan_stops_at_first_hit",
			opts:   FuzzyOptions{PrefixMatch: true},
			source: "hero.png",
			cands:  []model.CandidateItem{candidate("1", "hero banner"), candidate("2", "hero")},
			wantID: "1",
		},
		{
			name:   "both_options",
			opts:   FuzzyOptions{IgnoreSeparators: true, PrefixMatch: true},
			source: "hero-card.png",
			cands:  []model.CandidateItem{candidate("1", "nope"), candidate("2", "Hero_Card_Large")},
			wantID: "2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewFuzzy(tt.opts).MatchMap(sources(tt.source), tt.cands)
			if tt.wantID == "" {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.wantID, got[tt.source])
		})
	}
}

func TestNewPicksMode(t *testing.T) {
	assert.Equal(t, ModeExact, New(ModeExact, FuzzyOptions{PrefixMatch: true}).Mode())
	assert.Equal(t, ModeFuzzy, New(ModeFuzzy, FuzzyOptions{}).Mode())
}
