// Package match pairs source files with candidate layers by normalized name.
package match

import (
	"strings"

	"github.com/walteh/fillswap/pkg/model"
	"github.com/walteh/fillswap/pkg/naming"
	"gitlab.com/tozd/go/errors"
)

// 🎚️ Mode selects exact or fuzzy comparison.
type Mode string

const (
	ModeExact Mode = "exact"
	ModeFuzzy Mode = "fuzzy"
)

// ParseMode parses a mode name, defaulting the empty string to exact.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeExact:
		return ModeExact, nil
	case ModeFuzzy:
		return ModeFuzzy, nil
	}
	return "", errors.Errorf("unknown match mode %q", s)
}

// 🌫️ FuzzyOptions tune fuzzy comparison.
type FuzzyOptions struct {
	IgnoreSeparators bool `json:"ignoreSeparators" yaml:"ignore_separators"`
	PrefixMatch      bool `json:"prefixMatch" yaml:"prefix_match"`
}

// 🔍 Matcher finds, for each source, the first candidate whose name corresponds to it.
// Candidates are never removed from the pool, so two sources can resolve to the same
// candidate here; deduplication belongs to the preview.
type Matcher struct {
	mode  Mode
	fuzzy FuzzyOptions
}

// NewExact returns a matcher comparing precomputed normalized names.
func NewExact() *Matcher {
	return &Matcher{mode: ModeExact}
}

// NewFuzzy returns a matcher using the given fuzzy options.
func NewFuzzy(opts FuzzyOptions) *Matcher {
	return &Matcher{mode: ModeFuzzy, fuzzy: opts}
}

// New returns a matcher for mode.
func New(mode Mode, opts FuzzyOptions) *Matcher {
	if mode == ModeFuzzy {
		return NewFuzzy(opts)
	}
	return NewExact()
}

// Mode returns the matcher's comparison mode.
func (m *Matcher) Mode() Mode {
	return m.mode
}

// Pair is one source→candidate correspondence.
type Pair struct {
	Filename    string
	CandidateID string
}

// 🎯 FindCandidate scans candidates in order and returns the index of the first one
// corresponding to source, or -1.
func (m *Matcher) FindCandidate(source model.SourceItem, candidates []model.CandidateItem) int {
	if m.mode == ModeFuzzy {
		return m.findFuzzy(source, candidates)
	}
	return findExact(source, candidates)
}

func findExact(source model.SourceItem, candidates []model.CandidateItem) int {
	want := source.NormalizedName
	if want == "" {
		want = naming.Normalize(source.Filename)
	}
	for i, c := range candidates {
		if c.NormalizedName == want {
			return i
		}
	}
	return -1
}

func (m *Matcher) findFuzzy(source model.SourceItem, candidates []model.CandidateItem) int {
	want := m.key(source.Filename, source.NormalizedName)
	for i, c := range candidates {
		got := m.key(c.Name, c.NormalizedName)
		if got == want {
			return i
		}
		if m.fuzzy.PrefixMatch && strings.HasPrefix(got, want) {
			return i
		}
	}
	return -1
}

// key returns the comparison key for a raw name, reusing the precomputed base form when possible.
func (m *Matcher) key(raw, normalized string) string {
	if m.fuzzy.IgnoreSeparators {
		return naming.NormalizeFuzzy(raw)
	}
	if normalized != "" {
		return normalized
	}
	return naming.Normalize(raw)
}

// 🗺️ Match returns source→candidate pairs in source order. Sources with no
// corresponding candidate are absent from the result.
func (m *Matcher) Match(sources []model.SourceItem, candidates []model.CandidateItem) []Pair {
	pairs := make([]Pair, 0, len(sources))
	for _, s := range sources {
		if idx := m.FindCandidate(s, candidates); idx >= 0 {
			pairs = append(pairs, Pair{Filename: s.Filename, CandidateID: candidates[idx].ID})
		}
	}
	return pairs
}

// MatchMap is Match keyed by filename. A filename repeated in sources keeps its first pairing.
func (m *Matcher) MatchMap(sources []model.SourceItem, candidates []model.CandidateItem) map[string]string {
	out := make(map[string]string, len(sources))
	for _, p := range m.Match(sources, candidates) {
		if _, ok := out[p.Filename]; !ok {
			out[p.Filename] = p.CandidateID
		}
	}
	return out
}
