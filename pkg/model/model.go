// Package model holds the value types shared by the matching, preview, assignment and replacement stages.
package model

import (
	"time"

	"github.com/walteh/fillswap/pkg/naming"
)

// 📄 SourceItem is a loaded image file. It is never mutated after construction.
type SourceItem struct {
	Filename       string `json:"filename"`
	NormalizedName string `json:"normalizedName"`
	Bytes          []byte `json:"bytes"`
	Size           int64  `json:"size"`
}

// NewSourceItem builds a SourceItem with its normalized name precomputed.
func NewSourceItem(filename string, content []byte) SourceItem {
	return SourceItem{
		Filename:       filename,
		NormalizedName: naming.Normalize(filename),
		Bytes:          content,
		Size:           int64(len(content)),
	}
}

// 🧱 CandidateItem is a layer able to hold a fill, as seen at traversal time.
type CandidateItem struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	NormalizedName string `json:"normalizedName"`
	Type           string `json:"type"`
	HasImageFill   bool   `json:"hasImageFill"`
	ParentPath     string `json:"parentPath"`
}

// NewCandidateItem builds a CandidateItem with its normalized name precomputed.
func NewCandidateItem(id, name, nodeType string, hasImageFill bool, parentPath string) CandidateItem {
	return CandidateItem{
		ID:             id,
		Name:           name,
		NormalizedName: naming.Normalize(name),
		Type:           nodeType,
		HasImageFill:   hasImageFill,
		ParentPath:     parentPath,
	}
}

// 📊 Status is the lifecycle state of a MatchEntry.
type Status string

const (
	StatusPending  Status = "pending"
	StatusMatched  Status = "matched"
	StatusReplaced Status = "replaced"
	StatusError    Status = "error"
)

// 🔗 MatchEntry pairs a candidate with a file. Matched entries come out of a preview,
// replaced and error entries out of an execution.
type MatchEntry struct {
	CandidateID   string `json:"layerId"`
	CandidateName string `json:"layerName"`
	Filename      string `json:"filename"`
	Status        Status `json:"status"`
	Error         string `json:"error,omitempty"`
}

// 📝 Assignment is a user-confirmed intent to put Filename on CandidateID.
// An empty Filename means the candidate is left alone.
type Assignment struct {
	CandidateID   string `json:"layerId"`
	CandidateName string `json:"layerName"`
	Filename      string `json:"filename"`
}

// 👀 PreviewResult summarizes one matching pass for display before anything is changed.
type PreviewResult struct {
	Matches             []MatchEntry    `json:"matches"`
	UnmatchedFiles      []string        `json:"unmatchedFiles"`
	UnmatchedCandidates []CandidateItem `json:"unmatchedLayers"`
	TotalCandidates     int             `json:"totalLayers"`
	TotalSources        int             `json:"totalFiles"`
}

// 🎯 Scope selects which part of the document is traversed for candidates.
type Scope string

const (
	ScopeSelection Scope = "selection"
	ScopePage      Scope = "page"
	ScopeDocument  Scope = "document"
)

// Valid reports whether s is one of the known scopes.
func (s Scope) Valid() bool {
	switch s {
	case ScopeSelection, ScopePage, ScopeDocument:
		return true
	}
	return false
}

// 📸 CandidateSet is a traversal snapshot passed explicitly to every preview and execute call.
type CandidateSet struct {
	Scope      Scope           `json:"scope"`
	Items      []CandidateItem `json:"items"`
	CapturedAt time.Time       `json:"capturedAt"`
}

// Stale reports whether the snapshot was captured more than maxAge before now.
// A zero maxAge never goes stale; a zero CapturedAt is always stale.
func (c CandidateSet) Stale(now time.Time, maxAge time.Duration) bool {
	if c.CapturedAt.IsZero() {
		return true
	}
	if maxAge <= 0 {
		return false
	}
	return now.Sub(c.CapturedAt) > maxAge
}

// ⏳ Progress is emitted after each successful replacement.
type Progress struct {
	Completed int    `json:"completed"`
	Total     int    `json:"total"`
	Current   string `json:"current"`
}

// Summary counts outcomes by status.
type Summary struct {
	Total    int `json:"total"`
	Replaced int `json:"replaced"`
	Errored  int `json:"errored"`
}

// Summarize derives replaced/error counts from execution outcomes.
func Summarize(outcomes []MatchEntry) Summary {
	s := Summary{Total: len(outcomes)}
	for _, o := range outcomes {
		switch o.Status {
		case StatusReplaced:
			s.Replaced++
		case StatusError:
			s.Errored++
		}
	}
	return s
}
