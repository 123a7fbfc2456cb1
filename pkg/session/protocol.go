package session

import (
	"github.com/walteh/fillswap/pkg/assign"
	"github.com/walteh/fillswap/pkg/model"
)

// 📨 RequestType names a request sent from the UI to the engine.
type RequestType string

const (
	RequestGetCandidates      RequestType = "get-candidates"
	RequestPreviewMatches     RequestType = "preview-matches"
	RequestExecuteReplacement RequestType = "execute-replacement"
	RequestReset              RequestType = "reset"
	RequestCancel             RequestType = "cancel"
)

// 📬 ResponseType names a message sent from the engine to the UI.
type ResponseType string

const (
	ResponseCandidatesFound     ResponseType = "candidates-found"
	ResponseMatchPreview        ResponseType = "match-preview"
	ResponseReplacementProgress ResponseType = "replacement-progress"
	ResponseReplacementComplete ResponseType = "replacement-complete"
	ResponseResetComplete       ResponseType = "reset-complete"
	ResponseCancelled           ResponseType = "cancelled"
	ResponseError               ResponseType = "error"
)

// File is an uploaded image. Bytes travel base64 encoded in JSON.
type File struct {
	Filename string `json:"filename"`
	Bytes    []byte `json:"bytes"`
}

// Request is one message from the UI.
type Request struct {
	ID          string              `json:"id,omitempty"`
	Type        RequestType         `json:"type"`
	Scope       model.Scope         `json:"scope,omitempty"`
	Files       []File              `json:"files,omitempty"`
	Candidates  *model.CandidateSet `json:"candidates,omitempty"`
	Assignments []model.Assignment  `json:"assignments,omitempty"`
}

// Response is one message to the UI. Only the fields relevant to Type are set.
type Response struct {
	ID         string               `json:"id"`
	Type       ResponseType         `json:"type"`
	State      State                `json:"state"`
	Candidates *model.CandidateSet  `json:"candidates,omitempty"`
	Preview    *model.PreviewResult `json:"preview,omitempty"`
	Progress   *model.Progress      `json:"progress,omitempty"`
	Results    []model.MatchEntry   `json:"results,omitempty"`
	Summary    *model.Summary       `json:"summary,omitempty"`
	Dropped    []assign.Dropped     `json:"dropped,omitempty"`
	NoOp       bool                 `json:"noop,omitempty"`
	Message    string               `json:"message,omitempty"`
}

// Terminal reports whether r ends the request it answers.
func (r Response) Terminal() bool {
	return r.Type != ResponseReplacementProgress
}

// Emitter receives responses in the order they are produced.
type Emitter func(Response)
