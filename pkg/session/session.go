// Package session drives the engine from UI requests: it keeps the select-input,
// previewing, executing, complete state machine and serializes every request so that at
// most one preview or replacement runs at a time.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/walteh/fillswap/pkg/assign"
	"github.com/walteh/fillswap/pkg/host"
	"github.com/walteh/fillswap/pkg/match"
	"github.com/walteh/fillswap/pkg/model"
	"github.com/walteh/fillswap/pkg/preview"
	"github.com/walteh/fillswap/pkg/replace"
	"github.com/walteh/fillswap/pkg/source"
	"gitlab.com/tozd/go/errors"
)

var (
	// ErrCancelled is reported for any request received after cancel.
	ErrCancelled = errors.New("session cancelled")
	// ErrResetRequired is reported for a preview or replacement after a completed run.
	ErrResetRequired = errors.New("reset required before starting again")
	// ErrPreviewRequired is reported for a replacement that was not preceded by a preview.
	ErrPreviewRequired = errors.New("preview required before replacement")
)

// 🚦 State is the caller-observed phase of a session.
type State string

const (
	StateSelectInput State = "select-input"
	StatePreviewing  State = "previewing"
	StateExecuting   State = "executing"
	StateComplete    State = "complete"
	StateCancelled   State = "cancelled"
)

// Options configure a Session.
type Options struct {
	// Matcher is used for previews. Nil uses the exact matcher.
	Matcher *match.Matcher
	// DefaultScope is traversed when a request names none.
	DefaultScope model.Scope
	// MaxSnapshotAge bounds how old a candidate set sent by the caller may be before it
	// is replaced by a fresh traversal. Zero accepts any captured snapshot.
	MaxSnapshotAge time.Duration
	// ImageCacheSize is passed to the replacement executor.
	ImageCacheSize int
	// Now is the clock. Nil uses time.Now.
	Now func() time.Time
}

// 🎛️ Session handles requests against one document.
type Session struct {
	id    string
	doc   host.Document
	opts  Options
	exec  *replace.Executor
	mu    sync.Mutex
	state State
}

// New creates a session over doc in the select-input state.
func New(doc host.Document, opts Options) (*Session, error) {
	if doc == nil {
		return nil, errors.New("document is nil")
	}
	if opts.Matcher == nil {
		opts.Matcher = match.NewExact()
	}
	if opts.DefaultScope == "" {
		opts.DefaultScope = model.ScopeSelection
	}
	if !opts.DefaultScope.Valid() {
		return nil, errors.Errorf("invalid default scope %q", opts.DefaultScope)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	var execOpts []replace.Option
	if opts.ImageCacheSize > 0 {
		execOpts = append(execOpts, replace.WithImageCacheSize(opts.ImageCacheSize))
	}
	exec, err := replace.New(doc, execOpts...)
	if err != nil {
		return nil, errors.Errorf("creating executor: %w", err)
	}

	return &Session{
		id:    uuid.NewString(),
		doc:   doc,
		opts:  opts,
		exec:  exec,
		state: StateSelectInput,
	}, nil
}

// ID returns the session's unique id.
func (s *Session) ID() string {
	return s.id
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// 📥 Handle processes req and emits its responses. Requests are processed one at a time;
// a second call blocks until the first returns. Progress responses always precede the
// single terminal response. Failures are reported as error responses, never returned.
func (s *Session) Handle(ctx context.Context, req Request, emit Emitter) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	logger := zerolog.Ctx(ctx).With().
		Str("session", s.id).
		Str("request", req.ID).
		Str("type", string(req.Type)).
		Logger()
	ctx = logger.WithContext(ctx)

	send := func(r Response) {
		r.ID = req.ID
		r.State = s.state
		emit(r)
	}

	defer func() {
		if rec := recover(); rec != nil {
			logger.Error().Interface("panic", rec).Msg("request handler panicked")
			if s.state == StateExecuting {
				s.state = StateComplete
			}
			send(Response{Type: ResponseError, Message: fmt.Sprintf("unexpected failure: %v", rec)})
		}
	}()

	logger.Debug().Str("state", string(s.state)).Msg("handling request")

	if err := s.dispatch(ctx, req, send); err != nil {
		logger.Warn().Err(err).Msg("request failed")
		send(Response{Type: ResponseError, Message: err.Error()})
	}
}

func (s *Session) dispatch(ctx context.Context, req Request, send Emitter) error {
	if s.state == StateCancelled {
		return ErrCancelled
	}

	switch req.Type {
	case RequestGetCandidates:
		return s.getCandidates(ctx, req, send)
	case RequestPreviewMatches:
		return s.previewMatches(ctx, req, send)
	case RequestExecuteReplacement:
		return s.executeReplacement(ctx, req, send)
	case RequestReset:
		s.state = StateSelectInput
		send(Response{Type: ResponseResetComplete})
		return nil
	case RequestCancel:
		s.state = StateCancelled
		send(Response{Type: ResponseCancelled})
		return nil
	}
	return errors.Errorf("unknown request type %q", req.Type)
}

func (s *Session) getCandidates(ctx context.Context, req Request, send Emitter) error {
	set, err := s.traverse(ctx, req.Scope)
	if err != nil {
		return err
	}
	send(Response{Type: ResponseCandidatesFound, Candidates: &set})
	return nil
}

func (s *Session) previewMatches(ctx context.Context, req Request, send Emitter) error {
	if s.state == StateComplete {
		return ErrResetRequired
	}

	sources, err := toSources(req.Files)
	if err != nil {
		return err
	}
	set, err := s.candidates(ctx, req)
	if err != nil {
		return err
	}

	res := preview.BuildWith(s.opts.Matcher, sources, set.Items)
	s.state = StatePreviewing

	zerolog.Ctx(ctx).Debug().
		Int("matched", len(res.Matches)).
		Int("unmatched_files", len(res.UnmatchedFiles)).
		Int("unmatched_layers", len(res.UnmatchedCandidates)).
		Msg("built preview")

	send(Response{Type: ResponseMatchPreview, Preview: &res, Candidates: &set})
	return nil
}

func (s *Session) executeReplacement(ctx context.Context, req Request, send Emitter) error {
	switch s.state {
	case StateComplete:
		return ErrResetRequired
	case StateSelectInput:
		return ErrPreviewRequired
	}

	sources, err := toSources(req.Files)
	if err != nil {
		return err
	}
	set, err := s.candidates(ctx, req)
	if err != nil {
		return err
	}

	resolution, err := assign.Resolve(ctx, req.Assignments, set.Items, sources)
	if errors.Is(err, assign.ErrNothingToApply) {
		summary := model.Summary{}
		send(Response{
			Type:    ResponseReplacementComplete,
			Results: []model.MatchEntry{},
			Summary: &summary,
			Dropped: resolution.Dropped,
			NoOp:    true,
		})
		return nil
	}
	if err != nil {
		return errors.Errorf("resolving assignments: %w", err)
	}

	s.state = StateExecuting
	results := s.exec.Execute(ctx, sources, resolution.Valid, func(p model.Progress) {
		send(Response{Type: ResponseReplacementProgress, Progress: &p})
	})
	s.state = StateComplete

	summary := model.Summarize(results)
	zerolog.Ctx(ctx).Info().
		Int("replaced", summary.Replaced).
		Int("errored", summary.Errored).
		Msg("replacement finished")

	send(Response{
		Type:    ResponseReplacementComplete,
		Results: results,
		Summary: &summary,
		Dropped: resolution.Dropped,
	})
	return nil
}

// candidates returns the request's snapshot when it is fresh enough, or traverses the
// request's scope.
func (s *Session) candidates(ctx context.Context, req Request) (model.CandidateSet, error) {
	if req.Candidates != nil && !req.Candidates.Stale(s.opts.Now(), s.opts.MaxSnapshotAge) {
		return *req.Candidates, nil
	}

	scope := req.Scope
	if scope == "" && req.Candidates != nil {
		scope = req.Candidates.Scope
	}
	if req.Candidates != nil {
		zerolog.Ctx(ctx).Debug().Time("captured_at", req.Candidates.CapturedAt).Msg("candidate snapshot is stale, traversing again")
	}
	return s.traverse(ctx, scope)
}

func (s *Session) traverse(ctx context.Context, scope model.Scope) (model.CandidateSet, error) {
	if scope == "" {
		scope = s.opts.DefaultScope
	}
	if !scope.Valid() {
		return model.CandidateSet{}, errors.Errorf("unknown scope %q", scope)
	}
	return host.Snapshot(ctx, s.doc, scope, s.opts.Now())
}

func toSources(files []File) ([]model.SourceItem, error) {
	out := make([]model.SourceItem, 0, len(files))
	for i, f := range files {
		item, err := source.FromBytes(f.Filename, f.Bytes)
		if err != nil {
			return nil, errors.Errorf("file %d: %w", i, err)
		}
		out = append(out, item)
	}
	return out, nil
}
