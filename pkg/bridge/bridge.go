// Package bridge exposes sessions over websockets: one session per connection, JSON
// requests in, JSON responses out.
package bridge

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/walteh/fillswap/pkg/host"
	"github.com/walteh/fillswap/pkg/session"
	"gitlab.com/tozd/go/errors"
)

const (
	writeWait  = 10 * time.Second
	outboxSize = 32

	// DefaultPongWait is how long a connection may stay silent between requests.
	DefaultPongWait = 60 * time.Second

	// Path is where the websocket endpoint is mounted.
	Path = "/ws"
)

// Options configure a Server.
type Options struct {
	Session session.Options
	// OnComplete runs after every non-empty replacement, before the terminal response is sent.
	OnComplete func(ctx context.Context) error
	// CheckOrigin is passed to the upgrader. Nil accepts every origin.
	CheckOrigin func(r *http.Request) bool
	// PongWait bounds the wait for the peer's next message or pong while no request is
	// running. Pings go out at nine tenths of it. Zero uses DefaultPongWait.
	PongWait time.Duration
}

// 🌉 Server upgrades HTTP requests to websocket sessions against one document.
// Requests from all connections are handled one at a time.
type Server struct {
	doc      host.Document
	opts     Options
	upgrader websocket.Upgrader

	// handling is held for the whole of every request, across sessions.
	handling sync.Mutex
}

// NewServer returns a server for doc.
func NewServer(doc host.Document, opts Options) *Server {
	check := opts.CheckOrigin
	if check == nil {
		check = func(*http.Request) bool { return true }
	}
	if opts.PongWait <= 0 {
		opts.PongWait = DefaultPongWait
	}
	return &Server{
		doc:  doc,
		opts: opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     check,
		},
	}
}

// Handler returns a mux serving the websocket endpoint and a health check.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(Path, s)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// 🚀 ListenAndServe serves on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Errorf("listening on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errc := make(chan error, 1)
	go func() {
		errc <- srv.Serve(ln)
	}()

	zerolog.Ctx(ctx).Info().Str("addr", ln.Addr().String()).Msg("bridge listening")

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Errorf("serving: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return errors.Errorf("shutting down: %w", err)
		}
		return nil
	}
}

// ServeHTTP upgrades the request and runs a session until the peer disconnects or cancels.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := zerolog.Ctx(r.Context())

	sess, err := session.New(s.doc, s.opts.Session)
	if err != nil {
		logger.Error().Err(err).Msg("creating session")
		http.Error(w, "session unavailable", http.StatusInternalServerError)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	l := logger.With().Str("remote", r.RemoteAddr).Logger()
	ctx, cancel := context.WithCancel(l.WithContext(r.Context()))
	defer cancel()

	l.Info().Str("session", sess.ID()).Msg("session opened")
	defer func() { l.Info().Str("session", sess.ID()).Msg("session closed") }()

	pongWait := s.opts.PongWait
	if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		l.Debug().Err(err).Msg("setting read deadline")
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	outbox := make(chan session.Response, outboxSize)
	writerDone := make(chan struct{})
	go s.writer(ctx, conn, outbox, writerDone)

	push := func(resp session.Response) {
		select {
		case outbox <- resp:
		case <-writerDone:
		}
	}

	for {
		var req session.Request
		if err := conn.ReadJSON(&req); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				l.Debug().Err(err).Msg("reading request")
			}
			break
		}

		// pongs are not read while a request runs, so the deadline only applies between requests
		if err := conn.SetReadDeadline(time.Time{}); err != nil {
			break
		}
		s.handle(ctx, sess, req, push)
		if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			break
		}

		if req.Type == session.RequestCancel {
			break
		}
	}

	close(outbox)
	<-writerDone
}

// handle runs one request while holding the server-wide lock, so batches from different
// connections never touch the document at the same time. The completion hook runs under
// the same lock.
func (s *Server) handle(ctx context.Context, sess *session.Session, req session.Request, push session.Emitter) {
	s.handling.Lock()
	defer s.handling.Unlock()
	sess.Handle(ctx, req, s.completion(ctx, push))
}

// completion runs OnComplete before a non-empty replacement result is pushed.
func (s *Server) completion(ctx context.Context, push session.Emitter) session.Emitter {
	if s.opts.OnComplete == nil {
		return push
	}
	return func(resp session.Response) {
		if resp.Type == session.ResponseReplacementComplete && !resp.NoOp {
			if err := s.opts.OnComplete(ctx); err != nil {
				zerolog.Ctx(ctx).Error().Err(err).Msg("post-replacement hook failed")
				resp.Message = err.Error()
			}
		}
		push(resp)
	}
}

func (s *Server) writer(ctx context.Context, conn *websocket.Conn, outbox <-chan session.Response, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.opts.PongWait * 9 / 10)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case resp, ok := <-outbox:
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteJSON(resp); err != nil {
				zerolog.Ctx(ctx).Debug().Err(err).Msg("writing response")
				return
			}
		case <-ticker.C:
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
