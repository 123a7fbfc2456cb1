package bridge

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/fillswap/pkg/assign"
	"github.com/walteh/fillswap/pkg/host"
	"github.com/walteh/fillswap/pkg/host/memdoc"
	"github.com/walteh/fillswap/pkg/model"
	"github.com/walteh/fillswap/pkg/session"
)

const doc = `
selection: [a, b]
pages:
  - id: p
    name: Page
    children:
      - {id: a, name: Alpha, type: RECTANGLE}
      - {id: b, name: Beta, type: RECTANGLE}
`

func testContext(t *testing.T) context.Context {
	logger := zerolog.New(zerolog.NewTestWriter(t)).Level(zerolog.DebugLevel)
	return logger.WithContext(context.Background())
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 3, 3))))
	return buf.Bytes()
}

func parseDoc(t *testing.T) *memdoc.Document {
	t.Helper()
	d, err := memdoc.Parse([]byte(doc), memdoc.FormatYAML, memdoc.Options{})
	require.NoError(t, err)
	return d
}

// serve runs a server over d and returns its websocket url.
func serve(t *testing.T, d host.Document, opts Options) string {
	t.Helper()
	ctx := testContext(t)
	srv := httptest.NewUnstartedServer(NewServer(d, opts).Handler())
	srv.Config.BaseContext = func(net.Listener) context.Context { return ctx }
	srv.Start()
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http") + Path
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

func start(t *testing.T, opts Options) (*websocket.Conn, *memdoc.Document) {
	t.Helper()
	d := parseDoc(t)
	return dial(t, serve(t, d, opts)), d
}

// roundTrip sends req and reads until its terminal response.
func roundTrip(t *testing.T, conn *websocket.Conn, req session.Request) []session.Response {
	t.Helper()
	require.NoError(t, conn.WriteJSON(req))
	return readTerminal(t, conn)
}

func readTerminal(t *testing.T, conn *websocket.Conn) []session.Response {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var out []session.Response
	for {
		var resp session.Response
		require.NoError(t, conn.ReadJSON(&resp))
		out = append(out, resp)
		if resp.Terminal() {
			return out
		}
	}
}

// slowDoc holds every GetFills for delay and records how many overlap.
type slowDoc struct {
	*memdoc.Document
	delay    time.Duration
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (d *slowDoc) GetFills(ctx context.Context, t host.Target) ([]host.Paint, error) {
	n := d.inFlight.Add(1)
	defer d.inFlight.Add(-1)
	for {
		p := d.peak.Load()
		if n <= p || d.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(d.delay)
	return d.Document.GetFills(ctx, t)
}

func previewAlpha(t *testing.T, conn *websocket.Conn, files []session.File) session.Response {
	t.Helper()
	got := roundTrip(t, conn, session.Request{Type: session.RequestPreviewMatches, Files: files})
	require.Len(t, got, 1)
	require.Equal(t, session.ResponseMatchPreview, got[0].Type, got[0].Message)
	return got[0]
}

func TestBridgeRun(t *testing.T) {
	var saved atomic.Int32
	conn, d := start(t, Options{OnComplete: func(ctx context.Context) error {
		saved.Add(1)
		return nil
	}})

	got := roundTrip(t, conn, session.Request{ID: "c", Type: session.RequestGetCandidates})
	require.Len(t, got, 1)
	assert.Equal(t, session.ResponseCandidatesFound, got[0].Type)
	assert.Equal(t, "c", got[0].ID)
	assert.Len(t, got[0].Candidates.Items, 2)

	files := []session.File{{Filename: "alpha.png", Bytes: pngBytes(t)}, {Filename: "beta.png", Bytes: pngBytes(t)}}
	got = roundTrip(t, conn, session.Request{ID: "p", Type: session.RequestPreviewMatches, Files: files, Candidates: got[0].Candidates})
	require.Len(t, got, 1)
	require.Equal(t, session.ResponseMatchPreview, got[0].Type, got[0].Message)
	require.Len(t, got[0].Preview.Matches, 2)

	got = roundTrip(t, conn, session.Request{
		ID:          "x",
		Type:        session.RequestExecuteReplacement,
		Files:       files,
		Candidates:  got[0].Candidates,
		Assignments: assign.FromPreview(*got[0].Preview),
	})
	require.Len(t, got, 3)
	assert.Equal(t, session.ResponseReplacementProgress, got[0].Type)
	assert.Equal(t, session.ResponseReplacementProgress, got[1].Type)
	assert.Equal(t, 2, got[1].Progress.Completed)
	assert.Equal(t, session.ResponseReplacementComplete, got[2].Type)
	assert.Equal(t, model.Summary{Total: 2, Replaced: 2}, *got[2].Summary)
	assert.Equal(t, int32(1), saved.Load())
	assert.Equal(t, 1, d.ImageCount(), "identical bytes are registered once")
}

func TestBridgeClosesAfterCancel(t *testing.T) {
	conn, _ := start(t, Options{})

	got := roundTrip(t, conn, session.Request{Type: session.RequestCancel})
	require.Len(t, got, 1)
	assert.Equal(t, session.ResponseCancelled, got[0].Type)

	var resp session.Response
	err := conn.ReadJSON(&resp)
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}

func TestBridgeHookErrorIsReported(t *testing.T) {
	conn, _ := start(t, Options{OnComplete: func(ctx context.Context) error {
		return assert.AnError
	}})

	files := []session.File{{Filename: "alpha.png", Bytes: pngBytes(t)}}
	got := roundTrip(t, conn, session.Request{Type: session.RequestPreviewMatches, Files: files})
	got = roundTrip(t, conn, session.Request{
		Type:        session.RequestExecuteReplacement,
		Files:       files,
		Candidates:  got[0].Candidates,
		Assignments: assign.FromPreview(*got[0].Preview),
	})

	done := got[len(got)-1]
	assert.Equal(t, session.ResponseReplacementComplete, done.Type)
	assert.Equal(t, assert.AnError.Error(), done.Message)
}

func TestConnectionsShareOneRequestLock(t *testing.T) {
	d := &slowDoc{Document: parseDoc(t), delay: 150 * time.Millisecond}
	var saving, overlapped atomic.Int32
	url := serve(t, d, Options{OnComplete: func(ctx context.Context) error {
		if d.inFlight.Load() > 0 {
			overlapped.Add(1)
		}
		saving.Add(1)
		return nil
	}})

	first, second := dial(t, url), dial(t, url)
	files := []session.File{{Filename: "Alpha.png", Bytes: pngBytes(t)}}

	p1 := previewAlpha(t, first, files)
	p2 := previewAlpha(t, second, files)

	execute := func(p session.Response) session.Request {
		return session.Request{
			Type:        session.RequestExecuteReplacement,
			Files:       files,
			Candidates:  p.Candidates,
			Assignments: assign.FromPreview(*p.Preview),
		}
	}
	require.NoError(t, first.WriteJSON(execute(p1)))
	require.NoError(t, second.WriteJSON(execute(p2)))

	for _, conn := range []*websocket.Conn{first, second} {
		got := readTerminal(t, conn)
		done := got[len(got)-1]
		require.Equal(t, session.ResponseReplacementComplete, done.Type, done.Message)
		assert.Equal(t, model.Summary{Total: 1, Replaced: 1}, *done.Summary)
	}

	assert.Equal(t, int32(1), d.peak.Load(), "replacements from two connections overlapped")
	assert.Equal(t, int32(2), saving.Load())
	assert.Zero(t, overlapped.Load(), "completion hook ran while another batch was applying")
}

func TestLongRequestOutlivesPongWait(t *testing.T) {
	d := &slowDoc{Document: parseDoc(t), delay: 600 * time.Millisecond}
	conn := dial(t, serve(t, d, Options{PongWait: 200 * time.Millisecond}))
	files := []session.File{{Filename: "Alpha.png", Bytes: pngBytes(t)}}

	p := previewAlpha(t, conn, files)
	got := roundTrip(t, conn, session.Request{
		Type:        session.RequestExecuteReplacement,
		Files:       files,
		Candidates:  p.Candidates,
		Assignments: assign.FromPreview(*p.Preview),
	})
	require.Equal(t, session.ResponseReplacementComplete, got[len(got)-1].Type)

	got = roundTrip(t, conn, session.Request{Type: session.RequestGetCandidates})
	require.Len(t, got, 1)
	assert.Equal(t, session.ResponseCandidatesFound, got[0].Type, "connection should survive a request longer than the pong wait")
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestLogLinesCarrySessionOnce(t *testing.T) {
	logs := &lockedBuffer{}
	ctx := zerolog.New(logs).Level(zerolog.DebugLevel).WithContext(context.Background())

	srv := httptest.NewUnstartedServer(NewServer(parseDoc(t), Options{}).Handler())
	srv.Config.BaseContext = func(net.Listener) context.Context { return ctx }
	srv.Start()
	t.Cleanup(srv.Close)

	conn := dial(t, "ws"+strings.TrimPrefix(srv.URL, "http")+Path)
	got := roundTrip(t, conn, session.Request{Type: session.RequestGetCandidates})
	require.Len(t, got, 1)

	lines := strings.Split(strings.TrimSpace(logs.String()), "\n")
	require.NotEmpty(t, lines)
	for _, line := range lines {
		assert.LessOrEqual(t, strings.Count(line, `"session":`), 1, line)
	}
	assert.Contains(t, logs.String(), `"session":`)
}

func TestHealthz(t *testing.T) {
	d := parseDoc(t)

	rec := httptest.NewRecorder()
	NewServer(d, Options{}).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestServeStopsWithContext(t *testing.T) {
	d, err := memdoc.Parse([]byte(doc), memdoc.FormatYAML, memdoc.Options{})
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(testContext(t))
	errc := make(chan error, 1)
	go func() { errc <- NewServer(d, Options{}).Serve(ctx, ln) }()

	cancel()
	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
