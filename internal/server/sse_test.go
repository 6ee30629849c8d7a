package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/pulse/internal/progress"
)

// plainWriter is a ResponseWriter without Flush.
type plainWriter struct {
	header http.Header
}

func (p *plainWriter) Header() http.Header         { return p.header }
func (p *plainWriter) Write(b []byte) (int, error) { return len(b), nil }
func (p *plainWriter) WriteHeader(int)             {}

func newTestSSEConn(t *testing.T, opts StreamOptions) (*SSEConn, *httptest.ResponseRecorder, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/sse", nil).WithContext(ctx)
	conn, err := NewSSEConn(rec, req, "session-1", opts)
	if err != nil {
		t.Fatalf("failed to create connection: %v", err)
	}
	return conn, rec, cancel
}

func serve(conn interface{ Serve() }) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		conn.Serve()
		close(done)
	}()
	return done
}

func waitServed(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("serve did not return")
	}
}

func TestSSEConn(t *testing.T) {
	t.Run("streams values and completes", func(t *testing.T) {
		conn, rec, _ := newTestSSEConn(t, StreamOptions{AllowOrigin: "*"})

		var closed atomic.Int32
		conn.OnClose(func() { closed.Add(1) })

		for _, n := range []int64{2, 3} {
			if err := conn.Send(progress.Value{Count: n}); err != nil {
				t.Fatalf("send failed: %v", err)
			}
		}
		conn.Complete()
		conn.Complete()
		waitServed(t, serve(conn))

		if got := rec.Header().Get("Content-Type"); got != "text/event-stream; charset=utf-8" {
			t.Errorf("unexpected content type %q", got)
		}
		if got := rec.Header().Get("Cache-Control"); got != "no-cache" {
			t.Errorf("unexpected cache control %q", got)
		}
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
			t.Errorf("unexpected allow origin %q", got)
		}

		want := "event:session\ndata:session-1\n\ndata:{\"count\":2}\n\ndata:{\"count\":3}\n\n"
		if body := rec.Body.String(); body != want {
			t.Errorf("body = %q, want %q", body, want)
		}
		if closed.Load() != 1 {
			t.Errorf("expected close callback once, got %d", closed.Load())
		}
	})

	t.Run("error completion writes an error event", func(t *testing.T) {
		conn, rec, _ := newTestSSEConn(t, StreamOptions{})
		conn.CompleteWithError(errors.New("simulated failure"))
		conn.Complete()
		waitServed(t, serve(conn))

		body := rec.Body.String()
		if !strings.HasSuffix(body, "event:error\ndata:{\"error\":\"simulated failure\"}\n\n") {
			t.Errorf("expected trailing error event, got %q", body)
		}
		if rec.Header().Get("Access-Control-Allow-Origin") != "" {
			t.Error("allow origin header should be omitted when unset")
		}
	})

	t.Run("send after completion fails", func(t *testing.T) {
		conn, _, _ := newTestSSEConn(t, StreamOptions{})
		conn.Complete()

		err := conn.Send(progress.Value{Count: 2})
		if !errors.Is(err, ErrConnectionClosed) {
			t.Errorf("expected ErrConnectionClosed, got %v", err)
		}
	})

	t.Run("full queue reports a slow client", func(t *testing.T) {
		conn, _, _ := newTestSSEConn(t, StreamOptions{Buffer: 1})

		if err := conn.Send(progress.Value{Count: 2}); err != nil {
			t.Fatalf("first send failed: %v", err)
		}
		if err := conn.Send(progress.Value{Count: 3}); !errors.Is(err, ErrSlowClient) {
			t.Errorf("expected ErrSlowClient, got %v", err)
		}
	})

	t.Run("keepalive comments", func(t *testing.T) {
		conn, rec, _ := newTestSSEConn(t, StreamOptions{Keepalive: 5 * time.Millisecond})
		done := serve(conn)

		time.Sleep(30 * time.Millisecond)
		conn.Complete()
		waitServed(t, done)

		if !strings.Contains(rec.Body.String(), ":keepalive\n") {
			t.Errorf("expected keepalive comment in %q", rec.Body.String())
		}
	})

	t.Run("client disconnect ends the stream", func(t *testing.T) {
		conn, _, cancel := newTestSSEConn(t, StreamOptions{})

		var closed atomic.Int32
		conn.OnClose(func() { closed.Add(1) })

		done := serve(conn)
		cancel()
		waitServed(t, done)

		if closed.Load() != 1 {
			t.Errorf("expected close callback once, got %d", closed.Load())
		}
		if err := conn.Send(progress.Value{Count: 2}); !errors.Is(err, ErrConnectionClosed) {
			t.Errorf("expected ErrConnectionClosed, got %v", err)
		}
		if conn.Err() != nil {
			t.Errorf("disconnect should not record an error, got %v", conn.Err())
		}
	})

	t.Run("OnClose after close runs immediately", func(t *testing.T) {
		conn, _, _ := newTestSSEConn(t, StreamOptions{})
		conn.Complete()
		waitServed(t, serve(conn))

		ran := false
		conn.OnClose(func() { ran = true })
		if !ran {
			t.Error("late callback should run immediately")
		}
	})

	t.Run("requires a flusher", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/sse", nil)
		_, err := NewSSEConn(&plainWriter{header: http.Header{}}, req, "x", StreamOptions{})
		if !errors.Is(err, ErrStreamingUnsupported) {
			t.Errorf("expected ErrStreamingUnsupported, got %v", err)
		}
	})
}
