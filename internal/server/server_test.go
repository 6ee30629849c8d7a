package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/desertthunder/pulse/internal/metrics"
	"github.com/desertthunder/pulse/internal/progress"
	"github.com/desertthunder/pulse/internal/session"
	"github.com/desertthunder/pulse/internal/shared"
)

const tick = 5 * time.Millisecond

func newTestServer(t *testing.T, opts session.Options) (*Server, *httptest.Server) {
	t.Helper()
	logger := shared.NewLogger(io.Discard)
	if opts.Interval == 0 {
		opts.Interval = tick
	}
	opts.Logger = logger
	m := metrics.NewMetrics()
	opts.Metrics = m

	srv := New(Options{
		Stream:  StreamOptions{Buffer: 4},
		Manager: session.NewManager(opts),
		Metrics: m,
		Logger:  logger,
	})
	ts := httptest.NewServer(srv)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
		ts.Close()
	})
	return srv, ts
}

// readLines reads SSE lines until n non-empty lines were seen or the stream ends.
func readLines(t *testing.T, sc *bufio.Scanner, n int) []string {
	t.Helper()
	var lines []string
	for len(lines) < n && sc.Scan() {
		if line := sc.Text(); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func openSSE(t *testing.T, ts *httptest.Server) (*http.Response, *bufio.Scanner, string) {
	t.Helper()
	resp, err := http.Get(ts.URL + "/sse")
	if err != nil {
		t.Fatalf("failed to open stream: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	sc := bufio.NewScanner(resp.Body)
	lines := readLines(t, sc, 2)
	if len(lines) != 2 || lines[0] != "event:session" || !strings.HasPrefix(lines[1], "data:") {
		t.Fatalf("expected session event, got %q", lines)
	}
	return resp, sc, strings.TrimPrefix(lines[1], "data:")
}

func TestSSEEndpoint(t *testing.T) {
	t.Run("streams until the simulated failure", func(t *testing.T) {
		srv, ts := newTestServer(t, session.Options{FailEvery: 5})
		_, sc, id := openSSE(t, ts)

		lines := readLines(t, sc, 10)
		want := []string{
			`data:{"count":2}`,
			`data:{"count":3}`,
			`data:{"count":4}`,
			"event:error",
			`data:{"error":"simulated failure: reached 5"}`,
		}
		if strings.Join(lines, "\n") != strings.Join(want, "\n") {
			t.Errorf("stream = %q, want %q", lines, want)
		}

		deadline := time.Now().Add(2 * time.Second)
		for srv.manager.Active() != 0 && time.Now().Before(deadline) {
			time.Sleep(tick)
		}
		if _, ok := srv.manager.Lookup(id); ok {
			t.Error("session should be removed after failure")
		}
	})

	t.Run("client disconnect tears the session down", func(t *testing.T) {
		srv, ts := newTestServer(t, session.Options{})
		resp, _, id := openSSE(t, ts)

		if _, ok := srv.manager.Lookup(id); !ok {
			t.Fatal("session should be registered while streaming")
		}
		resp.Body.Close()

		deadline := time.Now().Add(2 * time.Second)
		for srv.manager.Active() != 0 && time.Now().Before(deadline) {
			time.Sleep(tick)
		}
		if srv.manager.Active() != 0 {
			t.Error("session should be torn down after disconnect")
		}
	})
}

func TestWSEndpoint(t *testing.T) {
	t.Run("streams and closes with the failure reason", func(t *testing.T) {
		_, ts := newTestServer(t, session.Options{FailEvery: 5})
		url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"

		ws, _, err := websocket.DefaultDialer.Dial(url, nil)
		if err != nil {
			t.Fatalf("failed to dial: %v", err)
		}
		defer ws.Close()

		var hello sessionPayload
		if err := ws.ReadJSON(&hello); err != nil || hello.Session == "" {
			t.Fatalf("expected session frame, got %+v (%v)", hello, err)
		}

		for _, want := range []int64{2, 3, 4} {
			var v progress.Value
			if err := ws.ReadJSON(&v); err != nil {
				t.Fatalf("failed to read value: %v", err)
			}
			if v.Count != want {
				t.Errorf("expected count %d, got %d", want, v.Count)
			}
		}

		_, _, err = ws.ReadMessage()
		var ce *websocket.CloseError
		if !errors.As(err, &ce) {
			t.Fatalf("expected close error, got %v", err)
		}
		if ce.Code != websocket.CloseInternalServerErr {
			t.Errorf("expected close code 1011, got %d", ce.Code)
		}
		if !strings.Contains(ce.Text, "simulated failure") {
			t.Errorf("expected failure reason, got %q", ce.Text)
		}
	})

	t.Run("max ticks closes normally", func(t *testing.T) {
		_, ts := newTestServer(t, session.Options{MaxTicks: 1})
		url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"

		ws, _, err := websocket.DefaultDialer.Dial(url, nil)
		if err != nil {
			t.Fatalf("failed to dial: %v", err)
		}
		defer ws.Close()

		for range 2 {
			if _, _, err := ws.ReadMessage(); err != nil {
				t.Fatalf("failed to read frame: %v", err)
			}
		}

		_, _, err = ws.ReadMessage()
		if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
			t.Errorf("expected normal closure, got %v", err)
		}
	})

	t.Run("peer disconnect tears the session down", func(t *testing.T) {
		srv, ts := newTestServer(t, session.Options{})
		url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"

		ws, _, err := websocket.DefaultDialer.Dial(url, nil)
		if err != nil {
			t.Fatalf("failed to dial: %v", err)
		}
		if _, _, err := ws.ReadMessage(); err != nil {
			t.Fatalf("failed to read session frame: %v", err)
		}
		ws.Close()

		deadline := time.Now().Add(2 * time.Second)
		for srv.manager.Active() != 0 && time.Now().Before(deadline) {
			time.Sleep(tick)
		}
		if srv.manager.Active() != 0 {
			t.Error("session should be torn down after disconnect")
		}
	})

	t.Run("rejects foreign origins", func(t *testing.T) {
		_, ts := newTestServer(t, session.Options{})
		url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"

		header := http.Header{"Origin": []string{"http://evil.example"}}
		_, resp, err := websocket.DefaultDialer.Dial(url, header)
		if err == nil {
			t.Fatal("expected handshake failure")
		}
		if resp == nil || resp.StatusCode != http.StatusForbidden {
			t.Errorf("expected 403, got %v", resp)
		}
	})
}

func TestSessionsEndpoint(t *testing.T) {
	srv, ts := newTestServer(t, session.Options{Interval: time.Hour})
	_, sc, id := openSSE(t, ts)

	resp, err := http.Get(ts.URL + "/sessions/" + id)
	if err != nil {
		t.Fatalf("failed to get session: %v", err)
	}
	var info session.Info
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		t.Fatalf("failed to decode session: %v", err)
	}
	resp.Body.Close()
	if info.ID != id || info.Transport != TransportSSE || info.State != "running" {
		t.Errorf("unexpected session info %+v", info)
	}

	del := func() int {
		req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/sessions/"+id, nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("delete failed: %v", err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}

	if code := del(); code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", code)
	}

	// the stream ends cleanly, without an error event
	if lines := readLines(t, sc, 1); len(lines) != 0 {
		t.Errorf("expected end of stream, got %q", lines)
	}

	if code := del(); code != http.StatusNotFound {
		t.Errorf("expected 404 on second delete, got %d", code)
	}
	if srv.manager.Active() != 0 {
		t.Error("no sessions should remain")
	}

	resp, err = http.Get(ts.URL + "/sessions/" + id)
	if err != nil {
		t.Fatalf("failed to get session: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for removed session, got %d", resp.StatusCode)
	}
}

func TestStatusEndpoint(t *testing.T) {
	_, ts := newTestServer(t, session.Options{Interval: time.Hour})
	_, _, id := openSSE(t, ts)

	resp, err := http.Get(ts.URL + "/status")
	if err != nil {
		t.Fatalf("failed to get status: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("unexpected content type %q", ct)
	}

	var status ReportingStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("failed to decode status: %v", err)
	}

	if status.Status != "OK" {
		t.Errorf("expected status OK, got %s", status.Status)
	}
	if status.Process.PID != int32(os.Getpid()) {
		t.Errorf("expected pid %d, got %d", os.Getpid(), status.Process.PID)
	}
	if status.SessionsOpened != 1 {
		t.Errorf("expected 1 session opened, got %d", status.SessionsOpened)
	}
	if len(status.Sessions) != 1 || status.Sessions[0].ID != id {
		t.Errorf("expected the open session in status, got %+v", status.Sessions)
	}
	if !strings.HasPrefix(status.Node, "go-") {
		t.Errorf("unexpected node name %q", status.Node)
	}
}

func TestIndexPage(t *testing.T) {
	_, ts := newTestServer(t, session.Options{})

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("failed to get page: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("unexpected content type %q", ct)
	}

	missing, err := http.Get(ts.URL + "/nope")
	if err != nil {
		t.Fatalf("failed to get unknown path: %v", err)
	}
	missing.Body.Close()
	if missing.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for unknown path, got %d", missing.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	_, ts := newTestServer(t, session.Options{Interval: time.Hour})
	openSSE(t, ts)

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("failed to get metrics: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `pulse_sessions_opened_total{transport="sse"} 1`) {
		t.Errorf("expected opened session counter in metrics output")
	}
}

func TestServerShutdown(t *testing.T) {
	srv, ts := newTestServer(t, session.Options{Interval: time.Hour})
	_, sc, _ := openSSE(t, ts)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}

	if lines := readLines(t, sc, 1); len(lines) != 0 {
		t.Errorf("expected stream to end, got %q", lines)
	}

	resp, err := http.Get(ts.URL + "/sse")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected 503 after shutdown, got %d", resp.StatusCode)
	}
	if srv.Status().Status != "SHUTTING_DOWN" {
		t.Errorf("expected SHUTTING_DOWN status, got %s", srv.Status().Status)
	}
}
