package services

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/desertthunder/pulse/internal/progress"
	"github.com/desertthunder/pulse/internal/server"
	"github.com/desertthunder/pulse/internal/shared"
)

// EventType identifies what a [StreamEvent] carries.
type EventType string

const (
	EventSession EventType = "session" // SessionID is set
	EventValue   EventType = "value"   // Count is set
	EventEnd     EventType = "end"     // Err is set when the stream failed
)

// StreamEvent is one decoded message from a progress stream.
type StreamEvent struct {
	Type      EventType
	SessionID string
	Count     int64
	Err       error
}

// Subscribe opens a progress stream on the server.
func (a *APIService) Subscribe(ctx context.Context, transport string) (<-chan StreamEvent, error) {
	switch transport {
	case "", server.TransportSSE:
		return a.subscribeSSE(ctx)
	case server.TransportWS:
		return a.subscribeWS(ctx)
	default:
		return nil, fmt.Errorf("%w: transport %q", shared.ErrInvalidArgument, transport)
	}
}

func (a *APIService) subscribeSSE(ctx context.Context) (<-chan StreamEvent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/sse", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrAPIRequest, err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, checkStatus(&APIResponse{StatusCode: resp.StatusCode, Body: body}, "/sse")
	}

	events := make(chan StreamEvent)
	go func() {
		defer close(events)
		defer resp.Body.Close()

		err := readSSE(resp.Body, func(name string, data []byte) bool {
			ev, ok := decodeSSE(name, data)
			return !ok || emit(ctx, events, ev)
		})
		if ctx.Err() != nil {
			return
		}
		emit(ctx, events, StreamEvent{Type: EventEnd, Err: err})
	}()
	return events, nil
}

// readSSE calls fn for every dispatched event until the body ends or fn returns false.
// A terminal error event is returned as an error wrapping [shared.ErrStreamFailed].
func readSSE(r io.Reader, fn func(name string, data []byte) bool) error {
	scanner := bufio.NewScanner(r)

	var (
		name string
		data [][]byte
	)
	for scanner.Scan() {
		line := scanner.Bytes()
		switch {
		case len(line) == 0:
			if len(data) == 0 {
				name = ""
				continue
			}
			payload := bytes.Join(data, []byte("\n"))
			if name == "error" {
				return remoteError(payload)
			}
			if !fn(name, payload) {
				return nil
			}
			name, data = "", nil
		case line[0] == ':':
			// comment, used for keepalives
		default:
			field, value, _ := bytes.Cut(line, []byte(":"))
			value = bytes.TrimPrefix(value, []byte(" "))
			switch string(field) {
			case "event":
				name = string(value)
			case "data":
				data = append(data, bytes.Clone(value))
			}
		}
	}
	return scanner.Err()
}

func decodeSSE(name string, data []byte) (StreamEvent, bool) {
	switch name {
	case "session":
		return StreamEvent{Type: EventSession, SessionID: string(data)}, true
	case "", "message":
		var v progress.Value
		if err := json.Unmarshal(data, &v); err != nil {
			return StreamEvent{}, false
		}
		return StreamEvent{Type: EventValue, Count: v.Count}, true
	default:
		return StreamEvent{}, false
	}
}

func remoteError(payload []byte) error {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(payload, &body); err != nil || body.Error == "" {
		return fmt.Errorf("%w: %s", shared.ErrStreamFailed, strings.TrimSpace(string(payload)))
	}
	return fmt.Errorf("%w: %s", shared.ErrStreamFailed, body.Error)
}

// wsFrame decodes both the opening session frame and value frames.
type wsFrame struct {
	Session string `json:"session"`
	Count   *int64 `json:"count"`
}

func (a *APIService) subscribeWS(ctx context.Context) (<-chan StreamEvent, error) {
	url := "ws" + strings.TrimPrefix(a.baseURL, "http") + "/ws"

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil && resp.StatusCode != http.StatusSwitchingProtocols {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			resp.Body.Close()
			return nil, checkStatus(&APIResponse{StatusCode: resp.StatusCode, Body: body}, "/ws")
		}
		return nil, fmt.Errorf("%w: %w", shared.ErrAPIRequest, err)
	}

	events := make(chan StreamEvent)
	go func() {
		defer close(events)
		defer conn.Close()
		stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
		defer stop()

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil {
					emit(ctx, events, StreamEvent{Type: EventEnd, Err: closeError(err)})
				}
				return
			}

			var frame wsFrame
			if json.Unmarshal(data, &frame) != nil {
				continue
			}

			ev := StreamEvent{Type: EventSession, SessionID: frame.Session}
			if frame.Count != nil {
				ev = StreamEvent{Type: EventValue, Count: *frame.Count}
			}
			if !emit(ctx, events, ev) {
				return
			}
		}
	}()
	return events, nil
}

// closeError maps a WebSocket read error to the stream outcome: nil for a normal closure.
func closeError(err error) error {
	var ce *websocket.CloseError
	if !errors.As(err, &ce) {
		return err
	}
	if ce.Code == websocket.CloseNormalClosure {
		return nil
	}
	return fmt.Errorf("%w: %s", shared.ErrStreamFailed, ce.Text)
}

func emit(ctx context.Context, events chan<- StreamEvent, ev StreamEvent) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
