package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"

	"github.com/desertthunder/pulse/internal/progress"
)

const (
	wsWriteWait      = 10 * time.Second
	wsReadLimit      = 512
	wsMaxCloseReason = 123 // control frame payload limit minus the status code
)

// WSConn streams progress values to a single WebSocket client as JSON text frames.
type WSConn struct {
	lifecycle

	id       string
	ws       *websocket.Conn
	opts     StreamOptions
	readDone chan struct{}
}

// NewUpgrader returns an upgrader that accepts same-host origins, plus allowOrigin when set ("*" accepts any).
func NewUpgrader(allowOrigin string) *websocket.Upgrader {
	return &websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return checkOrigin(r, allowOrigin) },
	}
}

func checkOrigin(r *http.Request, allowOrigin string) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || allowOrigin == "*" || origin == allowOrigin {
		return true
	}

	parsed, err := url.Parse(origin)
	if err != nil || parsed.Host == "" {
		return false
	}
	return parsed.Host == r.Host
}

// NewWSConn upgrades the request and prepares a connection for session id.
// On upgrade failure the upgrader has already replied to the client.
func NewWSConn(w http.ResponseWriter, r *http.Request, id string, upgrader *websocket.Upgrader, opts StreamOptions) (*WSConn, error) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket upgrade failed: %w", err)
	}

	c := &WSConn{
		id:       id,
		ws:       ws,
		opts:     opts,
		readDone: make(chan struct{}),
	}
	c.setup(opts.buffer())
	return c, nil
}

func (c *WSConn) Send(v progress.Value) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode value: %w", err)
	}
	return c.enqueue(data)
}

// Serve writes frames until the connection is completed, the peer goes away or a write fails,
// then closes the socket and fires the close callbacks.
func (c *WSConn) Serve() {
	defer c.fireClose()
	defer c.ws.Close()

	go c.readPump()

	first, _ := json.Marshal(sessionPayload{Session: c.id})
	if err := c.write(websocket.TextMessage, first); err != nil {
		c.end(nil)
		return
	}

	var ping <-chan time.Time
	if c.opts.Keepalive > 0 {
		ticker := time.NewTicker(c.opts.Keepalive)
		defer ticker.Stop()
		ping = ticker.C
	}

	for {
		select {
		case frame := <-c.send:
			if err := c.write(websocket.TextMessage, frame); err != nil {
				c.end(nil)
				return
			}
		case <-ping:
			deadline := time.Now().Add(wsWriteWait)
			if err := c.ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				c.end(nil)
				return
			}
		case <-c.readDone:
			c.end(nil)
			return
		case <-c.done:
			c.drain()
			c.close(c.Err())
			return
		}
	}
}

// readPump discards client frames and reports when the peer goes away.
func (c *WSConn) readPump() {
	defer close(c.readDone)
	c.ws.SetReadLimit(wsReadLimit)
	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *WSConn) drain() {
	for {
		select {
		case frame := <-c.send:
			if err := c.write(websocket.TextMessage, frame); err != nil {
				return
			}
		default:
			return
		}
	}
}

// close sends a normal closure, or an internal error closure carrying err.
func (c *WSConn) close(err error) {
	code, reason := websocket.CloseNormalClosure, ""
	if err != nil {
		code, reason = websocket.CloseInternalServerErr, closeReason(err)
	}
	deadline := time.Now().Add(wsWriteWait)
	_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
}

// closeReason fits err's text into a close frame without splitting a UTF-8 sequence.
func closeReason(err error) string {
	reason := err.Error()
	if len(reason) <= wsMaxCloseReason {
		return reason
	}
	cut := wsMaxCloseReason
	for cut > 0 && !utf8.RuneStart(reason[cut]) {
		cut--
	}
	return reason[:cut]
}

func (c *WSConn) write(messageType int, data []byte) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(messageType, data)
}

// reject closes a connection that was never served, telling the client why.
func (c *WSConn) reject(err error) {
	c.close(err)
	_ = c.ws.Close()
}
