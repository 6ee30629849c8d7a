package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/desertthunder/pulse/internal/progress"
)

// DefaultBuffer is the outbound queue length used when none is configured.
const DefaultBuffer = 16

// StreamOptions configures push connections.
type StreamOptions struct {
	Keepalive   time.Duration // SSE comment / WebSocket ping period, 0 disables
	Buffer      int           // outbound queue length
	AllowOrigin string        // Access-Control-Allow-Origin, empty omits the header
}

func (o StreamOptions) buffer() int {
	if o.Buffer < 1 {
		return DefaultBuffer
	}
	return o.Buffer
}

// lifecycle is the completion and close-callback bookkeeping shared by every transport.
type lifecycle struct {
	send chan []byte
	done chan struct{}

	mu        sync.Mutex
	ended     bool
	err       error
	fired     bool
	callbacks []func()
}

func (l *lifecycle) setup(buffer int) {
	l.send = make(chan []byte, buffer)
	l.done = make(chan struct{})
}

// enqueue queues frame unless the connection has ended or the queue is full.
func (l *lifecycle) enqueue(frame []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ended {
		return ErrConnectionClosed
	}
	select {
	case l.send <- frame:
		return nil
	default:
		return ErrSlowClient
	}
}

// end records err and releases the serving loop. Only the first call has any effect.
func (l *lifecycle) end(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ended {
		return
	}
	l.ended = true
	l.err = err
	close(l.done)
}

func (l *lifecycle) Complete() { l.end(nil) }

func (l *lifecycle) CompleteWithError(err error) {
	if err == nil {
		err = errors.New("completed with unknown error")
	}
	l.end(err)
}

// Err returns the error the connection was completed with.
func (l *lifecycle) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

func (l *lifecycle) OnClose(fn func()) {
	l.mu.Lock()
	if !l.fired {
		l.callbacks = append(l.callbacks, fn)
		l.mu.Unlock()
		return
	}
	l.mu.Unlock()
	fn()
}

// fireClose runs the close callbacks once serving has stopped.
func (l *lifecycle) fireClose() {
	l.mu.Lock()
	if l.fired {
		l.mu.Unlock()
		return
	}
	l.fired = true
	callbacks := l.callbacks
	l.callbacks = nil
	l.mu.Unlock()

	for _, fn := range callbacks {
		fn()
	}
}

// SSEConn streams progress values to a single EventSource client.
type SSEConn struct {
	lifecycle

	id      string
	w       http.ResponseWriter
	r       *http.Request
	flusher http.Flusher
	opts    StreamOptions
}

// NewSSEConn prepares an SSE connection for session id. Nothing is written until [SSEConn.Serve].
func NewSSEConn(w http.ResponseWriter, r *http.Request, id string, opts StreamOptions) (*SSEConn, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrStreamingUnsupported
	}
	c := &SSEConn{
		id:      id,
		w:       w,
		r:       r,
		flusher: flusher,
		opts:    opts,
	}
	c.setup(opts.buffer())
	return c, nil
}

func (c *SSEConn) Send(v progress.Value) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode value: %w", err)
	}
	return c.enqueue(Event{Data: data}.Format())
}

// Serve writes the stream until the connection is completed, the client goes away or a write fails,
// then fires the close callbacks. It blocks for the life of the stream.
func (c *SSEConn) Serve() {
	defer c.fireClose()

	headers := c.w.Header()
	headers.Set("Content-Type", "text/event-stream; charset=utf-8")
	headers.Set("Cache-Control", "no-cache")
	headers.Set("Connection", "keep-alive")
	if c.opts.AllowOrigin != "" {
		headers.Set("Access-Control-Allow-Origin", c.opts.AllowOrigin)
	}
	c.w.WriteHeader(http.StatusOK)

	if err := c.write(Event{Event: "session", Data: []byte(c.id)}.Format()); err != nil {
		c.end(nil)
		return
	}

	var keepalive <-chan time.Time
	if c.opts.Keepalive > 0 {
		ticker := time.NewTicker(c.opts.Keepalive)
		defer ticker.Stop()
		keepalive = ticker.C
	}

	for {
		select {
		case frame := <-c.send:
			if err := c.write(frame); err != nil {
				c.end(nil)
				return
			}
		case <-keepalive:
			if err := c.write(keepaliveFrame); err != nil {
				c.end(nil)
				return
			}
		case <-c.r.Context().Done():
			c.end(nil)
			return
		case <-c.done:
			c.drain()
			if err := c.Err(); err != nil {
				_ = c.write(errorEvent(err).Format())
			}
			return
		}
	}
}

// drain flushes frames queued before completion.
func (c *SSEConn) drain() {
	for {
		select {
		case frame := <-c.send:
			if err := c.write(frame); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *SSEConn) write(frame []byte) error {
	if _, err := c.w.Write(frame); err != nil {
		return err
	}
	c.flusher.Flush()
	return nil
}
