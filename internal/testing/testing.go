// package testing contains shared testing utilities
package testing

import (
	"errors"
	"io"
	"net/http"
	"os"
	"sync"
	"testing"

	"github.com/desertthunder/pulse/internal/progress"
)

// ErrFakeClosed is returned by [FakeConn.Send] once the connection has ended.
var ErrFakeClosed = errors.New("fake connection closed")

// FakeConn is an in-memory push connection that records what it was sent.
//
// The first of Complete, CompleteWithError or Disconnect runs the close callbacks synchronously, before Send
// starts failing, so a callback that cancels the sender wins the race with the next Send.
// Callbacks may call back into the connection.
type FakeConn struct {
	// FailSends makes every Send return this error without recording the value.
	FailSends error

	mu        sync.Mutex
	values    []progress.Value
	closing   bool
	ended     bool
	completed bool
	err       error
	callbacks []func()
	closed    chan struct{}
}

func NewFakeConn() *FakeConn {
	return &FakeConn{closed: make(chan struct{})}
}

func (c *FakeConn) Send(v progress.Value) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ended {
		return ErrFakeClosed
	}
	if c.FailSends != nil {
		return c.FailSends
	}
	c.values = append(c.values, v)
	return nil
}

func (c *FakeConn) Complete() { c.end(true, nil) }

func (c *FakeConn) CompleteWithError(err error) { c.end(true, err) }

// Disconnect simulates the peer going away.
func (c *FakeConn) Disconnect() { c.end(false, nil) }

func (c *FakeConn) OnClose(fn func()) {
	c.mu.Lock()
	if !c.closing {
		c.callbacks = append(c.callbacks, fn)
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	fn()
}

func (c *FakeConn) end(completed bool, err error) {
	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		return
	}
	c.closing = true
	c.completed = completed
	c.err = err
	callbacks := c.callbacks
	c.callbacks = nil
	c.mu.Unlock()

	for _, fn := range callbacks {
		fn()
	}

	c.mu.Lock()
	c.ended = true
	c.mu.Unlock()
	close(c.closed)
}

// Closed is closed when the connection ends for any reason.
func (c *FakeConn) Closed() <-chan struct{} { return c.closed }

// Values returns a copy of every value sent so far.
func (c *FakeConn) Values() []progress.Value {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]progress.Value(nil), c.values...)
}

// Counts returns the sent values as plain integers.
func (c *FakeConn) Counts() []int64 {
	values := c.Values()
	counts := make([]int64, len(values))
	for i, v := range values {
		counts[i] = v.Count
	}
	return counts
}

// Completed reports whether the connection was ended by Complete or CompleteWithError.
func (c *FakeConn) Completed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.completed
}

// Err returns the error passed to CompleteWithError, if any.
func (c *FakeConn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// FCloser fails every Read, simulating a broken response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error { return nil }

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
