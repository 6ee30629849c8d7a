package session

import (
	"sync"
	"time"

	"github.com/desertthunder/pulse/internal/progress"
)

// Conn is a push connection that a [progress.Task] writes to.
//
// Send fails once the connection has ended. Complete and CompleteWithError are idempotent; the first
// call wins. OnClose callbacks fire exactly once after the connection stops serving for any reason;
// a callback registered after that runs immediately.
type Conn interface {
	progress.Sink
	OnClose(func())
}

// Dialer opens the push connection for a newly created session id.
type Dialer func(id string) (Conn, error)

// Session is one live stream: a connection and the task feeding it.
type Session struct {
	id        string
	transport string
	createdAt time.Time
	conn      Conn
	task      *progress.Task

	mu    sync.Mutex
	timer *time.Timer
}

func (s *Session) ID() string           { return s.id }
func (s *Session) Transport() string    { return s.transport }
func (s *Session) CreatedAt() time.Time { return s.createdAt }
func (s *Session) Conn() Conn           { return s.conn }
func (s *Session) Task() *progress.Task { return s.task }

func (s *Session) setTimer(t *time.Timer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timer = t
}

func (s *Session) stopTimer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
	}
}

// Info is a point-in-time view of a live session.
type Info struct {
	ID        string    `json:"id"`
	Transport string    `json:"transport"`
	CreatedAt time.Time `json:"created_at"`
	Emitted   int64     `json:"emitted"`
	State     string    `json:"state"`
}

func (s *Session) Info() Info {
	return Info{
		ID:        s.id,
		Transport: s.transport,
		CreatedAt: s.createdAt,
		Emitted:   s.task.Emitted(),
		State:     s.task.State().String(),
	}
}
