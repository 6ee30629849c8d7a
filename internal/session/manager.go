package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/pulse/internal/models"
	"github.com/desertthunder/pulse/internal/progress"
	"github.com/desertthunder/pulse/internal/shared"
)

// Journal persists ended sessions.
type Journal interface {
	Create(rec *models.SessionRecord) error
}

// Metrics receives session lifecycle events.
type Metrics interface {
	SessionOpened(transport string)
	SessionClosed(transport, outcome string, d time.Duration)
	ValueSent(transport string)
	SendFailed(transport string)
}

type noopMetrics struct{}

func (noopMetrics) SessionOpened(string)                        {}
func (noopMetrics) SessionClosed(string, string, time.Duration) {}
func (noopMetrics) ValueSent(string)                            {}
func (noopMetrics) SendFailed(string)                           {}

// Options configures a [Manager]. Zero values fall back to the emitter defaults.
type Options struct {
	Interval    time.Duration
	FailEvery   int64
	MaxTicks    int64
	MaxDuration time.Duration // 0 leaves sessions unbounded

	Counters   progress.CounterSource // per-session counters when nil
	Journal    Journal                // optional
	Metrics    Metrics                // optional
	Logger     *log.Logger
	GenerateID func() string // [shared.GenerateID] when nil
}

// Manager opens and tears down sessions.
type Manager struct {
	registry    *Registry
	interval    time.Duration
	failEvery   int64
	maxTicks    int64
	maxDuration time.Duration
	counters    progress.CounterSource
	journal     Journal
	metrics     Metrics
	logger      *log.Logger
	generateID  func() string

	mu      sync.Mutex
	closing bool
	wg      sync.WaitGroup
	opened  atomic.Int64
}

func NewManager(opts Options) *Manager {
	if opts.Counters == nil {
		opts.Counters = func() progress.Counter { return progress.NewCounter() }
	}
	if opts.Metrics == nil {
		opts.Metrics = noopMetrics{}
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.GenerateID == nil {
		opts.GenerateID = shared.GenerateID
	}

	return &Manager{
		registry:    NewRegistry(),
		interval:    opts.Interval,
		failEvery:   opts.FailEvery,
		maxTicks:    opts.MaxTicks,
		maxDuration: opts.MaxDuration,
		counters:    opts.Counters,
		journal:     opts.Journal,
		metrics:     opts.Metrics,
		logger:      opts.Logger,
		generateID:  opts.GenerateID,
	}
}

// Open creates a session over the connection returned by dial and starts emitting to it.
//
// The session is registered and its close callback installed before the task starts, so a connection
// that ends at any point afterwards is always torn down. If registration fails the connection is
// completed with the error and no task runs.
func (m *Manager) Open(ctx context.Context, transport string, dial Dialer) (*Session, error) {
	id := m.generateID()

	conn, err := dial(id)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s connection: %w", transport, err)
	}

	s := &Session{
		id:        id,
		transport: transport,
		createdAt: time.Now(),
		conn:      conn,
	}
	s.task = progress.New(progress.Options{
		Interval:  m.interval,
		FailEvery: m.failEvery,
		MaxTicks:  m.maxTicks,
		Counter:   m.counters(),
		Sink:      meteredSink{Conn: conn, metrics: m.metrics, transport: transport},
	})

	if err := m.register(s); err != nil {
		conn.CompleteWithError(err)
		return nil, err
	}
	m.opened.Add(1)
	m.metrics.SessionOpened(transport)

	conn.OnClose(func() { m.Teardown(id) })

	if m.maxDuration > 0 {
		s.setTimer(time.AfterFunc(m.maxDuration, func() { m.expire(id) }))
	}

	s.task.Start(ctx)
	m.logger.Debug("session opened", "session", id, "transport", transport)
	return s, nil
}

func (m *Manager) register(s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closing {
		return ErrShuttingDown
	}
	return m.registry.Register(s.id, s)
}

func (m *Manager) expire(id string) {
	if m.Teardown(id) {
		m.logger.Debug("session reached max duration", "session", id, "max_duration", m.maxDuration)
	}
}

// Teardown ends session id and reports whether this call did the work.
// Unknown or already torn down ids are a no-op.
func (m *Manager) Teardown(id string) bool {
	// counted before Take so Shutdown waits for a teardown its snapshot no longer sees
	m.wg.Add(1)
	s, ok := m.registry.Take(id)
	if !ok {
		m.wg.Done()
		return false
	}

	s.stopTimer()
	// cancel first so the emitter cannot fail on a send racing the completion below
	s.task.Cancel()
	s.conn.Complete()

	go func() {
		defer m.wg.Done()
		<-s.task.Done()
		m.record(s)
	}()
	return true
}

// record logs the outcome of an ended session and writes it to metrics and the journal.
func (m *Manager) record(s *Session) {
	state, err := s.task.State(), s.task.Err()
	emitted := s.task.Emitted()
	closedAt := time.Now()

	m.metrics.SessionClosed(s.transport, state.String(), closedAt.Sub(s.createdAt))

	logger := shared.WithLogger(m.logger, "session", s.id, "transport", s.transport)
	switch {
	case state == progress.Failed && errors.Is(err, progress.ErrSimulatedFailure):
		logger.Info("session failed", "err", err, "emitted", emitted)
	case state == progress.Failed:
		logger.Warn("session failed", "err", err, "emitted", emitted)
	default:
		logger.Info("session closed", "outcome", state, "emitted", emitted)
	}

	if m.journal == nil {
		return
	}

	rec := models.NewSessionRecord(s.id, s.transport, s.createdAt)
	rec.Close(state.String(), err, emitted, closedAt)
	if err := m.journal.Create(rec); err != nil {
		logger.Error("failed to journal session", "err", err)
	}
}

// Shutdown refuses new sessions, tears down every live one and waits until their outcomes are recorded
// or ctx ends.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closing = true
	m.mu.Unlock()

	for _, s := range m.registry.Snapshot() {
		m.Teardown(s.id)
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", shared.ErrTimeout, ctx.Err())
	}
}

// Lookup returns the live session with id.
func (m *Manager) Lookup(id string) (*Session, bool) { return m.registry.Lookup(id) }

// Active returns the number of live sessions.
func (m *Manager) Active() int { return m.registry.Len() }

// Opened returns how many sessions have been opened since the manager was created.
func (m *Manager) Opened() int64 { return m.opened.Load() }

// Snapshot describes the live sessions, oldest first.
func (m *Manager) Snapshot() []Info {
	sessions := m.registry.Snapshot()
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].createdAt.Before(sessions[j].createdAt)
	})

	infos := make([]Info, len(sessions))
	for i, s := range sessions {
		infos[i] = s.Info()
	}
	return infos
}

// meteredSink counts sends on the way to the connection.
type meteredSink struct {
	Conn
	metrics   Metrics
	transport string
}

func (s meteredSink) Send(v progress.Value) error {
	if err := s.Conn.Send(v); err != nil {
		s.metrics.SendFailed(s.transport)
		return err
	}
	s.metrics.ValueSent(s.transport)
	return nil
}
