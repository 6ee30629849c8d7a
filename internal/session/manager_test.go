package session

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/desertthunder/pulse/internal/models"
	"github.com/desertthunder/pulse/internal/progress"
	"github.com/desertthunder/pulse/internal/shared"
	tu "github.com/desertthunder/pulse/internal/testing"
)

const tick = 5 * time.Millisecond

type memoryJournal struct {
	mu      sync.Mutex
	records []*models.SessionRecord
}

func (j *memoryJournal) Create(rec *models.SessionRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.records = append(j.records, rec)
	return nil
}

func (j *memoryJournal) Records() []*models.SessionRecord {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]*models.SessionRecord(nil), j.records...)
}

type countingMetrics struct {
	mu       sync.Mutex
	opened   int
	closed   map[string]int
	sent     int
	failures int
}

func (c *countingMetrics) SessionOpened(string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opened++
}

func (c *countingMetrics) SessionClosed(_, outcome string, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed == nil {
		c.closed = make(map[string]int)
	}
	c.closed[outcome]++
}

func (c *countingMetrics) ValueSent(string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent++
}

func (c *countingMetrics) SendFailed(string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures++
}

func (c *countingMetrics) Closed(outcome string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed[outcome]
}

func newTestManager(t *testing.T, opts Options) (*Manager, *memoryJournal) {
	t.Helper()
	journal := &memoryJournal{}
	if opts.Interval == 0 {
		opts.Interval = tick
	}
	opts.Journal = journal
	opts.Logger = shared.NewLogger(io.Discard)

	m := NewManager(opts)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = m.Shutdown(ctx)
	})
	return m, journal
}

func fakeDialer(conns chan<- *tu.FakeConn) Dialer {
	return func(string) (Conn, error) {
		c := tu.NewFakeConn()
		if conns != nil {
			conns <- c
		}
		return c, nil
	}
}

func open(t *testing.T, m *Manager) (*Session, *tu.FakeConn) {
	t.Helper()
	conns := make(chan *tu.FakeConn, 1)
	s, err := m.Open(context.Background(), "fake", fakeDialer(conns))
	require.NoError(t, err)
	return s, <-conns
}

func waitRecorded(t *testing.T, j *memoryJournal, n int) []*models.SessionRecord {
	t.Helper()
	require.Eventually(t, func() bool { return len(j.Records()) >= n }, 2*time.Second, tick)
	return j.Records()
}

func TestManagerOpen(t *testing.T) {
	t.Run("registers and starts emitting", func(t *testing.T) {
		m, _ := newTestManager(t, Options{})
		s, conn := open(t, m)

		got, ok := m.Lookup(s.ID())
		require.True(t, ok)
		assert.Same(t, s, got)
		assert.Equal(t, "fake", s.Transport())
		assert.Equal(t, 1, m.Active())
		assert.Equal(t, int64(1), m.Opened())

		require.Eventually(t, func() bool { return len(conn.Values()) >= 2 }, time.Second, tick)
	})

	t.Run("ids are unique across concurrent opens", func(t *testing.T) {
		m, _ := newTestManager(t, Options{Interval: time.Hour})

		const n = 50
		ids := make(chan string, n)
		var wg sync.WaitGroup
		for range n {
			wg.Add(1)
			go func() {
				defer wg.Done()
				s, err := m.Open(context.Background(), "fake", fakeDialer(nil))
				if assert.NoError(t, err) {
					ids <- s.ID()
				}
			}()
		}
		wg.Wait()
		close(ids)

		seen := make(map[string]bool)
		for id := range ids {
			assert.False(t, seen[id], "duplicate id %s", id)
			seen[id] = true
		}
		assert.Len(t, seen, n)
		assert.Equal(t, n, m.Active())
	})

	t.Run("duplicate id completes the connection with an error", func(t *testing.T) {
		m, _ := newTestManager(t, Options{
			Interval:   time.Hour,
			GenerateID: func() string { return "fixed" },
		})
		_, _ = open(t, m)

		conns := make(chan *tu.FakeConn, 1)
		_, err := m.Open(context.Background(), "fake", fakeDialer(conns))
		require.ErrorIs(t, err, ErrDuplicateSession)

		conn := <-conns
		assert.ErrorIs(t, conn.Err(), ErrDuplicateSession)
		assert.Empty(t, conn.Values())
		assert.Equal(t, 1, m.Active())
	})

	t.Run("dial error", func(t *testing.T) {
		m, _ := newTestManager(t, Options{})
		dialErr := errors.New("upgrade refused")

		_, err := m.Open(context.Background(), "fake", func(string) (Conn, error) { return nil, dialErr })
		assert.ErrorIs(t, err, dialErr)
		assert.Zero(t, m.Active())
	})
}

func TestManagerLifecycle(t *testing.T) {
	t.Run("simulated failure ends and removes the session", func(t *testing.T) {
		metrics := &countingMetrics{}
		m, journal := newTestManager(t, Options{FailEvery: 5, Metrics: metrics})
		s, conn := open(t, m)

		select {
		case <-conn.Closed():
		case <-time.After(2 * time.Second):
			t.Fatal("connection was not completed")
		}

		assert.Equal(t, []int64{2, 3, 4}, conn.Counts())
		assert.ErrorIs(t, conn.Err(), progress.ErrSimulatedFailure)

		records := waitRecorded(t, journal, 1)
		assert.Equal(t, s.ID(), records[0].ID())
		assert.Equal(t, models.OutcomeFailed, records[0].Outcome())
		assert.Contains(t, records[0].Error(), "simulated failure")
		assert.Equal(t, int64(3), records[0].Emitted())

		_, ok := m.Lookup(s.ID())
		assert.False(t, ok)
		assert.Equal(t, 1, metrics.Closed(models.OutcomeFailed))
	})

	t.Run("teardown twice only cleans up once", func(t *testing.T) {
		m, journal := newTestManager(t, Options{})
		s, conn := open(t, m)

		assert.True(t, m.Teardown(s.ID()))
		assert.False(t, m.Teardown(s.ID()))
		assert.False(t, m.Teardown("unknown"))

		waitRecorded(t, journal, 1)
		time.Sleep(4 * tick)
		assert.Len(t, journal.Records(), 1)
		assert.Equal(t, models.OutcomeCancelled, journal.Records()[0].Outcome())
		assert.True(t, conn.Completed())
		assert.NoError(t, conn.Err())
	})

	t.Run("peer disconnect cancels the task", func(t *testing.T) {
		m, journal := newTestManager(t, Options{})
		s, conn := open(t, m)

		require.Eventually(t, func() bool { return len(conn.Values()) >= 1 }, time.Second, tick)
		conn.Disconnect()

		<-s.Task().Done()
		sent := len(conn.Values())
		time.Sleep(4 * tick)

		assert.Equal(t, progress.Cancelled, s.Task().State())
		assert.Len(t, conn.Values(), sent)
		assert.Zero(t, m.Active())

		records := waitRecorded(t, journal, 1)
		assert.Equal(t, models.OutcomeCancelled, records[0].Outcome())
	})

	t.Run("closing one session leaves another running", func(t *testing.T) {
		m, _ := newTestManager(t, Options{})
		first, firstConn := open(t, m)
		second, secondConn := open(t, m)

		firstConn.Disconnect()
		<-first.Task().Done()

		before := len(secondConn.Values())
		require.Eventually(t, func() bool { return len(secondConn.Values()) > before }, time.Second, tick)

		_, ok := m.Lookup(second.ID())
		assert.True(t, ok)
		assert.Equal(t, progress.Running, second.Task().State())
	})

	t.Run("max ticks completes normally", func(t *testing.T) {
		m, journal := newTestManager(t, Options{MaxTicks: 2})
		_, conn := open(t, m)

		records := waitRecorded(t, journal, 1)
		assert.Equal(t, models.OutcomeCompleted, records[0].Outcome())
		assert.Equal(t, []int64{2, 3}, conn.Counts())
		assert.NoError(t, conn.Err())
	})

	t.Run("max duration tears the session down", func(t *testing.T) {
		m, journal := newTestManager(t, Options{Interval: time.Hour, MaxDuration: 2 * tick})
		_, conn := open(t, m)

		records := waitRecorded(t, journal, 1)
		assert.Equal(t, models.OutcomeCancelled, records[0].Outcome())
		assert.True(t, conn.Completed())
		assert.NoError(t, conn.Err())
	})

	t.Run("global counter is shared between sessions", func(t *testing.T) {
		counters, err := progress.NewCounterSource(progress.ScopeGlobal)
		require.NoError(t, err)

		m, journal := newTestManager(t, Options{MaxTicks: 2, Counters: counters})
		_, first := open(t, m)
		waitRecorded(t, journal, 1)
		_, second := open(t, m)
		waitRecorded(t, journal, 2)

		assert.Equal(t, []int64{2, 3}, first.Counts())
		assert.Equal(t, []int64{4, 5}, second.Counts())
	})

	t.Run("snapshot is ordered by age", func(t *testing.T) {
		m, _ := newTestManager(t, Options{Interval: time.Hour})
		first, _ := open(t, m)
		time.Sleep(time.Millisecond)
		second, _ := open(t, m)

		infos := m.Snapshot()
		require.Len(t, infos, 2)
		assert.Equal(t, first.ID(), infos[0].ID)
		assert.Equal(t, second.ID(), infos[1].ID)
		assert.Equal(t, "running", infos[0].State)
	})
}

func TestManagerShutdown(t *testing.T) {
	m, journal := newTestManager(t, Options{})
	_, a := open(t, m)
	_, b := open(t, m)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, m.Shutdown(ctx))

	assert.Zero(t, m.Active())
	assert.True(t, a.Completed())
	assert.True(t, b.Completed())
	assert.Len(t, journal.Records(), 2)

	conns := make(chan *tu.FakeConn, 1)
	_, err := m.Open(context.Background(), "fake", fakeDialer(conns))
	assert.ErrorIs(t, err, ErrShuttingDown)
	assert.ErrorIs(t, (<-conns).Err(), ErrShuttingDown)
}

// slowConn takes a while to complete, holding a teardown between Take and recording.
type slowConn struct {
	*tu.FakeConn
	completing chan struct{}
	once       sync.Once
}

func (c *slowConn) Complete() {
	c.once.Do(func() { close(c.completing) })
	time.Sleep(100 * time.Millisecond)
	c.FakeConn.Complete()
}

func TestManagerShutdownWaitsForTeardown(t *testing.T) {
	m, journal := newTestManager(t, Options{Interval: time.Hour})

	conn := &slowConn{FakeConn: tu.NewFakeConn(), completing: make(chan struct{})}
	s, err := m.Open(context.Background(), "fake", func(string) (Conn, error) { return conn, nil })
	require.NoError(t, err)

	go m.Teardown(s.ID())
	<-conn.completing

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, m.Shutdown(ctx))

	records := journal.Records()
	require.Len(t, records, 1)
	assert.Equal(t, s.ID(), records[0].ID())
	assert.Equal(t, models.OutcomeCancelled, records[0].Outcome())
}
