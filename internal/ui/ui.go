package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/pulse/internal/progress"
	"github.com/desertthunder/pulse/internal/services"
)

// recentValues is how many counter values the stream view keeps on screen.
const recentValues = 12

// ViewState represents the current view in the TUI.
type ViewState int

const (
	StreamView ViewState = iota
	SessionsView
	ResultView
)

// Model represents the TUI application state.
type Model struct {
	ctx       context.Context
	view      ViewState
	service   services.Service
	transport string

	stop      context.CancelFunc
	events    <-chan services.StreamEvent
	sessionID string
	connected bool
	state     progress.State
	counts    []int64
	emitted   int
	started   time.Time
	ended     time.Time
	cancelled bool
	streamErr error

	sessionList list.Model
	notice      string
	width       int
	height      int
	err         error
	help        help.Model
	keys        keyMap
}

// NewModel creates a TUI that watches one stream over transport.
func NewModel(ctx context.Context, service services.Service, transport string) *Model {
	m := &Model{
		ctx:         ctx,
		view:        StreamView,
		service:     service,
		transport:   transport,
		sessionList: list.New(nil, list.NewDefaultDelegate(), 0, 0),
		help:        help.New(),
		keys:        newKeyMap(),
	}
	m.sessionList.Title = "Live Sessions"
	return m
}

// Init opens the first stream.
func (m *Model) Init() tea.Cmd {
	return m.subscribe()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.sessionList.SetSize(max(msg.Width-4, 0), max(msg.Height-8, 0))
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case StreamView:
			return m.handleStreamKeys(msg)
		case SessionsView:
			return m.handleSessionsKeys(msg)
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case Msg:
		return m.handleMsg(msg)
	}

	if m.view == SessionsView {
		var cmd tea.Cmd
		m.sessionList, cmd = m.sessionList.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgStreamOpened:
		data := msg.data.(streamOpened)
		if data.err != nil {
			m.err = data.err
			return m, nil
		}
		m.events = data.events
		return m, m.waitForEvent()

	case MsgStreamEvent:
		m.apply(msg.data.(services.StreamEvent))
		return m, m.waitForEvent()

	case MsgStreamClosed:
		m.events = nil
		if m.ended.IsZero() {
			m.ended = time.Now()
		}
		if m.view == StreamView {
			m.view = ResultView
		}
		return m, nil

	case MsgSessionsFetched:
		data := msg.data.(sessionsFetched)
		if data.err != nil {
			m.notice = fmt.Sprintf("failed to list sessions: %v", data.err)
			return m, nil
		}
		m.notice = ""
		cmd := m.sessionList.SetItems(sessionItems(data.sessions, m.sessionID))
		return m, cmd

	case MsgSessionCancelled:
		data := msg.data.(sessionCancelled)
		if data.err != nil {
			m.notice = fmt.Sprintf("failed to cancel %s: %v", data.id, data.err)
			return m, nil
		}
		m.notice = fmt.Sprintf("cancelled %s", data.id)
		if data.id == m.sessionID {
			m.cancelled = true
			if m.state == progress.Completed {
				m.state = progress.Cancelled
			}
		}
		if m.view == SessionsView {
			return m, m.fetchSessions()
		}
		return m, nil
	}
	return m, nil
}

// apply folds one stream event into the model.
func (m *Model) apply(ev services.StreamEvent) {
	switch ev.Type {
	case services.EventSession:
		m.sessionID = ev.SessionID
		m.connected = true
		m.started = time.Now()
	case services.EventValue:
		m.emitted++
		m.counts = append(m.counts, ev.Count)
		if len(m.counts) > recentValues {
			m.counts = m.counts[len(m.counts)-recentValues:]
		}
	case services.EventEnd:
		m.ended = time.Now()
		m.streamErr = ev.Err
		switch {
		case ev.Err != nil:
			m.state = progress.Failed
		case m.cancelled:
			m.state = progress.Cancelled
		default:
			m.state = progress.Completed
		}
	}
}

func (m *Model) handleStreamKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m.quit()
	case key.Matches(msg, m.keys.cancel):
		if m.sessionID != "" {
			return m, m.cancelSession(m.sessionID)
		}
	case key.Matches(msg, m.keys.sessions):
		return m.showSessions()
	}
	return m, nil
}

func (m *Model) handleSessionsKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.sessionList.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.sessionList, cmd = m.sessionList.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m.quit()
	case key.Matches(msg, m.keys.back):
		m.view = StreamView
		if m.events == nil && m.connected {
			m.view = ResultView
		}
		return m, nil
	case key.Matches(msg, m.keys.refresh):
		return m, m.fetchSessions()
	case key.Matches(msg, m.keys.cancel):
		if item, ok := m.sessionList.SelectedItem().(sessionItem); ok {
			return m, m.cancelSession(item.info.ID)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.sessionList, cmd = m.sessionList.Update(msg)
	return m, cmd
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m.quit()
	case key.Matches(msg, m.keys.restart):
		m.reset()
		return m, m.subscribe()
	case key.Matches(msg, m.keys.sessions):
		return m.showSessions()
	}
	return m, nil
}

func (m *Model) showSessions() (tea.Model, tea.Cmd) {
	m.view = SessionsView
	m.notice = ""
	return m, m.fetchSessions()
}

func (m *Model) quit() (tea.Model, tea.Cmd) {
	if m.stop != nil {
		m.stop()
	}
	return m, tea.Quit
}

// reset clears the finished stream so a new one can be opened.
func (m *Model) reset() {
	if m.stop != nil {
		m.stop()
	}
	m.view = StreamView
	m.events = nil
	m.sessionID = ""
	m.connected = false
	m.state = progress.Running
	m.counts = nil
	m.emitted = 0
	m.started = time.Time{}
	m.ended = time.Time{}
	m.cancelled = false
	m.streamErr = nil
	m.notice = ""
	m.err = nil
}

func (m *Model) subscribe() tea.Cmd {
	stream, stop := context.WithCancel(m.ctx)
	m.stop = stop
	return func() tea.Msg {
		events, err := m.service.Subscribe(stream, m.transport)
		return streamOpenedMsg(events, err)
	}
}

func (m *Model) waitForEvent() tea.Cmd {
	events := m.events
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return streamClosedMsg()
		}
		return streamEventMsg(ev)
	}
}

func (m *Model) fetchSessions() tea.Cmd {
	return func() tea.Msg {
		sessions, err := m.service.Sessions(m.ctx)
		return sessionsFetchedMsg(sessions, err)
	}
}

func (m *Model) cancelSession(id string) tea.Cmd {
	return func() tea.Msg {
		return sessionCancelledMsg(id, m.service.Cancel(m.ctx, id))
	}
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}

	switch m.view {
	case StreamView:
		return m.renderStream()
	case SessionsView:
		return m.renderSessions()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) renderStream() string {
	if !m.connected {
		return styles.help.Render(fmt.Sprintf("Connecting over %s...", m.transport))
	}

	title := styles.title.Render(fmt.Sprintf("Session %s (%s)", m.sessionID, m.transport))
	info := fmt.Sprintf("State: %s   Emitted: %d   Elapsed: %s",
		styles.State(m.state.String()), m.emitted, time.Since(m.started).Truncate(time.Second))

	helpView := m.help.ShortHelpView([]key.Binding{m.keys.cancel, m.keys.sessions, m.keys.quit})
	return fmt.Sprintf("%s\n%s\n\n%s\n%s\n\n%s", title, info, m.renderCounts(), m.renderNotice(), helpView)
}

func (m *Model) renderCounts() string {
	if len(m.counts) == 0 {
		return styles.help.Render("waiting for the first value")
	}
	values := make([]string, len(m.counts))
	for i, c := range m.counts {
		values[i] = styles.value.Render(fmt.Sprint(c))
	}
	return strings.Join(values, "")
}

func (m *Model) renderNotice() string {
	if m.notice == "" {
		return ""
	}
	return styles.warn.Render(m.notice)
}

func (m *Model) renderSessions() string {
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.cancel, m.keys.refresh, m.keys.back, m.keys.quit})
	return fmt.Sprintf("%s\n%s\n\n%s", m.sessionList.View(), m.renderNotice(), helpView)
}

func (m *Model) renderResult() string {
	var title string
	switch {
	case !m.connected:
		title = styles.err.Render("Stream closed before a session was assigned")
	case m.state == progress.Failed:
		title = styles.err.Render(fmt.Sprintf("✗ Session failed: %v", m.streamErr))
	case m.state == progress.Cancelled:
		title = styles.warn.Render("Session cancelled")
	case m.state == progress.Completed:
		title = styles.ok.Render("✓ Session complete")
	default:
		title = styles.warn.Render("Stream ended")
	}

	var elapsed time.Duration
	if !m.started.IsZero() {
		elapsed = m.ended.Sub(m.started).Truncate(time.Millisecond)
	}
	info := fmt.Sprintf("\nSession: %s\nTransport: %s\nEmitted: %d\nDuration: %s",
		m.sessionID, m.transport, m.emitted, elapsed)

	helpView := m.help.ShortHelpView([]key.Binding{m.keys.restart, m.keys.sessions, m.keys.quit})
	return fmt.Sprintf("%s\n%s\n\n%s\n%s\n\n%s", title, info, m.renderCounts(), m.renderNotice(), helpView)
}
