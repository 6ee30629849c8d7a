package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/pulse/internal/services"
	"github.com/desertthunder/pulse/internal/session"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgStreamOpened MsgKind = iota
	MsgStreamEvent
	MsgStreamClosed
	MsgSessionsFetched
	MsgSessionCancelled
)

type streamOpened struct {
	events <-chan services.StreamEvent
	err    error
}

type sessionsFetched struct {
	sessions []session.Info
	err      error
}

type sessionCancelled struct {
	id  string
	err error
}

// streamOpenedMsg is the constructor for [MsgStreamOpened]
func streamOpenedMsg(events <-chan services.StreamEvent, err error) Msg {
	return Msg{kind: MsgStreamOpened, data: streamOpened{events, err}}
}

// streamEventMsg is the constructor for [MsgStreamEvent]
func streamEventMsg(ev services.StreamEvent) Msg {
	return Msg{kind: MsgStreamEvent, data: ev}
}

// streamClosedMsg is the constructor for [MsgStreamClosed]
func streamClosedMsg() Msg {
	return Msg{kind: MsgStreamClosed}
}

// sessionsFetchedMsg is the constructor for [MsgSessionsFetched]
func sessionsFetchedMsg(sessions []session.Info, err error) Msg {
	return Msg{kind: MsgSessionsFetched, data: sessionsFetched{sessions, err}}
}

// sessionCancelledMsg is the constructor for [MsgSessionCancelled]
func sessionCancelledMsg(id string, err error) Msg {
	return Msg{kind: MsgSessionCancelled, data: sessionCancelled{id, err}}
}
