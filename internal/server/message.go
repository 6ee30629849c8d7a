package server

import (
	"bytes"
	"encoding/json"
)

// Event is a message suitable for sending over a Server-Sent Event stream.
type Event struct {
	Event string // event type, omitted for plain data frames
	Data  []byte // payload, split into one data line per input line
}

// Format returns the wire form of e, terminated by a blank line.
func (e Event) Format() []byte {
	b := make([]byte, 0, 6+len(e.Event)+1+5+len(e.Data)+2)
	if e.Event != "" {
		b = append(b, "event:"...)
		b = append(b, e.Event...)
		b = append(b, '\n')
	}
	for _, line := range bytes.Split(e.Data, []byte("\n")) {
		b = append(b, "data:"...)
		b = append(b, line...)
		b = append(b, '\n')
	}
	return append(b, '\n')
}

var keepaliveFrame = []byte(":keepalive\n\n")

// errorPayload is the body of the terminal error event.
type errorPayload struct {
	Error string `json:"error"`
}

// sessionPayload is the first WebSocket frame of a session.
type sessionPayload struct {
	Session string `json:"session"`
}

func errorEvent(err error) Event {
	data, _ := json.Marshal(errorPayload{Error: err.Error()})
	return Event{Event: "error", Data: data}
}
