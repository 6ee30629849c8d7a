package server

import "errors"

var (
	// ErrConnectionClosed is returned by Send once a connection has stopped accepting values.
	ErrConnectionClosed = errors.New("connection closed")
	// ErrSlowClient is returned by Send when the outbound queue is full.
	ErrSlowClient = errors.New("client is not keeping up")

	ErrStreamingUnsupported = errors.New("response writer does not support streaming")
)
