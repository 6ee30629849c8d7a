package services

import (
	"context"

	"github.com/desertthunder/pulse/internal/server"
	"github.com/desertthunder/pulse/internal/session"
)

// Service is a client of a running pulse server.
type Service interface {
	// Status fetches the server's reporting status.
	Status(ctx context.Context) (*server.ReportingStatus, error)

	// Sessions lists the live sessions, oldest first.
	Sessions(ctx context.Context) ([]session.Info, error)

	// Session fetches a single live session.
	Session(ctx context.Context, id string) (*session.Info, error)

	// Cancel tears down a live session.
	Cancel(ctx context.Context, id string) error

	// Subscribe opens a progress stream over the given transport ("sse" or "ws").
	// The returned channel is closed when the stream ends or ctx is cancelled.
	Subscribe(ctx context.Context, transport string) (<-chan StreamEvent, error)
}

var _ Service = (*APIService)(nil)
