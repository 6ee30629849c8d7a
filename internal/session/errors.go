package session

import "errors"

var (
	ErrDuplicateSession = errors.New("session already registered")
	ErrShuttingDown     = errors.New("session manager is shutting down")
)
