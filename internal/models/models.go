// package models defines the data model for the pulse journal
package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Model defines the base interface for all persistent models.
type Model interface {
	ID() string           // ID returns the unique identifier for this model
	CreatedAt() time.Time // CreatedAt returns when this model was created
	Validate() error      // Validate checks if the model's data is valid and returns an error if not
}

// Repository defines the interface for data access operations.
// Implementations handle database interactions for specific model types.
type Repository[T Model] interface {
	Create(model T) error                      // Create inserts a new model into the database
	Get(id string) (T, error)                  // Get retrieves a model by its ID
	List(criteria map[string]any) ([]T, error) // List retrieves all models matching the given criteria
}

// Session outcomes, matching the terminal emitter states.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
)

// SessionRecord is the journal entry for one ended streaming session.
type SessionRecord struct {
	id        string
	sequence  int
	transport string
	outcome   string
	errMsg    string
	emitted   int64
	openedAt  time.Time
	closedAt  time.Time
}

// NewSessionRecord creates a record for the session id opened over transport at openedAt.
// Call [SessionRecord.Close] before persisting it.
func NewSessionRecord(id, transport string, openedAt time.Time) *SessionRecord {
	return &SessionRecord{id: id, transport: transport, openedAt: openedAt}
}

// Close fills in how the session ended.
func (s *SessionRecord) Close(outcome string, err error, emitted int64, closedAt time.Time) {
	s.outcome = outcome
	s.emitted = emitted
	s.closedAt = closedAt
	if err != nil {
		s.errMsg = err.Error()
	}
}

func (s *SessionRecord) ID() string           { return s.id }
func (s *SessionRecord) Sequence() int        { return s.sequence }
func (s *SessionRecord) Transport() string    { return s.transport }
func (s *SessionRecord) Outcome() string      { return s.outcome }
func (s *SessionRecord) Error() string        { return s.errMsg }
func (s *SessionRecord) Emitted() int64       { return s.emitted }
func (s *SessionRecord) OpenedAt() time.Time  { return s.openedAt }
func (s *SessionRecord) ClosedAt() time.Time  { return s.closedAt }
func (s *SessionRecord) CreatedAt() time.Time { return s.openedAt }

// Duration is the wall time between open and close.
func (s *SessionRecord) Duration() time.Duration { return s.closedAt.Sub(s.openedAt) }

func (s *SessionRecord) SetSequence(seq int) { s.sequence = seq }

// Validate checks that the record describes an ended session.
func (s *SessionRecord) Validate() error {
	switch {
	case s.id == "":
		return fmt.Errorf("session id is required")
	case s.transport == "":
		return fmt.Errorf("session transport is required")
	case s.closedAt.IsZero():
		return fmt.Errorf("session %s has not been closed", s.id)
	case s.closedAt.Before(s.openedAt):
		return fmt.Errorf("session %s closed before it opened", s.id)
	}

	switch s.outcome {
	case OutcomeCompleted, OutcomeFailed, OutcomeCancelled:
		return nil
	default:
		return fmt.Errorf("unknown session outcome %q", s.outcome)
	}
}

func (s *SessionRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID        string    `json:"id"`
		Sequence  int       `json:"sequence"`
		Transport string    `json:"transport"`
		Outcome   string    `json:"outcome"`
		Error     string    `json:"error,omitempty"`
		Emitted   int64     `json:"emitted"`
		OpenedAt  time.Time `json:"opened_at"`
		ClosedAt  time.Time `json:"closed_at"`
		Duration  string    `json:"duration"`
	}{
		ID:        s.id,
		Sequence:  s.sequence,
		Transport: s.transport,
		Outcome:   s.outcome,
		Error:     s.errMsg,
		Emitted:   s.emitted,
		OpenedAt:  s.openedAt,
		ClosedAt:  s.closedAt,
		Duration:  s.Duration().String(),
	})
}
