package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Type names a session lifecycle event.
type Type string

const (
	SessionStarted   Type = "session.started"
	MessageReceived  Type = "message.received"
	SessionEscalated Type = "session.escalated"
	SessionResolved  Type = "session.resolved"
)

// Event is the envelope emitted at each lifecycle decision point.
type Event struct {
	ID        uuid.UUID      `json:"id"`
	Type      Type           `json:"type"`
	CompanyID string         `json:"company_id"`
	SessionID uuid.UUID      `json:"session_id"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// New builds an event envelope with a fresh id and UTC timestamp.
func New(t Type, companyID string, sessionID uuid.UUID, data map[string]any) Event {
	return Event{
		ID:        uuid.New(),
		Type:      t,
		CompanyID: companyID,
		SessionID: sessionID,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// Sink receives events. Delivery is best-effort and fire-and-forget: the
// session flow logs a returned error and moves on.
type Sink interface {
	Emit(ctx context.Context, evt Event) error
}

// MultiSink fans an event out to several sinks, returning the first error
// after attempting all of them.
type MultiSink []Sink

func (m MultiSink) Emit(ctx context.Context, evt Event) error {
	var first error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Emit(ctx, evt); err != nil && first == nil {
			first = err
		}
	}
	return first
}
