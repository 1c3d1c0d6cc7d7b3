// Package events publishes notifications about index changes so other
// services can react to new or removed content.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event types.
const (
	TypeIngestCompleted = "ingest.completed"
	TypeVerticalReset   = "vertical.reset"
	TypeResetAll        = "reset.all"
)

// VerticalResult is one vertical's outcome inside an ingest event.
type VerticalResult struct {
	Stored     bool   `json:"stored"`
	ChunkCount int    `json:"chunk_count"`
	Error      string `json:"error,omitempty"`
}

// Event is the JSON body of every published message.
type Event struct {
	ID         string                    `json:"id"`
	Type       string                    `json:"type"`
	Time       time.Time                 `json:"time"`
	DocumentID string                    `json:"document_id,omitempty"`
	Verticals  []string                  `json:"verticals,omitempty"`
	Results    map[string]VerticalResult `json:"results,omitempty"`
}

// New returns an event of the given type with a fresh id and timestamp.
func New(eventType string) Event {
	return Event{
		ID:   uuid.NewString(),
		Type: eventType,
		Time: time.Now().UTC(),
	}
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Nop discards every event.
type Nop struct{}

// Publish does nothing.
func (Nop) Publish(context.Context, Event) error { return nil }

// Close does nothing.
func (Nop) Close() error { return nil }

var _ Publisher = Nop{}
