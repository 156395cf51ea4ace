// Package events publishes domain events for out-of-process consumers such
// as a mailer. Publishing is best effort and never fails a request.
package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/matthew-heyner/family-finance/internal/log"
)

const (
	UserRegistered         = "user.registered"
	PasswordResetRequested = "auth.password_reset_requested"
	TransactionCreated     = "transaction.created"
	TransactionApproved    = "transaction.approved"
	BudgetCreated          = "budget.created"
	MemberAdded            = "family.member_added"
)

// Event is the message body. Payload carries event-specific fields.
type Event struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	UserID     uint           `json:"userId,omitempty"`
	FamilyID   *uint          `json:"familyId,omitempty"`
	Payload    map[string]any `json:"payload,omitempty"`
	OccurredAt time.Time      `json:"occurredAt"`
}

// New stamps an event with a fresh id and the current time.
func New(name string, userID uint, familyID *uint, payload map[string]any) Event {
	return Event{
		ID:         uuid.NewString(),
		Name:       name,
		UserID:     userID,
		FamilyID:   familyID,
		Payload:    payload,
		OccurredAt: time.Now().UTC(),
	}
}

func (e Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// Emit publishes ev and logs, rather than returns, any failure.
func Emit(ctx context.Context, p Publisher, ev Event) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, ev); err != nil {
		log.FromContext(ctx).WithComponent(log.ComponentAMQP).
			WarnContext(ctx, "publish event failed", log.FieldEvent, ev.Name, log.FieldError, err)
	}
}

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                         { return nil }

// MemoryPublisher keeps events in memory.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (m *MemoryPublisher) Publish(_ context.Context, ev Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

func (m *MemoryPublisher) Close() error { return nil }

// Events returns a copy of everything published so far.
func (m *MemoryPublisher) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}

// Last returns the most recent event named name.
func (m *MemoryPublisher) Last(name string) (Event, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.events) - 1; i >= 0; i-- {
		if m.events[i].Name == name {
			return m.events[i], true
		}
	}
	return Event{}, false
}
