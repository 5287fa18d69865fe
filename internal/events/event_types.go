package events

import (
	"time"

	"github.com/modkit/ticketing/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated  EventType = "ticket_created"
	EventTicketAssigned EventType = "ticket_assigned"
	EventTicketClosed   EventType = "ticket_closed"
	EventTicketOverdue  EventType = "ticket_overdue"
)

// Event represents a lifecycle event emitted by the ticket services.
type Event struct {
	ID        string        `json:"id"`
	Type      EventType     `json:"type"`
	Ticket    domain.Ticket `json:"ticket"`
	ActorID   string        `json:"actor_id,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
	Payload   interface{}   `json:"payload,omitempty"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	AssigneeID string `json:"assignee_id"`
	SelfClaim  bool   `json:"self_claim"`
}

// TicketClosedPayload payload.
type TicketClosedPayload struct {
	ClosedByID       string `json:"closed_by_id"`
	ResolutionReason string `json:"resolution_reason"`
}

// TicketOverduePayload payload.
type TicketOverduePayload struct {
	HoursOpen int `json:"hours_open"`
	Level     int `json:"level"`
}
