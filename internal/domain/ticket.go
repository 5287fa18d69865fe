package domain

import (
	"fmt"
	"time"
)

// TicketStatus is derived from the ticket's assignment and closure fields.
// It is never stored.
type TicketStatus string

const (
	TicketStatusOpen    TicketStatus = "OPEN"
	TicketStatusPending TicketStatus = "PENDING"
	TicketStatusClosed  TicketStatus = "CLOSED"
)

// Ticket is the aggregate for one support interaction. Each ticket owns a
// dedicated discussion thread; thread and pinned status message ids are
// assigned exactly once, before the document is persisted.
type Ticket struct {
	ID          string
	SequenceNum int
	RequesterID string
	CommunityID string

	ThreadID        string
	OriginMessageID *string
	FirstMessageID  string

	Subject     string
	Description string

	AssigneeID       *string
	ClosedByID       *string
	ResolutionReason *string

	// NotificationLevel counts the 24-hour overdue thresholds already
	// alerted for this ticket. Monotonically non-decreasing.
	NotificationLevel int

	CreatedAt time.Time
}

// Status computes the derived lifecycle state. Presence of ClosedByID is the
// sole authority on closure.
func (t *Ticket) Status() TicketStatus {
	switch {
	case t.ClosedByID != nil:
		return TicketStatusClosed
	case t.AssigneeID != nil:
		return TicketStatusPending
	default:
		return TicketStatusOpen
	}
}

// IsClosed reports whether the ticket reached its terminal state.
func (t *Ticket) IsClosed() bool {
	return t.ClosedByID != nil
}

// ThreadTitle renders the human-facing thread name, e.g. "3-1096372861".
func (t *Ticket) ThreadTitle() string {
	return fmt.Sprintf("%d-%s", t.SequenceNum, t.RequesterID)
}

// HoursOpen returns the whole hours elapsed since creation.
func (t *Ticket) HoursOpen(now time.Time) int {
	return int(now.Sub(t.CreatedAt).Hours())
}

// OverdueTarget computes the escalation level the ticket should carry at the
// given instant: one level per full 24 hours open.
func (t *Ticket) OverdueTarget(now time.Time) int {
	return t.HoursOpen(now) / 24
}
