package dto

import (
	"time"

	"github.com/modkit/ticketing/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	CommunityID string  `json:"community_id"`
	ChannelID   string  `json:"channel_id"`
	Subject     string  `json:"subject"`
	Description string  `json:"description"`
	AssigneeID  *string `json:"assignee_id"`
}

// AssignTicketRequest payload.
type AssignTicketRequest struct {
	AssigneeID string `json:"assignee_id"`
}

// CloseTicketRequest payload.
type CloseTicketRequest struct {
	ResolutionReason string `json:"resolution_reason"`
}

// TicketResponse mirrors the ticket document plus its derived status.
type TicketResponse struct {
	ID                string              `json:"id"`
	SequenceNum       int                 `json:"sequence_num"`
	RequesterID       string              `json:"requester_id"`
	CommunityID       string              `json:"community_id"`
	ThreadID          string              `json:"thread_id"`
	Subject           string              `json:"subject"`
	Status            domain.TicketStatus `json:"status"`
	AssigneeID        *string             `json:"assignee_id"`
	ClosedByID        *string             `json:"closed_by_id"`
	ResolutionReason  *string             `json:"resolution_reason"`
	NotificationLevel int                 `json:"notification_level"`
	CreatedAt         time.Time           `json:"created_at"`
}

// CreateTicketResponse wraps creation results; Existing marks the redirect
// to a still-open ticket.
type CreateTicketResponse struct {
	Ticket   TicketResponse `json:"ticket"`
	Existing bool           `json:"existing"`
	Summary  string         `json:"summary,omitempty"`
}

// TicketHistoryResponse lists a requester's recent tickets.
type TicketHistoryResponse struct {
	Total   int              `json:"total"`
	Tickets []TicketResponse `json:"tickets"`
}

// FromTicket maps a domain ticket to its response shape.
func FromTicket(ticket *domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:                ticket.ID,
		SequenceNum:       ticket.SequenceNum,
		RequesterID:       ticket.RequesterID,
		CommunityID:       ticket.CommunityID,
		ThreadID:          ticket.ThreadID,
		Subject:           ticket.Subject,
		Status:            ticket.Status(),
		AssigneeID:        ticket.AssigneeID,
		ClosedByID:        ticket.ClosedByID,
		ResolutionReason:  ticket.ResolutionReason,
		NotificationLevel: ticket.NotificationLevel,
		CreatedAt:         ticket.CreatedAt,
	}
}
