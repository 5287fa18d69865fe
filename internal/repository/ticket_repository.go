package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/modkit/ticketing/internal/domain"
)

// ErrNotFound is returned when a ticket id or filter resolves to nothing.
var ErrNotFound = pgx.ErrNoRows

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)

	// FindOpenByRequester returns the requester's non-closed ticket, or
	// ErrNotFound when none exists.
	FindOpenByRequester(ctx context.Context, communityID, requesterID string) (*domain.Ticket, error)

	// CountByRequester counts every ticket the requester has ever opened
	// in the community, closed included.
	CountByRequester(ctx context.Context, communityID, requesterID string) (int, error)

	// ListByRequester returns the requester's most recent tickets plus the
	// total count, for history views.
	ListByRequester(ctx context.Context, communityID, requesterID string, limit int) ([]domain.Ticket, int, error)

	// ListOpen returns every non-closed ticket across communities.
	ListOpen(ctx context.Context) ([]domain.Ticket, error)

	// UpdateAssignee sets the assignee unconditionally on a non-closed
	// ticket. Last write wins.
	UpdateAssignee(ctx context.Context, id string, assigneeID string) error

	// UpdateOriginMessage records the id of the mirrored status message.
	UpdateOriginMessage(ctx context.Context, id string, originMessageID string) error

	// Close marks the ticket closed. The write is guarded: it fails with
	// ErrNotFound when the ticket is missing or already closed.
	Close(ctx context.Context, id, closedByID, resolutionReason string) error

	// RaiseNotificationLevel lifts the stored escalation level to target.
	// The write is conditional: it reports false without error when the
	// ticket closed in the meantime or already reached the target.
	RaiseNotificationLevel(ctx context.Context, id string, target int) (bool, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates the repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `
        id, sequence_num, requester_id, community_id, thread_id, origin_message_id,
        first_message_id, subject, description, assignee_id, closed_by_id,
        resolution_reason, notification_level, created_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (id, sequence_num, requester_id, community_id, thread_id,
            origin_message_id, first_message_id, subject, description, assignee_id)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        RETURNING created_at`
	return r.pool.QueryRow(ctx, query,
		ticket.ID,
		ticket.SequenceNum,
		ticket.RequesterID,
		ticket.CommunityID,
		ticket.ThreadID,
		ticket.OriginMessageID,
		ticket.FirstMessageID,
		ticket.Subject,
		ticket.Description,
		ticket.AssigneeID,
	).Scan(&ticket.CreatedAt)
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT` + ticketColumns + ` FROM tickets WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *ticketRepository) FindOpenByRequester(ctx context.Context, communityID, requesterID string) (*domain.Ticket, error) {
	query := `SELECT` + ticketColumns + `
        FROM tickets WHERE community_id=$1 AND requester_id=$2 AND closed_by_id IS NULL`
	return r.fetchSingle(ctx, query, communityID, requesterID)
}

func (r *ticketRepository) CountByRequester(ctx context.Context, communityID, requesterID string) (int, error) {
	const query = `SELECT COUNT(*) FROM tickets WHERE community_id=$1 AND requester_id=$2`
	var count int
	if err := r.pool.QueryRow(ctx, query, communityID, requesterID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *ticketRepository) ListByRequester(ctx context.Context, communityID, requesterID string, limit int) ([]domain.Ticket, int, error) {
	total, err := r.CountByRequester(ctx, communityID, requesterID)
	if err != nil {
		return nil, 0, err
	}
	if limit <= 0 {
		limit = 10
	}
	query := `SELECT` + ticketColumns + `
        FROM tickets WHERE community_id=$1 AND requester_id=$2
        ORDER BY created_at DESC LIMIT $3`
	rows, err := r.pool.Query(ctx, query, communityID, requesterID, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	tickets, err := scanTickets(rows)
	if err != nil {
		return nil, 0, err
	}
	return tickets, total, nil
}

func (r *ticketRepository) ListOpen(ctx context.Context) ([]domain.Ticket, error) {
	query := `SELECT` + ticketColumns + `
        FROM tickets WHERE closed_by_id IS NULL ORDER BY created_at`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) UpdateAssignee(ctx context.Context, id string, assigneeID string) error {
	const query = `UPDATE tickets SET assignee_id=$1 WHERE id=$2 AND closed_by_id IS NULL`
	cmd, err := r.pool.Exec(ctx, query, assigneeID, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ticketRepository) UpdateOriginMessage(ctx context.Context, id string, originMessageID string) error {
	const query = `UPDATE tickets SET origin_message_id=$1 WHERE id=$2`
	cmd, err := r.pool.Exec(ctx, query, originMessageID, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ticketRepository) Close(ctx context.Context, id, closedByID, resolutionReason string) error {
	const query = `
        UPDATE tickets SET closed_by_id=$1, resolution_reason=$2
        WHERE id=$3 AND closed_by_id IS NULL`
	cmd, err := r.pool.Exec(ctx, query, closedByID, resolutionReason, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ticketRepository) RaiseNotificationLevel(ctx context.Context, id string, target int) (bool, error) {
	// Guarded write: the closure re-check happens inside the update so a
	// ticket closed between the tick's read and this write is skipped.
	const query = `
        UPDATE tickets SET notification_level=$1
        WHERE id=$2 AND closed_by_id IS NULL AND notification_level < $1`
	cmd, err := r.pool.Exec(ctx, query, target, id)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, args ...any) (*domain.Ticket, error) {
	var ticket domain.Ticket
	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&ticket.ID,
		&ticket.SequenceNum,
		&ticket.RequesterID,
		&ticket.CommunityID,
		&ticket.ThreadID,
		&ticket.OriginMessageID,
		&ticket.FirstMessageID,
		&ticket.Subject,
		&ticket.Description,
		&ticket.AssigneeID,
		&ticket.ClosedByID,
		&ticket.ResolutionReason,
		&ticket.NotificationLevel,
		&ticket.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &ticket, nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	tickets := []domain.Ticket{}
	for rows.Next() {
		var ticket domain.Ticket
		if err := rows.Scan(
			&ticket.ID,
			&ticket.SequenceNum,
			&ticket.RequesterID,
			&ticket.CommunityID,
			&ticket.ThreadID,
			&ticket.OriginMessageID,
			&ticket.FirstMessageID,
			&ticket.Subject,
			&ticket.Description,
			&ticket.AssigneeID,
			&ticket.ClosedByID,
			&ticket.ResolutionReason,
			&ticket.NotificationLevel,
			&ticket.CreatedAt,
		); err != nil {
			return nil, err
		}
		tickets = append(tickets, ticket)
	}
	return tickets, rows.Err()
}
