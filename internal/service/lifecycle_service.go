package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/modkit/ticketing/internal/domain"
	"github.com/modkit/ticketing/internal/events"
	"github.com/modkit/ticketing/internal/interaction"
	"github.com/modkit/ticketing/internal/platform"
	"github.com/modkit/ticketing/internal/repository"
	apperrors "github.com/modkit/ticketing/pkg/util"
)

// Control ids attached to the pinned status message.
const (
	ControlClose  = "ticket_close"
	ControlClaim  = "ticket_claim"
	ControlAssign = "ticket_assign"
)

// Control ids attached to close-confirmation prompts.
const (
	ControlConfirmClose = "ticket_close_confirm"
	ControlCancelClose  = "ticket_close_cancel"
)

const (
	colorOpen    = 0x2ecc71
	colorPending = 0xf1c40f
	colorClosed  = 0x95a5a6
)

// LifecycleService owns ticket creation, assignment and closure.
//
// Store writes are the commit point of every transition: external calls that
// fail afterwards are logged and surfaced as partial failures, never rolled
// back, so a ticket document always exists for every thread that was opened.
type LifecycleService struct {
	tickets    repository.TicketRepository
	settings   repository.SettingsRepository
	client     platform.Client
	dispatcher events.Dispatcher
	tracker    *interaction.ExpirationTracker
	logger     *zap.Logger

	maxReasonLen  int
	promptTimeout time.Duration
	now           func() time.Time
}

// LifecycleDependencies bundles collaborators for the lifecycle service.
type LifecycleDependencies struct {
	TicketRepo   repository.TicketRepository
	SettingsRepo repository.SettingsRepository
	Client       platform.Client
	Dispatcher   events.Dispatcher
	Tracker      *interaction.ExpirationTracker
	Logger       *zap.Logger

	// MaxResolutionReasonLen bounds close reasons; zero means 1000.
	MaxResolutionReasonLen int

	// PromptTimeout bounds confirmation prompts; zero means 5 minutes.
	PromptTimeout time.Duration
}

// NewLifecycleService constructs the service.
func NewLifecycleService(deps LifecycleDependencies) *LifecycleService {
	maxLen := deps.MaxResolutionReasonLen
	if maxLen <= 0 {
		maxLen = 1000
	}
	promptTimeout := deps.PromptTimeout
	if promptTimeout <= 0 {
		promptTimeout = interaction.DefaultPromptTimeout
	}
	return &LifecycleService{
		tickets:       deps.TicketRepo,
		settings:      deps.SettingsRepo,
		client:        deps.Client,
		dispatcher:    deps.Dispatcher,
		tracker:       deps.Tracker,
		logger:        deps.Logger,
		maxReasonLen:  maxLen,
		promptTimeout: promptTimeout,
		now:           time.Now,
	}
}

// CreateTicketInput describes a creation request.
type CreateTicketInput struct {
	RequesterID string
	CommunityID string

	// ChannelID is the channel the ticket thread opens under; empty means
	// the community's default thread channel.
	ChannelID string

	Subject     string
	Description string

	// AssigneeID optionally pre-assigns the ticket at creation.
	AssigneeID *string
}

// CreateTicketResult is returned by CreateTicket. When Existing is true the
// requester already had an open ticket and Ticket references it; Summary
// carries its stored subject for the redirect message.
type CreateTicketResult struct {
	Ticket   *domain.Ticket
	Existing bool
	Summary  string
}

// CreateTicket opens a new ticket: dedicated thread, pinned status message,
// persisted document, alert fan-out. A requester with a non-closed ticket is
// redirected to it instead of getting a duplicate.
func (s *LifecycleService) CreateTicket(ctx context.Context, input CreateTicketInput) (*CreateTicketResult, error) {
	settings, err := s.settings.Get(ctx, input.CommunityID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewUnconfigured("ticketing")
		}
		return nil, apperrors.MapError(err)
	}

	channelID := input.ChannelID
	if channelID == "" {
		channelID = settings.DefaultThreadChannel
	}
	if channelID == "" {
		return nil, apperrors.NewUnconfigured("ticket channel")
	}
	if !settings.ChannelEnabled(channelID) {
		return nil, apperrors.NewValidationError("channel not enabled for ticketing", map[string]any{"channel_id": channelID})
	}

	existing, err := s.tickets.FindOpenByRequester(ctx, input.CommunityID, input.RequesterID)
	if err == nil {
		return &CreateTicketResult{
			Ticket:   existing,
			Existing: true,
			Summary:  existing.Subject,
		}, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.MapError(err)
	}

	priorCount, err := s.tickets.CountByRequester(ctx, input.CommunityID, input.RequesterID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	ticket := &domain.Ticket{
		ID:          uuid.NewString(),
		SequenceNum: priorCount + 1,
		RequesterID: input.RequesterID,
		CommunityID: input.CommunityID,
		Subject:     strings.TrimSpace(input.Subject),
		Description: strings.TrimSpace(input.Description),
		AssigneeID:  input.AssigneeID,
		CreatedAt:   s.now(),
	}

	threadID, err := s.client.CreateThread(ctx, channelID, ticket.ThreadTitle())
	if err != nil {
		return nil, apperrors.NewExternalUnavailable("ticket channel", err)
	}
	ticket.ThreadID = threadID

	placeholderID, err := s.client.SendMessage(ctx, threadID, platform.Message{Content: "Preparing your ticket..."})
	if err != nil {
		return nil, apperrors.NewExternalUnavailable("ticket thread", err)
	}
	ticket.FirstMessageID = placeholderID

	if err := s.client.PinMessage(ctx, threadID, placeholderID); err != nil {
		s.logger.Warn("status message pin failed",
			zap.String("ticket_id", ticket.ID),
			zap.String("thread_id", threadID),
			zap.Error(err))
	}

	// Thread membership is granted exactly once per member, before the
	// status embed is built.
	s.addThreadMember(ctx, ticket.ID, threadID, input.RequesterID)
	if input.AssigneeID != nil && *input.AssigneeID != input.RequesterID {
		s.addThreadMember(ctx, ticket.ID, threadID, *input.AssigneeID)
	}

	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}

	// The document is committed; everything below is best effort.
	s.publish(ctx, events.Event{Type: events.EventTicketCreated, Ticket: *ticket, ActorID: input.RequesterID})

	if err := s.client.EditMessage(ctx, threadID, placeholderID, statusMessage(ticket)); err != nil {
		s.logger.Warn("status message update failed",
			zap.String("ticket_id", ticket.ID),
			zap.String("message_id", placeholderID),
			zap.Error(err))
	}

	return &CreateTicketResult{Ticket: ticket}, nil
}

// Assign sets or replaces the ticket's assignee. There is no optimistic
// concurrency control: concurrent assignments both succeed and the later
// store write wins.
func (s *LifecycleService) Assign(ctx context.Context, ticketID, newAssigneeID, actorID string) error {
	ticket, err := s.getOpen(ctx, ticketID)
	if err != nil {
		return err
	}
	if ticket.AssigneeID != nil && *ticket.AssigneeID == newAssigneeID {
		return apperrors.NewValidationError("ticket already assigned to that member", map[string]any{"assignee_id": newAssigneeID})
	}

	if err := s.tickets.UpdateAssignee(ctx, ticketID, newAssigneeID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewAlreadyClosed(ticketID)
		}
		return apperrors.MapError(err)
	}
	ticket.AssigneeID = &newAssigneeID

	var partial error
	if err := s.client.EditMessage(ctx, ticket.ThreadID, ticket.FirstMessageID, statusMessage(ticket)); err != nil {
		s.logger.Warn("status message update failed",
			zap.String("ticket_id", ticket.ID),
			zap.Error(err))
		partial = apperrors.NewExternalUnavailable("status message", err)
	}

	s.addThreadMember(ctx, ticket.ID, ticket.ThreadID, newAssigneeID)

	announcement := fmt.Sprintf("<@%s> was assigned to this ticket by <@%s>.", newAssigneeID, actorID)
	if actorID == newAssigneeID {
		announcement = fmt.Sprintf("<@%s> claimed this ticket.", newAssigneeID)
	}
	if _, err := s.client.SendMessage(ctx, ticket.ThreadID, platform.Message{Content: announcement}); err != nil {
		s.logger.Warn("assignment announcement failed",
			zap.String("ticket_id", ticket.ID),
			zap.Error(err))
		partial = apperrors.NewExternalUnavailable("ticket thread", err)
	}

	s.publish(ctx, events.Event{
		Type:    events.EventTicketAssigned,
		Ticket:  *ticket,
		ActorID: actorID,
		Payload: events.TicketAssignedPayload{AssigneeID: newAssigneeID, SelfClaim: actorID == newAssigneeID},
	})
	return partial
}

// Close performs the terminal transition: records closer and reason, strips
// the status message's controls, locks and archives the thread.
func (s *LifecycleService) Close(ctx context.Context, ticketID, closedByID, resolutionReason string) error {
	resolutionReason = strings.TrimSpace(resolutionReason)
	if resolutionReason == "" {
		return apperrors.NewValidationError("resolution reason is required", nil)
	}
	if len(resolutionReason) > s.maxReasonLen {
		return apperrors.NewValidationError("resolution reason too long", map[string]any{"max_length": s.maxReasonLen})
	}

	ticket, err := s.getOpen(ctx, ticketID)
	if err != nil {
		return err
	}

	if err := s.tickets.Close(ctx, ticketID, closedByID, resolutionReason); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Lost the race against another closer.
			return apperrors.NewAlreadyClosed(ticketID)
		}
		return apperrors.MapError(err)
	}
	ticket.ClosedByID = &closedByID
	ticket.ResolutionReason = &resolutionReason

	var partial error
	if err := s.client.EditMessage(ctx, ticket.ThreadID, ticket.FirstMessageID, statusMessage(ticket)); err != nil {
		s.logger.Warn("closure status update failed",
			zap.String("ticket_id", ticket.ID),
			zap.Error(err))
		partial = apperrors.NewExternalUnavailable("status message", err)
	}

	if err := s.client.LockThread(ctx, ticket.ThreadID); err != nil {
		s.logger.Warn("thread lock failed",
			zap.String("ticket_id", ticket.ID),
			zap.String("thread_id", ticket.ThreadID),
			zap.Error(err))
		partial = apperrors.NewExternalUnavailable("ticket thread", err)
	}

	s.publish(ctx, events.Event{
		Type:    events.EventTicketClosed,
		Ticket:  *ticket,
		ActorID: closedByID,
		Payload: events.TicketClosedPayload{ClosedByID: closedByID, ResolutionReason: resolutionReason},
	})
	return partial
}

// PromptCloseConfirmation posts a confirmation prompt in the ticket's thread
// and schedules its expiry. The prompt's controls go dead after the timeout
// unless ResolveCloseConfirmation is called first.
func (s *LifecycleService) PromptCloseConfirmation(ctx context.Context, ticketID, actorID string) (string, error) {
	ticket, err := s.getOpen(ctx, ticketID)
	if err != nil {
		return "", err
	}

	messageID, err := s.client.SendMessage(ctx, ticket.ThreadID, platform.Message{
		Content: fmt.Sprintf("<@%s>, close this ticket?", actorID),
		Controls: []platform.Control{
			{ID: ControlConfirmClose, Label: "Close ticket", Style: platform.ControlDanger},
			{ID: ControlCancelClose, Label: "Cancel", Style: platform.ControlSecondary},
		},
	})
	if err != nil {
		return "", apperrors.NewExternalUnavailable("ticket thread", err)
	}

	if s.tracker != nil {
		s.tracker.ScheduleExpiration(ticket.ThreadID, messageID, s.promptTimeout)
	}
	return messageID, nil
}

// ResolveCloseConfirmation finishes a pending prompt early, whether confirmed
// or cancelled. Safe to call for prompts that already expired.
func (s *LifecycleService) ResolveCloseConfirmation(ctx context.Context, threadID, messageID string) {
	if s.tracker == nil {
		return
	}
	s.tracker.ResolveNow(ctx, threadID, messageID)
}

// History returns the requester's most recent tickets and their total count.
func (s *LifecycleService) History(ctx context.Context, communityID, requesterID string, limit int) ([]domain.Ticket, int, error) {
	tickets, total, err := s.tickets.ListByRequester(ctx, communityID, requesterID, limit)
	if err != nil {
		return nil, 0, apperrors.MapError(err)
	}
	return tickets, total, nil
}

// Get resolves a ticket by id.
func (s *LifecycleService) Get(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

func (s *LifecycleService) getOpen(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.Get(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.IsClosed() {
		return nil, apperrors.NewAlreadyClosed(ticketID)
	}
	return ticket, nil
}

func (s *LifecycleService) addThreadMember(ctx context.Context, ticketID, threadID, userID string) {
	if err := s.client.AddThreadMember(ctx, threadID, userID); err != nil {
		s.logger.Warn("thread member add failed",
			zap.String("ticket_id", ticketID),
			zap.String("thread_id", threadID),
			zap.String("user_id", userID),
			zap.Error(err))
	}
}

func (s *LifecycleService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

// statusMessage renders the pinned status embed for the ticket's current
// state. Closed tickets carry no controls.
func statusMessage(ticket *domain.Ticket) platform.Message {
	msg := platform.Message{
		Title: fmt.Sprintf("Ticket %s", ticket.ThreadTitle()),
		Body:  ticket.Description,
		Fields: []platform.Field{
			{Name: "Requester", Value: fmt.Sprintf("<@%s>", ticket.RequesterID), Inline: true},
			{Name: "Subject", Value: ticket.Subject, Inline: true},
			{Name: "Status", Value: string(ticket.Status()), Inline: true},
		},
	}

	if ticket.AssigneeID != nil {
		msg.Fields = append(msg.Fields, platform.Field{Name: "Assignee", Value: fmt.Sprintf("<@%s>", *ticket.AssigneeID), Inline: true})
	}

	switch ticket.Status() {
	case domain.TicketStatusClosed:
		msg.Color = colorClosed
		if ticket.ResolutionReason != nil {
			msg.Fields = append(msg.Fields, platform.Field{Name: "Resolution", Value: *ticket.ResolutionReason})
		}
		// "Closed by" only when the closer is not the assignee.
		if ticket.ClosedByID != nil && (ticket.AssigneeID == nil || *ticket.AssigneeID != *ticket.ClosedByID) {
			msg.Fields = append(msg.Fields, platform.Field{Name: "Closed by", Value: fmt.Sprintf("<@%s>", *ticket.ClosedByID), Inline: true})
		}
	case domain.TicketStatusPending:
		msg.Color = colorPending
		msg.Controls = statusControls()
	default:
		msg.Color = colorOpen
		msg.Controls = statusControls()
	}
	return msg
}

func statusControls() []platform.Control {
	return []platform.Control{
		{ID: ControlClaim, Label: "Claim", Style: platform.ControlSuccess},
		{ID: ControlAssign, Label: "Assign", Style: platform.ControlSecondary},
		{ID: ControlClose, Label: "Close", Style: platform.ControlDanger},
	}
}
