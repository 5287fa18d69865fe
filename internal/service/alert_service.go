package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/modkit/ticketing/internal/domain"
	"github.com/modkit/ticketing/internal/events"
	"github.com/modkit/ticketing/internal/observability"
	"github.com/modkit/ticketing/internal/platform"
	"github.com/modkit/ticketing/internal/repository"
)

// AlertService fans ticket events out to the configured audiences: mention
// messages in the ticket thread, the community's mirrored origin message, and
// overdue notices. Delivery failures are logged, never returned to callers.
type AlertService struct {
	client   platform.Client
	tickets  repository.TicketRepository
	settings repository.SettingsRepository
	logger   *zap.Logger
	metrics  *observability.Metrics
}

// AlertDependencies bundles collaborators for the alert service.
type AlertDependencies struct {
	Client       platform.Client
	TicketRepo   repository.TicketRepository
	SettingsRepo repository.SettingsRepository
	Logger       *zap.Logger
	Metrics      *observability.Metrics
}

// NewAlertService creates the service.
func NewAlertService(deps AlertDependencies) *AlertService {
	return &AlertService{
		client:   deps.Client,
		tickets:  deps.TicketRepo,
		settings: deps.SettingsRepo,
		logger:   deps.Logger,
		metrics:  deps.Metrics,
	}
}

// RegisterHandlers subscribes to lifecycle events.
func (a *AlertService) RegisterHandlers(dispatcher events.Dispatcher) {
	dispatcher.Subscribe(events.EventTicketCreated, a.handleTicketCreated)
	dispatcher.Subscribe(events.EventTicketAssigned, a.handleStatusChanged)
	dispatcher.Subscribe(events.EventTicketClosed, a.handleStatusChanged)
}

func (a *AlertService) handleTicketCreated(ctx context.Context, event events.Event) error {
	ticket := event.Ticket
	a.metrics.RecordAlert(string(events.EventTicketCreated))

	settings := a.communitySettings(ctx, ticket.CommunityID)
	if settings != nil && settings.HasAlertTargets() {
		content := mentionList(settings.AlertRoles, settings.AlertUsers) + " a new ticket was opened."
		if _, err := a.client.SendMessage(ctx, ticket.ThreadID, platform.Message{Content: content}); err != nil {
			a.logger.Warn("creation mention failed",
				zap.String("ticket_id", ticket.ID),
				zap.String("thread_id", ticket.ThreadID),
				zap.Error(err))
		}
	}

	a.mirrorStatus(ctx, settings, &ticket)
	return nil
}

func (a *AlertService) handleStatusChanged(ctx context.Context, event events.Event) error {
	ticket := event.Ticket
	a.metrics.RecordAlert(string(event.Type))
	a.mirrorStatus(ctx, a.communitySettings(ctx, ticket.CommunityID), &ticket)
	return nil
}

// Overdue sends an escalation notice for a ticket that crossed a new
// threshold. The escalation job prefetches settings once per community and
// passes them in; settings may be nil when the community is unconfigured.
func (a *AlertService) Overdue(ctx context.Context, settings *domain.TicketingSettings, ticket *domain.Ticket, hoursOpen, level int) {
	a.metrics.RecordAlert(string(events.EventTicketOverdue))

	var mention string
	if ticket.AssigneeID != nil {
		mention = fmt.Sprintf("<@%s>", *ticket.AssigneeID)
	} else if settings != nil && settings.HasAlertTargets() {
		mention = mentionList(settings.AlertRoles, settings.AlertUsers)
	}

	content := strings.TrimSpace(fmt.Sprintf("%s ticket %s has been open for %d hours (escalation level %d): <#%s>",
		mention, ticket.ThreadTitle(), hoursOpen, level, ticket.ThreadID))

	target := ticket.ThreadID
	if settings != nil && settings.AlertChannel != "" {
		target = settings.AlertChannel
	}
	if _, err := a.client.SendMessage(ctx, target, platform.Message{Content: content}); err != nil {
		a.logger.Warn("overdue alert delivery failed",
			zap.String("ticket_id", ticket.ID),
			zap.String("channel_id", target),
			zap.Int("level", level),
			zap.Error(err))
	}
}

// mirrorStatus creates or edits the origin message in the community's alert
// channel so it tracks the ticket's derived status.
func (a *AlertService) mirrorStatus(ctx context.Context, settings *domain.TicketingSettings, ticket *domain.Ticket) {
	if settings == nil || settings.AlertChannel == "" {
		// Unconfigured: skip the mirror, nothing else fails.
		return
	}

	content := originMessageContent(ticket)
	if ticket.OriginMessageID != nil {
		if err := a.client.EditMessage(ctx, settings.AlertChannel, *ticket.OriginMessageID, platform.Message{Content: content}); err != nil {
			a.logger.Warn("origin message edit failed",
				zap.String("ticket_id", ticket.ID),
				zap.String("message_id", *ticket.OriginMessageID),
				zap.Error(err))
		}
		return
	}

	messageID, err := a.client.SendMessage(ctx, settings.AlertChannel, platform.Message{Content: content})
	if err != nil {
		a.logger.Warn("origin message send failed",
			zap.String("ticket_id", ticket.ID),
			zap.String("channel_id", settings.AlertChannel),
			zap.Error(err))
		return
	}
	if err := a.tickets.UpdateOriginMessage(ctx, ticket.ID, messageID); err != nil {
		a.logger.Warn("origin message id not persisted",
			zap.String("ticket_id", ticket.ID),
			zap.String("message_id", messageID),
			zap.Error(err))
	}
}

func (a *AlertService) communitySettings(ctx context.Context, communityID string) *domain.TicketingSettings {
	settings, err := a.settings.Get(ctx, communityID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			a.logger.Warn("settings lookup failed", zap.String("community_id", communityID), zap.Error(err))
		}
		return nil
	}
	return settings
}

// originMessageContent renders the mirrored status line; the trailing clause
// is the ticket's derived status.
func originMessageContent(ticket *domain.Ticket) string {
	return fmt.Sprintf("Ticket %s from <@%s>: %s — %s",
		ticket.ThreadTitle(), ticket.RequesterID, ticket.Subject, ticket.Status())
}

func mentionList(roles, users []string) string {
	mentions := make([]string, 0, len(roles)+len(users))
	for _, role := range roles {
		mentions = append(mentions, fmt.Sprintf("<@&%s>", role))
	}
	for _, user := range users {
		mentions = append(mentions, fmt.Sprintf("<@%s>", user))
	}
	return strings.Join(mentions, " ")
}
