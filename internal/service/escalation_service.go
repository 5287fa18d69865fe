package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/modkit/ticketing/internal/domain"
	"github.com/modkit/ticketing/internal/observability"
	"github.com/modkit/ticketing/internal/repository"
	"github.com/modkit/ticketing/internal/scheduler"
)

// EscalationJobName keys the overdue job in the process job registry.
const EscalationJobName = "overdue-escalation"

// EscalationService re-evaluates every open ticket's age once per tick and
// escalates those that crossed a new threshold. The stored notification
// level, not elapsed time alone, decides whether to alert, so each threshold
// fires at most once no matter how many ticks observe it. A ticket that
// crossed several thresholds while the job was down gets exactly one alert
// at its current level; no backlog is replayed.
type EscalationService struct {
	tickets  repository.TicketRepository
	settings repository.SettingsRepository
	alerts   *AlertService
	logger   *zap.Logger
	metrics  *observability.Metrics

	thresholdHours int
	now            func() time.Time
}

// EscalationDependencies bundles collaborators for the escalation job.
type EscalationDependencies struct {
	TicketRepo   repository.TicketRepository
	SettingsRepo repository.SettingsRepository
	Alerts       *AlertService
	Logger       *zap.Logger
	Metrics      *observability.Metrics

	// ThresholdHours is the size of one escalation step; zero means 24.
	ThresholdHours int
}

// NewEscalationService creates the job.
func NewEscalationService(deps EscalationDependencies) *EscalationService {
	threshold := deps.ThresholdHours
	if threshold <= 0 {
		threshold = 24
	}
	return &EscalationService{
		tickets:        deps.TicketRepo,
		settings:       deps.SettingsRepo,
		alerts:         deps.Alerts,
		logger:         deps.Logger,
		metrics:        deps.Metrics,
		thresholdHours: threshold,
		now:            time.Now,
	}
}

// Task adapts the job for the periodic scheduler.
func (s *EscalationService) Task() scheduler.TaskFunc {
	return s.Tick
}

// Tick runs one escalation pass.
func (s *EscalationService) Tick(ctx context.Context) error {
	open, err := s.tickets.ListOpen(ctx)
	if err != nil {
		s.metrics.RecordJobTick(EscalationJobName, true)
		return err
	}

	// Group per community so settings are fetched once per group.
	byCommunity := make(map[string][]domain.Ticket)
	for _, ticket := range open {
		byCommunity[ticket.CommunityID] = append(byCommunity[ticket.CommunityID], ticket)
	}

	now := s.now()
	escalated := 0
	for communityID, tickets := range byCommunity {
		settings := s.communitySettings(ctx, communityID)
		for i := range tickets {
			if s.escalate(ctx, settings, &tickets[i], now) {
				escalated++
			}
		}
	}

	s.metrics.RecordJobTick(EscalationJobName, false)
	s.logger.Debug("escalation tick complete",
		zap.Int("open_tickets", len(open)),
		zap.Int("escalated", escalated))
	return nil
}

// escalate raises one ticket's notification level when due and reports
// whether an alert was sent.
func (s *EscalationService) escalate(ctx context.Context, settings *domain.TicketingSettings, ticket *domain.Ticket, now time.Time) bool {
	hoursOpen := ticket.HoursOpen(now)
	target := hoursOpen / s.thresholdHours
	if target <= ticket.NotificationLevel {
		return false
	}

	// The guarded write re-checks closure and level, so a ticket closed
	// since the scan, or escalated by a concurrent tick, is skipped.
	raised, err := s.tickets.RaiseNotificationLevel(ctx, ticket.ID, target)
	if err != nil {
		s.logger.Warn("notification level update failed",
			zap.String("ticket_id", ticket.ID),
			zap.Int("target_level", target),
			zap.Error(err))
		return false
	}
	if !raised {
		return false
	}

	ticket.NotificationLevel = target
	s.alerts.Overdue(ctx, settings, ticket, hoursOpen, target)
	return true
}

func (s *EscalationService) communitySettings(ctx context.Context, communityID string) *domain.TicketingSettings {
	settings, err := s.settings.Get(ctx, communityID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn("settings lookup failed", zap.String("community_id", communityID), zap.Error(err))
		}
		return nil
	}
	return settings
}
