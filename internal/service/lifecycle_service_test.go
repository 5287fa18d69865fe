package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/modkit/ticketing/internal/domain"
	"github.com/modkit/ticketing/internal/events"
	"github.com/modkit/ticketing/internal/observability"
	"github.com/modkit/ticketing/internal/platform"
	apperrors "github.com/modkit/ticketing/pkg/util"
)

const (
	testCommunity    = "guild-1"
	testChannel      = "chan-tickets"
	testAlertChannel = "chan-alerts"
)

type lifecycleFixture struct {
	svc      *LifecycleService
	alerts   *AlertService
	tickets  *fakeTicketRepo
	settings *fakeSettingsRepo
	plat     *fakePlatform
}

func newLifecycleFixture(t *testing.T) *lifecycleFixture {
	t.Helper()

	tickets := newFakeTicketRepo()
	settings := newFakeSettingsRepo()
	plat := newFakePlatform()
	logger := zap.NewNop()
	metrics := observability.NewMetrics()

	require.NoError(t, settings.Upsert(context.Background(), &domain.TicketingSettings{
		CommunityID:          testCommunity,
		DefaultThreadChannel: testChannel,
		TicketingChannels:    []string{testChannel},
		AlertRoles:           []string{"role-mod"},
		AlertChannel:         testAlertChannel,
	}))

	dispatcher := events.NewInMemoryDispatcher()
	alerts := NewAlertService(AlertDependencies{
		Client:       plat,
		TicketRepo:   tickets,
		SettingsRepo: settings,
		Logger:       logger,
		Metrics:      metrics,
	})
	alerts.RegisterHandlers(dispatcher)

	svc := NewLifecycleService(LifecycleDependencies{
		TicketRepo:   tickets,
		SettingsRepo: settings,
		Client:       plat,
		Dispatcher:   dispatcher,
		Logger:       logger,
	})

	return &lifecycleFixture{svc: svc, alerts: alerts, tickets: tickets, settings: settings, plat: plat}
}

func (f *lifecycleFixture) create(t *testing.T, requesterID string) *domain.Ticket {
	t.Helper()
	result, err := f.svc.CreateTicket(context.Background(), CreateTicketInput{
		RequesterID: requesterID,
		CommunityID: testCommunity,
		ChannelID:   testChannel,
		Subject:     "cannot join voice",
		Description: "voice channels reject me",
	})
	require.NoError(t, err)
	require.False(t, result.Existing)
	return result.Ticket
}

func TestCreateTicket(t *testing.T) {
	f := newLifecycleFixture(t)

	ticket := f.create(t, "user-1")

	require.Equal(t, 1, ticket.SequenceNum)
	require.Equal(t, domain.TicketStatusOpen, ticket.Status())
	require.Len(t, f.plat.Threads, 1)
	require.Equal(t, ticket.ThreadID, f.plat.Threads[0])
	require.Contains(t, f.plat.Pinned, ticket.FirstMessageID)
	require.Contains(t, f.plat.Members[ticket.ThreadID], "user-1")

	stored, err := f.tickets.GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	require.Equal(t, "cannot join voice", stored.Subject)

	// The placeholder is replaced with the status embed carrying controls.
	final, ok := f.plat.lastEditOf(ticket.FirstMessageID)
	require.True(t, ok)
	require.Len(t, final.Msg.Controls, 3)

	// Creation fans out: mention in thread, origin message in alert channel.
	threadMsgs := f.plat.sentTo(ticket.ThreadID)
	require.NotEmpty(t, threadMsgs)
	mentionFound := false
	for _, msg := range threadMsgs {
		if strings.Contains(msg.Msg.Content, "<@&role-mod>") {
			mentionFound = true
		}
	}
	require.True(t, mentionFound, "alert roles should be mentioned in the thread")

	origins := f.plat.sentTo(testAlertChannel)
	require.Len(t, origins, 1)
	require.Contains(t, origins[0].Msg.Content, "— OPEN")
	require.NotNil(t, stored.OriginMessageID)
	require.Equal(t, origins[0].MessageID, *stored.OriginMessageID)
}

func TestCreateTicketDeduplicates(t *testing.T) {
	f := newLifecycleFixture(t)

	first := f.create(t, "user-1")

	result, err := f.svc.CreateTicket(context.Background(), CreateTicketInput{
		RequesterID: "user-1",
		CommunityID: testCommunity,
		ChannelID:   testChannel,
		Subject:     "another issue",
	})
	require.NoError(t, err)
	require.True(t, result.Existing)
	require.Equal(t, first.ID, result.Ticket.ID)
	require.Equal(t, "cannot join voice", result.Summary)

	// No second thread or document.
	require.Len(t, f.plat.Threads, 1)
	count, err := f.tickets.CountByRequester(context.Background(), testCommunity, "user-1")
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestCreateTicketSequenceNumbers(t *testing.T) {
	f := newLifecycleFixture(t)

	first := f.create(t, "user-1")
	require.NoError(t, f.svc.Close(context.Background(), first.ID, "staff-1", "resolved"))

	second := f.create(t, "user-1")
	require.Equal(t, 2, second.SequenceNum)
}

func TestCreateTicketRejectsDisabledChannel(t *testing.T) {
	f := newLifecycleFixture(t)

	_, err := f.svc.CreateTicket(context.Background(), CreateTicketInput{
		RequesterID: "user-1",
		CommunityID: testCommunity,
		ChannelID:   "chan-random",
	})
	require.Error(t, err)
	require.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))
}

func TestCreateTicketUnconfiguredCommunity(t *testing.T) {
	f := newLifecycleFixture(t)

	_, err := f.svc.CreateTicket(context.Background(), CreateTicketInput{
		RequesterID: "user-1",
		CommunityID: "guild-unknown",
	})
	require.Error(t, err)
	require.True(t, apperrors.IsCode(err, "UNCONFIGURED"))
}

func TestAssignLastWriteWins(t *testing.T) {
	f := newLifecycleFixture(t)
	ticket := f.create(t, "user-1")

	require.NoError(t, f.svc.Assign(context.Background(), ticket.ID, "staff-a", "staff-lead"))
	require.NoError(t, f.svc.Assign(context.Background(), ticket.ID, "staff-b", "staff-b"))

	stored, err := f.tickets.GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	require.Equal(t, "staff-b", *stored.AssigneeID)
	require.Equal(t, domain.TicketStatusPending, stored.Status())

	// Status message reflects only the final assignee.
	final, ok := f.plat.lastEditOf(ticket.FirstMessageID)
	require.True(t, ok)
	assignee := fieldValue(final.Msg.Fields, "Assignee")
	require.Equal(t, "<@staff-b>", assignee)
}

func TestAssignAnnouncements(t *testing.T) {
	f := newLifecycleFixture(t)
	ticket := f.create(t, "user-1")

	require.NoError(t, f.svc.Assign(context.Background(), ticket.ID, "staff-a", "staff-a"))
	require.NoError(t, f.svc.Assign(context.Background(), ticket.ID, "staff-b", "staff-lead"))

	var claim, assigned bool
	for _, msg := range f.plat.sentTo(ticket.ThreadID) {
		if strings.Contains(msg.Msg.Content, "claimed this ticket") {
			claim = true
		}
		if strings.Contains(msg.Msg.Content, "assigned to this ticket by <@staff-lead>") {
			assigned = true
		}
	}
	require.True(t, claim, "self-claim announcement missing")
	require.True(t, assigned, "staff-assignment announcement missing")
}

func TestAssignSameAssigneeRejected(t *testing.T) {
	f := newLifecycleFixture(t)
	ticket := f.create(t, "user-1")

	require.NoError(t, f.svc.Assign(context.Background(), ticket.ID, "staff-a", "staff-a"))
	err := f.svc.Assign(context.Background(), ticket.ID, "staff-a", "staff-lead")
	require.Error(t, err)
	require.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))
}

func TestCloseIsTerminal(t *testing.T) {
	f := newLifecycleFixture(t)
	ticket := f.create(t, "user-1")

	require.NoError(t, f.svc.Close(context.Background(), ticket.ID, "staff-1", "resolved via DM"))

	stored, err := f.tickets.GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	require.Equal(t, domain.TicketStatusClosed, stored.Status())
	require.Equal(t, "staff-1", *stored.ClosedByID)
	require.Equal(t, "resolved via DM", *stored.ResolutionReason)
	require.Contains(t, f.plat.Locked, ticket.ThreadID)

	// Controls are gone from the status message.
	final, ok := f.plat.lastEditOf(ticket.FirstMessageID)
	require.True(t, ok)
	require.Empty(t, final.Msg.Controls)

	// Origin message flipped to the terminal clause.
	origin, ok := f.plat.lastEditOf(*stored.OriginMessageID)
	require.True(t, ok)
	require.Contains(t, origin.Msg.Content, "— CLOSED")

	// No transition leaves Closed.
	err = f.svc.Close(context.Background(), ticket.ID, "staff-2", "again")
	require.True(t, apperrors.IsCode(err, "ALREADY_CLOSED"))
	err = f.svc.Assign(context.Background(), ticket.ID, "staff-2", "staff-2")
	require.True(t, apperrors.IsCode(err, "ALREADY_CLOSED"))
}

func TestCloseRequiresReason(t *testing.T) {
	f := newLifecycleFixture(t)
	ticket := f.create(t, "user-1")

	err := f.svc.Close(context.Background(), ticket.ID, "staff-1", "  ")
	require.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))

	err = f.svc.Close(context.Background(), ticket.ID, "staff-1", strings.Repeat("x", 2000))
	require.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))
}

func TestCloseByFieldOnlyWhenCloserDiffers(t *testing.T) {
	f := newLifecycleFixture(t)

	ticket := f.create(t, "user-1")
	require.NoError(t, f.svc.Assign(context.Background(), ticket.ID, "staff-a", "staff-a"))
	require.NoError(t, f.svc.Close(context.Background(), ticket.ID, "staff-a", "fixed"))
	final, ok := f.plat.lastEditOf(ticket.FirstMessageID)
	require.True(t, ok)
	require.Empty(t, fieldValue(final.Msg.Fields, "Closed by"))

	other := f.create(t, "user-2")
	require.NoError(t, f.svc.Assign(context.Background(), other.ID, "staff-a", "staff-a"))
	require.NoError(t, f.svc.Close(context.Background(), other.ID, "staff-b", "fixed"))
	final, ok = f.plat.lastEditOf(other.FirstMessageID)
	require.True(t, ok)
	require.Equal(t, "<@staff-b>", fieldValue(final.Msg.Fields, "Closed by"))
}

func TestCloseNotFound(t *testing.T) {
	f := newLifecycleFixture(t)

	err := f.svc.Close(context.Background(), "missing", "staff-1", "reason")
	require.True(t, apperrors.IsCode(err, "NOT_FOUND"))
}

func TestCloseReportsPartialFailure(t *testing.T) {
	f := newLifecycleFixture(t)
	ticket := f.create(t, "user-1")

	f.plat.FailLock = true
	err := f.svc.Close(context.Background(), ticket.ID, "staff-1", "resolved")
	require.Error(t, err)
	require.True(t, apperrors.IsCode(err, "EXTERNAL_UNAVAILABLE"))

	// The document still committed.
	stored, gerr := f.tickets.GetByID(context.Background(), ticket.ID)
	require.NoError(t, gerr)
	require.True(t, stored.IsClosed())
}

func TestHistory(t *testing.T) {
	f := newLifecycleFixture(t)

	first := f.create(t, "user-1")
	require.NoError(t, f.svc.Close(context.Background(), first.ID, "staff-1", "done"))
	f.create(t, "user-1")

	tickets, total, err := f.svc.History(context.Background(), testCommunity, "user-1", 1)
	require.NoError(t, err)
	require.Equal(t, 2, total)
	require.Len(t, tickets, 1)
}

func fieldValue(fields []platform.Field, name string) string {
	for _, field := range fields {
		if field.Name == name {
			return field.Value
		}
	}
	return ""
}
