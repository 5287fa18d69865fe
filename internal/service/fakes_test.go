package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/modkit/ticketing/internal/domain"
	"github.com/modkit/ticketing/internal/platform"
	"github.com/modkit/ticketing/internal/repository"
)

// fakeTicketRepo is an in-memory TicketRepository with the same write guards
// as the SQL implementation.
type fakeTicketRepo struct {
	mu      sync.Mutex
	tickets map[string]*domain.Ticket
}

func newFakeTicketRepo() *fakeTicketRepo {
	return &fakeTicketRepo{tickets: make(map[string]*domain.Ticket)}
}

func (r *fakeTicketRepo) Create(ctx context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *ticket
	r.tickets[ticket.ID] = &clone
	return nil
}

func (r *fakeTicketRepo) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *ticket
	return &clone, nil
}

func (r *fakeTicketRepo) FindOpenByRequester(ctx context.Context, communityID, requesterID string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ticket := range r.tickets {
		if ticket.CommunityID == communityID && ticket.RequesterID == requesterID && ticket.ClosedByID == nil {
			clone := *ticket
			return &clone, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeTicketRepo) CountByRequester(ctx context.Context, communityID, requesterID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, ticket := range r.tickets {
		if ticket.CommunityID == communityID && ticket.RequesterID == requesterID {
			count++
		}
	}
	return count, nil
}

func (r *fakeTicketRepo) ListByRequester(ctx context.Context, communityID, requesterID string, limit int) ([]domain.Ticket, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	matched := []domain.Ticket{}
	for _, ticket := range r.tickets {
		if ticket.CommunityID == communityID && ticket.RequesterID == requesterID {
			matched = append(matched, *ticket)
		}
	}
	total := len(matched)
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, total, nil
}

func (r *fakeTicketRepo) ListOpen(ctx context.Context) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	open := []domain.Ticket{}
	for _, ticket := range r.tickets {
		if ticket.ClosedByID == nil {
			open = append(open, *ticket)
		}
	}
	return open, nil
}

func (r *fakeTicketRepo) UpdateAssignee(ctx context.Context, id string, assigneeID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[id]
	if !ok || ticket.ClosedByID != nil {
		return repository.ErrNotFound
	}
	ticket.AssigneeID = &assigneeID
	return nil
}

func (r *fakeTicketRepo) UpdateOriginMessage(ctx context.Context, id string, originMessageID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[id]
	if !ok {
		return repository.ErrNotFound
	}
	ticket.OriginMessageID = &originMessageID
	return nil
}

func (r *fakeTicketRepo) Close(ctx context.Context, id, closedByID, resolutionReason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[id]
	if !ok || ticket.ClosedByID != nil {
		return repository.ErrNotFound
	}
	ticket.ClosedByID = &closedByID
	ticket.ResolutionReason = &resolutionReason
	return nil
}

func (r *fakeTicketRepo) RaiseNotificationLevel(ctx context.Context, id string, target int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[id]
	if !ok || ticket.ClosedByID != nil || ticket.NotificationLevel >= target {
		return false, nil
	}
	ticket.NotificationLevel = target
	return true, nil
}

// fakeSettingsRepo serves settings from memory and counts reads.
type fakeSettingsRepo struct {
	mu       sync.Mutex
	settings map[string]*domain.TicketingSettings
	getCalls map[string]int
}

func newFakeSettingsRepo() *fakeSettingsRepo {
	return &fakeSettingsRepo{
		settings: make(map[string]*domain.TicketingSettings),
		getCalls: make(map[string]int),
	}
}

func (r *fakeSettingsRepo) Get(ctx context.Context, communityID string) (*domain.TicketingSettings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.getCalls[communityID]++
	settings, ok := r.settings[communityID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *settings
	return &clone, nil
}

func (r *fakeSettingsRepo) Upsert(ctx context.Context, settings *domain.TicketingSettings) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *settings
	r.settings[settings.CommunityID] = &clone
	return nil
}

func (r *fakeSettingsRepo) Delete(ctx context.Context, communityID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.settings, communityID)
	return nil
}

// sentMessage records one SendMessage or EditMessage call.
type sentMessage struct {
	ChannelID string
	MessageID string
	Msg       platform.Message
	Edit      bool
}

// fakePlatform records every platform call and hands out sequential ids.
type fakePlatform struct {
	mu sync.Mutex

	nextID   int
	Threads  []string
	Messages []sentMessage
	Pinned   []string
	Members  map[string][]string
	Locked   []string
	Disabled []string

	FailCreateThread bool
	FailSend         bool
	FailEdit         bool
	FailLock         bool
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{Members: make(map[string][]string)}
}

func (p *fakePlatform) id(prefix string) string {
	p.nextID++
	return fmt.Sprintf("%s-%d", prefix, p.nextID)
}

func (p *fakePlatform) CreateThread(ctx context.Context, channelID, title string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.FailCreateThread {
		return "", fmt.Errorf("channel %s gone", channelID)
	}
	threadID := p.id("thread")
	p.Threads = append(p.Threads, threadID)
	return threadID, nil
}

func (p *fakePlatform) AddThreadMember(ctx context.Context, threadID, userID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Members[threadID] = append(p.Members[threadID], userID)
	return nil
}

func (p *fakePlatform) SendMessage(ctx context.Context, channelID string, msg platform.Message) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.FailSend {
		return "", fmt.Errorf("channel %s gone", channelID)
	}
	messageID := p.id("msg")
	p.Messages = append(p.Messages, sentMessage{ChannelID: channelID, MessageID: messageID, Msg: msg})
	return messageID, nil
}

func (p *fakePlatform) EditMessage(ctx context.Context, channelID, messageID string, msg platform.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.FailEdit {
		return fmt.Errorf("message %s gone", messageID)
	}
	p.Messages = append(p.Messages, sentMessage{ChannelID: channelID, MessageID: messageID, Msg: msg, Edit: true})
	return nil
}

func (p *fakePlatform) PinMessage(ctx context.Context, channelID, messageID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Pinned = append(p.Pinned, messageID)
	return nil
}

func (p *fakePlatform) DisableControls(ctx context.Context, channelID, messageID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Disabled = append(p.Disabled, messageID)
	return nil
}

func (p *fakePlatform) LockThread(ctx context.Context, threadID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.FailLock {
		return fmt.Errorf("thread %s gone", threadID)
	}
	p.Locked = append(p.Locked, threadID)
	return nil
}

// lastEditOf returns the most recent edit of the given message.
func (p *fakePlatform) lastEditOf(messageID string) (sentMessage, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := len(p.Messages) - 1; i >= 0; i-- {
		if p.Messages[i].Edit && p.Messages[i].MessageID == messageID {
			return p.Messages[i], true
		}
	}
	return sentMessage{}, false
}

// sentTo returns every non-edit message sent to the channel.
func (p *fakePlatform) sentTo(channelID string) []sentMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	matched := []sentMessage{}
	for _, msg := range p.Messages {
		if !msg.Edit && msg.ChannelID == channelID {
			matched = append(matched, msg)
		}
	}
	return matched
}
