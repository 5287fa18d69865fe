package interaction

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/modkit/ticketing/internal/platform"
)

// DefaultPromptTimeout bounds how long a confirmation prompt stays actionable.
const DefaultPromptTimeout = 5 * time.Minute

// ExpirationTracker times out interactive prompts. Each tracked message gets
// one pending timer; expiry and manual resolution both disable the message's
// controls, whichever comes first. Transient, in-memory state only.
type ExpirationTracker struct {
	client platform.Client
	logger *zap.Logger

	mu      sync.Mutex
	pending map[string]*time.Timer
}

// NewExpirationTracker builds a tracker over the given platform client.
func NewExpirationTracker(client platform.Client, logger *zap.Logger) *ExpirationTracker {
	return &ExpirationTracker{
		client:  client,
		logger:  logger,
		pending: make(map[string]*time.Timer),
	}
}

// ScheduleExpiration disables the message's controls after duration unless
// the prompt is resolved first. Scheduling an already-tracked message resets
// its timer.
func (t *ExpirationTracker) ScheduleExpiration(channelID, messageID string, duration time.Duration) {
	if duration <= 0 {
		duration = DefaultPromptTimeout
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if timer, ok := t.pending[messageID]; ok {
		timer.Stop()
	}
	t.pending[messageID] = time.AfterFunc(duration, func() {
		t.expire(channelID, messageID)
	})
}

// ResolveNow cancels the pending timer, if any, and disables controls
// immediately. Resolving an untracked or already-resolved message is a no-op.
func (t *ExpirationTracker) ResolveNow(ctx context.Context, channelID, messageID string) {
	t.mu.Lock()
	timer, ok := t.pending[messageID]
	if ok {
		timer.Stop()
		delete(t.pending, messageID)
	}
	t.mu.Unlock()
	if !ok {
		return
	}
	t.disable(ctx, channelID, messageID)
}

// Tracked reports whether a timer is pending for the message.
func (t *ExpirationTracker) Tracked(messageID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.pending[messageID]
	return ok
}

func (t *ExpirationTracker) expire(channelID, messageID string) {
	t.mu.Lock()
	_, ok := t.pending[messageID]
	if ok {
		delete(t.pending, messageID)
	}
	t.mu.Unlock()
	if !ok {
		// Resolved between the timer firing and this callback running.
		return
	}
	t.disable(context.Background(), channelID, messageID)
}

func (t *ExpirationTracker) disable(ctx context.Context, channelID, messageID string) {
	if err := t.client.DisableControls(ctx, channelID, messageID); err != nil {
		t.logger.Warn("failed to disable prompt controls",
			zap.String("channel_id", channelID),
			zap.String("message_id", messageID),
			zap.Error(err))
	}
}
