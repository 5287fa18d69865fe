package scheduler

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"
	"time"

	"go.uber.org/zap"
)

// TaskFunc is one unit of recurring work. A returned error is logged and the
// loop continues; only Stop ends the loop.
type TaskFunc func(ctx context.Context) error

// PeriodicTask runs a TaskFunc at a fixed interval on its own goroutine, so
// ticks never overlap and their order is preserved. A stopped task cannot be
// restarted; construct a new one.
type PeriodicTask struct {
	name         string
	task         TaskFunc
	interval     time.Duration
	initialDelay time.Duration
	logger       *zap.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
	stopped bool
}

// ErrAlreadyStarted is returned when Start is called twice, including after Stop.
var ErrAlreadyStarted = errors.New("scheduler: task already started")

// NewPeriodicTask builds a recurring task. The first run happens after
// initialDelay (immediately when zero), then once per interval.
func NewPeriodicTask(name string, task TaskFunc, interval, initialDelay time.Duration, logger *zap.Logger) *PeriodicTask {
	return &PeriodicTask{
		name:         name,
		task:         task,
		interval:     interval,
		initialDelay: initialDelay,
		logger:       logger,
	}
}

// Name returns the task's registry name.
func (p *PeriodicTask) Name() string {
	return p.name
}

// Start launches the loop. It returns immediately; the loop runs until Stop.
func (p *PeriodicTask) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return ErrAlreadyStarted
	}
	p.started = true

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})

	go p.loop(ctx)
	return nil
}

// Stop cancels the loop and waits for the in-flight tick, if any, to return.
// No further ticks occur after Stop returns. Idempotent.
func (p *PeriodicTask) Stop() {
	p.mu.Lock()
	if !p.started || p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	cancel := p.cancel
	done := p.done
	p.mu.Unlock()

	cancel()
	<-done
}

// Running reports whether the loop is active.
func (p *PeriodicTask) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.started && !p.stopped
}

func (p *PeriodicTask) loop(ctx context.Context) {
	defer close(p.done)

	if p.initialDelay > 0 {
		if !sleepCtx(ctx, p.initialDelay) {
			return
		}
	}

	for {
		if ctx.Err() != nil {
			return
		}
		p.runOnce(ctx)
		if !sleepCtx(ctx, p.interval) {
			return
		}
	}
}

func (p *PeriodicTask) runOnce(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("tick panicked",
				zap.String("job", p.name),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
		}
	}()
	if err := p.task(ctx); err != nil {
		p.logger.Warn("tick failed", zap.String("job", p.name), zap.Error(err))
	}
}

// sleepCtx waits for d unless ctx is cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
