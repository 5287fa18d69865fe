package scheduler

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// JobStatus describes a registered job's lifecycle state.
type JobStatus string

const (
	JobStatusRegistered JobStatus = "registered"
	JobStatusRunning    JobStatus = "running"
	JobStatusStopped    JobStatus = "stopped"
)

// JobRegistry owns every recurring job in the process, keyed by name. It
// replaces ad hoc nullable globals with queryable, centrally stoppable state.
type JobRegistry struct {
	mu     sync.Mutex
	jobs   map[string]*PeriodicTask
	logger *zap.Logger
}

// NewJobRegistry builds an empty registry.
func NewJobRegistry(logger *zap.Logger) *JobRegistry {
	return &JobRegistry{
		jobs:   make(map[string]*PeriodicTask),
		logger: logger,
	}
}

// Register adds a job under its name. Names are unique.
func (r *JobRegistry) Register(task *PeriodicTask) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.jobs[task.Name()]; exists {
		return fmt.Errorf("job %q already registered", task.Name())
	}
	r.jobs[task.Name()] = task
	return nil
}

// Start launches the named job.
func (r *JobRegistry) Start(name string) error {
	r.mu.Lock()
	task, ok := r.jobs[name]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("job %q not registered", name)
	}
	if err := task.Start(); err != nil {
		return err
	}
	r.logger.Info("job started", zap.String("job", name))
	return nil
}

// Stop halts the named job, waiting for any in-flight tick.
func (r *JobRegistry) Stop(name string) error {
	r.mu.Lock()
	task, ok := r.jobs[name]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("job %q not registered", name)
	}
	task.Stop()
	r.logger.Info("job stopped", zap.String("job", name))
	return nil
}

// StartAll launches every registered job.
func (r *JobRegistry) StartAll() error {
	r.mu.Lock()
	tasks := make([]*PeriodicTask, 0, len(r.jobs))
	for _, task := range r.jobs {
		tasks = append(tasks, task)
	}
	r.mu.Unlock()

	for _, task := range tasks {
		if err := task.Start(); err != nil {
			return fmt.Errorf("start job %q: %w", task.Name(), err)
		}
		r.logger.Info("job started", zap.String("job", task.Name()))
	}
	return nil
}

// StopAll halts every registered job.
func (r *JobRegistry) StopAll() {
	r.mu.Lock()
	tasks := make([]*PeriodicTask, 0, len(r.jobs))
	for _, task := range r.jobs {
		tasks = append(tasks, task)
	}
	r.mu.Unlock()

	for _, task := range tasks {
		task.Stop()
		r.logger.Info("job stopped", zap.String("job", task.Name()))
	}
}

// Status reports the named job's state.
func (r *JobRegistry) Status(name string) (JobStatus, error) {
	r.mu.Lock()
	task, ok := r.jobs[name]
	r.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("job %q not registered", name)
	}
	task.mu.Lock()
	defer task.mu.Unlock()
	switch {
	case task.stopped:
		return JobStatusStopped, nil
	case task.started:
		return JobStatusRunning, nil
	default:
		return JobStatusRegistered, nil
	}
}
