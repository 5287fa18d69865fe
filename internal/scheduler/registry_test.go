package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func noopTask(name string) *PeriodicTask {
	return NewPeriodicTask(name, func(ctx context.Context) error { return nil }, time.Minute, 0, zap.NewNop())
}

func TestRegistryRejectsDuplicateNames(t *testing.T) {
	registry := NewJobRegistry(zap.NewNop())

	require.NoError(t, registry.Register(noopTask("sweep")))
	require.Error(t, registry.Register(noopTask("sweep")))
}

func TestRegistryStatusTransitions(t *testing.T) {
	registry := NewJobRegistry(zap.NewNop())
	require.NoError(t, registry.Register(noopTask("sweep")))

	status, err := registry.Status("sweep")
	require.NoError(t, err)
	require.Equal(t, JobStatusRegistered, status)

	require.NoError(t, registry.Start("sweep"))
	status, err = registry.Status("sweep")
	require.NoError(t, err)
	require.Equal(t, JobStatusRunning, status)

	require.NoError(t, registry.Stop("sweep"))
	status, err = registry.Status("sweep")
	require.NoError(t, err)
	require.Equal(t, JobStatusStopped, status)

	_, err = registry.Status("unknown")
	require.Error(t, err)
}

func TestRegistryStartAllStopAll(t *testing.T) {
	registry := NewJobRegistry(zap.NewNop())

	var ticks atomic.Int64
	for _, name := range []string{"first", "second"} {
		task := NewPeriodicTask(name, func(ctx context.Context) error {
			ticks.Add(1)
			return nil
		}, 5*time.Millisecond, 0, zap.NewNop())
		require.NoError(t, registry.Register(task))
	}

	require.NoError(t, registry.StartAll())
	require.Eventually(t, func() bool {
		return ticks.Load() >= 4
	}, time.Second, time.Millisecond)

	registry.StopAll()
	after := ticks.Load()
	time.Sleep(30 * time.Millisecond)
	require.Equal(t, after, ticks.Load())
}

func TestRegistryStartUnknownJob(t *testing.T) {
	registry := NewJobRegistry(zap.NewNop())

	require.Error(t, registry.Start("missing"))
	require.Error(t, registry.Stop("missing"))
}
