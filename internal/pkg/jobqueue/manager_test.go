package jobqueue

import (
	"sync"
	"testing"
	"time"

	"github.com/ManuelReschke/PlayVerse/internal/pkg/env"
	"github.com/stretchr/testify/assert"
)

func TestGetManager(t *testing.T) {
	// Reset the singleton for testing
	globalManager = nil
	managerOnce = sync.Once{}

	manager1 := GetManager()
	manager2 := GetManager()

	assert.NotNil(t, manager1)
	assert.Same(t, manager1, manager2, "GetManager should return the same instance")
	assert.NotNil(t, manager1.queue)
	assert.NotNil(t, manager1.stopCh)
	assert.False(t, manager1.running)
}

func TestManagerConfigFromEnv(t *testing.T) {
	saved := env.Env
	t.Cleanup(func() { env.Env = saved })

	env.Env = map[string]string{
		"JOBQUEUE_WORKERS":               "2",
		"BILLING_SWEEP_INTERVAL_MINUTES": "15",
		"IGDB_SYNC_ENABLED":              "false",
	}
	cfg := ManagerConfigFromEnv()
	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, 15*time.Minute, cfg.SweepInterval)
	assert.Zero(t, cfg.RatingSyncInterval)
	assert.Equal(t, 5*time.Second, cfg.CounterFlushInterval)

	env.Env = map[string]string{}
	cfg = ManagerConfigFromEnv()
	assert.Equal(t, 5, cfg.Workers)
	assert.Equal(t, time.Hour, cfg.SweepInterval)
	assert.Equal(t, 6*time.Hour, cfg.RatingSyncInterval)
}

func TestManager_IsRunning(t *testing.T) {
	manager := NewManager(ManagerConfig{Workers: 1})

	assert.False(t, manager.IsRunning())

	manager.mu.Lock()
	manager.running = true
	manager.mu.Unlock()
	assert.True(t, manager.IsRunning())

	manager.mu.Lock()
	manager.running = false
	manager.mu.Unlock()
	assert.False(t, manager.IsRunning())
}

func TestManager_StopWithoutStart(t *testing.T) {
	manager := NewManager(ManagerConfig{Workers: 1})

	// Stop without starting should be safe
	manager.Stop()
	assert.False(t, manager.IsRunning())
}

func TestManager_Configure(t *testing.T) {
	manager := NewManager(ManagerConfig{Workers: 1})
	sweeper := &fakeSweeper{}
	manager.Configure(Handlers{Sweeper: sweeper})

	assert.Same(t, sweeper, manager.GetQueue().getHandlers().Sweeper)
}
