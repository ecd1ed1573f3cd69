package jobqueue

import (
	"sync"
	"time"

	"github.com/ManuelReschke/PlayVerse/internal/pkg/env"
	metrics "github.com/ManuelReschke/PlayVerse/internal/pkg/metrics/counter"
	"github.com/gofiber/fiber/v2/log"
)

// ManagerConfig holds worker count and the intervals of the periodic tasks.
// A zero interval disables the task.
type ManagerConfig struct {
	Workers              int
	SweepInterval        time.Duration
	RatingSyncInterval   time.Duration
	CounterFlushInterval time.Duration
}

// ManagerConfigFromEnv reads JOBQUEUE_WORKERS, BILLING_SWEEP_INTERVAL_MINUTES
// and IGDB_SYNC_INTERVAL_MINUTES.
func ManagerConfigFromEnv() ManagerConfig {
	cfg := ManagerConfig{
		Workers:              env.GetEnvInt("JOBQUEUE_WORKERS", 5),
		SweepInterval:        env.GetEnvMinutes("BILLING_SWEEP_INTERVAL_MINUTES", time.Hour),
		RatingSyncInterval:   env.GetEnvMinutes("IGDB_SYNC_INTERVAL_MINUTES", 6*time.Hour),
		CounterFlushInterval: 5 * time.Second,
	}
	if env.GetEnv("IGDB_SYNC_ENABLED", "true") == "false" {
		cfg.RatingSyncInterval = 0
	}
	return cfg
}

// Manager manages the global job queue and background tasks
type Manager struct {
	queue              *Queue
	cfg                ManagerConfig
	sweepTicker        *time.Ticker
	ratingSyncTicker   *time.Ticker
	counterFlushTicker *time.Ticker
	stopCh             chan struct{}
	wg                 sync.WaitGroup
	mu                 sync.Mutex
	running            bool
}

var (
	globalManager *Manager
	managerOnce   sync.Once
)

// GetManager returns the global job queue manager (singleton)
func GetManager() *Manager {
	managerOnce.Do(func() {
		globalManager = NewManager(ManagerConfigFromEnv())
	})
	return globalManager
}

func NewManager(cfg ManagerConfig) *Manager {
	return &Manager{
		queue:  NewQueue(cfg.Workers),
		cfg:    cfg,
		stopCh: make(chan struct{}),
	}
}

// GetQueue returns the managed job queue
func (m *Manager) GetQueue() *Queue {
	return m.queue
}

// Configure installs the job handlers on the managed queue
func (m *Manager) Configure(h Handlers) {
	m.queue.SetHandlers(h)
}

// Start starts the job queue and background tasks
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	// Recreate stop channel for each start cycle so manager can be restarted safely.
	m.stopCh = make(chan struct{})
	m.running = true
	log.Info("[JobQueue Manager] Starting job queue and background tasks")

	m.queue.Start()

	if m.cfg.SweepInterval > 0 {
		m.sweepTicker = time.NewTicker(m.cfg.SweepInterval)
		m.wg.Add(1)
		go m.scheduleWorker("expiration sweep", m.sweepTicker, m.stopCh, func() error {
			_, err := m.queue.EnqueueScheduled(JobTypeExpirationSweep, ExpirationSweepJobPayload{}.ToMap(), m.cfg.SweepInterval)
			return err
		})
	}

	if m.cfg.RatingSyncInterval > 0 {
		m.ratingSyncTicker = time.NewTicker(m.cfg.RatingSyncInterval)
		m.wg.Add(1)
		go m.scheduleWorker("rating sync", m.ratingSyncTicker, m.stopCh, func() error {
			_, err := m.queue.EnqueueScheduled(JobTypeRatingSync, RatingSyncJobPayload{}.ToMap(), m.cfg.RatingSyncInterval)
			return err
		})
	}

	// Redis -> DB counter flush
	if m.cfg.CounterFlushInterval > 0 {
		m.counterFlushTicker = time.NewTicker(m.cfg.CounterFlushInterval)
		m.wg.Add(1)
		go m.scheduleWorker("counter flush", m.counterFlushTicker, m.stopCh, metrics.FlushAll)
	}

	log.Info("[JobQueue Manager] Started successfully")
}

// Stop stops the job queue and background tasks
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("[JobQueue Manager] Stopping job queue and background tasks...")

	for _, t := range []*time.Ticker{m.sweepTicker, m.ratingSyncTicker, m.counterFlushTicker} {
		if t != nil {
			t.Stop()
		}
	}

	// Signal workers to stop
	close(m.stopCh)
	m.stopCh = nil
	m.running = false

	// Wait for background workers to finish
	m.wg.Wait()

	m.queue.Stop()

	log.Info("[JobQueue Manager] Stopped successfully")
}

// scheduleWorker runs fn on every tick until stopCh is closed
func (m *Manager) scheduleWorker(name string, ticker *time.Ticker, stopCh <-chan struct{}, fn func() error) {
	defer m.wg.Done()
	log.Infof("[JobQueue Manager] Started %s worker", name)

	for {
		select {
		case <-stopCh:
			log.Infof("[JobQueue Manager] %s worker stopping", name)
			return
		case <-ticker.C:
			if err := fn(); err != nil {
				log.Errorf("[JobQueue Manager] %s error: %v", name, err)
			}
		}
	}
}

// IsRunning returns whether the manager is currently running
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}
