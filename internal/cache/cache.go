// Package cache holds the in-process caches used to avoid re-reading the
// transaction and budget stores on every dashboard request.
package cache

import (
	"context"
	"sync"
	"time"

	applog "budgetwatch/internal/log"
)

// Cache defines a generic cache interface
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)
	Purge()
	Size() int
}

// Cleaner is implemented by caches that can drop expired entries.
type Cleaner interface {
	CleanExpired() int
}

// Manager runs periodic cleanup over registered caches.
type Manager struct {
	mu     sync.Mutex
	caches []Cleaner
	logger *applog.Logger
	cancel context.CancelFunc
	done   chan struct{}
}

func NewManager(logger *applog.Logger) *Manager {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &Manager{logger: logger.WithComponent(applog.ComponentApp)}
}

// Register adds a cache to the manager for cleanup
func (m *Manager) Register(c Cleaner) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.caches = append(m.caches, c)
}

// Sweep cleans every registered cache once and returns the number of entries dropped.
func (m *Manager) Sweep() int {
	m.mu.Lock()
	caches := append([]Cleaner(nil), m.caches...)
	m.mu.Unlock()

	total := 0
	for _, c := range caches {
		total += c.CleanExpired()
	}
	return total
}

// StartCleanup begins periodic cleanup until ctx is done or Stop is called.
func (m *Manager) StartCleanup(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := m.Sweep(); n > 0 {
					m.logger.Debug("Expired cache entries removed", "count", n)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop gracefully stops the cleanup routine
func (m *Manager) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	<-m.done
}
