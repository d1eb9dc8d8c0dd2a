// Package connectivity tracks whether the remote server is reachable.
//
// A Monitor probes the server on a fixed interval and notifies subscribers
// when the status flips between online and offline. Domain hooks use the
// offline to online transition to flush their queues.
package connectivity

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/lifekeeper/internal/logging"
)

// DefaultProbeTimeout bounds a single probe.
const DefaultProbeTimeout = 3 * time.Second

// Prober checks reachability of the server. A nil error means online.
type Prober interface {
	Probe(ctx context.Context) error
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context) error

func (f ProberFunc) Probe(ctx context.Context) error { return f(ctx) }

// Monitor holds the last known network status.
type Monitor struct {
	prober   Prober
	interval time.Duration
	timeout  time.Duration
	log      logging.Logger

	mu     sync.RWMutex
	online bool
	subs   map[int]func(online bool)
	nextID int
}

// NewMonitor returns a monitor that starts in the offline state.
func NewMonitor(p Prober, interval time.Duration, log logging.Logger) *Monitor {
	if log == nil {
		log = logging.NewNop()
	}
	return &Monitor{
		prober:   p,
		interval: interval,
		timeout:  DefaultProbeTimeout,
		log:      log,
		subs:     map[int]func(bool){},
	}
}

// Online reports the last observed status.
func (m *Monitor) Online() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

// Subscribe registers fn for status transitions and returns a function that
// removes it. fn is called from the probing goroutine.
func (m *Monitor) Subscribe(fn func(online bool)) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.subs[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

// Set records a status and notifies subscribers if it changed.
func (m *Monitor) Set(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	subs := make([]func(bool), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	mode := "offline"
	if online {
		mode = "online"
	}
	m.log.Info(context.Background(), "switched mode", "mode", mode)

	for _, fn := range subs {
		fn(online)
	}
}

// Check probes once and updates the status.
func (m *Monitor) Check(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	err := m.prober.Probe(ctx)
	cancel()

	if err != nil {
		m.log.Debug(ctx, "probe failed", "error", err)
	}
	m.Set(err == nil)
	return err == nil
}

// Run probes immediately and then on every tick until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	m.Check(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Check(ctx)
		case <-ctx.Done():
			return
		}
	}
}
