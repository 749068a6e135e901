package netmon

import (
	"context"
	"sync/atomic"
	"time"

	"kassa/internal/domain"

	"github.com/rs/zerolog"
)

// Monitor tracks backend reachability by probing on an interval. On an
// offline-to-online transition it pushes the new state into the engine and
// fires one drain trigger; de-duplication of rapid flapping is left to the
// engine's single-flight guard, not handled here.
type Monitor struct {
	backend   domain.Backend
	engine    domain.SyncEngine
	refresher Refresher
	interval  time.Duration
	logger    *zerolog.Logger

	online  atomic.Bool
	started atomic.Bool
}

// Refresher is kicked on reconnect so the product view catches up with
// whatever changed server-side while the device was offline.
type Refresher interface {
	Kick()
}

func NewMonitor(backend domain.Backend, engine domain.SyncEngine, interval time.Duration, logger *zerolog.Logger) *Monitor {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Monitor{
		backend:  backend,
		engine:   engine,
		interval: interval,
		logger:   logger,
	}
}

// UseRefresher configures an optional refresh worker to kick on every
// offline-to-online transition.
func (m *Monitor) UseRefresher(r Refresher) {
	m.refresher = r
}

// IsOnline reports the last probed connectivity state.
func (m *Monitor) IsOnline() bool {
	return m.online.Load()
}

// Start probes immediately and then on every tick until ctx is done.
func (m *Monitor) Start(ctx context.Context) {
	if !m.started.CompareAndSwap(false, true) {
		return
	}
	m.logger.Info().Dur("interval", m.interval).Msg("network monitor started")
	defer m.logger.Info().Msg("network monitor stopped")

	m.Probe(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Probe(ctx)
		}
	}
}

// Probe performs one reachability check and handles transitions.
func (m *Monitor) Probe(ctx context.Context) {
	err := m.backend.Ping(ctx)
	nowOnline := err == nil
	wasOnline := m.online.Swap(nowOnline)

	if nowOnline == wasOnline {
		return
	}

	if nowOnline {
		m.logger.Info().Msg("backend reachable, draining queue")
		m.engine.SetOnline(true)
		if m.refresher != nil {
			m.refresher.Kick()
		}
		go m.engine.TriggerDrain(ctx)
	} else {
		m.logger.Warn().Err(err).Msg("backend unreachable, queuing writes locally")
		m.engine.SetOnline(false)
	}
}
