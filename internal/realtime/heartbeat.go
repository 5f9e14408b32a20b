package realtime

import (
	"fmt"
	"time"

	"kanban-system/internal/domain"
	"kanban-system/pkg/logger"

	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"
)

// HeartbeatMonitor sweeps the registry on a fixed cadence. It is the
// only component that proactively discovers dead connections; the
// broadcaster only finds them when a send fails.
type HeartbeatMonitor struct {
	cron     *cron.Cron
	registry *Registry
	interval time.Duration
	maxAge   time.Duration
	clock    clockwork.Clock
	log      logger.Logger
}

func NewHeartbeatMonitor(registry *Registry, interval, maxAge time.Duration,
	clock clockwork.Clock, log logger.Logger) *HeartbeatMonitor {
	return &HeartbeatMonitor{
		cron:     cron.New(cron.WithSeconds()),
		registry: registry,
		interval: interval,
		maxAge:   maxAge,
		clock:    clock,
		log:      log,
	}
}

func (m *HeartbeatMonitor) Start() error {
	m.log.Info("starting heartbeat monitor",
		"interval", m.interval, "max_connection_age", m.maxAge)

	_, err := m.cron.AddFunc(fmt.Sprintf("@every %s", m.interval), m.Sweep)
	if err != nil {
		return err
	}

	m.cron.Start()
	return nil
}

// Stop halts the ticker and waits for an in-flight sweep to finish.
func (m *HeartbeatMonitor) Stop() {
	m.log.Info("stopping heartbeat monitor")
	<-m.cron.Stop().Done()
}

// Sweep evaluates every connection once: evict if already closed, evict
// if the token expired, evict if over the age ceiling, otherwise send a
// keep-alive and evict on failure. Eviction is idempotent, so racing a
// concurrent unregister is harmless.
func (m *HeartbeatMonitor) Sweep() {
	now := m.clock.Now()

	for _, conn := range m.registry.allConns() {
		switch {
		case conn.closed:
			m.registry.Unregister(conn.id)

		case conn.expired(now):
			m.log.Info("evicting connection with expired token",
				"connection_id", conn.id, "user_id", conn.userID)
			m.registry.Unregister(conn.id)

		case now.Sub(conn.createdAt) > m.maxAge:
			m.log.Info("evicting connection over max age",
				"connection_id", conn.id, "user_id", conn.userID,
				"age", now.Sub(conn.createdAt))
			m.registry.Unregister(conn.id)

		default:
			if err := conn.sink.Send(string(domain.EventHeartbeat), nil); err != nil {
				m.log.Info("keep-alive failed, evicting connection",
					"connection_id", conn.id, "user_id", conn.userID, "error", err)
				m.registry.Unregister(conn.id)
			}
		}
	}
}
