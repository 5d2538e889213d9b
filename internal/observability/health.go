package observability

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Status grades a component.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// CheckFunc probes one component. It should respect ctx and return quickly.
type CheckFunc func(ctx context.Context) (Status, string)

// ComponentHealth is the latest probe result for one component.
type ComponentHealth struct {
	Name      string    `json:"name"`
	Status    Status    `json:"status"`
	Message   string    `json:"message,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// SystemHealth is the aggregate view served on /health.
type SystemHealth struct {
	Status     Status                     `json:"status"`
	Components map[string]ComponentHealth `json:"components"`
	UptimeS    int64                      `json:"uptime_s"`
}

// HealthMonitor probes registered components on an interval and keeps the
// last result for the HTTP handler. Status transitions are logged, not
// alerted: this service has no paging surface.
type HealthMonitor struct {
	mu      sync.RWMutex
	checks  map[string]CheckFunc
	results map[string]ComponentHealth
	started time.Time
}

// NewHealthMonitor creates an empty monitor.
func NewHealthMonitor() *HealthMonitor {
	return &HealthMonitor{
		checks:  make(map[string]CheckFunc),
		results: make(map[string]ComponentHealth),
		started: time.Now(),
	}
}

// Register adds a component probe under a name.
func (m *HealthMonitor) Register(name string, check CheckFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checks[name] = check
}

// Run probes every interval until ctx is cancelled.
func (m *HealthMonitor) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.probe(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.probe(ctx)
		}
	}
}

func (m *HealthMonitor) probe(ctx context.Context) {
	m.mu.RLock()
	checks := make(map[string]CheckFunc, len(m.checks))
	for name, fn := range m.checks {
		checks[name] = fn
	}
	m.mu.RUnlock()

	for name, fn := range checks {
		status, msg := fn(ctx)
		result := ComponentHealth{
			Name:      name,
			Status:    status,
			Message:   msg,
			CheckedAt: time.Now(),
		}

		m.mu.Lock()
		prev, existed := m.results[name]
		m.results[name] = result
		m.mu.Unlock()

		if existed && prev.Status != status {
			log.Warn().
				Str("component", name).
				Str("from", string(prev.Status)).
				Str("to", string(status)).
				Str("msg", msg).
				Msg("health: component status changed")
		}
	}
}

// Snapshot returns the aggregate health; the worst component wins.
func (m *HealthMonitor) Snapshot() SystemHealth {
	m.mu.RLock()
	defer m.mu.RUnlock()

	components := make(map[string]ComponentHealth, len(m.results))
	worst := StatusHealthy
	for name, h := range m.results {
		components[name] = h
		if rank(h.Status) > rank(worst) {
			worst = h.Status
		}
	}

	return SystemHealth{
		Status:     worst,
		Components: components,
		UptimeS:    int64(time.Since(m.started).Seconds()),
	}
}

func rank(s Status) int {
	switch s {
	case StatusDegraded:
		return 1
	case StatusUnhealthy:
		return 2
	default:
		return 0
	}
}
