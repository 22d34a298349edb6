// Package health tracks the readiness of the agent's dependencies.
package health

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ComponentStatus represents the status of a component
type ComponentStatus string

const (
	StatusHealthy   ComponentStatus = "healthy"
	StatusDegraded  ComponentStatus = "degraded"
	StatusUnhealthy ComponentStatus = "unhealthy"
	StatusUnknown   ComponentStatus = "unknown"
)

// Component represents a monitored component
type Component struct {
	Name        string          `json:"name"`
	Status      ComponentStatus `json:"status"`
	Message     string          `json:"message,omitempty"`
	LastChecked time.Time       `json:"last_checked"`
	Details     map[string]any  `json:"details,omitempty"`
}

// Status represents the overall health status
type Status struct {
	Overall     ComponentStatus       `json:"overall"`
	Components  map[string]*Component `json:"components"`
	Version     string                `json:"version"`
	Uptime      time.Duration         `json:"uptime"`
	LastUpdated time.Time             `json:"last_updated"`
}

// Checker is the interface for health checks
type Checker interface {
	Name() string
	Check(ctx context.Context) *Component
}

// Observer receives every component result, e.g. to export it as a metric.
type Observer interface {
	SetComponentHealth(component string, status string)
}

const checkTimeout = 10 * time.Second

// Monitor runs the registered checkers on an interval and keeps the latest
// results. Status changes are logged once, not on every run.
type Monitor struct {
	mu            sync.RWMutex
	checkers      []Checker
	observer      Observer
	status        *Status
	checkInterval time.Duration
	logger        *zap.Logger
	startTime     time.Time
	stopCh        chan struct{}
	stopOnce      sync.Once
	wg            sync.WaitGroup
}

// NewMonitor creates a new health monitor
func NewMonitor(version string, checkInterval time.Duration, logger *zap.Logger) *Monitor {
	if checkInterval <= 0 {
		checkInterval = 30 * time.Second
	}
	return &Monitor{
		checkInterval: checkInterval,
		logger:        logger.Named("health"),
		startTime:     time.Now(),
		stopCh:        make(chan struct{}),
		status: &Status{
			Overall:    StatusUnknown,
			Components: make(map[string]*Component),
			Version:    version,
		},
	}
}

// RegisterChecker registers a health checker
func (m *Monitor) RegisterChecker(checker Checker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkers = append(m.checkers, checker)
}

// SetObserver sets the receiver of per-component results.
func (m *Monitor) SetObserver(o Observer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observer = o
}

// Start runs the checks once, then on every interval until Stop or ctx ends.
func (m *Monitor) Start(ctx context.Context) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.RunChecks(ctx)

		ticker := time.NewTicker(m.checkInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-m.stopCh:
				return
			case <-ticker.C:
				m.RunChecks(ctx)
			}
		}
	}()
}

// Stop stops the health monitor
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	m.wg.Wait()
}

// RunChecks runs every checker concurrently and replaces the stored results.
func (m *Monitor) RunChecks(ctx context.Context) {
	m.mu.RLock()
	checkers := append([]Checker(nil), m.checkers...)
	observer := m.observer
	m.mu.RUnlock()

	checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	components := make([]*Component, len(checkers))
	var wg sync.WaitGroup
	for i, checker := range checkers {
		wg.Add(1)
		go func(i int, checker Checker) {
			defer wg.Done()
			components[i] = checker.Check(checkCtx)
		}(i, checker)
	}
	wg.Wait()

	results := make(map[string]*Component, len(checkers))
	for i, checker := range checkers {
		results[checker.Name()] = components[i]
		if observer != nil {
			observer.SetComponentHealth(checker.Name(), string(components[i].Status))
		}
	}
	overall := worst(components)

	m.mu.Lock()
	previous := m.status.Components
	m.status.Components = results
	m.status.Overall = overall
	m.status.Uptime = time.Since(m.startTime)
	m.status.LastUpdated = time.Now()
	m.mu.Unlock()

	m.logTransitions(previous, results)
}

// worst folds component statuses into the overall status.
func worst(components []*Component) ComponentStatus {
	overall := StatusHealthy
	for _, c := range components {
		switch c.Status {
		case StatusUnhealthy:
			return StatusUnhealthy
		case StatusDegraded:
			overall = StatusDegraded
		}
	}
	return overall
}

func (m *Monitor) logTransitions(previous, current map[string]*Component) {
	for name, c := range current {
		before := StatusUnknown
		if p, ok := previous[name]; ok {
			before = p.Status
		}
		if before == c.Status {
			continue
		}

		fields := []zap.Field{
			zap.String("component", name),
			zap.String("from", string(before)),
			zap.String("to", string(c.Status)),
			zap.String("message", c.Message),
		}
		switch c.Status {
		case StatusHealthy:
			m.logger.Info("component healthy", fields...)
		default:
			m.logger.Warn("component status changed", fields...)
		}
	}
}

// GetStatus returns a copy of the latest results.
func (m *Monitor) GetStatus() *Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status := *m.status
	status.Components = make(map[string]*Component, len(m.status.Components))
	for k, v := range m.status.Components {
		component := *v
		status.Components[k] = &component
	}
	status.Uptime = time.Since(m.startTime)

	return &status
}

// GetComponentStatus returns the status of a specific component
func (m *Monitor) GetComponentStatus(name string) *Component {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if component, ok := m.status.Components[name]; ok {
		c := *component
		return &c
	}
	return nil
}

// IsHealthy reports whether every component is healthy.
func (m *Monitor) IsHealthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status.Overall == StatusHealthy
}

// IsReady reports whether commands can be served: no component is unhealthy
// and at least one run has completed.
func (m *Monitor) IsReady() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status.Overall == StatusHealthy || m.status.Overall == StatusDegraded
}
