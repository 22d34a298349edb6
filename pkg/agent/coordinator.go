package agent

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// ComponentState represents the state of a component
type ComponentState int

const (
	StateUninitialized ComponentState = iota
	StateStarting
	StateRunning
	StateStopping
	StateStopped
	StateError
)

// String returns the string representation of a component state
func (s ComponentState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Component is a long-running part of the agent.
type Component interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// component adapts a pair of functions to Component.
type component struct {
	name  string
	start func(ctx context.Context) error
	stop  func(ctx context.Context) error
}

func (c component) Name() string { return c.name }

func (c component) Start(ctx context.Context) error {
	if c.start == nil {
		return nil
	}
	return c.start(ctx)
}

func (c component) Stop(ctx context.Context) error {
	if c.stop == nil {
		return nil
	}
	return c.stop(ctx)
}

// Coordinator starts components in registration order and stops them in
// reverse.
type Coordinator struct {
	mu         sync.RWMutex
	components []Component
	states     map[string]ComponentState
	logger     *zap.Logger
}

// NewCoordinator creates a new component coordinator
func NewCoordinator(logger *zap.Logger) *Coordinator {
	return &Coordinator{
		components: make([]Component, 0),
		states:     make(map[string]ComponentState),
		logger:     logger.Named("coordinator"),
	}
}

// Register registers a component
func (c *Coordinator) Register(comp Component) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.components = append(c.components, comp)
	c.states[comp.Name()] = StateUninitialized
}

// StartAll starts all registered components, stopping at the first failure.
func (c *Coordinator) StartAll(ctx context.Context) error {
	c.mu.RLock()
	components := append([]Component(nil), c.components...)
	c.mu.RUnlock()

	for _, comp := range components {
		c.setState(comp.Name(), StateStarting)

		if err := comp.Start(ctx); err != nil {
			c.setState(comp.Name(), StateError)
			c.logger.Error("failed to start component",
				zap.String("component", comp.Name()),
				zap.Error(err))
			return err
		}

		c.setState(comp.Name(), StateRunning)
		c.logger.Debug("component started", zap.String("component", comp.Name()))
	}

	return nil
}

// StopAll stops every component that was started, in reverse order.
func (c *Coordinator) StopAll(ctx context.Context) {
	c.mu.RLock()
	components := append([]Component(nil), c.components...)
	c.mu.RUnlock()

	for i := len(components) - 1; i >= 0; i-- {
		comp := components[i]
		switch c.GetState(comp.Name()) {
		case StateUninitialized, StateStopped:
			continue
		}

		c.setState(comp.Name(), StateStopping)
		if err := comp.Stop(ctx); err != nil {
			c.logger.Error("failed to stop component",
				zap.String("component", comp.Name()),
				zap.Error(err))
		}
		c.setState(comp.Name(), StateStopped)
		c.logger.Debug("component stopped", zap.String("component", comp.Name()))
	}
}

// setState sets the state of a component
func (c *Coordinator) setState(name string, state ComponentState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.states[name] = state
}

// GetState returns the state of a component
func (c *Coordinator) GetState(name string) ComponentState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if state, ok := c.states[name]; ok {
		return state
	}
	return StateUninitialized
}

// GetAllStates returns all component states keyed by name.
func (c *Coordinator) GetAllStates() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	states := make(map[string]string, len(c.states))
	for name, state := range c.states {
		states[name] = state.String()
	}
	return states
}

// buildCoordinator registers the manager's components in start order. The
// dispatcher starts last so the first tick finds everything running.
func (m *Manager) buildCoordinator() *Coordinator {
	c := NewCoordinator(m.logger)

	c.Register(component{
		name: "health",
		start: func(ctx context.Context) error {
			m.healthMonitor.Start(ctx)
			return nil
		},
		stop: func(context.Context) error {
			m.healthMonitor.Stop()
			return nil
		},
	})

	if m.webhook != nil {
		c.Register(component{
			name: "webhook",
			start: func(ctx context.Context) error {
				m.webhook.Start(ctx)
				return nil
			},
			stop: func(context.Context) error {
				m.webhook.Stop()
				return nil
			},
		})
	}

	c.Register(component{
		name: "hub",
		stop: func(context.Context) error {
			m.hub.Close()
			return nil
		},
	})

	if m.server != nil {
		c.Register(m.server)
	}

	c.Register(component{
		name: "scheduler",
		stop: func(context.Context) error {
			m.scheduler.Close()
			return nil
		},
	})

	c.Register(component{
		name:  "dispatcher",
		start: m.dispatcher.Start,
	})

	return c
}
