// Package startup brings the service's external dependencies (database, redis, kafka, tracing)
// up in dependency order and takes them down in reverse.
package startup

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
)

type Dependency interface {
	GetName() string
	DependsOn() []string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

type Status int

const (
	StatusPending Status = iota
	StatusStarted
	StatusStopped
	StatusFailed
)

// Manager starts every registered dependency with fibonacci backoff between attempts.
type Manager struct {
	logger       ectologger.Logger
	dependencies map[string]Dependency
	order        []string
	started      []string
	statuses     map[string]Status
	maxAttempts  int
	backoffUnit  time.Duration
}

func NewManager(logger ectologger.Logger, maxAttempts int) *Manager {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Manager{
		logger:       logger,
		dependencies: make(map[string]Dependency),
		statuses:     make(map[string]Status),
		maxAttempts:  maxAttempts,
		backoffUnit:  time.Second,
	}
}

// WithBackoffUnit scales the fibonacci wait between attempts.
func (m *Manager) WithBackoffUnit(unit time.Duration) *Manager {
	m.backoffUnit = unit
	return m
}

func (m *Manager) Add(dependency Dependency) {
	name := dependency.GetName()
	if _, ok := m.dependencies[name]; !ok {
		m.order = append(m.order, name)
	}
	m.dependencies[name] = dependency
}

func (m *Manager) Status(name string) Status {
	return m.statuses[name]
}

func (m *Manager) Start(ctx context.Context) error {
	var lastErr error

	a, b := 1, 1
	for attempt := 1; attempt <= m.maxAttempts; attempt++ {
		m.logger.WithContext(ctx).WithField("attempt", attempt).Infof("Beginning startup attempt %d", attempt)

		lastErr = nil
		for _, name := range m.order {
			if err := m.start(ctx, name, map[string]bool{}); err != nil {
				m.logger.WithContext(ctx).WithError(err).Errorf("Startup dependency '%s' attempt %d failed", name, attempt)
				lastErr = err
				break
			}
		}
		if lastErr == nil {
			return nil
		}
		if attempt == m.maxAttempts {
			break
		}

		wait := time.Duration(a) * m.backoffUnit
		m.logger.WithContext(ctx).Infof("Retrying in %s (attempt %d/%d)", wait, attempt, m.maxAttempts)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		a, b = b, a+b
	}

	return fmt.Errorf("startup failed after %d attempts: %w", m.maxAttempts, lastErr)
}

func (m *Manager) start(ctx context.Context, name string, visiting map[string]bool) error {
	if m.statuses[name] == StatusStarted {
		return nil
	}
	dependency, ok := m.dependencies[name]
	if !ok {
		return fmt.Errorf("startup dependency '%s' is not registered", name)
	}
	if visiting[name] {
		return fmt.Errorf("startup dependency '%s' depends on itself", name)
	}
	visiting[name] = true

	for _, upstream := range dependency.DependsOn() {
		if err := m.start(ctx, upstream, visiting); err != nil {
			return err
		}
	}

	logger := m.logger.WithContext(ctx).WithField("dependency", name)
	logger.Infof("Starting dependency '%s'", name)
	m.statuses[name] = StatusPending
	if err := dependency.Start(ctx); err != nil {
		m.statuses[name] = StatusFailed
		logger.WithError(err).Errorf("Failed to start dependency '%s'", name)
		return err
	}
	m.statuses[name] = StatusStarted
	m.started = append(m.started, name)
	return nil
}

// Stop stops started dependencies in reverse start order. Every dependency is attempted; the first
// error is returned.
func (m *Manager) Stop(ctx context.Context) error {
	var firstErr error
	for i := len(m.started) - 1; i >= 0; i-- {
		name := m.started[i]
		if m.statuses[name] != StatusStarted {
			continue
		}
		logger := m.logger.WithContext(ctx).WithField("dependency", name)
		logger.Infof("Stopping dependency '%s'", name)
		if err := m.dependencies[name].Stop(ctx); err != nil {
			logger.WithError(err).Errorf("Failed to stop dependency '%s'", name)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		m.statuses[name] = StatusStopped
	}
	m.started = nil
	return firstErr
}

// Func adapts a pair of functions to a Dependency.
type Func struct {
	Name      string
	Upstreams []string
	OnStart   func(ctx context.Context) error
	OnStop    func(ctx context.Context) error
}

func (f Func) GetName() string      { return f.Name }
func (f Func) DependsOn() []string { return f.Upstreams }

func (f Func) Start(ctx context.Context) error {
	if f.OnStart == nil {
		return nil
	}
	return f.OnStart(ctx)
}

func (f Func) Stop(ctx context.Context) error {
	if f.OnStop == nil {
		return nil
	}
	return f.OnStop(ctx)
}
