// Package health tracks component health for the operator surface.
package health

import (
	"sync"
	"time"
)

// Status represents the health state of a component or of the system.
type Status struct {
	Component   string    `json:"component"`
	Healthy     bool      `json:"healthy"`
	State       string    `json:"state"` // "healthy", "degraded", "unhealthy"
	Message     string    `json:"message,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	SubStatuses []Status  `json:"sub_statuses,omitempty"`
}

// NewHealthy builds a healthy status.
func NewHealthy(component, message string) Status {
	return Status{Component: component, Healthy: true, State: "healthy", Message: message, Timestamp: time.Now()}
}

// NewDegraded builds a degraded status: still serving, but impaired.
func NewDegraded(component, message string) Status {
	return Status{Component: component, Healthy: false, State: "degraded", Message: message, Timestamp: time.Now()}
}

// NewUnhealthy builds an unhealthy status.
func NewUnhealthy(component, message string) Status {
	return Status{Component: component, Healthy: false, State: "unhealthy", Message: message, Timestamp: time.Now()}
}

// Monitor tracks the health of named components, thread-safe.
type Monitor struct {
	mu       sync.RWMutex
	statuses map[string]Status
}

// NewMonitor creates an empty monitor.
func NewMonitor() *Monitor {
	return &Monitor{statuses: make(map[string]Status)}
}

// Update records the status for a named component.
func (m *Monitor) Update(name string, status Status) {
	m.mu.Lock()
	defer m.mu.Unlock()

	status.Component = name
	if status.Timestamp.IsZero() {
		status.Timestamp = time.Now()
	}
	m.statuses[name] = status
}

// UpdateHealthy marks a component healthy.
func (m *Monitor) UpdateHealthy(name, message string) {
	m.Update(name, NewHealthy(name, message))
}

// UpdateDegraded marks a component degraded.
func (m *Monitor) UpdateDegraded(name, message string) {
	m.Update(name, NewDegraded(name, message))
}

// UpdateUnhealthy marks a component unhealthy.
func (m *Monitor) UpdateUnhealthy(name, message string) {
	m.Update(name, NewUnhealthy(name, message))
}

// Get returns the status for a named component.
func (m *Monitor) Get(name string) (Status, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status, ok := m.statuses[name]
	return status, ok
}

// Aggregate returns the system-level status: unhealthy if any component is
// unhealthy, degraded if any is degraded, healthy otherwise.
func (m *Monitor) Aggregate(systemName string) Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	agg := NewHealthy(systemName, "")
	for _, status := range m.statuses {
		agg.SubStatuses = append(agg.SubStatuses, status)
		switch status.State {
		case "unhealthy":
			agg.Healthy = false
			agg.State = "unhealthy"
		case "degraded":
			if agg.State == "healthy" {
				agg.Healthy = false
				agg.State = "degraded"
			}
		}
	}
	return agg
}
