// Package testutil provides in-memory fakes for the pipeline's
// collaborator interfaces. Every fake records its calls for verification
// and exposes Func fields to override behavior per test.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Kevin-Teran/acuaponia-sub001/errors"
	"github.com/Kevin-Teran/acuaponia-sub001/types"
)

// MockStore implements store.Store in memory.
type MockStore struct {
	mu sync.Mutex

	// Behavior overrides
	FindSensorByHardwareRefFunc func(ctx context.Context, hardwareRef string) (types.Sensor, error)
	FindSensorByIDFunc          func(ctx context.Context, id string) (types.Sensor, error)
	CreateReadingFunc           func(ctx context.Context, r types.Reading) error
	UpdateSensorCacheFunc       func(ctx context.Context, sensorID string, value float64, at time.Time) error
	CreateAlertFunc             func(ctx context.Context, a types.Alert) error
	ResolveAlertFunc            func(ctx context.Context, alertID string, at time.Time) error
	ListUsersByRoleFunc         func(ctx context.Context, role types.Role) ([]types.Principal, error)
	LastReadingFunc             func(ctx context.Context, sensorID string) (float64, bool)

	// Seeded data used by the default behaviors
	Sensors    []types.Sensor
	Users      []types.Principal
	LastValues map[string]float64

	// Recorded calls
	Readings     []types.Reading
	Alerts       []types.Alert
	CacheUpdates []CacheUpdate
}

// CacheUpdate records one UpdateSensorCache call.
type CacheUpdate struct {
	SensorID string
	Value    float64
}

// NewMockStore seeds a store with the given sensors.
func NewMockStore(sensors ...types.Sensor) *MockStore {
	return &MockStore{Sensors: sensors}
}

// FindSensorByHardwareRef resolves against the seeded sensors.
func (m *MockStore) FindSensorByHardwareRef(ctx context.Context, hardwareRef string) (types.Sensor, error) {
	m.mu.Lock()
	fn := m.FindSensorByHardwareRefFunc
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, hardwareRef)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.Sensors {
		if s.HardwareAddress == hardwareRef {
			return s, nil
		}
	}
	return types.Sensor{}, errors.ErrSensorNotFound
}

// FindSensorByID resolves against the seeded sensors.
func (m *MockStore) FindSensorByID(ctx context.Context, id string) (types.Sensor, error) {
	m.mu.Lock()
	fn := m.FindSensorByIDFunc
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.Sensors {
		if s.ID == id {
			return s, nil
		}
	}
	return types.Sensor{}, errors.ErrSensorNotFound
}

// CreateReading records the reading.
func (m *MockStore) CreateReading(ctx context.Context, r types.Reading) error {
	m.mu.Lock()
	fn := m.CreateReadingFunc
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, r)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.Readings = append(m.Readings, r)
	return nil
}

// UpdateSensorCache records the cache update.
func (m *MockStore) UpdateSensorCache(ctx context.Context, sensorID string, value float64, at time.Time) error {
	m.mu.Lock()
	fn := m.UpdateSensorCacheFunc
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, sensorID, value, at)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.CacheUpdates = append(m.CacheUpdates, CacheUpdate{SensorID: sensorID, Value: value})
	return nil
}

// LastReading reads the seeded hot-cache table.
func (m *MockStore) LastReading(ctx context.Context, sensorID string) (float64, bool) {
	m.mu.Lock()
	fn := m.LastReadingFunc
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, sensorID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.LastValues[sensorID]
	return v, ok
}

// ResolveAlert marks a recorded alert resolved.
func (m *MockStore) ResolveAlert(ctx context.Context, alertID string, at time.Time) error {
	m.mu.Lock()
	fn := m.ResolveAlertFunc
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, alertID, at)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.Alerts {
		if m.Alerts[i].ID == alertID {
			m.Alerts[i].Resolved = true
			m.Alerts[i].ResolvedAt = &at
			return nil
		}
	}
	return fmt.Errorf("alert %s not found", alertID)
}

// CreateAlert records the alert.
func (m *MockStore) CreateAlert(ctx context.Context, a types.Alert) error {
	m.mu.Lock()
	fn := m.CreateAlertFunc
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, a)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.Alerts = append(m.Alerts, a)
	return nil
}

// ListUsersByRole filters the seeded users.
func (m *MockStore) ListUsersByRole(ctx context.Context, role types.Role) ([]types.Principal, error) {
	m.mu.Lock()
	fn := m.ListUsersByRoleFunc
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, role)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.Principal
	for _, u := range m.Users {
		if u.Role == role {
			out = append(out, u)
		}
	}
	return out, nil
}

// ReadingCount returns the number of recorded readings.
func (m *MockStore) ReadingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Readings)
}

// AlertCount returns the number of recorded alerts.
func (m *MockStore) AlertCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Alerts)
}
