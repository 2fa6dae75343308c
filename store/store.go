// Package store defines the persistent-store collaborator contract. The
// pipeline never issues ad hoc queries: these verbs are the entire surface
// it is allowed to touch.
package store

import (
	"context"
	"time"

	"github.com/Kevin-Teran/acuaponia-sub001/types"
)

// Store is the narrow persistence interface the pipeline depends on.
// Implementations live in subpackages (postgres) and in testutil.
type Store interface {
	// FindSensorByHardwareRef resolves a sensor from its hardware address.
	// Returns errors.ErrSensorNotFound (wrapped) for unknown references.
	FindSensorByHardwareRef(ctx context.Context, hardwareRef string) (types.Sensor, error)

	// FindSensorByID resolves a sensor from its identifier. Used by the
	// operator control surface, which addresses sensors by id.
	FindSensorByID(ctx context.Context, sensorID string) (types.Sensor, error)

	// CreateReading appends an immutable reading.
	CreateReading(ctx context.Context, r types.Reading) error

	// UpdateSensorCache updates the sensor's cached last-known value.
	// Best-effort from the caller's perspective.
	UpdateSensorCache(ctx context.Context, sensorID string, value float64, at time.Time) error

	// LastReading reads the hot-cache value for a sensor. The second
	// return is false when no cached value exists.
	LastReading(ctx context.Context, sensorID string) (float64, bool)

	// CreateAlert persists a new alert record.
	CreateAlert(ctx context.Context, a types.Alert) error

	// ResolveAlert marks an alert resolved. Invoked by the operator
	// surface, never by the pipeline itself.
	ResolveAlert(ctx context.Context, alertID string, at time.Time) error

	// ListUsersByRole returns the current principals holding a role,
	// used to resolve notification recipients.
	ListUsersByRole(ctx context.Context, role types.Role) ([]types.Principal, error)
}
