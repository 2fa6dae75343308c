package types

import "time"

// EmitterStatus is the lifecycle state of a synthetic emitter.
type EmitterStatus string

// Emitter statuses. An absent entry has no status; removal is expressed by
// the supervisor deleting the entry.
const (
	EmitterActive EmitterStatus = "active"
	EmitterPaused EmitterStatus = "paused"
)

// EmitterState is the operator-visible snapshot of a synthetic emitter.
// Display fields are captured once at start so listings never re-query the
// directory. The timer handle is private to the supervisor and is never
// part of this snapshot.
type EmitterState struct {
	SensorID   string          `json:"sensor_id"`
	SensorName string          `json:"sensor_name"`
	TankName   string          `json:"tank_name"`
	OwnerName  string          `json:"owner_name"`
	Kind       MeasurementKind `json:"kind"`
	Status     EmitterStatus   `json:"status"`
	StartedAt  time.Time       `json:"started_at"`
}
