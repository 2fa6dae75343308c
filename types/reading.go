package types

import "time"

// Reading is one timestamped observation from a sensor. Readings are
// append-only: created exclusively by the ingestion processor and never
// mutated afterwards. TankID is denormalized from the owning sensor so
// consumers can scope by tank without a second lookup.
type Reading struct {
	ID        string          `json:"id"`
	SensorID  string          `json:"sensor_id"`
	TankID    string          `json:"tank_id"`
	Kind      MeasurementKind `json:"kind"`
	Value     float64         `json:"value"`
	Timestamp time.Time       `json:"timestamp"`
}
