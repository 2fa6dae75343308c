package types

import "time"

// SensorStatus represents the operational state of a sensor as recorded by
// the external sensor directory.
type SensorStatus string

// Possible sensor statuses.
const (
	SensorActive      SensorStatus = "active"
	SensorInactive    SensorStatus = "inactive"
	SensorMaintenance SensorStatus = "maintenance"
	SensorError       SensorStatus = "error"
)

// Sensor is the pipeline's view of a registered sensor. Metadata fields are
// owned by the external directory; the ingestion processor only mutates the
// cached last-reading fields.
type Sensor struct {
	ID              string          `json:"id"`
	HardwareAddress string          `json:"hardware_address"`
	Name            string          `json:"name"`
	Kind            MeasurementKind `json:"kind"`
	TankID          string          `json:"tank_id"`
	TankName        string          `json:"tank_name"`
	OwnerUserID     string          `json:"owner_user_id"`
	OwnerName       string          `json:"owner_name"`
	Status          SensorStatus    `json:"status"`
	LastReading     *float64        `json:"last_reading,omitempty"`
	LastUpdatedAt   *time.Time      `json:"last_updated_at,omitempty"`
}
