package types

import (
	"strings"
	"time"
)

// Severity classifies how far a reading strayed from its threshold band.
type Severity string

// Alert severities, ordered by urgency.
const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Notifiable reports whether the severity warrants an outbound notification.
// Low-severity noise stays inside the system.
func (s Severity) Notifiable() bool {
	return s == SeverityHigh || s == SeverityCritical
}

// AlertType encodes the breached measurement kind and direction, e.g.
// TEMPERATURE_HIGH or PH_LOW.
type AlertType string

// AlertTypeFor builds the alert type for a kind and breach direction.
func AlertTypeFor(kind MeasurementKind, high bool) AlertType {
	dir := "LOW"
	if high {
		dir = "HIGH"
	}
	return AlertType(strings.ToUpper(string(kind)) + "_" + dir)
}

// Alert records a threshold breach. Created by the alert engine; resolution
// is an external operator action. Alerts are never deleted by the pipeline.
type Alert struct {
	ID          string          `json:"id"`
	SensorID    string          `json:"sensor_id"`
	SensorName  string          `json:"sensor_name,omitempty"`
	TankName    string          `json:"tank_name,omitempty"`
	Kind        MeasurementKind `json:"kind"`
	Type        AlertType       `json:"type"`
	Severity    Severity        `json:"severity"`
	Message     string          `json:"message"`
	Value       float64         `json:"value"`
	Threshold   float64         `json:"threshold"`
	OwnerUserID string          `json:"owner_user_id,omitempty"`
	Resolved    bool            `json:"resolved"`
	ResolvedAt  *time.Time      `json:"resolved_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// ThresholdBand defines the four-band safety envelope for a measurement
// kind. Values inside [Low, High] are normal; outside is HIGH severity and
// at or past the critical bounds is CRITICAL.
type ThresholdBand struct {
	CriticalLow  float64 `json:"critical_low"`
	Low          float64 `json:"low"`
	High         float64 `json:"high"`
	CriticalHigh float64 `json:"critical_high"`
}

// Valid reports whether the band ordering invariant holds.
func (b ThresholdBand) Valid() bool {
	return b.CriticalLow < b.Low && b.Low < b.High && b.High < b.CriticalHigh
}
