package types

import "strings"

// MeasurementKind identifies the physical quantity a sensor reports.
type MeasurementKind string

// Supported measurement kinds.
const (
	KindTemperature     MeasurementKind = "temperature"
	KindPH              MeasurementKind = "ph"
	KindDissolvedOxygen MeasurementKind = "oxygen"
)

// AllKinds lists every recognized measurement kind. Payload keys outside
// this set are ignored during ingestion.
var AllKinds = []MeasurementKind{KindTemperature, KindPH, KindDissolvedOxygen}

// ParseKind returns the MeasurementKind for a payload key, case-insensitively.
// The second return value is false for unrecognized keys.
func ParseKind(key string) (MeasurementKind, bool) {
	switch MeasurementKind(strings.ToLower(key)) {
	case KindTemperature:
		return KindTemperature, true
	case KindPH:
		return KindPH, true
	case KindDissolvedOxygen:
		return KindDissolvedOxygen, true
	default:
		return "", false
	}
}

// String returns the wire representation of the kind.
func (k MeasurementKind) String() string {
	return string(k)
}

// Unit returns the display unit for the kind.
func (k MeasurementKind) Unit() string {
	switch k {
	case KindTemperature:
		return "°C"
	case KindPH:
		return "pH"
	case KindDissolvedOxygen:
		return "mg/L"
	default:
		return ""
	}
}
