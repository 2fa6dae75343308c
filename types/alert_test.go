package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeverity_Notifiable(t *testing.T) {
	assert.False(t, SeverityLow.Notifiable())
	assert.False(t, SeverityMedium.Notifiable())
	assert.True(t, SeverityHigh.Notifiable())
	assert.True(t, SeverityCritical.Notifiable())
}

func TestAlertTypeFor(t *testing.T) {
	tests := []struct {
		kind MeasurementKind
		high bool
		want AlertType
	}{
		{KindTemperature, true, "TEMPERATURE_HIGH"},
		{KindTemperature, false, "TEMPERATURE_LOW"},
		{KindPH, true, "PH_HIGH"},
		{KindPH, false, "PH_LOW"},
		{KindDissolvedOxygen, true, "OXYGEN_HIGH"},
		{KindDissolvedOxygen, false, "OXYGEN_LOW"},
	}
	for _, test := range tests {
		assert.Equal(t, test.want, AlertTypeFor(test.kind, test.high))
	}
}

func TestThresholdBand_Valid(t *testing.T) {
	tests := []struct {
		name string
		band ThresholdBand
		want bool
	}{
		{"ordered", ThresholdBand{CriticalLow: 1, Low: 2, High: 3, CriticalHigh: 4}, true},
		{"equal low bounds", ThresholdBand{CriticalLow: 2, Low: 2, High: 3, CriticalHigh: 4}, false},
		{"inverted warning band", ThresholdBand{CriticalLow: 1, Low: 3, High: 2, CriticalHigh: 4}, false},
		{"equal high bounds", ThresholdBand{CriticalLow: 1, Low: 2, High: 4, CriticalHigh: 4}, false},
		{"zero value", ThresholdBand{}, false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.want, test.band.Valid())
		})
	}
}

func TestParseKind(t *testing.T) {
	for _, kind := range AllKinds {
		got, ok := ParseKind(string(kind))
		assert.True(t, ok)
		assert.Equal(t, kind, got)
	}

	got, ok := ParseKind("Temperature")
	assert.True(t, ok, "kind keys are case-insensitive")
	assert.Equal(t, KindTemperature, got)

	_, ok = ParseKind("salinity")
	assert.False(t, ok)
}
