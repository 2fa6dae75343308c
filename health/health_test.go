package health

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitor_UpdateAndGet(t *testing.T) {
	m := NewMonitor()

	_, ok := m.Get("broker")
	assert.False(t, ok)

	m.UpdateHealthy("broker", "connected")
	status, ok := m.Get("broker")
	require.True(t, ok)
	assert.True(t, status.Healthy)
	assert.Equal(t, "healthy", status.State)
	assert.Equal(t, "broker", status.Component)
	assert.False(t, status.Timestamp.IsZero())
}

func TestMonitor_Aggregate(t *testing.T) {
	m := NewMonitor()
	m.UpdateHealthy("broker", "connected")
	m.UpdateHealthy("ingest", "running")

	agg := m.Aggregate("pipeline")
	assert.True(t, agg.Healthy)
	assert.Equal(t, "healthy", agg.State)
	assert.Len(t, agg.SubStatuses, 2)

	m.UpdateDegraded("broker", "reconnecting")
	agg = m.Aggregate("pipeline")
	assert.False(t, agg.Healthy)
	assert.Equal(t, "degraded", agg.State)

	m.UpdateUnhealthy("store", "unreachable")
	agg = m.Aggregate("pipeline")
	assert.Equal(t, "unhealthy", agg.State, "unhealthy dominates degraded")

	m.UpdateHealthy("broker", "connected")
	agg = m.Aggregate("pipeline")
	assert.Equal(t, "unhealthy", agg.State, "store is still down")
}

func TestMonitor_EmptyAggregateIsHealthy(t *testing.T) {
	agg := NewMonitor().Aggregate("pipeline")
	assert.True(t, agg.Healthy)
	assert.Empty(t, agg.SubStatuses)
}
