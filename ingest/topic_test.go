package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kevin-Teran/acuaponia-sub001/errors"
	"github.com/Kevin-Teran/acuaponia-sub001/types"
)

func TestParseTopic(t *testing.T) {
	tests := []struct {
		name    string
		topic   string
		wantRef string
		wantErr bool
	}{
		{"canonical", "acuaponia/sensors/a1b2c3/data", "a1b2c3", false},
		{"ref with dashes", "acuaponia/sensors/tank-7-temp/data", "tank-7-temp", false},
		{"wrong root", "greenhouse/sensors/a1/data", "", true},
		{"wrong collection", "acuaponia/actuators/a1/data", "", true},
		{"wrong leaf", "acuaponia/sensors/a1/status", "", true},
		{"missing ref", "acuaponia/sensors//data", "", true},
		{"too few segments", "acuaponia/sensors/data", "", true},
		{"too many segments", "acuaponia/sensors/a1/data/extra", "", true},
		{"empty", "", "", true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			ref, err := ParseTopic(test.topic)
			if test.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsInvalid(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.wantRef, ref)
		})
	}
}

func TestTopicFor_RoundTrip(t *testing.T) {
	topic := TopicFor("a1b2c3")
	assert.Equal(t, "acuaponia/sensors/a1b2c3/data", topic)

	ref, err := ParseTopic(topic)
	require.NoError(t, err)
	assert.Equal(t, "a1b2c3", ref)
}

func TestDecodePayload(t *testing.T) {
	receipt := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	t.Run("single measurement", func(t *testing.T) {
		obs, ts, warnings, err := DecodePayload([]byte(`{"temperature": 24.5}`), receipt)
		require.NoError(t, err)
		require.Len(t, obs, 1)
		assert.Equal(t, types.KindTemperature, obs[0].Kind)
		assert.Equal(t, 24.5, obs[0].Value)
		assert.Equal(t, receipt, ts, "missing timestamp defaults to receipt time")
		assert.Empty(t, warnings)
	})

	t.Run("multiple measurements", func(t *testing.T) {
		obs, _, _, err := DecodePayload([]byte(`{"temperature": 24.5, "ph": 7.1, "oxygen": 8.2}`), receipt)
		require.NoError(t, err)
		assert.Len(t, obs, 3)
	})

	t.Run("explicit timestamp", func(t *testing.T) {
		_, ts, _, err := DecodePayload([]byte(`{"ph": 7.0, "timestamp": "2026-03-14T08:30:00Z"}`), receipt)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2026, 3, 14, 8, 30, 0, 0, time.UTC), ts)
	})

	t.Run("malformed timestamp falls back to receipt time", func(t *testing.T) {
		_, ts, _, err := DecodePayload([]byte(`{"ph": 7.0, "timestamp": "yesterday"}`), receipt)
		require.NoError(t, err)
		assert.Equal(t, receipt, ts)
	})

	t.Run("unrecognized keys ignored", func(t *testing.T) {
		obs, _, warnings, err := DecodePayload([]byte(`{"ph": 7.0, "battery": 85}`), receipt)
		require.NoError(t, err)
		assert.Len(t, obs, 1)
		assert.Empty(t, warnings)
	})

	t.Run("non-numeric recognized key warned and skipped", func(t *testing.T) {
		obs, _, warnings, err := DecodePayload([]byte(`{"ph": 7.0, "temperature": "hot"}`), receipt)
		require.NoError(t, err)
		assert.Len(t, obs, 1)
		assert.Len(t, warnings, 1)
	})

	t.Run("no recognized measurements", func(t *testing.T) {
		_, _, _, err := DecodePayload([]byte(`{"battery": 85}`), receipt)
		require.Error(t, err)
		assert.True(t, errors.IsInvalid(err))
	})

	t.Run("not JSON", func(t *testing.T) {
		_, _, _, err := DecodePayload([]byte(`temperature=24.5`), receipt)
		require.Error(t, err)
		assert.True(t, errors.IsInvalid(err))
	})

	t.Run("empty object", func(t *testing.T) {
		_, _, _, err := DecodePayload([]byte(`{}`), receipt)
		require.Error(t, err)
	})
}
