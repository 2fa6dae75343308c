package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kevin-Teran/acuaponia-sub001/types"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const minimalConfig = `{
	"store": {"postgres_dsn": "postgres://db:5432/acuaponia"},
	"directory": {"jwt_secret": "s3cret"}
}`

func TestLoad_MinimalFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "postgres://db:5432/acuaponia", cfg.Store.PostgresDSN)
	assert.Equal(t, "s3cret", cfg.Directory.JWTSecret)

	// Everything else falls back to defaults.
	assert.Equal(t, "tcp://localhost:1883", cfg.Broker.URL)
	assert.Equal(t, 10, cfg.Broker.MaxReconnects)
	assert.Equal(t, 5, cfg.Broker.ReconnectDelaySec)
	assert.Equal(t, ":8090", cfg.Fanout.Addr)
	assert.Equal(t, 5*time.Second, cfg.EmitterInterval())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.json")
	require.Error(t, err)
}

func TestLoad_MalformedJSON(t *testing.T) {
	_, err := Load(writeConfig(t, "{not json"))
	require.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("ACUAPONIA_BROKER_URL", "tcp://broker.prod:1883")
	t.Setenv("ACUAPONIA_JWT_SECRET", "from-env")
	t.Setenv("ACUAPONIA_EMITTER_INTERVAL_SEC", "30")

	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "tcp://broker.prod:1883", cfg.Broker.URL)
	assert.Equal(t, "from-env", cfg.Directory.JWTSecret, "environment wins over the file")
	assert.Equal(t, 30*time.Second, cfg.EmitterInterval())
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := Default()
		cfg.Store.PostgresDSN = "postgres://db:5432/acuaponia"
		cfg.Directory.JWTSecret = "s3cret"
		return cfg
	}

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("missing broker url", func(t *testing.T) {
		cfg := valid()
		cfg.Broker.URL = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("missing dsn", func(t *testing.T) {
		cfg := valid()
		cfg.Store.PostgresDSN = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("missing jwt secret", func(t *testing.T) {
		cfg := valid()
		cfg.Directory.JWTSecret = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("negative reconnect cap", func(t *testing.T) {
		cfg := valid()
		cfg.Broker.MaxReconnects = -1
		assert.Error(t, cfg.Validate())
	})

	t.Run("notifications without relay", func(t *testing.T) {
		cfg := valid()
		cfg.Notify.Enabled = true
		assert.Error(t, cfg.Validate())

		cfg.Notify.SMTPHost = "mail.example.com"
		cfg.Notify.From = "alerts@example.com"
		assert.NoError(t, cfg.Validate())
	})

	t.Run("bad log format", func(t *testing.T) {
		cfg := valid()
		cfg.Logging.Format = "yaml"
		assert.Error(t, cfg.Validate())
	})

	t.Run("unknown threshold kind", func(t *testing.T) {
		cfg := valid()
		cfg.Thresholds = map[string]types.ThresholdBand{
			"salinity": {CriticalLow: 1, Low: 2, High: 3, CriticalHigh: 4},
		}
		assert.Error(t, cfg.Validate())
	})

	t.Run("unordered threshold band", func(t *testing.T) {
		cfg := valid()
		cfg.Thresholds = map[string]types.ThresholdBand{
			"ph": {CriticalLow: 8, Low: 6.5, High: 7.5, CriticalHigh: 9},
		}
		assert.Error(t, cfg.Validate())
	})
}

func TestThresholdBands(t *testing.T) {
	cfg := Default()
	cfg.Thresholds = map[string]types.ThresholdBand{
		"PH": {CriticalLow: 6.0, Low: 6.5, High: 7.5, CriticalHigh: 8.0},
	}

	bands := cfg.ThresholdBands()
	require.Len(t, bands, 1)
	band, ok := bands[types.KindPH]
	require.True(t, ok, "threshold keys are case-insensitive")
	assert.Equal(t, 6.5, band.Low)

	assert.Nil(t, Default().ThresholdBands())
}
