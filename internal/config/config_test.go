package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		TrackingURI:       "http://localhost:5000",
		TimeResolution:    "1m",
		TimeAlignment:     "floor",
		StepMode:          "auto",
		ServerAddr:        ":8000",
		CORSOrigins:       []string{"http://localhost:3000"},
		MaxUploadBytes:    10 * 1024 * 1024,
		ProgressInterval:  500 * time.Millisecond,
		BackgroundSamples: 50,
		KernelSamples:     2048,
	}
}

func TestValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		require.NoError(t, validConfig().Validate())
	})

	t.Run("missing tracking URI", func(t *testing.T) {
		cfg := validConfig()
		cfg.TrackingURI = ""
		require.Error(t, cfg.Validate())
	})

	t.Run("invalid time resolution", func(t *testing.T) {
		cfg := validConfig()
		cfg.TimeResolution = "2m"
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid time resolution")
	})
}

func TestValidateServer(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		require.NoError(t, validConfig().ValidateServer())
	})

	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty addr", func(c *Config) { c.ServerAddr = "" }, "server address"},
		{"zero upload cap", func(c *Config) { c.MaxUploadBytes = 0 }, "max upload bytes"},
		{"zero interval", func(c *Config) { c.ProgressInterval = 0 }, "progress interval"},
		{"zero background", func(c *Config) { c.BackgroundSamples = 0 }, "background samples"},
		{"zero kernel samples", func(c *Config) { c.KernelSamples = 0 }, "kernel samples"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			err := cfg.ValidateServer()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}

	t.Run("tracking URI still required", func(t *testing.T) {
		cfg := validConfig()
		cfg.TrackingURI = ""
		require.Error(t, cfg.ValidateServer())
	})

	t.Run("ignores metric-logging settings", func(t *testing.T) {
		cfg := validConfig()
		cfg.TimeResolution = "2m"
		cfg.TimeAlignment = "nearest"
		cfg.StepMode = "bogus"
		require.NoError(t, cfg.ValidateServer())
	})
}

func TestValidateTracking(t *testing.T) {
	require.NoError(t, validConfig().ValidateTracking())

	cfg := validConfig()
	cfg.TrackingURI = ""
	err := cfg.ValidateTracking()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tracking URI")
}

func TestIsDatabricks(t *testing.T) {
	cases := []struct {
		uri  string
		want bool
	}{
		{"databricks", true},
		{"databricks://myprofile", true},
		{"https://myworkspace.cloud.databricks.com", true},
		{"https://adb-123.azuredatabricks.net/path", true},
		{"http://localhost:5000", false},
		{"https://mlflow.example.com", false},
	}
	for _, tc := range cases {
		cfg := &Config{TrackingURI: tc.uri}
		assert.Equal(t, tc.want, cfg.IsDatabricks(), tc.uri)
	}
}

func TestGetDatabricksProfile(t *testing.T) {
	assert.Equal(t, "prod", (&Config{TrackingURI: "databricks://prod"}).GetDatabricksProfile())
	assert.Equal(t, "prod", (&Config{TrackingURI: "databricks://prod/extra"}).GetDatabricksProfile())
	assert.Equal(t, "", (&Config{TrackingURI: "http://localhost:5000"}).GetDatabricksProfile())
}
