package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "auth:\n  token: t0k3n\n"), false)
	require.NoError(t, err)

	assert.Equal(t, "0 0 * * * *", cfg.Cron.Pipeline)
	assert.Equal(t, "BTCUSDT", cfg.MarketData.Symbol)
	assert.Equal(t, "1m", cfg.MarketData.LatestInterval)
	assert.Equal(t, "1h", cfg.Pipeline.HistoryInterval)
	assert.Equal(t, 200, cfg.Pipeline.HistoryLimit)
	assert.Equal(t, 0.005, cfg.Pipeline.PredictionBand)
	assert.Equal(t, "local", cfg.Pipeline.Lock)
	assert.Equal(t, 10*time.Minute, cfg.Pipeline.LockTTL)
	assert.Equal(t, 10, cfg.Strategy.MACShortPeriod)
	assert.Equal(t, 200, cfg.Strategy.TrendLongPeriod)
	assert.Equal(t, 24, cfg.Predictor.Window)
	assert.Equal(t, "t0k3n", cfg.Auth.Token)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("TS_AUTH_TOKEN", "from-env")
	t.Setenv("TS_PIPELINE_HISTORY_LIMIT", "150")
	t.Setenv("TS_CRON_PIPELINE", "0 30 * * * *")
	t.Setenv("TS_NOTIFY_SLACK_TOKEN", "xoxb-1")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), true)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Auth.Token)
	assert.Equal(t, 150, cfg.Pipeline.HistoryLimit)
	assert.Equal(t, "0 30 * * * *", cfg.Cron.Pipeline)
	assert.Equal(t, "xoxb-1", cfg.Notify.Slack.Token)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), false)
	assert.Error(t, err)
}

func TestLoad_Validation(t *testing.T) {
	cases := map[string]string{
		"missing auth token":  "app:\n  env: dev\n",
		"redis lock no addr":  "auth:\n  token: x\npipeline:\n  lock: redis\nredis:\n  addr: \"\"\n",
		"unknown lock":        "auth:\n  token: x\npipeline:\n  lock: etcd\n",
		"mac periods swapped": "auth:\n  token: x\nstrategy:\n  mac_short_period: 60\n",
		"band out of range":   "auth:\n  token: x\npipeline:\n  prediction_band: 1.5\n",
		"kafka topic alone":   "auth:\n  token: x\nnotify:\n  kafka:\n    topic: signals\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body), false)
			assert.Error(t, err)
		})
	}

	_, err := Load(writeConfig(t, "auth:\n  disabled: true\n"), false)
	assert.NoError(t, err)
}
