package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/handsoff/internal/landmark"
	"github.com/ayusman/handsoff/internal/monitor"
	"github.com/ayusman/handsoff/internal/proximity"
)

func envMap(values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefaultConfig(t *testing.T) {
	c := DefaultConfig()

	require.NoError(t, c.Validate())
	assert.Equal(t, monitor.DefaultInterval, c.Monitor.Interval)
	assert.Equal(t, monitor.DefaultNormalizedThreshold, c.Monitor.Threshold)
	assert.Equal(t, DefaultAddr, c.Server.Addr)
	assert.Equal(t, filepath.Join(c.DataDir, "handsoff.db"), c.DBPath)
	assert.True(t, c.Detector.Hands)
	assert.True(t, c.Detector.Faces)
	assert.False(t, c.Detector.Poses)
}

func TestConfig_SetDataDir(t *testing.T) {
	c := DefaultConfig()
	c.Plugins.Dir = "/opt/handsoff/plugins"

	c.SetDataDir("/srv/handsoff")

	assert.Equal(t, "/srv/handsoff", c.DataDir)
	assert.Equal(t, "/srv/handsoff/handsoff.db", c.DBPath)
	assert.Equal(t, "/opt/handsoff/plugins", c.Plugins.Dir, "paths outside the data dir are kept")
}

func TestReadFile(t *testing.T) {
	path := writeFile(t, "config.yml", `
data_dir: /tmp/handsoff-test
monitor:
  interval: 500ms
  space: pixel
  mode: pose
  text: Hands down.
camera:
  device: 2
detector:
  min_confidence: 0.7
  idle_timeout: 1m
speech:
  voice: Samantha
  rate: 180
plugins:
  enabled: [desktop-alert]
  timeout: 2s
log:
  level: debug
`)

	f, err := ReadFile(path)
	require.NoError(t, err)

	c := DefaultConfig()
	require.NoError(t, c.ApplyFile(f))
	require.NoError(t, c.Validate())

	assert.Equal(t, "/tmp/handsoff-test", c.DataDir)
	assert.Equal(t, "/tmp/handsoff-test/handsoff.db", c.DBPath)
	assert.Equal(t, 500*time.Millisecond, c.Monitor.Interval)
	assert.Equal(t, landmark.Pixel, c.Monitor.Space)
	assert.Equal(t, float64(monitor.DefaultPixelThreshold), c.Monitor.Threshold, "space change resets the threshold")
	assert.Equal(t, monitor.ModePose, c.Monitor.Mode)
	assert.True(t, c.Detector.Poses)
	assert.False(t, c.Detector.Hands)
	assert.Equal(t, "Hands down.", c.Monitor.Text)
	assert.Equal(t, 2, c.Camera.Device)
	assert.Equal(t, 0.7, c.Detector.MinConfidence)
	assert.Equal(t, time.Minute, c.Detector.IdleTimeout)
	assert.Equal(t, "Samantha", c.Speech.Voice)
	assert.Equal(t, 180, c.Speech.Rate)
	assert.Equal(t, []string{"desktop-alert"}, c.Plugins.Enabled)
	assert.Equal(t, 2*time.Second, c.Plugins.Timeout)
	assert.Equal(t, "debug", c.Log.Level)
}

func TestReadFile_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := ReadFile(filepath.Join(t.TempDir(), "nope.yml"))
		assert.Error(t, err)
	})

	t.Run("unknown key", func(t *testing.T) {
		_, err := ReadFile(writeFile(t, "config.yml", "monitor:\n  treshold: 0.1\n"))
		assert.Error(t, err)
	})

	t.Run("bad duration", func(t *testing.T) {
		f, err := ReadFile(writeFile(t, "config.yml", "monitor:\n  interval: soon\n"))
		require.NoError(t, err)
		c := DefaultConfig()
		assert.Error(t, c.ApplyFile(f))
	})

	t.Run("bad mode", func(t *testing.T) {
		f, err := ReadFile(writeFile(t, "config.yml", "monitor:\n  mode: feet\n"))
		require.NoError(t, err)
		c := DefaultConfig()
		assert.Error(t, c.ApplyFile(f))
	})
}

func TestConfig_ApplyEnv(t *testing.T) {
	c := DefaultConfig()

	err := c.ApplyEnv(envMap(map[string]string{
		"HANDSOFF_THRESHOLD": "0.08",
		"HANDSOFF_INTERVAL":  "1s",
		"HANDSOFF_METRIC":    "spatial",
		"HANDSOFF_REGION":    "lips",
		"HANDSOFF_CAMERA":    "1",
		"HANDSOFF_ADDR":      ":9000",
		"HANDSOFF_PLUGINS":   "desktop-alert, , other",
		"HANDSOFF_MUTE":      "true",
		"HANDSOFF_TEXT":      "",
		"UNRELATED":          "x",
	}))
	require.NoError(t, err)

	assert.Equal(t, 0.08, c.Monitor.Threshold)
	assert.Equal(t, time.Second, c.Monitor.Interval)
	assert.Equal(t, proximity.Spatial, c.Monitor.Metric)
	assert.Equal(t, landmark.RegionLips, c.Monitor.Region)
	assert.Equal(t, 1, c.Camera.Device)
	assert.Equal(t, ":9000", c.Server.Addr)
	assert.Equal(t, []string{"desktop-alert", "other"}, c.Plugins.Enabled)
	assert.True(t, c.Mute)
	assert.NotEmpty(t, c.Monitor.Text, "empty variables are ignored")
}

func TestConfig_ApplyEnvErrors(t *testing.T) {
	c := DefaultConfig()

	err := c.ApplyEnv(envMap(map[string]string{
		"HANDSOFF_THRESHOLD": "close",
		"HANDSOFF_CAMERA":    "front",
		"HANDSOFF_TRAY":      "maybe",
	}))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "HANDSOFF_THRESHOLD")
	assert.Contains(t, err.Error(), "HANDSOFF_CAMERA")
	assert.Contains(t, err.Error(), "HANDSOFF_TRAY")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"negative threshold", func(c *Config) { c.Monitor.Threshold = -1 }},
		{"negative camera", func(c *Config) { c.Camera.Device = -1 }},
		{"zero fps", func(c *Config) { c.Camera.FPS = 0 }},
		{"confidence above one", func(c *Config) { c.Detector.MinConfidence = 1.5 }},
		{"empty addr", func(c *Config) { c.Server.Addr = "" }},
		{"zero plugin timeout", func(c *Config) { c.Plugins.Timeout = 0 }},
		{"empty db path", func(c *Config) { c.DBPath = "" }},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig()
			tt.modify(&c)
			assert.Error(t, c.Validate())
		})
	}

	c := DefaultConfig()
	c.Server.Addr = ""
	c.Server.Disabled = true
	assert.NoError(t, c.Validate(), "no address needed without a server")
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yml"), []byte("monitor:\n  threshold: 0.03\n"), 0644))

	t.Setenv("HANDSOFF_DATA_DIR", dir)
	t.Setenv("HANDSOFF_TEXT", "Hands off.")

	c, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, dir, c.DataDir)
	assert.Equal(t, 0.03, c.Monitor.Threshold, "config.yml in the data dir is read")
	assert.Equal(t, "Hands off.", c.Monitor.Text, "environment wins over the file")
}

func TestLoadDir(t *testing.T) {
	envDir := t.TempDir()
	flagDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(flagDir, "config.yml"), []byte("camera:\n  device: 2\n"), 0644))

	t.Setenv("HANDSOFF_DATA_DIR", envDir)

	c, err := LoadDir("", flagDir)
	require.NoError(t, err)

	assert.Equal(t, flagDir, c.DataDir)
	assert.Equal(t, filepath.Join(flagDir, "handsoff.db"), c.DBPath)
	assert.Equal(t, 2, c.Camera.Device)
}

func TestLoadEnvFile(t *testing.T) {
	assert.NoError(t, LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")))

	path := writeFile(t, "test.env", "HANDSOFF_TEST_ENV_FILE=loaded\n")
	t.Setenv("HANDSOFF_TEST_ENV_FILE", "")
	os.Unsetenv("HANDSOFF_TEST_ENV_FILE")

	require.NoError(t, LoadEnvFile(path))
	assert.Equal(t, "loaded", os.Getenv("HANDSOFF_TEST_ENV_FILE"))
}

func TestSettingsRoundTrip(t *testing.T) {
	c := monitor.DefaultConfig()
	c.Threshold = 0.07
	c.Text = "Hands down."
	c.Mode = monitor.ModePose

	restored := monitor.DefaultConfig()
	require.NoError(t, ApplySettings(&restored, MonitorSettings(c)))

	assert.Equal(t, c, restored)
}

func TestApplySettings_Invalid(t *testing.T) {
	c := monitor.DefaultConfig()

	assert.Error(t, ApplySettings(&c, map[string]string{SettingThreshold: "abc"}))
	assert.Error(t, ApplySettings(&c, map[string]string{SettingThreshold: "-1"}))
	assert.Error(t, ApplySettings(&c, map[string]string{SettingRegion: "ears"}))
	assert.Equal(t, monitor.DefaultConfig(), c, "a failed apply leaves the config unchanged")

	require.NoError(t, ApplySettings(&c, map[string]string{"unknown": "x", SettingText: "Stop."}))
	assert.Equal(t, "Stop.", c.Text)
}
