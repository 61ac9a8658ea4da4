// Package config assembles the application configuration from defaults, an
// optional YAML file, a .env file and HANDSOFF_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/handsoff/internal/detector"
	"github.com/ayusman/handsoff/internal/event"
	"github.com/ayusman/handsoff/internal/monitor"
	"github.com/ayusman/handsoff/internal/notify"
)

// DefaultAddr is the default listen address of the control server.
const DefaultAddr = "127.0.0.1:8080"

// CameraConfig selects the capture device.
type CameraConfig struct {
	Device int
	FPS    int
}

// ServerConfig controls the local HTTP server.
type ServerConfig struct {
	Addr      string
	StaticDir string
	Disabled  bool
}

// PluginConfig controls alert plugins.
type PluginConfig struct {
	Dir string
	// Enabled lists the plugins that receive alert and clear actions.
	Enabled []string
	Timeout time.Duration
}

// Config is the complete application configuration.
type Config struct {
	// DataDir holds the database, plugins and the optional config file.
	DataDir string

	Monitor  monitor.Config
	Camera   CameraConfig
	Detector detector.Config
	Speech   notify.SpeechConfig
	Server   ServerConfig
	Plugins  PluginConfig
	Log      event.LogConfig

	// DBPath is the SQLite database file.
	DBPath string

	// Tray shows the system tray toggle.
	Tray bool

	// Mute replaces speech with log output.
	Mute bool
}

// DefaultDataDir returns ~/.handsoff, or .handsoff when there is no home
// directory.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".handsoff"
	}
	return filepath.Join(home, ".handsoff")
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	dataDir := DefaultDataDir()

	c := Config{
		DataDir:  dataDir,
		Monitor:  monitor.DefaultConfig(),
		Camera:   CameraConfig{Device: 0, FPS: 5},
		Detector: detector.DefaultConfig(),
		Server:   ServerConfig{Addr: DefaultAddr},
		Plugins: PluginConfig{
			Dir:     filepath.Join(dataDir, "plugins"),
			Timeout: 5 * time.Second,
		},
		Log:    event.LogConfig{Level: "info"},
		DBPath: filepath.Join(dataDir, "handsoff.db"),
	}
	c.SelectModels()

	return c
}

// SetDataDir moves the data directory and every path that still points into
// the old one.
func (c *Config) SetDataDir(dir string) {
	rebase := func(p string) string {
		if rel, err := filepath.Rel(c.DataDir, p); err == nil && !strings.HasPrefix(rel, "..") {
			return filepath.Join(dir, rel)
		}
		return p
	}
	c.DBPath = rebase(c.DBPath)
	c.Plugins.Dir = rebase(c.Plugins.Dir)
	c.DataDir = dir
}

// SelectModels enables the detector models the monitor mode needs.
func (c *Config) SelectModels() {
	m := c.Monitor.Mode.Models()
	c.Detector.Hands = m.Hands
	c.Detector.Faces = m.Faces
	c.Detector.Poses = m.Poses
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var errs []error

	if err := c.Monitor.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Camera.Device < 0 {
		errs = append(errs, fmt.Errorf("camera device must not be negative, got %d", c.Camera.Device))
	}
	if c.Camera.FPS <= 0 {
		errs = append(errs, fmt.Errorf("camera fps must be positive, got %d", c.Camera.FPS))
	}
	if c.Detector.MinConfidence < 0 || c.Detector.MinConfidence > 1 {
		errs = append(errs, fmt.Errorf("detector min confidence must be within [0,1], got %g", c.Detector.MinConfidence))
	}
	if !c.Server.Disabled && c.Server.Addr == "" {
		errs = append(errs, errors.New("server address must not be empty"))
	}
	if c.Plugins.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("plugin timeout must be positive, got %s", c.Plugins.Timeout))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("database path must not be empty"))
	}
	if c.Log.Level != "" {
		if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Load builds a Config from the defaults, the YAML file at path and the
// environment. An empty path falls back to config.yml in the data directory
// when it exists.
func Load(path string) (Config, error) {
	return LoadDir(path, "")
}

// LoadDir is Load with the data directory set to dataDir when it is not empty.
// dataDir takes precedence over HANDSOFF_DATA_DIR.
func LoadDir(path, dataDir string) (Config, error) {
	c := DefaultConfig()

	if err := LoadEnvFile(); err != nil {
		return c, err
	}
	if dir, ok := os.LookupEnv(EnvPrefix + "DATA_DIR"); ok && dir != "" {
		c.SetDataDir(dir)
	}
	if dataDir != "" {
		c.SetDataDir(dataDir)
	}

	if path == "" {
		candidate := filepath.Join(c.DataDir, "config.yml")
		if _, err := os.Stat(candidate); err == nil {
			path = candidate
		}
	}
	if path != "" {
		f, err := ReadFile(path)
		if err != nil {
			return c, err
		}
		if err := c.ApplyFile(f); err != nil {
			return c, fmt.Errorf("apply %s: %w", path, err)
		}
	}

	if err := c.ApplyEnv(os.LookupEnv); err != nil {
		return c, err
	}

	return c, nil
}
