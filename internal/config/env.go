package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment variable read by ApplyEnv.
const EnvPrefix = "HANDSOFF_"

// LookupFunc looks up an environment variable, like os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// LoadEnvFile loads the given .env files, or .env in the working directory,
// into the process environment. Missing files are ignored; variables that are
// already set win.
func LoadEnvFile(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overlays HANDSOFF_* variables.
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	get := func(name string) *string {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			return &v
		}
		return nil
	}

	var errs []error
	parseFloat := func(name string) *float64 {
		v := get(name)
		if v == nil {
			return nil
		}
		f, err := strconv.ParseFloat(*v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
			return nil
		}
		return &f
	}
	parseInt := func(name string) *int {
		v := get(name)
		if v == nil {
			return nil
		}
		i, err := strconv.Atoi(*v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
			return nil
		}
		return &i
	}
	parseBool := func(name string) *bool {
		v := get(name)
		if v == nil {
			return nil
		}
		b, err := strconv.ParseBool(*v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
			return nil
		}
		return &b
	}

	if err := applyMonitor(&c.Monitor, monitorValues{
		interval:  get("INTERVAL"),
		threshold: parseFloat("THRESHOLD"),
		space:     get("SPACE"),
		mode:      get("MODE"),
		region:    get("REGION"),
		metric:    get("METRIC"),
		text:      get("TEXT"),
	}); err != nil {
		errs = append(errs, err)
	}
	setBool(&c.Monitor.MotionGate, parseBool("MOTION_GATE"))
	c.SelectModels()

	setInt(&c.Camera.Device, parseInt("CAMERA"))
	setInt(&c.Camera.FPS, parseInt("FPS"))

	setString(&c.Detector.Python, get("PYTHON"))
	setString(&c.Detector.Script, get("SCRIPT"))

	setString(&c.Speech.Binary, get("SPEECH_BINARY"))
	setString(&c.Speech.Voice, get("VOICE"))

	setString(&c.Server.Addr, get("ADDR"))
	setString(&c.Server.StaticDir, get("STATIC_DIR"))
	setBool(&c.Server.Disabled, parseBool("NO_SERVER"))

	setString(&c.DBPath, get("DB"))
	setString(&c.Plugins.Dir, get("PLUGINS_DIR"))
	if v := get("PLUGINS"); v != nil {
		c.Plugins.Enabled = splitList(*v)
	}

	setString(&c.Log.Level, get("LOG_LEVEL"))
	setString(&c.Log.File, get("LOG_FILE"))

	setBool(&c.Tray, parseBool("TRAY"))
	setBool(&c.Mute, parseBool("MUTE"))

	return errors.Join(errs...)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
