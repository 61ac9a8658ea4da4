package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/ayusman/handsoff/internal/landmark"
	"github.com/ayusman/handsoff/internal/monitor"
	"github.com/ayusman/handsoff/internal/notify"
	"github.com/ayusman/handsoff/internal/proximity"
)

// maxFileSize bounds the size of a config file.
const maxFileSize = 1 << 20

// File is the YAML config file. Omitted fields keep their current value.
type File struct {
	DataDir *string `yaml:"data_dir"`
	DBPath  *string `yaml:"db_path"`
	Tray    *bool   `yaml:"tray"`
	Mute    *bool   `yaml:"mute"`

	Monitor struct {
		Interval        *string  `yaml:"interval"`
		Threshold       *float64 `yaml:"threshold"`
		Space           *string  `yaml:"space"`
		Mode            *string  `yaml:"mode"`
		Region          *string  `yaml:"region"`
		Metric          *string  `yaml:"metric"`
		Text            *string  `yaml:"text"`
		MotionGate      *bool    `yaml:"motion_gate"`
		MotionThreshold *float64 `yaml:"motion_threshold"`
	} `yaml:"monitor"`

	Camera struct {
		Device *int `yaml:"device"`
		FPS    *int `yaml:"fps"`
	} `yaml:"camera"`

	Detector struct {
		MaxHands      *int     `yaml:"max_hands"`
		MaxFaces      *int     `yaml:"max_faces"`
		MaxPoses      *int     `yaml:"max_poses"`
		MinConfidence *float64 `yaml:"min_confidence"`
		Script        *string  `yaml:"script"`
		Python        *string  `yaml:"python"`
		LoadAttempts  *int     `yaml:"load_attempts"`
		LoadTimeout   *string  `yaml:"load_timeout"`
		IdleTimeout   *string  `yaml:"idle_timeout"`
	} `yaml:"detector"`

	Speech *notify.SpeechConfig `yaml:"speech"`

	Server struct {
		Addr      *string `yaml:"addr"`
		StaticDir *string `yaml:"static_dir"`
		Disabled  *bool   `yaml:"disabled"`
	} `yaml:"server"`

	Plugins struct {
		Dir     *string  `yaml:"dir"`
		Enabled []string `yaml:"enabled"`
		Timeout *string  `yaml:"timeout"`
	} `yaml:"plugins"`

	Log struct {
		Level    *string `yaml:"level"`
		File     *string `yaml:"file"`
		NoColors *bool   `yaml:"no_colors"`
	} `yaml:"log"`
}

// ReadFile parses the YAML config file at path. Unknown keys are errors.
func ReadFile(path string) (*File, error) {
	clean := filepath.Clean(path)

	info, err := os.Stat(clean)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}

	data, err := os.ReadFile(clean)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	f := &File{}
	if err := yaml.UnmarshalStrict(data, f); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", clean, err)
	}

	return f, nil
}

// ApplyFile overlays the fields set in f.
func (c *Config) ApplyFile(f *File) error {
	if f.DataDir != nil {
		c.SetDataDir(*f.DataDir)
	}
	setString(&c.DBPath, f.DBPath)
	setBool(&c.Tray, f.Tray)
	setBool(&c.Mute, f.Mute)

	m := f.Monitor
	if err := applyMonitor(&c.Monitor, monitorValues{
		interval:  m.Interval,
		threshold: m.Threshold,
		space:     m.Space,
		mode:      m.Mode,
		region:    m.Region,
		metric:    m.Metric,
		text:      m.Text,
	}); err != nil {
		return err
	}
	setBool(&c.Monitor.MotionGate, m.MotionGate)
	setFloat(&c.Monitor.MotionThreshold, m.MotionThreshold)
	c.SelectModels()

	setInt(&c.Camera.Device, f.Camera.Device)
	setInt(&c.Camera.FPS, f.Camera.FPS)

	d := f.Detector
	setInt(&c.Detector.MaxHands, d.MaxHands)
	setInt(&c.Detector.MaxFaces, d.MaxFaces)
	setInt(&c.Detector.MaxPoses, d.MaxPoses)
	setFloat(&c.Detector.MinConfidence, d.MinConfidence)
	setString(&c.Detector.Script, d.Script)
	setString(&c.Detector.Python, d.Python)
	setInt(&c.Detector.LoadAttempts, d.LoadAttempts)
	if err := setDuration(&c.Detector.LoadTimeout, d.LoadTimeout); err != nil {
		return fmt.Errorf("detector load_timeout: %w", err)
	}
	if err := setDuration(&c.Detector.IdleTimeout, d.IdleTimeout); err != nil {
		return fmt.Errorf("detector idle_timeout: %w", err)
	}

	if f.Speech != nil {
		c.Speech = *f.Speech
	}

	setString(&c.Server.Addr, f.Server.Addr)
	setString(&c.Server.StaticDir, f.Server.StaticDir)
	setBool(&c.Server.Disabled, f.Server.Disabled)

	setString(&c.Plugins.Dir, f.Plugins.Dir)
	if f.Plugins.Enabled != nil {
		c.Plugins.Enabled = f.Plugins.Enabled
	}
	if err := setDuration(&c.Plugins.Timeout, f.Plugins.Timeout); err != nil {
		return fmt.Errorf("plugins timeout: %w", err)
	}

	setString(&c.Log.Level, f.Log.Level)
	setString(&c.Log.File, f.Log.File)
	setBool(&c.Log.NoColors, f.Log.NoColors)

	return nil
}

// monitorValues are the monitor settings that arrive as text.
type monitorValues struct {
	interval, space, mode, region, metric, text *string
	threshold                                   *float64
}

// applyMonitor parses and applies the set values. A space change without an
// explicit threshold resets the threshold to the space's default.
func applyMonitor(c *monitor.Config, v monitorValues) error {
	if err := setDuration(&c.Interval, v.interval); err != nil {
		return fmt.Errorf("monitor interval: %w", err)
	}
	if v.space != nil {
		space, err := landmark.ParseSpace(*v.space)
		if err != nil {
			return err
		}
		if space != c.Space && v.threshold == nil {
			c.Threshold = monitor.DefaultThreshold(space)
		}
		c.Space = space
	}
	setFloat(&c.Threshold, v.threshold)
	if v.mode != nil {
		mode, err := monitor.ParseMode(*v.mode)
		if err != nil {
			return err
		}
		c.Mode = mode
	}
	if v.region != nil {
		c.Region = landmark.Region(*v.region)
	}
	if v.metric != nil {
		metric, err := proximity.ParseMetric(*v.metric)
		if err != nil {
			return err
		}
		c.Metric = metric
	}
	setString(&c.Text, v.text)

	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *string) error {
	if v == nil {
		return nil
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}
