package config

import (
	"fmt"
	"strconv"

	"github.com/ayusman/handsoff/internal/monitor"
)

// Keys of the monitor settings persisted in the store.
const (
	SettingThreshold = "threshold"
	SettingText      = "text"
	SettingInterval  = "interval"
	SettingMode      = "mode"
	SettingSpace     = "space"
	SettingRegion    = "region"
)

// MonitorSettings returns the persisted form of the runtime monitor settings.
func MonitorSettings(c monitor.Config) map[string]string {
	return map[string]string{
		SettingThreshold: strconv.FormatFloat(c.Threshold, 'g', -1, 64),
		SettingText:      c.Text,
		SettingInterval:  c.Interval.String(),
		SettingMode:      string(c.Mode),
		SettingSpace:     c.Space.String(),
		SettingRegion:    string(c.Region),
	}
}

// ApplySettings applies persisted settings to c. Unknown keys are ignored and
// the result is validated.
func ApplySettings(c *monitor.Config, values map[string]string) error {
	v := monitorValues{}
	str := func(key string) *string {
		if s, ok := values[key]; ok {
			return &s
		}
		return nil
	}

	v.interval = str(SettingInterval)
	v.space = str(SettingSpace)
	v.mode = str(SettingMode)
	v.region = str(SettingRegion)
	v.text = str(SettingText)
	if s := str(SettingThreshold); s != nil {
		f, err := strconv.ParseFloat(*s, 64)
		if err != nil {
			return fmt.Errorf("setting %s: %w", SettingThreshold, err)
		}
		v.threshold = &f
	}

	next := *c
	if err := applyMonitor(&next, v); err != nil {
		return err
	}
	if err := next.Validate(); err != nil {
		return err
	}

	*c = next
	return nil
}
