package monitor

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/ayusman/handsoff/internal/detector"
	"github.com/ayusman/handsoff/internal/landmark"
	"github.com/ayusman/handsoff/internal/notify"
	"github.com/ayusman/handsoff/internal/proximity"
)

// Mode selects which landmarks are compared.
type Mode string

const (
	// ModeHandFace compares every hand landmark against the first face mesh.
	ModeHandFace Mode = "hand-face"
	// ModePose compares the pose index fingers against the pose mouth corners.
	ModePose Mode = "pose"
)

// Models returns the detector models the mode needs.
func (m Mode) Models() detector.Models {
	if m == ModePose {
		return detector.Models{Poses: true}
	}
	return detector.Models{Hands: true, Faces: true}
}

// ParseMode parses a mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeHandFace, ModePose:
		return Mode(s), nil
	case "":
		return ModeHandFace, nil
	}
	return "", fmt.Errorf("unknown monitor mode %q", s)
}

// Default polling settings.
const (
	DefaultInterval            = 250 * time.Millisecond
	DefaultNormalizedThreshold = 0.05
	DefaultPixelThreshold      = 40
)

// DefaultThreshold returns the default proximity threshold for space.
func DefaultThreshold(space landmark.Space) float64 {
	if space == landmark.Pixel {
		return DefaultPixelThreshold
	}
	return DefaultNormalizedThreshold
}

// Config holds the monitor's tunables. All of them can be changed while
// polling through Apply.
type Config struct {
	// Interval between ticks.
	Interval time.Duration

	// Threshold is the largest distance, in Space units, that counts as close.
	Threshold float64

	// Space is the common coordinate space all sets are converted to.
	Space landmark.Space

	Mode   Mode
	Region landmark.Region
	Metric proximity.Metric

	// Text is passed to the notifier when an alert starts.
	Text string

	// MotionGate skips detection on frames without motion.
	MotionGate      bool
	MotionThreshold float64
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		Interval:        DefaultInterval,
		Threshold:       DefaultNormalizedThreshold,
		Space:           landmark.Normalized,
		Mode:            ModeHandFace,
		Region:          landmark.RegionFace,
		Metric:          proximity.Planar,
		Text:            notify.DefaultText,
		MotionThreshold: 1.0,
	}
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var errs []error
	if c.Interval <= 0 {
		errs = append(errs, fmt.Errorf("interval must be positive, got %s", c.Interval))
	}
	if math.IsNaN(c.Threshold) || c.Threshold < 0 {
		errs = append(errs, proximity.ErrInvalidThreshold)
	}
	if _, err := ParseMode(string(c.Mode)); err != nil || c.Mode == "" {
		errs = append(errs, fmt.Errorf("unknown monitor mode %q", c.Mode))
	}
	switch c.Region {
	case "", landmark.RegionFace, landmark.RegionLips, landmark.RegionOval:
	default:
		errs = append(errs, fmt.Errorf("unknown face region %q", c.Region))
	}
	if c.Space != landmark.Normalized && c.Space != landmark.Pixel {
		errs = append(errs, fmt.Errorf("unknown coordinate space %d", c.Space))
	}
	if c.Text == "" {
		errs = append(errs, errors.New("alert text must not be empty"))
	}
	return errors.Join(errs...)
}
