// Package detector provides landmark detection for hands, faces and poses.
package detector

import (
	"context"
	"errors"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/handsoff/internal/event"
	"github.com/ayusman/handsoff/internal/landmark"
)

var log = event.Log

// ErrNotReady is returned by Detect when the model has not finished loading.
var ErrNotReady = errors.New("landmark detector is not ready")

// Detector defines the interface for landmark detection implementations.
type Detector interface {
	// Detect analyzes a video frame captured at timestampMs and returns the
	// detected landmark sets in normalized coordinates.
	Detect(ctx context.Context, frame *gocv.Mat, timestampMs int64) (Result, error)

	// Ready reports whether the model is loaded and Detect can be called.
	Ready() bool

	// Close releases any resources held by the detector.
	Close() error
}

// Models selects which landmark models run on each frame.
type Models struct {
	Hands bool
	Faces bool
	Poses bool
}

// Selector is implemented by detectors that can switch models between frames.
type Selector interface {
	SelectModels(Models)
}

// Result holds the landmark sets of one frame, grouped by category.
type Result struct {
	Hands []landmark.Set `json:"hands"`
	Faces []landmark.Set `json:"faces"`
	Poses []landmark.Set `json:"poses"`
}

// Empty reports whether nothing was detected.
func (r Result) Empty() bool {
	return len(r.Hands) == 0 && len(r.Faces) == 0 && len(r.Poses) == 0
}

// Config holds configuration options for landmark detection.
type Config struct {
	// MaxHands is the maximum number of hands to detect (default: 2).
	MaxHands int

	// MaxFaces is the maximum number of faces to detect (default: 1).
	MaxFaces int

	// MaxPoses is the maximum number of poses to detect (default: 2).
	MaxPoses int

	// Hands, Faces and Poses select which models run on each frame.
	Hands bool
	Faces bool
	Poses bool

	// MinConfidence is the minimum detection confidence threshold (0.0-1.0).
	MinConfidence float64

	// Script overrides the path of the landmark service script.
	Script string

	// Python overrides the interpreter used to run the script.
	Python string

	// LoadAttempts bounds how often model loading is retried.
	LoadAttempts int

	// LoadBackoff is the delay before the first retry; it doubles per attempt.
	LoadBackoff time.Duration

	// LoadTimeout bounds how long one attempt waits for the service to
	// report its models loaded. Zero waits until the Load context is done.
	LoadTimeout time.Duration

	// IdleTimeout shuts the service down after this long without a request.
	IdleTimeout time.Duration
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		MaxHands:      2,
		MaxFaces:      1,
		MaxPoses:      2,
		Hands:         true,
		Faces:         true,
		MinConfidence: 0.5,
		LoadAttempts:  4,
		LoadBackoff:   500 * time.Millisecond,
		LoadTimeout:   2 * time.Minute,
		IdleTimeout:   30 * time.Second,
	}
}
