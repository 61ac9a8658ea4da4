// Package capture provides camera capture functionality using GoCV (OpenCV).
package capture

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/handsoff/internal/event"
)

var log = event.Log

// Default camera settings
const (
	DefaultFPS    = 5
	DefaultWidth  = 640
	DefaultHeight = 480
)

var (
	// ErrCameraNotOpen is returned when trying to read from a camera that is not open.
	ErrCameraNotOpen = errors.New("camera is not open")

	// ErrNoCamera is returned by Probe when no usable camera is attached.
	ErrNoCamera = errors.New("no usable camera found")
)

// Frame is a captured video frame. TimestampMs identifies the frame: two
// reads returning the same timestamp carry the same picture.
type Frame struct {
	Mat         *gocv.Mat
	TimestampMs int64
	Width       int
	Height      int
}

// NewFrame wraps mat, taking its dimensions.
func NewFrame(mat *gocv.Mat, timestampMs int64) *Frame {
	f := &Frame{Mat: mat, TimestampMs: timestampMs}
	if mat != nil {
		f.Width = mat.Cols()
		f.Height = mat.Rows()
	}
	return f
}

// Close releases the underlying Mat.
func (f *Frame) Close() error {
	if f == nil || f.Mat == nil {
		return nil
	}
	err := f.Mat.Close()
	f.Mat = nil
	return err
}

// Camera defines the interface for camera capture implementations.
type Camera interface {
	Open() error
	Close() error
	// ReadFrame returns the current frame. The caller closes it.
	ReadFrame() (*Frame, error)
	SetFPS(fps int)
	FPS() int
	IsOpen() bool
}

// cameraImpl manages video capture from a camera device using GoCV.
type cameraImpl struct {
	deviceID int
	capture  *gocv.VideoCapture
	mu       sync.Mutex
	running  bool
	fps      int
	openedAt time.Time
	stamps   timestamper
}

// NewCamera creates a new Camera with the given device ID.
// The default FPS is 5; the monitor polls far below the camera rate.
func NewCamera(deviceID int) Camera {
	return &cameraImpl{
		deviceID: deviceID,
		fps:      DefaultFPS,
	}
}

// Probe opens the device once and reads a single frame to find out whether
// a camera is usable at all.
func Probe(deviceID int) error {
	capture, err := gocv.OpenVideoCapture(deviceID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNoCamera, err)
	}
	defer capture.Close()

	if !capture.IsOpened() {
		return ErrNoCamera
	}

	mat := gocv.NewMat()
	defer mat.Close()
	if ok := capture.Read(&mat); !ok || mat.Empty() {
		return fmt.Errorf("%w: device %d returned no frame", ErrNoCamera, deviceID)
	}

	log.Debugf("capture: camera %d usable (%dx%d)", deviceID, mat.Cols(), mat.Rows())
	return nil
}

// Open opens the camera for capturing frames.
// It sets the resolution to 640x480 for performance.
func (c *cameraImpl) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}

	capture, err := gocv.OpenVideoCapture(c.deviceID)
	if err != nil {
		return fmt.Errorf("open camera %d: %w", c.deviceID, err)
	}

	capture.Set(gocv.VideoCaptureFrameWidth, DefaultWidth)
	capture.Set(gocv.VideoCaptureFrameHeight, DefaultHeight)
	capture.Set(gocv.VideoCaptureFPS, float64(c.fps))

	c.capture = capture
	c.running = true
	c.openedAt = time.Now()
	c.stamps = newTimestamper(c.deviceID)

	return nil
}

// Close closes the camera and releases resources.
func (c *cameraImpl) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		c.running = false
		return nil
	}

	err := c.capture.Close()
	c.capture = nil
	c.running = false

	return err
}

// ReadFrame reads a single frame from the camera.
// The timestamp is the capture position reported by the backend; devices
// that report none get the time since Open instead.
func (c *cameraImpl) ReadFrame() (*Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		return nil, ErrCameraNotOpen
	}

	mat := gocv.NewMat()
	if ok := c.capture.Read(&mat); !ok {
		mat.Close()
		return nil, errors.New("failed to read frame from camera")
	}

	if mat.Empty() {
		mat.Close()
		return nil, errors.New("captured frame is empty")
	}

	ts := c.stamps.next(int64(c.capture.Get(gocv.VideoCapturePosMsec)), time.Since(c.openedAt))

	return NewFrame(&mat, ts), nil
}

// maxStalledReads is how many reads in a row may report the same capture
// position before the position is no longer trusted.
const maxStalledReads = 3

// timestamper picks frame timestamps. A positive capture position that does
// not go backwards is used as is, so a backend that hands out the same frame
// twice reports the same timestamp. Otherwise the time since Open is used,
// kept strictly after the previous timestamp. Once the position stalls for
// maxStalledReads reads the backend is taken to report a constant position
// and the clock is used for the rest of the session.
type timestamper struct {
	device  int
	last    int64
	lastPos int64
	stalled int
	clock   bool
}

func newTimestamper(device int) timestamper {
	return timestamper{device: device, last: -1}
}

func (t *timestamper) next(pos int64, sinceOpen time.Duration) int64 {
	if !t.clock && pos > 0 && pos >= t.last {
		if pos == t.lastPos {
			t.stalled++
		} else {
			t.stalled = 0
		}
		t.lastPos = pos

		if t.stalled < maxStalledReads {
			t.last = pos
			return pos
		}

		t.clock = true
		log.Warnf("capture: camera %d reports a constant position (%d ms), using the clock for frame timestamps", t.device, pos)
	}

	ts := sinceOpen.Milliseconds()
	if ts <= t.last {
		ts = t.last + 1
	}
	t.last = ts
	return ts
}

// SetFPS sets the frames per second for capture.
// Values less than or equal to 0 are ignored.
func (c *cameraImpl) SetFPS(fps int) {
	if fps <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.fps = fps

	if c.capture != nil {
		c.capture.Set(gocv.VideoCaptureFPS, float64(fps))
	}
}

// FPS returns the current frames per second setting.
func (c *cameraImpl) FPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.fps
}

// IsOpen returns true if the camera is currently open and running.
func (c *cameraImpl) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.running
}
