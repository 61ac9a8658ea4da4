package capture

import (
	"errors"
	"sync"

	"gocv.io/x/gocv"
)

// ErrNoMoreFrames is returned by MockCamera once a non-looping script ends.
var ErrNoMoreFrames = errors.New("no more frames")

// MockCamera plays back frames with scripted timestamps for testing.
// The n-th frame served gets the n-th scripted timestamp; past the end of the
// script timestamps keep advancing by 100 ms so they never repeat.
type MockCamera struct {
	frames     []*gocv.Mat
	timestamps []int64
	index      int
	served     int
	loop       bool
	err        error
	mu         sync.Mutex
	running    bool
	reads      int
}

// NewMockCamera creates a MockCamera replaying frames.
func NewMockCamera(frames []*gocv.Mat, loop bool) *MockCamera {
	return &MockCamera{
		frames: frames,
		loop:   loop,
	}
}

// NewBlankMockCamera replays a single black width×height frame forever.
// The caller must Release it.
func NewBlankMockCamera(width, height int) *MockCamera {
	mat := gocv.NewMatWithSize(height, width, gocv.MatTypeCV8UC3)
	return NewMockCamera([]*gocv.Mat{&mat}, true)
}

func (c *MockCamera) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = true
	c.index = 0
	c.served = 0
	return nil
}

func (c *MockCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = false
	return nil
}

// Release closes the frames owned by the camera.
func (c *MockCamera) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, f := range c.frames {
		if f != nil {
			f.Close()
		}
	}
	c.frames = nil
}

func (c *MockCamera) ReadFrame() (*Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.reads++

	if !c.running {
		return nil, ErrCameraNotOpen
	}
	if c.err != nil {
		return nil, c.err
	}
	if len(c.frames) == 0 {
		return nil, errors.New("no frames available")
	}

	if c.index >= len(c.frames) {
		if !c.loop {
			return nil, ErrNoMoreFrames
		}
		c.index = 0
	}

	// Clone the frame so the original isn't modified
	mat := c.frames[c.index].Clone()
	ts := c.timestamp(c.served)
	c.index++
	c.served++

	return NewFrame(&mat, ts), nil
}

func (c *MockCamera) timestamp(n int) int64 {
	if n < len(c.timestamps) {
		return c.timestamps[n]
	}
	var base int64
	if k := len(c.timestamps); k > 0 {
		base = c.timestamps[k-1]
		n -= k
		return base + int64(n+1)*100
	}
	return int64(n+1) * 100
}

func (c *MockCamera) SetFPS(fps int) {}
func (c *MockCamera) FPS() int       { return 15 }
func (c *MockCamera) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// SetFrames replaces the frame sequence
func (c *MockCamera) SetFrames(frames []*gocv.Mat) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = frames
	c.index = 0
}

// SetTimestamps scripts the timestamp of each frame by position. Repeating
// a value simulates a camera that has not delivered a new frame yet.
func (c *MockCamera) SetTimestamps(ts ...int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timestamps = ts
}

// SetError makes every ReadFrame fail with err; nil clears it.
func (c *MockCamera) SetError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

// Reads returns how many times ReadFrame has been called.
func (c *MockCamera) Reads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads
}

// Reset restarts playback from the beginning
func (c *MockCamera) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.index = 0
	c.served = 0
}
