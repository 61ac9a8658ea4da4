package capture

import (
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// Motion gate defaults.
const (
	// DefaultMotionThreshold is the share of changed pixels, in percent,
	// above which a frame counts as moving.
	DefaultMotionThreshold = 1.0

	// motionWidth is the width frames are shrunk to before comparing.
	motionWidth = 160
	// blurSize is the Gaussian kernel applied at motionWidth.
	blurSize = 7
	// pixelDelta is the grey level change that marks a pixel as changed.
	pixelDelta = 25
)

// MotionDetector gates landmark detection on frame differencing: a frame that
// barely differs from the last evaluated one cannot have changed whether a
// hand touches the face.
type MotionDetector struct {
	mu        sync.Mutex
	threshold float64
	baseline  gocv.Mat
	hasBase   bool
	last      float64
}

// NewMotionDetector creates a MotionDetector. threshold is the percentage of
// pixels that must change; values <= 0 select DefaultMotionThreshold.
func NewMotionDetector(threshold float64) *MotionDetector {
	if threshold <= 0 {
		threshold = DefaultMotionThreshold
	}
	return &MotionDetector{
		threshold: threshold,
		baseline:  gocv.NewMat(),
	}
}

// Moved reports whether frame differs from the previous frame passed in.
// The first frame after construction or Reset always counts as moved so the
// caller has a baseline result.
func (m *MotionDetector) Moved(frame *Frame) bool {
	if frame == nil {
		return false
	}
	moved, _ := m.Detect(frame.Mat)
	return moved
}

// Detect compares mat with the baseline and returns whether it moved and the
// percentage of pixels that changed. mat becomes the new baseline.
func (m *MotionDetector) Detect(mat *gocv.Mat) (bool, float64) {
	if mat == nil || mat.Empty() {
		return false, 0
	}

	current := prepare(mat)

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.hasBase || current.Rows() != m.baseline.Rows() || current.Cols() != m.baseline.Cols() {
		m.replaceBaseline(current)
		m.last = 100
		return true, m.last
	}

	change := changedPercent(current, m.baseline)
	m.replaceBaseline(current)
	m.last = change

	return change > m.threshold, change
}

// replaceBaseline takes ownership of mat.
func (m *MotionDetector) replaceBaseline(mat gocv.Mat) {
	m.baseline.Close()
	m.baseline = mat
	m.hasBase = true
}

// prepare returns a small blurred greyscale copy of mat.
func prepare(mat *gocv.Mat) gocv.Mat {
	gray := gocv.NewMat()
	if mat.Channels() > 1 {
		gocv.CvtColor(*mat, &gray, gocv.ColorBGRToGray)
	} else {
		mat.CopyTo(&gray)
	}

	small := gray
	if gray.Cols() > motionWidth {
		height := gray.Rows() * motionWidth / gray.Cols()
		small = gocv.NewMat()
		gocv.Resize(gray, &small, image.Pt(motionWidth, height), 0, 0, gocv.InterpolationArea)
		gray.Close()
	}

	out := gocv.NewMat()
	gocv.GaussianBlur(small, &out, image.Pt(blurSize, blurSize), 0, 0, gocv.BorderDefault)
	small.Close()

	return out
}

// changedPercent returns the share of pixels whose grey level moved by more
// than pixelDelta.
func changedPercent(a, b gocv.Mat) float64 {
	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(a, b, &diff)

	mask := gocv.NewMat()
	defer mask.Close()
	gocv.Threshold(diff, &mask, pixelDelta, 255, gocv.ThresholdBinary)

	total := mask.Rows() * mask.Cols()
	if total == 0 {
		return 0
	}
	return float64(gocv.CountNonZero(mask)) / float64(total) * 100
}

// LastChange returns the change percentage of the last Detect call.
func (m *MotionDetector) LastChange() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// Reset drops the baseline frame.
func (m *MotionDetector) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.baseline.Close()
	m.baseline = gocv.NewMat()
	m.hasBase = false
	m.last = 0
}

// Close releases the baseline frame.
func (m *MotionDetector) Close() {
	m.Reset()
}

// SetThreshold sets the motion threshold in percent. Values <= 0 are ignored.
func (m *MotionDetector) SetThreshold(threshold float64) {
	if threshold <= 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.threshold = threshold
}
