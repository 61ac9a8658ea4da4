package detector

import (
	"context"
	"math"
	"sync"

	"gocv.io/x/gocv"

	"github.com/ayusman/handsoff/internal/landmark"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	mu         sync.Mutex
	result     Result
	script     []Result
	err        error
	ready      bool
	calls      int
	timestamps []int64
	models     Models
}

// NewMockDetector creates a new MockDetector that is ready and detects nothing.
func NewMockDetector() *MockDetector {
	return &MockDetector{ready: true}
}

// SetResult sets the result returned by every Detect call.
func (m *MockDetector) SetResult(r Result) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.result = r
	m.script = nil
}

// SetScript queues results returned by successive Detect calls. Once the
// script is exhausted the last entry is repeated.
func (m *MockDetector) SetScript(results ...Result) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = results
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// SetReady controls the value returned by Ready.
func (m *MockDetector) SetReady(ready bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ready = ready
}

// Calls returns how many times Detect has been called.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Timestamps returns the frame timestamps passed to Detect.
func (m *MockDetector) Timestamps() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int64(nil), m.timestamps...)
}

// Detect returns the pre-configured result or error.
func (m *MockDetector) Detect(ctx context.Context, frame *gocv.Mat, timestampMs int64) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	m.timestamps = append(m.timestamps, timestampMs)

	if !m.ready {
		return Result{}, ErrNotReady
	}
	if m.err != nil {
		return Result{}, m.err
	}
	if len(m.script) > 0 {
		r := m.script[0]
		if len(m.script) > 1 {
			m.script = m.script[1:]
		}
		return r, nil
	}
	return m.result, nil
}

// Ready reports the configured readiness.
func (m *MockDetector) Ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ready
}

// SelectModels records the selected models.
func (m *MockDetector) SelectModels(models Models) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.models = models
}

// Models returns the last selected models.
func (m *MockDetector) Models() Models {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.models
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// FaceMesh returns a synthetic face mesh centred at (cx, cy) in normalized
// coordinates. The lips region sits below the centre, the oval around it.
func FaceMesh(cx, cy float64) landmark.Set {
	s := landmark.Set{Kind: landmark.Face, Space: landmark.Normalized, Score: 0.98}
	s.Points = make([]landmark.Landmark, landmark.NumFacePoints)

	// Fill the mesh with a coarse grid over the face box.
	for i := range s.Points {
		col := float64(i%22) / 21.0
		row := float64(i/22) / 21.0
		s.Points[i] = landmark.Landmark{X: cx - 0.1 + col*0.2, Y: cy - 0.13 + row*0.26}
	}

	for i, idx := range landmark.FaceOval {
		a := float64(i) / float64(len(landmark.FaceOval))
		s.Points[idx] = landmark.Landmark{X: cx + 0.1*math.Sin(2*math.Pi*a), Y: cy - 0.13*math.Cos(2*math.Pi*a)}
	}
	for i, idx := range landmark.FaceLips {
		a := float64(i) / float64(len(landmark.FaceLips))
		s.Points[idx] = landmark.Landmark{X: cx + 0.03*math.Sin(2*math.Pi*a), Y: cy + 0.07 - 0.01*math.Cos(2*math.Pi*a)}
	}

	return s
}

// HandAt returns a synthetic open hand whose index fingertip is at (x, y).
func HandAt(x, y float64, label string) landmark.Set {
	s := landmark.Set{Kind: landmark.Hand, Space: landmark.Normalized, Label: label, Score: 0.95}
	s.Points = make([]landmark.Landmark, landmark.NumHandPoints)

	// Wrist 0.2 below the fingertip; fingers fan out upward.
	wrist := landmark.Landmark{X: x, Y: y + 0.2}
	s.Points[landmark.Wrist] = wrist
	for finger := 0; finger < 5; finger++ {
		dx := float64(finger-1) * 0.03
		for joint := 1; joint <= 4; joint++ {
			idx := finger*4 + joint
			s.Points[idx] = landmark.Landmark{
				X: wrist.X + dx*float64(joint)/4,
				Y: wrist.Y - 0.05*float64(joint),
				Z: -0.01 * float64(joint),
			}
		}
	}
	s.Points[landmark.IndexTip] = landmark.Landmark{X: x, Y: y, Z: -0.04}

	return s
}

// HandNearMouth returns a face and a hand whose index fingertip touches the lips.
func HandNearMouth() Result {
	face := FaceMesh(0.5, 0.4)
	lips := face.Points[landmark.FaceLips[0]]
	return Result{
		Faces: []landmark.Set{face},
		Hands: []landmark.Set{HandAt(lips.X, lips.Y+0.005, "Right")},
	}
}

// HandAway returns a face and a hand resting far below it.
func HandAway() Result {
	return Result{
		Faces: []landmark.Set{FaceMesh(0.5, 0.3)},
		Hands: []landmark.Set{HandAt(0.85, 0.75, "Right")},
	}
}

// PoseAt returns a synthetic pose whose left index finger is at (x, y) and
// whose mouth corners are at (0.48, 0.3) and (0.52, 0.3).
func PoseAt(x, y float64) landmark.Set {
	s := landmark.Set{Kind: landmark.Pose, Space: landmark.Normalized, Score: 0.9}
	s.Points = make([]landmark.Landmark, landmark.NumPosePoints)
	for i := range s.Points {
		s.Points[i] = landmark.Landmark{X: 0.5, Y: 0.9}
	}
	s.Points[landmark.PoseNose] = landmark.Landmark{X: 0.5, Y: 0.25}
	s.Points[landmark.PoseMouthLeft] = landmark.Landmark{X: 0.48, Y: 0.3}
	s.Points[landmark.PoseMouthRight] = landmark.Landmark{X: 0.52, Y: 0.3}
	s.Points[landmark.PoseLeftIndex] = landmark.Landmark{X: x, Y: y}
	s.Points[landmark.PoseRightIndex] = landmark.Landmark{X: 0.8, Y: 0.8}
	return s
}
