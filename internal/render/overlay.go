// Package render draws detected landmarks over camera frames and keeps the
// latest annotated frame as JPEG for streaming.
package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"sync"

	"gocv.io/x/gocv"

	"github.com/ayusman/handsoff/internal/capture"
	"github.com/ayusman/handsoff/internal/detector"
	"github.com/ayusman/handsoff/internal/landmark"
)

// ErrEmptyFrame is returned when there is nothing to draw on.
var ErrEmptyFrame = errors.New("frame is empty")

// Renderer draws one tick's detection result.
type Renderer interface {
	Render(frame *capture.Frame, result detector.Result, alert bool) error
}

// Style describes how one category of landmarks or connectors is drawn.
// Radius, when set, maps a landmark's depth to its circle radius.
type Style struct {
	Color     color.RGBA
	LineWidth int
	Radius    func(z float64) float64
}

func (s Style) radius(z float64) int {
	if s.Radius == nil {
		return s.LineWidth + 1
	}
	r := int(s.Radius(z) + 0.5)
	if r < 1 {
		r = 1
	}
	return r
}

// Styles groups the style of every drawn element.
type Styles struct {
	HandConnectors Style
	HandLandmarks  Style
	FaceOval       Style
	PoseConnectors Style
	PoseLandmarks  Style
	AlertBorder    Style
}

var (
	red   = color.RGBA{R: 255, A: 255}
	green = color.RGBA{G: 255, A: 255}
	white = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

// DefaultStyles returns green hand connectors over red landmarks, a red face
// oval and depth-scaled pose landmarks.
func DefaultStyles() Styles {
	return Styles{
		HandConnectors: Style{Color: green, LineWidth: 5},
		HandLandmarks:  Style{Color: red, LineWidth: 2},
		FaceOval:       Style{Color: red, LineWidth: 2},
		PoseConnectors: Style{Color: white, LineWidth: 2},
		PoseLandmarks: Style{Color: red, LineWidth: 1, Radius: func(z float64) float64 {
			return Lerp(z, -0.15, 0.1, 5, 1)
		}},
		AlertBorder: Style{Color: red, LineWidth: 8},
	}
}

// Lerp maps value from [inMin, inMax] onto [outMin, outMax], clamping to the
// output range.
func Lerp(value, inMin, inMax, outMin, outMax float64) float64 {
	if inMax == inMin {
		return outMin
	}
	t := (value - inMin) / (inMax - inMin)
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return outMin + t*(outMax-outMin)
}

// Overlay draws with OpenCV and keeps the most recent annotated frame.
type Overlay struct {
	styles  Styles
	quality int

	mu     sync.RWMutex
	latest []byte
	seq    uint64
}

// NewOverlay creates an Overlay with the given styles.
func NewOverlay(styles Styles) *Overlay {
	return &Overlay{styles: styles, quality: 80}
}

// Render draws result onto a copy of frame and stores it as JPEG.
func (o *Overlay) Render(frame *capture.Frame, result detector.Result, alert bool) error {
	if frame == nil || frame.Mat == nil || frame.Mat.Empty() {
		return ErrEmptyFrame
	}

	mat := frame.Mat.Clone()
	defer mat.Close()

	o.Draw(&mat, result, alert)

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, mat, []int{gocv.IMWriteJpegQuality, o.quality})
	if err != nil {
		return fmt.Errorf("encode overlay: %w", err)
	}
	defer buf.Close()

	data := append([]byte(nil), buf.GetBytes()...)

	o.mu.Lock()
	o.latest = data
	o.seq++
	o.mu.Unlock()

	return nil
}

// Draw annotates mat in place.
func (o *Overlay) Draw(mat *gocv.Mat, result detector.Result, alert bool) {
	w, h := mat.Cols(), mat.Rows()

	for _, face := range result.Faces {
		drawConnections(mat, face.ToPixel(w, h), landmark.FaceOvalConnections(), o.styles.FaceOval)
	}
	for _, pose := range result.Poses {
		p := pose.ToPixel(w, h)
		drawConnections(mat, p, landmark.PoseConnections, o.styles.PoseConnectors)
		drawLandmarks(mat, p, o.styles.PoseLandmarks)
	}
	for _, hand := range result.Hands {
		p := hand.ToPixel(w, h)
		drawConnections(mat, p, landmark.HandConnections, o.styles.HandConnectors)
		drawLandmarks(mat, p, o.styles.HandLandmarks)
	}

	if alert {
		s := o.styles.AlertBorder
		gocv.Rectangle(mat, image.Rect(0, 0, w-1, h-1), s.Color, s.LineWidth)
	}
}

// Latest returns the most recent annotated JPEG and its sequence number.
// The sequence number grows with every rendered frame.
func (o *Overlay) Latest() ([]byte, uint64) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.latest, o.seq
}

func drawConnections(mat *gocv.Mat, s landmark.Set, connections []landmark.Connection, style Style) {
	for _, c := range connections {
		a, okA := s.At(c.From)
		b, okB := s.At(c.To)
		if !okA || !okB {
			continue
		}
		gocv.Line(mat, point(a), point(b), style.Color, style.LineWidth)
	}
}

func drawLandmarks(mat *gocv.Mat, s landmark.Set, style Style) {
	for _, p := range s.Points {
		gocv.Circle(mat, point(p), style.radius(p.Z), style.Color, style.LineWidth)
	}
}

func point(l landmark.Landmark) image.Point {
	return image.Pt(int(l.X+0.5), int(l.Y+0.5))
}
