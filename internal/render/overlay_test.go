package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/ayusman/handsoff/internal/capture"
	"github.com/ayusman/handsoff/internal/detector"
)

func TestLerp(t *testing.T) {
	tests := []struct {
		name  string
		value float64
		want  float64
	}{
		{name: "near depth gives large radius", value: -0.15, want: 5},
		{name: "far depth gives small radius", value: 0.1, want: 1},
		{name: "midpoint", value: -0.025, want: 3},
		{name: "clamped below", value: -1, want: 5},
		{name: "clamped above", value: 1, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Lerp(tt.value, -0.15, 0.1, 5, 1), 1e-9)
		})
	}

	assert.Equal(t, 2.0, Lerp(3, 1, 1, 2, 4), "degenerate input range returns outMin")
}

func TestDefaultStyles(t *testing.T) {
	s := DefaultStyles()

	assert.Equal(t, 5, s.HandConnectors.LineWidth)
	assert.Equal(t, uint8(255), s.HandConnectors.Color.G)
	assert.Equal(t, 2, s.HandLandmarks.LineWidth)
	assert.Equal(t, uint8(255), s.FaceOval.Color.R)
	assert.Equal(t, 5, s.PoseLandmarks.radius(-0.15))
	assert.Equal(t, 1, s.PoseLandmarks.radius(0.1))
	assert.Equal(t, 3, s.HandLandmarks.radius(0), "without a radius func the line width decides")
}

func TestOverlay_Render(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	mat := gocv.NewMatWithSize(240, 320, gocv.MatTypeCV8UC3)
	defer mat.Close()
	frame := capture.NewFrame(&mat, 100)

	o := NewOverlay(DefaultStyles())

	data, seq := o.Latest()
	assert.Nil(t, data)
	assert.Zero(t, seq)

	require.NoError(t, o.Render(frame, detector.HandNearMouth(), true))

	data, seq = o.Latest()
	require.NotEmpty(t, data)
	assert.Equal(t, uint64(1), seq)

	decoded, err := gocv.IMDecode(data, gocv.IMReadColor)
	require.NoError(t, err)
	defer decoded.Close()

	assert.Equal(t, 320, decoded.Cols())
	assert.Equal(t, 240, decoded.Rows())

	// The alert border is red (BGR order).
	px := decoded.GetVecbAt(2, 2)
	assert.Greater(t, px[2], uint8(180))
	assert.Less(t, px[0], uint8(80))

	// The source frame is left untouched.
	src := mat.GetVecbAt(2, 2)
	assert.Equal(t, uint8(0), src[2])
}

func TestOverlay_RenderEmptyFrame(t *testing.T) {
	o := NewOverlay(DefaultStyles())

	assert.ErrorIs(t, o.Render(nil, detector.Result{}, false), ErrEmptyFrame)
	assert.ErrorIs(t, o.Render(&capture.Frame{}, detector.Result{}, false), ErrEmptyFrame)
}
