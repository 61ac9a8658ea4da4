// Package classifier trains and runs a small binary image classifier that
// tells whether a frame shows a hand touching the face.
//
// The network average-pools the input image to a coarse grid, then applies
// one ReLU hidden layer and a sigmoid output. Training minimises L2
// regularised binary cross-entropy with gonum's L-BFGS.
package classifier

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/ayusman/handsoff/internal/dataset"
	"github.com/ayusman/handsoff/internal/event"
)

var log = event.Log

// ErrInputSize is returned when an image does not match the model input.
var ErrInputSize = errors.New("input does not match the model size")

// Config holds the network shape and training settings.
type Config struct {
	Width  int `json:"width"`
	Height int `json:"height"`
	// Grid is the side of the pooled feature grid.
	Grid int `json:"grid"`
	// Hidden is the number of hidden units.
	Hidden int `json:"hidden"`

	L2              float64 `json:"l2"`
	Iterations      int     `json:"iterations"`
	ValidationSplit float64 `json:"validation_split"`
	Seed            int64   `json:"seed"`
}

// DefaultConfig returns a 224x224 input pooled to 28x28 with 128 hidden units.
func DefaultConfig() Config {
	return Config{
		Width:           dataset.DefaultWidth,
		Height:          dataset.DefaultHeight,
		Grid:            28,
		Hidden:          128,
		L2:              1e-4,
		Iterations:      200,
		ValidationSplit: 0.2,
		Seed:            1,
	}
}

// Validate checks the shape and training settings.
func (c Config) Validate() error {
	var errs []error
	if c.Width <= 0 || c.Height <= 0 {
		errs = append(errs, fmt.Errorf("input size must be positive, got %dx%d", c.Width, c.Height))
	}
	if c.Grid <= 0 || c.Grid > c.Width || c.Grid > c.Height {
		errs = append(errs, fmt.Errorf("grid must be within 1..min(width, height), got %d", c.Grid))
	}
	if c.Hidden <= 0 {
		errs = append(errs, fmt.Errorf("hidden units must be positive, got %d", c.Hidden))
	}
	if c.L2 < 0 {
		errs = append(errs, fmt.Errorf("l2 must not be negative, got %g", c.L2))
	}
	if c.Iterations <= 0 {
		errs = append(errs, fmt.Errorf("iterations must be positive, got %d", c.Iterations))
	}
	if c.ValidationSplit < 0 || c.ValidationSplit >= 1 {
		errs = append(errs, fmt.Errorf("validation split must be within [0,1), got %g", c.ValidationSplit))
	}
	return errors.Join(errs...)
}

// Features returns the length of the pooled feature vector.
func (c Config) Features() int {
	return c.Grid * c.Grid * 3
}

// Model is a trained classifier.
type Model struct {
	config Config

	// w1 is Hidden x Features.
	w1 *mat.Dense
	b1 []float64
	w2 []float64
	b2 float64

	report Report
}

// newModel allocates a model with zero weights.
func newModel(config Config) *Model {
	return &Model{
		config: config,
		w1:     mat.NewDense(config.Hidden, config.Features(), nil),
		b1:     make([]float64, config.Hidden),
		w2:     make([]float64, config.Hidden),
	}
}

// Config returns the model's configuration.
func (m *Model) Config() Config {
	return m.config
}

// Report returns the summary of the training run that produced the model.
func (m *Model) Report() Report {
	return m.report
}

// Predict returns the probability that pixels show a hand touching the face.
// pixels are RGB values in [0,1] as produced by dataset.Pixels.
func (m *Model) Predict(pixels []float64) (float64, error) {
	features, err := pool(pixels, m.config)
	if err != nil {
		return 0, err
	}
	return m.forward(features), nil
}

// PredictFile loads and classifies an image file.
func (m *Model) PredictFile(path string) (float64, error) {
	pixels, err := dataset.LoadImage(path, m.config.Width, m.config.Height)
	if err != nil {
		return 0, err
	}
	return m.Predict(pixels)
}

func (m *Model) forward(features []float64) float64 {
	x := mat.NewVecDense(len(features), features)
	h := mat.NewVecDense(m.config.Hidden, nil)
	h.MulVec(m.w1, x)

	z := m.b2
	for i := 0; i < m.config.Hidden; i++ {
		if v := h.AtVec(i) + m.b1[i]; v > 0 {
			z += v * m.w2[i]
		}
	}
	return sigmoid(z)
}

// parameters flattens the weights as w1, b1, w2, b2.
func (m *Model) parameters() []float64 {
	raw := m.w1.RawMatrix().Data
	out := make([]float64, 0, len(raw)+2*len(m.b1)+1)
	out = append(out, raw...)
	out = append(out, m.b1...)
	out = append(out, m.w2...)
	return append(out, m.b2)
}

// setParameters is the inverse of parameters.
func (m *Model) setParameters(p []float64) {
	n := m.config.Hidden * m.config.Features()
	h := m.config.Hidden
	copy(m.w1.RawMatrix().Data, p[:n])
	copy(m.b1, p[n:n+h])
	copy(m.w2, p[n+h:n+2*h])
	m.b2 = p[n+2*h]
}

func parameterCount(c Config) int {
	return c.Hidden*c.Features() + 2*c.Hidden + 1
}

// pool averages pixels over Grid x Grid cells per channel.
func pool(pixels []float64, c Config) ([]float64, error) {
	if len(pixels) != c.Width*c.Height*3 {
		return nil, fmt.Errorf("%w: got %d values, want %dx%dx3", ErrInputSize, len(pixels), c.Width, c.Height)
	}

	out := make([]float64, c.Features())
	counts := make([]float64, c.Grid*c.Grid)

	for y := 0; y < c.Height; y++ {
		gy := y * c.Grid / c.Height
		for x := 0; x < c.Width; x++ {
			gx := x * c.Grid / c.Width
			cell := gy*c.Grid + gx
			src := (y*c.Width + x) * 3
			dst := cell * 3
			out[dst] += pixels[src]
			out[dst+1] += pixels[src+1]
			out[dst+2] += pixels[src+2]
			counts[cell]++
		}
	}

	for cell, n := range counts {
		floats.Scale(1/n, out[cell*3:cell*3+3])
	}

	return out, nil
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}
