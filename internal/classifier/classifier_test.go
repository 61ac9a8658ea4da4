package classifier

import (
	"context"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/ayusman/handsoff/internal/dataset"
)

func smallConfig() Config {
	return Config{
		Width:           8,
		Height:          8,
		Grid:            4,
		Hidden:          6,
		L2:              1e-3,
		Iterations:      100,
		ValidationSplit: 0.25,
		Seed:            7,
	}
}

// syntheticSet returns n noisy images per class: touching frames are reddish,
// the others bluish.
func syntheticSet(n, width, height int, seed int64) *dataset.Set {
	rng := rand.New(rand.NewSource(seed))
	set := &dataset.Set{Width: width, Height: height}

	for label := 0; label <= 1; label++ {
		for i := 0; i < n; i++ {
			pixels := make([]float64, width*height*3)
			for p := 0; p < width*height; p++ {
				noise := func() float64 { return 0.2 * rng.Float64() }
				if label == dataset.LabelTouching {
					pixels[p*3] = 0.7 + noise()
					pixels[p*3+2] = 0.1 + noise()
				} else {
					pixels[p*3] = 0.1 + noise()
					pixels[p*3+2] = 0.7 + noise()
				}
				pixels[p*3+1] = noise()
			}
			set.Samples = append(set.Samples, dataset.Sample{Label: label, Pixels: pixels})
		}
	}

	return set
}

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
	assert.Equal(t, 28*28*3, DefaultConfig().Features())

	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"zero width", func(c *Config) { c.Width = 0 }},
		{"grid larger than image", func(c *Config) { c.Grid = 500 }},
		{"no hidden units", func(c *Config) { c.Hidden = 0 }},
		{"negative l2", func(c *Config) { c.L2 = -1 }},
		{"no iterations", func(c *Config) { c.Iterations = 0 }},
		{"split of one", func(c *Config) { c.ValidationSplit = 1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig()
			tt.modify(&c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestPool(t *testing.T) {
	c := Config{Width: 4, Height: 2, Grid: 2}
	pixels := make([]float64, 4*2*3)
	// Left half red, right half blue.
	for y := 0; y < 2; y++ {
		for x := 0; x < 4; x++ {
			i := (y*4 + x) * 3
			if x < 2 {
				pixels[i] = 1
			} else {
				pixels[i+2] = 1
			}
		}
	}

	out, err := pool(pixels, c)
	require.NoError(t, err)

	// Grid cells: (0,0) left, (0,1) right, then the same for the second row
	// (the grid has 2 rows over 2 pixel rows).
	assert.Equal(t, []float64{1, 0, 0, 0, 0, 1, 1, 0, 0, 0, 0, 1}, out)

	_, err = pool(pixels[:5], c)
	assert.ErrorIs(t, err, ErrInputSize)
}

func TestSplit(t *testing.T) {
	train, val := split(10, 0.2, rand.New(rand.NewSource(1)))
	assert.Len(t, train, 8)
	assert.Len(t, val, 2)

	train2, val2 := split(10, 0.2, rand.New(rand.NewSource(1)))
	assert.Equal(t, train, train2, "the split is deterministic for a seed")
	assert.Equal(t, val, val2)

	train, val = split(1, 0.5, rand.New(rand.NewSource(1)))
	assert.Len(t, train, 1, "at least one training sample is kept")
	assert.Empty(t, val)
}

func TestObjective_Gradient(t *testing.T) {
	config := smallConfig()
	set := syntheticSet(3, config.Width, config.Height, 3)
	x, y, err := features(set, config)
	require.NoError(t, err)

	obj := newObjective(x, y, config)
	theta := initialParameters(config, rand.New(rand.NewSource(5)))
	// Non-zero biases exercise their gradients too.
	for i := config.Hidden * config.Features(); i < len(theta); i++ {
		theta[i] += 0.05
	}

	grad := make([]float64, len(theta))
	obj.eval(theta, grad)

	const h = 1e-6
	rng := rand.New(rand.NewSource(11))
	for k := 0; k < 40; k++ {
		i := rng.Intn(len(theta))
		if k < 4 {
			// Always check the tail: b1, w2 and b2.
			i = len(theta) - 1 - k*config.Hidden/2
		}

		orig := theta[i]
		theta[i] = orig + h
		up := obj.eval(theta, nil)
		theta[i] = orig - h
		down := obj.eval(theta, nil)
		theta[i] = orig

		numeric := (up - down) / (2 * h)
		assert.InDelta(t, numeric, grad[i], 1e-5, "parameter %d", i)
	}
}

func TestTrain(t *testing.T) {
	config := smallConfig()
	set := syntheticSet(12, config.Width, config.Height, 1)

	model, report, err := Train(context.Background(), set, config)
	require.NoError(t, err)

	assert.Equal(t, 24, report.Samples)
	assert.Equal(t, 6, report.ValSamples)
	assert.Equal(t, 18, report.TrainSamples)
	assert.Positive(t, report.Iterations)
	assert.GreaterOrEqual(t, report.TrainAccuracy, 0.95)
	assert.GreaterOrEqual(t, report.ValAccuracy, 0.8)
	assert.Less(t, report.TrainLoss, math.Log(2), "better than chance")
	assert.Equal(t, report, model.Report())

	fresh := syntheticSet(1, config.Width, config.Height, 99).Samples
	pNot, err := model.Predict(fresh[0].Pixels)
	require.NoError(t, err)
	pTouch, err := model.Predict(fresh[1].Pixels)
	require.NoError(t, err)

	assert.Less(t, pNot, 0.5)
	assert.Greater(t, pTouch, 0.5)

	_, err = model.Predict([]float64{1, 2, 3})
	assert.ErrorIs(t, err, ErrInputSize)
}

func TestTrain_Deterministic(t *testing.T) {
	config := smallConfig()
	config.Iterations = 20
	set := syntheticSet(6, config.Width, config.Height, 2)

	a, _, err := Train(context.Background(), set, config)
	require.NoError(t, err)
	b, _, err := Train(context.Background(), set, config)
	require.NoError(t, err)

	assert.True(t, mat.Equal(a.w1, b.w1))
	assert.Equal(t, a.w2, b.w2)
}

func TestTrain_Errors(t *testing.T) {
	config := smallConfig()

	_, _, err := Train(context.Background(), &dataset.Set{Width: 8, Height: 8}, config)
	assert.ErrorIs(t, err, dataset.ErrEmptyDataset)

	_, _, err = Train(context.Background(), syntheticSet(2, 16, 16, 1), config)
	assert.ErrorIs(t, err, ErrInputSize)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = Train(ctx, syntheticSet(4, 8, 8, 1), config)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSaveLoad(t *testing.T) {
	config := smallConfig()
	config.Iterations = 30
	set := syntheticSet(6, config.Width, config.Height, 4)

	model, _, err := Train(context.Background(), set, config)
	require.NoError(t, err)

	dir := filepath.Join(t.TempDir(), "model")
	path, err := model.Save(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, ModelFile), path)

	for _, p := range []string{dir, path} {
		loaded, err := Load(p)
		require.NoError(t, err)

		assert.Equal(t, model.Config(), loaded.Config())
		assert.Equal(t, model.Report(), loaded.Report())

		for _, s := range set.Samples[:3] {
			want, err := model.Predict(s.Pixels)
			require.NoError(t, err)
			got, err := loaded.Predict(s.Pixels)
			require.NoError(t, err)
			assert.InDelta(t, want, got, 1e-12)
		}
	}
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ModelFile), []byte(`{"version": 1, "config": {"width": 8, "height": 8, "grid": 4, "hidden": 2, "iterations": 1}, "w1": [1]}`), 0644))
	_, err = Load(dir)
	assert.Error(t, err, "weights must match the config")

	require.NoError(t, os.WriteFile(filepath.Join(dir, ModelFile), []byte(`{"version": 9}`), 0644))
	_, err = Load(dir)
	assert.Error(t, err)
}
