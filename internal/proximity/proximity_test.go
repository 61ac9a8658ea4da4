package proximity

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/handsoff/internal/landmark"
)

func set(points ...landmark.Landmark) landmark.Set {
	return landmark.Set{Space: landmark.Normalized, Points: points}
}

func pt(x, y float64) landmark.Landmark {
	return landmark.Landmark{X: x, Y: y}
}

func randomSet(r *rand.Rand, n int) landmark.Set {
	s := landmark.Set{Space: landmark.Normalized, Points: make([]landmark.Landmark, n)}
	for i := range s.Points {
		s.Points[i] = landmark.Landmark{X: r.Float64(), Y: r.Float64(), Z: r.Float64()*0.2 - 0.1}
	}
	return s
}

func TestWithin_Scenarios(t *testing.T) {
	tests := []struct {
		name       string
		reference  landmark.Set
		candidates []landmark.Set
		threshold  float64
		want       bool
	}{
		{
			name:       "close pair under threshold",
			reference:  set(pt(0, 0)),
			candidates: []landmark.Set{set(pt(0, 0.001))},
			threshold:  0.01,
			want:       true,
		},
		{
			name:       "same pair over tight threshold",
			reference:  set(pt(0, 0)),
			candidates: []landmark.Set{set(pt(0, 0.001))},
			threshold:  0.0001,
			want:       false,
		},
		{
			name:       "empty reference",
			reference:  set(),
			candidates: []landmark.Set{set(pt(0, 0))},
			threshold:  1000,
			want:       false,
		},
		{
			name:       "no candidates",
			reference:  set(pt(0, 0)),
			candidates: nil,
			threshold:  1000,
			want:       false,
		},
		{
			name:       "only empty candidate sets",
			reference:  set(pt(0, 0)),
			candidates: []landmark.Set{set(), set()},
			threshold:  1000,
			want:       false,
		},
		{
			name:       "distance equal to threshold counts",
			reference:  set(pt(0, 0)),
			candidates: []landmark.Set{set(pt(0.5, 0))},
			threshold:  0.5,
			want:       true,
		},
		{
			name:       "second candidate set qualifies",
			reference:  set(pt(0.5, 0.5)),
			candidates: []landmark.Set{set(pt(0.9, 0.9)), set(pt(0.51, 0.5))},
			threshold:  0.05,
			want:       true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Within(tt.reference, tt.candidates, tt.threshold))
		})
	}
}

func TestEvaluate_FirstPair(t *testing.T) {
	reference := set(pt(0, 0), pt(1, 1))
	candidates := []landmark.Set{set(pt(5, 5)), set(pt(1, 1.01))}

	r, err := Evaluate(reference, candidates, 0.1)

	require.NoError(t, err)
	assert.True(t, r.Close)
	assert.Equal(t, 1, r.ReferenceIndex)
	assert.Equal(t, 1, r.CandidateSet)
	assert.Equal(t, 0, r.CandidateIndex)
	assert.InDelta(t, 0.01, r.Distance, 1e-9)
}

func TestEvaluate_Errors(t *testing.T) {
	reference := set(pt(0, 0))

	t.Run("negative threshold", func(t *testing.T) {
		_, err := Evaluate(reference, []landmark.Set{set(pt(0, 0))}, -1)
		assert.ErrorIs(t, err, ErrInvalidThreshold)
	})

	t.Run("NaN threshold", func(t *testing.T) {
		_, err := Evaluate(reference, []landmark.Set{set(pt(0, 0))}, math.NaN())
		assert.ErrorIs(t, err, ErrInvalidThreshold)
	})

	t.Run("mixed coordinate spaces", func(t *testing.T) {
		pixel := set(pt(0, 0)).ToPixel(640, 480)
		_, err := Evaluate(reference, []landmark.Set{pixel}, 40)
		assert.ErrorIs(t, err, landmark.ErrSpaceMismatch)
		assert.False(t, Within(reference, []landmark.Set{pixel}, 40))
	})
}

func TestEvaluate_EmptyAlwaysFalse(t *testing.T) {
	thresholds := []float64{0, 1e-9, 0.13, 40, math.MaxFloat64, math.Inf(1)}
	candidate := []landmark.Set{set(pt(0, 0))}

	for _, th := range thresholds {
		assert.False(t, Within(set(), candidate, th), "empty reference, threshold %v", th)
		assert.False(t, Within(set(pt(0, 0)), nil, th), "no candidates, threshold %v", th)
	}
}

func TestEvaluate_MatchesMinDistance(t *testing.T) {
	r := rand.New(rand.NewSource(7))

	for i := 0; i < 200; i++ {
		reference := randomSet(r, 1+r.Intn(30))
		candidates := []landmark.Set{randomSet(r, 1+r.Intn(21)), randomSet(r, r.Intn(21))}
		threshold := r.Float64() * 0.2

		min, ok := Evaluator{}.MinDistance(reference, candidates)
		require.True(t, ok)

		got := Within(reference, candidates, threshold)
		assert.Equal(t, min <= threshold, got, "iteration %d: min=%v threshold=%v", i, min, threshold)
	}
}

func TestEvaluate_MonotonicInThreshold(t *testing.T) {
	r := rand.New(rand.NewSource(11))

	for i := 0; i < 100; i++ {
		reference := randomSet(r, 10)
		candidates := []landmark.Set{randomSet(r, 21)}
		low := r.Float64() * 0.1
		high := low + r.Float64()*0.1

		if Within(reference, candidates, low) {
			assert.True(t, Within(reference, candidates, high), "raising threshold must not turn true into false")
		}
	}
}

func TestEvaluate_ScaleInvariant(t *testing.T) {
	r := rand.New(rand.NewSource(23))

	for _, factor := range []float64{0.5, 4, 512} {
		for i := 0; i < 50; i++ {
			reference := randomSet(r, 15)
			candidates := []landmark.Set{randomSet(r, 21), randomSet(r, 21)}
			threshold := r.Float64() * 0.15

			want := Within(reference, candidates, threshold)

			scaled := []landmark.Set{candidates[0].Scale(factor), candidates[1].Scale(factor)}
			got := Within(reference.Scale(factor), scaled, threshold*factor)

			assert.Equal(t, want, got, "factor %v iteration %d", factor, i)
		}
	}
}

func TestEvaluate_CandidateOrderIrrelevant(t *testing.T) {
	r := rand.New(rand.NewSource(31))

	for i := 0; i < 100; i++ {
		reference := randomSet(r, 12)
		a, b := randomSet(r, 21), randomSet(r, 21)
		threshold := r.Float64() * 0.1

		assert.Equal(t,
			Within(reference, []landmark.Set{a, b}, threshold),
			Within(reference, []landmark.Set{b, a}, threshold),
		)
	}
}

func TestEvaluator_Spatial(t *testing.T) {
	reference := set(landmark.Landmark{X: 0, Y: 0, Z: 0})
	candidates := []landmark.Set{set(landmark.Landmark{X: 0, Y: 0, Z: 0.3})}

	planar, err := Evaluator{Metric: Planar}.Evaluate(reference, candidates, 0.1)
	require.NoError(t, err)
	assert.True(t, planar.Close, "planar metric ignores depth")

	spatial, err := Evaluator{Metric: Spatial}.Evaluate(reference, candidates, 0.1)
	require.NoError(t, err)
	assert.False(t, spatial.Close)
}

func TestMinDistance_Empty(t *testing.T) {
	_, ok := Evaluator{}.MinDistance(set(), []landmark.Set{set(pt(0, 0))})
	assert.False(t, ok)
}

func BenchmarkEvaluate_FaceMeshTwoHands(b *testing.B) {
	r := rand.New(rand.NewSource(1))
	face := randomSet(r, landmark.NumFacePoints)
	hands := []landmark.Set{randomSet(r, landmark.NumHandPoints), randomSet(r, landmark.NumHandPoints)}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = Evaluate(face, hands, 0)
	}
}

func TestParseMetric(t *testing.T) {
	m, err := ParseMetric("spatial")
	require.NoError(t, err)
	assert.Equal(t, Spatial, m)
	assert.Equal(t, "spatial", m.String())

	m, err = ParseMetric("")
	require.NoError(t, err)
	assert.Equal(t, Planar, m)

	_, err = ParseMetric("manhattan")
	assert.Error(t, err)
}
