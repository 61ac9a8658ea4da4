// Package proximity decides whether any landmark of one set lies within a
// distance threshold of any landmark of another.
//
// The check is an existence test over all reference × candidate pairs, not a
// centroid or bounding-box comparison. Cost is O(|reference| × Σ|candidates|)
// per call, which is fine at the polling rates the monitor uses (a 478 point
// face mesh against two 21 point hands is ~20k distance computations) but
// would need a spatial index to run on every frame at 30–60 Hz.
package proximity

import (
	"errors"
	"fmt"
	"math"

	"github.com/ayusman/handsoff/internal/landmark"
)

// ErrInvalidThreshold is returned for negative or NaN thresholds.
var ErrInvalidThreshold = errors.New("proximity threshold must be a non-negative number")

// Metric selects which coordinates take part in the distance.
type Metric int

const (
	// Planar uses x and y only.
	Planar Metric = iota
	// Spatial also includes z.
	Spatial
)

func (m Metric) String() string {
	if m == Spatial {
		return "spatial"
	}
	return "planar"
}

// ParseMetric parses "planar" or "spatial".
func ParseMetric(s string) (Metric, error) {
	switch s {
	case "planar", "":
		return Planar, nil
	case "spatial":
		return Spatial, nil
	}
	return Planar, fmt.Errorf("unknown distance metric %q", s)
}

// Result describes the outcome of an evaluation. When Close is true the
// indices identify the first qualifying pair found.
type Result struct {
	Close          bool
	Distance       float64
	ReferenceIndex int
	CandidateSet   int
	CandidateIndex int
}

// Evaluator runs proximity checks with a fixed metric.
type Evaluator struct {
	Metric Metric
}

// Evaluate returns on the first reference/candidate pair whose distance is at
// most threshold. Empty inputs yield a non-close result and no error.
// Every candidate set must be in the same coordinate space as reference.
func (e Evaluator) Evaluate(reference landmark.Set, candidates []landmark.Set, threshold float64) (Result, error) {
	if math.IsNaN(threshold) || threshold < 0 {
		return Result{}, ErrInvalidThreshold
	}
	if err := checkSpaces(reference, candidates); err != nil {
		return Result{}, err
	}
	if reference.Empty() {
		return Result{}, nil
	}

	for ri, rp := range reference.Points {
		for ci, cs := range candidates {
			for pi, cp := range cs.Points {
				d := e.distance(rp, cp)
				if d <= threshold {
					return Result{
						Close:          true,
						Distance:       d,
						ReferenceIndex: ri,
						CandidateSet:   ci,
						CandidateIndex: pi,
					}, nil
				}
			}
		}
	}

	return Result{}, nil
}

// MinDistance returns the smallest pairwise distance. ok is false when either
// side has no points or the spaces differ.
func (e Evaluator) MinDistance(reference landmark.Set, candidates []landmark.Set) (min float64, ok bool) {
	if checkSpaces(reference, candidates) != nil {
		return 0, false
	}

	min = math.Inf(1)
	for _, rp := range reference.Points {
		for _, cs := range candidates {
			for _, cp := range cs.Points {
				if d := e.distance(rp, cp); d < min {
					min = d
					ok = true
				}
			}
		}
	}
	if !ok {
		return 0, false
	}
	return min, true
}

func (e Evaluator) distance(a, b landmark.Landmark) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	if e.Metric == Spatial {
		dz := a.Z - b.Z
		return math.Sqrt(dx*dx + dy*dy + dz*dz)
	}
	return math.Sqrt(dx*dx + dy*dy)
}

func checkSpaces(reference landmark.Set, candidates []landmark.Set) error {
	for _, c := range candidates {
		if c.Empty() || reference.Empty() {
			continue
		}
		if c.Space != reference.Space {
			return landmark.ErrSpaceMismatch
		}
	}
	return nil
}

// Evaluate is Evaluator{Metric: Planar}.Evaluate.
func Evaluate(reference landmark.Set, candidates []landmark.Set, threshold float64) (Result, error) {
	return Evaluator{}.Evaluate(reference, candidates, threshold)
}

// Within reports whether any reference point is within threshold of any
// candidate point, using planar distance. Errors count as "not close".
func Within(reference landmark.Set, candidates []landmark.Set, threshold float64) bool {
	r, err := Evaluate(reference, candidates, threshold)
	return err == nil && r.Close
}
