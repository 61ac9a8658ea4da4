package classifier

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"

	"github.com/ayusman/handsoff/internal/dataset"
)

// Report summarises a training run.
type Report struct {
	Samples       int     `json:"samples"`
	TrainSamples  int     `json:"train_samples"`
	ValSamples    int     `json:"val_samples"`
	Iterations    int     `json:"iterations"`
	TrainLoss     float64 `json:"train_loss"`
	ValLoss       float64 `json:"val_loss"`
	TrainAccuracy float64 `json:"train_accuracy"`
	ValAccuracy   float64 `json:"val_accuracy"`
	Status        string  `json:"status"`
}

// Train fits a model to set. The split into training and validation samples
// is a seeded shuffle, so equal inputs give equal models.
func Train(ctx context.Context, set *dataset.Set, config Config) (*Model, Report, error) {
	if err := config.Validate(); err != nil {
		return nil, Report{}, err
	}
	if err := ctx.Err(); err != nil {
		return nil, Report{}, err
	}
	if set == nil || len(set.Samples) == 0 {
		return nil, Report{}, dataset.ErrEmptyDataset
	}
	if set.Width != config.Width || set.Height != config.Height {
		return nil, Report{}, fmt.Errorf("%w: dataset is %dx%d, model is %dx%d", ErrInputSize, set.Width, set.Height, config.Width, config.Height)
	}

	x, y, err := features(set, config)
	if err != nil {
		return nil, Report{}, err
	}

	rng := rand.New(rand.NewSource(config.Seed))
	trainIdx, valIdx := split(len(y), config.ValidationSplit, rng)
	trainX, trainY := rows(x, y, trainIdx)

	report := Report{
		Samples:      len(y),
		TrainSamples: len(trainIdx),
		ValSamples:   len(valIdx),
	}

	obj := newObjective(trainX, trainY, config)
	initial := initialParameters(config, rng)

	problem := optimize.Problem{
		Func: func(theta []float64) float64 { return obj.eval(theta, nil) },
		Grad: func(grad, theta []float64) { obj.eval(theta, grad) },
	}
	settings := &optimize.Settings{
		MajorIterations: config.Iterations,
		Recorder:        &progress{ctx: ctx, every: 10},
	}

	log.Infof("classifier: training on %d samples (%d held out), %d features, %d hidden units",
		report.TrainSamples, report.ValSamples, config.Features(), config.Hidden)

	result, err := optimize.Minimize(problem, initial, settings, &optimize.LBFGS{})
	if ctx.Err() != nil {
		return nil, report, ctx.Err()
	}
	if err != nil && (result == nil || !budgetSpent(result.Status)) {
		return nil, report, fmt.Errorf("optimize: %w", err)
	}

	model := newModel(config)
	model.setParameters(result.X)

	report.Iterations = result.Stats.MajorIterations
	report.Status = result.Status.String()
	report.TrainLoss, report.TrainAccuracy = model.evaluate(trainX, trainY)
	if len(valIdx) > 0 {
		valX, valY := rows(x, y, valIdx)
		report.ValLoss, report.ValAccuracy = model.evaluate(valX, valY)
	}
	model.report = report

	log.Infof("classifier: %s after %d iterations, train loss %.4f acc %.3f, validation loss %.4f acc %.3f",
		report.Status, report.Iterations, report.TrainLoss, report.TrainAccuracy, report.ValLoss, report.ValAccuracy)

	return model, report, nil
}

// budgetSpent reports whether the optimizer stopped on one of its limits
// rather than failing.
func budgetSpent(s optimize.Status) bool {
	switch s {
	case optimize.IterationLimit, optimize.FunctionEvaluationLimit, optimize.GradientEvaluationLimit, optimize.RuntimeLimit:
		return true
	}
	return false
}

// features pools every sample into one row of a matrix.
func features(set *dataset.Set, config Config) (*mat.Dense, []float64, error) {
	n := len(set.Samples)
	x := mat.NewDense(n, config.Features(), nil)
	y := make([]float64, n)

	for i, s := range set.Samples {
		row, err := pool(s.Pixels, config)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", s.Path, err)
		}
		x.SetRow(i, row)
		y[i] = float64(s.Label)
	}

	return x, y, nil
}

// split shuffles 0..n-1 and holds out round(n*fraction) indices, keeping at
// least one training sample.
func split(n int, fraction float64, rng *rand.Rand) (train, val []int) {
	perm := rng.Perm(n)
	nVal := int(math.Round(float64(n) * fraction))
	if nVal >= n {
		nVal = n - 1
	}
	return perm[nVal:], perm[:nVal]
}

func rows(x *mat.Dense, y []float64, idx []int) (*mat.Dense, []float64) {
	_, d := x.Dims()
	out := mat.NewDense(len(idx), d, nil)
	labels := make([]float64, len(idx))
	for i, j := range idx {
		out.SetRow(i, x.RawRowView(j))
		labels[i] = y[j]
	}
	return out, labels
}

func initialParameters(config Config, rng *rand.Rand) []float64 {
	p := make([]float64, parameterCount(config))
	nw1 := config.Hidden * config.Features()
	h := config.Hidden

	s1 := math.Sqrt(2 / float64(config.Features()))
	for i := 0; i < nw1; i++ {
		p[i] = rng.NormFloat64() * s1
	}
	s2 := math.Sqrt(1 / float64(h))
	for i := nw1 + h; i < nw1+2*h; i++ {
		p[i] = rng.NormFloat64() * s2
	}

	return p
}

// evaluate returns the mean cross-entropy and the accuracy at 0.5.
func (m *Model) evaluate(x *mat.Dense, y []float64) (loss, accuracy float64) {
	n, _ := x.Dims()
	if n == 0 {
		return 0, 0
	}

	losses := make([]float64, n)
	correct := make([]float64, n)
	for i := 0; i < n; i++ {
		p := m.forward(x.RawRowView(i))
		p = math.Min(math.Max(p, 1e-12), 1-1e-12)
		losses[i] = -(y[i]*math.Log(p) + (1-y[i])*math.Log(1-p))
		if (p >= 0.5) == (y[i] == 1) {
			correct[i] = 1
		}
	}

	return stat.Mean(losses, nil), stat.Mean(correct, nil)
}

// objective is the regularised cross-entropy of the training set.
type objective struct {
	x      *mat.Dense
	y      []float64
	config Config
	// a holds the hidden activations, then their gradient.
	a *mat.Dense
}

func newObjective(x *mat.Dense, y []float64, config Config) *objective {
	n, _ := x.Dims()
	return &objective{
		x:      x,
		y:      y,
		config: config,
		a:      mat.NewDense(n, config.Hidden, nil),
	}
}

// eval returns the loss at theta and, when grad is not nil, writes the
// gradient into it.
func (o *objective) eval(theta, grad []float64) float64 {
	n, d := o.x.Dims()
	h := o.config.Hidden
	nw1 := h * d
	l2 := o.config.L2

	w1 := mat.NewDense(h, d, theta[:nw1])
	b1 := theta[nw1 : nw1+h]
	w2 := theta[nw1+h : nw1+2*h]
	b2 := theta[nw1+2*h]

	o.a.Mul(o.x, w1.T())
	for i := 0; i < n; i++ {
		row := o.a.RawRowView(i)
		for j := range row {
			if v := row[j] + b1[j]; v > 0 {
				row[j] = v
			} else {
				row[j] = 0
			}
		}
	}

	z := mat.NewVecDense(n, nil)
	z.MulVec(o.a, mat.NewVecDense(h, w2))

	dz := make([]float64, n)
	var loss float64
	for i := 0; i < n; i++ {
		zi := z.AtVec(i) + b2
		// Cross-entropy on the logit, stable for large |zi|.
		loss += math.Max(zi, 0) - zi*o.y[i] + math.Log1p(math.Exp(-math.Abs(zi)))
		dz[i] = (sigmoid(zi) - o.y[i]) / float64(n)
	}
	loss /= float64(n)
	loss += l2 / 2 * (floats.Dot(theta[:nw1], theta[:nw1]) + floats.Dot(w2, w2))

	if grad == nil {
		return loss
	}

	gw2 := grad[nw1+h : nw1+2*h]
	mat.NewVecDense(h, gw2).MulVec(o.a.T(), mat.NewVecDense(n, dz))
	floats.AddScaled(gw2, l2, w2)
	grad[nw1+2*h] = floats.Sum(dz)

	gb1 := grad[nw1 : nw1+h]
	for j := range gb1 {
		gb1[j] = 0
	}
	for i := 0; i < n; i++ {
		row := o.a.RawRowView(i)
		for j := range row {
			if row[j] > 0 {
				row[j] = dz[i] * w2[j]
				gb1[j] += row[j]
			}
		}
	}

	mat.NewDense(h, d, grad[:nw1]).Mul(o.a.T(), o.x)
	floats.AddScaled(grad[:nw1], l2, theta[:nw1])

	return loss
}

// progress logs the loss and stops the optimizer when ctx is done.
type progress struct {
	ctx   context.Context
	every int
}

func (p *progress) Init() error { return nil }

func (p *progress) Record(loc *optimize.Location, op optimize.Operation, stats *optimize.Stats) error {
	if err := p.ctx.Err(); err != nil {
		return err
	}
	if op == optimize.MajorIteration && p.every > 0 && stats.MajorIterations%p.every == 0 {
		log.Debugf("classifier: iteration %d, loss %.5f", stats.MajorIterations, loc.F)
	}
	return nil
}

var _ optimize.Recorder = (*progress)(nil)
