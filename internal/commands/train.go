package commands

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize/english"
	"github.com/urfave/cli"

	"github.com/ayusman/handsoff/internal/classifier"
	"github.com/ayusman/handsoff/internal/dataset"
	"github.com/ayusman/handsoff/internal/store"
)

// TrainCommand fits the touch classifier to a labelled frame directory.
var TrainCommand = cli.Command{
	Name:      "train",
	Usage:     "Train the touch classifier on extracted frames",
	ArgsUsage: " ",
	Flags: []cli.Flag{
		cli.StringFlag{Name: "data, d", Usage: "dataset `PATH` with touching_face and not_touching_face folders"},
		cli.StringFlag{Name: "model, m", Usage: "model output `PATH` (default: model in the data directory)"},
		cli.IntFlag{Name: "iterations", Value: classifier.DefaultConfig().Iterations, Usage: "optimizer iteration budget"},
		cli.Int64Flag{Name: "seed", Value: classifier.DefaultConfig().Seed, Usage: "seed for the split and initial weights"},
		cli.IntFlag{Name: "grid", Value: classifier.DefaultConfig().Grid, Usage: "pooled input grid size"},
		cli.IntFlag{Name: "hidden", Value: classifier.DefaultConfig().Hidden, Usage: "hidden layer units"},
		cli.Float64Flag{Name: "val-split", Value: classifier.DefaultConfig().ValidationSplit, Usage: "fraction of samples held out for validation"},
	},
	Action: trainAction,
}

func trainAction(ctx *cli.Context) error {
	start := time.Now()

	c, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	dataDir := ctx.String("data")
	if dataDir == "" {
		return errors.New("train: --data is required")
	}
	modelDir := ctx.String("model")
	if modelDir == "" {
		modelDir = filepath.Join(c.DataDir, "model")
	}

	conf := classifier.DefaultConfig()
	conf.Iterations = ctx.Int("iterations")
	conf.Seed = ctx.Int64("seed")
	conf.Grid = ctx.Int("grid")
	conf.Hidden = ctx.Int("hidden")
	conf.ValidationSplit = ctx.Float64("val-split")
	if err := conf.Validate(); err != nil {
		return err
	}

	set, err := dataset.Load(dataDir, conf.Width, conf.Height)
	if err != nil {
		return err
	}
	touching, notTouching := set.Counts()
	log.Infof("train: loaded %s (%d touching, %d not touching)", english.Plural(len(set.Samples), "image", "images"), touching, notTouching)

	runCtx, stop := signalContext()
	defer stop()

	model, report, err := classifier.Train(runCtx, set, conf)
	if err != nil {
		return err
	}

	path, err := model.Save(modelDir)
	if err != nil {
		return err
	}

	log.Infof("train: %s, train accuracy %.1f%%, validation accuracy %.1f%% (%s)",
		english.Plural(report.Iterations, "iteration", "iterations"),
		report.TrainAccuracy*100, report.ValAccuracy*100, report.Status)
	log.Infof("train: saved %s in %s", path, time.Since(start).Round(time.Millisecond))

	st, err := openStore(c)
	if err != nil {
		return err
	}
	defer st.Close()

	return recordRun(runCtx, st, path, report)
}

// recordRun stores the training run and compares it with the previous one.
func recordRun(ctx context.Context, st *store.Store, path string, report classifier.Report) error {
	if ctx.Err() != nil {
		ctx = context.Background()
	}

	runs := st.TrainingRuns()

	prev, err := runs.Latest(ctx)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		return err
	default:
		log.Infof("train: previous run reached %.1f%% validation accuracy", prev.ValAccuracy*100)
	}

	return runs.Create(ctx, &store.TrainingRun{
		ModelPath:     path,
		Samples:       report.Samples,
		Iterations:    report.Iterations,
		TrainLoss:     report.TrainLoss,
		ValLoss:       report.ValLoss,
		TrainAccuracy: report.TrainAccuracy,
		ValAccuracy:   report.ValAccuracy,
	})
}
