package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli"

	"github.com/ayusman/handsoff/internal/classifier"
	"github.com/ayusman/handsoff/internal/store"
)

// ClassifyCommand predicts whether images show a hand touching the face.
var ClassifyCommand = cli.Command{
	Name:      "classify",
	Usage:     "Classify images with a trained model",
	ArgsUsage: "IMAGE...",
	Flags: []cli.Flag{
		cli.StringFlag{Name: "model, m", Usage: "model `PATH` (default: the latest trained model)"},
		cli.Float64Flag{Name: "cutoff", Value: 0.5, Usage: "probability at or above which an image counts as touching"},
	},
	Action: classifyAction,
}

func classifyAction(ctx *cli.Context) error {
	c, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	if ctx.NArg() == 0 {
		return errors.New("classify: no images given")
	}

	path := ctx.String("model")
	if path == "" {
		st, err := openStore(c)
		if err != nil {
			return err
		}
		run, err := st.TrainingRuns().Latest(context.Background())
		st.Close()
		if errors.Is(err, store.ErrNotFound) {
			return errors.New("classify: no trained model, run train first or pass --model")
		}
		if err != nil {
			return err
		}
		path = run.ModelPath
	}

	model, err := classifier.Load(path)
	if err != nil {
		return err
	}

	cutoff := ctx.Float64("cutoff")
	w := ctx.App.Writer

	var failed int
	for _, image := range ctx.Args() {
		p, err := model.PredictFile(image)
		if err != nil {
			log.Errorf("classify: %s: %v", image, err)
			failed++
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%.3f\n", image, label(p, cutoff), p)
	}

	if failed > 0 {
		return fmt.Errorf("classify: %d of %d images failed", failed, ctx.NArg())
	}
	return nil
}

func label(p, cutoff float64) string {
	if p >= cutoff {
		return "touching"
	}
	return "not touching"
}
