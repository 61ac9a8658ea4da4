package commands

import (
	"errors"
	"time"

	"github.com/dustin/go-humanize/english"
	"github.com/urfave/cli"

	"github.com/ayusman/handsoff/internal/dataset"
)

// ExtractCommand turns a video into training frames.
var ExtractCommand = cli.Command{
	Name:      "extract",
	Usage:     "Extract frames from a video for training",
	ArgsUsage: " ",
	Flags: []cli.Flag{
		cli.StringFlag{Name: "input, i", Usage: "video `FILE`"},
		cli.StringFlag{Name: "output, o", Usage: "frame output `PATH`, e.g. data/touching_face"},
		cli.IntFlag{Name: "fps", Value: dataset.DefaultFPS, Usage: "frames per second of video"},
		cli.IntFlag{Name: "width", Value: dataset.DefaultWidth, Usage: "frame width in pixels"},
		cli.IntFlag{Name: "height", Value: dataset.DefaultHeight, Usage: "frame height in pixels"},
		cli.StringFlag{Name: "backend", Value: dataset.BackendFFmpeg, Usage: "ffmpeg or gocv"},
		cli.StringFlag{Name: "ffmpeg", Value: "ffmpeg", Usage: "ffmpeg `BINARY`"},
	},
	Action: extractAction,
}

func extractAction(ctx *cli.Context) error {
	start := time.Now()

	if _, err := loadConfig(ctx); err != nil {
		return err
	}

	input, output := ctx.String("input"), ctx.String("output")
	if input == "" || output == "" {
		return errors.New("extract: --input and --output are required")
	}

	extractor, err := dataset.NewExtractor(ctx.String("backend"), dataset.ExtractConfig{
		FPS:    ctx.Int("fps"),
		Width:  ctx.Int("width"),
		Height: ctx.Int("height"),
		FFmpeg: ctx.String("ffmpeg"),
	})
	if err != nil {
		return err
	}

	runCtx, stop := signalContext()
	defer stop()

	n, err := extractor.Extract(runCtx, input, output)
	if err != nil {
		return err
	}

	log.Infof("extract: wrote %s to %s in %s", english.Plural(n, "frame", "frames"), output, time.Since(start).Round(time.Millisecond))

	return nil
}
