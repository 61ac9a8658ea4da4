package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli"

	"github.com/ayusman/handsoff/internal/app"
	"github.com/ayusman/handsoff/internal/config"
	"github.com/ayusman/handsoff/internal/event"
	"github.com/ayusman/handsoff/internal/landmark"
	"github.com/ayusman/handsoff/internal/monitor"
	"github.com/ayusman/handsoff/internal/tray"
)

// StartCommand runs the monitor with the web UI and the optional tray.
var StartCommand = cli.Command{
	Name:   "start",
	Usage:  "Start the face-touch monitor",
	Flags:  startFlags,
	Action: startAction,
}

var startFlags = []cli.Flag{
	cli.StringFlag{Name: "addr", Usage: "web UI listen `ADDRESS`"},
	cli.StringFlag{Name: "static-dir", Usage: "serve the web UI from `PATH`"},
	cli.BoolFlag{Name: "no-server", Usage: "do not start the web UI"},
	cli.IntFlag{Name: "camera", Usage: "camera device `ID`"},
	cli.Float64Flag{Name: "threshold", Usage: "proximity threshold in the coordinate space units"},
	cli.StringFlag{Name: "space", Usage: "coordinate space: normalized or pixel"},
	cli.StringFlag{Name: "mode", Usage: "hand-face or pose"},
	cli.StringFlag{Name: "region", Usage: "face region: face, lips or oval"},
	cli.DurationFlag{Name: "interval", Usage: "time between checks"},
	cli.StringFlag{Name: "text", Usage: "spoken alert `TEXT`"},
	cli.BoolFlag{Name: "motion-gate", Usage: "skip detection on frames without motion"},
	cli.BoolFlag{Name: "tray", Usage: "show the system tray toggle"},
	cli.BoolFlag{Name: "mute", Usage: "log alerts instead of speaking them"},
	cli.BoolFlag{Name: "enable", Usage: "start checking as soon as the landmark models are loaded"},
}

func startAction(ctx *cli.Context) error {
	c, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	if err := applyStartFlags(ctx, &c); err != nil {
		return err
	}

	a, err := app.New(c, app.Deps{})
	if err != nil {
		return err
	}
	defer a.Close()

	runCtx, stop := signalContext()
	defer stop()

	m := a.Monitor()
	if m == nil {
		log.Warn("start: no camera or landmark service, serving history and settings only")
	} else if ctx.Bool("enable") {
		go startWhenReady(runCtx, m, 500*time.Millisecond)
	} else if c.Server.Disabled && !c.Tray {
		log.Warn("start: no web UI, tray or --enable, the monitor cannot be switched on")
	}

	if !c.Tray {
		return a.Run(runCtx)
	}

	errc := make(chan error, 1)
	go func() {
		errc <- a.Run(runCtx)
		stop()
	}()

	t := tray.New()
	if m != nil {
		t.OnToggle(func(enabled bool) error {
			if enabled {
				return m.Start()
			}
			return m.Stop()
		})
		sub := event.Subscribe(a.Hub(), "monitor.*", "alert.*")
		defer a.Hub().Unsubscribe(sub)
		go t.Watch(sub)
	}
	if !c.Server.Disabled {
		t.OnSettings(func() {
			if err := tray.OpenURL(a.URL()); err != nil {
				log.Warnf("start: %v", err)
			}
		})
	}
	t.OnQuit(stop)

	go func() {
		<-runCtx.Done()
		t.Quit()
	}()

	// The tray owns the main thread until it quits.
	t.Run()
	stop()

	return <-errc
}

// applyStartFlags overrides c with the flags given on the command line.
func applyStartFlags(ctx *cli.Context, c *config.Config) error {
	if ctx.IsSet("addr") {
		c.Server.Addr = ctx.String("addr")
	}
	if ctx.IsSet("static-dir") {
		c.Server.StaticDir = ctx.String("static-dir")
	}
	if ctx.Bool("no-server") {
		c.Server.Disabled = true
	}
	if ctx.IsSet("camera") {
		c.Camera.Device = ctx.Int("camera")
	}
	if ctx.IsSet("space") {
		space, err := landmark.ParseSpace(ctx.String("space"))
		if err != nil {
			return err
		}
		if space != c.Monitor.Space {
			c.Monitor.Space = space
			c.Monitor.Threshold = monitor.DefaultThreshold(space)
		}
	}
	if ctx.IsSet("threshold") {
		c.Monitor.Threshold = ctx.Float64("threshold")
	}
	if ctx.IsSet("mode") {
		mode, err := monitor.ParseMode(ctx.String("mode"))
		if err != nil {
			return err
		}
		c.Monitor.Mode = mode
		c.SelectModels()
	}
	if ctx.IsSet("region") {
		c.Monitor.Region = landmark.Region(ctx.String("region"))
	}
	if ctx.IsSet("interval") {
		c.Monitor.Interval = ctx.Duration("interval")
	}
	if ctx.IsSet("text") {
		c.Monitor.Text = ctx.String("text")
	}
	if ctx.Bool("motion-gate") {
		c.Monitor.MotionGate = true
	}
	if ctx.Bool("tray") {
		c.Tray = true
	}
	if ctx.Bool("mute") {
		c.Mute = true
	}

	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	return nil
}

// startWhenReady starts m once its landmark models are loaded.
func startWhenReady(ctx context.Context, m *monitor.Monitor, poll time.Duration) {
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		if m.Ready() {
			if err := m.Start(); err != nil {
				log.Errorf("start: %v", err)
			}
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
