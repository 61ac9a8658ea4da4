// Package commands contains the handsoff CLI commands.
package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli"

	"github.com/ayusman/handsoff/internal/config"
	"github.com/ayusman/handsoff/internal/event"
	"github.com/ayusman/handsoff/internal/store"
)

var log = event.Log

// GlobalFlags are accepted by every command.
var GlobalFlags = []cli.Flag{
	cli.StringFlag{
		Name:  "config, c",
		Usage: "YAML config `FILE` (default: config.yml in the data directory)",
	},
	cli.StringFlag{
		Name:  "data-dir",
		Usage: "data `PATH` for the database, plugins and models",
	},
	cli.StringFlag{
		Name:  "log-level",
		Usage: "trace, debug, info, warn or error",
	},
	cli.StringFlag{
		Name:  "log-file",
		Usage: "also write a rotated log to `FILE`",
	},
}

// Commands lists the available commands.
var Commands = []cli.Command{
	StartCommand,
	ExtractCommand,
	TrainCommand,
	ClassifyCommand,
	AlertsCommand,
}

// NewApp returns the handsoff CLI.
func NewApp(version string) *cli.App {
	a := cli.NewApp()
	a.Name = "handsoff"
	a.Usage = "Speaks up when your hand gets close to your face"
	a.Version = version
	a.Flags = GlobalFlags
	a.Commands = Commands
	return a
}

// loadConfig reads the config file and environment, applies the global flags
// and sets up logging.
func loadConfig(ctx *cli.Context) (config.Config, error) {
	c, err := config.LoadDir(ctx.GlobalString("config"), ctx.GlobalString("data-dir"))
	if err != nil {
		return c, err
	}

	if level := ctx.GlobalString("log-level"); level != "" {
		c.Log.Level = level
	}
	if file := ctx.GlobalString("log-file"); file != "" {
		c.Log.File = file
	}
	if err := event.SetupLog(c.Log); err != nil {
		return c, err
	}

	return c, nil
}

// openStore opens the database, creating the data directory first.
func openStore(c config.Config) (*store.Store, error) {
	if err := os.MkdirAll(c.DataDir, 0o755); err != nil {
		return nil, err
	}
	return store.New(c.DBPath)
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
