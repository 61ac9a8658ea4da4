package main

import (
	"os"

	"github.com/ayusman/handsoff/internal/commands"
	"github.com/ayusman/handsoff/internal/event"
)

var version = "development"

func main() {
	if err := commands.NewApp(version).Run(os.Args); err != nil {
		event.Log.Error(err)
		os.Exit(1)
	}
}
