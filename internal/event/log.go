// Package event provides the shared logger and the event hub used to fan out
// monitor state to the web UI and the tray.
package event

import (
	"fmt"
	"io"
	"os"
	"path"
	"runtime"
	"strings"

	formatter "github.com/antonfisher/nested-logrus-formatter"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Log is the application logger. Packages reference it as `var log = event.Log`.
var Log = logrus.New()

// LogConfig controls the logger output.
type LogConfig struct {
	// Level is a logrus level name (trace, debug, info, warn, error).
	Level string
	// File enables a rotated log file in addition to stderr when set.
	File string
	// NoColors disables ANSI colors on the console output.
	NoColors bool
	// Caller adds the file:line of the log call.
	Caller bool
}

func init() {
	Log.SetFormatter(newFormatter(false))
	Log.SetLevel(logrus.InfoLevel)
}

// SetupLog applies the given configuration to Log.
func SetupLog(c LogConfig) error {
	level := logrus.InfoLevel
	if c.Level != "" {
		l, err := logrus.ParseLevel(c.Level)
		if err != nil {
			return fmt.Errorf("parse log level: %w", err)
		}
		level = l
	}

	Log.SetLevel(level)
	Log.SetFormatter(newFormatter(c.NoColors))
	Log.SetReportCaller(c.Caller)

	writers := []io.Writer{os.Stderr}
	if c.File != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   c.File,
			LocalTime:  true,
			Compress:   true,
			MaxSize:    20,
			MaxAge:     7,
			MaxBackups: 3,
		})
	}
	Log.SetOutput(io.MultiWriter(writers...))

	return nil
}

func newFormatter(noColors bool) *formatter.Formatter {
	return &formatter.Formatter{
		NoColors:        noColors,
		TimestampFormat: "2006-01-02 15:04:05",
		HideKeys:        false,
		CallerFirst:     true,
		CustomCallerFormatter: func(f *runtime.Frame) string {
			s := strings.Split(f.Function, ".")
			return fmt.Sprintf(" [%s:%d][%s()]", path.Base(f.File), f.Line, s[len(s)-1])
		},
	}
}
