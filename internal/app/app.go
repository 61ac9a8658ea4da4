// Package app wires the monitor, its collaborators, the store and the control
// server into one running application.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/ayusman/handsoff/internal/capture"
	"github.com/ayusman/handsoff/internal/config"
	"github.com/ayusman/handsoff/internal/detector"
	"github.com/ayusman/handsoff/internal/event"
	"github.com/ayusman/handsoff/internal/monitor"
	"github.com/ayusman/handsoff/internal/notify"
	"github.com/ayusman/handsoff/internal/plugin"
	"github.com/ayusman/handsoff/internal/render"
	"github.com/ayusman/handsoff/internal/server"
	"github.com/ayusman/handsoff/internal/store"
)

var log = event.Log

// Loader is a detector whose models load in the background.
type Loader interface {
	Load(ctx context.Context) error
}

// Deps overrides the collaborators New would otherwise build from the config.
type Deps struct {
	Camera   capture.Camera
	Detector detector.Detector
	Notifier notify.Notifier
}

// App is the running application.
type App struct {
	config  config.Config
	store   *store.Store
	hub     *event.Hub
	overlay *render.Overlay
	plugins *plugin.Manager
	monitor *monitor.Monitor
	loader  Loader
	server  *server.Server

	closeOnce sync.Once
}

// New opens the store, applies the saved settings and builds the monitor.
// Without a usable camera or landmark service the monitor is disabled and
// Monitor returns nil.
func New(c config.Config, deps Deps) (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := os.MkdirAll(c.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	st, err := store.New(c.DBPath)
	if err != nil {
		return nil, err
	}

	a := &App{
		store:   st,
		hub:     event.NewHub(),
		overlay: render.NewOverlay(render.DefaultStyles()),
		plugins: plugin.NewManager(c.Plugins.Dir),
	}

	if err := a.applySavedSettings(&c); err != nil {
		log.Warnf("app: ignoring saved settings: %v", err)
	}
	a.config = c

	if err := a.plugins.Discover(); err != nil {
		log.Warnf("app: discover plugins in %s: %v", c.Plugins.Dir, err)
	}

	if err := a.buildMonitor(deps); err != nil {
		st.Close()
		return nil, err
	}

	srv := server.Config{
		StaticDir: c.Server.StaticDir,
		Store:     st,
		Frames:    a.overlay,
		Hub:       a.hub,
	}
	if a.monitor != nil {
		srv.Monitor = a.monitor
	}
	a.server = server.New(srv)

	return a, nil
}

func (a *App) applySavedSettings(c *config.Config) error {
	values, err := a.store.Settings().All(context.Background())
	if err != nil {
		return err
	}
	if len(values) == 0 {
		return nil
	}
	if err := config.ApplySettings(&c.Monitor, values); err != nil {
		return err
	}
	c.SelectModels()
	log.Debugf("app: applied %d saved settings", len(values))
	return nil
}

func (a *App) buildMonitor(deps Deps) error {
	c := a.config

	camera := deps.Camera
	if camera == nil {
		if err := capture.Probe(c.Camera.Device); err != nil {
			log.Warnf("app: %v, face-touch detection is disabled", err)
			return nil
		}
		camera = capture.NewCamera(c.Camera.Device)
		camera.SetFPS(c.Camera.FPS)
	}

	det := deps.Detector
	if det == nil {
		mp, err := detector.NewMediaPipeDetector(c.Detector)
		if err != nil {
			log.Warnf("app: landmark service unavailable (%v), face-touch detection is disabled", err)
			return nil
		}
		det = mp
	}
	if l, ok := det.(Loader); ok {
		a.loader = l
	}

	notifier := deps.Notifier
	if notifier == nil {
		notifier = a.buildNotifier()
	}

	m, err := monitor.New(c.Monitor, monitor.Deps{
		Camera:   camera,
		Detector: det,
		Notifier: notifier,
		Renderer: a.overlay,
		Events:   event.HubPublisher{Hub: a.hub},
		Alerts:   a.store.Alerts(),
	})
	if err != nil {
		return err
	}
	a.monitor = m

	return nil
}

// buildNotifier speaks alerts, or logs them when muted or without a speech
// engine, and adds the enabled plugins.
func (a *App) buildNotifier() notify.Notifier {
	c := a.config

	var speech notify.Notifier = &notify.LogNotifier{}
	if !c.Mute {
		s, err := notify.NewSpeech(c.Speech)
		if err != nil {
			log.Warnf("app: %v, alerts are logged instead", err)
		} else {
			log.Infof("app: speaking alerts with %s", s.Binary())
			speech = s
		}
	}

	if len(c.Plugins.Enabled) == 0 {
		return speech
	}

	executor := plugin.NewExecutor(c.Plugins.Timeout)
	return notify.Multi{speech, notify.NewPluginNotifier(a.plugins, executor, c.Plugins.Enabled...)}
}

// Config returns the effective configuration, saved settings included.
func (a *App) Config() config.Config {
	return a.config
}

// Monitor returns the monitor, or nil when detection is disabled.
func (a *App) Monitor() *monitor.Monitor {
	return a.monitor
}

// Store returns the database.
func (a *App) Store() *store.Store {
	return a.store
}

// Hub returns the event hub.
func (a *App) Hub() *event.Hub {
	return a.hub
}

// Server returns the HTTP handler.
func (a *App) Server() *server.Server {
	return a.server
}

// URL returns the address of the web UI.
func (a *App) URL() string {
	return "http://" + a.config.Server.Addr
}

// Run loads the landmark models in the background and serves HTTP until ctx
// is cancelled.
func (a *App) Run(ctx context.Context) error {
	if a.loader != nil {
		go func() {
			if err := a.loader.Load(ctx); err != nil && ctx.Err() == nil {
				log.Errorf("app: %v", err)
			}
		}()
	}

	if a.config.Server.Disabled {
		<-ctx.Done()
		return nil
	}

	log.Infof("app: web UI at %s", a.URL())
	if err := a.server.ListenAndServe(ctx, a.config.Server.Addr); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Close stops the monitor and closes the store. It is safe to call more than
// once.
func (a *App) Close() error {
	var err error
	a.closeOnce.Do(func() {
		if a.monitor != nil {
			err = a.monitor.Close()
		}
		a.hub.Close()
		if serr := a.store.Close(); serr != nil {
			err = errors.Join(err, serr)
		}
	})
	return err
}
