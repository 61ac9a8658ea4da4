// Package monitor polls the camera, runs landmark detection and keeps a
// spoken warning going while a hand is near the face.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ayusman/handsoff/internal/capture"
	"github.com/ayusman/handsoff/internal/detector"
	"github.com/ayusman/handsoff/internal/event"
	"github.com/ayusman/handsoff/internal/notify"
	"github.com/ayusman/handsoff/internal/proximity"
	"github.com/ayusman/handsoff/internal/render"
)

var log = event.Log

var (
	// ErrDetectorNotReady is returned by Start while the landmark models are
	// still loading.
	ErrDetectorNotReady = fmt.Errorf("cannot start monitor: %w", detector.ErrNotReady)

	// ErrClosed is returned by Start after Close.
	ErrClosed = errors.New("monitor is closed")
)

// State is the polling state of a Monitor.
type State int

const (
	Idle State = iota
	Polling
)

func (s State) String() string {
	if s == Polling {
		return "polling"
	}
	return "idle"
}

// AlertRecorder stores finished alert episodes.
type AlertRecorder interface {
	RecordAlert(ctx context.Context, startedAt, endedAt time.Time, minDistance float64, mode string) error
}

// Deps are the collaborators of a Monitor. Camera, Detector and Notifier are
// required; the rest may be nil.
type Deps struct {
	Camera   capture.Camera
	Detector detector.Detector
	Notifier notify.Notifier
	Renderer render.Renderer
	Events   event.Publisher
	Alerts   AlertRecorder
}

// Snapshot is the outcome of the last evaluated tick.
type Snapshot struct {
	TimestampMs int64           `json:"timestamp_ms"`
	Result      detector.Result `json:"result"`
	Alert       bool            `json:"alert"`
	Distance    float64         `json:"distance,omitempty"`
	Width       int             `json:"width"`
	Height      int             `json:"height"`
	At          time.Time       `json:"at"`
}

// Stats counts what the monitor has done since it was created.
type Stats struct {
	Ticks      int64 `json:"ticks"`
	Detections int64 `json:"detections"`
	Duplicates int64 `json:"duplicates"`
	Still      int64 `json:"still"`
	Errors     int64 `json:"errors"`
	Alerts     int64 `json:"alerts"`
	Dropped    int64 `json:"dropped"`
}

// episode is an alert in progress.
type episode struct {
	startedAt   time.Time
	minDistance float64
}

// Monitor runs the proximity check on a fixed interval while polling.
// A single goroutine owns the ticker, so ticks never overlap.
type Monitor struct {
	deps      Deps
	evaluator proximity.Evaluator
	motion    *capture.MotionDetector
	limiter   *rate.Limiter

	// mu guards the fields below.
	mu       sync.RWMutex
	config   Config
	state    State
	closed   bool
	gen      uint64
	cancel   context.CancelFunc
	done     chan struct{}
	alerting bool
	episode  *episode
	last     Snapshot
	stats    Stats
	lastTs   int64
	hasTs    bool

	// tickMu serialises Tick.
	tickMu sync.Mutex
}

// New creates an idle Monitor.
func New(config Config, deps Deps) (*Monitor, error) {
	if deps.Camera == nil || deps.Detector == nil || deps.Notifier == nil {
		return nil, errors.New("monitor needs a camera, a detector and a notifier")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid monitor config: %w", err)
	}

	m := &Monitor{
		deps:      deps,
		config:    config,
		evaluator: proximity.Evaluator{Metric: config.Metric},
		limiter:   rate.NewLimiter(rate.Every(time.Second), 5),
	}
	if config.MotionGate {
		m.motion = capture.NewMotionDetector(config.MotionThreshold)
	}
	m.selectModels(config.Mode)

	return m, nil
}

// Start switches from Idle to Polling. It is a no-op while polling.
func (m *Monitor) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if m.state == Polling {
		return nil
	}

	if !m.deps.Detector.Ready() {
		log.Warn("monitor: landmark models are not loaded yet, not starting")
		return ErrDetectorNotReady
	}

	if err := m.deps.Camera.Open(); err != nil {
		return fmt.Errorf("open camera: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.gen++
	m.state = Polling
	m.cancel = cancel
	m.done = make(chan struct{})
	m.hasTs = false
	if m.motion != nil {
		m.motion.Reset()
	}

	go m.run(ctx, m.done)

	log.Infof("monitor: polling every %s (mode %s, threshold %g %s)", m.config.Interval, m.config.Mode, m.config.Threshold, m.config.Space)
	m.publish(event.MonitorState, event.Data{"state": Polling.String()})

	return nil
}

// Stop switches to Idle and forces the notification off. A tick that is in
// flight is cancelled and its result discarded.
func (m *Monitor) Stop() error {
	m.mu.Lock()
	wasPolling := m.state == Polling
	cancel, done := m.cancel, m.done
	m.state = Idle
	m.gen++
	m.cancel = nil
	m.done = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	// Silence first: a detector stuck on the in-flight frame must not keep
	// the warning going. Its late result is dropped by the generation check.
	err := m.deps.Notifier.Stop()
	m.endAlert(context.Background())

	if done != nil {
		<-done
	}

	// Wait for a tick started outside the loop as well, then make sure it
	// left nothing behind.
	m.tickMu.Lock()
	defer m.tickMu.Unlock()

	if m.deps.Notifier.Active() {
		err = errors.Join(err, m.deps.Notifier.Stop())
	}
	m.endAlert(context.Background())

	if wasPolling {
		if cerr := m.deps.Camera.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("close camera: %w", cerr))
		}
		log.Info("monitor: stopped")
		m.publish(event.MonitorState, event.Data{"state": Idle.String()})
	}

	return err
}

// Close stops the monitor and releases the camera and detector. A closed
// monitor cannot be started again.
func (m *Monitor) Close() error {
	err := m.Stop()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return err
	}
	m.closed = true
	m.mu.Unlock()

	if m.motion != nil {
		m.motion.Close()
	}
	if derr := m.deps.Detector.Close(); derr != nil {
		err = errors.Join(err, fmt.Errorf("close detector: %w", derr))
	}

	return err
}

// State returns the current polling state.
func (m *Monitor) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Alerting reports whether the last evaluated tick found a hand near the face.
func (m *Monitor) Alerting() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.alerting
}

// LastResult returns the last evaluated tick.
func (m *Monitor) LastResult() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last
}

// Stats returns the tick counters.
func (m *Monitor) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stats
}

// Config returns the active configuration.
func (m *Monitor) Config() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// Ready reports whether the detector has loaded its models.
func (m *Monitor) Ready() bool {
	return m.deps.Detector.Ready()
}

// Apply replaces the configuration. Interval changes take effect on the next
// tick; the motion gate can only be toggled while idle.
func (m *Monitor) Apply(config Config) error {
	if err := config.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if config.MotionGate != m.config.MotionGate {
		if m.state == Polling {
			return errors.New("motion gate can only be changed while idle")
		}
		if config.MotionGate {
			m.motion = capture.NewMotionDetector(config.MotionThreshold)
		} else if m.motion != nil {
			m.motion.Close()
			m.motion = nil
		}
	} else if m.motion != nil {
		m.motion.SetThreshold(config.MotionThreshold)
	}

	if config.Mode != m.config.Mode {
		m.selectModels(config.Mode)
	}
	m.config = config
	m.evaluator = proximity.Evaluator{Metric: config.Metric}

	return nil
}

func (m *Monitor) selectModels(mode Mode) {
	if s, ok := m.deps.Detector.(detector.Selector); ok {
		s.SelectModels(mode.Models())
	}
}

func (m *Monitor) publish(name string, data event.Data) {
	if m.deps.Events != nil {
		m.deps.Events.Publish(name, data)
	}
}
