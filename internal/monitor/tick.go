package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/ayusman/handsoff/internal/detector"
	"github.com/ayusman/handsoff/internal/event"
	"github.com/ayusman/handsoff/internal/landmark"
	"github.com/ayusman/handsoff/internal/proximity"
)

// run owns the ticker until ctx is cancelled. A slow tick delays the next
// one; time.Ticker drops the ticks that were missed.
func (m *Monitor) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	interval := m.Config().Interval
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.Tick(ctx); err != nil && ctx.Err() == nil {
				log.Errorf("monitor: %v", err)
			}

			if next := m.Config().Interval; next != interval {
				interval = next
				ticker.Reset(interval)
			}
		}
	}
}

// Tick runs one sampling step. It returns immediately while idle, skips
// frames whose timestamp was already processed and, when the motion gate is
// on, frames without motion. Camera and detector errors are returned and
// leave the alert state unchanged.
func (m *Monitor) Tick(ctx context.Context) error {
	m.tickMu.Lock()
	defer m.tickMu.Unlock()

	m.mu.Lock()
	if m.state != Polling {
		m.mu.Unlock()
		return nil
	}
	gen := m.gen
	config := m.config
	evaluator := m.evaluator
	motion := m.motion
	m.stats.Ticks++
	m.mu.Unlock()

	frame, err := m.deps.Camera.ReadFrame()
	if err != nil {
		m.count(func(s *Stats) { s.Errors++ })
		return fmt.Errorf("read frame: %w", err)
	}
	defer frame.Close()

	if m.seen(frame.TimestampMs) {
		m.count(func(s *Stats) { s.Duplicates++ })
		return nil
	}

	if motion != nil && !motion.Moved(frame) {
		m.count(func(s *Stats) { s.Still++ })
		return nil
	}

	result, err := m.deps.Detector.Detect(ctx, frame.Mat, frame.TimestampMs)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		m.count(func(s *Stats) { s.Errors++ })
		return fmt.Errorf("detect landmarks: %w", err)
	}

	// A result that arrives after Stop belongs to a finished polling session.
	if ctx.Err() != nil || !m.current(gen) {
		return nil
	}
	m.count(func(s *Stats) { s.Detections++ })

	reference, candidates := selectSets(config, result, frame.Width, frame.Height)

	eval, err := evaluator.Evaluate(reference, candidates, config.Threshold)
	if err != nil {
		log.Warnf("monitor: proximity check failed: %v", err)
		eval = proximity.Result{}
	}

	var distance float64
	if eval.Close {
		distance, _ = evaluator.MinDistance(reference, candidates)
	}

	if !m.setAlert(ctx, gen, config, eval.Close, distance) {
		return nil
	}

	snapshot := Snapshot{
		TimestampMs: frame.TimestampMs,
		Result:      result,
		Alert:       eval.Close,
		Distance:    distance,
		Width:       frame.Width,
		Height:      frame.Height,
		At:          time.Now(),
	}
	m.mu.Lock()
	m.last = snapshot
	m.mu.Unlock()

	if m.deps.Renderer != nil {
		if err := m.deps.Renderer.Render(frame, result, eval.Close); err != nil {
			log.Debugf("monitor: render: %v", err)
		}
	}

	m.publish(event.MonitorTick, event.Data{
		"timestamp_ms": snapshot.TimestampMs,
		"alert":        snapshot.Alert,
		"distance":     snapshot.Distance,
		"width":        snapshot.Width,
		"height":       snapshot.Height,
		"hands":        result.Hands,
		"faces":        result.Faces,
		"poses":        result.Poses,
	})

	return nil
}

// selectSets builds the reference and candidate sets for the configured mode,
// converted to the common coordinate space.
func selectSets(config Config, result detector.Result, width, height int) (landmark.Set, []landmark.Set) {
	var reference landmark.Set
	var candidates []landmark.Set

	switch config.Mode {
	case ModePose:
		if len(result.Poses) == 0 {
			return reference, nil
		}
		pose := result.Poses[0]
		reference = pose.Select(landmark.PoseMouth)
		candidates = []landmark.Set{pose.Select(landmark.PoseIndexFingers)}
	default:
		if len(result.Faces) == 0 {
			return reference, nil
		}
		reference = result.Faces[0]
		if indices := config.Region.Indices(); indices != nil {
			reference = reference.Select(indices)
		}
		candidates = result.Hands
	}

	reference = reference.In(config.Space, width, height)
	converted := make([]landmark.Set, len(candidates))
	for i, c := range candidates {
		converted[i] = c.In(config.Space, width, height)
	}

	return reference, converted
}

// setAlert drives the notifier from the tick's alert flag. Start is repeated
// on every alerting tick so a notifier whose utterance finished speaks again;
// notifiers ignore Start while active. It reports false when gen is no longer
// the current polling session.
func (m *Monitor) setAlert(ctx context.Context, gen uint64, config Config, alert bool, distance float64) bool {
	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		return false
	}
	was := m.alerting
	m.alerting = alert
	m.mu.Unlock()

	switch {
	case alert:
		if err := m.deps.Notifier.Start(ctx, config.Text); err != nil {
			log.Errorf("monitor: start notification: %v", err)
		}
	case !alert && was:
		if err := m.deps.Notifier.Stop(); err != nil {
			log.Errorf("monitor: stop notification: %v", err)
		}
	}

	switch {
	case alert && !was:
		m.beginAlert(distance)
	case alert:
		m.mu.Lock()
		if m.episode != nil && distance < m.episode.minDistance {
			m.episode.minDistance = distance
		}
		m.mu.Unlock()
	case was:
		m.endAlert(ctx)
	}
	return true
}

func (m *Monitor) beginAlert(distance float64) {
	m.mu.Lock()
	m.episode = &episode{startedAt: time.Now(), minDistance: distance}
	m.stats.Alerts++
	mode := m.config.Mode
	m.mu.Unlock()

	log.Infof("monitor: hand near face (distance %.4f)", distance)
	m.publish(event.AlertStarted, event.Data{"distance": distance, "mode": string(mode)})
}

// endAlert closes the current episode, if any, and records it.
func (m *Monitor) endAlert(ctx context.Context) {
	m.mu.Lock()
	ep := m.episode
	m.episode = nil
	m.alerting = false
	mode := m.config.Mode
	m.mu.Unlock()

	if ep == nil {
		return
	}

	ended := time.Now()
	duration := ended.Sub(ep.startedAt)
	log.Infof("monitor: alert cleared after %s", duration.Round(time.Millisecond))
	m.publish(event.AlertEnded, event.Data{
		"duration_ms":  duration.Milliseconds(),
		"min_distance": ep.minDistance,
		"mode":         string(mode),
	})

	if m.deps.Alerts == nil {
		return
	}
	if !m.limiter.Allow() {
		m.count(func(s *Stats) { s.Dropped++ })
		log.Debug("monitor: alert history rate limit reached, episode not recorded")
		return
	}
	if ctx.Err() != nil {
		ctx = context.Background()
	}
	if err := m.deps.Alerts.RecordAlert(ctx, ep.startedAt, ended, ep.minDistance, string(mode)); err != nil {
		log.Errorf("monitor: record alert: %v", err)
	}
}

// seen reports whether ts was already processed and remembers it otherwise.
func (m *Monitor) seen(ts int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hasTs && ts == m.lastTs {
		return true
	}
	m.lastTs = ts
	m.hasTs = true
	return false
}

func (m *Monitor) current(gen uint64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state == Polling && m.gen == gen
}

func (m *Monitor) count(f func(*Stats)) {
	m.mu.Lock()
	f(&m.stats)
	m.mu.Unlock()
}
