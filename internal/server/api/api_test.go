package api

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ayusman/handsoff/internal/monitor"
	"github.com/ayusman/handsoff/internal/store"
)

// fakeMonitor implements Monitor in memory.
type fakeMonitor struct {
	mu       sync.Mutex
	state    monitor.State
	ready    bool
	alerting bool
	config   monitor.Config
	last     monitor.Snapshot
	stopErr  error
}

func newFakeMonitor() *fakeMonitor {
	return &fakeMonitor{ready: true, config: monitor.DefaultConfig()}
}

func (f *fakeMonitor) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.ready {
		return monitor.ErrDetectorNotReady
	}
	f.state = monitor.Polling
	return nil
}

func (f *fakeMonitor) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = monitor.Idle
	f.alerting = false
	return f.stopErr
}

func (f *fakeMonitor) State() monitor.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeMonitor) Alerting() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.alerting
}

func (f *fakeMonitor) Ready() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ready
}

func (f *fakeMonitor) Stats() monitor.Stats { return monitor.Stats{Ticks: 3} }

func (f *fakeMonitor) LastResult() monitor.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

func (f *fakeMonitor) Config() monitor.Config {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.config
}

func (f *fakeMonitor) Apply(c monitor.Config) error {
	if err := c.Validate(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.config = c
	return nil
}

var _ Monitor = (*monitor.Monitor)(nil)

var errStop = errors.New("camera stuck")

// newTestStore creates a new Store with a temporary database for testing.
func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})

	return s
}

func recordAlerts(t *testing.T, s *store.Store, n int) {
	t.Helper()
	base := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		start := base.Add(time.Duration(i) * time.Minute)
		if err := s.Alerts().RecordAlert(context.Background(), start, start.Add(750*time.Millisecond), 0.01, string(monitor.ModeHandFace)); err != nil {
			t.Fatalf("failed to record alert: %v", err)
		}
	}
}
