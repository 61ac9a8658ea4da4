package tray

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/handsoff/internal/event"
)

func TestTray_Toggle(t *testing.T) {
	tr := New()
	assert.False(t, tr.IsEnabled())

	var calls []bool
	tr.OnToggle(func(enabled bool) error {
		calls = append(calls, enabled)
		return nil
	})

	tr.handleToggle()
	assert.True(t, tr.IsEnabled())

	tr.handleToggle()
	assert.False(t, tr.IsEnabled())

	assert.Equal(t, []bool{true, false}, calls)
}

func TestTray_ToggleFailureKeepsState(t *testing.T) {
	tr := New()
	tr.OnToggle(func(enabled bool) error {
		return errors.New("landmark detector is not ready")
	})

	tr.handleToggle()

	assert.False(t, tr.IsEnabled())
}

func TestTray_Settings(t *testing.T) {
	tr := New()
	opened := 0
	tr.OnSettings(func() { opened++ })

	tr.handleSettings()

	assert.Equal(t, 1, opened)
}

func TestTray_Watch(t *testing.T) {
	hub := event.NewHub()
	sub := event.Subscribe(hub, "monitor.*", "alert.*")

	tr := New()
	done := make(chan struct{})
	go func() {
		tr.Watch(sub)
		close(done)
	}()

	publisher := event.HubPublisher{Hub: hub}

	publisher.Publish(event.MonitorState, event.Data{"state": "polling"})
	require.Eventually(t, tr.IsEnabled, time.Second, 5*time.Millisecond)

	publisher.Publish(event.AlertStarted, event.Data{"distance": 0.01})
	require.Eventually(t, tr.Alerting, time.Second, 5*time.Millisecond)

	publisher.Publish(event.AlertEnded, event.Data{"duration_ms": 1200})
	require.Eventually(t, func() bool { return !tr.Alerting() }, time.Second, 5*time.Millisecond)

	publisher.Publish(event.AlertStarted, event.Data{"distance": 0.02})
	require.Eventually(t, tr.Alerting, time.Second, 5*time.Millisecond)

	publisher.Publish(event.MonitorState, event.Data{"state": "idle"})
	require.Eventually(t, func() bool { return !tr.IsEnabled() && !tr.Alerting() }, time.Second, 5*time.Millisecond)

	hub.Unsubscribe(sub)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Watch did not return after unsubscribe")
	}
}

func TestTitles(t *testing.T) {
	assert.Equal(t, "● Enabled", toggleTitle(true))
	assert.Equal(t, "○ Disabled", toggleTitle(false))
	assert.Equal(t, "Alert: yes", alertTitle(true))
	assert.Equal(t, "Alert: no", alertTitle(false))
}
