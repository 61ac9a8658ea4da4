// Package notify turns the monitor's alert state into something the user
// notices: spoken warnings, desktop notifications from plugins, or log lines.
//
// Every Notifier is idempotent: Start while active and Stop while inactive do
// nothing, so callers may drive them from level-triggered state.
package notify

import (
	"context"
	"errors"
	"sync"

	"github.com/ayusman/handsoff/internal/event"
)

var log = event.Log

// DefaultText is spoken when no other text is configured.
const DefaultText = "Stop touching your face."

// Notifier starts and cancels an alert.
type Notifier interface {
	// Start begins alerting with text. Calling Start while already active
	// must not queue a second alert.
	Start(ctx context.Context, text string) error
	// Stop cancels the alert. Calling Stop while inactive is a no-op.
	Stop() error
	// Active reports whether an alert is currently in progress.
	Active() bool
}

// Multi fans out to several notifiers.
type Multi []Notifier

// Start starts every notifier and joins their errors.
func (m Multi) Start(ctx context.Context, text string) error {
	var errs []error
	for _, n := range m {
		if err := n.Start(ctx, text); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Stop stops every notifier and joins their errors.
func (m Multi) Stop() error {
	var errs []error
	for _, n := range m {
		if err := n.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Active reports whether any notifier is active.
func (m Multi) Active() bool {
	for _, n := range m {
		if n.Active() {
			return true
		}
	}
	return false
}

// LogNotifier writes alerts to the log. It is the fallback when no speech engine is
// installed.
type LogNotifier struct {
	mu     sync.Mutex
	active bool
}

func (l *LogNotifier) Start(ctx context.Context, text string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.active {
		log.Warnf("notify: %s", text)
		l.active = true
	}
	return nil
}

func (l *LogNotifier) Stop() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.active {
		log.Infof("notify: alert cleared")
		l.active = false
	}
	return nil
}

func (l *LogNotifier) Active() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}
