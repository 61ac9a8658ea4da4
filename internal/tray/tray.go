// Package tray provides the system tray toggle for the face-touch monitor.
package tray

import (
	"fmt"
	"os/exec"
	"runtime"
	"sync"

	"github.com/getlantern/systray"

	"github.com/ayusman/handsoff/internal/event"
)

var log = event.Log

// Tray represents the system tray application.
type Tray struct {
	onToggle   func(enabled bool) error
	onSettings func()
	onQuit     func()
	enabled    bool
	alert      bool
	mu         sync.RWMutex

	// Menu items stored for later updates
	menuToggle *systray.MenuItem
	menuAlert  *systray.MenuItem
}

// New creates a new Tray. The toggle starts disabled, matching an idle monitor.
func New() *Tray {
	return &Tray{}
}

// OnToggle sets the callback called when the enabled state is toggled. When it
// returns an error the toggle keeps its previous state.
func (t *Tray) OnToggle(fn func(enabled bool) error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnSettings sets the callback function to be called when the settings menu item is clicked.
func (t *Tray) OnSettings(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onSettings = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit closes the tray from outside the menu.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) onReady() {
	systray.SetTitle("Hands Off")
	systray.SetTooltip("Hands Off face-touch monitor")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleTitle(t.enabled), "Toggle face-touch detection")
	if t.onToggle == nil {
		t.menuToggle.Disable()
	}
	systray.AddSeparator()

	t.menuAlert = systray.AddMenuItem(alertTitle(t.alert), "Whether a hand is near the face")
	t.menuAlert.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	menuSettings := systray.AddMenuItem("Open Settings…", "Open settings in browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit Hands Off")

	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-menuSettings.ClickedCh:
				t.handleSettings()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {}

// handleToggle flips the enabled state and reports it to the toggle callback.
func (t *Tray) handleToggle() {
	t.mu.RLock()
	enabled := !t.enabled
	callback := t.onToggle
	t.mu.RUnlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		if err := callback(enabled); err != nil {
			log.Warnf("tray: %v", err)
			return
		}
	}

	t.SetEnabled(enabled)
}

func (t *Tray) handleSettings() {
	t.mu.RLock()
	callback := t.onSettings
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// SetEnabled updates the toggle without calling the toggle callback.
func (t *Tray) SetEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.enabled = enabled
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(enabled))
	}
}

// SetAlert updates the alert status line.
func (t *Tray) SetAlert(alert bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.alert = alert
	if t.menuAlert != nil {
		t.menuAlert.SetTitle(alertTitle(alert))
	}
}

// IsEnabled returns the current enabled state.
func (t *Tray) IsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}

// Alerting returns the state shown on the alert status line.
func (t *Tray) Alerting() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.alert
}

// Watch follows monitor and alert events until the subscription is closed.
func (t *Tray) Watch(sub event.Subscription) {
	for msg := range sub.Receiver {
		switch msg.Name {
		case event.AlertStarted:
			t.SetAlert(true)
		case event.AlertEnded:
			t.SetAlert(false)
		case event.MonitorState:
			polling := msg.Fields["state"] == "polling"
			t.SetEnabled(polling)
			if !polling {
				t.SetAlert(false)
			}
		}
	}
}

// OpenURL opens url in the default browser.
func OpenURL(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("open %s: %w", url, err)
	}
	go cmd.Wait()
	return nil
}

func toggleTitle(enabled bool) string {
	if enabled {
		return "● Enabled"
	}
	return "○ Disabled"
}

func alertTitle(alert bool) string {
	if alert {
		return "Alert: yes"
	}
	return "Alert: no"
}
