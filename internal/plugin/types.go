// Package plugin discovers and runs external alert plugins. A plugin is a
// directory holding a plugin.json manifest and an executable that reads one
// JSON request on stdin and writes one JSON response on stdout.
package plugin

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Actions every alert plugin is expected to implement.
const (
	ActionAlert = "alert"
	ActionClear = "clear"
)

// Manifest describes a plugin's metadata and capabilities.
type Manifest struct {
	Name         string          `json:"name"`
	Version      string          `json:"version"`
	Description  string          `json:"description"`
	Executable   string          `json:"executable"`
	Actions      []string        `json:"actions"`
	ConfigSchema json.RawMessage `json:"configSchema,omitempty"`

	// TimeoutMs overrides the executor timeout for this plugin when positive.
	TimeoutMs int `json:"timeoutMs,omitempty"`
}

// Validate checks that the manifest names an executable and handles alerts.
func (m Manifest) Validate() error {
	var errs []error
	if m.Name == "" {
		errs = append(errs, errors.New("manifest has no name"))
	}
	if m.Executable == "" {
		errs = append(errs, errors.New("manifest has no executable"))
	}
	if !contains(m.Actions, ActionAlert) {
		errs = append(errs, fmt.Errorf("manifest does not list the %q action", ActionAlert))
	}
	if m.TimeoutMs < 0 {
		errs = append(errs, fmt.Errorf("timeoutMs must not be negative, got %d", m.TimeoutMs))
	}
	return errors.Join(errs...)
}

// Request represents a request sent to a plugin for execution.
type Request struct {
	Action string          `json:"action"`
	Event  string          `json:"event"`
	Text   string          `json:"text,omitempty"`
	Config json.RawMessage `json:"config,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Response represents the response from a plugin execution.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Plugin represents a discovered plugin with its manifest and location.
type Plugin struct {
	Manifest   Manifest
	Path       string
	Executable string
}

// Supports reports whether the manifest lists action.
func (p *Plugin) Supports(action string) bool {
	return contains(p.Manifest.Actions, action)
}

// timeout returns the manifest timeout, or fallback when it has none.
func (p *Plugin) timeout(fallback time.Duration) time.Duration {
	if p.Manifest.TimeoutMs > 0 {
		return time.Duration(p.Manifest.TimeoutMs) * time.Millisecond
	}
	return fallback
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
