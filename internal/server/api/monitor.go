package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ayusman/handsoff/internal/detector"
	"github.com/ayusman/handsoff/internal/monitor"
)

// Monitor is the part of *monitor.Monitor the API drives.
type Monitor interface {
	Start() error
	Stop() error
	State() monitor.State
	Alerting() bool
	Ready() bool
	Stats() monitor.Stats
	LastResult() monitor.Snapshot
	Config() monitor.Config
	Apply(monitor.Config) error
}

// MonitorHandler serves /api/monitor, /api/monitor/start and
// /api/monitor/stop.
type MonitorHandler struct {
	monitor Monitor
}

// NewMonitorHandler creates a new MonitorHandler.
func NewMonitorHandler(m Monitor) *MonitorHandler {
	return &MonitorHandler{monitor: m}
}

type monitorResponse struct {
	State     string        `json:"state"`
	Enabled   bool          `json:"enabled"`
	Ready     bool          `json:"ready"`
	Alert     bool          `json:"alert"`
	Distance  float64       `json:"distance,omitempty"`
	LastTick  string        `json:"last_tick,omitempty"`
	Mode      string        `json:"mode"`
	Threshold float64       `json:"threshold"`
	Interval  string        `json:"interval"`
	Stats     monitor.Stats `json:"stats"`
}

// ServeHTTP routes monitor requests.
func (h *MonitorHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/monitor")
	path = strings.Trim(path, "/")

	switch path {
	case "":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		writeJSON(w, http.StatusOK, h.status())
	case "start":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		h.start(w)
	case "stop":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		h.stop(w)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (h *MonitorHandler) status() monitorResponse {
	config := h.monitor.Config()
	last := h.monitor.LastResult()
	state := h.monitor.State()

	resp := monitorResponse{
		State:     state.String(),
		Enabled:   state == monitor.Polling,
		Ready:     h.monitor.Ready(),
		Alert:     h.monitor.Alerting(),
		Distance:  last.Distance,
		Mode:      string(config.Mode),
		Threshold: config.Threshold,
		Interval:  config.Interval.String(),
		Stats:     h.monitor.Stats(),
	}
	if !last.At.IsZero() {
		resp.LastTick = last.At.Format(time.RFC3339Nano)
	}

	return resp
}

func (h *MonitorHandler) start(w http.ResponseWriter) {
	err := h.monitor.Start()
	switch {
	case errors.Is(err, detector.ErrNotReady):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, monitor.ErrClosed):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case err != nil:
		log.Errorf("api: start monitor: %v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusOK, h.status())
	}
}

func (h *MonitorHandler) stop(w http.ResponseWriter) {
	if err := h.monitor.Stop(); err != nil {
		log.Errorf("api: stop monitor: %v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.status())
}
