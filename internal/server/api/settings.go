package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/ayusman/handsoff/internal/config"
	"github.com/ayusman/handsoff/internal/store"
)

// SettingsHandler serves the runtime monitor settings at /api/settings.
// Changes apply to the running monitor and are persisted when a store is set.
type SettingsHandler struct {
	monitor Monitor
	store   *store.Store
}

// NewSettingsHandler creates a new SettingsHandler. s may be nil.
func NewSettingsHandler(m Monitor, s *store.Store) *SettingsHandler {
	return &SettingsHandler{monitor: m, store: s}
}

type settingsResponse struct {
	Threshold float64 `json:"threshold"`
	Text      string  `json:"text"`
	Interval  string  `json:"interval"`
	Mode      string  `json:"mode"`
	Space     string  `json:"space"`
	Region    string  `json:"region"`
}

// updateSettingsRequest holds the fields to change; omitted fields are kept.
type updateSettingsRequest struct {
	Threshold *float64 `json:"threshold"`
	Text      *string  `json:"text"`
	Interval  *string  `json:"interval"`
	Mode      *string  `json:"mode"`
	Space     *string  `json:"space"`
	Region    *string  `json:"region"`
}

// ServeHTTP handles GET and PUT.
func (h *SettingsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, h.current())
	case http.MethodPut:
		h.update(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *SettingsHandler) current() settingsResponse {
	c := h.monitor.Config()
	return settingsResponse{
		Threshold: c.Threshold,
		Text:      c.Text,
		Interval:  c.Interval.String(),
		Mode:      string(c.Mode),
		Space:     c.Space.String(),
		Region:    string(c.Region),
	}
}

func (h *SettingsHandler) update(w http.ResponseWriter, r *http.Request) {
	var req updateSettingsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	values := make(map[string]string)
	if req.Threshold != nil {
		values[config.SettingThreshold] = strconv.FormatFloat(*req.Threshold, 'g', -1, 64)
	}
	if req.Text != nil {
		values[config.SettingText] = *req.Text
	}
	if req.Interval != nil {
		if _, err := time.ParseDuration(*req.Interval); err != nil {
			writeError(w, http.StatusBadRequest, "invalid interval: "+err.Error())
			return
		}
		values[config.SettingInterval] = *req.Interval
	}
	if req.Mode != nil {
		values[config.SettingMode] = *req.Mode
	}
	if req.Space != nil {
		values[config.SettingSpace] = *req.Space
	}
	if req.Region != nil {
		values[config.SettingRegion] = *req.Region
	}

	next := h.monitor.Config()
	if err := config.ApplySettings(&next, values); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.monitor.Apply(next); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if h.store != nil {
		if err := h.store.Settings().SetAll(r.Context(), config.MonitorSettings(next)); err != nil {
			log.Errorf("api: save settings: %v", err)
			writeError(w, http.StatusInternalServerError, "settings applied but not saved")
			return
		}
	}

	log.Infof("api: settings updated (threshold %g, interval %s, mode %s)", next.Threshold, next.Interval, next.Mode)
	writeJSON(w, http.StatusOK, h.current())
}
