package api

import (
	"net/http"
	"strconv"

	"github.com/ayusman/handsoff/internal/store"
)

// DefaultAlertLimit is the number of alerts returned without a limit parameter.
const DefaultAlertLimit = 50

// AlertsHandler serves the alert history at /api/alerts.
type AlertsHandler struct {
	store *store.Store
}

// NewAlertsHandler creates a new AlertsHandler with the given store.
func NewAlertsHandler(s *store.Store) *AlertsHandler {
	return &AlertsHandler{store: s}
}

type alertResponse struct {
	ID          string  `json:"id"`
	StartedAt   string  `json:"started_at"`
	EndedAt     string  `json:"ended_at"`
	DurationMs  int64   `json:"duration_ms"`
	MinDistance float64 `json:"min_distance"`
	Mode        string  `json:"mode"`
}

type listAlertsResponse struct {
	Alerts []alertResponse `json:"alerts"`
	Total  int             `json:"total"`
}

// ServeHTTP handles GET (list) and DELETE (clear).
func (h *AlertsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w, r)
	case http.MethodDelete:
		h.clear(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *AlertsHandler) list(w http.ResponseWriter, r *http.Request) {
	limit := DefaultAlertLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	repo := h.store.Alerts()
	alerts, err := repo.List(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list alerts")
		return
	}
	total, err := repo.Count(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to count alerts")
		return
	}

	resp := listAlertsResponse{Alerts: make([]alertResponse, 0, len(alerts)), Total: total}
	for _, a := range alerts {
		resp.Alerts = append(resp.Alerts, alertResponse{
			ID:          a.ID,
			StartedAt:   a.StartedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
			EndedAt:     a.EndedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
			DurationMs:  a.Duration().Milliseconds(),
			MinDistance: a.MinDistance,
			Mode:        a.Mode,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *AlertsHandler) clear(w http.ResponseWriter, r *http.Request) {
	removed, err := h.store.Alerts().Clear(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to clear alerts")
		return
	}
	log.Infof("api: cleared %d alerts", removed)
	w.WriteHeader(http.StatusNoContent)
}
