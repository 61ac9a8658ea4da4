package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/ayusman/handsoff/internal/capture"
	"github.com/ayusman/handsoff/internal/detector"
	"github.com/ayusman/handsoff/internal/event"
	"github.com/ayusman/handsoff/internal/monitor"
	"github.com/ayusman/handsoff/internal/notify"
	"github.com/ayusman/handsoff/internal/render"
	"github.com/ayusman/handsoff/internal/store"
)

func TestAPI_MonitorWorkflow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	st, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer st.Close()

	cam := capture.NewBlankMockCamera(320, 240)
	defer cam.Release()
	det := detector.NewMockDetector()
	det.SetReady(false)
	speech := notify.NewRecorder()
	overlay := render.NewOverlay(render.DefaultStyles())
	hub := event.NewHub()

	config := monitor.DefaultConfig()
	config.Interval = time.Hour
	m, err := monitor.New(config, monitor.Deps{
		Camera:   cam,
		Detector: det,
		Notifier: speech,
		Renderer: overlay,
		Events:   event.HubPublisher{Hub: hub},
		Alerts:   st.Alerts(),
	})
	if err != nil {
		t.Fatalf("monitor.New() error = %v", err)
	}
	defer m.Close()

	srv := New(Config{Store: st, Monitor: m, Frames: overlay, Hub: hub})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	client := ts.Client()
	post := func(path string) *http.Response {
		resp, err := client.Post(ts.URL+path, "application/json", nil)
		if err != nil {
			t.Fatalf("POST %s error = %v", path, err)
		}
		return resp
	}
	status := func() (state string, alert bool) {
		resp, err := client.Get(ts.URL + "/api/monitor")
		if err != nil {
			t.Fatalf("GET /api/monitor error = %v", err)
		}
		defer resp.Body.Close()
		var body struct {
			State string `json:"state"`
			Alert bool   `json:"alert"`
		}
		json.NewDecoder(resp.Body).Decode(&body)
		return body.State, body.Alert
	}

	// 1. Starting before the models are loaded is refused.
	resp := post("/api/monitor/start")
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("start before ready: status = %d, want %d", resp.StatusCode, http.StatusConflict)
	}

	// 2. Start once ready.
	det.SetReady(true)
	resp = post("/api/monitor/start")
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("start: status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	// 3. A hand near the mouth raises the alert.
	det.SetResult(detector.HandNearMouth())
	if err := m.Tick(context.Background()); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	if state, alert := status(); state != "polling" || !alert {
		t.Fatalf("status = %s/%v, want polling/true", state, alert)
	}
	if speech.Starts() != 1 {
		t.Errorf("notifier starts = %d, want 1", speech.Starts())
	}
	if _, seq := overlay.Latest(); seq == 0 {
		t.Error("expected an annotated frame for the stream")
	}

	// 4. Moving the hand away ends the episode and records it.
	det.SetResult(detector.HandAway())
	if err := m.Tick(context.Background()); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	if _, alert := status(); alert {
		t.Fatal("alert should be cleared")
	}

	resp, _ = client.Get(ts.URL + "/api/alerts")
	var alerts struct {
		Total int `json:"total"`
	}
	json.NewDecoder(resp.Body).Decode(&alerts)
	resp.Body.Close()
	if alerts.Total != 1 {
		t.Fatalf("alerts total = %d, want 1", alerts.Total)
	}

	// 5. Settings apply to the running monitor and are saved.
	req, _ := http.NewRequest(http.MethodPut, ts.URL+"/api/settings", bytes.NewBufferString(`{"threshold": 0.02}`))
	resp, err = client.Do(req)
	if err != nil {
		t.Fatalf("PUT /api/settings error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("PUT /api/settings status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if got := m.Config().Threshold; got != 0.02 {
		t.Errorf("monitor threshold = %g, want 0.02", got)
	}
	if v, err := st.Settings().Get(context.Background(), "threshold"); err != nil || v != "0.02" {
		t.Errorf("saved threshold = %q, %v", v, err)
	}

	// 6. Stop.
	resp = post("/api/monitor/stop")
	resp.Body.Close()
	if state, _ := status(); state != "idle" {
		t.Fatalf("state after stop = %s, want idle", state)
	}
	if speech.Active() {
		t.Error("notifier should be stopped")
	}
}

func TestAPI_HealthCheck(t *testing.T) {
	srv := New(Config{})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatalf("GET /api/health error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var health struct {
		Status string `json:"status"`
		Uptime string `json:"uptime"`
	}
	json.NewDecoder(resp.Body).Decode(&health)

	if health.Status != "ok" {
		t.Errorf("status = %s, want ok", health.Status)
	}
}
