package detector

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/handsoff/internal/landmark"
)

const scriptName = "landmark_service.py"

// MediaPipeDetector implements Detector using a Python MediaPipe subprocess.
//
// Each request is a 4-byte big-endian length followed by a JSON header, then a
// 4-byte length followed by the JPEG-encoded frame. The service answers with
// one JSON line per request. On startup it prints {"ready": true} once its
// models are loaded.
type MediaPipeDetector struct {
	config    Config
	script    string
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	stdout    *bufio.Reader
	mu        sync.Mutex
	started   bool
	loaded    bool
	lastUsed  time.Time
	idleTimer *time.Timer
}

// NewMediaPipeDetector creates a new MediaPipe detector.
// Call Load to start the service; until then Ready reports false.
func NewMediaPipeDetector(config Config) (*MediaPipeDetector, error) {
	script := config.Script
	if script == "" {
		script = findScript()
	}
	if script == "" {
		return nil, fmt.Errorf("%s not found", scriptName)
	}

	return &MediaPipeDetector{
		config: config,
		script: script,
	}, nil
}

// Load starts the service and waits until its models are loaded. Failures
// are retried with exponential backoff up to config.LoadAttempts times.
func (d *MediaPipeDetector) Load(ctx context.Context) error {
	attempts := d.config.LoadAttempts
	if attempts <= 0 {
		attempts = 1
	}
	backoff := d.config.LoadBackoff

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = d.loadOnce(ctx)
		if err == nil {
			log.Infof("detector: landmark models loaded (attempt %d)", attempt)
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		log.Warnf("detector: load attempt %d/%d failed: %v", attempt, attempts, err)
		if attempt == attempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	return fmt.Errorf("load landmark models: %w", err)
}

// loadOnce starts the service, giving it config.LoadTimeout to report ready.
func (d *MediaPipeDetector) loadOnce(ctx context.Context) error {
	if d.config.LoadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.config.LoadTimeout)
		defer cancel()
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.ensureStarted(ctx); err != nil {
		return err
	}
	d.loaded = true
	return nil
}

// Ready reports whether Load has succeeded.
func (d *MediaPipeDetector) Ready() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.loaded
}

// Detect analyzes a frame and returns detected landmark sets.
func (d *MediaPipeDetector) Detect(ctx context.Context, frame *gocv.Mat, timestampMs int64) (Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.loaded {
		return Result{}, ErrNotReady
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	// The service is restarted lazily after an idle shutdown.
	if err := d.ensureStarted(ctx); err != nil {
		return Result{}, err
	}

	buf, err := gocv.IMEncode(".jpg", *frame)
	if err != nil {
		return Result{}, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	header, err := json.Marshal(requestHeader{
		TimestampMs:   timestampMs,
		Hands:         d.config.Hands,
		Faces:         d.config.Faces,
		Poses:         d.config.Poses,
		MaxHands:      d.config.MaxHands,
		MaxFaces:      d.config.MaxFaces,
		MaxPoses:      d.config.MaxPoses,
		MinConfidence: d.config.MinConfidence,
	})
	if err != nil {
		return Result{}, fmt.Errorf("encode header: %w", err)
	}

	if err := writeFrame(d.stdin, header); err != nil {
		d.abort()
		return Result{}, fmt.Errorf("write header: %w", err)
	}
	if err := writeFrame(d.stdin, buf.GetBytes()); err != nil {
		d.abort()
		return Result{}, fmt.Errorf("write frame: %w", err)
	}

	// A cancelled request leaves the stream out of sync, so the service is
	// killed and restarted on the next frame.
	line, err := readLine(ctx, d.stdout)
	if err != nil {
		d.abort()
		return Result{}, fmt.Errorf("read response: %w", err)
	}

	var response jsonResponse
	if err := json.Unmarshal(line, &response); err != nil {
		return Result{}, fmt.Errorf("parse response: %w", err)
	}
	if response.Error != "" {
		return Result{}, fmt.Errorf("landmark service: %s", response.Error)
	}

	d.lastUsed = time.Now()
	d.resetIdleTimer()

	return response.toResult(), nil
}

// SelectModels changes the models requested for the following frames.
func (d *MediaPipeDetector) SelectModels(m Models) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.config.Hands = m.Hands
	d.config.Faces = m.Faces
	d.config.Poses = m.Poses
}

// Close shuts down the Python process.
func (d *MediaPipeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.loaded = false
	return d.shutdown()
}

func (d *MediaPipeDetector) ensureStarted(ctx context.Context) error {
	if d.started {
		return nil
	}

	python := d.config.Python
	if python == "" {
		python = findVenvPython()
	}
	if python == "" {
		python = "python3"
	}

	d.cmd = exec.Command(python, d.script)

	stdin, err := d.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}

	stdout, err := d.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}

	d.cmd.Stderr = os.Stderr

	if err := d.cmd.Start(); err != nil {
		return fmt.Errorf("start landmark service: %w", err)
	}

	d.stdin = stdin
	d.stdout = bufio.NewReader(stdout)
	d.started = true

	// Wait for the models to load.
	line, err := readLine(ctx, d.stdout)
	if err != nil {
		d.abort()
		return fmt.Errorf("wait for landmark service: %w", err)
	}

	var status struct {
		Ready bool   `json:"ready"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(line, &status); err != nil || !status.Ready {
		d.abort()
		if status.Error != "" {
			return fmt.Errorf("landmark service: %s", status.Error)
		}
		return fmt.Errorf("landmark service sent unexpected greeting %q", string(line))
	}

	d.lastUsed = time.Now()
	d.resetIdleTimer()

	return nil
}

// abort kills a service whose stream is out of sync.
func (d *MediaPipeDetector) abort() {
	if d.cmd != nil && d.cmd.Process != nil {
		d.cmd.Process.Kill()
	}
	d.shutdown()
}

func (d *MediaPipeDetector) shutdown() error {
	if !d.started {
		return nil
	}

	if d.idleTimer != nil {
		d.idleTimer.Stop()
		d.idleTimer = nil
	}

	if d.stdin != nil {
		d.stdin.Close()
	}

	err := d.cmd.Wait()
	d.started = false
	d.cmd = nil
	d.stdin = nil
	d.stdout = nil

	return err
}

func (d *MediaPipeDetector) resetIdleTimer() {
	timeout := d.config.IdleTimeout
	if timeout <= 0 {
		return
	}
	if d.idleTimer != nil {
		d.idleTimer.Stop()
	}
	d.idleTimer = time.AfterFunc(timeout, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		log.Debugf("detector: landmark service idle for %s, shutting down", timeout)
		d.shutdown()
	})
}

// readLine reads one line from r, giving up when ctx is done. The read keeps
// running in the background until r fails, so the caller must discard r after
// a cancellation.
func readLine(ctx context.Context, r *bufio.Reader) ([]byte, error) {
	type lineResult struct {
		line []byte
		err  error
	}
	ch := make(chan lineResult, 1)
	go func() {
		line, err := r.ReadBytes('\n')
		ch <- lineResult{line, err}
	}()

	select {
	case res := <-ch:
		return res.line, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func writeFrame(w io.Writer, data []byte) error {
	length := make([]byte, 4)
	binary.BigEndian.PutUint32(length, uint32(len(data)))
	if _, err := w.Write(length); err != nil {
		return err
	}
	_, err := w.Write(data)
	return err
}

func findScript() string {
	execPath, err := os.Executable()
	var execDir string
	if err == nil {
		execDir = filepath.Dir(execPath)
	}

	candidates := []string{
		filepath.Join("scripts", scriptName),
		filepath.Join("..", "scripts", scriptName),
		filepath.Join(execDir, "scripts", scriptName),
		filepath.Join(os.Getenv("HOME"), ".handsoff", "scripts", scriptName),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			if abs, err := filepath.Abs(path); err == nil {
				return abs
			}
			return path
		}
	}
	return ""
}

// findVenvPython looks for a Python interpreter in a virtual environment.
func findVenvPython() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}
	execDir := filepath.Dir(execPath)

	candidates := []string{
		"venv/bin/python",
		"../venv/bin/python",
		filepath.Join(execDir, "venv/bin/python"),
		filepath.Join(os.Getenv("HOME"), ".handsoff/venv/bin/python"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			if abs, err := filepath.Abs(path); err == nil {
				return abs
			}
			return path
		}
	}
	return ""
}

type requestHeader struct {
	TimestampMs   int64   `json:"timestamp_ms"`
	Hands         bool    `json:"hands"`
	Faces         bool    `json:"faces"`
	Poses         bool    `json:"poses"`
	MaxHands      int     `json:"max_hands"`
	MaxFaces      int     `json:"max_faces"`
	MaxPoses      int     `json:"max_poses"`
	MinConfidence float64 `json:"min_confidence"`
}

// jsonResponse represents the JSON structure from the Python service.
type jsonResponse struct {
	Hands []jsonSet `json:"hands"`
	Faces []jsonSet `json:"faces"`
	Poses []jsonSet `json:"poses"`
	Error string    `json:"error,omitempty"`
}

type jsonSet struct {
	Points     []jsonPoint `json:"points"`
	Handedness string      `json:"handedness,omitempty"`
	Score      float64     `json:"score"`
}

type jsonPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (r jsonResponse) toResult() Result {
	return Result{
		Hands: toSets(landmark.Hand, r.Hands),
		Faces: toSets(landmark.Face, r.Faces),
		Poses: toSets(landmark.Pose, r.Poses),
	}
}

func toSets(kind landmark.Kind, in []jsonSet) []landmark.Set {
	if len(in) == 0 {
		return nil
	}
	out := make([]landmark.Set, len(in))
	for i, js := range in {
		s := landmark.Set{
			Kind:   kind,
			Space:  landmark.Normalized,
			Label:  js.Handedness,
			Score:  js.Score,
			Points: make([]landmark.Landmark, len(js.Points)),
		}
		for j, p := range js.Points {
			s.Points[j] = landmark.Landmark{X: p.X, Y: p.Y, Z: p.Z}
		}
		out[i] = s
	}
	return out
}
