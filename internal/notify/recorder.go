package notify

import (
	"context"
	"sync"
)

// Recorder is a Notifier that records every call. It is used in tests.
type Recorder struct {
	mu     sync.Mutex
	active bool
	calls  []string
	texts  []string
	starts int
	stops  int
	err    error
}

// NewRecorder returns an inactive Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Start(ctx context.Context, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls = append(r.calls, "start")
	if r.err != nil {
		return r.err
	}
	if !r.active {
		r.active = true
		r.starts++
		r.texts = append(r.texts, text)
	}
	return nil
}

func (r *Recorder) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls = append(r.calls, "stop")
	if r.active {
		r.active = false
		r.stops++
	}
	return nil
}

func (r *Recorder) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// SetError makes Start fail with err.
func (r *Recorder) SetError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

// Calls returns every Start and Stop call in order as "start" or "stop".
func (r *Recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// Starts returns how many times the recorder went from inactive to active.
func (r *Recorder) Starts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.starts
}

// Stops returns how many times the recorder went from active to inactive.
func (r *Recorder) Stops() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stops
}

// Texts returns the text of every effective Start.
func (r *Recorder) Texts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.texts...)
}
