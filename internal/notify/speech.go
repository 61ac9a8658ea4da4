package notify

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"
)

// ErrNoSpeechEngine is returned when no text-to-speech binary is installed.
var ErrNoSpeechEngine = errors.New("no text-to-speech engine found")

// SpeechConfig holds the voice settings passed to the speech engine.
type SpeechConfig struct {
	// Binary overrides engine detection. Its base name selects the argument
	// style: say, espeak, espeak-ng or spd-say. Other binaries get the text
	// as their only argument.
	Binary string `yaml:"binary"`

	// Voice is the engine-specific voice name; empty uses the default voice.
	Voice string `yaml:"voice"`

	// Rate is the speaking rate in words per minute (0 = engine default).
	Rate int `yaml:"rate"`

	// Pitch is 0-100 with 50 as neutral (0 = engine default).
	Pitch int `yaml:"pitch"`

	// Volume is 0-1 (0 = engine default).
	Volume float64 `yaml:"volume"`
}

// Speech speaks alerts through the operating system's text-to-speech binary.
// One utterance runs at a time; once it finishes, the next Start speaks again.
type Speech struct {
	config SpeechConfig
	binary string

	mu  sync.Mutex
	cmd *exec.Cmd
	// done is closed when the current utterance exits.
	done chan struct{}
}

// NewSpeech finds a speech engine for the current platform.
func NewSpeech(config SpeechConfig) (*Speech, error) {
	binary := config.Binary
	if binary == "" {
		binary = detectEngine()
	}
	if binary == "" {
		return nil, ErrNoSpeechEngine
	}
	if _, err := exec.LookPath(binary); err != nil {
		return nil, fmt.Errorf("speech engine %s: %w", binary, err)
	}

	return &Speech{config: config, binary: binary}, nil
}

// Binary returns the engine in use.
func (s *Speech) Binary() string {
	return s.binary
}

// Start speaks text unless an utterance is already in progress.
func (s *Speech) Start(ctx context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cmd != nil {
		return nil
	}

	cmd := exec.Command(s.binary, s.args(text)...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start speech: %w", err)
	}

	done := make(chan struct{})
	s.cmd = cmd
	s.done = done

	go func() {
		if err := cmd.Wait(); err != nil {
			log.Debugf("notify: speech exited: %v", err)
		}
		s.mu.Lock()
		if s.cmd == cmd {
			s.cmd = nil
		}
		s.mu.Unlock()
		close(done)
	}()

	return nil
}

// Stop cancels the current utterance and waits for it to exit.
func (s *Speech) Stop() error {
	s.mu.Lock()
	cmd, done := s.cmd, s.done
	s.cmd = nil
	s.mu.Unlock()

	if cmd == nil {
		return nil
	}

	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("stop speech: %w", err)
	}
	<-done
	return nil
}

// Active reports whether an utterance is in progress.
func (s *Speech) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cmd != nil
}

func (s *Speech) args(text string) []string {
	c := s.config
	var args []string

	switch filepath.Base(s.binary) {
	case "say":
		if c.Voice != "" {
			args = append(args, "-v", c.Voice)
		}
		if c.Rate > 0 {
			args = append(args, "-r", strconv.Itoa(c.Rate))
		}
		if c.Volume > 0 {
			text = fmt.Sprintf("[[volm %.2f]] %s", c.Volume, text)
		}
	case "espeak", "espeak-ng":
		if c.Voice != "" {
			args = append(args, "-v", c.Voice)
		}
		if c.Rate > 0 {
			args = append(args, "-s", strconv.Itoa(c.Rate))
		}
		if c.Pitch > 0 {
			args = append(args, "-p", strconv.Itoa(c.Pitch))
		}
		if c.Volume > 0 {
			args = append(args, "-a", strconv.Itoa(int(c.Volume*200)))
		}
	case "spd-say":
		// spd-say takes rate, pitch and volume in -100..100.
		args = append(args, "-w")
		if c.Voice != "" {
			args = append(args, "-y", c.Voice)
		}
		if c.Rate > 0 {
			args = append(args, "-r", strconv.Itoa(clamp((c.Rate-175)/2, -100, 100)))
		}
		if c.Pitch > 0 {
			args = append(args, "-p", strconv.Itoa(clamp(c.Pitch*2-100, -100, 100)))
		}
		if c.Volume > 0 {
			args = append(args, "-i", strconv.Itoa(clamp(int(c.Volume*200)-100, -100, 100)))
		}
	}

	return append(args, text)
}

func detectEngine() string {
	var candidates []string
	switch runtime.GOOS {
	case "darwin":
		candidates = []string{"say"}
	default:
		candidates = []string{"espeak-ng", "espeak", "spd-say"}
	}

	for _, c := range candidates {
		if path, err := exec.LookPath(c); err == nil {
			return path
		}
	}
	return ""
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
