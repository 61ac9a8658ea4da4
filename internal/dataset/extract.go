// Package dataset extracts training frames from videos and loads labelled
// image folders for the face-touch classifier.
package dataset

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"gocv.io/x/gocv"

	"github.com/ayusman/handsoff/internal/event"
)

var log = event.Log

// Default extraction settings.
const (
	DefaultFPS    = 24
	DefaultWidth  = 224
	DefaultHeight = 224
)

// framePattern names the extracted frames, numbered from 1.
const framePattern = "frame_%04d.jpg"

// Backend names.
const (
	BackendFFmpeg = "ffmpeg"
	BackendGocv   = "gocv"
)

// ExtractConfig controls frame extraction.
type ExtractConfig struct {
	FPS    int
	Width  int
	Height int

	// FFmpeg overrides the ffmpeg binary.
	FFmpeg string
}

// DefaultExtractConfig returns 24 fps frames scaled to 224x224.
func DefaultExtractConfig() ExtractConfig {
	return ExtractConfig{
		FPS:    DefaultFPS,
		Width:  DefaultWidth,
		Height: DefaultHeight,
		FFmpeg: "ffmpeg",
	}
}

// Validate checks the frame rate and size.
func (c ExtractConfig) Validate() error {
	if c.FPS <= 0 {
		return fmt.Errorf("fps must be positive, got %d", c.FPS)
	}
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("frame size must be positive, got %dx%d", c.Width, c.Height)
	}
	return nil
}

// Extractor writes the frames of a video as numbered JPEG files.
type Extractor interface {
	// Extract writes frames of input into outputDir, creating it if needed,
	// and returns how many frames were written.
	Extract(ctx context.Context, input, outputDir string) (int, error)
}

// NewExtractor returns the extractor for backend.
func NewExtractor(backend string, config ExtractConfig) (Extractor, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch backend {
	case BackendFFmpeg, "":
		return &FFmpegExtractor{config: config}, nil
	case BackendGocv:
		return &GocvExtractor{config: config}, nil
	}
	return nil, fmt.Errorf("unknown extraction backend %q", backend)
}

// FFmpegExtractor runs ffmpeg with an fps and scale filter.
type FFmpegExtractor struct {
	config ExtractConfig
}

// Command returns the ffmpeg invocation for input and outputDir.
func (e *FFmpegExtractor) Command(ctx context.Context, input, outputDir string) *exec.Cmd {
	binary := e.config.FFmpeg
	if binary == "" {
		binary = "ffmpeg"
	}

	filter := fmt.Sprintf("fps=%d,scale=%d:%d", e.config.FPS, e.config.Width, e.config.Height)

	return exec.CommandContext(ctx, binary,
		"-hide_banner",
		"-loglevel", "error",
		"-y",
		"-i", input,
		"-vf", filter,
		filepath.Join(outputDir, framePattern),
	)
}

// Extract runs ffmpeg. Its stderr is attached to the returned error.
func (e *FFmpegExtractor) Extract(ctx context.Context, input, outputDir string) (int, error) {
	if _, err := os.Stat(input); err != nil {
		return 0, fmt.Errorf("extract: %w", err)
	}
	if err := ensureDir(outputDir); err != nil {
		return 0, err
	}

	cmd := e.Command(ctx, input, outputDir)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	log.Infof("extract: %s to %s at %d fps, %dx%d", filepath.Base(input), outputDir, e.config.FPS, e.config.Width, e.config.Height)
	log.Trace(cmd.String())

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return 0, fmt.Errorf("ffmpeg: %w: %s", err, msg)
		}
		return 0, fmt.Errorf("ffmpeg: %w", err)
	}

	return countFrames(outputDir)
}

// GocvExtractor decodes the video with OpenCV. It keeps the first frame at or
// after each 1/FPS step of the stream position.
type GocvExtractor struct {
	config ExtractConfig
}

// Extract decodes input and writes resized frames.
func (e *GocvExtractor) Extract(ctx context.Context, input, outputDir string) (int, error) {
	if _, err := os.Stat(input); err != nil {
		return 0, fmt.Errorf("extract: %w", err)
	}

	video, err := gocv.VideoCaptureFile(input)
	if err != nil {
		return 0, fmt.Errorf("open video %s: %w", input, err)
	}
	defer video.Close()

	if err := ensureDir(outputDir); err != nil {
		return 0, err
	}

	frame := gocv.NewMat()
	defer frame.Close()
	resized := gocv.NewMat()
	defer resized.Close()

	step := 1000.0 / float64(e.config.FPS)
	sourceFPS := video.Get(gocv.VideoCaptureFPS)
	next := 0.0
	written := 0

	for index := 0; ; index++ {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		if !video.Read(&frame) || frame.Empty() {
			break
		}

		pos := video.Get(gocv.VideoCapturePosMsec)
		if pos <= 0 && sourceFPS > 0 {
			pos = float64(index) * 1000 / sourceFPS
		}
		if pos+1e-6 < next {
			continue
		}
		next += step

		gocv.Resize(frame, &resized, image.Pt(e.config.Width, e.config.Height), 0, 0, gocv.InterpolationLinear)

		written++
		name := filepath.Join(outputDir, fmt.Sprintf(framePattern, written))
		if ok := gocv.IMWrite(name, resized); !ok {
			return written - 1, fmt.Errorf("write %s failed", name)
		}
	}

	if written == 0 {
		return 0, errors.New("extract: no frames decoded from " + input)
	}

	log.Infof("extract: wrote %d frames from %s", written, filepath.Base(input))

	return written, nil
}

func ensureDir(dir string) error {
	if _, err := os.Stat(dir); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	log.Infof("extract: created directory %s", dir)
	return nil
}

func countFrames(dir string) (int, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "frame_*.jpg"))
	if err != nil {
		return 0, err
	}
	return len(matches), nil
}
