package dataset

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/image/draw"
)

// Class directories under a dataset root.
const (
	TouchingDir    = "touching_face"
	NotTouchingDir = "not_touching_face"
)

// Labels.
const (
	LabelNotTouching = 0
	LabelTouching    = 1
)

// ErrEmptyDataset is returned when a dataset root holds no images.
var ErrEmptyDataset = errors.New("dataset contains no images")

// Sample is one labelled image. Pixels holds RGB values in [0,1], row-major
// with interleaved channels.
type Sample struct {
	Path   string
	Label  int
	Pixels []float64
}

// Set is a loaded dataset. Every sample has Width*Height*3 pixels.
type Set struct {
	Samples []Sample
	Width   int
	Height  int
}

// Counts returns the number of samples per label.
func (s *Set) Counts() (touching, notTouching int) {
	for _, sample := range s.Samples {
		if sample.Label == LabelTouching {
			touching++
		} else {
			notTouching++
		}
	}
	return touching, notTouching
}

// Load reads root/touching_face (label 1) and root/not_touching_face (label
// 0). Images are resized to width x height and scaled to [0,1]. Files with
// an image extension that fail to decode are errors; other files are skipped.
func Load(root string, width, height int) (*Set, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("image size must be positive, got %dx%d", width, height)
	}

	set := &Set{Width: width, Height: height}

	classes := []struct {
		dir   string
		label int
	}{
		{TouchingDir, LabelTouching},
		{NotTouchingDir, LabelNotTouching},
	}

	for _, class := range classes {
		dir := filepath.Join(root, class.dir)
		files, err := imageFiles(dir)
		if err != nil {
			return nil, err
		}

		for _, file := range files {
			pixels, err := LoadImage(file, width, height)
			if err != nil {
				return nil, err
			}
			set.Samples = append(set.Samples, Sample{Path: file, Label: class.label, Pixels: pixels})
		}

		log.Debugf("dataset: %d images in %s", len(files), dir)
	}

	if len(set.Samples) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyDataset, root)
	}

	return set, nil
}

// LoadImage decodes a JPEG or PNG file and returns its resized pixels.
func LoadImage(path string, width, height int) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	return Pixels(img, width, height), nil
}

// Pixels resizes img bilinearly to width x height and returns RGB values
// scaled to [0,1].
func Pixels(img image.Image, width, height int) []float64 {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)

	out := make([]float64, 0, width*height*3)
	for i := 0; i < len(dst.Pix); i += 4 {
		out = append(out,
			float64(dst.Pix[i])/255,
			float64(dst.Pix[i+1])/255,
			float64(dst.Pix[i+2])/255,
		)
	}
	return out
}

func imageFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read class directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".jpg", ".jpeg", ".png":
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)

	return files, nil
}
