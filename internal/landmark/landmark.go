// Package landmark defines the keypoint types produced by the hand, face and
// pose landmark models, tagged with the coordinate space they are expressed in.
package landmark

import (
	"errors"
	"fmt"
)

// ErrSpaceMismatch is returned when two sets in different coordinate spaces
// are compared.
var ErrSpaceMismatch = errors.New("landmark sets are in different coordinate spaces")

// Space is the coordinate space of a Set.
type Space int

const (
	// Normalized coordinates are in [0,1] relative to the frame size.
	Normalized Space = iota
	// Pixel coordinates are scaled by the frame width and height.
	Pixel
)

func (s Space) String() string {
	switch s {
	case Normalized:
		return "normalized"
	case Pixel:
		return "pixel"
	default:
		return fmt.Sprintf("space(%d)", int(s))
	}
}

// ParseSpace parses "normalized" or "pixel".
func ParseSpace(s string) (Space, error) {
	switch s {
	case "normalized", "":
		return Normalized, nil
	case "pixel":
		return Pixel, nil
	default:
		return Normalized, fmt.Errorf("unknown coordinate space %q", s)
	}
}

// Kind is the entity a Set describes.
type Kind string

const (
	Hand Kind = "hand"
	Face Kind = "face"
	Pose Kind = "pose"
)

// Landmark is a single keypoint. Z is the model's relative depth and is never
// rescaled when converting between spaces.
type Landmark struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Set is the ordered landmarks of one detected entity in one frame.
type Set struct {
	Kind   Kind       `json:"kind"`
	Space  Space      `json:"space"`
	Points []Landmark `json:"points"`
	Label  string     `json:"label,omitempty"` // handedness for hands
	Score  float64    `json:"score,omitempty"`
}

// Len returns the number of points.
func (s Set) Len() int {
	return len(s.Points)
}

// Empty reports whether the set has no points.
func (s Set) Empty() bool {
	return len(s.Points) == 0
}

// At returns the point at index i and whether it exists.
func (s Set) At(i int) (Landmark, bool) {
	if i < 0 || i >= len(s.Points) {
		return Landmark{}, false
	}
	return s.Points[i], true
}

// Select returns a set containing the points at the given indices, in the
// given order. Out-of-range indices are skipped.
func (s Set) Select(indices []int) Set {
	out := Set{Kind: s.Kind, Space: s.Space, Label: s.Label, Score: s.Score}
	out.Points = make([]Landmark, 0, len(indices))
	for _, i := range indices {
		if p, ok := s.At(i); ok {
			out.Points = append(out.Points, p)
		}
	}
	return out
}

// Scale multiplies x and y of every point by f. The space tag is unchanged.
func (s Set) Scale(f float64) Set {
	out := s.clone()
	for i := range out.Points {
		out.Points[i].X *= f
		out.Points[i].Y *= f
	}
	return out
}

// ToPixel converts a normalized set to pixel coordinates for a frame of the
// given size. A set already in pixel space is returned unchanged.
func (s Set) ToPixel(width, height int) Set {
	if s.Space == Pixel {
		return s
	}
	out := s.clone()
	out.Space = Pixel
	for i := range out.Points {
		out.Points[i].X *= float64(width)
		out.Points[i].Y *= float64(height)
	}
	return out
}

// ToNormalized converts a pixel set back to normalized coordinates.
// A zero dimension leaves the set unchanged.
func (s Set) ToNormalized(width, height int) Set {
	if s.Space == Normalized || width <= 0 || height <= 0 {
		return s
	}
	out := s.clone()
	out.Space = Normalized
	for i := range out.Points {
		out.Points[i].X /= float64(width)
		out.Points[i].Y /= float64(height)
	}
	return out
}

// In converts the set to the requested space.
func (s Set) In(space Space, width, height int) Set {
	if space == Pixel {
		return s.ToPixel(width, height)
	}
	return s.ToNormalized(width, height)
}

// Merge concatenates sets of the same space into one set of the given kind.
func Merge(kind Kind, sets ...Set) (Set, error) {
	out := Set{Kind: kind}
	first := true
	for _, s := range sets {
		if s.Empty() {
			continue
		}
		if first {
			out.Space = s.Space
			first = false
		} else if s.Space != out.Space {
			return Set{}, ErrSpaceMismatch
		}
		out.Points = append(out.Points, s.Points...)
	}
	return out, nil
}

func (s Set) clone() Set {
	out := s
	out.Points = make([]Landmark, len(s.Points))
	copy(out.Points, s.Points)
	return out
}
