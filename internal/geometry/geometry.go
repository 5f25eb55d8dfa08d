// Package geometry maps between preview device coordinates and PDF point space.
//
// Device space is measured in pixels with a top-left origin and y growing
// downwards, scaled by the preview zoom. PDF space is measured in points with
// a bottom-left origin and y growing upwards, in the unrotated page frame.
// Stored field coordinates always live in PDF space so a zoom change never
// rewrites model data.
package geometry

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidZoom is returned for zoom factors that are not finite and positive.
	ErrInvalidZoom = errors.New("invalid zoom factor")
	// ErrInvalidRotation is returned for rotations outside {0, 90, 180, 270}.
	ErrInvalidRotation = errors.New("invalid page rotation")
	// ErrInvalidPageSize is returned when a page dimension is not finite and positive.
	ErrInvalidPageSize = errors.New("invalid page size")
)

// Point is a 2D coordinate.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Add returns p translated by q.
func (p Point) Add(q Point) Point {
	return Point{X: p.X + q.X, Y: p.Y + q.Y}
}

// Sub returns p translated by -q.
func (p Point) Sub(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y}
}

// Near reports whether p and q are within tol of each other on both axes.
func (p Point) Near(q Point, tol float64) bool {
	return math.Abs(p.X-q.X) <= tol && math.Abs(p.Y-q.Y) <= tol
}

// Size is a width/height pair.
type Size struct {
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// Validate checks that both dimensions are finite and positive.
func (s Size) Validate() error {
	if !finitePositive(s.Width) || !finitePositive(s.Height) {
		return fmt.Errorf("%w: %gx%g", ErrInvalidPageSize, s.Width, s.Height)
	}
	return nil
}

// Center returns the midpoint of a box of this size anchored at the origin.
func (s Size) Center() Point {
	return Point{X: s.Width / 2, Y: s.Height / 2}
}

// Rect is an axis-aligned rectangle given by its minimum corner and size.
// In PDF space the minimum corner is the lower-left corner; in device space
// it is the top-left corner.
type Rect struct {
	X      float64 `json:"x" yaml:"x"`
	Y      float64 `json:"y" yaml:"y"`
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// RectFromPoints returns the smallest Rect containing a and b.
func RectFromPoints(a, b Point) Rect {
	minX, maxX := math.Min(a.X, b.X), math.Max(a.X, b.X)
	minY, maxY := math.Min(a.Y, b.Y), math.Max(a.Y, b.Y)
	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// Min returns the minimum corner.
func (r Rect) Min() Point {
	return Point{X: r.X, Y: r.Y}
}

// Max returns the maximum corner.
func (r Rect) Max() Point {
	return Point{X: r.X + r.Width, Y: r.Y + r.Height}
}

// Size returns the rectangle dimensions.
func (r Rect) Size() Size {
	return Size{Width: r.Width, Height: r.Height}
}

// Translate returns r moved by d.
func (r Rect) Translate(d Point) Rect {
	return Rect{X: r.X + d.X, Y: r.Y + d.Y, Width: r.Width, Height: r.Height}
}

// WithinBox reports whether r lies entirely inside [0,w]x[0,h].
func (r Rect) WithinBox(box Size) bool {
	if !isFinite(r.X) || !isFinite(r.Y) || !isFinite(r.Width) || !isFinite(r.Height) {
		return false
	}
	if r.Width < 0 || r.Height < 0 {
		return false
	}
	return r.X >= 0 && r.Y >= 0 && r.X+r.Width <= box.Width && r.Y+r.Height <= box.Height
}

// ClampInto moves r so that it fits inside [0,w]x[0,h] without resizing it.
// A rectangle larger than the box is pinned to the origin.
func (r Rect) ClampInto(box Size) Rect {
	maxX := math.Max(0, box.Width-r.Width)
	maxY := math.Max(0, box.Height-r.Height)
	r.X = math.Max(0, math.Min(r.X, maxX))
	r.Y = math.Max(0, math.Min(r.Y, maxY))
	return r
}

// Near reports whether all four components of r and o are within tol.
func (r Rect) Near(o Rect, tol float64) bool {
	return r.Min().Near(o.Min(), tol) && r.Max().Near(o.Max(), tol)
}

// String formats r as [x y w h].
func (r Rect) String() string {
	return fmt.Sprintf("[%g %g %g %g]", r.X, r.Y, r.Width, r.Height)
}

// Corners returns the four corners of r.
func (r Rect) Corners() [4]Point {
	return [4]Point{
		{X: r.X, Y: r.Y},
		{X: r.X + r.Width, Y: r.Y},
		{X: r.X + r.Width, Y: r.Y + r.Height},
		{X: r.X, Y: r.Y + r.Height},
	}
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func finitePositive(f float64) bool {
	return isFinite(f) && f > 0
}
