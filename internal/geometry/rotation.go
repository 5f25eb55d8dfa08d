package geometry

import "fmt"

// Rotation is a page rotation in degrees, clockwise as displayed, matching
// the PDF /Rotate entry.
type Rotation int

const (
	Rotate0   Rotation = 0
	Rotate90  Rotation = 90
	Rotate180 Rotation = 180
	Rotate270 Rotation = 270
)

// Validate rejects anything but the four quarter turns. It never normalizes.
func (r Rotation) Validate() error {
	switch r {
	case Rotate0, Rotate90, Rotate180, Rotate270:
		return nil
	default:
		return fmt.Errorf("%w: %d (must be 0, 90, 180 or 270)", ErrInvalidRotation, int(r))
	}
}

// ParseRotation converts a raw /Rotate value into a Rotation. PDF allows any
// multiple of 90, including negative values, so those are reduced modulo 360.
func ParseRotation(degrees int) (Rotation, error) {
	if degrees%90 != 0 {
		return 0, fmt.Errorf("%w: /Rotate %d is not a multiple of 90", ErrInvalidRotation, degrees)
	}
	return Rotation(((degrees % 360) + 360) % 360), nil
}

// SwapsAxes reports whether the displayed page has width and height exchanged.
func (r Rotation) SwapsAxes() bool {
	return r == Rotate90 || r == Rotate270
}

// DisplaySize returns the displayed size of a page whose unrotated size is s.
func (r Rotation) DisplaySize(s Size) Size {
	if r.SwapsAxes() {
		return Size{Width: s.Height, Height: s.Width}
	}
	return s
}

// UnrotatedSize returns the unrotated size of a page displayed at size s.
func (r Rotation) UnrotatedSize(s Size) Size {
	// Swapping is its own inverse.
	return r.DisplaySize(s)
}

// Matrix returns the counter-clockwise rotation by r degrees about the origin.
// Quarter turns are exact; no trigonometry is involved.
func (r Rotation) Matrix() Matrix {
	switch r {
	case Rotate90:
		return Matrix{0, 1, -1, 0, 0, 0}
	case Rotate180:
		return Matrix{-1, 0, 0, -1, 0, 0}
	case Rotate270:
		return Matrix{0, -1, 1, 0, 0, 0}
	default:
		return Identity()
	}
}

// DisplayToUnrotated maps the displayed (rotated, bottom-left origin) frame of
// a page into its unrotated frame. page is the unrotated page size. The point
// is rotated by -r (counter-clockwise in y-up terms) about the page centre.
func (r Rotation) DisplayToUnrotated(page Size) (Matrix, error) {
	if err := r.Validate(); err != nil {
		return Matrix{}, err
	}
	dc := r.DisplaySize(page).Center()
	uc := page.Center()
	return Translate(-dc.X, -dc.Y).Then(r.Matrix()).Then(Translate(uc.X, uc.Y)), nil
}

// UnrotatedToDisplay is the inverse of DisplayToUnrotated.
func (r Rotation) UnrotatedToDisplay(page Size) (Matrix, error) {
	if err := r.Validate(); err != nil {
		return Matrix{}, err
	}
	dc := r.DisplaySize(page).Center()
	uc := page.Center()
	inv := (360 - r) % 360
	return Translate(-uc.X, -uc.Y).Then(inv.Matrix()).Then(Translate(dc.X, dc.Y)), nil
}
