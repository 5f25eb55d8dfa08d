package geometry

import "fmt"

// Viewport describes how a page is shown in the preview.
type Viewport struct {
	// Zoom is the preview scale; 1 device pixel equals 1 point at zoom 1.
	Zoom float64 `json:"zoom"`
	// PageSize is the displayed (rotated) page size at zoom 1.
	PageSize Size `json:"page_size"`
	// Rotation is the page /Rotate value.
	Rotation Rotation `json:"rotation"`
	// CropOffset is the lower-left corner of the crop box in user space.
	CropOffset Point `json:"crop_offset"`
}

// Validate checks the viewport parameters.
func (v Viewport) Validate() error {
	if !finitePositive(v.Zoom) {
		return fmt.Errorf("%w: %g", ErrInvalidZoom, v.Zoom)
	}
	if err := v.Rotation.Validate(); err != nil {
		return err
	}
	if err := v.PageSize.Validate(); err != nil {
		return err
	}
	if !isFinite(v.CropOffset.X) || !isFinite(v.CropOffset.Y) {
		return fmt.Errorf("crop offset must be finite: %+v", v.CropOffset)
	}
	return nil
}

// UnrotatedPageSize returns the page size in the unrotated PDF frame.
func (v Viewport) UnrotatedPageSize() Size {
	return v.Rotation.UnrotatedSize(v.PageSize)
}

// DeviceToPDF returns the transform from device pixels to PDF user space.
// The steps are applied in this order: undo zoom, flip the y axis against
// the displayed height, undo rotation about the page centre, add the crop
// offset.
func (v Viewport) DeviceToPDF() (Matrix, error) {
	if err := v.Validate(); err != nil {
		return Matrix{}, err
	}
	unzoom := Scale(1/v.Zoom, 1/v.Zoom)
	flip := Scale(1, -1).Then(Translate(0, v.PageSize.Height))
	unrotate, err := v.Rotation.DisplayToUnrotated(v.UnrotatedPageSize())
	if err != nil {
		return Matrix{}, err
	}
	crop := Translate(v.CropOffset.X, v.CropOffset.Y)
	return unzoom.Then(flip).Then(unrotate).Then(crop), nil
}

// PDFToDevice returns the transform from PDF user space to device pixels.
// It undoes each step of DeviceToPDF in reverse order.
func (v Viewport) PDFToDevice() (Matrix, error) {
	if err := v.Validate(); err != nil {
		return Matrix{}, err
	}
	uncrop := Translate(-v.CropOffset.X, -v.CropOffset.Y)
	rotate, err := v.Rotation.UnrotatedToDisplay(v.UnrotatedPageSize())
	if err != nil {
		return Matrix{}, err
	}
	flip := Translate(0, -v.PageSize.Height).Then(Scale(1, -1))
	zoom := Scale(v.Zoom, v.Zoom)
	return uncrop.Then(rotate).Then(flip).Then(zoom), nil
}

// ToPDF converts a device point to PDF user space.
func (v Viewport) ToPDF(p Point) (Point, error) {
	m, err := v.DeviceToPDF()
	if err != nil {
		return Point{}, err
	}
	return m.Transform(p), nil
}

// ToDevice converts a PDF user-space point to device pixels.
func (v Viewport) ToDevice(p Point) (Point, error) {
	m, err := v.PDFToDevice()
	if err != nil {
		return Point{}, err
	}
	return m.Transform(p), nil
}

// RectToPDF converts a device rectangle (top-left corner + size) into a PDF
// rectangle (lower-left corner + size).
func (v Viewport) RectToPDF(r Rect) (Rect, error) {
	m, err := v.DeviceToPDF()
	if err != nil {
		return Rect{}, err
	}
	return m.TransformRect(r), nil
}

// RectToDevice converts a PDF rectangle into a device rectangle.
func (v Viewport) RectToDevice(r Rect) (Rect, error) {
	m, err := v.PDFToDevice()
	if err != nil {
		return Rect{}, err
	}
	return m.TransformRect(r), nil
}

// ToPDFPoints converts a device point to PDF user space.
func ToPDFPoints(device Point, zoom float64, pageSizeAtZoom1 Size, rotation Rotation, cropOffset Point) (Point, error) {
	return Viewport{Zoom: zoom, PageSize: pageSizeAtZoom1, Rotation: rotation, CropOffset: cropOffset}.ToPDF(device)
}

// ToDevice converts a PDF user-space point to device pixels. It is the exact
// inverse of ToPDFPoints for the same parameters.
func ToDevice(pdf Point, zoom float64, pageSizeAtZoom1 Size, rotation Rotation, cropOffset Point) (Point, error) {
	return Viewport{Zoom: zoom, PageSize: pageSizeAtZoom1, Rotation: rotation, CropOffset: cropOffset}.ToDevice(pdf)
}
