package geometry

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tolerance = 1e-6

func TestToPDFPoints_KnownValues(t *testing.T) {
	tests := []struct {
		name     string
		device   Point
		zoom     float64
		pageSize Size
		rotation Rotation
		crop     Point
		want     Point
	}{
		{
			name:     "identity at zoom 1",
			device:   Point{X: 0, Y: 0},
			zoom:     1,
			pageSize: Size{Width: 612, Height: 792},
			want:     Point{X: 0, Y: 792},
		},
		{
			name:     "zoom and crop offset",
			device:   Point{X: 20, Y: 10},
			zoom:     2,
			pageSize: Size{Width: 100, Height: 50},
			crop:     Point{X: 5, Y: 7},
			want:     Point{X: 15, Y: 52},
		},
		{
			name:     "rotated 90",
			device:   Point{X: 10, Y: 80},
			zoom:     1,
			pageSize: Size{Width: 50, Height: 100},
			rotation: Rotate90,
			want:     Point{X: 80, Y: 10},
		},
		{
			name:     "rotated 180",
			device:   Point{X: 10, Y: 10},
			zoom:     1,
			pageSize: Size{Width: 100, Height: 50},
			rotation: Rotate180,
			want:     Point{X: 90, Y: 10},
		},
		{
			name:     "rotated 270",
			device:   Point{X: 0, Y: 0},
			zoom:     1,
			pageSize: Size{Width: 50, Height: 100},
			rotation: Rotate270,
			want:     Point{X: 100, Y: 50},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToPDFPoints(tt.device, tt.zoom, tt.pageSize, tt.rotation, tt.crop)
			require.NoError(t, err)
			assert.True(t, got.Near(tt.want, tolerance), "got %+v, want %+v", got, tt.want)
		})
	}
}

func TestRoundTrip(t *testing.T) {
	rotations := []Rotation{Rotate0, Rotate90, Rotate180, Rotate270}
	zooms := []float64{0.25, 0.5, 1, 1.25, 2, 3.7}
	crops := []Point{{}, {X: 12.5, Y: -3}, {X: 100, Y: 250}}
	devicePoints := []Point{{}, {X: 1, Y: 1}, {X: 123.456, Y: 78.9}, {X: 611, Y: 791}, {X: -5, Y: 900}}

	for _, rot := range rotations {
		pageSize := rot.DisplaySize(Size{Width: 612, Height: 792})
		for _, zoom := range zooms {
			for _, crop := range crops {
				for _, p := range devicePoints {
					pdf, err := ToPDFPoints(p, zoom, pageSize, rot, crop)
					require.NoError(t, err)
					back, err := ToDevice(pdf, zoom, pageSize, rot, crop)
					require.NoError(t, err)
					assert.True(t, back.Near(p, tolerance),
						"rotation=%d zoom=%g crop=%+v: %+v -> %+v -> %+v", rot, zoom, crop, p, pdf, back)
				}
			}
		}
	}
}

func TestRoundTrip_PDFFirst(t *testing.T) {
	v := Viewport{Zoom: 1.5, PageSize: Size{Width: 792, Height: 612}, Rotation: Rotate90, CropOffset: Point{X: 18, Y: 36}}
	p := Point{X: 318.25, Y: 402.75}

	device, err := v.ToDevice(p)
	require.NoError(t, err)
	back, err := v.ToPDF(device)
	require.NoError(t, err)
	assert.True(t, back.Near(p, tolerance))
}

func TestToPDFPoints_InvalidZoom(t *testing.T) {
	for _, zoom := range []float64{0, -1, math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := ToPDFPoints(Point{}, zoom, Size{Width: 10, Height: 10}, Rotate0, Point{})
		assert.True(t, errors.Is(err, ErrInvalidZoom), "zoom %v should be rejected, got %v", zoom, err)

		_, err = ToDevice(Point{}, zoom, Size{Width: 10, Height: 10}, Rotate0, Point{})
		assert.True(t, errors.Is(err, ErrInvalidZoom))
	}
}

func TestToPDFPoints_InvalidRotation(t *testing.T) {
	for _, rot := range []Rotation{45, -90, 360, 1} {
		_, err := ToPDFPoints(Point{}, 1, Size{Width: 10, Height: 10}, rot, Point{})
		assert.True(t, errors.Is(err, ErrInvalidRotation), "rotation %d should be rejected, got %v", rot, err)
	}
}

func TestToPDFPoints_InvalidPageSize(t *testing.T) {
	_, err := ToPDFPoints(Point{}, 1, Size{Width: 0, Height: 10}, Rotate0, Point{})
	assert.True(t, errors.Is(err, ErrInvalidPageSize))
}

func TestParseRotation(t *testing.T) {
	tests := []struct {
		in      int
		want    Rotation
		wantErr bool
	}{
		{in: 0, want: Rotate0},
		{in: 90, want: Rotate90},
		{in: -90, want: Rotate270},
		{in: 450, want: Rotate90},
		{in: 720, want: Rotate0},
		{in: 45, wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseRotation(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalidRotation)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestRectToDevice_RoundTrip(t *testing.T) {
	for _, rot := range []Rotation{Rotate0, Rotate90, Rotate180, Rotate270} {
		v := Viewport{Zoom: 1.25, PageSize: rot.DisplaySize(Size{Width: 200, Height: 100}), Rotation: rot}
		r := Rect{X: 10, Y: 10, Width: 40, Height: 20}

		device, err := v.RectToDevice(r)
		require.NoError(t, err)
		back, err := v.RectToPDF(device)
		require.NoError(t, err)
		assert.True(t, back.Near(r, tolerance), "rotation %d: %+v != %+v", rot, back, r)

		if rot.SwapsAxes() {
			assert.InDelta(t, r.Height*v.Zoom, device.Width, tolerance)
			assert.InDelta(t, r.Width*v.Zoom, device.Height, tolerance)
		}
	}
}

func TestRotationMatrices_Compose(t *testing.T) {
	page := Size{Width: 100, Height: 50}
	for _, rot := range []Rotation{Rotate0, Rotate90, Rotate180, Rotate270} {
		toDisplay, err := rot.UnrotatedToDisplay(page)
		require.NoError(t, err)
		toUnrotated, err := rot.DisplayToUnrotated(page)
		require.NoError(t, err)

		p := Point{X: 10, Y: 10}
		assert.True(t, toUnrotated.Transform(toDisplay.Transform(p)).Near(p, tolerance))

		// The unrotated page box maps exactly onto the displayed box.
		box := toDisplay.TransformRect(Rect{Width: page.Width, Height: page.Height})
		display := rot.DisplaySize(page)
		assert.True(t, box.Near(Rect{Width: display.Width, Height: display.Height}, tolerance))
	}
}

func TestRect_WithinBoxAndClamp(t *testing.T) {
	page := Size{Width: 100, Height: 50}

	assert.True(t, Rect{X: 10, Y: 10, Width: 50, Height: 20}.WithinBox(page))
	assert.False(t, Rect{X: 90, Y: 10, Width: 50, Height: 20}.WithinBox(page))
	assert.False(t, Rect{X: -1, Y: 0, Width: 5, Height: 5}.WithinBox(page))
	assert.False(t, Rect{X: math.NaN(), Y: 0, Width: 5, Height: 5}.WithinBox(page))

	clamped := Rect{X: 90, Y: 40, Width: 50, Height: 20}.ClampInto(page)
	assert.Equal(t, Rect{X: 50, Y: 30, Width: 50, Height: 20}, clamped)
}
