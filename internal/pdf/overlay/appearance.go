package overlay

import (
	"fmt"
	"math"
	"strings"

	"github.com/a3tai/mcp-pdf-forms/internal/geometry"
)

const (
	fontHelv = "Helv"
	fontZaDb = "ZaDb"

	textDA     = "/Helv 0 Tf 0 g"
	checkboxDA = "/ZaDb 0 Tf 0 g"

	// checkMark is the ZapfDingbats code for a check mark.
	checkMark = "4"

	stateOn  = "Yes"
	stateOff = "Off"

	maxFontSize = 12.0
	minFontSize = 4.0
	textPadding = 2.0
)

// appearance is one form XObject of a widget.
type appearance struct {
	// State is the /AP /N sub-key for checkboxes, empty for text fields.
	State   string
	Font    string
	BBox    [4]float64
	Matrix  geometry.Matrix
	Content []byte
}

// appearanceFrame returns the bounding box and matrix of an appearance
// stream drawn upright on a page with the given rotation. size is the
// unrotated widget size.
func appearanceFrame(size geometry.Size, rot geometry.Rotation) ([4]float64, geometry.Matrix) {
	d := rot.DisplaySize(size)
	return [4]float64{0, 0, d.Width, d.Height}, rot.Matrix()
}

func fontSize(height float64) float64 {
	fs := (height - 2*textPadding) * 0.7
	return math.Max(minFontSize, math.Min(maxFontSize, fs))
}

func textAppearance(size geometry.Size, rot geometry.Rotation, value string) appearance {
	bbox, m := appearanceFrame(size, rot)
	w, h := bbox[2], bbox[3]
	var b strings.Builder
	b.WriteString("/Tx BMC\n")
	if value != "" {
		fs := fontSize(h)
		y := (h-fs)/2 + fs*0.22
		fmt.Fprintf(&b, "q\n%s %s %s %s re W n\nBT\n/%s %s Tf\n0 g\n%s %s Td\n%s Tj\nET\nQ\n",
			num(1), num(1), num(w-2), num(h-2),
			fontHelv, num(fs), num(textPadding), num(y), showText(value))
	}
	b.WriteString("EMC\n")
	return appearance{Font: fontHelv, BBox: bbox, Matrix: m, Content: []byte(b.String())}
}

func checkboxAppearances(size geometry.Size, rot geometry.Rotation) []appearance {
	bbox, m := appearanceFrame(size, rot)
	w, h := bbox[2], bbox[3]
	side := math.Min(w, h)
	fs := side * 0.8
	// The ZapfDingbats check mark is about 0.85 em wide and 0.7 em tall.
	x := (w - fs*0.85) / 2
	y := (h - fs*0.7) / 2

	on := fmt.Sprintf("q\nBT\n/%s %s Tf\n0 g\n%s %s Td\n(%s) Tj\nET\nQ\n",
		fontZaDb, num(fs), num(x), num(y), checkMark)
	return []appearance{
		{State: stateOn, Font: fontZaDb, BBox: bbox, Matrix: m, Content: []byte(on)},
		{State: stateOff, Font: fontZaDb, BBox: bbox, Matrix: m, Content: nil},
	}
}
