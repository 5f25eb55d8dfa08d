package overlay

import (
	"fmt"
	"math"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"go.uber.org/multierr"

	"github.com/a3tai/mcp-pdf-forms/internal/form"
	"github.com/a3tai/mcp-pdf-forms/internal/geometry"
	pdferrors "github.com/a3tai/mcp-pdf-forms/internal/pdf/errors"
)

// Field flag bits (PDF 32000-1, table 221).
const flagRequired = 2

// widget is a synthesized field whose object references are not yet
// assigned. Dict lacks /P and /AP.
type widget struct {
	Name        string
	Dict        types.Dict
	Appearances []appearance
}

// pagePlan holds the widgets of one page, in field order.
type pagePlan struct {
	Index   int
	Widgets []widget
	Err     error
}

type pageJob struct {
	Index    int
	Geometry form.PageGeometry
	Fields   []form.Field
}

// synthesizePage turns the fields of one page into widget dictionaries. It
// rechecks the geometry itself so a model that bypassed validation cannot
// produce a malformed annotation.
func synthesizePage(job *pageJob) pagePlan {
	plan := pagePlan{Index: job.Index}
	g := job.Geometry
	var errs error
	for _, f := range job.Fields {
		w, err := synthesizeField(f, g)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		plan.Widgets = append(plan.Widgets, w)
	}
	if errs != nil {
		plan.Err = pdferrors.WrapError(pdferrors.ErrorTypeStructure, "cannot synthesize form fields", errs).
			WithPage(job.Index + 1)
		plan.Widgets = nil
	}
	return plan
}

func synthesizeField(f form.Field, g form.PageGeometry) (widget, error) {
	if form.BlankName(f.Name) {
		return widget{}, fmt.Errorf("field %d has no name", f.ID)
	}
	if !finite(f.Rect.X, f.Rect.Y, f.Rect.Width, f.Rect.Height) || f.Rect.Width <= 0 || f.Rect.Height <= 0 {
		return widget{}, fmt.Errorf("field %q has invalid geometry %s", f.Name, f.Rect)
	}
	if !f.Rect.WithinBox(g.Size) {
		return widget{}, fmt.Errorf("field %q at %s lies outside the %gx%g page", f.Name, f.Rect, g.Size.Width, g.Size.Height)
	}

	name, err := textString(f.Name)
	if err != nil {
		return widget{}, fmt.Errorf("field %q: encode name: %w", f.Name, err)
	}
	user := f.Rect.Translate(g.CropOffset)
	ur := user.Max()

	d := types.Dict{
		"Type":    types.Name("Annot"),
		"Subtype": types.Name("Widget"),
		"T":       name,
		"Rect":    numberArray(user.X, user.Y, ur.X, ur.Y),
		"F":       types.Integer(4),
		"Border":  numberArray(0, 0, 0),
	}
	mk := types.Dict{}
	if g.Rotation != geometry.Rotate0 {
		mk["R"] = types.Integer(int(g.Rotation))
	}
	if f.Required {
		d["Ff"] = types.Integer(flagRequired)
	}

	w := widget{Name: f.Name, Dict: d}
	switch v := f.Value.(type) {
	case form.TextValue:
		val, err := textString(v.Default)
		if err != nil {
			return widget{}, fmt.Errorf("field %q: encode value: %w", f.Name, err)
		}
		d["FT"] = types.Name("Tx")
		d["DA"] = types.StringLiteral(textDA)
		d["V"] = val
		d["DV"] = val
		w.Appearances = []appearance{textAppearance(f.Rect.Size(), g.Rotation, v.Default)}
	case form.CheckboxValue:
		state := stateOff
		if v.Checked {
			state = stateOn
		}
		d["FT"] = types.Name("Btn")
		d["DA"] = types.StringLiteral(checkboxDA)
		d["V"] = types.Name(state)
		d["DV"] = types.Name(state)
		d["AS"] = types.Name(state)
		mk["CA"] = types.StringLiteral(checkMark)
		w.Appearances = checkboxAppearances(f.Rect.Size(), g.Rotation)
	default:
		return widget{}, fmt.Errorf("field %q has no value of a supported kind", f.Name)
	}
	if len(mk) > 0 {
		d["MK"] = mk
	}
	return w, nil
}

func finite(fs ...float64) bool {
	for _, f := range fs {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}
