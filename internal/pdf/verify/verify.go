// Package verify re-reads a written PDF with an independent parser and
// checks that the form fields in it match the model they were written from.
package verify

import (
	"bytes"
	"fmt"
	"io"

	"github.com/ledongthuc/pdf"
	"github.com/spf13/afero"
	"go.uber.org/multierr"

	"github.com/a3tai/mcp-pdf-forms/internal/form"
	"github.com/a3tai/mcp-pdf-forms/internal/geometry"
)

// rectTolerance absorbs number formatting in the written file.
const rectTolerance = 0.01

// Widget is one terminal field as found in the written file.
type Widget struct {
	Name string `json:"name"`
	// FieldType is the raw /FT name, e.g. "Tx" or "Btn".
	FieldType       string        `json:"field_type"`
	Page            int           `json:"page"`
	Rect            geometry.Rect `json:"rect"`
	Flags           int64         `json:"flags"`
	Value           string        `json:"value"`
	Default         string        `json:"default,omitempty"`
	AppearanceState string        `json:"appearance_state,omitempty"`
	Rotation        int           `json:"rotation,omitempty"`
	HasAppearance   bool          `json:"has_appearance"`
}

// Required reports whether the Required flag (bit 2) is set.
func (w Widget) Required() bool { return w.Flags&2 != 0 }

// Kind maps the field type onto the model's kinds.
func (w Widget) Kind() form.Kind {
	switch w.FieldType {
	case "Tx":
		return form.KindText
	case "Btn":
		return form.KindCheckbox
	default:
		return form.KindUnknown
	}
}

// Report is the form content of a PDF.
type Report struct {
	PageCount       int      `json:"page_count"`
	NeedAppearances bool     `json:"need_appearances"`
	Fields          []Widget `json:"fields"`
}

// Field returns the widget with the given name.
func (r *Report) Field(name string) (Widget, bool) {
	for _, w := range r.Fields {
		if w.Name == name {
			return w, true
		}
	}
	return Widget{}, false
}

// Read parses r and collects its AcroForm fields.
func Read(ra io.ReaderAt, size int64) (rep *Report, err error) {
	defer func() {
		if p := recover(); p != nil {
			rep, err = nil, fmt.Errorf("malformed PDF: %v", p)
		}
	}()

	reader, err := pdf.NewReader(ra, size)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}

	rep = &Report{PageCount: reader.NumPage()}
	pages := widgetPages(reader)

	acro := reader.Trailer().Key("Root").Key("AcroForm")
	rep.NeedAppearances = acro.Key("NeedAppearances").Bool()
	fields := acro.Key("Fields")
	for i := 0; i < fields.Len(); i++ {
		v := fields.Index(i)
		w := Widget{
			Name:            v.Key("T").Text(),
			FieldType:       v.Key("FT").Name(),
			Flags:           v.Key("Ff").Int64(),
			AppearanceState: v.Key("AS").Name(),
			Rotation:        int(v.Key("MK").Key("R").Int64()),
			HasAppearance:   v.Key("AP").Key("N").Kind() != pdf.Null,
		}
		w.Page = pages[w.Name]
		w.Rect = rectOf(v.Key("Rect"))
		switch val := v.Key("V"); val.Kind() {
		case pdf.Name:
			w.Value = val.Name()
		case pdf.String:
			w.Value = val.Text()
		}
		switch dv := v.Key("DV"); dv.Kind() {
		case pdf.Name:
			w.Default = dv.Name()
		case pdf.String:
			w.Default = dv.Text()
		}
		rep.Fields = append(rep.Fields, w)
	}
	return rep, nil
}

// ReadFile reads and parses a file from fs.
func ReadFile(fs afero.Fs, path string) (*Report, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return Read(bytes.NewReader(data), int64(len(data)))
}

// widgetPages maps field names to the 1-based page whose /Annots holds them.
func widgetPages(reader *pdf.Reader) map[string]int {
	out := make(map[string]int)
	for n := 1; n <= reader.NumPage(); n++ {
		annots := reader.Page(n).V.Key("Annots")
		for i := 0; i < annots.Len(); i++ {
			a := annots.Index(i)
			if a.Key("Subtype").Name() != "Widget" {
				continue
			}
			if name := a.Key("T").Text(); name != "" {
				if _, seen := out[name]; !seen {
					out[name] = n
				}
			}
		}
	}
	return out
}

func rectOf(v pdf.Value) geometry.Rect {
	if v.Len() != 4 {
		return geometry.Rect{}
	}
	a := geometry.Point{X: v.Index(0).Float64(), Y: v.Index(1).Float64()}
	b := geometry.Point{X: v.Index(2).Float64(), Y: v.Index(3).Float64()}
	return geometry.RectFromPoints(a, b)
}

// PageContent returns the decoded content stream bytes of a 1-based page.
func PageContent(ra io.ReaderAt, size int64, page int) (data []byte, err error) {
	defer func() {
		if p := recover(); p != nil {
			data, err = nil, fmt.Errorf("malformed PDF: %v", p)
		}
	}()

	reader, err := pdf.NewReader(ra, size)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	p := reader.Page(page)
	if p.V.IsNull() {
		return nil, fmt.Errorf("page %d not found", page)
	}
	contents := p.V.Key("Contents")
	var buf bytes.Buffer
	appendStream := func(v pdf.Value) error {
		rc := v.Reader()
		defer rc.Close()
		_, err := io.Copy(&buf, rc)
		return err
	}
	switch contents.Kind() {
	case pdf.Stream:
		err = appendStream(contents)
	case pdf.Array:
		for i := 0; i < contents.Len() && err == nil; i++ {
			err = appendStream(contents.Index(i))
		}
	}
	if err != nil {
		return nil, fmt.Errorf("read page %d contents: %w", page, err)
	}
	return buf.Bytes(), nil
}

// Compare checks that every field of doc appears in the report with the
// same name, kind, page, required flag, value and position. Fields already
// present in the source are ignored. All mismatches are returned together.
func Compare(rep *Report, doc *form.Document) error {
	var errs error
	for _, f := range doc.AllFields() {
		w, ok := rep.Field(f.Name)
		if !ok {
			errs = multierr.Append(errs, fmt.Errorf("field %q missing from output", f.Name))
			continue
		}
		if w.Kind() != f.Kind() {
			errs = multierr.Append(errs, fmt.Errorf("field %q: kind %s, want %s", f.Name, w.Kind(), f.Kind()))
		}
		if w.Page != f.PageIndex+1 {
			errs = multierr.Append(errs, fmt.Errorf("field %q: on page %d, want %d", f.Name, w.Page, f.PageIndex+1))
		}
		if w.Required() != f.Required {
			errs = multierr.Append(errs, fmt.Errorf("field %q: required %t, want %t", f.Name, w.Required(), f.Required))
		}
		if want := expectedValue(f); w.Value != want {
			errs = multierr.Append(errs, fmt.Errorf("field %q: value %q, want %q", f.Name, w.Value, want))
		}
		g, err := doc.PageGeometry(f.PageIndex)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		want := f.Rect.Translate(g.CropOffset)
		if !w.Rect.Near(want, rectTolerance) {
			errs = multierr.Append(errs, fmt.Errorf("field %q: rect %s, want %s", f.Name, w.Rect, want))
		}
	}
	return errs
}

func expectedValue(f form.Field) string {
	switch v := f.Value.(type) {
	case form.TextValue:
		return v.Default
	case form.CheckboxValue:
		if v.Checked {
			return "Yes"
		}
		return "Off"
	default:
		return ""
	}
}
