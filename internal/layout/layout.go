// Package layout saves and restores the field layout of a form as YAML so a
// set of fields can be reapplied to another copy of the same document.
package layout

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/a3tai/mcp-pdf-forms/internal/form"
	"github.com/a3tai/mcp-pdf-forms/internal/geometry"
	"github.com/a3tai/mcp-pdf-forms/internal/pdf/security"
)

// Version is the layout format version written by Export.
const Version = 1

// ErrPageCount is returned when a layout does not fit the document's pages.
var ErrPageCount = errors.New("layout does not match the document page count")

var (
	ErrPDFDestination    = errors.New("a layout cannot be written to a .pdf file")
	ErrSourceDestination = errors.New("a layout cannot replace the source document")
)

// Layout is the serialized form of all fields of a document.
type Layout struct {
	Version int `yaml:"version"`
	// Source is informational: the file the layout was exported from.
	Source    string `yaml:"source,omitempty"`
	PageCount int    `yaml:"page_count"`
	Pages     []Page `yaml:"pages"`
}

// Page holds the fields of one page.
type Page struct {
	Index  int     `yaml:"index"`
	Fields []Field `yaml:"fields"`
}

// Field is one field definition. Default applies to text fields and Checked
// to checkboxes.
type Field struct {
	Name     string        `yaml:"name"`
	Kind     string        `yaml:"kind"`
	Rect     geometry.Rect `yaml:"rect"`
	Required bool          `yaml:"required,omitempty"`
	Default  string        `yaml:"default,omitempty"`
	Checked  bool          `yaml:"checked,omitempty"`
}

// Mode selects how Apply treats invalid fields.
type Mode int

const (
	// Strict applies every field through the model's checks and stops at the
	// first rejected field.
	Strict Mode = iota
	// Lenient inserts every field as written and reports all violations.
	Lenient
)

// Export captures the fields of doc. Pages without fields are omitted.
func Export(doc *form.Document, source string) *Layout {
	l := &Layout{Version: Version, Source: source, PageCount: doc.PageCount()}
	for i := 0; i < doc.PageCount(); i++ {
		fields, err := doc.Fields(i)
		if err != nil || len(fields) == 0 {
			continue
		}
		p := Page{Index: i}
		for _, f := range fields {
			lf := Field{Name: f.Name, Kind: f.Kind().String(), Rect: f.Rect, Required: f.Required}
			switch v := f.Value.(type) {
			case form.TextValue:
				lf.Default = v.Default
			case form.CheckboxValue:
				lf.Checked = v.Checked
			}
			p.Fields = append(p.Fields, lf)
		}
		l.Pages = append(l.Pages, p)
	}
	return l
}

// Marshal encodes l as YAML.
func (l *Layout) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(l); err != nil {
		return nil, fmt.Errorf("failed to encode layout: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode layout: %w", err)
	}
	return buf.Bytes(), nil
}

// Parse decodes a YAML layout. Unknown keys are rejected.
func Parse(data []byte) (*Layout, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var l Layout
	if err := dec.Decode(&l); err != nil {
		return nil, fmt.Errorf("failed to decode layout: %w", err)
	}
	if l.Version != Version {
		return nil, fmt.Errorf("unsupported layout version %d", l.Version)
	}
	return &l, nil
}

// ReadFile loads a layout from fs.
func ReadFile(fs afero.Fs, path string) (*Layout, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read layout: %w", err)
	}
	return Parse(data)
}

// WriteFile stores l at path on fs. It never writes to the PDF the layout
// was exported from, nor to any .pdf path, and the file only appears once
// it has been written completely.
func WriteFile(fs afero.Fs, sourcePath, path string, l *Layout) error {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return fmt.Errorf("%w: %s", ErrPDFDestination, path)
	}
	same, err := security.SameFile(fs, sourcePath, path)
	if err != nil {
		return fmt.Errorf("failed to compare layout path with the source: %w", err)
	}
	if same {
		return fmt.Errorf("%w: %s", ErrSourceDestination, path)
	}

	data, err := l.Marshal()
	if err != nil {
		return err
	}
	tmp, err := afero.TempFile(fs, filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to write layout: %w", err)
	}
	tmpName := tmp.Name()
	_, werr := tmp.Write(data)
	if cerr := tmp.Close(); werr == nil {
		werr = cerr
	}
	if werr == nil {
		werr = fs.Rename(tmpName, path)
	}
	if werr != nil {
		_ = fs.Remove(tmpName)
		return fmt.Errorf("failed to write layout: %w", werr)
	}
	return nil
}

// Apply adds the fields of l to doc, which is expected to be empty. In
// Strict mode the first rejected field is returned as an error (a
// *form.Violation where applicable) and doc may hold the fields applied
// before it. In Lenient mode every field is inserted and the result of a
// full validation is returned.
func (l *Layout) Apply(doc *form.Document, mode Mode) ([]form.Violation, error) {
	if l.PageCount != 0 && l.PageCount != doc.PageCount() {
		return nil, fmt.Errorf("%w: layout has %d pages, document has %d", ErrPageCount, l.PageCount, doc.PageCount())
	}
	for _, p := range l.Pages {
		if p.Index < 0 || p.Index >= doc.PageCount() {
			return nil, fmt.Errorf("%w: page %d", ErrPageCount, p.Index)
		}
		for _, lf := range p.Fields {
			spec, err := lf.spec()
			if err != nil {
				return nil, fmt.Errorf("page %d field %q: %w", p.Index, lf.Name, err)
			}
			if mode == Lenient {
				_, err = doc.AddFieldUnchecked(p.Index, spec)
			} else {
				_, err = doc.AddField(p.Index, spec)
			}
			if err != nil {
				return nil, err
			}
		}
	}
	if mode == Lenient {
		return doc.Validate(), nil
	}
	return nil, nil
}

func (f Field) spec() (form.FieldSpec, error) {
	kind, err := form.ParseKind(f.Kind)
	if err != nil {
		return form.FieldSpec{}, err
	}
	spec := form.FieldSpec{Name: f.Name, Rect: f.Rect, Required: f.Required}
	switch kind {
	case form.KindText:
		if f.Checked {
			return form.FieldSpec{}, fmt.Errorf("%w: checked is not valid for a text field", form.ErrInvalidProperty)
		}
		spec.Value = form.TextValue{Default: f.Default}
	case form.KindCheckbox:
		if f.Default != "" {
			return form.FieldSpec{}, fmt.Errorf("%w: default is not valid for a checkbox", form.ErrInvalidProperty)
		}
		spec.Value = form.CheckboxValue{Checked: f.Checked}
	}
	return spec, nil
}
