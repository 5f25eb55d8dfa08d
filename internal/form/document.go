package form

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/a3tai/mcp-pdf-forms/internal/geometry"
)

// PageGeometry is what the model needs to know about a source page.
type PageGeometry struct {
	// Size is the crop box size in the unrotated frame.
	Size       geometry.Size
	Rotation   geometry.Rotation
	CropOffset geometry.Point
}

// Page is one page of the document and the ordered fields placed on it.
type Page struct {
	Index int
	PageGeometry
	fields []*Field
}

// Document is the in-memory field model. Field names are unique across the
// whole document; the name index enforces that on every mutation.
//
// A Document is not safe for concurrent use.
type Document struct {
	pages  []*Page
	names  map[string]FieldRef
	policy Policy
	nextID FieldID
}

// NewDocument creates an empty model over the given pages.
func NewDocument(pages []PageGeometry, policy Policy) (*Document, error) {
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid field policy: %w", err)
	}
	d := &Document{
		pages:  make([]*Page, 0, len(pages)),
		names:  make(map[string]FieldRef),
		policy: policy,
		nextID: 1,
	}
	for i, g := range pages {
		if err := g.Size.Validate(); err != nil {
			return nil, fmt.Errorf("page %d: %w", i+1, err)
		}
		if err := g.Rotation.Validate(); err != nil {
			return nil, fmt.Errorf("page %d: %w", i+1, err)
		}
		d.pages = append(d.pages, &Page{Index: i, PageGeometry: g})
	}
	return d, nil
}

// Policy returns the document's size policy.
func (d *Document) Policy() Policy { return d.policy }

// PageCount returns the number of pages.
func (d *Document) PageCount() int { return len(d.pages) }

// PageGeometry returns the geometry of a page.
func (d *Document) PageGeometry(page int) (PageGeometry, error) {
	p, err := d.page(page)
	if err != nil {
		return PageGeometry{}, err
	}
	return p.PageGeometry, nil
}

// Fields returns copies of the fields on a page in placement order.
func (d *Document) Fields(page int) ([]Field, error) {
	p, err := d.page(page)
	if err != nil {
		return nil, err
	}
	out := make([]Field, len(p.fields))
	for i, f := range p.fields {
		out[i] = *f
	}
	return out, nil
}

// AllFields returns every field, page by page.
func (d *Document) AllFields() []Field {
	var out []Field
	for _, p := range d.pages {
		for _, f := range p.fields {
			out = append(out, *f)
		}
	}
	return out
}

// FieldCount returns the total number of fields.
func (d *Document) FieldCount() int {
	n := 0
	for _, p := range d.pages {
		n += len(p.fields)
	}
	return n
}

// Field returns a copy of one field.
func (d *Document) Field(page int, id FieldID) (Field, error) {
	_, f, _, err := d.find(page, id)
	if err != nil {
		return Field{}, err
	}
	return *f, nil
}

// Lookup finds a field by name.
func (d *Document) Lookup(name string) (Field, bool) {
	ref, ok := d.names[name]
	if !ok {
		return Field{}, false
	}
	f, err := d.Field(ref.PageIndex, ref.ID)
	if err != nil {
		return Field{}, false
	}
	return f, true
}

// AddField places a new field on a page after checking every invariant.
func (d *Document) AddField(page int, spec FieldSpec) (Field, error) {
	p, err := d.page(page)
	if err != nil {
		return Field{}, err
	}
	f := Field{
		Name:      spec.Name,
		Rect:      spec.Rect,
		Required:  spec.Required,
		Value:     spec.Value,
		PageIndex: page,
	}
	squareCheckbox(&f)
	if v := d.check(p, &f); v != nil {
		return Field{}, v
	}
	f.ID = d.nextID
	d.nextID++
	d.insert(p, &f, len(p.fields))
	return f, nil
}

// PlaceField adds a field of the given kind with a generated name and the
// kind's default value. The bounds are clamped into the page first.
func (d *Document) PlaceField(page int, kind Kind, bounds geometry.Rect) (Field, error) {
	p, err := d.page(page)
	if err != nil {
		return Field{}, err
	}
	value := DefaultValue(kind)
	if value == nil {
		return Field{}, fmt.Errorf("%w: cannot place a field of kind %s", ErrWrongKind, kind)
	}
	name, err := d.GenerateName(kind)
	if err != nil {
		return Field{}, err
	}
	return d.AddField(page, FieldSpec{
		Name:  name,
		Rect:  bounds.ClampInto(p.Size),
		Value: value,
	})
}

// DuplicateField copies a field onto the same page with a fresh name, offset
// down and to the right, then clamped to stay on the page.
func (d *Document) DuplicateField(page int, id FieldID) (Field, error) {
	p, src, _, err := d.find(page, id)
	if err != nil {
		return Field{}, err
	}
	name, err := d.GenerateName(src.Kind())
	if err != nil {
		return Field{}, err
	}
	off := d.policy.DuplicateOffset
	rect := src.Rect.Translate(geometry.Point{X: off, Y: -off}).ClampInto(p.Size)
	return d.AddField(page, FieldSpec{
		Name:     name,
		Rect:     rect,
		Required: src.Required,
		Value:    src.Value,
	})
}

// MoveField sets the lower-left corner of a field.
func (d *Document) MoveField(page int, id FieldID, to geometry.Point) (Field, error) {
	return d.update(page, id, func(f *Field) error {
		f.Rect.X, f.Rect.Y = to.X, to.Y
		return nil
	})
}

// ResizeField sets the size of a field, keeping its lower-left corner.
func (d *Document) ResizeField(page int, id FieldID, size geometry.Size) (Field, error) {
	return d.update(page, id, func(f *Field) error {
		f.Rect.Width, f.Rect.Height = size.Width, size.Height
		return nil
	})
}

// SetRect replaces the whole field box.
func (d *Document) SetRect(page int, id FieldID, r geometry.Rect) (Field, error) {
	return d.update(page, id, func(f *Field) error {
		f.Rect = r
		return nil
	})
}

// RenameField changes a field name. The new name must be unused elsewhere.
func (d *Document) RenameField(page int, id FieldID, name string) (Field, error) {
	return d.update(page, id, func(f *Field) error {
		f.Name = name
		return nil
	})
}

// RemoveField deletes a field and returns it along with its position on the page.
func (d *Document) RemoveField(page int, id FieldID) (Field, int, error) {
	p, f, pos, err := d.find(page, id)
	if err != nil {
		return Field{}, 0, err
	}
	p.fields = append(p.fields[:pos], p.fields[pos+1:]...)
	if ref, ok := d.names[f.Name]; ok && ref.ID == f.ID {
		delete(d.names, f.Name)
		d.reindex(f.Name)
	}
	return *f, pos, nil
}

// Property names a settable field attribute.
type Property string

const (
	PropRequired     Property = "required"
	PropDefaultValue Property = "default_value"
	PropChecked      Property = "checked"
)

// ParseProperty parses a property name.
func ParseProperty(s string) (Property, error) {
	switch Property(strings.ToLower(strings.TrimSpace(s))) {
	case PropRequired:
		return PropRequired, nil
	case PropDefaultValue, "default", "value":
		return PropDefaultValue, nil
	case PropChecked, "default_checked":
		return PropChecked, nil
	default:
		return "", fmt.Errorf("%w: unknown property %q", ErrInvalidProperty, s)
	}
}

// SetProperty sets a property. Required takes a bool on any kind; the
// default value takes a string and only applies to text fields; checked
// takes a bool and only applies to checkboxes.
func (d *Document) SetProperty(page int, id FieldID, prop Property, value any) (Field, error) {
	return d.update(page, id, func(f *Field) error {
		switch prop {
		case PropRequired:
			b, err := asBool(value)
			if err != nil {
				return err
			}
			f.Required = b
		case PropDefaultValue:
			if _, ok := f.Text(); !ok {
				return fmt.Errorf("%w: %s on %s field %q", ErrWrongKind, prop, f.Kind(), f.Name)
			}
			s, ok := value.(string)
			if !ok {
				return fmt.Errorf("%w: %s expects a string, got %T", ErrInvalidProperty, prop, value)
			}
			f.Value = TextValue{Default: s}
		case PropChecked:
			if _, ok := f.Checkbox(); !ok {
				return fmt.Errorf("%w: %s on %s field %q", ErrWrongKind, prop, f.Kind(), f.Name)
			}
			b, err := asBool(value)
			if err != nil {
				return err
			}
			f.Value = CheckboxValue{Checked: b}
		default:
			return fmt.Errorf("%w: unknown property %q", ErrInvalidProperty, prop)
		}
		return nil
	})
}

// GenerateName returns the first unused name of the form text_N or checkbox_N.
func (d *Document) GenerateName(kind Kind) (string, error) {
	prefix := defaultTextNamePrefix
	if kind == KindCheckbox {
		prefix = defaultCheckboxNamePrefix
	}
	for i := 1; i < defaultMaxGeneratedNameTry; i++ {
		name := prefix + strconv.Itoa(i)
		if _, taken := d.names[name]; !taken {
			return name, nil
		}
	}
	return "", fmt.Errorf("no free %s name", kind)
}

// restore re-inserts a previously removed field with its identity and
// position intact.
func (d *Document) restore(f Field, pos int) error {
	p, err := d.page(f.PageIndex)
	if err != nil {
		return err
	}
	if _, _, _, err := d.find(f.PageIndex, f.ID); err == nil {
		return fmt.Errorf("field %d already present on page %d", f.ID, f.PageIndex+1)
	}
	if v := d.check(p, &f); v != nil {
		return v
	}
	if pos < 0 || pos > len(p.fields) {
		pos = len(p.fields)
	}
	d.insert(p, &f, pos)
	if f.ID >= d.nextID {
		d.nextID = f.ID + 1
	}
	return nil
}

func (d *Document) insert(p *Page, f *Field, pos int) {
	p.fields = append(p.fields, nil)
	copy(p.fields[pos+1:], p.fields[pos:])
	p.fields[pos] = f
	d.names[f.Name] = FieldRef{PageIndex: p.Index, ID: f.ID}
}

// update applies fn to a scratch copy and commits it only if the result
// still satisfies every invariant.
func (d *Document) update(page int, id FieldID, fn func(*Field) error) (Field, error) {
	p, f, _, err := d.find(page, id)
	if err != nil {
		return Field{}, err
	}
	next := *f
	if err := fn(&next); err != nil {
		return Field{}, err
	}
	squareCheckbox(&next)
	if v := d.check(p, &next); v != nil {
		return Field{}, v
	}
	old := f.Name
	*f = next
	if next.Name != old {
		if ref, ok := d.names[old]; ok && ref.ID == next.ID {
			delete(d.names, old)
			d.reindex(old)
		}
		d.names[next.Name] = FieldRef{PageIndex: p.Index, ID: next.ID}
	}
	return next, nil
}

// reindex points name at the first remaining field that holds it. Only an
// unchecked insert can leave a second holder behind.
func (d *Document) reindex(name string) {
	for _, p := range d.pages {
		for _, f := range p.fields {
			if f.Name == name {
				d.names[name] = FieldRef{PageIndex: p.Index, ID: f.ID}
				return
			}
		}
	}
}

// check returns the first invariant f would break on page p. f.ID may be
// zero for a field that does not exist yet.
func (d *Document) check(p *Page, f *Field) *Violation {
	for _, check := range []func(*Page, *Field) *Violation{
		d.checkName,
		d.checkValue,
		d.checkBounds,
		d.checkSize,
	} {
		if v := check(p, f); v != nil {
			return v
		}
	}
	return nil
}

// BlankName reports whether name is empty or only whitespace. Such names
// are never valid.
func BlankName(name string) bool { return strings.TrimSpace(name) == "" }

// squareCheckbox shrinks a checkbox to a square on its shorter side,
// keeping the lower-left corner. Other kinds are left alone.
func squareCheckbox(f *Field) {
	if f.Kind() != KindCheckbox {
		return
	}
	side := math.Min(f.Rect.Width, f.Rect.Height)
	f.Rect.Width, f.Rect.Height = side, side
}

func (d *Document) checkName(p *Page, f *Field) *Violation {
	if BlankName(f.Name) {
		return violation(p, f, MissingRequiredProperty, "field name is empty")
	}
	ref, taken := d.names[f.Name]
	if !taken || (ref.ID == f.ID && f.ID != 0) {
		return nil
	}
	v := violation(p, f, DuplicateName, fmt.Sprintf("name %q is already used on page %d", f.Name, ref.PageIndex+1))
	v.Locations = []Location{
		{PageIndex: ref.PageIndex, FieldID: ref.ID},
		{PageIndex: p.Index, FieldID: f.ID},
	}
	return v
}

func (d *Document) checkValue(p *Page, f *Field) *Violation {
	if f.Value == nil {
		return violation(p, f, MissingRequiredProperty, "field has no kind or value")
	}
	return nil
}

func (d *Document) checkBounds(p *Page, f *Field) *Violation {
	if !f.Rect.WithinBox(p.Size) {
		return violation(p, f, OutOfBounds, fmt.Sprintf("rect %s does not fit the %gx%g page", f.Rect, p.Size.Width, p.Size.Height))
	}
	return nil
}

func (d *Document) checkSize(p *Page, f *Field) *Violation {
	minSize := d.policy.MinimumSize(f.Kind())
	if f.Rect.Width < minSize.Width || f.Rect.Height < minSize.Height {
		return violation(p, f, BelowMinimumSize, fmt.Sprintf("size %gx%g is below the %s minimum of %gx%g",
			f.Rect.Width, f.Rect.Height, f.Kind(), minSize.Width, minSize.Height))
	}
	return nil
}

func violation(p *Page, f *Field, kind ViolationKind, msg string) *Violation {
	return &Violation{
		FieldName: f.Name,
		PageIndex: p.Index,
		FieldID:   f.ID,
		Kind:      kind,
		Message:   msg,
	}
}

func (d *Document) page(page int) (*Page, error) {
	if page < 0 || page >= len(d.pages) {
		return nil, fmt.Errorf("%w: %d (document has %d pages)", ErrPageOutOfRange, page, len(d.pages))
	}
	return d.pages[page], nil
}

func (d *Document) find(page int, id FieldID) (*Page, *Field, int, error) {
	p, err := d.page(page)
	if err != nil {
		return nil, nil, 0, err
	}
	for i, f := range p.fields {
		if f.ID == id {
			return p, f, i, nil
		}
	}
	return nil, nil, 0, fmt.Errorf("%w: id %d on page %d", ErrFieldNotFound, id, page)
}

func asBool(v any) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		parsed, err := strconv.ParseBool(b)
		if err != nil {
			return false, fmt.Errorf("%w: %q is not a boolean", ErrInvalidProperty, b)
		}
		return parsed, nil
	default:
		return false, fmt.Errorf("%w: expected a boolean, got %T", ErrInvalidProperty, v)
	}
}
