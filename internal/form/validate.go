package form

import "fmt"

// Validate scans the whole document and returns every violation in page
// order, then field order. It does not trust the name index, so it also
// catches models assembled outside the mutation methods. An empty result
// means the document may be saved. Validate never modifies the document.
func Validate(d *Document) []Violation {
	type occurrence struct {
		page *Page
		f    *Field
	}
	byName := make(map[string][]occurrence)
	for _, p := range d.pages {
		for _, f := range p.fields {
			if !BlankName(f.Name) {
				byName[f.Name] = append(byName[f.Name], occurrence{page: p, f: f})
			}
		}
	}

	var out []Violation
	for _, p := range d.pages {
		for _, f := range p.fields {
			if f.PageIndex != p.Index {
				v := violation(p, f, OutOfBounds,
					fmt.Sprintf("field is recorded on page %d but placed on page %d", f.PageIndex+1, p.Index+1))
				out = append(out, *v)
			}
			if v := d.checkValue(p, f); v != nil {
				out = append(out, *v)
			}
			if BlankName(f.Name) {
				out = append(out, *violation(p, f, MissingRequiredProperty, "field name is empty"))
			} else if occ := byName[f.Name]; len(occ) > 1 && occ[0].f != f {
				v := violation(p, f, DuplicateName, fmt.Sprintf("name %q is already used on page %d", f.Name, occ[0].page.Index+1))
				for _, o := range occ {
					v.Locations = append(v.Locations, Location{PageIndex: o.page.Index, FieldID: o.f.ID})
				}
				out = append(out, *v)
			}
			if v := d.checkBounds(p, f); v != nil {
				out = append(out, *v)
			}
			if f.Value != nil {
				if v := d.checkSize(p, f); v != nil {
					out = append(out, *v)
				}
			}
		}
	}
	return out
}

// Validate is a convenience for the package-level Validate.
func (d *Document) Validate() []Violation { return Validate(d) }

// insertUnchecked places a field without running the invariant checks. It
// exists for layout import in lenient mode and for tests that need to build
// an invalid model.
func (d *Document) insertUnchecked(page int, f Field) (Field, error) {
	p, err := d.page(page)
	if err != nil {
		return Field{}, err
	}
	squareCheckbox(&f)
	f.ID = d.nextID
	d.nextID++
	p.fields = append(p.fields, &f)
	if _, taken := d.names[f.Name]; !taken && !BlankName(f.Name) {
		d.names[f.Name] = FieldRef{PageIndex: p.Index, ID: f.ID}
	}
	return f, nil
}

// AddFieldUnchecked adds a field without enforcing invariants. The result
// may fail Validate; callers must validate before saving.
func (d *Document) AddFieldUnchecked(page int, spec FieldSpec) (Field, error) {
	return d.insertUnchecked(page, Field{
		Name:      spec.Name,
		Rect:      spec.Rect,
		Required:  spec.Required,
		Value:     spec.Value,
		PageIndex: page,
	})
}
