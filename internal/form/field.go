// Package form holds the per-page field model, its invariants and the
// validator that gates a save.
package form

import (
	"fmt"
	"strings"

	"github.com/a3tai/mcp-pdf-forms/internal/geometry"
)

// FieldID identifies a field for the lifetime of a document. It survives
// renames, moves and undo/redo.
type FieldID uint64

// Kind is the field variant.
type Kind int

const (
	KindUnknown Kind = iota
	KindText
	KindCheckbox
)

// String returns the lowercase name used in layouts and tool arguments.
func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindCheckbox:
		return "checkbox"
	default:
		return "unknown"
	}
}

// ParseKind parses "text" or "checkbox" (case-insensitive).
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "text", "textfield", "tx":
		return KindText, nil
	case "checkbox", "check", "btn":
		return KindCheckbox, nil
	default:
		return KindUnknown, fmt.Errorf("unknown field kind %q (must be 'text' or 'checkbox')", s)
	}
}

// Value is the kind-dependent payload of a field. The concrete type is the
// tag: TextValue for text fields, CheckboxValue for checkboxes. A field
// cannot carry both.
type Value interface {
	Kind() Kind
	isValue()
}

// TextValue is the payload of a text field. An empty default is valid.
type TextValue struct {
	Default string
}

// Kind implements Value.
func (TextValue) Kind() Kind { return KindText }
func (TextValue) isValue()   {}

// CheckboxValue is the payload of a checkbox.
type CheckboxValue struct {
	Checked bool
}

// Kind implements Value.
func (CheckboxValue) Kind() Kind { return KindCheckbox }
func (CheckboxValue) isValue()   {}

// DefaultValue returns the initial payload for a kind: an empty text default
// or an unchecked box.
func DefaultValue(k Kind) Value {
	switch k {
	case KindText:
		return TextValue{}
	case KindCheckbox:
		return CheckboxValue{Checked: false}
	default:
		return nil
	}
}

// Field is one form field definition.
type Field struct {
	ID   FieldID
	Name string
	// Rect is the field box in PDF points: lower-left corner and size, in the
	// unrotated page frame relative to the crop box origin.
	Rect      geometry.Rect
	Required  bool
	Value     Value
	PageIndex int
}

// Kind returns the variant carried by the field's payload.
func (f Field) Kind() Kind {
	if f.Value == nil {
		return KindUnknown
	}
	return f.Value.Kind()
}

// Text returns the text payload, if the field is a text field.
func (f Field) Text() (TextValue, bool) {
	v, ok := f.Value.(TextValue)
	return v, ok
}

// Checkbox returns the checkbox payload, if the field is a checkbox.
func (f Field) Checkbox() (CheckboxValue, bool) {
	v, ok := f.Value.(CheckboxValue)
	return v, ok
}

// FieldSpec describes a field to create.
type FieldSpec struct {
	Name     string
	Rect     geometry.Rect
	Required bool
	// Value selects the kind. Nil is rejected.
	Value Value
}

// FieldRef locates a field in the document.
type FieldRef struct {
	PageIndex int
	ID        FieldID
}
