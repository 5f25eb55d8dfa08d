package form

import (
	"errors"
	"fmt"
)

var (
	// ErrPageOutOfRange is returned for a page index outside the document.
	ErrPageOutOfRange = errors.New("page index out of range")
	// ErrFieldNotFound is returned when a field identity does not exist on the page.
	ErrFieldNotFound = errors.New("field not found")
	// ErrWrongKind is returned when a property does not apply to the field kind.
	ErrWrongKind = errors.New("property does not apply to this field kind")
	// ErrInvalidProperty is returned for unknown properties or badly typed values.
	ErrInvalidProperty = errors.New("invalid property")
)

// ViolationKind names the invariant that a violation breaks.
type ViolationKind string

const (
	DuplicateName           ViolationKind = "duplicate_name"
	OutOfBounds             ViolationKind = "out_of_bounds"
	BelowMinimumSize        ViolationKind = "below_minimum_size"
	MissingRequiredProperty ViolationKind = "missing_required_property"
)

// Location points at one field occurrence.
type Location struct {
	PageIndex int     `json:"page_index"`
	FieldID   FieldID `json:"field_id"`
}

// Violation reports one broken invariant. It is data: the validator returns
// lists of them, and a rejected mutation returns a single one as its error.
type Violation struct {
	FieldName string        `json:"field_name"`
	PageIndex int           `json:"page_index"`
	FieldID   FieldID       `json:"field_id,omitempty"`
	Kind      ViolationKind `json:"invariant"`
	Message   string        `json:"message"`
	// Locations lists every field involved, e.g. all holders of a duplicated name.
	Locations []Location `json:"locations,omitempty"`
}

// Error implements error.
func (v *Violation) Error() string {
	return fmt.Sprintf("%s: page %d field %q: %s", v.Kind, v.PageIndex+1, v.FieldName, v.Message)
}

// AsViolation extracts a *Violation from err.
func AsViolation(err error) (*Violation, bool) {
	var v *Violation
	if errors.As(err, &v) {
		return v, true
	}
	return nil, false
}
