package form

import (
	"errors"
	"fmt"

	"github.com/a3tai/mcp-pdf-forms/internal/geometry"
)

var (
	// ErrNothingToUndo is returned by Undo on an empty history.
	ErrNothingToUndo = errors.New("nothing to undo")
	// ErrNothingToRedo is returned by Redo when no undone command is pending.
	ErrNothingToRedo = errors.New("nothing to redo")
)

// Command is a reversible edit of a Document.
type Command interface {
	Apply(d *Document) error
	Revert(d *Document) error
	String() string
}

// History executes commands against a document and keeps undo and redo
// stacks. A new command clears the redo stack.
type History struct {
	doc   *Document
	undo  []Command
	redo  []Command
	limit int
}

// NewHistory returns a history bound to doc. A limit of zero or less keeps
// every command.
func NewHistory(doc *Document, limit int) *History {
	return &History{doc: doc, limit: limit}
}

// Execute applies c and records it on success.
func (h *History) Execute(c Command) error {
	if err := c.Apply(h.doc); err != nil {
		return err
	}
	h.undo = append(h.undo, c)
	if h.limit > 0 && len(h.undo) > h.limit {
		h.undo = h.undo[len(h.undo)-h.limit:]
	}
	h.redo = nil
	return nil
}

// Undo reverts the last executed command.
func (h *History) Undo() (Command, error) {
	if len(h.undo) == 0 {
		return nil, ErrNothingToUndo
	}
	c := h.undo[len(h.undo)-1]
	if err := c.Revert(h.doc); err != nil {
		return nil, fmt.Errorf("undo %s: %w", c, err)
	}
	h.undo = h.undo[:len(h.undo)-1]
	h.redo = append(h.redo, c)
	return c, nil
}

// Redo re-applies the last undone command.
func (h *History) Redo() (Command, error) {
	if len(h.redo) == 0 {
		return nil, ErrNothingToRedo
	}
	c := h.redo[len(h.redo)-1]
	if err := c.Apply(h.doc); err != nil {
		return nil, fmt.Errorf("redo %s: %w", c, err)
	}
	h.redo = h.redo[:len(h.redo)-1]
	h.undo = append(h.undo, c)
	return c, nil
}

// Depth returns the sizes of the undo and redo stacks.
func (h *History) Depth() (undo, redo int) { return len(h.undo), len(h.redo) }

// Clear drops both stacks.
func (h *History) Clear() {
	h.undo, h.redo = nil, nil
}

// Insert creates a field. The first Apply runs the creation; later applies
// restore the same field with the same identity.
type Insert struct {
	label  string
	page   int
	create func(d *Document) (Field, error)
	field  Field
	pos    int
	done   bool
}

// NewAdd returns a command that adds a field from spec.
func NewAdd(page int, spec FieldSpec) *Insert {
	return &Insert{label: "add " + spec.Name, page: page, create: func(d *Document) (Field, error) {
		return d.AddField(page, spec)
	}}
}

// NewPlace returns a command that places a default field of kind inside bounds.
func NewPlace(page int, kind Kind, bounds geometry.Rect) *Insert {
	return &Insert{label: "place " + kind.String(), page: page, create: func(d *Document) (Field, error) {
		return d.PlaceField(page, kind, bounds)
	}}
}

// NewDuplicate returns a command that duplicates a field on its page.
func NewDuplicate(page int, id FieldID) *Insert {
	return &Insert{label: fmt.Sprintf("duplicate %d", id), page: page, create: func(d *Document) (Field, error) {
		return d.DuplicateField(page, id)
	}}
}

// Field returns the created field once the command has been applied.
func (c *Insert) Field() Field { return c.field }

func (c *Insert) Apply(d *Document) error {
	if c.done {
		return d.restore(c.field, c.pos)
	}
	f, err := c.create(d)
	if err != nil {
		return err
	}
	c.field = f
	c.pos = len(d.pages[c.page].fields) - 1
	c.done = true
	return nil
}

func (c *Insert) Revert(d *Document) error {
	_, _, err := d.RemoveField(c.field.PageIndex, c.field.ID)
	return err
}

func (c *Insert) String() string { return c.label }

// Remove deletes a field.
type Remove struct {
	page  int
	id    FieldID
	field Field
	pos   int
}

// NewRemove returns a command that removes a field.
func NewRemove(page int, id FieldID) *Remove { return &Remove{page: page, id: id} }

// Field returns the removed field.
func (c *Remove) Field() Field { return c.field }

func (c *Remove) Apply(d *Document) error {
	f, pos, err := d.RemoveField(c.page, c.id)
	if err != nil {
		return err
	}
	c.field, c.pos = f, pos
	return nil
}

func (c *Remove) Revert(d *Document) error { return d.restore(c.field, c.pos) }

func (c *Remove) String() string { return "remove " + c.field.Name }

// Edit changes a field in place and remembers the previous state.
type Edit struct {
	label  string
	page   int
	id     FieldID
	change func(d *Document) (Field, error)
	before Field
	after  Field
}

func newEdit(label string, page int, id FieldID, change func(d *Document) (Field, error)) *Edit {
	return &Edit{label: label, page: page, id: id, change: change}
}

// NewMove returns a command that moves a field's lower-left corner.
func NewMove(page int, id FieldID, to geometry.Point) *Edit {
	return newEdit("move", page, id, func(d *Document) (Field, error) { return d.MoveField(page, id, to) })
}

// NewResize returns a command that resizes a field.
func NewResize(page int, id FieldID, size geometry.Size) *Edit {
	return newEdit("resize", page, id, func(d *Document) (Field, error) { return d.ResizeField(page, id, size) })
}

// NewSetRect returns a command that replaces a field box.
func NewSetRect(page int, id FieldID, r geometry.Rect) *Edit {
	return newEdit("set rect", page, id, func(d *Document) (Field, error) { return d.SetRect(page, id, r) })
}

// NewRename returns a command that renames a field.
func NewRename(page int, id FieldID, name string) *Edit {
	return newEdit("rename to "+name, page, id, func(d *Document) (Field, error) { return d.RenameField(page, id, name) })
}

// NewSetProperty returns a command that sets a field property.
func NewSetProperty(page int, id FieldID, prop Property, value any) *Edit {
	return newEdit("set "+string(prop), page, id, func(d *Document) (Field, error) {
		return d.SetProperty(page, id, prop, value)
	})
}

// Field returns the field after the edit.
func (c *Edit) Field() Field { return c.after }

func (c *Edit) Apply(d *Document) error {
	before, err := d.Field(c.page, c.id)
	if err != nil {
		return err
	}
	after, err := c.change(d)
	if err != nil {
		return err
	}
	c.before, c.after = before, after
	return nil
}

func (c *Edit) Revert(d *Document) error {
	b := c.before
	_, err := d.update(c.page, c.id, func(f *Field) error {
		f.Name, f.Rect, f.Required, f.Value = b.Name, b.Rect, b.Required, b.Value
		return nil
	})
	return err
}

func (c *Edit) String() string { return c.label }
