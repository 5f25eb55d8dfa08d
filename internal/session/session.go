// Package session is the editing API over one open PDF: it owns the source
// document, the field model and its undo history, and runs saves.
package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/spf13/afero"

	"github.com/a3tai/mcp-pdf-forms/internal/form"
	"github.com/a3tai/mcp-pdf-forms/internal/geometry"
	"github.com/a3tai/mcp-pdf-forms/internal/layout"
	pdferrors "github.com/a3tai/mcp-pdf-forms/internal/pdf/errors"
	"github.com/a3tai/mcp-pdf-forms/internal/pdf/overlay"
	"github.com/a3tai/mcp-pdf-forms/internal/pdf/source"
	"github.com/a3tai/mcp-pdf-forms/internal/pdf/verify"
)

var (
	// ErrSessionBusy is returned for edits, and for a second save, while a
	// save is running.
	ErrSessionBusy = errors.New("session is busy saving")
	// ErrSessionClosed is returned for any call after Close.
	ErrSessionClosed = errors.New("session is closed")
)

// ValidationError blocks a save. It carries every violation found.
type ValidationError struct {
	Violations []form.Violation
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		msgs = append(msgs, v.Error())
	}
	return fmt.Sprintf("%d validation violation(s): %s", len(e.Violations), strings.Join(msgs, "; "))
}

// Options configures a session.
type Options struct {
	Policy      form.Policy
	MaxFileSize int64
	// Parallel bounds concurrent page synthesis during save.
	Parallel int
	// Verify re-reads the output with an independent parser before it is
	// written and fails the save on any mismatch.
	Verify bool
}

// DefaultOptions returns options with the default policy and verification on.
func DefaultOptions() Options {
	return Options{Policy: form.DefaultPolicy(), Verify: true}
}

// PageSummary describes a page for callers that lay out a preview.
type PageSummary struct {
	Index int `json:"index"`
	// Width and Height are the unrotated crop box size in points.
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Rotation int     `json:"rotation"`
	// DisplayWidth and DisplayHeight are the size as shown, after rotation.
	DisplayWidth  float64        `json:"display_width"`
	DisplayHeight float64        `json:"display_height"`
	CropOffset    geometry.Point `json:"crop_offset"`
	FieldCount    int            `json:"field_count"`
}

// SaveResult reports a completed save.
type SaveResult struct {
	Destination string `json:"destination"`
	Bytes       int    `json:"bytes"`
	FieldCount  int    `json:"field_count"`
	// Pages lists the 1-based pages that received fields.
	Pages    []int `json:"pages"`
	Verified bool  `json:"verified"`
}

// Session is one open document. All methods are safe for concurrent use.
type Session struct {
	fs   afero.Fs
	opts Options
	src  *source.Document

	mu      sync.RWMutex
	doc     *form.Document
	history *form.History
	saving  bool
	closed  bool
}

// Open loads path from fs and starts an empty session over it.
func Open(fs afero.Fs, path string, opts Options) (*Session, error) {
	if err := opts.Policy.Validate(); err != nil {
		return nil, err
	}
	src, err := source.Load(fs, path, source.Options{MaxFileSize: opts.MaxFileSize})
	if err != nil {
		return nil, err
	}
	doc, err := form.NewDocument(src.Geometries(), opts.Policy)
	if err != nil {
		return nil, pdferrors.WrapError(pdferrors.ErrorTypeStructure, "unusable page geometry", err).WithFile(path)
	}
	log.Printf("Opened %s (%d pages, xref %s)", path, len(src.Pages), src.Tail.Kind)
	return &Session{
		fs:      fs,
		opts:    opts,
		src:     src,
		doc:     doc,
		history: form.NewHistory(doc, opts.Policy.HistoryLimit),
	}, nil
}

// Path returns the source file path.
func (s *Session) Path() string { return s.src.Path }

// Policy returns the field policy in effect.
func (s *Session) Policy() form.Policy { return s.opts.Policy }

// PageCount returns the number of pages.
func (s *Session) PageCount() int { return len(s.src.Pages) }

// Saving reports whether a save is running.
func (s *Session) Saving() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saving
}

// Pages summarizes every page.
func (s *Session) Pages() ([]PageSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrSessionClosed
	}
	out := make([]PageSummary, 0, s.doc.PageCount())
	for i := 0; i < s.doc.PageCount(); i++ {
		g, err := s.doc.PageGeometry(i)
		if err != nil {
			return nil, err
		}
		fields, _ := s.doc.Fields(i)
		disp := g.Rotation.DisplaySize(g.Size)
		out = append(out, PageSummary{
			Index:         i,
			Width:         g.Size.Width,
			Height:        g.Size.Height,
			Rotation:      int(g.Rotation),
			DisplayWidth:  disp.Width,
			DisplayHeight: disp.Height,
			CropOffset:    g.CropOffset,
			FieldCount:    len(fields),
		})
	}
	return out, nil
}

// Fields returns the fields of a page in order.
func (s *Session) Fields(page int) ([]form.Field, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrSessionClosed
	}
	return s.doc.Fields(page)
}

// AllFields returns every field in page order.
func (s *Session) AllFields() ([]form.Field, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrSessionClosed
	}
	return s.doc.AllFields(), nil
}

// Field returns one field.
func (s *Session) Field(page int, id form.FieldID) (form.Field, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return form.Field{}, ErrSessionClosed
	}
	return s.doc.Field(page, id)
}

// Lookup finds a field by name.
func (s *Session) Lookup(name string) (form.Field, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return form.Field{}, false
	}
	return s.doc.Lookup(name)
}

// Validate runs the full validator.
func (s *Session) Validate() ([]form.Violation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrSessionClosed
	}
	return s.doc.Validate(), nil
}

// writable must be called with mu held.
func (s *Session) writable() error {
	if s.closed {
		return ErrSessionClosed
	}
	if s.saving {
		return ErrSessionBusy
	}
	return nil
}

func (s *Session) execute(c form.Command) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writable(); err != nil {
		return err
	}
	return s.history.Execute(c)
}

func (s *Session) insert(c *form.Insert) (form.Field, error) {
	if err := s.execute(c); err != nil {
		return form.Field{}, err
	}
	return c.Field(), nil
}

func (s *Session) edit(c *form.Edit) (form.Field, error) {
	if err := s.execute(c); err != nil {
		return form.Field{}, err
	}
	return c.Field(), nil
}

// AddField adds a fully specified field.
func (s *Session) AddField(page int, spec form.FieldSpec) (form.Field, error) {
	return s.insert(form.NewAdd(page, spec))
}

// PlaceField adds a field with a generated name at bounds, given in the
// unrotated crop-relative frame. The bounds are clamped into the page.
func (s *Session) PlaceField(page int, kind form.Kind, bounds geometry.Rect) (form.Field, error) {
	return s.insert(form.NewPlace(page, kind, bounds))
}

// PlaceAt adds a field where the user clicked in the preview. The click
// becomes the top-left corner of a field of the kind's default size as
// displayed, so on rotated pages the stored size is swapped accordingly.
func (s *Session) PlaceAt(page int, kind form.Kind, device geometry.Point, zoom float64) (form.Field, error) {
	s.mu.RLock()
	g, err := s.doc.PageGeometry(page)
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return form.Field{}, ErrSessionClosed
	}
	if err != nil {
		return form.Field{}, err
	}
	size := s.opts.Policy.DefaultSize(kind)
	vp := geometry.Viewport{
		Zoom:       zoom,
		PageSize:   g.Rotation.DisplaySize(g.Size),
		Rotation:   g.Rotation,
		CropOffset: g.CropOffset,
	}
	deviceRect := geometry.Rect{X: device.X, Y: device.Y, Width: size.Width * zoom, Height: size.Height * zoom}
	user, err := vp.RectToPDF(deviceRect)
	if err != nil {
		return form.Field{}, err
	}
	return s.PlaceField(page, kind, user.Translate(geometry.Point{X: -g.CropOffset.X, Y: -g.CropOffset.Y}))
}

// DuplicateField copies a field next to the original under a fresh name.
func (s *Session) DuplicateField(page int, id form.FieldID) (form.Field, error) {
	return s.insert(form.NewDuplicate(page, id))
}

// MoveField moves a field's lower-left corner to to.
func (s *Session) MoveField(page int, id form.FieldID, to geometry.Point) (form.Field, error) {
	return s.edit(form.NewMove(page, id, to))
}

// ResizeField changes a field's size keeping its lower-left corner.
func (s *Session) ResizeField(page int, id form.FieldID, size geometry.Size) (form.Field, error) {
	return s.edit(form.NewResize(page, id, size))
}

// SetRect replaces position and size in one step, as a drag on a corner
// handle does.
func (s *Session) SetRect(page int, id form.FieldID, r geometry.Rect) (form.Field, error) {
	return s.edit(form.NewSetRect(page, id, r))
}

// RenameField changes a field's name.
func (s *Session) RenameField(page int, id form.FieldID, name string) (form.Field, error) {
	return s.edit(form.NewRename(page, id, name))
}

// SetProperty changes required, the text default or the checked state.
func (s *Session) SetProperty(page int, id form.FieldID, prop form.Property, value any) (form.Field, error) {
	return s.edit(form.NewSetProperty(page, id, prop, value))
}

// RemoveField deletes a field and returns it.
func (s *Session) RemoveField(page int, id form.FieldID) (form.Field, error) {
	c := form.NewRemove(page, id)
	if err := s.execute(c); err != nil {
		return form.Field{}, err
	}
	return c.Field(), nil
}

// Undo reverts the last edit and returns its description.
func (s *Session) Undo() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writable(); err != nil {
		return "", err
	}
	c, err := s.history.Undo()
	if err != nil {
		return "", err
	}
	return c.String(), nil
}

// Redo reapplies the last undone edit and returns its description.
func (s *Session) Redo() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writable(); err != nil {
		return "", err
	}
	c, err := s.history.Redo()
	if err != nil {
		return "", err
	}
	return c.String(), nil
}

// HistoryDepth returns the number of undoable and redoable edits.
func (s *Session) HistoryDepth() (undo, redo int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.history.Depth()
}

// ExportLayout captures the current fields.
func (s *Session) ExportLayout() (*layout.Layout, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrSessionClosed
	}
	return layout.Export(s.doc, s.src.Path), nil
}

// ImportLayout replaces every field with those of l. In Strict mode a
// rejected field leaves the session untouched. In Lenient mode all fields
// are taken and the violations are returned for the user to fix. Either way
// a successful import clears the undo history.
func (s *Session) ImportLayout(l *layout.Layout, mode layout.Mode) ([]form.Violation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writable(); err != nil {
		return nil, err
	}
	doc, err := form.NewDocument(s.src.Geometries(), s.opts.Policy)
	if err != nil {
		return nil, err
	}
	violations, err := l.Apply(doc, mode)
	if err != nil {
		return nil, err
	}
	s.doc = doc
	s.history = form.NewHistory(doc, s.opts.Policy.HistoryLimit)
	log.Printf("Imported layout into %s: %d fields, %d violations", s.src.Path, doc.FieldCount(), len(violations))
	return violations, nil
}

// Save validates the model, builds the output and writes it to dst. Edits
// are refused with ErrSessionBusy until it returns. Violations come back as
// *ValidationError; nothing is written unless every step succeeds.
func (s *Session) Save(ctx context.Context, dst string, overwrite bool) (*SaveResult, error) {
	s.mu.Lock()
	if err := s.writable(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.saving = true
	doc := s.doc
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.saving = false
		s.mu.Unlock()
	}()

	// Edits are blocked from here on, so doc can be read without the lock.
	if violations := doc.Validate(); len(violations) > 0 {
		return nil, &ValidationError{Violations: violations}
	}

	res, err := overlay.Build(ctx, s.src, doc, overlay.Options{Parallel: s.opts.Parallel})
	if err != nil {
		return nil, err
	}

	result := &SaveResult{
		Destination: dst,
		Bytes:       len(res.Data),
		FieldCount:  res.FieldCount,
		Pages:       res.Pages,
	}
	if s.opts.Verify {
		if err := checkOutput(res.Data, doc); err != nil {
			return nil, pdferrors.WrapError(pdferrors.ErrorTypeVerify, "output did not read back as written", err).WithFile(dst)
		}
		result.Verified = true
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := overlay.WriteFile(s.fs, s.src.Path, dst, res.Data, overwrite); err != nil {
		return nil, err
	}
	log.Printf("Saved %s: %d fields on %d pages, %d bytes", dst, result.FieldCount, len(result.Pages), result.Bytes)
	return result, nil
}

func checkOutput(data []byte, doc *form.Document) error {
	rep, err := verify.Read(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return err
	}
	return verify.Compare(rep, doc)
}

// Close ends the session. Later calls fail with ErrSessionClosed. A session
// cannot be closed while saving.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if s.saving {
		return ErrSessionBusy
	}
	s.closed = true
	log.Printf("Closed %s", s.src.Path)
	return nil
}
