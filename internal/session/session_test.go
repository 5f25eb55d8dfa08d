package session

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-pdf-forms/internal/form"
	"github.com/a3tai/mcp-pdf-forms/internal/geometry"
	"github.com/a3tai/mcp-pdf-forms/internal/layout"
	pdferrors "github.com/a3tai/mcp-pdf-forms/internal/pdf/errors"
	"github.com/a3tai/mcp-pdf-forms/internal/pdf/verify"
	"github.com/a3tai/mcp-pdf-forms/internal/testpdf"
)

func newFs(t *testing.T, opts testpdf.Options) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/work", 0o755))
	require.NoError(t, afero.WriteFile(fs, "/work/in.pdf", testpdf.Build(opts), 0o644))
	return fs
}

func openSession(t *testing.T, opts testpdf.Options) (*Session, afero.Fs) {
	t.Helper()
	fs := newFs(t, opts)
	s, err := Open(fs, "/work/in.pdf", DefaultOptions())
	require.NoError(t, err)
	return s, fs
}

func textSpec(name string, r geometry.Rect) form.FieldSpec {
	return form.FieldSpec{Name: name, Rect: r, Value: form.TextValue{}}
}

func TestOpen_Pages(t *testing.T) {
	s, _ := openSession(t, testpdf.Options{Pages: []testpdf.Page{
		{MediaBox: [4]float64{0, 0, 612, 792}},
		{MediaBox: [4]float64{0, 0, 612, 792}, Rotate: 90},
	}})
	pages, err := s.Pages()
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, PageSummary{Index: 0, Width: 612, Height: 792, DisplayWidth: 612, DisplayHeight: 792}, pages[0])
	assert.Equal(t, 90, pages[1].Rotation)
	assert.Equal(t, 792.0, pages[1].DisplayWidth)
	assert.Equal(t, "/work/in.pdf", s.Path())
}

func TestOpen_Errors(t *testing.T) {
	fs := newFs(t, testpdf.Options{Encrypted: true})
	_, err := Open(fs, "/work/in.pdf", DefaultOptions())
	assert.True(t, pdferrors.IsType(err, pdferrors.ErrorTypeEncrypted), "got %v", err)

	_, err = Open(fs, "/work/missing.pdf", DefaultOptions())
	assert.True(t, pdferrors.IsType(err, pdferrors.ErrorTypeIO), "got %v", err)

	bad := DefaultOptions()
	bad.Policy.MinTextWidth = -1
	_, err = Open(fs, "/work/in.pdf", bad)
	assert.Error(t, err)
}

func TestDuplicateNameAcrossPages(t *testing.T) {
	s, _ := openSession(t, testpdf.Options{Pages: testpdf.Letter(2)})
	first, err := s.AddField(0, textSpec("email", geometry.Rect{X: 72, Y: 700, Width: 200, Height: 24}))
	require.NoError(t, err)

	_, err = s.AddField(1, textSpec("email", geometry.Rect{X: 72, Y: 700, Width: 200, Height: 24}))
	v, ok := form.AsViolation(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, form.DuplicateName, v.Kind)
	assert.Contains(t, v.Locations, form.Location{PageIndex: 0, FieldID: first.ID})

	fields, err := s.Fields(1)
	require.NoError(t, err)
	assert.Empty(t, fields, "rejected field must not be added")
}

func TestPlaceAt(t *testing.T) {
	s, _ := openSession(t, testpdf.Options{Pages: []testpdf.Page{
		{MediaBox: [4]float64{0, 0, 612, 792}},
		{MediaBox: [4]float64{0, 0, 612, 792}, Rotate: 90},
	}})

	f, err := s.PlaceAt(0, form.KindText, geometry.Point{X: 100, Y: 100}, 2)
	require.NoError(t, err)
	assert.Equal(t, "text_1", f.Name)
	assert.True(t, f.Rect.Near(geometry.Rect{X: 50, Y: 718, Width: 140, Height: 24}, 1e-9), "rect %s", f.Rect)

	f, err = s.PlaceAt(1, form.KindText, geometry.Point{X: 100, Y: 100}, 1)
	require.NoError(t, err)
	assert.InDelta(t, 24, f.Rect.Width, 1e-9, "displayed width becomes unrotated height")
	assert.InDelta(t, 140, f.Rect.Height, 1e-9)

	cb, err := s.PlaceAt(0, form.KindCheckbox, geometry.Point{X: 0, Y: 0}, 1)
	require.NoError(t, err)
	assert.Equal(t, "checkbox_1", cb.Name)
	assert.Equal(t, cb.Rect.Width, cb.Rect.Height)
	assert.Equal(t, form.CheckboxValue{Checked: false}, cb.Value)

	_, err = s.PlaceAt(0, form.KindText, geometry.Point{X: 1, Y: 1}, 0)
	assert.ErrorIs(t, err, geometry.ErrInvalidZoom)
}

func TestSave_WritesVerifiedOutput(t *testing.T) {
	s, fs := openSession(t, testpdf.Options{Pages: testpdf.Letter(3)})
	_, err := s.AddField(1, form.FieldSpec{
		Name: "email", Rect: geometry.Rect{X: 72, Y: 700, Width: 200, Height: 24},
		Required: true, Value: form.TextValue{Default: "a@b.c"},
	})
	require.NoError(t, err)
	_, err = s.PlaceField(2, form.KindCheckbox, geometry.Rect{X: 72, Y: 72, Width: 18, Height: 18})
	require.NoError(t, err)

	before, err := afero.ReadFile(fs, "/work/in.pdf")
	require.NoError(t, err)

	res, err := s.Save(context.Background(), "/work/out.pdf", false)
	require.NoError(t, err)
	assert.True(t, res.Verified)
	assert.Equal(t, 2, res.FieldCount)
	assert.Equal(t, []int{2, 3}, res.Pages)

	after, err := afero.ReadFile(fs, "/work/in.pdf")
	require.NoError(t, err)
	assert.Equal(t, before, after, "source must never change")

	rep, err := verify.ReadFile(fs, "/work/out.pdf")
	require.NoError(t, err)
	w, ok := rep.Field("checkbox_1")
	require.True(t, ok)
	assert.Equal(t, "Off", w.Value)
	assert.Equal(t, 3, w.Page)

	_, err = s.AddField(0, textSpec("later", geometry.Rect{X: 10, Y: 10, Width: 50, Height: 20}))
	assert.NoError(t, err, "edits resume after save")
}

func TestSave_BlockedByViolations(t *testing.T) {
	s, fs := openSession(t, testpdf.Options{Pages: testpdf.Letter(2)})
	l := &layout.Layout{Version: layout.Version, Pages: []layout.Page{
		{Index: 0, Fields: []layout.Field{{Name: "x", Kind: "text", Rect: geometry.Rect{X: 600, Y: 10, Width: 50, Height: 20}}}},
		{Index: 1, Fields: []layout.Field{{Name: "x", Kind: "text", Rect: geometry.Rect{X: 10, Y: 10, Width: 50, Height: 20}}}},
	}}
	violations, err := s.ImportLayout(l, layout.Lenient)
	require.NoError(t, err)
	require.Len(t, violations, 2)

	_, err = s.Save(context.Background(), "/work/out.pdf", false)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr), "got %v", err)
	assert.Len(t, verr.Violations, 2)

	exists, _ := afero.Exists(fs, "/work/out.pdf")
	assert.False(t, exists)
}

func TestSave_SamePath(t *testing.T) {
	s, fs := openSession(t, testpdf.Options{})
	_, err := s.AddField(0, textSpec("a", geometry.Rect{X: 10, Y: 10, Width: 50, Height: 20}))
	require.NoError(t, err)

	_, err = s.Save(context.Background(), "/work/in.pdf", false)
	assert.True(t, pdferrors.IsType(err, pdferrors.ErrorTypeSamePath), "got %v", err)

	_, err = s.Save(context.Background(), "/work/in.pdf", true)
	require.NoError(t, err)
	rep, err := verify.ReadFile(fs, "/work/in.pdf")
	require.NoError(t, err)
	_, ok := rep.Field("a")
	assert.True(t, ok)
}

// blockingFs pauses the first file creation until released.
type blockingFs struct {
	afero.Fs
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	if flag&os.O_CREATE != 0 {
		b.once.Do(func() {
			close(b.entered)
			<-b.release
		})
	}
	return b.Fs.OpenFile(name, flag, perm)
}

func TestSave_SessionBusy(t *testing.T) {
	fs := &blockingFs{
		Fs:      newFs(t, testpdf.Options{}),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	s, err := Open(fs, "/work/in.pdf", DefaultOptions())
	require.NoError(t, err)
	f, err := s.AddField(0, textSpec("a", geometry.Rect{X: 10, Y: 10, Width: 50, Height: 20}))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := s.Save(context.Background(), "/work/out.pdf", false)
		done <- err
	}()
	<-fs.entered

	assert.True(t, s.Saving())
	_, err = s.AddField(0, textSpec("b", geometry.Rect{X: 100, Y: 10, Width: 50, Height: 20}))
	assert.ErrorIs(t, err, ErrSessionBusy)
	_, err = s.MoveField(0, f.ID, geometry.Point{X: 20, Y: 20})
	assert.ErrorIs(t, err, ErrSessionBusy)
	_, err = s.Undo()
	assert.ErrorIs(t, err, ErrSessionBusy)
	_, err = s.Save(context.Background(), "/work/other.pdf", false)
	assert.ErrorIs(t, err, ErrSessionBusy)
	assert.ErrorIs(t, s.Close(), ErrSessionBusy)

	fields, err := s.Fields(0)
	require.NoError(t, err, "reads continue during save")
	assert.Len(t, fields, 1)

	close(fs.release)
	require.NoError(t, <-done)
	assert.False(t, s.Saving())

	_, err = s.AddField(0, textSpec("b", geometry.Rect{X: 100, Y: 10, Width: 50, Height: 20}))
	assert.NoError(t, err)
}

func TestUndoRedo(t *testing.T) {
	s, _ := openSession(t, testpdf.Options{})
	f, err := s.AddField(0, textSpec("a", geometry.Rect{X: 10, Y: 10, Width: 50, Height: 20}))
	require.NoError(t, err)
	_, err = s.RenameField(0, f.ID, "b")
	require.NoError(t, err)

	desc, err := s.Undo()
	require.NoError(t, err)
	assert.Contains(t, desc, "rename")
	got, err := s.Field(0, f.ID)
	require.NoError(t, err)
	assert.Equal(t, "a", got.Name)

	_, err = s.Redo()
	require.NoError(t, err)
	_, ok := s.Lookup("b")
	assert.True(t, ok)

	undo, redo := s.HistoryDepth()
	assert.Equal(t, 2, undo)
	assert.Equal(t, 0, redo)

	_, err = s.Undo()
	require.NoError(t, err)
	_, err = s.Undo()
	require.NoError(t, err)
	_, err = s.Undo()
	assert.ErrorIs(t, err, form.ErrNothingToUndo)
	all, err := s.AllFields()
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestEdits(t *testing.T) {
	s, _ := openSession(t, testpdf.Options{})
	f, err := s.AddField(0, textSpec("a", geometry.Rect{X: 10, Y: 10, Width: 50, Height: 20}))
	require.NoError(t, err)

	f, err = s.MoveField(0, f.ID, geometry.Point{X: 100, Y: 200})
	require.NoError(t, err)
	assert.Equal(t, geometry.Point{X: 100, Y: 200}, f.Rect.Min())

	f, err = s.ResizeField(0, f.ID, geometry.Size{Width: 80, Height: 30})
	require.NoError(t, err)
	assert.Equal(t, geometry.Size{Width: 80, Height: 30}, f.Rect.Size())

	_, err = s.ResizeField(0, f.ID, geometry.Size{Width: 2, Height: 30})
	v, ok := form.AsViolation(err)
	require.True(t, ok)
	assert.Equal(t, form.BelowMinimumSize, v.Kind)

	f, err = s.SetRect(0, f.ID, geometry.Rect{X: 0, Y: 0, Width: 60, Height: 20})
	require.NoError(t, err)

	f, err = s.SetProperty(0, f.ID, form.PropRequired, true)
	require.NoError(t, err)
	assert.True(t, f.Required)

	dup, err := s.DuplicateField(0, f.ID)
	require.NoError(t, err)
	assert.NotEqual(t, f.Name, dup.Name)

	removed, err := s.RemoveField(0, f.ID)
	require.NoError(t, err)
	assert.Equal(t, f.ID, removed.ID)
	_, err = s.Field(0, f.ID)
	assert.ErrorIs(t, err, form.ErrFieldNotFound)
}

func TestImportLayout_StrictLeavesSessionUnchanged(t *testing.T) {
	s, _ := openSession(t, testpdf.Options{})
	_, err := s.AddField(0, textSpec("keep", geometry.Rect{X: 10, Y: 10, Width: 50, Height: 20}))
	require.NoError(t, err)

	l := &layout.Layout{Version: layout.Version, Pages: []layout.Page{
		{Index: 0, Fields: []layout.Field{{Name: "bad", Kind: "text", Rect: geometry.Rect{X: 600, Y: 10, Width: 50, Height: 20}}}},
	}}
	_, err = s.ImportLayout(l, layout.Strict)
	require.Error(t, err)
	_, ok := s.Lookup("keep")
	assert.True(t, ok)

	exported, err := s.ExportLayout()
	require.NoError(t, err)
	assert.Equal(t, "/work/in.pdf", exported.Source)
	_, err = s.ImportLayout(exported, layout.Strict)
	require.NoError(t, err)
	undo, _ := s.HistoryDepth()
	assert.Zero(t, undo, "import starts a fresh history")
}

func TestClose(t *testing.T) {
	s, _ := openSession(t, testpdf.Options{})
	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Close(), ErrSessionClosed)

	_, err := s.Pages()
	assert.ErrorIs(t, err, ErrSessionClosed)
	_, err = s.AddField(0, textSpec("a", geometry.Rect{X: 10, Y: 10, Width: 50, Height: 20}))
	assert.ErrorIs(t, err, ErrSessionClosed)
	_, err = s.Save(context.Background(), "/work/out.pdf", false)
	assert.ErrorIs(t, err, ErrSessionClosed)
}
