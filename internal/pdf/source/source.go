// Package source loads an existing PDF and exposes the page geometry and
// object graph needed to append form fields to it.
package source

import (
	"bytes"
	"fmt"
	"math"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"github.com/spf13/afero"

	"github.com/a3tai/mcp-pdf-forms/internal/form"
	"github.com/a3tai/mcp-pdf-forms/internal/geometry"
	pdferrors "github.com/a3tai/mcp-pdf-forms/internal/pdf/errors"
	"github.com/a3tai/mcp-pdf-forms/internal/pdf/xref"
)

// PageInfo describes one source page.
type PageInfo struct {
	// Number is 1-based.
	Number int
	Ref    types.IndirectRef
	// Dict is the page dictionary as stored, without inherited attributes.
	Dict     types.Dict
	MediaBox geometry.Rect
	// CropBox is the effective crop box in user space, clipped to the media box.
	CropBox  geometry.Rect
	Rotation geometry.Rotation
}

// Geometry returns the page as the field model sees it.
func (p PageInfo) Geometry() form.PageGeometry {
	return form.PageGeometry{
		Size:       p.CropBox.Size(),
		Rotation:   p.Rotation,
		CropOffset: p.CropBox.Min(),
	}
}

// Document is a loaded source PDF. The original bytes are kept so the
// writer can append to them unchanged.
type Document struct {
	Path  string
	Data  []byte
	Ctx   *model.Context
	Tail  *xref.Tail
	Pages []PageInfo
	Root  types.IndirectRef
}

// Options controls loading.
type Options struct {
	// MaxFileSize rejects larger files. Zero disables the check.
	MaxFileSize int64
}

// Load reads path from fs and parses it.
func Load(fs afero.Fs, path string, opts Options) (*Document, error) {
	info, err := fs.Stat(path)
	if err != nil {
		return nil, pdferrors.WrapError(pdferrors.ErrorTypeIO, "cannot access source file", err).WithFile(path)
	}
	if info.IsDir() {
		return nil, pdferrors.NewPDFError(pdferrors.ErrorTypeLoad, "source path is a directory").WithFile(path)
	}
	if opts.MaxFileSize > 0 && info.Size() > opts.MaxFileSize {
		return nil, pdferrors.NewPDFError(pdferrors.ErrorTypeTooLarge,
			fmt.Sprintf("file size %d exceeds limit of %d bytes", info.Size(), opts.MaxFileSize)).WithFile(path)
	}
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, pdferrors.WrapError(pdferrors.ErrorTypeIO, "failed to read source file", err).WithFile(path)
	}
	return Parse(data, path)
}

// Parse parses PDF bytes. path is only used in error messages.
func Parse(data []byte, path string) (*Document, error) {
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return nil, pdferrors.NewPDFError(pdferrors.ErrorTypeLoad, "missing %PDF header").WithFile(path)
	}

	tail, err := xref.ReadTail(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, pdferrors.WrapError(pdferrors.ErrorTypeLoad, "cannot locate cross-reference section", err).WithFile(path)
	}
	if tail.Trailer.Encrypted() {
		return nil, pdferrors.NewPDFError(pdferrors.ErrorTypeEncrypted, "encrypted documents are not supported").WithFile(path)
	}
	if tail.Trailer.Root == nil {
		return nil, pdferrors.NewPDFError(pdferrors.ErrorTypeStructure, "trailer has no /Root").WithFile(path)
	}

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadContext(bytes.NewReader(data), conf)
	if err != nil {
		return nil, pdferrors.WrapError(pdferrors.ErrorTypeLoad, "failed to read PDF context", err).WithFile(path)
	}
	if ctx.Encrypt != nil {
		return nil, pdferrors.NewPDFError(pdferrors.ErrorTypeEncrypted, "encrypted documents are not supported").WithFile(path)
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return nil, pdferrors.WrapError(pdferrors.ErrorTypeLoad, "failed to ensure page count", err).WithFile(path)
	}
	if ctx.PageCount < 1 {
		return nil, pdferrors.NewPDFError(pdferrors.ErrorTypeLoad, "document has no pages").WithFile(path)
	}

	doc := &Document{
		Path: path,
		Data: data,
		Ctx:  ctx,
		Tail: tail,
		Root: *types.NewIndirectRef(int(tail.Trailer.Root.ObjectNumber), int(tail.Trailer.Root.GenerationNumber)),
	}
	for n := 1; n <= ctx.PageCount; n++ {
		page, err := readPage(ctx, n)
		if err != nil {
			return nil, err.WithFile(path)
		}
		doc.Pages = append(doc.Pages, page)
	}
	return doc, nil
}

func readPage(ctx *model.Context, n int) (PageInfo, *pdferrors.PDFError) {
	dict, ref, _, err := ctx.PageDict(n, false)
	if err != nil {
		return PageInfo{}, pdferrors.WrapError(pdferrors.ErrorTypeStructure, "cannot read page dictionary", err).WithPage(n)
	}
	if dict == nil || ref == nil {
		return PageInfo{}, pdferrors.NewPDFError(pdferrors.ErrorTypeStructure, "page dictionary missing").WithPage(n)
	}
	_, _, inh, err := ctx.PageDict(n, true)
	if err != nil {
		return PageInfo{}, pdferrors.WrapError(pdferrors.ErrorTypeStructure, "cannot resolve inherited page attributes", err).WithPage(n)
	}
	if inh == nil || inh.MediaBox == nil {
		return PageInfo{}, pdferrors.NewPDFError(pdferrors.ErrorTypeStructure, "page has no media box").
			WithPage(n).WithObject(ref.ObjectNumber.Value())
	}

	media := rectangle(inh.MediaBox)
	crop := media
	if inh.CropBox != nil {
		crop = intersect(rectangle(inh.CropBox), media)
	}
	if crop.Width <= 0 || crop.Height <= 0 {
		return PageInfo{}, pdferrors.NewPDFError(pdferrors.ErrorTypeStructure, "page has an empty crop box").
			WithPage(n).WithObject(ref.ObjectNumber.Value())
	}
	rot, err := geometry.ParseRotation(inh.Rotate)
	if err != nil {
		return PageInfo{}, pdferrors.WrapError(pdferrors.ErrorTypeStructure, "invalid page rotation", err).
			WithPage(n).WithObject(ref.ObjectNumber.Value())
	}

	copied := make(types.Dict, len(dict))
	for k, v := range dict {
		copied[k] = v
	}
	return PageInfo{
		Number:   n,
		Ref:      *ref,
		Dict:     copied,
		MediaBox: media,
		CropBox:  crop,
		Rotation: rot,
	}, nil
}

func rectangle(r *types.Rectangle) geometry.Rect {
	return geometry.RectFromPoints(
		geometry.Point{X: r.LL.X, Y: r.LL.Y},
		geometry.Point{X: r.UR.X, Y: r.UR.Y},
	)
}

func intersect(a, b geometry.Rect) geometry.Rect {
	x0 := math.Max(a.X, b.X)
	y0 := math.Max(a.Y, b.Y)
	x1 := math.Min(a.X+a.Width, b.X+b.Width)
	y1 := math.Min(a.Y+a.Height, b.Y+b.Height)
	if x1 < x0 || y1 < y0 {
		return geometry.Rect{X: x0, Y: y0}
	}
	return geometry.Rect{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

// Geometries returns the model view of every page.
func (d *Document) Geometries() []form.PageGeometry {
	out := make([]form.PageGeometry, len(d.Pages))
	for i, p := range d.Pages {
		out[i] = p.Geometry()
	}
	return out
}

// NextObjectNumber returns the first object number not used by the source.
func (d *Document) NextObjectNumber() int {
	next := d.Tail.Trailer.Size
	for n := range d.Ctx.Table {
		if n+1 > next {
			next = n + 1
		}
	}
	return next
}

// Catalog returns the document catalog.
func (d *Document) Catalog() (types.Dict, error) {
	cat, err := d.Ctx.Catalog()
	if err != nil {
		return nil, pdferrors.WrapError(pdferrors.ErrorTypeStructure, "failed to get catalog", err).
			WithObject(d.Root.ObjectNumber.Value())
	}
	return cat, nil
}
