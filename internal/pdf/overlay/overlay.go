// Package overlay writes the fields of a form model into a copy of the
// source PDF as real AcroForm fields.
//
// The output is the source file followed by a single incremental update
// section. Only the catalog, the pages that receive fields, the new widgets,
// their appearance streams and two font resources are written; every other
// object, including the content streams of all pages, stays in the original
// bytes at its original offset.
package overlay

import (
	"context"
	"runtime"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"github.com/sourcegraph/conc/iter"
	"go.uber.org/multierr"

	"github.com/a3tai/mcp-pdf-forms/internal/form"
	pdferrors "github.com/a3tai/mcp-pdf-forms/internal/pdf/errors"
	"github.com/a3tai/mcp-pdf-forms/internal/pdf/source"
)

// Options controls a pipeline run.
type Options struct {
	// Parallel bounds concurrent page synthesis. Zero means GOMAXPROCS.
	Parallel int
}

// Result is the output of Build.
type Result struct {
	Data []byte
	// Pages lists the 1-based pages that received fields.
	Pages      []int
	FieldCount int
}

// Build produces the output PDF for doc on top of src. Nothing is returned
// unless every page synthesizes cleanly.
func Build(ctx context.Context, src *source.Document, doc *form.Document, opts Options) (*Result, error) {
	if doc.PageCount() != len(src.Pages) {
		return nil, pdferrors.NewPDFError(pdferrors.ErrorTypeStructure, "form model does not match the source page count").
			WithFile(src.Path)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkModel(src, doc); err != nil {
		return nil, err
	}

	var jobs []pageJob
	for i := range src.Pages {
		fields, err := doc.Fields(i)
		if err != nil {
			return nil, err
		}
		if len(fields) == 0 {
			continue
		}
		g, err := doc.PageGeometry(i)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, pageJob{Index: i, Geometry: g, Fields: fields})
	}

	parallel := opts.Parallel
	if parallel <= 0 {
		parallel = runtime.GOMAXPROCS(0)
	}
	mapper := iter.Mapper[pageJob, pagePlan]{MaxGoroutines: parallel}
	plans := mapper.Map(jobs, synthesizePage)

	var errs error
	for _, p := range plans {
		errs = multierr.Append(errs, p.Err)
	}
	if errs != nil {
		return nil, errs
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(plans) == 0 {
		return &Result{Data: append([]byte(nil), src.Data...)}, nil
	}

	return assemble(src, plans)
}

// checkModel runs the full validator so that a model which bypassed it
// never reaches the file. Names must be unique document-wide because each
// widget is a terminal field with a fully qualified /T.
func checkModel(src *source.Document, doc *form.Document) error {
	violations := form.Validate(doc)
	if len(violations) == 0 {
		return nil
	}
	var errs error
	for i := range violations {
		errs = multierr.Append(errs, &violations[i])
	}
	return pdferrors.WrapError(pdferrors.ErrorTypeStructure, "form model breaks field invariants", errs).
		WithFile(src.Path).WithPage(violations[0].PageIndex + 1)
}

// assemble allocates object numbers in page order and writes the update.
func assemble(src *source.Document, plans []pagePlan) (*Result, error) {
	w := newUpdateWriter(src.Data, src.NextObjectNumber())
	next := w.size
	alloc := func() int {
		n := next
		next++
		return n
	}

	helv := alloc()
	zadb := alloc()
	fontRefs := map[string]types.IndirectRef{
		fontHelv: *types.NewIndirectRef(helv, 0),
		fontZaDb: *types.NewIndirectRef(zadb, 0),
	}
	w.object(helv, 0, types.Dict{
		"Type":     types.Name("Font"),
		"Subtype":  types.Name("Type1"),
		"BaseFont": types.Name("Helvetica"),
		"Encoding": types.Name("WinAnsiEncoding"),
	})
	w.object(zadb, 0, types.Dict{
		"Type":     types.Name("Font"),
		"Subtype":  types.Name("Type1"),
		"BaseFont": types.Name("ZapfDingbats"),
	})

	res := &Result{}
	var fieldRefs types.Array
	for _, plan := range plans {
		page := src.Pages[plan.Index]
		var annots types.Array
		for _, wd := range plan.Widgets {
			num := alloc()
			ref := *types.NewIndirectRef(num, 0)

			normal := types.Dict{}
			var single *types.IndirectRef
			for _, ap := range wd.Appearances {
				apNum := alloc()
				w.stream(apNum, appearanceDict(ap, fontRefs[ap.Font]), ap.Content)
				apRef := types.NewIndirectRef(apNum, 0)
				if ap.State == "" {
					single = apRef
				} else {
					normal[ap.State] = *apRef
				}
			}

			d := wd.Dict
			d["P"] = page.Ref
			if single != nil {
				d["AP"] = types.Dict{"N": *single}
			} else {
				d["AP"] = types.Dict{"N": normal}
			}
			w.object(num, 0, d)

			annots = append(annots, ref)
			fieldRefs = append(fieldRefs, ref)
			res.FieldCount++
		}

		pageDict, err := pageWithAnnots(src, page, annots)
		if err != nil {
			return nil, err
		}
		w.object(page.Ref.ObjectNumber.Value(), page.Ref.GenerationNumber.Value(), pageDict)
		res.Pages = append(res.Pages, page.Number)
	}

	catalog, err := catalogWithFields(src, fieldRefs, fontRefs)
	if err != nil {
		return nil, err
	}
	w.object(src.Root.ObjectNumber.Value(), src.Root.GenerationNumber.Value(), catalog)

	t := src.Tail.Trailer
	res.Data = w.finish(src.Tail.Kind, trailer{
		Root: src.Root,
		Info: t.Info,
		ID:   t.ID,
		Prev: src.Tail.StartXRef,
	})
	return res, nil
}

func appearanceDict(ap appearance, font types.IndirectRef) types.Dict {
	m := ap.Matrix
	return types.Dict{
		"Type":    types.Name("XObject"),
		"Subtype": types.Name("Form"),
		"BBox":    numberArray(ap.BBox[0], ap.BBox[1], ap.BBox[2], ap.BBox[3]),
		"Matrix":  numberArray(m[0], m[1], m[2], m[3], m[4], m[5]),
		"Resources": types.Dict{
			"Font": types.Dict{ap.Font: font},
		},
	}
}

// pageWithAnnots returns a copy of the page dictionary with annots appended
// to whatever /Annots it already has.
func pageWithAnnots(src *source.Document, page source.PageInfo, annots types.Array) (types.Dict, error) {
	d := make(types.Dict, len(page.Dict)+1)
	for k, v := range page.Dict {
		d[k] = v
	}
	var existing types.Array
	if obj, ok := page.Dict.Find("Annots"); ok && obj != nil {
		arr, err := src.Ctx.DereferenceArray(obj)
		if err != nil {
			return nil, pdferrors.WrapError(pdferrors.ErrorTypeStructure, "cannot resolve page annotations", err).
				WithPage(page.Number).WithObject(page.Ref.ObjectNumber.Value())
		}
		existing = arr
	}
	merged := make(types.Array, 0, len(existing)+len(annots))
	merged = append(merged, existing...)
	merged = append(merged, annots...)
	d["Annots"] = merged
	return d, nil
}

// catalogWithFields returns a copy of the catalog whose /AcroForm lists the
// existing fields followed by the new ones.
func catalogWithFields(src *source.Document, fields types.Array, fonts map[string]types.IndirectRef) (types.Dict, error) {
	cat, err := src.Catalog()
	if err != nil {
		return nil, err
	}
	structural := func(msg string, err error) error {
		return pdferrors.WrapError(pdferrors.ErrorTypeStructure, msg, err).WithObject(src.Root.ObjectNumber.Value())
	}

	out := make(types.Dict, len(cat)+1)
	for k, v := range cat {
		out[k] = v
	}

	acro := types.Dict{}
	if obj, ok := cat.Find("AcroForm"); ok && obj != nil {
		existing, err := src.Ctx.DereferenceDict(obj)
		if err != nil {
			return nil, structural("cannot resolve existing AcroForm", err)
		}
		for k, v := range existing {
			acro[k] = v
		}
	}

	var all types.Array
	if obj, ok := acro.Find("Fields"); ok && obj != nil {
		existing, err := src.Ctx.DereferenceArray(obj)
		if err != nil {
			return nil, structural("cannot resolve existing AcroForm fields", err)
		}
		all = append(all, existing...)
	}
	all = append(all, fields...)
	acro["Fields"] = all
	acro["NeedAppearances"] = types.Boolean(true)
	if _, ok := acro.Find("DA"); !ok {
		acro["DA"] = types.StringLiteral(textDA)
	}

	dr := types.Dict{}
	if obj, ok := acro.Find("DR"); ok && obj != nil {
		existing, err := src.Ctx.DereferenceDict(obj)
		if err != nil {
			return nil, structural("cannot resolve AcroForm resources", err)
		}
		for k, v := range existing {
			dr[k] = v
		}
	}
	fontDict := types.Dict{}
	if obj, ok := dr.Find("Font"); ok && obj != nil {
		existing, err := src.Ctx.DereferenceDict(obj)
		if err != nil {
			return nil, structural("cannot resolve AcroForm fonts", err)
		}
		for k, v := range existing {
			fontDict[k] = v
		}
	}
	for name, ref := range fonts {
		if _, ok := fontDict[name]; !ok {
			fontDict[name] = ref
		}
	}
	dr["Font"] = fontDict
	acro["DR"] = dr

	out["AcroForm"] = acro
	return out, nil
}
