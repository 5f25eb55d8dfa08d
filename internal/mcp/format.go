package mcp

import (
	"fmt"
	"strings"

	"github.com/a3tai/mcp-pdf-forms/internal/form"
	"github.com/a3tai/mcp-pdf-forms/internal/geometry"
	"github.com/a3tai/mcp-pdf-forms/internal/pdf/verify"
	"github.com/a3tai/mcp-pdf-forms/internal/session"
)

// Formatting methods

func formatRect(r geometry.Rect) string {
	return fmt.Sprintf("x=%g y=%g w=%g h=%g", r.X, r.Y, r.Width, r.Height)
}

func formatPages(pages []session.PageSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Pages: %d\n", len(pages))
	for _, p := range pages {
		fmt.Fprintf(&b, "%d. %gx%g pt", p.Index+1, p.Width, p.Height)
		if p.Rotation != 0 {
			fmt.Fprintf(&b, ", rotated %d (shown %gx%g)", p.Rotation, p.DisplayWidth, p.DisplayHeight)
		}
		if p.CropOffset.X != 0 || p.CropOffset.Y != 0 {
			fmt.Fprintf(&b, ", crop offset (%g, %g)", p.CropOffset.X, p.CropOffset.Y)
		}
		fmt.Fprintf(&b, ", %d field(s)\n", p.FieldCount)
	}
	return b.String()
}

func formatField(f form.Field) string {
	text := fmt.Sprintf("[%d] %q %s on page %d: %s", f.ID, f.Name, f.Kind(), f.PageIndex+1, formatRect(f.Rect))
	if f.Required {
		text += ", required"
	}
	if v, ok := f.Text(); ok && v.Default != "" {
		text += fmt.Sprintf(", default %q", v.Default)
	}
	if v, ok := f.Checkbox(); ok && v.Checked {
		text += ", checked"
	}
	return text
}

func formatFields(fields []form.Field) string {
	if len(fields) == 0 {
		return "No fields"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Fields: %d\n", len(fields))
	for _, f := range fields {
		b.WriteString(formatField(f))
		b.WriteByte('\n')
	}
	return b.String()
}

func formatViolations(title string, violations []form.Violation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%d):\n", title, len(violations))
	for i := range violations {
		v := &violations[i]
		fmt.Fprintf(&b, "• %s", v.Error())
		if len(v.Locations) > 1 {
			locs := make([]string, 0, len(v.Locations))
			for _, l := range v.Locations {
				locs = append(locs, fmt.Sprintf("page %d id %d", l.PageIndex+1, l.FieldID))
			}
			fmt.Fprintf(&b, " [%s]", strings.Join(locs, ", "))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func formatSaveResult(r *session.SaveResult) string {
	text := fmt.Sprintf("Saved %s\n", r.Destination)
	text += fmt.Sprintf("Size: %d bytes\n", r.Bytes)
	text += fmt.Sprintf("Fields: %d\n", r.FieldCount)
	if len(r.Pages) > 0 {
		pages := make([]string, len(r.Pages))
		for i, p := range r.Pages {
			pages[i] = fmt.Sprint(p)
		}
		text += fmt.Sprintf("Pages with fields: %s\n", strings.Join(pages, ", "))
	}
	if r.Verified {
		text += "Verified: output read back with every field as written\n"
	}
	return text
}

func formatReport(path string, r *verify.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Form fields in %s\n", path)
	fmt.Fprintf(&b, "Pages: %d\n", r.PageCount)
	fmt.Fprintf(&b, "NeedAppearances: %t\n", r.NeedAppearances)
	fmt.Fprintf(&b, "Fields: %d\n", len(r.Fields))
	for i, w := range r.Fields {
		fmt.Fprintf(&b, "%d. %q %s on page %d: %s", i+1, w.Name, w.Kind(), w.Page, formatRect(w.Rect))
		if w.Required() {
			b.WriteString(", required")
		}
		if w.Value != "" {
			fmt.Fprintf(&b, ", value %q", w.Value)
		}
		if w.AppearanceState != "" {
			fmt.Fprintf(&b, ", state %s", w.AppearanceState)
		}
		if !w.HasAppearance {
			b.WriteString(", no appearance")
		}
		b.WriteByte('\n')
	}
	return b.String()
}
