package mcp

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/a3tai/mcp-pdf-forms/internal/form"
	"github.com/a3tai/mcp-pdf-forms/internal/geometry"
	"github.com/a3tai/mcp-pdf-forms/internal/layout"
	"github.com/a3tai/mcp-pdf-forms/internal/pdf/verify"
	"github.com/a3tai/mcp-pdf-forms/internal/session"
)

// toolError turns err into a tool-level error result. Violations are listed
// one per line so the caller can fix them.
func toolError(err error) *mcp.CallToolResult {
	var ve *session.ValidationError
	if errors.As(err, &ve) {
		return mcp.NewToolResultError(formatViolations("Cannot save, the form has problems", ve.Violations))
	}
	return mcp.NewToolResultError(err.Error())
}

func (s *Server) session(request mcp.CallToolRequest) (*session.Session, error) {
	id, err := request.RequireString("session")
	if err != nil {
		return nil, err
	}
	return s.sessions.Get(id)
}

// pageIndex reads the 1-based page argument as a 0-based index.
func pageIndex(request mcp.CallToolRequest) (int, error) {
	page, err := request.RequireInt("page")
	if err != nil {
		return 0, err
	}
	if page < 1 {
		return 0, fmt.Errorf("page must be 1 or greater, got %d", page)
	}
	return page - 1, nil
}

func fieldID(request mcp.CallToolRequest) (form.FieldID, error) {
	id, err := request.RequireInt("field_id")
	if err != nil {
		return 0, err
	}
	if id < 1 {
		return 0, fmt.Errorf("field_id must be positive, got %d", id)
	}
	return form.FieldID(id), nil
}

// fieldTarget reads the session, page and field arguments shared by the edit tools.
func (s *Server) fieldTarget(request mcp.CallToolRequest) (*session.Session, int, form.FieldID, error) {
	sess, err := s.session(request)
	if err != nil {
		return nil, 0, 0, err
	}
	page, err := pageIndex(request)
	if err != nil {
		return nil, 0, 0, err
	}
	id, err := fieldID(request)
	if err != nil {
		return nil, 0, 0, err
	}
	return sess, page, id, nil
}

func (s *Server) handleOpen(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	path, err = s.paths.NormalizePath(path)
	if err != nil {
		return toolError(err), nil
	}

	id, sess, err := s.sessions.Open(path)
	if err != nil {
		return toolError(err), nil
	}
	pages, err := sess.Pages()
	if err != nil {
		return toolError(err), nil
	}

	text := fmt.Sprintf("Opened %s\nSession: %s\n\n", path, id)
	text += formatPages(pages)
	return mcp.NewToolResultText(text), nil
}

func (s *Server) handlePages(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.session(request)
	if err != nil {
		return toolError(err), nil
	}
	pages, err := sess.Pages()
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(formatPages(pages)), nil
}

func (s *Server) handleFields(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.session(request)
	if err != nil {
		return toolError(err), nil
	}

	var fields []form.Field
	if page := request.GetInt("page", 0); page > 0 {
		fields, err = sess.Fields(page - 1)
	} else {
		fields, err = sess.AllFields()
	}
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(formatFields(fields)), nil
}

func (s *Server) handlePlaceField(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.session(request)
	if err != nil {
		return toolError(err), nil
	}
	page, err := pageIndex(request)
	if err != nil {
		return toolError(err), nil
	}
	kind, err := form.ParseKind(request.GetString("kind", ""))
	if err != nil {
		return toolError(err), nil
	}
	x, err := request.RequireFloat("x")
	if err != nil {
		return toolError(err), nil
	}
	y, err := request.RequireFloat("y")
	if err != nil {
		return toolError(err), nil
	}

	f, err := sess.PlaceAt(page, kind, geometry.Point{X: x, Y: y}, request.GetFloat("zoom", 1))
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText("Placed field\n" + formatField(f)), nil
}

func (s *Server) handleAddField(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.session(request)
	if err != nil {
		return toolError(err), nil
	}
	page, err := pageIndex(request)
	if err != nil {
		return toolError(err), nil
	}
	kind, err := form.ParseKind(request.GetString("kind", ""))
	if err != nil {
		return toolError(err), nil
	}
	name, err := request.RequireString("name")
	if err != nil {
		return toolError(err), nil
	}
	var rect geometry.Rect
	for key, dst := range map[string]*float64{"x": &rect.X, "y": &rect.Y, "width": &rect.Width, "height": &rect.Height} {
		if *dst, err = request.RequireFloat(key); err != nil {
			return toolError(err), nil
		}
	}

	args := request.GetArguments()
	spec := form.FieldSpec{Name: name, Rect: rect, Required: request.GetBool("required", false)}
	switch kind {
	case form.KindText:
		if _, ok := args["checked"]; ok {
			return mcp.NewToolResultError("checked only applies to checkboxes"), nil
		}
		spec.Value = form.TextValue{Default: request.GetString("default", "")}
	case form.KindCheckbox:
		if _, ok := args["default"]; ok {
			return mcp.NewToolResultError("default only applies to text fields"), nil
		}
		spec.Value = form.CheckboxValue{Checked: request.GetBool("checked", false)}
	}

	f, err := sess.AddField(page, spec)
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText("Added field\n" + formatField(f)), nil
}

func (s *Server) handleMoveField(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, page, id, err := s.fieldTarget(request)
	if err != nil {
		return toolError(err), nil
	}
	x, err := request.RequireFloat("x")
	if err != nil {
		return toolError(err), nil
	}
	y, err := request.RequireFloat("y")
	if err != nil {
		return toolError(err), nil
	}
	f, err := sess.MoveField(page, id, geometry.Point{X: x, Y: y})
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText("Moved field\n" + formatField(f)), nil
}

func (s *Server) handleResizeField(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, page, id, err := s.fieldTarget(request)
	if err != nil {
		return toolError(err), nil
	}
	w, err := request.RequireFloat("width")
	if err != nil {
		return toolError(err), nil
	}
	h, err := request.RequireFloat("height")
	if err != nil {
		return toolError(err), nil
	}
	f, err := sess.ResizeField(page, id, geometry.Size{Width: w, Height: h})
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText("Resized field\n" + formatField(f)), nil
}

func (s *Server) handleRenameField(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, page, id, err := s.fieldTarget(request)
	if err != nil {
		return toolError(err), nil
	}
	name, err := request.RequireString("name")
	if err != nil {
		return toolError(err), nil
	}
	f, err := sess.RenameField(page, id, name)
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText("Renamed field\n" + formatField(f)), nil
}

func (s *Server) handleRemoveField(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, page, id, err := s.fieldTarget(request)
	if err != nil {
		return toolError(err), nil
	}
	f, err := sess.RemoveField(page, id)
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Removed field %q (id %d) from page %d", f.Name, f.ID, f.PageIndex+1)), nil
}

func (s *Server) handleSetProperty(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, page, id, err := s.fieldTarget(request)
	if err != nil {
		return toolError(err), nil
	}
	prop, err := form.ParseProperty(request.GetString("property", ""))
	if err != nil {
		return toolError(err), nil
	}
	raw, err := request.RequireString("value")
	if err != nil {
		return toolError(err), nil
	}

	var value any = raw
	if prop != form.PropDefaultValue {
		b, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("%s takes true or false, got %q", prop, raw)), nil
		}
		value = b
	}

	f, err := sess.SetProperty(page, id, prop, value)
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Set %s\n%s", prop, formatField(f))), nil
}

func (s *Server) handleDuplicateField(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, page, id, err := s.fieldTarget(request)
	if err != nil {
		return toolError(err), nil
	}
	f, err := sess.DuplicateField(page, id)
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText("Duplicated field\n" + formatField(f)), nil
}

func (s *Server) handleUndo(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.session(request)
	if err != nil {
		return toolError(err), nil
	}
	label, err := sess.Undo()
	if err != nil {
		return toolError(err), nil
	}
	undo, redo := sess.HistoryDepth()
	return mcp.NewToolResultText(fmt.Sprintf("Undid: %s (%d more to undo, %d to redo)", label, undo, redo)), nil
}

func (s *Server) handleRedo(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.session(request)
	if err != nil {
		return toolError(err), nil
	}
	label, err := sess.Redo()
	if err != nil {
		return toolError(err), nil
	}
	undo, redo := sess.HistoryDepth()
	return mcp.NewToolResultText(fmt.Sprintf("Redid: %s (%d to undo, %d more to redo)", label, undo, redo)), nil
}

func (s *Server) handleValidate(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.session(request)
	if err != nil {
		return toolError(err), nil
	}
	violations, err := sess.Validate()
	if err != nil {
		return toolError(err), nil
	}
	if len(violations) == 0 {
		return mcp.NewToolResultText("Form is valid"), nil
	}
	return mcp.NewToolResultText(formatViolations("Form has problems", violations)), nil
}

func (s *Server) handleSave(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.session(request)
	if err != nil {
		return toolError(err), nil
	}
	dst, err := request.RequireString("destination")
	if err != nil {
		return toolError(err), nil
	}
	dst, err = s.paths.NormalizePath(dst)
	if err != nil {
		return toolError(err), nil
	}

	result, err := sess.Save(ctx, dst, request.GetBool("overwrite", false))
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(formatSaveResult(result)), nil
}

func (s *Server) handleExportLayout(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.session(request)
	if err != nil {
		return toolError(err), nil
	}
	l, err := sess.ExportLayout()
	if err != nil {
		return toolError(err), nil
	}

	if path := request.GetString("path", ""); path != "" {
		path, err = s.paths.NormalizePath(path)
		if err != nil {
			return toolError(err), nil
		}
		if err := layout.WriteFile(s.fs, sess.Path(), path, l); err != nil {
			return toolError(err), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Wrote layout with %d page(s) of fields to %s", len(l.Pages), path)), nil
	}

	data, err := l.Marshal()
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) handleImportLayout(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.session(request)
	if err != nil {
		return toolError(err), nil
	}

	var mode layout.Mode
	switch m := request.GetString("mode", "strict"); m {
	case "strict", "":
		mode = layout.Strict
	case "lenient":
		mode = layout.Lenient
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unknown mode %q (must be strict or lenient)", m)), nil
	}

	var l *layout.Layout
	if path := request.GetString("path", ""); path != "" {
		path, err = s.paths.NormalizePath(path)
		if err != nil {
			return toolError(err), nil
		}
		l, err = layout.ReadFile(s.fs, path)
	} else if text := request.GetString("layout", ""); text != "" {
		l, err = layout.Parse([]byte(text))
	} else {
		return mcp.NewToolResultError("either path or layout is required"), nil
	}
	if err != nil {
		return toolError(err), nil
	}

	violations, err := sess.ImportLayout(l, mode)
	if err != nil {
		return toolError(err), nil
	}
	fields, err := sess.AllFields()
	if err != nil {
		return toolError(err), nil
	}
	text := fmt.Sprintf("Imported %d field(s)\n", len(fields))
	if len(violations) > 0 {
		text += "\n" + formatViolations("Imported fields have problems", violations)
	}
	return mcp.NewToolResultText(text), nil
}

func (s *Server) handleInspect(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return toolError(err), nil
	}
	path, err = s.paths.NormalizePath(path)
	if err != nil {
		return toolError(err), nil
	}
	report, err := verify.ReadFile(s.fs, path)
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(formatReport(path, report)), nil
}

func (s *Server) handleClose(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("session")
	if err != nil {
		return toolError(err), nil
	}
	if err := s.sessions.Close(id); err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Closed session %s", id)), nil
}
