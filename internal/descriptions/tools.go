package descriptions

import "sort"

// Tool descriptions with practical examples and use cases

const (
	// Session lifecycle
	FormOpenDescription = `Open a PDF from the workspace and start an editing session for adding form fields.

**When to use:** First step of every form authoring task. Returns the session ID used by every other form_* tool, plus the page list.

**Examples:**
• "Open contracts/lease.pdf so I can add signature and date fields"
• "Start editing intake-form.pdf"

**Best practices:** Encrypted PDFs are rejected. The source file is never modified; fields are written to a new file by form_save.`

	FormPagesDescription = `List the pages of an open session with size, rotation, crop offset and field count.

**When to use:** Before placing fields, to learn page sizes in points and which pages are rotated.

**Best practices:** Width and height are the unrotated crop box. display_width and display_height are what a viewer shows; use them for click coordinates passed to form_place_field.`

	FormFieldsDescription = `List the form fields defined in a session, for one page or all pages.

**When to use:** To find field IDs before moving, renaming or removing fields, or to review the current layout.

**Best practices:** Field IDs are stable for the life of the session, including across undo and redo.`

	// Field editing
	FormPlaceFieldDescription = `Place a field of the default size where the user clicked in a page preview.

**When to use:** Interactive placement from a rendered page. Coordinates are device pixels, origin at the top-left of the displayed page, at the given zoom.

**Examples:**
• "Put a text field at (120, 340) on page 2 of the preview shown at zoom 1.5"
• "Add a checkbox where I clicked on page 1"

**Best practices:** The field gets a generated name (text_1, checkbox_1, ...). Rotated pages are handled; the field appears upright as displayed. Fields that would overflow the page are moved inside it.`

	FormAddFieldDescription = `Add a fully specified field in PDF points.

**When to use:** Programmatic placement when exact coordinates are known, e.g. from a layout you computed.

**Examples:**
• "Add a required text field named 'email' at x=72 y=600, 200x20 on page 1"
• "Add a checked checkbox named 'agree' at x=72 y=100 on page 3"

**Best practices:** x and y are the lower-left corner relative to the crop box, in the unrotated page frame. Names must be unique across the whole document.`

	FormMoveFieldDescription = `Move a field so its lower-left corner sits at a new position in PDF points.

**Best practices:** The move is rejected if the field would leave the page. Undo with form_undo.`

	FormResizeFieldDescription = `Change a field's width and height in PDF points, keeping its lower-left corner.

**Best practices:** Sizes below the configured minimum, or that would leave the page, are rejected.`

	FormRenameFieldDescription = `Rename a field.

**Best practices:** Names must be non-empty and unique across all pages. Dots are allowed and are written literally.`

	FormRemoveFieldDescription = `Remove a field from the session. Undo restores it with the same ID and position.`

	FormSetPropertyDescription = `Set a field property.

**Properties:**
• required (true/false): any field
• default_value (text): text fields only, the initial value shown
• checked (true/false): checkboxes only, the initial state

**Examples:**
• "Make field 3 on page 1 required"
• "Set the default of 'country' to 'Canada'"`

	FormDuplicateFieldDescription = `Copy a field next to the original under a fresh generated name.

**When to use:** Building rows of similar fields quickly. The copy is nudged down and right and kept inside the page.`

	FormUndoDescription = `Undo the last field edit in the session. Returns what was undone.`

	FormRedoDescription = `Redo the last undone field edit. Any new edit clears the redo history.`

	// Checking and output
	FormValidateDescription = `Check every field against the document rules: unique names, inside the page, above minimum size, value matching the field kind.

**When to use:** Before saving, or after importing a layout in lenient mode. form_save runs the same check and refuses to write while violations exist.`

	FormSaveDescription = `Write the PDF with all fields as an incremental update to a new file.

**When to use:** When the layout is complete. The original bytes are preserved unchanged at the start of the output, so existing signatures on earlier revisions stay intact.

**Examples:**
• "Save to lease-fillable.pdf"
• "Save over out/form.pdf, replacing the previous output"

**Best practices:** The destination must differ from the source. The output is re-read before it is written; any mismatch fails the save and nothing is written.`

	FormExportLayoutDescription = `Export the session's fields as a YAML layout, returned as text or written to a workspace file. The file may not be the open PDF or any other .pdf path.

**When to use:** To keep a reusable field layout for a family of documents, or to review fields in bulk.`

	FormImportLayoutDescription = `Replace all fields in a session with a YAML layout from text or a workspace file.

**Modes:**
• strict (default): the first invalid field aborts the import and the session is left unchanged
• lenient: every field is taken and violations are reported for fixing

**Best practices:** The layout's page count must match the open document. Import clears the undo history.`

	FormInspectDescription = `Read the form fields of any PDF in the workspace with an independent parser.

**When to use:** To confirm a saved file has the expected fields, values and appearances, or to look at an existing form.`

	FormCloseDescription = `Close an editing session and release its memory. Unsaved fields are discarded.`
)

// ToolDescriptions maps tool names to their descriptions
var ToolDescriptions = map[string]string{
	"form_open":            FormOpenDescription,
	"form_pages":           FormPagesDescription,
	"form_fields":          FormFieldsDescription,
	"form_place_field":     FormPlaceFieldDescription,
	"form_add_field":       FormAddFieldDescription,
	"form_move_field":      FormMoveFieldDescription,
	"form_resize_field":    FormResizeFieldDescription,
	"form_rename_field":    FormRenameFieldDescription,
	"form_remove_field":    FormRemoveFieldDescription,
	"form_set_property":    FormSetPropertyDescription,
	"form_duplicate_field": FormDuplicateFieldDescription,
	"form_undo":            FormUndoDescription,
	"form_redo":            FormRedoDescription,
	"form_validate":        FormValidateDescription,
	"form_save":            FormSaveDescription,
	"form_export_layout":   FormExportLayoutDescription,
	"form_import_layout":   FormImportLayoutDescription,
	"form_inspect":         FormInspectDescription,
	"form_close":           FormCloseDescription,
}

// GetToolDescription returns the description for a tool
func GetToolDescription(toolName string) string {
	if desc, exists := ToolDescriptions[toolName]; exists {
		return desc
	}
	return "Tool description not available"
}

// GetAllToolNames returns every tool name in sorted order
func GetAllToolNames() []string {
	names := make([]string, 0, len(ToolDescriptions))
	for name := range ToolDescriptions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
