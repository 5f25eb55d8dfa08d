package mcp

import (
	"context"
	"fmt"
	"log"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/afero"

	"github.com/a3tai/mcp-pdf-forms/internal/config"
	"github.com/a3tai/mcp-pdf-forms/internal/descriptions"
	"github.com/a3tai/mcp-pdf-forms/internal/pdf/security"
	"github.com/a3tai/mcp-pdf-forms/internal/session"
)

// Server represents the MCP server instance
type Server struct {
	config    *config.Config
	fs        afero.Fs
	paths     *security.PathValidator
	sessions  *session.Manager
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP server instance serving files from fs, confined
// to the configured workspace directory.
func NewServer(cfg *config.Config, fs afero.Fs) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if fs == nil {
		return nil, fmt.Errorf("filesystem cannot be nil")
	}
	paths, err := security.NewPathValidator(cfg.Directory)
	if err != nil {
		return nil, fmt.Errorf("invalid workspace: %w", err)
	}

	mcpServer := server.NewMCPServer(
		cfg.ServerName,
		cfg.Version,
		server.WithToolCapabilities(false), // We don't support dynamic tool capabilities
		server.WithRecovery(),
	)

	s := &Server{
		config:    cfg,
		fs:        fs,
		paths:     paths,
		sessions:  session.NewManager(fs, cfg.SessionOptions(), cfg.MaxSessions),
		mcpServer: mcpServer,
	}

	s.registerTools()

	return s, nil
}

// Sessions returns the session manager.
func (s *Server) Sessions() *session.Manager { return s.sessions }

func sessionArg() mcp.ToolOption {
	return mcp.WithString("session",
		mcp.Required(),
		mcp.Description("Session ID returned by form_open"),
	)
}

func pageArg() mcp.ToolOption {
	return mcp.WithNumber("page",
		mcp.Required(),
		mcp.Description("1-based page number"),
	)
}

func fieldArg() mcp.ToolOption {
	return mcp.WithNumber("field_id",
		mcp.Required(),
		mcp.Description("Field ID as listed by form_fields"),
	)
}

func kindArg() mcp.ToolOption {
	return mcp.WithString("kind",
		mcp.Required(),
		mcp.Description("Field kind"),
		mcp.Enum("text", "checkbox"),
	)
}

func (s *Server) tool(name string, opts ...mcp.ToolOption) mcp.Tool {
	return mcp.NewTool(name, append([]mcp.ToolOption{
		mcp.WithDescription(descriptions.GetToolDescription(name)),
	}, opts...)...)
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	s.mcpServer.AddTool(s.tool("form_open",
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("PDF path, absolute or relative to the workspace"),
		),
	), s.handleOpen)

	s.mcpServer.AddTool(s.tool("form_pages", sessionArg()), s.handlePages)

	s.mcpServer.AddTool(s.tool("form_fields",
		sessionArg(),
		mcp.WithNumber("page", mcp.Description("1-based page number; all pages when omitted")),
	), s.handleFields)

	s.mcpServer.AddTool(s.tool("form_place_field",
		sessionArg(), pageArg(), kindArg(),
		mcp.WithNumber("x", mcp.Required(), mcp.Description("Click x in device pixels from the left edge of the displayed page")),
		mcp.WithNumber("y", mcp.Required(), mcp.Description("Click y in device pixels from the top edge of the displayed page")),
		mcp.WithNumber("zoom", mcp.Description("Preview zoom, 1 pixel = 1 point at zoom 1"), mcp.DefaultNumber(1)),
	), s.handlePlaceField)

	s.mcpServer.AddTool(s.tool("form_add_field",
		sessionArg(), pageArg(), kindArg(),
		mcp.WithString("name", mcp.Required(), mcp.Description("Unique field name")),
		mcp.WithNumber("x", mcp.Required(), mcp.Description("Lower-left x in points, relative to the crop box")),
		mcp.WithNumber("y", mcp.Required(), mcp.Description("Lower-left y in points, relative to the crop box")),
		mcp.WithNumber("width", mcp.Required(), mcp.Description("Width in points")),
		mcp.WithNumber("height", mcp.Required(), mcp.Description("Height in points")),
		mcp.WithBoolean("required", mcp.Description("Mark the field required")),
		mcp.WithString("default", mcp.Description("Default value for text fields")),
		mcp.WithBoolean("checked", mcp.Description("Initial state for checkboxes")),
	), s.handleAddField)

	s.mcpServer.AddTool(s.tool("form_move_field",
		sessionArg(), pageArg(), fieldArg(),
		mcp.WithNumber("x", mcp.Required(), mcp.Description("New lower-left x in points")),
		mcp.WithNumber("y", mcp.Required(), mcp.Description("New lower-left y in points")),
	), s.handleMoveField)

	s.mcpServer.AddTool(s.tool("form_resize_field",
		sessionArg(), pageArg(), fieldArg(),
		mcp.WithNumber("width", mcp.Required(), mcp.Description("New width in points")),
		mcp.WithNumber("height", mcp.Required(), mcp.Description("New height in points")),
	), s.handleResizeField)

	s.mcpServer.AddTool(s.tool("form_rename_field",
		sessionArg(), pageArg(), fieldArg(),
		mcp.WithString("name", mcp.Required(), mcp.Description("New unique name")),
	), s.handleRenameField)

	s.mcpServer.AddTool(s.tool("form_remove_field", sessionArg(), pageArg(), fieldArg()), s.handleRemoveField)

	s.mcpServer.AddTool(s.tool("form_set_property",
		sessionArg(), pageArg(), fieldArg(),
		mcp.WithString("property",
			mcp.Required(),
			mcp.Description("Property to set"),
			mcp.Enum("required", "default_value", "checked"),
		),
		mcp.WithString("value", mcp.Required(), mcp.Description("New value: true/false, or text for default_value")),
	), s.handleSetProperty)

	s.mcpServer.AddTool(s.tool("form_duplicate_field", sessionArg(), pageArg(), fieldArg()), s.handleDuplicateField)
	s.mcpServer.AddTool(s.tool("form_undo", sessionArg()), s.handleUndo)
	s.mcpServer.AddTool(s.tool("form_redo", sessionArg()), s.handleRedo)
	s.mcpServer.AddTool(s.tool("form_validate", sessionArg()), s.handleValidate)

	s.mcpServer.AddTool(s.tool("form_save",
		sessionArg(),
		mcp.WithString("destination", mcp.Required(), mcp.Description("Output path inside the workspace")),
		mcp.WithBoolean("overwrite", mcp.Description("Replace an existing destination"), mcp.DefaultBool(false)),
	), s.handleSave)

	s.mcpServer.AddTool(s.tool("form_export_layout",
		sessionArg(),
		mcp.WithString("path", mcp.Description("Write the YAML layout to this workspace file instead of returning it")),
	), s.handleExportLayout)

	s.mcpServer.AddTool(s.tool("form_import_layout",
		sessionArg(),
		mcp.WithString("path", mcp.Description("Workspace file holding a YAML layout")),
		mcp.WithString("layout", mcp.Description("YAML layout text, used when path is empty")),
		mcp.WithString("mode",
			mcp.Description("How invalid fields are treated"),
			mcp.Enum("strict", "lenient"),
			mcp.DefaultString("strict"),
		),
	), s.handleImportLayout)

	s.mcpServer.AddTool(s.tool("form_inspect",
		mcp.WithString("path", mcp.Required(), mcp.Description("PDF path inside the workspace")),
	), s.handleInspect)

	s.mcpServer.AddTool(s.tool("form_close", sessionArg()), s.handleClose)
}

// Run starts the MCP server in the configured mode
func (s *Server) Run(ctx context.Context) error {
	defer func() {
		if n := s.sessions.CloseAll(); n > 0 {
			log.Printf("Closed %d open session(s)", n)
		}
	}()
	if s.config.IsServerMode() {
		return s.runServerMode(ctx)
	}
	return s.runStdioMode(ctx)
}

// runStdioMode runs the server in stdio mode
func (s *Server) runStdioMode(_ context.Context) error {
	if s.config.IsDebug() {
		log.Printf("Starting PDF forms MCP server in stdio mode")
		log.Printf("Workspace: %s", s.paths.Directory())
	}

	if err := server.ServeStdio(s.mcpServer); err != nil {
		return fmt.Errorf("failed to serve stdio: %w", err)
	}
	return nil
}
