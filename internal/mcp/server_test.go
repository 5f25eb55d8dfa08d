package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/spf13/afero"

	"github.com/a3tai/mcp-pdf-forms/internal/config"
	"github.com/a3tai/mcp-pdf-forms/internal/descriptions"
)

func testConfig(dir string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Directory = dir
	cfg.ServerName = "test-server"
	cfg.MaxSessions = 4
	return cfg
}

func TestNewServer(t *testing.T) {
	tempDir := t.TempDir()
	fs := afero.NewOsFs()

	tests := []struct {
		name        string
		config      *config.Config
		fs          afero.Fs
		expectError bool
	}{
		{"valid stdio mode config", testConfig(tempDir), fs, false},
		{"valid server mode config", func() *config.Config {
			cfg := testConfig(tempDir)
			cfg.Mode = config.ModeServer
			return cfg
		}(), fs, false},
		{"nil config", nil, fs, true},
		{"nil filesystem", testConfig(tempDir), nil, true},
		{"empty workspace", testConfig(""), fs, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, err := NewServer(tt.config, tt.fs)

			if tt.expectError {
				if err == nil {
					t.Errorf("expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if server.config != tt.config {
				t.Error("server config not set correctly")
			}
			if server.mcpServer == nil {
				t.Error("mcpServer should be initialized")
			}
			if server.Sessions() == nil {
				t.Error("session manager should be initialized")
			}
		})
	}
}

func TestServerToolsRegistration(t *testing.T) {
	server, err := NewServer(testConfig(t.TempDir()), afero.NewOsFs())
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}

	msg := server.mcpServer.HandleMessage(context.Background(),
		json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	raw, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("failed to marshal response: %v", err)
	}
	var resp struct {
		Result struct {
			Tools []mcp.Tool `json:"tools"`
		} `json:"result"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		t.Fatalf("failed to decode tools/list response %s: %v", raw, err)
	}

	got := make(map[string]mcp.Tool)
	for _, tool := range resp.Result.Tools {
		got[tool.Name] = tool
	}
	for _, name := range descriptions.GetAllToolNames() {
		tool, ok := got[name]
		if !ok {
			t.Errorf("tool %s not registered", name)
			continue
		}
		if tool.Description != descriptions.GetToolDescription(name) {
			t.Errorf("tool %s has wrong description", name)
		}
	}
	if len(got) != len(descriptions.ToolDescriptions) {
		t.Errorf("registered %d tools, want %d", len(got), len(descriptions.ToolDescriptions))
	}
}

func TestServer_Healthz(t *testing.T) {
	server, err := NewServer(testConfig(t.TempDir()), afero.NewOsFs())
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}

	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("GET /healthz status = %d, want 200", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body["status"] != "ok" || body["name"] != "test-server" {
		t.Errorf("unexpected health body: %v", body)
	}
}

func TestServer_StreamableInitialize(t *testing.T) {
	server, err := NewServer(testConfig(t.TempDir()), afero.NewOsFs())
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}

	body := `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-03-26",` +
		`"capabilities":{},"clientInfo":{"name":"test","version":"1"}}}`
	req := httptest.NewRequest(http.MethodPost, mcpEndpoint, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("POST %s status = %d, body %s", mcpEndpoint, rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "test-server") {
		t.Errorf("initialize response should name the server: %s", rec.Body.String())
	}
}

func TestServer_Run_ServerMode(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.Mode = config.ModeServer
	cfg.Port = 0
	server, err := NewServer(cfg, afero.NewOsFs())
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v, want nil after cancellation", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after cancellation")
	}
}

// Helper function to extract text from a CallToolResult
func extractTextFromResult(result *mcp.CallToolResult) string {
	if result == nil || len(result.Content) == 0 {
		return ""
	}

	for _, content := range result.Content {
		if textContent, ok := content.(mcp.TextContent); ok {
			return textContent.Text
		}
		if textContentPtr, ok := content.(*mcp.TextContent); ok {
			return textContentPtr.Text
		}
	}

	return ""
}
