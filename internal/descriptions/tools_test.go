package descriptions

import (
	"strings"
	"testing"
)

func TestGetToolDescription(t *testing.T) {
	if got := GetToolDescription("form_save"); !strings.Contains(got, "incremental update") {
		t.Errorf("GetToolDescription(form_save) = %q", got)
	}
	if got := GetToolDescription("pdf_read_file"); got != "Tool description not available" {
		t.Errorf("GetToolDescription(unknown) = %q", got)
	}
}

func TestGetAllToolNames(t *testing.T) {
	names := GetAllToolNames()
	if len(names) != 19 {
		t.Fatalf("GetAllToolNames() returned %d names, want 19", len(names))
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] >= names[i] {
			t.Errorf("names not sorted: %q before %q", names[i-1], names[i])
		}
	}
	for _, name := range names {
		if !strings.HasPrefix(name, "form_") {
			t.Errorf("unexpected tool name %q", name)
		}
		if strings.TrimSpace(ToolDescriptions[name]) == "" {
			t.Errorf("empty description for %q", name)
		}
	}
}
