package security

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
)

func TestNewPathValidator(t *testing.T) {
	if _, err := NewPathValidator(""); err == nil {
		t.Error("expected error for empty directory")
	}

	v, err := NewPathValidator("/non/existent/path")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if v.Directory() != "/non/existent/path" {
		t.Errorf("Directory() = %q", v.Directory())
	}
}

func TestPathValidator_NormalizePath(t *testing.T) {
	tempDir := t.TempDir()
	v, err := NewPathValidator(tempDir)
	if err != nil {
		t.Fatalf("NewPathValidator: %v", err)
	}

	tests := []struct {
		name    string
		path    string
		want    string
		outside bool
		wantErr bool
	}{
		{name: "relative", path: "a.pdf", want: filepath.Join(tempDir, "a.pdf")},
		{name: "nested relative", path: "sub/b.pdf", want: filepath.Join(tempDir, "sub", "b.pdf")},
		{name: "absolute inside", path: filepath.Join(tempDir, "c.pdf"), want: filepath.Join(tempDir, "c.pdf")},
		{name: "null bytes stripped", path: "d\x00.pdf", want: filepath.Join(tempDir, "d.pdf")},
		{name: "traversal", path: "../escape.pdf", outside: true, wantErr: true},
		{name: "absolute outside", path: "/etc/passwd", outside: true, wantErr: true},
		{name: "prefix sibling", path: tempDir + "-other/x.pdf", outside: true, wantErr: true},
		{name: "empty", path: "  ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := v.NormalizePath(tt.path)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				if tt.outside && !errors.Is(err, ErrOutsideWorkspace) {
					t.Errorf("error %v is not ErrOutsideWorkspace", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("NormalizePath(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestPathValidator_SymlinkEscape(t *testing.T) {
	tempDir := t.TempDir()
	outside := t.TempDir()
	link := filepath.Join(tempDir, "link")
	if err := os.Symlink(outside, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	v, err := NewPathValidator(tempDir)
	if err != nil {
		t.Fatalf("NewPathValidator: %v", err)
	}
	if v.IsPathWithinDirectory(filepath.Join(link, "new.pdf")) {
		t.Error("path through a symlink leaving the workspace was accepted")
	}
	if !v.IsPathWithinDirectory(filepath.Join(tempDir, "missing", "deeper", "new.pdf")) {
		t.Error("non-existent path inside the workspace was rejected")
	}
}

func TestSameFile(t *testing.T) {
	t.Run("os", func(t *testing.T) {
		dir := t.TempDir()
		a := filepath.Join(dir, "a.pdf")
		if err := os.WriteFile(a, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
		link := filepath.Join(dir, "b.pdf")
		if err := os.Link(a, link); err != nil {
			t.Skipf("hard links unavailable: %v", err)
		}
		fs := afero.NewOsFs()

		same, err := SameFile(fs, a, filepath.Join(dir, ".", "a.pdf"))
		if err != nil || !same {
			t.Errorf("cleaned path: same=%v err=%v", same, err)
		}
		same, err = SameFile(fs, a, link)
		if err != nil || !same {
			t.Errorf("hard link: same=%v err=%v", same, err)
		}
		same, err = SameFile(fs, a, filepath.Join(dir, "missing.pdf"))
		if err != nil || same {
			t.Errorf("missing destination: same=%v err=%v", same, err)
		}
	})

	t.Run("memory", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		_ = afero.WriteFile(fs, "/w/a.pdf", []byte("x"), 0o644)
		_ = afero.WriteFile(fs, "/w/b.pdf", []byte("x"), 0o644)

		if same, _ := SameFile(fs, "/w/a.pdf", "/w/sub/../a.pdf"); !same {
			t.Error("expected equal cleaned paths to match")
		}
		if same, _ := SameFile(fs, "/w/a.pdf", "/w/b.pdf"); same {
			t.Error("distinct files reported as the same")
		}
	})
}
