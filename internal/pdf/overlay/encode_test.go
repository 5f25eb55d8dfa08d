package overlay

import (
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

func TestTextString(t *testing.T) {
	tests := []struct {
		in   string
		want types.HexLiteral
	}{
		{"abc", "616263"},
		{"a(b)", "61286229"},
		{"", ""},
		{"é", "feff00e9"},
		{"tab\t", "feff0074006100620009"},
	}
	for _, tt := range tests {
		got, err := textString(tt.in)
		if err != nil {
			t.Fatalf("textString(%q): %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("textString(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestShowText(t *testing.T) {
	tests := map[string]string{
		"plain":      "(plain)",
		"a(b)c\\":    `(a\(b\)c\\)`,
		"line\nnext": `(line\nnext)`,
		"café":       "(caf\xe9)",
		"日本":         "(??)",
	}
	for in, want := range tests {
		if got := showText(in); got != want {
			t.Errorf("showText(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNum(t *testing.T) {
	tests := map[float64]string{
		0:        "0",
		12:       "12",
		-0.00001: "0",
		1.5:      "1.5",
		2.123456: "2.1235",
		-3.25:    "-3.25",
	}
	for in, want := range tests {
		if got := num(in); got != want {
			t.Errorf("num(%v) = %q, want %q", in, got, want)
		}
	}
}
