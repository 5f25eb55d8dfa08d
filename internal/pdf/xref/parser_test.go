package xref

import (
	"fmt"
	"strings"
	"testing"
)

// buildTablePDF returns a minimal single-page PDF with a classic xref table.
func buildTablePDF(trailerExtra string) string {
	pdf := "%PDF-1.7\n"
	obj1 := len(pdf)
	pdf += "1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n"
	obj2 := len(pdf)
	pdf += "2 0 obj\n<< /Type /Pages /Kids [3 0 R] /Count 1 >>\nendobj\n"
	obj3 := len(pdf)
	pdf += "3 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>\nendobj\n"

	xrefStart := len(pdf)
	pdf += "xref\n0 4\n0000000000 65535 f \n"
	pdf += fmt.Sprintf("%010d 00000 n \n%010d 00000 n \n%010d 00000 n \n", obj1, obj2, obj3)
	pdf += "trailer\n<< /Size 4 /Root 1 0 R /ID [<0102> <0304>]" + trailerExtra + " >>\n"
	pdf += fmt.Sprintf("startxref\n%d\n%%%%EOF\n", xrefStart)
	return pdf
}

// buildStreamPDF returns a minimal PDF whose xref is an uncompressed stream.
func buildStreamPDF() (string, int) {
	pdf := "%PDF-1.7\n"
	offsets := []int{}
	offsets = append(offsets, len(pdf))
	pdf += "1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n"
	offsets = append(offsets, len(pdf))
	pdf += "2 0 obj\n<< /Type /Pages /Kids [3 0 R] /Count 1 >>\nendobj\n"
	offsets = append(offsets, len(pdf))
	pdf += "3 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>\nendobj\n"

	xrefStart := len(pdf)
	var data []byte
	data = append(data, 0, 0, 0, 0, 0, 0xff, 0xff)
	for _, off := range append(offsets, xrefStart) {
		data = append(data, 1, byte(off>>24), byte(off>>16), byte(off>>8), byte(off), 0, 0)
	}
	pdf += fmt.Sprintf("4 0 obj\n<< /Type /XRef /Size 5 /W [1 4 2] /Root 1 0 R /DecodeParms << /Columns 7 >> /Length %d >>\nstream\n", len(data))
	pdf += string(data) + "\nendstream\nendobj\n"
	pdf += fmt.Sprintf("startxref\n%d\n%%%%EOF\n", xrefStart)
	return pdf, xrefStart
}

func TestReadTail_Table(t *testing.T) {
	pdf := buildTablePDF(" /Info 1 0 R")
	tail, err := ReadTail(strings.NewReader(pdf), int64(len(pdf)))
	if err != nil {
		t.Fatalf("ReadTail failed: %v", err)
	}

	if tail.Kind != KindTable {
		t.Errorf("Kind = %v, want table", tail.Kind)
	}
	if want := int64(strings.Index(pdf, "xref")); tail.StartXRef != want {
		t.Errorf("StartXRef = %d, want %d", tail.StartXRef, want)
	}
	if tail.Trailer.Size != 4 {
		t.Errorf("Size = %d, want 4", tail.Trailer.Size)
	}
	if tail.Trailer.Root == nil || tail.Trailer.Root.String() != "1 0 R" {
		t.Errorf("Root = %v, want 1 0 R", tail.Trailer.Root)
	}
	if tail.Trailer.Info == nil || tail.Trailer.Info.ObjectNumber != 1 {
		t.Errorf("Info = %v, want 1 0 R", tail.Trailer.Info)
	}
	if tail.Trailer.Prev != nil {
		t.Errorf("Prev = %d, want nil", *tail.Trailer.Prev)
	}
	if tail.Trailer.Encrypted() {
		t.Error("unencrypted trailer reported as encrypted")
	}
	if tail.Trailer.ID != "[<0102> <0304>]" {
		t.Errorf("ID = %q, want [<0102> <0304>]", tail.Trailer.ID)
	}
}

func TestReadTail_Stream(t *testing.T) {
	pdf, xrefStart := buildStreamPDF()
	tail, err := ReadTail(strings.NewReader(pdf), int64(len(pdf)))
	if err != nil {
		t.Fatalf("ReadTail failed: %v", err)
	}

	if tail.Kind != KindStream {
		t.Errorf("Kind = %v, want stream", tail.Kind)
	}
	if tail.StartXRef != int64(xrefStart) {
		t.Errorf("StartXRef = %d, want %d", tail.StartXRef, xrefStart)
	}
	if tail.StreamObject != 4 {
		t.Errorf("StreamObject = %d, want 4", tail.StreamObject)
	}
	if tail.Trailer.Size != 5 {
		t.Errorf("Size = %d, want 5 (nested dictionaries must not shadow top-level keys)", tail.Trailer.Size)
	}
}

func TestReadTail_Encrypted(t *testing.T) {
	for _, extra := range []string{" /Encrypt 9 0 R", " /Encrypt << /Filter /Standard /V 1 >>"} {
		pdf := buildTablePDF(extra)
		tail, err := ReadTail(strings.NewReader(pdf), int64(len(pdf)))
		if err != nil {
			t.Fatalf("ReadTail failed: %v", err)
		}
		if !tail.Trailer.Encrypted() {
			t.Errorf("trailer with %q not reported as encrypted", extra)
		}
	}
}

func TestReadTail_Malformed(t *testing.T) {
	tests := map[string]string{
		"empty":            "",
		"no eof":           "%PDF-1.7\nstartxref\n9\n",
		"no startxref":     "%PDF-1.7\n%%EOF\n",
		"offset past end":  "%PDF-1.7\nstartxref\n99999\n%%EOF\n",
		"not an offset":    "%PDF-1.7\nstartxref\nabc\n%%EOF\n",
		"nothing at xref":  "%PDF-1.7\nhello\nstartxref\n9\n%%EOF\n",
		"no trailer size":  "%PDF-1.7\nxref\n0 1\n0000000000 65535 f \ntrailer\n<< /Root 1 0 R >>\nstartxref\n9\n%%EOF\n",
	}
	for name, pdf := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := ReadTail(strings.NewReader(pdf), int64(len(pdf))); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestChain_FollowsPrev(t *testing.T) {
	base := buildTablePDF("")
	firstXRef := strings.Index(base, "xref")

	update := fmt.Sprintf("xref\n1 1\n%010d 00000 n \ntrailer\n<< /Size 4 /Root 1 0 R /Prev %d >>\n", 9, firstXRef)
	second := len(base)
	pdf := base + update + fmt.Sprintf("startxref\n%d\n%%%%EOF\n", second)

	tail, err := ReadTail(strings.NewReader(pdf), int64(len(pdf)))
	if err != nil {
		t.Fatalf("ReadTail failed: %v", err)
	}
	if tail.StartXRef != int64(second) {
		t.Fatalf("StartXRef = %d, want %d", tail.StartXRef, second)
	}

	chain, err := NewXRefParser(strings.NewReader(pdf), int64(len(pdf))).Chain(tail.StartXRef)
	if err != nil {
		t.Fatalf("Chain failed: %v", err)
	}
	if len(chain) != 2 {
		t.Fatalf("chain length = %d, want 2", len(chain))
	}
	if chain[1].StartXRef != int64(firstXRef) {
		t.Errorf("second section at %d, want %d", chain[1].StartXRef, firstXRef)
	}
}

func TestChain_DetectsLoop(t *testing.T) {
	pdf := "%PDF-1.7\n"
	start := len(pdf)
	pdf += fmt.Sprintf("xref\n0 1\n0000000000 65535 f \ntrailer\n<< /Size 1 /Prev %d >>\nstartxref\n%d\n%%%%EOF\n", start, start)

	_, err := NewXRefParser(strings.NewReader(pdf), int64(len(pdf))).Chain(int64(start))
	if err == nil || !strings.Contains(err.Error(), "loops") {
		t.Errorf("expected loop error, got %v", err)
	}
}

func TestParseIndirectRef(t *testing.T) {
	tests := []struct {
		tokens []string
		want   string
	}{
		{[]string{"12", "0", "R"}, "12 0 R"},
		{[]string{"5", "2", "R", "/Info"}, "5 2 R"},
		{[]string{"5", "2"}, ""},
		{[]string{"x", "0", "R"}, ""},
	}
	for _, tt := range tests {
		ref := parseIndirectRef(tt.tokens)
		got := ""
		if ref != nil {
			got = ref.String()
		}
		if got != tt.want {
			t.Errorf("parseIndirectRef(%v) = %q, want %q", tt.tokens, got, tt.want)
		}
	}
}

func TestKind_String(t *testing.T) {
	if KindTable.String() != "table" || KindStream.String() != "stream" || Kind(0).String() != "unknown" {
		t.Error("unexpected Kind names")
	}
}
