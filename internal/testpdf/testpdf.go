// Package testpdf builds small, well-formed PDF files for tests. Offsets
// are computed while writing so both xref tables and xref streams are exact.
package testpdf

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"
)

// Page describes one page of a fixture.
type Page struct {
	// MediaBox defaults to US Letter.
	MediaBox [4]float64
	CropBox  *[4]float64
	Rotate   int
	// Content is the page content stream. Empty means a one-line label.
	Content string
	// Link adds a pre-existing link annotation to the page.
	Link bool
}

// Options controls the fixture layout.
type Options struct {
	Pages []Page
	// XRefStream writes a cross-reference stream instead of a table.
	XRefStream bool
	// ExistingField adds an AcroForm with one text field named "existing" on the first page.
	ExistingField bool
	// Encrypted declares an /Encrypt entry in the trailer.
	Encrypted bool
}

// Letter returns n plain US Letter pages.
func Letter(n int) []Page {
	pages := make([]Page, n)
	for i := range pages {
		pages[i] = Page{MediaBox: [4]float64{0, 0, 612, 792}}
	}
	return pages
}

// DefaultContent is the content stream used when Page.Content is empty.
func DefaultContent(pageNumber int) string {
	return fmt.Sprintf("BT /F1 24 Tf 72 720 Td (Page %d) Tj ET", pageNumber)
}

type object struct {
	num  int
	body []byte
}

type builder struct {
	objects []object
	next    int
}

func (b *builder) alloc() int {
	n := b.next
	b.next++
	return n
}

func (b *builder) put(num int, format string, args ...any) {
	b.objects = append(b.objects, object{num: num, body: []byte(fmt.Sprintf(format, args...))})
}

func (b *builder) stream(num int, dict, data string) {
	body := fmt.Sprintf("<< %s /Length %d >>\nstream\n%s\nendstream", dict, len(data), data)
	b.objects = append(b.objects, object{num: num, body: []byte(body)})
}

// Build returns the bytes of a fixture PDF.
func Build(opts Options) []byte {
	if len(opts.Pages) == 0 {
		opts.Pages = Letter(1)
	}
	b := &builder{next: 1}
	catalog := b.alloc()
	pagesNum := b.alloc()
	font := b.alloc()

	pageNums := make([]int, len(opts.Pages))
	for i := range opts.Pages {
		pageNums[i] = b.alloc()
	}

	var fieldNum, acroNum int
	if opts.ExistingField {
		fieldNum = b.alloc()
		acroNum = b.alloc()
	}

	b.put(font, "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>")

	kids := ""
	for i, p := range opts.Pages {
		kids += fmt.Sprintf("%d 0 R ", pageNums[i])
		mb := p.MediaBox
		if mb == [4]float64{} {
			mb = [4]float64{0, 0, 612, 792}
		}
		content := p.Content
		if content == "" {
			content = DefaultContent(i + 1)
		}
		contentNum := b.alloc()
		b.stream(contentNum, "", content)

		var annots []string
		if p.Link {
			link := b.alloc()
			b.put(link, "<< /Type /Annot /Subtype /Link /Rect [10 10 60 30] /Border [0 0 0] >>")
			annots = append(annots, fmt.Sprintf("%d 0 R", link))
		}
		if opts.ExistingField && i == 0 {
			annots = append(annots, fmt.Sprintf("%d 0 R", fieldNum))
		}

		dict := fmt.Sprintf("<< /Type /Page /Parent %d 0 R /MediaBox %s /Resources << /Font << /F1 %d 0 R >> >> /Contents %d 0 R",
			pagesNum, box(mb), font, contentNum)
		if p.CropBox != nil {
			dict += " /CropBox " + box(*p.CropBox)
		}
		if p.Rotate != 0 {
			dict += fmt.Sprintf(" /Rotate %d", p.Rotate)
		}
		if len(annots) > 0 {
			dict += " /Annots ["
			for j, a := range annots {
				if j > 0 {
					dict += " "
				}
				dict += a
			}
			dict += "]"
		}
		b.put(pageNums[i], "%s >>", dict)
	}
	b.put(pagesNum, "<< /Type /Pages /Kids [%s] /Count %d >>", kids, len(opts.Pages))

	if opts.ExistingField {
		b.put(fieldNum, "<< /Type /Annot /Subtype /Widget /FT /Tx /T (existing) /Rect [72 600 272 624] /P %d 0 R /F 4 /DA (/Helv 0 Tf 0 g) >>", pageNums[0])
		b.put(acroNum, "<< /Fields [%d 0 R] /DA (/Helv 0 Tf 0 g) >>", fieldNum)
		b.put(catalog, "<< /Type /Catalog /Pages %d 0 R /AcroForm %d 0 R >>", pagesNum, acroNum)
	} else {
		b.put(catalog, "<< /Type /Catalog /Pages %d 0 R >>", pagesNum)
	}

	return b.finish(catalog, opts)
}

func (b *builder) finish(root int, opts Options) []byte {
	sort.Slice(b.objects, func(i, j int) bool { return b.objects[i].num < b.objects[j].num })

	var out bytes.Buffer
	out.WriteString("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n")
	offsets := make(map[int]int, len(b.objects))
	for _, o := range b.objects {
		offsets[o.num] = out.Len()
		fmt.Fprintf(&out, "%d 0 obj\n%s\nendobj\n", o.num, o.body)
	}

	trailerExtra := " /ID [<8f1e7a5b2c3d4e5f60718293a4b5c6d7> <8f1e7a5b2c3d4e5f60718293a4b5c6d7>]"
	if opts.Encrypted {
		trailerExtra += fmt.Sprintf(" /Encrypt %d 0 R", b.next+1)
	}

	xrefStart := out.Len()
	if opts.XRefStream {
		xrefNum := b.alloc()
		offsets[xrefNum] = xrefStart
		var data bytes.Buffer
		data.Write([]byte{0, 0, 0, 0, 0, 0xff, 0xff})
		for n := 1; n <= xrefNum; n++ {
			off := offsets[n]
			data.Write([]byte{1, byte(off >> 24), byte(off >> 16), byte(off >> 8), byte(off), 0, 0})
		}
		fmt.Fprintf(&out, "%d 0 obj\n<< /Type /XRef /Size %d /W [1 4 2] /Root %d 0 R%s /Length %d >>\nstream\n",
			xrefNum, xrefNum+1, root, trailerExtra, data.Len())
		out.Write(data.Bytes())
		out.WriteString("\nendstream\nendobj\n")
	} else {
		fmt.Fprintf(&out, "xref\n0 %d\n0000000000 65535 f \n", b.next)
		for n := 1; n < b.next; n++ {
			fmt.Fprintf(&out, "%010d 00000 n \n", offsets[n])
		}
		fmt.Fprintf(&out, "trailer\n<< /Size %d /Root %d 0 R%s >>\n", b.next, root, trailerExtra)
	}
	fmt.Fprintf(&out, "startxref\n%d\n%%%%EOF\n", xrefStart)
	return out.Bytes()
}

func box(b [4]float64) string {
	return fmt.Sprintf("[%g %g %g %g]", b[0], b[1], b[2], b[3])
}

// WriteFile writes a fixture into dir and returns its path.
func WriteFile(t testing.TB, dir, name string, opts Options) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, Build(opts), 0o644); err != nil {
		t.Fatalf("write fixture %s: %v", path, err)
	}
	return path
}
