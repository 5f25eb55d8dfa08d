package overlay

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/a3tai/mcp-pdf-forms/internal/pdf/xref"
)

// updateWriter appends an incremental update section to a copy of the
// source bytes. Objects are written in the order they are added.
type updateWriter struct {
	buf     bytes.Buffer
	offsets map[int]int64
	gens    map[int]int
	size    int
}

func newUpdateWriter(src []byte, size int) *updateWriter {
	w := &updateWriter{
		offsets: make(map[int]int64),
		gens:    make(map[int]int),
		size:    size,
	}
	w.buf.Grow(len(src) + 16*1024)
	w.buf.Write(src)
	if len(src) > 0 && src[len(src)-1] != '\n' && src[len(src)-1] != '\r' {
		w.buf.WriteByte('\n')
	}
	return w
}

func (w *updateWriter) begin(num, gen int) {
	w.offsets[num] = int64(w.buf.Len())
	w.gens[num] = gen
	if num+1 > w.size {
		w.size = num + 1
	}
	fmt.Fprintf(&w.buf, "%d %d obj\n", num, gen)
}

// object writes a non-stream object.
func (w *updateWriter) object(num, gen int, obj types.Object) {
	w.begin(num, gen)
	w.buf.WriteString(obj.PDFString())
	w.buf.WriteString("\nendobj\n")
}

// stream writes an unfiltered stream object. /Length is set from data.
func (w *updateWriter) stream(num int, dict types.Dict, data []byte) {
	d := make(types.Dict, len(dict)+1)
	for k, v := range dict {
		d[k] = v
	}
	d["Length"] = types.Integer(len(data))
	w.begin(num, 0)
	w.buf.WriteString(d.PDFString())
	w.buf.WriteString("\nstream\n")
	w.buf.Write(data)
	w.buf.WriteString("\nendstream\nendobj\n")
}

// trailer holds the keys carried into the new trailer.
type trailer struct {
	Root types.IndirectRef
	Info *xref.IndirectRef
	ID   string
	Prev int64
}

// finish writes the cross-reference section in the given form and returns
// the complete file.
func (w *updateWriter) finish(kind xref.Kind, t trailer) []byte {
	if kind == xref.KindStream {
		w.finishStream(t)
	} else {
		w.finishTable(t)
	}
	return w.buf.Bytes()
}

func (w *updateWriter) sortedObjects() []int {
	nums := make([]int, 0, len(w.offsets))
	for n := range w.offsets {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	return nums
}

// runs groups sorted object numbers into consecutive [start, count] pairs.
func runs(nums []int) [][2]int {
	var out [][2]int
	for _, n := range nums {
		if len(out) > 0 {
			last := &out[len(out)-1]
			if last[0]+last[1] == n {
				last[1]++
				continue
			}
		}
		out = append(out, [2]int{n, 1})
	}
	return out
}

func (w *updateWriter) trailerEntries(t trailer) string {
	s := fmt.Sprintf("/Size %d /Root %s /Prev %d", w.size, t.Root.PDFString(), t.Prev)
	if t.Info != nil {
		s += " /Info " + t.Info.String()
	}
	if t.ID != "" {
		s += " /ID " + t.ID
	}
	return s
}

func (w *updateWriter) finishTable(t trailer) {
	nums := w.sortedObjects()
	start := w.buf.Len()
	w.buf.WriteString("xref\n")
	i := 0
	for _, r := range runs(nums) {
		fmt.Fprintf(&w.buf, "%d %d\n", r[0], r[1])
		for j := 0; j < r[1]; j++ {
			n := nums[i]
			fmt.Fprintf(&w.buf, "%010d %05d n \n", w.offsets[n], w.gens[n])
			i++
		}
	}
	fmt.Fprintf(&w.buf, "trailer\n<< %s >>\n", w.trailerEntries(t))
	fmt.Fprintf(&w.buf, "startxref\n%d\n%%%%EOF\n", start)
}

// finishStream writes an uncompressed cross-reference stream with
// /W [1 4 2] that also lists itself.
func (w *updateWriter) finishStream(t trailer) {
	self := w.size
	start := w.buf.Len()
	w.offsets[self] = int64(start)
	w.gens[self] = 0
	w.size = self + 1

	nums := w.sortedObjects()
	var data bytes.Buffer
	for _, n := range nums {
		off := w.offsets[n]
		gen := w.gens[n]
		data.Write([]byte{1, byte(off >> 24), byte(off >> 16), byte(off >> 8), byte(off), byte(gen >> 8), byte(gen)})
	}

	var index bytes.Buffer
	for i, r := range runs(nums) {
		if i > 0 {
			index.WriteByte(' ')
		}
		fmt.Fprintf(&index, "%d %d", r[0], r[1])
	}

	fmt.Fprintf(&w.buf, "%d 0 obj\n<< /Type /XRef %s /Index [%s] /W [1 4 2] /Length %d >>\nstream\n",
		self, w.trailerEntries(t), index.String(), data.Len())
	w.buf.Write(data.Bytes())
	w.buf.WriteString("\nendstream\nendobj\n")
	fmt.Fprintf(&w.buf, "startxref\n%d\n%%%%EOF\n", start)
}
