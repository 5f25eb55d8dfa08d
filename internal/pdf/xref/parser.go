// Package xref locates and reads the final cross-reference section of a PDF,
// which an incremental update has to chain onto.
package xref

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// tailWindow is how far back from EOF the startxref keyword is searched.
const tailWindow = 1024

// Kind is the form of a cross-reference section.
type Kind int

const (
	KindTable Kind = iota + 1
	KindStream
)

func (k Kind) String() string {
	switch k {
	case KindTable:
		return "table"
	case KindStream:
		return "stream"
	default:
		return "unknown"
	}
}

// TrailerDict holds the trailer keys an incremental writer needs. For a
// cross-reference stream these come from the stream dictionary.
type TrailerDict struct {
	Size    int          // Total number of entries
	Prev    *int64       // Offset to previous xref (for incremental updates)
	Root    *IndirectRef // Catalog dictionary
	Encrypt *IndirectRef // Encryption dictionary
	Info    *IndirectRef // Info dictionary
	// EncryptDirect is set when /Encrypt is present as a direct dictionary.
	EncryptDirect bool
	// ID is the /ID array as written, e.g. "[<ab12> <ab12>]", or empty.
	ID string
}

// Encrypted reports whether the trailer declares encryption.
func (t *TrailerDict) Encrypted() bool {
	return t.Encrypt != nil || t.EncryptDirect
}

// IndirectRef represents an indirect object reference for the xref package
type IndirectRef struct {
	ObjectNumber     int64
	GenerationNumber int64
}

func (r *IndirectRef) String() string {
	return fmt.Sprintf("%d %d R", r.ObjectNumber, r.GenerationNumber)
}

// Tail describes the last cross-reference section of a file.
type Tail struct {
	// StartXRef is the offset named by the final startxref keyword.
	StartXRef int64
	Kind      Kind
	// StreamObject is the object number of the xref stream when Kind is KindStream.
	StreamObject int64
	Trailer      *TrailerDict
}

// ReadTail locates the final startxref and parses the section it points to.
func ReadTail(r io.ReaderAt, size int64) (*Tail, error) {
	if size <= 0 {
		return nil, fmt.Errorf("empty file")
	}
	start := size - tailWindow
	if start < 0 {
		start = 0
	}
	buf := make([]byte, size-start)
	if _, err := r.ReadAt(buf, start); err != nil && err != io.EOF {
		return nil, fmt.Errorf("read file tail: %w", err)
	}
	if !bytes.Contains(buf, []byte("%%EOF")) {
		return nil, fmt.Errorf("missing %%%%EOF marker")
	}
	i := bytes.LastIndex(buf, []byte("startxref"))
	if i < 0 {
		return nil, fmt.Errorf("missing startxref")
	}
	fields := strings.Fields(string(buf[i+len("startxref"):]))
	if len(fields) == 0 {
		return nil, fmt.Errorf("startxref not followed by an offset")
	}
	offset, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil || offset < 0 || offset >= size {
		return nil, fmt.Errorf("invalid startxref offset %q", fields[0])
	}

	p := NewXRefParser(io.NewSectionReader(r, 0, size), size)
	return p.parseSection(offset)
}

// XRefParser reads cross-reference sections from a PDF.
type XRefParser struct {
	reader io.ReaderAt
	size   int64
}

// NewXRefParser creates a new cross-reference parser
func NewXRefParser(reader io.ReaderAt, size int64) *XRefParser {
	return &XRefParser{reader: reader, size: size}
}

// Chain follows the Prev links from startxref and returns every section,
// newest first. It stops on a loop.
func (p *XRefParser) Chain(startxref int64) ([]*Tail, error) {
	var out []*Tail
	seen := make(map[int64]bool)
	offset := startxref
	for {
		if seen[offset] {
			return out, fmt.Errorf("xref Prev chain loops at offset %d", offset)
		}
		seen[offset] = true
		t, err := p.parseSection(offset)
		if err != nil {
			return out, err
		}
		out = append(out, t)
		if t.Trailer.Prev == nil {
			return out, nil
		}
		offset = *t.Trailer.Prev
	}
}

func (p *XRefParser) parseSection(offset int64) (*Tail, error) {
	head := make([]byte, 64)
	n, err := p.reader.ReadAt(head, offset)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("seek to xref at %d: %w", offset, err)
	}
	content := strings.TrimLeft(string(head[:n]), " \t\r\n")

	tail := &Tail{StartXRef: offset}
	switch {
	case strings.HasPrefix(content, "xref"):
		tail.Kind = KindTable
		tail.Trailer, err = p.parseXRefTable(offset)
	case len(content) > 0 && content[0] >= '0' && content[0] <= '9':
		tail.Kind = KindStream
		tail.StreamObject, tail.Trailer, err = p.parseXRefStream(offset)
	default:
		return nil, fmt.Errorf("no cross-reference section at offset %d (found %q)", offset, content[:min(len(content), 20)])
	}
	if err != nil {
		return nil, err
	}
	return tail, nil
}

// parseXRefTable skips the entries of a classic table and parses its trailer.
func (p *XRefParser) parseXRefTable(offset int64) (*TrailerDict, error) {
	text, err := p.readUntil(offset, "startxref")
	if err != nil {
		return nil, err
	}
	i := strings.Index(text, "trailer")
	if i < 0 {
		return nil, fmt.Errorf("xref table at %d not followed by a trailer", offset)
	}
	dict, err := extractDict(text[i+len("trailer"):])
	if err != nil {
		return nil, fmt.Errorf("failed to parse trailer: %w", err)
	}
	return parseTrailerContent(dict)
}

// parseXRefStream parses the dictionary of a cross-reference stream object.
func (p *XRefParser) parseXRefStream(offset int64) (int64, *TrailerDict, error) {
	text, err := p.readUntil(offset, "stream")
	if err != nil {
		return 0, nil, err
	}
	header := strings.Fields(text)
	if len(header) < 3 || !strings.HasPrefix(header[2], "obj") {
		return 0, nil, fmt.Errorf("expected an xref stream object at %d", offset)
	}
	objNum, err := strconv.ParseInt(header[0], 10, 64)
	if err != nil {
		return 0, nil, fmt.Errorf("invalid xref stream object number %q: %w", header[0], err)
	}
	dict, err := extractDict(text)
	if err != nil {
		return 0, nil, fmt.Errorf("xref stream %d: %w", objNum, err)
	}
	if !strings.Contains(dict, "/XRef") {
		return 0, nil, fmt.Errorf("object %d at %d is not a cross-reference stream", objNum, offset)
	}
	trailer, err := parseTrailerContent(dict)
	return objNum, trailer, err
}

// readUntil returns the text from offset up to the first occurrence of stop.
func (p *XRefParser) readUntil(offset int64, stop string) (string, error) {
	const chunk = 4096
	var sb strings.Builder
	buf := make([]byte, chunk)
	for pos := offset; pos < p.size; pos += chunk {
		n, err := p.reader.ReadAt(buf, pos)
		sb.Write(buf[:n])
		if i := strings.Index(sb.String(), stop); i >= 0 {
			return sb.String()[:i], nil
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("read xref at %d: %w", offset, err)
		}
	}
	return "", fmt.Errorf("%q not found after offset %d", stop, offset)
}

// extractDict returns the outermost << ... >> dictionary in text.
func extractDict(text string) (string, error) {
	start := strings.Index(text, "<<")
	if start < 0 {
		return "", fmt.Errorf("dictionary not found")
	}
	depth := 0
	for i := start; i < len(text)-1; i++ {
		switch text[i : i+2] {
		case "<<":
			depth++
			i++
		case ">>":
			depth--
			i++
			if depth == 0 {
				return text[start : i+1], nil
			}
		}
	}
	return "", fmt.Errorf("unterminated dictionary")
}

// tokenize splits dictionary text into tokens, keeping delimiters apart.
func tokenize(dict string) []string {
	r := strings.NewReplacer("<<", " << ", ">>", " >> ", "[", " [ ", "]", " ] ", "/", " /")
	return strings.Fields(r.Replace(dict))
}

// parseTrailerContent reads the top-level keys of a trailer dictionary.
func parseTrailerContent(dict string) (*TrailerDict, error) {
	trailer := &TrailerDict{}
	tokens := tokenize(dict)
	depth := 0
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		switch tok {
		case "<<", "[":
			depth++
			continue
		case ">>", "]":
			depth--
			continue
		}
		if depth != 1 || !strings.HasPrefix(tok, "/") || i+1 >= len(tokens) {
			continue
		}
		next := tokens[i+1]
		switch tok {
		case "/Size":
			size, err := strconv.Atoi(next)
			if err != nil {
				return nil, fmt.Errorf("invalid /Size %q", next)
			}
			trailer.Size = size
		case "/Prev":
			prev, err := strconv.ParseInt(next, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid /Prev %q", next)
			}
			trailer.Prev = &prev
		case "/Root":
			trailer.Root = parseIndirectRef(tokens[i+1:])
		case "/Info":
			trailer.Info = parseIndirectRef(tokens[i+1:])
		case "/ID":
			trailer.ID = rawArray(tokens[i+1:])
		case "/Encrypt":
			if next == "<<" {
				trailer.EncryptDirect = true
			} else {
				trailer.Encrypt = parseIndirectRef(tokens[i+1:])
			}
		}
	}
	if trailer.Size <= 0 {
		return nil, fmt.Errorf("trailer missing /Size")
	}
	return trailer, nil
}

// rawArray re-joins the tokens of the array at the start of tokens.
func rawArray(tokens []string) string {
	if len(tokens) == 0 || tokens[0] != "[" {
		return ""
	}
	depth := 0
	for i, tok := range tokens {
		switch tok {
		case "[":
			depth++
		case "]":
			depth--
			if depth == 0 {
				return "[" + strings.Join(tokens[1:i], " ") + "]"
			}
		}
	}
	return ""
}

// parseIndirectRef reads "N G R" from the start of tokens.
func parseIndirectRef(tokens []string) *IndirectRef {
	if len(tokens) < 3 || tokens[2] != "R" {
		return nil
	}
	objNum, err := strconv.ParseInt(tokens[0], 10, 64)
	if err != nil {
		return nil
	}
	genNum, err := strconv.ParseInt(tokens[1], 10, 64)
	if err != nil {
		return nil
	}
	return &IndirectRef{ObjectNumber: objNum, GenerationNumber: genNum}
}
