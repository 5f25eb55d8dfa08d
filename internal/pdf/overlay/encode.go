package overlay

import (
	"encoding/hex"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// textString encodes s as a PDF text string. Printable ASCII is written as
// is; anything else is written as UTF-16BE with a byte order mark. Both are
// emitted in hex form so no escaping is needed.
func textString(s string) (types.HexLiteral, error) {
	if isPlainASCII(s) {
		return types.HexLiteral(hex.EncodeToString([]byte(s))), nil
	}
	enc := unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewEncoder()
	b, err := enc.Bytes([]byte(s))
	if err != nil {
		return "", err
	}
	return types.HexLiteral(hex.EncodeToString(b)), nil
}

func isPlainASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] > 0x7e {
			return false
		}
	}
	return true
}

// showText returns s as a content stream string literal in WinAnsiEncoding,
// the encoding of the /Helv resource. Runes outside it become '?'.
func showText(s string) string {
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "?")
	}
	enc := encoding.ReplaceUnsupported(charmap.Windows1252.NewEncoder())
	b, err := enc.Bytes([]byte(s))
	if err != nil {
		b = []byte(s)
	}
	var sb strings.Builder
	sb.WriteByte('(')
	for _, c := range b {
		switch c {
		case '(', ')', '\\':
			sb.WriteByte('\\')
			sb.WriteByte(c)
		case '\r':
			sb.WriteString(`\r`)
		case '\n':
			sb.WriteString(`\n`)
		case 0x1a:
			sb.WriteByte('?')
		default:
			sb.WriteByte(c)
		}
	}
	sb.WriteByte(')')
	return sb.String()
}

// num formats a coordinate with at most four decimals and no trailing zeros.
func num(f float64) string {
	s := strconv.FormatFloat(f, 'f', 4, 64)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	if s == "-0" || s == "" {
		return "0"
	}
	return s
}

func numberArray(fs ...float64) types.Array {
	a := make(types.Array, len(fs))
	for i, f := range fs {
		if f == float64(int64(f)) {
			a[i] = types.Integer(int(f))
		} else {
			a[i] = types.Float(f)
		}
	}
	return a
}
