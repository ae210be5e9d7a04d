package xmlfile

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// A CDATA block ends at the first "]]>" and can only hold characters legal
// in XML 1.0. Every escape starts with "]]&":
//
//	]]&amp;     "]]&"
//	]]&gt;      "]]>"
//	]]&#x1b;    a rune XML cannot hold (and "\r", which parsers rewrite)
//	]]&#bff;    a byte that is not valid UTF-8
//
// Since a literal "]]&" is always escaped, the scheme is reversible. Files
// that only escaped "]]>" decode to the same text.
const escapeLead = "]]&"

// EscapeContent prepares task content for a CDATA block.
func EscapeContent(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		rest := s[i:]
		switch {
		case strings.HasPrefix(rest, "]]&"):
			b.WriteString("]]&amp;")
			i += 3
			continue
		case strings.HasPrefix(rest, "]]>"):
			b.WriteString("]]&gt;")
			i += 3
			continue
		}

		r, size := utf8.DecodeRuneInString(rest)
		switch {
		case r == utf8.RuneError && size == 1:
			fmt.Fprintf(&b, "%s#b%02x;", escapeLead, rest[0])
		case r == '\r' || !isXMLChar(r):
			fmt.Fprintf(&b, "%s#x%x;", escapeLead, r)
		default:
			b.WriteString(rest[:size])
		}
		i += size
	}
	return b.String()
}

// UnescapeContent reverses EscapeContent. Unknown sequences are kept as-is.
func UnescapeContent(s string) string {
	if !strings.Contains(s, escapeLead) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		rest := s[i:]
		if !strings.HasPrefix(rest, escapeLead) {
			b.WriteByte(s[i])
			i++
			continue
		}
		body := rest[len(escapeLead):]
		switch {
		case strings.HasPrefix(body, "amp;"):
			b.WriteString("]]&")
			i += len(escapeLead) + 4
			continue
		case strings.HasPrefix(body, "gt;"):
			b.WriteString("]]>")
			i += len(escapeLead) + 3
			continue
		}
		if n, text, ok := unescapeCode(body); ok {
			b.WriteString(text)
			i += len(escapeLead) + n
			continue
		}
		b.WriteByte(s[i])
		i++
	}
	return b.String()
}

// unescapeCode decodes "#xHEX;" or "#bHH;" at the start of s and returns the
// number of bytes consumed.
func unescapeCode(s string) (int, string, bool) {
	if len(s) < 4 || s[0] != '#' {
		return 0, "", false
	}
	end := strings.IndexByte(s, ';')
	if end < 3 || end > 10 {
		return 0, "", false
	}
	v, err := strconv.ParseUint(s[2:end], 16, 32)
	if err != nil {
		return 0, "", false
	}
	switch s[1] {
	case 'x':
		if !utf8.ValidRune(rune(v)) {
			return 0, "", false
		}
		return end + 1, string(rune(v)), true
	case 'b':
		if v > 0xff {
			return 0, "", false
		}
		return end + 1, string([]byte{byte(v)}), true
	}
	return 0, "", false
}

// isXMLChar reports whether r is in the XML 1.0 Char production.
func isXMLChar(r rune) bool {
	return r == 0x09 || r == 0x0A || r == 0x0D ||
		r >= 0x20 && r <= 0xD7FF ||
		r >= 0xE000 && r <= 0xFFFD ||
		r >= 0x10000 && r <= 0x10FFFF
}
