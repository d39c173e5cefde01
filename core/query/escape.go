package query

import (
	"fmt"
	"strings"

	"github.com/liquers/liquers-go/core/lqerror"
)

// escapeChar is the prefix byte that introduces an escape sequence inside a
// literal parameter, resource name, or action/header name.
const escapeChar = '~'

// shortEscapes maps a raw byte that cannot appear literally in query text to
// the one-character code written after escapeChar, and back.
var shortEscapes = map[byte]byte{
	'/': '/',
	'.': '.',
	' ': '_',
	'-': '-',
	'~': '~',
	'(': '(',
	')': ')',
}

var shortUnescapes = func() map[byte]byte {
	m := make(map[byte]byte, len(shortEscapes))
	for raw, code := range shortEscapes {
		m[code] = raw
	}
	return m
}()

// escapeLiteral encodes s so that it can be embedded verbatim as a single
// query token: every byte with special meaning in the grammar is replaced by
// a "~"-introduced escape. Arbitrary non-printable bytes use a two hex digit
// "~XX" byte escape.
func escapeLiteral(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if code, ok := shortEscapes[c]; ok {
			b.WriteByte(escapeChar)
			b.WriteByte(code)
			continue
		}
		if c < 0x20 || c >= 0x7f {
			fmt.Fprintf(&b, "%c%02X", escapeChar, c)
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// unescapeLiteral is the inverse of escapeLiteral. tok is the token text to
// decode; source and offset locate tok within the full query source text so
// errors can be positioned at the offending byte.
func unescapeLiteral(tok string, source string, offset int) (string, error) {
	var b strings.Builder
	b.Grow(len(tok))
	for i := 0; i < len(tok); i++ {
		c := tok[i]
		if c != escapeChar {
			b.WriteByte(c)
			continue
		}
		if i+1 >= len(tok) {
			return "", lqerror.New(lqerror.KindParseError, "dangling escape character at end of token").WithPosition(positionAt(source, offset+i))
		}
		next := tok[i+1]
		if raw, ok := shortUnescapes[next]; ok {
			b.WriteByte(raw)
			i++
			continue
		}
		if i+2 < len(tok) {
			hi, okHi := hexDigit(tok[i+1])
			lo, okLo := hexDigit(tok[i+2])
			if okHi && okLo {
				b.WriteByte(byte(hi<<4 | lo))
				i += 2
				continue
			}
		}
		return "", lqerror.New(lqerror.KindParseError, fmt.Sprintf("invalid escape sequence %q", tok[i:min(i+3, len(tok))])).WithPosition(positionAt(source, offset+i))
	}
	return b.String(), nil
}

func hexDigit(c byte) (int, bool) {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0'), true
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10, true
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10, true
	default:
		return 0, false
	}
}
