package query

// splitSpans splits tok on unescaped occurrences of sep, treating any
// "~L(...)" link literal as an opaque, balanced span that is never split
// even if it contains sep. offset is the byte offset of tok within the full
// query source, used to compute each returned span's source offset.
//
// It is used both to split a whole query on "/" into segment/action tokens
// and to split a single token on "-" into its name and parameters.
func splitSpans(tok string, sep byte, offset int) (spans []string, offsets []int, err error) {
	start := 0
	i := 0
	for i < len(tok) {
		c := tok[i]
		if c == escapeChar {
			skip := escapeSpanLength(tok, i)
			i += skip
			continue
		}
		if c == sep {
			spans = append(spans, tok[start:i])
			offsets = append(offsets, offset+start)
			i++
			start = i
			continue
		}
		i++
	}
	spans = append(spans, tok[start:])
	offsets = append(offsets, offset+start)
	return spans, offsets, nil
}

// escapeSpanLength returns the number of bytes, starting at tok[i] (which
// must be escapeChar), consumed by the escape construct there: a link
// literal "~L(...)" (with balanced, possibly-nested parens, themselves
// escape-aware), a two-character short escape, a three-character hex byte
// escape, or — if none match — a single stray byte so scanning still makes
// progress on malformed input (the real error is reported later by
// unescapeLiteral).
func escapeSpanLength(tok string, i int) int {
	if i+2 < len(tok) && tok[i+1] == 'L' && tok[i+2] == '(' {
		depth := 1
		j := i + 3
		for j < len(tok) && depth > 0 {
			switch {
			case tok[j] == escapeChar:
				j += escapeSpanLength(tok, j)
			case tok[j] == '(':
				depth++
				j++
			case tok[j] == ')':
				depth--
				j++
			default:
				j++
			}
		}
		return j - i
	}
	if i+1 < len(tok) {
		if _, ok := shortEscapes[tok[i+1]]; ok {
			return 2
		}
	}
	if i+2 < len(tok) {
		if _, okHi := hexDigit(tok[i+1]); okHi {
			if _, okLo := hexDigit(tok[i+2]); okLo {
				return 3
			}
		}
	}
	return 1
}
