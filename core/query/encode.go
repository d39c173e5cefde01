package query

import "strings"

// Encode renders a Query back to its canonical query-text form. For every
// successfully parsed Query q, Parse(Encode(q)) is structurally equal to q
// modulo position values (the round-trip law, spec.md §8 property 1).
// Encoded output is normalized: no redundant empty segments, canonical
// escape form.
func Encode(q *Query) string {
	if q == nil || len(q.Segments) == 0 {
		if q != nil && q.Absolute {
			return "/"
		}
		return ""
	}
	var tokens []string
	for _, seg := range q.Segments {
		switch s := seg.(type) {
		case *ResourceQuerySegment:
			tokens = append(tokens, encodeHeader(&s.Header))
			for _, n := range s.Key {
				tokens = append(tokens, escapeLiteral(n.Name))
			}
		case *TransformQuerySegment:
			if s.Header != nil {
				tokens = append(tokens, encodeHeader(s.Header))
			}
			for _, a := range s.Query {
				tokens = append(tokens, encodeAction(a))
			}
			if s.Filename != nil {
				tokens = append(tokens, escapeLiteral(s.Filename.Name))
			}
		}
	}
	out := strings.Join(tokens, "/")
	if q.Absolute {
		return "/" + out
	}
	return out
}

func encodeHeader(h *SegmentHeader) string {
	var b strings.Builder
	for i := 0; i < h.Level; i++ {
		b.WriteByte('-')
	}
	if h.Resource {
		b.WriteByte('R')
		b.WriteString(escapeLiteral(h.Name))
		return b.String()
	}
	b.WriteString(escapeLiteral(h.Name))
	for _, p := range h.Parameters {
		b.WriteByte('-')
		b.WriteString(encodeParameter(p))
	}
	return b.String()
}

func encodeAction(a ActionRequest) string {
	var b strings.Builder
	b.WriteString(escapeLiteral(a.Name))
	for _, p := range a.Parameters {
		b.WriteByte('-')
		b.WriteString(encodeParameter(p))
	}
	return b.String()
}

func encodeParameter(p ActionParameter) string {
	if p.IsLink {
		return "~L(" + Encode(p.Link) + ")"
	}
	return escapeLiteral(p.Literal)
}
