package query

import (
	"strings"

	"github.com/liquers/liquers-go/core/lqerror"
)

// Parse parses query text into a Query AST. Parsing is total: it returns a
// well-formed Query, or a *lqerror.Error of kind ParseError positioned at
// the first offending byte.
func Parse(text string) (*Query, error) {
	q := &Query{}
	s := text
	if strings.HasPrefix(s, "/") {
		q.Absolute = true
		s = s[1:]
	}
	if s == "" {
		return q, nil
	}

	tokens, offsets, err := splitSpans(s, '/', 0)
	if err != nil {
		return nil, annotate(err, text)
	}

	var curTransform *TransformQuerySegment
	var curResource *ResourceQuerySegment
	sawSegment := false

	finalize := func() {
		if curResource != nil {
			q.Segments = append(q.Segments, curResource)
			curResource = nil
		}
		if curTransform != nil {
			if n := len(curTransform.Query); n > 0 {
				last := curTransform.Query[n-1]
				if len(last.Parameters) == 0 && strings.Contains(last.Name, ".") {
					curTransform.Filename = &ResourceName{Name: last.Name, Position: last.Position}
					curTransform.Query = curTransform.Query[:n-1]
				}
			}
			q.Segments = append(q.Segments, curTransform)
			curTransform = nil
		}
	}

	for idx, tok := range tokens {
		off := offsets[idx]
		if tok == "" {
			continue
		}
		if strings.HasPrefix(tok, "-") {
			finalize()
			header, herr := parseHeader(tok, s, off)
			if herr != nil {
				return nil, annotate(herr, text)
			}
			if header.Resource {
				if sawSegment {
					return nil, annotate(lqerror.New(lqerror.KindParseError, "resource segment may only appear as the first segment").WithPosition(positionAt(s, off)), text)
				}
				curResource = &ResourceQuerySegment{Header: *header}
			} else {
				curTransform = &TransformQuerySegment{Header: header}
			}
			sawSegment = true
			continue
		}

		sawSegment = true
		if curResource != nil {
			name, nerr := unescapeLiteral(tok, s, off)
			if nerr != nil {
				return nil, annotate(nerr, text)
			}
			curResource.Key = append(curResource.Key, ResourceName{Name: name, Position: positionAt(s, off)})
			continue
		}
		if curTransform == nil {
			curTransform = &TransformQuerySegment{}
		}
		action, aerr := parseActionToken(tok, s, off)
		if aerr != nil {
			return nil, annotate(aerr, text)
		}
		curTransform.Query = append(curTransform.Query, *action)
	}
	finalize()
	return q, nil
}

// parseHeader parses a "-"-prefixed token into a SegmentHeader. offset is
// the byte offset of tok within the full source s.
func parseHeader(tok, s string, offset int) (*SegmentHeader, error) {
	pos := positionAt(s, offset)
	level := 0
	for level < len(tok) && tok[level] == '-' {
		level++
	}
	rest := tok[level:]
	resource := false
	if strings.HasPrefix(rest, "R") {
		resource = true
		rest = rest[1:]
	}
	h := &SegmentHeader{Level: level, Resource: resource, Position: pos}
	if resource {
		name, err := unescapeLiteral(rest, s, offset+level+1)
		if err != nil {
			return nil, err
		}
		h.Name = name
		return h, nil
	}
	parts, poffsets, err := splitSpans(rest, '-', offset+level)
	if err != nil {
		return nil, err
	}
	if len(parts) == 0 {
		return h, nil
	}
	name, err := unescapeLiteral(parts[0], s, poffsets[0])
	if err != nil {
		return nil, err
	}
	h.Name = name
	for i := 1; i < len(parts); i++ {
		p, err := parseParameter(parts[i], s, poffsets[i])
		if err != nil {
			return nil, err
		}
		h.Parameters = append(h.Parameters, *p)
	}
	return h, nil
}

// parseActionToken parses a header-free token into an ActionRequest: a name
// followed by zero or more "-"-separated parameters.
func parseActionToken(tok, s string, offset int) (*ActionRequest, error) {
	parts, poffsets, err := splitSpans(tok, '-', offset)
	if err != nil {
		return nil, err
	}
	name, err := unescapeLiteral(parts[0], s, poffsets[0])
	if err != nil {
		return nil, err
	}
	req := &ActionRequest{Name: name, Position: positionAt(s, offset)}
	for i := 1; i < len(parts); i++ {
		p, err := parseParameter(parts[i], s, poffsets[i])
		if err != nil {
			return nil, err
		}
		req.Parameters = append(req.Parameters, *p)
	}
	return req, nil
}

// parseParameter interprets one "-"-delimited span as either a link
// parameter ("~L(...)" spanning the whole span) or a literal.
func parseParameter(span string, s string, offset int) (*ActionParameter, error) {
	pos := positionAt(s, offset)
	if strings.HasPrefix(span, "~L(") && strings.HasSuffix(span, ")") {
		inner := span[3 : len(span)-1]
		nested, err := Parse(inner)
		if err != nil {
			return nil, err
		}
		return &ActionParameter{Position: pos, IsLink: true, Link: nested}, nil
	}
	lit, err := unescapeLiteral(span, s, offset)
	if err != nil {
		return nil, err
	}
	return &ActionParameter{Position: pos, Literal: lit}, nil
}

// annotate attaches the originating query's raw text to a parse error.
func annotate(err error, text string) error {
	if e, ok := err.(*lqerror.Error); ok {
		return e.WithQuery(text)
	}
	return err
}
