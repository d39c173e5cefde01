package query

// ActionParameter is either a literal string parameter or a link parameter
// (a nested query to be evaluated and substituted at execution time).
type ActionParameter struct {
	Position Position
	IsLink   bool
	Literal  string
	Link     *Query
}

// NewLiteralParameter constructs a non-link parameter.
func NewLiteralParameter(value string) ActionParameter {
	return ActionParameter{Position: UnknownPosition(), Literal: value}
}

// NewLinkParameter constructs a link parameter wrapping a nested query.
func NewLinkParameter(q *Query) ActionParameter {
	return ActionParameter{Position: UnknownPosition(), IsLink: true, Link: q}
}

// ActionRequest is a single named action with its ordered parameters, as it
// appears in a transform segment.
type ActionRequest struct {
	Name       string
	Position   Position
	Parameters []ActionParameter
}

// SegmentHeader introduces a QuerySegment. Level counts the run of leading
// dashes in the header token; Resource distinguishes a "-R" resource header
// from a "-" transform header.
type SegmentHeader struct {
	Name       string
	Level      int
	Parameters []ActionParameter
	Resource   bool
	Filename   *ResourceName
	Position   Position
}

// TransformQuerySegment applies an ordered list of actions to the input
// state. Header is nil when the segment begins implicitly (a query with no
// leading "-" header, e.g. "hello/greet").
type TransformQuerySegment struct {
	Header   *SegmentHeader
	Query    []ActionRequest
	Filename *ResourceName
}

// ResourceQuerySegment names a persisted artifact as the pipeline's data
// source.
type ResourceQuerySegment struct {
	Header SegmentHeader
	Key    Key
}

// Segment is the tagged union of TransformQuerySegment and
// ResourceQuerySegment. Concrete types are *TransformQuerySegment and
// *ResourceQuerySegment; the unexported marker method seals the set.
type Segment interface {
	segmentSeal()
}

func (*TransformQuerySegment) segmentSeal() {}
func (*ResourceQuerySegment) segmentSeal()  {}

// Query is the parsed AST of a pipeline expression: an ordered sequence of
// segments plus an absolute/relative flag (set when the source text began
// with "/").
type Query struct {
	Segments []Segment
	Absolute bool
}

// IsEmpty reports whether the query has no segments.
func (q *Query) IsEmpty() bool {
	return q == nil || len(q.Segments) == 0
}
