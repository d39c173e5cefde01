package plan

import (
	"strings"

	"github.com/liquers/liquers-go/core/command"
	"github.com/liquers/liquers-go/core/lqerror"
	"github.com/liquers/liquers-go/core/query"
)

// Builder lowers a parsed Query into a Plan against a snapshot of a
// command.Registry. It is a small state machine over segments: its state
// is the active namespace (searched ahead of the registry's default
// namespaces), the steps emitted so far, and the segments already consumed.
type Builder struct {
	registry       *command.Registry
	activeNamespace string
	cwdKey         query.Key
	steps          Sequence
	priorSegments  []query.Segment

	lastActionIndex int // index into steps of the last emitted Action, for override_value/override_link
	lastActionArgs  []command.ArgumentInfo
}

// NewBuilder returns a Builder resolving actions against registry.
func NewBuilder(registry *command.Registry) *Builder {
	return &Builder{registry: registry, lastActionIndex: -1}
}

// Build lowers q into a Plan, or fails with ActionNotRegistered,
// ArgumentMissing, TooManyParameters, or, for a query whose resource
// segment is not the first segment, ParseError.
//
// Segments preceding the last q directive are never planned: q reifies
// them as text, so their actions need not be registered commands. Only
// their ns directives are applied, since namespace state carries forward.
func (b *Builder) Build(q *query.Query) (Sequence, error) {
	lastQ := -1
	for i, seg := range q.Segments {
		if s, ok := seg.(*query.TransformQuerySegment); ok && segmentContainsQ(s) {
			lastQ = i
		}
	}
	for i, seg := range q.Segments {
		switch s := seg.(type) {
		case *query.ResourceQuerySegment:
			if i != 0 {
				return nil, lqerror.New(lqerror.KindParseError, "resource segment may only appear as the first segment").WithPosition(s.Header.Position)
			}
			if i >= lastQ {
				if err := b.buildResourceSegment(s); err != nil {
					return nil, err
				}
			}
		case *query.TransformQuerySegment:
			if i < lastQ {
				b.scanDirectives(s.Query)
			} else if err := b.buildTransformSegment(s); err != nil {
				return nil, err
			}
		}
		b.priorSegments = append(b.priorSegments, seg)
	}
	return b.steps, nil
}

// resourceMetadataMarker is the header parameter literal that selects
// GetResourceMetadata over GetResource for a resource segment. The parser
// gives resource headers no parameters, so a parsed query reaches
// GetResourceMetadata only through a trailing "meta" segment.
const resourceMetadataMarker = "metadata"

func (b *Builder) buildResourceSegment(s *query.ResourceQuerySegment) error {
	metadataOnly := false
	for _, p := range s.Header.Parameters {
		if !p.IsLink && p.Literal == resourceMetadataMarker {
			metadataOnly = true
		}
	}
	if metadataOnly {
		b.steps = append(b.steps, GetResourceMetadata{Key: s.Key})
	} else {
		b.steps = append(b.steps, GetResource{Key: s.Key})
	}
	return nil
}

// Reserved action names handled by the builder itself, never dispatched as
// commands: ns switches the active namespace, q reifies the preceding
// partial pipeline as a query value, and meta narrows the preceding
// resource or asset step to its metadata-only form when it is a segment's
// sole content.
const (
	nsAction   = "ns"
	qAction    = "q"
	metaAction = "meta"
)

func segmentContainsQ(s *query.TransformQuerySegment) bool {
	for _, a := range s.Query {
		if a.Name == qAction {
			return true
		}
	}
	return false
}

// scanDirectives applies the ns directives of a reified segment without
// resolving any of its actions against the registry.
func (b *Builder) scanDirectives(actions []query.ActionRequest) {
	for _, a := range actions {
		if a.Name == nsAction && len(a.Parameters) > 0 && !a.Parameters[0].IsLink {
			b.activeNamespace = a.Parameters[0].Literal
		}
	}
}

func (b *Builder) buildTransformSegment(s *query.TransformQuerySegment) error {
	if len(s.Query) == 1 && s.Query[0].Name == metaAction && len(s.Query[0].Parameters) == 0 && s.Filename == nil && len(b.steps) > 0 {
		switch last := b.steps[len(b.steps)-1].(type) {
		case GetResource:
			b.steps[len(b.steps)-1] = GetResourceMetadata{Key: last.Key}
			return nil
		case GetAsset:
			b.steps[len(b.steps)-1] = GetAssetMetadata{Key: last.Key}
			return nil
		}
	}

	qIndex := -1
	for i, action := range s.Query {
		if action.Name == qAction {
			qIndex = i
		}
	}

	start := 0
	if qIndex >= 0 {
		// Everything before the (last) q is reified as text, never
		// resolved against the registry; its plan is replaced by one
		// UseQueryValue step carrying the parsed AST of the preceding
		// portion, prior segments included.
		reified := s.Query[:qIndex]
		b.scanDirectives(reified)
		partial := &query.Query{Segments: append(append([]query.Segment(nil), b.priorSegments...), &query.TransformQuerySegment{
			Header: s.Header,
			Query:  reified,
		})}
		if len(reified) == 0 && s.Header == nil {
			partial.Segments = append([]query.Segment(nil), b.priorSegments...)
		}
		b.steps = Sequence{UseQueryValue{Query: partial}}
		b.lastActionIndex = -1
		start = qIndex + 1
	}

	for _, action := range s.Query[start:] {
		if action.Name == nsAction {
			if len(action.Parameters) > 0 && !action.Parameters[0].IsLink {
				b.activeNamespace = action.Parameters[0].Literal
			}
			continue
		}
		if err := b.emitAction(action); err != nil {
			return err
		}
	}

	if s.Filename != nil {
		b.steps = append(b.steps, Filename{Name: *s.Filename})
	}
	return nil
}

func (b *Builder) namespaceSearchOrder() []string {
	order := b.registry.DefaultNamespaces()
	if len(order) == 0 {
		// A registry with no configured defaults still resolves the
		// unnamed namespace.
		order = []string{""}
	}
	if b.activeNamespace == "" {
		return order
	}
	result := make([]string, 0, len(order)+1)
	result = append(result, b.activeNamespace)
	for _, ns := range order {
		if ns != b.activeNamespace {
			result = append(result, ns)
		}
	}
	return result
}

const defaultRealm = ""

func (b *Builder) emitAction(action query.ActionRequest) error {
	namespaces := b.namespaceSearchOrder()
	meta, ns, ok := b.registry.FindInNamespaces(defaultRealm, namespaces, action.Name)
	if !ok {
		return lqerror.Errorf(lqerror.KindActionNotRegistered, "action %q not registered in namespaces %s", action.Name, strings.Join(namespaces, ",")).WithPosition(action.Position)
	}

	resolved, resolvedNS, resolvedName, headParams, err := b.resolveAlias(meta, ns, action.Name)
	if err != nil {
		return err
	}

	params, err := resolveArguments(resolved.Arguments, append(append([]query.ActionParameter(nil), headParams...), action.Parameters...), action.Position)
	if err != nil {
		return err
	}

	b.lastActionIndex = len(b.steps)
	b.lastActionArgs = resolved.Arguments
	b.steps = append(b.steps, Action{
		Realm:      defaultRealm,
		Namespace:  resolvedNS,
		Name:       resolvedName,
		Position:   action.Position,
		Parameters: params,
	})
	return nil
}

func (b *Builder) resolveAlias(meta *command.Metadata, ns, name string) (*command.Metadata, string, string, []query.ActionParameter, error) {
	if !meta.Definition.IsAlias {
		return meta, ns, name, nil, nil
	}
	return b.registry.ResolveAlias(defaultRealm, ns, name)
}

// resolveArguments zips supplied against the command's declared argument
// slots per spec.md's argument resolution algorithm: positional, then
// default, then injected, else ArgumentMissing. A slot marked Multiple
// consumes every remaining supplied parameter.
func resolveArguments(slots []command.ArgumentInfo, supplied []query.ActionParameter, pos query.Position) (ResolvedParameterValues, error) {
	var out ResolvedParameterValues
	i := 0
	for _, slot := range slots {
		if slot.Multiple {
			if i >= len(supplied) {
				if rp, ok := defaultOrInjected(slot, pos); ok {
					out = append(out, rp)
					continue
				}
				return nil, lqerror.Errorf(lqerror.KindArgumentMissing, "missing required argument %q", slot.Name).WithPosition(pos)
			}
			for ; i < len(supplied); i++ {
				out = append(out, fromSuppliedParameter(supplied[i]))
			}
			continue
		}
		if i < len(supplied) {
			out = append(out, fromSuppliedParameter(supplied[i]))
			i++
			continue
		}
		if rp, ok := defaultOrInjected(slot, pos); ok {
			out = append(out, rp)
			continue
		}
		return nil, lqerror.Errorf(lqerror.KindArgumentMissing, "missing required argument %q", slot.Name).WithPosition(pos)
	}
	if i < len(supplied) {
		return nil, lqerror.Errorf(lqerror.KindTooManyParameters, "too many parameters: %d declared slots, %d supplied", len(slots), len(supplied)).WithPosition(pos)
	}
	return out, nil
}

func defaultOrInjected(slot command.ArgumentInfo, pos query.Position) (ResolvedParameter, bool) {
	if slot.Default.HasValue {
		if slot.Default.Query != nil {
			return ResolvedParameter{Kind: ParameterDefaultQuery, Link: slot.Default.Query, Position: pos}, true
		}
		return ResolvedParameter{Kind: ParameterDefaultValue, Default: slot.Default.Value, Position: pos}, true
	}
	if slot.Injected {
		return ResolvedParameter{Kind: ParameterInjected, Position: pos}, true
	}
	return ResolvedParameter{}, false
}

func fromSuppliedParameter(p query.ActionParameter) ResolvedParameter {
	if p.IsLink {
		return ResolvedParameter{Kind: ParameterLink, Link: p.Link, Position: p.Position}
	}
	return ResolvedParameter{Kind: ParameterLiteral, Literal: p.Literal, Position: p.Position}
}

// OverrideValue mutates the last emitted Action's named parameter to a
// literal JSON default value, for recipe argument pinning. Returns false if
// name is not found among the last action's declared slots.
func (b *Builder) OverrideValue(name string, value any) bool {
	idx, slotIdx := b.findLastActionSlot(name)
	if idx < 0 {
		return false
	}
	action := b.steps[idx].(Action)
	action.Parameters[slotIdx] = ResolvedParameter{Kind: ParameterDefaultValue, Default: value, Position: action.Position}
	b.steps[idx] = action
	return true
}

// OverrideLink mutates the last emitted Action's named parameter to a link
// query, for recipe argument pinning. Returns false if name is not found.
func (b *Builder) OverrideLink(name string, q *query.Query) bool {
	idx, slotIdx := b.findLastActionSlot(name)
	if idx < 0 {
		return false
	}
	action := b.steps[idx].(Action)
	action.Parameters[slotIdx] = ResolvedParameter{Kind: ParameterLink, Link: q, Position: action.Position}
	b.steps[idx] = action
	return true
}

func (b *Builder) findLastActionSlot(name string) (stepIdx, slotIdx int) {
	if b.lastActionIndex < 0 {
		return -1, -1
	}
	for i, slot := range b.lastActionArgs {
		if slot.Name == name {
			return b.lastActionIndex, i
		}
	}
	return -1, -1
}
