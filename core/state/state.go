// Package state defines State, the cheaply-cloneable (data, metadata) pair
// threaded through every plan step.
package state

import (
	"github.com/liquers/liquers-go/core/lqerror"
	"github.com/liquers/liquers-go/core/metadata"
	"github.com/liquers/liquers-go/core/value"
)

// State pairs an immutable Value with the metadata describing it. Neither
// field is mutated in place: a step produces a new State from the previous
// one.
type State struct {
	Data     value.Value
	Metadata *metadata.Record
}

// Empty returns a State holding the none value and fresh metadata.
func Empty() State {
	return State{Data: value.None(), Metadata: metadata.New()}
}

// WithMetadata returns a copy of s with its Metadata replaced by a clone of
// m, implementing the interpreter's "state = state.with_metadata(snapshot)"
// step-boundary discipline.
func (s State) WithMetadata(m *metadata.Record) State {
	return State{Data: s.Data, Metadata: m.Clone()}
}

// WithData returns a copy of s with its Data replaced, metadata unchanged.
func (s State) WithData(d value.Value) State {
	return State{Data: d, Metadata: s.Metadata}
}

// FromError returns a terminal State whose metadata carries err.
func FromError(err *lqerror.Error) State {
	m := metadata.New()
	m.SetError(err)
	return State{Data: value.None(), Metadata: m}
}

// IsError reports whether s carries a terminal error.
func (s State) IsError() bool {
	return s.Metadata != nil && s.Metadata.IsError
}
