package durable

import (
	"context"

	"go.temporal.io/sdk/temporal"

	"github.com/liquers/liquers-go/core/env"
	"github.com/liquers/liquers-go/core/interpreter"
	"github.com/liquers/liquers-go/core/metadata"
	"github.com/liquers/liquers-go/core/query"
	"github.com/liquers/liquers-go/core/state"
)

// ErrTypeInvalidQuery marks activity failures caused by a query that does
// not parse or build; the workflow's retry policy treats them as
// non-retryable.
const ErrTypeInvalidQuery = "InvalidQuery"

// Activities executes plan steps against a local interpreter. One
// Activities value is registered per worker; it re-derives the plan from
// the query text inside each activity, which is deterministic over the
// worker's registry snapshot.
type Activities struct {
	envref *env.Ref
	itp    *interpreter.Interpreter
}

// NewActivities returns the activity implementations bound to envref.
func NewActivities(envref *env.Ref, itp *interpreter.Interpreter) *Activities {
	return &Activities{envref: envref, itp: itp}
}

// BuildPlan parses and lowers the query, returning the plan's shape.
func (a *Activities) BuildPlan(_ context.Context, input EvaluateInput) (PlanInfo, error) {
	seq, err := a.itp.MakePlan(input.Query)
	if err != nil {
		return PlanInfo{}, temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeInvalidQuery, err)
	}
	return PlanInfo{NumSteps: len(seq)}, nil
}

// ExecuteStep runs the plan step at input.StepIndex on the carried state
// and returns the new carried state. Run-time evaluation errors are not
// activity failures: they are recorded in the carried metadata so the
// workflow terminates with an error state, matching the interpreter's
// in-process semantics.
func (a *Activities) ExecuteStep(ctx context.Context, input StepInput) (CarriedState, error) {
	seq, err := a.itp.MakePlan(input.Query)
	if err != nil {
		return CarriedState{}, temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeInvalidQuery, err)
	}
	if input.StepIndex < 0 || input.StepIndex >= len(seq) {
		return CarriedState{}, temporal.NewNonRetryableApplicationError("step index out of range", ErrTypeInvalidQuery, nil)
	}

	st, ectx, err := a.restore(input)
	if err != nil {
		return CarriedState{}, err
	}
	out := a.itp.ApplyPlan(ctx, seq[input.StepIndex:input.StepIndex+1], ectx, st)
	return a.carry(out)
}

// restore rebuilds the interpreter state and evaluation context from a
// carried snapshot.
func (a *Activities) restore(input StepInput) (state.State, *env.EvalContext, error) {
	ectx := env.NewEvalContext(a.envref, query.ParseKey(input.Cwd))
	if input.State.Metadata != nil {
		*ectx.Metadata() = *input.State.Metadata.Clone()
	}
	ectx.SetQuery(input.Query)
	v, err := a.envref.Values().FromBytes(input.State.Data)
	if err != nil {
		return state.State{}, nil, err
	}
	if input.State.Data == nil {
		v = a.envref.Values().None()
	}
	return state.State{Data: v, Metadata: ectx.SnapshotMetadata()}, ectx, nil
}

// carry serializes a step's output state for the workflow history.
func (a *Activities) carry(st state.State) (CarriedState, error) {
	meta := st.Metadata
	if meta == nil {
		meta = metadata.New()
	}
	if meta.IsError {
		// Preserve the error state without serializing the value; the
		// data channel of an errored state is not meaningful.
		return CarriedState{Metadata: meta.Clone()}, nil
	}
	data, err := st.Data.AsBytes(meta.DataFormat)
	if err != nil {
		return CarriedState{}, err
	}
	return CarriedState{Data: data, DataFormat: meta.DataFormat, Metadata: meta.Clone()}, nil
}
