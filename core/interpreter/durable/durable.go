// Package durable runs a plan as a Temporal workflow, one activity per
// step, so long-running recipe pipelines survive process restarts. State is
// carried between activities in serialized form: the value's bytes plus the
// accumulated metadata record.
package durable

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/liquers/liquers-go/core/metadata"
)

// TaskQueue is the default task queue evaluation workflows are dispatched
// on.
const TaskQueue = "liquers-evaluation"

type (
	// EvaluateInput starts one durable evaluation.
	EvaluateInput struct {
		// Query is the pipeline's query text.
		Query string
		// Cwd is the current working key for relative resolution.
		Cwd string
	}

	// CarriedState is a step's serialized output, threaded to the next
	// step's activity.
	CarriedState struct {
		Data       []byte
		DataFormat string
		Metadata   *metadata.Record
	}

	// PlanInfo describes the built plan; the workflow only needs its
	// length, the steps themselves are re-derived inside each activity
	// from the query text and the step index.
	PlanInfo struct {
		NumSteps int
	}

	// StepInput identifies one step of the plan plus the state it runs on.
	StepInput struct {
		Query     string
		Cwd       string
		StepIndex int
		State     CarriedState
	}

	// EvaluateResult is the workflow's terminal state.
	EvaluateResult struct {
		State CarriedState
	}
)

// EvaluateWorkflow executes the plan of input.Query step by step, each step
// as its own activity. A restart after any step replays to the same point
// from workflow history instead of re-running completed steps.
func EvaluateWorkflow(wctx workflow.Context, input EvaluateInput) (EvaluateResult, error) {
	opts := workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2,
			MaximumAttempts:    3,
			// Plan-construction failures are deterministic; retrying
			// cannot fix a query that does not build.
			NonRetryableErrorTypes: []string{ErrTypeInvalidQuery},
		},
	}
	wctx = workflow.WithActivityOptions(wctx, opts)

	var info PlanInfo
	if err := workflow.ExecuteActivity(wctx, (*Activities).BuildPlan, input).Get(wctx, &info); err != nil {
		return EvaluateResult{}, err
	}

	carried := CarriedState{Metadata: metadata.New()}
	for i := 0; i < info.NumSteps; i++ {
		step := StepInput{Query: input.Query, Cwd: input.Cwd, StepIndex: i, State: carried}
		if err := workflow.ExecuteActivity(wctx, (*Activities).ExecuteStep, step).Get(wctx, &carried); err != nil {
			return EvaluateResult{}, err
		}
		if carried.Metadata != nil && carried.Metadata.IsError {
			break
		}
	}
	return EvaluateResult{State: carried}, nil
}
