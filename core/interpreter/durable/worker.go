package durable

import (
	"context"
	"errors"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	temporalotel "go.temporal.io/sdk/contrib/opentelemetry"
	"go.temporal.io/sdk/interceptor"
	"go.temporal.io/sdk/worker"

	"github.com/liquers/liquers-go/core/env"
	"github.com/liquers/liquers-go/core/interpreter"
)

// ClientOptions configures Dial.
type ClientOptions struct {
	// HostPort is the Temporal frontend address; empty uses the SDK
	// default (localhost:7233).
	HostPort string
	// Namespace is the Temporal namespace; empty uses "default".
	Namespace string
	// Tracing enables the OpenTelemetry tracing interceptor so workflow
	// and activity spans join the interpreter's traces.
	Tracing bool
}

// Dial connects a Temporal client for durable evaluation.
func Dial(opts ClientOptions) (client.Client, error) {
	co := client.Options{HostPort: opts.HostPort, Namespace: opts.Namespace}
	if opts.Tracing {
		tracing, err := temporalotel.NewTracingInterceptor(temporalotel.TracerOptions{})
		if err != nil {
			return nil, err
		}
		co.Interceptors = []interceptor.ClientInterceptor{tracing}
	}
	return client.Dial(co)
}

// NewWorker returns a worker serving the evaluation task queue with the
// workflow and its activities registered against envref.
func NewWorker(c client.Client, envref *env.Ref, itp *interpreter.Interpreter, taskQueue string) worker.Worker {
	if taskQueue == "" {
		taskQueue = TaskQueue
	}
	w := worker.New(c, taskQueue, worker.Options{})
	w.RegisterWorkflow(EvaluateWorkflow)
	w.RegisterActivity(NewActivities(envref, itp))
	return w
}

// Evaluate starts a durable evaluation and blocks for its result.
func Evaluate(ctx context.Context, c client.Client, taskQueue string, input EvaluateInput) (EvaluateResult, error) {
	if taskQueue == "" {
		taskQueue = TaskQueue
	}
	run, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		TaskQueue: taskQueue,
	}, EvaluateWorkflow, input)
	if err != nil {
		return EvaluateResult{}, err
	}
	var result EvaluateResult
	if err := run.Get(ctx, &result); err != nil {
		return EvaluateResult{}, err
	}
	return result, nil
}

// IsNamespaceMissing reports whether err is Temporal's "namespace not
// found", so callers can distinguish a misconfigured namespace from a
// connectivity failure.
func IsNamespaceMissing(err error) bool {
	var nf *serviceerror.NamespaceNotFound
	return errors.As(err, &nf)
}
