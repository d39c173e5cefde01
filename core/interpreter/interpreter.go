// Package interpreter executes plans: it lowers parsed queries into step
// sequences against the environment's command registry and runs them
// step-by-step, threading a typed value and mutable metadata context.
package interpreter

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/liquers/liquers-go/core/assets"
	"github.com/liquers/liquers-go/core/cache"
	"github.com/liquers/liquers-go/core/command"
	"github.com/liquers/liquers-go/core/env"
	"github.com/liquers/liquers-go/core/executor"
	"github.com/liquers/liquers-go/core/lqerror"
	"github.com/liquers/liquers-go/core/metadata"
	"github.com/liquers/liquers-go/core/plan"
	"github.com/liquers/liquers-go/core/query"
	"github.com/liquers/liquers-go/core/state"
)

// Interpreter evaluates queries against one environment. It is safe for
// concurrent use: each Evaluate call owns its own evaluation context.
type Interpreter struct {
	envref *env.Ref
}

// New returns an Interpreter over envref. When the environment's asset
// manager is the default one, the interpreter registers itself as its
// recipe plan runner.
func New(envref *env.Ref) *Interpreter {
	i := &Interpreter{envref: envref}
	if dm, ok := envref.Assets().(*assets.DefaultManager); ok {
		dm.SetRunner(i.runRecipePlan)
	}
	return i
}

// MakePlan parses text and lowers it into a plan against the environment's
// registry snapshot.
func (i *Interpreter) MakePlan(text string) (plan.Sequence, error) {
	q, err := query.Parse(text)
	if err != nil {
		return nil, err
	}
	return i.BuildPlan(q)
}

// BuildPlan lowers an already-parsed query.
func (i *Interpreter) BuildPlan(q *query.Query) (plan.Sequence, error) {
	i.envref.Metrics().IncCounter("liquers.interpreter.plan_build", 1)
	return plan.NewBuilder(i.envref.Registry()).Build(q)
}

// Evaluate parses, plans, and executes text with a fresh evaluation
// context rooted at cwd. The returned State always carries the outcome in
// its metadata; the error return is non-nil whenever evaluation failed at
// any stage, for callers that prefer Go error flow.
func (i *Interpreter) Evaluate(ctx context.Context, text string, cwd query.Key) (state.State, error) {
	q, err := query.Parse(text)
	if err != nil {
		e := lqerror.FromError(err)
		return state.FromError(e), e
	}
	return i.EvaluateQuery(ctx, q, cwd)
}

// EvaluateQuery is Evaluate over a parsed query.
func (i *Interpreter) EvaluateQuery(ctx context.Context, q *query.Query, cwd query.Key) (state.State, error) {
	encoded := query.Encode(q)
	ctx, span := i.envref.Tracer().Start(ctx, "liquers.interpreter.evaluate",
		trace.WithAttributes(attribute.String("query", encoded)))
	defer span.End()

	if st, ok := i.cachedState(ctx, encoded); ok {
		i.envref.Metrics().IncCounter("liquers.interpreter.cache_hit", 1)
		return st, nil
	}
	i.envref.Metrics().IncCounter("liquers.interpreter.cache_miss", 1)

	seq, err := i.BuildPlan(q)
	if err != nil {
		e := lqerror.FromError(err).WithQuery(encoded)
		span.SetStatus(codes.Error, e.Message)
		return state.FromError(e), e
	}

	ectx := env.NewEvalContext(i.envref, cwd)
	ectx.SetQuery(encoded)
	ectx.SetStatus(metadata.StatusEvaluation)
	st := i.ApplyPlan(ctx, seq, ectx, state.Empty())
	if st.IsError() {
		e := st.Metadata.ErrorData
		if e == nil {
			e = lqerror.New(lqerror.KindGeneral, "evaluation failed")
		}
		span.SetStatus(codes.Error, e.Message)
		return st, e.WithQuery(encoded)
	}
	ectx.SetStatus(metadata.StatusReady)
	st = st.WithMetadata(ectx.SnapshotMetadata())
	i.storeInCache(ctx, encoded, st)
	return st, nil
}

// cachedState consults the environment's cache for an evaluated query.
func (i *Interpreter) cachedState(ctx context.Context, encoded string) (state.State, bool) {
	c := i.envref.Cache()
	entry, ok, err := c.Get(ctx, encoded)
	if err != nil || !ok || entry == nil {
		return state.State{}, false
	}
	v, err := i.envref.Values().FromBytes(entry.Data)
	if err != nil {
		return state.State{}, false
	}
	meta := entry.Metadata
	if meta == nil {
		meta = metadata.New()
	}
	return state.State{Data: v, Metadata: meta.Clone()}, true
}

// storeInCache memoizes a successful evaluation. Cache failures are
// logged, never surfaced: the result is already in hand.
func (i *Interpreter) storeInCache(ctx context.Context, encoded string, st state.State) {
	c := i.envref.Cache()
	if _, isNo := c.(cache.NoCache); isNo {
		return
	}
	format := st.Metadata.DataFormat
	if format == "" {
		// The value's own extension keeps the serialization faithful to
		// the in-memory kind (a plain string round-trips as text, not as
		// a JSON-quoted string).
		format = st.Data.DefaultExtension()
	}
	data, err := st.Data.AsBytes(format)
	if err != nil {
		i.envref.Logger().Debug(ctx, "skip caching unserializable value", "query", encoded, "error", err.Error())
		return
	}
	meta := st.Metadata.Clone()
	meta.Query = encoded
	meta.DataFormat = format
	if err := c.Set(ctx, encoded, &cache.Entry{Data: data, Metadata: meta, DataFormat: format}); err != nil {
		i.envref.Logger().Warn(ctx, "cache write failed", "query", encoded, "error", err.Error())
	}
}

// ApplyPlan executes every step of seq in order, rebinding the input state
// to each step's output and snapshotting the context metadata at each
// boundary. The first failing step terminates the plan: its error is
// attached to the metadata and the terminal state is returned.
func (i *Interpreter) ApplyPlan(ctx context.Context, seq plan.Sequence, ectx *env.EvalContext, input state.State) state.State {
	st := input
	for _, step := range seq {
		ctx, span := i.envref.Tracer().Start(ctx, "liquers.interpreter.step",
			trace.WithAttributes(attribute.String("step", stepName(step))))
		next, err := i.applyStep(ctx, step, ectx, st)
		if err != nil {
			e := lqerror.FromError(err)
			if e.Position == nil || e.Position.IsUnknown() {
				e = e.WithPosition(stepPosition(step))
			}
			ectx.SetError(e)
			span.RecordError(e)
			span.SetStatus(codes.Error, e.Message)
			span.End()
			return st.WithMetadata(ectx.SnapshotMetadata())
		}
		span.End()
		st = next.WithMetadata(ectx.SnapshotMetadata())
	}
	return st
}

func (i *Interpreter) applyStep(ctx context.Context, step plan.Step, ectx *env.EvalContext, st state.State) (state.State, error) {
	switch s := step.(type) {
	case plan.GetResource:
		// Copy the store handle before awaiting; the environment lock is
		// never held across a blocking call.
		store := i.envref.Store()
		data, meta, err := store.Get(ctx, s.Key)
		if err != nil {
			return st, err
		}
		v, err := i.envref.Values().FromBytes(data)
		if err != nil {
			return st, err
		}
		i.adoptResourceMetadata(ectx, s.Key, meta)
		return st.WithData(v), nil

	case plan.GetResourceMetadata:
		store := i.envref.Store()
		meta, err := store.GetMetadata(ctx, s.Key)
		if err != nil {
			return st, err
		}
		i.adoptResourceMetadata(ectx, s.Key, meta)
		return st.WithData(i.envref.Values().FromMetadata(meta)), nil

	case plan.GetAsset:
		asset, err := i.envref.Assets().Get(ctx, s.Key)
		if err != nil {
			return st, err
		}
		assetState, err := asset.GetState(ctx)
		if err != nil {
			return st, err
		}
		i.adoptResourceMetadata(ectx, s.Key, assetState.Metadata)
		return st.WithData(assetState.Data), nil

	case plan.GetAssetBinary:
		asset, err := i.envref.Assets().Get(ctx, s.Key)
		if err != nil {
			return st, err
		}
		data, meta, err := asset.GetBinary(ctx)
		if err != nil {
			return st, err
		}
		v, err := i.envref.Values().FromBytes(data)
		if err != nil {
			return st, err
		}
		i.adoptResourceMetadata(ectx, s.Key, meta)
		return st.WithData(v), nil

	case plan.GetAssetMetadata:
		asset, err := i.envref.Assets().Get(ctx, s.Key)
		if err != nil {
			return st, err
		}
		meta, err := asset.GetMetadata(ctx)
		if err != nil {
			return st, err
		}
		i.adoptResourceMetadata(ectx, s.Key, meta)
		return st.WithData(i.envref.Values().FromMetadata(meta)), nil

	case plan.Evaluate:
		// A nested query evaluates in a fresh context with an empty input
		// state; only its resulting value flows back.
		inner, err := i.EvaluateQuery(ctx, s.Query, ectx.Cwd())
		if err != nil {
			return st, err
		}
		return st.WithData(inner.Data), nil

	case plan.Action:
		exec := i.envref.Executor()
		key := command.Key{Realm: s.Realm, Namespace: s.Namespace, Name: s.Name}
		out, err := exec.Execute(ctx, key, st, s.Parameters, i.linkEvaluator(ectx), ectx)
		if err != nil {
			return st, lqerror.FromError(err).WithPosition(s.Position)
		}
		return out, nil

	case plan.Filename:
		ectx.SetFilename(s.Name.Name)
		return st, nil

	case plan.SetCwd:
		ectx.SetCwd(s.Key)
		return st, nil

	case plan.Log:
		switch s.Level {
		case plan.LogWarning:
			ectx.Warning(ctx, s.Message)
		case plan.LogError:
			// An Error log entry records the message; it does not mark
			// the state as errored.
			ectx.Error(ctx, s.Message)
		default:
			ectx.Info(ctx, s.Message)
		}
		return st, nil

	case plan.Plan:
		inner := i.ApplyPlan(ctx, s.Steps, ectx, st)
		if inner.IsError() {
			e := inner.Metadata.ErrorData
			if e == nil {
				e = lqerror.New(lqerror.KindGeneral, "inlined plan failed")
			}
			return st, e
		}
		return inner, nil

	case plan.UseKeyValue:
		return st.WithData(i.envref.Values().FromKey(s.Key)), nil

	case plan.UseQueryValue:
		return st.WithData(i.envref.Values().FromQuery(s.Query)), nil

	default:
		return st, lqerror.Errorf(lqerror.KindNotSupported, "unsupported plan step %T", step)
	}
}

// linkEvaluator resolves an action's link parameters by recursive
// evaluation, mirroring the Evaluate step's fresh-context semantics.
func (i *Interpreter) linkEvaluator(ectx *env.EvalContext) executor.Evaluator {
	return func(ctx context.Context, q *query.Query) (state.State, error) {
		return i.EvaluateQuery(ctx, q, ectx.Cwd())
	}
}

// runRecipePlan is the assets.PlanRunner the interpreter registers with
// the default asset manager: it executes a recipe plan in a fresh context
// rooted at the materialized key's parent.
func (i *Interpreter) runRecipePlan(ctx context.Context, seq plan.Sequence, key query.Key) (state.State, error) {
	ectx := env.NewEvalContext(i.envref, key.Parent())
	ectx.SetStatus(metadata.StatusRecipe)
	st := i.ApplyPlan(ctx, seq, ectx, state.Empty())
	if st.IsError() {
		e := st.Metadata.ErrorData
		if e == nil {
			e = lqerror.Errorf(lqerror.KindGeneral, "recipe plan for key %q failed", key.String())
		}
		return st, e
	}
	return st, nil
}

// adoptResourceMetadata merges a fetched resource's metadata into the
// evaluation context: key, filename, typing and size travel with the data,
// while the context keeps its own accumulated log.
func (i *Interpreter) adoptResourceMetadata(ectx *env.EvalContext, key query.Key, meta *metadata.Record) {
	if meta == nil {
		return
	}
	m := ectx.Metadata()
	m.Key = key
	if meta.Filename != "" {
		m.Filename = meta.Filename
	} else {
		m.Filename = key.Filename()
	}
	if meta.TypeIdentifier != "" {
		m.TypeIdentifier = meta.TypeIdentifier
	}
	if meta.MediaType != "" {
		m.MediaType = meta.MediaType
	}
	if meta.DataFormat != "" {
		m.DataFormat = meta.DataFormat
	}
	m.FileSize = meta.FileSize
	m.IsDir = meta.IsDir
}

func stepName(step plan.Step) string {
	switch step.(type) {
	case plan.GetResource:
		return "get_resource"
	case plan.GetResourceMetadata:
		return "get_resource_metadata"
	case plan.GetAsset:
		return "get_asset"
	case plan.GetAssetBinary:
		return "get_asset_binary"
	case plan.GetAssetMetadata:
		return "get_asset_metadata"
	case plan.Evaluate:
		return "evaluate"
	case plan.Action:
		return "action"
	case plan.Filename:
		return "filename"
	case plan.SetCwd:
		return "set_cwd"
	case plan.Log:
		return "log"
	case plan.Plan:
		return "plan"
	case plan.UseKeyValue:
		return "use_key_value"
	case plan.UseQueryValue:
		return "use_query_value"
	default:
		return fmt.Sprintf("%T", step)
	}
}

func stepPosition(step plan.Step) query.Position {
	if a, ok := step.(plan.Action); ok {
		return a.Position
	}
	return query.UnknownPosition()
}
