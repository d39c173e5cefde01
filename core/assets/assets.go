// Package assets materializes store keys on demand: an asset is read from
// the store when present, and otherwise built by running the key's recipe
// plan and writing the result back. The manager guarantees at most one
// concurrent materialization per key.
package assets

import (
	"context"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/liquers/liquers-go/core/lqerror"
	"github.com/liquers/liquers-go/core/metadata"
	"github.com/liquers/liquers-go/core/plan"
	"github.com/liquers/liquers-go/core/query"
	"github.com/liquers/liquers-go/core/recipes"
	"github.com/liquers/liquers-go/core/state"
	"github.com/liquers/liquers-go/core/store"
	"github.com/liquers/liquers-go/core/telemetry"
	"github.com/liquers/liquers-go/core/value"
)

type (
	// Asset is a content-addressable artifact keyed by a store key,
	// produced either from the store or materialized from a recipe.
	Asset interface {
		// Key identifies the asset.
		Key() query.Key
		// GetState returns the asset's typed value and metadata,
		// materializing it first if the store does not hold it.
		GetState(ctx context.Context) (state.State, error)
		// GetBinary returns the asset's serialized bytes and metadata.
		GetBinary(ctx context.Context) ([]byte, *metadata.Record, error)
		// GetMetadata returns the asset's metadata only.
		GetMetadata(ctx context.Context) (*metadata.Record, error)
	}

	// Manager hands out Assets by key.
	Manager interface {
		Get(ctx context.Context, key query.Key) (Asset, error)
	}

	// PlanRunner executes a recipe plan against a fresh evaluation
	// context. The interpreter registers itself as the runner when the
	// environment is assembled.
	PlanRunner func(ctx context.Context, seq plan.Sequence, key query.Key) (state.State, error)

	// Coordinator extends the manager's per-process singleflight guarantee
	// across nodes sharing one store: at most one node builds a given key
	// at a time, and the others wait for its completion broadcast.
	Coordinator interface {
		// Acquire claims the build of key for buildID. Returns false when
		// another node already holds the claim.
		Acquire(ctx context.Context, key, buildID string) (bool, error)
		// Release drops the claim and broadcasts completion to waiters.
		Release(ctx context.Context, key, buildID string) error
		// Wait blocks until the node holding key's claim releases it.
		Wait(ctx context.Context, key string) error
	}

	// DefaultManager is the Manager consulting a store first and a recipe
	// provider on miss.
	DefaultManager struct {
		store     store.Store
		provider  recipes.Provider
		factory   value.Factory
		runner    PlanRunner
		group     singleflight.Group
		limiter   *rate.Limiter
		coord     Coordinator
		logger    telemetry.Logger
		metrics   telemetry.Metrics
		tracer    telemetry.Tracer
	}

	// Option configures a DefaultManager.
	Option func(*DefaultManager)
)

// WithRateLimiter bounds the rate of recipe materializations, preventing a
// recipe storm from saturating the store.
func WithRateLimiter(l *rate.Limiter) Option {
	return func(m *DefaultManager) { m.limiter = l }
}

// WithCoordinator enables cross-node build coordination.
func WithCoordinator(c Coordinator) Option {
	return func(m *DefaultManager) { m.coord = c }
}

// WithLogger configures the manager's logger.
func WithLogger(l telemetry.Logger) Option {
	return func(m *DefaultManager) { m.logger = l }
}

// WithMetrics configures the manager's metrics recorder.
func WithMetrics(mt telemetry.Metrics) Option {
	return func(m *DefaultManager) { m.metrics = mt }
}

// WithTracer configures the manager's tracer.
func WithTracer(t telemetry.Tracer) Option {
	return func(m *DefaultManager) { m.tracer = t }
}

var _ Manager = (*DefaultManager)(nil)

// NewManager returns a DefaultManager reading through s and materializing
// misses via provider. The plan runner is registered later, when the
// interpreter is attached to the environment, via SetRunner.
func NewManager(s store.Store, provider recipes.Provider, factory value.Factory, opts ...Option) *DefaultManager {
	m := &DefaultManager{
		store:    s,
		provider: provider,
		factory:  factory,
		logger:   telemetry.NewNoopLogger(),
		metrics:  telemetry.NewNoopMetrics(),
		tracer:   telemetry.NewNoopTracer(),
	}
	for _, o := range opts {
		if o != nil {
			o(m)
		}
	}
	return m
}

// SetRunner registers the plan runner used to execute recipe plans. It must
// be called before the first Get that needs materialization.
func (m *DefaultManager) SetRunner(r PlanRunner) {
	m.runner = r
}

// Get returns a lazy Asset handle for key. The store is not consulted until
// one of the asset's accessors is called.
func (m *DefaultManager) Get(_ context.Context, key query.Key) (Asset, error) {
	return &managedAsset{manager: m, key: key}, nil
}

type managedAsset struct {
	manager *DefaultManager
	key     query.Key
}

func (a *managedAsset) Key() query.Key {
	return a.key
}

func (a *managedAsset) GetState(ctx context.Context) (state.State, error) {
	data, meta, err := a.GetBinary(ctx)
	if err != nil {
		return state.State{}, err
	}
	v, err := a.manager.factory.FromBytes(data)
	if err != nil {
		return state.State{}, lqerror.FromError(err)
	}
	return state.State{Data: v, Metadata: meta}, nil
}

func (a *managedAsset) GetBinary(ctx context.Context) ([]byte, *metadata.Record, error) {
	data, meta, err := a.manager.store.Get(ctx, a.key)
	if err == nil {
		a.manager.metrics.IncCounter("liquers.assets.store_hit", 1)
		return data, meta, nil
	}
	if !lqerror.Of(err, lqerror.KindKeyNotFound) {
		return nil, nil, err
	}
	a.manager.metrics.IncCounter("liquers.assets.store_miss", 1)
	if err := a.manager.materialize(ctx, a.key); err != nil {
		return nil, nil, err
	}
	return a.manager.store.Get(ctx, a.key)
}

func (a *managedAsset) GetMetadata(ctx context.Context) (*metadata.Record, error) {
	meta, err := a.manager.store.GetMetadata(ctx, a.key)
	if err == nil {
		return meta, nil
	}
	if !lqerror.Of(err, lqerror.KindKeyNotFound) {
		return nil, err
	}
	if err := a.manager.materialize(ctx, a.key); err != nil {
		return nil, err
	}
	return a.manager.store.GetMetadata(ctx, a.key)
}

// materialize builds key via its recipe plan and writes the result back to
// the store. Concurrent calls for the same key share one build: the
// singleflight group holds the pending build, and waiters whose context is
// canceled detach without aborting it for the others.
func (m *DefaultManager) materialize(ctx context.Context, key query.Key) error {
	keyStr := key.String()
	ch := m.group.DoChan(keyStr, func() (any, error) {
		// The build must outlive any individual waiter's cancellation;
		// detach it from the initiating caller's context.
		return nil, m.build(context.WithoutCancel(ctx), key)
	})
	select {
	case <-ctx.Done():
		return lqerror.NewWithCause(lqerror.KindGeneral, "asset materialization canceled", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return lqerror.FromError(res.Err)
		}
		return nil
	}
}

func (m *DefaultManager) build(ctx context.Context, key query.Key) error {
	ctx, span := m.tracer.Start(ctx, "liquers.assets.materialize")
	defer span.End()
	buildID := uuid.NewString()
	m.logger.Debug(ctx, "materializing asset", "key", key.String(), "build_id", buildID)

	if m.limiter != nil {
		if err := m.limiter.Wait(ctx); err != nil {
			return lqerror.NewWithCause(lqerror.KindGeneral, "materialization rate limit wait", err)
		}
	}

	if m.coord != nil {
		owner, err := m.coord.Acquire(ctx, key.String(), buildID)
		if err != nil {
			return lqerror.FromError(err)
		}
		if !owner {
			if err := m.coord.Wait(ctx, key.String()); err != nil {
				return lqerror.FromError(err)
			}
			// The owning node wrote the result; if it failed, fall
			// through to a local build attempt.
			if ok, err := m.store.Contains(ctx, key); err == nil && ok {
				return nil
			}
			if owner, err = m.coord.Acquire(ctx, key.String(), buildID); err != nil || !owner {
				return lqerror.Errorf(lqerror.KindGeneral, "could not claim build of key %q after remote build failed", key.String())
			}
		}
		defer func() {
			if err := m.coord.Release(context.WithoutCancel(ctx), key.String(), buildID); err != nil {
				m.logger.Warn(ctx, "release build claim", "key", key.String(), "error", err.Error())
			}
		}()
	}

	seq, err := m.provider.RecipePlan(ctx, key)
	if err != nil {
		return err
	}
	if m.runner == nil {
		return lqerror.New(lqerror.KindNotSupported, "asset manager has no plan runner attached")
	}
	st, err := m.runner(ctx, seq, key)
	if err != nil {
		return err
	}
	if st.IsError() {
		if st.Metadata.ErrorData != nil {
			return st.Metadata.ErrorData
		}
		return lqerror.Errorf(lqerror.KindGeneral, "recipe for key %q produced an error state", key.String())
	}

	format := st.Metadata.DataFormat
	if format == "" {
		format = st.Data.DefaultExtension()
	}
	data, err := st.Data.AsBytes(format)
	if err != nil {
		return err
	}
	meta := st.Metadata.Clone()
	meta.Key = key
	meta.DataFormat = format
	meta.Status = metadata.StatusReady
	if meta.Filename == "" {
		meta.Filename = key.Filename()
	}
	meta.FileSize = int64(len(data))
	if err := m.store.Set(ctx, key, data, meta); err != nil {
		return err
	}
	m.metrics.IncCounter("liquers.assets.materialized", 1)
	m.logger.Info(ctx, "asset materialized", "key", key.String(), "build_id", buildID, "size", len(data))
	return nil
}
