// Package env composes the core's collaborators — store, cache, command
// registry, executor, asset manager, recipe provider, value factory — into
// one Environment, shared behind a cheaply-cloneable Ref handle.
package env

import (
	"sync"

	"github.com/liquers/liquers-go/core/assets"
	"github.com/liquers/liquers-go/core/cache"
	"github.com/liquers/liquers-go/core/command"
	"github.com/liquers/liquers-go/core/executor"
	"github.com/liquers/liquers-go/core/recipes"
	"github.com/liquers/liquers-go/core/store"
	"github.com/liquers/liquers-go/core/telemetry"
	"github.com/liquers/liquers-go/core/value"
)

type (
	// Config is the explicit wiring of an Environment. Every field is
	// optional; New applies documented defaults. There is no package-level
	// state: two environments built from two configs coexist in one
	// process without interference.
	Config struct {
		// Store backs resource reads and asset writes. Defaults to an
		// in-memory store.
		Store store.Store
		// Cache memoizes evaluated queries. Defaults to NoCache.
		Cache cache.Cache
		// Registry is the command metadata catalog. Defaults to an empty
		// registry.
		Registry *command.Registry
		// Values constructs the Value implementation threaded through
		// evaluation. Defaults to the Generic value factory.
		Values value.Factory
		// Recipes provides materialization plans for missing store keys.
		// Defaults to the trivial provider (no recipes).
		Recipes recipes.Provider
		// AssetOptions configure the default asset manager (rate limiter,
		// cross-node coordinator, telemetry).
		AssetOptions []assets.Option
		// Logger, Metrics and Tracer default to no-op implementations.
		Logger  telemetry.Logger
		Metrics telemetry.Metrics
		Tracer  telemetry.Tracer
	}

	// Environment is the root of all mutable state: the composition of
	// store, cache, registry, executor, asset manager and recipe provider.
	// It is mutated only during setup; evaluation reads it through a Ref.
	Environment struct {
		store    store.Store
		cache    cache.Cache
		registry *command.Registry
		executor *executor.Executor
		assets   assets.Manager
		recipes  recipes.Provider
		values   value.Factory
		logger   telemetry.Logger
		metrics  telemetry.Metrics
		tracer   telemetry.Tracer
	}

	// Ref is the shared handle to an Environment. Accessors take the read
	// lock, copy the needed handle, and release before the caller awaits
	// anything; the lock is never held across blocking calls.
	Ref struct {
		mu  sync.RWMutex
		env *Environment
	}
)

// New assembles an Environment from cfg, applying defaults for every unset
// field.
func New(cfg Config) *Environment {
	if cfg.Store == nil {
		cfg.Store = store.NewMemoryStore()
	}
	if cfg.Cache == nil {
		cfg.Cache = cache.NoCache{}
	}
	if cfg.Registry == nil {
		cfg.Registry = command.NewRegistry()
	}
	if cfg.Values == nil {
		cfg.Values = value.GenericFactory{}
	}
	if cfg.Recipes == nil {
		cfg.Recipes = recipes.TrivialProvider{}
	}
	if cfg.Logger == nil {
		cfg.Logger = telemetry.NewNoopLogger()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = telemetry.NewNoopMetrics()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = telemetry.NewNoopTracer()
	}
	e := &Environment{
		store:    cfg.Store,
		cache:    cfg.Cache,
		registry: cfg.Registry,
		recipes:  cfg.Recipes,
		values:   cfg.Values,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
		tracer:   cfg.Tracer,
	}
	e.executor = executor.New(cfg.Registry, executor.WithLogger(cfg.Logger), executor.WithTracer(cfg.Tracer))
	opts := append([]assets.Option{
		assets.WithLogger(cfg.Logger),
		assets.WithMetrics(cfg.Metrics),
		assets.WithTracer(cfg.Tracer),
	}, cfg.AssetOptions...)
	e.assets = assets.NewManager(cfg.Store, cfg.Recipes, cfg.Values, opts...)
	return e
}

// ToRef wraps e in a shared handle. Further setup mutation must go through
// the Ref's With* methods so readers and writers agree on one lock.
func (e *Environment) ToRef() *Ref {
	return &Ref{env: e}
}

// Executor returns the environment's executor.
func (e *Environment) Executor() *executor.Executor { return e.executor }

// Registry returns the environment's command metadata registry.
func (e *Environment) Registry() *command.Registry { return e.registry }

func (r *Ref) Store() store.Store {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.env.store
}

func (r *Ref) Cache() cache.Cache {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.env.cache
}

func (r *Ref) Registry() *command.Registry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.env.registry
}

func (r *Ref) Executor() *executor.Executor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.env.executor
}

func (r *Ref) Assets() assets.Manager {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.env.assets
}

func (r *Ref) Recipes() recipes.Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.env.recipes
}

func (r *Ref) Values() value.Factory {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.env.values
}

func (r *Ref) Logger() telemetry.Logger {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.env.logger
}

func (r *Ref) Metrics() telemetry.Metrics {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.env.metrics
}

func (r *Ref) Tracer() telemetry.Tracer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.env.tracer
}

// WithStore swaps the environment's store. Setup-time only: evaluations in
// flight keep the handle they already copied.
func (r *Ref) WithStore(s store.Store) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.env.store = s
}

// WithCache swaps the environment's cache. Setup-time only.
func (r *Ref) WithCache(c cache.Cache) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.env.cache = c
}
