package interpreter

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liquers/liquers-go/core/cache"
	"github.com/liquers/liquers-go/core/command"
	"github.com/liquers/liquers-go/core/env"
	"github.com/liquers/liquers-go/core/executor"
	"github.com/liquers/liquers-go/core/lqerror"
	"github.com/liquers/liquers-go/core/metadata"
	"github.com/liquers/liquers-go/core/plan"
	"github.com/liquers/liquers-go/core/query"
	"github.com/liquers/liquers-go/core/state"
	"github.com/liquers/liquers-go/core/store"
	"github.com/liquers/liquers-go/core/value"
)

// testEnv assembles an environment with the scenario command set: hello,
// greet, query_to_string, data, fail, count, and lui/query_console.
func testEnv(t *testing.T, cfg env.Config) (*env.Environment, *int) {
	t.Helper()
	if cfg.Registry == nil {
		cfg.Registry = command.NewRegistry()
	}
	e := env.New(cfg)
	reg := e.Registry()
	exec := e.Executor()
	counter := new(int)

	add := func(meta command.Metadata, h executor.Handler) {
		require.NoError(t, reg.Add(meta))
		require.NoError(t, exec.Register(command.Key{Realm: meta.Realm, Namespace: meta.Namespace, Name: meta.Name}, h))
	}

	add(command.Metadata{Name: "hello"}, func(_ context.Context, in state.State, _ executor.BoundArguments) (state.State, error) {
		return in.WithData(value.FromString("world")), nil
	})
	add(command.Metadata{Name: "data"}, func(_ context.Context, in state.State, _ executor.BoundArguments) (state.State, error) {
		return in.WithData(value.FromString("test-data")), nil
	})
	add(command.Metadata{
		Name: "greet",
		Arguments: []command.ArgumentInfo{
			{Name: "greeting", ArgumentType: command.ArgumentTypeString, Default: command.ArgumentDefault{HasValue: true, Value: "Hello"}},
		},
	}, func(_ context.Context, in state.State, args executor.BoundArguments) (state.State, error) {
		greeting, _ := args.String(0)
		subject, err := in.Data.TryIntoString()
		if err != nil {
			return state.State{}, err
		}
		return in.WithData(value.FromString(fmt.Sprintf("%s, %s!", greeting, subject))), nil
	})
	add(command.Metadata{
		Name: "append",
		Arguments: []command.ArgumentInfo{
			{Name: "suffix", ArgumentType: command.ArgumentTypeString},
		},
	}, func(_ context.Context, in state.State, args executor.BoundArguments) (state.State, error) {
		suffix, _ := args.String(0)
		s, err := in.Data.TryIntoString()
		if err != nil {
			return state.State{}, err
		}
		return in.WithData(value.FromString(s + suffix)), nil
	})
	add(command.Metadata{Name: "query_to_string"}, func(_ context.Context, in state.State, _ executor.BoundArguments) (state.State, error) {
		s, err := in.Data.TryIntoString()
		if err != nil {
			return state.State{}, err
		}
		return in.WithData(value.FromString(s)), nil
	})
	add(command.Metadata{Name: "fail"}, func(_ context.Context, _ state.State, _ executor.BoundArguments) (state.State, error) {
		return state.State{}, lqerror.New(lqerror.KindGeneral, "deliberate failure")
	})
	add(command.Metadata{Name: "count"}, func(_ context.Context, in state.State, _ executor.BoundArguments) (state.State, error) {
		*counter++
		return in.WithData(value.FromString(fmt.Sprintf("count-%d", *counter))), nil
	})
	add(command.Metadata{Namespace: "lui", Name: "query_console"}, func(_ context.Context, in state.State, _ executor.BoundArguments) (state.State, error) {
		s, err := in.Data.TryIntoString()
		if err != nil {
			return state.State{}, err
		}
		return in.WithData(value.FromString(s)), nil
	})
	return e, counter
}

func mustString(t *testing.T, st state.State) string {
	t.Helper()
	s, err := st.Data.TryIntoString()
	require.NoError(t, err)
	return s
}

func TestEvaluateHelloGreet(t *testing.T) {
	e, _ := testEnv(t, env.Config{})
	itp := New(e.ToRef())

	st, err := itp.Evaluate(context.Background(), "hello/greet", nil)
	require.NoError(t, err)
	assert.Equal(t, "Hello, world!", mustString(t, st))
	assert.False(t, st.IsError())
	for _, entry := range st.Metadata.Log {
		assert.NotEqual(t, metadata.LevelError, entry.Level)
	}
	assert.Equal(t, metadata.StatusReady, st.Metadata.Status)
}

func TestEvaluateHelloGreetHi(t *testing.T) {
	e, _ := testEnv(t, env.Config{})
	itp := New(e.ToRef())
	st, err := itp.Evaluate(context.Background(), "hello/greet-Hi", nil)
	require.NoError(t, err)
	assert.Equal(t, "Hi, world!", mustString(t, st))
}

func TestEvaluateQueryReification(t *testing.T) {
	e, _ := testEnv(t, env.Config{})
	itp := New(e.ToRef())

	seq, err := itp.MakePlan("data/append-first/q/query_to_string")
	require.NoError(t, err)
	require.Len(t, seq, 2)
	use := seq[0].(plan.UseQueryValue)
	assert.Equal(t, "data/append-first", query.Encode(use.Query))

	st, err := itp.Evaluate(context.Background(), "data/append-first/q/query_to_string", nil)
	require.NoError(t, err)
	assert.Equal(t, "data/append-first", mustString(t, st))
}

func TestEvaluateQueryReificationWithFilename(t *testing.T) {
	e, _ := testEnv(t, env.Config{})
	itp := New(e.ToRef())

	seq, err := itp.MakePlan("data/q/query_to_string/output.txt")
	require.NoError(t, err)
	require.Len(t, seq, 3)

	st, err := itp.Evaluate(context.Background(), "data/q/query_to_string/output.txt", nil)
	require.NoError(t, err)
	assert.Equal(t, "data", mustString(t, st))
	assert.Equal(t, "output.txt", st.Metadata.Filename)
}

func TestEvaluateNamespacedActionAfterReification(t *testing.T) {
	e, _ := testEnv(t, env.Config{})
	itp := New(e.ToRef())

	// yyy is not a registered command and xxx is not a stored key: the
	// reified prefix is never resolved or executed.
	seq, err := itp.MakePlan("-R/xxx/-/yyy/q/ns-lui/query_console")
	require.NoError(t, err)
	require.Len(t, seq, 2)
	use := seq[0].(plan.UseQueryValue)
	assert.Equal(t, "-R/xxx/-/yyy", query.Encode(use.Query))
	action := seq[1].(plan.Action)
	assert.Equal(t, "lui", action.Namespace)
	assert.Equal(t, "query_console", action.Name)

	st, err := itp.Evaluate(context.Background(), "-R/xxx/-/yyy/q/ns-lui/query_console", nil)
	require.NoError(t, err)
	assert.Equal(t, "-R/xxx/-/yyy", mustString(t, st))
}

func TestEvaluateResource(t *testing.T) {
	ms := store.NewMemoryStore()
	meta := metadata.New()
	meta.Filename = "b"
	require.NoError(t, ms.Set(context.Background(), query.NewKey("a", "b"), []byte("payload"), meta))

	e, _ := testEnv(t, env.Config{Store: ms})
	itp := New(e.ToRef())

	st, err := itp.Evaluate(context.Background(), "-R/a/b", nil)
	require.NoError(t, err)
	assert.Equal(t, "payload", mustString(t, st))
	assert.Equal(t, "b", st.Metadata.Filename)
	assert.Equal(t, "a/b", st.Metadata.Key.String())
}

func TestEvaluateResourceMetadataDiscriminator(t *testing.T) {
	ms := store.NewMemoryStore()
	require.NoError(t, ms.Set(context.Background(), query.NewKey("a", "b"), []byte("payload"), metadata.New()))

	e, _ := testEnv(t, env.Config{Store: ms})
	itp := New(e.ToRef())

	seq, err := itp.MakePlan("-R/a/b/-/meta")
	require.NoError(t, err)
	require.Len(t, seq, 1)
	_, ok := seq[0].(plan.GetResourceMetadata)
	require.True(t, ok)

	st, err := itp.Evaluate(context.Background(), "-R/a/b/-/meta", nil)
	require.NoError(t, err)
	assert.Equal(t, "a/b", st.Metadata.Key.String())
}

func TestEvaluateMissingResource(t *testing.T) {
	e, _ := testEnv(t, env.Config{})
	itp := New(e.ToRef())

	st, err := itp.Evaluate(context.Background(), "-R/no/such/key", nil)
	require.Error(t, err)
	assert.True(t, lqerror.Of(err, lqerror.KindKeyNotFound))
	assert.True(t, st.IsError())
}

func TestEvaluateErrorAbortsPlan(t *testing.T) {
	e, counter := testEnv(t, env.Config{})
	itp := New(e.ToRef())

	st, err := itp.Evaluate(context.Background(), "fail/count", nil)
	require.Error(t, err)
	assert.True(t, st.IsError())
	require.NotNil(t, st.Metadata.ErrorData)
	assert.Equal(t, lqerror.KindGeneral, st.Metadata.ErrorData.Kind)
	// The failing step terminates the plan; count never runs.
	assert.Equal(t, 0, *counter)
}

func TestEvaluateLinkParameter(t *testing.T) {
	e, _ := testEnv(t, env.Config{})
	itp := New(e.ToRef())

	st, err := itp.Evaluate(context.Background(), "hello/greet-~L(hello)", nil)
	require.NoError(t, err)
	assert.Equal(t, "world, world!", mustString(t, st))
}

func TestEvaluateMemoizesThroughCache(t *testing.T) {
	e, counter := testEnv(t, env.Config{Cache: cache.NewMemoryCache()})
	itp := New(e.ToRef())

	st, err := itp.Evaluate(context.Background(), "count", nil)
	require.NoError(t, err)
	assert.Equal(t, "count-1", mustString(t, st))

	st, err = itp.Evaluate(context.Background(), "count", nil)
	require.NoError(t, err)
	assert.Equal(t, "count-1", mustString(t, st))
	assert.Equal(t, 1, *counter)
}

func TestEvaluateParseError(t *testing.T) {
	e, _ := testEnv(t, env.Config{})
	itp := New(e.ToRef())
	st, err := itp.Evaluate(context.Background(), "bad~", nil)
	require.Error(t, err)
	assert.True(t, lqerror.Of(err, lqerror.KindParseError))
	assert.True(t, st.IsError())
}

func TestApplyPlanLogSteps(t *testing.T) {
	e, _ := testEnv(t, env.Config{})
	envref := e.ToRef()
	itp := New(envref)

	ectx := env.NewEvalContext(envref, nil)
	seq := plan.Sequence{
		plan.Log{Level: plan.LogInfo, Message: "starting"},
		plan.Log{Level: plan.LogWarning, Message: "careful"},
		plan.Log{Level: plan.LogError, Message: "logged error"},
	}
	st := itp.ApplyPlan(context.Background(), seq, ectx, state.Empty())
	// An Error log entry records the message without erroring the state.
	assert.False(t, st.IsError())
	require.Len(t, st.Metadata.Log, 3)
	assert.Equal(t, metadata.LevelInfo, st.Metadata.Log[0].Level)
	assert.Equal(t, metadata.LevelWarning, st.Metadata.Log[1].Level)
	assert.Equal(t, metadata.LevelError, st.Metadata.Log[2].Level)
}

func TestApplyPlanValueSteps(t *testing.T) {
	e, _ := testEnv(t, env.Config{})
	envref := e.ToRef()
	itp := New(envref)

	q, err := query.Parse("hello/greet")
	require.NoError(t, err)
	ectx := env.NewEvalContext(envref, nil)
	seq := plan.Sequence{
		plan.UseKeyValue{Key: query.NewKey("a", "b")},
		plan.Filename{Name: query.ResourceName{Name: "out.txt"}},
		plan.SetCwd{Key: query.NewKey("a")},
		plan.UseQueryValue{Query: q},
	}
	st := itp.ApplyPlan(context.Background(), seq, ectx, state.Empty())
	require.False(t, st.IsError())
	assert.Equal(t, "hello/greet", mustString(t, st))
	assert.Equal(t, "out.txt", st.Metadata.Filename)
	assert.Equal(t, "a", ectx.Cwd().String())
}

func TestApplyPlanEvaluateAndInlineSteps(t *testing.T) {
	e, _ := testEnv(t, env.Config{})
	envref := e.ToRef()
	itp := New(envref)

	inner, err := query.Parse("hello")
	require.NoError(t, err)
	innerSeq, err := itp.BuildPlan(inner)
	require.NoError(t, err)

	ectx := env.NewEvalContext(envref, nil)
	seq := plan.Sequence{
		plan.Evaluate{Query: inner},
		plan.Plan{Steps: innerSeq},
	}
	st := itp.ApplyPlan(context.Background(), seq, ectx, state.Empty())
	require.False(t, st.IsError())
	assert.Equal(t, "world", mustString(t, st))
}

// TestConcurrentEvaluations exercises the no-deadlock policy: many
// evaluations against one environment, including nested link resolution,
// complete without holding the environment lock across awaits.
func TestConcurrentEvaluations(t *testing.T) {
	e, _ := testEnv(t, env.Config{})
	itp := New(e.ToRef())

	var wg sync.WaitGroup
	errs := make([]error, 16)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			st, err := itp.Evaluate(context.Background(), "hello/greet-~L(hello)", nil)
			if err == nil {
				if s, serr := st.Data.TryIntoString(); serr != nil || s != "world, world!" {
					err = fmt.Errorf("unexpected result %q %v", s, serr)
				}
			}
			errs[i] = err
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		assert.NoError(t, err)
	}
}
