package executor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liquers/liquers-go/core/command"
	"github.com/liquers/liquers-go/core/lqerror"
	"github.com/liquers/liquers-go/core/plan"
	"github.com/liquers/liquers-go/core/query"
	"github.com/liquers/liquers-go/core/state"
	"github.com/liquers/liquers-go/core/value"
)

type mapInjector map[string]any

func (m mapInjector) Inject(_ context.Context, name string) (any, error) {
	v, ok := m[name]
	if !ok {
		return nil, lqerror.Errorf(lqerror.KindNotAvailable, "no injectable %q", name)
	}
	return v, nil
}

func literal(s string) plan.ResolvedParameter {
	return plan.ResolvedParameter{Kind: plan.ParameterLiteral, Literal: s, Position: query.UnknownPosition()}
}

func newTestExecutor(t *testing.T, meta command.Metadata, handler Handler) (*Executor, command.Key) {
	t.Helper()
	reg := command.NewRegistry()
	require.NoError(t, reg.Add(meta))
	e := New(reg)
	key := command.Key{Realm: meta.Realm, Namespace: meta.Namespace, Name: meta.Name}
	require.NoError(t, e.Register(key, handler))
	return e, key
}

func TestExecuteBindsTypedArguments(t *testing.T) {
	meta := command.Metadata{
		Name: "typed",
		Arguments: []command.ArgumentInfo{
			{Name: "s", ArgumentType: command.ArgumentTypeString},
			{Name: "n", ArgumentType: command.ArgumentTypeInteger},
			{Name: "f", ArgumentType: command.ArgumentTypeFloat},
			{Name: "b", ArgumentType: command.ArgumentTypeBoolean},
		},
	}
	var got BoundArguments
	e, key := newTestExecutor(t, meta, func(_ context.Context, in state.State, args BoundArguments) (state.State, error) {
		got = args
		return in, nil
	})

	params := plan.ResolvedParameterValues{literal("text"), literal("42"), literal("3.5"), literal("true")}
	_, err := e.Execute(context.Background(), key, state.Empty(), params, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "text", got[0])
	assert.Equal(t, 42, got[1])
	assert.Equal(t, 3.5, got[2])
	assert.Equal(t, true, got[3])
}

func TestExecuteConversionError(t *testing.T) {
	meta := command.Metadata{
		Name: "int_only",
		Arguments: []command.ArgumentInfo{
			{Name: "n", ArgumentType: command.ArgumentTypeInteger},
		},
	}
	e, key := newTestExecutor(t, meta, func(_ context.Context, in state.State, _ BoundArguments) (state.State, error) {
		return in, nil
	})
	_, err := e.Execute(context.Background(), key, state.Empty(), plan.ResolvedParameterValues{literal("abc")}, nil, nil)
	require.Error(t, err)
	assert.True(t, lqerror.Of(err, lqerror.KindConversionError))
}

func TestExecuteEnumValidation(t *testing.T) {
	meta := command.Metadata{
		Name: "pick",
		Arguments: []command.ArgumentInfo{
			{Name: "color", ArgumentType: command.ArgumentTypeEnum, EnumName: "color", EnumValues: []string{"red", "green"}},
		},
	}
	e, key := newTestExecutor(t, meta, func(_ context.Context, in state.State, _ BoundArguments) (state.State, error) {
		return in, nil
	})
	_, err := e.Execute(context.Background(), key, state.Empty(), plan.ResolvedParameterValues{literal("red")}, nil, nil)
	require.NoError(t, err)
	_, err = e.Execute(context.Background(), key, state.Empty(), plan.ResolvedParameterValues{literal("blue")}, nil, nil)
	require.Error(t, err)
	assert.True(t, lqerror.Of(err, lqerror.KindConversionError))
}

func TestExecuteInjectedArgument(t *testing.T) {
	meta := command.Metadata{
		Name: "needs_env",
		Arguments: []command.ArgumentInfo{
			{Name: "envref", ArgumentType: command.ArgumentTypeAny, Injected: true},
		},
	}
	var got any
	e, key := newTestExecutor(t, meta, func(_ context.Context, in state.State, args BoundArguments) (state.State, error) {
		got = args[0]
		return in, nil
	})
	marker := &struct{ name string }{"environment"}
	params := plan.ResolvedParameterValues{{Kind: plan.ParameterInjected, Position: query.UnknownPosition()}}
	_, err := e.Execute(context.Background(), key, state.Empty(), params, nil, mapInjector{"envref": marker})
	require.NoError(t, err)
	assert.Same(t, marker, got)
}

func TestExecuteLinkParameter(t *testing.T) {
	meta := command.Metadata{
		Name: "use_link",
		Arguments: []command.ArgumentInfo{
			{Name: "v", ArgumentType: command.ArgumentTypeString},
		},
	}
	var got BoundArguments
	e, key := newTestExecutor(t, meta, func(_ context.Context, in state.State, args BoundArguments) (state.State, error) {
		got = args
		return in, nil
	})
	link, err := query.Parse("hello")
	require.NoError(t, err)
	evaluator := func(_ context.Context, q *query.Query) (state.State, error) {
		assert.Equal(t, "hello", query.Encode(q))
		return state.Empty().WithData(value.FromString("resolved")), nil
	}
	params := plan.ResolvedParameterValues{{Kind: plan.ParameterLink, Link: link, Position: query.UnknownPosition()}}
	_, err = e.Execute(context.Background(), key, state.Empty(), params, evaluator, nil)
	require.NoError(t, err)
	assert.Equal(t, "resolved", got[0])
}

func TestExecuteMultipleConsumesRemaining(t *testing.T) {
	meta := command.Metadata{
		Name: "concat",
		Arguments: []command.ArgumentInfo{
			{Name: "sep", ArgumentType: command.ArgumentTypeString},
			{Name: "parts", ArgumentType: command.ArgumentTypeString, Multiple: true},
		},
	}
	var got BoundArguments
	e, key := newTestExecutor(t, meta, func(_ context.Context, in state.State, args BoundArguments) (state.State, error) {
		got = args
		return in, nil
	})
	params := plan.ResolvedParameterValues{literal(","), literal("a"), literal("b"), literal("c")}
	_, err := e.Execute(context.Background(), key, state.Empty(), params, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, ",", got[0])
	assert.Equal(t, []any{"a", "b", "c"}, got[1])
}

func TestExecuteUnknownCommand(t *testing.T) {
	reg := command.NewRegistry()
	e := New(reg)
	_, err := e.Execute(context.Background(), command.Key{Name: "ghost"}, state.Empty(), nil, nil, nil)
	require.Error(t, err)
	assert.True(t, lqerror.Of(err, lqerror.KindUnknownCommand))
}

func TestRegisterWithoutMetadataFails(t *testing.T) {
	e := New(command.NewRegistry())
	err := e.Register(command.Key{Name: "ghost"}, func(_ context.Context, in state.State, _ BoundArguments) (state.State, error) {
		return in, nil
	})
	require.Error(t, err)
}

func TestExecuteTooManyParameters(t *testing.T) {
	meta := command.Metadata{Name: "noargs"}
	e, key := newTestExecutor(t, meta, func(_ context.Context, in state.State, _ BoundArguments) (state.State, error) {
		return in, nil
	})
	_, err := e.Execute(context.Background(), key, state.Empty(), plan.ResolvedParameterValues{literal("extra")}, nil, nil)
	require.Error(t, err)
	assert.True(t, lqerror.Of(err, lqerror.KindTooManyParameters))
}
