package examplecmds

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liquers/liquers-go/core/env"
	"github.com/liquers/liquers-go/core/interpreter"
)

func newTestInterpreter(t *testing.T) *interpreter.Interpreter {
	t.Helper()
	e := env.New(env.Config{})
	require.NoError(t, Register(e.Registry(), e.Executor()))
	return interpreter.New(e.ToRef())
}

func TestHelloGreet(t *testing.T) {
	itp := newTestInterpreter(t)
	st, err := itp.Evaluate(context.Background(), "hello/greet", nil)
	require.NoError(t, err)
	s, err := st.Data.TryIntoString()
	require.NoError(t, err)
	assert.Equal(t, "Hello, world!", s)
}

func TestGreetWithParameter(t *testing.T) {
	itp := newTestInterpreter(t)
	st, err := itp.Evaluate(context.Background(), "hello/greet-Hi", nil)
	require.NoError(t, err)
	s, err := st.Data.TryIntoString()
	require.NoError(t, err)
	assert.Equal(t, "Hi, world!", s)
}

func TestQueryToString(t *testing.T) {
	itp := newTestInterpreter(t)
	st, err := itp.Evaluate(context.Background(), "hello/q/query_to_string", nil)
	require.NoError(t, err)
	s, err := st.Data.TryIntoString()
	require.NoError(t, err)
	assert.Equal(t, "hello", s)
}

func TestCommandsDoc(t *testing.T) {
	itp := newTestInterpreter(t)
	st, err := itp.Evaluate(context.Background(), "commands_doc", nil)
	require.NoError(t, err)
	doc, err := st.Data.TryIntoString()
	require.NoError(t, err)
	assert.Contains(t, doc, "### `greet`")
	assert.Contains(t, doc, "| greeting | `greeting` | single | String | \"Hello\" |")
	assert.Contains(t, doc, "Greets the input with the given greeting.")
}

func TestRegisterTwiceFails(t *testing.T) {
	e := env.New(env.Config{})
	require.NoError(t, Register(e.Registry(), e.Executor()))
	require.Error(t, Register(e.Registry(), e.Executor()))
}
