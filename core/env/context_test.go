package env

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liquers/liquers-go/core/metadata"
	"github.com/liquers/liquers-go/core/query"
)

func TestEvalContextLogLevelGating(t *testing.T) {
	envref := New(Config{}).ToRef()
	ectx := NewEvalContext(envref, nil)

	ectx.Debug(context.Background(), "invisible")
	ectx.Info(context.Background(), "visible")
	ectx.Warning(context.Background(), "also visible")

	log := ectx.SnapshotMetadata().Log
	require.Len(t, log, 2)
	assert.Equal(t, "visible", log[0].Message)
	assert.Equal(t, "also visible", log[1].Message)

	// Lowering the threshold records debug entries too.
	ectx.SetMinLevel(metadata.LevelDebug)
	ectx.Debug(context.Background(), "now recorded")
	log = ectx.SnapshotMetadata().Log
	require.Len(t, log, 3)
	assert.Equal(t, metadata.LevelDebug, log[2].Level)
}

func TestEvalContextSnapshotIsolation(t *testing.T) {
	envref := New(Config{}).ToRef()
	ectx := NewEvalContext(envref, nil)
	ectx.Info(context.Background(), "first")

	snap := ectx.SnapshotMetadata()
	ectx.Info(context.Background(), "second")

	assert.Len(t, snap.Log, 1)
	assert.Len(t, ectx.SnapshotMetadata().Log, 2)
}

func TestEvalContextInject(t *testing.T) {
	envref := New(Config{}).ToRef()
	ectx := NewEvalContext(envref, query.NewKey("cwd"))

	v, err := ectx.Inject(context.Background(), "context")
	require.NoError(t, err)
	assert.Same(t, ectx, v)

	v, err = ectx.Inject(context.Background(), "envref")
	require.NoError(t, err)
	assert.Same(t, envref, v)

	v, err = ectx.Inject(context.Background(), "cwd_key")
	require.NoError(t, err)
	assert.Equal(t, "cwd", v.(query.Key).String())

	_, err = ectx.Inject(context.Background(), "unknown")
	require.Error(t, err)
}

func TestEvalContextIDsAreUnique(t *testing.T) {
	envref := New(Config{}).ToRef()
	a := NewEvalContext(envref, nil)
	b := NewEvalContext(envref, nil)
	assert.NotEqual(t, a.EvaluationID(), b.EvaluationID())
	assert.NotEmpty(t, a.EvaluationID())
}

func TestEnvironmentDefaults(t *testing.T) {
	e := New(Config{})
	envref := e.ToRef()
	assert.NotNil(t, envref.Store())
	assert.NotNil(t, envref.Cache())
	assert.NotNil(t, envref.Registry())
	assert.NotNil(t, envref.Executor())
	assert.NotNil(t, envref.Assets())
	assert.NotNil(t, envref.Recipes())
	assert.NotNil(t, envref.Values())
	assert.NotNil(t, envref.Logger())
}
