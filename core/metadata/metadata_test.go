package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liquers/liquers-go/core/lqerror"
	"github.com/liquers/liquers-go/core/query"
)

func TestSetErrorKeepsFirst(t *testing.T) {
	r := New()
	first := lqerror.New(lqerror.KindKeyNotFound, "first")
	second := lqerror.New(lqerror.KindGeneral, "second")

	r.SetError(first)
	require.True(t, r.IsError)
	assert.Equal(t, StatusError, r.Status)
	assert.Equal(t, "first", r.Message)

	r.SetError(second)
	assert.Same(t, first, r.ErrorData)

	// Log entries may still be appended after the error.
	r.Append(LevelInfo, "still logging", query.UnknownPosition())
	assert.True(t, r.IsError)
	assert.Len(t, r.Log, 1)
}

func TestCloneIsIndependent(t *testing.T) {
	r := New()
	r.Append(LevelInfo, "one", query.UnknownPosition())
	c := r.Clone()
	r.Append(LevelInfo, "two", query.UnknownPosition())

	assert.Len(t, c.Log, 1)
	assert.Len(t, r.Log, 2)
	assert.NotNil(t, (*Record)(nil).Clone())
}

func TestSeverityOrdering(t *testing.T) {
	assert.Less(t, Severity(LevelDebug), Severity(LevelInfo))
	assert.Less(t, Severity(LevelInfo), Severity(LevelWarning))
	assert.Less(t, Severity(LevelWarning), Severity(LevelError))
}
