package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseKey(t *testing.T) {
	k := ParseKey("a/b/c")
	assert.Equal(t, "a/b/c", k.String())
	assert.Equal(t, "c", k.Filename())
	assert.Equal(t, "a/b", k.Parent().String())
	assert.False(t, k.IsEmpty())

	assert.True(t, ParseKey("").IsEmpty())
	assert.Equal(t, "a/b", ParseKey("/a//b").String())
}

func TestKeyJoinAndPrefix(t *testing.T) {
	base := NewKey("data", "reports")
	joined := base.Join(NewKey("2024", "q1.csv"))
	assert.Equal(t, "data/reports/2024/q1.csv", joined.String())
	assert.True(t, joined.HasPrefix(base))
	assert.False(t, base.HasPrefix(joined))
	assert.True(t, joined.HasPrefix(nil))
	assert.True(t, base.Equal(NewKey("data", "reports")))
	assert.False(t, base.Equal(NewKey("data")))
}

func TestKeyParentOfEmpty(t *testing.T) {
	assert.True(t, Key(nil).Parent().IsEmpty())
	assert.Equal(t, "", Key(nil).Filename())
}
