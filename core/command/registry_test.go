package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liquers/liquers-go/core/lqerror"
	"github.com/liquers/liquers-go/core/query"
)

func TestRegistryAddAndFind(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Add(Metadata{Name: "hello"}))
	require.NoError(t, reg.Add(Metadata{Namespace: "lui", Name: "hello"}))

	m, ok := reg.Find("", "", "hello")
	require.True(t, ok)
	assert.Equal(t, "", m.Namespace)

	m, ok = reg.Find("", "lui", "hello")
	require.True(t, ok)
	assert.Equal(t, "lui", m.Namespace)

	_, ok = reg.Find("", "nope", "hello")
	assert.False(t, ok)
}

func TestRegistryDuplicateRegistration(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Add(Metadata{Name: "hello"}))
	err := reg.Add(Metadata{Name: "hello"})
	require.Error(t, err)
	assert.True(t, lqerror.Of(err, lqerror.KindCommandAlreadyRegistered))
}

func TestFindInNamespacesOrder(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Add(Metadata{Namespace: "a", Name: "cmd", Label: "in a"}))
	require.NoError(t, reg.Add(Metadata{Namespace: "b", Name: "cmd", Label: "in b"}))

	m, ns, ok := reg.FindInNamespaces("", []string{"b", "a"}, "cmd")
	require.True(t, ok)
	assert.Equal(t, "b", ns)
	assert.Equal(t, "in b", m.Label)

	m, ns, ok = reg.FindInNamespaces("", []string{"a", "b"}, "cmd")
	require.True(t, ok)
	assert.Equal(t, "a", ns)
	assert.Equal(t, "in a", m.Label)

	_, _, ok = reg.FindInNamespaces("", []string{"c"}, "cmd")
	assert.False(t, ok)
}

func TestResolveAlias(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Add(Metadata{Name: "target"}))
	require.NoError(t, reg.Add(Metadata{Name: "alias", Definition: Definition{IsAlias: true, AliasTarget: "target"}}))

	m, ns, name, head, err := reg.ResolveAlias("", "", "alias")
	require.NoError(t, err)
	assert.Equal(t, "target", m.Name)
	assert.Equal(t, "", ns)
	assert.Equal(t, "target", name)
	assert.Empty(t, head)
}

func TestResolveAliasAccumulatesHeadParameters(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Add(Metadata{Name: "target"}))
	require.NoError(t, reg.Add(Metadata{
		Name:       "inner",
		Definition: Definition{IsAlias: true, AliasTarget: "target", HeadParameters: []query.ActionParameter{query.NewLiteralParameter("from-inner")}},
	}))
	require.NoError(t, reg.Add(Metadata{
		Name:       "outer",
		Definition: Definition{IsAlias: true, AliasTarget: "inner", HeadParameters: []query.ActionParameter{query.NewLiteralParameter("from-outer")}},
	}))

	m, _, _, head, err := reg.ResolveAlias("", "", "outer")
	require.NoError(t, err)
	assert.Equal(t, "target", m.Name)
	// Each hop prepends its head parameters: the innermost alias's come
	// first, as if the caller had invoked each alias in turn.
	require.Len(t, head, 2)
	assert.Equal(t, "from-inner", head[0].Literal)
	assert.Equal(t, "from-outer", head[1].Literal)
}

func TestResolveAliasCycle(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Add(Metadata{Name: "a", Definition: Definition{IsAlias: true, AliasTarget: "b"}}))
	require.NoError(t, reg.Add(Metadata{Name: "b", Definition: Definition{IsAlias: true, AliasTarget: "a"}}))
	_, _, _, _, err := reg.ResolveAlias("", "", "a")
	require.Error(t, err)
}

func TestPresetToQuery(t *testing.T) {
	p := Preset{Action: "plot-line", Label: "Plot"}
	// Same namespace: no prefix.
	assert.Equal(t, "plot-line", PresetToQuery(p, "viz", "viz"))
	// Different namespace: ns-<namespace>/ prefix injected.
	assert.Equal(t, "ns-viz/plot-line", PresetToQuery(p, "viz", ""))
	// Empty preset namespace never needs a prefix.
	assert.Equal(t, "plot-line", PresetToQuery(p, "", "anything"))
}

func TestAddRejectsMalformedDeclarations(t *testing.T) {
	reg := NewRegistry()

	err := reg.Add(Metadata{
		Name: "bad_gui",
		Arguments: []ArgumentInfo{
			{Name: "x", ArgumentType: ArgumentTypeString, GUIInfo: GUIInfo{"widget": 42}},
		},
	})
	require.Error(t, err)
	assert.True(t, lqerror.Of(err, lqerror.KindConversionError))

	err = reg.Add(Metadata{
		Name: "bad_enum",
		Arguments: []ArgumentInfo{
			{Name: "color", ArgumentType: ArgumentTypeEnum},
		},
	})
	require.Error(t, err)
	assert.True(t, lqerror.Of(err, lqerror.KindConversionError))

	err = reg.Add(Metadata{
		Name: "bad_global_enum",
		Arguments: []ArgumentInfo{
			{Name: "color", ArgumentType: ArgumentTypeGlobalEnum},
		},
	})
	require.Error(t, err)

	err = reg.Add(Metadata{Name: "bad_preset", Next: []Preset{{Label: "no action"}}})
	require.Error(t, err)

	// Nothing malformed was registered.
	_, ok := reg.Find("", "", "bad_gui")
	assert.False(t, ok)

	require.NoError(t, reg.Add(Metadata{
		Name: "good",
		Arguments: []ArgumentInfo{
			{Name: "color", ArgumentType: ArgumentTypeEnum, EnumValues: []string{"red"}},
			{Name: "hint", ArgumentType: ArgumentTypeString, GUIInfo: GUIInfo{"widget": "slider"}},
		},
		Next: []Preset{{Action: "plot", Label: "Plot"}},
	}))
}

func TestValidateGUIInfo(t *testing.T) {
	assert.NoError(t, ValidateGUIInfo(nil))
	assert.NoError(t, ValidateGUIInfo(GUIInfo{"widget": "slider", "options": map[string]any{"min": 0.0}}))
	err := ValidateGUIInfo(GUIInfo{"widget": 42})
	require.Error(t, err)
	assert.True(t, lqerror.Of(err, lqerror.KindConversionError))
}
