// Package command defines the command metadata registry: the catalog of
// actions a plan builder can resolve a query's action tokens against.
package command

import (
	"github.com/liquers/liquers-go/core/query"
)

// ArgumentType is the declared type of one ArgumentInfo slot.
type ArgumentType string

const (
	ArgumentTypeString        ArgumentType = "String"
	ArgumentTypeInteger       ArgumentType = "Integer"
	ArgumentTypeBoolean       ArgumentType = "Boolean"
	ArgumentTypeFloat         ArgumentType = "Float"
	ArgumentTypeIntegerOption ArgumentType = "IntegerOption"
	ArgumentTypeFloatOption   ArgumentType = "FloatOption"
	ArgumentTypeEnum          ArgumentType = "Enum"
	ArgumentTypeGlobalEnum    ArgumentType = "GlobalEnum"
	ArgumentTypeAny           ArgumentType = "Any"
	ArgumentTypeNone          ArgumentType = "None"
)

// ArgumentDefault is the default value bound to a slot when the caller
// supplies no positional parameter. HasValue marks that a default exists;
// it is then Value, or the link query Query when Query is also set. A
// zero-value ArgumentDefault means "no default".
type ArgumentDefault struct {
	HasValue bool
	Value    any          // JSON-shaped Go value, when HasValue && Query == nil
	Query    *query.Query // default link query, when HasValue && Query != nil
}

// GUIInfo is optional, renderer-facing metadata for an argument slot
// (widget hints, validation schema). The core treats it as opaque JSON.
type GUIInfo map[string]any

// ArgumentInfo describes one positional slot of a command.
type ArgumentInfo struct {
	Name         string
	Label        string
	Default      ArgumentDefault
	ArgumentType ArgumentType
	EnumName     string // set when ArgumentType is Enum or GlobalEnum
	EnumValues   []string
	Multiple     bool
	Injected     bool
	GUIInfo      GUIInfo
}

// Preset is a suggested follow-up action advertised alongside a command.
type Preset struct {
	Action      string
	Label       string
	Description string
}

// Definition distinguishes a directly registered command from one that is
// an alias of another.
type Definition struct {
	IsAlias       bool
	AliasTarget   string // "namespace/name" of the aliased command, when IsAlias
	HeadParameters []query.ActionParameter
}

// Metadata is one entry in the registry, addressable by (Realm, Namespace,
// Name).
type Metadata struct {
	Realm            string
	Namespace        string
	Name             string
	Label            string
	Doc              string
	Arguments        []ArgumentInfo
	Definition       Definition
	Next             []Preset
	FilenameTemplate string
}

// Key uniquely identifies a Metadata entry within a Registry.
type Key struct {
	Realm     string
	Namespace string
	Name      string
}
