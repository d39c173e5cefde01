// Package plan defines the linear Plan a builder lowers a parsed Query
// into, and the Step tagged union the interpreter executes.
package plan

import (
	"github.com/liquers/liquers-go/core/query"
)

// ParameterKind tags a ResolvedParameter's variant.
type ParameterKind int

const (
	// ParameterLiteral binds a literal string supplied positionally.
	ParameterLiteral ParameterKind = iota
	// ParameterLink binds a nested query supplied positionally.
	ParameterLink
	// ParameterDefaultValue binds the command's declared JSON default.
	ParameterDefaultValue
	// ParameterDefaultQuery binds the command's declared query default.
	ParameterDefaultQuery
	// ParameterInjected marks a slot the executor materializes at run time.
	ParameterInjected
)

// ResolvedParameter is one bound argument slot, produced by the plan
// builder's argument resolution and consumed by the executor.
type ResolvedParameter struct {
	Kind     ParameterKind
	Literal  string
	Link     *query.Query
	Default  any
	Position query.Position
}

// ResolvedParameterValues is the ordered, fully-resolved argument list of
// an Action step.
type ResolvedParameterValues []ResolvedParameter

// Step is the sealed tagged union of plan instructions. Every concrete
// step type implements the unexported stepSeal marker so Step cannot be
// satisfied outside this package.
type Step interface {
	stepSeal()
}

// GetResource reads (bytes, metadata) from the store and constructs a
// value from them.
type GetResource struct {
	Key query.Key
}

// GetResourceMetadata reads metadata only.
type GetResourceMetadata struct {
	Key query.Key
}

// GetAsset delegates to the asset manager, possibly materializing via a
// recipe.
type GetAsset struct {
	Key query.Key
}

// GetAssetBinary is GetAsset narrowed to raw bytes.
type GetAssetBinary struct {
	Key query.Key
}

// GetAssetMetadata is GetAsset narrowed to metadata only.
type GetAssetMetadata struct {
	Key query.Key
}

// Evaluate recursively evaluates a nested query as its own pipeline.
type Evaluate struct {
	Query *query.Query
}

// Action invokes a registered command.
type Action struct {
	Realm      string
	Namespace  string
	Name       string
	Position   query.Position
	Parameters ResolvedParameterValues
}

// Filename stamps the current metadata's filename.
type Filename struct {
	Name query.ResourceName
}

// SetCwd replaces the context's current working key.
type SetCwd struct {
	Key query.Key
}

// LogLevel tags an appended log message's severity at plan-build time.
type LogLevel int

const (
	LogInfo LogLevel = iota
	LogWarning
	LogError
)

// Log appends a message to the evaluation context's log.
type Log struct {
	Level   LogLevel
	Message string
}

// Plan is an inlined sub-plan, executed sharing the current context.
type Plan struct {
	Steps Sequence
}

// UseKeyValue sets the current data to a Key value.
type UseKeyValue struct {
	Key query.Key
}

// UseQueryValue sets the current data to a Query value.
type UseQueryValue struct {
	Query *query.Query
}

func (GetResource) stepSeal()         {}
func (GetResourceMetadata) stepSeal() {}
func (GetAsset) stepSeal()            {}
func (GetAssetBinary) stepSeal()      {}
func (GetAssetMetadata) stepSeal()    {}
func (Evaluate) stepSeal()            {}
func (Action) stepSeal()              {}
func (Filename) stepSeal()            {}
func (SetCwd) stepSeal()              {}
func (Log) stepSeal()                 {}
func (Plan) stepSeal()                {}
func (UseKeyValue) stepSeal()         {}
func (UseQueryValue) stepSeal()       {}

// Sequence is an ordered list of Steps: the output of the plan builder.
type Sequence []Step
