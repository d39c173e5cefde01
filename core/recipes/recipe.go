// Package recipes defines the Recipe type used to materialize store keys
// on demand, and the Provider implementations the asset manager
// consults when a key is missing from the store.
package recipes

import (
	"github.com/liquers/liquers-go/core/command"
	"github.com/liquers/liquers-go/core/lqerror"
	"github.com/liquers/liquers-go/core/plan"
	"github.com/liquers/liquers-go/core/query"
)

// Recipe is a pinned, parameterized query used to materialize an asset: the
// query names the pipeline, Arguments override the last action's parameters
// with fixed JSON values, and Links override them with nested queries that
// are resolved at run time by the interpreter's normal link-parameter
// evaluation.
type Recipe struct {
	Query       string            `yaml:"query" json:"query"`
	Title       string            `yaml:"title,omitempty" json:"title,omitempty"`
	Description string            `yaml:"description,omitempty" json:"description,omitempty"`
	Arguments   map[string]any    `yaml:"arguments,omitempty" json:"arguments,omitempty"`
	Links       map[string]string `yaml:"links,omitempty" json:"links,omitempty"`
}

// ToPlan parses the recipe's query, builds its plan against registry, and
// overrides the last action's parameters from Arguments and Links. A name
// not present among the last action's declared slots fails the conversion.
func (r *Recipe) ToPlan(registry *command.Registry) (plan.Sequence, error) {
	q, err := query.Parse(r.Query)
	if err != nil {
		return nil, err
	}
	b := plan.NewBuilder(registry)
	seq, err := b.Build(q)
	if err != nil {
		return nil, err
	}
	for name, value := range r.Arguments {
		if !b.OverrideValue(name, value) {
			return nil, lqerror.Errorf(lqerror.KindArgumentMissing, "recipe argument %q does not name a parameter of the last action of %q", name, r.Query).WithQuery(r.Query)
		}
	}
	for name, linkText := range r.Links {
		linkQuery, err := query.Parse(linkText)
		if err != nil {
			return nil, err
		}
		if !b.OverrideLink(name, linkQuery) {
			return nil, lqerror.Errorf(lqerror.KindArgumentMissing, "recipe link %q does not name a parameter of the last action of %q", name, r.Query).WithQuery(r.Query)
		}
	}
	return seq, nil
}
