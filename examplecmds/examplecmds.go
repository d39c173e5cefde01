// Package examplecmds registers a small command set against a registry and
// executor: enough to exercise the engine end-to-end without pulling in a
// full command library. It is a demonstration surface, not part of the
// core.
package examplecmds

import (
	"context"
	"fmt"

	"github.com/liquers/liquers-go/core/command"
	"github.com/liquers/liquers-go/core/env"
	"github.com/liquers/liquers-go/core/executor"
	"github.com/liquers/liquers-go/core/lqerror"
	"github.com/liquers/liquers-go/core/state"
	"github.com/liquers/liquers-go/core/value"
)

// Register adds the example commands to reg and binds their handlers on
// exec: hello, greet, query_to_string and commands_doc.
func Register(reg *command.Registry, exec *executor.Executor) error {
	cmds := []struct {
		meta    command.Metadata
		handler executor.Handler
	}{
		{
			meta: command.Metadata{
				Name:  "hello",
				Label: "Hello",
				Doc:   "Produces the string \"world\".",
			},
			handler: hello,
		},
		{
			meta: command.Metadata{
				Name:  "greet",
				Label: "Greet",
				Doc:   "Greets the input with the given greeting.",
				Arguments: []command.ArgumentInfo{
					{
						Name:         "greeting",
						Label:        "greeting",
						ArgumentType: command.ArgumentTypeString,
						Default:      command.ArgumentDefault{HasValue: true, Value: "Hello"},
					},
				},
			},
			handler: greet,
		},
		{
			meta: command.Metadata{
				Name:  "query_to_string",
				Label: "Query to string",
				Doc:   "Converts a query value to its encoded text form.",
			},
			handler: queryToString,
		},
		{
			meta: command.Metadata{
				Name:  "commands_doc",
				Label: "Commands documentation",
				Doc:   "Renders the command registry as markdown.",
				Arguments: []command.ArgumentInfo{
					{Name: "envref", ArgumentType: command.ArgumentTypeAny, Injected: true},
				},
			},
			handler: commandsDoc,
		},
	}
	for _, c := range cmds {
		if err := reg.Add(c.meta); err != nil {
			return err
		}
		key := command.Key{Realm: c.meta.Realm, Namespace: c.meta.Namespace, Name: c.meta.Name}
		if err := exec.Register(key, c.handler); err != nil {
			return err
		}
	}
	return nil
}

func hello(_ context.Context, in state.State, _ executor.BoundArguments) (state.State, error) {
	return in.WithData(value.FromString("world")), nil
}

func greet(_ context.Context, in state.State, args executor.BoundArguments) (state.State, error) {
	greeting, ok := args.String(0)
	if !ok {
		return state.State{}, lqerror.New(lqerror.KindConversionError, "greeting must be a string")
	}
	subject, err := in.Data.TryIntoString()
	if err != nil {
		return state.State{}, err
	}
	return in.WithData(value.FromString(fmt.Sprintf("%s, %s!", greeting, subject))), nil
}

func queryToString(_ context.Context, in state.State, _ executor.BoundArguments) (state.State, error) {
	s, err := in.Data.TryIntoString()
	if err != nil {
		return state.State{}, err
	}
	return in.WithData(value.FromString(s)), nil
}

func commandsDoc(_ context.Context, in state.State, args executor.BoundArguments) (state.State, error) {
	if len(args) == 0 {
		return state.State{}, lqerror.New(lqerror.KindArgumentMissing, "missing injected environment")
	}
	envref, ok := args[0].(*env.Ref)
	if !ok {
		return state.State{}, lqerror.New(lqerror.KindConversionError, "injected environment has unexpected type")
	}
	return in.WithData(value.FromString(command.RenderDocs(envref.Registry()))), nil
}
