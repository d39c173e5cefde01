// Package executor binds a plan's resolved parameters to a registered
// command's native argument list and invokes it.
package executor

import (
	"context"
	"strconv"

	"github.com/liquers/liquers-go/core/command"
	"github.com/liquers/liquers-go/core/lqerror"
	"github.com/liquers/liquers-go/core/plan"
	"github.com/liquers/liquers-go/core/query"
	"github.com/liquers/liquers-go/core/state"
	"github.com/liquers/liquers-go/core/telemetry"
)

// BoundArguments is the native-typed argument list handed to a Handler,
// positional with the command's declared ArgumentInfo slots. A Multiple
// slot's entry is a []any of its converted values.
type BoundArguments []any

// String returns the i-th argument as a string, or ok=false if it isn't one.
func (b BoundArguments) String(i int) (string, bool) {
	if i < 0 || i >= len(b) {
		return "", false
	}
	s, ok := b[i].(string)
	return s, ok
}

// Injector materializes an injected argument slot's value from the
// executing context (for instance, a reference to the environment). Slots
// are identified by their ArgumentInfo.Name.
type Injector interface {
	Inject(ctx context.Context, name string) (any, error)
}

// Evaluator recursively evaluates a link parameter's nested query, mirroring
// the interpreter's own Evaluate semantics.
type Evaluator func(ctx context.Context, q *query.Query) (state.State, error)

// Handler is a registered command's native implementation.
type Handler func(ctx context.Context, in state.State, args BoundArguments) (state.State, error)

// Executor dispatches Action steps to registered Handlers, binding
// arguments per the ArgumentInfo the command declared at registration.
type Executor struct {
	registry *command.Registry
	handlers map[command.Key]Handler
	logger   telemetry.Logger
	tracer   telemetry.Tracer
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger configures the executor's logger. When unset, a noop logger is
// used.
func WithLogger(logger telemetry.Logger) Option {
	return func(e *Executor) { e.logger = logger }
}

// WithTracer configures the executor's tracer. When unset, a noop tracer is
// used.
func WithTracer(tracer telemetry.Tracer) Option {
	return func(e *Executor) { e.tracer = tracer }
}

// New returns an Executor dispatching against registry.
func New(registry *command.Registry, opts ...Option) *Executor {
	e := &Executor{
		registry: registry,
		handlers: make(map[command.Key]Handler),
		logger:   telemetry.NewNoopLogger(),
		tracer:   telemetry.NewNoopTracer(),
	}
	for _, o := range opts {
		if o != nil {
			o(e)
		}
	}
	return e
}

// Register binds handler as the native implementation of the command
// registered at key. It fails if the registry has no metadata for key.
func (e *Executor) Register(key command.Key, handler Handler) error {
	if _, ok := e.registry.Find(key.Realm, key.Namespace, key.Name); !ok {
		return lqerror.Errorf(lqerror.KindActionNotRegistered, "no metadata registered for %s/%s/%s; register metadata before a handler", key.Realm, key.Namespace, key.Name)
	}
	e.handlers[key] = handler
	return nil
}

// Execute binds params against the command's declared arguments and
// invokes its Handler.
func (e *Executor) Execute(ctx context.Context, key command.Key, in state.State, params plan.ResolvedParameterValues, evalLink Evaluator, injector Injector) (state.State, error) {
	meta, ok := e.registry.Find(key.Realm, key.Namespace, key.Name)
	if !ok {
		return state.State{}, lqerror.Errorf(lqerror.KindUnknownCommand, "unknown command %s/%s/%s", key.Realm, key.Namespace, key.Name)
	}
	handler, ok := e.handlers[key]
	if !ok {
		return state.State{}, lqerror.Errorf(lqerror.KindUnknownCommand, "no handler registered for %s/%s/%s", key.Realm, key.Namespace, key.Name)
	}
	bound, err := e.bindArguments(ctx, meta.Arguments, params, evalLink, injector)
	if err != nil {
		return state.State{}, err
	}
	out, err := handler(ctx, in, bound)
	if err != nil {
		return state.State{}, lqerror.FromError(err)
	}
	return out, nil
}

func (e *Executor) bindArguments(ctx context.Context, slots []command.ArgumentInfo, params plan.ResolvedParameterValues, evalLink Evaluator, injector Injector) (BoundArguments, error) {
	out := make(BoundArguments, 0, len(slots))
	i := 0
	for _, slot := range slots {
		if slot.Multiple {
			var multi []any
			for ; i < len(params); i++ {
				v, err := e.convertParam(ctx, slot, params[i], evalLink, injector)
				if err != nil {
					return nil, err
				}
				multi = append(multi, v)
			}
			out = append(out, multi)
			continue
		}
		if i >= len(params) {
			return nil, lqerror.Errorf(lqerror.KindArgumentMissing, "missing required argument %q", slot.Name)
		}
		v, err := e.convertParam(ctx, slot, params[i], evalLink, injector)
		if err != nil {
			return nil, err
		}
		i++
		out = append(out, v)
	}
	if i < len(params) {
		return nil, lqerror.Errorf(lqerror.KindTooManyParameters, "too many parameters: %d declared slots, %d supplied", len(slots), len(params))
	}
	return out, nil
}

func (e *Executor) convertParam(ctx context.Context, slot command.ArgumentInfo, p plan.ResolvedParameter, evalLink Evaluator, injector Injector) (any, error) {
	switch p.Kind {
	case plan.ParameterInjected:
		if injector == nil {
			return nil, lqerror.Errorf(lqerror.KindNotAvailable, "argument %q is injected but no injector is available", slot.Name).WithPosition(p.Position)
		}
		return injector.Inject(ctx, slot.Name)
	case plan.ParameterDefaultValue:
		return p.Default, nil
	case plan.ParameterLink, plan.ParameterDefaultQuery:
		if evalLink == nil {
			return nil, lqerror.Errorf(lqerror.KindNotAvailable, "argument %q is a link but no evaluator is available", slot.Name).WithPosition(p.Position)
		}
		st, err := evalLink(ctx, p.Link)
		if err != nil {
			return nil, err
		}
		return valueForType(slot, st)
	default:
		return convertLiteral(slot, p.Literal, p.Position)
	}
}

func valueForType(slot command.ArgumentInfo, st state.State) (any, error) {
	switch slot.ArgumentType {
	case command.ArgumentTypeAny, command.ArgumentTypeNone:
		return st.Data, nil
	default:
		s, err := st.Data.TryIntoString()
		if err != nil {
			return nil, lqerror.NewWithCause(lqerror.KindConversionError, "convert link result for argument "+slot.Name, err)
		}
		return convertLiteral(slot, s, query.UnknownPosition())
	}
}

func convertLiteral(slot command.ArgumentInfo, s string, pos query.Position) (any, error) {
	switch slot.ArgumentType {
	case command.ArgumentTypeString, command.ArgumentTypeAny, command.ArgumentTypeNone, "":
		return s, nil
	case command.ArgumentTypeInteger:
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, lqerror.NewWithCause(lqerror.KindConversionError, "convert "+slot.Name+" to integer", err).WithPosition(pos)
		}
		return n, nil
	case command.ArgumentTypeFloat:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, lqerror.NewWithCause(lqerror.KindConversionError, "convert "+slot.Name+" to float", err).WithPosition(pos)
		}
		return f, nil
	case command.ArgumentTypeBoolean:
		bv, err := strconv.ParseBool(s)
		if err != nil {
			return nil, lqerror.NewWithCause(lqerror.KindConversionError, "convert "+slot.Name+" to boolean", err).WithPosition(pos)
		}
		return bv, nil
	case command.ArgumentTypeIntegerOption:
		if s == "" {
			return (*int)(nil), nil
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, lqerror.NewWithCause(lqerror.KindConversionError, "convert "+slot.Name+" to optional integer", err).WithPosition(pos)
		}
		return &n, nil
	case command.ArgumentTypeFloatOption:
		if s == "" {
			return (*float64)(nil), nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, lqerror.NewWithCause(lqerror.KindConversionError, "convert "+slot.Name+" to optional float", err).WithPosition(pos)
		}
		return &f, nil
	case command.ArgumentTypeEnum, command.ArgumentTypeGlobalEnum:
		if len(slot.EnumValues) > 0 {
			for _, v := range slot.EnumValues {
				if v == s {
					return s, nil
				}
			}
			return nil, lqerror.Errorf(lqerror.KindConversionError, "%q is not a valid value for enum %q", s, slot.Name).WithPosition(pos)
		}
		return s, nil
	default:
		return s, nil
	}
}
