// Package lqerror defines the structured error type shared by every core
// component. An Error carries a Kind drawn from a fixed taxonomy, a human
// message, an optional source Position, an optional originating query's
// encoded text, and an optional wrapped cause.
package lqerror

import (
	"errors"
	"fmt"
)

// Kind is the error taxonomy from the specification's error handling
// design. Callers match on Kind via Is, never by inspecting Message.
type Kind string

const (
	KindParseError              Kind = "ParseError"
	KindArgumentMissing          Kind = "ArgumentMissing"
	KindActionNotRegistered      Kind = "ActionNotRegistered"
	KindCommandAlreadyRegistered Kind = "CommandAlreadyRegistered"
	KindTooManyParameters        Kind = "TooManyParameters"
	KindConversionError          Kind = "ConversionError"
	KindSerializationError       Kind = "SerializationError"
	KindUnknownCommand           Kind = "UnknownCommand"
	KindKeyNotFound              Kind = "KeyNotFound"
	KindKeyNotSupported          Kind = "KeyNotSupported"
	KindKeyReadError             Kind = "KeyReadError"
	KindKeyWriteError            Kind = "KeyWriteError"
	KindCacheNotSupported        Kind = "CacheNotSupported"
	KindNotAvailable             Kind = "NotAvailable"
	KindNotSupported             Kind = "NotSupported"
	KindGeneral                  Kind = "General"
)

// Position is the minimal location interface an Error can carry. The query
// package's Position satisfies it; lqerror does not import query to avoid a
// dependency cycle (query errors flow the other way).
type Position interface {
	String() string
	IsUnknown() bool
}

// unknownPosition is used when no Position is supplied.
type unknownPosition struct{}

func (unknownPosition) String() string   { return "unknown" }
func (unknownPosition) IsUnknown() bool  { return true }

// Error is the concrete error type behind every Kind.
type Error struct {
	Kind     Kind
	Message  string
	Position Position
	Query    string // encoded text of the originating query, if known
	Cause    error
}

// New constructs an Error of the given kind with an unknown position and no
// originating query.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message, Position: unknownPosition{}}
}

// Errorf is New with fmt.Sprintf-style formatting.
func Errorf(kind Kind, format string, args ...any) *Error {
	return New(kind, fmt.Sprintf(format, args...))
}

// NewWithCause constructs an Error wrapping cause.
func NewWithCause(kind Kind, message string, cause error) *Error {
	e := New(kind, message)
	e.Cause = cause
	return e
}

// FromError converts an arbitrary error into a General *Error, or returns it
// unchanged if it already is one.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return NewWithCause(KindGeneral, err.Error(), err)
}

// WithPosition returns a copy of e with Position set, unless pos is nil.
func (e *Error) WithPosition(pos Position) *Error {
	if e == nil || pos == nil {
		return e
	}
	clone := *e
	clone.Position = pos
	return &clone
}

// WithQuery returns a copy of e with the originating query's encoded text
// attached, unless it is already set.
func (e *Error) WithQuery(encoded string) *Error {
	if e == nil || e.Query != "" || encoded == "" {
		return e
	}
	clone := *e
	clone.Query = encoded
	return &clone
}

// Error implements the error interface.
func (e *Error) Error() string {
	pos := "unknown"
	if e.Position != nil {
		pos = e.Position.String()
	}
	if e.Query != "" {
		return fmt.Sprintf("%s at %s in %q: %s", e.Kind, pos, e.Query, e.Message)
	}
	return fmt.Sprintf("%s at %s: %s", e.Kind, pos, e.Message)
}

// Unwrap exposes the wrapped cause to errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same Kind, enabling
// errors.Is(err, lqerror.New(lqerror.KindKeyNotFound, "")) style matching.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.Kind == other.Kind
}

// Of reports whether err is (or wraps) an *Error of the given kind.
func Of(err error, kind Kind) bool {
	return errors.Is(err, New(kind, ""))
}
