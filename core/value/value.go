// Package value defines the Value interface that the core is polymorphic
// over. Concrete Value implementations are a collaborator's concern (image,
// dataframe, widget payloads, ...); this package additionally ships Generic,
// a JSON/bytes/string/key/query-backed implementation sufficient to run the
// core's own tests and the example command set.
package value

import (
	"encoding/json"
	"fmt"

	"github.com/liquers/liquers-go/core/lqerror"
	"github.com/liquers/liquers-go/core/metadata"
	"github.com/liquers/liquers-go/core/query"
)

// Value is the polymorphic data type threaded through every State. The core
// never inspects a Value beyond this interface.
type Value interface {
	// IsNone reports whether this value is the none sentinel.
	IsNone() bool
	// TypeName is a short, implementation-defined type label (used in
	// MetadataRecord.TypeIdentifier and in error messages).
	TypeName() string
	// Identifier returns a content identifier suitable for cache keys; need
	// not be cryptographic, but equal values should produce equal ids.
	Identifier() string
	// AsBytes serializes the value to the named data format. Returns a
	// SerializationError if the format is not supported.
	AsBytes(dataFormat string) ([]byte, error)
	// TryIntoString converts the value to a string, or fails.
	TryIntoString() (string, error)
	// DefaultExtension is the file extension used when no filename is
	// stamped (e.g. "json", "txt").
	DefaultExtension() string
	// DefaultFilename combines a base name with DefaultExtension.
	DefaultFilename() string
	// DefaultMediaType is the MIME type used when none is stamped.
	DefaultMediaType() string
	// TryIntoJSONValue converts the value to a generic JSON-shaped Go value
	// (map[string]any, []any, string, float64, bool, nil), or fails.
	TryIntoJSONValue() (any, error)
}

// Factory constructs Values from the primitive sources the interpreter
// needs: raw bytes from a store, a metadata record, a Key, or a Query. A
// concrete Value type pairs with a Factory implementation (GenericFactory
// for Generic); the interpreter is configured with a Factory so it never
// hard-codes a concrete Value type.
type Factory interface {
	None() Value
	FromBytes(data []byte) (Value, error)
	FromString(s string) Value
	FromKey(k query.Key) Value
	FromQuery(q *query.Query) Value
	FromMetadata(m *metadata.Record) Value
}

var _ Value = (*Generic)(nil)

// Generic is a default Value implementation backed by a tagged union of
// the primitive kinds the interpreter itself produces: none, bytes, string,
// key, query, and arbitrary JSON-marshalable data. It is sufficient for
// tests, the example command set, and any command that only needs JSON-ish
// data.
type Generic struct {
	none  bool
	bytes []byte
	str   *string
	key   query.Key
	qry   *query.Query
	data  any
}

// None returns the empty sentinel value.
func None() *Generic { return &Generic{none: true} }

// FromBytes wraps raw bytes.
func FromBytes(b []byte) *Generic { return &Generic{bytes: append([]byte(nil), b...)} }

// FromString wraps a string.
func FromString(s string) *Generic { return &Generic{str: &s} }

// FromKey wraps a Key.
func FromKey(k query.Key) *Generic { return &Generic{key: k} }

// FromQuery wraps a parsed Query.
func FromQuery(q *query.Query) *Generic { return &Generic{qry: q} }

// FromJSON wraps any JSON-marshalable Go value.
func FromJSON(v any) *Generic { return &Generic{data: v} }

// FromMetadata wraps a metadata record's JSON projection.
func FromMetadata(m *metadata.Record) *Generic { return &Generic{data: m} }

// GenericFactory is the Factory implementation backing Generic.
type GenericFactory struct{}

func (GenericFactory) None() Value                           { return None() }
func (GenericFactory) FromBytes(data []byte) (Value, error)   { return FromBytes(data), nil }
func (GenericFactory) FromString(s string) Value              { return FromString(s) }
func (GenericFactory) FromKey(k query.Key) Value              { return FromKey(k) }
func (GenericFactory) FromQuery(q *query.Query) Value         { return FromQuery(q) }
func (GenericFactory) FromMetadata(m *metadata.Record) Value  { return FromMetadata(m) }

func (g *Generic) IsNone() bool { return g == nil || g.none }

func (g *Generic) TypeName() string {
	switch {
	case g.IsNone():
		return "none"
	case g.bytes != nil:
		return "bytes"
	case g.str != nil:
		return "string"
	case g.key != nil:
		return "key"
	case g.qry != nil:
		return "query"
	default:
		return "json"
	}
}

func (g *Generic) Identifier() string {
	switch {
	case g.IsNone():
		return "none"
	case g.str != nil:
		return "str:" + *g.str
	case g.key != nil:
		return "key:" + g.key.String()
	case g.qry != nil:
		return "query:" + query.Encode(g.qry)
	case g.bytes != nil:
		return fmt.Sprintf("bytes:%d", len(g.bytes))
	default:
		b, _ := json.Marshal(g.data)
		return "json:" + string(b)
	}
}

func (g *Generic) AsBytes(dataFormat string) ([]byte, error) {
	switch dataFormat {
	case "", "json":
		switch {
		case g.IsNone():
			return []byte("null"), nil
		case g.str != nil:
			return json.Marshal(*g.str)
		case g.key != nil:
			return json.Marshal(g.key.String())
		case g.qry != nil:
			return json.Marshal(query.Encode(g.qry))
		case g.bytes != nil:
			return json.Marshal(g.bytes)
		default:
			return json.Marshal(g.data)
		}
	case "txt", "text":
		s, err := g.TryIntoString()
		if err != nil {
			return nil, err
		}
		return []byte(s), nil
	case "bin", "binary":
		if g.bytes != nil {
			return g.bytes, nil
		}
		return nil, lqerror.New(lqerror.KindSerializationError, "value has no binary representation")
	default:
		return nil, lqerror.Errorf(lqerror.KindSerializationError, "unsupported data format %q", dataFormat)
	}
}

func (g *Generic) TryIntoString() (string, error) {
	switch {
	case g.IsNone():
		return "", nil
	case g.str != nil:
		return *g.str, nil
	case g.key != nil:
		return g.key.String(), nil
	case g.qry != nil:
		return query.Encode(g.qry), nil
	case g.bytes != nil:
		return string(g.bytes), nil
	default:
		b, err := json.Marshal(g.data)
		if err != nil {
			return "", lqerror.NewWithCause(lqerror.KindSerializationError, "marshal value to string", err)
		}
		return string(b), nil
	}
}

func (g *Generic) DefaultExtension() string {
	switch {
	case g.str != nil, g.key != nil, g.qry != nil:
		return "txt"
	case g.bytes != nil:
		return "bin"
	default:
		return "json"
	}
}

func (g *Generic) DefaultFilename() string {
	return "data." + g.DefaultExtension()
}

func (g *Generic) DefaultMediaType() string {
	switch g.DefaultExtension() {
	case "txt":
		return "text/plain"
	case "bin":
		return "application/octet-stream"
	default:
		return "application/json"
	}
}

// AsQuery returns the wrapped Query and true, if g was built with FromQuery.
func (g *Generic) AsQuery() (*query.Query, bool) {
	if g == nil || g.qry == nil {
		return nil, false
	}
	return g.qry, true
}

// AsKey returns the wrapped Key and true, if g was built with FromKey.
func (g *Generic) AsKey() (query.Key, bool) {
	if g == nil || g.key == nil {
		return nil, false
	}
	return g.key, true
}

func (g *Generic) TryIntoJSONValue() (any, error) {
	switch {
	case g.IsNone():
		return nil, nil
	case g.str != nil:
		return *g.str, nil
	case g.key != nil:
		return g.key.String(), nil
	case g.qry != nil:
		return query.Encode(g.qry), nil
	case g.bytes != nil:
		var v any
		if err := json.Unmarshal(g.bytes, &v); err == nil {
			return v, nil
		}
		return string(g.bytes), nil
	default:
		b, err := json.Marshal(g.data)
		if err != nil {
			return nil, lqerror.NewWithCause(lqerror.KindSerializationError, "marshal value to json", err)
		}
		var v any
		if err := json.Unmarshal(b, &v); err != nil {
			return nil, lqerror.NewWithCause(lqerror.KindSerializationError, "round-trip value through json", err)
		}
		return v, nil
	}
}
