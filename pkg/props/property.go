// Package props provides typed, lazily-resolved configuration values over
// pluggable backends: the process environment, managed-identity-backed
// remote stores (vault secrets, app-configuration), and a TTL caching
// decorator. Properties never cache their own results; caching belongs to
// the handler chain.
package props

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/goliatone/go-faaskit/pkg/fault"
)

// Kind declares how a resolved raw value is converted.
type Kind string

const (
	KindString Kind = "string"
	KindBool   Kind = "bool"
	KindNumber Kind = "number"
	KindJSON   Kind = "json"
)

// Property is an immutable declaration of a configuration value. The value
// is resolved on demand through a Handler.
type Property struct {
	Name    string
	Default any
	Kind    Kind
}

// String declares a string-typed property.
func String(name string, def string) Property {
	return Property{Name: name, Default: def, Kind: KindString}
}

// Bool declares a bool-typed property.
func Bool(name string, def bool) Property {
	return Property{Name: name, Default: def, Kind: KindBool}
}

// Number declares a number-typed property.
func Number(name string, def float64) Property {
	return Property{Name: name, Default: def, Kind: KindNumber}
}

// JSON declares a JSON-typed property; string values are unmarshaled.
func JSON(name string, def any) Property {
	return Property{Name: name, Default: def, Kind: KindJSON}
}

// Resolve fetches the raw value through the handler and converts it to the
// declared kind. Conversion failures are configuration errors; a missing key
// yields the default without error.
func (p Property) Resolve(ctx context.Context, h Handler) (any, error) {
	if p.Name == "" {
		return nil, fault.Configuration("property declared without a name")
	}
	raw, err := h.GetProperty(ctx, p.Name, p.Default)
	if err != nil {
		return nil, err
	}
	value, err := convert(raw, p.Kind)
	if err != nil {
		return nil, fault.Configuration("property %q: %v", p.Name, err)
	}
	return value, nil
}

func convert(raw any, kind Kind) (any, error) {
	if raw == nil {
		return nil, nil
	}
	switch kind {
	case KindString, "":
		if s, ok := raw.(string); ok {
			return s, nil
		}
		return "", errInvalid("string", raw)
	case KindBool:
		switch v := raw.(type) {
		case bool:
			return v, nil
		case string:
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				return false, errInvalid("bool", raw)
			}
			return b, nil
		}
		return false, errInvalid("bool", raw)
	case KindNumber:
		switch v := raw.(type) {
		case float64:
			return v, nil
		case int:
			return float64(v), nil
		case int64:
			return float64(v), nil
		case json.Number:
			f, err := v.Float64()
			if err != nil {
				return float64(0), errInvalid("number", raw)
			}
			return f, nil
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return float64(0), errInvalid("number", raw)
			}
			return f, nil
		}
		return float64(0), errInvalid("number", raw)
	case KindJSON:
		if s, ok := raw.(string); ok {
			var out any
			if err := json.Unmarshal([]byte(s), &out); err != nil {
				return nil, errInvalid("json", raw)
			}
			return out, nil
		}
		// Already-structured values pass through.
		return raw, nil
	}
	return nil, errInvalid(string(kind), raw)
}

type conversionError struct {
	want string
	got  any
}

func (e conversionError) Error() string {
	return "cannot convert value of type " + typeName(e.got) + " to " + e.want
}

func errInvalid(want string, got any) error {
	return conversionError{want: want, got: got}
}

func typeName(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case bool:
		return "bool"
	case float64, int, int64, json.Number:
		return "number"
	default:
		return "object"
	}
}
