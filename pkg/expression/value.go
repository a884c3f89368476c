package expression

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "boolean"
	case KindNumber:
		return "number"
	case KindText:
		return "text"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Value is a scalar produced by a selection, a literal or an expression. Numbers are exact decimals.
type Value struct {
	kind Kind
	b    bool
	n    decimal.Decimal
	s    string
}

func Null() Value {
	return Value{kind: KindNull}
}

func Bool(b bool) Value {
	return Value{kind: KindBool, b: b}
}

func Number(n decimal.Decimal) Value {
	return Value{kind: KindNumber, n: n}
}

func Int(i int64) Value {
	return Number(decimal.NewFromInt(i))
}

func Text(s string) Value {
	return Value{kind: KindText, s: s}
}

// FromAny converts a decoded JSON/YAML scalar into a Value.
func FromAny(v any) (Value, error) {
	switch t := v.(type) {
	case nil:
		return Null(), nil
	case Value:
		return t, nil
	case bool:
		return Bool(t), nil
	case string:
		return Text(t), nil
	case decimal.Decimal:
		return Number(t), nil
	case json.Number:
		d, err := decimal.NewFromString(t.String())
		if err != nil {
			return Value{}, fmt.Errorf("invalid number %q: %w", t.String(), err)
		}
		return Number(d), nil
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return Value{}, fmt.Errorf("non-finite number %v", t)
		}
		return Number(decimal.NewFromFloat(t)), nil
	case float32:
		if math.IsNaN(float64(t)) || math.IsInf(float64(t), 0) {
			return Value{}, fmt.Errorf("non-finite number %v", t)
		}
		return Number(decimal.NewFromFloat32(t)), nil
	case int:
		return Int(int64(t)), nil
	case int8:
		return Int(int64(t)), nil
	case int16:
		return Int(int64(t)), nil
	case int32:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case uint:
		return Number(decimal.NewFromUint64(uint64(t))), nil
	case uint8:
		return Int(int64(t)), nil
	case uint16:
		return Int(int64(t)), nil
	case uint32:
		return Int(int64(t)), nil
	case uint64:
		return Number(decimal.NewFromUint64(t)), nil
	default:
		return Value{}, fmt.Errorf("unsupported value type %T", v)
	}
}

func (v Value) Kind() Kind {
	return v.kind
}

func (v Value) IsNull() bool {
	return v.kind == KindNull
}

func (v Value) AsBool() (bool, bool) {
	return v.b, v.kind == KindBool
}

func (v Value) AsNumber() (decimal.Decimal, bool) {
	return v.n, v.kind == KindNumber
}

func (v Value) AsText() (string, bool) {
	return v.s, v.kind == KindText
}

// Equal compares kind and content. Numbers compare by value, so 1 and 1.0 are equal.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == o.b
	case KindNumber:
		return v.n.Equal(o.n)
	case KindText:
		return v.s == o.s
	default:
		return false
	}
}

// Interface returns the plain Go form used when encoding results.
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		return json.Number(v.n.String())
	case KindText:
		return v.s
	default:
		return nil
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if f, ok := raw.(float64); ok {
		// keep the literal digits rather than the float64 rendering
		d, err := decimal.NewFromString(string(data))
		if err == nil {
			*v = Number(d)
			return nil
		}
		*v = Number(decimal.NewFromFloat(f))
		return nil
	}
	parsed, err := FromAny(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

func (v Value) String() string {
	switch v.kind {
	case KindBool:
		return fmt.Sprintf("%t", v.b)
	case KindNumber:
		return v.n.String()
	case KindText:
		return fmt.Sprintf("%q", v.s)
	default:
		return "null"
	}
}
