// Package canonical holds the JSON document an LLM produces for a BOL or a
// Packing Slip, plus the value helpers the form-filling layer relies on.
package canonical

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// Payload is a canonical shipping document. Absent keys mean "leave blank".
type Payload map[string]any

type Kind string

const (
	KindPackingSlip Kind = "packing_slip"
	KindBOL         Kind = "bol"
	KindGeneric     Kind = "generic"
)

// Decode parses a JSON object, keeping numbers in their literal form.
func Decode(b []byte) (Payload, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("decode payload: expected JSON object, got %T", v)
	}
	return Payload(m), nil
}

func (p Payload) Has(key string) bool {
	_, ok := p[key]
	return ok
}

func (p Payload) Get(key string) any {
	if p == nil {
		return nil
	}
	return p[key]
}

func (p Payload) String(key string) string {
	return Stringify(p.Get(key))
}

// Object returns the nested object at key. Non-object values report false.
func (p Payload) Object(key string) (Payload, bool) {
	switch m := p.Get(key).(type) {
	case map[string]any:
		return Payload(m), true
	case Payload:
		return m, true
	default:
		return nil, false
	}
}

// Objects returns the list at key with each element viewed as an object;
// elements that are not objects come back empty so row positions are kept.
func (p Payload) Objects(key string) []Payload {
	list, ok := p.Get(key).([]any)
	if !ok {
		if typed, ok := p.Get(key).([]map[string]any); ok {
			out := make([]Payload, 0, len(typed))
			for _, m := range typed {
				out = append(out, Payload(m))
			}
			return out
		}
		return nil
	}
	out := make([]Payload, 0, len(list))
	for _, item := range list {
		switch m := item.(type) {
		case map[string]any:
			out = append(out, Payload(m))
		case Payload:
			out = append(out, m)
		default:
			out = append(out, Payload{})
		}
	}
	return out
}

// AnyTruthy reports whether at least one value of the object is non-empty.
func (p Payload) AnyTruthy() bool {
	for _, v := range p {
		if Truthy(v) {
			return true
		}
	}
	return false
}

// Keys returns the object's keys in sorted order.
func (p Payload) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone deep-copies nested objects and lists.
func (p Payload) Clone() Payload {
	if p == nil {
		return nil
	}
	out := make(Payload, len(p))
	for k, v := range p {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		return map[string]any(Payload(x).Clone())
	case Payload:
		return map[string]any(x.Clone())
	case []any:
		out := make([]any, len(x))
		for i := range x {
			out[i] = cloneValue(x[i])
		}
		return out
	default:
		return v
	}
}

// KindOf detects which document a payload describes. BOL keys win over
// Packing Slip keys.
func KindOf(p Payload) Kind {
	isBOL := p.Has("bol_number") || p.Has("bol_date")
	isPackingSlip := p.Has("customer_id") || p.Has("purchase_order_number")
	switch {
	case isBOL:
		return KindBOL
	case isPackingSlip:
		return KindPackingSlip
	default:
		return KindGeneric
	}
}

// Stringify renders a scalar the way it should appear on a form. nil is "".
func Stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case bool:
		return strconv.FormatBool(x)
	case fmt.Stringer:
		return x.String()
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	}
}

// Truthy mirrors "has a usable value": empty strings, zero numbers, false,
// nil and empty containers are all blank.
func Truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case string:
		return x != ""
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return x.String() != ""
		}
		return f != 0
	case float64:
		return x != 0
	case float32:
		return x != 0
	case int:
		return x != 0
	case int64:
		return x != 0
	case int32:
		return x != 0
	case bool:
		return x
	case map[string]any:
		return len(x) > 0
	case Payload:
		return len(x) > 0
	case []any:
		return len(x) > 0
	default:
		return true
	}
}
