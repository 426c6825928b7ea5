package formfill

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// FieldDescriptor is one detected form field. Description and Value are the
// only attributes this package reads or writes; anything else the
// form-filling service attaches (bbox, type, page, ...) round-trips as-is.
type FieldDescriptor struct {
	Description string
	Value       string

	extra    map[string]json.RawMessage
	rawValue json.RawMessage
}

// FormSchema is an ordered field list; order encodes layout position.
type FormSchema []FieldDescriptor

// SetValue replaces the field value, dropping any non-string original.
func (f *FieldDescriptor) SetValue(v string) {
	f.Value = v
	f.rawValue = nil
}

// Attr returns an attribute other than description/value, if present.
func (f FieldDescriptor) Attr(name string) (json.RawMessage, bool) {
	v, ok := f.extra[name]
	return v, ok
}

// SetAttr stores an extra attribute; description and value are rejected.
func (f *FieldDescriptor) SetAttr(name string, v any) error {
	if name == "description" || name == "value" {
		return fmt.Errorf("attribute %q is reserved", name)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode attribute %s: %w", name, err)
	}
	if f.extra == nil {
		f.extra = make(map[string]json.RawMessage)
	}
	f.extra[name] = raw
	return nil
}

func (f FieldDescriptor) clone() FieldDescriptor {
	out := f
	if f.extra != nil {
		out.extra = make(map[string]json.RawMessage, len(f.extra))
		for k, v := range f.extra {
			out.extra[k] = v
		}
	}
	return out
}

func (f FieldDescriptor) MarshalJSON() ([]byte, error) {
	m := make(map[string]json.RawMessage, len(f.extra)+2)
	for k, v := range f.extra {
		m[k] = v
	}
	desc, err := json.Marshal(f.Description)
	if err != nil {
		return nil, err
	}
	m["description"] = desc
	if f.rawValue != nil {
		m["value"] = f.rawValue
	} else {
		val, err := json.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		m["value"] = val
	}
	return json.Marshal(m)
}

func (f *FieldDescriptor) UnmarshalJSON(b []byte) error {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return fmt.Errorf("decode form field: %w", err)
	}
	*f = FieldDescriptor{}
	if raw, ok := m["description"]; ok {
		if !isNull(raw) {
			if err := json.Unmarshal(raw, &f.Description); err != nil {
				return fmt.Errorf("decode form field description: %w", err)
			}
		}
		delete(m, "description")
	}
	if raw, ok := m["value"]; ok {
		if !isNull(raw) {
			if err := json.Unmarshal(raw, &f.Value); err != nil {
				f.rawValue = append(json.RawMessage(nil), raw...)
			}
		}
		delete(m, "value")
	}
	if len(m) > 0 {
		f.extra = m
	}
	return nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// Clone deep-copies the schema so callers can mutate values freely.
func (s FormSchema) Clone() FormSchema {
	if s == nil {
		return nil
	}
	out := make(FormSchema, len(s))
	for i := range s {
		out[i] = s[i].clone()
	}
	return out
}

// Descriptions lists field descriptions in schema order.
func (s FormSchema) Descriptions() []string {
	out := make([]string, 0, len(s))
	for _, f := range s {
		out = append(out, f.Description)
	}
	return out
}

func ParseSchema(b []byte) (FormSchema, error) {
	var s FormSchema
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("parse form schema: %w", err)
	}
	return s, nil
}
