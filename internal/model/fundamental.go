package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ValueKind tags the scalar held by a Value.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindNumber
	KindString
)

// Value is a fundamental field: a number, a string or null.
type Value struct {
	Kind ValueKind
	Num  float64
	Str  string
}

func Number(f float64) Value { return Value{Kind: KindNumber, Num: f} }
func String(s string) Value  { return Value{Kind: KindString, Str: s} }
func Null() Value            { return Value{} }

func (v Value) IsNull() bool { return v.Kind == KindNull }

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindNumber:
		return json.Marshal(v.Num)
	case KindString:
		return json.Marshal(v.Str)
	default:
		return []byte("null"), nil
	}
}

func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*v = Null()
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = String(s)
	case len(data) > 0 && (data[0] == 't' || data[0] == 'f'):
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		if b {
			*v = Number(1)
		} else {
			*v = Number(0)
		}
	default:
		var f float64
		if err := json.Unmarshal(data, &f); err != nil {
			return fmt.Errorf("fundamental value %s: %w", string(data), err)
		}
		*v = Number(f)
	}
	return nil
}

// Snapshot maps canonical field names (marketCap, trailingPE, sector, ...)
// to their latest values. A snapshot is replaced on every refresh.
type Snapshot map[string]Value

// SnapshotFromRaw converts provider metadata into a Snapshot. Nested
// objects and arrays are not scalars and are ignored.
func SnapshotFromRaw(raw map[string]any) Snapshot {
	snap := make(Snapshot, len(raw))
	for k, v := range raw {
		switch t := v.(type) {
		case nil:
			snap[k] = Null()
		case float64:
			snap[k] = Number(t)
		case float32:
			snap[k] = Number(float64(t))
		case int:
			snap[k] = Number(float64(t))
		case int64:
			snap[k] = Number(float64(t))
		case json.Number:
			if f, err := t.Float64(); err == nil {
				snap[k] = Number(f)
			}
		case string:
			snap[k] = String(t)
		case bool:
			if t {
				snap[k] = Number(1)
			} else {
				snap[k] = Number(0)
			}
		}
	}
	return snap
}

// Number returns the numeric value of field, if present.
func (s Snapshot) Number(field string) (float64, bool) {
	v, ok := s[field]
	if !ok || v.Kind != KindNumber {
		return 0, false
	}
	return v.Num, true
}

// String returns the string value of field, if present.
func (s Snapshot) String(field string) (string, bool) {
	v, ok := s[field]
	if !ok || v.Kind != KindString {
		return "", false
	}
	return v.Str, true
}

// Clone returns a shallow copy safe to modify.
func (s Snapshot) Clone() Snapshot {
	out := make(Snapshot, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}
