package setting

import (
	"bytes"
	"encoding/json"
)

// Sanitize decodes an untrusted JSON setting object and validates it. When
// want is Invalid the kind is inferred from the value's shape. The result
// is a fresh, normalized Setting; on failure the error wraps ErrRejected.
func Sanitize(raw json.RawMessage, want Kind) (Setting, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return nil, reject("setting is not an object")
	}
	var h Header
	if !isString(obj["displayName"]) {
		return nil, reject("displayName is not a string")
	}
	if err := json.Unmarshal(obj["displayName"], &h.DisplayName); err != nil {
		return nil, reject("displayName: %v", err)
	}
	if c, ok := present(obj, "constant"); ok {
		if !isBool(c) {
			return nil, reject("constant is not a boolean")
		}
		h.Constant = bytes.Equal(c, []byte("true"))
	}

	kind := want
	if kind == Invalid {
		kind = inferFields(obj)
	}
	s, err := decode(kind, h, obj)
	if err != nil {
		return nil, err
	}
	return Normalize(s)
}

func decode(kind Kind, h Header, obj map[string]json.RawMessage) (Setting, error) {
	value := bytes.TrimSpace(obj["value"])
	switch kind {
	case KindBoolean:
		if !isBool(value) {
			return nil, reject("value is not a boolean")
		}
		return &Boolean{Header: h, Value: bytes.Equal(value, []byte("true"))}, nil

	case KindNumber:
		n := &Number{Header: h}
		if !isNumber(value) {
			return nil, reject("value is not a number")
		}
		if err := json.Unmarshal(value, &n.Value); err != nil {
			return nil, reject("value: %v", err)
		}
		for _, f := range []struct {
			key string
			dst **float64
		}{{"min", &n.Min}, {"max", &n.Max}, {"step", &n.Step}} {
			v, ok := present(obj, f.key)
			if !ok {
				continue
			}
			if !isNumber(v) {
				return nil, reject("%s is not a number", f.key)
			}
			var x float64
			if err := json.Unmarshal(v, &x); err != nil {
				return nil, reject("%s: %v", f.key, err)
			}
			*f.dst = Float(x)
		}
		if v, ok := present(obj, "strict"); ok {
			if !isBool(v) {
				return nil, reject("strict is not a boolean")
			}
			n.Strict = bytes.Equal(v, []byte("true"))
		}
		return n, nil

	case KindString:
		s := &String{Header: h}
		if !isString(value) {
			return nil, reject("value is not a string")
		}
		if err := json.Unmarshal(value, &s.Value); err != nil {
			return nil, reject("value: %v", err)
		}
		if v, ok := present(obj, "placeholder"); ok {
			if !isString(v) {
				return nil, reject("placeholder is not a string")
			}
			if err := json.Unmarshal(v, &s.Placeholder); err != nil {
				return nil, reject("placeholder: %v", err)
			}
		}
		return s, nil

	case KindSelect:
		s := &Select{Header: h}
		if !isString(value) {
			return nil, reject("value is not a string")
		}
		if err := json.Unmarshal(value, &s.Value); err != nil {
			return nil, reject("value: %v", err)
		}
		opts, ok := present(obj, "options")
		if !ok {
			return nil, reject("options missing")
		}
		if err := s.Options.UnmarshalJSON(opts); err != nil {
			return nil, reject("options: %v", err)
		}
		return s, nil

	case KindTime:
		var v []float64
		if err := json.Unmarshal(value, &v); err != nil || len(v) != 2 {
			return nil, reject("value is not an [hour, minute] pair")
		}
		return &Time{Header: h, Value: [2]float64{v[0], v[1]}}, nil

	case KindColor:
		var v []float64
		if err := json.Unmarshal(value, &v); err != nil || len(v) != 3 {
			return nil, reject("value is not an [r, g, b] triple")
		}
		return &Color{Header: h, Value: [3]float64{v[0], v[1], v[2]}}, nil

	case KindBooleanArray:
		a := &BooleanArray{Header: h}
		if err := json.Unmarshal(value, &a.Value); err != nil || len(a.Value) == 0 {
			return nil, reject("value is not a non-empty boolean array")
		}
		limit, ok := present(obj, "limit")
		if !ok || !isNumber(limit) {
			return nil, reject("limit is not a number")
		}
		if err := json.Unmarshal(limit, &a.Limit); err != nil {
			return nil, reject("limit: %v", err)
		}
		return a, nil
	}
	return nil, reject("value has no recognizable kind")
}

// present returns obj[key] trimmed, treating an absent member as not
// present. A JSON null is present (and fails every type check).
func present(obj map[string]json.RawMessage, key string) (json.RawMessage, bool) {
	v, ok := obj[key]
	if !ok {
		return nil, false
	}
	return bytes.TrimSpace(v), true
}
