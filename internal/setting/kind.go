package setting

import (
	"bytes"
	"encoding/json"
)

// Kind identifies one of the seven setting shapes. It is never stored on
// the wire; it is derived from the shape of a setting's value.
type Kind uint8

const (
	Invalid Kind = iota
	KindBoolean
	KindNumber
	KindString
	KindSelect
	KindTime
	KindColor
	KindBooleanArray
)

var kindNames = [...]string{
	Invalid:          "invalid",
	KindBoolean:      "boolean",
	KindNumber:       "number",
	KindString:       "string",
	KindSelect:       "select",
	KindTime:         "time",
	KindColor:        "color",
	KindBooleanArray: "booleanArray",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return kindNames[Invalid]
}

// InferKind derives the kind of a JSON encoded setting object from the
// shape of its "value" member:
//
//	boolean                         -> boolean
//	number                          -> number
//	string with an "options" member -> select
//	string                          -> string
//	[number, number]                -> time
//	[number, number, number]        -> color
//	[bool, ...] (non-empty)         -> booleanArray
//
// Anything else, including an empty array, is Invalid.
func InferKind(raw json.RawMessage) Kind {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return Invalid
	}
	return inferFields(obj)
}

func inferFields(obj map[string]json.RawMessage) Kind {
	v := bytes.TrimSpace(obj["value"])
	if len(v) == 0 {
		return Invalid
	}
	switch {
	case isBool(v):
		return KindBoolean
	case isNumber(v):
		return KindNumber
	case v[0] == '"':
		if _, ok := obj["options"]; ok {
			return KindSelect
		}
		return KindString
	case v[0] == '[':
		var elems []json.RawMessage
		if err := json.Unmarshal(v, &elems); err != nil {
			return Invalid
		}
		return inferArray(elems)
	}
	return Invalid
}

func inferArray(elems []json.RawMessage) Kind {
	numbers, bools := true, true
	for _, e := range elems {
		e = bytes.TrimSpace(e)
		numbers = numbers && isNumber(e)
		bools = bools && isBool(e)
	}
	switch {
	case len(elems) == 2 && numbers:
		return KindTime
	case len(elems) == 3 && numbers:
		return KindColor
	case len(elems) > 0 && bools:
		return KindBooleanArray
	}
	return Invalid
}

func isBool(v []byte) bool {
	return bytes.Equal(v, []byte("true")) || bytes.Equal(v, []byte("false"))
}

func isNumber(v []byte) bool {
	return len(v) > 0 && (v[0] == '-' || (v[0] >= '0' && v[0] <= '9'))
}

func isString(v []byte) bool {
	v = bytes.TrimSpace(v)
	return len(v) > 0 && v[0] == '"'
}
