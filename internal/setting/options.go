package setting

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

var errNotObject = errors.New("not a JSON object")

// Option is one selectable key of a Select and its label. Labels are
// opaque to the engine; the web client uses them as CSS color names.
type Option struct {
	Key   string
	Label string
}

// Options is an ordered mapping from option key to label. It encodes as a
// JSON object whose member order is preserved.
type Options []Option

// Opts builds Options from alternating key/label pairs.
func Opts(pairs ...string) Options {
	out := make(Options, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, Option{Key: pairs[i], Label: pairs[i+1]})
	}
	return out
}

func (o Options) Has(key string) bool {
	for _, opt := range o {
		if opt.Key == key {
			return true
		}
	}
	return false
}

func (o Options) Keys() []string {
	keys := make([]string, len(o))
	for i, opt := range o {
		keys[i] = opt.Key
	}
	return keys
}

// Equal reports whether o and p hold the same keys and labels in the same
// order.
func (o Options) Equal(p Options) bool {
	if len(o) != len(p) {
		return false
	}
	for i := range o {
		if o[i] != p[i] {
			return false
		}
	}
	return true
}

func (o Options) MarshalJSON() ([]byte, error) {
	om := orderedmap.New[string, string](len(o))
	for _, opt := range o {
		om.Set(opt.Key, opt.Label)
	}
	return om.MarshalJSON()
}

// UnmarshalJSON keeps the document order of the options. A repeated key
// keeps its first position and its last label.
func (o *Options) UnmarshalJSON(data []byte) error {
	out := Options{}
	err := EachMember(data, func(key string, val json.RawMessage) error {
		if !isString(val) {
			return fmt.Errorf("option %q: label is not a string", key)
		}
		var label string
		if err := json.Unmarshal(val, &label); err != nil {
			return fmt.Errorf("option %q: %w", key, err)
		}
		out = append(out, Option{Key: key, Label: label})
		return nil
	})
	if err != nil {
		return err
	}
	*o = out
	return nil
}

// Members decodes the JSON object in data keeping its member order.
func Members(data []byte) (*orderedmap.OrderedMap[string, json.RawMessage], error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' || !json.Valid(trimmed) {
		return nil, errNotObject
	}
	om := orderedmap.New[string, json.RawMessage]()
	if err := om.UnmarshalJSON(trimmed); err != nil {
		return nil, err
	}
	return om, nil
}

// EachMember calls fn for every member of the JSON object in data, in
// document order.
func EachMember(data []byte, fn func(key string, val json.RawMessage) error) error {
	om, err := Members(data)
	if err != nil {
		return err
	}
	for p := om.Oldest(); p != nil; p = p.Next() {
		if err := fn(p.Key, p.Value); err != nil {
			return err
		}
	}
	return nil
}
