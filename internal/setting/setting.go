// Package setting implements the typed settings that effects expose to the
// web client: a closed set of seven shapes, their validation and the
// schema comparison used when an untrusted client patches a live value.
package setting

import "slices"

// MaxStringLen is the number of characters kept from a String value.
const MaxStringLen = 1024

// Setting is one of *Boolean, *Number, *String, *Select, *Time, *Color or
// *BooleanArray. The set is closed.
type Setting interface {
	Kind() Kind
	Label() string
	IsConstant() bool
	clone() Setting
}

// Header carries the metadata every setting shares.
type Header struct {
	DisplayName string `json:"displayName"`
	Constant    bool   `json:"constant,omitempty"`
}

func (h Header) Label() string    { return h.DisplayName }
func (h Header) IsConstant() bool { return h.Constant }

type Boolean struct {
	Header
	Value bool `json:"value"`
}

// Number is a numeric setting. Min and Max are either both set or both nil.
// When Strict is set the value is snapped to Step and clamped to [Min, Max].
type Number struct {
	Header
	Value  float64  `json:"value"`
	Min    *float64 `json:"min,omitempty"`
	Max    *float64 `json:"max,omitempty"`
	Step   *float64 `json:"step,omitempty"`
	Strict bool     `json:"strict,omitempty"`
}

type String struct {
	Header
	Placeholder string `json:"placeholder,omitempty"`
	Value       string `json:"value"`
}

// Select holds one key of Options.
type Select struct {
	Header
	Value   string  `json:"value"`
	Options Options `json:"options"`
}

// Time is an hour (0-23) and minute (0-59) of the day.
type Time struct {
	Header
	Value [2]float64 `json:"value"`
}

// Color is an RGB triple with every channel in [0, 1].
type Color struct {
	Header
	Value [3]float64 `json:"value"`
}

// BooleanArray is a list of flags of which at most Limit may be true.
type BooleanArray struct {
	Header
	Value []bool  `json:"value"`
	Limit float64 `json:"limit"`
}

func (*Boolean) Kind() Kind      { return KindBoolean }
func (*Number) Kind() Kind       { return KindNumber }
func (*String) Kind() Kind       { return KindString }
func (*Select) Kind() Kind       { return KindSelect }
func (*Time) Kind() Kind         { return KindTime }
func (*Color) Kind() Kind        { return KindColor }
func (*BooleanArray) Kind() Kind { return KindBooleanArray }

func (s *Boolean) clone() Setting { c := *s; return &c }
func (s *String) clone() Setting  { c := *s; return &c }
func (s *Time) clone() Setting    { c := *s; return &c }
func (s *Color) clone() Setting   { c := *s; return &c }

func (s *Number) clone() Setting {
	c := *s
	c.Min, c.Max, c.Step = clonePtr(s.Min), clonePtr(s.Max), clonePtr(s.Step)
	return &c
}

func (s *Select) clone() Setting {
	c := *s
	c.Options = slices.Clone(s.Options)
	return &c
}

func (s *BooleanArray) clone() Setting {
	c := *s
	c.Value = slices.Clone(s.Value)
	return &c
}

// Clone returns a deep copy of s.
func Clone(s Setting) Setting {
	if s == nil {
		return nil
	}
	return s.clone()
}

// Float returns a pointer to v, for Number bounds.
func Float(v float64) *float64 { return &v }

func clonePtr(p *float64) *float64 {
	if p == nil {
		return nil
	}
	return Float(*p)
}

func samePtr(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
