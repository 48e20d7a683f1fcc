package setting

import (
	"errors"
	"fmt"
	"math"
)

// ErrRejected is wrapped by every validation failure.
var ErrRejected = errors.New("setting rejected")

func reject(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrRejected, fmt.Sprintf(format, args...))
}

// rule is the per-kind validator. normalize checks the kind's constraints
// and returns a normalized copy; sameSchema reports whether two settings of
// the kind declare the same metadata, ignoring value and Header.
type rule struct {
	normalize  func(Setting) (Setting, error)
	sameSchema func(cur, next Setting) bool
}

var rules = map[Kind]rule{
	KindBoolean: {
		normalize:  func(s Setting) (Setting, error) { return s.clone(), nil },
		sameSchema: func(_, _ Setting) bool { return true },
	},
	KindNumber: {
		normalize: normalizeNumber,
		sameSchema: func(cur, next Setting) bool {
			a, b := cur.(*Number), next.(*Number)
			return samePtr(a.Min, b.Min) && samePtr(a.Max, b.Max) &&
				samePtr(a.Step, b.Step) && a.Strict == b.Strict
		},
	},
	KindString: {
		normalize: func(s Setting) (Setting, error) {
			c := s.clone().(*String)
			c.Value = truncate(c.Value, MaxStringLen)
			return c, nil
		},
		sameSchema: func(cur, next Setting) bool {
			return cur.(*String).Placeholder == next.(*String).Placeholder
		},
	},
	KindSelect: {
		normalize: func(s Setting) (Setting, error) {
			c := s.clone().(*Select)
			if !c.Options.Has(c.Value) {
				return nil, reject("select value %q is not an option", c.Value)
			}
			return c, nil
		},
		sameSchema: func(cur, next Setting) bool {
			return cur.(*Select).Options.Equal(next.(*Select).Options)
		},
	},
	KindTime: {
		normalize: func(s Setting) (Setting, error) {
			c := s.clone().(*Time)
			c.Value[0] = clamp(c.Value[0], 0, 23)
			c.Value[1] = clamp(c.Value[1], 0, 59)
			return c, nil
		},
		sameSchema: func(_, _ Setting) bool { return true },
	},
	KindColor: {
		normalize: func(s Setting) (Setting, error) {
			c := s.clone().(*Color)
			for i := range c.Value {
				c.Value[i] = clamp(c.Value[i], 0, 1)
			}
			return c, nil
		},
		sameSchema: func(_, _ Setting) bool { return true },
	},
	KindBooleanArray: {
		normalize: func(s Setting) (Setting, error) {
			c := s.clone().(*BooleanArray)
			if len(c.Value) == 0 {
				return nil, reject("boolean array is empty")
			}
			if n := CountTrue(c.Value); float64(n) > c.Limit {
				return nil, reject("%d entries set, limit is %v", n, c.Limit)
			}
			return c, nil
		},
		sameSchema: func(cur, next Setting) bool {
			return cur.(*BooleanArray).Limit == next.(*BooleanArray).Limit
		},
	},
}

// Normalize validates s against its kind's constraints and returns a
// normalized deep copy.
func Normalize(s Setting) (Setting, error) {
	if s == nil {
		return nil, reject("nil setting")
	}
	r, ok := rules[s.Kind()]
	if !ok {
		return nil, reject("unknown kind %s", s.Kind())
	}
	return r.normalize(s)
}

// SameSchema reports whether next may replace cur: same kind, display
// name, constant flag and kind specific metadata.
func SameSchema(cur, next Setting) bool {
	if cur == nil || next == nil || cur.Kind() != next.Kind() {
		return false
	}
	if cur.Label() != next.Label() || cur.IsConstant() != next.IsConstant() {
		return false
	}
	return rules[cur.Kind()].sameSchema(cur, next)
}

func normalizeNumber(s Setting) (Setting, error) {
	c := s.clone().(*Number)
	if (c.Min == nil) != (c.Max == nil) {
		return nil, reject("number min and max must be set together")
	}
	if !c.Strict {
		return c, nil
	}
	if c.Min == nil {
		return nil, reject("strict number requires min and max")
	}
	lo, hi := *c.Min, *c.Max
	v := c.Value
	if c.Step != nil && *c.Step > 0 {
		st := *c.Step
		steps := math.Round((v - lo) / st)
		steps = clamp(steps, 0, math.Floor((hi-lo)/st))
		v = lo + steps*st
	}
	c.Value = clamp(v, lo, hi)
	return c, nil
}

// CountTrue returns the number of set flags.
func CountTrue(v []bool) int {
	n := 0
	for _, b := range v {
		if b {
			n++
		}
	}
	return n
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func truncate(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
