package setting

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Map is an insertion ordered set of named settings. The order is the
// order the web client renders them in.
type Map struct {
	om *orderedmap.OrderedMap[string, Setting]
}

func NewMap() *Map { return &Map{om: orderedmap.New[string, Setting]()} }

// With sets key and returns m, for declaring template defaults.
func (m *Map) With(key string, s Setting) *Map {
	m.Set(key, s)
	return m
}

// Set replaces the setting stored under key, keeping its position, or
// appends it.
func (m *Map) Set(key string, s Setting) { m.om.Set(key, s) }

func (m *Map) Get(key string) (Setting, bool) { return m.om.Get(key) }

func (m *Map) Len() int { return m.om.Len() }

func (m *Map) Keys() []string {
	keys := make([]string, 0, m.om.Len())
	for p := m.om.Oldest(); p != nil; p = p.Next() {
		keys = append(keys, p.Key)
	}
	return keys
}

// Clone deep copies every setting.
func (m *Map) Clone() *Map {
	c := NewMap()
	for p := m.om.Oldest(); p != nil; p = p.Next() {
		c.om.Set(p.Key, Clone(p.Value))
	}
	return c
}

func (m *Map) MarshalJSON() ([]byte, error) { return m.om.MarshalJSON() }
