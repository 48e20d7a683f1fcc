// Package netopt holds values pushed over the network for effects to read,
// such as a color another machine wants shown.
package netopt

import (
	"encoding/json"
	"errors"
	"math"
	"sync"

	"github.com/coreman2200/roomlight/internal/setting"
)

var ErrNotObject = errors.New("network options must be a JSON object")

// Table is a concurrency safe key to JSON value map.
type Table struct {
	mu sync.RWMutex
	m  map[string]json.RawMessage
}

func NewTable() *Table { return &Table{m: map[string]json.RawMessage{}} }

func (t *Table) Set(key string, v json.RawMessage) {
	t.mu.Lock()
	t.m[key] = append(json.RawMessage(nil), v...)
	t.mu.Unlock()
}

func (t *Table) Get(key string) (json.RawMessage, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.m[key]
	return v, ok
}

// Merge stores every member of a JSON object.
func (t *Table) Merge(body []byte) error {
	if !json.Valid(body) {
		return ErrNotObject
	}
	var upd []struct {
		k string
		v json.RawMessage
	}
	err := setting.EachMember(body, func(key string, val json.RawMessage) error {
		upd = append(upd, struct {
			k string
			v json.RawMessage
		}{key, val})
		return nil
	})
	if err != nil {
		return ErrNotObject
	}
	t.mu.Lock()
	for _, u := range upd {
		t.m[u.k] = u.v
	}
	t.mu.Unlock()
	return nil
}

// Color reads key as an [r, g, b] triple clamped to [0, 1]. ok is false
// when the key is missing or holds anything else.
func (t *Table) Color(key string) (c [3]float64, ok bool) {
	raw, found := t.Get(key)
	if !found {
		return c, false
	}
	var v []float64
	if err := json.Unmarshal(raw, &v); err != nil || len(v) != 3 {
		return c, false
	}
	for i, x := range v {
		if math.IsNaN(x) {
			return [3]float64{}, false
		}
		c[i] = math.Max(0, math.Min(1, x))
	}
	return c, true
}
