package effect

import (
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/coreman2200/roomlight/internal/setting"
)

// Instance is one live, user named effect.
type Instance struct {
	name        string
	tmpl        *Template
	settings    *setting.Map
	state       any
	lastChanged time.Time
	now         func() time.Time
}

func newInstance(name string, tmpl *Template, now func() time.Time) *Instance {
	inst := &Instance{
		name:        name,
		tmpl:        tmpl,
		settings:    setting.NewMap().With(ActivityKey, ActivitySetting(Enabled, Disabled)),
		now:         now,
		lastChanged: now(),
	}
	for _, key := range tmpl.Defaults.Keys() {
		s, _ := tmpl.Defaults.Get(key)
		inst.settings.Set(key, setting.Clone(s))
	}
	if st, ok := tmpl.Effect.(Stateful); ok {
		inst.state = st.NewState()
	}
	return inst
}

func (i *Instance) Name() string           { return i.name }
func (i *Instance) Library() string        { return i.tmpl.Name }
func (i *Instance) LastChanged() time.Time { return i.lastChanged }

// Now is the registry's clock. Effect bodies use it instead of time.Now.
func (i *Instance) Now() time.Time { return i.now() }

// Settings returns a deep copy of the instance's settings.
func (i *Instance) Settings() *setting.Map { return i.settings.Clone() }

// State returns the value created by the template's NewState, or nil.
func (i *Instance) State() any { return i.state }

// StateOf returns the instance state as *T. It panics if the template
// declared a different state type.
func StateOf[T any](i *Instance) *T {
	st, ok := i.state.(*T)
	if !ok {
		panic(fmt.Sprintf("effect %q: state is %T", i.name, i.state))
	}
	return st
}

// Activity returns the current _activity value.
func (i *Instance) Activity() Activity { return Activity(i.GetSelect(ActivityKey)) }

func (i *Instance) touch() {
	if t := i.now(); t.After(i.lastChanged) {
		i.lastChanged = t
	}
}

// Rejection is one settings key a merge refused.
type Rejection struct {
	Effect string `json:"effect"`
	Key    string `json:"setting"`
	Err    error  `json:"-"`
}

func (r Rejection) Error() string {
	return fmt.Sprintf("effect %q setting %q: %v", r.Effect, r.Key, r.Err)
}

func (r Rejection) MarshalJSON() ([]byte, error) {
	type wire struct {
		Effect string `json:"effect"`
		Key    string `json:"setting"`
		Error  string `json:"error"`
	}
	return json.Marshal(wire{Effect: r.Effect, Key: r.Key, Error: r.Err.Error()})
}

// Merge applies an untrusted partial settings object. Each key that exists
// on the instance and is not constant is replaced wholesale by the
// sanitized incoming setting, provided it has the same kind, display name,
// constant flag and kind specific metadata. Unknown and constant keys are
// ignored; every other refusal is returned. lastChanged is bumped even
// when nothing changed.
func (i *Instance) Merge(patch map[string]json.RawMessage) []Rejection {
	i.touch()

	var rejected []Rejection
	for key, raw := range patch {
		cur, ok := i.settings.Get(key)
		if !ok || cur.IsConstant() {
			continue
		}
		next, err := i.check(cur, raw)
		if err != nil {
			rejected = append(rejected, Rejection{Effect: i.name, Key: key, Err: err})
			continue
		}
		i.settings.Set(key, next)
	}
	sort.Slice(rejected, func(a, b int) bool { return rejected[a].Key < rejected[b].Key })
	return rejected
}

func (i *Instance) check(cur setting.Setting, raw json.RawMessage) (setting.Setting, error) {
	kind := setting.InferKind(raw)
	if kind != cur.Kind() {
		return nil, fmt.Errorf("%w: got %s, want %s", ErrKindMismatch, kind, cur.Kind())
	}
	next, err := setting.Sanitize(raw, kind)
	if err != nil {
		return nil, err
	}
	if !setting.SameSchema(cur, next) {
		return nil, ErrSchemaMismatch
	}
	return next, nil
}

// sleepCheck wakes a sleeping instance once its wakeup time has passed.
func (i *Instance) sleepCheck() {
	sl, ok := i.tmpl.Effect.(Sleeper)
	if !ok {
		return
	}
	if i.now().Before(sl.WakeupTime(i)) {
		return
	}
	act, ok := i.settings.Get(ActivityKey)
	if sel, isSel := act.(*setting.Select); ok && isSel && sel.Value == string(Sleeping) {
		sel.Value = string(Enabled)
		i.touch()
	}
}

func lookup[T setting.Setting](i *Instance, name string, kind setting.Kind) T {
	s, ok := i.settings.Get(name)
	if !ok {
		panic(fmt.Sprintf("effect %q: no setting %q", i.name, name))
	}
	t, ok := s.(T)
	if !ok {
		panic(fmt.Sprintf("effect %q: setting %q is %s, not %s", i.name, name, s.Kind(), kind))
	}
	return t
}

// Typed getters. They panic when the stored kind differs from the one
// requested; effect bodies only read settings their template declares.

func (i *Instance) GetBool(name string) bool {
	return lookup[*setting.Boolean](i, name, setting.KindBoolean).Value
}

func (i *Instance) GetNumber(name string) float64 {
	return lookup[*setting.Number](i, name, setting.KindNumber).Value
}

func (i *Instance) GetString(name string) string {
	return lookup[*setting.String](i, name, setting.KindString).Value
}

func (i *Instance) GetSelect(name string) string {
	return lookup[*setting.Select](i, name, setting.KindSelect).Value
}

func (i *Instance) GetTime(name string) [2]float64 {
	return lookup[*setting.Time](i, name, setting.KindTime).Value
}

func (i *Instance) GetColor(name string) [3]float64 {
	return lookup[*setting.Color](i, name, setting.KindColor).Value
}

func (i *Instance) GetBoolArray(name string) []bool {
	return slices.Clone(lookup[*setting.BooleanArray](i, name, setting.KindBooleanArray).Value)
}

// SetBool stores a boolean from trusted effect code, for button-like
// settings the effect resets itself.
func (i *Instance) SetBool(name string, v bool) {
	lookup[*setting.Boolean](i, name, setting.KindBoolean).Value = v
}
