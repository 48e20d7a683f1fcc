package effect

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/coreman2200/roomlight/internal/render"
	"github.com/coreman2200/roomlight/internal/setting"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Registry owns the template catalog and every live instance. It is not
// safe for concurrent use; callers serialize access with the scheduler.
type Registry struct {
	templates map[string]*Template
	tmplOrder []string

	instances map[string]*Instance
	order     []string

	now    func() time.Time
	panics map[string]zerolog.Logger
}

func NewRegistry() *Registry {
	return &Registry{
		templates: map[string]*Template{},
		instances: map[string]*Instance{},
		now:       time.Now,
		panics:    map[string]zerolog.Logger{},
	}
}

// SetClock replaces the time source used for lastChanged and wakeups.
func (r *Registry) SetClock(now func() time.Time) { r.now = now }

func (r *Registry) Now() time.Time { return r.now() }

// Register adds a template. It panics if name is taken or a default is
// invalid.
func (r *Registry) Register(name string, defaults *setting.Map, e Effect) {
	if _, ok := r.templates[name]; ok {
		panic(fmt.Sprintf("effect template %q registered twice", name))
	}
	if defaults == nil {
		defaults = setting.NewMap()
	}
	norm := setting.NewMap()
	for _, key := range defaults.Keys() {
		s, _ := defaults.Get(key)
		n, err := setting.Normalize(s)
		if err != nil {
			panic(fmt.Sprintf("effect template %q setting %q: %v", name, key, err))
		}
		if key == ActivityKey {
			sel, ok := n.(*setting.Select)
			if !ok || !sel.Options.Has(string(Enabled)) {
				panic(fmt.Sprintf("effect template %q: %s must be a select with an %q option", name, ActivityKey, Enabled))
			}
		}
		norm.Set(key, n)
	}
	r.templates[name] = &Template{Name: name, Defaults: norm, Effect: e}
	r.tmplOrder = append(r.tmplOrder, name)
}

// Templates lists template names in registration order.
func (r *Registry) Templates() []string { return append([]string(nil), r.tmplOrder...) }

func (r *Registry) Template(name string) (*Template, bool) {
	t, ok := r.templates[name]
	return t, ok
}

// Create starts a new instance of lib named name, then merges overlay into
// its settings. Rejected overlay keys are returned; the instance is created
// regardless.
func (r *Registry) Create(lib, name string, overlay map[string]json.RawMessage) (*Instance, []Rejection, error) {
	if _, ok := r.instances[name]; ok {
		return nil, nil, fmt.Errorf("%w: %q", ErrDuplicateInstance, name)
	}
	tmpl, ok := r.templates[lib]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownTemplate, lib)
	}
	inst := newInstance(name, tmpl, r.now)
	var rejected []Rejection
	if len(overlay) > 0 {
		rejected = inst.Merge(overlay)
	}
	r.instances[name] = inst
	r.order = append(r.order, name)
	log.Debug().Str("effect", name).Str("library", lib).Msg("effect created")
	return inst, rejected, nil
}

// Delete removes the named instance. Missing names are ignored.
func (r *Registry) Delete(name string) {
	if _, ok := r.instances[name]; !ok {
		return
	}
	delete(r.instances, name)
	delete(r.panics, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i:i], r.order[i+1:]...)
			break
		}
	}
	log.Debug().Str("effect", name).Msg("effect deleted")
}

func (r *Registry) Get(name string) (*Instance, bool) {
	inst, ok := r.instances[name]
	return inst, ok
}

// Instances returns the live instances in insertion order.
func (r *Registry) Instances() []*Instance {
	out := make([]*Instance, 0, len(r.order))
	for _, n := range r.order {
		out = append(out, r.instances[n])
	}
	return out
}

func (r *Registry) Len() int { return len(r.order) }

// Tick evaluates every live instance into buf in insertion order. The
// order is fixed when the tick starts; instances deleted by an earlier
// effect in the same tick are skipped.
func (r *Registry) Tick(buf render.Buffer) {
	order := append([]string(nil), r.order...)
	for _, name := range order {
		inst, ok := r.instances[name]
		if !ok {
			continue
		}
		switch inst.Activity() {
		case Enabled:
			r.update(inst, buf)
		case Sleeping:
			inst.sleepCheck()
		}
	}
}

func (r *Registry) update(inst *Instance, buf render.Buffer) {
	defer func() {
		if v := recover(); v != nil {
			l := r.panicLog(inst.name)
			l.Error().Str("effect", inst.name).Str("library", inst.Library()).
				Interface("panic", v).Msg("effect update failed")
		}
	}()
	inst.tmpl.Effect.Update(inst, buf)
}

// panicLog returns a logger that lets one message per effect through every
// ten seconds.
func (r *Registry) panicLog(name string) *zerolog.Logger {
	l, ok := r.panics[name]
	if !ok {
		l = log.Sample(&zerolog.BurstSampler{Burst: 1, Period: 10 * time.Second})
		r.panics[name] = l
	}
	return &l
}

// ChangedWithin lists instances whose settings were touched during the
// last d.
func (r *Registry) ChangedWithin(d time.Duration) []string {
	since := r.now().Add(-d)
	out := []string{}
	for _, n := range r.order {
		if !r.instances[n].lastChanged.Before(since) {
			out = append(out, n)
		}
	}
	return out
}

// ApplyPatch merges a client patch of the form {displayName: {key:
// setting}}. Unknown names and non-object entries are ignored. A body that
// is not a JSON object is ErrMalformedPatch.
func (r *Registry) ApplyPatch(raw []byte) ([]Rejection, error) {
	if !json.Valid(raw) {
		return nil, fmt.Errorf("%w: invalid JSON", ErrMalformedPatch)
	}
	var rejected []Rejection
	err := setting.EachMember(raw, func(name string, val json.RawMessage) error {
		inst, ok := r.instances[name]
		if !ok {
			return nil
		}
		var partial map[string]json.RawMessage
		if err := json.Unmarshal(val, &partial); err != nil || partial == nil {
			return nil
		}
		rejected = append(rejected, inst.Merge(partial)...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPatch, err)
	}
	return rejected, nil
}

// MarshalSettings encodes {displayName: settings} in registry order.
func (r *Registry) MarshalSettings() ([]byte, error) {
	m := orderedmap.New[string, *setting.Map](len(r.order))
	for _, n := range r.order {
		m.Set(n, r.instances[n].settings)
	}
	return m.MarshalJSON()
}
