// Package effect holds the live effect instances of the room light: the
// template catalog, per-instance settings with the validated merge used
// by the web client, the sleep/wake activity state and the state document
// used for persistence.
package effect

import (
	"errors"
	"time"

	"github.com/coreman2200/roomlight/internal/render"
	"github.com/coreman2200/roomlight/internal/setting"
)

var (
	ErrDuplicateInstance = errors.New("effect instance already exists")
	ErrUnknownTemplate   = errors.New("unknown effect template")
	ErrMalformedPatch    = errors.New("malformed settings patch")
	ErrMalformedDocument = errors.New("malformed state document")
	ErrKindMismatch      = errors.New("setting kind does not match")
	ErrSchemaMismatch    = errors.New("setting schema does not match")
)

// Activity is the value of the reserved _activity select.
type Activity string

const (
	ActivityKey = "_activity"

	Enabled  Activity = "enabled"
	Sleeping Activity = "sleeping"
	Disabled Activity = "disabled"
)

// Effect is the behavior of a template. Update writes the pixels the
// instance controls; it runs inline on the frame scheduler and must not
// block.
type Effect interface {
	Update(inst *Instance, buf render.Buffer)
}

// Sleeper is implemented by effects that support the sleeping activity.
// WakeupTime is the earliest time a sleeping instance becomes enabled
// again. Effects that do not implement it never wake on their own.
type Sleeper interface {
	WakeupTime(inst *Instance) time.Time
}

// Stateful is implemented by effects that keep per-instance state across
// frames. NewState is called once per instance; the value is available
// through State.
type Stateful interface {
	NewState() any
}

// Func adapts a plain function to an Effect.
type Func func(inst *Instance, buf render.Buffer)

func (f Func) Update(inst *Instance, buf render.Buffer) { f(inst, buf) }

// Template is a registered effect kind.
type Template struct {
	Name     string
	Defaults *setting.Map
	Effect   Effect
}

// ActivitySetting returns an _activity select over the given states,
// initially enabled.
func ActivitySetting(states ...Activity) *setting.Select {
	s := &setting.Select{Header: setting.Header{DisplayName: ActivityKey}, Value: string(Enabled)}
	for _, st := range states {
		s.Options = append(s.Options, setting.Option{Key: string(st), Label: activityLabels[st]})
	}
	return s
}

// Labels are CSS variables of the web client.
var activityLabels = map[Activity]string{
	Enabled:  "--color-2a",
	Sleeping: "--color-2b",
	Disabled: "--color-2c",
}
