// Package effects contains the effect templates shipped with the room
// light.
package effects

import (
	"strings"
	"unicode"

	"github.com/coreman2200/roomlight/internal/effect"
	"github.com/coreman2200/roomlight/internal/netopt"
	"github.com/coreman2200/roomlight/internal/render"
	"github.com/coreman2200/roomlight/internal/setting"
	"github.com/coreman2200/roomlight/internal/sound"
)

// Env is what the effect bodies need from the rest of the process.
type Env struct {
	Pixels  int
	Options *netopt.Table
	Sound   sound.Player
}

// RegisterAll adds every template to r. The manager goes last so its type
// list covers the others.
func RegisterAll(r *effect.Registry, env Env) {
	if env.Options == nil {
		env.Options = netopt.NewTable()
	}
	if env.Sound == nil {
		env.Sound = sound.Nop{}
	}
	RegisterAlarm(r, env.Pixels, env.Sound)
	RegisterClock(r, env.Pixels)
	RegisterDisco(r)
	RegisterLight(r, env.Pixels)
	RegisterNetworkLight(r, env.Pixels, env.Options)
	RegisterManager(r)
}

func header(name string) setting.Header { return setting.Header{DisplayName: name} }

func activePixels(name string, pixels int, limit float64) *setting.BooleanArray {
	return &setting.BooleanArray{Header: header(name), Value: make([]bool, pixels), Limit: limit}
}

// fill paints c into every pixel flagged in active.
func fill(buf render.Buffer, active []bool, c render.Color) {
	for i := range buf {
		if i < len(active) && active[i] {
			buf[i] = c
		}
	}
}

// titleCase turns "networkLight" into "Network Light".
func titleCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		switch {
		case i == 0:
			b.WriteRune(unicode.ToUpper(r))
		case unicode.IsUpper(r):
			b.WriteByte(' ')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
