package effects

import (
	"time"

	"github.com/coreman2200/roomlight/internal/daytime"
	"github.com/coreman2200/roomlight/internal/effect"
	"github.com/coreman2200/roomlight/internal/render"
	"github.com/coreman2200/roomlight/internal/setting"
)

// Clock shows the time in binary: five pixels of hour, one blank pixel, then
// six pixels of minute, most significant bit first.
type Clock struct{}

const (
	hourBits   = 5
	minuteBits = 6
)

func RegisterClock(r *effect.Registry, pixels int) {
	hi := float64(pixels - 11)
	if hi < 1 {
		hi = 1
	}
	r.Register("clock", setting.NewMap().
		With("fgColor", &setting.Color{Header: header("Foreground"), Value: [3]float64{1, 1, 1}}).
		With("bgColor", &setting.Color{Header: header("Background")}).
		With("position", &setting.Number{Header: header("Position"), Value: 1,
			Min: setting.Float(1), Max: setting.Float(hi), Step: setting.Float(1), Strict: true}).
		With("start", &setting.Time{Header: header("Wake"), Value: [2]float64{7, 0}}).
		With("end", &setting.Time{Header: header("Sleep"), Value: [2]float64{22, 0}}),
		Clock{})
}

func (Clock) Update(inst *effect.Instance, buf render.Buffer) {
	now := inst.Now()
	start, end := inst.GetTime("start"), inst.GetTime("end")
	if !daytime.Between(daytime.Unit(start[0], start[1], 0, 0), daytime.Unit(end[0], end[1], 0, 0), now) {
		return
	}

	minutePos := int(inst.GetNumber("position")) + 10
	hourPos := minutePos - 7
	bg := render.RGB(inst.GetColor("bgColor"))
	fg := render.RGB(inst.GetColor("fgColor"))

	of := daytime.Of(now)
	writeBinary(buf, int(of/time.Hour), hourPos, hourBits, fg, bg)
	writeBinary(buf, int(of/time.Minute)%60, minutePos, minuteBits, fg, bg)
}

// writeBinary draws the low n bits of v so that bit 0 lands on pos and
// higher bits on the pixels before it.
func writeBinary(buf render.Buffer, v, pos, n int, fg, bg render.Color) {
	for i := 0; i < n; i++ {
		p := pos - i
		if p < 0 || p >= len(buf) {
			continue
		}
		if v>>i&1 == 1 {
			buf[p] = fg
		} else {
			buf[p] = bg
		}
	}
}
