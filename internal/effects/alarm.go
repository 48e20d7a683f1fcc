package effects

import (
	"math"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/coreman2200/roomlight/internal/daytime"
	"github.com/coreman2200/roomlight/internal/effect"
	"github.com/coreman2200/roomlight/internal/render"
	"github.com/coreman2200/roomlight/internal/setting"
	"github.com/coreman2200/roomlight/internal/sound"
	"github.com/rs/zerolog/log"
)

// Alarm fades the selected pixels up around the alarm time as twinkling
// lights that warm up to daylight, ringing once the fade is complete and
// playing bird song while it runs.
type Alarm struct {
	Sound sound.Player

	rand func() float64
}

var (
	weekdays = []string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}
	birds    = []string{"blackbird", "mountainTailorbird"}
)

type alarmState struct {
	started   bool
	birdPower float64
	twinkle   []time.Time
}

func RegisterAlarm(r *effect.Registry, pixels int, player sound.Player) {
	defaults := setting.NewMap().
		With(effect.ActivityKey, effect.ActivitySetting(effect.Enabled, effect.Sleeping, effect.Disabled)).
		With("alarmTime", &setting.Time{Header: header("Time"), Value: [2]float64{7, 0}}).
		With("fadeLength", &setting.Number{Header: header("Fade (Minutes)"), Value: 10,
			Min: setting.Float(1), Max: setting.Float(30), Step: setting.Float(1)})
	for _, day := range weekdays {
		name := strings.ToUpper(day[:1]) + day[1:]
		name += strings.Repeat(".", max(0, 10-len(name)))
		defaults.Set(day, &setting.Boolean{Header: header(name), Value: true})
	}
	defaults.Set("activePixels", activePixels("LEDs (Max: 50)", pixels, 50))

	r.Register("alarm", defaults, &Alarm{Sound: player, rand: rand.Float64})
}

func (*Alarm) NewState() any { return &alarmState{} }

// window returns the alarm time and fade length of inst, both relative to
// midnight.
func window(inst *effect.Instance) (at, fade time.Duration) {
	t := inst.GetTime("alarmTime")
	return daytime.Unit(t[0], t[1], 0, 0), daytime.Unit(0, math.Max(1, inst.GetNumber("fadeLength")), 0, 0)
}

func (a *Alarm) Update(inst *effect.Instance, buf render.Buffer) {
	now := inst.Now()
	if !inst.GetBool(weekdays[now.Weekday()]) {
		return
	}
	st := effect.StateOf[alarmState](inst)

	at, fade := window(inst)
	day := daytime.Of(now)
	fadeIn := float64(day-(at-fade/2)) / float64(fade)
	fadeOut := float64(at+fade/2+time.Minute-day) / float64(time.Minute)
	progress := math.Pow(math.Max(0, math.Min(fadeIn, fadeOut)), 0.7)

	if progress <= 0 {
		st.started = false
		st.birdPower = 0
		return
	}

	if fadeOut < fadeIn && progress < 0.5 && !st.started {
		a.play("alarm")
		st.started = true
	}
	if !st.started {
		st.birdPower += math.Max(0, progress-0.55) * 0.02
		if st.birdPower > 1 {
			st.birdPower--
			a.play(birds[int(a.rand()*float64(len(birds)))%len(birds)])
		}
	}

	if len(st.twinkle) < len(buf) {
		st.twinkle = append(st.twinkle, make([]time.Time, len(buf)-len(st.twinkle))...)
	}
	active := inst.GetBoolArray("activePixels")
	for i := range buf {
		if i < len(active) && active[i] {
			buf[i] = a.pixel(st, i, now, progress)
		}
	}
}

func (a *Alarm) play(kind string) {
	if err := a.Sound.Play(kind); err != nil {
		log.Warn().Err(err).Msg("alarm sound failed")
	}
}

// pixel twinkles pixel i: each pixel brightens and dims over two seconds
// every four to ten seconds, tinted by how far the fade has progressed.
func (a *Alarm) pixel(st *alarmState, i int, now time.Time, progress float64) render.Color {
	next := st.twinkle[i]
	if d := next.Sub(now); next.IsZero() || d < -time.Second || d > 10*time.Second {
		next = now.Add(time.Duration((a.rand()*6000 + 4000) * float64(time.Millisecond)))
		st.twinkle[i] = next
	}

	var brightness float64
	if d := next.Sub(now); d.Abs() <= time.Second {
		brightness = math.Cos(float64(d.Milliseconds())*math.Pi/2000) * progress
	}
	c := kelvin(1000 + progress*5500)
	return render.Color{R: c.R * brightness, G: c.G * brightness, B: c.B * brightness}
}

// kelvin approximates the color of a black body at temperature k.
func kelvin(k float64) render.Color {
	t := math.Max(1000, math.Min(100000, k)) / 100

	red := 255.0
	if t > 60 {
		red = 329.698727446 * math.Pow(t-60, -0.1332047592)
	}
	green := 255.0
	if t > 60 {
		green = 288.1221695283 * math.Pow(t-60, -0.0755148492)
	}
	green = math.Min(green, 99.4708025861*math.Log(t)-161.1195681661)
	blue := 138.5177312231*math.Log(t-10) - 305.0447927307

	ch := func(v float64) float64 { return math.Max(0, math.Min(255, v)) / 255 }
	return render.Color{R: ch(red), G: ch(green), B: ch(blue)}
}

// WakeupTime is a minute after the fade ends today, or tomorrow's if
// that has already passed.
func (*Alarm) WakeupTime(inst *effect.Instance) time.Time {
	now := inst.Now()
	at, fade := window(inst)
	end := daytime.Midnight(now).Add(at + fade/2)
	if !now.Before(end.Add(daytime.Unit(0, 1, 1, 0))) {
		return end.Add(daytime.Unit(24, 1, 0, 1))
	}
	return end.Add(daytime.Unit(0, 1, 0, 1))
}
