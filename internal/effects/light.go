package effects

import (
	"github.com/coreman2200/roomlight/internal/effect"
	"github.com/coreman2200/roomlight/internal/render"
	"github.com/coreman2200/roomlight/internal/setting"
)

// Light shows a fixed color on the selected pixels.
type Light struct{}

func RegisterLight(r *effect.Registry, pixels int) {
	r.Register("light", setting.NewMap().
		With("color", &setting.Color{Header: header("Color"), Value: [3]float64{1, 1, 1}}).
		With("activePixels", activePixels("LEDs (Max: 30)", pixels, 30)),
		Light{})
}

func (Light) Update(inst *effect.Instance, buf render.Buffer) {
	fill(buf, inst.GetBoolArray("activePixels"), render.RGB(inst.GetColor("color")))
}
