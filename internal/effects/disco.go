package effects

import (
	"github.com/coreman2200/roomlight/internal/effect"
	"github.com/coreman2200/roomlight/internal/render"
	"github.com/coreman2200/roomlight/internal/setting"
)

// Disco lights every eighth pixel and walks the pattern along the strip,
// one step every speed seconds.
type Disco struct{}

func RegisterDisco(r *effect.Registry) {
	r.Register("disco", setting.NewMap().
		With("color", &setting.Color{Header: header("Color"), Value: [3]float64{1, 1, 1}}).
		With("speed", &setting.Number{Header: header("Speed"), Value: 0.1,
			Min: setting.Float(0.02), Max: setting.Float(0.5), Step: setting.Float(0.02)}),
		Disco{})
}

func (Disco) Update(inst *effect.Instance, buf render.Buffer) {
	c := render.RGB(inst.GetColor("color"))
	step := int64(inst.GetNumber("speed") * 1000)
	if step <= 0 {
		step = 1
	}
	offset := int(inst.Now().UnixMilli() / step % 8)
	for i := offset; i < len(buf); i += 8 {
		buf[i] = c
	}
}
