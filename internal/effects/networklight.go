package effects

import (
	"github.com/coreman2200/roomlight/internal/effect"
	"github.com/coreman2200/roomlight/internal/netopt"
	"github.com/coreman2200/roomlight/internal/render"
	"github.com/coreman2200/roomlight/internal/setting"
)

// NetworkLight shows a color published by another machine through the
// network options table.
type NetworkLight struct {
	Options *netopt.Table
}

func RegisterNetworkLight(r *effect.Registry, pixels int, opts *netopt.Table) {
	r.Register("networkLight", setting.NewMap().
		With("networkOption", &setting.String{Header: header("Network Option")}).
		With("activePixels", activePixels("LEDs (Max: 30)", pixels, 30)),
		NetworkLight{Options: opts})
}

func (n NetworkLight) Update(inst *effect.Instance, buf render.Buffer) {
	c, ok := n.Options.Color(inst.GetString("networkOption"))
	if !ok {
		return
	}
	fill(buf, inst.GetBoolArray("activePixels"), render.RGB(c))
}
