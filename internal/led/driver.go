// Package led pushes frames to the strip and to the other outputs that
// mirror it.
package led

import (
	"fmt"
	"strings"

	"github.com/coreman2200/roomlight/internal/render"
	"github.com/rs/zerolog/log"
)

// Driver abstracts an LED output sink.
type Driver interface {
	// Write pushes an RGB frame to hardware. len(rgb) must be 3*N.
	Write(rgb []byte) error
	// Close releases resources.
	Close() error
}

// Order is a channel permutation such as "GRB": Order[i] is the source
// channel (0 red, 1 green, 2 blue) written at wire position i.
type Order [3]int

var RGB = Order{0, 1, 2}

// ParseOrder accepts any permutation of "RGB". Empty means RGB.
func ParseOrder(s string) (Order, error) {
	if s == "" {
		return RGB, nil
	}
	s = strings.ToUpper(s)
	var o Order
	seen := [3]bool{}
	if len(s) != 3 {
		return o, fmt.Errorf("color order %q: want a permutation of RGB", s)
	}
	for i, c := range s {
		idx := strings.IndexRune("RGB", c)
		if idx < 0 || seen[idx] {
			return o, fmt.Errorf("color order %q: want a permutation of RGB", s)
		}
		seen[idx] = true
		o[i] = idx
	}
	return o, nil
}

// Reorder permutes rgb in place.
func (o Order) Reorder(rgb []byte) {
	if o == RGB {
		return
	}
	for i := 0; i+2 < len(rgb); i += 3 {
		px := [3]byte{rgb[i], rgb[i+1], rgb[i+2]}
		rgb[i], rgb[i+1], rgb[i+2] = px[o[0]], px[o[1]], px[o[2]]
	}
}

// Sink adapts a Driver to the frame scheduler: frames are quantized to
// bytes and permuted into the strip's channel order.
type Sink struct {
	drv   Driver
	order Order
	buf   []byte
}

func NewSink(drv Driver, order Order) *Sink { return &Sink{drv: drv, order: order} }

func (s *Sink) Emit(buf render.Buffer) error {
	s.buf = render.Bytes(buf, s.buf)
	s.order.Reorder(s.buf)
	return s.drv.Write(s.buf)
}

// Sim discards frames, counting them.
type Sim struct {
	Frames int
}

func NewSim() *Sim { return &Sim{} }

func (s *Sim) Write(rgb []byte) error {
	s.Frames++
	if s.Frames%1000 == 0 {
		log.Debug().Str("driver", "sim").Int("frames", s.Frames).Int("pixels", len(rgb)/3).Msg("sim frames")
	}
	return nil
}

func (s *Sim) Close() error { return nil }
