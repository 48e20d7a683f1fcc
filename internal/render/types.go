package render

// Color is one pixel, each channel nominally in [0, 1].
type Color struct{ R, G, B float64 }

// RGB converts a color setting value into a pixel.
func RGB(v [3]float64) Color { return Color{R: v[0], G: v[1], B: v[2]} }

// Buffer is one frame, indexed by LED position along the strip.
type Buffer []Color

// Ticker evaluates every live effect into buf. Effects only write the
// pixels they control.
type Ticker interface {
	Tick(buf Buffer)
}

// Sink receives a frame whenever it differs from the previous one. The
// buffer is reused between calls and must not be retained.
type Sink interface {
	Emit(buf Buffer) error
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(Buffer) error

func (f SinkFunc) Emit(buf Buffer) error { return f(buf) }

// Sinks fans a frame out to several sinks. Every sink is called; the
// first error is returned.
func Sinks(sinks ...Sink) Sink {
	return SinkFunc(func(buf Buffer) error {
		var first error
		for _, s := range sinks {
			if s == nil {
				continue
			}
			if err := s.Emit(buf); err != nil && first == nil {
				first = err
			}
		}
		return first
	})
}
