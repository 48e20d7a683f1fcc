package app

import (
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/coreman2200/roomlight/internal/config"
	"github.com/coreman2200/roomlight/internal/led"
	"github.com/coreman2200/roomlight/internal/render"
)

// Output is the frame sink chosen by config, plus a way to release it.
type Output struct {
	Name  string
	Sink  render.Sink
	Close func() error
}

// OpenOutput picks the driver named by cfg.Driver. Hardware that fails to
// open falls back to the simulator.
func OpenOutput(cfg *config.Config) Output {
	order, err := led.ParseOrder(cfg.ColorOrder)
	if err != nil {
		log.Warn().Err(err).Msg("bad color order; using RGB")
		order = led.RGB
	}
	fromDriver := func(name string, d led.Driver) Output {
		return Output{Name: name, Sink: led.NewSink(d, order), Close: d.Close}
	}
	nop := func() error { return nil }

	switch cfg.Driver {
	case "sim":
		return fromDriver("sim", led.NewSim())

	case "spi":
		drv, err := led.NewSPI(cfg.SPI.Dev, cfg.PixelCount, cfg.SPI.SpeedHz)
		if err != nil {
			log.Warn().Err(err).
				Str("driver", "spi").
				Str("dev", cfg.SPI.Dev).
				Int64("speed_hz", cfg.SPI.SpeedHz).
				Msg("SPI init failed; falling back to SIM")
			return fromDriver("sim", led.NewSim())
		}
		return fromDriver("spi", drv)

	case "console":
		return fromDriver("console", led.NewConsole(cfg.PixelCount))

	case "shm":
		out := Output{Name: "shm", Sink: led.NewShm(cfg.Shm.Path), Close: nop}
		if cmd := cfg.Shm.Command; len(cmd) > 0 {
			args := append(append([]string(nil), cmd[1:]...), strconv.Itoa(cfg.PixelCount))
			out.Close = led.StartProcess(time.Second, cmd[0], args...).Close
		}
		return out

	default:
		log.Warn().Str("driver", cfg.Driver).Msg("unknown driver; using SIM")
		return fromDriver("sim", led.NewSim())
	}
}
