package led

import (
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
)

// Heartbeat blinks a sysfs LED (such as the Pi's green activity light) at
// 1 Hz while frames are being scheduled. It writes only on change.
type Heartbeat struct {
	path string
	now  func() time.Time
	on   int8 // -1 unknown
}

// NewHeartbeat takes the LED's brightness file and switches its trigger to
// none so the kernel stops driving it. Each of quiet is another LED
// directory (such as /sys/class/leds/led1) whose trigger is cleared too. It
// returns nil when path is empty.
func NewHeartbeat(path string, quiet ...string) *Heartbeat {
	if path == "" {
		return nil
	}
	for _, trigger := range append([]string{filepath.Dir(path)}, quiet...) {
		trigger = filepath.Join(trigger, "trigger")
		if err := os.WriteFile(trigger, []byte("none"), 0o644); err != nil {
			log.Warn().Err(err).Str("path", trigger).Msg("LED trigger not set")
		}
	}
	return &Heartbeat{path: path, now: time.Now, on: -1}
}

// Tick is the scheduler's per-frame callback.
func (h *Heartbeat) Tick() {
	if h == nil {
		return
	}
	var on int8
	if h.now().UnixMilli()%1000 < 500 {
		on = 1
	}
	if on == h.on {
		return
	}
	h.on = on
	val := []byte{'0' + byte(on)}
	if err := os.WriteFile(h.path, val, 0o644); err != nil {
		log.Debug().Err(err).Str("path", h.path).Msg("heartbeat write failed")
	}
}
