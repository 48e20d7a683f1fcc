// Package sound plays the short clips the alarm uses.
package sound

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"os/exec"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

var ErrUnknownSound = errors.New("unknown sound")

// Tracks is the number of clips recorded per sound, stored as
// <kind><n>.mp3.
var Tracks = map[string]int{
	"alarm":              1,
	"blackbird":          7,
	"mountainTailorbird": 4,
}

// Player starts a random track of kind. Play must not block.
type Player interface {
	Play(kind string) error
}

// Nop discards every sound.
type Nop struct{}

func (Nop) Play(kind string) error {
	if _, ok := Tracks[kind]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSound, kind)
	}
	return nil
}

// Command plays clips with an external player such as mpg123.
type Command struct {
	Dir    string
	Player string

	run func(name string, args ...string) error
}

func NewCommand(dir, player string) *Command {
	if player == "" {
		player = "mpg123"
	}
	return &Command{Dir: dir, Player: player, run: start}
}

func (c *Command) Play(kind string) error {
	n, ok := Tracks[kind]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSound, kind)
	}
	file := filepath.Join(c.Dir, fmt.Sprintf("%s%d.mp3", kind, rand.IntN(n)))
	if err := c.run(c.Player, "-q", file); err != nil {
		return fmt.Errorf("play %s: %w", file, err)
	}
	log.Debug().Str("path", file).Msg("playing sound")
	return nil
}

// start launches the process and reaps it in the background.
func start(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() {
		if err := cmd.Wait(); err != nil {
			log.Debug().Err(err).Str("player", name).Msg("sound player exited")
		}
	}()
	return nil
}
