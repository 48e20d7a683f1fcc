package led

import (
	"fmt"

	"periph.io/x/extra/devices/screen"
)

// Console prints every frame as a row of colored blocks on the terminal,
// for running without a strip attached.
type Console struct {
	dev *screen.Dev
}

func NewConsole(count int) *Console { return &Console{dev: screen.New(count)} }

func (c *Console) Write(rgb []byte) error {
	if _, err := c.dev.Write(rgb); err != nil {
		return fmt.Errorf("console write: %w", err)
	}
	return nil
}

func (c *Console) Close() error { return c.dev.Halt() }
