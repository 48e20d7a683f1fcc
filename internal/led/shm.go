package led

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/coreman2200/roomlight/internal/render"
	"github.com/google/uuid"
)

// DefaultShmPath is where the display process polls for frames.
const DefaultShmPath = "/dev/shm/roomLightData.json"

// Shm hands frames to a separate display process through a JSON file of
// {"colors": [[r, g, b], ...], "writeId": id}. Channels are in [0, 1]; the
// reader skips a file whose writeId it has already shown.
type Shm struct {
	Path string

	newID func() string
}

func NewShm(path string) *Shm {
	if path == "" {
		path = DefaultShmPath
	}
	return &Shm{Path: path, newID: func() string { return uuid.NewString() }}
}

type shmFrame struct {
	Colors  [][3]float64 `json:"colors"`
	WriteID string       `json:"writeId"`
}

// Emit replaces the file atomically so the reader never sees a partial
// frame.
func (s *Shm) Emit(buf render.Buffer) error {
	f := shmFrame{Colors: make([][3]float64, len(buf)), WriteID: s.newID()}
	for i, c := range buf {
		f.Colors[i] = [3]float64{c.R, c.G, c.B}
	}
	b, err := json.Marshal(f)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.Path), ".roomlight-*")
	if err != nil {
		return fmt.Errorf("shm frame: %w", err)
	}
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("shm frame: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("shm frame: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.Path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("shm frame: %w", err)
	}
	return nil
}
