package led

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/coreman2200/roomlight/internal/render"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/spi/spitest"
)

type fakeDriver struct {
	frames [][]byte
	closed bool
}

func (d *fakeDriver) Write(rgb []byte) error {
	d.frames = append(d.frames, append([]byte(nil), rgb...))
	return nil
}

func (d *fakeDriver) Close() error { d.closed = true; return nil }

func TestParseOrder(t *testing.T) {
	o, err := ParseOrder("grb")
	require.NoError(t, err)
	assert.Equal(t, Order{1, 0, 2}, o)

	o, err = ParseOrder("")
	require.NoError(t, err)
	assert.Equal(t, RGB, o)

	for _, bad := range []string{"RG", "RRB", "RGX", "RGBW"} {
		_, err := ParseOrder(bad)
		assert.Error(t, err, bad)
	}
}

func TestSinkQuantizesAndReorders(t *testing.T) {
	drv := &fakeDriver{}
	o, _ := ParseOrder("GRB")
	s := NewSink(drv, o)

	require.NoError(t, s.Emit(render.Buffer{{R: 1, G: 0.5}, {B: 1}}))
	require.Len(t, drv.frames, 1)
	assert.Equal(t, []byte{128, 255, 0, 0, 0, 255}, drv.frames[0])
}

func TestSPIWritesThroughNRZ(t *testing.T) {
	var buf bytes.Buffer
	s, err := newSPI(spitest.NewRecordRaw(&buf), 2, 0)
	require.NoError(t, err)

	assert.Error(t, s.Write([]byte{1, 2, 3}), "wrong length")

	require.NoError(t, s.Write([]byte{255, 0, 0, 0, 0, 255}))
	assert.NotZero(t, buf.Len())

	require.NoError(t, s.Close())
	assert.Error(t, s.Write([]byte{0, 0, 0, 0, 0, 0}))
	assert.NoError(t, s.Close(), "second close is a no-op")
}

func TestNewSPIRejectsZeroCount(t *testing.T) {
	_, err := newSPI(spitest.NewRecordRaw(&bytes.Buffer{}), 0, 0)
	assert.Error(t, err)
}

func TestShmWritesFrame(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roomLightData.json")
	s := NewShm(path)
	s.newID = func() string { return "id-1" }

	require.NoError(t, s.Emit(render.Buffer{{R: 1, G: 0.25}, {B: 0.5}}))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	var got shmFrame
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, "id-1", got.WriteID)
	assert.Equal(t, [][3]float64{{1, 0.25, 0}, {0, 0, 0.5}}, got.Colors)

	entries, _ := os.ReadDir(filepath.Dir(path))
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestShmDefaultIDsDiffer(t *testing.T) {
	s := NewShm(filepath.Join(t.TempDir(), "f.json"))
	assert.NotEqual(t, s.newID(), s.newID())
}

func TestHeartbeatWritesOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "brightness")
	h := NewHeartbeat(path)
	require.NotNil(t, h)

	trig, err := os.ReadFile(filepath.Join(dir, "trigger"))
	require.NoError(t, err)
	assert.Equal(t, "none", string(trig))

	now := time.UnixMilli(1_000_100)
	h.now = func() time.Time { return now }
	h.Tick()
	b, _ := os.ReadFile(path)
	assert.Equal(t, "1", string(b))

	require.NoError(t, os.Remove(path))
	now = now.Add(100 * time.Millisecond)
	h.Tick()
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "unchanged state is not rewritten")

	now = now.Add(400 * time.Millisecond)
	h.Tick()
	b, _ = os.ReadFile(path)
	assert.Equal(t, "0", string(b))
}

func TestHeartbeatClearsQuietTriggers(t *testing.T) {
	act := filepath.Join(t.TempDir(), "led0")
	pwr := filepath.Join(t.TempDir(), "led1")
	require.NoError(t, os.MkdirAll(act, 0o755))
	require.NoError(t, os.MkdirAll(pwr, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(pwr, "trigger"), []byte("default-on"), 0o644))

	h := NewHeartbeat(filepath.Join(act, "brightness"), pwr)
	require.NotNil(t, h)
	for _, dir := range []string{act, pwr} {
		b, err := os.ReadFile(filepath.Join(dir, "trigger"))
		require.NoError(t, err)
		assert.Equal(t, "none", string(b), dir)
	}
}

func TestHeartbeatDisabled(t *testing.T) {
	h := NewHeartbeat("")
	assert.Nil(t, h)
	assert.NotPanics(t, h.Tick)
}

func TestSimCounts(t *testing.T) {
	s := NewSim()
	require.NoError(t, s.Write(make([]byte, 6)))
	assert.Equal(t, 1, s.Frames)
	assert.NoError(t, s.Close())
}

func TestProcessRestartsOnExit(t *testing.T) {
	p := StartProcess(5*time.Millisecond, "sh", "-c", "exit 3")
	require.Eventually(t, func() bool { return p.Starts() >= 3 }, 5*time.Second, 5*time.Millisecond)
	require.NoError(t, p.Close())

	n := p.Starts()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, n, p.Starts(), "no restarts after Close")
}

func TestProcessCloseKillsRunningProgram(t *testing.T) {
	p := StartProcess(time.Millisecond, "sleep", "30")
	require.Eventually(t, func() bool { return p.Starts() == 1 }, time.Second, time.Millisecond)

	done := make(chan struct{})
	go func() {
		_ = p.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not stop the program")
	}
	assert.Equal(t, 1, p.Starts())
}
