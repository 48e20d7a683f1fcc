package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/roomlight/internal/config"
	diag "github.com/coreman2200/roomlight/internal/diagnostics"
	"github.com/coreman2200/roomlight/internal/effect"
	"github.com/coreman2200/roomlight/internal/store"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Driver = "sim"
	cfg.State.SaveInterval = time.Hour
	return cfg
}

func effectNames(r *effect.Registry) []string {
	var out []string
	for _, inst := range r.Instances() {
		out = append(out, inst.Name())
	}
	return out
}

func codes(h *diag.Hub) []string {
	recent, _, cancel := h.Subscribe()
	defer cancel()
	var out []string
	for _, d := range recent {
		out = append(out, d.Code)
	}
	return out
}

func TestInitCoreWithoutSavedStateCreatesManager(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	cfg := testConfig()
	c, err := InitCore(context.Background(), cfg, OpenOutput(cfg), store.NewFile(path))
	require.NoError(t, err)

	assert.Equal(t, []string{effect.ManagerName}, effectNames(c.Registry))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	doc, err := effect.ParseDocument(raw)
	require.NoError(t, err)
	assert.Equal(t, c.Registry.Templates(), doc.Templates)
	require.Len(t, doc.Effects, 1)
	assert.Equal(t, effect.ManagerLibrary, doc.Effects[0].Library)
}

func TestInitCoreFallsBackToLooseImport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	saved := `{"effectLib":["light","strobe"],"effects":{` +
		`"Hall":{"libName":"light","settings":{}},` +
		`"Party":{"libName":"strobe","settings":{}}}}`
	require.NoError(t, os.WriteFile(path, []byte(saved), 0o644))

	cfg := testConfig()
	c, err := InitCore(context.Background(), cfg, OpenOutput(cfg), store.NewFile(path))
	require.NoError(t, err)

	assert.Equal(t, []string{"Hall", effect.ManagerName}, effectNames(c.Registry))
	got := codes(c.Diag)
	assert.Contains(t, got, diag.ImportLoose)
	assert.Contains(t, got, diag.ImportSkipped)
}

func TestInitCoreUnreadableStateIsSetAside(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"effectLib":`), 0o644))

	cfg := testConfig()
	c, err := InitCore(context.Background(), cfg, OpenOutput(cfg), store.NewFile(path))
	require.NoError(t, err)
	assert.Equal(t, []string{effect.ManagerName}, effectNames(c.Registry))
	assert.Contains(t, codes(c.Diag), diag.ImportSkipped)

	bad, err := os.ReadFile(path + ".bad")
	require.NoError(t, err)
	assert.Equal(t, `{"effectLib":`, string(bad))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	_, err = effect.ParseDocument(raw)
	assert.NoError(t, err, "a fresh state replaces the unreadable one")
}

// stuckStore cannot move its document aside.
type stuckStore struct{ *store.File }

func (stuckStore) SetAside(context.Context) error { return errors.New("read-only filesystem") }

func TestUnreadableStateIsNeverOverwritten(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"effectLib":`), 0o644))

	cfg := testConfig()
	c, err := InitCore(context.Background(), cfg, OpenOutput(cfg), stuckStore{store.NewFile(path)})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)
	require.NoError(t, c.Run(ctx))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"effectLib":`, string(raw))
}

func TestBadEntryDoesNotLoseTheRest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	saved := `{"effectLib":["light"],"effects":{` +
		`"Desk":{"libName":"light","settings":{}},` +
		`"Hall":{"libName":"light"}}}`
	require.NoError(t, os.WriteFile(path, []byte(saved), 0o644))

	cfg := testConfig()
	c, err := InitCore(context.Background(), cfg, OpenOutput(cfg), store.NewFile(path))
	require.NoError(t, err)
	assert.Equal(t, []string{"Desk", effect.ManagerName}, effectNames(c.Registry))
	assert.Contains(t, codes(c.Diag), diag.ImportSkipped)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)
	require.NoError(t, c.Run(ctx))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	doc, err := effect.ParseDocument(raw)
	require.NoError(t, err)
	var kept []string
	for _, e := range doc.Effects {
		kept = append(kept, e.Name)
	}
	assert.Equal(t, []string{"Desk", effect.ManagerName}, kept)
}

func TestRunSavesOnShutdown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	cfg := testConfig()
	c, err := InitCore(context.Background(), cfg, OpenOutput(cfg), store.NewFile(path))
	require.NoError(t, err)

	c.mu.Lock()
	_, _, err = c.Registry.Create("light", "Desk", nil)
	c.mu.Unlock()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)
	require.NoError(t, c.Run(ctx))
	require.NoError(t, c.Close())

	assert.NotZero(t, c.Stats().Frames)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	doc, err := effect.ParseDocument(raw)
	require.NoError(t, err)
	var saved []string
	for _, e := range doc.Effects {
		saved = append(saved, e.Name)
	}
	assert.Equal(t, []string{effect.ManagerName, "Desk"}, saved)
}

func TestOpenOutputFallsBackToSim(t *testing.T) {
	cfg := testConfig()
	cfg.Driver = "laser"
	out := OpenOutput(cfg)
	assert.Equal(t, "sim", out.Name)
	require.NotNil(t, out.Sink)
	assert.NoError(t, out.Close())

	cfg.Driver = "shm"
	cfg.Shm.Path = filepath.Join(t.TempDir(), "frame.json")
	assert.Equal(t, "shm", OpenOutput(cfg).Name)
}

func TestOpenOutputSupervisesDisplayProcess(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, "started")
	cfg := testConfig()
	cfg.PixelCount = 42
	cfg.Driver = "shm"
	cfg.Shm.Path = filepath.Join(dir, "frame.json")
	cfg.Shm.Command = []string{"sh", "-c", `echo "$1" > "$0"; exec sleep 30`, marker}

	out := OpenOutput(cfg)
	require.Eventually(t, func() bool {
		b, err := os.ReadFile(marker)
		return err == nil && string(b) == "42\n"
	}, 5*time.Second, 10*time.Millisecond)
	assert.NoError(t, out.Close())
}
