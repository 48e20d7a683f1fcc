package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/coreman2200/roomlight/internal/config"
	diag "github.com/coreman2200/roomlight/internal/diagnostics"
	"github.com/coreman2200/roomlight/internal/effect"
	"github.com/coreman2200/roomlight/internal/effects"
	"github.com/coreman2200/roomlight/internal/led"
	"github.com/coreman2200/roomlight/internal/netopt"
	"github.com/coreman2200/roomlight/internal/render"
	"github.com/coreman2200/roomlight/internal/server"
	"github.com/coreman2200/roomlight/internal/sound"
	"github.com/coreman2200/roomlight/internal/store"
)

// Core is the running room light: one registry shared by the scheduler
// and the web boundary under mu.
type Core struct {
	Cfg      *config.Config
	Registry *effect.Registry
	Sched    *render.Scheduler
	Server   *server.Server
	Store    store.Store
	Diag     *diag.Hub
	Network  *netopt.Table
	Output   Output

	mu     sync.Mutex
	noSave atomic.Bool
}

// InitCore registers the effects, restores saved state and wires the
// scheduler to out and to the preview.
func InitCore(ctx context.Context, cfg *config.Config, out Output, st store.Store) (*Core, error) {
	c := &Core{
		Cfg:      cfg,
		Registry: effect.NewRegistry(),
		Store:    st,
		Diag:     diag.NewHub(64),
		Network:  netopt.NewTable(),
		Output:   out,
	}

	var player sound.Player = sound.Nop{}
	if cfg.Sound.Player != "" {
		player = sound.NewCommand(cfg.Sound.Dir, cfg.Sound.Player)
	}
	effects.RegisterAll(c.Registry, effects.Env{Pixels: cfg.PixelCount, Options: c.Network, Sound: player})

	if err := c.LoadState(ctx); err != nil {
		return nil, err
	}

	c.Server = server.New(server.Options{
		Lock:       &c.mu,
		Registry:   c.Registry,
		Network:    c.Network,
		Stats:      c,
		Diag:       c.Diag,
		Pixels:     cfg.PixelCount,
		SiteDir:    cfg.SiteDir,
		Driver:     out.Name,
		PreviewFPS: cfg.Preview.FPS,
	})

	hb := led.NewHeartbeat(cfg.Heartbeat.Path, cfg.Heartbeat.Quiet...)
	sched, err := render.NewScheduler(c.Registry, render.Sinks(c.sinkWithDiag(out.Sink), c.Server.Preview()), render.Options{
		Pixels:     cfg.PixelCount,
		Fast:       cfg.Frame.Fast,
		Slow:       cfg.Frame.Slow,
		MaxOverdue: cfg.Frame.MaxOverdue,
		Epsilon:    cfg.Frame.Epsilon,
		Locker:     &c.mu,
		OnTick:     hb.Tick,
		OnOverrun: func(behind time.Duration) {
			c.Diag.Push(diag.Diagnostic{
				Severity:       diag.Warn,
				Code:           diag.FrameOverrun,
				Summary:        "Frames are running late; schedule re-anchored",
				LikelyCauses:   []string{"slow effect update", "slow LED driver", "overloaded host"},
				SuggestedFixes: []string{"disable heavy effects", "raise frame.fast"},
				Evidence:       map[string]any{"behind_ms": behind.Milliseconds()},
			})
		},
	})
	if err != nil {
		return nil, err
	}
	c.Sched = sched
	return c, nil
}

// sinkWithDiag reports the first failure of a run of failed writes.
func (c *Core) sinkWithDiag(s render.Sink) render.Sink {
	failing := false
	return render.SinkFunc(func(buf render.Buffer) error {
		err := s.Emit(buf)
		if err != nil && !failing {
			c.Diag.Push(diag.Diagnostic{Severity: diag.Err, Code: diag.SinkFailed, Summary: "LED output failed", Detail: err.Error()})
		}
		failing = err != nil
		return err
	})
}

// LoadState restores the saved document. A document naming templates that
// no longer exist is imported loosely; with nothing saved, the Manager is
// created and saved. An unreadable document is set aside before anything
// is saved over it.
func (c *Core) LoadState(ctx context.Context) error {
	raw, err := c.Store.Load(ctx)
	if errors.Is(err, store.ErrNotFound) {
		log.Info().Msg("no saved state; starting with the manager")
		c.mu.Lock()
		_, _, err := c.Registry.Create(effect.ManagerLibrary, effect.ManagerName, nil)
		c.mu.Unlock()
		if err != nil {
			return err
		}
		return c.SaveState(ctx)
	}
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}

	doc, err := effect.ParseDocument(raw)
	if err != nil {
		log.Warn().Err(err).Msg("saved state unreadable; starting with the manager")
		c.Diag.Push(diag.Diagnostic{Severity: diag.Err, Code: diag.ImportSkipped, Summary: "Saved state unreadable", Detail: err.Error()})
		if aerr := c.Store.SetAside(ctx); aerr != nil {
			log.Error().Err(aerr).Msg("unreadable state could not be set aside; saving disabled")
			c.noSave.Store(true)
		}
		c.mu.Lock()
		_, _, err := c.Registry.Create(effect.ManagerLibrary, effect.ManagerName, nil)
		c.mu.Unlock()
		if err != nil {
			return err
		}
		return c.SaveState(ctx)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	res, err := c.Registry.Import(doc, true)
	if err != nil {
		log.Warn().Err(err).Msg("strict import failed; importing what is still registered")
		c.Diag.Push(diag.Diagnostic{Severity: diag.Warn, Code: diag.ImportLoose, Summary: "Saved state names removed effect types", Detail: err.Error()})
		if res, err = c.Registry.Import(doc, false); err != nil {
			return err
		}
	}
	for _, name := range res.Skipped {
		c.Diag.Push(diag.Diagnostic{Severity: diag.Warn, Code: diag.ImportSkipped, Summary: "Effect dropped on import", Evidence: map[string]any{"effect": name}})
	}
	for _, rej := range res.Rejected {
		c.Diag.Push(diag.Diagnostic{Severity: diag.Warn, Code: diag.ImportRejected, Summary: "Saved setting reset to default",
			Evidence: map[string]any{"effect": rej.Effect, "setting": rej.Key}})
	}
	log.Info().Int("effects", c.Registry.Len()).Bool("manager_recreated", res.ManagerRecreated).Msg("state restored")
	return nil
}

// SaveState exports the registry and stores it. It does nothing while an
// unreadable saved state is still in place.
func (c *Core) SaveState(ctx context.Context) error {
	if c.noSave.Load() {
		return nil
	}
	c.mu.Lock()
	doc, err := c.Registry.Export()
	c.mu.Unlock()
	if err != nil {
		return err
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	if err := c.Store.Save(ctx, b); err != nil {
		c.Diag.Push(diag.Diagnostic{Severity: diag.Err, Code: diag.SaveFailed, Summary: "Saving state failed", Detail: err.Error()})
		return err
	}
	return nil
}

// Run drives frames, preview broadcasts and periodic saves until ctx is
// done, then saves once more.
func (c *Core) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		c.Server.Run(ctx.Done())
	}()
	go func() {
		defer wg.Done()
		c.saveLoop(ctx)
	}()

	err := c.Sched.Run(ctx)
	wg.Wait()

	saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if serr := c.SaveState(saveCtx); serr != nil {
		log.Error().Err(serr).Msg("final state save failed")
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (c *Core) saveLoop(ctx context.Context) {
	interval := c.Cfg.State.SaveInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	tick := time.NewTicker(interval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			if err := c.SaveState(ctx); err != nil {
				log.Warn().Err(err).Msg("state save failed")
			}
		}
	}
}

// Stats reports frame counters once the scheduler exists.
func (c *Core) Stats() render.Stats {
	if c.Sched == nil {
		return render.Stats{}
	}
	return c.Sched.Stats()
}

// Close releases the output and the store.
func (c *Core) Close() error {
	var errs []error
	if c.Output.Close != nil {
		errs = append(errs, c.Output.Close())
	}
	if c.Store != nil {
		errs = append(errs, c.Store.Close())
	}
	return errors.Join(errs...)
}
