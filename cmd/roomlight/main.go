package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/coreman2200/roomlight/internal/app"
	"github.com/coreman2200/roomlight/internal/config"
	"github.com/coreman2200/roomlight/internal/netopt"
	"github.com/coreman2200/roomlight/internal/store"
)

func main() {
	// ---- Flags (override config.yaml when set) ----
	var (
		configPath = flag.String("config", "config.yaml", "path to config.yaml")
		addr       = flag.String("addr", "", "HTTP listen address")
		driver     = flag.String("driver", "", "driver: sim | spi | console | shm")
		pixels     = flag.Int("pixels", 0, "number of LEDs on the strip")
		logLevel   = flag.String("log-level", "", "debug | info | warn | error")
		simOnly    = flag.Bool("sim-only", false, "force simulation (no hardware output)")
	)
	flag.Parse()

	// ---- Logging ----
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen})

	// ---- Config ----
	cfg, created, err := config.LoadOrCreate(*configPath)
	switch {
	case err != nil:
		log.Warn().Err(err).Str("path", *configPath).Msg("config load failed; proceeding with defaults")
		cfg = config.Default()
	case created:
		log.Info().Str("path", *configPath).Msg("wrote default config")
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *driver != "" {
		cfg.Driver = *driver
	}
	if *pixels > 0 {
		cfg.PixelCount = *pixels
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *simOnly {
		cfg.Driver = "sim"
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil && cfg.LogLevel != "" {
		zerolog.SetGlobalLevel(lvl)
	} else if cfg.LogLevel != "" {
		log.Warn().Str("level", cfg.LogLevel).Msg("unknown log level; using info")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st, err := store.Open(cfg.State.Backend, cfg.State.Path)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.State.Backend).Msg("state store unavailable")
	}

	out := app.OpenOutput(cfg)
	core, err := app.InitCore(ctx, cfg, out, st)
	if err != nil {
		_ = out.Close()
		_ = st.Close()
		log.Fatal().Err(err).Msg("startup failed")
	}

	if cfg.MQTT.Broker != "" {
		sub, err := netopt.Subscribe(core.Network, cfg.MQTT.Broker, cfg.MQTT.ClientID, cfg.MQTT.Topic)
		if err != nil {
			log.Warn().Err(err).Str("broker", cfg.MQTT.Broker).Msg("mqtt unavailable; network options only via HTTP")
		} else {
			defer sub.Close()
		}
	}

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      core.Server.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		log.Info().Str("addr", cfg.Addr).Str("driver", out.Name).Int("pixels", cfg.PixelCount).Msg("HTTP server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server crashed")
			cancel()
		}
	}()

	// ---- Run until signalled; Run saves state before returning ----
	if err := core.Run(ctx); err != nil {
		log.Error().Err(err).Msg("frame loop stopped")
	}
	log.Info().Msg("shutting down")

	shutdownCtx, stop := context.WithTimeout(context.Background(), 2*time.Second)
	defer stop()
	_ = srv.Shutdown(shutdownCtx)
	if err := core.Close(); err != nil {
		log.Warn().Err(err).Msg("close failed")
	}
}
