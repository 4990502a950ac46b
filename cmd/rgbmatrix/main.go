package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/fkcurrie/rgbmatrix-golang/internal/backend"
	"github.com/fkcurrie/rgbmatrix-golang/internal/config"
	"github.com/fkcurrie/rgbmatrix-golang/internal/display"
	"github.com/fkcurrie/rgbmatrix-golang/internal/pattern"
	"github.com/fkcurrie/rgbmatrix-golang/internal/server"
	"github.com/fkcurrie/rgbmatrix-golang/pkg/rgbmatrix"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to configuration file (.yaml or .json)")
		backendName = flag.String("backend", "", "Pin backend: sim | cdev | periph (overrides config)")
		chip        = flag.String("chip", "", "gpiochip for the cdev backend (overrides config)")
		patternName = flag.String("pattern", "", "Pattern: test | checker | bars | cycle | svg | image")
		patternPath = flag.String("file", "", "SVG or image file for the svg and image patterns")
		listen      = flag.String("listen", "", "HTTP listen address (overrides config)")
		logLevel    = flag.String("log-level", "", "Log level (overrides config)")
		writeConfig = flag.String("write-config", "", "Write the effective configuration to this path and exit")
	)
	flag.Parse()

	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen})

	cfg := config.DefaultConfig()
	if *configPath != "" {
		c, err := config.LoadConfig(*configPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", *configPath).Msg("failed to load configuration")
		}
		cfg = c
	}
	override(&cfg.Backend, *backendName)
	override(&cfg.Chip, *chip)
	override(&cfg.Pattern.Name, *patternName)
	override(&cfg.Pattern.Path, *patternPath)
	override(&cfg.Server.Listen, *listen)
	override(&cfg.LogLevel, *logLevel)

	if *writeConfig != "" {
		if err := config.Save(*writeConfig, cfg); err != nil {
			log.Fatal().Err(err).Msg("failed to write configuration")
		}
		return
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Str("level", cfg.LogLevel).Msg("unknown log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if err := run(cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("rgbmatrix stopped")
	}
	log.Info().Msg("shut down")
}

func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func run(cfg *config.Config) error {
	hw, err := backend.Open(backend.Options{
		Name:    cfg.Backend,
		Chip:    cfg.Chip,
		LockMem: cfg.LockMem,
	}, log.Logger)
	if err != nil {
		return err
	}
	defer hw.Close()

	logger := log.Logger
	m, err := rgbmatrix.New(cfg.Matrix.ToCore(), hw.Hardware(&logger))
	if err != nil {
		return err
	}
	defer func() {
		if err := m.Free(); err != nil {
			log.Warn().Err(err).Msg("matrix teardown")
		}
	}()

	src, err := pattern.New(cfg.Pattern, m.Width(), m.Height())
	if err != nil {
		return err
	}
	if err := m.Convert(src.Frame(0), m.Width()); err != nil {
		return err
	}
	if err := m.Commit(); err != nil {
		return err
	}
	if err := m.Begin(); err != nil {
		return err
	}
	log.Info().
		Str("backend", hw.Name).
		Int("width", m.Width()).
		Int("height", m.Height()).
		Str("pattern", cfg.Pattern.Name).
		Msg("scanning")

	renderer := display.NewRenderer(cfg.Pattern, log.Logger)
	renderer.SetMatrix(m)
	renderer.SetSource(src)
	srv := server.New(cfg.Server, m, renderer, log.Logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return renderer.Start(ctx) })
	g.Go(func() error { return srv.Run(ctx) })
	return g.Wait()
}
