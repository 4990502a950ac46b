// Command scansim runs the scan engine against simulated pins and a
// virtual timer and reports what a panel would have seen.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/fkcurrie/rgbmatrix-golang/internal/config"
	"github.com/fkcurrie/rgbmatrix-golang/internal/pattern"
	"github.com/fkcurrie/rgbmatrix-golang/pkg/gpio"
	"github.com/fkcurrie/rgbmatrix-golang/pkg/mmap"
	"github.com/fkcurrie/rgbmatrix-golang/pkg/rgbmatrix"
	"github.com/fkcurrie/rgbmatrix-golang/pkg/timer"
)

func main() {
	var (
		configPath = flag.String("config", "", "Path to configuration file")
		frames     = flag.Int("frames", 100, "Frames to simulate")
		depth      = flag.Int("depth", 0, "Bit depth override")
		width      = flag.Int("width", 0, "Bit width override")
		verbose    = flag.Bool("v", false, "Debug logging")
	)
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	cfg := config.DefaultConfig()
	if *configPath != "" {
		c, err := config.LoadConfig(*configPath)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to load configuration")
		}
		cfg = c
	}
	if *depth > 0 {
		cfg.Matrix.BitDepth = *depth
	}
	if *width > 0 {
		cfg.Matrix.Width = *width
	}

	pins := gpio.NewSim(64)
	tm := timer.NewSim(0)
	mem := mmap.NewHeap(0)
	writes := 0
	pins.OnChange(func(gpio.Pin, bool) { writes++ })

	logger := log.Logger
	m, err := rgbmatrix.New(cfg.Matrix.ToCore(), rgbmatrix.Hardware{
		Pins:   pins,
		Timers: timer.NewPool(tm),
		Memory: mem,
		Logger: &logger,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create matrix")
	}
	defer m.Free()

	src, err := pattern.New(cfg.Pattern, m.Width(), m.Height())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build pattern")
	}
	if err := m.Convert(src.Frame(0), m.Width()); err != nil {
		log.Fatal().Err(err).Msg("failed to convert frame")
	}
	if err := m.Commit(); err != nil {
		log.Fatal().Err(err).Msg("failed to commit frame")
	}
	if err := m.Begin(); err != nil {
		log.Fatal().Err(err).Msg("failed to begin")
	}

	core := m.Config()
	ticks := core.Rows() * core.BitDepth
	start := time.Now()
	for f := 0; f < *frames; f++ {
		tm.Run(ticks)
	}
	wall := time.Since(start)

	virtual := tm.Elapsed()
	fmt.Printf("panel       %dx%d, %d chain(s), %d planes\n", m.Width(), m.Height(), core.Chains(), core.BitDepth)
	fmt.Printf("frames      %d (%d ticks)\n", m.FrameCount(), tm.Fired())
	fmt.Printf("buffers     %d bytes\n", mem.InUse())
	fmt.Printf("line writes %d (%.0f per frame)\n", writes, float64(writes)/float64(max(1, *frames)))
	if virtual > 0 {
		fmt.Printf("refresh     %.1f Hz at %v base exposure\n", float64(m.FrameCount())/virtual.Seconds(), core.BaseExposure)
	}
	fmt.Printf("sim speed   %.1f frames/s\n", float64(m.FrameCount())/wall.Seconds())
	fmt.Printf("faults      %d\n", m.Faults())
}
