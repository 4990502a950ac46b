package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/fkcurrie/rgbmatrix-golang/internal/backend"
	"github.com/fkcurrie/rgbmatrix-golang/pkg/gpio"
)

func main() {
	backendName := flag.String("backend", "cdev", "Pin backend: sim | cdev | periph")
	chip := flag.String("chip", "gpiochip0", "gpiochip for the cdev backend")
	pin := flag.Int("pin", 5, "GPIO line to toggle")
	period := flag.Duration("period", time.Second, "Toggle period")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	log.Info().Str("backend", *backendName).Int("pin", *pin).Msg("starting GPIO test")

	hw, err := backend.Open(backend.Options{Name: *backendName, Chip: *chip, Consumer: "gpio-test"}, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open backend")
	}
	defer hw.Close()

	p := gpio.Pin(*pin)
	if err := hw.Pins.Available(p); err != nil {
		log.Fatal().Err(err).Msg("pin not available")
	}
	line, err := hw.Pins.Claim(p)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to claim pin")
	}
	defer hw.Pins.Release(p)

	log.Info().Stringer("pin", p).Msg("claimed")

	ticker := time.NewTicker(*period)
	defer ticker.Stop()
	high := false
	for {
		select {
		case <-sigChan:
			log.Info().Msg("shutting down")
			return
		case <-ticker.C:
			high = !high
			if err := line.Set(high); err != nil {
				log.Warn().Err(err).Msg("failed to set value")
				continue
			}
			log.Info().Bool("high", high).Msg("toggled")
		}
	}
}
