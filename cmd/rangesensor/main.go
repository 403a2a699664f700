// Command rangesensor measures distance with an HC-SR04 ultrasonic ranging
// module wired to two GPIO pins, logging one reading per interval.
//
// Usage:
//
//	rangesensor [flags]
//
// Examples:
//
//	# Measure once a second on the default pins
//	rangesensor -trigger GPIO23 -echo GPIO24
//
//	# Ten readings in inches on a warm day
//	rangesensor -unit in -temp-unit fahrenheit -temp 86 -count 10
//
//	# Settings from a file, with debug logging
//	rangesensor -config /etc/rangesensor.yaml -log-level debug
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"periph.io/x/host/v3"

	"github.com/asjoyner/rangesensor"
)

func main() {
	cfg, err := parseArgs(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	level, err := cfg.level()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, cfg, logger)
	stop()
	if err != nil {
		logger.Error("rangesensor", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *Config, logger *slog.Logger) error {
	opts, err := cfg.opts(logger)
	if err != nil {
		return err
	}
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("initializing periph: %w", err)
	}
	sensor, err := rangesensor.NewByName(cfg.Trigger, cfg.Echo, opts)
	if err != nil {
		return err
	}
	defer sensor.Halt()
	logger.Info("sensor ready", "sensor", sensor.String(), "interval", cfg.Interval,
		"temperature", cfg.Temperature, "temperature_unit", opts.TemperatureUnit)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	readings, err := sensor.SenseContinuous(ctx, cfg.Interval, cfg.Temperature)
	if err != nil {
		return err
	}
	return report(readings, cfg.Count, opts.DistanceUnit, cancel, logger)
}

// report logs readings until the channel closes or count readings were seen.
// In the latter case it calls done and waits for the channel to close, so the
// sensing goroutine has let go of the sensor when report returns.
func report(readings <-chan rangesensor.Reading, count int, unit rangesensor.DistanceUnit, done func(), logger *slog.Logger) error {
	var n, failed int
	for r := range readings {
		n++
		if r.Err != nil {
			failed++
			logger.Warn("measurement failed", "err", r.Err)
		} else {
			logger.Info("distance", "value", fmt.Sprintf("%.1f", r.Distance), "unit", unit.String())
		}
		if count > 0 && n >= count {
			done()
			break
		}
	}
	for range readings {
	}
	if n > 0 && failed == n {
		return fmt.Errorf("all %d measurements failed", n)
	}
	return nil
}
