package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/asjoyner/rangesensor"
)

// Config holds the program configuration. It is read from an optional YAML
// file; flags given on the command line take precedence.
type Config struct {
	Trigger          string        `yaml:"trigger"`
	Echo             string        `yaml:"echo"`
	DistanceUnit     string        `yaml:"distance_unit"`
	TemperatureUnit  string        `yaml:"temperature_unit"`
	Temperature      float64       `yaml:"temperature"`
	Interval         time.Duration `yaml:"interval"`
	Count            int           `yaml:"count"`
	LogLevel         string        `yaml:"log_level"`
	Spin             bool          `yaml:"spin"`
	EchoStartTimeout time.Duration `yaml:"echo_start_timeout"`
	EchoEndTimeout   time.Duration `yaml:"echo_end_timeout"`
}

func defaultConfig() Config {
	return Config{
		Trigger:          "GPIO23",
		Echo:             "GPIO24",
		DistanceUnit:     "cm",
		TemperatureUnit:  "celsius",
		Temperature:      20,
		Interval:         time.Second,
		LogLevel:         "info",
		EchoStartTimeout: rangesensor.DefaultEchoStartTimeout,
		EchoEndTimeout:   rangesensor.DefaultEchoEndTimeout,
	}
}

// parseArgs applies defaults, then the file named by -config, then the
// remaining flags.
func parseArgs(args []string, stderr io.Writer) (*Config, error) {
	cfg := defaultConfig()
	var path string
	fs := flag.NewFlagSet("rangesensor", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&path, "config", "", "YAML configuration file")
	fs.StringVar(&cfg.Trigger, "trigger", cfg.Trigger, "name of the GPIO connected to Trig")
	fs.StringVar(&cfg.Echo, "echo", cfg.Echo, "name of the GPIO connected to Echo")
	fs.StringVar(&cfg.DistanceUnit, "unit", cfg.DistanceUnit, "distance unit: cm, in")
	fs.StringVar(&cfg.TemperatureUnit, "temp-unit", cfg.TemperatureUnit, "temperature unit: celsius, fahrenheit")
	fs.Float64Var(&cfg.Temperature, "temp", cfg.Temperature, "ambient temperature")
	fs.DurationVar(&cfg.Interval, "interval", cfg.Interval, "time between measurements")
	fs.IntVar(&cfg.Count, "count", cfg.Count, "stop after this many measurements, 0 for no limit")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn, error")
	fs.BoolVar(&cfg.Spin, "spin", cfg.Spin, "busy-wait the trigger pulse instead of sleeping")
	fs.DurationVar(&cfg.EchoStartTimeout, "echo-start-timeout", cfg.EchoStartTimeout, "wait for the echo to start")
	fs.DurationVar(&cfg.EchoEndTimeout, "echo-end-timeout", cfg.EchoEndTimeout, "maximum echo width")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if path == "" {
		return &cfg, nil
	}

	cfg = defaultConfig()
	if err := cfg.load(path); err != nil {
		return nil, err
	}
	// Parse again so that flags override the file.
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) load(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	return nil
}

func (c *Config) level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log level: %w", err)
	}
	return l, nil
}

// opts converts the configuration into driver options.
func (c *Config) opts(logger *slog.Logger) (*rangesensor.Opts, error) {
	if c.Interval <= 0 {
		return nil, errors.New("interval must be positive")
	}
	du, err := rangesensor.ParseDistanceUnit(c.DistanceUnit)
	if err != nil {
		return nil, err
	}
	tu, err := rangesensor.ParseTemperatureUnit(c.TemperatureUnit)
	if err != nil {
		return nil, err
	}
	o := rangesensor.DefaultOpts
	o.DistanceUnit = du
	o.TemperatureUnit = tu
	o.EchoStartTimeout = c.EchoStartTimeout
	o.EchoEndTimeout = c.EchoEndTimeout
	o.Logger = logger
	if c.Spin {
		o.Emitter = rangesensor.NewSpinEmitter(rangesensor.PulseWidth)
	}
	return &o, nil
}
