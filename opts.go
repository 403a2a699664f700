package rangesensor

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"periph.io/x/conn/v3/gpio"
)

// PulseWidth is how long the trigger line is held high to start a
// measurement. It is fixed by the sensor protocol.
const PulseWidth = 10 * time.Microsecond

// Datasheet: https://cdn.sparkfun.com/datasheets/Sensors/Proximity/HCSR04.pdf
const (
	// DefaultEchoStartTimeout bounds the wait between the end of the trigger
	// pulse and the echo rising edge. The module normally answers within
	// ~500µs.
	DefaultEchoStartTimeout = 100 * time.Millisecond
	// DefaultEchoEndTimeout bounds the echo high time. 400cm at -20°C is
	// ~25ms of round trip; the module holds the line ~38ms when nothing is in
	// range.
	DefaultEchoEndTimeout = 30 * time.Millisecond
	// DefaultMinRange and DefaultMaxRange bound the module's sensing
	// envelope, in centimeters.
	DefaultMinRange = 2.0
	DefaultMaxRange = 400.0
)

// Opts is the configuration of a Dev. It is copied by New.
type Opts struct {
	DistanceUnit    DistanceUnit
	TemperatureUnit TemperatureUnit

	// Emitter generates the trigger pulse. nil selects the build default,
	// see SleepEmitter and SpinEmitter.
	Emitter Emitter

	EchoStartTimeout time.Duration
	EchoEndTimeout   time.Duration

	// EchoPull is the pull resistor requested on the echo line.
	EchoPull gpio.Pull

	Sound SoundModel

	// Sensing envelope, in centimeters. Readings outside fail with
	// ErrInvalidReading.
	MinRange float64
	MaxRange float64

	// Logger receives one Debug record per measurement. nil means
	// slog.Default().
	Logger *slog.Logger
}

// DefaultOpts is the recommended configuration for an HC-SR04.
var DefaultOpts = Opts{
	DistanceUnit:     Centimeters,
	TemperatureUnit:  Celsius,
	EchoStartTimeout: DefaultEchoStartTimeout,
	EchoEndTimeout:   DefaultEchoEndTimeout,
	EchoPull:         gpio.PullDown,
	Sound:            DefaultSoundModel,
	MinRange:         DefaultMinRange,
	MaxRange:         DefaultMaxRange,
}

// withDefaults fills in the zero fields that have no meaningful zero value.
func (o Opts) withDefaults() Opts {
	if o.Emitter == nil {
		o.Emitter = defaultEmitter()
	}
	if o.EchoStartTimeout <= 0 {
		o.EchoStartTimeout = DefaultEchoStartTimeout
	}
	if o.EchoEndTimeout <= 0 {
		o.EchoEndTimeout = DefaultEchoEndTimeout
	}
	if o.Sound == (SoundModel{}) {
		o.Sound = DefaultSoundModel
	}
	if o.MaxRange <= 0 {
		o.MaxRange = DefaultMaxRange
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// validate rejects distances outside the sensing envelope.
func (o *Opts) validate(cm float64) error {
	if math.IsNaN(cm) || cm < 0 || cm < o.MinRange || cm > o.MaxRange {
		return fmt.Errorf("%w: %.1fcm outside %.1f..%.1fcm", ErrInvalidReading, cm, o.MinRange, o.MaxRange)
	}
	return nil
}
