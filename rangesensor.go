// Package rangesensor facilitates measuring distance with an HC-SR04
// ultrasonic ranging module.
//
// A measurement raises the module's "Trig" pin for 10µs, then times how long
// the module holds its "Echo" pin high. The echo time is the round trip of
// the ultrasonic burst, converted to a distance with the speed of sound at
// the ambient temperature.
//
// A Dev is not safe for concurrent use. It owns both pins; serialize access
// by keeping it in a single goroutine.
package rangesensor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
)

// State is the stage a measurement is in.
type State int

const (
	// Idle is the state between measurements.
	Idle State = iota
	// Triggering covers arming the echo line and the trigger pulse.
	Triggering
	// AwaitingEchoStart waits for the echo rising edge.
	AwaitingEchoStart
	// TimingEcho waits for the echo falling edge.
	TimingEcho
	// Computing converts the echo time and checks the sensing envelope.
	Computing
	// Success is a measurement that produced a valid distance.
	Success
	// Failed is a measurement that returned an error.
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Triggering:
		return "triggering"
	case AwaitingEchoStart:
		return "awaiting echo start"
	case TimingEcho:
		return "timing echo"
	case Computing:
		return "computing"
	case Success:
		return "success"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Dev represents an HC-SR04 ultrasonic ranging module.
//
// Datasheet: https://cdn.sparkfun.com/datasheets/Sensors/Proximity/HCSR04.pdf
type Dev struct {
	trigger gpio.PinOut
	echo    gpio.PinIn
	opts    Opts
	state   State
}

// New returns a Dev driving trigger, the pin connected to the module's "Trig"
// pin, and reading echo, the pin connected to its "Echo" pin.
//
// opts may be nil, in which case DefaultOpts is used. New drives the trigger
// line low.
func New(trigger gpio.PinOut, echo gpio.PinIn, opts *Opts) *Dev {
	if opts == nil {
		opts = &DefaultOpts
	}
	d := &Dev{trigger: trigger, echo: echo, opts: opts.withDefaults()}
	if err := trigger.Out(gpio.Low); err != nil {
		// Measure reports it again on the first pulse.
		d.opts.Logger.Warn("rangesensor: cannot idle trigger", "pin", trigger, "err", err)
	}
	return d
}

// NewByName looks up both pins with gpioreg.ByName and calls New.
//
// Both names should be in the format expected by
// periph.io/x/conn/v3/gpio/gpioreg. For a Raspberry Pi, this corresponds to
// the BCM pin number as a string. host.Init must have been called first.
func NewByName(trigger, echo string, opts *Opts) (*Dev, error) {
	t := gpioreg.ByName(trigger)
	if t == nil {
		return nil, fmt.Errorf("rangesensor: no GPIO trigger pin named: %s", trigger)
	}
	e := gpioreg.ByName(echo)
	if e == nil {
		return nil, fmt.Errorf("rangesensor: no GPIO echo pin named: %s", echo)
	}
	return New(t, e, opts), nil
}

func (d *Dev) String() string {
	return fmt.Sprintf("HC-SR04{%s, %s}", d.trigger, d.echo)
}

// Halt drives the trigger line low.
func (d *Dev) Halt() error {
	return d.trigger.Out(gpio.Low)
}

// State returns the stage of the measurement in progress, Idle between
// measurements.
func (d *Dev) State() State {
	return d.state
}

// Measure takes one measurement and returns the distance in the configured
// distance unit. temperature is the ambient temperature in the configured
// temperature unit.
//
// Errors are *MeasurementError values wrapping ErrEchoStartTimeout,
// ErrEchoEndTimeout, ErrInvalidReading, ErrEchoActive, ErrIO or the context's
// error. Measure never retries; the Dev is ready for another call after any
// error.
//
// Readings outside Opts.MinRange..Opts.MaxRange fail with ErrInvalidReading.
// With the default MinRange of 2cm that includes a zero-length echo; set
// MinRange to 0 to accept it as a distance of 0.
//
// ctx bounds the echo waits. The trigger pulse itself is never interrupted.
func (d *Dev) Measure(ctx context.Context, temperature float64) (float64, error) {
	m, err := d.MeasureRaw(ctx, temperature)
	if err != nil {
		return 0, err
	}
	return m.In(d.opts.DistanceUnit), nil
}

// MeasureRaw is like Measure but returns the validated Measurement.
func (d *Dev) MeasureRaw(ctx context.Context, temperature float64) (*Measurement, error) {
	return d.measureCelsius(ctx, d.opts.TemperatureUnit.ToCelsius(temperature))
}

// SenseDistance is like Measure with a periph temperature, returning a
// periph distance. The configured units are ignored.
func (d *Dev) SenseDistance(ctx context.Context, temperature physic.Temperature) (physic.Distance, error) {
	m, err := d.measureCelsius(ctx, temperatureToCelsius(temperature))
	if err != nil {
		return 0, err
	}
	return m.Distance(), nil
}

func (d *Dev) measureCelsius(ctx context.Context, celsius float64) (*Measurement, error) {
	m, err := d.measure(ctx, celsius)
	if logger := d.opts.Logger; logger.Enabled(ctx, slog.LevelDebug) {
		if err != nil {
			state := Failed
			var me *MeasurementError
			if errors.As(err, &me) {
				state = me.State
			}
			logger.DebugContext(ctx, "measurement failed", "sensor", d.String(),
				slog.String("state", state.String()), "err", err)
		} else {
			logger.DebugContext(ctx, "measurement", "sensor", d.String(),
				slog.String("state", Success.String()),
				slog.Duration("echo", m.TimeOfFlight()),
				slog.Float64("distance", m.In(d.opts.DistanceUnit)),
				slog.String("unit", d.opts.DistanceUnit.String()))
		}
	}
	d.state = Idle
	return m, err
}

func (d *Dev) measure(ctx context.Context, celsius float64) (*Measurement, error) {
	d.state = Idle
	if err := ctx.Err(); err != nil {
		return nil, d.fail(err)
	}

	d.state = Triggering
	poll, err := d.armEcho()
	if err != nil {
		return nil, d.fail(err)
	}
	if d.echo.Read() == gpio.High {
		return nil, d.fail(ErrEchoActive)
	}
	if err := d.opts.Emitter.Emit(d.trigger, PulseWidth); err != nil {
		return nil, d.fail(fmt.Errorf("%w: trigger %s: %w", ErrIO, d.trigger, err))
	}

	timeOfFlight, err := d.timeEcho(ctx, poll)
	if err != nil {
		return nil, d.fail(err)
	}

	d.state = Computing
	m := NewMeasurement(timeOfFlight, celsius, d.opts.Sound)
	if err := d.opts.validate(m.InCentimeters()); err != nil {
		return nil, d.fail(err)
	}
	d.state = Success
	return m, nil
}

func (d *Dev) fail(err error) error {
	e := &MeasurementError{State: d.state, Err: err}
	d.state = Failed
	return e
}
