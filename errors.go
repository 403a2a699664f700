package rangesensor

import "fmt"

// Error is a measurement failure class. Compare with errors.Is.
type Error string

func (e Error) Error() string {
	return string(e)
}

const (
	// ErrEchoStartTimeout means the echo line never went high after the
	// trigger pulse: nothing answered, or the sensor is disconnected.
	ErrEchoStartTimeout = Error("no echo start")
	// ErrEchoEndTimeout means the echo line stayed high past the maximum
	// range bound: the target is out of range or the line is stuck.
	ErrEchoEndTimeout = Error("echo too long")
	// ErrInvalidReading means a well formed echo produced a distance outside
	// the sensor's physical envelope.
	ErrInvalidReading = Error("invalid reading")
	// ErrEchoActive means the echo line was already high before triggering,
	// so the sensor is still busy with a previous cycle.
	ErrEchoActive = Error("echo already active")
	// ErrIO wraps a failure of one of the GPIO lines.
	ErrIO = Error("gpio failure")
)

// MeasurementError records the stage at which a measurement failed.
type MeasurementError struct {
	State State
	Err   error
}

func (e *MeasurementError) Error() string {
	return fmt.Sprintf("rangesensor: %s: %v", e.State, e.Err)
}

func (e *MeasurementError) Unwrap() error {
	return e.Err
}
