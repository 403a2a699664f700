package rangesensor

import (
	"math"
	"sync/atomic"
	"time"

	"periph.io/x/conn/v3/gpio"
)

// Emitter drives the trigger line high for width, then low.
//
// Implementations must leave the line low when they return nil. A write
// failure is returned as is and aborts the measurement.
type Emitter interface {
	Emit(p gpio.PinOut, width time.Duration) error
}

// SleepEmitter holds the trigger line with time.Sleep. The pulse is at least
// width long, plus the scheduler's wake-up latency. It is the default.
type SleepEmitter struct{}

// Emit implements Emitter.
func (SleepEmitter) Emit(p gpio.PinOut, width time.Duration) error {
	if err := p.Out(gpio.High); err != nil {
		return err
	}
	time.Sleep(width)
	return p.Out(gpio.Low)
}

const (
	calibrationLoops = 1 << 16
	calibrationRuns  = 16
)

// SpinEmitter holds the trigger line with a busy loop of a calibrated
// iteration count. The calling goroutine does not yield for the duration of
// the pulse. Use it when the scheduler's wake-up latency makes SleepEmitter
// pulses too long for the module. Selected by default with the
// rangesensor_spin build tag.
//
// The zero value calibrates itself on first use.
type SpinEmitter struct {
	loopsPerNs float64
}

// NewSpinEmitter returns a SpinEmitter calibrated for pulses of width.
func NewSpinEmitter(width time.Duration) *SpinEmitter {
	s := &SpinEmitter{}
	s.Calibrate(width, calibrationRuns)
	return s
}

// Emit implements Emitter.
func (s *SpinEmitter) Emit(p gpio.PinOut, width time.Duration) error {
	if s.loopsPerNs == 0 {
		s.Calibrate(width, calibrationRuns)
	}
	n := s.loops(width)
	if err := p.Out(gpio.High); err != nil {
		return err
	}
	spin(n)
	return p.Out(gpio.Low)
}

// Calibrate measures the loop speed, then corrects it against runs pulses of
// width. The fastest run is kept, since preemption only ever makes a run
// slower.
func (s *SpinEmitter) Calibrate(width time.Duration, runs int) {
	if runs < 1 {
		runs = 1
	}
	best := fastest(runs, func() { spin(calibrationLoops) })
	s.loopsPerNs = calibrationLoops / float64(best)
	// Short spins carry call overhead the long one amortizes; correct twice.
	for i := 0; i < 2; i++ {
		s.SetCalibration(width, s.Benchmark(width, runs))
	}
}

// Benchmark returns the fastest of n spins of width with the current
// calibration.
func (s *SpinEmitter) Benchmark(width time.Duration, n int) time.Duration {
	loops := s.loops(width)
	return fastest(n, func() { spin(loops) })
}

// SetCalibration scales the loop count so that a spin that took actual
// takes wanted instead.
func (s *SpinEmitter) SetCalibration(wanted, actual time.Duration) {
	if wanted <= 0 || actual <= 0 {
		return
	}
	s.loopsPerNs *= float64(wanted) / float64(actual)
}

func (s *SpinEmitter) loops(width time.Duration) int64 {
	return int64(math.Ceil(float64(width) * s.loopsPerNs))
}

func fastest(n int, f func()) time.Duration {
	var best time.Duration
	for i := 0; i < n; i++ {
		start := time.Now()
		f()
		if d := time.Since(start); best == 0 || d < best {
			best = d
		}
	}
	if best <= 0 {
		best = 1
	}
	return best
}

// spinSink keeps the compiler from discarding the loop body.
var spinSink atomic.Uint64

//go:noinline
func spin(n int64) {
	var acc uint64
	for i := int64(0); i < n; i++ {
		acc += uint64(i) ^ (acc >> 1)
	}
	spinSink.Store(acc)
}
