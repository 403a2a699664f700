package rangesensor

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"periph.io/x/conn/v3/gpio"
)

// cancelSlice caps a single WaitForEdge so that ctx is observed while the
// echo line is quiet.
const cancelSlice = 5 * time.Millisecond

// armEcho configures the echo line for the next measurement. Requesting edge
// detection again flushes edges left over from an earlier cycle. Pins that
// cannot report edges are polled instead.
func (d *Dev) armEcho() (poll bool, err error) {
	if err := d.echo.In(d.opts.EchoPull, gpio.BothEdges); err == nil {
		return false, nil
	}
	if err := d.echo.In(d.opts.EchoPull, gpio.NoEdge); err != nil {
		return false, fmt.Errorf("%w: echo %s: %w", ErrIO, d.echo, err)
	}
	return true, nil
}

// timeEcho returns how long the echo line stays high after its rising edge.
func (d *Dev) timeEcho(ctx context.Context, poll bool) (time.Duration, error) {
	d.state = AwaitingEchoStart
	start, err := d.waitFor(ctx, gpio.High, d.opts.EchoStartTimeout, ErrEchoStartTimeout, poll)
	if err != nil {
		return 0, err
	}

	d.state = TimingEcho
	end, err := d.waitFor(ctx, gpio.Low, d.opts.EchoEndTimeout, ErrEchoEndTimeout, poll)
	if err != nil {
		return 0, err
	}
	return end.Sub(start), nil
}

// waitFor suspends until the echo line reads l and returns when it was seen.
// It returns expired once timeout elapses, or ctx's error.
//
// When polling, the goroutine yields between reads instead of sleeping: a
// timer sleep can last a millisecond on coarse hosts, longer than a close
// target's whole echo.
func (d *Dev) waitFor(ctx context.Context, l gpio.Level, timeout time.Duration, expired error, poll bool) (time.Time, error) {
	deadline := time.Now().Add(timeout)
	for {
		if d.echo.Read() == l {
			return time.Now(), nil
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return time.Time{}, expired
		}
		if err := ctx.Err(); err != nil {
			return time.Time{}, fmt.Errorf("waiting for echo %s: %w", l, err)
		}
		if poll {
			runtime.Gosched()
		} else {
			d.echo.WaitForEdge(min(remaining, cancelSlice))
		}
	}
}
