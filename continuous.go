package rangesensor

import (
	"context"
	"fmt"
	"time"
)

// Reading is one result delivered by SenseContinuous.
type Reading struct {
	Distance float64 // in the configured distance unit
	Err      error
	At       time.Time
}

// SenseContinuous measures every interval until ctx is done, sending each
// result, failures included, on the returned channel. The channel is closed
// when ctx is done.
//
// The Dev belongs to the sensing goroutine until the channel is closed; do
// not call Measure in the meantime.
func (d *Dev) SenseContinuous(ctx context.Context, interval time.Duration, temperature float64) (<-chan Reading, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("rangesensor: invalid interval %s", interval)
	}
	out := make(chan Reading)
	go func() {
		defer close(out)
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			distance, err := d.Measure(ctx, temperature)
			if ctx.Err() != nil {
				return
			}
			select {
			case out <- Reading{Distance: distance, Err: err, At: time.Now()}:
			case <-ctx.Done():
				return
			}
			select {
			case <-t.C:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
