// Package poller runs the periodic read-and-report cycle.
package poller

import (
	"context"
	"log/slog"
	"time"
)

// TickFunc performs one cycle and returns the period until the next tick.
// Returning a different duration reschedules the ticker (the telemetry
// reporter uses this for reconnect backoff). A non-nil error is fatal and
// stops the loop.
type TickFunc func(ctx context.Context) (time.Duration, error)

// Poller drives a TickFunc from a single ticker. Ticks are dispatched one at
// a time on the calling goroutine, so a cycle can never overlap the previous
// one.
type Poller struct {
	period time.Duration
	tick   TickFunc
	logger *slog.Logger
}

func New(period time.Duration, tick TickFunc, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{period: period, tick: tick, logger: logger}
}

// Run blocks until ctx is cancelled or the tick handler fails. On ctx
// cancellation it returns ctx.Err().
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			next, err := p.tick(ctx)
			if err != nil {
				return err
			}
			if next > 0 && next != p.period {
				p.logger.Info("poll period changed",
					"old", p.period.String(),
					"new", next.String(),
				)
				ticker.Reset(next)
				p.period = next
			}
		}
	}
}
