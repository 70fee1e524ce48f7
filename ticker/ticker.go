// Package ticker periodically appends a timestamp command to a shared log
// on a context-cancellable time.Timer loop.
package ticker

import (
	"context"
	"fmt"
	"time"

	"github.com/dkirby/cmdlogd"
	"github.com/dkirby/cmdlogd/internal/constants"
)

// Clock abstracts time so tests can substitute a fake without sleeping for
// real.
type Clock interface {
	Now() time.Time
	NewTimer(d time.Duration) (<-chan time.Time, func() bool)
}

// realClock uses the actual wall clock and time.Timer.
type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) NewTimer(d time.Duration) (<-chan time.Time, func() bool) {
	t := time.NewTimer(d)
	return t.C, t.Stop
}

// TimestampTicker appends a "timestamp:<rfc1123-ish>\n" command to a
// CommandLog at a fixed period until its context is cancelled.
type TimestampTicker struct {
	log    *cmdlog.CommandLog
	period time.Duration
	clock  Clock
}

// Option configures a TimestampTicker at construction time.
type Option func(*TimestampTicker)

// WithPeriod overrides the default tick interval.
func WithPeriod(d time.Duration) Option {
	return func(t *TimestampTicker) { t.period = d }
}

// WithClock substitutes the clock, for deterministic tests.
func WithClock(c Clock) Option {
	return func(t *TimestampTicker) { t.clock = c }
}

// New returns a TimestampTicker appending to log every DefaultTickerPeriod,
// unless overridden by WithPeriod.
func New(log *cmdlog.CommandLog, opts ...Option) *TimestampTicker {
	t := &TimestampTicker{log: log, period: constants.DefaultTickerPeriod, clock: realClock{}}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Run blocks, appending a timestamp command every period, until ctx is
// cancelled. It checks ctx both before and after waiting on the timer, so a
// cancellation arriving while the timer is in flight is never missed.
func (t *TimestampTicker) Run(ctx context.Context) error {
	for {
		timerC, stop := t.clock.NewTimer(t.period)
		select {
		case <-ctx.Done():
			stop()
			return nil
		case now := <-timerC:
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			cmd := formatTimestampCommand(now)
			if _, err := t.log.AppendChunk(ctx, cmd); err != nil {
				return err
			}
		}
	}
}

func formatTimestampCommand(t time.Time) []byte {
	return []byte(fmt.Sprintf("timestamp:%s\n", t.Format("Mon Jan 02 15:04:05 2006")))
}
