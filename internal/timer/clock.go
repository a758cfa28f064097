package timer

import "time"

// Clock supplies the current instant
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock
type SystemClock struct{}

// Now returns time.Now()
func (SystemClock) Now() time.Time { return time.Now() }

// Ticker delivers repeated ticks until stopped
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFactory builds a Ticker firing every d
type TickerFactory func(d time.Duration) Ticker

type systemTicker struct {
	t *time.Ticker
}

func (s systemTicker) C() <-chan time.Time { return s.t.C }
func (s systemTicker) Stop()               { s.t.Stop() }

// NewSystemTicker wraps time.NewTicker
func NewSystemTicker(d time.Duration) Ticker {
	return systemTicker{t: time.NewTicker(d)}
}
