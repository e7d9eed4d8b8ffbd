package app

import (
	"sync"
	"time"
)

// Ticker is the subset of time.Ticker the countdown needs; tests substitute a manual one.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFactory creates a ticker firing every d.
type TickerFactory func(d time.Duration) Ticker

type stdTicker struct {
	t *time.Ticker
}

func (s stdTicker) C() <-chan time.Time { return s.t.C }
func (s stdTicker) Stop()               { s.t.Stop() }

// NewStdTicker is the production TickerFactory.
func NewStdTicker(d time.Duration) Ticker {
	return stdTicker{t: time.NewTicker(d)}
}

// countdown is the cancellable handle of the timer bound to one question.
// The id identifies the handle; a tick carrying an id that is no longer the
// session's current handle is ignored.
type countdown struct {
	id   uint64
	done chan struct{}
	once sync.Once
}

func newCountdown(id uint64) *countdown {
	return &countdown{id: id, done: make(chan struct{})}
}

func (c *countdown) cancel() {
	c.once.Do(func() { close(c.done) })
}

// run drives the handle until it is cancelled or onTick asks to stop.
func (c *countdown) run(newTicker TickerFactory, onTick func(id uint64) bool) {
	t := newTicker(time.Second)
	defer t.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-t.C():
			select {
			case <-c.done:
				return
			default:
			}
			if !onTick(c.id) {
				return
			}
		}
	}
}
