package attendance

import (
	"sync"
	"time"
)

const DefaultTickInterval = time.Second

// Ticker is the part of time.Ticker the clock uses, so tests can drive ticks by hand.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type TickerFactory func(d time.Duration) Ticker

type timeTicker struct{ t *time.Ticker }

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

func newTimeTicker(d time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(d)}
}

// Clock derives the elapsed time since check-in. Elapsed is always computed from the fixed
// start, never accumulated, so a suspended process shows the right value when it resumes.
//
// OnTick callbacks run on the clock's goroutine and must not call Start or Stop.
type Clock struct {
	interval  time.Duration
	nowFunc   func() time.Time
	newTicker TickerFactory

	lifecycle sync.Mutex // serialises Start and Stop, held while the old goroutine is joined

	mu      sync.Mutex
	start   time.Time
	running bool
	gen     uint64
	onTick  func(time.Duration)
	stop    chan struct{}
	done    chan struct{}
}

type ClockOption func(*Clock)

func WithInterval(d time.Duration) ClockOption {
	return func(c *Clock) {
		if d > 0 {
			c.interval = d
		}
	}
}

func WithClockNowFunc(nowFunc func() time.Time) ClockOption {
	return func(c *Clock) {
		c.nowFunc = nowFunc
	}
}

func WithTickerFactory(f TickerFactory) ClockOption {
	return func(c *Clock) {
		c.newTicker = f
	}
}

func NewClock(options ...ClockOption) *Clock {
	c := &Clock{
		interval:  DefaultTickInterval,
		nowFunc:   time.Now,
		newTicker: newTimeTicker,
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// OnTick sets the function called with the elapsed time on every tick.
func (c *Clock) OnTick(fn func(time.Duration)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onTick = fn
}

// Start (re)starts the clock from start. A running ticker is cancelled and its goroutine
// has exited before the new one begins, so there is never more than one.
func (c *Clock) Start(start time.Time) {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	c.halt()

	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.start = start
	c.running = true
	stop := make(chan struct{})
	done := make(chan struct{})
	c.stop, c.done = stop, done
	c.mu.Unlock()

	ticker := c.newTicker(c.interval)
	go c.run(gen, ticker, stop, done)
}

// Stop cancels the ticker and resets the elapsed time to zero.
func (c *Clock) Stop() {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()
	c.halt()
}

func (c *Clock) halt() {
	c.mu.Lock()
	stop, done := c.stop, c.done
	c.stop, c.done = nil, nil
	c.running = false
	c.start = time.Time{}
	c.gen++
	c.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
}

func (c *Clock) run(gen uint64, ticker Ticker, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C():
			c.mu.Lock()
			if c.gen != gen {
				c.mu.Unlock()
				return
			}
			elapsed := c.elapsedLocked()
			fn := c.onTick
			c.mu.Unlock()
			if fn != nil {
				fn(elapsed)
			}
		}
	}
}

// Elapsed returns now minus the start, in whole seconds, or zero when stopped.
func (c *Clock) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.elapsedLocked()
}

func (c *Clock) elapsedLocked() time.Duration {
	if !c.running {
		return 0
	}
	d := c.nowFunc().Sub(c.start)
	if d < 0 {
		return 0
	}
	return d.Truncate(time.Second)
}

func (c *Clock) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// StartedAt returns the start of the running clock.
func (c *Clock) StartedAt() (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.start, c.running
}
