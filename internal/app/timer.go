package app

import (
	"sync"
	"time"
)

// Timer counts down a fixed budget of seconds. Every tick of the interval
// consumes one second. When the budget is exhausted the expiry callback runs
// exactly once and the timer stops ticking.
//
// Callbacks run on the timer goroutine without any timer lock held, so they
// may call back into the timer or take locks that also guard timer reads.
type Timer struct {
	budget   int
	interval time.Duration
	onTick   func(elapsed, remaining int)
	onExpire func()

	mu      sync.Mutex
	elapsed int
	visible bool
	expired bool
	stopped bool

	expireOnce sync.Once
	stopOnce   sync.Once
	stop       chan struct{}
	done       chan struct{}
}

// TimerOption customises a Timer.
type TimerOption func(*Timer)

// WithTimerTick sets how often one second of budget is consumed.
func WithTimerTick(d time.Duration) TimerOption {
	return func(t *Timer) {
		if d > 0 {
			t.interval = d
		}
	}
}

// OnTick registers a callback invoked after every tick.
func OnTick(fn func(elapsed, remaining int)) TimerOption {
	return func(t *Timer) { t.onTick = fn }
}

// OnExpire registers the callback invoked once when the budget runs out.
func OnExpire(fn func()) TimerOption {
	return func(t *Timer) { t.onExpire = fn }
}

// NewTimer creates a timer and starts counting immediately. The budget is
// expected to be validated by the caller.
func NewTimer(budgetSeconds int, opts ...TimerOption) *Timer {
	t := newTimer(budgetSeconds, opts...)
	go t.run()
	return t
}

func newTimer(budgetSeconds int, opts ...TimerOption) *Timer {
	t := &Timer{
		budget:   budgetSeconds,
		interval: time.Second,
		visible:  true,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Timer) run() {
	defer close(t.done)
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
			if finished := t.advance(); finished {
				return
			}
		}
	}
}

// advance consumes one second and reports whether ticking is over.
func (t *Timer) advance() bool {
	t.mu.Lock()
	if t.stopped || t.expired {
		t.mu.Unlock()
		return true
	}
	t.elapsed++
	if t.elapsed >= t.budget {
		t.elapsed = t.budget
		t.expired = true
	}
	elapsed, remaining, expired := t.elapsed, t.budget-t.elapsed, t.expired
	t.mu.Unlock()

	if t.onTick != nil {
		t.onTick(elapsed, remaining)
	}
	if expired {
		t.expireOnce.Do(func() {
			if t.onExpire != nil {
				t.onExpire()
			}
		})
	}
	return expired
}

// Stop halts ticking. It does not wait for the timer goroutine, so it is safe
// to call from inside a timer callback.
func (t *Timer) Stop() {
	t.stopOnce.Do(func() {
		t.mu.Lock()
		t.stopped = true
		t.mu.Unlock()
		close(t.stop)
	})
}

// Done is closed once the ticking goroutine has exited.
func (t *Timer) Done() <-chan struct{} {
	return t.done
}

// Elapsed returns the seconds consumed so far.
func (t *Timer) Elapsed() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.elapsed
}

// Remaining returns max(0, budget - elapsed).
func (t *Timer) Remaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if r := t.budget - t.elapsed; r > 0 {
		return r
	}
	return 0
}

// Budget returns the configured number of seconds.
func (t *Timer) Budget() int {
	return t.budget
}

// Expired reports whether the budget has run out.
func (t *Timer) Expired() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.expired
}

// Visible reports whether the countdown should be displayed.
func (t *Timer) Visible() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.visible
}

// SetVisible toggles display only; the count is unaffected.
func (t *Timer) SetVisible(visible bool) {
	t.mu.Lock()
	t.visible = visible
	t.mu.Unlock()
}
