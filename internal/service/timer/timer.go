// Package timer implements the persisted session countdown that gates the
// chat after a fixed interval. The end time is written once and survives
// reloads; only Clear restarts the countdown.
package timer

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/mindcheck/backend/internal/store"
)

// DefaultDuration is the free session length.
const DefaultDuration = 300 * time.Second

const tickInterval = time.Second

// State is the countdown lifecycle.
type State int

const (
	Uninitialized State = iota
	Running
	Expired
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Running:
		return "running"
	case Expired:
		return "expired"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Timer is one countdown instance, owned by one chat view.
type Timer struct {
	mu        sync.Mutex
	kv        store.KV
	duration  time.Duration
	now       func() time.Time
	scheduler Scheduler

	state     State
	endTime   time.Time
	remaining time.Duration
	fired     bool
	stopped   bool
	cancel    func()

	onExpire []func()
	onTick   []func(remaining time.Duration)
}

// Option customises a Timer.
type Option func(*Timer)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(t *Timer) { t.now = now }
}

// WithScheduler replaces the ticker-based scheduler.
func WithScheduler(s Scheduler) Option {
	return func(t *Timer) { t.scheduler = s }
}

// New creates an uninitialized timer reading and writing its end time in kv.
// A non-positive duration falls back to DefaultDuration.
func New(kv store.KV, duration time.Duration, opts ...Option) *Timer {
	if duration <= 0 {
		duration = DefaultDuration
	}
	t := &Timer{
		kv:        kv,
		duration:  duration,
		now:       time.Now,
		scheduler: TickerScheduler{},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// OnExpire registers fn to run once when the countdown expires. Register
// before Start.
func (t *Timer) OnExpire(fn func()) {
	t.mu.Lock()
	t.onExpire = append(t.onExpire, fn)
	t.mu.Unlock()
}

// OnTick registers fn to run after every one-second decrement.
func (t *Timer) OnTick(fn func(remaining time.Duration)) {
	t.mu.Lock()
	t.onTick = append(t.onTick, fn)
	t.mu.Unlock()
}

// Start activates the timer. It resumes a persisted countdown, expires
// immediately when the persisted end time has passed, or persists a fresh
// end time. Calling Start again has no effect.
func (t *Timer) Start(ctx context.Context) State {
	t.mu.Lock()
	if t.state != Uninitialized || t.stopped {
		state := t.state
		t.mu.Unlock()
		return state
	}

	now := t.now()
	end, ok := t.loadEndTime(ctx, now)
	if !ok {
		end = now.Add(t.duration)
		if err := t.kv.Set(ctx, store.KeyTimerEndTime, strconv.FormatInt(end.UnixMilli(), 10)); err != nil {
			log.Warn().Err(err).Str("component", "timer").Msg("failed to persist end time, countdown will not survive a reload")
		}
	}
	t.endTime = end

	remaining := end.Sub(now).Truncate(time.Second)
	if remaining <= 0 {
		callbacks := t.expireLocked()
		t.mu.Unlock()
		runAll(callbacks)
		return Expired
	}

	t.remaining = remaining
	t.state = Running
	t.cancel = t.scheduler.Every(tickInterval, t.tick)
	t.mu.Unlock()

	log.Debug().Str("component", "timer").Dur("remaining", remaining).Time("end", end).Msg("countdown running")
	return Running
}

// loadEndTime returns the persisted end time. Missing, non-numeric or
// impossible values (further ahead than a full duration) count as absent.
func (t *Timer) loadEndTime(ctx context.Context, now time.Time) (time.Time, bool) {
	raw, ok, err := t.kv.Get(ctx, store.KeyTimerEndTime)
	if err != nil {
		log.Warn().Err(err).Str("component", "timer").Msg("failed to read end time, starting fresh")
		return time.Time{}, false
	}
	if !ok {
		return time.Time{}, false
	}

	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		log.Warn().Str("component", "timer").Str("value", raw).Msg("corrupt end time, starting fresh")
		return time.Time{}, false
	}

	end := time.UnixMilli(ms)
	if end.After(now.Add(t.duration)) {
		log.Warn().Str("component", "timer").Time("end", end).Msg("end time beyond session length, starting fresh")
		return time.Time{}, false
	}
	return end, true
}

func (t *Timer) tick() {
	t.mu.Lock()
	if t.state != Running || t.stopped {
		t.mu.Unlock()
		return
	}

	t.remaining -= tickInterval
	if t.remaining <= 0 {
		callbacks := t.expireLocked()
		t.mu.Unlock()
		runAll(callbacks)
		return
	}

	remaining := t.remaining
	listeners := append([]func(time.Duration){}, t.onTick...)
	t.mu.Unlock()

	for _, fn := range listeners {
		fn(remaining)
	}
}

// Check compares the persisted end time against the clock and expires the
// timer if it has passed. It is safe to call at any time; expiry still fires
// only once.
func (t *Timer) Check() State {
	t.mu.Lock()
	if t.state != Running || t.stopped || t.now().Before(t.endTime) {
		state := t.state
		t.mu.Unlock()
		return state
	}
	callbacks := t.expireLocked()
	t.mu.Unlock()
	runAll(callbacks)
	return Expired
}

// expireLocked moves to Expired and returns the callbacks to run once the
// lock is released. Subsequent calls return nothing.
func (t *Timer) expireLocked() []func() {
	if t.fired {
		return nil
	}
	t.fired = true
	t.state = Expired
	t.remaining = 0
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	if t.stopped {
		return nil
	}
	return append([]func(){}, t.onExpire...)
}

// Stop cancels the periodic tick and suppresses any later expiry callback.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
}

// State returns the current lifecycle state.
func (t *Timer) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Remaining returns the time left as of the last tick.
func (t *Timer) Remaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remaining
}

// EndTime returns the end time in effect, zero before Start.
func (t *Timer) EndTime() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.endTime
}

// Clear removes the persisted end time so the next Start begins a fresh
// countdown.
func Clear(ctx context.Context, kv store.KV) error {
	return kv.Remove(ctx, store.KeyTimerEndTime)
}

// Format renders d as m:ss.
func Format(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int(d / time.Second)
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}

func runAll(fns []func()) {
	for _, fn := range fns {
		fn()
	}
}
