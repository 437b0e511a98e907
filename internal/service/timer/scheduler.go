package timer

import (
	"sync"
	"time"
)

// Scheduler runs fn every interval until the returned cancel func is called.
// A tick that was already being delivered may still run once after cancel,
// so fn must check its owner's state.
type Scheduler interface {
	Every(interval time.Duration, fn func()) (cancel func())
}

// TickerScheduler backs Scheduler with time.Ticker.
type TickerScheduler struct{}

// Every starts a ticker goroutine. cancel is idempotent and safe to call from
// inside fn.
func (TickerScheduler) Every(interval time.Duration, fn func()) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})

	var (
		mu        sync.Mutex
		cancelled bool
	)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				mu.Lock()
				stop := cancelled
				mu.Unlock()
				if stop {
					return
				}
				fn()
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			mu.Lock()
			cancelled = true
			mu.Unlock()
			close(done)
		})
	}
}
