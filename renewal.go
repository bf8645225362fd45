package nattraversal

import (
	"sync"
	"time"
)

// renewal runs a callback on a fixed interval in a background goroutine.
// Start and Stop may be called any number of times; each cycle creates fresh
// channels and the goroutine captures local references so a later Start
// never races with a previous loop.
type renewal struct {
	interval time.Duration
	renew    func()

	mu      sync.Mutex
	started bool
	ticker  *time.Ticker
	done    chan struct{}
}

func newRenewal(interval time.Duration, renew func()) *renewal {
	return &renewal{interval: interval, renew: renew}
}

// Start begins ticking. It is a no-op while already running.
func (r *renewal) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started || r.interval <= 0 {
		return
	}

	r.started = true
	r.done = make(chan struct{})
	r.ticker = time.NewTicker(r.interval)

	go r.loop(r.ticker.C, r.done)
}

// Stop terminates the loop. A renewal already in progress completes.
func (r *renewal) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.started {
		return
	}

	r.started = false
	close(r.done)
	r.ticker.Stop()
}

func (r *renewal) running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.started
}

func (r *renewal) loop(tick <-chan time.Time, done <-chan struct{}) {
	for {
		select {
		case <-tick:
			r.renew()
		case <-done:
			return
		}
	}
}
