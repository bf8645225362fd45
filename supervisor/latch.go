package supervisor

import "sync"

// latch is a one-shot completion signal.
type latch struct {
	once sync.Once
	ch   chan struct{}
}

func newLatch() *latch {
	return &latch{ch: make(chan struct{})}
}

// Signal releases every waiter. Only the first call has an effect.
func (l *latch) Signal() {
	l.once.Do(func() { close(l.ch) })
}

// Done is closed once Signal has been called.
func (l *latch) Done() <-chan struct{} {
	return l.ch
}

func (l *latch) signalled() bool {
	select {
	case <-l.ch:
		return true
	default:
		return false
	}
}
