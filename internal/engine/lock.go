package engine

import (
	"context"
	"sync"
	"time"
)

// timedLock is a single-slot lock with a bounded acquire wait and a maximum
// hold duration after which it force-releases. The generation counter makes
// an explicit release after a force-release a no-op, so a slow holder can
// never free someone else's turn.
type timedLock struct {
	mu   sync.Mutex
	gen  uint64
	held bool
	slot chan struct{}
	hold time.Duration
}

func newTimedLock(hold time.Duration) *timedLock {
	l := &timedLock{
		slot: make(chan struct{}, 1),
		hold: hold,
	}
	l.slot <- struct{}{}
	return l
}

// acquire waits up to wait for the slot. On success it returns a release
// function; releasing more than once is safe.
func (l *timedLock) acquire(ctx context.Context, wait time.Duration) (release func(), ok bool) {
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-l.slot:
	case <-timer.C:
		return nil, false
	case <-ctx.Done():
		return nil, false
	}

	l.mu.Lock()
	l.gen++
	g := l.gen
	l.held = true
	l.mu.Unlock()

	watchdog := time.AfterFunc(l.hold, func() { l.release(g) })
	return func() {
		watchdog.Stop()
		l.release(g)
	}, true
}

func (l *timedLock) release(g uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.held || l.gen != g {
		return
	}
	l.held = false
	l.slot <- struct{}{}
}
