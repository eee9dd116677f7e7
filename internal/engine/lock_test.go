package engine

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestTimedLockAcquireRelease(t *testing.T) {
	l := newTimedLock(time.Second)
	ctx := context.Background()

	release, ok := l.acquire(ctx, 10*time.Millisecond)
	if !ok {
		t.Fatal("first acquire should succeed")
	}

	if _, ok := l.acquire(ctx, 10*time.Millisecond); ok {
		t.Fatal("second acquire should time out while held")
	}

	release()

	release2, ok := l.acquire(ctx, 10*time.Millisecond)
	if !ok {
		t.Fatal("acquire after release should succeed")
	}
	release2()
}

func TestTimedLockDoubleRelease(t *testing.T) {
	l := newTimedLock(time.Second)
	ctx := context.Background()

	release, ok := l.acquire(ctx, 10*time.Millisecond)
	if !ok {
		t.Fatal("acquire should succeed")
	}
	release()
	release() // must be a no-op

	release2, ok := l.acquire(ctx, 10*time.Millisecond)
	if !ok {
		t.Fatal("acquire should succeed after double release")
	}
	release2()
}

func TestTimedLockForceRelease(t *testing.T) {
	l := newTimedLock(20 * time.Millisecond)
	ctx := context.Background()

	staleRelease, ok := l.acquire(ctx, 10*time.Millisecond)
	if !ok {
		t.Fatal("acquire should succeed")
	}

	// The watchdog frees the slot once the hold expires.
	release2, ok := l.acquire(ctx, 500*time.Millisecond)
	if !ok {
		t.Fatal("acquire should succeed after force release")
	}

	// The stale holder's release must not free the new holder's turn.
	staleRelease()
	if _, ok := l.acquire(ctx, 10*time.Millisecond); ok {
		t.Fatal("stale release freed a slot it no longer owned")
	}
	release2()
}

func TestTimedLockCancelledContext(t *testing.T) {
	l := newTimedLock(time.Second)

	release, ok := l.acquire(context.Background(), 10*time.Millisecond)
	if !ok {
		t.Fatal("acquire should succeed")
	}
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, ok := l.acquire(ctx, time.Second); ok {
		t.Fatal("acquire with cancelled context should fail")
	}
}

func TestTimedLockSerializes(t *testing.T) {
	l := newTimedLock(time.Second)
	var (
		mu      sync.Mutex
		inside  int
		maxSeen int
		wg      sync.WaitGroup
	)

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, ok := l.acquire(context.Background(), time.Second)
			if !ok {
				t.Error("acquire timed out under contention")
				return
			}
			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
			release()
		}()
	}
	wg.Wait()

	if maxSeen != 1 {
		t.Errorf("critical section admitted %d goroutines at once", maxSeen)
	}
}
