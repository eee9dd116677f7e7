package engine

import (
	"time"

	"github.com/jayppatell1996-lgtm/cricket-auction/internal/store"
)

// Window is the tagged bidding-window variant: armed with an absolute
// deadline, paused with a frozen remainder, or idle. The absolute deadline
// is the single source of truth for "is bidding still open"; the paused
// remainder and the deadline are never stored in the same field.
type Window struct {
	state     store.WindowState
	deadline  time.Time
	remaining time.Duration
}

// IdleWindow returns the idle variant.
func IdleWindow() Window {
	return Window{state: store.WindowIdle}
}

// ArmedWindow returns a window open until deadline.
func ArmedWindow(deadline time.Time) Window {
	return Window{state: store.WindowArmed, deadline: deadline}
}

// PausedWindow returns a window frozen with the given remainder.
func PausedWindow(remaining time.Duration) Window {
	if remaining < 0 {
		remaining = 0
	}
	return Window{state: store.WindowPaused, remaining: remaining}
}

// windowOf reconstructs the variant from a persisted state record.
func windowOf(s *store.AuctionState) Window {
	switch s.WindowState {
	case store.WindowArmed:
		if s.WindowDeadline != nil {
			return ArmedWindow(*s.WindowDeadline)
		}
	case store.WindowPaused:
		if s.PausedRemainingMS != nil {
			return PausedWindow(time.Duration(*s.PausedRemainingMS) * time.Millisecond)
		}
	}
	return IdleWindow()
}

// applyTo writes the variant into the persisted columns, clearing the
// columns belonging to the other variants.
func (w Window) applyTo(s *store.AuctionState) {
	s.WindowState = w.state
	s.WindowDeadline = nil
	s.PausedRemainingMS = nil
	switch w.state {
	case store.WindowArmed:
		d := w.deadline
		s.WindowDeadline = &d
	case store.WindowPaused:
		ms := w.remaining.Milliseconds()
		s.PausedRemainingMS = &ms
	}
}

// Remaining reports how much bidding time is left as of now. A paused
// window reports its frozen remainder; idle reports zero. An armed window
// past its deadline reports a negative duration.
func (w Window) Remaining(now time.Time) time.Duration {
	switch w.state {
	case store.WindowArmed:
		return w.deadline.Sub(now)
	case store.WindowPaused:
		return w.remaining
	default:
		return 0
	}
}

// Armed reports whether the window holds an absolute deadline.
func (w Window) Armed() bool { return w.state == store.WindowArmed }

// Deadline returns the absolute deadline of an armed window.
func (w Window) Deadline() time.Time { return w.deadline }
