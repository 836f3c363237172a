package scheduler

import (
	"time"

	"github.com/example/resy-sniper/internal/reservation"
)

// phase is the per-target state machine position.
type phase int

const (
	phasePolling phase = iota
	phaseSniping
	phaseDiscovering
	phaseBooked
)

func (p phase) String() string {
	switch p {
	case phasePolling:
		return "polling"
	case phaseSniping:
		return "sniping"
	case phaseDiscovering:
		return "discovering"
	case phaseBooked:
		return "booked"
	default:
		return "unknown"
	}
}

// targetState is everything the scheduler tracks for one target at runtime.
// None of it is persisted; a restart rebuilds it from scratch. Losing the
// prevOnCalendar bit across a restart only causes a redundant re-detection
// of an already-open calendar entry, never a duplicate booking.
type targetState struct {
	phase      phase
	schedule   reservation.VenueSchedule
	candidates []time.Time

	// windowKnown is false for explicit-date targets that bypassed
	// discovery; polling then skips the window filter entirely.
	windowKnown bool

	// prevOnCalendar is the calendar-visibility bit from the previous
	// discovery tick. Written only by the target's own discovery job,
	// whose non-overlap guarantee makes the ticks sequential.
	prevOnCalendar bool
}

// isBooked reports whether attempts for target idx should short-circuit.
// Callers hold s.mu.
func (s *Scheduler) bookedLocked(idx int) bool {
	if s.cfg.StopOnFirstSuccess && len(s.booked) > 0 {
		return true
	}
	return s.booked[idx]
}

func (s *Scheduler) isBooked(idx int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bookedLocked(idx)
}

// markBooked records a successful booking and cancels the now-moot jobs,
// all under one critical section so two near-simultaneous successes cannot
// interleave their cancellations. Returns false when another attempt won
// the race first.
func (s *Scheduler) markBooked(idx int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bookedLocked(idx) {
		return false
	}
	s.booked[idx] = true
	if ts := s.targets[idx]; ts != nil {
		ts.phase = phaseBooked
	}
	if s.cfg.StopOnFirstSuccess {
		s.registry.RemoveAll()
	} else {
		s.removeTargetJobsLocked(idx)
	}
	return true
}
