package taskmanager

import (
	"math"
	"time"
)

// maxSingleInterval is the longest delay a single MICROS schedule can
// express with a 32-bit schedule value.
const maxSingleInterval = time.Duration(math.MaxUint32) * time.Microsecond

// LongSchedule supplements the core scheduler's ~49.7-day
// single-registration ceiling: it stays registered as one event and
// reports its remaining time in capped poll intervals, so a caller can
// request an arbitrarily long interval,
// built entirely on the public Event contract rather than as a
// scheduler-core concern (the original TmLongSchedule.cpp does this on
// top of the event API; see DESIGN.md).
//
// Register it with Scheduler.RegisterEvent.
type LongSchedule struct {
	BaseEvent
	platform  Platform
	period    time.Duration
	armedAt   uint64 // micros, per platform.NowMicros, reset by Exec
	repeating bool
	fn        func()
}

// NewLongSchedule constructs a LongSchedule that calls fn once period has
// genuinely elapsed on platform's clock, across as many intermediate
// polls as needed. If repeating, it re-arms for another period
// each time fn returns. Use Scheduler.Platform to obtain platform.
func NewLongSchedule(platform Platform, period time.Duration, repeating bool, fn func()) *LongSchedule {
	return &LongSchedule{
		platform:  platform,
		period:    period,
		armedAt:   platform.NowMicros(),
		repeating: repeating,
		fn:        fn,
	}
}

// TimeOfNextCheck mirrors TmLongSchedule::timeOfNextCheck: it measures how
// much of the period has genuinely elapsed since arming (unsigned
// subtraction, so clock wraparound is handled correctly), only sets
// triggered once the full period has actually passed, and clamps the
// returned wait to the largest interval a single poll can express.
func (l *LongSchedule) TimeOfNextCheck() uint64 {
	periodMicros := uint64(l.period / time.Microsecond)
	alreadyTaken := l.platform.NowMicros() - l.armedAt

	var remaining uint64
	if alreadyTaken >= periodMicros {
		// time to trigger; wait out a full cycle before checking again
		l.SetTriggered(true)
		remaining = periodMicros
	} else {
		remaining = periodMicros - alreadyTaken
	}

	chunk := remaining
	if maxChunk := uint64(maxSingleInterval / time.Microsecond); chunk > maxChunk {
		chunk = maxChunk
	}
	return chunk
}

// Exec re-arms the elapsed-time clock, runs the wrapped callback, and
// either leaves the schedule running (repeating) or marks the event
// complete.
func (l *LongSchedule) Exec() {
	l.armedAt = l.platform.NowMicros()
	l.fn()
	if l.repeating {
		return
	}
	l.SetCompleted(true)
}
