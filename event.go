package taskmanager

import "sync/atomic"

// Event is a polled task whose firing policy it governs itself. See
// Scheduler.RegisterEvent and the event protocol walked by RunLoop:
// TimeOfNextCheck is read first (and may itself set triggered for
// immediate execution); if triggered, Exec runs; if complete, the slot is
// cleared; otherwise the returned interval becomes the event's new poll
// delay.
type Event interface {
	// TimeOfNextCheck returns how long, in microseconds, the scheduler
	// should wait before polling this event again. May call
	// SetTriggered(true) to request immediate execution instead.
	TimeOfNextCheck() uint64
	// Exec is invoked when the event is triggered.
	Exec()
	IsTriggered() bool
	SetTriggered(bool)
	// IsComplete reports that the event is finished; once true the
	// scheduler clears its slot.
	IsComplete() bool
	SetCompleted(bool)
}

// BaseEvent provides the atomic triggered/completed bookkeeping every
// Event needs, so concrete event types only have to implement
// TimeOfNextCheck and Exec.
type BaseEvent struct {
	triggered atomic.Bool
	completed atomic.Bool
}

func (e *BaseEvent) IsTriggered() bool   { return e.triggered.Load() }
func (e *BaseEvent) SetTriggered(v bool) { e.triggered.Store(v) }
func (e *BaseEvent) IsComplete() bool    { return e.completed.Load() }
func (e *BaseEvent) SetCompleted(v bool) { e.completed.Store(v) }

// MarkTriggeredAndNotify atomically sets triggered and signals the
// scheduler via the same path as an ISR (MarkInterrupted with the
// reserved PinEventNotify pseudo-pin), so the event is evaluated on the
// next RunLoop iteration without the user interrupt callback firing for
// it.
func (e *BaseEvent) MarkTriggeredAndNotify(s *Scheduler) {
	e.triggered.Store(true)
	s.MarkInterrupted(PinEventNotify)
}
