package taskmanager

import "errors"

// Sentinel errors returned by the scheduling API. Callers should use
// [errors.Is] rather than comparing directly, since some call paths wrap
// these with additional context.
var (
	// ErrPoolExhausted is returned when no free slot exists and the pool
	// has already grown to its configured maximum number of blocks.
	ErrPoolExhausted = errors.New("taskmanager: slot pool exhausted")

	// ErrInvalidTask is returned when a scheduling call is given a nil
	// callback, executable, or event.
	ErrInvalidTask = errors.New("taskmanager: invalid task arguments")

	// ErrTaskNotFound is returned by lookups against an id that does not
	// (or no longer) name an in-use slot.
	ErrTaskNotFound = errors.New("taskmanager: task not found")

	// ErrScheduleOverflow is returned alongside a valid task id when the
	// requested interval exceeded the configured schedule width and was
	// clamped rather than silently wrapped.
	ErrScheduleOverflow = errors.New("taskmanager: schedule value overflows configured width")
)

// NotificationCode identifies the kind of event delivered through a
// NotificationFunc, mirroring the error/diagnostic kinds a host is expected
// to surface (pool exhaustion, lock anomalies, spin diagnostics) alongside
// purely informational bookkeeping (slot alloc/free, pool growth).
type NotificationCode uint8

const (
	// CodeFull reports that a scheduling call could not obtain a slot.
	CodeFull NotificationCode = iota
	// CodeLockFailure reports a SpinLock invariant violation (an unlock
	// call made against a lock that was not held).
	CodeLockFailure
	// CodeHighSpinCount reports that a SpinLock spun past its configured
	// high-spin-count threshold while waiting for acquisition.
	CodeHighSpinCount
	// CodeSlotAllocated is informational: a slot was handed out.
	CodeSlotAllocated
	// CodeSlotFreed is informational: a slot was cleared and returned to
	// the pool.
	CodeSlotFreed
	// CodePoolGrew is informational: the pool appended a new block.
	CodePoolGrew
)

func (c NotificationCode) String() string {
	switch c {
	case CodeFull:
		return "full"
	case CodeLockFailure:
		return "lock_failure"
	case CodeHighSpinCount:
		return "high_spin_count"
	case CodeSlotAllocated:
		return "slot_allocated"
	case CodeSlotFreed:
		return "slot_freed"
	case CodePoolGrew:
		return "pool_grew"
	default:
		return "unknown"
	}
}

// Notification is delivered to a NotificationFunc for every diagnostic or
// informational event the scheduler produces. Task is InvalidTaskID for
// notifications not tied to a specific slot (e.g. CodePoolGrew).
type Notification struct {
	Code NotificationCode
	Task TaskID
}

// NotificationFunc is the error/diagnostic hook described by the scheduler's
// error handling policy: the scheduler never retries or recovers on its
// own behalf, it only reports.
type NotificationFunc func(Notification)
