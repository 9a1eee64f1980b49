package taskmanager

import (
	"math"
	"sync/atomic"
)

// defaultHighSpinCountThreshold is the spin-attempt count past which
// SpinLock reports CodeHighSpinCount (see SPEC_FULL.md §9.1 for why this
// diagnostic exists and how the threshold was chosen).
const defaultHighSpinCountThreshold = 1000

// SpinLock is a reentrant, yielding mutual-exclusion primitive bound to a
// Scheduler: a task already holding the lock may re-acquire it, and a
// waiting task keeps the scheduler pumping (via YieldForMicros) rather
// than blocking, so no task can starve indefinitely while the holder
// makes forward progress.
//
// Unlock does not verify that the caller is the current holder.
type SpinLock struct {
	scheduler *Scheduler

	locked         atomic.Bool
	initiatingTask atomic.Uint32 // holds a TaskID; InvalidTaskID when unheld
	count          uint32        // touched only by the holder; not atomic

	highSpinCountThreshold uint32
}

// NewSpinLock constructs a SpinLock coupled to s.
func NewSpinLock(s *Scheduler) *SpinLock {
	l := &SpinLock{scheduler: s, highSpinCountThreshold: defaultHighSpinCountThreshold}
	l.initiatingTask.Store(uint32(InvalidTaskID))
	return l
}

// TryLock returns true iff the lock was free and is now held by the
// calling task, or the calling task already held it (reentrant
// acquisition bumps the count). Code running outside any task callback
// (GetRunningTask() == InvalidTaskID) counts as a single caller.
func (l *SpinLock) TryLock() bool {
	current := l.scheduler.GetRunningTask()
	if l.locked.CompareAndSwap(false, true) {
		l.initiatingTask.Store(uint32(current))
		l.count = 1
		return true
	}
	if TaskID(l.initiatingTask.Load()) == current {
		l.count++
		return true
	}
	return false
}

// SpinLock cooperatively acquires the lock: on each failed TryLock it
// calls Scheduler.YieldForMicros for a small interval (50µs, or whatever
// remains of budget if smaller) and decrements budget, so the scheduler
// keeps pumping while the caller waits. Returns false on budget
// exhaustion rather than blocking forever.
func (l *SpinLock) SpinLock(budget uint32) bool {
	var spins uint32
	for {
		if l.TryLock() {
			return true
		}
		if budget == 0 {
			return false
		}
		step := uint32(50)
		if budget < step {
			step = budget
		}
		l.scheduler.YieldForMicros(step)
		budget -= step

		spins++
		if spins == l.highSpinCountThreshold {
			l.scheduler.notify(Notification{Code: CodeHighSpinCount, Task: l.scheduler.GetRunningTask()})
		}
	}
}

// Lock is SpinLock(math.MaxUint32): acquire no matter how long it takes.
func (l *SpinLock) Lock() {
	l.SpinLock(math.MaxUint32)
}

// Unlock decrements the hold count; when it reaches zero the lock is
// released. Unlock does not check that the releaser is the holder —
// calling it on an unheld lock is reported as CodeLockFailure and is
// otherwise a no-op.
func (l *SpinLock) Unlock() {
	if !l.locked.Load() || l.count == 0 {
		l.scheduler.notify(Notification{Code: CodeLockFailure, Task: l.scheduler.GetRunningTask()})
		return
	}
	l.count--
	if l.count == 0 {
		l.initiatingTask.Store(uint32(InvalidTaskID))
		l.locked.Store(false)
	}
}

// GetLockCount returns the current reentrancy depth.
func (l *SpinLock) GetLockCount() uint32 { return l.count }

// IsLocked reports whether any task currently holds the lock.
func (l *SpinLock) IsLocked() bool { return l.locked.Load() }
