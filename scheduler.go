// Package taskmanager implements a cooperative, single-threaded task
// scheduler for resource-constrained devices: one-shot and periodic
// timers, polled events, and interrupt-marshalled callbacks, all
// multiplexed onto a single execution context (the goroutine driving
// RunLoop) plus zero or more interrupt contexts (any other goroutine
// calling MarkInterrupted, MarkTriggeredAndNotify, or Execute).
package taskmanager

import (
	"fmt"
	"math"
	"sync/atomic"
)

// Scheduler is the scheduler core: the slot pool, the time-ordered ready
// queue, the execution loop, and the interrupt-to-task marshalling path.
// Construct with NewScheduler.
type Scheduler struct {
	cfg       *schedulerOptions
	platform  Platform
	pool      *pool
	head      atomic.Pointer[slot]
	interrupt interruptState
	current   atomic.Pointer[slot]
}

// NewScheduler constructs a Scheduler. The zero value is not usable;
// always construct through this function so defaults (StdPlatform, the
// default logger, block size, schedule width) are applied.
func NewScheduler(opts ...Option) (*Scheduler, error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}
	return &Scheduler{
		cfg:      cfg,
		platform: cfg.platform,
		pool:     newPool(cfg.blockSize, cfg.maxBlocks),
	}, nil
}

// Platform returns the Platform this Scheduler was constructed with, so
// collaborators built on the public Event contract (e.g. LongSchedule)
// can share its clock instead of requiring callers to keep a second
// reference around.
func (s *Scheduler) Platform() Platform {
	return s.platform
}

func (s *Scheduler) withCritical(fn func()) {
	exit := s.platform.EnterCritical()
	defer exit()
	fn()
}

func (s *Scheduler) notify(n Notification) {
	if s.cfg.notify != nil {
		s.cfg.notify(n)
	}
	s.logNotification(n)
}

func (s *Scheduler) safeCall(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.cfg.logger.Err().Str("panic", fmt.Sprint(r)).Log("task callback panicked")
		}
	}()
	fn()
}

func (s *Scheduler) nowFor(u Unit) uint64 {
	if u == Micros {
		return s.platform.NowMicros()
	}
	return s.platform.NowMillis()
}

// remainingFuncNow snapshots the clock once and returns a remainingFunc
// closed over that snapshot, so a single insertSlot call compares every
// existing node against the same instant.
func (s *Scheduler) remainingFuncNow() remainingFunc {
	nowMicros, nowMillis := s.platform.NowMicros(), s.platform.NowMillis()
	return func(sl *slot) int64 {
		return remainingMicros(nowMicros, nowMillis, sl)
	}
}

// remainingMicros computes how far in the future (in microseconds) sl is
// due, in a common domain so MICROS and MILLIS/SECONDS slots can be
// ordered against each other in the same queue.
func remainingMicros(nowMicros, nowMillis uint64, s *slot) int64 {
	if s.scheduleUnit == Micros {
		elapsed := nowMicros - s.scheduledAt
		return int64(s.scheduleValue) - int64(elapsed)
	}
	elapsed := nowMillis - s.scheduledAt
	return (int64(s.scheduleValue) - int64(elapsed)) * 1000
}

// isReady reports whether s is due, using unsigned subtraction so clock
// wraparound is handled correctly.
func isReady(nowMicros, nowMillis uint64, s *slot) bool {
	if s.scheduleUnit == Micros {
		return (nowMicros - s.scheduledAt) >= uint64(s.scheduleValue)
	}
	return (nowMillis - s.scheduledAt) >= uint64(s.scheduleValue)
}

// clampScheduleValue clamps v to the ceiling implied by width, reporting
// whether clamping occurred, rather than silently wrapping a uint32.
func clampScheduleValue(width ScheduleWidth, v uint64) (uint32, bool) {
	ceiling := uint64(math.MaxUint32)
	if width == Width16 {
		ceiling = math.MaxUint16
	}
	if v > ceiling {
		return uint32(ceiling), true
	}
	return uint32(v), false
}

// normalizeSchedule folds SECONDS into MILLIS (value*1000, which bounds
// the maximum interval to ~2^32ms ≈ 49.7 days before any width clamping)
// and clamps the stored value to the configured schedule width.
func normalizeSchedule(width ScheduleWidth, value uint32, unit Unit) (storedValue uint32, storedUnit Unit, clamped bool) {
	if unit == Seconds {
		storedUnit = Millis
		storedValue, clamped = clampScheduleValue(width, uint64(value)*1000)
		return
	}
	storedUnit = unit
	storedValue, clamped = clampScheduleValue(width, uint64(value))
	return
}

// allocate is the shared slot-allocation-and-link path behind every
// scheduling call.
func (s *Scheduler) allocate(value uint32, unit Unit, repeating bool, kind Kind, fn func(), exec Executable, ev Event, ownsCallee bool) (TaskID, error) {
	storedValue, storedUnit, clamped := normalizeSchedule(s.cfg.scheduleWidth, value, unit)

	sl := s.pool.findFree(s.notify)
	if sl == nil {
		s.notify(Notification{Code: CodeFull, Task: InvalidTaskID})
		return InvalidTaskID, ErrPoolExhausted
	}

	sl.scheduleValue = storedValue
	sl.scheduleUnit = storedUnit
	sl.repeating = repeating
	sl.scheduledAt = s.nowFor(storedUnit)
	sl.kind = kind
	sl.ownsCallee = ownsCallee
	sl.fn = fn
	sl.exec = exec
	sl.event = ev
	sl.enabled.Store(true)

	s.withCritical(func() {
		insertSlot(&s.head, s.remainingFuncNow(), sl)
	})

	if clamped {
		return sl.id, ErrScheduleOverflow
	}
	return sl.id, nil
}

// ScheduleOnce arms a one-shot task that fires once value units of time
// have elapsed.
func (s *Scheduler) ScheduleOnce(value uint32, unit Unit, fn func()) (TaskID, error) {
	if fn == nil {
		return InvalidTaskID, ErrInvalidTask
	}
	return s.allocate(value, unit, false, KindFunction, fn, nil, nil, false)
}

// ScheduleOnceExecutable is ScheduleOnce's Executable-handle overload.
// deleteWhenDone transfers ownership: if exec also implements io.Closer,
// Close is called when the slot clears.
func (s *Scheduler) ScheduleOnceExecutable(value uint32, unit Unit, exec Executable, deleteWhenDone bool) (TaskID, error) {
	if exec == nil {
		return InvalidTaskID, ErrInvalidTask
	}
	return s.allocate(value, unit, false, KindExecutable, nil, exec, nil, deleteWhenDone)
}

// ScheduleFixedRate arms a periodic task that fires every value units of
// time until cancelled.
func (s *Scheduler) ScheduleFixedRate(value uint32, unit Unit, fn func()) (TaskID, error) {
	if fn == nil {
		return InvalidTaskID, ErrInvalidTask
	}
	return s.allocate(value, unit, true, KindFunction, fn, nil, nil, false)
}

// ScheduleFixedRateExecutable is ScheduleFixedRate's Executable-handle
// overload.
func (s *Scheduler) ScheduleFixedRateExecutable(value uint32, unit Unit, exec Executable, deleteWhenDone bool) (TaskID, error) {
	if exec == nil {
		return InvalidTaskID, ErrInvalidTask
	}
	return s.allocate(value, unit, true, KindExecutable, nil, exec, nil, deleteWhenDone)
}

// RegisterEvent registers a polled event. Event slots begin with delay 0
// so they're polled on the very next RunLoop.
func (s *Scheduler) RegisterEvent(ev Event, deleteWhenDone bool) (TaskID, error) {
	if ev == nil {
		return InvalidTaskID, ErrInvalidTask
	}
	return s.allocate(0, Micros, true, KindEvent, nil, nil, ev, deleteWhenDone)
}

// CancelTask removes id from the queue and clears its slot, returning
// ErrTaskNotFound for an out-of-range or already-free id. Safe at any
// point except from inside the callback of the very slot being
// cancelled — which is exactly the self-cancellation case runSlot
// handles after the callback returns.
func (s *Scheduler) CancelTask(id TaskID) error {
	sl := s.pool.at(id)
	if sl == nil || !sl.inUse.Load() {
		return ErrTaskNotFound
	}
	s.withCritical(func() {
		removeSlot(&s.head, sl)
	})
	sl.clear()
	s.notify(Notification{Code: CodeSlotFreed, Task: id})
	return nil
}

// SetTaskEnabled toggles the "scheduled" bit independent of allocation:
// disabled tasks are skipped during RunLoop but remain allocated.
// Enabling resets scheduledAt so the next fire respects a full period.
func (s *Scheduler) SetTaskEnabled(id TaskID, enabled bool) {
	sl := s.pool.at(id)
	if sl == nil || !sl.inUse.Load() {
		return
	}
	if enabled {
		sl.scheduledAt = s.nowFor(sl.scheduleUnit)
	}
	sl.enabled.Store(enabled)
}

// GetTask returns a read-only snapshot of id's slot, or ok=false if id
// does not name an in-use slot.
func (s *Scheduler) GetTask(id TaskID) (info TaskInfo, ok bool) {
	sl := s.pool.at(id)
	if sl == nil || !sl.inUse.Load() {
		return TaskInfo{}, false
	}
	return TaskInfo{
		Kind:      sl.kind,
		Unit:      sl.scheduleUnit,
		Repeating: sl.repeating,
		Enabled:   sl.enabled.Load(),
		Running:   sl.running,
	}, true
}

// GetFirstTask returns the id at the head of the ready queue, or
// InvalidTaskID if the queue is empty.
func (s *Scheduler) GetFirstTask() TaskID {
	id := InvalidTaskID
	s.withCritical(func() {
		if h := s.head.Load(); h != nil {
			id = h.id
		}
	})
	return id
}

// GetRunningTask returns the id of the slot whose callback is currently
// executing in the calling context, or InvalidTaskID. Used by SpinLock.
func (s *Scheduler) GetRunningTask() TaskID {
	if c := s.current.Load(); c != nil {
		return c.id
	}
	return InvalidTaskID
}

// Execute is a shortcut for ScheduleOnce(0, Micros, fn); safe to call
// from an interrupt context.
func (s *Scheduler) Execute(fn func()) (TaskID, error) {
	return s.ScheduleOnce(0, Micros, fn)
}

// Reset clears every allocated slot and empties the ready queue, as if
// the scheduler had just been constructed.
func (s *Scheduler) Reset() {
	s.withCritical(func() {
		s.head.Store(nil)
	})
	s.pool.forEach(func(sl *slot) {
		if sl.inUse.Load() {
			sl.clear()
		}
	})
	s.current.Store(nil)
	s.interrupt.flag.Store(false)
}

// CheckAvailableSlots writes one character per pool slot into buf:
// 'R' repeating, 'U' in-use one-shot, 'F' free, lowercased when the slot
// is currently running. Truncates to len(buf) and returns the number of
// characters written.
func (s *Scheduler) CheckAvailableSlots(buf []byte) int {
	n := 0
	s.pool.forEach(func(sl *slot) {
		if n >= len(buf) {
			return
		}
		var c byte
		switch {
		case !sl.inUse.Load():
			c = 'F'
		case sl.repeating:
			c = 'R'
		default:
			c = 'U'
		}
		if sl.running {
			c = c - 'A' + 'a'
		}
		buf[n] = c
		n++
	})
	return n
}

// RunLoop performs one pass: draining any pending interrupt (invoking the
// user interrupt callback, then polling every triggered event), then
// walking the ready queue front-to-back, executing every slot whose due
// time has elapsed, until the first not-ready slot is reached. A
// currently-running slot (reachable only via a nested RunLoop pumped
// from inside a callback) is treated as a special case rather than a
// stop condition — see the "running slot during the queue walk" Open
// Question decision in DESIGN.md.
func (s *Scheduler) RunLoop() {
	if s.interrupt.flag.CompareAndSwap(true, false) {
		pin := PinID(s.interrupt.lastPin.Load())
		if pin != PinEventNotify {
			if cb := s.interrupt.callback.Load(); cb != nil {
				s.safeCall(func() { (*cb)(pin) })
			}
		}
		s.pollEvents()
	}

	cur := s.head.Load()
	for cur != nil {
		var proceed, skip bool
		var next *slot
		s.withCritical(func() {
			if !cur.inUse.Load() {
				return
			}
			if cur.running {
				// Open Question decision (DESIGN.md): skip a running slot
				// and keep walking, rather than stopping the walk the way
				// a merely not-ready slot does. running prevents re-entry
				// of the same slot from a yielding callback's nested
				// RunLoop; skip-and-continue is what lets sibling tasks
				// still run during that nested pump.
				next = cur.next.Load()
				skip = true
				return
			}
			nowMicros, nowMillis := s.platform.NowMicros(), s.platform.NowMillis()
			if !isReady(nowMicros, nowMillis, cur) {
				return
			}
			next = cur.next.Load()
			proceed = true
		})
		if !proceed && !skip {
			return
		}

		if proceed {
			if cur.kind == KindEvent {
				s.pollOneEvent(cur)
			} else if cur.enabled.Load() {
				s.runSlot(cur)
			}
		}

		cur = next
	}
}

// YieldForMicros cooperatively waits by repeatedly driving RunLoop until
// at least micros have elapsed. Nesting is allowed: the currently-running
// task's identity is preserved across nested RunLoop calls because
// runSlot itself saves and restores Scheduler.current.
func (s *Scheduler) YieldForMicros(micros uint32) {
	start := s.platform.NowMicros()
	for s.platform.NowMicros()-start < uint64(micros) {
		s.RunLoop()
		s.platform.Yield()
	}
}

// runSlot executes a FUNCTION or EXECUTABLE slot and applies the
// repeat-or-clear policy afterwards.
func (s *Scheduler) runSlot(sl *slot) {
	prev := s.current.Load()
	s.current.Store(sl)
	sl.running = true

	s.safeCall(func() {
		switch sl.kind {
		case KindFunction:
			sl.fn()
		case KindExecutable:
			sl.exec.Execute()
		}
	})

	sl.running = false
	s.current.Store(prev)

	if !sl.inUse.Load() {
		// The callback cancelled its own slot (directly, or via a nested
		// RunLoop). clear() has already run: this is the "clear before
		// re-arm" ordering for self-cancellation.
		return
	}

	if sl.repeating {
		sl.scheduledAt = s.nowFor(sl.scheduleUnit)
		return
	}

	s.withCritical(func() {
		removeSlot(&s.head, sl)
	})
	sl.clear()
	s.notify(Notification{Code: CodeSlotFreed, Task: sl.id})
}

// pollOneEvent implements the event protocol for an event slot reached
// during the normal queue walk.
func (s *Scheduler) pollOneEvent(sl *slot) {
	prev := s.current.Load()
	s.current.Store(sl)
	sl.running = true

	interval := sl.event.TimeOfNextCheck()

	if sl.event.IsTriggered() {
		sl.event.SetTriggered(false)
		s.safeCall(sl.event.Exec)
	}

	sl.running = false
	s.current.Store(prev)

	if !sl.inUse.Load() {
		return
	}

	if sl.event.IsComplete() {
		s.withCritical(func() {
			removeSlot(&s.head, sl)
		})
		sl.clear()
		s.notify(Notification{Code: CodeSlotFreed, Task: sl.id})
		return
	}

	sl.scheduleValue, _ = clampScheduleValue(s.cfg.scheduleWidth, interval)
	sl.scheduleUnit = Micros
	sl.scheduledAt = s.platform.NowMicros()
}

// deliverEvent delivers a trigger recorded by MarkTriggeredAndNotify,
// without re-reading TimeOfNextCheck (that's only evaluated when the
// event's own turn comes up in the normal queue walk).
func (s *Scheduler) deliverEvent(sl *slot) {
	prev := s.current.Load()
	s.current.Store(sl)
	sl.running = true

	sl.event.SetTriggered(false)
	s.safeCall(sl.event.Exec)

	sl.running = false
	s.current.Store(prev)

	if !sl.inUse.Load() {
		return
	}
	if sl.event.IsComplete() {
		s.withCritical(func() {
			removeSlot(&s.head, sl)
		})
		sl.clear()
		s.notify(Notification{Code: CodeSlotFreed, Task: sl.id})
	}
}

// pollEvents walks every event slot and delivers any that are currently
// triggered. Called whenever RunLoop drains the interrupt flag, so that
// events triggered via MarkTriggeredAndNotify execute on the same loop
// iteration.
func (s *Scheduler) pollEvents() {
	s.pool.forEach(func(sl *slot) {
		if !sl.inUse.Load() || sl.kind != KindEvent {
			return
		}
		if sl.event.IsTriggered() {
			s.deliverEvent(sl)
		}
	})
}
