package taskmanager

import "sync/atomic"

// interruptState is the ISR-shared mutable state: just the atomic words
// MarkInterrupted is allowed to touch. No scheduling work happens here;
// RunLoop drains it on its next iteration.
type interruptState struct {
	flag     atomic.Bool
	lastPin  atomic.Int32
	callback atomic.Pointer[func(PinID)]
}

// MarkInterrupted is the ISR entry point: it records the pin and sets the
// drain flag. It must be, and is, ISR-safe — two atomic stores and
// nothing else.
func (s *Scheduler) MarkInterrupted(pin PinID) {
	s.interrupt.lastPin.Store(int32(pin))
	s.interrupt.flag.Store(true)
}

// SetInterruptCallback installs the function RunLoop calls (from the
// foreground context) with the pin most recently reported by
// MarkInterrupted. Passing nil clears it.
func (s *Scheduler) SetInterruptCallback(fn func(PinID)) {
	if fn == nil {
		s.interrupt.callback.Store(nil)
		return
	}
	s.interrupt.callback.Store(&fn)
}

// AddInterrupt attaches to pin via io, installing a closure that calls
// MarkInterrupted. Go's closures make a hand-written table of per-pin
// trampolines unnecessary.
func (s *Scheduler) AddInterrupt(io IO, pin PinID, mode InterruptMode) error {
	return io.AttachInterrupt(pin, func() { s.MarkInterrupted(pin) }, mode)
}
