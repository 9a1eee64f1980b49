package taskmanager

import (
	"io"
	"sync/atomic"
)

// TaskID identifies a slot in the pool. It is a dense index into the
// pool's logical slot space.
type TaskID uint32

// InvalidTaskID is the reserved sentinel returned whenever a scheduling
// call fails, or a lookup finds nothing.
const InvalidTaskID TaskID = ^TaskID(0)

// Unit is the time unit a slot's schedule value is expressed in. SECONDS
// is normalised to MILLIS at registration time.
type Unit uint8

const (
	Micros Unit = iota
	Millis
	Seconds
)

// Kind discriminates what a slot's callee field holds.
type Kind uint8

const (
	KindFunction Kind = iota
	KindExecutable
	KindEvent
)

// Executable is the "executable handle" callee kind: an alternative to a
// bare function for callers that want to pass an owned object.
type Executable interface {
	Execute()
}

// slot is the internal task record. It is never moved once allocated; the
// pool hands out stable pointers into block-backed arrays.
type slot struct {
	id TaskID

	inUse   atomic.Bool // ownership flag; CAS-allocated by the pool
	enabled atomic.Bool // "scheduled" bit, independent of inUse

	running bool // true only while this slot's callback is executing

	scheduleValue uint32
	scheduleUnit  Unit
	repeating     bool
	scheduledAt   uint64 // micros for MICROS, millis otherwise

	kind       Kind
	ownsCallee bool
	fn         func()
	exec       Executable
	event      Event

	next atomic.Pointer[slot] // read/written under the critical section,
	// except by the executing task itself
}

// clear resets a slot and returns it to the free state. Order matters:
// destroy the owned callee, drop references, clear linkage, then flip
// inUse back to false.
func (s *slot) clear() {
	if s.ownsCallee {
		switch s.kind {
		case KindExecutable:
			if c, ok := s.exec.(io.Closer); ok {
				_ = c.Close()
			}
		case KindEvent:
			if c, ok := s.event.(io.Closer); ok {
				_ = c.Close()
			}
		}
	}
	s.fn = nil
	s.exec = nil
	s.event = nil
	s.ownsCallee = false
	s.repeating = false
	s.running = false
	s.enabled.Store(false)
	s.next.Store(nil)
	s.inUse.Store(false)
}

// TaskInfo is a read-only snapshot of a slot, returned by Scheduler.GetTask.
// Callers never receive a raw pointer into the pool.
type TaskInfo struct {
	Kind      Kind
	Unit      Unit
	Repeating bool
	Enabled   bool
	Running   bool
}
