package taskmanager

import "sync/atomic"

// remainingFunc returns how far in the future (in microseconds) a slot is
// due, as of a fixed point in time captured by the caller. Because the
// clock keeps advancing between comparisons, the ready queue's ordering is
// only approximately correct; this is fine, since the walker simply stops
// at the first not-yet-ready slot rather than depending on exact order.
type remainingFunc func(s *slot) int64

// insertSlot links s into the singly-linked list rooted at head, in
// ascending order of remaining(s): it locates the first existing node
// whose remaining time exceeds s's and links before it, or appends.
// Must be called with the critical section held.
func insertSlot(head *atomic.Pointer[slot], remaining remainingFunc, s *slot) {
	target := remaining(s)
	prev := head
	cur := head.Load()
	for cur != nil && remaining(cur) <= target {
		prev = &cur.next
		cur = cur.next.Load()
	}
	s.next.Store(cur)
	prev.Store(s)
}

// removeSlot unlinks target from the list rooted at head by walking from
// the front. The list is expected to be short (tens of entries on
// realistic deployments), so O(N) removal is acceptable. Must be called
// with the critical section held. Returns false if target was not found
// (already removed, or never linked).
func removeSlot(head *atomic.Pointer[slot], target *slot) bool {
	prev := head
	cur := head.Load()
	for cur != nil {
		if cur == target {
			prev.Store(cur.next.Load())
			target.next.Store(nil)
			return true
		}
		prev = &cur.next
		cur = cur.next.Load()
	}
	return false
}
