package taskmanager

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func orderedIDs(head *atomic.Pointer[slot]) []TaskID {
	var ids []TaskID
	for cur := head.Load(); cur != nil; cur = cur.next.Load() {
		ids = append(ids, cur.id)
	}
	return ids
}

func remainingOf(values map[TaskID]int64) remainingFunc {
	return func(s *slot) int64 {
		return values[s.id]
	}
}

func TestQueue_InsertOrdersByRemainingTime(t *testing.T) {
	var head atomic.Pointer[slot]

	a := &slot{id: 1}
	b := &slot{id: 2}
	c := &slot{id: 3}

	remaining := map[TaskID]int64{1: 500, 2: 100, 3: 300}
	fn := remainingOf(remaining)

	insertSlot(&head, fn, a)
	insertSlot(&head, fn, b)
	insertSlot(&head, fn, c)

	require.Equal(t, []TaskID{2, 3, 1}, orderedIDs(&head))
}

func TestQueue_InsertTiesBreakByInsertionOrder(t *testing.T) {
	var head atomic.Pointer[slot]

	a := &slot{id: 1}
	b := &slot{id: 2}

	fn := remainingOf(map[TaskID]int64{1: 100, 2: 100})

	insertSlot(&head, fn, a)
	insertSlot(&head, fn, b)

	require.Equal(t, []TaskID{1, 2}, orderedIDs(&head))
}

func TestQueue_RemoveUnlinksTargetOnly(t *testing.T) {
	var head atomic.Pointer[slot]

	a := &slot{id: 1}
	b := &slot{id: 2}
	c := &slot{id: 3}

	fn := remainingOf(map[TaskID]int64{1: 100, 2: 200, 3: 300})
	insertSlot(&head, fn, a)
	insertSlot(&head, fn, b)
	insertSlot(&head, fn, c)

	require.True(t, removeSlot(&head, b))
	require.Equal(t, []TaskID{1, 3}, orderedIDs(&head))
	require.Nil(t, b.next.Load(), "removed slot's next pointer must be cleared")

	require.False(t, removeSlot(&head, b), "removing an already-removed slot is a no-op")
}

func TestQueue_RemoveHead(t *testing.T) {
	var head atomic.Pointer[slot]

	a := &slot{id: 1}
	b := &slot{id: 2}

	fn := remainingOf(map[TaskID]int64{1: 100, 2: 200})
	insertSlot(&head, fn, a)
	insertSlot(&head, fn, b)

	require.True(t, removeSlot(&head, a))
	require.Equal(t, []TaskID{2}, orderedIDs(&head))
	require.Same(t, b, head.Load())
}
