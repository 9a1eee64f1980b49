package taskmanager

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPool_FindFreeReusesFreedSlot(t *testing.T) {
	p := newPool(4, 4)

	a := p.findFree(nil)
	require.NotNil(t, a)
	idA := a.id

	a.clear()

	b := p.findFree(nil)
	require.NotNil(t, b)
	require.Equal(t, idA, b.id, "a freed slot should be recycled by the next allocation")
}

func TestPool_GrowsOnDemandAndStopsAtMaxBlocks(t *testing.T) {
	p := newPool(2, 2) // 2 blocks of 2 slots = 4 slots max

	var got []*slot
	for i := 0; i < 4; i++ {
		s := p.findFree(nil)
		require.NotNilf(t, s, "allocation %d should succeed within pool capacity", i)
		got = append(got, s)
	}

	require.Nil(t, p.findFree(nil), "pool should refuse to grow past maxBlocks")

	// freeing one slot makes exactly one allocation succeed again
	got[0].clear()
	require.NotNil(t, p.findFree(nil))
	require.Nil(t, p.findFree(nil))
}

func TestPool_SlotAddressesAreStableAcrossGrowth(t *testing.T) {
	p := newPool(1, 8)

	first := p.findFree(nil)
	addr := first

	for i := 0; i < 5; i++ {
		require.NotNil(t, p.findFree(nil))
	}

	require.Same(t, addr, p.at(first.id), "a slot's address must never change once allocated")
}

func TestPool_AtOutOfRange(t *testing.T) {
	p := newPool(2, 2)
	require.Nil(t, p.at(InvalidTaskID))
	require.Nil(t, p.at(TaskID(1000)))
}
