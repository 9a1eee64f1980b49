package taskmanager

import "sync"

const (
	defaultBlockSize = 16
	defaultMaxBlocks = 64
)

// block is a fixed-size, heap-allocated array of slots. Once created it is
// never resliced or grown, so addresses of slots within it are stable for
// the process lifetime.
type block = []slot

// pool is the grow-only slab of task slots: a sequence of blocks appended
// on demand, referenced through a top layer of block pointers so that
// growing the top layer (which may reallocate) never moves an existing
// block's backing array. Slots are never moved.
type pool struct {
	mu        sync.Mutex
	blockSize int
	maxBlocks int
	blocks    []*block
}

func newPool(blockSize, maxBlocks int) *pool {
	if blockSize <= 0 {
		blockSize = defaultBlockSize
	}
	if maxBlocks <= 0 {
		maxBlocks = defaultMaxBlocks
	}
	p := &pool{blockSize: blockSize, maxBlocks: maxBlocks}
	p.appendBlock()
	return p
}

// appendBlock grows the pool by one block, assigning dense ids continuing
// from the end of the existing logical slot space. Returns false if the
// pool is already at its configured maximum.
func (p *pool) appendBlock() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.blocks) >= p.maxBlocks {
		return false
	}
	b := make(block, p.blockSize)
	base := TaskID(len(p.blocks) * p.blockSize)
	for i := range b {
		b[i].id = base + TaskID(i)
	}
	p.blocks = append(p.blocks, &b)
	return true
}

func (p *pool) snapshot() []*block {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.blocks
}

// findFree scans slots in ascending index order, attempting a CAS on each
// in_use flag; the first successful CAS wins the slot. If no slot is free
// a new block is appended and the scan resumes there. Returns nil only
// when the pool has grown to its maximum and every slot is taken.
func (p *pool) findFree(notify NotificationFunc) *slot {
	scanned := 0
	for {
		blocks := p.snapshot()
		for _, b := range blocks[scanned:] {
			for i := range *b {
				s := &(*b)[i]
				if s.inUse.CompareAndSwap(false, true) {
					if notify != nil {
						notify(Notification{Code: CodeSlotAllocated, Task: s.id})
					}
					return s
				}
			}
		}
		scanned = len(blocks)
		if !p.appendBlock() {
			return nil
		}
		if notify != nil {
			notify(Notification{Code: CodePoolGrew, Task: InvalidTaskID})
		}
	}
}

// at returns the slot for id, or nil if id is out of range (including
// InvalidTaskID).
func (p *pool) at(id TaskID) *slot {
	if id == InvalidTaskID {
		return nil
	}
	blockIdx := int(id) / p.blockSize
	offset := int(id) % p.blockSize
	blocks := p.snapshot()
	if blockIdx >= len(blocks) {
		return nil
	}
	return &(*blocks[blockIdx])[offset]
}

// forEach iterates every slot in every block, free or in use, in ascending id order, for
// diagnostics (CheckAvailableSlots, Reset) and event polling.
func (p *pool) forEach(fn func(*slot)) {
	for _, b := range p.snapshot() {
		for i := range *b {
			fn(&(*b)[i])
		}
	}
}
