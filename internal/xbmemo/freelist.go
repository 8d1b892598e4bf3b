package xbmemo

import (
	"slices"

	"github.com/bits-and-blooms/bitset"
)

// freeList tracks which memo blocks are currently allocated to a live run,
// as a bitset indexed by block number. compact consults it to skip
// orphaned runs without a linear content scan.
type freeList struct {
	used *bitset.BitSet
	runs map[uint32]int // block index -> blocks the run at that index spans
}

func newFreeList() *freeList {
	return &freeList{used: bitset.New(0), runs: make(map[uint32]int)}
}

func (f *freeList) markUsed(start uint32, blocks int) {
	for i := 0; i < blocks; i++ {
		f.used.Set(uint(start) + uint(i))
	}
	f.runs[start] = blocks
}

func (f *freeList) markFree(start uint32) {
	blocks, ok := f.runs[start]
	if !ok {
		return
	}
	for i := 0; i < blocks; i++ {
		f.used.Clear(uint(start) + uint(i))
	}
	delete(f.runs, start)
}

func (f *freeList) runLength(start uint32) (int, bool) {
	n, ok := f.runs[start]
	return n, ok
}

// usedCount returns the number of blocks currently marked allocated.
func (f *freeList) usedCount() uint32 {
	return uint32(f.used.Count())
}

// activeStarts returns the starting block index of every tracked live run,
// in ascending order, for compact to iterate over.
func (f *freeList) activeStarts() []uint32 {
	starts := make([]uint32, 0, len(f.runs))
	for start := range f.runs {
		starts = append(starts, start)
	}
	slices.Sort(starts)
	return starts
}
