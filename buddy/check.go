package buddy

import (
	"fmt"

	"github.com/joshuapare/buddykit/internal/format"
)

// Blocks returns every block of the arena in address order, free and
// allocated. The blocks tile the arena exactly; a gap or overlap is reported
// as ErrCorrupt.
func (a *Allocator) Blocks() ([]Block, error) {
	if a.state != StateReady {
		return nil, ErrNotInitialized
	}
	capacity := a.table.Capacity()
	out := make([]Block, 0, len(a.live)+len(a.free.members))
	for off := 0; off < capacity; {
		k, live := a.live[off]
		fk, free := a.free.orderOf(off)
		switch {
		case live && free:
			return out, fmt.Errorf("%w: block %d is both allocated and free", ErrCorrupt, off)
		case free:
			k = fk
		case !live:
			return out, fmt.Errorf("%w: no block starts at %d", ErrCorrupt, off)
		}
		size := a.table.BlockSize(k)
		out = append(out, Block{Addr: Addr(off), Order: k, Size: size, Free: free})
		off += size
	}
	return out, nil
}

// Check verifies the allocator invariants:
//
//  1. No two buddies of the same order are both free.
//  2. Every block is aligned to its own size.
//  3. Free bytes plus outstanding bytes equal the capacity, and the blocks
//     tile the arena without gaps or overlaps.
//
// It also walks each free list comparing the in-arena headers with the
// membership index, which catches writes into freed blocks.
func (a *Allocator) Check() error {
	if a.state != StateReady {
		return ErrNotInitialized
	}
	if err := a.free.verify(); err != nil {
		return err
	}

	top := a.table.TopOrder()
	for off, m := range a.free.members {
		if m.order < top {
			buddy := off ^ a.table.BlockSize(m.order)
			if a.free.contains(buddy, m.order) {
				return fmt.Errorf("%w: buddies %d and %d both free at order %d",
					ErrCorrupt, min(off, buddy), max(off, buddy), m.order)
			}
		}
	}
	for off, k := range a.live {
		if !a.table.validOrder(k) || !format.IsAligned(off, a.table.BlockSize(k)) {
			return fmt.Errorf("%w: allocated block %d misaligned for order %d", ErrCorrupt, off, k)
		}
	}

	if got := a.free.freeBytes() + a.inUse; got != a.table.Capacity() {
		return fmt.Errorf("%w: free %d + in use %d != capacity %d",
			ErrCorrupt, a.free.freeBytes(), a.inUse, a.table.Capacity())
	}
	if _, err := a.Blocks(); err != nil {
		return err
	}
	return nil
}
