package buddy

import (
	"fmt"

	"github.com/joshuapare/buddykit/internal/format"
)

// member records a free block's list membership. The forward link lives in
// the block's in-arena header; the back link lives here so that a block can
// be unlinked from any position in O(1).
type member struct {
	order Order
	prev  int // offset of the previous block in the list, -1 at the head
}

// freeListRegistry keeps one singly linked list of free blocks per order.
//
// - List links are FreeHeaders written into the first bytes of each free block
// - members is the authoritative membership index; buddy checks never read
//   arena bytes, since an allocated buddy's payload could mimic a header
// - heads[k] is the offset of the first block of order k, -1 when empty.
type freeListRegistry struct {
	table   *sizeClassTable
	mem     []byte
	heads   []int
	counts  []int
	members map[int]member
}

// newFreeListRegistry builds empty lists for every order of t over mem.
func newFreeListRegistry(t *sizeClassTable, mem []byte) *freeListRegistry {
	r := &freeListRegistry{
		table:   t,
		mem:     mem,
		heads:   make([]int, t.NumOrders()),
		counts:  make([]int, t.NumOrders()),
		members: make(map[int]member, 64),
	}
	for k := range r.heads {
		r.heads[k] = -1
	}
	return r
}

// linkIndex converts an offset into the basic-block index stored in headers.
func (r *freeListRegistry) linkIndex(off int) int {
	if off < 0 {
		return -1
	}
	return off >> r.table.baseOrder
}

// linkOffset converts a header link back into an offset.
func (r *freeListRegistry) linkOffset(idx int) int {
	if idx < 0 {
		return -1
	}
	return idx << r.table.baseOrder
}

// put pushes the block at off onto the list of order k.
func (r *freeListRegistry) put(off int, k Order) {
	head := r.heads[k]
	if head >= 0 {
		m := r.members[head]
		m.prev = off
		r.members[head] = m
	}
	format.PutFreeHeader(r.mem, off, format.FreeHeader{
		Order: uint8(k),
		Next:  r.linkIndex(head),
	})
	r.heads[k] = off
	r.members[off] = member{order: k, prev: -1}
	r.counts[k]++
}

// contains reports whether the block at off is on the list of order k.
func (r *freeListRegistry) contains(off int, k Order) bool {
	m, ok := r.members[off]
	return ok && m.order == k
}

// orderOf returns the order of a free block at off.
func (r *freeListRegistry) orderOf(off int) (Order, bool) {
	m, ok := r.members[off]
	return m.order, ok
}

// remove unlinks the block at off from the list of order k, wherever it sits.
func (r *freeListRegistry) remove(off int, k Order) error {
	m, ok := r.members[off]
	if !ok || m.order != k {
		return fmt.Errorf("%w: block %d is not on the order-%d free list", ErrInvalidPointer, off, k)
	}

	h, err := format.DecodeFreeHeader(r.mem, off)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if Order(h.Order) != k {
		return fmt.Errorf("%w: block %d header says order %d, indexed as %d", ErrCorrupt, off, h.Order, k)
	}
	next := r.linkOffset(h.Next)
	if next >= 0 && !r.contains(next, k) {
		return fmt.Errorf("%w: block %d links to %d which is not free at order %d", ErrCorrupt, off, next, k)
	}

	if m.prev < 0 {
		r.heads[k] = next
	} else {
		format.PutFreeNext(r.mem, m.prev, h.Next)
	}
	if next >= 0 {
		nm := r.members[next]
		nm.prev = m.prev
		r.members[next] = nm
	}
	format.ClearFreeHeader(r.mem, off)
	delete(r.members, off)
	r.counts[k]--
	return nil
}

// get returns a free block of order k, splitting a larger block if no block
// of order k is free. It also returns the number of splits performed.
//
// Splitting keeps the lower half and pushes the upper half onto the next
// lower list at every level until order k is reached.
func (r *freeListRegistry) get(k Order) (int, int, error) {
	top := r.table.TopOrder()
	j := k
	for j <= top && r.heads[j] < 0 {
		j++
	}
	if j > top {
		return -1, 0, fmt.Errorf("%w: no free block of %d bytes or larger",
			ErrOutOfMemory, r.table.BlockSize(k))
	}

	off := r.heads[j]
	if err := r.remove(off, j); err != nil {
		return -1, 0, err
	}

	splits := 0
	for j > k {
		j--
		r.put(off+r.table.BlockSize(j), j)
		splits++
	}
	return off, splits, nil
}

// count returns the number of free blocks of order k.
func (r *freeListRegistry) count(k Order) int {
	return r.counts[k]
}

// blocks returns the offsets on the list of order k in list order.
func (r *freeListRegistry) blocks(k Order) []int {
	out := make([]int, 0, r.counts[k])
	off := r.heads[k]
	for off >= 0 && len(out) < r.counts[k] {
		out = append(out, off)
		h, err := format.DecodeFreeHeader(r.mem, off)
		if err != nil {
			break
		}
		off = r.linkOffset(h.Next)
	}
	return out
}

// freeBytes returns the total size of all free blocks.
func (r *freeListRegistry) freeBytes() int {
	total := 0
	for k, n := range r.counts {
		total += n * r.table.BlockSize(Order(k))
	}
	return total
}

// largest returns the size of the largest free block, 0 if none.
func (r *freeListRegistry) largest() int {
	for k := r.table.TopOrder(); k >= 0; k-- {
		if r.counts[k] > 0 {
			return r.table.BlockSize(k)
		}
	}
	return 0
}

// verify walks every list and checks headers, links, alignment and the
// membership index against each other.
func (r *freeListRegistry) verify() error {
	walked := 0
	for k := Order(0); k <= r.table.TopOrder(); k++ {
		size := r.table.BlockSize(k)
		prev := -1
		seen := 0
		for off := r.heads[k]; off >= 0; {
			if seen >= r.counts[k] {
				return fmt.Errorf("%w: order %d list longer than its count %d (cycle?)",
					ErrCorrupt, k, r.counts[k])
			}
			if off+size > len(r.mem) || !format.IsAligned(off, size) {
				return fmt.Errorf("%w: order %d block %d misplaced", ErrCorrupt, k, off)
			}
			m, ok := r.members[off]
			if !ok {
				return fmt.Errorf("%w: order %d block %d missing from index", ErrCorrupt, k, off)
			}
			if m.order != k || m.prev != prev {
				return fmt.Errorf("%w: order %d block %d indexed as order %d prev %d, walked prev %d",
					ErrCorrupt, k, off, m.order, m.prev, prev)
			}
			h, err := format.DecodeFreeHeader(r.mem, off)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrCorrupt, err)
			}
			if Order(h.Order) != k {
				return fmt.Errorf("%w: block %d header order %d on order-%d list",
					ErrCorrupt, off, h.Order, k)
			}
			prev = off
			off = r.linkOffset(h.Next)
			seen++
		}
		if seen != r.counts[k] {
			return fmt.Errorf("%w: order %d walked %d blocks, count is %d", ErrCorrupt, k, seen, r.counts[k])
		}
		walked += seen
	}
	if walked != len(r.members) {
		return fmt.Errorf("%w: lists hold %d blocks, index holds %d", ErrCorrupt, walked, len(r.members))
	}
	return nil
}
