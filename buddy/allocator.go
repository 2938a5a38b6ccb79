package buddy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/joshuapare/buddykit/internal/format"
)

// Allocator is a buddy-system allocator over one fixed arena.
// - Block sizes are powers of two between the basic block size and the arena
// - Malloc splits larger free blocks down to the requested order
// - Free coalesces with free buddies until no merge is possible
// - live records the order of every outstanding block, since an address
//   alone does not reveal it.
//
// The zero value is an UNINIT allocator; call Init before use. Allocator is
// not safe for concurrent use; see SyncAllocator.
type Allocator struct {
	opts  options
	log   *slog.Logger
	debug bool

	state State
	table *sizeClassTable
	arena *arena
	free  *freeListRegistry

	// live maps the offset of every outstanding block to its order.
	live  map[int]Order
	inUse int // bytes held by outstanding blocks, at block granularity

	stats allocatorStats
}

// allocatorStats holds internal allocator counters.
type allocatorStats struct {
	MallocCalls  uint64 // Total Malloc() calls
	FreeCalls    uint64 // Total Free() calls
	Splits       uint64 // Blocks split in two
	Merges       uint64 // Buddy pairs merged
	OutOfMemory  uint64 // Malloc() calls that found no block
	BadRequests  uint64 // Malloc() calls rejected for their size
	InvalidFrees uint64 // Free() calls rejected for their address
}

// New creates an UNINIT allocator with the given options.
func New(opts ...Option) *Allocator {
	a := &Allocator{}
	for _, opt := range opts {
		opt(&a.opts)
	}
	return a
}

// Init computes the orders, allocates the arena and seeds one free block
// spanning it. It returns the arena capacity, a power of two >= length, or 0
// with an error.
func (a *Allocator) Init(basicBlockSize, length int) (int, error) {
	if a.state == StateReady {
		return 0, ErrAlreadyInitialized
	}
	if a.log == nil {
		a.log = a.opts.logger
		if a.log == nil {
			a.log = defaultLogger()
		}
		a.debug = a.log.Enabled(context.Background(), slog.LevelDebug)
	}

	table, err := newSizeClassTable(basicBlockSize, length)
	if err != nil {
		return 0, err
	}
	ar, err := newArena(table.Capacity(), a.opts.backing)
	if err != nil {
		return 0, err
	}

	a.table = table
	a.arena = ar
	a.free = newFreeListRegistry(table, ar.Bytes())
	a.live = make(map[int]Order, 64)
	a.inUse = 0
	a.stats = allocatorStats{}
	a.free.put(0, table.TopOrder())
	a.state = StateReady

	if a.debug {
		a.log.Debug("buddy init",
			"basic_block_size", basicBlockSize,
			"length", length,
			"table", table.String(),
			"backing", ar.backing)
	}
	return table.Capacity(), nil
}

// Malloc hands out a block of at least size bytes. The returned slice has
// length size and capacity equal to the block size; all of it, including the
// bytes that held free-list metadata, belongs to the caller until Free.
func (a *Allocator) Malloc(size int) (Addr, []byte, error) {
	if a.state != StateReady {
		return NilAddr, nil, ErrNotInitialized
	}
	a.stats.MallocCalls++

	if size <= 0 {
		a.stats.BadRequests++
		return NilAddr, nil, fmt.Errorf("%w: size must be positive, got %d", ErrInvalidArgument, size)
	}
	if size > a.table.Capacity() {
		a.stats.BadRequests++
		return NilAddr, nil, fmt.Errorf("%w: %d > %d", ErrSizeExceedsCapacity, size, a.table.Capacity())
	}

	k := a.table.OrderFor(size)
	off, splits, err := a.free.get(k)
	if err != nil {
		if errors.Is(err, ErrOutOfMemory) {
			a.stats.OutOfMemory++
		}
		if a.debug {
			a.log.Debug("buddy malloc failed", "size", size, "order", k, "err", err)
		}
		return NilAddr, nil, err
	}
	a.stats.Splits += uint64(splits)

	blockSize := a.table.BlockSize(k)
	a.live[off] = k
	a.inUse += blockSize

	if a.debug {
		a.log.Debug("buddy malloc",
			"size", size, "order", k, "block", blockSize, "addr", off, "splits", splits)
	}
	mem := a.arena.Bytes()
	return Addr(off), mem[off : off+size : off+blockSize], nil
}

// Free returns the block at addr to the free lists and merges it with its
// buddy, repeatedly, until the buddy is not free or the block spans the
// arena. A rejected address leaves all allocator state unchanged.
func (a *Allocator) Free(addr Addr) error {
	if a.state != StateReady {
		return ErrNotInitialized
	}
	a.stats.FreeCalls++

	off, k, err := a.lookup(addr)
	if err != nil {
		a.stats.InvalidFrees++
		return err
	}
	delete(a.live, off)
	a.inUse -= a.table.BlockSize(k)

	top := a.table.TopOrder()
	for k < top {
		buddy := off ^ a.table.BlockSize(k)
		if !a.free.contains(buddy, k) {
			break
		}
		if err := a.free.remove(buddy, k); err != nil {
			// Keep the freed block accounted for even though the lists are damaged.
			a.free.put(off, k)
			return err
		}
		a.stats.Merges++
		off = min(off, buddy)
		k++
	}
	a.free.put(off, k)

	if a.debug {
		a.log.Debug("buddy free", "addr", int(addr), "merged_addr", off, "order", k)
	}
	return nil
}

// Release frees the free lists and the arena and returns the allocator to
// UNINIT. The allocator can be initialized again afterwards.
func (a *Allocator) Release() error {
	if a.state != StateReady {
		return ErrNotInitialized
	}
	err := a.arena.Release()

	if a.debug {
		a.log.Debug("buddy release", "capacity", a.table.Capacity(), "live_blocks", len(a.live))
	}
	a.table = nil
	a.arena = nil
	a.free = nil
	a.live = nil
	a.inUse = 0
	a.state = StateUninit

	if err != nil {
		return fmt.Errorf("release arena: %w", err)
	}
	return nil
}

// lookup validates addr as the start of an outstanding block and returns its
// offset and order.
func (a *Allocator) lookup(addr Addr) (int, Order, error) {
	off := int(addr)
	if off < 0 || off >= a.table.Capacity() {
		return 0, 0, fmt.Errorf("%w: address %d outside arena [0, %d)",
			ErrInvalidPointer, off, a.table.Capacity())
	}
	if !format.IsAligned(off, a.table.MinBlockSize()) {
		return 0, 0, fmt.Errorf("%w: address %d not aligned to the %d-byte basic block",
			ErrInvalidPointer, off, a.table.MinBlockSize())
	}
	k, ok := a.live[off]
	if !ok {
		if fk, free := a.free.orderOf(off); free {
			return 0, 0, fmt.Errorf("%w: address %d is already free (order %d)", ErrInvalidPointer, off, fk)
		}
		return 0, 0, fmt.Errorf("%w: address %d is not the start of an allocated block",
			ErrInvalidPointer, off)
	}
	return off, k, nil
}

// State returns the lifecycle state.
func (a *Allocator) State() State {
	return a.state
}

// Capacity returns the arena size in bytes, 0 when not READY.
func (a *Allocator) Capacity() int {
	if a.state != StateReady {
		return 0
	}
	return a.table.Capacity()
}

// BaseOrder returns log2 of the basic block size.
func (a *Allocator) BaseOrder() (int, error) {
	if a.state != StateReady {
		return 0, ErrNotInitialized
	}
	return a.table.baseOrder, nil
}

// TopOrder returns the order of a block spanning the whole arena.
func (a *Allocator) TopOrder() (Order, error) {
	if a.state != StateReady {
		return 0, ErrNotInitialized
	}
	return a.table.TopOrder(), nil
}

// BlockSize returns the size of a block of order k.
func (a *Allocator) BlockSize(k Order) (int, error) {
	if a.state != StateReady {
		return 0, ErrNotInitialized
	}
	if !a.table.validOrder(k) {
		return 0, fmt.Errorf("%w: order %d outside [0, %d]", ErrInvalidArgument, k, a.table.TopOrder())
	}
	return a.table.BlockSize(k), nil
}

// SizeOf returns the block size of the outstanding allocation at addr.
func (a *Allocator) SizeOf(addr Addr) (int, error) {
	if a.state != StateReady {
		return 0, ErrNotInitialized
	}
	_, k, err := a.lookup(addr)
	if err != nil {
		return 0, err
	}
	return a.table.BlockSize(k), nil
}

// Bytes returns the whole block of the outstanding allocation at addr.
func (a *Allocator) Bytes(addr Addr) ([]byte, error) {
	if a.state != StateReady {
		return nil, ErrNotInitialized
	}
	off, k, err := a.lookup(addr)
	if err != nil {
		return nil, err
	}
	end := off + a.table.BlockSize(k)
	return a.arena.Bytes()[off:end:end], nil
}

// FreeCount returns the number of free blocks of order k.
func (a *Allocator) FreeCount(k Order) int {
	if a.state != StateReady || !a.table.validOrder(k) {
		return 0
	}
	return a.free.count(k)
}

// FreeBlocks returns the addresses on the free list of order k, most
// recently freed first.
func (a *Allocator) FreeBlocks(k Order) []Addr {
	if a.state != StateReady || !a.table.validOrder(k) {
		return nil
	}
	offs := a.free.blocks(k)
	out := make([]Addr, len(offs))
	for i, off := range offs {
		out[i] = Addr(off)
	}
	return out
}
