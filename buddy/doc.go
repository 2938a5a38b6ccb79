// Package buddy provides a fixed-pool buddy-system allocator over one
// contiguous byte arena.
//
// # Overview
//
// The arena is a power-of-two number of bytes. Every block is a power-of-two
// multiple of the basic block size and is aligned to its own size, so each
// block has exactly one buddy: the block it was split from shares its parent
// with it, and the two differ only in one bit of their offset.
//
// # Allocator Interface
//
//   - Init(basicBlockSize, length): compute orders, allocate the arena, seed one free block
//   - Malloc(size): round up to an order, split a larger block if needed
//   - Free(addr): push the block back and merge with free buddies to a fixed point
//   - Release(): drop the free lists and the arena
//
// # Usage Example
//
//	a := buddy.New()
//	capacity, err := a.Init(8, 64) // capacity == 64
//	if err != nil {
//	    return err
//	}
//	defer a.Release()
//
//	addr, buf, err := a.Malloc(10) // 16-byte block, 64 -> 32 -> 16
//	if err != nil {
//	    return err
//	}
//	copy(buf, "hello")
//
//	err = a.Free(addr)
//
// # Orders
//
// With a basic block of 8 bytes and a 64-byte arena:
//
//	Order 0:  8 bytes
//	Order 1: 16 bytes
//	Order 2: 32 bytes
//	Order 3: 64 bytes (the whole arena)
//
// # Free Block Headers
//
// A free block carries a 6-byte header (tag, order, next link) at its start.
// Once the block is handed out the header bytes belong to the caller, which is
// why the basic block size must exceed the header size. Membership and back
// links are kept in an index beside the arena, so merging never trusts bytes
// a caller may have written.
//
// # Addresses
//
// Addr values are byte offsets from the arena base. NilAddr is returned with
// every Malloc error. Free rejects addresses that are outside the arena,
// misaligned, interior to a block, or already free with ErrInvalidPointer and
// leaves the allocator unchanged.
//
// # Thread Safety
//
// Allocator instances are not thread-safe. Callers must synchronize access
// externally or use SyncAllocator, which holds one mutex per operation.
//
// # Logging
//
// Debug records go to the logger set with WithLogger. Without one, setting
// BUDDY_LOG_ALLOC in the environment sends them to stderr.
package buddy
