package buddy

import (
	"fmt"

	"github.com/joshuapare/buddykit/internal/format"
	"github.com/joshuapare/buddykit/internal/mmap"
)

// arena is the single contiguous buffer every block lives in. It is owned by
// exactly one Allocator and released exactly once.
type arena struct {
	buf     []byte
	backing Backing
	unmap   func() error // nil for heap-backed arenas
}

// newArena allocates size bytes with the requested backing. size must be a
// power of two.
func newArena(size int, backing Backing) (*arena, error) {
	if !format.IsPow2(size) {
		return nil, fmt.Errorf("%w: arena size %d is not a power of two", ErrInvalidArgument, size)
	}
	switch backing {
	case "", BackingHeap:
		return &arena{buf: make([]byte, size), backing: BackingHeap}, nil
	case BackingMmap:
		if !mmap.Supported() {
			return &arena{buf: make([]byte, size), backing: BackingHeap}, nil
		}
		buf, unmap, err := mmap.Anon(size)
		if err != nil {
			return nil, err
		}
		return &arena{buf: buf, backing: BackingMmap, unmap: unmap}, nil
	default:
		return nil, fmt.Errorf("%w: unknown arena backing %q", ErrInvalidArgument, backing)
	}
}

// Bytes returns the arena memory, or nil once released.
func (a *arena) Bytes() []byte {
	return a.buf
}

// Len returns the arena size in bytes.
func (a *arena) Len() int {
	return len(a.buf)
}

// Release frees the arena memory. A second call is a no-op.
func (a *arena) Release() error {
	if a.buf == nil {
		return nil
	}
	a.buf = nil
	if a.unmap == nil {
		return nil
	}
	unmap := a.unmap
	a.unmap = nil
	return unmap()
}
