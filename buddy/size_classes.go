package buddy

import (
	"fmt"

	"github.com/joshuapare/buddykit/internal/format"
)

const (
	// MaxArenaOrder caps the arena at 1 TiB.
	MaxArenaOrder = 40

	// maxOrderSpan is the largest number of orders above the base order. Free
	// links store a 32-bit basic-block index, so an arena holds at most 2^31
	// basic blocks.
	maxOrderSpan = 31
)

// sizeClassTable derives the base and max orders that index the free lists.
type sizeClassTable struct {
	baseOrder int // ceil(log2(basicBlockSize))
	maxOrder  int // ceil(log2(length))
}

// newSizeClassTable computes the orders for a basic block size and arena length.
func newSizeClassTable(basicBlockSize, length int) (*sizeClassTable, error) {
	switch {
	case basicBlockSize <= 0:
		return nil, fmt.Errorf("%w: basic block size must be positive, got %d",
			ErrInvalidArgument, basicBlockSize)
	case length <= 0:
		return nil, fmt.Errorf("%w: length must be positive, got %d", ErrInvalidArgument, length)
	case basicBlockSize > length:
		return nil, fmt.Errorf("%w: basic block size %d exceeds length %d",
			ErrInvalidArgument, basicBlockSize, length)
	case basicBlockSize <= format.FreeHeaderSize:
		return nil, fmt.Errorf("%w: basic block size %d must exceed the %d-byte free header",
			ErrInvalidArgument, basicBlockSize, format.FreeHeaderSize)
	}

	t := &sizeClassTable{
		baseOrder: format.Log2Ceil(basicBlockSize),
		maxOrder:  format.Log2Ceil(length),
	}
	if t.maxOrder > MaxArenaOrder {
		return nil, fmt.Errorf("%w: length %d exceeds the 2^%d arena limit",
			ErrInvalidArgument, length, MaxArenaOrder)
	}
	if t.maxOrder-t.baseOrder > maxOrderSpan {
		return nil, fmt.Errorf("%w: arena of 2^%d bytes holds more than 2^%d basic blocks of 2^%d bytes",
			ErrInvalidArgument, t.maxOrder, maxOrderSpan, t.baseOrder)
	}
	return t, nil
}

// Capacity returns the arena size, 1<<maxOrder.
func (t *sizeClassTable) Capacity() int {
	return 1 << t.maxOrder
}

// NumOrders returns the number of free lists.
func (t *sizeClassTable) NumOrders() int {
	return t.maxOrder - t.baseOrder + 1
}

// TopOrder returns the order of a block spanning the whole arena.
func (t *sizeClassTable) TopOrder() Order {
	return Order(t.maxOrder - t.baseOrder)
}

// BlockSize returns the size in bytes of a block of order k.
func (t *sizeClassTable) BlockSize(k Order) int {
	return 1 << (int(k) + t.baseOrder)
}

// MinBlockSize returns the size of an order-0 block.
func (t *sizeClassTable) MinBlockSize() int {
	return 1 << t.baseOrder
}

// OrderFor returns the smallest order whose blocks hold size bytes.
// size must be positive.
func (t *sizeClassTable) OrderFor(size int) Order {
	k := format.Log2Ceil(size)
	if k < t.baseOrder {
		k = t.baseOrder
	}
	return Order(k - t.baseOrder)
}

// validOrder reports whether k indexes a free list.
func (t *sizeClassTable) validOrder(k Order) bool {
	return k >= 0 && k <= t.TopOrder()
}

// String returns a human-readable description of the table.
func (t *sizeClassTable) String() string {
	return fmt.Sprintf("base=%dB max=%dB orders=%d", t.MinBlockSize(), t.Capacity(), t.NumOrders())
}
