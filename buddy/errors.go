package buddy

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument indicates a non-positive or inverted size parameter.
	ErrInvalidArgument = errors.New("buddy: invalid argument")

	// ErrSizeExceedsCapacity indicates a request larger than the whole arena.
	// It matches ErrInvalidArgument under errors.Is.
	ErrSizeExceedsCapacity = fmt.Errorf("%w: size exceeds arena capacity", ErrInvalidArgument)

	// ErrOutOfMemory indicates that no free block of sufficient order exists.
	ErrOutOfMemory = errors.New("buddy: out of memory")

	// ErrInvalidPointer indicates a free of an address that is outside the arena,
	// misaligned, interior to a block, or already free.
	ErrInvalidPointer = errors.New("buddy: invalid pointer")

	// ErrNotInitialized indicates an operation outside the READY state,
	// either before Init or after Release.
	ErrNotInitialized = errors.New("buddy: allocator not initialized")

	// ErrAlreadyInitialized indicates Init on an allocator that is already READY.
	ErrAlreadyInitialized = errors.New("buddy: allocator already initialized")

	// ErrCorrupt indicates that free-list metadata inside the arena no longer
	// matches the allocator's index, usually a write into a freed block.
	ErrCorrupt = errors.New("buddy: free list corrupted")
)
