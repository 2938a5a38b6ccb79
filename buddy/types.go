package buddy

import "fmt"

// Order is a block's exponent relative to the base order: a block of order k
// spans 1<<(k+baseOrder) bytes.
type Order int

// Addr is a block address expressed as a byte offset from the arena base.
type Addr int

// NilAddr is returned by Malloc when no block could be handed out.
const NilAddr Addr = -1

// State is the allocator lifecycle state.
type State uint8

const (
	// StateUninit is the zero state, before Init and after Release.
	StateUninit State = iota
	// StateReady is the only state in which Malloc and Free are valid.
	StateReady
)

func (s State) String() string {
	switch s {
	case StateUninit:
		return "UNINIT"
	case StateReady:
		return "READY"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// Block describes one block of the arena as seen by Allocator.Blocks.
type Block struct {
	Addr  Addr  `json:"addr"`
	Order Order `json:"order"`
	Size  int   `json:"size"`
	Free  bool  `json:"free"`
}

// BlockAllocator is the operation set shared by Allocator and SyncAllocator.
//
// Implementations:
//   - Allocator: single-threaded core, callers serialize access
//   - SyncAllocator: the same core behind one mutex
type BlockAllocator interface {
	// Malloc hands out a block of at least size bytes.
	// Returns the block address, the caller-owned bytes, and any error.
	Malloc(size int) (Addr, []byte, error)

	// Free returns a block obtained from Malloc and coalesces it with its
	// free buddies.
	Free(addr Addr) error

	// Capacity returns the arena size in bytes.
	Capacity() int
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name written by MarshalText.
func (s *State) UnmarshalText(text []byte) error {
	switch string(text) {
	case "UNINIT":
		*s = StateUninit
	case "READY":
		*s = StateReady
	default:
		return fmt.Errorf("%w: unknown state %q", ErrInvalidArgument, text)
	}
	return nil
}
