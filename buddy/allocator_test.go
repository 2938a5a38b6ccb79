package buddy

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestWorkedExample follows init(8, 64), two 16-byte allocations from one
// split, and the merge back when both are freed.
func TestWorkedExample(t *testing.T) {
	a := New()
	capacity, err := a.Init(8, 64)
	require.NoError(t, err)
	require.Equal(t, 64, capacity)
	defer a.Release()

	addrA, bufA, err := a.Malloc(10)
	require.NoError(t, err)
	assert.Equal(t, Addr(0), addrA)
	assert.Len(t, bufA, 10)
	assert.Equal(t, 16, cap(bufA), "10 bytes round up to a 16-byte block")
	assert.EqualValues(t, 2, a.Stats().Splits, "64 -> 32 -> 16")
	assert.Equal(t, []Addr{16}, a.FreeBlocks(1))
	assert.Equal(t, []Addr{32}, a.FreeBlocks(2))

	addrB := mustMalloc(t, a, 16)
	assert.Equal(t, addrA^16, addrB, "second block is the buddy of the first")
	assert.EqualValues(t, 2, a.Stats().Splits, "no further split")
	assertInvariants(t, a)

	require.NoError(t, a.Free(addrA))
	assert.Equal(t, []Addr{0}, a.FreeBlocks(1), "buddy still allocated, no merge")
	assertInvariants(t, a)

	require.NoError(t, a.Free(addrB))
	assert.Equal(t, 0, a.FreeCount(1))
	// The merged 32-byte block is itself the buddy of the free 32-byte block
	// at 32, so coalescing carries on up to the whole arena.
	assert.Equal(t, 0, a.FreeCount(2))
	assert.Equal(t, []Addr{0}, a.FreeBlocks(3))
	assert.EqualValues(t, 2, a.Stats().Merges)
	assertInvariants(t, a)

	addrC, buf, err := a.Malloc(32)
	require.NoError(t, err)
	assert.Equal(t, Addr(0), addrC)
	assert.Equal(t, 32, cap(buf))
	assertInvariants(t, a)
}

func TestInit_ReturnsPowerOfTwoCapacity(t *testing.T) {
	for _, bbs := range []int{7, 8, 9, 16, 33, 64} {
		for _, length := range []int{64, 65, 100, 127, 128, 1000, 4096, 5000} {
			if bbs > length {
				continue
			}
			a := New()
			capacity, err := a.Init(bbs, length)
			require.NoError(t, err, "Init(%d, %d)", bbs, length)

			assert.GreaterOrEqual(t, capacity, length)
			assert.Zero(t, capacity&(capacity-1), "capacity %d must be a power of two", capacity)
			assert.Less(t, capacity, 2*length, "capacity rounds to the next power of two only")

			top, err := a.TopOrder()
			require.NoError(t, err)
			for k := Order(0); k < top; k++ {
				assert.Zero(t, a.FreeCount(k), "order %d must start empty", k)
			}
			assert.Equal(t, []Addr{0}, a.FreeBlocks(top), "one free block spans the arena")
			assertInvariants(t, a)
			require.NoError(t, a.Release())
		}
	}
}

func TestInit_RejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		bbs    int
		length int
	}{
		{"zero block", 0, 64},
		{"zero length", 8, 0},
		{"negative", -1, -1},
		{"inverted", 128, 64},
		{"block too small for header", 4, 64},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := New()
			capacity, err := a.Init(tt.bbs, tt.length)
			require.ErrorIs(t, err, ErrInvalidArgument)
			assert.Zero(t, capacity)
			assert.Equal(t, StateUninit, a.State())

			_, _, err = a.Malloc(8)
			assert.ErrorIs(t, err, ErrNotInitialized)
		})
	}
}

func TestInit_UnknownBacking(t *testing.T) {
	a := New(WithBacking("tape"))
	capacity, err := a.Init(8, 64)
	require.ErrorIs(t, err, ErrInvalidArgument)
	assert.Zero(t, capacity)
	assert.Equal(t, StateUninit, a.State())
}

func TestMalloc_RejectsBadSizes(t *testing.T) {
	a := newTestAllocator(t, 8, 64)

	for _, size := range []int{0, -1, -64} {
		addr, buf, err := a.Malloc(size)
		require.ErrorIs(t, err, ErrInvalidArgument, "Malloc(%d)", size)
		assert.Equal(t, NilAddr, addr)
		assert.Nil(t, buf)
	}

	addr, buf, err := a.Malloc(65)
	require.ErrorIs(t, err, ErrSizeExceedsCapacity)
	require.ErrorIs(t, err, ErrInvalidArgument)
	assert.Equal(t, NilAddr, addr)
	assert.Nil(t, buf)

	assert.EqualValues(t, 4, a.Stats().BadRequests)
	assert.Equal(t, []Addr{0}, a.FreeBlocks(3), "rejected requests never split")
}

func TestMalloc_OutOfMemory(t *testing.T) {
	a := newTestAllocator(t, 8, 64)

	whole := mustMalloc(t, a, 64)
	assert.Equal(t, Addr(0), whole)

	addr, buf, err := a.Malloc(1)
	require.ErrorIs(t, err, ErrOutOfMemory)
	assert.Equal(t, NilAddr, addr)
	assert.Nil(t, buf)
	assert.EqualValues(t, 1, a.Stats().OutOfMemory)

	require.NoError(t, a.Free(whole))
	mustMalloc(t, a, 1)
	assertInvariants(t, a)
}

func TestMalloc_NoOversizedFallback(t *testing.T) {
	a := newTestAllocator(t, 8, 64)

	mustMalloc(t, a, 32)
	mustMalloc(t, a, 16)
	// 16 bytes are left as one block; a 17-byte request needs 32.
	_, _, err := a.Malloc(17)
	require.ErrorIs(t, err, ErrOutOfMemory)

	addr := mustMalloc(t, a, 16)
	size, err := a.SizeOf(addr)
	require.NoError(t, err)
	assert.Equal(t, 16, size)
}

func TestMalloc_BlockSizeProperties(t *testing.T) {
	a := newTestAllocator(t, 16, 4096)

	outstanding := 0
	for _, size := range []int{1, 15, 16, 17, 31, 100, 255, 256, 257, 1000} {
		addr, buf, err := a.Malloc(size)
		require.NoError(t, err)

		block, err := a.SizeOf(addr)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, block, size)
		assert.Zero(t, block&(block-1), "block %d must be a power of two", block)
		assert.Zero(t, block%16, "block %d must be a multiple of the basic block", block)
		assert.Zero(t, int(addr)%block, "block at %d must be aligned to its size", addr)
		assert.Equal(t, block, cap(buf))

		outstanding += block
		assert.LessOrEqual(t, outstanding, a.Capacity())
		assert.Equal(t, outstanding, a.Stats().BytesInUse)
	}
	assertInvariants(t, a)
}

func TestMalloc_CallerOwnsWholeBlock(t *testing.T) {
	a := newTestAllocator(t, 8, 64)

	addr, buf, err := a.Malloc(16)
	require.NoError(t, err)
	full := buf[:cap(buf)]
	for i := range full {
		full[i] = 0xFF
	}
	// Overwriting the bytes that held the free header must not disturb the lists.
	assertInvariants(t, a)

	other := mustMalloc(t, a, 16)
	assert.Equal(t, Addr(16), other)

	block, err := a.Bytes(addr)
	require.NoError(t, err)
	assert.Equal(t, bytes.Repeat([]byte{0xFF}, 16), block)

	require.NoError(t, a.Free(addr))
	require.NoError(t, a.Free(other))
	assertInvariants(t, a)
	assert.Equal(t, []Addr{0}, a.FreeBlocks(3))
}

func TestFree_ReuseSameAddress(t *testing.T) {
	a := newTestAllocator(t, 8, 1024)

	for _, size := range []int{1, 8, 24, 100, 512, 1024} {
		p := mustMalloc(t, a, size)
		require.NoError(t, a.Free(p))
		q := mustMalloc(t, a, size)
		assert.Equal(t, p, q, "size %d should reuse the freed address", size)
		require.NoError(t, a.Free(q))
		assertInvariants(t, a)
	}
	assert.Zero(t, a.Stats().BytesInUse)
}

func TestFree_InvalidPointersLeaveStateUnchanged(t *testing.T) {
	a := newTestAllocator(t, 8, 64)

	p := mustMalloc(t, a, 16) // 0
	q := mustMalloc(t, a, 8)  // 16
	require.NoError(t, a.Free(q))

	before := freeSnapshot(a)
	statsBefore := a.Stats()

	tests := []struct {
		name string
		addr Addr
	}{
		{"before arena base", -1},
		{"nil sentinel", NilAddr},
		{"past arena end", 64},
		{"far past arena end", 1 << 20},
		{"misaligned", 3},
		{"interior of allocated block", 8},
		{"already free", q},
		{"inside a free block", 40},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := a.Free(tt.addr)
			require.ErrorIs(t, err, ErrInvalidPointer)
			assert.Equal(t, before, freeSnapshot(a))
			assertInvariants(t, a)
		})
	}

	stats := a.Stats()
	assert.Equal(t, statsBefore.BytesInUse, stats.BytesInUse)
	assert.Equal(t, statsBefore.LiveBlocks, stats.LiveBlocks)
	assert.EqualValues(t, len(tests), stats.InvalidFrees)

	// The real block is still freeable after all the rejected calls.
	require.NoError(t, a.Free(p))
	assert.Equal(t, []Addr{0}, a.FreeBlocks(3))
}

func TestFree_DoubleFree(t *testing.T) {
	a := newTestAllocator(t, 8, 64)

	p := mustMalloc(t, a, 8)
	mustMalloc(t, a, 8)
	require.NoError(t, a.Free(p))

	err := a.Free(p)
	require.ErrorIs(t, err, ErrInvalidPointer)
	assert.Contains(t, err.Error(), "already free")
	assertInvariants(t, a)
}

func TestFree_SingleOrderArena(t *testing.T) {
	a := newTestAllocator(t, 16, 16)

	p := mustMalloc(t, a, 1)
	_, _, err := a.Malloc(1)
	require.ErrorIs(t, err, ErrOutOfMemory)

	require.NoError(t, a.Free(p))
	assert.Equal(t, []Addr{0}, a.FreeBlocks(0))
	assertInvariants(t, a)
}

func TestStateMachine(t *testing.T) {
	var a Allocator
	assert.Equal(t, StateUninit, a.State())

	_, _, err := a.Malloc(8)
	require.ErrorIs(t, err, ErrNotInitialized)
	require.ErrorIs(t, a.Free(0), ErrNotInitialized)
	require.ErrorIs(t, a.Release(), ErrNotInitialized)
	require.ErrorIs(t, a.Check(), ErrNotInitialized)
	assert.Zero(t, a.Capacity())

	capacity, err := a.Init(8, 64)
	require.NoError(t, err)
	assert.Equal(t, 64, capacity)
	assert.Equal(t, StateReady, a.State())

	_, err = a.Init(8, 64)
	require.ErrorIs(t, err, ErrAlreadyInitialized)

	p := mustMalloc(t, &a, 8)
	require.NoError(t, a.Release())
	assert.Equal(t, StateUninit, a.State())

	_, _, err = a.Malloc(8)
	require.ErrorIs(t, err, ErrNotInitialized)
	require.ErrorIs(t, a.Free(p), ErrNotInitialized)
	require.ErrorIs(t, a.Release(), ErrNotInitialized)
	_, err = a.Bytes(p)
	require.ErrorIs(t, err, ErrNotInitialized)
	assert.Equal(t, Stats{State: StateUninit}, a.Stats())

	// Release returns to UNINIT, so a fresh arena can be set up.
	capacity, err = a.Init(16, 256)
	require.NoError(t, err)
	assert.Equal(t, 256, capacity)
	assert.Equal(t, []Addr{0}, a.FreeBlocks(4))
	require.NoError(t, a.Release())
}

func TestIndependentInstances(t *testing.T) {
	a := newTestAllocator(t, 8, 64)
	b := newTestAllocator(t, 8, 64)

	pa := mustMalloc(t, a, 64)
	pb := mustMalloc(t, b, 64)
	assert.Equal(t, pa, pb, "each instance owns its own arena")

	bufA, err := a.Bytes(pa)
	require.NoError(t, err)
	bufB, err := b.Bytes(pb)
	require.NoError(t, err)
	bufA[0] = 1
	bufB[0] = 2
	assert.Equal(t, byte(1), bufA[0])

	require.NoError(t, a.Free(pa))
	_, _, err = b.Malloc(1)
	require.ErrorIs(t, err, ErrOutOfMemory, "freeing in one instance does not affect the other")
}

func TestUseAfterFreeDetected(t *testing.T) {
	a := newTestAllocator(t, 8, 64)

	p, buf, err := a.Malloc(16)
	require.NoError(t, err)
	mustMalloc(t, a, 16)
	require.NoError(t, a.Free(p))

	// Write through the stale slice into what is now a free block header.
	buf[0] = 0x00
	require.ErrorIs(t, a.Check(), ErrCorrupt)

	_, _, err = a.Malloc(16)
	require.ErrorIs(t, err, ErrCorrupt)
}

func TestBlocksTileArena(t *testing.T) {
	a := newTestAllocator(t, 8, 64)

	mustMalloc(t, a, 10) // 0..16
	mustMalloc(t, a, 8)  // 16..24

	blocks, err := a.Blocks()
	require.NoError(t, err)
	assert.Equal(t, []Block{
		{Addr: 0, Order: 1, Size: 16, Free: false},
		{Addr: 16, Order: 0, Size: 8, Free: false},
		{Addr: 24, Order: 0, Size: 8, Free: true},
		{Addr: 32, Order: 2, Size: 32, Free: true},
	}, blocks)
}

func TestStatsSnapshot(t *testing.T) {
	a := newTestAllocator(t, 8, 64)

	p := mustMalloc(t, a, 8)
	mustMalloc(t, a, 16)

	s := a.Stats()
	assert.Equal(t, StateReady, s.State)
	assert.Equal(t, 64, s.Capacity)
	assert.Equal(t, 3, s.BaseOrder)
	assert.Equal(t, Order(3), s.TopOrder)
	assert.Equal(t, 2, s.LiveBlocks)
	assert.Equal(t, 24, s.BytesInUse)
	assert.Equal(t, 40, s.BytesFree)
	assert.Equal(t, 32, s.LargestFree)
	assert.Equal(t, []int{1, 0, 1, 0}, s.FreeByOrder)
	assert.InDelta(t, 0.2, s.Fragmentation(), 1e-9)
	assert.EqualValues(t, 2, s.MallocCalls)

	require.NoError(t, a.Free(p))
	s = a.Stats()
	assert.EqualValues(t, 1, s.FreeCalls)
	assert.Equal(t, 16, s.BytesInUse)
}

func TestBlockSizeAccessors(t *testing.T) {
	a := newTestAllocator(t, 8, 64)

	size, err := a.BlockSize(2)
	require.NoError(t, err)
	assert.Equal(t, 32, size)

	_, err = a.BlockSize(4)
	require.ErrorIs(t, err, ErrInvalidArgument)

	base, err := a.BaseOrder()
	require.NoError(t, err)
	assert.Equal(t, 3, base)

	assert.Nil(t, a.FreeBlocks(9))
	assert.Zero(t, a.FreeCount(-1))
}

func TestDebugLogging(t *testing.T) {
	var out bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&out, &slog.HandlerOptions{Level: slog.LevelDebug}))

	a := newTestAllocator(t, 8, 64, WithLogger(logger))
	p := mustMalloc(t, a, 10)
	require.NoError(t, a.Free(p))
	_, _, err := a.Malloc(128)
	require.Error(t, err)

	logs := out.String()
	assert.Contains(t, logs, "buddy init")
	assert.Contains(t, logs, "buddy malloc")
	assert.Contains(t, logs, "splits=2")
	assert.Contains(t, logs, "buddy free")
}

func TestState_TextRoundTrip(t *testing.T) {
	for _, s := range []State{StateUninit, StateReady} {
		text, err := s.MarshalText()
		require.NoError(t, err)
		var got State
		require.NoError(t, got.UnmarshalText(text))
		assert.Equal(t, s, got)
	}
	var s State
	require.ErrorIs(t, s.UnmarshalText([]byte("BUSY")), ErrInvalidArgument)
	assert.Equal(t, "State(7)", State(7).String())
}
