package buddy

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// ============================================================================
// Test Helpers
// ============================================================================

// newTestAllocator creates a READY heap-backed allocator and releases it when
// the test ends.
func newTestAllocator(t testing.TB, basicBlockSize, length int, opts ...Option) *Allocator {
	t.Helper()
	a := New(opts...)
	_, err := a.Init(basicBlockSize, length)
	require.NoError(t, err)
	t.Cleanup(func() {
		if a.State() == StateReady {
			_ = a.Release()
		}
	})
	return a
}

// assertInvariants fails the test if Check reports a violated invariant.
func assertInvariants(t testing.TB, a *Allocator) {
	t.Helper()
	require.NoError(t, a.Check(), "allocator invariants")
}

// mustMalloc allocates size bytes or fails the test.
func mustMalloc(t testing.TB, a *Allocator, size int) Addr {
	t.Helper()
	addr, buf, err := a.Malloc(size)
	require.NoError(t, err, "Malloc(%d)", size)
	require.Len(t, buf, size)
	return addr
}

// freeSnapshot captures the per-order free lists for before/after comparisons.
func freeSnapshot(a *Allocator) [][]Addr {
	top, err := a.TopOrder()
	if err != nil {
		return nil
	}
	out := make([][]Addr, top+1)
	for k := Order(0); k <= top; k++ {
		out[k] = a.FreeBlocks(k)
	}
	return out
}

// stamp fills buf with a byte derived from addr so overlapping blocks are
// detected when the stamp is checked later.
func stamp(buf []byte, addr Addr) {
	b := byte(addr*31 + 7)
	for i := range buf {
		buf[i] = b
	}
}

// stamped reports whether buf still carries the stamp for addr.
func stamped(buf []byte, addr Addr) bool {
	b := byte(addr*31 + 7)
	for _, v := range buf {
		if v != b {
			return false
		}
	}
	return true
}
