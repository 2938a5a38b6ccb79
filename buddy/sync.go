package buddy

import "sync"

// SyncAllocator is an Allocator behind one mutex. Every operation holds the
// lock for its whole duration, because a split or a multi-level merge must
// never be observed half done.
type SyncAllocator struct {
	mu sync.Mutex
	a  *Allocator
}

// NewSync creates and initializes a SyncAllocator. Init runs here, before the
// allocator can be shared. It returns the allocator and the arena capacity.
func NewSync(basicBlockSize, length int, opts ...Option) (*SyncAllocator, int, error) {
	a := New(opts...)
	capacity, err := a.Init(basicBlockSize, length)
	if err != nil {
		return nil, 0, err
	}
	return &SyncAllocator{a: a}, capacity, nil
}

// Malloc is Allocator.Malloc under the lock.
func (s *SyncAllocator) Malloc(size int) (Addr, []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.a.Malloc(size)
}

// Free is Allocator.Free under the lock.
func (s *SyncAllocator) Free(addr Addr) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.a.Free(addr)
}

// Release is Allocator.Release under the lock.
func (s *SyncAllocator) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.a.Release()
}

// Capacity is Allocator.Capacity under the lock.
func (s *SyncAllocator) Capacity() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.a.Capacity()
}

// Stats is Allocator.Stats under the lock.
func (s *SyncAllocator) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.a.Stats()
}

// Check is Allocator.Check under the lock.
func (s *SyncAllocator) Check() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.a.Check()
}

// Do runs fn with exclusive access to the underlying allocator, for callers
// that need several operations to appear atomic.
func (s *SyncAllocator) Do(fn func(a *Allocator) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.a)
}
