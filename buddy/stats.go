package buddy

// Stats is a snapshot of allocator usage and counters.
type Stats struct {
	State     State `json:"state"`
	Capacity  int   `json:"capacity"`
	BaseOrder int   `json:"base_order"`
	TopOrder  Order `json:"top_order"`

	LiveBlocks  int   `json:"live_blocks"`
	BytesInUse  int   `json:"bytes_in_use"` // at block granularity
	BytesFree   int   `json:"bytes_free"`
	LargestFree int   `json:"largest_free"`
	FreeByOrder []int `json:"free_by_order"` // free block count per order

	MallocCalls  uint64 `json:"malloc_calls"`
	FreeCalls    uint64 `json:"free_calls"`
	Splits       uint64 `json:"splits"`
	Merges       uint64 `json:"merges"`
	OutOfMemory  uint64 `json:"out_of_memory"`
	BadRequests  uint64 `json:"bad_requests"`
	InvalidFrees uint64 `json:"invalid_frees"`
}

// Fragmentation returns 1 - largest free block / total free bytes, 0 when
// nothing is free.
func (s Stats) Fragmentation() float64 {
	if s.BytesFree == 0 {
		return 0
	}
	return 1 - float64(s.LargestFree)/float64(s.BytesFree)
}

// Stats returns a snapshot. Outside READY only State is set.
func (a *Allocator) Stats() Stats {
	if a.state != StateReady {
		return Stats{State: a.state}
	}
	byOrder := make([]int, a.table.NumOrders())
	copy(byOrder, a.free.counts)
	return Stats{
		State:        a.state,
		Capacity:     a.table.Capacity(),
		BaseOrder:    a.table.baseOrder,
		TopOrder:     a.table.TopOrder(),
		LiveBlocks:   len(a.live),
		BytesInUse:   a.inUse,
		BytesFree:    a.free.freeBytes(),
		LargestFree:  a.free.largest(),
		FreeByOrder:  byOrder,
		MallocCalls:  a.stats.MallocCalls,
		FreeCalls:    a.stats.FreeCalls,
		Splits:       a.stats.Splits,
		Merges:       a.stats.Merges,
		OutOfMemory:  a.stats.OutOfMemory,
		BadRequests:  a.stats.BadRequests,
		InvalidFrees: a.stats.InvalidFrees,
	}
}
