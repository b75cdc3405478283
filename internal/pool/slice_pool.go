package pool

import "sync"

// Slice pools for efficient reuse of the scratch slices a block decode pass
// needs: int64 columns (ids, memids, delta accumulators) and uint32 columns
// (tag key/value string-table indices).
var (
	int64SlicePool = sync.Pool{
		New: func() any { return &[]int64{} },
	}
	uint32SlicePool = sync.Pool{
		New: func() any { return &[]uint32{} },
	}
)

// GetInt64Slice retrieves and resizes an int64 slice from the pool.
//
// The returned slice will have the exact length specified by the size parameter.
// If the pooled slice has insufficient capacity, a new slice will be allocated.
// The caller must call the returned cleanup function to return the slice to the pool.
//
// Example:
//
//	refs, cleanup := pool.GetInt64Slice(1000)
//	defer cleanup()
//	// Use refs slice...
func GetInt64Slice(size int) ([]int64, func()) {
	ptr, _ := int64SlicePool.Get().(*[]int64)
	slice := (*ptr)[:0]

	if cap(slice) < size {
		slice = make([]int64, size)
		*ptr = slice
	} else {
		slice = slice[:size]
		*ptr = slice
	}

	return slice, func() { int64SlicePool.Put(ptr) }
}

// GetUint32Slice retrieves and resizes a uint32 slice from the pool.
//
// Used for the parallel tag key-index / value-index arrays read from Node,
// Way and Relation messages.
func GetUint32Slice(size int) ([]uint32, func()) {
	ptr, _ := uint32SlicePool.Get().(*[]uint32)
	slice := (*ptr)[:0]

	if cap(slice) < size {
		slice = make([]uint32, size)
		*ptr = slice
	} else {
		slice = slice[:size]
		*ptr = slice
	}

	return slice, func() { uint32SlicePool.Put(ptr) }
}
