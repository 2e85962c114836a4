package pool

import (
	"sync"
)

// FloatBufferPool implements a pool of float64 slices used for cumulative
// face areas and scratch distance buffers.
type FloatBufferPool struct {
	pool sync.Pool
	size int
}

// NewFloatBufferPool creates a pool of float buffers with the given capacity.
func NewFloatBufferPool(size int) *FloatBufferPool {
	return &FloatBufferPool{
		pool: sync.Pool{
			New: func() interface{} {
				buffer := make([]float64, 0, size)
				return &buffer
			},
		},
		size: size,
	}
}

// Get retrieves a float buffer from the pool or creates a new one.
func (fp *FloatBufferPool) Get() *[]float64 {
	return fp.pool.Get().(*[]float64)
}

// Put returns a float buffer to the pool for reuse.
func (fp *FloatBufferPool) Put(buffer *[]float64) {
	// Reset buffer length but keep capacity
	*buffer = (*buffer)[:0]
	fp.pool.Put(buffer)
}
