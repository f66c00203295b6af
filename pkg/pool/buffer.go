package pool

import "sync"

// FixedBufferPool hands out byte slices of a single size. Copy workers and
// compressors each take one buffer for the duration of their work.
type FixedBufferPool struct {
	size int64
	pool sync.Pool
}

// NewFixedBuffer creates a pool of size-byte buffers. Sizes below 4 KiB are raised to 4 KiB.
func NewFixedBuffer(size int64) *FixedBufferPool {
	size = max(size, minBufferSize)
	return &FixedBufferPool{
		size: size,
		pool: sync.Pool{
			New: func() any {
				b := make([]byte, int(size))
				return &b
			},
		},
	}
}

// Size returns the length of the buffers handed out by Get.
func (fp *FixedBufferPool) Size() int64 { return fp.size }

// Get returns a full-length buffer.
func (fp *FixedBufferPool) Get() *[]byte {
	return fp.pool.Get().(*[]byte)
}

// Put returns a buffer obtained from Get. Buffers of a foreign size are dropped.
func (fp *FixedBufferPool) Put(b *[]byte) {
	if b == nil || int64(cap(*b)) != fp.size {
		return
	}
	*b = (*b)[:fp.size]
	fp.pool.Put(b)
}
