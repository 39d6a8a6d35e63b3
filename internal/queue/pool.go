package queue

import "sync"

// bufferSizes are the size buckets the pool serves, a fixed-bucket
// sync.Pool design: a request is rounded up to the smallest bucket
// that fits it.
var bufferSizes = []int{4 * 1024, 16 * 1024, 32 * 1024, 64 * 1024}

// BufferPool hands out byte slices for bulk-transfer and message
// payload buffers so the hot path (one allocation per USB transfer)
// doesn't hit the allocator once steady state is reached. Buffers are
// "loaned": the caller returns the slice via PutBuffer, which files it
// back into the bucket whose size equals its capacity.
type BufferPool struct {
	pools [len(bufferSizes)]sync.Pool
}

// NewBufferPool constructs a pool with one sync.Pool per size bucket.
func NewBufferPool() *BufferPool {
	p := &BufferPool{}
	for i, size := range bufferSizes {
		size := size
		p.pools[i].New = func() any {
			b := make([]byte, size)
			return &b
		}
	}
	return p
}

func bucketFor(size int) int {
	for i, s := range bufferSizes {
		if size <= s {
			return i
		}
	}
	return -1
}

// GetBuffer returns a buffer with capacity >= size, sliced to size.
// If size exceeds the largest bucket, a one-off slice is allocated
// outside the pool (returning it to PutBuffer is then a no-op).
func (p *BufferPool) GetBuffer(size int) []byte {
	idx := bucketFor(size)
	if idx < 0 {
		return make([]byte, size)
	}
	buf := p.pools[idx].Get().(*[]byte)
	return (*buf)[:size]
}

// PutBuffer returns a buffer previously obtained from GetBuffer. Buffers
// whose capacity doesn't match a bucket exactly (the oversize case) are
// dropped for the GC to reclaim.
func (p *BufferPool) PutBuffer(buf []byte) {
	c := cap(buf)
	for i, size := range bufferSizes {
		if c == size {
			full := buf[:size]
			p.pools[i].Put(&full)
			return
		}
	}
}
