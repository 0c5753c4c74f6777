// Package bufpool provides reusable byte buffers sized for the relay's
// write path, where a ClusterHead (at most 16 bytes) is almost always
// immediately followed by writing its ClusterBody: batching the two
// into one buffer avoids two separate syscalls per cluster.
//
// Adapted from alxayo-rtmp-go/internal/bufpool: same sync.Pool-per-size-class
// design, re-sized for this relay's write-combining use instead of RTMP
// chunk reassembly.
package bufpool

import "sync"

var sizeClasses = []int{256, 4096, 65536}

type classPool struct {
	size int
	pool *sync.Pool
}

// Pool hands out byte slices from a small number of fixed size
// classes, to keep GC churn down on the write-combining hot path.
type Pool struct {
	pools []classPool
}

var defaultPool = New()

// Get acquires a buffer from the package-level default pool.
func Get(size int) []byte { return defaultPool.Get(size) }

// Put releases a buffer back to the package-level default pool.
func Put(buf []byte) { defaultPool.Put(buf) }

// New builds a pool with this package's size classes.
func New() *Pool {
	pools := make([]classPool, len(sizeClasses))
	for i, classSize := range sizeClasses {
		size := classSize
		pools[i] = classPool{
			size: size,
			pool: &sync.Pool{
				New: func() any { return make([]byte, size) },
			},
		}
	}
	return &Pool{pools: pools}
}

// Get returns a zero-length, at-least-size-capacity slice from the
// smallest size class that fits. Requests larger than the largest size
// class allocate a fresh, unpooled slice.
func (p *Pool) Get(size int) []byte {
	if p == nil || size <= 0 {
		return nil
	}
	for i := range p.pools {
		class := &p.pools[i]
		if size <= class.size {
			buf := class.pool.Get().([]byte)
			return buf[:0]
		}
	}
	return make([]byte, 0, size)
}

// Put returns buf to the pool if its capacity matches a size class;
// otherwise it's discarded. buf is zeroed first so no caller's data
// leaks to the next Get.
func (p *Pool) Put(buf []byte) {
	if p == nil || buf == nil {
		return
	}
	capBuf := cap(buf)
	for i := range p.pools {
		class := &p.pools[i]
		if capBuf == class.size {
			full := buf[:class.size]
			clear(full)
			class.pool.Put(full)
			return
		}
	}
}
