// Package mempool keeps sized pools of the scratch buffers used by the
// preprocessing filters, so that a batch run does not reallocate full-frame
// integral images for every photograph.
package mempool

import (
	"sync"
)

var (
	float64Pools sync.Map // key: size class (int), value: *sync.Pool
	int64Pools   sync.Map // key: size class (int), value: *sync.Pool
)

// sizeClass rounds n up to the next multiple of 4096 elements.
func sizeClass(n int) int {
	const step = 4096
	if n <= step {
		return step
	}
	return (n + step - 1) / step * step
}

func poolFor[T any](pools *sync.Map, cls int) *sync.Pool {
	pAny, _ := pools.LoadOrStore(cls, &sync.Pool{New: func() any { return make([]T, cls) }})
	return pAny.(*sync.Pool)
}

func get[T any](pools *sync.Map, n int) []T {
	cls := sizeClass(n)
	buf, ok := poolFor[T](pools, cls).Get().([]T)
	if !ok || cap(buf) < cls {
		buf = make([]T, cls)
	}
	buf = buf[:n]
	clear(buf)
	return buf
}

func put[T any](pools *sync.Map, buf []T) {
	if buf == nil {
		return
	}
	cls := sizeClass(cap(buf))
	if cap(buf) != cls {
		// foreign slice whose capacity is not a class boundary
		return
	}
	poolFor[T](pools, cls).Put(buf[:cap(buf)]) //nolint:staticcheck
}

// GetFloat64 returns a zeroed []float64 of length n.
// The caller must return it via PutFloat64 when done.
func GetFloat64(n int) []float64 { return get[float64](&float64Pools, n) }

// PutFloat64 returns a buffer to the pool. It is safe to pass a nil slice.
func PutFloat64(buf []float64) { put(&float64Pools, buf) }

// GetInt64 returns a zeroed []int64 of length n.
// The caller must return it via PutInt64 when done.
func GetInt64(n int) []int64 { return get[int64](&int64Pools, n) }

// PutInt64 returns a buffer to the pool. It is safe to pass a nil slice.
func PutInt64(buf []int64) { put(&int64Pools, buf) }
