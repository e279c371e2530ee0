package mempool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSizeClass(t *testing.T) {
	tests := []struct {
		name     string
		input    int
		expected int
	}{
		{name: "zero size", input: 0, expected: 4096},
		{name: "negative size", input: -1, expected: 4096},
		{name: "small size gets minimum", input: 1, expected: 4096},
		{name: "exactly one step", input: 4096, expected: 4096},
		{name: "just over one step", input: 4097, expected: 8192},
		{name: "full frame", input: 641 * 481, expected: 311296},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, sizeClass(tt.input))
		})
	}
}

func TestGetFloat64_ZeroedAfterReuse(t *testing.T) {
	buf := GetFloat64(100)
	require.Len(t, buf, 100)
	for i := range buf {
		buf[i] = float64(i) + 1
	}
	PutFloat64(buf)

	again := GetFloat64(100)
	require.Len(t, again, 100)
	for i, v := range again {
		require.Zerof(t, v, "element %d not cleared", i)
	}
	PutFloat64(again)
}

func TestGetInt64_LengthAndCapacity(t *testing.T) {
	buf := GetInt64(5000)
	assert.Len(t, buf, 5000)
	assert.Equal(t, 8192, cap(buf))
	PutInt64(buf)
}

func TestPut_IgnoresNilAndForeignSlices(t *testing.T) {
	assert.NotPanics(t, func() {
		PutFloat64(nil)
		PutInt64(nil)
		PutInt64(make([]int64, 10))
	})
	assert.Len(t, GetInt64(10), 10)
}

func TestPool_ConcurrentUse(t *testing.T) {
	var wg sync.WaitGroup
	for g := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 50 {
				n := 1000 + g*100 + i
				a := GetFloat64(n)
				b := GetInt64(n)
				assert.Len(t, a, n)
				assert.Len(t, b, n)
				a[n-1], b[n-1] = 1, 1
				PutFloat64(a)
				PutInt64(b)
			}
		}()
	}
	wg.Wait()
}
