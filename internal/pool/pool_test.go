package pool

import (
	"sync"
	"testing"
)

func TestGetPut_Length(t *testing.T) {
	tests := []struct {
		name string
		size int
	}{
		{"0B", 0},
		{"1B", 1},
		{"256B", 256},
		{"257B", 257},
		{"3000B", 3000},
		{"64K", 65536},
		{"1M+1", 1<<20 + 1},
		{"16M", MaxSize},
		{"32M", 2 * MaxSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := Get(tt.size)
			if len(b) != tt.size {
				t.Errorf("Get(%d): len = %d, want %d", tt.size, len(b), tt.size)
			}
			Put(b)
		})
	}
}

func TestGet_Capacity(t *testing.T) {
	tests := []struct {
		size   int
		minCap int
	}{
		{1, 256},
		{256, 256},
		{257, 512},
		{1000, 1024},
		{1025, 2048},
		{70000, 131072},
	}
	for _, tt := range tests {
		b := Get(tt.size)
		if cap(b) < tt.minCap {
			t.Errorf("Get(%d): cap = %d, want >= %d", tt.size, cap(b), tt.minCap)
		}
		Put(b)
	}
}

func TestClassFor(t *testing.T) {
	tests := []struct {
		size, want int
	}{
		{0, 0},
		{256, 0},
		{257, 1},
		{512, 1},
		{513, 2},
		{MaxSize, maxClassBits - minClassBits},
		{MaxSize + 1, -1},
	}
	for _, tt := range tests {
		if got := classFor(tt.size); got != tt.want {
			t.Errorf("classFor(%d) = %d, want %d", tt.size, got, tt.want)
		}
	}
}

func TestClassOf(t *testing.T) {
	tests := []struct {
		cap, want int
	}{
		{0, -1},
		{255, -1},
		{256, 0},
		{511, 0},
		{512, 1},
		{MaxSize, maxClassBits - minClassBits},
		{MaxSize + 1, -1},
	}
	for _, tt := range tests {
		if got := classOf(tt.cap); got != tt.want {
			t.Errorf("classOf(%d) = %d, want %d", tt.cap, got, tt.want)
		}
	}
}

func TestPut_ForeignSlices(t *testing.T) {
	// Odd capacities must only serve requests they can hold.
	Put(make([]byte, 700))
	for i := 0; i < 4; i++ {
		b := Get(512)
		if len(b) != 512 || cap(b) < 512 {
			t.Fatalf("Get(512): len %d cap %d", len(b), cap(b))
		}
	}
	Put(nil)
	Put(make([]byte, 10))
}

func TestGetZeroed(t *testing.T) {
	b := Get(1024)
	for i := range b {
		b[i] = 0xab
	}
	Put(b)
	z := GetZeroed(1024)
	for i, v := range z {
		if v != 0 {
			t.Fatalf("GetZeroed: byte %d = %#x", i, v)
		}
	}
	Put(z)
}

func TestConcurrency(t *testing.T) {
	const goroutines = 32
	const iterations = 100

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for g := 0; g < goroutines; g++ {
		go func() {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				for _, size := range []int{128, 512, 2048, 8192, 32768, 131072} {
					b := Get(size)
					if len(b) != size {
						t.Errorf("concurrent Get(%d): len = %d", size, len(b))
						return
					}
					for j := range b {
						b[j] = byte(j)
					}
					Put(b)
				}
			}
		}()
	}
	wg.Wait()
}

func BenchmarkGet(b *testing.B) {
	for _, size := range []int{256, 4096, 65536, 1 << 20} {
		b.Run("", func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				Put(Get(size))
			}
		})
	}
}
