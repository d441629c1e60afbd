package parallel

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFor(t *testing.T) {
	cfg := DefaultConfig()

	var counter int64
	n := 1000

	For(n, func(_ int) {
		atomic.AddInt64(&counter, 1)
	}, cfg)

	if counter != int64(n) {
		t.Errorf("Expected %d, got %d", n, counter)
	}
}

func TestFor_Sequential(t *testing.T) {
	cfg := Config{Enabled: false}

	var counter int64
	For(100, func(_ int) {
		atomic.AddInt64(&counter, 1)
	}, cfg)

	if counter != 100 {
		t.Errorf("Expected 100, got %d", counter)
	}
}

func TestFor_SmallChunk(t *testing.T) {
	// Test that small work units fall back to sequential.
	cfg := DefaultConfig()

	var counter int64
	n := cfg.MinChunkSize - 1

	For(n, func(_ int) {
		atomic.AddInt64(&counter, 1)
	}, cfg)

	if counter != int64(n) {
		t.Errorf("Expected %d, got %d", n, counter)
	}
}

func TestForChunks_CoversRangeOnce(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 4, MinChunkSize: 8}
	n := 1001
	seen := make([]int32, n)

	ForChunks(n, func(start, end int) {
		for i := start; i < end; i++ {
			atomic.AddInt32(&seen[i], 1)
		}
	}, cfg)

	for i, c := range seen {
		if c != 1 {
			t.Fatalf("index %d visited %d times", i, c)
		}
	}
	assert.Equal(t, 251, ChunkSize(n, cfg))
}

func TestWithWorkers(t *testing.T) {
	assert.False(t, WithWorkers(1).Enabled)
	assert.Equal(t, 8, WithWorkers(8).NumWorkers)
	assert.Equal(t, DefaultConfig().NumWorkers, WithWorkers(0).NumWorkers)
}

func TestStream_InOrder(t *testing.T) {
	s := NewStream("test", Config{Enabled: true, NumWorkers: 4, MinChunkSize: 1})
	defer s.Close()

	data := make([]int64, 256)
	s.Launch("fill", len(data), func(i int) { data[i] = int64(i) })
	s.Launch("double", len(data), func(i int) { data[i] *= 2 })

	var order []string
	s.Enqueue("host", func() error {
		order = append(order, "host")
		return nil
	})

	require.NoError(t, s.Synchronize())
	for i, v := range data {
		if v != int64(2*i) {
			t.Fatalf("data[%d] = %d, want %d", i, v, 2*i)
		}
	}
	assert.Equal(t, []string{"host"}, order)
}

func TestStream_PanicBecomesError(t *testing.T) {
	s := NewStream("test", DefaultConfig())
	defer s.Close()

	var ran atomic.Bool
	s.Launch("boom", 10, func(i int) {
		if i == 3 {
			panic("bad index")
		}
	})
	s.Launch("after", 1, func(int) { ran.Store(true) })

	err := s.Synchronize()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.False(t, ran.Load(), "launches after a failure are skipped")

	// The error is cleared by Synchronize.
	s.Launch("ok", 1, func(int) { ran.Store(true) })
	require.NoError(t, s.Synchronize())
	assert.True(t, ran.Load())
}

func TestStream_EnqueueError(t *testing.T) {
	s := NewStream("test", DefaultConfig())
	sentinel := errors.New("device lost")
	s.Enqueue("dispatch", func() error { return sentinel })
	err := s.Close()
	require.ErrorIs(t, err, sentinel)

	s.Enqueue("late", func() error { return nil })
	assert.Error(t, s.Synchronize())
}

func TestStream_EnqueueRacingClose(t *testing.T) {
	for round := 0; round < 50; round++ {
		s := NewStream("test", WithWorkers(1))
		var ran atomic.Int64
		var wg sync.WaitGroup
		for g := 0; g < 8; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < 20; i++ {
					s.Enqueue("count", func() error {
						ran.Add(1)
						return nil
					})
				}
			}()
		}
		_ = s.Close()
		wg.Wait()
		_ = s.Synchronize()
		assert.LessOrEqual(t, ran.Load(), int64(160))
	}
}

func BenchmarkFor(b *testing.B) {
	cfg := DefaultConfig()
	n := 10000

	b.Run("parallel", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			var sum int64
			For(n, func(i int) {
				atomic.AddInt64(&sum, int64(i))
			}, cfg)
		}
	})

	b.Run("sequential", func(b *testing.B) {
		cfgSeq := cfg
		cfgSeq.Enabled = false
		for i := 0; i < b.N; i++ {
			var sum int64
			For(n, func(i int) {
				atomic.AddInt64(&sum, int64(i))
			}, cfgSeq)
		}
	})
}
