package parallel

import (
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
)

// =============================================================================
// WorkerPool Tests
// =============================================================================

func TestWorkerPool_Create(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Close()

	if pool.Workers() != 4 {
		t.Errorf("Workers() = %d, want 4", pool.Workers())
	}
	if !pool.IsRunning() {
		t.Error("pool should be running after creation")
	}
}

func TestWorkerPool_DefaultWorkers(t *testing.T) {
	for _, n := range []int{0, -5} {
		pool := NewWorkerPool(n)
		if got, want := pool.Workers(), runtime.GOMAXPROCS(0); got != want {
			t.Errorf("NewWorkerPool(%d).Workers() = %d, want %d", n, got, want)
		}
		pool.Close()
	}
}

func TestWorkerPool_ExecuteAll(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Close()

	var counter atomic.Int64
	work := make([]func(), 100)
	for i := range work {
		work[i] = func() { counter.Add(1) }
	}

	pool.ExecuteAll(work)

	if counter.Load() != 100 {
		t.Errorf("counter = %d, want 100", counter.Load())
	}
}

func TestWorkerPool_ExecuteAllIsBarrier(t *testing.T) {
	pool := NewWorkerPool(3)
	defer pool.Close()

	out := make([]int, 64)
	for round := 1; round <= 5; round++ {
		work := make([]func(), len(out))
		for i := range work {
			work[i] = func() { out[i] = round }
		}
		pool.ExecuteAll(work)
		for i, v := range out {
			if v != round {
				t.Fatalf("round %d: out[%d] = %d before barrier released", round, i, v)
			}
		}
	}
}

func TestWorkerPool_ExecuteAllEmpty(t *testing.T) {
	pool := NewWorkerPool(2)
	defer pool.Close()
	pool.ExecuteAll(nil)
	pool.ExecuteAll([]func(){})
}

func TestWorkerPool_ExecuteAllAfterClose(t *testing.T) {
	pool := NewWorkerPool(2)
	pool.Close()

	ran := 0
	pool.ExecuteAll([]func(){func() { ran++ }, func() { ran++ }})
	if ran != 2 {
		t.Errorf("closed pool ran %d items, want 2", ran)
	}
}

func TestWorkerPool_CloseIdempotent(t *testing.T) {
	pool := NewWorkerPool(2)
	pool.Close()
	pool.Close()
	if pool.IsRunning() {
		t.Error("pool should not be running after Close")
	}
}

func TestWorkerPool_ConcurrentBatches(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Close()

	var total atomic.Int64
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			work := make([]func(), 25)
			for i := range work {
				work[i] = func() { total.Add(1) }
			}
			pool.ExecuteAll(work)
		}()
	}
	wg.Wait()

	if total.Load() != 200 {
		t.Errorf("total = %d, want 200", total.Load())
	}
}

// =============================================================================
// Row band Tests
// =============================================================================

func TestBands_CoverEveryRowOnce(t *testing.T) {
	tests := []struct {
		height, n int
	}{
		{1, 8},
		{16, 1},
		{17, 4},
		{100, 8},
		{255, 16},
		{3, 0},
	}
	for _, tt := range tests {
		bands := Bands(tt.height, tt.n)
		seen := make([]int, tt.height)
		next := 0
		for _, b := range bands {
			if b.Y0 != next {
				t.Errorf("Bands(%d,%d): band starts at %d, want %d", tt.height, tt.n, b.Y0, next)
			}
			if b.Y1 <= b.Y0 {
				t.Errorf("Bands(%d,%d): empty band %+v", tt.height, tt.n, b)
			}
			for y := b.Y0; y < b.Y1; y++ {
				seen[y]++
			}
			next = b.Y1
		}
		for y, c := range seen {
			if c != 1 {
				t.Errorf("Bands(%d,%d): row %d covered %d times", tt.height, tt.n, y, c)
			}
		}
	}
}

func TestBands_Empty(t *testing.T) {
	if got := Bands(0, 4); got != nil {
		t.Errorf("Bands(0,4) = %v, want nil", got)
	}
}

func TestForRows(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Close()

	for _, p := range []*WorkerPool{nil, pool} {
		rows := make([]int32, 97)
		ForRows(p, len(rows), func(y0, y1 int) {
			for y := y0; y < y1; y++ {
				atomic.AddInt32(&rows[y], 1)
			}
		})
		for y, c := range rows {
			if c != 1 {
				t.Errorf("pool=%v: row %d visited %d times", p != nil, y, c)
			}
		}
	}
}
