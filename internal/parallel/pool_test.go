package parallel

import (
	"runtime"
	"sync/atomic"
	"testing"
	"time"
)

func TestWorkerPool_Create(t *testing.T) {
	tests := []struct {
		name    string
		workers int
		want    int
	}{
		{"explicit", 4, 4},
		{"zero uses GOMAXPROCS", 0, runtime.GOMAXPROCS(0)},
		{"negative uses GOMAXPROCS", -3, runtime.GOMAXPROCS(0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool := NewWorkerPool(tt.workers)
			defer pool.Close()
			if pool.Workers() != tt.want {
				t.Errorf("Workers() = %d, want %d", pool.Workers(), tt.want)
			}
			if !pool.IsRunning() {
				t.Error("pool should be running after creation")
			}
		})
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
	pool.ExecuteAll(nil)
}

func TestWorkerPool_Rows(t *testing.T) {
	pool := NewWorkerPool(3)
	defer pool.Close()

	for _, n := range []int{0, 1, 7, 100, 1081} {
		hits := make([]atomic.Int32, n)
		pool.Rows(n, func(y int) { hits[y].Add(1) })
		for y := range hits {
			if got := hits[y].Load(); got != 1 {
				t.Fatalf("n=%d: row %d visited %d times, want 1", n, y, got)
			}
		}
	}
}

func TestWorkerPool_Grid(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Close()

	const gx, gy = 8, 5
	var cells [gy][gx]atomic.Int32
	pool.Grid(gx, gy, func(x, y int) { cells[y][x].Add(1) })
	for y := range gy {
		for x := range gx {
			if got := cells[y][x].Load(); got != 1 {
				t.Errorf("cell (%d, %d) visited %d times, want 1", x, y, got)
			}
		}
	}
}

func TestWorkerPool_AfterCloseRunsInline(t *testing.T) {
	pool := NewWorkerPool(2)
	pool.Close()
	pool.Close()

	if pool.IsRunning() {
		t.Error("pool should not be running after Close")
	}
	var counter atomic.Int64
	pool.Rows(10, func(int) { counter.Add(1) })
	if counter.Load() != 10 {
		t.Errorf("counter = %d, want 10", counter.Load())
	}
}

func TestWorkerPool_UnevenWork(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Close()

	var slow, fast atomic.Int64
	work := make([]func(), 40)
	for i := range work {
		if i%10 == 0 {
			work[i] = func() {
				time.Sleep(5 * time.Millisecond)
				slow.Add(1)
			}
		} else {
			work[i] = func() { fast.Add(1) }
		}
	}
	pool.ExecuteAll(work)
	if slow.Load() != 4 || fast.Load() != 36 {
		t.Errorf("slow, fast = %d, %d, want 4, 36", slow.Load(), fast.Load())
	}
}

func TestShared(t *testing.T) {
	if Shared() != Shared() {
		t.Error("Shared() should return the same pool")
	}
	if !Shared().IsRunning() {
		t.Error("shared pool should be running")
	}
}
