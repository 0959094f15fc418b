// Package parallel provides the worker pool that screenfx kernels fan out to.
package parallel

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// WorkerPool runs batches of work items on a fixed set of goroutines.
//
// Each worker owns a queue and steals from the others when its own queue is
// empty, which keeps rows of uneven cost (sky versus geometry) balanced.
// Every batch method blocks until the whole batch has finished, so a return
// from ExecuteAll, Rows or Grid is a barrier.
//
// Thread safety: WorkerPool is safe for concurrent use. Work items must not
// submit nested batches to the same pool.
type WorkerPool struct {
	workers int
	queues  []chan func()
	done    chan struct{}
	wg      sync.WaitGroup
	running atomic.Bool
}

// NewWorkerPool starts a pool with the given number of workers.
// If workers is 0 or negative, GOMAXPROCS is used.
func NewWorkerPool(workers int) *WorkerPool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	queueSize := max(workers*4, 8)

	p := &WorkerPool{
		workers: workers,
		queues:  make([]chan func(), workers),
		done:    make(chan struct{}),
	}
	for i := range workers {
		p.queues[i] = make(chan func(), queueSize)
	}
	p.running.Store(true)

	p.wg.Add(workers)
	for i := range workers {
		go p.worker(i)
	}
	return p
}

func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()
	own := p.queues[id]

	for {
		select {
		case <-p.done:
			p.drain(own)
			return
		case work := <-own:
			work()
		default:
			if stolen := p.steal(id); stolen != nil {
				stolen()
				continue
			}
			select {
			case <-p.done:
				p.drain(own)
				return
			case work := <-own:
				work()
			}
		}
	}
}

func (p *WorkerPool) drain(queue chan func()) {
	for {
		select {
		case work := <-queue:
			work()
		default:
			return
		}
	}
}

func (p *WorkerPool) steal(id int) func() {
	for i := range p.workers {
		if i == id {
			continue
		}
		select {
		case work := <-p.queues[i]:
			return work
		default:
		}
	}
	return nil
}

// ExecuteAll runs every item and waits for all of them to complete.
// After Close the items run on the calling goroutine.
func (p *WorkerPool) ExecuteAll(work []func()) {
	if len(work) == 0 {
		return
	}
	if !p.running.Load() {
		for _, fn := range work {
			fn()
		}
		return
	}

	var batch sync.WaitGroup
	batch.Add(len(work))
	for i, fn := range work {
		wrapped := func() {
			defer batch.Done()
			fn()
		}
		select {
		case p.queues[i%p.workers] <- wrapped:
		case <-p.done:
			wrapped()
		}
	}
	batch.Wait()
}

// Rows calls fn(y) for every y in [0, n), split into contiguous bands.
func (p *WorkerPool) Rows(n int, fn func(y int)) {
	if n <= 0 {
		return
	}
	bands := min(n, p.workers*4)
	work := make([]func(), 0, bands)
	for b := range bands {
		lo := b * n / bands
		hi := (b + 1) * n / bands
		work = append(work, func() {
			for y := lo; y < hi; y++ {
				fn(y)
			}
		})
	}
	p.ExecuteAll(work)
}

// Grid calls fn(x, y) for every cell of a groupsX by groupsY grid, the way a
// compute dispatch invokes one workgroup per cell.
func (p *WorkerPool) Grid(groupsX, groupsY int, fn func(x, y int)) {
	if groupsX <= 0 {
		return
	}
	p.Rows(groupsY, func(y int) {
		for x := range groupsX {
			fn(x, y)
		}
	})
}

// Close stops the workers after draining queued work.
// Close is safe to call multiple times.
func (p *WorkerPool) Close() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	close(p.done)
	p.wg.Wait()
}

// Workers returns the number of workers in the pool.
func (p *WorkerPool) Workers() int {
	return p.workers
}

// IsRunning reports whether the pool still dispatches to its workers.
func (p *WorkerPool) IsRunning() bool {
	return p.running.Load()
}

var (
	sharedOnce sync.Once
	shared     *WorkerPool
)

// Shared returns a process-wide pool sized to GOMAXPROCS. It is never closed.
func Shared() *WorkerPool {
	sharedOnce.Do(func() {
		shared = NewWorkerPool(0)
	})
	return shared
}
