// Package parallel runs per-cell grid kernels across a fixed set of worker
// goroutines.
package parallel

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// WorkerPool is a fixed set of goroutines that execute batches of work.
//
// Every worker owns a queue. Work is distributed round-robin and an idle
// worker steals from the other queues, which keeps bands balanced when some
// rows are more expensive than others.
//
// ExecuteAll is a barrier: it returns only when every item of the batch has
// finished. WorkerPool is safe for concurrent use.
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

	depth := max(workers*4, 8)

	p := &WorkerPool{
		workers: workers,
		queues:  make([]chan func(), workers),
		done:    make(chan struct{}),
	}
	for i := range workers {
		p.queues[i] = make(chan func(), depth)
	}
	p.running.Store(true)

	p.wg.Add(workers)
	for i := range workers {
		go p.loop(i)
	}
	return p
}

func (p *WorkerPool) loop(id int) {
	defer p.wg.Done()

	own := p.queues[id]
	for {
		select {
		case <-p.done:
			drain(own)
			return
		case fn := <-own:
			run(fn)
		default:
			if fn := p.steal(id); fn != nil {
				fn()
				continue
			}
			select {
			case <-p.done:
				drain(own)
				return
			case fn := <-own:
				run(fn)
			}
		}
	}
}

func run(fn func()) {
	if fn != nil {
		fn()
	}
}

func drain(q chan func()) {
	for {
		select {
		case fn := <-q:
			run(fn)
		default:
			return
		}
	}
}

// steal takes one item from another worker's queue, or returns nil.
func (p *WorkerPool) steal(id int) func() {
	for i := range p.workers {
		if i == id {
			continue
		}
		select {
		case fn := <-p.queues[i]:
			return fn
		default:
		}
	}
	return nil
}

// ExecuteAll runs every item of work and waits for all of them.
// On a closed pool the items run on the calling goroutine, so callers
// never observe a partially executed batch.
func (p *WorkerPool) ExecuteAll(work []func()) {
	if len(work) == 0 {
		return
	}
	if !p.running.Load() {
		for _, fn := range work {
			run(fn)
		}
		return
	}

	var pending sync.WaitGroup
	pending.Add(len(work))

	for i, fn := range work {
		item := func() {
			defer pending.Done()
			run(fn)
		}
		select {
		case p.queues[i%p.workers] <- item:
		case <-p.done:
			item()
		}
	}

	pending.Wait()
}

// Close stops the workers after the queued work drains.
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

// IsRunning reports whether the pool still accepts work.
func (p *WorkerPool) IsRunning() bool {
	return p.running.Load()
}
