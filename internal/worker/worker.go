package worker

import (
	"context"
	"sync"
)

// Task is one unit of session work. Tasks receive the pool's root context
// and must honor its cancellation.
type Task func(ctx context.Context)

// Pool bounds how many extraction sessions resolve concurrently. Sessions
// queued beyond the worker count wait in the buffer in submission order.
type Pool struct {
	numWorkers int
	tasks      chan Task
	wg         sync.WaitGroup
}

func NewPool(numWorkers int, bufferSize int) *Pool {
	return &Pool{
		numWorkers: numWorkers,
		tasks:      make(chan Task, bufferSize),
	}
}

func (p *Pool) Start(ctx context.Context) {
	for i := 1; i <= p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
}

func (p *Pool) worker(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case task, ok := <-p.tasks:
			if !ok {
				return
			}
			task(ctx)
		}
	}
}

// Submit enqueues a task, blocking if the buffer is full.
func (p *Pool) Submit(task Task) {
	p.tasks <- task
}

// TrySubmit enqueues a task without blocking and reports whether it was
// accepted.
func (p *Pool) TrySubmit(task Task) bool {
	select {
	case p.tasks <- task:
		return true
	default:
		return false
	}
}

func (p *Pool) Stop() {
	close(p.tasks)
	p.wg.Wait()
}
