package util

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

var ErrPoolClosed = errors.New("thread pool closed")

// ThreadPool runs submitted tasks on a fixed number of worker goroutines, so
// the number of concurrent tasks never exceeds Size no matter how many
// callers submit at once.
type ThreadPool struct {
	Size   int
	Count  atomic.Int64 // tasks running right now
	tasks  chan func()
	wait   sync.WaitGroup
	quit   chan struct{}
	closed sync.Once
}

func NewThreadPool(size int) *ThreadPool {
	if size < 1 {
		size = 1
	}

	pool := &ThreadPool{
		Size:  size,
		tasks: make(chan func()),
		quit:  make(chan struct{}),
	}

	pool.wait.Add(size)
	for i := 0; i < size; i++ {
		go pool.worker()
	}

	return pool
}

func (pool *ThreadPool) worker() {
	defer pool.wait.Done()

	for {
		select {
		case task := <-pool.tasks:
			pool.Count.Add(1)
			task()
			pool.Count.Add(-1)
		case <-pool.quit:
			return
		}
	}
}

// Submit blocks until a worker picks up the task, ctx is done, or the pool
// is closed.
func (pool *ThreadPool) Submit(ctx context.Context, task func()) error {
	select {
	case <-pool.quit:
		return ErrPoolClosed
	default:
	}

	select {
	case pool.tasks <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-pool.quit:
		return ErrPoolClosed
	}
}

// Close stops accepting tasks and waits for running tasks to finish.
func (pool *ThreadPool) Close() {
	pool.closed.Do(func() {
		close(pool.quit)
	})
	pool.wait.Wait()
}

// Future holds the result of one task. The result channel is buffered so a
// task finishing after its caller gave up never blocks.
type Future[T any] struct {
	result chan T
}

// Go schedules fn on the pool without blocking the caller. If the task cannot
// be scheduled before ctx is done, the future never resolves.
func Go[T any](ctx context.Context, pool *ThreadPool, fn func() T) *Future[T] {
	f := &Future[T]{result: make(chan T, 1)}

	go func() {
		_ = pool.Submit(ctx, func() {
			f.result <- fn()
		})
	}()

	return f
}

// Await waits for the result until ctx is done.
func (f *Future[T]) Await(ctx context.Context) (T, bool) {
	select {
	case v := <-f.result:
		f.result <- v
		return v, true
	case <-ctx.Done():
		return f.Poll()
	}
}

// Poll returns the result if it is already available.
func (f *Future[T]) Poll() (T, bool) {
	select {
	case v := <-f.result:
		f.result <- v
		return v, true
	default:
		var zero T
		return zero, false
	}
}
