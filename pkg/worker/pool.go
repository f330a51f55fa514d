package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/rs/zerolog"

	"github.com/cuemby/connect-watcher/pkg/log"
)

// ErrPoolStopped is returned when work is submitted to a stopped pool
var ErrPoolStopped = errors.New("worker pool stopped")

// PanicError is the error recorded for a job that panicked
type PanicError struct {
	Value interface{}
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("job panicked: %v", e.Value)
}

// task is one unit of work on the queue
type task struct {
	ctx  context.Context
	run  func(ctx context.Context) error
	done func(err error)
}

// Pool is a fixed set of long-lived workers draining a shared queue
type Pool struct {
	name string
	size int

	jobs chan task
	wg   sync.WaitGroup

	mu       sync.RWMutex
	started  bool
	stopped  bool
	stopOnce sync.Once

	logger zerolog.Logger
}

// NewPool creates a pool of size workers. A size below 1 is treated as 1.
func NewPool(name string, size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{
		name:   name,
		size:   size,
		jobs:   make(chan task, size),
		logger: log.WithComponent("worker-pool").With().Str("pool", name).Logger(),
	}
}

// Size returns the number of workers
func (p *Pool) Size() int {
	return p.size
}

// Start launches the workers
func (p *Pool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started || p.stopped {
		return
	}
	p.started = true

	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.work(i)
	}
	p.logger.Debug().Int("workers", p.size).Msg("Worker pool started")
}

// Stop stops accepting work, lets queued and in-flight jobs finish and
// waits for the workers to exit
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		p.stopped = true
		close(p.jobs)
		p.mu.Unlock()

		p.wg.Wait()
		p.logger.Debug().Msg("Worker pool stopped")
	})
}

// Submit queues fn. done, when set, is called on the worker with the job's
// error once fn returns or panics. Submit blocks while the queue is full.
func (p *Pool) Submit(ctx context.Context, fn func(ctx context.Context) error, done func(err error)) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stopped {
		return ErrPoolStopped
	}
	if !p.started {
		return fmt.Errorf("worker pool %s not started", p.name)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	select {
	case p.jobs <- task{ctx: ctx, run: fn, done: done}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) work(id int) {
	defer p.wg.Done()

	for t := range p.jobs {
		err := p.execute(id, t)
		if t.done != nil {
			t.done(err)
		}
	}
}

// execute runs one task, turning a panic into a PanicError
func (p *Pool) execute(id int, t task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
			p.logger.Error().
				Int("worker", id).
				Interface("panic", r).
				Bytes("stack", err.(*PanicError).Stack).
				Msg("Recovered panic in worker")
		}
	}()
	return t.run(t.ctx)
}

// Result is the outcome of one job run through Map
type Result[R any] struct {
	Value R
	Err   error
}

// Map runs fn for every job on the pool and blocks until all of them are
// acknowledged. Results are returned in job order. Jobs that could not be
// queued, because ctx was cancelled or the pool stopped, carry that error;
// jobs already queued always run to completion.
func Map[J, R any](ctx context.Context, p *Pool, jobs []J, fn func(ctx context.Context, job J) (R, error)) []Result[R] {
	results := make([]Result[R], len(jobs))

	var wg sync.WaitGroup
	for i, job := range jobs {
		i, job := i, job
		wg.Add(1)

		err := p.Submit(ctx,
			func(ctx context.Context) error {
				value, err := fn(ctx, job)
				results[i].Value = value
				return err
			},
			func(err error) {
				results[i].Err = err
				wg.Done()
			},
		)
		if err != nil {
			wg.Done()
			for j := i; j < len(jobs); j++ {
				results[j].Err = err
			}
			break
		}
	}

	wg.Wait()
	return results
}
