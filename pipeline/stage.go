package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"
)

// getTimeout and putTimeout bound every individual blocking queue
// operation; the shutdown-aware loop re-checks the outer context
// between attempts, so no worker ever blocks longer than these
// durations without observing a cancellation.
const (
	getTimeout = 50 * time.Millisecond
	putTimeout = 1 * time.Second
)

// Stage is one link in a Pipeline: a named component with one input
// queue, one output queue, a shared error queue, and one or more
// workers executing the same loop. Users build stages with the
// constructors (Map, Pool, Pack, Unpack, Repack). The interface is
// exported so stage lists can be passed to New; its connect and run
// methods are unexported, so only this package's stage kinds
// implement it.
type Stage interface {
	// Name identifies the stage, e.g. in log output and FlowStatus.
	Name() string
	// WorkerCount returns the number of workers the stage owns.
	WorkerCount() int
	// AliveWorkers reports how many of those workers are currently
	// running (sampled by StatusMonitor).
	AliveWorkers() int
	// WorkerNames lists the current per-worker goroutine labels.
	WorkerNames() []string

	connect(in, out, errq *Queue)
	run(ctx context.Context, wg *sync.WaitGroup)
}

// base holds the fields and helpers common to every stage
// implementation: queue wiring, worker bookkeeping, and the
// shutdown-aware blocking put/get loop every worker uses.
type base struct {
	name string
	n    int

	inq  *Queue
	outq *Queue
	errq *Queue

	mu      sync.Mutex
	alive   int
	workers []string
}

func (b *base) Name() string        { return b.name }
func (b *base) WorkerCount() int    { return b.n }
func (b *base) connect(in, out, errq *Queue) {
	b.inq, b.outq, b.errq = in, out, errq
}

func (b *base) AliveWorkers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.alive
}

func (b *base) WorkerNames() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.workers))
	copy(out, b.workers)
	return out
}

// enter records a worker as alive under the given goroutine label and
// returns a function to call on exit.
func (b *base) enter(label string) func() {
	b.mu.Lock()
	b.alive++
	b.workers = append(b.workers, label)
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		b.alive--
		for i, w := range b.workers {
			if w == label {
				b.workers = append(b.workers[:i], b.workers[i+1:]...)
				break
			}
		}
		b.mu.Unlock()
	}
}

// safeGet blocking-gets from q, re-polling ctx between 50ms attempts
// until an item arrives or ctx is done (shutdown requested or the
// pipeline's lifetime context expired).
func safeGet(ctx context.Context, q *Queue) (Msg, bool) {
	for {
		if ctx.Err() != nil {
			return Msg{}, false
		}
		getCtx, cancel := context.WithTimeout(ctx, getTimeout)
		m, err := q.Get(getCtx)
		cancel()
		if err == nil {
			return m, true
		}
		if errors.Is(err, ErrEmpty) {
			continue
		}
		// ctx cancellation or queue closed
		return Msg{}, false
	}
}

// safePut blocking-puts v onto q, re-polling ctx between 1s attempts
// until room is available or ctx is done.
func safePut(ctx context.Context, q *Queue, v Msg) bool {
	for {
		if ctx.Err() != nil {
			return false
		}
		putCtx, cancel := context.WithTimeout(ctx, putTimeout)
		err := q.Put(putCtx, v)
		cancel()
		if err == nil {
			return true
		}
		if errors.Is(err, ErrFull) {
			continue
		}
		return false
	}
}
