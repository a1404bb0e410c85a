package pipeline

import (
	"context"
	"iter"
	"log"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/flowpipe/flowpipe/util/ratectl"
)

// stopJoinTimeout bounds how long Stop waits for stage workers (and
// the error-drain worker) to exit before logging that they're still
// alive; stopGrace is the additional settle time before that final
// liveness check, matching the spec's 5s join / 4s grace figures.
const (
	stopJoinTimeout = 5 * time.Second
	stopGrace       = 4 * time.Second
)

// Pipeline wires a user-supplied stage list into a running topology:
// InputDriver -> Q0 -> stages[0] -> Q1 -> stages[1] -> ... -> Qn -> OutputDriver.
// Every adjacent pair of stages is separated by a Queue of capacity 1;
// Q0 (before the first stage) is unbounded.
type Pipeline struct {
	stages []Stage
	queues []*Queue
	errq   *Queue

	input  *inputDriver
	output *outputDriver

	monitor *statusMonitor

	ctx    context.Context
	cancel context.CancelCauseFunc

	wg         sync.WaitGroup
	errDrainWg sync.WaitGroup
	monitorWg  sync.WaitGroup

	fatalCh chan error

	mu             sync.Mutex
	started        bool
	iterableQueued bool
}

// Option configures optional Pipeline behavior at construction time.
type Option func(*Pipeline)

// WithInputRateLimit paces QueueIterable feeding to at most r items
// per second (with the given burst), adapted from the teacher's
// rate-limited pipeline throttler stages. Omit for unthrottled
// feeding (the default).
func WithInputRateLimit(r rate.Limit, burst int) Option {
	return func(p *Pipeline) {
		p.input.limiter = rate.NewLimiter(r, burst)
	}
}

// WithInputPauser attaches a ratectl.Pauser to the input driver and
// returns it so the caller can pause and resume feeding at runtime
// (e.g. from an operator CLI command), independent of any configured
// rate limit.
func WithInputPauser() (Option, *ratectl.Pauser) {
	p := ratectl.NewPauser()
	p.SetPaused(false)
	return func(pl *Pipeline) {
		pl.input.pauser = p
	}, p
}

// WithStatusSnapshotPath additionally persists each changed FlowStatus
// snapshot to the given file path.
func WithStatusSnapshotPath(path string) Option {
	return func(p *Pipeline) {
		p.monitor.snapshotPath = path
	}
}

// New constructs a Pipeline from an ordered stage list, wiring a
// Queue between every adjacent pair (capacity 1, except the unbounded
// Q0 immediately after the InputDriver) and connecting every stage to
// the shared, unbounded error queue. The pipeline is not started.
func New(stages []Stage, opts ...Option) *Pipeline {
	queues := make([]*Queue, len(stages)+1)
	queues[0] = NewQueue(0)
	for i := 1; i < len(queues); i++ {
		queues[i] = NewQueue(1)
	}

	errq := NewQueue(0)

	for i, st := range stages {
		st.connect(queues[i], queues[i+1], errq)
	}

	p := &Pipeline{
		stages:  stages,
		queues:  queues,
		errq:    errq,
		input:   newInputDriver(queues[0]),
		output:  newOutputDriver(queues[len(queues)-1]),
		fatalCh: make(chan error, 1),
	}
	p.monitor = &statusMonitor{pipeline: p}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Start starts every stage's workers, then the status-monitor and
// error-drain background workers. It is idempotent-guarded: calling
// Start twice returns ErrAlreadyStarted.
func (p *Pipeline) Start() error {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return ErrAlreadyStarted
	}
	p.started = true
	p.mu.Unlock()

	ctx, cancel := context.WithCancelCause(context.Background())
	p.ctx, p.cancel = ctx, cancel

	for _, st := range p.stages {
		st.run(ctx, &p.wg)
	}

	p.monitorWg.Add(1)
	go p.monitor.run(ctx, &p.monitorWg)

	p.errDrainWg.Add(1)
	go p.runErrorDrain(ctx, &p.errDrainWg)

	return nil
}

// QueueIterable feeds it into the pipeline's first queue, then
// appends the terminal marker. Exactly one call is permitted per
// iteration cycle; the flag is cleared only once Next reports
// end-of-stream. Blocks until the whole iterable (plus the terminal
// marker) has been delivered, shutdown-aware throughout.
func (p *Pipeline) QueueIterable(it iter.Seq[any]) error {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return ErrNotStarted
	}
	if p.iterableQueued {
		p.mu.Unlock()
		return ErrBufferQueued
	}
	p.iterableQueued = true
	ctx := p.ctx
	p.mu.Unlock()

	if ctx.Err() != nil {
		return ErrShutdown
	}

	if !p.input.feed(ctx, it) && ctx.Err() != nil {
		return ErrShutdown
	}
	return nil
}

// Next returns the next output item. ok is false when the stream has
// ended (the terminal marker was observed) or shutdown interrupted
// iteration — callers distinguish the two via Err(). err is non-nil
// only for synchronous usage mistakes (not started, no iterable
// queued yet).
func (p *Pipeline) Next() (item any, ok bool, err error) {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return nil, false, ErrNotStarted
	}
	if !p.iterableQueued {
		p.mu.Unlock()
		return nil, false, ErrBufferQueued
	}
	ctx := p.ctx
	p.mu.Unlock()

	v, got := p.output.next(ctx)
	if !got {
		p.mu.Lock()
		p.iterableQueued = false
		p.mu.Unlock()
		return nil, false, nil
	}
	return v, true, nil
}

// All returns a range-over-func iterator over the pipeline's output,
// for convenient `for item := range p.All() { ... }` consumption. It
// stops silently on any error or shutdown; use Next directly to
// distinguish those cases.
func (p *Pipeline) All() iter.Seq[any] {
	return func(yield func(any) bool) {
		for {
			v, ok, err := p.Next()
			if err != nil || !ok {
				return
			}
			if !yield(v) {
				return
			}
		}
	}
}

// Err returns a channel that receives exactly one FatalError if and
// when a worker error triggers pipeline shutdown.
func (p *Pipeline) Err() <-chan error {
	return p.fatalCh
}

// Shutdown triggers the same cancellation Stop does, without
// performing the drain/join/close sequence. It exists so an external
// signal handler has a lightweight entry point that's safe to call
// concurrently with Stop.
func (p *Pipeline) Shutdown() {
	p.mu.Lock()
	ctx := p.ctx
	cancel := p.cancel
	p.mu.Unlock()
	if ctx != nil && cancel != nil {
		cancel(context.Canceled)
	}
}

// Stop shuts the pipeline down: it sets the shutdown cancellation,
// drains every queue, joins every stage's workers (bounded by
// stopJoinTimeout) and the error-drain worker, closes all queues, and
// after a stopGrace settle period logs any worker still alive. The
// pipeline cannot be restarted after Stop — construct a new one.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	if !p.started || p.ctx == nil {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	p.cancel(context.Canceled)

	for _, q := range p.queues {
		q.Drain()
	}
	p.errq.Drain()

	joinWithTimeout(&p.wg, stopJoinTimeout, "stage workers")
	joinWithTimeout(&p.errDrainWg, stopJoinTimeout, "error-drain worker")
	joinWithTimeout(&p.monitorWg, stopJoinTimeout, "status monitor")

	for _, q := range p.queues {
		q.Close()
	}
	p.errq.Close()

	time.Sleep(stopGrace)

	for _, st := range p.stages {
		if n := st.AliveWorkers(); n > 0 {
			log.Printf("pipeline: stage %q still has %d worker(s) alive after stop", st.Name(), n)
		}
	}
}

func joinWithTimeout(wg *sync.WaitGroup, timeout time.Duration, what string) {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		log.Printf("pipeline: timed out waiting for %s to exit", what)
	}
}
