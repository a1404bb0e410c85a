package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// PoolFunc transforms a single element of a Pool stage's input
// collection. It plays the same role as MapFunc, but is fanned out
// over a bounded sub-pool rather than applied by one of N independent
// stage workers.
type PoolFunc func(any) (any, error)

// PoolStage owns a single outer worker that fans each input
// collection out across a K-sized sub-pool, producing a collection of
// the same length and order. Unlike Map, a Pool stage always has
// exactly one stage-level worker — it is the sole owner of its
// sub-pool, so there's no ambiguity about who spawns and tears it
// down.
type PoolStage struct {
	base
	fn PoolFunc
	k  int
}

// Pool constructs a Pool stage: one outer worker submits each input
// collection to fn over a k-sized concurrent sub-pool, and emits a
// collection of results with the same length and order as the input.
func Pool(name string, k int, fn PoolFunc) *PoolStage {
	if k < 1 {
		k = 1
	}
	return &PoolStage{base: base{name: name, n: 1}, fn: fn, k: k}
}

func (s *PoolStage) run(ctx context.Context, wg *sync.WaitGroup) {
	wg.Add(1)
	go s.worker(ctx, wg)
}

func (s *PoolStage) worker(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	label := s.name + "-0"
	exit := s.enter(label)
	defer exit()

	for {
		if ctx.Err() != nil {
			return
		}

		m, ok := safeGet(ctx, s.inq)
		if !ok {
			if ctx.Err() != nil {
				return
			}
			continue
		}

		if m.IsTerminal() {
			if !safePut(ctx, s.outq, TerminateMsg()) {
				return
			}
			continue
		}

		coll := cloneItem(m.Item())
		items, ok := asSlice(coll)
		if !ok {
			report := NewErrorReport(label, coll, errors.New("pool stage input is not a collection"))
			safePut(ctx, s.errq, ItemMsg(report))
			return
		}

		results, err := s.runBatch(ctx, items)
		if err != nil {
			report := NewErrorReport(label, coll, err)
			safePut(ctx, s.errq, ItemMsg(report))
			return
		}

		if !safePut(ctx, s.outq, ItemMsg(results)) {
			return
		}
	}
}

// runBatch submits map(fn, items) to a k-sized errgroup sub-pool and
// waits for completion, polling ctx every second so shutdown can
// abort an in-flight batch.
func (s *PoolStage) runBatch(ctx context.Context, items []any) ([]any, error) {
	results := make([]any, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.k)

	for i, it := range items {
		g.Go(func() error {
			out, err := s.fn(it)
			if err != nil {
				return err
			}
			results[i] = out
			return nil
		})
	}
	_ = gctx

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	for {
		select {
		case err := <-done:
			return results, err
		case <-time.After(time.Second):
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
		}
	}
}
