package pipeline

import (
	"context"
	"fmt"
	"sync"
)

// UnpackStage is a single worker that explodes each incoming
// collection into its individual elements, preserving order. A
// non-terminal, non-iterable input is a fatal error.
type UnpackStage struct {
	base
}

// Unpack constructs a stage that emits the elements of each incoming
// collection individually, in order.
func Unpack() *UnpackStage {
	return &UnpackStage{base: base{name: "Unpack", n: 1}}
}

func (s *UnpackStage) run(ctx context.Context, wg *sync.WaitGroup) {
	wg.Add(1)
	go s.worker(ctx, wg)
}

func (s *UnpackStage) worker(ctx context.Context, wg *sync.WaitGroup) {
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
			report := NewErrorReport(label, coll, fmt.Errorf("unpack stage received a non-iterable item: %w", ErrNotIterable))
			safePut(ctx, s.errq, ItemMsg(report))
			return
		}

		for _, item := range items {
			if !safePut(ctx, s.outq, ItemMsg(item)) {
				return
			}
		}
	}
}
