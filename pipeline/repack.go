package pipeline

import (
	"context"
	"fmt"
	"sync"
)

// RepackStage is a single worker that consumes collections and
// re-emits fixed-size k collections, crossing input-collection
// boundaries as needed. A non-terminal, non-iterable input is a fatal
// error, same as Unpack.
type RepackStage struct {
	base
	k   int
	buf []any

	countIn  int
	countOut int
}

// Repack constructs a stage that rebatches incoming collections into
// k-sized collections, regardless of the input collections' sizes.
func Repack(k int) *RepackStage {
	if k < 1 {
		k = 1
	}
	return &RepackStage{base: base{name: fmt.Sprintf("Repack(%d)", k), n: 1}, k: k}
}

func (s *RepackStage) run(ctx context.Context, wg *sync.WaitGroup) {
	wg.Add(1)
	go s.worker(ctx, wg)
}

func (s *RepackStage) worker(ctx context.Context, wg *sync.WaitGroup) {
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
			if len(s.buf) > 0 {
				if !safePut(ctx, s.outq, ItemMsg(s.buf)) {
					return
				}
				s.buf = nil
			}
			if !safePut(ctx, s.outq, TerminateMsg()) {
				return
			}
			s.countIn, s.countOut = 0, 0
			continue
		}

		coll := cloneItem(m.Item())
		items, ok := asSlice(coll)
		if !ok {
			report := NewErrorReport(label, coll, fmt.Errorf("repack stage received a non-iterable item: %w", ErrNotIterable))
			safePut(ctx, s.errq, ItemMsg(report))
			return
		}
		s.countIn++

		for _, item := range items {
			s.buf = append(s.buf, item)
			if len(s.buf) == s.k {
				if !safePut(ctx, s.outq, ItemMsg(s.buf)) {
					return
				}
				s.buf = nil
				s.countOut++
			}
		}
	}
}
