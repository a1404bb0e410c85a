package pipeline

import (
	"context"
	"fmt"
	"sync"
)

// PackStage is a single worker that accumulates items into batches of
// size k and emits each full batch as a collection ([]any). Pack does
// not require its input to be iterable — any item is accepted and
// appended to the current batch, per the source it's grounded on.
type PackStage struct {
	base
	k    int
	buf  []any
}

// Pack constructs a stage that groups every k consecutive items into
// a []any batch. A partial final batch (size N mod k) is emitted when
// the stream ends, provided N mod k != 0.
func Pack(k int) *PackStage {
	if k < 1 {
		k = 1
	}
	return &PackStage{base: base{name: fmt.Sprintf("Pack(%d)", k), n: 1}, k: k}
}

func (s *PackStage) run(ctx context.Context, wg *sync.WaitGroup) {
	wg.Add(1)
	go s.worker(ctx, wg)
}

func (s *PackStage) worker(ctx context.Context, wg *sync.WaitGroup) {
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
			continue
		}

		s.buf = append(s.buf, cloneItem(m.Item()))
		if len(s.buf) == s.k {
			if !safePut(ctx, s.outq, ItemMsg(s.buf)) {
				return
			}
			s.buf = nil
		}
	}
}
