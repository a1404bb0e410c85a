package pipeline

import (
	"context"
	"iter"

	"golang.org/x/time/rate"

	"github.com/flowpipe/flowpipe/util/ratectl"
)

// inputDriver feeds an external iterable into the first queue and
// appends exactly one terminal marker once it's exhausted. It is not
// itself a Stage — users never construct one directly — but it
// follows the same shutdown-aware blocking discipline as every other
// worker.
type inputDriver struct {
	outq    *Queue
	limiter *rate.Limiter   // optional; paces Put calls when set
	pauser  *ratectl.Pauser // optional; lets an operator pause/resume feeding
}

func newInputDriver(outq *Queue) *inputDriver {
	return &inputDriver{outq: outq}
}

// feed drains it into the driver's output queue, then appends the
// terminal marker. It returns false if shutdown interrupted delivery
// partway through (the terminal marker was not necessarily sent).
func (d *inputDriver) feed(ctx context.Context, it iter.Seq[any]) bool {
	for v := range it {
		if ctx.Err() != nil {
			return false
		}
		if d.pauser != nil {
			if err := d.pauser.Wait(ctx); err != nil {
				return false
			}
		}
		if d.limiter != nil {
			if err := d.limiter.Wait(ctx); err != nil {
				return false
			}
		}
		if !safePut(ctx, d.outq, ItemMsg(v)) {
			return false
		}
	}
	return safePut(ctx, d.outq, TerminateMsg())
}

// outputDriver is the iterator surface over the pipeline's final
// queue: each Next call blocking-gets, clones non-terminal items
// before returning them (so the caller never aliases memory still
// owned by an upstream worker), and reports end-of-stream on the
// terminal marker.
type outputDriver struct {
	inq *Queue
}

func newOutputDriver(inq *Queue) *outputDriver {
	return &outputDriver{inq: inq}
}

// next blocks until an item is available, the stream ends, or ctx is
// done. ok is false in the latter two cases; callers distinguish
// "stream ended" from "shutdown" via ctx.Err().
func (d *outputDriver) next(ctx context.Context) (any, bool) {
	for {
		if ctx.Err() != nil {
			return nil, false
		}
		m, got := safeGet(ctx, d.inq)
		if !got {
			if ctx.Err() != nil {
				return nil, false
			}
			continue
		}
		if m.IsTerminal() {
			return nil, false
		}
		return cloneItem(m.Item()), true
	}
}
