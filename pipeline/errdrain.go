package pipeline

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"
)

const errDrainPollInterval = 500 * time.Millisecond

// runErrorDrain blocking-gets from the error queue while the
// pipeline's context is live. The first ErrorReport it observes is
// logged in full, triggers pipeline-wide shutdown, and is delivered
// as a FatalError on Pipeline.Err(). Individual item-level recovery
// is intentionally unsupported — fail-stop is the whole point: the
// cost of reasoning about partial state across a multi-stage pipeline
// outweighs the benefit of salvaging one bad item.
func (p *Pipeline) runErrorDrain(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	for {
		if ctx.Err() != nil {
			return
		}

		getCtx, cancel := context.WithTimeout(ctx, errDrainPollInterval)
		m, err := p.errq.Get(getCtx)
		cancel()
		if err != nil {
			if errors.Is(err, ErrEmpty) {
				continue
			}
			return
		}

		report, ok := m.Item().(ErrorReport)
		if !ok {
			continue
		}

		log.Printf("pipeline: worker error, shutting down: %s", report.String())
		log.Printf("pipeline: stack trace:\n%s", report.Stack())

		fatal := &FatalError{Report: report}
		select {
		case p.fatalCh <- fatal:
		default:
		}
		p.cancel(fatal)
		return
	}
}
