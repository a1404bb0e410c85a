package pipeline

import (
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"

	"github.com/flowpipe/flowpipe/util/strutil"
)

// ErrBufferQueued is returned by QueueIterable when an iterable has
// already been queued for the current iteration cycle, and by Next when
// no iterable has been queued yet.
var ErrBufferQueued = errors.New("pipeline: an iterable is already queued, or none is queued for iteration")

// ErrNotStarted is returned by iteration and QueueIterable when the
// pipeline has not been started.
var ErrNotStarted = errors.New("pipeline: call Start before use")

// ErrAlreadyStarted guards Start against being called twice.
var ErrAlreadyStarted = errors.New("pipeline: already started")

// ErrNotIterable is wrapped by the ErrorReport that Unpack/Repack
// produce when a non-terminal item received is not iterable.
var ErrNotIterable = errors.New("pipeline: item is not iterable")

// ErrShutdown is returned by QueueIterable once the pipeline has shut
// down (via a fatal worker error or Stop), making it unusable for
// further iteration cycles.
var ErrShutdown = errors.New("pipeline: shut down, construct a new pipeline")

// ErrorReport describes a single worker failure. It is produced by
// any worker that catches an error from user code (or from its own
// validation, e.g. Unpack/Repack receiving a non-iterable item),
// and pushed onto the pipeline's error queue. The error-drain worker
// acts on the first report it receives and then exits; later reports
// are not consumed.
type ErrorReport struct {
	WorkerName  string
	ItemSummary string
	Err         error
	stack       error // wrapped via pkg/errors, carries the stack trace
}

// NewErrorReport builds an ErrorReport, capturing a stack trace at
// the call site via github.com/pkg/errors and truncating the item
// summary to ~400 characters, per the spec's bound on report size.
func NewErrorReport(workerName string, item any, cause error) ErrorReport {
	summary := summarize(item, 400)
	return ErrorReport{
		WorkerName:  workerName,
		ItemSummary: summary,
		Err:         cause,
		stack:       pkgerrors.WithStack(cause),
	}
}

// Stack renders the captured stack trace.
func (r ErrorReport) Stack() string {
	return fmt.Sprintf("%+v", r.stack)
}

func (r ErrorReport) String() string {
	return fmt.Sprintf("[%s] error on item %q: %v", r.WorkerName, r.ItemSummary, r.Err)
}

// FatalError is delivered on Pipeline.Err() once the error-drain
// worker has observed an ErrorReport and set the shutdown token. The
// pipeline is unusable after this; it must be reconstructed.
type FatalError struct {
	Report ErrorReport
}

func (f *FatalError) Error() string {
	return "pipeline: fatal worker error: " + f.Report.String()
}

func (f *FatalError) Unwrap() error {
	return f.Report.Err
}

func summarize(v any, max int) string {
	s, _ := strutil.Vtos(v)
	if len(s) > max {
		return s[:max]
	}
	return s
}
