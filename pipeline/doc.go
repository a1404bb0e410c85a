// Package pipeline provides a staged, goroutine-based runtime for
// parallel data processing.
//
// A Pipeline is built from an ordered list of Stages (Map, Pool,
// Pack, Unpack, Repack), each owning one or more workers. Stages are
// connected by Queues: capacity 1 everywhere except the unbounded
// queue immediately after the input, which creates strict pull-style
// backpressure one item deep per worker.
//
// Items cross every stage boundary as a Msg, a tagged union of either
// a regular item or the terminal marker, so end-of-stream never has
// to be distinguished from real data by sentinel comparison.
//
// A Pipeline is driven by feeding it an iterable via QueueIterable and
// consuming output via Next (or the range-over-func helper All)
// until the stream ends. Any worker error is fatal to the whole
// pipeline: it is reported on the shared error queue, drained by a
// background worker that sets shutdown and delivers a FatalError on
// Err(), and the pipeline must be reconstructed afterward.
package pipeline
