// Package pipeline implements a staged, goroutine-based runtime for
// parallel data processing: an ordered chain of stages connected by
// bounded queues, with in-band end-of-stream signalling, error
// surfacing via a dedicated error queue, and coordinated shutdown.
package pipeline

// Cloner is the externalised deep-copy capability. A worker obtains a
// private copy of an item via Clone before it crosses a stage
// boundary, so the producer and consumer never alias shared mutable
// state (e.g. memory backed by a shared buffer or refcounted tensor).
//
// Items that don't implement Cloner are passed through unchanged —
// this is the correct default for plain values (ints, strings,
// immutable structs); only types backed by shared/mutable storage
// need to implement Cloner.
type Cloner interface {
	Clone() any
}

// cloneItem obtains a private copy of v if v implements Cloner,
// otherwise returns v as-is (value semantics already prevent aliasing
// for the common case).
func cloneItem(v any) any {
	if c, ok := v.(Cloner); ok {
		return c.Clone()
	}
	return v
}

// endOfStream names the end-of-stream marker as a type. Msg does not
// carry it: a terminal Msg is marked by its isTerminal flag, so no
// endOfStream value travels through a queue.
type endOfStream struct{}

// Msg is the tagged variant that actually travels through queues:
// either an Item, or the terminal marker. This replaces the
// sentinel-mixed-into-the-stream idiom with an explicit union.
type Msg struct {
	item       any
	isTerminal bool
}

// ItemMsg wraps a regular item for transport through a queue.
func ItemMsg(v any) Msg { return Msg{item: v} }

// TerminateMsg is the single, distinguished end-of-stream marker.
func TerminateMsg() Msg { return Msg{isTerminal: true} }

// IsTerminal reports whether m is the end-of-stream marker.
func (m Msg) IsTerminal() bool { return m.isTerminal }

// Item returns the payload of m. Calling it on a terminal Msg returns nil.
func (m Msg) Item() any { return m.item }

// Clone returns a Msg with its item capability-cloned; terminal
// markers clone to themselves (there's only ever one, and it carries
// no payload to alias).
func (m Msg) Clone() Msg {
	if m.isTerminal {
		return m
	}
	return Msg{item: cloneItem(m.item)}
}
