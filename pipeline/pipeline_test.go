package pipeline

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ints(n int) func(yield func(any) bool) {
	return func(yield func(any) bool) {
		for i := 1; i <= n; i++ {
			if !yield(i) {
				return
			}
		}
	}
}

func slice(vs ...int) func(yield func(any) bool) {
	return func(yield func(any) bool) {
		for _, v := range vs {
			if !yield(v) {
				return
			}
		}
	}
}

func drain(t *testing.T, p *Pipeline) []any {
	t.Helper()
	var out []any
	for v := range p.All() {
		out = append(out, v)
	}
	return out
}

// Scenario A: Pack(8) -> Map(double,5) -> Unpack -> Map(minus-one,5)
// over 19 ints; output is asserted as a multiset of 2x-1.
func TestPipeline_ScenarioA_BagEquality(t *testing.T) {
	input := []int{3, 1, 4, 1, 5, 9, 2, 6, 5, 3, 5, 8, 9, 7, 9, 3, 2, 3, 8}

	double := Map("double", 5, func(v any) (any, error) {
		batch := v.([]any)
		out := make([]any, len(batch))
		for i, x := range batch {
			out[i] = x.(int) * 2
		}
		return out, nil
	})
	minusOne := Map("minus-one", 5, func(v any) (any, error) {
		return v.(int) - 1, nil
	})

	p := New([]Stage{Pack(8), double, Unpack(), minusOne})
	require.NoError(t, p.Start())
	defer p.Stop()

	require.NoError(t, p.QueueIterable(slice(input...)))

	var got []int
	for v := range p.All() {
		got = append(got, v.(int))
	}

	want := make([]int, len(input))
	for i, x := range input {
		want[i] = 2*x - 1
	}

	slices.Sort(got)
	slices.Sort(want)
	assert.Equal(t, want, got)
}

// Scenario B: Pack(4) -> Unpack over [1..10], single-worker stages
// preserve order; the last Pack batch has length 2.
func TestPipeline_ScenarioB_PackUnpackRoundTrip(t *testing.T) {
	pack := Pack(4)
	p := New([]Stage{pack, Unpack()})
	require.NoError(t, p.Start())
	defer p.Stop()

	require.NoError(t, p.QueueIterable(ints(10)))

	got := drain(t, p)

	want := make([]any, 10)
	for i := range want {
		want[i] = i + 1
	}
	assert.Equal(t, want, got)
}

// Scenario C: Map(identity, N=3) over 1000 ints, bag equality.
func TestPipeline_ScenarioC_IdentityMapBagEquality(t *testing.T) {
	identity := Map("identity", 3, func(v any) (any, error) {
		return v, nil
	})
	p := New([]Stage{identity})
	require.NoError(t, p.Start())
	defer p.Stop()

	require.NoError(t, p.QueueIterable(ints(1000)))

	var got []int
	for v := range p.All() {
		got = append(got, v.(int))
	}

	want := make([]int, 1000)
	for i := range want {
		want[i] = i + 1
	}

	slices.Sort(got)
	assert.Equal(t, want, got)
}

// Scenario D: Map(f, N=2) where f errors on 42, input [1..100]; a
// fatal error surfaces mentioning 42, and the pipeline becomes
// unusable afterward.
func TestPipeline_ScenarioD_ErrorPropagation(t *testing.T) {
	boom := Map("boom", 2, func(v any) (any, error) {
		if v.(int) == 42 {
			return nil, errors.New("boom on 42")
		}
		return v, nil
	})
	p := New([]Stage{boom})
	require.NoError(t, p.Start())
	defer p.Stop()

	require.NoError(t, p.QueueIterable(ints(100)))

	// drain whatever made it out before shutdown, then wait for the
	// fatal error.
	for range p.All() {
	}

	select {
	case err := <-p.Err():
		require.Error(t, err)
		var fatal *FatalError
		require.True(t, errors.As(err, &fatal))
		assert.Contains(t, fatal.Report.ItemSummary, "42")
	case <-time.After(5 * time.Second):
		t.Fatal("expected a fatal error within 5s")
	}

	err := p.QueueIterable(ints(1))
	assert.ErrorIs(t, err, ErrShutdown)
}

// Scenario E: Pool(square, K=4) over [[1,2,3],[4,5],[6]], order
// preserved (single worker, single queue depth).
func TestPipeline_ScenarioE_Pool(t *testing.T) {
	square := Pool("square", 4, func(v any) (any, error) {
		n := v.(int)
		return n * n, nil
	})
	p := New([]Stage{square})
	require.NoError(t, p.Start())
	defer p.Stop()

	require.NoError(t, p.QueueIterable(slice2d(t, [][]int{{1, 2, 3}, {4, 5}, {6}})))

	got := drain(t, p)
	require.Len(t, got, 3)
	assert.Equal(t, []any{1, 4, 9}, got[0])
	assert.Equal(t, []any{16, 25}, got[1])
	assert.Equal(t, []any{36}, got[2])
}

func slice2d(t *testing.T, vs [][]int) func(yield func(any) bool) {
	t.Helper()
	return func(yield func(any) bool) {
		for _, v := range vs {
			col := make([]any, len(v))
			for i, x := range v {
				col[i] = x
			}
			if !yield(col) {
				return
			}
		}
	}
}

// Scenario F: stop mid-iteration; every worker exits promptly and
// every queue is closed.
func TestPipeline_ScenarioF_StopMidIteration(t *testing.T) {
	slow := Map("slow", 2, func(v any) (any, error) {
		time.Sleep(50 * time.Millisecond)
		return v, nil
	})
	p := New([]Stage{slow})
	require.NoError(t, p.Start())

	// Q0 is unbounded, so this returns once all 1000 items are queued;
	// the slow stage is still working through them when Stop is called.
	require.NoError(t, p.QueueIterable(ints(1000)))

	v, ok, err := p.Next()
	require.NoError(t, err)
	require.True(t, ok)
	_ = v

	done := make(chan struct{})
	go func() {
		p.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("Stop did not return within 10s")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for _, q := range p.queues {
		_, err := q.Get(ctx)
		assert.ErrorIs(t, err, errClosed)
	}
}

// Repack cardinality: summed input collection sizes equal summed
// output collection sizes, across a boundary-crossing k.
func TestRepack_Cardinality(t *testing.T) {
	repack := Repack(3)
	p := New([]Stage{repack})
	require.NoError(t, p.Start())
	defer p.Stop()

	require.NoError(t, p.QueueIterable(slice2d(t, [][]int{{1, 2}, {3, 4, 5}, {6}})))

	got := drain(t, p)

	totalIn := 6
	totalOut := 0
	for _, v := range got {
		totalOut += len(v.([]any))
	}
	assert.Equal(t, totalIn, totalOut)
}

// Terminate-once: on a single queue, a terminal marker put after two
// items is dequeued last, after both items.
func TestQueue_TerminateOnce(t *testing.T) {
	q := NewQueue(0)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, q.Put(ctx, ItemMsg(1)))
	require.NoError(t, q.Put(ctx, ItemMsg(2)))
	require.NoError(t, q.Put(ctx, TerminateMsg()))

	m, err := q.Get(ctx)
	require.NoError(t, err)
	assert.False(t, m.IsTerminal())

	m, err = q.Get(ctx)
	require.NoError(t, err)
	assert.False(t, m.IsTerminal())

	m, err = q.Get(ctx)
	require.NoError(t, err)
	assert.True(t, m.IsTerminal())
}

// Pack cardinality: N items into batches of k emit ceil(N/k)
// collections, the last sized N mod k.
func TestPack_Cardinality(t *testing.T) {
	pack := Pack(8)
	p := New([]Stage{pack})
	require.NoError(t, p.Start())
	defer p.Stop()

	require.NoError(t, p.QueueIterable(ints(19)))

	got := drain(t, p)
	require.Len(t, got, 3)
	assert.Len(t, got[0].([]any), 8)
	assert.Len(t, got[1].([]any), 8)
	assert.Len(t, got[2].([]any), 3)
}

// Backpressure: with a slow stage whose output nobody drains, every
// bounded queue (here the stage's capacity-1 output queue) stays at or
// below its configured capacity at every sample.
func TestBackpressure_BoundedQueueDepth(t *testing.T) {
	var sampled int32
	slow := Map("slow", 1, func(v any) (any, error) {
		time.Sleep(20 * time.Millisecond)
		return v, nil
	})
	p := New([]Stage{slow})
	require.NoError(t, p.Start())
	defer p.Stop()

	go p.QueueIterable(ints(50))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		for _, q := range p.queues {
			if c := q.Capacity(); c > 0 {
				require.LessOrEqual(t, q.QSize(), c)
			}
		}
		atomic.AddInt32(&sampled, 1)
		time.Sleep(time.Millisecond)
	}

	require.Greater(t, sampled, int32(0))
}

func ExampleMap() {
	double := Map("double", 1, func(v any) (any, error) {
		return v.(int) * 2, nil
	})
	p := New([]Stage{double})
	if err := p.Start(); err != nil {
		panic(err)
	}
	defer p.Stop()

	p.QueueIterable(slice(1, 2, 3))
	for v := range p.All() {
		fmt.Println(v)
	}
	// Output:
	// 2
	// 4
	// 6
}
