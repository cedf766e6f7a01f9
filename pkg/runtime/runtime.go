// Package runtime is the runtime support library C7 of the DSWP design
// (SPEC_FULL.md §4.8): a concrete, testable body for the three symbols
// pkg/stage and pkg/stitch only ever emit *calls* to (spec.md §6) — a
// generic bounded SPSC queue and a pipeline runner that launches every
// stage on its own goroutine and joins them.
//
// Nothing in the retrieval pack reaches for a third-party SPSC queue
// implementation, so Queue stays on a plain buffered channel (DESIGN.md
// carries the explicit justification); joining the stage goroutines uses
// golang.org/x/sync/errgroup, grounded on SPEC_FULL.md §11.
package runtime

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Queue is a bounded single-producer/single-consumer channel, the concrete
// realization of the `queue_push`/`queue_pop` runtime symbols (spec.md §6).
// T is the link's element type (REDESIGN FLAG #1, SPEC_FULL.md §10.1):
// Queue is generic rather than hard-coded to a 32-bit integer, though
// StageFunc and RunPipeline instantiate it with int32.
type Queue[T any] struct {
	ch chan T
}

// NewQueue allocates a queue with the given buffer depth. A depth of zero
// makes Push/Pop rendezvous directly, matching an unbuffered SPSC handoff.
func NewQueue[T any](depth int) *Queue[T] {
	return &Queue[T]{ch: make(chan T, depth)}
}

// Push enqueues v, blocking until there is room or ctx is done. Cooperative
// cancellation (spec.md §5) unblocks a stage stalled on a full queue instead
// of leaking its goroutine.
func (q *Queue[T]) Push(ctx context.Context, v T) error {
	select {
	case q.ch <- v:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pop dequeues the next value. ok is false when the queue has been closed
// and drained — the producer stage has finished and there is nothing left
// to read.
func (q *Queue[T]) Pop(ctx context.Context) (v T, ok bool, err error) {
	select {
	case v, ok = <-q.ch:
		return v, ok, nil
	case <-ctx.Done():
		var zero T
		return zero, false, ctx.Err()
	}
}

// Close signals the consumer side that no further values are coming. Only
// the producer stage may call it.
func (q *Queue[T]) Close() {
	close(q.ch)
}

// StageFunc is the shape every materialized stage procedure's runtime body
// takes: read from in (nil for the first stage) and write to out (nil for
// the last stage). RunPipeline closes out once the function returns, so the
// next stage's Pop loop terminates (spec.md §4.5: "fn(queue_in*, queue_out*) -> i32, with
// nulls for absent ends").
type StageFunc func(ctx context.Context, in, out *Queue[int32]) error

// QueueDepth is the buffer depth RunPipeline allocates for every inter-stage
// queue. One element is enough to decouple adjacent stages without the
// unbounded growth spec.md §5 rules out ("pipeline stages communicate
// through bounded queues").
const QueueDepth = 1

// RunPipeline is the reference `pipeline_runner` body (spec.md §6):
// allocates one queue per adjacent stage pair, launches every stage on its
// own goroutine, and joins them with errgroup.Group, which propagates the
// first stage error and cancels the group's context so every other stage's
// next Push/Pop returns immediately instead of blocking forever.
func RunPipeline(ctx context.Context, stages ...StageFunc) error {
	if len(stages) == 0 {
		return fmt.Errorf("dswp: runtime: pipeline_runner called with no stages")
	}

	queues := make([]*Queue[int32], len(stages)-1)
	for i := range queues {
		queues[i] = NewQueue[int32](QueueDepth)
	}

	group, groupCtx := errgroup.WithContext(ctx)
	for idx, stage := range stages {
		idx, stage := idx, stage
		var in, out *Queue[int32]
		if idx > 0 {
			in = queues[idx-1]
		}
		if idx < len(stages)-1 {
			out = queues[idx]
		}
		group.Go(func() error {
			err := stage(groupCtx, in, out)
			if out != nil {
				out.Close()
			}
			return err
		})
	}
	return group.Wait()
}
