// Package fanout dispatches one capability call to every discovered editor
// instance concurrently and reduces the partial results.
//
// This is the only concurrency boundary in the system. Each instance gets an
// independent worker bounded by its own private timeout, so a hung instance
// can neither delay siblings past that timeout nor corrupt their results.
// Reduction policy is per operation: buffer status uses a bounded join with a
// logical-OR reduce, side-effect broadcasts count successes, and selection
// queries resolve in deterministic instance order rather than arrival order.
package fanout

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sidekick-ai/sidekick/internal/action"
	"github.com/sidekick-ai/sidekick/internal/discovery"
	"github.com/sidekick-ai/sidekick/internal/logging"
)

// Opener creates the adapter for an instance. Injectable for tests.
type Opener func(discovery.Instance) action.Action

// Aggregate is the reduced buffer-status verdict across all instances that
// answered before their timeout.
type Aggregate struct {
	// Blocked is true when any instance reported the file current with
	// unsaved changes.
	Blocked bool
	// BlockingKind is the backend kind of the first blocking instance in
	// deterministic order. Zero when not blocked.
	BlockingKind discovery.Kind
	// Answered counts instances that produced a status before timing out.
	Answered int
}

// Aggregator fans one operation out to a fixed set of instances.
type Aggregator struct {
	instances []discovery.Instance
	open      Opener
	timeout   time.Duration
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithOpener overrides the adapter factory.
func WithOpener(open Opener) Option {
	return func(a *Aggregator) { a.open = open }
}

// WithTimeout overrides the per-instance call timeout.
func WithTimeout(d time.Duration) Option {
	return func(a *Aggregator) { a.timeout = d }
}

// New creates an Aggregator over the given instances. Instance order is
// normalized to lexicographic socket order so every reduction that depends
// on order is deterministic regardless of what the caller passed in.
func New(instances []discovery.Instance, opts ...Option) *Aggregator {
	sorted := make([]discovery.Instance, len(instances))
	copy(sorted, instances)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Socket < sorted[j].Socket
	})

	a := &Aggregator{
		instances: sorted,
		open:      action.New,
		timeout:   2 * time.Second,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Instances returns the normalized instance list.
func (a *Aggregator) Instances() []discovery.Instance {
	return a.instances
}

// BufferStatus queries every instance for the file's status and reduces by
// logical OR of (is_current AND has_unsaved_changes). The join is bounded:
// workers run concurrently and each is cut off at the per-instance timeout,
// so the whole call returns within roughly one timeout even when every
// instance hangs. Instances that fail or time out simply do not contribute.
func (a *Aggregator) BufferStatus(ctx context.Context, path string) Aggregate {
	type result struct {
		status action.BufferStatus
		ok     bool
	}
	results := make([]result, len(a.instances))

	var g errgroup.Group
	for i, inst := range a.instances {
		g.Go(func() error {
			wctx, cancel := context.WithTimeout(ctx, a.timeout)
			defer cancel()

			status, err := a.open(inst).BufferStatus(wctx, path)
			if err != nil {
				logging.Debug().Err(err).Str("socket", inst.Socket).Msg("buffer status query failed")
				return nil
			}
			results[i] = result{status: status, ok: true}
			return nil
		})
	}
	_ = g.Wait()

	var agg Aggregate
	for i, r := range results {
		if !r.ok {
			continue
		}
		agg.Answered++
		if r.status.IsCurrent && r.status.HasUnsavedChanges && !agg.Blocked {
			agg.Blocked = true
			agg.BlockingKind = a.instances[i].Kind
		}
	}
	return agg
}

// RefreshBuffer asks every instance to reload the file from disk. Returns
// the number of instances that acknowledged. Failures are silent; this is a
// best-effort side effect with no bearing on any decision.
func (a *Aggregator) RefreshBuffer(ctx context.Context, path string) int {
	return a.broadcast(ctx, "refresh buffer", func(ctx context.Context, act action.Action) error {
		return act.RefreshBuffer(ctx, path)
	})
}

// SendMessage raises a notification in every instance. Returns the number
// of instances that acknowledged.
func (a *Aggregator) SendMessage(ctx context.Context, text string) int {
	return a.broadcast(ctx, "send message", func(ctx context.Context, act action.Action) error {
		return act.SendMessage(ctx, text)
	})
}

// VisualSelection queries every instance and resolves to the first non-empty
// selection in deterministic instance order. Arrival order of responses does
// not influence the choice: all workers finish (or time out) before the
// reduction walks the ordered results.
func (a *Aggregator) VisualSelection(ctx context.Context) *action.Selection {
	selections := make([]*action.Selection, len(a.instances))

	var g errgroup.Group
	for i, inst := range a.instances {
		g.Go(func() error {
			wctx, cancel := context.WithTimeout(ctx, a.timeout)
			defer cancel()

			sel, err := a.open(inst).VisualSelection(wctx)
			if err != nil {
				logging.Debug().Err(err).Str("socket", inst.Socket).Msg("selection query failed")
				return nil
			}
			selections[i] = sel
			return nil
		})
	}
	_ = g.Wait()

	for _, sel := range selections {
		if sel != nil {
			return sel
		}
	}
	return nil
}

// broadcast runs fn against every instance concurrently and waits. The wait
// is bounded by the per-instance timeout since all workers run in parallel;
// exiting without any wait would tear down connections mid-flight.
func (a *Aggregator) broadcast(ctx context.Context, what string, fn func(context.Context, action.Action) error) int {
	oks := make([]bool, len(a.instances))

	var g errgroup.Group
	for i, inst := range a.instances {
		g.Go(func() error {
			wctx, cancel := context.WithTimeout(ctx, a.timeout)
			defer cancel()

			if err := fn(wctx, a.open(inst)); err != nil {
				logging.Debug().Err(err).Str("socket", inst.Socket).Msgf("%s failed", what)
				return nil
			}
			oks[i] = true
			return nil
		})
	}
	_ = g.Wait()

	count := 0
	for _, ok := range oks {
		if ok {
			count++
		}
	}
	return count
}
