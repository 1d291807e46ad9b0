// Package orchestrator schedules a RunSpec's cells across a bounded worker
// pool (spec.md §4.4): each cell runs in its own Measurement Context, with
// a per-cell wall-clock budget, a global failure-rate abort threshold, and
// cooperative cancellation. The worker-pool/channel shape is adapted from
// the teacher's internal/executor.ExecuteBatch.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jpequegn/wasmbench/internal/measure"
	"github.com/jpequegn/wasmbench/internal/obs"
	"github.com/jpequegn/wasmbench/internal/runspec"
)

// Runner runs one cell and returns its Batch. *measure.Runner satisfies
// this; orchestrator depends on the narrower interface so it can be driven
// by a fake in tests.
type Runner interface {
	Run(ctx context.Context, cell runspec.Cell) measure.Batch
}

// Orchestrator schedules a RunSpec's cells over a bounded worker pool.
type Orchestrator struct {
	runner Runner
	obs    obs.Sink
}

func New(runner Runner, obsSink obs.Sink) *Orchestrator {
	if obsSink == nil {
		obsSink = obs.NopSink{}
	}
	return &Orchestrator{runner: runner, obs: obsSink}
}

// Result is the outcome of scheduling one RunSpec.
type Result struct {
	Batches []measure.Batch
	// Aborted is true if the run stopped early because the failure-rate
	// threshold was exceeded (spec.md §4.4 "abort policy").
	Aborted bool
}

// Run schedules cells across global.Concurrency workers and returns once
// all scheduled cells have finished, the context is cancelled, or the
// failure-rate threshold trips. Callers pass spec.Cells() and
// spec.Global() from a loaded runspec.RunSpec.
func (o *Orchestrator) Run(ctx context.Context, cells []runspec.Cell, global runspec.GlobalParams) Result {
	workers := global.Concurrency
	if workers <= 0 {
		workers = 1
	}
	if workers > len(cells) {
		workers = len(cells)
	}

	// jobs is buffered to workers, not len(cells): once the failure-rate
	// threshold trips and cancel() fires, the feeder goroutine must still be
	// able to observe runCtx.Done() before it has queued every remaining
	// cell, so the abort actually cuts the run short.
	jobs := make(chan runspec.Cell, workers)
	results := make(chan measure.Batch, len(cells))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var completed, failed int64

	cellTimeout := global.CellTimeout()

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go o.worker(runCtx, jobs, results, cellTimeout, &wg)
	}

	go func() {
		defer close(jobs)
		for _, cell := range cells {
			select {
			case jobs <- cell:
			case <-runCtx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	var batches []measure.Batch
	aborted := false
	for batch := range results {
		batches = append(batches, batch)
		atomic.AddInt64(&completed, 1)
		if batch.Terminal != measure.StatusOK {
			atomic.AddInt64(&failed, 1)
		}

		n := atomic.LoadInt64(&completed)
		if rate := failureRate(n, atomic.LoadInt64(&failed)); n >= int64(global.MinCellsBeforeAbort) && rate > global.FailureRateThreshold {
			if !aborted {
				aborted = true
				o.obs.Emit(obs.Event{
					Level:   obs.LevelError,
					Phase:   "schedule",
					Message: fmt.Sprintf("aborting run: failure rate %.2f exceeds threshold %.2f", rate, global.FailureRateThreshold),
				})
				cancel()
			}
		}
	}

	return Result{Batches: batches, Aborted: aborted}
}

func failureRate(completed, failed int64) float64 {
	if completed == 0 {
		return 0
	}
	return float64(failed) / float64(completed)
}

func (o *Orchestrator) worker(ctx context.Context, jobs <-chan runspec.Cell, results chan<- measure.Batch, cellTimeout time.Duration, wg *sync.WaitGroup) {
	defer wg.Done()
	for cell := range jobs {
		select {
		case <-ctx.Done():
			results <- measure.Batch{CellID: cell.ID(), Terminal: measure.StatusCancelled, Err: ctx.Err()}
			continue
		default:
		}

		o.obs.Emit(obs.Event{Level: obs.LevelInfo, Cell: cell.ID(), Phase: "schedule", Message: "starting cell"})

		cellCtx := ctx
		var cancel context.CancelFunc
		if cellTimeout > 0 {
			cellCtx, cancel = context.WithTimeout(ctx, cellTimeout)
		}

		batch := o.runner.Run(cellCtx, cell)
		if cancel != nil {
			cancel()
		}
		if cellCtx.Err() == context.DeadlineExceeded && batch.Terminal != measure.StatusOK {
			batch.Terminal = measure.StatusCellTimeout
			batch.Err = fmt.Errorf("cell timeout exceeded: %w", cellCtx.Err())
		}

		o.obs.Emit(obs.Event{Level: obs.LevelInfo, Cell: cell.ID(), Phase: "schedule", Message: fmt.Sprintf("finished cell: %s", batch.Terminal)})
		results <- batch
	}
}
