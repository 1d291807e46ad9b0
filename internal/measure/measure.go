// Package measure implements the Measurement Context (spec.md §4.2): it
// drives one Environment/Module pair through a cell's warmup and measurement
// iterations and produces an ordered Batch of Samples plus the cell's
// terminal status. internal/orchestrator owns concurrency across cells;
// this package only runs one cell at a time, sequentially.
package measure

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/jpequegn/wasmbench/internal/artifact"
	"github.com/jpequegn/wasmbench/internal/env"
	"github.com/jpequegn/wasmbench/internal/obs"
	"github.com/jpequegn/wasmbench/internal/runspec"
	"github.com/jpequegn/wasmbench/internal/wasmerr"
)

// paramsBufferSize is the fixed scratch buffer reserved once per cell for
// the run_task parameter block: a little-endian (seed u32, size u32) pair.
// The three workloads never need more than this to locate their own working
// set inside linear memory (spec.md §2's ABI contract).
const paramsBufferSize = 8

// Runner drives a single cell's Measurement Context against an Environment
// and an Artifact Provider.
type Runner struct {
	Env      env.Environment
	Artifact artifact.Provider
	Obs      obs.Sink
}

// New creates a Runner. obsSink may be nil, in which case events are dropped.
func New(environment env.Environment, provider artifact.Provider, obsSink obs.Sink) *Runner {
	if obsSink == nil {
		obsSink = obs.NopSink{}
	}
	return &Runner{Env: environment, Artifact: provider, Obs: obsSink}
}

// Run executes cell's full warmup and measurement protocol and returns its
// Batch. Run never panics on a cell-local failure; every failure mode ends
// with a Batch carrying a non-OK Terminal status instead.
func (r *Runner) Run(ctx context.Context, cell runspec.Cell) Batch {
	id := cell.ID()
	batch := Batch{CellID: id}

	raw, err := r.Artifact.Load(cell.Artifact)
	if err != nil {
		r.Obs.Emit(obs.Event{Level: obs.LevelError, Cell: id, Phase: "load", Message: err.Error()})
		batch.Terminal = StatusArtifactLoadFailed
		batch.Err = err
		return batch
	}

	mod, err := r.Env.Instantiate(ctx, raw)
	if err != nil {
		r.Obs.Emit(obs.Event{Level: obs.LevelError, Cell: id, Phase: "instantiate", Message: err.Error()})
		batch.Terminal = toTerminal(err, StatusEnvironmentInitFailed)
		batch.Err = err
		return batch
	}
	defer func() { _ = mod.Close(ctx) }()

	paramsPtr, err := mod.Alloc(ctx, paramsBufferSize)
	if err != nil {
		r.Obs.Emit(obs.Event{Level: obs.LevelError, Cell: id, Phase: "alloc", Message: err.Error()})
		batch.Terminal = StatusEnvironmentInitFailed
		batch.Err = err
		return batch
	}

	params := make([]byte, paramsBufferSize)
	binary.LittleEndian.PutUint32(params[0:4], cell.Seed)
	binary.LittleEndian.PutUint32(params[4:8], uint32(cell.Size))
	if err := mod.WriteMemory(paramsPtr, params); err != nil {
		r.Obs.Emit(obs.Event{Level: obs.LevelError, Cell: id, Phase: "alloc", Message: err.Error()})
		batch.Terminal = StatusEnvironmentInitFailed
		batch.Err = err
		return batch
	}

	total := cell.Warmup + cell.Measurement
	var failures int
	for i := 0; i < total; i++ {
		measured := i >= cell.Warmup

		// Cancellation is honored only between iterations, never mid-iteration
		// (spec.md §4.2).
		if ctx.Err() != nil {
			batch.Terminal = StatusCancelled
			batch.Err = ctx.Err()
			return batch
		}

		sample, status, sampleErr := r.runIteration(ctx, mod, cell, paramsPtr, i)
		if measured {
			batch.Samples = append(batch.Samples, sample)
		}

		if status != StatusOK {
			tolerable := status == StatusRuntimeTrap ||
				(status == StatusResultMismatch && cell.DigestExempt)
			if tolerable {
				// Per-iteration non-digest failures (runtime traps), and
				// digest mismatches on digest-exempt cells, are recorded as
				// success=false samples and do not fail the cell unless they
				// exceed the configured fraction (spec.md §4.2, §9).
				failures++
				if measured && failureFraction(failures, cell.Measurement) <= cell.RuntimeTrapFraction {
					continue
				}
			}
			r.Obs.Emit(obs.Event{Level: obs.LevelWarn, Cell: id, Phase: "measure", Message: sampleErr.Error()})
			batch.Terminal = status
			batch.Err = sampleErr
			return batch
		}
	}

	batch.Terminal = StatusOK
	return batch
}

func failureFraction(failures, attempts int) float64 {
	if attempts == 0 {
		return 0
	}
	return float64(failures) / float64(attempts)
}

// runIteration performs one reset-measure cycle:
// Init(seed) -> GCHint -> memory_before -> start timer -> RunTask ->
// stop timer -> memory_after -> verify digest.
func (r *Runner) runIteration(ctx context.Context, mod env.Module, cell runspec.Cell, paramsPtr uint32, iteration int) (Sample, TerminalStatus, error) {
	if err := mod.Init(ctx, cell.Seed); err != nil {
		return Sample{}, StatusEnvironmentInitFailed, err
	}

	mod.GCHint(ctx)

	iterCtx := ctx
	var cancel context.CancelFunc
	if cell.Timeout > 0 {
		iterCtx, cancel = context.WithTimeout(ctx, cell.Timeout)
		defer cancel()
	}

	memBefore := mod.MemoryUsage()
	start := r.Env.Now()
	digest, err := mod.RunTask(iterCtx, paramsPtr)
	elapsed := r.Env.Now() - start
	memAfter := mod.MemoryUsage()

	sample := Sample{
		CellID:       cell.ID(),
		Iteration:    iteration,
		Elapsed:      time.Duration(elapsed),
		MemoryBefore: memBefore,
		MemoryAfter:  memAfter,
		Digest:       digest,
	}

	if err != nil {
		if iterCtx.Err() != nil {
			sample.ErrorKind = string(wasmerr.IterationTimeout)
			return sample, StatusIterationTimeout, wasmerr.New(wasmerr.IterationTimeout, cell.ID(), fmt.Errorf("iteration %d: %w", iteration, err))
		}
		// A non-timeout RunTask error is a per-iteration runtime trap
		// (spec.md §4.2 "Per-iteration non-digest errors"), tolerated up to
		// cell.RuntimeTrapFraction rather than failing the cell outright.
		sample.Success = false
		sample.ErrorKind = string(wasmerr.RuntimeTrap)
		return sample, StatusRuntimeTrap, wasmerr.New(wasmerr.RuntimeTrap, cell.ID(), fmt.Errorf("iteration %d: %w", iteration, err))
	}

	if !cell.DigestExempt && digest != cell.ReferenceDigest {
		mismatchErr := wasmerr.New(wasmerr.ResultMismatch, cell.ID(),
			fmt.Errorf("iteration %d: got digest %d, want %d", iteration, digest, cell.ReferenceDigest))
		sample.Success = false
		sample.ErrorKind = string(wasmerr.ResultMismatch)
		return sample, StatusResultMismatch, mismatchErr
	}
	if cell.DigestExempt && digest != cell.ReferenceDigest {
		sample.Success = false
		sample.ErrorKind = string(wasmerr.ResultMismatch)
		return sample, StatusResultMismatch, wasmerr.New(wasmerr.ResultMismatch, cell.ID(), fmt.Errorf("iteration %d digest mismatch (exempt)", iteration))
	}

	sample.Success = true
	return sample, StatusOK, nil
}

func toTerminal(err error, fallback TerminalStatus) TerminalStatus {
	kind, ok := wasmerr.KindOf(err)
	if !ok {
		return fallback
	}
	switch kind {
	case wasmerr.ArtifactLoadFailed:
		return StatusArtifactLoadFailed
	case wasmerr.EnvironmentInitFailed:
		return StatusEnvironmentInitFailed
	default:
		return fallback
	}
}
