package runspec

import (
	"time"

	"github.com/jpequegn/wasmbench/internal/workload"
)

// Cell is the atomic unit of execution: a (task, language, scale) triple,
// immutable after construction (spec.md §3).
type Cell struct {
	Task       workload.Task
	Language   string
	ScaleName  string
	Artifact   string // locator returned by the Artifact Provider at load time
	Seed       uint32
	Size       int
	Measurement int
	Warmup      int
	Timeout     time.Duration
	RuntimeTrapFraction float64

	ReferenceDigest uint32
	DigestExempt    bool
}

// ID returns the cell's identity string, "task/language/scale".
func (c Cell) ID() string {
	return string(c.Task) + "/" + c.Language + "/" + c.ScaleName
}

// GlobalParams are the run-wide parameters declared by the run-specification
// file: warmup/measurement counts, timeouts, concurrency, and the Quality
// Filter / Statistical Engine thresholds (spec.md §4.1, §4.5, §4.6).
type GlobalParams struct {
	Warmup                  int
	Measurement             int
	PerIterationTimeout     time.Duration
	Concurrency             int
	FailureRateThreshold    float64
	MinCellsBeforeAbort     int // floor on completed cells before the failure-rate check can trip (spec.md §4.4 "at least k cells")
	NMin                    int
	CVMax                   float64
	FDRq                    float64
	CellTimeoutSafetyFactor float64
	RuntimeTrapFraction     float64 // max fraction of measured iterations that may fail (runtime traps, or digest mismatches on digest-exempt cells) before the cell fails
}

// CellTimeout is the orchestrator-enforced per-cell wall-clock budget:
// measurement x per-iteration timeout x safety factor (spec.md §4.4).
func (g GlobalParams) CellTimeout() time.Duration {
	factor := g.CellTimeoutSafetyFactor
	if factor <= 0 {
		factor = 3
	}
	return time.Duration(float64(g.Measurement) * float64(g.PerIterationTimeout) * factor)
}

// RunSpec is the frozen, validated description of all cells to execute plus
// the global parameters, produced by Load.
type RunSpec struct {
	cells  []Cell
	global GlobalParams
}

// Cells returns the ordered, immutable cell vector. Ordering is deterministic
// for a given source (declared task/scale/language order), never dependent
// on map iteration.
func (r *RunSpec) Cells() []Cell {
	out := make([]Cell, len(r.cells))
	copy(out, r.cells)
	return out
}

// Global returns the run-wide parameters.
func (r *RunSpec) Global() GlobalParams {
	return r.global
}
