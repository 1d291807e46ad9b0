package measure

import "time"

// Sample is one measured iteration of one cell (spec.md §3). A warmup
// iteration never produces a Sample.
type Sample struct {
	CellID       string
	Iteration    int
	Elapsed      time.Duration
	MemoryBefore uint64
	MemoryAfter  uint64
	Digest       uint32
	Success      bool
	ErrorKind    string // wasmerr.Kind string, empty when Success
}

// TerminalStatus is the cell's final disposition after its Measurement
// Context finishes (spec.md §4.2 "Failure semantics").
type TerminalStatus string

const (
	StatusOK                    TerminalStatus = "OK"
	StatusResultMismatch        TerminalStatus = "RESULT_MISMATCH"
	StatusIterationTimeout      TerminalStatus = "ITERATION_TIMEOUT"
	StatusEnvironmentInitFailed TerminalStatus = "ENVIRONMENT_INIT_FAILED"
	StatusArtifactLoadFailed    TerminalStatus = "ARTIFACT_LOAD_FAILED"
	StatusCancelled             TerminalStatus = "CANCELLED"
	StatusCellTimeout           TerminalStatus = "CELL_TIMEOUT"
	StatusRuntimeTrap           TerminalStatus = "RUNTIME_TRAP"
)

// Batch is the ordered Sample sequence for one cell plus its terminal
// status (spec.md §3 "Sample Batch"). Batches never merge.
type Batch struct {
	CellID   string
	Samples  []Sample
	Terminal TerminalStatus
	Err      error
}
