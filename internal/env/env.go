// Package env declares the Execution Environment contract (spec.md §6):
// instantiation of a WASM module from bytes, invocation of the three
// exported entry points that form the WASM ABI contract, linear-memory
// read/write, a monotonic clock, a memory-usage accessor, and a
// best-effort garbage-collection hint. internal/wasmhost provides the
// concrete wazero-backed implementation; internal/measure depends only on
// this interface so it can be driven by fakes in tests.
package env

import "context"

// Module is one instantiated WASM module, scoped to exactly one Cell.
// Implementations must never be reused across cells (spec.md §9 "Isolation
// per cell"); reuse across the warmup and measurement iterations of the
// same cell is required.
type Module interface {
	// Init calls the module's exported `init(seed: u32) -> void`.
	Init(ctx context.Context, seed uint32) error

	// Alloc calls the module's exported `alloc(bytes: u32) -> u32` and
	// returns the linear-memory offset of the allocation.
	Alloc(ctx context.Context, numBytes uint32) (ptr uint32, err error)

	// RunTask calls the module's exported `run_task(params_ptr: u32) -> u32`
	// and returns the result digest it computes.
	RunTask(ctx context.Context, paramsPtr uint32) (digest uint32, err error)

	// WriteMemory writes data into the module's linear memory at offset.
	WriteMemory(offset uint32, data []byte) error

	// ReadMemory reads numBytes from the module's linear memory at offset.
	ReadMemory(offset uint32, numBytes uint32) ([]byte, error)

	// MemoryUsage returns the host's chosen memory accessor reading, opaque
	// and comparable only within the cell that produced it (spec.md §9).
	MemoryUsage() uint64

	// GCHint issues a best-effort garbage-collection/quiescence hint. It
	// must not be called, nor have any effect, between start-timer and
	// stop-timer (spec.md §5 "no I/O between start timer and stop timer";
	// the hint itself is requested only before each measured iteration).
	GCHint(ctx context.Context)

	// Close tears down the module. Called exactly once, after the cell's
	// last iteration (measured, cancelled or failed).
	Close(ctx context.Context) error
}

// Environment instantiates a fresh Module from compiled WASM bytes for
// exactly one cell, and supplies the monotonic clock the Measurement
// Context uses to time each iteration.
type Environment interface {
	// Instantiate compiles (if necessary) and instantiates a fresh Module.
	// Implementations must not cache or share instantiated modules across
	// calls — each call produces an isolated instance.
	Instantiate(ctx context.Context, artifact []byte) (Module, error)

	// Now returns a monotonic timestamp in nanoseconds, from the single
	// clock source used for every iteration of every cell this Environment
	// serves (spec.md §9 "Timer selection").
	Now() int64
}
