// Package wasmhost implements the Execution Environment contract
// (internal/env) on top of github.com/tetratelabs/wazero, a server-side
// WASM engine. This is the default, concrete Execution Environment for
// cmd/wasmbench; internal/measure is tested against fakes instead so its
// unit tests do not depend on real compiled artifacts.
package wasmhost

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/jpequegn/wasmbench/internal/env"
	"github.com/jpequegn/wasmbench/internal/wasmerr"
)

// Host is an env.Environment backed by one wazero runtime. Each Instantiate
// call compiles and instantiates a fresh module; the runtime itself (and its
// compilation cache) is shared across cells purely as a compiler-engine
// instance — no module state is shared, satisfying the "fresh execution
// environment per cell" requirement of spec.md §4.2.
type Host struct {
	runtime wazero.Runtime
	clock   func() int64
}

// New creates a Host using wazero's optimizing compiler engine, configured
// to stop a running call once its context is done so per-iteration and
// per-cell deadlines take effect. clock defaults to the nanoseconds elapsed
// on Go's monotonic clock since New was called; tests may override it with
// a synthetic monotonic source.
func New(ctx context.Context, clock func() int64) *Host {
	if clock == nil {
		base := time.Now()
		clock = func() int64 { return int64(time.Since(base)) }
	}
	rt := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfigCompiler().WithCloseOnContextDone(true))
	return &Host{runtime: rt, clock: clock}
}

// Close releases the underlying wazero runtime and every module compiled
// against it. Call once the whole run has finished.
func (h *Host) Close(ctx context.Context) error {
	return h.runtime.Close(ctx)
}

func (h *Host) Now() int64 { return h.clock() }

// Instantiate compiles and instantiates artifact as a fresh module instance.
func (h *Host) Instantiate(ctx context.Context, artifact []byte) (env.Module, error) {
	compiled, err := h.runtime.CompileModule(ctx, artifact)
	if err != nil {
		return nil, wasmerr.New(wasmerr.ArtifactLoadFailed, "", fmt.Errorf("compiling module: %w", err))
	}

	mod, err := h.runtime.InstantiateModule(ctx, compiled, wazero.NewModuleConfig())
	if err != nil {
		_ = compiled.Close(ctx)
		return nil, wasmerr.New(wasmerr.EnvironmentInitFailed, "", fmt.Errorf("instantiating module: %w", err))
	}

	for _, name := range []string{"init", "alloc", "run_task"} {
		if mod.ExportedFunction(name) == nil {
			_ = mod.Close(ctx)
			_ = compiled.Close(ctx)
			return nil, wasmerr.New(wasmerr.EnvironmentInitFailed, "",
				fmt.Errorf("module does not export required ABI function %q", name))
		}
	}

	return &wazeroModule{mod: mod, compiled: compiled}, nil
}

// wazeroModule adapts an instantiated api.Module to env.Module.
type wazeroModule struct {
	mod      api.Module
	compiled wazero.CompiledModule
}

func (m *wazeroModule) Init(ctx context.Context, seed uint32) error {
	_, err := m.mod.ExportedFunction("init").Call(ctx, uint64(seed))
	if err != nil {
		return wasmerr.New(wasmerr.EnvironmentInitFailed, "", fmt.Errorf("calling init: %w", err))
	}
	return nil
}

func (m *wazeroModule) Alloc(ctx context.Context, numBytes uint32) (uint32, error) {
	res, err := m.mod.ExportedFunction("alloc").Call(ctx, uint64(numBytes))
	if err != nil {
		return 0, wasmerr.New(wasmerr.RuntimeTrap, "", fmt.Errorf("calling alloc: %w", err))
	}
	return uint32(res[0]), nil
}

func (m *wazeroModule) RunTask(ctx context.Context, paramsPtr uint32) (uint32, error) {
	res, err := m.mod.ExportedFunction("run_task").Call(ctx, uint64(paramsPtr))
	if err != nil {
		return 0, wasmerr.New(wasmerr.RuntimeTrap, "", fmt.Errorf("calling run_task: %w", err))
	}
	return uint32(res[0]), nil
}

func (m *wazeroModule) WriteMemory(offset uint32, data []byte) error {
	if !m.mod.Memory().Write(offset, data) {
		return fmt.Errorf("write out of bounds at offset %d, len %d", offset, len(data))
	}
	return nil
}

func (m *wazeroModule) ReadMemory(offset uint32, numBytes uint32) ([]byte, error) {
	buf, ok := m.mod.Memory().Read(offset, numBytes)
	if !ok {
		return nil, fmt.Errorf("read out of bounds at offset %d, len %d", offset, numBytes)
	}
	out := make([]byte, len(buf))
	copy(out, buf)
	return out, nil
}

// MemoryUsage returns the linear-memory high-water mark in bytes, the
// accessor chosen for this host (spec.md §9 "Memory sampling").
func (m *wazeroModule) MemoryUsage() uint64 {
	return uint64(m.mod.Memory().Size())
}

// GCHint triggers a host-side GC cycle as the best-effort quiescence step
// spec.md §4.2 calls for before each measured iteration. wazero does not
// expose a guest-side collection hook; the host's own GC is the one
// interference source within our control.
func (m *wazeroModule) GCHint(ctx context.Context) {
	runtime.GC()
}

func (m *wazeroModule) Close(ctx context.Context) error {
	err := m.mod.Close(ctx)
	if cerr := m.compiled.Close(ctx); err == nil {
		err = cerr
	}
	return err
}
