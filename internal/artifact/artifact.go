// Package artifact implements the Artifact Provider (spec.md §6): given
// (task, language, scale) it returns a byte image of the compiled WASM
// module. WASM compilation and packaging are explicit external
// collaborators (spec.md §1); this package only locates and reads already
//-compiled artifacts from disk, stateless and safe for concurrent calls.
package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/jpequegn/wasmbench/internal/runspec"
	"github.com/jpequegn/wasmbench/internal/wasmerr"
	"github.com/jpequegn/wasmbench/internal/workload"
)

// Provider is the Artifact Provider contract: stateless, concurrency-safe
// byte-image lookup.
type Provider interface {
	// Load returns the WASM module bytes for the given locator (as produced
	// by Locate), or ARTIFACT_MISSING if the artifact is absent.
	Load(locator string) ([]byte, error)
}

// FilesystemProvider locates compiled modules under a directory, one file
// per (task, language, scale) named "<task>-<language>-<scale>.wasm".
type FilesystemProvider struct {
	dir string

	mu    sync.Mutex
	cache map[string][]byte // locator -> bytes, populated lazily
}

// New creates a FilesystemProvider rooted at dir.
func New(dir string) *FilesystemProvider {
	return &FilesystemProvider{dir: dir, cache: make(map[string][]byte)}
}

// Locate implements runspec.Locator: it reports whether an artifact file
// exists for (task, language, scale) without reading its contents.
func (p *FilesystemProvider) Locate(task workload.Task, language, scaleName string) (string, bool) {
	path := p.path(task, language, scaleName)
	if _, err := os.Stat(path); err != nil {
		return "", false
	}
	return path, true
}

func (p *FilesystemProvider) path(task workload.Task, language, scaleName string) string {
	return filepath.Join(p.dir, fmt.Sprintf("%s-%s-%s.wasm", task, language, scaleName))
}

// Load reads and caches the bytes at locator (a path produced by Locate).
// Safe for concurrent use: each cell's Measurement Context calls Load
// independently and concurrently up to the orchestrator's concurrency bound.
func (p *FilesystemProvider) Load(locator string) ([]byte, error) {
	p.mu.Lock()
	if cached, ok := p.cache[locator]; ok {
		p.mu.Unlock()
		return cached, nil
	}
	p.mu.Unlock()

	data, err := os.ReadFile(locator)
	if err != nil {
		return nil, wasmerr.New(wasmerr.ArtifactMissing, "", fmt.Errorf("reading artifact %s: %w", locator, err))
	}

	p.mu.Lock()
	p.cache[locator] = data
	p.mu.Unlock()
	return data, nil
}

// ensure FilesystemProvider satisfies runspec.Locator's function shape via Locate.
var _ runspec.Locator = (*FilesystemProvider)(nil).Locate
