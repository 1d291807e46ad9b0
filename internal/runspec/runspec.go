package runspec

import (
	"fmt"
	"time"

	"github.com/jpequegn/wasmbench/internal/wasmerr"
	"github.com/jpequegn/wasmbench/internal/workload"
	"gopkg.in/yaml.v3"
)

// FileConfig is the declared configuration read from the run-specification
// file (spec.md §6). Languages and scale selection are declared, not
// synthesized; DigestExempt lists (task, scale, seed) triples the
// floating-point-determinism caveat in §9 allows the core to skip the
// RESULT_MISMATCH check for.
type FileConfig struct {
	Languages   []string          `yaml:"languages"`
	ArtifactDir string            `yaml:"artifact_dir"`
	Global      globalConfig      `yaml:"global"`
	Digests     map[string]uint32 `yaml:"reference_digests"` // key "task/scale/seed"
	DigestExempt []string         `yaml:"digest_exempt"`     // same key format
	Only        []string          `yaml:"only"`               // optional filter, "task/language/scale"
	Toolchains  map[string]string `yaml:"toolchains"`          // opaque version strings for meta.json
}

type globalConfig struct {
	Warmup                  int     `yaml:"warmup"`
	Measurement             int     `yaml:"measurement"`
	TimeoutMS               int     `yaml:"timeout_ms"`
	Concurrency             int     `yaml:"concurrency"`
	FailureRateThreshold    float64 `yaml:"failure_rate_threshold"`
	MinCellsBeforeAbort     int     `yaml:"min_cells_before_abort"`
	NMin                    int     `yaml:"n_min"`
	CVMax                   float64 `yaml:"cv_max"`
	FDRq                    float64 `yaml:"fdr_q"`
	CellTimeoutSafetyFactor float64 `yaml:"cell_timeout_safety_factor"`
	RuntimeTrapFraction     float64 `yaml:"runtime_trap_fraction"`
}

// Locator resolves a cell's artifact locator, reporting ok=false when the
// artifact cannot be found (spec.md §6 Artifact Provider: "On miss, returns
// ARTIFACT_MISSING").
type Locator func(task workload.Task, language, scaleName string) (path string, ok bool)

// ToolchainVersions returns the opaque toolchain-version strings declared in
// the file, for meta.json (spec.md §6).
func (c *FileConfig) ToolchainVersions() map[string]string {
	return c.Toolchains
}

// Parse decodes a run-specification YAML document without validating it.
func Parse(data []byte) (*FileConfig, error) {
	var cfg FileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, wasmerr.New(wasmerr.ConfigInvalid, "", fmt.Errorf("parsing run specification: %w", err))
	}
	return &cfg, nil
}

// Load parses and cross-validates a run-specification document, producing an
// immutable RunSpec or a CONFIG_INVALID/ARTIFACT_MISSING error (spec.md
// §4.1's load contract).
func Load(data []byte, locate Locator) (*RunSpec, error) {
	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return build(cfg, locate)
}

func build(cfg *FileConfig, locate Locator) (*RunSpec, error) {
	global, err := buildGlobal(cfg.Global)
	if err != nil {
		return nil, err
	}

	if len(cfg.Languages) == 0 {
		return nil, wasmerr.New(wasmerr.ConfigInvalid, "", fmt.Errorf("no languages declared"))
	}

	exempt := make(map[string]bool, len(cfg.DigestExempt))
	for _, k := range cfg.DigestExempt {
		exempt[k] = true
	}

	only := make(map[string]bool, len(cfg.Only))
	for _, k := range cfg.Only {
		only[k] = true
	}

	matched := make(map[string]bool, len(cfg.Only))
	var cells []Cell
	// Declared order: workload.Known (task, then scale), then Languages as
	// listed in the file — never map iteration — satisfies the "deterministic
	// for a given source" ordering requirement.
	for _, def := range workload.Known {
		for _, scale := range def.Scales {
			for _, lang := range cfg.Languages {
				id := string(def.Task) + "/" + lang + "/" + scale.Name
				if len(only) > 0 && !only[id] {
					continue
				}
				matched[id] = true

				digestKey := fmt.Sprintf("%s/%s/%d", def.Task, scale.Name, scale.Seed)
				digest, hasDigest := cfg.Digests[digestKey]
				isExempt := exempt[digestKey]
				if !hasDigest && !isExempt {
					return nil, wasmerr.New(wasmerr.ConfigInvalid, id,
						fmt.Errorf("no reference digest declared for %s and not digest-exempt", digestKey))
				}

				path, ok := locate(def.Task, lang, scale.Name)
				if !ok {
					return nil, wasmerr.New(wasmerr.ArtifactMissing, id,
						fmt.Errorf("artifact not locatable for %s/%s/%s", def.Task, lang, scale.Name))
				}

				cells = append(cells, Cell{
					Task:            def.Task,
					Language:        lang,
					ScaleName:       scale.Name,
					Artifact:        path,
					Seed:            scale.Seed,
					Size:            scale.Size,
					Measurement:     global.Measurement,
					Warmup:          global.Warmup,
					Timeout:         global.PerIterationTimeout,
					RuntimeTrapFraction: global.RuntimeTrapFraction,
					ReferenceDigest: digest,
					DigestExempt:    isExempt,
				})
			}
		}
	}

	for _, k := range cfg.Only {
		if !matched[k] {
			return nil, wasmerr.New(wasmerr.ConfigInvalid, k,
				fmt.Errorf("unknown task/language/scale combination %q in only", k))
		}
	}

	if len(cells) == 0 {
		return nil, wasmerr.New(wasmerr.ConfigInvalid, "", fmt.Errorf("run specification produced zero cells"))
	}

	if global.MinCellsBeforeAbort <= 0 {
		global.MinCellsBeforeAbort = len(cells)
		if global.MinCellsBeforeAbort > 10 {
			global.MinCellsBeforeAbort = 10
		}
	}

	return &RunSpec{cells: cells, global: global}, nil
}

func buildGlobal(g globalConfig) (GlobalParams, error) {
	if g.Measurement < 1 {
		return GlobalParams{}, wasmerr.New(wasmerr.ConfigInvalid, "", fmt.Errorf("measurement count must be >= 1, got %d", g.Measurement))
	}
	if g.Warmup < 0 {
		return GlobalParams{}, wasmerr.New(wasmerr.ConfigInvalid, "", fmt.Errorf("warmup count must be >= 0, got %d", g.Warmup))
	}
	if g.TimeoutMS <= 0 {
		return GlobalParams{}, wasmerr.New(wasmerr.ConfigInvalid, "", fmt.Errorf("per-iteration timeout must be > 0, got %dms", g.TimeoutMS))
	}
	if g.Concurrency < 1 {
		return GlobalParams{}, wasmerr.New(wasmerr.ConfigInvalid, "", fmt.Errorf("concurrency bound must be >= 1, got %d", g.Concurrency))
	}

	params := GlobalParams{
		Warmup:                  g.Warmup,
		Measurement:             g.Measurement,
		PerIterationTimeout:     time.Duration(g.TimeoutMS) * time.Millisecond,
		Concurrency:             g.Concurrency,
		FailureRateThreshold:    g.FailureRateThreshold,
		MinCellsBeforeAbort:     g.MinCellsBeforeAbort,
		NMin:                    g.NMin,
		CVMax:                   g.CVMax,
		FDRq:                    g.FDRq,
		CellTimeoutSafetyFactor: g.CellTimeoutSafetyFactor,
		RuntimeTrapFraction:     g.RuntimeTrapFraction,
	}
	if params.FailureRateThreshold <= 0 {
		params.FailureRateThreshold = 0.3 // spec.md §4.4 default
	}
	if params.NMin <= 0 {
		params.NMin = 30 // spec.md §4.5 default
	}
	if params.CVMax <= 0 {
		params.CVMax = 0.15 // spec.md §4.5 default
	}
	if params.FDRq <= 0 {
		params.FDRq = 0.05 // spec.md §4.6 default
	}
	if params.RuntimeTrapFraction <= 0 {
		params.RuntimeTrapFraction = 0.1
	}
	return params, nil
}
