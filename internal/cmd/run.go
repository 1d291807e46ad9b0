package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jpequegn/wasmbench/internal/artifact"
	"github.com/jpequegn/wasmbench/internal/measure"
	"github.com/jpequegn/wasmbench/internal/obs"
	"github.com/jpequegn/wasmbench/internal/orchestrator"
	"github.com/jpequegn/wasmbench/internal/persist"
	"github.com/jpequegn/wasmbench/internal/quality"
	"github.com/jpequegn/wasmbench/internal/runspec"
	"github.com/jpequegn/wasmbench/internal/stats"
	"github.com/jpequegn/wasmbench/internal/store"
	"github.com/jpequegn/wasmbench/internal/wasmhost"
)

// runCmd drives the full pipeline: load the run specification, execute
// every cell through the Orchestrator, filter the samples through the
// Quality Filter, compare languages through the Statistical Engine, and
// persist the result (spec.md §2 "control flow").
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the benchmark suite and persist results",
	Long: `Loads a run-specification file, executes every declared
(task, language, scale) cell under a bounded worker pool, and writes
raw.json, summary.json, comparisons.json and meta.json to a timestamped
run directory.`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().String("output-dir", "runs", "root directory under which timestamped run directories are created")
	runCmd.Flags().Bool("sqlite", false, "also persist raw samples to a SQLite file in the run directory")
}

func runRun(cmd *cobra.Command, args []string) error {
	data, specPath, err := readSpecFile()
	if err != nil {
		return exitWithCode(2, err)
	}

	provider := artifact.New(viper.GetString("artifact_dir"))
	spec, err := runspec.Load(data, provider.Locate)
	if err != nil {
		return exitWithCode(2, fmt.Errorf("loading run specification %s: %w", specPath, err))
	}

	sink := obs.NewSlogSink(logger)
	ctx := context.Background()

	host := wasmhost.New(ctx, nil)
	defer func() { _ = host.Close(ctx) }()

	runner := measure.New(host, provider, sink)
	orch := orchestrator.New(runner, sink)

	started := time.Now()
	result := orch.Run(ctx, spec.Cells(), spec.Global())
	ended := time.Now()

	st := store.New()
	for _, b := range result.Batches {
		st.AppendBatch(b)
	}

	outputDir, _ := cmd.Flags().GetString("output-dir")
	runDir := persist.RunDir(outputDir, started)

	if useSQLite, _ := cmd.Flags().GetBool("sqlite"); useSQLite {
		if err := os.MkdirAll(runDir, 0o755); err != nil {
			return exitWithCode(1, err)
		}
		sqlSink, err := store.NewSQLiteSink(runDir + "/samples.db")
		if err != nil {
			return exitWithCode(1, err)
		}
		defer sqlSink.Close()
		if err := sqlSink.Persist(st.Snapshot()); err != nil {
			return exitWithCode(1, err)
		}
	}

	global := spec.Global()
	summaries := make(map[string]quality.Summary)
	for _, b := range st.Snapshot() {
		summaries[b.CellID] = quality.Filter(b, global.NMin, global.CVMax)
	}

	cellsByKey := groupCellsByTaskScale(spec.Cells())
	var comparisonInputs []persist.ComparisonInput
	var engineComparisons []*stats.Comparison
	var engineMeta []persist.ComparisonInput

	for _, group := range cellsByKey {
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				a, b := group[i], group[j]
				sa, sb := summaries[a.ID()], summaries[b.ID()]
				if sa.Stability == quality.StabilityReject || sb.Stability == quality.StabilityReject {
					comparisonInputs = append(comparisonInputs, persist.ComparisonInput{
						Task: string(a.Task), Scale: a.ScaleName,
						LanguageA: a.Language, LanguageB: b.Language,
						Verdict: stats.VerdictInconclusive,
					})
					continue
				}
				if sa.N+sb.N-2 <= 0 {
					continue
				}
				comp := stats.Welch(
					stats.SampleStats{N: sa.N, Mean: float64(sa.Mean), StdDev: float64(sa.StdDev)},
					stats.SampleStats{N: sb.N, Mean: float64(sb.Mean), StdDev: float64(sb.StdDev)},
				)
				engineComparisons = append(engineComparisons, &comp)
				engineMeta = append(engineMeta, persist.ComparisonInput{
					Task: string(a.Task), Scale: a.ScaleName,
					LanguageA: a.Language, LanguageB: b.Language,
				})
			}
		}
	}

	stats.ApplyFDR(engineComparisons, global.FDRq)
	for i, comp := range engineComparisons {
		in := engineMeta[i]
		in.Comparison = *comp
		in.Verdict = stats.Decide(*comp)
		comparisonInputs = append(comparisonInputs, in)
	}

	meta := persist.Meta{
		Toolchains: viper.GetStringMapString("toolchains"),
		StartedAt:  started,
		EndedAt:    ended,
		Global:     global,
		Aborted:    result.Aborted,
	}

	if err := persist.Write(runDir,
		persist.ToRawCells(st.Snapshot()),
		persist.ToSummaryCells(summaries),
		persist.ToComparisonRecords(comparisonInputs),
		meta,
	); err != nil {
		return exitWithCode(1, err)
	}

	fmt.Fprintf(os.Stderr, "wrote run results to %s\n", runDir)

	if result.Aborted {
		return exitWithCode(1, fmt.Errorf("run aborted: failure-rate threshold exceeded"))
	}
	return nil
}

// groupCellsByTaskScale buckets cells by (task, scale) so each bucket can be
// compared pairwise across its declared languages.
func groupCellsByTaskScale(cells []runspec.Cell) map[string][]runspec.Cell {
	out := make(map[string][]runspec.Cell)
	for _, c := range cells {
		key := string(c.Task) + "/" + c.ScaleName
		out[key] = append(out[key], c)
	}
	return out
}

// readSpecFile returns the run-specification document's bytes and the path
// viper resolved, honoring --config and the WASMBENCH_ environment prefix.
func readSpecFile() ([]byte, string, error) {
	if err := viper.ReadInConfig(); err != nil {
		if cfgFile != "" {
			return nil, cfgFile, fmt.Errorf("reading run specification: %w", err)
		}
	}
	path := viper.ConfigFileUsed()
	if path == "" {
		return nil, "", fmt.Errorf("no run-specification file found (use --config or ./wasmbench.yaml)")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, path, nil
}

// exitWithCode maps a failure to the spec's exit-code taxonomy (spec.md
// §6): 2 for configuration/artifact errors before any cell runs, 1 for
// everything else that aborts or fails the run.
func exitWithCode(code int, err error) error {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(code)
	return nil // unreachable
}
