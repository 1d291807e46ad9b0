package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jpequegn/wasmbench/internal/artifact"
	"github.com/jpequegn/wasmbench/internal/runspec"
	"github.com/jpequegn/wasmbench/internal/workload"
)

// validateCmd exercises C1's load() contract alone (SPEC_FULL.md §4
// "validate subcommand"): load and cross-validate a run-specification file
// against the declared reference digests and workload table without running
// anything, printing the resulting cell count or the validation failure.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a run specification without executing it",
	Long: `Loads and cross-validates a run-specification file: unknown
task/language/scale combinations, missing reference digests and
unlocatable artifacts are all reported without running any cell.`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	data, specPath, err := readSpecFile()
	if err != nil {
		return exitWithCode(2, err)
	}

	provider := artifact.New(viper.GetString("artifact_dir"))
	spec, err := runspec.Load(data, provider.Locate)
	if err != nil {
		return exitWithCode(2, fmt.Errorf("%s is invalid: %w", specPath, err))
	}

	fmt.Fprintf(os.Stdout, "known tasks: %v\n", workload.Tasks())

	cells := spec.Cells()
	fmt.Fprintf(os.Stdout, "%s: %d cells valid\n", specPath, len(cells))
	for _, c := range cells {
		scale, _ := workload.Lookup(c.Task, c.ScaleName)
		fmt.Fprintf(os.Stdout, "  %s (size=%d, iterations=%d, seed=%d)\n", c.ID(), scale.Size, scale.Iterations, scale.Seed)
	}
	return nil
}
