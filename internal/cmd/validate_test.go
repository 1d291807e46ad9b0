package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"

	"github.com/jpequegn/wasmbench/internal/workload"
)

// writeFixtureSpec builds a run-specification file plus matching artifact
// files covering every declared (task, language, scale) combination, the
// same fixture shape runValidate's end-to-end path expects.
func writeFixtureSpec(t *testing.T, dir string, languages []string) string {
	t.Helper()
	artifactDir := filepath.Join(dir, "artifacts")
	if err := os.MkdirAll(artifactDir, 0o755); err != nil {
		t.Fatal(err)
	}

	var digests bytes.Buffer
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "languages: [%s]\n", joinQuoted(languages))
	fmt.Fprintf(&buf, "artifact_dir: %s\n", artifactDir)
	fmt.Fprintf(&buf, "global:\n  warmup: 2\n  measurement: 30\n  timeout_ms: 1000\n  concurrency: 2\n")
	fmt.Fprintln(&digests, "reference_digests:")
	for _, def := range workload.Known {
		for _, scale := range def.Scales {
			fmt.Fprintf(&digests, "  %s/%s/%d: 42\n", def.Task, scale.Name, scale.Seed)
			for _, lang := range languages {
				path := filepath.Join(artifactDir, fmt.Sprintf("%s-%s-%s.wasm", def.Task, lang, scale.Name))
				if err := os.WriteFile(path, []byte("wasm"), 0o644); err != nil {
					t.Fatal(err)
				}
			}
		}
	}
	buf.Write(digests.Bytes())

	specPath := filepath.Join(dir, "wasmbench.yaml")
	if err := os.WriteFile(specPath, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return specPath
}

func joinQuoted(ss []string) string {
	var b bytes.Buffer
	for i, s := range ss {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%q", s)
	}
	return b.String()
}

func TestRunValidate_ValidSpec(t *testing.T) {
	dir := t.TempDir()
	specPath := writeFixtureSpec(t, dir, []string{"owned", "gc"})

	viper.Reset()
	cfgFile = specPath
	defer func() { cfgFile = ""; viper.Reset() }()
	initConfig()

	if err := runValidate(validateCmd, nil); err != nil {
		t.Fatalf("runValidate() error: %v", err)
	}
}
