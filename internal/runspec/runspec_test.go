package runspec

import (
	"strings"
	"testing"

	"github.com/jpequegn/wasmbench/internal/workload"
)

func alwaysLocate(task workload.Task, language, scale string) (string, bool) {
	return string(task) + "-" + language + "-" + scale + ".wasm", true
}

func validDoc() []byte {
	return []byte(`
languages: [owned, managed]
artifact_dir: ./artifacts
global:
  warmup: 5
  measurement: 30
  timeout_ms: 5000
  concurrency: 4
reference_digests:
  mandelbrot/small/1: 111
  mandelbrot/medium/2: 222
  mandelbrot/large/3: 333
  records/small/11: 444
  records/medium/12: 555
  records/large/13: 666
  matmul/small/21: 777
  matmul/medium/22: 888
  matmul/large/23: 999
`)
}

func TestLoad_Valid(t *testing.T) {
	spec, err := Load(validDoc(), alwaysLocate)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cells := spec.Cells()
	if len(cells) != 3*3*2 {
		t.Fatalf("expected %d cells, got %d", 3*3*2, len(cells))
	}

	// Ordering must be deterministic: task, then scale, then language, as declared.
	if cells[0].Task != workload.TaskMandelbrot || cells[0].ScaleName != "small" || cells[0].Language != "owned" {
		t.Fatalf("unexpected first cell: %+v", cells[0])
	}
	if cells[1].Language != "managed" {
		t.Fatalf("expected second cell to be the other language for the same (task,scale), got %+v", cells[1])
	}

	g := spec.Global()
	if g.Measurement != 30 || g.Warmup != 5 {
		t.Fatalf("unexpected global params: %+v", g)
	}
	if g.NMin != 30 || g.CVMax != 0.15 || g.FailureRateThreshold != 0.3 {
		t.Fatalf("expected defaults to be applied: %+v", g)
	}
}

func TestLoad_Deterministic(t *testing.T) {
	a, err := Load(validDoc(), alwaysLocate)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Load(validDoc(), alwaysLocate)
	if err != nil {
		t.Fatal(err)
	}
	ca, cb := a.Cells(), b.Cells()
	if len(ca) != len(cb) {
		t.Fatalf("cell count mismatch")
	}
	for i := range ca {
		if ca[i].ID() != cb[i].ID() {
			t.Fatalf("ordering differs at %d: %s vs %s", i, ca[i].ID(), cb[i].ID())
		}
	}
}

func TestLoad_MissingDigestRejected(t *testing.T) {
	doc := []byte(`
languages: [owned]
global: {warmup: 5, measurement: 30, timeout_ms: 5000, concurrency: 4}
reference_digests:
  mandelbrot/small/1: 111
`)
	_, err := Load(doc, alwaysLocate)
	if err == nil {
		t.Fatal("expected error for missing reference digest")
	}
	if kind, ok := kindOf(err); !ok || kind != "CONFIG_INVALID" {
		t.Fatalf("expected CONFIG_INVALID, got %v (%v)", kind, err)
	}
}

func TestLoad_DigestExemptAllowsMissingDigest(t *testing.T) {
	doc := []byte(`
languages: [owned]
global: {warmup: 5, measurement: 30, timeout_ms: 5000, concurrency: 4}
reference_digests: {}
digest_exempt:
  - mandelbrot/small/1
  - mandelbrot/medium/2
  - mandelbrot/large/3
  - records/small/11
  - records/medium/12
  - records/large/13
  - matmul/small/21
  - matmul/medium/22
  - matmul/large/23
`)
	spec, err := Load(doc, alwaysLocate)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, c := range spec.Cells() {
		if !c.DigestExempt {
			t.Fatalf("expected cell %s to be digest-exempt", c.ID())
		}
	}
}

func TestLoad_ArtifactMissing(t *testing.T) {
	locate := func(task workload.Task, language, scale string) (string, bool) {
		return "", false
	}
	_, err := Load(validDoc(), locate)
	if err == nil {
		t.Fatal("expected artifact missing error")
	}
	if kind, ok := kindOf(err); !ok || kind != "ARTIFACT_MISSING" {
		t.Fatalf("expected ARTIFACT_MISSING, got %v (%v)", kind, err)
	}
}

func TestLoad_InvalidGlobalParams(t *testing.T) {
	cases := []struct {
		name string
		doc  string
	}{
		{"measurement zero", "global: {warmup: 0, measurement: 0, timeout_ms: 1000, concurrency: 1}\nlanguages: [owned]\n"},
		{"negative warmup", "global: {warmup: -1, measurement: 1, timeout_ms: 1000, concurrency: 1}\nlanguages: [owned]\n"},
		{"zero timeout", "global: {warmup: 0, measurement: 1, timeout_ms: 0, concurrency: 1}\nlanguages: [owned]\n"},
		{"zero concurrency", "global: {warmup: 0, measurement: 1, timeout_ms: 1000, concurrency: 0}\nlanguages: [owned]\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load([]byte(tc.doc), alwaysLocate)
			if err == nil {
				t.Fatalf("expected validation error for %s", tc.name)
			}
		})
	}
}

func TestLoad_OnlyFilter(t *testing.T) {
	doc := append(validDoc(), []byte("\nonly: [\"mandelbrot/owned/small\"]\n")...)
	spec, err := Load(doc, alwaysLocate)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cells := spec.Cells()
	if len(cells) != 1 {
		t.Fatalf("expected 1 cell after filtering, got %d", len(cells))
	}
	if cells[0].ID() != "mandelbrot/owned/small" {
		t.Fatalf("unexpected surviving cell: %s", cells[0].ID())
	}
}

func kindOf(err error) (string, bool) {
	s := err.Error()
	for _, kind := range []string{"CONFIG_INVALID", "ARTIFACT_MISSING"} {
		if strings.HasPrefix(s, kind) {
			return kind, true
		}
	}
	return "", false
}
