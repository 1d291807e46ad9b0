// Package persist writes a run's results to its run directory in the
// external interchange format of spec.md §6: raw.json, summary.json,
// comparisons.json and meta.json. JSON is the literal wire format the spec
// names, not a teacher-library choice, so it is written with encoding/json
// rather than swapped for a third-party serializer.
package persist

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jpequegn/wasmbench/internal/measure"
	"github.com/jpequegn/wasmbench/internal/quality"
	"github.com/jpequegn/wasmbench/internal/runspec"
	"github.com/jpequegn/wasmbench/internal/stats"
)

// RawSample is one Sample's JSON representation.
type RawSample struct {
	Iteration    int    `json:"iteration"`
	ElapsedNS    int64  `json:"elapsed_ns"`
	MemoryBefore uint64 `json:"memory_before"`
	MemoryAfter  uint64 `json:"memory_after"`
	Digest       uint32 `json:"digest"`
	Success      bool   `json:"success"`
	ErrorKind    string `json:"error_kind,omitempty"`
}

// RawCell groups every Sample recorded for one cell with its terminal status.
type RawCell struct {
	CellID   string      `json:"cell_id"`
	Terminal string      `json:"terminal_status"`
	Error    string      `json:"error,omitempty"`
	Samples  []RawSample `json:"samples"`
}

// SummaryCell is one cell's Clean Cell statistics and stability verdict.
type SummaryCell struct {
	CellID         string  `json:"cell_id"`
	N              int     `json:"n"`
	DroppedFailed  int     `json:"dropped_failed"`
	DroppedOutlier int     `json:"dropped_outlier"`
	MeanNS         float64 `json:"mean_ns"`
	StdDevNS       float64 `json:"stddev_ns"`
	CV             float64 `json:"cv"`
	MedianNS       float64 `json:"median_ns"`
	Q1NS           float64 `json:"q1_ns"`
	Q3NS           float64 `json:"q3_ns"`
	MinNS          float64 `json:"min_ns"`
	MaxNS          float64 `json:"max_ns"`
	Stability      string  `json:"stability"`
	Reason         string  `json:"reason,omitempty"`
}

// ComparisonRecord is one (task, scale) Comparison, keyed by the two
// language identities it pairs.
type ComparisonRecord struct {
	Task       string  `json:"task"`
	Scale      string  `json:"scale"`
	LanguageA  string  `json:"language_a"`
	LanguageB  string  `json:"language_b"`
	MeanDiffNS float64 `json:"mean_diff_ns"`
	CILowerNS  float64 `json:"ci_lower_ns"`
	CIUpperNS  float64 `json:"ci_upper_ns"`
	TStat      float64 `json:"t_stat"`
	DF         float64 `json:"df"`
	PValue     float64 `json:"p_value"`
	QValue     float64 `json:"q_value_bh_adjusted"`
	CohensD    float64 `json:"cohens_d"`
	Effect     string  `json:"effect_class"`
	Verdict    string  `json:"verdict"`
}

// Meta records run-level metadata (spec.md §6 "meta.json").
type Meta struct {
	Toolchains map[string]string `json:"toolchains"`
	StartedAt  time.Time         `json:"started_at"`
	EndedAt    time.Time         `json:"ended_at"`
	Global     runspec.GlobalParams `json:"global_params"`
	Aborted    bool              `json:"aborted"`
}

// RunDir returns the directory name for a run starting at t, named with a
// local-time timestamp per spec.md §6.
func RunDir(root string, t time.Time) string {
	return filepath.Join(root, t.Local().Format("20060102-150405"))
}

// ToRawCells converts a set of Batches into their raw.json representation.
func ToRawCells(batches []measure.Batch) []RawCell {
	out := make([]RawCell, 0, len(batches))
	for _, b := range batches {
		rc := RawCell{CellID: b.CellID, Terminal: string(b.Terminal)}
		if b.Err != nil {
			rc.Error = b.Err.Error()
		}
		for _, s := range b.Samples {
			rc.Samples = append(rc.Samples, RawSample{
				Iteration:    s.Iteration,
				ElapsedNS:    s.Elapsed.Nanoseconds(),
				MemoryBefore: s.MemoryBefore,
				MemoryAfter:  s.MemoryAfter,
				Digest:       s.Digest,
				Success:      s.Success,
				ErrorKind:    s.ErrorKind,
			})
		}
		out = append(out, rc)
	}
	return out
}

// ToSummaryCells converts Quality Filter Summaries into their summary.json
// representation.
func ToSummaryCells(summaries map[string]quality.Summary) []SummaryCell {
	out := make([]SummaryCell, 0, len(summaries))
	for id, s := range summaries {
		out = append(out, SummaryCell{
			CellID:         id,
			N:              s.N,
			DroppedFailed:  s.DroppedFailed,
			DroppedOutlier: s.DroppedOutlier,
			MeanNS:         float64(s.Mean.Nanoseconds()),
			StdDevNS:       float64(s.StdDev.Nanoseconds()),
			CV:             s.CV,
			MedianNS:       float64(s.Median.Nanoseconds()),
			Q1NS:           float64(s.Q1.Nanoseconds()),
			Q3NS:           float64(s.Q3.Nanoseconds()),
			MinNS:          float64(s.Min.Nanoseconds()),
			MaxNS:          float64(s.Max.Nanoseconds()),
			Stability:      string(s.Stability),
			Reason:         s.Reason,
		})
	}
	return out
}

// ComparisonInput is everything needed to render one ComparisonRecord.
type ComparisonInput struct {
	Task, Scale         string
	LanguageA, LanguageB string
	Comparison          stats.Comparison
	Verdict             stats.Verdict
}

// ToComparisonRecords converts engine Comparisons into their comparisons.json
// representation.
func ToComparisonRecords(inputs []ComparisonInput) []ComparisonRecord {
	out := make([]ComparisonRecord, 0, len(inputs))
	for _, in := range inputs {
		c := in.Comparison
		out = append(out, ComparisonRecord{
			Task:       in.Task,
			Scale:      in.Scale,
			LanguageA:  in.LanguageA,
			LanguageB:  in.LanguageB,
			MeanDiffNS: c.MeanA - c.MeanB,
			CILowerNS:  c.CILower,
			CIUpperNS:  c.CIUpper,
			TStat:      c.TStat,
			DF:         c.DF,
			PValue:     c.PValue,
			QValue:     c.QValue,
			CohensD:    c.CohensD,
			Effect:     string(c.Effect),
			Verdict:    string(in.Verdict),
		})
	}
	return out
}

// Write emits raw.json, summary.json, comparisons.json and meta.json under
// dir, creating it if necessary.
func Write(dir string, raw []RawCell, summary []SummaryCell, comparisons []ComparisonRecord, meta Meta) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating run directory %s: %w", dir, err)
	}
	if err := writeJSON(filepath.Join(dir, "raw.json"), raw); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(dir, "summary.json"), summary); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(dir, "comparisons.json"), comparisons); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(dir, "meta.json"), meta); err != nil {
		return err
	}
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
