// Package quality implements the Quality Filter (spec.md §4.5): it drops
// failed samples, removes IQR outliers, computes summary statistics over
// what remains, and applies a stability gate. Statistics follow the
// teacher's internal/aggregator.CalculateStatistics shape (sort + manual
// variance accumulation) generalized to Bessel correction and quartiles.
package quality

import (
	"math"
	"sort"
	"time"

	"github.com/jpequegn/wasmbench/internal/measure"
)

// Stability is the Quality Filter's verdict on a cell's sample set after
// outlier removal (spec.md §4.5).
type Stability string

const (
	StabilityReject            Stability = "REJECT"
	StabilityAcceptWithWarning Stability = "ACCEPT_WITH_WARNING"
	StabilityAccept            Stability = "ACCEPT"
)

// Summary is the Quality Filter's output for one cell.
type Summary struct {
	CellID        string
	N             int // retained sample count after outlier removal
	DroppedFailed int
	DroppedOutlier int
	Mean          time.Duration
	StdDev        time.Duration // Bessel-corrected (n-1)
	CV            float64       // coefficient of variation, StdDev/Mean
	Median        time.Duration
	Q1, Q3        time.Duration
	Min, Max      time.Duration
	Stability     Stability
	Reason        string // "INSUFFICIENT_SAMPLES", "HIGH_VARIANCE", or "" for plain ACCEPT
}

// Filter drops failed samples, removes IQR outliers from what remains, and
// computes summary statistics plus a stability verdict.
func Filter(batch measure.Batch, nMin int, cvMax float64) Summary {
	summary := Summary{CellID: batch.CellID}

	var ok []time.Duration
	for _, s := range batch.Samples {
		if s.Success {
			ok = append(ok, s.Elapsed)
		} else {
			summary.DroppedFailed++
		}
	}

	sort.Slice(ok, func(i, j int) bool { return ok[i] < ok[j] })

	kept, dropped := removeOutliers(ok)
	summary.DroppedOutlier = dropped

	if len(kept) == 0 {
		summary.Stability = StabilityReject
		summary.Reason = "INSUFFICIENT_SAMPLES"
		return summary
	}

	summary.N = len(kept)
	summary.Mean = mean(kept)
	summary.StdDev = stddev(kept, summary.Mean)
	if summary.Mean > 0 {
		summary.CV = float64(summary.StdDev) / float64(summary.Mean)
	}
	summary.Median = quantile(kept, 0.5)
	summary.Q1 = quantile(kept, 0.25)
	summary.Q3 = quantile(kept, 0.75)
	summary.Min = kept[0]
	summary.Max = kept[len(kept)-1]
	summary.Stability, summary.Reason = gate(summary.N, summary.CV, nMin, cvMax)

	return summary
}

// gate applies the stability rule (spec.md §4.5): reject below nMin,
// warn on over-dispersion, accept otherwise.
func gate(n int, cv float64, nMin int, cvMax float64) (Stability, string) {
	if n < nMin {
		return StabilityReject, "INSUFFICIENT_SAMPLES"
	}
	if cv > cvMax {
		return StabilityAcceptWithWarning, "HIGH_VARIANCE"
	}
	return StabilityAccept, ""
}

// removeOutliers drops samples outside [Q1 - 1.5*IQR, Q3 + 1.5*IQR]. sorted
// must already be ascending.
func removeOutliers(sorted []time.Duration) (kept []time.Duration, dropped int) {
	if len(sorted) < 4 {
		return sorted, 0
	}
	q1 := quantile(sorted, 0.25)
	q3 := quantile(sorted, 0.75)
	iqr := float64(q3 - q1)
	lo := float64(q1) - 1.5*iqr
	hi := float64(q3) + 1.5*iqr

	for _, d := range sorted {
		if float64(d) < lo || float64(d) > hi {
			dropped++
			continue
		}
		kept = append(kept, d)
	}
	return kept, dropped
}

// quantile computes p's value over sorted ascending data via linear
// interpolation between closest ranks (spec.md §4.5 "quartiles").
func quantile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := p * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return time.Duration(float64(sorted[lo])*(1-frac) + float64(sorted[hi])*frac)
}

func mean(d []time.Duration) time.Duration {
	var sum int64
	for _, v := range d {
		sum += int64(v)
	}
	return time.Duration(sum / int64(len(d)))
}

// stddev is the Bessel-corrected (n-1) sample standard deviation; returns 0
// for n<2, where sample variance is undefined.
func stddev(d []time.Duration, m time.Duration) time.Duration {
	if len(d) < 2 {
		return 0
	}
	var sumSq float64
	for _, v := range d {
		diff := float64(v - m)
		sumSq += diff * diff
	}
	variance := sumSq / float64(len(d)-1)
	return time.Duration(math.Sqrt(variance))
}
