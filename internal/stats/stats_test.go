package stats

import (
	"math"
	"testing"
)

func TestClassifyEffect(t *testing.T) {
	cases := []struct {
		d    float64
		want EffectClass
	}{
		{0.05, EffectNegligible},
		{-0.3, EffectSmall},
		{0.6, EffectMedium},
		{-12.6, EffectLarge},
	}
	for _, c := range cases {
		if got := ClassifyEffect(c.d); got != c.want {
			t.Errorf("ClassifyEffect(%v) = %s, want %s", c.d, got, c.want)
		}
	}
}

func TestWelch_ClearWinner(t *testing.T) {
	// spec.md §8 scenario 2: A mean 10ms sd 0.5, B mean 20ms sd 1.0, n=100 each.
	a := SampleStats{N: 100, Mean: 10.0, StdDev: 0.5}
	b := SampleStats{N: 100, Mean: 20.0, StdDev: 1.0}
	comp := Welch(a, b)

	if comp.Effect != EffectLarge {
		t.Fatalf("expected LARGE effect, got %s (d=%v)", comp.Effect, comp.CohensD)
	}
	if comp.CohensD >= -10 {
		t.Fatalf("expected strongly negative d (A faster), got %v", comp.CohensD)
	}
	if comp.PValue > 0.001 {
		t.Fatalf("expected near-zero p-value, got %v", comp.PValue)
	}

	ApplyFDR([]*Comparison{&comp}, 0.05)
	if Decide(comp) != VerdictLangAWins {
		t.Fatalf("expected LANG_A_WINS, got %s", Decide(comp))
	}
}

func TestWelch_AllTie(t *testing.T) {
	// spec.md §8 scenario 1: identical distributions, negligible effect.
	a := SampleStats{N: 100, Mean: 50.0, StdDev: 5.0}
	b := SampleStats{N: 100, Mean: 50.2, StdDev: 5.1}
	comp := Welch(a, b)
	ApplyFDR([]*Comparison{&comp}, 0.05)
	if Decide(comp) != VerdictTie {
		t.Fatalf("expected TIE regardless of p-value for negligible effect, got %s", Decide(comp))
	}
}

func TestWelch_BothConstantEqual(t *testing.T) {
	// spec.md §4.6 failure semantics: s_p = 0 -> d=0, p=1, verdict TIE.
	a := SampleStats{N: 10, Mean: 5.0, StdDev: 0}
	b := SampleStats{N: 10, Mean: 5.0, StdDev: 0}
	comp := Welch(a, b)
	if comp.CohensD != 0 {
		t.Fatalf("expected d=0 for both-constant cells, got %v", comp.CohensD)
	}
	if comp.PValue != 1 {
		t.Fatalf("expected p=1 for both-constant cells, got %v", comp.PValue)
	}
}

func TestApplyFDR_Monotone(t *testing.T) {
	ps := []float64{0.001, 0.2, 0.03, 0.5, 0.04}
	comps := make([]*Comparison, len(ps))
	for i, p := range ps {
		comps[i] = &Comparison{PValue: p}
	}
	ApplyFDR(comps, 0.05)

	// Sort a copy by raw p-value and check the adjusted sequence is
	// monotone non-decreasing in rank (spec.md §8).
	type pair struct{ p, q float64 }
	pairs := make([]pair, len(comps))
	for i, c := range comps {
		pairs[i] = pair{c.PValue, c.QValue}
	}
	for i := 0; i < len(pairs); i++ {
		for j := i + 1; j < len(pairs); j++ {
			if pairs[j].p < pairs[i].p {
				pairs[i], pairs[j] = pairs[j], pairs[i]
			}
		}
	}
	for i := 1; i < len(pairs); i++ {
		if pairs[i].q < pairs[i-1].q-1e-9 {
			t.Fatalf("adjusted p-values not monotone: rank %d q=%v < rank %d q=%v", i, pairs[i].q, i-1, pairs[i-1].q)
		}
	}
}

func TestApplyFDR_EmptySlice(t *testing.T) {
	if got := ApplyFDR(nil, 0.05); got != nil {
		t.Fatalf("expected nil for empty input, got %v", got)
	}
}

func TestTCriticalValue_MatchesKnownValue(t *testing.T) {
	// two-sided 95% critical value at large df approaches 1.96.
	got := tCriticalValue(1000, 0.975)
	if math.Abs(got-1.96) > 0.02 {
		t.Fatalf("expected ~1.96 at large df, got %v", got)
	}
}
