package stats

// Verdict is the Statistical Engine's final call for one (task, scale) pair
// (spec.md §4.6 decision table).
type Verdict string

const (
	VerdictTie          Verdict = "TIE"
	VerdictLangAWins     Verdict = "LANG_A_WINS"
	VerdictLangBWins     Verdict = "LANG_B_WINS"
	VerdictInconclusive Verdict = "INCONCLUSIVE"
)

// Decide applies the verdict decision table of spec.md §4.6 to an
// FDR-corrected comparison. INCONCLUSIVE is reserved for cells whose Clean
// Cell was REJECT; that check happens before Decide is called, so here a
// negligible effect is always TIE regardless of significance.
func Decide(c Comparison) Verdict {
	if !c.Significant || c.Effect == EffectNegligible {
		return VerdictTie
	}
	if c.CohensD < 0 {
		return VerdictLangAWins
	}
	return VerdictLangBWins
}
