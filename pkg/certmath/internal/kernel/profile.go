package kernel

import "strconv"

// EngineVersion identifies the numeric behavior of this kernel. Any change to
// a constant or a routine's arithmetic must bump it.
const EngineVersion = "1.0.0"

// Profile returns the constant table that fixes the kernel's results. All
// values are strings so the canonical JSON form has no numbers in it.
func Profile() map[string]any {
	return map[string]any{
		"engine":              "certmath",
		"version":             EngineVersion,
		"decimals":            strconv.Itoa(Decimals),
		"scale":               scale.String(),
		"max_raw":             maxRaw.String(),
		"sqrt_max_iterations": strconv.Itoa(SqrtMaxIterations),
		"exp_terms":           strconv.Itoa(ExpTerms),
		"exp_limit":           strconv.Itoa(ExpLimit),
		"ln_terms":            strconv.Itoa(LnTerms),
		"ln_max_reductions":   strconv.Itoa(LnMaxReductions),
		"ln_band":             "[" + Value{raw: bandLo}.String() + "," + Value{raw: bandHi}.String() + ")",
		"ln2":                 Value{raw: ln2}.String(),
		"phi_terms":           strconv.Itoa(PhiTerms),
		"phi_clamp":           Value{raw: phiClamp}.String(),
	}
}
