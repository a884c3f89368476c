package models

// Policy holds the strictness toggles shared by validation and evaluation. Each toggle decides
// whether its class of issue is an ERROR (true) or a WARNING (false); the finding code is the same
// either way.
type Policy struct {
	StrictPricebookRefsAtPublish bool `json:"strictPricebookRefsAtPublish"`
	DivByZeroStrict              bool `json:"divByZeroStrict"`
	NegativeQuantityStrict       bool `json:"negativeQuantityStrict"`
	AmbiguousEdgesStrict         bool `json:"ambiguousEdgesStrict"`
	OutOfRangeSelectionsStrict   bool `json:"outOfRangeSelectionsStrict"`
}

// DefaultPolicy blocks publish on money and quantity hazards and only warns on ambiguous edges and
// out-of-range selections.
func DefaultPolicy() Policy {
	return Policy{
		StrictPricebookRefsAtPublish: true,
		DivByZeroStrict:              true,
		NegativeQuantityStrict:       true,
		AmbiguousEdgesStrict:         false,
		OutOfRangeSelectionsStrict:   false,
	}
}
