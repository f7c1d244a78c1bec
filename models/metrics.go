package models

// Metrics holds the derived per-IPO numbers included in an alert. They are
// recomputed every cycle and never stored.
type Metrics struct {
	DaysRemaining  int
	Probability    float64
	SuggestedQty   string
	Recommendation string
}

// HighProbability reports whether the allotment estimate clears the 90%
// threshold that switches the recommendation to the favorable branch.
func (m Metrics) HighProbability() bool {
	return m.Probability >= 90
}
