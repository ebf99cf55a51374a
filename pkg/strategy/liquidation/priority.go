package liquidation

// Priority weights for scoring liquidation candidates (§4.9): weighted
// sum of profit, urgency, inverse competition, and success
// probability. Tuning is expected; kept as the documented defaults.
const (
	WeightProfit      = 0.4
	WeightUrgency     = 0.3
	WeightCompetition = 0.2
	WeightSuccessProb = 0.1
)

// PriorityScore combines the four §4.9 signals into one score used to
// order candidates within a scan.
func PriorityScore(profitNorm, urgency, inverseCompetition, successProbability float64) float64 {
	return WeightProfit*profitNorm +
		WeightUrgency*urgency +
		WeightCompetition*inverseCompetition +
		WeightSuccessProb*successProbability
}
