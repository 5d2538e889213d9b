package analysis

import (
	"fmt"
	"sort"
)

// ---------------------------------------------------------------------------
// Risk aggregation — weighted mean over the checks that produced a signal
// ---------------------------------------------------------------------------

// Weights maps check name to its share of the composite score. Checks absent
// from the map fall back to defaultCheckWeight.
type Weights map[string]float64

const defaultCheckWeight = 5.0

// criticalFloor is the minimum composite score once any check reports a
// critical finding (e.g. a failed sell simulation). The verdict must land in
// the top band regardless of how benign the other checks look.
const criticalFloor = 80.0

// DefaultWeights reflects how decisive each check is in practice: mint/freeze
// authority and sell-path behavior dominate, cosmetic checks barely move the
// needle.
func DefaultWeights() Weights {
	return Weights{
		"authorities": 20,
		"honeypot":    25,
		"liquidity":   15,
		"holders":     15,
		"market":      10,
		"supply":      5,
		"ownership":   5,
		"metadata":    5,
	}
}

// Aggregator folds per-check results into a composite risk score and verdict.
type Aggregator struct {
	weights Weights
}

// NewAggregator creates an aggregator; nil weights means DefaultWeights.
func NewAggregator(weights Weights) *Aggregator {
	if weights == nil {
		weights = DefaultWeights()
	}
	return &Aggregator{weights: weights}
}

// Aggregate computes the composite score, safety level, and recommendations.
// Skipped checks contribute nothing: the denominator shrinks with them, so a
// timed-out check neither dilutes nor inflates the verdict. If every check
// was skipped the score is neutral.
func (a *Aggregator) Aggregate(ta *TokenAnalysis) {
	var weighted, totalWeight float64
	critical := false

	for name, res := range ta.Checks {
		if res == nil || res.Skipped {
			continue
		}
		w := a.weights[name]
		if w <= 0 {
			w = defaultCheckWeight
		}
		weighted += clampScore(res.Score) * w
		totalWeight += w
		if res.Severity == SeverityCritical {
			critical = true
		}
	}

	score := NeutralScore
	if totalWeight > 0 {
		score = weighted / totalWeight
	}
	if critical && score < criticalFloor {
		score = criticalFloor
	}

	ta.RiskScore = score
	ta.SafetyLevel = LevelForScore(score)
	ta.Recommendations = a.recommend(ta)
}

// LevelForScore maps a 0-100 risk score to its verdict band.
func LevelForScore(score float64) SafetyLevel {
	switch {
	case score >= 80:
		return SafetyExtremelyDangerous
	case score >= 60:
		return SafetyHighRisk
	case score >= 40:
		return SafetyModerateRisk
	case score >= 20:
		return SafetyLowRisk
	default:
		return SafetyAppearsSafe
	}
}

func clampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}

// recommend builds the action list: a verdict line first, then the most
// severe concrete findings in stable order.
func (a *Aggregator) recommend(ta *TokenAnalysis) []string {
	recs := []string{verdictLine(ta.SafetyLevel)}

	names := make([]string, 0, len(ta.Checks))
	for name := range ta.Checks {
		names = append(names, name)
	}
	sort.Strings(names)

	skipped := 0
	for _, name := range names {
		res := ta.Checks[name]
		if res == nil {
			continue
		}
		if res.Skipped {
			skipped++
			continue
		}
		if severityRank(res.Severity) >= severityRank(SeverityHigh) {
			for _, issue := range res.Issues {
				recs = append(recs, fmt.Sprintf("%s: %s", name, issue))
			}
		}
	}

	if skipped > 0 {
		recs = append(recs, fmt.Sprintf("verdict based on partial data: %d check(s) did not complete", skipped))
	}
	return recs
}

func verdictLine(level SafetyLevel) string {
	switch level {
	case SafetyExtremelyDangerous:
		return "DO NOT BUY: multiple critical risk factors detected"
	case SafetyHighRisk:
		return "avoid: high probability of rug pull or honeypot"
	case SafetyModerateRisk:
		return "caution: notable risk factors present, small positions only"
	case SafetyLowRisk:
		return "acceptable risk profile, standard due diligence still applies"
	default:
		return "no significant risk factors detected"
	}
}
