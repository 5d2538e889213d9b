package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func result(name string, score float64, sev Severity) *CheckResult {
	r := NewCheckResult(name)
	r.Score = score
	r.Severity = sev
	return r
}

func TestAggregator_WeightedMean(t *testing.T) {
	agg := NewAggregator(Weights{"a": 10, "b": 30})
	ta := NewTokenAnalysis("mint")
	ta.Checks["a"] = result("a", 100, SeverityHigh)
	ta.Checks["b"] = result("b", 0, SeverityInfo)

	agg.Aggregate(ta)

	// (100*10 + 0*30) / 40 = 25
	assert.InDelta(t, 25.0, ta.RiskScore, 0.001)
	assert.Equal(t, SafetyLowRisk, ta.SafetyLevel)
}

func TestAggregator_SkippedChecksExcluded(t *testing.T) {
	agg := NewAggregator(Weights{"a": 10, "b": 10})

	// A skipped check carries the neutral placeholder score; if it leaked
	// into the mean the composite would move toward 50.
	skipped := result("b", NeutralScore, SeverityInfo)
	skipped.Skipped = true

	ta := NewTokenAnalysis("mint")
	ta.Checks["a"] = result("a", 90, SeverityHigh)
	ta.Checks["b"] = skipped

	agg.Aggregate(ta)

	assert.InDelta(t, 90.0, ta.RiskScore, 0.001)
	assert.Equal(t, SafetyExtremelyDangerous, ta.SafetyLevel)
}

func TestAggregator_SkipIsNotNeutralParticipation(t *testing.T) {
	agg := NewAggregator(Weights{"a": 10, "b": 10})

	skipped := result("b", NeutralScore, SeverityInfo)
	skipped.Skipped = true
	neutral := result("b", NeutralScore, SeverityInfo)

	withSkip := NewTokenAnalysis("mint")
	withSkip.Checks["a"] = result("a", 100, SeverityHigh)
	withSkip.Checks["b"] = skipped
	agg.Aggregate(withSkip)

	withNeutral := NewTokenAnalysis("mint")
	withNeutral.Checks["a"] = result("a", 100, SeverityHigh)
	withNeutral.Checks["b"] = neutral
	agg.Aggregate(withNeutral)

	assert.InDelta(t, 100.0, withSkip.RiskScore, 0.001)
	assert.InDelta(t, 75.0, withNeutral.RiskScore, 0.001)
	assert.NotEqual(t, withSkip.RiskScore, withNeutral.RiskScore)
}

func TestAggregator_AllSkippedYieldsNeutral(t *testing.T) {
	agg := NewAggregator(nil)
	ta := NewTokenAnalysis("mint")
	for _, name := range []string{"a", "b", "c"} {
		r := result(name, NeutralScore, SeverityInfo)
		r.Skipped = true
		ta.Checks[name] = r
	}

	agg.Aggregate(ta)

	assert.InDelta(t, NeutralScore, ta.RiskScore, 0.001)
	assert.Equal(t, SafetyModerateRisk, ta.SafetyLevel)
}

func TestAggregator_CriticalFindingForcesTopBand(t *testing.T) {
	// One critical check among many benign ones must still land the verdict
	// in the top band.
	agg := NewAggregator(Weights{"honeypot": 25, "a": 20, "b": 20, "c": 20})
	ta := NewTokenAnalysis("mint")
	ta.Checks["honeypot"] = result("honeypot", 100, SeverityCritical)
	ta.Checks["a"] = result("a", 0, SeverityInfo)
	ta.Checks["b"] = result("b", 0, SeverityInfo)
	ta.Checks["c"] = result("c", 0, SeverityInfo)

	agg.Aggregate(ta)

	assert.GreaterOrEqual(t, ta.RiskScore, 80.0)
	assert.Equal(t, SafetyExtremelyDangerous, ta.SafetyLevel)
}

func TestAggregator_ScoreClampedToRange(t *testing.T) {
	agg := NewAggregator(Weights{"a": 10, "b": 10})
	ta := NewTokenAnalysis("mint")
	ta.Checks["a"] = result("a", 250, SeverityHigh) // misbehaving check
	ta.Checks["b"] = result("b", -40, SeverityInfo)

	agg.Aggregate(ta)

	assert.GreaterOrEqual(t, ta.RiskScore, 0.0)
	assert.LessOrEqual(t, ta.RiskScore, 100.0)
}

func TestLevelForScore_Bands(t *testing.T) {
	cases := []struct {
		score float64
		want  SafetyLevel
	}{
		{0, SafetyAppearsSafe},
		{19.9, SafetyAppearsSafe},
		{20, SafetyLowRisk},
		{39.9, SafetyLowRisk},
		{40, SafetyModerateRisk},
		{59.9, SafetyModerateRisk},
		{60, SafetyHighRisk},
		{79.9, SafetyHighRisk},
		{80, SafetyExtremelyDangerous},
		{100, SafetyExtremelyDangerous},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, LevelForScore(tc.score), "score %.1f", tc.score)
	}
}

func TestAggregator_RecommendationsNamePartialData(t *testing.T) {
	agg := NewAggregator(nil)
	ta := NewTokenAnalysis("mint")
	bad := result("authorities", 95, SeverityCritical)
	bad.AddIssue("mint authority still active", SeverityCritical)
	skipped := result("liquidity", NeutralScore, SeverityInfo)
	skipped.Skipped = true
	ta.Checks["authorities"] = bad
	ta.Checks["liquidity"] = skipped

	agg.Aggregate(ta)

	require.NotEmpty(t, ta.Recommendations)
	assert.Contains(t, ta.Recommendations[0], "DO NOT BUY")

	joined := ""
	for _, r := range ta.Recommendations {
		joined += r + "\n"
	}
	assert.Contains(t, joined, "mint authority still active")
	assert.Contains(t, joined, "partial data")
}
