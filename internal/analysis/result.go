package analysis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mintsentry/mintsentry/internal/solana"
)

// ---------------------------------------------------------------------------
// Analysis result model
// ---------------------------------------------------------------------------

// Severity grades a single finding.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
	SeverityInfo     Severity = "INFO"
)

// SafetyLevel is the human-facing verdict band derived from the risk score.
type SafetyLevel string

const (
	SafetyExtremelyDangerous SafetyLevel = "EXTREMELY_DANGEROUS"
	SafetyHighRisk           SafetyLevel = "HIGH_RISK"
	SafetyModerateRisk       SafetyLevel = "MODERATE_RISK"
	SafetyLowRisk            SafetyLevel = "LOW_RISK"
	SafetyAppearsSafe        SafetyLevel = "APPEARS_SAFE"
)

// NeutralScore is recorded for checks that could not run; it carries no
// signal in either direction and is excluded from aggregation.
const NeutralScore = 50.0

// CheckResult is the outcome of one heuristic check. Score runs 0-100 with
// higher meaning riskier, uniformly across all checks.
type CheckResult struct {
	Name     string        `json:"name"`
	Score    float64       `json:"score"`
	Severity Severity      `json:"severity"`
	Issues   []string      `json:"issues,omitempty"`
	Warnings []string      `json:"warnings,omitempty"`
	Details  map[string]any `json:"details,omitempty"`

	// Skipped marks a check that produced no signal (timeout, disabled
	// dependency). Skipped results are excluded from score aggregation.
	Skipped  bool          `json:"skipped,omitempty"`
	Duration time.Duration `json:"duration"`
}

// NewCheckResult returns an empty, passing result for a check.
func NewCheckResult(name string) *CheckResult {
	return &CheckResult{
		Name:     name,
		Severity: SeverityInfo,
		Details:  make(map[string]any),
	}
}

// AddIssue records a finding and raises the severity floor.
func (r *CheckResult) AddIssue(msg string, sev Severity) {
	r.Issues = append(r.Issues, msg)
	if severityRank(sev) > severityRank(r.Severity) {
		r.Severity = sev
	}
}

// AddWarning records a non-scoring observation.
func (r *CheckResult) AddWarning(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

func severityRank(s Severity) int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// TokenAnalysis is the full record for one analyzed mint.
type TokenAnalysis struct {
	ID              string                  `json:"id"`
	Mint            solana.Pubkey           `json:"mint"`
	Timestamp       time.Time               `json:"timestamp"`
	Duration        time.Duration           `json:"duration"`
	Checks          map[string]*CheckResult `json:"checks"`
	RiskScore       float64                 `json:"risk_score"`
	SafetyLevel     SafetyLevel             `json:"safety_level"`
	Recommendations []string                `json:"recommendations,omitempty"`
}

// NewTokenAnalysis creates an empty analysis shell for a mint.
func NewTokenAnalysis(mint solana.Pubkey) *TokenAnalysis {
	return &TokenAnalysis{
		ID:        uuid.New().String(),
		Mint:      mint,
		Timestamp: time.Now().UTC(),
		Checks:    make(map[string]*CheckResult),
	}
}

// Check is one heuristic analyzer. Run must respect ctx and return either a
// populated result or an error; it must not panic on malformed chain data.
type Check interface {
	Name() string
	Run(ctx context.Context, mint solana.Pubkey) (*CheckResult, error)
}
