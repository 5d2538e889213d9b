package checks

import (
	"context"
	"errors"
	"fmt"

	"github.com/mintsentry/mintsentry/internal/adapters/jupiter"
	"github.com/mintsentry/mintsentry/internal/analysis"
	"github.com/mintsentry/mintsentry/internal/solana"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Honeypot check — verify the exit before anyone takes the entry
// ---------------------------------------------------------------------------

const (
	// probeAmountLamports is the simulated buy size (0.1 SOL).
	probeAmountLamports = 100_000_000
	probeSlippageBps    = 500

	// Sub-test penalties layered on top of the round-trip base score.
	impactSeverePenalty = 15
	impactHighPenalty   = 8
	singleRoutePenalty  = 10

	// Confidence saturates once this many sub-tests have produced data.
	confidenceCap = 3
)

// HoneypotCheck quotes a buy and then a sell of the proceeds. A token that
// quotes a buy but not a sell is a trap regardless of every other signal, so
// that outcome alone is critical. A sell that quotes but returns a fraction
// of the input reveals a hidden transfer tax. Per-leg price impact and route
// diversity are corroborating sub-tests: each completed sub-test raises the
// confidence of the verdict, and a sparse quote pulls the score toward
// neutral instead of pretending certainty.
type HoneypotCheck struct {
	quotes jupiter.QuoteClient
}

func NewHoneypotCheck(quotes jupiter.QuoteClient) *HoneypotCheck {
	return &HoneypotCheck{quotes: quotes}
}

func (c *HoneypotCheck) Name() string { return "honeypot" }

func (c *HoneypotCheck) Run(ctx context.Context, mint solana.Pubkey) (*analysis.CheckResult, error) {
	res := analysis.NewCheckResult(c.Name())

	buy, err := c.quotes.GetQuote(ctx, solana.SOLMint, mint, probeAmountLamports, probeSlippageBps)
	if err != nil {
		if errors.Is(err, jupiter.ErrNoRoute) {
			// No way in means no way out either: by the time a detection
			// clears the age gate a legitimate launch has liquidity. Only
			// one sub-test could run, so confidence stays below full.
			res.Score = 85
			res.Details["tradable"] = false
			res.Details["confidence"] = "medium"
			res.AddIssue("no buy route on any indexed DEX: near-certain honeypot or abandoned launch", analysis.SeverityHigh)
			return res, nil
		}
		return c.unreachable(res, err), nil
	}
	res.Details["tradable"] = true
	res.Details["buy_out_amount"] = buy.OutAmount.String()

	if buy.OutAmount.IsZero() {
		res.Score = 80
		res.AddIssue("buy route quotes zero output", analysis.SeverityHigh)
		return res, nil
	}

	sellAmount := uint64(buy.OutAmount.IntPart())
	sell, err := c.quotes.GetQuote(ctx, mint, solana.SOLMint, sellAmount, probeSlippageBps)
	if err != nil {
		if errors.Is(err, jupiter.ErrNoRoute) {
			// Buy works, sell does not. The defining honeypot shape.
			res.Score = 100
			res.AddIssue("buy route exists but sell route does not: HONEYPOT", analysis.SeverityCritical)
			log.Warn().Str("mint", string(mint)).Msg("honeypot: sell route missing for tradable token")
			return res, nil
		}
		return c.unreachable(res, err), nil
	}
	res.Details["sell_out_amount"] = sell.OutAmount.String()

	res.Score = c.combine(res, *buy, *sell)
	return res, nil
}

// combine folds the round-trip sub-test and its corroborating sub-tests into
// one score, then scales the distance from neutral by how many sub-tests
// actually produced data (capped at confidenceCap).
func (c *HoneypotCheck) combine(res *analysis.CheckResult, buy, sell jupiter.Quote) float64 {
	completed := 1 // the round trip itself
	score := roundTripScore(res, sell.OutAmount)

	if !buy.PriceImpactPct.IsZero() {
		completed++
		score += impactPenalty(res, "buy", buy.PriceImpactPct)
	}
	if !sell.PriceImpactPct.IsZero() {
		completed++
		score += impactPenalty(res, "sell", sell.PriceImpactPct)
	}
	if len(buy.RouteLabels) > 0 || len(sell.RouteLabels) > 0 {
		completed++
		score += routePenalty(res, "buy", buy.RouteLabels)
		score += routePenalty(res, "sell", sell.RouteLabels)
	}
	if score > 100 {
		score = 100
	}

	confidence := float64(completed) / confidenceCap
	if confidence > 1 {
		confidence = 1
	}
	res.Details["sub_tests_completed"] = completed
	res.Details["confidence"] = confidenceLabel(completed)

	return analysis.NeutralScore + (score-analysis.NeutralScore)*confidence
}

// roundTripScore rates how much of the probe survives buy + sell.
func roundTripScore(res *analysis.CheckResult, sellOut decimal.Decimal) float64 {
	lossPct := roundTripLossPct(decimal.NewFromInt(probeAmountLamports), sellOut)
	res.Details["round_trip_loss_pct"] = lossPct

	switch {
	case lossPct > 50:
		res.AddIssue(fmt.Sprintf("round trip loses %.1f%%: hidden sell tax or drained pool", lossPct), analysis.SeverityHigh)
		return 85
	case lossPct > 25:
		res.AddIssue(fmt.Sprintf("round trip loses %.1f%%: heavy tax or extreme slippage", lossPct), analysis.SeverityMedium)
		return 60
	case lossPct > 10:
		res.AddWarning(fmt.Sprintf("round trip loses %.1f%%", lossPct))
		return 35
	default:
		return 5
	}
}

// impactPenalty flags excessive price impact on one leg of the probe.
func impactPenalty(res *analysis.CheckResult, leg string, pct decimal.Decimal) float64 {
	v, _ := pct.Float64()
	res.Details[leg+"_price_impact_pct"] = v
	switch {
	case v > 10:
		res.AddIssue(fmt.Sprintf("%s leg moves the price %.1f%%: pool too thin for the probe size", leg, v), analysis.SeverityMedium)
		return impactSeverePenalty
	case v > 5:
		res.AddWarning(fmt.Sprintf("%s leg moves the price %.1f%%", leg, v))
		return impactHighPenalty
	default:
		return 0
	}
}

// routePenalty flags a leg that routes through exactly one venue: the whole
// exit then depends on a single pool the creator may control.
func routePenalty(res *analysis.CheckResult, leg string, labels []string) float64 {
	if len(labels) != 1 {
		return 0
	}
	res.AddWarning(fmt.Sprintf("%s leg routes through a single venue (%s)", leg, labels[0]))
	return singleRoutePenalty
}

func confidenceLabel(completed int) string {
	switch {
	case completed >= confidenceCap:
		return "high"
	case completed == 2:
		return "medium"
	default:
		return "low"
	}
}

// unreachable converts a quote transport failure into a low-confidence
// neutral result. An unreachable quote service says nothing about the token,
// so the verdict must not swing on it.
func (c *HoneypotCheck) unreachable(res *analysis.CheckResult, err error) *analysis.CheckResult {
	res.Score = analysis.NeutralScore
	res.Details["confidence"] = "low"
	res.AddWarning(fmt.Sprintf("quote service unreachable, trade simulation inconclusive: %v", err))
	log.Debug().Err(err).Msg("honeypot: quote service unreachable")
	return res
}

// roundTripLossPct is how much of the probe amount evaporates across
// buy + sell, in percent.
func roundTripLossPct(in, out decimal.Decimal) float64 {
	if in.IsZero() {
		return 0
	}
	loss, _ := in.Sub(out).Div(in).Mul(decimal.NewFromInt(100)).Float64()
	if loss < 0 {
		return 0
	}
	return loss
}
