package checks

import (
	"context"

	"github.com/mintsentry/mintsentry/internal/adapters/jupiter"
	"github.com/mintsentry/mintsentry/internal/analysis"
	"github.com/mintsentry/mintsentry/internal/solana"
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Market check — price discovery and market depth
// ---------------------------------------------------------------------------

// MarketCheck probes whether the token has a real market: an indexed price
// and a buy route whose price impact is survivable. Depth problems are a
// weak standalone signal, so this check leans on warnings.
type MarketCheck struct {
	quotes jupiter.QuoteClient
}

func NewMarketCheck(quotes jupiter.QuoteClient) *MarketCheck {
	return &MarketCheck{quotes: quotes}
}

func (c *MarketCheck) Name() string { return "market" }

func (c *MarketCheck) Run(ctx context.Context, mint solana.Pubkey) (*analysis.CheckResult, error) {
	res := analysis.NewCheckResult(c.Name())

	price, err := c.quotes.GetPrice(ctx, mint)
	if err != nil {
		// Fresh tokens are often unindexed for minutes; absence of a price
		// feed is expected noise at this age.
		res.Score = 40
		res.Details["price_indexed"] = false
		res.AddWarning("no indexed market price for token")
	} else {
		res.Details["price_indexed"] = true
		res.Details["price_usdc"] = price.String()
	}

	quote, err := c.quotes.GetQuote(ctx, solana.SOLMint, mint, probeAmountLamports, probeSlippageBps)
	if err != nil {
		// The honeypot check owns routing failures; here it only caps the
		// depth signal.
		res.Score += 15
		res.AddWarning("no buy quote available to measure depth")
		return res, nil
	}

	impact := quote.PriceImpactPct
	impactF, _ := impact.Float64()
	res.Details["price_impact_pct"] = impact.String()

	switch {
	case impact.GreaterThan(decimal.NewFromInt(25)):
		res.Score += 45
		res.AddIssue("extreme price impact on a small buy: near-empty pool", analysis.SeverityHigh)
	case impact.GreaterThan(decimal.NewFromInt(10)):
		res.Score += 25
		res.AddWarning("high price impact on a small buy: thin liquidity")
	case impactF > 3:
		res.Score += 10
		res.AddWarning("noticeable price impact on a small buy")
	}

	if res.Score > 100 {
		res.Score = 100
	}
	return res, nil
}
