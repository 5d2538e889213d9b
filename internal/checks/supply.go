package checks

import (
	"context"
	"fmt"

	"github.com/mintsentry/mintsentry/internal/analysis"
	"github.com/mintsentry/mintsentry/internal/solana"
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Supply check — sanity of total supply and decimals
// ---------------------------------------------------------------------------

var (
	// Above this UI supply the token is in meme-hyperinflation territory.
	hugeSupplyThreshold = decimal.New(1, 15) // 10^15
	// Typical memecoin supply; anything here is unremarkable.
	normalSupplyCeiling = decimal.New(1, 12) // 10^12
)

// SupplyCheck sanity-checks total supply and decimal configuration. Degenerate
// values (zero supply, absurd decimals) correlate strongly with throwaway
// scam deployments.
type SupplyCheck struct {
	rpc solana.RPCClient
}

func NewSupplyCheck(rpc solana.RPCClient) *SupplyCheck {
	return &SupplyCheck{rpc: rpc}
}

func (c *SupplyCheck) Name() string { return "supply" }

func (c *SupplyCheck) Run(ctx context.Context, mint solana.Pubkey) (*analysis.CheckResult, error) {
	supply, err := c.rpc.GetTokenSupply(ctx, mint)
	if err != nil {
		return nil, fmt.Errorf("supply: fetch token supply: %w", err)
	}

	res := analysis.NewCheckResult(c.Name())
	ui := supply.UIAmount()
	res.Details["ui_amount"] = ui.String()
	res.Details["decimals"] = supply.Decimals

	if supply.Amount.IsZero() {
		res.Score = 85
		res.AddIssue("total supply is zero: token cannot trade", analysis.SeverityHigh)
		return res, nil
	}

	switch {
	case supply.Decimals > 12:
		res.Score += 40
		res.AddIssue(fmt.Sprintf("unusual decimals (%d): amounts are easy to misread", supply.Decimals), analysis.SeverityMedium)
	case supply.Decimals == 0:
		res.Score += 15
		res.AddWarning("zero decimals: indivisible token, unusual for a tradable asset")
	}

	switch {
	case ui.GreaterThan(hugeSupplyThreshold):
		res.Score += 30
		res.AddWarning(fmt.Sprintf("extreme total supply (%s): unit price will look deceptively small", ui.String()))
	case ui.GreaterThan(normalSupplyCeiling):
		res.Score += 10
		res.AddWarning(fmt.Sprintf("very large total supply (%s)", ui.String()))
	}

	return res, nil
}
