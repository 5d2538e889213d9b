package checks

import (
	"context"
	"fmt"

	"github.com/mintsentry/mintsentry/internal/analysis"
	"github.com/mintsentry/mintsentry/internal/solana"
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Holders check — concentration of the largest token accounts
// ---------------------------------------------------------------------------

const (
	topHoldersLimit = 10
	// Only the largest accounts get an ownership lookup; classifying all
	// ten would triple the RPC cost for marginal signal.
	deepClassifyLimit = 3
)

// HoldersCheck measures how concentrated the supply is. Pool vaults among
// the top accounts are excluded from concentration: locked liquidity is not
// a dump risk.
type HoldersCheck struct {
	rpc solana.RPCClient
}

func NewHoldersCheck(rpc solana.RPCClient) *HoldersCheck {
	return &HoldersCheck{rpc: rpc}
}

func (c *HoldersCheck) Name() string { return "holders" }

func (c *HoldersCheck) Run(ctx context.Context, mint solana.Pubkey) (*analysis.CheckResult, error) {
	supply, err := c.rpc.GetTokenSupply(ctx, mint)
	if err != nil {
		return nil, fmt.Errorf("holders: fetch supply: %w", err)
	}
	holders, err := c.rpc.GetLargestHolders(ctx, mint, topHoldersLimit)
	if err != nil {
		return nil, fmt.Errorf("holders: fetch largest accounts: %w", err)
	}

	res := analysis.NewCheckResult(c.Name())

	if len(holders) == 0 || supply.Amount.IsZero() {
		res.Score = 60
		res.AddIssue("no holder accounts found", analysis.SeverityMedium)
		return res, nil
	}

	pcts := c.holderPercentages(ctx, supply.Amount, holders, res)
	if len(pcts) == 0 {
		// Everything in the top accounts is pool-owned; distribution among
		// actual wallets is unknown but nothing is poised to dump.
		res.Details["note"] = "all top accounts are pool vaults"
		res.Score = 10
		return res, nil
	}

	top1 := pcts[0]
	top5 := sumPct(pcts, 5)
	top10 := sumPct(pcts, 10)
	hhi := 0.0
	for _, p := range pcts {
		hhi += p * p
	}

	res.Details["top1_pct"] = top1
	res.Details["top5_pct"] = top5
	res.Details["top10_pct"] = top10
	res.Details["hhi"] = hhi

	// The >50% top-1, >80% top-10, and >2500 HHI rungs are critical: any one
	// of them is enough to force the composite into the top band.
	switch {
	case top1 > 50:
		res.Score += 70
		res.AddIssue(fmt.Sprintf("single wallet holds %.1f%% of supply", top1), analysis.SeverityCritical)
	case top1 > 30:
		res.Score += 40
		res.AddWarning(fmt.Sprintf("single wallet holds %.1f%% of supply", top1))
	case top1 > 15:
		res.Score += 25
		res.AddWarning(fmt.Sprintf("largest wallet holds %.1f%% of supply", top1))
	}

	switch {
	case top10 > 80:
		res.Score += 25
		res.AddIssue(fmt.Sprintf("top %d wallets hold %.1f%% of supply", len(pcts), top10), analysis.SeverityCritical)
	case top10 > 60:
		res.Score += 15
		res.AddWarning(fmt.Sprintf("top %d wallets hold %.1f%% of supply", len(pcts), top10))
	}

	// HHI over percentage shares, 0-10000 scale for the sampled accounts.
	// The top-1 rungs already cover the single-whale case, so these only
	// fire when concentration is spread across several large wallets.
	switch {
	case hhi > 2500 && top1 <= 50:
		res.Score += 15
		res.AddIssue(fmt.Sprintf("extreme concentration index (HHI %.0f)", hhi), analysis.SeverityCritical)
	case hhi > 1500 && top1 <= 50:
		res.Score += 5
		res.AddWarning(fmt.Sprintf("high concentration index (HHI %.0f)", hhi))
	}

	return res, nil
}

// holderPercentages converts holder amounts to supply percentages, dropping
// accounts classified as DEX pool vaults.
func (c *HoldersCheck) holderPercentages(ctx context.Context, supply decimal.Decimal, holders []solana.HolderInfo, res *analysis.CheckResult) []float64 {
	pcts := make([]float64, 0, len(holders))
	poolVaults := 0

	for i, h := range holders {
		if i < deepClassifyLimit && c.isPoolVault(ctx, h.Address) {
			poolVaults++
			continue
		}
		pct, _ := h.Amount.Div(supply).Mul(decimal.NewFromInt(100)).Float64()
		pcts = append(pcts, pct)
	}

	res.Details["pool_vaults_excluded"] = poolVaults
	return pcts
}

func (c *HoldersCheck) isPoolVault(ctx context.Context, addr solana.Pubkey) bool {
	info, err := c.rpc.GetAccountInfo(ctx, addr)
	if err != nil {
		// Unclassifiable stays in the concentration math; the conservative
		// reading is that it could dump.
		return false
	}
	_, isDEX := solana.DEXPrograms[info.Owner]
	return isDEX
}

func sumPct(pcts []float64, n int) float64 {
	if n > len(pcts) {
		n = len(pcts)
	}
	total := 0.0
	for _, p := range pcts[:n] {
		total += p
	}
	return total
}
