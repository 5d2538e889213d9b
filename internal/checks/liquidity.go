package checks

import (
	"context"
	"fmt"

	"github.com/mintsentry/mintsentry/internal/analysis"
	"github.com/mintsentry/mintsentry/internal/solana"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Liquidity check — pool presence and LP token security
// ---------------------------------------------------------------------------

// LiquidityRating grades how safely the liquidity is locked up.
type LiquidityRating string

const (
	LiquidityExcellent LiquidityRating = "EXCELLENT"
	LiquidityGood      LiquidityRating = "GOOD"
	LiquidityModerate  LiquidityRating = "MODERATE"
	LiquidityPoor      LiquidityRating = "POOR"
	LiquidityDangerous LiquidityRating = "DANGEROUS"
	LiquidityNone      LiquidityRating = "NO_LIQUIDITY"
)

// LiquidityCheck locates DEX pool vaults among the largest token accounts
// and inspects the pools' LP tokens: liquidity that is burned or time-locked
// cannot be pulled, unlocked LP is one transaction away from a rug.
type LiquidityCheck struct {
	rpc solana.RPCClient
}

func NewLiquidityCheck(rpc solana.RPCClient) *LiquidityCheck {
	return &LiquidityCheck{rpc: rpc}
}

func (c *LiquidityCheck) Name() string { return "liquidity" }

func (c *LiquidityCheck) Run(ctx context.Context, mint solana.Pubkey) (*analysis.CheckResult, error) {
	holders, err := c.rpc.GetLargestHolders(ctx, mint, topHoldersLimit)
	if err != nil {
		return nil, fmt.Errorf("liquidity: fetch largest accounts: %w", err)
	}

	res := analysis.NewCheckResult(c.Name())

	pools := c.findPools(ctx, holders)
	res.Details["pools_found"] = len(pools)
	if len(pools) == 0 {
		res.Score = 75
		res.Severity = analysis.SeverityHigh
		res.Details["rating"] = string(LiquidityNone)
		res.AddIssue("no DEX liquidity pool found for this token", analysis.SeverityHigh)
		return res, nil
	}

	dexes := make([]string, 0, len(pools))
	for _, p := range pools {
		dexes = append(dexes, p.dex)
	}
	res.Details["dexes"] = dexes

	securedPct, known := c.securedPercentage(ctx, pools)
	if !known {
		res.Score = 50
		res.Details["rating"] = "UNKNOWN"
		res.AddWarning("could not resolve LP mint for any pool: lock status unknown")
		return res, nil
	}
	res.Details["secured_lp_pct"] = securedPct

	rating, score := rateLiquidity(securedPct)
	res.Details["rating"] = string(rating)
	res.Score = score

	switch rating {
	case LiquidityDangerous:
		res.AddIssue(fmt.Sprintf("only %.1f%% of LP tokens are burned or locked: liquidity can be pulled", securedPct), analysis.SeverityHigh)
	case LiquidityPoor:
		res.AddIssue(fmt.Sprintf("only %.1f%% of LP tokens are burned or locked", securedPct), analysis.SeverityMedium)
	case LiquidityModerate:
		res.AddWarning(fmt.Sprintf("%.1f%% of LP tokens are burned or locked", securedPct))
	}

	return res, nil
}

type poolVault struct {
	address solana.Pubkey
	dex     string
	lpMint  solana.Pubkey
}

// findPools classifies the largest token accounts by owner program.
func (c *LiquidityCheck) findPools(ctx context.Context, holders []solana.HolderInfo) []poolVault {
	var pools []poolVault
	for _, h := range holders {
		info, err := c.rpc.GetAccountInfo(ctx, h.Address)
		if err != nil {
			continue
		}
		dex, ok := solana.DEXPrograms[info.Owner]
		if !ok {
			continue
		}
		pools = append(pools, poolVault{address: h.Address, dex: dex, lpMint: info.LPMint})
	}
	return pools
}

// securedPercentage measures, across all pools with a resolvable LP mint,
// the share of LP supply held by burn addresses or locker programs.
func (c *LiquidityCheck) securedPercentage(ctx context.Context, pools []poolVault) (float64, bool) {
	totalSupply := decimal.Zero
	totalSecured := decimal.Zero
	resolved := false

	for _, pool := range pools {
		if pool.lpMint == "" {
			continue
		}
		supply, err := c.rpc.GetTokenSupply(ctx, pool.lpMint)
		if err != nil || supply.Amount.IsZero() {
			continue
		}
		lpHolders, err := c.rpc.GetLargestHolders(ctx, pool.lpMint, topHoldersLimit)
		if err != nil {
			continue
		}
		resolved = true
		totalSupply = totalSupply.Add(supply.Amount)

		for _, lh := range lpHolders {
			if solana.BurnAddresses[lh.Address] {
				totalSecured = totalSecured.Add(lh.Amount)
				continue
			}
			if info, err := c.rpc.GetAccountInfo(ctx, lh.Address); err == nil && solana.LockerPrograms[info.Owner] {
				totalSecured = totalSecured.Add(lh.Amount)
			}
		}
	}

	if !resolved || totalSupply.IsZero() {
		return 0, false
	}
	pct, _ := totalSecured.Div(totalSupply).Mul(decimal.NewFromInt(100)).Float64()
	log.Debug().Float64("secured_lp_pct", pct).Int("pools", len(pools)).Msg("liquidity: LP security computed")
	return pct, true
}

func rateLiquidity(securedPct float64) (LiquidityRating, float64) {
	switch {
	case securedPct >= 95:
		return LiquidityExcellent, 5
	case securedPct >= 80:
		return LiquidityGood, 20
	case securedPct >= 60:
		return LiquidityModerate, 40
	case securedPct >= 30:
		return LiquidityPoor, 55
	default:
		return LiquidityDangerous, 70
	}
}
