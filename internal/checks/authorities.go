package checks

import (
	"context"
	"fmt"

	"github.com/mintsentry/mintsentry/internal/analysis"
	"github.com/mintsentry/mintsentry/internal/solana"
)

// ---------------------------------------------------------------------------
// Authorities check — mint / freeze authority renouncement
// ---------------------------------------------------------------------------

// AuthoritiesCheck verifies the creator gave up control of the mint. An
// active mint authority can print supply at will; an active freeze authority
// can lock every holder's account, which is the classic freeze-style trap.
type AuthoritiesCheck struct {
	rpc solana.RPCClient
}

func NewAuthoritiesCheck(rpc solana.RPCClient) *AuthoritiesCheck {
	return &AuthoritiesCheck{rpc: rpc}
}

func (c *AuthoritiesCheck) Name() string { return "authorities" }

func (c *AuthoritiesCheck) Run(ctx context.Context, mint solana.Pubkey) (*analysis.CheckResult, error) {
	info, err := c.rpc.GetMintInfo(ctx, mint)
	if err != nil {
		return nil, fmt.Errorf("authorities: fetch mint info: %w", err)
	}

	res := analysis.NewCheckResult(c.Name())
	res.Details["mint_renounced"] = info.IsMintRenounced()
	res.Details["freeze_renounced"] = info.IsFreezeRenounced()

	if !info.IsMintRenounced() {
		res.Score += 45
		res.AddIssue(
			fmt.Sprintf("mint authority still active (%s): creator can mint unlimited supply", shortKey(info.MintAuthority)),
			analysis.SeverityHigh,
		)
	}
	// Freeze is judged worse than mint: an inflated supply can still be
	// sold, a frozen account cannot.
	if !info.IsFreezeRenounced() {
		res.Score += 50
		res.AddIssue(
			fmt.Sprintf("freeze authority still active (%s): creator can freeze holder accounts", shortKey(info.FreezeAuthority)),
			analysis.SeverityHigh,
		)
	}

	if res.Score == 0 {
		res.Details["note"] = "both authorities renounced"
	}
	return res, nil
}

func shortKey(k solana.Pubkey) string {
	s := string(k)
	if len(s) > 8 {
		return s[:8]
	}
	return s
}
