package checks

import (
	"context"
	"fmt"

	"github.com/mintsentry/mintsentry/internal/analysis"
	"github.com/mintsentry/mintsentry/internal/solana"
)

// ---------------------------------------------------------------------------
// Ownership check — mint account owner program
// ---------------------------------------------------------------------------

// OwnershipCheck verifies the mint account is owned by a standard token
// program. A mint owned by an arbitrary program can implement any transfer
// behavior at all, which makes every other heuristic unreliable.
type OwnershipCheck struct {
	rpc solana.RPCClient
}

func NewOwnershipCheck(rpc solana.RPCClient) *OwnershipCheck {
	return &OwnershipCheck{rpc: rpc}
}

func (c *OwnershipCheck) Name() string { return "ownership" }

func (c *OwnershipCheck) Run(ctx context.Context, mint solana.Pubkey) (*analysis.CheckResult, error) {
	info, err := c.rpc.GetMintInfo(ctx, mint)
	if err != nil {
		return nil, fmt.Errorf("ownership: fetch mint info: %w", err)
	}

	res := analysis.NewCheckResult(c.Name())
	res.Details["owner_program"] = string(info.OwnerProgram)

	if !solana.StandardTokenPrograms[info.OwnerProgram] {
		res.Score = 95
		res.AddIssue(
			fmt.Sprintf("mint owned by non-standard program %s: transfer behavior is arbitrary code", shortKey(info.OwnerProgram)),
			analysis.SeverityCritical,
		)
		return res, nil
	}

	if info.OwnerProgram == solana.Token2022ProgramID {
		// Token-2022 extensions (transfer hooks, fees) are legitimate but
		// routinely abused by fresh tokens.
		res.Score = 30
		res.AddWarning("Token-2022 mint: extensions may add transfer fees or hooks")
	}

	return res, nil
}
