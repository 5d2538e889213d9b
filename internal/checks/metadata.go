package checks

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mintsentry/mintsentry/internal/analysis"
	"github.com/mintsentry/mintsentry/internal/solana"
)

// ---------------------------------------------------------------------------
// Metadata check — name/symbol/URI plausibility
// ---------------------------------------------------------------------------

// impersonatedSymbols are majors that fresh tokens imitate to catch fat
// fingers in wallet UIs.
var impersonatedSymbols = map[string]bool{
	"SOL": true, "WSOL": true, "USDC": true, "USDT": true,
	"BTC": true, "WBTC": true, "ETH": true, "WETH": true,
	"BONK": true, "JUP": true, "WIF": true,
}

// MetadataCheck inspects the token's Metaplex metadata: missing or sloppy
// metadata is a weak signal on its own, impersonating a major is not.
type MetadataCheck struct {
	rpc  solana.RPCClient
	http *http.Client
}

func NewMetadataCheck(rpc solana.RPCClient) *MetadataCheck {
	return &MetadataCheck{
		rpc:  rpc,
		http: &http.Client{Timeout: 5 * time.Second},
	}
}

func (c *MetadataCheck) Name() string { return "metadata" }

func (c *MetadataCheck) Run(ctx context.Context, mint solana.Pubkey) (*analysis.CheckResult, error) {
	res := analysis.NewCheckResult(c.Name())

	md, err := c.rpc.GetTokenMetadata(ctx, mint)
	if err != nil {
		if errors.Is(err, solana.ErrNotFound) {
			res.Score = 45
			res.AddIssue("no metadata account: token has no name or symbol on-chain", analysis.SeverityMedium)
			return res, nil
		}
		return nil, fmt.Errorf("metadata: fetch: %w", err)
	}

	res.Details["name"] = md.Name
	res.Details["symbol"] = md.Symbol

	name := strings.TrimSpace(md.Name)
	symbol := strings.TrimSpace(md.Symbol)

	if name == "" {
		res.Score += 20
		res.AddWarning("empty token name")
	}
	if symbol == "" {
		res.Score += 20
		res.AddWarning("empty token symbol")
	}

	if impersonatedSymbols[strings.ToUpper(symbol)] {
		res.Score += 60
		res.AddIssue(fmt.Sprintf("symbol %q impersonates a major token", symbol), analysis.SeverityHigh)
	}

	if !md.VerifiedCreator {
		res.Score += 10
		res.AddWarning("creator is not verified in metadata")
	}

	switch {
	case md.URI == "":
		res.Score += 15
		res.AddWarning("metadata URI is empty")
	case !c.uriReachable(ctx, md.URI):
		res.Score += 15
		res.AddWarning(fmt.Sprintf("metadata URI unreachable: %s", md.URI))
	}

	return res, nil
}

// uriReachable does a HEAD probe. Errors count against the token but are
// never fatal: IPFS gateways flake constantly.
func (c *MetadataCheck) uriReachable(ctx context.Context, uri string) bool {
	if !strings.HasPrefix(uri, "http://") && !strings.HasPrefix(uri, "https://") {
		return false
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, uri, nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < 400
}
