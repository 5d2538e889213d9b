// Package checks contains the heuristic analyzers that grade a freshly
// created token. Every check scores 0-100 with higher meaning riskier and
// reports concrete findings; composition and weighting live in the analysis
// package.
package checks

import (
	"github.com/mintsentry/mintsentry/internal/adapters/jupiter"
	"github.com/mintsentry/mintsentry/internal/analysis"
	"github.com/mintsentry/mintsentry/internal/solana"
	"github.com/rs/zerolog/log"
)

// Config selects which checks run.
type Config struct {
	// Disabled lists check names to skip entirely.
	Disabled []string `yaml:"disabled"`
}

// BuildAll assembles the full check battery minus the disabled ones.
func BuildAll(cfg Config, rpc solana.RPCClient, quotes jupiter.QuoteClient) []analysis.Check {
	disabled := make(map[string]bool, len(cfg.Disabled))
	for _, name := range cfg.Disabled {
		disabled[name] = true
	}

	all := []analysis.Check{
		NewSupplyCheck(rpc),
		NewAuthoritiesCheck(rpc),
		NewOwnershipCheck(rpc),
		NewMetadataCheck(rpc),
		NewHoldersCheck(rpc),
		NewLiquidityCheck(rpc),
		NewHoneypotCheck(quotes),
		NewMarketCheck(quotes),
	}

	enabled := make([]analysis.Check, 0, len(all))
	for _, c := range all {
		if disabled[c.Name()] {
			log.Info().Str("check", c.Name()).Msg("checks: disabled by config")
			continue
		}
		enabled = append(enabled, c)
	}
	return enabled
}
