package checks

import (
	"context"
	"testing"

	"github.com/mintsentry/mintsentry/internal/adapters/jupiter"
	"github.com/mintsentry/mintsentry/internal/analysis"
	"github.com/mintsentry/mintsentry/internal/solana"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMint = solana.USDCMint

func ctxb() context.Context { return context.Background() }

// ---------------------------------------------------------------------------
// authorities
// ---------------------------------------------------------------------------

func TestAuthoritiesCheck(t *testing.T) {
	t.Run("both renounced scores clean", func(t *testing.T) {
		rpc := solana.NewStubRPCClient()
		rpc.AddMint(solana.MintInfo{Mint: testMint, OwnerProgram: solana.TokenProgramID, Decimals: 9, Supply: decimal.NewFromInt(1000)})

		res, err := NewAuthoritiesCheck(rpc).Run(ctxb(), testMint)
		require.NoError(t, err)
		assert.Equal(t, 0.0, res.Score)
		assert.Empty(t, res.Issues)
	})

	t.Run("active authorities are flagged", func(t *testing.T) {
		rpc := solana.NewStubRPCClient()
		rpc.AddMint(solana.MintInfo{
			Mint:            testMint,
			OwnerProgram:    solana.TokenProgramID,
			Supply:          decimal.NewFromInt(1000),
			MintAuthority:   "Creator111111111111111111111111111111111111",
			FreezeAuthority: "Creator111111111111111111111111111111111111",
		})

		res, err := NewAuthoritiesCheck(rpc).Run(ctxb(), testMint)
		require.NoError(t, err)
		assert.Equal(t, 95.0, res.Score)
		assert.Len(t, res.Issues, 2)
		assert.Equal(t, analysis.SeverityHigh, res.Severity)
	})

	t.Run("freeze authority outweighs mint authority", func(t *testing.T) {
		rpc := solana.NewStubRPCClient()
		rpc.AddMint(solana.MintInfo{
			Mint:          testMint,
			OwnerProgram:  solana.TokenProgramID,
			Supply:        decimal.NewFromInt(1000),
			MintAuthority: "Creator111111111111111111111111111111111111",
		})
		mintOnly, err := NewAuthoritiesCheck(rpc).Run(ctxb(), testMint)
		require.NoError(t, err)

		rpc2 := solana.NewStubRPCClient()
		rpc2.AddMint(solana.MintInfo{
			Mint:            testMint,
			OwnerProgram:    solana.TokenProgramID,
			Supply:          decimal.NewFromInt(1000),
			FreezeAuthority: "Creator111111111111111111111111111111111111",
		})
		freezeOnly, err := NewAuthoritiesCheck(rpc2).Run(ctxb(), testMint)
		require.NoError(t, err)

		assert.Greater(t, freezeOnly.Score, mintOnly.Score)
	})

	t.Run("missing mint is an error", func(t *testing.T) {
		rpc := solana.NewStubRPCClient()
		_, err := NewAuthoritiesCheck(rpc).Run(ctxb(), testMint)
		require.Error(t, err)
	})
}

// ---------------------------------------------------------------------------
// supply
// ---------------------------------------------------------------------------

func TestSupplyCheck(t *testing.T) {
	t.Run("zero supply is high risk", func(t *testing.T) {
		rpc := solana.NewStubRPCClient()
		rpc.AddSupply(testMint, solana.TokenSupply{Amount: decimal.Zero, Decimals: 9})

		res, err := NewSupplyCheck(rpc).Run(ctxb(), testMint)
		require.NoError(t, err)
		assert.Equal(t, 85.0, res.Score)
		assert.Equal(t, analysis.SeverityHigh, res.Severity)
	})

	t.Run("ordinary supply is clean", func(t *testing.T) {
		rpc := solana.NewStubRPCClient()
		// 1B tokens at 9 decimals.
		rpc.AddSupply(testMint, solana.TokenSupply{Amount: decimal.New(1, 18), Decimals: 9})

		res, err := NewSupplyCheck(rpc).Run(ctxb(), testMint)
		require.NoError(t, err)
		assert.Equal(t, 0.0, res.Score)
	})

	t.Run("absurd decimals flagged", func(t *testing.T) {
		rpc := solana.NewStubRPCClient()
		rpc.AddSupply(testMint, solana.TokenSupply{Amount: decimal.NewFromInt(1000), Decimals: 15})

		res, err := NewSupplyCheck(rpc).Run(ctxb(), testMint)
		require.NoError(t, err)
		assert.NotEmpty(t, res.Issues)
		assert.Greater(t, res.Score, 0.0)
	})
}

// ---------------------------------------------------------------------------
// ownership
// ---------------------------------------------------------------------------

func TestOwnershipCheck(t *testing.T) {
	t.Run("standard token program is clean", func(t *testing.T) {
		rpc := solana.NewStubRPCClient()
		rpc.AddMint(solana.MintInfo{Mint: testMint, OwnerProgram: solana.TokenProgramID, Supply: decimal.NewFromInt(1)})

		res, err := NewOwnershipCheck(rpc).Run(ctxb(), testMint)
		require.NoError(t, err)
		assert.Equal(t, 0.0, res.Score)
	})

	t.Run("token-2022 warns", func(t *testing.T) {
		rpc := solana.NewStubRPCClient()
		rpc.AddMint(solana.MintInfo{Mint: testMint, OwnerProgram: solana.Token2022ProgramID, Supply: decimal.NewFromInt(1)})

		res, err := NewOwnershipCheck(rpc).Run(ctxb(), testMint)
		require.NoError(t, err)
		assert.Equal(t, 30.0, res.Score)
		assert.NotEmpty(t, res.Warnings)
	})

	t.Run("unknown owner program is critical", func(t *testing.T) {
		rpc := solana.NewStubRPCClient()
		rpc.AddMint(solana.MintInfo{Mint: testMint, OwnerProgram: "EvilProgram1111111111111111111111111111111", Supply: decimal.NewFromInt(1)})

		res, err := NewOwnershipCheck(rpc).Run(ctxb(), testMint)
		require.NoError(t, err)
		assert.Equal(t, 95.0, res.Score)
		assert.Equal(t, analysis.SeverityCritical, res.Severity)
	})
}

// ---------------------------------------------------------------------------
// metadata
// ---------------------------------------------------------------------------

func TestMetadataCheck(t *testing.T) {
	t.Run("missing metadata account", func(t *testing.T) {
		rpc := solana.NewStubRPCClient()
		res, err := NewMetadataCheck(rpc).Run(ctxb(), testMint)
		require.NoError(t, err)
		assert.Equal(t, 45.0, res.Score)
		assert.NotEmpty(t, res.Issues)
	})

	t.Run("impersonating a major symbol", func(t *testing.T) {
		rpc := solana.NewStubRPCClient()
		rpc.AddMetadata(solana.TokenMetadata{Mint: testMint, Name: "USD Coin", Symbol: "USDC", VerifiedCreator: true})

		res, err := NewMetadataCheck(rpc).Run(ctxb(), testMint)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, res.Score, 60.0)
		assert.Equal(t, analysis.SeverityHigh, res.Severity)
	})

	t.Run("empty name and symbol warn", func(t *testing.T) {
		rpc := solana.NewStubRPCClient()
		rpc.AddMetadata(solana.TokenMetadata{Mint: testMint, VerifiedCreator: true})

		res, err := NewMetadataCheck(rpc).Run(ctxb(), testMint)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, len(res.Warnings), 2)
	})
}

// ---------------------------------------------------------------------------
// holders
// ---------------------------------------------------------------------------

func holderAddr(i int) solana.Pubkey {
	return solana.Pubkey(string(rune('A'+i)) + "older11111111111111111111111111111111111")
}

func holdersFixture(rpc *solana.StubRPCClient, amounts ...int64) {
	total := decimal.Zero
	holders := make([]solana.HolderInfo, 0, len(amounts))
	for i, a := range amounts {
		amt := decimal.NewFromInt(a)
		total = total.Add(amt)
		holders = append(holders, solana.HolderInfo{Address: holderAddr(i), Amount: amt})
	}
	rpc.AddSupply(testMint, solana.TokenSupply{Amount: total, Decimals: 6})
	rpc.AddHolders(testMint, holders)
}

func TestHoldersCheck(t *testing.T) {
	t.Run("even distribution is clean", func(t *testing.T) {
		rpc := solana.NewStubRPCClient()
		// 10 holders at 4% each; 60% sits outside the top accounts.
		rpc.AddSupply(testMint, solana.TokenSupply{Amount: decimal.NewFromInt(1000), Decimals: 6})
		holders := make([]solana.HolderInfo, 10)
		for i := range holders {
			holders[i] = solana.HolderInfo{Address: holderAddr(i), Amount: decimal.NewFromInt(40)}
		}
		rpc.AddHolders(testMint, holders)

		res, err := NewHoldersCheck(rpc).Run(ctxb(), testMint)
		require.NoError(t, err)
		assert.Equal(t, 0.0, res.Score)
	})

	t.Run("single whale is critical", func(t *testing.T) {
		rpc := solana.NewStubRPCClient()
		holdersFixture(rpc, 700, 100, 100, 100)

		res, err := NewHoldersCheck(rpc).Run(ctxb(), testMint)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, res.Score, 70.0)
		assert.Equal(t, analysis.SeverityCritical, res.Severity)
	})

	t.Run("top-10 above 80 percent is critical", func(t *testing.T) {
		rpc := solana.NewStubRPCClient()
		// Ten wallets at 9% each: no single whale, but 90% sits in the top ten.
		rpc.AddSupply(testMint, solana.TokenSupply{Amount: decimal.NewFromInt(1000), Decimals: 6})
		holders := make([]solana.HolderInfo, 10)
		for i := range holders {
			holders[i] = solana.HolderInfo{Address: holderAddr(i), Amount: decimal.NewFromInt(90)}
		}
		rpc.AddHolders(testMint, holders)

		res, err := NewHoldersCheck(rpc).Run(ctxb(), testMint)
		require.NoError(t, err)
		assert.Equal(t, analysis.SeverityCritical, res.Severity)
		require.NotEmpty(t, res.Issues)
		assert.Contains(t, res.Issues[0], "wallets hold")
	})

	t.Run("extreme concentration index is critical", func(t *testing.T) {
		rpc := solana.NewStubRPCClient()
		// 45/25/5 shares: no rung fires on top-1 or top-10, but HHI is 2675.
		rpc.AddSupply(testMint, solana.TokenSupply{Amount: decimal.NewFromInt(1000), Decimals: 6})
		rpc.AddHolders(testMint, []solana.HolderInfo{
			{Address: holderAddr(0), Amount: decimal.NewFromInt(450)},
			{Address: holderAddr(1), Amount: decimal.NewFromInt(250)},
			{Address: holderAddr(2), Amount: decimal.NewFromInt(50)},
		})

		res, err := NewHoldersCheck(rpc).Run(ctxb(), testMint)
		require.NoError(t, err)
		assert.Equal(t, analysis.SeverityCritical, res.Severity)
		require.NotEmpty(t, res.Issues)
		assert.Contains(t, res.Issues[0], "concentration index")
	})

	t.Run("pool vault excluded from concentration", func(t *testing.T) {
		rpc := solana.NewStubRPCClient()
		holdersFixture(rpc, 700, 100, 100, 100)

		// The 70% account is a raydium vault, not a wallet.
		var raydium solana.Pubkey
		for id, name := range solana.DEXPrograms {
			if name == "raydium" {
				raydium = id
			}
		}
		rpc.AddAccount(solana.AccountInfo{Address: holderAddr(0), Owner: raydium})

		res, err := NewHoldersCheck(rpc).Run(ctxb(), testMint)
		require.NoError(t, err)
		assert.Equal(t, 1, res.Details["pool_vaults_excluded"])
		assert.Less(t, res.Score, 70.0)
	})

	t.Run("no holders found", func(t *testing.T) {
		rpc := solana.NewStubRPCClient()
		rpc.AddSupply(testMint, solana.TokenSupply{Amount: decimal.NewFromInt(1000), Decimals: 6})
		rpc.AddHolders(testMint, nil)

		res, err := NewHoldersCheck(rpc).Run(ctxb(), testMint)
		require.NoError(t, err)
		assert.Equal(t, 60.0, res.Score)
	})
}

// ---------------------------------------------------------------------------
// liquidity
// ---------------------------------------------------------------------------

func TestLiquidityCheck(t *testing.T) {
	var raydium solana.Pubkey
	for id, name := range solana.DEXPrograms {
		if name == "raydium" {
			raydium = id
		}
	}
	const (
		vault  = solana.Pubkey("Vau1t111111111111111111111111111111111111111")
		lpMint = solana.Pubkey("LPM1nt11111111111111111111111111111111111111")
	)

	setup := func() *solana.StubRPCClient {
		rpc := solana.NewStubRPCClient()
		rpc.AddSupply(testMint, solana.TokenSupply{Amount: decimal.NewFromInt(1000), Decimals: 6})
		rpc.AddHolders(testMint, []solana.HolderInfo{{Address: vault, Amount: decimal.NewFromInt(900)}})
		rpc.AddAccount(solana.AccountInfo{Address: vault, Owner: raydium, LPMint: lpMint})
		rpc.AddSupply(lpMint, solana.TokenSupply{Amount: decimal.NewFromInt(100), Decimals: 6})
		return rpc
	}

	t.Run("no pools at all", func(t *testing.T) {
		rpc := solana.NewStubRPCClient()
		rpc.AddHolders(testMint, []solana.HolderInfo{{Address: "Wallet11111111111111111111111111111111111111", Amount: decimal.NewFromInt(10)}})

		res, err := NewLiquidityCheck(rpc).Run(ctxb(), testMint)
		require.NoError(t, err)
		assert.Equal(t, string(LiquidityNone), res.Details["rating"])
		assert.Equal(t, 75.0, res.Score)
	})

	t.Run("fully burned LP is excellent", func(t *testing.T) {
		rpc := setup()
		var burn solana.Pubkey
		for addr := range solana.BurnAddresses {
			burn = addr
			break
		}
		rpc.AddHolders(lpMint, []solana.HolderInfo{{Address: burn, Amount: decimal.NewFromInt(95)}})

		res, err := NewLiquidityCheck(rpc).Run(ctxb(), testMint)
		require.NoError(t, err)
		assert.Equal(t, string(LiquidityExcellent), res.Details["rating"])
		assert.Equal(t, 5.0, res.Score)
	})

	t.Run("unlocked LP is dangerous", func(t *testing.T) {
		rpc := setup()
		rpc.AddHolders(lpMint, []solana.HolderInfo{{Address: "Dev11111111111111111111111111111111111111111", Amount: decimal.NewFromInt(100)}})

		res, err := NewLiquidityCheck(rpc).Run(ctxb(), testMint)
		require.NoError(t, err)
		assert.Equal(t, string(LiquidityDangerous), res.Details["rating"])
		assert.Equal(t, 70.0, res.Score)
		assert.NotEmpty(t, res.Issues)
	})

	t.Run("unknown lock status", func(t *testing.T) {
		rpc := solana.NewStubRPCClient()
		rpc.AddHolders(testMint, []solana.HolderInfo{{Address: vault, Amount: decimal.NewFromInt(900)}})
		rpc.AddAccount(solana.AccountInfo{Address: vault, Owner: raydium}) // no LP mint resolved

		res, err := NewLiquidityCheck(rpc).Run(ctxb(), testMint)
		require.NoError(t, err)
		assert.Equal(t, "UNKNOWN", res.Details["rating"])
		assert.Equal(t, 50.0, res.Score)
	})
}

// ---------------------------------------------------------------------------
// honeypot
// ---------------------------------------------------------------------------

func TestHoneypotCheck(t *testing.T) {
	multiRoute := []string{"Raydium", "Orca"}
	buyQuote := jupiter.Quote{
		InputMint:      solana.SOLMint,
		OutputMint:     testMint,
		InAmount:       decimal.NewFromInt(probeAmountLamports),
		OutAmount:      decimal.NewFromInt(1_000_000),
		PriceImpactPct: decimal.NewFromInt(1),
		RouteLabels:    multiRoute,
	}
	sellQuote := func(outPct int64) jupiter.Quote {
		return jupiter.Quote{
			InputMint:      testMint,
			OutputMint:     solana.SOLMint,
			InAmount:       decimal.NewFromInt(1_000_000),
			OutAmount:      decimal.NewFromInt(probeAmountLamports * outPct / 100),
			PriceImpactPct: decimal.NewFromInt(1),
			RouteLabels:    multiRoute,
		}
	}

	t.Run("sell route missing is critical", func(t *testing.T) {
		quotes := jupiter.NewStubQuoteClient()
		quotes.AddQuote(buyQuote)
		// No sell direction registered: stub answers ErrNoRoute.

		res, err := NewHoneypotCheck(quotes).Run(ctxb(), testMint)
		require.NoError(t, err)
		assert.Equal(t, 100.0, res.Score)
		assert.Equal(t, analysis.SeverityCritical, res.Severity)
	})

	t.Run("clean round trip", func(t *testing.T) {
		quotes := jupiter.NewStubQuoteClient()
		quotes.AddQuote(buyQuote)
		quotes.AddQuote(sellQuote(97))

		res, err := NewHoneypotCheck(quotes).Run(ctxb(), testMint)
		require.NoError(t, err)
		assert.Equal(t, 5.0, res.Score)
		assert.Empty(t, res.Issues)
		assert.Equal(t, "high", res.Details["confidence"])
		assert.Equal(t, 4, res.Details["sub_tests_completed"])
	})

	t.Run("heavy sell tax", func(t *testing.T) {
		quotes := jupiter.NewStubQuoteClient()
		quotes.AddQuote(buyQuote)
		quotes.AddQuote(sellQuote(40))

		res, err := NewHoneypotCheck(quotes).Run(ctxb(), testMint)
		require.NoError(t, err)
		assert.Equal(t, 85.0, res.Score)
		assert.Equal(t, analysis.SeverityHigh, res.Severity)
	})

	t.Run("no buy route is near-certain honeypot", func(t *testing.T) {
		quotes := jupiter.NewStubQuoteClient()

		res, err := NewHoneypotCheck(quotes).Run(ctxb(), testMint)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, res.Score, 80.0)
		assert.Equal(t, analysis.SeverityHigh, res.Severity)
		assert.NotEmpty(t, res.Issues)
		assert.Equal(t, false, res.Details["tradable"])
	})

	t.Run("single venue on both legs adds penalties", func(t *testing.T) {
		quotes := jupiter.NewStubQuoteClient()
		buy := buyQuote
		buy.RouteLabels = []string{"Raydium"}
		sell := sellQuote(97)
		sell.RouteLabels = []string{"Raydium"}
		quotes.AddQuote(buy)
		quotes.AddQuote(sell)

		res, err := NewHoneypotCheck(quotes).Run(ctxb(), testMint)
		require.NoError(t, err)
		assert.Equal(t, 25.0, res.Score)
		assert.Len(t, res.Warnings, 2)
	})

	t.Run("thin pool price impact adds penalties", func(t *testing.T) {
		quotes := jupiter.NewStubQuoteClient()
		buy := buyQuote
		buy.PriceImpactPct = decimal.NewFromInt(12)
		sell := sellQuote(97)
		sell.PriceImpactPct = decimal.NewFromInt(6)
		quotes.AddQuote(buy)
		quotes.AddQuote(sell)

		res, err := NewHoneypotCheck(quotes).Run(ctxb(), testMint)
		require.NoError(t, err)
		assert.Equal(t, 28.0, res.Score)
		assert.NotEmpty(t, res.Issues)
	})

	t.Run("sparse quote data pulls the score toward neutral", func(t *testing.T) {
		quotes := jupiter.NewStubQuoteClient()
		quotes.AddQuote(jupiter.Quote{
			InputMint:  solana.SOLMint,
			OutputMint: testMint,
			InAmount:   decimal.NewFromInt(probeAmountLamports),
			OutAmount:  decimal.NewFromInt(1_000_000),
		})
		quotes.AddQuote(jupiter.Quote{
			InputMint:  testMint,
			OutputMint: solana.SOLMint,
			InAmount:   decimal.NewFromInt(1_000_000),
			OutAmount:  decimal.NewFromInt(probeAmountLamports * 97 / 100),
		})

		res, err := NewHoneypotCheck(quotes).Run(ctxb(), testMint)
		require.NoError(t, err)
		// Only the round trip completed: the clean signal is discounted.
		assert.InDelta(t, 35.0, res.Score, 1e-9)
		assert.Equal(t, "low", res.Details["confidence"])
		assert.Equal(t, 1, res.Details["sub_tests_completed"])
	})

	t.Run("unreachable quote service is neutral low confidence", func(t *testing.T) {
		quotes := jupiter.NewStubQuoteClient()
		quotes.SetFailNext()

		res, err := NewHoneypotCheck(quotes).Run(ctxb(), testMint)
		require.NoError(t, err)
		assert.Equal(t, analysis.NeutralScore, res.Score)
		assert.Equal(t, "low", res.Details["confidence"])
		assert.Empty(t, res.Issues)
		assert.NotEmpty(t, res.Warnings)
	})
}

// ---------------------------------------------------------------------------
// market
// ---------------------------------------------------------------------------

func TestMarketCheck(t *testing.T) {
	t.Run("indexed price and deep pool", func(t *testing.T) {
		quotes := jupiter.NewStubQuoteClient()
		quotes.SetPrice(testMint, decimal.NewFromFloat(0.001))
		quotes.AddQuote(jupiter.Quote{
			InputMint:      solana.SOLMint,
			OutputMint:     testMint,
			OutAmount:      decimal.NewFromInt(1_000_000),
			PriceImpactPct: decimal.NewFromFloat(0.5),
		})

		res, err := NewMarketCheck(quotes).Run(ctxb(), testMint)
		require.NoError(t, err)
		assert.Equal(t, 0.0, res.Score)
	})

	t.Run("unindexed with thin pool", func(t *testing.T) {
		quotes := jupiter.NewStubQuoteClient()
		quotes.AddQuote(jupiter.Quote{
			InputMint:      solana.SOLMint,
			OutputMint:     testMint,
			OutAmount:      decimal.NewFromInt(1_000_000),
			PriceImpactPct: decimal.NewFromInt(30),
		})

		res, err := NewMarketCheck(quotes).Run(ctxb(), testMint)
		require.NoError(t, err)
		assert.Equal(t, 85.0, res.Score)
		assert.NotEmpty(t, res.Issues)
	})
}

// ---------------------------------------------------------------------------
// battery assembly
// ---------------------------------------------------------------------------

func TestBuildAll(t *testing.T) {
	rpc := solana.NewStubRPCClient()
	quotes := jupiter.NewStubQuoteClient()

	all := BuildAll(Config{}, rpc, quotes)
	assert.Len(t, all, 8)

	some := BuildAll(Config{Disabled: []string{"metadata", "market"}}, rpc, quotes)
	assert.Len(t, some, 6)
	for _, c := range some {
		assert.NotContains(t, []string{"metadata", "market"}, c.Name())
	}
}
