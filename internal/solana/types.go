package solana

import (
	"fmt"
	"time"

	"github.com/mr-tron/base58"
	"github.com/shopspring/decimal"
)

// Pubkey is a Solana public key (base58 string).
type Pubkey string

// Signature is a Solana transaction signature.
type Signature string

// ValidateMint checks that an address is a plausible Solana mint: base58
// alphabet, decoding to exactly 32 bytes.
func ValidateMint(addr Pubkey) error {
	if l := len(addr); l < 32 || l > 44 {
		return fmt.Errorf("mint %q: length %d outside 32-44", addr, l)
	}
	raw, err := base58.Decode(string(addr))
	if err != nil {
		return fmt.Errorf("mint %q: not base58: %w", addr, err)
	}
	if len(raw) != 32 {
		return fmt.Errorf("mint %q: decodes to %d bytes, want 32", addr, len(raw))
	}
	return nil
}

// ---------------------------------------------------------------------------
// Account & token types
// ---------------------------------------------------------------------------

// MintInfo describes an SPL token mint account.
type MintInfo struct {
	Mint            Pubkey          `json:"mint"`
	OwnerProgram    Pubkey          `json:"owner_program"`
	Decimals        uint8           `json:"decimals"`
	Supply          decimal.Decimal `json:"supply"`           // raw units
	MintAuthority   Pubkey          `json:"mint_authority"`   // empty = renounced
	FreezeAuthority Pubkey          `json:"freeze_authority"` // empty = renounced
}

// IsMintRenounced returns true if the mint authority is empty.
func (m MintInfo) IsMintRenounced() bool {
	return m.MintAuthority == ""
}

// IsFreezeRenounced returns true if the freeze authority is empty.
func (m MintInfo) IsFreezeRenounced() bool {
	return m.FreezeAuthority == ""
}

// TokenSupply is the getTokenSupply response.
type TokenSupply struct {
	Amount         decimal.Decimal `json:"amount"` // raw units
	Decimals       uint8           `json:"decimals"`
	UIAmountString string          `json:"ui_amount_string"`
}

// UIAmount converts the raw amount to a decimal-adjusted amount.
func (s TokenSupply) UIAmount() decimal.Decimal {
	return s.Amount.Shift(-int32(s.Decimals))
}

// HolderInfo is one entry from getTokenLargestAccounts.
type HolderInfo struct {
	Address  Pubkey          `json:"address"`
	Amount   decimal.Decimal `json:"amount"` // raw units
	Decimals uint8           `json:"decimals"`
}

// AccountInfo is a generic getAccountInfo result.
type AccountInfo struct {
	Address  Pubkey `json:"address"`
	Owner    Pubkey `json:"owner"`
	Lamports uint64 `json:"lamports"`
	Data     []byte `json:"-"`

	// LPMint is set when the account is a recognized DEX pool layout and
	// the pool's LP mint could be resolved. Account layout decoding lives
	// with the RPC collaborator, not here.
	LPMint Pubkey `json:"lp_mint,omitempty"`
}

// TokenMetadata is the Metaplex-style metadata for a mint.
type TokenMetadata struct {
	Mint            Pubkey `json:"mint"`
	Name            string `json:"name"`
	Symbol          string `json:"symbol"`
	URI             string `json:"uri"`
	VerifiedCreator bool   `json:"verified_creator"`
}

// TransactionInfo is a minimal parsed transaction.
type TransactionInfo struct {
	Signature Signature `json:"signature"`
	Slot      uint64    `json:"slot"`
	BlockTime time.Time `json:"block_time"`
	Logs      []string  `json:"logs"`
	Failed    bool      `json:"failed"`
}

// ---------------------------------------------------------------------------
// Well-known program IDs and addresses
// ---------------------------------------------------------------------------

const (
	// TokenProgramID is the standard SPL token program.
	TokenProgramID Pubkey = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
	// Token2022ProgramID is the SPL Token-2022 program.
	Token2022ProgramID Pubkey = "TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb"

	SOLMint  Pubkey = "So11111111111111111111111111111111111111112"
	USDCMint Pubkey = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
)

// StandardTokenPrograms is the allow-list of mint owner programs.
var StandardTokenPrograms = map[Pubkey]bool{
	TokenProgramID:     true,
	Token2022ProgramID: true,
}

// DEXPrograms are known AMM programs on mainnet. Largest-holder accounts
// owned by one of these are treated as liquidity pool vaults.
var DEXPrograms = map[Pubkey]string{
	"675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8": "raydium",
	"6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P":  "pumpfun",
	"whirLbMiicVdio4qvUfM5KAg6Ct8VwpYzGff3uctyCc":  "orca",
	"LBUZKhRxPF3XUpBCjp4YzTKgLccjZhTSDM9YuVaPwxo":  "meteora",
}

// BurnAddresses hold LP tokens that can never move again.
var BurnAddresses = map[Pubkey]bool{
	"1nc1nerator11111111111111111111111111111111": true,
	"11111111111111111111111111111111":            true,
}

// LockerPrograms are known LP time-lock contracts.
var LockerPrograms = map[Pubkey]bool{
	"sTRMdjCrzAGzWWSqnp6AebNB224Ub2BDx1do3eCFSzc":  true, // Streamflow
	"CChTq6PthWU82YZkbveA3WDf7s97BWhBK4Vx9bmsT743": true, // Team Finance
}
