package solana

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ---------------------------------------------------------------------------
// RPC Client Interface
// ---------------------------------------------------------------------------

// ErrCreditsExhausted is returned once the request scheduler's hard credit
// ceiling is spent. Callers must not retry.
var ErrCreditsExhausted = errors.New("rpc: request credits exhausted")

// ErrNotFound is returned when an account, mint, or transaction does not
// exist on chain.
var ErrNotFound = errors.New("rpc: not found")

// RPCClient is the interface for Solana RPC interactions.
// Implementations: LiveRPCClient (real Solana), StubRPCClient (testing).
type RPCClient interface {
	// GetMintInfo fetches the parsed mint account for a token.
	GetMintInfo(ctx context.Context, mint Pubkey) (*MintInfo, error)

	// GetTokenSupply returns the total supply for a mint.
	GetTokenSupply(ctx context.Context, mint Pubkey) (*TokenSupply, error)

	// GetLargestHolders returns up to limit largest token accounts of a mint.
	GetLargestHolders(ctx context.Context, mint Pubkey, limit int) ([]HolderInfo, error)

	// GetAccountInfo fetches a raw account. Returns ErrNotFound for missing accounts.
	GetAccountInfo(ctx context.Context, addr Pubkey) (*AccountInfo, error)

	// GetTokenMetadata fetches Metaplex metadata for a mint, if any.
	GetTokenMetadata(ctx context.Context, mint Pubkey) (*TokenMetadata, error)

	// GetTransaction fetches a parsed transaction by signature.
	GetTransaction(ctx context.Context, sig Signature) (*TransactionInfo, error)

	// Health returns the RPC endpoint health.
	Health(ctx context.Context) error
}

// RPCConfig configures the Solana RPC client.
type RPCConfig struct {
	Endpoint       string        `yaml:"endpoint"`
	WSEndpoint     string        `yaml:"ws_endpoint"`
	Timeout        time.Duration `yaml:"timeout"`
	MaxRetries     int           `yaml:"max_retries"`
	RateLimitRPS   float64       `yaml:"rate_limit_rps"`  // requests per second
	MaxConcurrent  int           `yaml:"max_concurrent"`  // in-flight request ceiling
	RequestCredits int64         `yaml:"request_credits"` // hard total budget, 0 = unlimited
}

// DefaultRPCConfig returns development defaults.
func DefaultRPCConfig() RPCConfig {
	return RPCConfig{
		Endpoint:      "https://api.mainnet-beta.solana.com",
		WSEndpoint:    "wss://api.mainnet-beta.solana.com",
		Timeout:       10 * time.Second,
		MaxRetries:    3,
		RateLimitRPS:  10,
		MaxConcurrent: 4,
	}
}

// ---------------------------------------------------------------------------
// Stub RPC Client (for testing and development)
// ---------------------------------------------------------------------------

// StubRPCClient is a mock RPC client for testing.
type StubRPCClient struct {
	mu       sync.RWMutex
	mints    map[Pubkey]*MintInfo
	supplies map[Pubkey]*TokenSupply
	holders  map[Pubkey][]HolderInfo
	accounts map[Pubkey]*AccountInfo
	metadata map[Pubkey]*TokenMetadata
	txs      map[Signature]*TransactionInfo
	failNext bool
	delay    time.Duration
}

// NewStubRPCClient creates a stub RPC client for testing.
func NewStubRPCClient() *StubRPCClient {
	return &StubRPCClient{
		mints:    make(map[Pubkey]*MintInfo),
		supplies: make(map[Pubkey]*TokenSupply),
		holders:  make(map[Pubkey][]HolderInfo),
		accounts: make(map[Pubkey]*AccountInfo),
		metadata: make(map[Pubkey]*TokenMetadata),
		txs:      make(map[Signature]*TransactionInfo),
	}
}

// AddMint registers a mint account for the stub to return.
func (s *StubRPCClient) AddMint(info MintInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mints[info.Mint] = &info
	if _, ok := s.supplies[info.Mint]; !ok {
		s.supplies[info.Mint] = &TokenSupply{
			Amount:   info.Supply,
			Decimals: info.Decimals,
		}
	}
}

// AddSupply registers a supply response for a mint.
func (s *StubRPCClient) AddSupply(mint Pubkey, supply TokenSupply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.supplies[mint] = &supply
}

// AddHolders registers largest holders for a mint.
func (s *StubRPCClient) AddHolders(mint Pubkey, holders []HolderInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.holders[mint] = holders
}

// AddAccount registers a raw account for the stub to return.
func (s *StubRPCClient) AddAccount(info AccountInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[info.Address] = &info
}

// AddMetadata registers token metadata for a mint.
func (s *StubRPCClient) AddMetadata(md TokenMetadata) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metadata[md.Mint] = &md
}

// AddTransaction registers a transaction for the stub to return.
func (s *StubRPCClient) AddTransaction(tx TransactionInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txs[tx.Signature] = &tx
}

// SetFailNext makes the next call fail.
func (s *StubRPCClient) SetFailNext() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = true
}

// SetDelay makes every call sleep (or honor ctx cancellation) before answering.
func (s *StubRPCClient) SetDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

func (s *StubRPCClient) gate(ctx context.Context) error {
	s.mu.Lock()
	fail := s.failNext
	s.failNext = false
	delay := s.delay
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if fail {
		return fmt.Errorf("stub: simulated RPC failure")
	}
	return nil
}

// --- Interface implementation ---

func (s *StubRPCClient) GetMintInfo(ctx context.Context, mint Pubkey) (*MintInfo, error) {
	if err := s.gate(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if info, ok := s.mints[mint]; ok {
		return info, nil
	}
	return nil, fmt.Errorf("stub: mint %s: %w", mint, ErrNotFound)
}

func (s *StubRPCClient) GetTokenSupply(ctx context.Context, mint Pubkey) (*TokenSupply, error) {
	if err := s.gate(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sup, ok := s.supplies[mint]; ok {
		return sup, nil
	}
	return nil, fmt.Errorf("stub: supply %s: %w", mint, ErrNotFound)
}

func (s *StubRPCClient) GetLargestHolders(ctx context.Context, mint Pubkey, limit int) ([]HolderInfo, error) {
	if err := s.gate(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	holders := s.holders[mint]
	if len(holders) > limit {
		holders = holders[:limit]
	}
	out := make([]HolderInfo, len(holders))
	copy(out, holders)
	return out, nil
}

func (s *StubRPCClient) GetAccountInfo(ctx context.Context, addr Pubkey) (*AccountInfo, error) {
	if err := s.gate(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if info, ok := s.accounts[addr]; ok {
		return info, nil
	}
	return nil, fmt.Errorf("stub: account %s: %w", addr, ErrNotFound)
}

func (s *StubRPCClient) GetTokenMetadata(ctx context.Context, mint Pubkey) (*TokenMetadata, error) {
	if err := s.gate(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if md, ok := s.metadata[mint]; ok {
		return md, nil
	}
	return nil, fmt.Errorf("stub: metadata %s: %w", mint, ErrNotFound)
}

func (s *StubRPCClient) GetTransaction(ctx context.Context, sig Signature) (*TransactionInfo, error) {
	if err := s.gate(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if tx, ok := s.txs[sig]; ok {
		return tx, nil
	}
	return nil, fmt.Errorf("stub: tx %s: %w", sig, ErrNotFound)
}

func (s *StubRPCClient) Health(ctx context.Context) error {
	return s.gate(ctx)
}
