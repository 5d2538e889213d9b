package jupiter

import (
	"context"
	"errors"
	"sync"

	"github.com/mintsentry/mintsentry/internal/solana"
	"github.com/shopspring/decimal"
)

// StubQuoteClient is an in-memory QuoteClient for tests and dry runs.
// Quotes are keyed by direction; unknown pairs return ErrNoRoute, which is
// also what a honeypot's sell leg looks like.
type StubQuoteClient struct {
	mu       sync.Mutex
	quotes   map[string]*Quote
	quoteErr map[string]error
	prices   map[solana.Pubkey]decimal.Decimal
	failNext bool
}

// NewStubQuoteClient creates an empty stub.
func NewStubQuoteClient() *StubQuoteClient {
	return &StubQuoteClient{
		quotes:   make(map[string]*Quote),
		quoteErr: make(map[string]error),
		prices:   make(map[solana.Pubkey]decimal.Decimal),
	}
}

func pairKey(in, out solana.Pubkey) string {
	return string(in) + "|" + string(out)
}

// AddQuote registers a quote for one direction of a pair.
func (s *StubQuoteClient) AddQuote(q Quote) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := q
	s.quotes[pairKey(q.InputMint, q.OutputMint)] = &cp
}

// SetQuoteError makes one direction fail with err.
func (s *StubQuoteClient) SetQuoteError(in, out solana.Pubkey, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quoteErr[pairKey(in, out)] = err
}

// SetPrice registers a USDC price.
func (s *StubQuoteClient) SetPrice(mint solana.Pubkey, price decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[mint] = price
}

// SetFailNext makes the next call fail with a transport error.
func (s *StubQuoteClient) SetFailNext() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = true
}

func (s *StubQuoteClient) gate() error {
	if s.failNext {
		s.failNext = false
		return errors.New("stub quote client: simulated failure")
	}
	return nil
}

// GetQuote returns the registered quote for the direction, scaled to the
// requested amount.
func (s *StubQuoteClient) GetQuote(ctx context.Context, inputMint, outputMint solana.Pubkey, amount uint64, slippageBps int) (*Quote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.gate(); err != nil {
		return nil, err
	}
	key := pairKey(inputMint, outputMint)
	if err, ok := s.quoteErr[key]; ok {
		return nil, err
	}
	q, ok := s.quotes[key]
	if !ok {
		return nil, ErrNoRoute
	}
	cp := *q
	return &cp, nil
}

// GetPrice returns the registered price, or an error when absent.
func (s *StubQuoteClient) GetPrice(ctx context.Context, mint solana.Pubkey) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.gate(); err != nil {
		return decimal.Zero, err
	}
	price, ok := s.prices[mint]
	if !ok {
		return decimal.Zero, errors.New("stub quote client: no price for " + string(mint))
	}
	return price, nil
}
