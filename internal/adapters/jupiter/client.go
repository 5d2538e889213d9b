package jupiter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/mintsentry/mintsentry/internal/solana"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Jupiter V6 API Client — quote + price endpoints
// https://station.jup.ag/docs/apis/swap-api
// ---------------------------------------------------------------------------

const (
	jupiterQuoteURL = "https://quote-api.jup.ag/v6/quote"
	jupiterPriceURL = "https://price.jup.ag/v6/price"

	maxRetries   = 2
	retryBackoff = 500 * time.Millisecond
)

// ErrNoRoute means the aggregator found no executable route for the pair.
// For a fresh token this is the signal the checks care about: a buy route
// without a sell route is the classic honeypot shape.
var ErrNoRoute = errors.New("jupiter: no route for swap")

// Quote is a parsed quote for one direction of a swap.
type Quote struct {
	InputMint      solana.Pubkey   `json:"input_mint"`
	OutputMint     solana.Pubkey   `json:"output_mint"`
	InAmount       decimal.Decimal `json:"in_amount"`
	OutAmount      decimal.Decimal `json:"out_amount"`
	PriceImpactPct decimal.Decimal `json:"price_impact_pct"`
	RouteLabels    []string        `json:"route_labels,omitempty"`
	ContextSlot    uint64          `json:"context_slot"`
}

// QuoteClient is the surface the checks consume. Amounts are in the token's
// smallest unit.
type QuoteClient interface {
	GetQuote(ctx context.Context, inputMint, outputMint solana.Pubkey, amount uint64, slippageBps int) (*Quote, error)
	GetPrice(ctx context.Context, mint solana.Pubkey) (decimal.Decimal, error)
}

// APIClient is the real Jupiter V6 client.
type APIClient struct {
	httpClient *http.Client

	quoteCount   atomic.Int64
	priceCount   atomic.Int64
	errorCount   atomic.Int64
	avgLatencyMs atomic.Int64

	// Circuit breaker.
	consecutiveErrors atomic.Int64
	circuitOpen       atomic.Bool
}

// NewAPIClient creates a new Jupiter API client.
func NewAPIClient() *APIClient {
	return &APIClient{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// quoteResponse mirrors the /quote wire format.
type quoteResponse struct {
	InputMint      string `json:"inputMint"`
	OutputMint     string `json:"outputMint"`
	InAmount       string `json:"inAmount"`
	OutAmount      string `json:"outAmount"`
	PriceImpactPct string `json:"priceImpactPct"`
	RoutePlan      []struct {
		SwapInfo struct {
			Label string `json:"label"`
		} `json:"swapInfo"`
	} `json:"routePlan"`
	ContextSlot uint64 `json:"contextSlot"`
}

// GetQuote fetches the best route for the pair. A 400 naming a routing
// failure maps to ErrNoRoute; transport failures are retried with backoff.
func (c *APIClient) GetQuote(ctx context.Context, inputMint, outputMint solana.Pubkey, amount uint64, slippageBps int) (*Quote, error) {
	if c.circuitOpen.Load() {
		return nil, fmt.Errorf("jupiter: circuit breaker open")
	}

	start := time.Now()

	queryURL, err := url.Parse(jupiterQuoteURL)
	if err != nil {
		return nil, fmt.Errorf("jupiter: parse URL: %w", err)
	}
	q := queryURL.Query()
	q.Set("inputMint", string(inputMint))
	q.Set("outputMint", string(outputMint))
	q.Set("amount", fmt.Sprintf("%d", amount))
	q.Set("slippageBps", fmt.Sprintf("%d", slippageBps))
	q.Set("onlyDirectRoutes", "false")
	queryURL.RawQuery = q.Encode()

	var raw quoteResponse
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(retryBackoff * time.Duration(1<<uint(attempt-1))):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, "GET", queryURL.String(), nil)
		if err != nil {
			return nil, fmt.Errorf("jupiter: create quote request: %w", err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("jupiter: quote HTTP error: %w", err)
			c.errorCount.Add(1)
			c.recordError()
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("jupiter: read quote response: %w", err)
			c.errorCount.Add(1)
			c.recordError()
			continue
		}

		if resp.StatusCode == 429 {
			lastErr = fmt.Errorf("jupiter: rate limited (429)")
			c.errorCount.Add(1)
			continue
		}

		if resp.StatusCode == 400 && isNoRouteBody(body) {
			// Not an outage: the pair genuinely has no route.
			c.resetErrors()
			return nil, ErrNoRoute
		}

		if resp.StatusCode != 200 {
			lastErr = fmt.Errorf("jupiter: quote HTTP %d: %s (mint=%s)", resp.StatusCode, string(body), outputMint)
			c.errorCount.Add(1)
			c.recordError()
			continue
		}

		if err := json.Unmarshal(body, &raw); err != nil {
			return nil, fmt.Errorf("jupiter: parse quote: %w", err)
		}

		c.resetErrors()
		break
	}

	if lastErr != nil && raw.InAmount == "" {
		return nil, fmt.Errorf("jupiter: quote failed after %d attempts: %w", maxRetries+1, lastErr)
	}

	quote, err := parseQuote(raw)
	if err != nil {
		return nil, err
	}

	latency := time.Since(start).Milliseconds()
	c.quoteCount.Add(1)
	c.avgLatencyMs.Store(latency)

	log.Debug().
		Str("in", shortMint(inputMint)).
		Str("out", shortMint(outputMint)).
		Str("in_amount", quote.InAmount.String()).
		Str("out_amount", quote.OutAmount.String()).
		Str("price_impact", quote.PriceImpactPct.String()).
		Int64("latency_ms", latency).
		Msg("jupiter: quote received")

	return quote, nil
}

func parseQuote(raw quoteResponse) (*Quote, error) {
	inAmount, err := decimal.NewFromString(raw.InAmount)
	if err != nil {
		return nil, fmt.Errorf("jupiter: bad inAmount %q: %w", raw.InAmount, err)
	}
	outAmount, err := decimal.NewFromString(raw.OutAmount)
	if err != nil {
		return nil, fmt.Errorf("jupiter: bad outAmount %q: %w", raw.OutAmount, err)
	}
	impact := decimal.Zero
	if raw.PriceImpactPct != "" {
		if impact, err = decimal.NewFromString(raw.PriceImpactPct); err != nil {
			impact = decimal.Zero
		}
	}

	labels := make([]string, 0, len(raw.RoutePlan))
	for _, hop := range raw.RoutePlan {
		labels = append(labels, hop.SwapInfo.Label)
	}

	return &Quote{
		InputMint:      solana.Pubkey(raw.InputMint),
		OutputMint:     solana.Pubkey(raw.OutputMint),
		InAmount:       inAmount,
		OutAmount:      outAmount,
		PriceImpactPct: impact,
		RouteLabels:    labels,
		ContextSlot:    raw.ContextSlot,
	}, nil
}

// isNoRouteBody matches Jupiter's routing-failure error codes.
func isNoRouteBody(body []byte) bool {
	s := string(body)
	return strings.Contains(s, "COULD_NOT_FIND_ANY_ROUTE") ||
		strings.Contains(s, "NO_ROUTES_FOUND") ||
		strings.Contains(s, "TOKEN_NOT_TRADABLE")
}

// ---------------------------------------------------------------------------
// Price API
// ---------------------------------------------------------------------------

type priceResponse struct {
	Data map[string]struct {
		ID    string  `json:"id"`
		Price float64 `json:"price"`
	} `json:"data"`
}

// GetPrice fetches the current USDC price for a token.
func (c *APIClient) GetPrice(ctx context.Context, mint solana.Pubkey) (decimal.Decimal, error) {
	queryURL, err := url.Parse(jupiterPriceURL)
	if err != nil {
		return decimal.Zero, fmt.Errorf("jupiter: parse URL: %w", err)
	}
	q := queryURL.Query()
	q.Set("ids", string(mint))
	q.Set("vsToken", string(solana.USDCMint))
	queryURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", queryURL.String(), nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("jupiter: create price request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("jupiter: price HTTP error: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return decimal.Zero, fmt.Errorf("jupiter: read price response: %w", err)
	}

	if resp.StatusCode != 200 {
		return decimal.Zero, fmt.Errorf("jupiter: price HTTP %d", resp.StatusCode)
	}

	var pr priceResponse
	if err := json.Unmarshal(body, &pr); err != nil {
		return decimal.Zero, fmt.Errorf("jupiter: parse price: %w", err)
	}

	data, ok := pr.Data[string(mint)]
	if !ok {
		return decimal.Zero, fmt.Errorf("jupiter: price not found for %s", mint)
	}

	price := decimal.NewFromFloat(data.Price)
	if !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("jupiter: zero/negative price for %s", mint)
	}

	c.priceCount.Add(1)
	return price, nil
}

// recordError increments consecutive errors and opens the circuit breaker.
func (c *APIClient) recordError() {
	count := c.consecutiveErrors.Add(1)
	if count >= 5 {
		if c.circuitOpen.CompareAndSwap(false, true) {
			log.Error().Int64("errors", count).Msg("jupiter: CIRCUIT BREAKER OPEN")
			go func() {
				time.Sleep(30 * time.Second)
				c.circuitOpen.Store(false)
				c.consecutiveErrors.Store(0)
				log.Info().Msg("jupiter: circuit breaker reset")
			}()
		}
	}
}

func (c *APIClient) resetErrors() {
	c.consecutiveErrors.Store(0)
}

func shortMint(m solana.Pubkey) string {
	s := string(m)
	if len(s) > 8 {
		return s[:8]
	}
	return s
}

// APIStats returns Jupiter client stats.
type APIStats struct {
	QuoteCount   int64 `json:"quote_count"`
	PriceCount   int64 `json:"price_count"`
	ErrorCount   int64 `json:"error_count"`
	AvgLatencyMs int64 `json:"avg_latency_ms"`
	CircuitOpen  bool  `json:"circuit_open"`
}

func (c *APIClient) APIStats() APIStats {
	return APIStats{
		QuoteCount:   c.quoteCount.Load(),
		PriceCount:   c.priceCount.Load(),
		ErrorCount:   c.errorCount.Load(),
		AvgLatencyMs: c.avgLatencyMs.Load(),
		CircuitOpen:  c.circuitOpen.Load(),
	}
}
