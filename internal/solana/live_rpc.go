package solana

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Live RPC Client — real Solana JSON-RPC with request scheduling & retry
// ---------------------------------------------------------------------------

// LiveRPCClient connects to a real Solana RPC endpoint. Every call passes
// through the request scheduler: a token-bucket RPS limit, an in-flight
// concurrency semaphore, and a hard total-credit ceiling that fails fast
// once exhausted.
type LiveRPCClient struct {
	config     RPCConfig
	httpClient *http.Client

	// Rate limiter (token bucket) + concurrency semaphore.
	limiter       chan struct{}
	sem           chan struct{}
	limiterCtx    context.Context
	limiterCancel context.CancelFunc

	// Hard credit ceiling. creditsLeft < 0 means unlimited.
	creditsLeft atomic.Int64

	// Unique request ID generator.
	nextID atomic.Int64

	// Circuit breaker.
	consecutiveErrors atomic.Int64
	circuitOpen       atomic.Bool

	// Stats.
	requestCount  atomic.Int64
	errorCount    atomic.Int64
	latencySum    atomic.Int64 // cumulative microseconds
	lastRequestAt atomic.Int64
}

const (
	circuitBreakerThreshold = 10 // open after 10 consecutive errors
	circuitBreakerCooldown  = 30 * time.Second
)

// NewLiveRPCClient creates a live Solana RPC client.
func NewLiveRPCClient(config RPCConfig) *LiveRPCClient {
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 3
	}
	if config.RateLimitRPS == 0 {
		config.RateLimitRPS = 10
	}
	if config.MaxConcurrent == 0 {
		config.MaxConcurrent = 4
	}

	bucketSize := int(config.RateLimitRPS)
	if bucketSize < 1 {
		bucketSize = 1
	}
	limiter := make(chan struct{}, bucketSize)
	for i := 0; i < bucketSize; i++ {
		limiter <- struct{}{}
	}

	limiterCtx, limiterCancel := context.WithCancel(context.Background())

	client := &LiveRPCClient{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		limiter:       limiter,
		sem:           make(chan struct{}, config.MaxConcurrent),
		limiterCtx:    limiterCtx,
		limiterCancel: limiterCancel,
	}

	if config.RequestCredits > 0 {
		client.creditsLeft.Store(config.RequestCredits)
	} else {
		client.creditsLeft.Store(-1)
	}

	// Refill tokens at configured RPS.
	go func() {
		interval := time.Duration(float64(time.Second) / config.RateLimitRPS)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-limiterCtx.Done():
				return
			case <-ticker.C:
				select {
				case client.limiter <- struct{}{}:
				default: // bucket full
				}
			}
		}
	}()

	return client
}

// Close shuts down the RPC client.
func (c *LiveRPCClient) Close() {
	c.limiterCancel()
}

// rpcRequest is a JSON-RPC 2.0 request.
type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params,omitempty"`
}

// rpcResponse is a JSON-RPC 2.0 response.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// acquire passes a request through the scheduler: credits first (fail fast),
// then concurrency slot, then a rate token. Returns a release func.
func (c *LiveRPCClient) acquire(ctx context.Context) (func(), error) {
	for {
		left := c.creditsLeft.Load()
		if left == 0 {
			return nil, ErrCreditsExhausted
		}
		if left < 0 {
			break // unlimited
		}
		if c.creditsLeft.CompareAndSwap(left, left-1) {
			break
		}
	}

	select {
	case c.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case <-c.limiter:
	case <-ctx.Done():
		<-c.sem
		return nil, ctx.Err()
	}

	return func() { <-c.sem }, nil
}

// call makes a scheduled, retried JSON-RPC call.
func (c *LiveRPCClient) call(ctx context.Context, method string, params []any) (json.RawMessage, error) {
	if c.circuitOpen.Load() {
		return nil, fmt.Errorf("rpc: circuit breaker open for %s (too many consecutive errors)", method)
	}

	release, err := c.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	reqID := c.nextID.Add(1)

	req := rpcRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  method,
		Params:  params,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("rpc: marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * 500 * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		start := time.Now()

		httpReq, err := http.NewRequestWithContext(ctx, "POST", c.config.Endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("rpc: create request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			lastErr = fmt.Errorf("rpc: %s http error: %w", method, err)
			c.errorCount.Add(1)
			c.recordError()
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("rpc: %s read response: %w", method, err)
			c.errorCount.Add(1)
			c.recordError()
			continue
		}

		latency := time.Since(start)
		c.requestCount.Add(1)
		c.latencySum.Add(latency.Microseconds())
		c.lastRequestAt.Store(time.Now().UnixMilli())

		if resp.StatusCode == 429 {
			lastErr = fmt.Errorf("rpc: %s rate limited (429)", method)
			c.errorCount.Add(1)
			// Longer backoff on 429 - don't count as circuit-breaker error.
			select {
			case <-time.After(time.Duration(2<<uint(attempt)) * time.Second):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			continue
		}

		if resp.StatusCode != 200 {
			lastErr = fmt.Errorf("rpc: %s HTTP %d: %s", method, resp.StatusCode, string(respBody))
			c.errorCount.Add(1)
			c.recordError()
			continue
		}

		var rpcResp rpcResponse
		if err := json.Unmarshal(respBody, &rpcResp); err != nil {
			lastErr = fmt.Errorf("rpc: %s unmarshal response: %w", method, err)
			c.errorCount.Add(1)
			c.recordError()
			continue
		}

		if rpcResp.Error != nil {
			c.resetErrors()
			return nil, fmt.Errorf("rpc: %s error %d: %s", method, rpcResp.Error.Code, rpcResp.Error.Message)
		}

		c.resetErrors()
		return rpcResp.Result, nil
	}

	return nil, fmt.Errorf("rpc: %s failed after %d attempts: %w", method, c.config.MaxRetries+1, lastErr)
}

// recordError increments consecutive errors and opens circuit breaker if needed.
func (c *LiveRPCClient) recordError() {
	count := c.consecutiveErrors.Add(1)
	if count >= circuitBreakerThreshold {
		if c.circuitOpen.CompareAndSwap(false, true) {
			log.Error().Int64("errors", count).Msg("rpc: CIRCUIT BREAKER OPEN - too many consecutive errors")
			go func() {
				time.Sleep(circuitBreakerCooldown)
				c.circuitOpen.Store(false)
				c.consecutiveErrors.Store(0)
				log.Info().Msg("rpc: circuit breaker reset")
			}()
		}
	}
}

// resetErrors resets the consecutive error counter.
func (c *LiveRPCClient) resetErrors() {
	c.consecutiveErrors.Store(0)
}

// ---------------------------------------------------------------------------
// RPCClient interface implementation
// ---------------------------------------------------------------------------

// GetMintInfo fetches the parsed mint account via getAccountInfo.
func (c *LiveRPCClient) GetMintInfo(ctx context.Context, mint Pubkey) (*MintInfo, error) {
	result, err := c.call(ctx, "getAccountInfo", []any{
		string(mint),
		map[string]any{"encoding": "jsonParsed"},
	})
	if err != nil {
		return nil, err
	}

	var accountResp struct {
		Value *struct {
			Owner string `json:"owner"`
			Data  struct {
				Parsed struct {
					Info struct {
						Decimals        uint8  `json:"decimals"`
						Supply          string `json:"supply"`
						MintAuthority   string `json:"mintAuthority"`
						FreezeAuthority string `json:"freezeAuthority"`
					} `json:"info"`
				} `json:"parsed"`
			} `json:"data"`
		} `json:"value"`
	}

	if err := json.Unmarshal(result, &accountResp); err != nil {
		return nil, fmt.Errorf("rpc: parse mint info: %w", err)
	}

	if accountResp.Value == nil {
		return nil, fmt.Errorf("rpc: mint %s: %w", mint, ErrNotFound)
	}

	info := accountResp.Value.Data.Parsed.Info
	supply, _ := decimal.NewFromString(info.Supply)

	return &MintInfo{
		Mint:            mint,
		OwnerProgram:    Pubkey(accountResp.Value.Owner),
		Decimals:        info.Decimals,
		Supply:          supply,
		MintAuthority:   Pubkey(info.MintAuthority),
		FreezeAuthority: Pubkey(info.FreezeAuthority),
	}, nil
}

// GetTokenSupply fetches the total supply for a mint.
func (c *LiveRPCClient) GetTokenSupply(ctx context.Context, mint Pubkey) (*TokenSupply, error) {
	result, err := c.call(ctx, "getTokenSupply", []any{string(mint)})
	if err != nil {
		return nil, err
	}

	var resp struct {
		Value struct {
			Amount         string `json:"amount"`
			Decimals       uint8  `json:"decimals"`
			UIAmountString string `json:"uiAmountString"`
		} `json:"value"`
	}
	if err := json.Unmarshal(result, &resp); err != nil {
		return nil, fmt.Errorf("rpc: parse supply: %w", err)
	}

	amount, _ := decimal.NewFromString(resp.Value.Amount)
	return &TokenSupply{
		Amount:         amount,
		Decimals:       resp.Value.Decimals,
		UIAmountString: resp.Value.UIAmountString,
	}, nil
}

// GetLargestHolders returns the largest token accounts for a mint.
func (c *LiveRPCClient) GetLargestHolders(ctx context.Context, mint Pubkey, limit int) ([]HolderInfo, error) {
	result, err := c.call(ctx, "getTokenLargestAccounts", []any{string(mint)})
	if err != nil {
		return nil, err
	}

	var resp struct {
		Value []struct {
			Address  string `json:"address"`
			Amount   string `json:"amount"`
			Decimals uint8  `json:"decimals"`
		} `json:"value"`
	}

	if err := json.Unmarshal(result, &resp); err != nil {
		return nil, fmt.Errorf("rpc: parse holders: %w", err)
	}

	holders := make([]HolderInfo, 0, limit)
	for i, h := range resp.Value {
		if i >= limit {
			break
		}
		amount, _ := decimal.NewFromString(h.Amount)
		holders = append(holders, HolderInfo{
			Address:  Pubkey(h.Address),
			Amount:   amount,
			Decimals: h.Decimals,
		})
	}

	return holders, nil
}

// GetAccountInfo fetches a raw account.
func (c *LiveRPCClient) GetAccountInfo(ctx context.Context, addr Pubkey) (*AccountInfo, error) {
	result, err := c.call(ctx, "getAccountInfo", []any{
		string(addr),
		map[string]any{"encoding": "base64"},
	})
	if err != nil {
		return nil, err
	}

	var accountResp struct {
		Value *struct {
			Data     []string `json:"data"` // [base64_data, "base64"]
			Owner    string   `json:"owner"`
			Lamports uint64   `json:"lamports"`
		} `json:"value"`
	}

	if err := json.Unmarshal(result, &accountResp); err != nil {
		return nil, fmt.Errorf("rpc: parse account: %w", err)
	}

	if accountResp.Value == nil {
		return nil, fmt.Errorf("rpc: account %s: %w", addr, ErrNotFound)
	}

	return &AccountInfo{
		Address:  addr,
		Owner:    Pubkey(accountResp.Value.Owner),
		Lamports: accountResp.Value.Lamports,
	}, nil
}

// GetTokenMetadata is best-effort: Metaplex metadata accounts are a binary
// layout this client does not decode; callers treat ErrNotFound as
// "no metadata".
func (c *LiveRPCClient) GetTokenMetadata(ctx context.Context, mint Pubkey) (*TokenMetadata, error) {
	return nil, fmt.Errorf("rpc: metadata %s: %w", mint, ErrNotFound)
}

// GetTransaction fetches a parsed transaction by signature.
func (c *LiveRPCClient) GetTransaction(ctx context.Context, sig Signature) (*TransactionInfo, error) {
	result, err := c.call(ctx, "getTransaction", []any{
		string(sig),
		map[string]any{"encoding": "json", "maxSupportedTransactionVersion": 0},
	})
	if err != nil {
		return nil, err
	}

	var resp *struct {
		Slot      uint64 `json:"slot"`
		BlockTime int64  `json:"blockTime"`
		Meta      *struct {
			Err         any      `json:"err"`
			LogMessages []string `json:"logMessages"`
		} `json:"meta"`
	}
	if err := json.Unmarshal(result, &resp); err != nil {
		return nil, fmt.Errorf("rpc: parse transaction: %w", err)
	}
	if resp == nil {
		return nil, fmt.Errorf("rpc: tx %s: %w", sig, ErrNotFound)
	}

	tx := &TransactionInfo{
		Signature: sig,
		Slot:      resp.Slot,
		BlockTime: time.Unix(resp.BlockTime, 0),
	}
	if resp.Meta != nil {
		tx.Logs = resp.Meta.LogMessages
		tx.Failed = resp.Meta.Err != nil
	}
	return tx, nil
}

// Health checks the RPC endpoint health.
func (c *LiveRPCClient) Health(ctx context.Context) error {
	healthCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := c.call(healthCtx, "getHealth", nil)
	return err
}

// RPCStats returns RPC client statistics.
type RPCStats struct {
	RequestCount  int64 `json:"request_count"`
	ErrorCount    int64 `json:"error_count"`
	AvgLatencyUs  int64 `json:"avg_latency_us"`
	LastRequestAt int64 `json:"last_request_at"`
	CircuitOpen   bool  `json:"circuit_open"`
	ConsecErrors  int64 `json:"consecutive_errors"`
	CreditsLeft   int64 `json:"credits_left"` // -1 = unlimited
}

func (c *LiveRPCClient) Stats() RPCStats {
	reqCount := c.requestCount.Load()
	avgLatency := int64(0)
	if reqCount > 0 {
		avgLatency = c.latencySum.Load() / reqCount
	}
	return RPCStats{
		RequestCount:  reqCount,
		ErrorCount:    c.errorCount.Load(),
		AvgLatencyUs:  avgLatency,
		LastRequestAt: c.lastRequestAt.Load(),
		CircuitOpen:   c.circuitOpen.Load(),
		ConsecErrors:  c.consecutiveErrors.Load(),
		CreditsLeft:   c.creditsLeft.Load(),
	}
}
