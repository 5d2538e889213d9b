package jupiter

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/mintsentry/mintsentry/internal/solana"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMint = solana.Pubkey("M1nt11111111111111111111111111111111111111")

func TestParseQuote(t *testing.T) {
	wire := fmt.Sprintf(`{
		"inputMint": %q,
		"outputMint": %q,
		"inAmount": "100000000",
		"outAmount": "52340000",
		"priceImpactPct": "1.25",
		"routePlan": [{"swapInfo": {"label": "Raydium"}}],
		"contextSlot": 123456
	}`, solana.SOLMint, testMint)

	var raw quoteResponse
	require.NoError(t, json.Unmarshal([]byte(wire), &raw))

	q, err := parseQuote(raw)
	require.NoError(t, err)
	assert.Equal(t, solana.SOLMint, q.InputMint)
	assert.Equal(t, "100000000", q.InAmount.String())
	assert.Equal(t, "52340000", q.OutAmount.String())
	assert.Equal(t, "1.25", q.PriceImpactPct.String())
	assert.Equal(t, []string{"Raydium"}, q.RouteLabels)
	assert.Equal(t, uint64(123456), q.ContextSlot)
}

func TestParseQuote_BadAmounts(t *testing.T) {
	_, err := parseQuote(quoteResponse{InAmount: "not-a-number", OutAmount: "1"})
	require.Error(t, err)
}

func TestParseQuote_MissingImpactDefaultsZero(t *testing.T) {
	q, err := parseQuote(quoteResponse{InAmount: "1", OutAmount: "1"})
	require.NoError(t, err)
	assert.True(t, q.PriceImpactPct.IsZero())
}

func TestIsNoRouteBody(t *testing.T) {
	assert.True(t, isNoRouteBody([]byte(`{"errorCode":"COULD_NOT_FIND_ANY_ROUTE"}`)))
	assert.True(t, isNoRouteBody([]byte(`{"errorCode":"NO_ROUTES_FOUND"}`)))
	assert.True(t, isNoRouteBody([]byte(`{"errorCode":"TOKEN_NOT_TRADABLE"}`)))
	assert.False(t, isNoRouteBody([]byte(`{"error":"internal server error"}`)))
}

func TestStubQuoteClient_RoundTrip(t *testing.T) {
	stub := NewStubQuoteClient()
	stub.AddQuote(Quote{
		InputMint:  solana.SOLMint,
		OutputMint: testMint,
		InAmount:   decimal.NewFromInt(100),
		OutAmount:  decimal.NewFromInt(42),
	})
	stub.SetPrice(testMint, decimal.NewFromFloat(0.01))

	q, err := stub.GetQuote(context.Background(), solana.SOLMint, testMint, 100, 50)
	require.NoError(t, err)
	assert.Equal(t, "42", q.OutAmount.String())

	p, err := stub.GetPrice(context.Background(), testMint)
	require.NoError(t, err)
	assert.Equal(t, "0.01", p.String())
}

func TestStubQuoteClient_UnknownPairIsNoRoute(t *testing.T) {
	stub := NewStubQuoteClient()
	_, err := stub.GetQuote(context.Background(), testMint, solana.SOLMint, 100, 50)
	assert.ErrorIs(t, err, ErrNoRoute)
}

func TestStubQuoteClient_FailNext(t *testing.T) {
	stub := NewStubQuoteClient()
	stub.AddQuote(Quote{InputMint: solana.SOLMint, OutputMint: testMint, OutAmount: decimal.NewFromInt(1)})
	stub.SetFailNext()

	_, err := stub.GetQuote(context.Background(), solana.SOLMint, testMint, 100, 50)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoRoute)

	_, err = stub.GetQuote(context.Background(), solana.SOLMint, testMint, 100, 50)
	require.NoError(t, err)
}