package alpaca

import (
	"context"
	"errors"
	"testing"

	"crypto_bot/internal/market"
	"crypto_bot/internal/models"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/shopspring/decimal"
)

type stubTrades struct {
	prices map[string]float64
	asked  []string
}

func (s *stubTrades) GetLatestCryptoTrade(symbol string, req marketdata.GetLatestCryptoTradeRequest) (*marketdata.CryptoTrade, error) {
	s.asked = append(s.asked, symbol)
	if p, ok := s.prices[symbol]; ok {
		return &marketdata.CryptoTrade{Price: p}, nil
	}
	return nil, errors.New("symbol not found")
}

// MockSource is the fallback MarketDataSource.
type MockSource struct {
	market.MarketDataSource
	prices map[string]decimal.Decimal
	asked  []string
	err    error
}

func (m *MockSource) GetPrice(ctx context.Context, ids []string, quote string) ([]models.PriceQuote, error) {
	m.asked = append(m.asked, ids...)
	if m.err != nil {
		return nil, m.err
	}
	var out []models.PriceQuote
	for _, id := range ids {
		if p, ok := m.prices[id]; ok {
			out = append(out, models.PriceQuote{ID: id, Prices: map[string]decimal.Decimal{quote: p}})
		}
	}
	return out, nil
}

func TestGetPrice_AlpacaFirstThenFallback(t *testing.T) {
	trades := &stubTrades{prices: map[string]float64{"BTC/USD": 64000.5}}
	fallback := &MockSource{prices: map[string]decimal.Decimal{"pepe": decimal.RequireFromString("0.0000012")}}

	p := &Provider{
		MarketDataSource: fallback,
		mdClient:         trades,
		pairs:            map[string]string{"bitcoin": "BTC/USD", "pepe": "PEPE/USD"},
	}

	quotes, err := p.GetPrice(context.Background(), []string{"pepe", "bitcoin"}, "usd")
	if err != nil {
		t.Fatalf("GetPrice failed: %v", err)
	}
	if len(quotes) != 2 {
		t.Fatalf("Expected 2 quotes, got %d", len(quotes))
	}
	if quotes[0].ID != "bitcoin" || !quotes[0].Prices["usd"].Equal(decimal.NewFromFloat(64000.5)) {
		t.Errorf("Unexpected bitcoin quote %+v", quotes[0])
	}
	if quotes[1].ID != "pepe" || quotes[1].Prices["usd"].String() != "0.0000012" {
		t.Errorf("Unexpected pepe quote %+v", quotes[1])
	}
	if len(fallback.asked) != 1 || fallback.asked[0] != "pepe" {
		t.Errorf("Expected only pepe to fall back, got %v", fallback.asked)
	}
}

func TestGetPrice_NonUSDGoesStraightToFallback(t *testing.T) {
	trades := &stubTrades{}
	fallback := &MockSource{prices: map[string]decimal.Decimal{"bitcoin": decimal.NewFromInt(1)}}
	p := &Provider{MarketDataSource: fallback, mdClient: trades, pairs: DefaultPairs}

	if _, err := p.GetPrice(context.Background(), []string{"bitcoin"}, "eur"); err != nil {
		t.Fatalf("GetPrice failed: %v", err)
	}
	if len(trades.asked) != 0 {
		t.Errorf("Alpaca should not be asked for EUR, asked %v", trades.asked)
	}
}

func TestGetPrice_FallbackErrorSurfacesWhenNothingPriced(t *testing.T) {
	fallback := &MockSource{err: market.ErrUpstreamUnavailable}
	p := &Provider{MarketDataSource: fallback, mdClient: &stubTrades{}, pairs: map[string]string{"bitcoin": "BTC/USD"}}

	_, err := p.GetPrice(context.Background(), []string{"bitcoin"}, "usd")
	if !errors.Is(err, market.ErrUpstreamUnavailable) {
		t.Errorf("Expected ErrUpstreamUnavailable, got %v", err)
	}
}

func TestGetPrice_SharedTickerUsesOwnSource(t *testing.T) {
	trades := &stubTrades{prices: map[string]float64{"BTC/USD": 64000.5}}
	fallback := &MockSource{prices: map[string]decimal.Decimal{
		"batcat-btc-clone": decimal.RequireFromString("0.0001"),
	}}
	p := NewProvider(fallback, map[string]string{"bitcoin": "btc/usd"}, "", "", 0)
	p.mdClient = trades

	quotes, err := p.GetPrice(context.Background(), []string{"batcat-btc-clone", "bitcoin"}, "usd")
	if err != nil {
		t.Fatalf("GetPrice failed: %v", err)
	}
	if len(quotes) != 2 {
		t.Fatalf("Expected 2 quotes, got %+v", quotes)
	}
	if quotes[0].ID != "batcat-btc-clone" || quotes[0].Prices["usd"].String() != "0.0001" {
		t.Errorf("Clone must keep its own price, got %+v", quotes[0])
	}
	if quotes[1].ID != "bitcoin" || !quotes[1].Prices["usd"].Equal(decimal.NewFromFloat(64000.5)) {
		t.Errorf("Unexpected bitcoin quote %+v", quotes[1])
	}
	if len(trades.asked) != 1 || trades.asked[0] != "BTC/USD" {
		t.Errorf("Expected Alpaca to be asked only for BTC/USD, got %v", trades.asked)
	}
	if len(fallback.asked) != 1 || fallback.asked[0] != "batcat-btc-clone" {
		t.Errorf("Expected the clone to go to the fallback, got %v", fallback.asked)
	}
}
