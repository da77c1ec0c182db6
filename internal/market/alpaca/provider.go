package alpaca

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"crypto_bot/internal/logger"
	"crypto_bot/internal/market"
	"crypto_bot/internal/models"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/shopspring/decimal"
)

// DefaultPairs maps canonical asset ids to the Alpaca USD pairs that price them.
// Tickers are not unique, so pairs are keyed by id and never derived from a symbol.
var DefaultPairs = map[string]string{
	"bitcoin":      "BTC/USD",
	"ethereum":     "ETH/USD",
	"solana":       "SOL/USD",
	"dogecoin":     "DOGE/USD",
	"litecoin":     "LTC/USD",
	"chainlink":    "LINK/USD",
	"avalanche-2":  "AVAX/USD",
	"uniswap":      "UNI/USD",
	"bitcoin-cash": "BCH/USD",
	"polkadot":     "DOT/USD",
}

// cryptoTrades is the subset of the Alpaca market data client we use.
type cryptoTrades interface {
	GetLatestCryptoTrade(symbol string, req marketdata.GetLatestCryptoTradeRequest) (*marketdata.CryptoTrade, error)
}

// Provider serves USD prices of the mapped ids from Alpaca's crypto feed and
// delegates everything else (and any pair Alpaca fails on) to the wrapped source.
type Provider struct {
	market.MarketDataSource
	mdClient cryptoTrades
	pairs    map[string]string // canonical id -> "BASE/USD"
	timeout  time.Duration
}

// Ensure Provider implements the interface
var _ market.MarketDataSource = (*Provider)(nil)

// NewProvider wraps fallback with an Alpaca price feed for the ids in pairs.
func NewProvider(fallback market.MarketDataSource, pairs map[string]string, keyID, secretKey string, timeout time.Duration) *Provider {
	return &Provider{
		MarketDataSource: fallback,
		mdClient: marketdata.NewClient(marketdata.ClientOpts{
			APIKey:    keyID,
			APISecret: secretKey,
		}),
		pairs:   normalizePairs(pairs),
		timeout: timeout,
	}
}

func normalizePairs(pairs map[string]string) map[string]string {
	out := make(map[string]string, len(pairs))
	for id, pair := range pairs {
		id, pair = strings.TrimSpace(id), strings.ToUpper(strings.TrimSpace(pair))
		if id != "" && pair != "" {
			out[id] = pair
		}
	}
	return out
}

// GetPrice asks Alpaca for the mapped pair of each id and falls back for the rest.
func (p *Provider) GetPrice(ctx context.Context, ids []string, quoteCurrency string) ([]models.PriceQuote, error) {
	if quoteCurrency != market.QuoteCurrency {
		return p.MarketDataSource.GetPrice(ctx, ids, quoteCurrency)
	}

	var quotes []models.PriceQuote
	var missing []string
	for _, id := range ids {
		pair, ok := p.pairs[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		price, err := p.latestUSD(ctx, pair)
		if err != nil {
			logger.Debug(ctx, "Alpaca price unavailable, falling back", "id", id, "error", err)
			missing = append(missing, id)
			continue
		}
		quotes = append(quotes, models.PriceQuote{
			ID:     id,
			Prices: map[string]decimal.Decimal{market.QuoteCurrency: price},
		})
	}

	if len(missing) > 0 {
		rest, err := p.MarketDataSource.GetPrice(ctx, missing, quoteCurrency)
		if err != nil {
			if len(quotes) == 0 {
				return nil, err
			}
			logger.Warn(ctx, "Fallback price lookup failed", "ids", missing, "error", err)
		}
		quotes = append(quotes, rest...)
	}

	sort.Slice(quotes, func(i, j int) bool { return quotes[i].ID < quotes[j].ID })
	return quotes, nil
}

func (p *Provider) latestUSD(ctx context.Context, pair string) (decimal.Decimal, error) {
	type result struct {
		trade *marketdata.CryptoTrade
		err   error
	}
	ch := make(chan result, 1)
	go func() {
		trade, err := p.mdClient.GetLatestCryptoTrade(pair, marketdata.GetLatestCryptoTradeRequest{})
		ch <- result{trade, err}
	}()

	var timeout <-chan time.Time
	if p.timeout > 0 {
		timer := time.NewTimer(p.timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case <-ctx.Done():
		return decimal.Zero, fmt.Errorf("%w: %s: %v", market.ErrUpstreamUnavailable, pair, ctx.Err())
	case <-timeout:
		return decimal.Zero, fmt.Errorf("%w: %s: timed out", market.ErrUpstreamUnavailable, pair)
	case r := <-ch:
		if r.err != nil {
			return decimal.Zero, fmt.Errorf("%w: %s: %v", market.ErrUpstreamUnavailable, pair, r.err)
		}
		if r.trade == nil {
			return decimal.Zero, fmt.Errorf("no trade found for %s", pair)
		}
		return decimal.NewFromFloat(r.trade.Price), nil
	}
}
