package market

import (
	"context"
	"errors"

	"crypto_bot/internal/models"
)

// QuoteCurrency is the only quote currency the reports ask for.
const QuoteCurrency = "usd"

// ErrUpstreamUnavailable is returned (wrapped) whenever a market data call fails or times out.
var ErrUpstreamUnavailable = errors.New("market data unavailable")

// MarketDataSource defines the market data the bot consumes.
// Any provider (CoinGecko, a price feed overlay, or a Mock in tests)
// satisfies it without the bot knowing which one is behind it.
type MarketDataSource interface {
	// ListAssets returns the full coin catalog in provider order.
	ListAssets(ctx context.Context) ([]models.Asset, error)
	GetAssetDetail(ctx context.Context, id string) (*models.AssetDetail, error)
	// GetPrice returns one quote per known id, ordered by id.
	GetPrice(ctx context.Context, ids []string, quoteCurrency string) ([]models.PriceQuote, error)
	GetGlobalSnapshot(ctx context.Context) (*models.GlobalSnapshot, error)
	GetTrending(ctx context.Context) ([]models.TrendingCoin, error)
}
