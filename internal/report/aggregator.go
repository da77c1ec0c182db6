package report

import (
	"context"
	"fmt"
	"iter"
	"sort"
	"strconv"
	"strings"
	"time"

	"crypto_bot/internal/logger"
	"crypto_bot/internal/market"
	"crypto_bot/internal/models"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
)

// TopCoins is how many market cap entries the global overview lists.
const TopCoins = 10

// TimestampLayout renders the overview's update time as MM-DD-YY HH:MM:SS.
const TimestampLayout = "01-02-06 15:04:05"

// ErrorLine is posted when the data behind a report could not be fetched.
const ErrorLine = "⚠️ Could not fetch market data right now. Please try again later."

// Catalog is the part of the coin catalog the reports need.
type Catalog interface {
	LookupIDBySymbol(ctx context.Context, symbol string) (string, error)
	LookupSymbolByID(ctx context.Context, id string) (string, error)
}

// Aggregator turns a ReportRequest into the ordered lines posted to chat.
type Aggregator struct {
	src     market.MarketDataSource
	catalog Catalog
	loc     *time.Location
}

// New returns an Aggregator rendering timestamps in loc (time.Local when nil).
func New(src market.MarketDataSource, catalog Catalog, loc *time.Location) *Aggregator {
	if loc == nil {
		loc = time.Local
	}
	return &Aggregator{src: src, catalog: catalog, loc: loc}
}

// Produce returns the report lines lazily: upstream calls happen while the
// caller ranges over the sequence, and stop as soon as the caller stops.
func (a *Aggregator) Produce(ctx context.Context, req models.ReportRequest) iter.Seq[string] {
	return func(yield func(string) bool) {
		ctx, span := logger.StartSpan(ctx, "report.produce",
			attribute.String("kind", string(req.Kind)),
			attribute.String("asset_id", req.AssetID))
		defer span.End()

		switch req.Kind {
		case models.ReportDescription:
			a.description(ctx, req.AssetID, yield)
		case models.ReportPrice:
			a.price(ctx, req.AssetID, yield)
		case models.ReportGlobal:
			a.global(ctx, yield)
		case models.ReportTrending:
			a.trending(ctx, yield)
		default:
			logger.Error(ctx, "Unknown report kind", "kind", req.Kind)
		}
	}
}

func (a *Aggregator) description(ctx context.Context, id string, yield func(string) bool) {
	detail, err := a.src.GetAssetDetail(ctx, id)
	if err != nil {
		logger.Warn(ctx, "Description fetch failed", "id", id, "error", err)
		yield(ErrorLine)
		return
	}
	if detail.Description == "" {
		yield(fmt.Sprintf("No description available for %s.", id))
		return
	}
	yield("```" + detail.Description + "```")
}

func (a *Aggregator) price(ctx context.Context, id string, yield func(string) bool) {
	quotes, err := a.src.GetPrice(ctx, []string{id}, market.QuoteCurrency)
	if err != nil {
		logger.Warn(ctx, "Price fetch failed", "id", id, "error", err)
		yield(ErrorLine)
		return
	}
	if len(quotes) == 0 {
		yield(fmt.Sprintf("No price available for %s.", id))
		return
	}

	for _, q := range quotes {
		symbol, err := a.catalog.LookupSymbolByID(ctx, q.ID)
		if err != nil {
			symbol = q.ID
		}
		for _, currency := range sortedCurrencies(q.Prices) {
			line := fmt.Sprintf("%s is currently trading at %s $%s",
				symbol, strings.ToUpper(currency), q.Prices[currency].String())
			if !yield(line) {
				return
			}
		}
	}
}

func (a *Aggregator) global(ctx context.Context, yield func(string) bool) {
	snap, err := a.src.GetGlobalSnapshot(ctx)
	if err != nil {
		logger.Warn(ctx, "Global snapshot fetch failed", "error", err)
		yield(ErrorLine)
		return
	}

	header := []string{
		"Crypto Market Overview - Last Updated at: " + snap.UpdatedAt.In(a.loc).Format(TimestampLayout),
		fmt.Sprintf("There are %d active cryptocurrencies.", snap.ActiveCryptocurrencies),
		fmt.Sprintf("Cryptocurrency Market Cap %% (Top %d cryptocurrencies)", TopCoins),
	}
	for _, line := range header {
		if !yield(line) {
			return
		}
	}

	shares := snap.MarketCapShares
	if len(shares) > TopCoins {
		shares = shares[:TopCoins]
	}

	skipped := 0
	for _, share := range shares {
		price, err := a.priceForTicker(ctx, share.Ticker)
		if err != nil {
			logger.Warn(ctx, "Skipping market cap entry", "ticker", share.Ticker, "error", err)
			skipped++
			continue
		}
		line := fmt.Sprintf("%-6s market cap is %s%% of the total supply. (USD) $%s",
			share.Ticker, fixed(share.Percentage, 2), fixed(price, 4))
		if !yield(line) {
			return
		}
	}

	if skipped > 0 {
		yield(fmt.Sprintf("(%d of %d entries skipped: market data unavailable)", skipped, len(shares)))
	}
}

func (a *Aggregator) trending(ctx context.Context, yield func(string) bool) {
	coins, err := a.src.GetTrending(ctx)
	if err != nil {
		logger.Warn(ctx, "Trending fetch failed", "error", err)
		yield(ErrorLine)
		return
	}

	if !yield("Trending Coins: ") {
		return
	}

	skipped := 0
	for _, coin := range coins {
		id, symbol, ok := a.resolveTrending(ctx, coin)
		if !ok {
			logger.Warn(ctx, "Skipping trending coin not in catalog", "name", coin.Name, "id", coin.ID)
			skipped++
			continue
		}
		price, err := a.usdPrice(ctx, id)
		if err != nil {
			logger.Warn(ctx, "Skipping trending coin", "id", id, "error", err)
			skipped++
			continue
		}
		if !yield(fmt.Sprintf("%s (%s) Price in USD $%s", id, symbol, fixed(price, 4))) {
			return
		}
	}

	if skipped > 0 {
		yield(fmt.Sprintf("(%d of %d entries skipped: market data unavailable)", skipped, len(coins)))
	}
}

// resolveTrending maps a trending item to a canonical id and its ticker:
// the provider id when the catalog knows it, then the item's symbol, then
// the lower-cased display name as a last resort.
func (a *Aggregator) resolveTrending(ctx context.Context, coin models.TrendingCoin) (id, symbol string, ok bool) {
	if coin.ID != "" {
		if sym, err := a.catalog.LookupSymbolByID(ctx, coin.ID); err == nil {
			return coin.ID, sym, true
		}
	}
	if coin.Symbol != "" {
		if id, err := a.catalog.LookupIDBySymbol(ctx, coin.Symbol); err == nil {
			sym, _ := a.catalog.LookupSymbolByID(ctx, id)
			return id, sym, true
		}
	}
	if name := strings.ToLower(strings.TrimSpace(coin.Name)); name != "" {
		if sym, err := a.catalog.LookupSymbolByID(ctx, name); err == nil {
			return name, sym, true
		}
	}
	return "", "", false
}

func (a *Aggregator) priceForTicker(ctx context.Context, ticker string) (decimal.Decimal, error) {
	id, err := a.catalog.LookupIDBySymbol(ctx, ticker)
	if err != nil {
		return decimal.Zero, err
	}
	return a.usdPrice(ctx, id)
}

func (a *Aggregator) usdPrice(ctx context.Context, id string) (decimal.Decimal, error) {
	quotes, err := a.src.GetPrice(ctx, []string{id}, market.QuoteCurrency)
	if err != nil {
		return decimal.Zero, err
	}
	for _, q := range quotes {
		if q.ID != id {
			continue
		}
		if p, ok := q.Prices[market.QuoteCurrency]; ok {
			return p, nil
		}
	}
	return decimal.Zero, fmt.Errorf("no %s price for %s", market.QuoteCurrency, id)
}

// fixed formats d with the given decimals, rounding the provider's float
// value the way printf does. Exact decimal rounding disagrees on ties such
// as 45.125 and on values like 0.00005 whose float sits just above the tie.
func fixed(d decimal.Decimal, places int) string {
	return strconv.FormatFloat(d.InexactFloat64(), 'f', places, 64)
}

func sortedCurrencies(prices map[string]decimal.Decimal) []string {
	keys := make([]string, 0, len(prices))
	for k := range prices {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
