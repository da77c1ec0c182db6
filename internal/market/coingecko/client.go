package coingecko

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"crypto_bot/internal/logger"
	"crypto_bot/internal/market"
	"crypto_bot/internal/models"

	"go.opentelemetry.io/otel/attribute"
)

// Client implements market.MarketDataSource against the CoinGecko v3 REST API.
type Client struct {
	baseURL    string
	apiKey     string
	timeout    time.Duration
	httpClient *http.Client
}

// Ensure Client implements the interface
var _ market.MarketDataSource = (*Client)(nil)

// NewClient returns a CoinGecko client. apiKey is optional (demo key header).
// Every call is bounded by timeout.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		timeout:    timeout,
		httpClient: &http.Client{},
	}
}

// --- Market Data ---

func (c *Client) ListAssets(ctx context.Context) ([]models.Asset, error) {
	var coins []coinListEntry
	if err := c.get(ctx, "/coins/list", nil, &coins); err != nil {
		return nil, err
	}

	assets := make([]models.Asset, 0, len(coins))
	for _, coin := range coins {
		assets = append(assets, models.Asset{ID: coin.ID, Symbol: coin.Symbol, Name: coin.Name})
	}
	return assets, nil
}

func (c *Client) GetAssetDetail(ctx context.Context, id string) (*models.AssetDetail, error) {
	q := url.Values{}
	q.Set("localization", "false")
	q.Set("tickers", "false")
	q.Set("market_data", "false")
	q.Set("community_data", "false")
	q.Set("developer_data", "false")

	var resp coinDetailResponse
	if err := c.get(ctx, "/coins/"+url.PathEscape(id), q, &resp); err != nil {
		return nil, err
	}

	return &models.AssetDetail{
		ID:          resp.ID,
		Symbol:      resp.Symbol,
		Name:        resp.Name,
		Description: PlainText(resp.Description.En),
	}, nil
}

func (c *Client) GetPrice(ctx context.Context, ids []string, quoteCurrency string) ([]models.PriceQuote, error) {
	q := url.Values{}
	q.Set("ids", strings.Join(ids, ","))
	q.Set("vs_currencies", quoteCurrency)

	var resp simplePriceResponse
	if err := c.get(ctx, "/simple/price", q, &resp); err != nil {
		return nil, err
	}

	quotes := make([]models.PriceQuote, 0, len(resp))
	for id, prices := range resp {
		quotes = append(quotes, models.PriceQuote{ID: id, Prices: prices})
	}
	sort.Slice(quotes, func(i, j int) bool { return quotes[i].ID < quotes[j].ID })
	return quotes, nil
}

func (c *Client) GetGlobalSnapshot(ctx context.Context) (*models.GlobalSnapshot, error) {
	var resp globalResponse
	if err := c.get(ctx, "/global", nil, &resp); err != nil {
		return nil, err
	}

	return &models.GlobalSnapshot{
		UpdatedAt:              time.Unix(resp.Data.UpdatedAt, 0),
		ActiveCryptocurrencies: resp.Data.ActiveCryptocurrencies,
		MarketCapShares:        []models.MarketCapShare(resp.Data.MarketCapPercentage),
	}, nil
}

func (c *Client) GetTrending(ctx context.Context) ([]models.TrendingCoin, error) {
	var resp trendingResponse
	if err := c.get(ctx, "/search/trending", nil, &resp); err != nil {
		return nil, err
	}

	coins := make([]models.TrendingCoin, 0, len(resp.Coins))
	for _, entry := range resp.Coins {
		coins = append(coins, models.TrendingCoin{
			ID:     entry.Item.ID,
			Symbol: entry.Item.Symbol,
			Name:   entry.Item.Name,
		})
	}
	return coins, nil
}

// --- Helpers ---

// get performs one bounded GET and decodes the JSON body into out.
// Every failure (transport, timeout, status, decoding) wraps market.ErrUpstreamUnavailable.
func (c *Client) get(ctx context.Context, path string, query url.Values, out any) (err error) {
	ctx, span := logger.StartSpan(ctx, "coingecko.get", attribute.String("path", path))
	defer func() { logger.EndSpan(span, err) }()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("%w: building request for %s: %v", market.ErrUpstreamUnavailable, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-cg-demo-api-key", c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", market.ErrUpstreamUnavailable, path, err)
	}
	defer resp.Body.Close()

	logger.Debug(ctx, "CoinGecko call", "path", path, "status", resp.StatusCode, "duration_ms", time.Since(start).Milliseconds())

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s returned %d: %s", market.ErrUpstreamUnavailable, path, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decoding %s: %v", market.ErrUpstreamUnavailable, path, err)
	}
	return nil
}
