package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"crypto_bot/internal/logger"
	"crypto_bot/internal/market"
	"crypto_bot/internal/models"
)

// ErrNotFound is returned by lookups for symbols or ids absent from the catalog.
var ErrNotFound = errors.New("not found in catalog")

// snapshot is one fully built catalog. It is never mutated after publication.
type snapshot struct {
	bySymbol map[string]string // lower-cased symbol -> id
	byID     map[string]string // id -> symbol as received
	assets   []models.Asset
	builtAt  time.Time
}

// Cache holds the bidirectional ticker <-> id mapping.
// Readers always see either the previous or the new complete catalog.
type Cache struct {
	src     market.MarketDataSource
	current atomic.Pointer[snapshot]
	buildMu sync.Mutex // one build at a time
}

// Stats describes the published catalog.
type Stats struct {
	Assets  int       `json:"assets"`
	Symbols int       `json:"symbols"`
	BuiltAt time.Time `json:"built_at"`
}

func NewCache(src market.MarketDataSource) *Cache {
	return &Cache{src: src}
}

// Build fetches the full asset list once and publishes it.
// On failure the previously published catalog (if any) stays in place.
func (c *Cache) Build(ctx context.Context) error {
	c.buildMu.Lock()
	defer c.buildMu.Unlock()
	return c.buildLocked(ctx)
}

// Refresh rebuilds the catalog in full.
func (c *Cache) Refresh(ctx context.Context) error {
	return c.Build(ctx)
}

func (c *Cache) buildLocked(ctx context.Context) error {
	ctx, span := logger.StartSpan(ctx, "catalog.build")
	assets, err := c.src.ListAssets(ctx)
	logger.EndSpan(span, err)
	if err != nil {
		if !errors.Is(err, market.ErrUpstreamUnavailable) {
			err = fmt.Errorf("%w: %v", market.ErrUpstreamUnavailable, err)
		}
		return fmt.Errorf("building catalog: %w", err)
	}

	c.current.Store(newSnapshot(assets, time.Now()))
	logger.Info(ctx, "Catalog built", "assets", len(assets))
	return nil
}

// Restore publishes a catalog loaded from elsewhere (a snapshot file).
func (c *Cache) Restore(assets []models.Asset, builtAt time.Time) {
	c.current.Store(newSnapshot(assets, builtAt))
}

func newSnapshot(assets []models.Asset, builtAt time.Time) *snapshot {
	s := &snapshot{
		bySymbol: make(map[string]string, len(assets)),
		byID:     make(map[string]string, len(assets)),
		assets:   assets,
		builtAt:  builtAt,
	}
	for _, a := range assets {
		// Later entries overwrite earlier ones sharing a symbol.
		s.bySymbol[strings.ToLower(a.Symbol)] = a.ID
		s.byID[a.ID] = a.Symbol
	}
	return s
}

// ensure returns the published catalog, building it on first need.
func (c *Cache) ensure(ctx context.Context) (*snapshot, error) {
	if s := c.current.Load(); s != nil {
		return s, nil
	}
	c.buildMu.Lock()
	defer c.buildMu.Unlock()
	if s := c.current.Load(); s != nil {
		return s, nil
	}
	if err := c.buildLocked(ctx); err != nil {
		return nil, err
	}
	return c.current.Load(), nil
}

// Ready reports whether a catalog has been published.
func (c *Cache) Ready() bool {
	return c.current.Load() != nil
}

// LookupIDBySymbol returns the id for a ticker, case-insensitively.
// ctx bounds the lazy first build.
func (c *Cache) LookupIDBySymbol(ctx context.Context, symbol string) (string, error) {
	s, err := c.ensure(ctx)
	if err != nil {
		return "", err
	}
	return s.idBySymbol(symbol)
}

// LookupSymbolByID returns the ticker for a canonical id, as the provider spelled it.
func (c *Cache) LookupSymbolByID(ctx context.Context, id string) (string, error) {
	s, err := c.ensure(ctx)
	if err != nil {
		return "", err
	}
	sym, ok := s.byID[id]
	if !ok {
		return "", fmt.Errorf("id %q: %w", id, ErrNotFound)
	}
	return sym, nil
}

func (s *snapshot) idBySymbol(symbol string) (string, error) {
	id, ok := s.bySymbol[strings.ToLower(symbol)]
	if !ok {
		return "", fmt.Errorf("symbol %q: %w", symbol, ErrNotFound)
	}
	return id, nil
}

// Assets returns the entries of the published catalog in provider order.
func (c *Cache) Assets() []models.Asset {
	s := c.current.Load()
	if s == nil {
		return nil
	}
	out := make([]models.Asset, len(s.assets))
	copy(out, s.assets)
	return out
}

func (c *Cache) Stats() Stats {
	s := c.current.Load()
	if s == nil {
		return Stats{}
	}
	return Stats{Assets: len(s.byID), Symbols: len(s.bySymbol), BuiltAt: s.builtAt}
}

// Run refreshes the catalog every interval until ctx is done.
// onRefresh (optional) is called after every successful refresh.
func (c *Cache) Run(ctx context.Context, interval time.Duration, onRefresh func([]models.Asset)) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Refresh(ctx); err != nil {
				logger.Warn(ctx, "Catalog refresh failed, keeping previous catalog", "error", err)
				continue
			}
			if onRefresh != nil {
				onRefresh(c.Assets())
			}
		}
	}
}
