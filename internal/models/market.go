package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Asset represents one entry of the provider's coin catalog.
type Asset struct {
	ID     string `json:"id"`     // Canonical provider key (e.g., "bitcoin")
	Symbol string `json:"symbol"` // Short ticker, not unique (e.g., "btc")
	Name   string `json:"name"`   // Display name (e.g., "Bitcoin")
}

// AssetDetail holds the descriptive fields of a single coin.
type AssetDetail struct {
	ID          string
	Symbol      string
	Name        string
	Description string // English description, plain text
}

// PriceQuote is the price of one asset in one or more quote currencies.
type PriceQuote struct {
	ID     string
	Prices map[string]decimal.Decimal // quote currency -> amount
}

// MarketCapShare is one entry of the global market cap breakdown.
type MarketCapShare struct {
	Ticker     string
	Percentage decimal.Decimal
}

// GlobalSnapshot represents the provider's global market overview.
type GlobalSnapshot struct {
	UpdatedAt              time.Time
	ActiveCryptocurrencies int
	// MarketCapShares keeps the order the provider returned them in.
	MarketCapShares []MarketCapShare
}

// TrendingCoin is one item of the provider's trending search list.
type TrendingCoin struct {
	ID     string
	Symbol string
	Name   string
}
