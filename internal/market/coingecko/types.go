package coingecko

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"crypto_bot/internal/models"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"
)

// Response shapes of the endpoints we call. Only the fields the bot reads are declared.

type coinListEntry struct {
	ID     string `json:"id"`
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

type coinDetailResponse struct {
	ID          string `json:"id"`
	Symbol      string `json:"symbol"`
	Name        string `json:"name"`
	Description struct {
		En string `json:"en"`
	} `json:"description"`
}

// simplePriceResponse maps id -> quote currency -> amount.
type simplePriceResponse map[string]map[string]decimal.Decimal

type globalResponse struct {
	Data struct {
		ActiveCryptocurrencies int           `json:"active_cryptocurrencies"`
		MarketCapPercentage    orderedShares `json:"market_cap_percentage"`
		UpdatedAt              int64         `json:"updated_at"`
	} `json:"data"`
}

type trendingResponse struct {
	Coins []struct {
		Item struct {
			ID     string `json:"id"`
			Name   string `json:"name"`
			Symbol string `json:"symbol"`
		} `json:"item"`
	} `json:"coins"`
}

// orderedShares decodes a JSON object of ticker -> percentage keeping key order.
// encoding/json maps lose it, and the overview report lists coins in provider order.
type orderedShares []models.MarketCapShare

func (o *orderedShares) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*o = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("market_cap_percentage: expected object, got %v", tok)
	}

	var shares orderedShares
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("market_cap_percentage: unexpected key %v", keyTok)
		}
		var pct decimal.Decimal
		if err := dec.Decode(&pct); err != nil {
			return fmt.Errorf("market_cap_percentage[%s]: %w", key, err)
		}
		shares = append(shares, models.MarketCapShare{Ticker: key, Percentage: pct})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	*o = shares
	return nil
}

// PlainText strips the HTML anchors CoinGecko embeds in descriptions.
func PlainText(html string) string {
	if !strings.ContainsAny(html, "<&") {
		return strings.TrimSpace(html)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return strings.TrimSpace(html)
	}
	return strings.TrimSpace(doc.Text())
}
