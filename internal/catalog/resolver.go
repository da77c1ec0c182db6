package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// ErrMissingTicker means the mention carried no ticker text at all.
var ErrMissingTicker = errors.New("ticker is missing")

// UnknownTickerError means the ticker is not in the catalog.
type UnknownTickerError struct {
	Label string
}

func (e *UnknownTickerError) Error() string {
	return fmt.Sprintf("unknown ticker %q", e.Label)
}

// Ticker is a successfully resolved ticker.
type Ticker struct {
	Label string // normalized user text
	ID    string // canonical asset id
}

// Resolver turns user text into a canonical asset id.
type Resolver struct {
	cache *Cache
}

func NewResolver(cache *Cache) *Resolver {
	return &Resolver{cache: cache}
}

// Normalize trims surrounding whitespace and control characters and lower-cases.
func Normalize(raw string) string {
	trimmed := strings.TrimFunc(raw, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsControl(r)
	})
	return strings.ToLower(trimmed)
}

// Resolve returns the Ticker for raw, ErrMissingTicker for empty input,
// *UnknownTickerError for a miss, or a wrapped upstream error if the
// catalog could not be built.
func (r *Resolver) Resolve(ctx context.Context, raw string) (Ticker, error) {
	label := Normalize(raw)
	if label == "" {
		return Ticker{}, ErrMissingTicker
	}

	id, err := r.cache.LookupIDBySymbol(ctx, label)
	if errors.Is(err, ErrNotFound) {
		return Ticker{}, &UnknownTickerError{Label: label}
	}
	if err != nil {
		return Ticker{}, err
	}
	return Ticker{Label: label, ID: id}, nil
}

// KnowsID reports whether id is a canonical id in the catalog.
func (r *Resolver) KnowsID(ctx context.Context, id string) bool {
	_, err := r.cache.LookupSymbolByID(ctx, id)
	return err == nil
}
