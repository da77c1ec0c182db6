package catalog

import (
	"context"
	"errors"
	"testing"

	"crypto_bot/internal/market"
	"crypto_bot/internal/models"
)

func TestResolve(t *testing.T) {
	r := NewResolver(NewCache(&MockSource{assets: []models.Asset{
		{ID: "bitcoin", Symbol: "btc"},
		{ID: "ethereum", Symbol: "eth"},
	}}))
	ctx := context.Background()

	tests := []struct {
		name    string
		raw     string
		wantID  string
		wantErr error
		unknown string
	}{
		{name: "empty", raw: "", wantErr: ErrMissingTicker},
		{name: "blank", raw: "   ", wantErr: ErrMissingTicker},
		{name: "control chars", raw: "\t\r\n", wantErr: ErrMissingTicker},
		{name: "upper", raw: "BTC", wantID: "bitcoin"},
		{name: "lower", raw: "btc", wantID: "bitcoin"},
		{name: "padded", raw: " \teth\n", wantID: "ethereum"},
		{name: "unknown", raw: "DOGE", unknown: "doge"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Resolve(ctx, tt.raw)
			switch {
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Expected %v, got %v", tt.wantErr, err)
				}
			case tt.unknown != "":
				var unk *UnknownTickerError
				if !errors.As(err, &unk) {
					t.Fatalf("Expected UnknownTickerError, got %v", err)
				}
				if unk.Label != tt.unknown {
					t.Errorf("Expected label %s, got %s", tt.unknown, unk.Label)
				}
			default:
				if err != nil {
					t.Fatalf("Resolve failed: %v", err)
				}
				if got.ID != tt.wantID {
					t.Errorf("Expected id %s, got %s", tt.wantID, got.ID)
				}
				if got.Label != Normalize(tt.raw) {
					t.Errorf("Expected label %q, got %q", Normalize(tt.raw), got.Label)
				}
			}
		})
	}
}

func TestResolve_UpstreamFailureIsNotUnknown(t *testing.T) {
	r := NewResolver(NewCache(&MockSource{err: errors.New("503")}))

	_, err := r.Resolve(context.Background(), "btc")
	var unk *UnknownTickerError
	if errors.As(err, &unk) {
		t.Fatal("Upstream failure must not be reported as an unknown ticker")
	}
	if !errors.Is(err, market.ErrUpstreamUnavailable) {
		t.Errorf("Expected ErrUpstreamUnavailable, got %v", err)
	}
}

func TestKnowsID(t *testing.T) {
	r := NewResolver(NewCache(&MockSource{assets: []models.Asset{{ID: "bitcoin", Symbol: "btc"}}}))
	if !r.KnowsID(context.Background(), "bitcoin") {
		t.Error("Expected bitcoin to be known")
	}
	if r.KnowsID(context.Background(), "btc") {
		t.Error("A symbol is not an id")
	}
}
