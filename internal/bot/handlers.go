package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"crypto_bot/internal/catalog"
	"crypto_bot/internal/logger"
	"crypto_bot/internal/models"
)

const (
	MissingTickerMessage  = "Ticker is missing, please enter a ticker. See example below:"
	MissingTickerExample  = "```i.e. @CryptoBot btc```"
	UnknownTickerFormat   = "The coin: %s does not exist, please enter a valid coin"
	MenuIntroFormat       = "For more info about %s and crypto, please select from the following options below"
	LookupFailedMessage   = "⚠️ Could not look up coins right now. Please try again later."
	NoOptionMessage       = "Please select an option from the menu before pressing Go."
	StaleSelectionMessage = "⚠️ That menu is no longer valid. Please mention me again with a ticker, e.g. @CryptoBot btc"
)

// HandleMention resolves the ticker of a mention and, on success, offers the report menu.
// An unresolved ticker never produces a menu.
func (b *Bot) HandleMention(ctx context.Context, ev MentionEvent) (err error) {
	unlock := b.locks.lock(ev.Thread.Key())
	defer unlock()

	ctx, span := logger.StartSpan(ctx, "bot.mention")
	defer func() { logger.EndSpan(span, err) }()

	ticker, err := b.resolver.Resolve(ctx, ev.Text)

	var unknown *catalog.UnknownTickerError
	switch {
	case errors.Is(err, catalog.ErrMissingTicker):
		logger.Info(ctx, "Mention without ticker", "user", ev.User)
		return b.sendAll(ctx, ev.Thread, MissingTickerMessage, MissingTickerExample)

	case errors.As(err, &unknown):
		logger.Info(ctx, "Unknown ticker", "user", ev.User, "label", unknown.Label)
		b.clearPending(ev.Thread)
		return b.gateway.SendText(ctx, ev.Thread, fmt.Sprintf(UnknownTickerFormat, unknown.Label))

	case err != nil:
		logger.Error(ctx, "Ticker resolution failed", "error", err)
		return b.gateway.SendText(ctx, ev.Thread, LookupFailedMessage)
	}

	b.storePending(ev.Thread, PendingQuery{
		ResolvedID: ticker.ID,
		Label:      ticker.Label,
		CreatedAt:  b.now(),
	})
	logger.Info(ctx, "Ticker resolved", "user", ev.User, "label", ticker.Label, "id", ticker.ID)

	if err := b.gateway.SendText(ctx, ev.Thread, fmt.Sprintf(MenuIntroFormat, ticker.Label)); err != nil {
		return err
	}
	return b.gateway.SendInteractivePrompt(ctx, ev.Thread, MenuOptions(), ticker.ID)
}

// HandleSelection acknowledges the event, then posts the chosen report line by line.
func (b *Bot) HandleSelection(ctx context.Context, ev SelectionEvent) (err error) {
	if err := b.gateway.Acknowledge(ctx, ev.EnvelopeID); err != nil {
		logger.Warn(ctx, "Acknowledge failed", "envelope_id", ev.EnvelopeID, "error", err)
	}

	unlock := b.locks.lock(ev.Thread.Key())
	defer unlock()

	ctx, span := logger.StartSpan(ctx, "bot.selection")
	defer func() { logger.EndSpan(span, err) }()

	choice := strings.TrimSpace(ev.ChosenValue)
	if choice == "" {
		return b.gateway.SendText(ctx, ev.Thread, NoOptionMessage)
	}

	kind, err := models.ParseReportKind(choice)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrUnknownReportKind, choice)
	}

	assetID, err := b.selectionAsset(ctx, ev)
	if err != nil {
		logger.Info(ctx, "Stale selection", "user", ev.User, "token", ev.CorrelationToken)
		if sendErr := b.gateway.SendText(ctx, ev.Thread, StaleSelectionMessage); sendErr != nil {
			return sendErr
		}
		return err
	}

	b.clearPending(ev.Thread)
	logger.Info(ctx, "Report requested", "user", ev.User, "kind", kind, "id", assetID)

	req := models.ReportRequest{AssetID: assetID, Kind: kind}
	for line := range b.reporter.Produce(ctx, req) {
		if err := b.gateway.SendText(ctx, ev.Thread, line); err != nil {
			return fmt.Errorf("sending %s report: %w", kind, err)
		}
	}
	return nil
}

// HandleMenuChange acknowledges a dropdown change; the report runs on Go.
func (b *Bot) HandleMenuChange(ctx context.Context, ev SelectionEvent) error {
	if err := b.gateway.Acknowledge(ctx, ev.EnvelopeID); err != nil {
		return err
	}
	logger.Debug(ctx, "Menu option changed", "user", ev.User, "value", ev.ChosenValue)
	return nil
}

// selectionAsset picks the asset a selection applies to. The correlation token
// carried by the menu message wins; the thread's pending query covers a missing
// or garbled token.
func (b *Bot) selectionAsset(ctx context.Context, ev SelectionEvent) (string, error) {
	token := strings.TrimSpace(ev.CorrelationToken)
	if token != "" && b.resolver.KnowsID(ctx, token) {
		return token, nil
	}
	if p, ok := b.Pending(ev.Thread); ok {
		return p.ResolvedID, nil
	}
	return "", fmt.Errorf("%w: token %q", ErrStaleSelection, token)
}

func (b *Bot) sendAll(ctx context.Context, thread ThreadRef, lines ...string) error {
	for _, line := range lines {
		if err := b.gateway.SendText(ctx, thread, line); err != nil {
			return err
		}
	}
	return nil
}
