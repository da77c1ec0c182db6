package slack

import (
	"context"

	"crypto_bot/internal/bot"
	"crypto_bot/internal/logger"

	slackgo "github.com/slack-go/slack"
	"go.opentelemetry.io/otel/attribute"
)

// Block Kit ids of the report menu. Selections are read back through them.
const (
	MenuBlockID     = "actions1"
	SelectActionID  = "selection"
	GoActionID      = "selected_option"
	menuPlaceholder = "Select An Option Below"
)

func plainText(s string) *slackgo.TextBlockObject {
	return slackgo.NewTextBlockObject(slackgo.PlainTextType, s, false, false)
}

// MenuBlocks renders the report menu: a static select plus a Go button.
func MenuBlocks(options []bot.MenuOption) []slackgo.Block {
	opts := make([]*slackgo.OptionBlockObject, 0, len(options))
	for _, o := range options {
		opts = append(opts, slackgo.NewOptionBlockObject(o.Value, plainText(o.Label), nil))
	}
	selectEl := slackgo.NewOptionsSelectBlockElement(slackgo.OptTypeStatic, plainText(menuPlaceholder), SelectActionID, opts...)
	goButton := slackgo.NewButtonBlockElement(GoActionID, "Go", plainText("Go"))
	return []slackgo.Block{slackgo.NewActionBlock(MenuBlockID, selectEl, goButton)}
}

// messagePoster is the part of *slack.Client the gateway uses.
type messagePoster interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slackgo.MsgOption) (string, string, error)
}

// Gateway is the Slack side of bot.ChatGateway.
type Gateway struct {
	api    messagePoster
	socket *Listener
}

func NewGateway(api *slackgo.Client, socket *Listener) *Gateway {
	return &Gateway{api: api, socket: socket}
}

func (g *Gateway) SendText(ctx context.Context, thread bot.ThreadRef, text string) error {
	logger.Debug(ctx, "Sending message", "channel", thread.Channel, "text", text)
	return g.post(ctx, thread, slackgo.MsgOptionText(text, false))
}

// SendInteractivePrompt posts the menu. The message text carries the
// correlation token and is echoed back in block_actions payloads.
func (g *Gateway) SendInteractivePrompt(ctx context.Context, thread bot.ThreadRef, options []bot.MenuOption, correlationText string) error {
	return g.post(ctx, thread,
		slackgo.MsgOptionText(correlationText, false),
		slackgo.MsgOptionBlocks(MenuBlocks(options)...))
}

func (g *Gateway) Acknowledge(ctx context.Context, envelopeID string) error {
	return g.socket.Ack(envelopeID)
}

func (g *Gateway) post(ctx context.Context, thread bot.ThreadRef, opts ...slackgo.MsgOption) (err error) {
	ctx, span := logger.StartSpan(ctx, "slack.chat.postMessage", attribute.String("slack.channel", thread.Channel))
	defer func() { logger.EndSpan(span, err) }()

	if thread.ThreadTS != "" {
		opts = append(opts, slackgo.MsgOptionTS(thread.ThreadTS))
	}
	_, _, err = g.api.PostMessageContext(ctx, thread.Channel, opts...)
	return err
}
