package slack

import (
	"context"
	"errors"
	"sync"
	"time"

	"crypto_bot/internal/bot"
	"crypto_bot/internal/logger"

	"github.com/google/uuid"
	slackgo "github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"
)

const retryDelay = 5 * time.Second

// ErrNoEnvelope is returned by Ack for an empty envelope id.
var ErrNoEnvelope = errors.New("no envelope id to acknowledge")

// Handlers receives the events the listener decodes. *bot.Bot implements it.
type Handlers interface {
	HandleMention(ctx context.Context, ev bot.MentionEvent) error
	HandleSelection(ctx context.Context, ev bot.SelectionEvent) error
	HandleMenuChange(ctx context.Context, ev bot.SelectionEvent) error
}

// acker is the acknowledgement side of *socketmode.Client.
type acker interface {
	Ack(req socketmode.Request, payload ...interface{})
}

// Listener keeps a Socket Mode session open and dispatches its envelopes.
type Listener struct {
	socket     *socketmode.Client
	acker      acker
	retryDelay time.Duration

	inflight sync.WaitGroup
}

func NewListener(api *slackgo.Client) *Listener {
	sm := socketmode.New(api)
	return &Listener{socket: sm, acker: sm, retryDelay: retryDelay}
}

// Run blocks until ctx is done. The Socket Mode client reconnects on its own;
// Run restarts it when it gives up. In-flight handlers are waited for before
// it returns.
func (l *Listener) Run(ctx context.Context, h Handlers) error {
	defer l.inflight.Wait()

	go l.connect(ctx)
	logger.Info(ctx, "Slack listener started")
	l.consume(ctx, l.socket.Events, h)
	logger.Info(ctx, "Slack listener stopped")
	return nil
}

func (l *Listener) connect(ctx context.Context) {
	for {
		err := l.socket.RunContext(ctx)
		if ctx.Err() != nil {
			return
		}
		logger.Warn(ctx, "Socket Mode client stopped, restarting", "error", err, "retry_in", l.retryDelay)

		select {
		case <-ctx.Done():
			return
		case <-time.After(l.retryDelay):
		}
	}
}

func (l *Listener) consume(ctx context.Context, events <-chan socketmode.Event, h Handlers) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			l.handle(ctx, evt, h)
		}
	}
}

func (l *Listener) handle(ctx context.Context, evt socketmode.Event, h Handlers) {
	switch evt.Type {
	case socketmode.EventTypeConnecting:
		logger.Debug(ctx, "Socket Mode connecting")
	case socketmode.EventTypeConnected:
		logger.Info(ctx, "Socket Mode connected")
	case socketmode.EventTypeConnectionError:
		logger.Warn(ctx, "Socket Mode connection failed", "data", evt.Data)
	case socketmode.EventTypeHello:
		logger.Debug(ctx, "Socket Mode hello")
	case socketmode.EventTypeDisconnect:
		logger.Info(ctx, "Socket Mode disconnect requested")
	case socketmode.EventTypeEventsAPI:
		l.ackRequest(ctx, evt.Request)
		l.dispatchEvent(ctx, evt, h)
	case socketmode.EventTypeInteractive:
		l.dispatchInteractive(ctx, evt, h)
	default:
		l.ackRequest(ctx, evt.Request)
		logger.Debug(ctx, "Ignoring envelope", "type", evt.Type)
	}
}

func (l *Listener) dispatchEvent(ctx context.Context, evt socketmode.Event, h Handlers) {
	apiEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
	if !ok {
		logger.Warn(ctx, "Unexpected events_api data", "data", evt.Data)
		return
	}

	switch inner := apiEvent.InnerEvent.Data.(type) {
	case *slackevents.AppMentionEvent:
		var raw []byte
		if evt.Request != nil {
			raw = evt.Request.Payload
		}
		ev := mentionEvent(inner, raw)
		l.spawn(ctx, "app_mention", func(ctx context.Context) error {
			return h.HandleMention(ctx, ev)
		})
	case *slackevents.MessageEvent:
		logger.Debug(ctx, "Message event", "channel", inner.Channel, "user", inner.User)
	default:
		logger.Debug(ctx, "Ignoring event", "type", apiEvent.InnerEvent.Type)
	}
}

func (l *Listener) dispatchInteractive(ctx context.Context, evt socketmode.Event, h Handlers) {
	cb, ok := evt.Data.(slackgo.InteractionCallback)
	if !ok || cb.Type != slackgo.InteractionTypeBlockActions || len(cb.ActionCallback.BlockActions) == 0 || evt.Request == nil {
		l.ackRequest(ctx, evt.Request)
		return
	}

	a := cb.ActionCallback.BlockActions[0]
	ev := selectionEvent(evt.Request.EnvelopeID, cb, a)
	switch a.ActionID {
	case GoActionID:
		l.spawn(ctx, "block_actions.go", func(ctx context.Context) error {
			return h.HandleSelection(ctx, ev)
		})
	case SelectActionID:
		l.spawn(ctx, "block_actions.select", func(ctx context.Context) error {
			return h.HandleMenuChange(ctx, ev)
		})
	default:
		l.ackRequest(ctx, evt.Request)
		logger.Debug(ctx, "Ignoring action", "action_id", a.ActionID)
	}
}

// spawn runs a handler on its own goroutine under a fresh request id.
func (l *Listener) spawn(ctx context.Context, kind string, fn func(context.Context) error) {
	ctx = logger.WithRequestID(ctx, uuid.NewString())
	l.inflight.Add(1)
	go func() {
		defer l.inflight.Done()
		logger.Debug(ctx, "Dispatching event", "kind", kind)
		if err := fn(ctx); err != nil {
			if errors.Is(err, bot.ErrUnknownReportKind) {
				logger.Error(ctx, "Event handling failed", "kind", kind, "error", err)
				return
			}
			logger.Warn(ctx, "Event handling failed", "kind", kind, "error", err)
		}
	}()
}

// Ack acknowledges an envelope on the Socket Mode connection.
func (l *Listener) Ack(envelopeID string) error {
	if envelopeID == "" {
		return ErrNoEnvelope
	}
	l.acker.Ack(socketmode.Request{EnvelopeID: envelopeID})
	return nil
}

func (l *Listener) ackRequest(ctx context.Context, req *socketmode.Request) {
	if req == nil || req.EnvelopeID == "" {
		return
	}
	if err := l.Ack(req.EnvelopeID); err != nil {
		logger.Warn(ctx, "Acknowledge failed", "envelope_id", req.EnvelopeID, "error", err)
	}
}
