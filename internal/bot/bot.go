package bot

import (
	"context"
	"errors"
	"iter"
	"sync"
	"time"

	"crypto_bot/internal/catalog"
	"crypto_bot/internal/config"
	"crypto_bot/internal/models"
)

var (
	// ErrStaleSelection means a menu selection no longer maps to an asset.
	ErrStaleSelection = errors.New("stale selection")
	// ErrUnknownReportKind means a selection carried a value outside the menu.
	ErrUnknownReportKind = errors.New("unknown report kind")
)

// ThreadRef identifies the conversation a mention and its selection belong to.
type ThreadRef struct {
	Channel  string
	ThreadTS string // empty for top-level channel messages
}

// Key is the per-conversation state key.
func (t ThreadRef) Key() string {
	if t.ThreadTS == "" {
		return t.Channel
	}
	return t.Channel + ":" + t.ThreadTS
}

// MenuOption is one entry of the interactive report menu.
type MenuOption struct {
	Label string
	Value string
}

// ChatGateway is everything the bot needs from the chat platform.
type ChatGateway interface {
	SendText(ctx context.Context, thread ThreadRef, text string) error
	// SendInteractivePrompt posts the menu; correlationText is the message's display
	// text and comes back as SelectionEvent.CorrelationToken.
	SendInteractivePrompt(ctx context.Context, thread ThreadRef, options []MenuOption, correlationText string) error
	Acknowledge(ctx context.Context, envelopeID string) error
}

// MentionEvent is an inbound mention; Text is whatever followed the mention.
type MentionEvent struct {
	Thread ThreadRef
	User   string
	Text   string
}

// SelectionEvent is an inbound press of the menu's Go button.
type SelectionEvent struct {
	EnvelopeID       string
	Thread           ThreadRef
	User             string
	ChosenValue      string
	CorrelationToken string
}

// Resolver resolves ticker text against the coin catalog.
type Resolver interface {
	Resolve(ctx context.Context, raw string) (catalog.Ticker, error)
	KnowsID(ctx context.Context, id string) bool
}

// Reporter produces the lines of a report.
type Reporter interface {
	Produce(ctx context.Context, req models.ReportRequest) iter.Seq[string]
}

// PendingQuery is the asset a thread's open menu refers to.
type PendingQuery struct {
	ResolvedID string
	Label      string
	CreatedAt  time.Time
}

// Bot drives the mention -> menu -> selection protocol.
type Bot struct {
	gateway  ChatGateway
	resolver Resolver
	reporter Reporter
	config   *config.Config

	mu      sync.Mutex
	pending map[string]PendingQuery
	locks   *threadLocks
	now     func() time.Time
}

func New(cfg *config.Config, gateway ChatGateway, resolver Resolver, reporter Reporter) *Bot {
	return &Bot{
		gateway:  gateway,
		resolver: resolver,
		reporter: reporter,
		config:   cfg,
		pending:  make(map[string]PendingQuery),
		locks:    newThreadLocks(),
		now:      time.Now,
	}
}

// MenuOptions lists the report menu in display order.
func MenuOptions() []MenuOption {
	opts := make([]MenuOption, 0, len(models.ReportKinds))
	for _, k := range models.ReportKinds {
		opts = append(opts, MenuOption{Label: k.Label(), Value: string(k)})
	}
	return opts
}

// Pending returns the open query of a thread, if any and not expired.
func (b *Bot) Pending(thread ThreadRef) (PendingQuery, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.pending[thread.Key()]
	if !ok || b.expired(p) {
		return PendingQuery{}, false
	}
	return p, true
}

func (b *Bot) storePending(thread ThreadRef, p PendingQuery) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for k, old := range b.pending {
		if b.expired(old) {
			delete(b.pending, k)
		}
	}
	b.pending[thread.Key()] = p
}

func (b *Bot) clearPending(thread ThreadRef) {
	b.mu.Lock()
	delete(b.pending, thread.Key())
	b.mu.Unlock()
}

// expired must be called with b.mu held.
func (b *Bot) expired(p PendingQuery) bool {
	ttl := b.config.PendingTTL()
	return ttl > 0 && b.now().Sub(p.CreatedAt) > ttl
}

// threadLocks serializes events per conversation while letting different
// conversations proceed in parallel.
type threadLocks struct {
	mu    sync.Mutex
	locks map[string]*threadLock
}

type threadLock struct {
	mu   sync.Mutex
	refs int
}

func newThreadLocks() *threadLocks {
	return &threadLocks{locks: make(map[string]*threadLock)}
}

// lock blocks until key is free and returns the matching unlock.
func (t *threadLocks) lock(key string) func() {
	t.mu.Lock()
	l, ok := t.locks[key]
	if !ok {
		l = &threadLock{}
		t.locks[key] = l
	}
	l.refs++
	t.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		t.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(t.locks, key)
		}
		t.mu.Unlock()
	}
}
