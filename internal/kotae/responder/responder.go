// Package responder turns an inbound message into a canned reply.
//
// For each message the responder normalizes the text, asks the Matcher for
// an intent, runs that intent's handler against the sender's conversation
// record (under the sender's lock) and looks the chosen reply key up in the
// reply registry. It never returns an error and never returns an empty
// reply: anything unexpected degrades to the clarification reply.
package responder

import (
	"context"
	"log/slog"
	"time"

	"github.com/bdobrica/kotae/common/spec/envelope"
	"github.com/bdobrica/kotae/common/trace"
	"github.com/bdobrica/kotae/internal/kotae/intent"
	"github.com/bdobrica/kotae/internal/kotae/memory"
	"github.com/bdobrica/kotae/internal/kotae/metrics"
	"github.com/bdobrica/kotae/internal/kotae/observability"
	"github.com/bdobrica/kotae/internal/kotae/replies"
)

// Exchange describes one handled message for the journal.
type Exchange struct {
	TraceID    string
	Channel    string
	SenderID   string
	Intent     intent.Intent
	ReplyKey   string
	InboundLen int
	At         time.Time
}

// Journal records handled exchanges. RecordExchange runs on the reply path,
// so anything that does I/O should be wrapped in an AsyncJournal. Errors are
// logged and otherwise ignored.
type Journal interface {
	RecordExchange(ctx context.Context, ex Exchange) error
}

// Config wires a Responder. Every field is optional.
type Config struct {
	Store   *memory.Store     // default: memory.NewStore(memory.DefaultConfig())
	Matcher intent.Matcher    // default: intent.NewKeywordMatcher()
	Replies *replies.Registry // default: replies.Default()
	Metrics *metrics.Metrics  // nil disables metrics
	Journal Journal           // nil disables the journal
	Logger  *slog.Logger      // default: slog.Default()
}

// Result is the outcome of handling one message.
type Result struct {
	Reply    string
	Intent   intent.Intent
	ReplyKey string
	TraceID  string
}

// Responder is safe for concurrent use.
type Responder struct {
	store   *memory.Store
	matcher intent.Matcher
	replies *replies.Registry
	metrics *metrics.Metrics
	journal Journal
	logger  *slog.Logger
}

// New creates a Responder, filling unset Config fields with defaults.
func New(cfg Config) *Responder {
	if cfg.Store == nil {
		cfg.Store = memory.NewStore(memory.DefaultConfig())
	}
	if cfg.Matcher == nil {
		cfg.Matcher = intent.NewKeywordMatcher()
	}
	if cfg.Replies == nil {
		cfg.Replies = replies.Default()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Responder{
		store:   cfg.Store,
		matcher: cfg.Matcher,
		replies: cfg.Replies,
		metrics: cfg.Metrics,
		journal: cfg.Journal,
		logger:  cfg.Logger,
	}
}

// Store returns the conversation memory the responder mutates.
func (r *Responder) Store() *memory.Store {
	return r.store
}

// Handle is the plain function boundary used by transports that only have a
// sender and a text: handle(sender_id, message_text) -> reply_text.
func (r *Responder) Handle(ctx context.Context, senderID, text string) string {
	return r.Respond(ctx, envelope.Message{
		Channel:    envelope.ChannelLocal,
		SenderID:   senderID,
		Text:       text,
		ReceivedAt: time.Now().UTC(),
	}).Reply
}

// Respond classifies msg, updates the sender's memory and returns the reply.
func (r *Responder) Respond(ctx context.Context, msg envelope.Message) Result {
	start := time.Now()
	ctx, traceID := trace.Ensure(ctx)
	logger := observability.WithTrace(ctx, r.logger)

	channel := msg.Channel
	if channel == "" {
		channel = envelope.ChannelLocal
	}

	matched, key, turns := r.classify(logger, msg)

	reply, err := r.replies.MustLookup(key)
	if err != nil || reply == "" {
		logger.Warn("responder: reply pack has no text for key; using fallback", "reply_key", key, "err", err)
		reply = r.replies.Text(key)
	}
	took := time.Since(start)

	r.metrics.ObserveMessage(channel, string(matched), key, took)
	r.metrics.SetTrackedSenders(r.store.Len())

	logger.Debug("responder: message handled",
		observability.Sender(msg.SenderID),
		"channel", channel,
		"intent", matched,
		"reply_key", key,
		"turn", turns,
		"took", took,
	)

	r.record(ctx, logger, Exchange{
		TraceID:    traceID,
		Channel:    channel,
		SenderID:   msg.SenderID,
		Intent:     matched,
		ReplyKey:   key,
		InboundLen: len(msg.Text),
		At:         time.Now().UTC(),
	})

	return Result{
		Reply:    reply,
		Intent:   matched,
		ReplyKey: key,
		TraceID:  traceID,
	}
}

// classify runs the matcher and the intent handler with the sender's record
// locked. A panic here degrades to the clarification reply.
func (r *Responder) classify(logger *slog.Logger, msg envelope.Message) (matched intent.Intent, key string, turns int) {
	defer func() {
		if p := recover(); p != nil {
			r.metrics.ObservePanic()
			logger.Error("responder: panic while handling message; sending clarification",
				observability.Sender(msg.SenderID), "panic", p)
			matched, key, turns = intent.Unclear, replies.KeyUnclear, 0
		}
	}()

	text := intent.Normalize(msg.Text)
	rec := r.store.Update(msg.SenderID, func(rec *memory.Record) {
		matched = r.matcher.Match(text)
		h, ok := handlers[matched]
		if !ok {
			matched = intent.Unclear
			h = handlers[intent.Unclear]
		}
		key = h(text, rec)
		rec.Turns++
	})
	return matched, key, rec.Turns
}

// record hands ex to the journal. Journal failures are logged and never
// change the reply.
func (r *Responder) record(ctx context.Context, logger *slog.Logger, ex Exchange) {
	if r.journal == nil {
		return
	}
	defer func() {
		if p := recover(); p != nil {
			logger.Error("responder: journal panicked", "trace_id", ex.TraceID, "panic", p)
		}
	}()
	if err := r.journal.RecordExchange(ctx, ex); err != nil {
		logger.Warn("responder: journal write failed", "err", err)
	}
}
