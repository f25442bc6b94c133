// Package app wires the Kotae service together: conversation memory, the
// responder, the transports that feed it, the journal and the HTTP surface.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bdobrica/kotae/common/spec/envelope"
	"github.com/bdobrica/kotae/internal/kotae/dispatch"
	"github.com/bdobrica/kotae/internal/kotae/matrix"
	"github.com/bdobrica/kotae/internal/kotae/memory"
	"github.com/bdobrica/kotae/internal/kotae/metrics"
	"github.com/bdobrica/kotae/internal/kotae/observability"
	"github.com/bdobrica/kotae/internal/kotae/replies"
	"github.com/bdobrica/kotae/internal/kotae/responder"
	"github.com/bdobrica/kotae/internal/kotae/store"
	"github.com/bdobrica/kotae/internal/kotae/webhook"
)

// App is the running Kotae service.
type App struct {
	config  Config
	logger  *slog.Logger
	store   *store.Store            // nil when the journal is disabled
	journal *responder.AsyncJournal // nil when the journal is disabled
	memory  *memory.Store
	metrics *metrics.Metrics

	responder  *responder.Responder
	dispatcher *dispatch.Dispatcher // nil without Matrix
	matrix     *matrix.Client       // nil without Matrix
	health     *HealthServer

	stopOnce sync.Once
}

// journalAdapter bridges *store.Store to responder.Journal so the responder
// does not import the storage layer.
type journalAdapter struct {
	st *store.Store
}

func (a journalAdapter) RecordExchange(ctx context.Context, ex responder.Exchange) error {
	return a.st.RecordExchange(ctx, store.Exchange{
		TraceID:    ex.TraceID,
		Channel:    ex.Channel,
		SenderID:   ex.SenderID,
		Intent:     ex.Intent.String(),
		ReplyKey:   ex.ReplyKey,
		InboundLen: ex.InboundLen,
		CreatedAt:  ex.At,
	})
}

// New builds every component from config. Nothing is started until Run.
func New(config Config, logger *slog.Logger) (*App, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	a := &App{config: config, logger: logger}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.metrics = metrics.New(reg)

	memCfg := config.Memory
	memCfg.OnEvict = func(senderID string, reason memory.EvictReason) {
		a.metrics.ObserveEviction(string(reason))
		logger.Debug("conversation evicted", observability.Sender(senderID), "reason", reason)
	}
	a.memory = memory.NewStore(memCfg)

	pack := replies.Default()
	if config.RepliesDir != "" {
		loaded, err := replies.Load(os.DirFS(config.RepliesDir), replies.FileName)
		if err != nil {
			return nil, fmt.Errorf("failed to load replies from %s: %w", config.RepliesDir, err)
		}
		pack = loaded
		logger.Info("loaded reply pack", "dir", config.RepliesDir, "keys", len(pack.Keys()))
	}

	var journal responder.Journal
	if config.DatabasePath != "" {
		st, err := store.New(config.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		a.store = st
		a.journal = responder.NewAsyncJournal(journalAdapter{st: st}, responder.AsyncJournalConfig{
			Metrics: a.metrics,
			Logger:  logger.With("component", "journal"),
		})
		journal = a.journal
	} else {
		logger.Warn("no database configured; exchange journal disabled")
	}

	a.responder = responder.New(responder.Config{
		Store:   a.memory,
		Replies: pack,
		Metrics: a.metrics,
		Journal: journal,
		Logger:  logger.With("component", "responder"),
	})

	if config.Matrix != nil {
		mxCfg := *config.Matrix
		mxCfg.Logger = logger
		if a.store != nil {
			mxCfg.State = a.store
		}
		client, err := matrix.New(mxCfg)
		if err != nil {
			a.closeJournal()
			a.closeStore()
			return nil, err
		}
		a.matrix = client
		a.dispatcher = dispatch.New(dispatch.Config{
			Workers: config.Workers,
			Logger:  logger.With("component", "dispatch"),
		}, a.replyMatrix)
	}

	a.health = NewHealthServer(config.HTTPAddr, a)
	a.health.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	hookCfg := config.Webhook
	hookCfg.Metrics = a.metrics
	hookCfg.Logger = logger
	webhook.New(a.responder, hookCfg).RegisterRoutes(a.health)

	return a, nil
}

// Handler returns the HTTP handler serving every route, whether or not the
// listener is enabled.
func (a *App) Handler() http.Handler {
	return a.health
}

// Responder returns the shared responder.
func (a *App) Responder() *responder.Responder {
	return a.responder
}

// TrackedSenders reports the number of conversations held in memory.
func (a *App) TrackedSenders() int {
	return a.memory.Len()
}

// Exchanges reports the journal size, or -1 when the journal is disabled.
func (a *App) Exchanges(ctx context.Context) (int, error) {
	if a.store == nil {
		return -1, nil
	}
	return a.store.CountExchanges(ctx)
}

// IntentCounts reports journaled exchanges per intent, or nil when the
// journal is disabled.
func (a *App) IntentCounts(ctx context.Context) (map[string]int, error) {
	if a.store == nil {
		return nil, nil
	}
	return a.store.IntentCounts(ctx)
}

// Run starts the HTTP server, the Matrix adapter and the janitor, then
// blocks until ctx is cancelled. Stop releases resources afterwards.
func (a *App) Run(ctx context.Context) error {
	if a.config.HTTPAddr != "" {
		if err := a.health.Start(ctx); err != nil {
			return err
		}
	}

	if a.matrix != nil {
		a.logger.Info("starting Matrix sync")
		if err := a.matrix.Start(ctx, a.submitMatrix); err != nil {
			return fmt.Errorf("failed to start Matrix client: %w", err)
		}
	}

	if a.config.HTTPAddr == "" && a.matrix == nil {
		a.logger.Warn("no transport enabled; set KOTAE_HTTP_ADDR or MATRIX_* to receive messages")
	}

	go a.janitor(ctx)

	a.logger.Info("Kotae is running")
	<-ctx.Done()
	a.logger.Info("shutting down")
	return nil
}

// Stop stops transports, drains queued messages, flushes the journal and
// closes the database. Safe to call more than once.
func (a *App) Stop() {
	a.stopOnce.Do(func() {
		if a.matrix != nil {
			a.logger.Info("stopping Matrix client")
			a.matrix.Stop()
		}
		if a.dispatcher != nil {
			a.dispatcher.Close()
		}
		a.health.Stop()
		a.closeJournal()
		a.closeStore()
	})
}

// closeJournal waits for queued exchanges to reach the database. It must run
// after every producer has stopped and before closeStore.
func (a *App) closeJournal() {
	if a.journal == nil {
		return
	}
	a.journal.Close()
}

func (a *App) closeStore() {
	if a.store == nil {
		return
	}
	a.logger.Info("closing database")
	if err := a.store.Close(); err != nil {
		a.logger.Warn("close database", "err", err)
	}
}

// submitMatrix hands a Matrix message to the sender's dispatch shard. It
// runs on the sync goroutine, so it blocks while that shard is full.
func (a *App) submitMatrix(ctx context.Context, msg envelope.Message) {
	if err := a.dispatcher.Submit(ctx, msg); err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Warn("dropping Matrix message", observability.Sender(msg.SenderID), "err", err)
	}
}

func (a *App) replyMatrix(ctx context.Context, msg envelope.Message) {
	res := a.responder.Respond(ctx, msg)
	if err := a.matrix.SendText(ctx, msg.ReplyTo(), res.Reply); err != nil {
		a.metrics.ObserveSendFailure(msg.Channel)
		a.logger.Error("failed to send reply",
			"trace_id", res.TraceID, "room", msg.ReplyTo(), "err", err)
	}
}

func (a *App) janitor(ctx context.Context) {
	ticker := time.NewTicker(a.config.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			a.sweep(ctx, now)
		}
	}
}

// sweep drops idle conversations and prunes old journal rows.
func (a *App) sweep(ctx context.Context, now time.Time) {
	if evicted := a.memory.EvictExpired(now); len(evicted) > 0 {
		a.logger.Info("evicted idle conversations", "count", len(evicted))
	}
	a.metrics.SetTrackedSenders(a.memory.Len())

	if a.store != nil && a.config.JournalRetention > 0 {
		n, err := a.store.PruneExchanges(ctx, now.Add(-a.config.JournalRetention))
		if err != nil {
			a.logger.Warn("prune exchanges", "err", err)
		} else if n > 0 {
			a.logger.Info("pruned exchanges", "count", n)
		}
	}
}
