package responder

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/bdobrica/kotae/internal/kotae/metrics"
)

var (
	// ErrJournalFull is returned when the write queue has no room; the
	// exchange is dropped.
	ErrJournalFull = errors.New("responder: journal queue full")
	// ErrJournalClosed is returned after Close.
	ErrJournalClosed = errors.New("responder: journal closed")
)

// AsyncJournalConfig controls an AsyncJournal.
type AsyncJournalConfig struct {
	// QueueSize is the number of exchanges buffered ahead of the writer.
	// Default: 1024.
	QueueSize int
	// WriteTimeout bounds each write to the wrapped journal. Default: 5s.
	WriteTimeout time.Duration
	Metrics      *metrics.Metrics
	Logger       *slog.Logger
}

// AsyncJournal moves journal writes off the reply path. RecordExchange only
// enqueues; a single writer goroutine drains the queue into the wrapped
// Journal in order. When the queue is full the exchange is dropped rather
// than delaying the reply.
type AsyncJournal struct {
	next    Journal
	timeout time.Duration
	metrics *metrics.Metrics
	logger  *slog.Logger

	mu     sync.RWMutex // guards closed and sends on queue
	closed bool
	queue  chan Exchange
	done   chan struct{}
}

// NewAsyncJournal starts the writer goroutine. Call Close to drain it.
func NewAsyncJournal(next Journal, cfg AsyncJournalConfig) *AsyncJournal {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	j := &AsyncJournal{
		next:    next,
		timeout: cfg.WriteTimeout,
		metrics: cfg.Metrics,
		logger:  cfg.Logger,
		queue:   make(chan Exchange, cfg.QueueSize),
		done:    make(chan struct{}),
	}
	go j.run()
	return j
}

// RecordExchange enqueues ex without waiting for it to be written. The
// caller's context is not carried over: a request finishing must not cancel
// the write of its own exchange.
func (j *AsyncJournal) RecordExchange(_ context.Context, ex Exchange) error {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if j.closed {
		j.metrics.ObserveJournalDropped("closed")
		return ErrJournalClosed
	}
	select {
	case j.queue <- ex:
		return nil
	default:
		j.metrics.ObserveJournalDropped("queue_full")
		return ErrJournalFull
	}
}

// Close stops accepting exchanges and waits until every queued one has been
// written. Safe to call more than once.
func (j *AsyncJournal) Close() {
	j.mu.Lock()
	if !j.closed {
		j.closed = true
		close(j.queue)
	}
	j.mu.Unlock()
	<-j.done
}

func (j *AsyncJournal) run() {
	defer close(j.done)
	for ex := range j.queue {
		j.write(ex)
	}
}

func (j *AsyncJournal) write(ex Exchange) {
	defer func() {
		if p := recover(); p != nil {
			j.metrics.ObserveJournalDropped("panic")
			j.logger.Error("journal: writer panicked", "trace_id", ex.TraceID, "panic", p)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()
	if err := j.next.RecordExchange(ctx, ex); err != nil {
		j.metrics.ObserveJournalDropped("write_error")
		j.logger.Warn("journal: write failed", "trace_id", ex.TraceID, "err", err)
	}
}
