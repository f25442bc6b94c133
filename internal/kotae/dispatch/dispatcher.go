// Package dispatch runs message handling on a fixed pool of workers while
// keeping each sender's messages in the order they were received.
//
// Messages are sharded by sender: every sender hashes to exactly one worker,
// and each worker drains its queue sequentially. Different senders usually
// land on different workers and are handled in parallel.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/bdobrica/kotae/common/spec/envelope"
	"github.com/bdobrica/kotae/internal/kotae/observability"
)

// ErrClosed is returned by Submit after Close has been called.
var ErrClosed = errors.New("dispatch: dispatcher is closed")

// HandlerFunc handles one message. It runs on the sender's worker goroutine.
type HandlerFunc func(ctx context.Context, msg envelope.Message)

// Config controls the worker pool.
type Config struct {
	// Workers is the number of shards. Default: runtime.NumCPU().
	Workers int
	// QueueSize is the buffered capacity of each shard. Default: 64.
	QueueSize int
	Logger    *slog.Logger
}

type job struct {
	ctx context.Context
	msg envelope.Message
}

// Dispatcher fans messages out to per-shard workers.
type Dispatcher struct {
	handler HandlerFunc
	logger  *slog.Logger

	mu     sync.RWMutex // guards closed and sends on shards
	closed bool
	shards []chan job
	wg     sync.WaitGroup
}

// New starts the workers and returns a Dispatcher.
func New(cfg Config, handler HandlerFunc) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	d := &Dispatcher{
		handler: handler,
		logger:  cfg.Logger,
		shards:  make([]chan job, cfg.Workers),
	}
	for i := range d.shards {
		d.shards[i] = make(chan job, cfg.QueueSize)
		d.wg.Add(1)
		go d.work(i, d.shards[i])
	}
	return d
}

// Workers returns the number of shards.
func (d *Dispatcher) Workers() int {
	return len(d.shards)
}

// ShardFor returns the shard index messages from senderID are routed to.
func (d *Dispatcher) ShardFor(senderID string) int {
	return int(xxhash.Sum64String(senderID) % uint64(len(d.shards)))
}

// Submit queues msg on its sender's shard. It blocks while the shard is full
// and returns ctx.Err() if ctx is cancelled first. The handler receives a
// context that keeps ctx's values but not its cancellation, so a short-lived
// caller context does not abort handling already queued.
func (d *Dispatcher) Submit(ctx context.Context, msg envelope.Message) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}

	j := job{ctx: context.WithoutCancel(ctx), msg: msg}
	select {
	case d.shards[d.ShardFor(msg.SenderID)] <- j:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting messages, lets the workers drain what is queued and
// waits for them to exit. It is safe to call more than once.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, ch := range d.shards {
		close(ch)
	}
	d.mu.Unlock()

	d.wg.Wait()
}

func (d *Dispatcher) work(shard int, jobs <-chan job) {
	defer d.wg.Done()
	for j := range jobs {
		d.run(shard, j)
	}
}

// run calls the handler, keeping the worker alive if it panics.
func (d *Dispatcher) run(shard int, j job) {
	defer func() {
		if p := recover(); p != nil {
			observability.WithTrace(j.ctx, d.logger).Error("dispatch: handler panicked",
				"shard", shard, observability.Sender(j.msg.SenderID), "panic", p)
		}
	}()
	d.handler(j.ctx, j.msg)
}
