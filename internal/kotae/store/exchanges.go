package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bdobrica/kotae/common/redact"
)

// Exchange is one journaled inbound message and the reply chosen for it.
// Message bodies are never stored; only their length.
type Exchange struct {
	ID         string
	TraceID    string
	Channel    string
	SenderID   string // masked with redact.Sender before it is written
	Intent     string
	ReplyKey   string
	InboundLen int
	CreatedAt  time.Time
}

// RecordExchange inserts ex, assigning an ID and timestamp when missing.
func (s *Store) RecordExchange(ctx context.Context, ex Exchange) error {
	if ex.ID == "" {
		ex.ID = uuid.NewString()
	}
	if ex.CreatedAt.IsZero() {
		ex.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO exchanges (id, trace_id, channel, sender_id, intent, reply_key, inbound_len, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, ex.ID, ex.TraceID, ex.Channel, redact.Sender(ex.SenderID), ex.Intent, ex.ReplyKey,
		ex.InboundLen, ex.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("record exchange: %w", err)
	}
	return nil
}

// RecentExchanges returns up to limit exchanges, newest first.
func (s *Store) RecentExchanges(ctx context.Context, limit int) ([]Exchange, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, trace_id, channel, sender_id, intent, reply_key, inbound_len, created_at
		FROM exchanges
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list exchanges: %w", err)
	}
	defer rows.Close()

	var out []Exchange
	for rows.Next() {
		var (
			ex      Exchange
			created int64
		)
		if err := rows.Scan(&ex.ID, &ex.TraceID, &ex.Channel, &ex.SenderID, &ex.Intent,
			&ex.ReplyKey, &ex.InboundLen, &created); err != nil {
			return nil, fmt.Errorf("scan exchange: %w", err)
		}
		ex.CreatedAt = time.UnixMilli(created).UTC()
		out = append(out, ex)
	}
	return out, rows.Err()
}

// CountExchanges returns the number of journaled exchanges.
func (s *Store) CountExchanges(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM exchanges").Scan(&n); err != nil {
		return 0, fmt.Errorf("count exchanges: %w", err)
	}
	return n, nil
}

// IntentCounts returns the number of exchanges per intent.
func (s *Store) IntentCounts(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT intent, COUNT(*) FROM exchanges GROUP BY intent")
	if err != nil {
		return nil, fmt.Errorf("intent counts: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var (
			in string
			n  int
		)
		if err := rows.Scan(&in, &n); err != nil {
			return nil, fmt.Errorf("scan intent count: %w", err)
		}
		out[in] = n
	}
	return out, rows.Err()
}

// PruneExchanges deletes exchanges created before cutoff and returns how many
// were removed.
func (s *Store) PruneExchanges(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM exchanges WHERE created_at < ?", cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("prune exchanges: %w", err)
	}
	return res.RowsAffected()
}
