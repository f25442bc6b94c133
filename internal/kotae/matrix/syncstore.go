package matrix

import (
	"context"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/id"
)

// StateStore persists the small amount of sync bookkeeping the adapter needs
// across restarts. *store.Store implements it on the Kotae database.
type StateStore interface {
	SyncState(ctx context.Context, owner, key string) (string, error)
	SetSyncState(ctx context.Context, owner, key, value string) error
}

const (
	stateNextBatch = "next_batch"
	stateFilterID  = "filter_id"
)

// syncStore lets mautrix resume /sync from the last token Kotae saw, so a
// restart does not answer the same messages twice.
type syncStore struct {
	state StateStore
}

var _ mautrix.SyncStore = syncStore{}

func (s syncStore) SaveNextBatch(ctx context.Context, userID id.UserID, token string) error {
	return s.state.SetSyncState(ctx, userID.String(), stateNextBatch, token)
}

func (s syncStore) LoadNextBatch(ctx context.Context, userID id.UserID) (string, error) {
	return s.state.SyncState(ctx, userID.String(), stateNextBatch)
}

func (s syncStore) SaveFilterID(ctx context.Context, userID id.UserID, filterID string) error {
	return s.state.SetSyncState(ctx, userID.String(), stateFilterID, filterID)
}

func (s syncStore) LoadFilterID(ctx context.Context, userID id.UserID) (string, error) {
	return s.state.SyncState(ctx, userID.String(), stateFilterID)
}
