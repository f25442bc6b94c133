// Package matrix connects Kotae to a Matrix homeserver. With a WhatsApp
// bridge (mautrix-whatsapp) in front, each bridged WhatsApp chat shows up as
// a room and every customer as a puppet user, so the same adapter serves
// both plain Matrix users and WhatsApp contacts.
package matrix

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/bdobrica/kotae/common/redact"
	"github.com/bdobrica/kotae/common/retry"
	"github.com/bdobrica/kotae/common/spec/envelope"
)

// Config holds Matrix client configuration
type Config struct {
	Homeserver  string
	UserID      string
	AccessToken string
	// Rooms restricts the rooms Kotae answers in. Empty means every joined
	// room, which is what a bridge deployment wants.
	Rooms []string
	// AutoJoin accepts room invites addressed to the bot. Bridges invite the
	// bot into a fresh DM room for every new WhatsApp contact.
	AutoJoin bool
	// State persists the sync token (next_batch) across restarts. When nil
	// the token lives in memory and recent room history is seen again on
	// every restart.
	State StateStore
	// Retry controls outbound send retries. Zero value uses retry.DefaultConfig.
	Retry  retry.Config
	Logger *slog.Logger
}

// MessageHandler processes one inbound text message.
type MessageHandler func(ctx context.Context, msg envelope.Message)

// Client wraps the mautrix client
type Client struct {
	client *mautrix.Client
	config Config
	logger *slog.Logger
	self   id.UserID
	rooms  map[id.RoomID]struct{}

	mu        sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
	handler   MessageHandler
	startedAt time.Time
}

// New creates a new Matrix client. It does not contact the homeserver.
func New(cfg Config) (*Client, error) {
	if cfg.Homeserver == "" || cfg.UserID == "" || cfg.AccessToken == "" {
		return nil, errors.New("matrix: homeserver, user ID and access token are required")
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.DefaultConfig
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	client, err := mautrix.NewClient(cfg.Homeserver, id.UserID(cfg.UserID), cfg.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Matrix client: %w", err)
	}

	c := &Client{
		client: client,
		config: cfg,
		logger: cfg.Logger.With("component", "matrix"),
		self:   id.UserID(cfg.UserID),
		rooms:  make(map[id.RoomID]struct{}, len(cfg.Rooms)),
	}
	for _, r := range cfg.Rooms {
		c.rooms[id.RoomID(r)] = struct{}{}
	}

	if cfg.State != nil {
		client.Store = syncStore{state: cfg.State}
		c.logger.Info("Matrix sync token: persisted in the Kotae database")
	} else {
		c.logger.Warn("Matrix sync token: no database configured, keeping it in memory")
	}

	return c, nil
}

// Start joins the configured rooms and begins syncing in the background.
// Sync failures are retried with exponential back-off until ctx is cancelled
// or Stop is called.
func (c *Client) Start(ctx context.Context, handler MessageHandler) error {
	c.mu.Lock()
	if c.cancel != nil {
		c.mu.Unlock()
		return errors.New("matrix: client already started")
	}
	syncCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	c.handler = handler
	c.startedAt = time.Now()
	c.mu.Unlock()

	syncer, ok := c.client.Syncer.(*mautrix.DefaultSyncer)
	if !ok {
		cancel()
		return errors.New("matrix: unexpected syncer type")
	}
	syncer.OnEventType(event.EventMessage, c.handleMessage)
	if c.config.AutoJoin {
		syncer.OnEventType(event.StateMember, c.handleMembership)
	}

	for _, roomID := range c.config.Rooms {
		if err := c.joinRoom(syncCtx, id.RoomID(roomID)); err != nil {
			cancel()
			return fmt.Errorf("failed to join room %s: %w", roomID, err)
		}
	}

	go c.syncLoop(syncCtx)
	return nil
}

func (c *Client) syncLoop(ctx context.Context) {
	defer close(c.done)

	const (
		backoffMin = 2 * time.Second
		backoffMax = 5 * time.Minute
	)
	backoff := backoffMin
	for {
		err := c.client.SyncWithContext(ctx)
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			// Only a clean StopSync ends a sync without error.
			return
		}
		c.logger.Error("Matrix sync stopped; reconnecting", "err", err, "backoff", backoff)
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > backoffMax {
			backoff = backoffMax
		}
	}
}

// Stop halts syncing and waits for the sync loop to exit. Safe to call more
// than once and before Start.
func (c *Client) Stop() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	c.client.StopSync()
	<-done
}

// SendText sends a plain-text reply to a room, retrying transient failures.
// A forbidden response is not retried.
func (c *Client) SendText(ctx context.Context, roomID, text string) error {
	err := retry.Do(ctx, c.config.Retry, func() error {
		_, err := c.client.SendText(ctx, id.RoomID(roomID), text)
		if errors.Is(err, mautrix.MForbidden) || errors.Is(err, mautrix.MNotFound) {
			return retry.Permanent(err)
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// UserID returns the bot's own Matrix user ID.
func (c *Client) UserID() string {
	return c.self.String()
}

func (c *Client) handleMessage(ctx context.Context, evt *event.Event) {
	c.mu.Lock()
	handler, startedAt := c.handler, c.startedAt
	c.mu.Unlock()

	msg, ok := messageFromEvent(evt, c.self, c.rooms, startedAt)
	if !ok || handler == nil {
		return
	}
	c.logger.Debug("Matrix message received",
		"room", evt.RoomID, "sender", redact.Sender(msg.SenderID), "event_id", evt.ID)
	handler(ctx, msg)
}

func (c *Client) handleMembership(ctx context.Context, evt *event.Event) {
	if !isInviteFor(evt, c.self) {
		return
	}
	if len(c.rooms) > 0 {
		if _, ok := c.rooms[evt.RoomID]; !ok {
			c.logger.Info("ignoring invite to unlisted room", "room", evt.RoomID)
			return
		}
	}
	if err := c.joinRoom(ctx, evt.RoomID); err != nil {
		c.logger.Error("failed to accept invite", "room", evt.RoomID, "err", err)
		return
	}
	c.logger.Info("accepted room invite", "room", evt.RoomID, "inviter", redact.Sender(evt.Sender.String()))
}

func (c *Client) joinRoom(ctx context.Context, roomID id.RoomID) error {
	_, err := c.client.JoinRoomByID(ctx, roomID)
	if err != nil {
		// Homeservers answer M_FORBIDDEN when the bot is already a member.
		if errors.Is(err, mautrix.MForbidden) {
			c.logger.Warn("joinRoom: already a member or access denied, continuing", "room", roomID)
			return nil
		}
		return err
	}
	return nil
}

// messageFromEvent converts a Matrix m.room.message event into an envelope.
// It drops the bot's own messages, non-text message types, rooms outside the
// allow-list and events sent before notBefore (history replayed on the
// first sync).
func messageFromEvent(evt *event.Event, self id.UserID, rooms map[id.RoomID]struct{}, notBefore time.Time) (envelope.Message, bool) {
	if evt == nil || evt.Sender == self {
		return envelope.Message{}, false
	}
	content := evt.Content.AsMessage()
	if content == nil || content.MsgType != event.MsgText {
		return envelope.Message{}, false
	}
	if len(rooms) > 0 {
		if _, ok := rooms[evt.RoomID]; !ok {
			return envelope.Message{}, false
		}
	}
	sent := time.UnixMilli(evt.Timestamp)
	if evt.Timestamp > 0 && !notBefore.IsZero() && sent.Before(notBefore) {
		return envelope.Message{}, false
	}

	return envelope.Message{
		Channel:        envelope.ChannelMatrix,
		SenderID:       evt.Sender.String(),
		ConversationID: evt.RoomID.String(),
		Text:           content.Body,
		ReceivedAt:     time.Now().UTC(),
	}, true
}

func isInviteFor(evt *event.Event, self id.UserID) bool {
	if evt == nil || evt.StateKey == nil || id.UserID(*evt.StateKey) != self {
		return false
	}
	member := evt.Content.AsMember()
	return member != nil && member.Membership == event.MembershipInvite
}
