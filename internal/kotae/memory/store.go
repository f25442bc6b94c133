package memory

import (
	"container/list"
	"sync"
	"time"
)

// Config holds configuration for the Store.
type Config struct {
	// MaxSenders bounds the number of tracked conversations. When a new
	// sender would exceed it, the least recently seen idle record is
	// evicted. Default: 10000.
	MaxSenders int

	// TTL is the idle time after which EvictExpired drops a record.
	// Default: 24 hours.
	TTL time.Duration

	// OnEvict, when set, is called once per evicted sender after the store
	// lock has been released.
	OnEvict func(senderID string, reason EvictReason)
}

// EvictReason says why a record left the store.
type EvictReason string

const (
	EvictCapacity EvictReason = "capacity"
	EvictExpired  EvictReason = "expired"
)

// DefaultConfig returns a Config with the documented defaults.
func DefaultConfig() Config {
	return Config{
		MaxSenders: 10000,
		TTL:        24 * time.Hour,
	}
}

// Store maps sender IDs to conversation records. It is safe for concurrent
// use: updates to one sender are serialized, different senders proceed in
// parallel.
type Store struct {
	mu      sync.Mutex // guards entries, lru and every entry's touched/refs
	config  Config
	entries map[string]*entry
	lru     *list.List // front is most recently seen; values are *entry
}

type entry struct {
	id      string
	mu      sync.Mutex // serializes read-modify-write of rec
	rec     Record
	elem    *list.Element
	touched time.Time
	refs    int // in-flight Update calls; entries with refs > 0 are never evicted
}

type eviction struct {
	senderID string
	reason   EvictReason
}

// NewStore creates a Store with the given configuration.
func NewStore(cfg Config) *Store {
	if cfg.MaxSenders <= 0 {
		cfg.MaxSenders = DefaultConfig().MaxSenders
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultConfig().TTL
	}
	return &Store{
		config:  cfg,
		entries: make(map[string]*entry),
		lru:     list.New(),
	}
}

// GetOrCreate returns a snapshot of the record for senderID, creating an
// empty one first if needed. It never fails.
func (s *Store) GetOrCreate(senderID string) Record {
	return s.updateAt(senderID, time.Now(), nil)
}

// Update runs fn on the record for senderID while holding that sender's
// lock, creating the record if needed, and returns a snapshot taken after fn
// returns. fn must not retain the pointer. A nil fn only touches the record.
func (s *Store) Update(senderID string, fn func(*Record)) Record {
	return s.updateAt(senderID, time.Now(), fn)
}

// updateAt is the time-injectable core of Update (for testing).
func (s *Store) updateAt(senderID string, now time.Time, fn func(*Record)) Record {
	e, evicted := s.acquire(senderID, now)
	defer s.release(e)
	s.notify(evicted)

	e.mu.Lock()
	defer e.mu.Unlock()

	if fn != nil {
		fn(&e.rec)
	}
	e.rec.SenderID = senderID
	e.rec.LastSeenAt = now
	return e.rec.clone()
}

// Get returns a snapshot of the record for senderID without creating one.
func (s *Store) Get(senderID string) (Record, bool) {
	s.mu.Lock()
	e, ok := s.entries[senderID]
	if ok {
		e.refs++
	}
	s.mu.Unlock()
	if !ok {
		return Record{}, false
	}
	defer s.release(e)

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rec.clone(), true
}

// Len returns the number of tracked senders.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// EvictExpired drops every idle record last seen more than TTL before now
// and returns the evicted sender IDs.
func (s *Store) EvictExpired(now time.Time) []string {
	s.mu.Lock()
	var evicted []eviction
	for el := s.lru.Back(); el != nil; {
		e := el.Value.(*entry)
		prev := el.Prev()
		if now.Sub(e.touched) <= s.config.TTL {
			// Everything further to the front was seen more recently.
			break
		}
		if e.refs == 0 {
			s.remove(e)
			evicted = append(evicted, eviction{senderID: e.id, reason: EvictExpired})
		}
		el = prev
	}
	s.mu.Unlock()

	s.notify(evicted)
	ids := make([]string, 0, len(evicted))
	for _, ev := range evicted {
		ids = append(ids, ev.senderID)
	}
	return ids
}

// acquire returns the entry for senderID with its reference count raised,
// creating it (and evicting for capacity) when absent.
func (s *Store) acquire(senderID string, now time.Time) (*entry, []eviction) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[senderID]; ok {
		e.refs++
		e.touched = now
		s.lru.MoveToFront(e.elem)
		return e, nil
	}

	var evicted []eviction
	for len(s.entries) >= s.config.MaxSenders {
		victim := s.oldestIdle()
		if victim == nil {
			// Every record is in use; allow a temporary overshoot.
			break
		}
		s.remove(victim)
		evicted = append(evicted, eviction{senderID: victim.id, reason: EvictCapacity})
	}

	e := &entry{
		id: senderID,
		rec: Record{
			SenderID:   senderID,
			CreatedAt:  now,
			LastSeenAt: now,
		},
		touched: now,
		refs:    1,
	}
	e.elem = s.lru.PushFront(e)
	s.entries[senderID] = e
	return e, evicted
}

func (s *Store) release(e *entry) {
	s.mu.Lock()
	e.refs--
	s.mu.Unlock()
}

// oldestIdle returns the least recently seen entry not in use. Must be
// called with mu held.
func (s *Store) oldestIdle() *entry {
	for el := s.lru.Back(); el != nil; el = el.Prev() {
		if e := el.Value.(*entry); e.refs == 0 {
			return e
		}
	}
	return nil
}

// remove deletes e from the index and the LRU list. Must be called with mu
// held.
func (s *Store) remove(e *entry) {
	s.lru.Remove(e.elem)
	delete(s.entries, e.id)
}

func (s *Store) notify(evicted []eviction) {
	if s.config.OnEvict == nil {
		return
	}
	for _, ev := range evicted {
		s.config.OnEvict(ev.senderID, ev.reason)
	}
}
