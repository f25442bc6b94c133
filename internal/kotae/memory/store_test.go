package memory

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bdobrica/kotae/internal/kotae/intent"
)

func TestStore_GetOrCreate_ZeroValued(t *testing.T) {
	s := NewStore(DefaultConfig())

	rec := s.GetOrCreate("+15551234567")
	if rec.SenderID != "+15551234567" {
		t.Errorf("SenderID: got %q", rec.SenderID)
	}
	if rec.LastIntent != intent.None {
		t.Errorf("LastIntent: expected none, got %q", rec.LastIntent)
	}
	if rec.BusinessType != "" {
		t.Errorf("BusinessType: expected empty, got %q", rec.BusinessType)
	}
	if len(rec.TopicsSeen) != 0 {
		t.Errorf("TopicsSeen: expected empty, got %v", rec.TopicsSeen)
	}
	if s.Len() != 1 {
		t.Errorf("expected 1 tracked sender, got %d", s.Len())
	}

	// A second call returns the same record rather than a new one.
	s.Update("+15551234567", func(r *Record) { r.LastIntent = intent.Pricing })
	if got := s.GetOrCreate("+15551234567"); got.LastIntent != intent.Pricing {
		t.Errorf("expected existing record, got LastIntent %q", got.LastIntent)
	}
	if s.Len() != 1 {
		t.Errorf("expected 1 tracked sender, got %d", s.Len())
	}
}

func TestStore_SnapshotIsolation(t *testing.T) {
	s := NewStore(DefaultConfig())

	snap := s.Update("alice", func(r *Record) { r.AddTopic(intent.Education) })
	snap.TopicsSeen[0] = intent.Quote
	snap.BusinessType = "mutated"

	got, ok := s.Get("alice")
	if !ok {
		t.Fatal("expected record")
	}
	if got.TopicsSeen[0] != intent.Education {
		t.Errorf("snapshot mutation leaked into store: %v", got.TopicsSeen)
	}
	if got.BusinessType != "" {
		t.Errorf("snapshot mutation leaked into store: %q", got.BusinessType)
	}
}

func TestStore_SendersAreIndependent(t *testing.T) {
	s := NewStore(DefaultConfig())

	s.Update("alice", func(r *Record) {
		r.LastIntent = intent.Education
		r.BusinessType = BusinessEducation
	})
	bob := s.GetOrCreate("bob")
	if bob.LastIntent != intent.None || bob.BusinessType != "" {
		t.Errorf("bob should be untouched, got %+v", bob)
	}
}

func TestStore_Get_DoesNotCreate(t *testing.T) {
	s := NewStore(DefaultConfig())
	if _, ok := s.Get("ghost"); ok {
		t.Fatal("expected no record")
	}
	if s.Len() != 0 {
		t.Fatalf("Get must not create records, have %d", s.Len())
	}
}

func TestStore_EvictExpired(t *testing.T) {
	var evicted []string
	s := NewStore(Config{
		MaxSenders: 10,
		TTL:        10 * time.Minute,
		OnEvict: func(id string, reason EvictReason) {
			if reason != EvictExpired {
				t.Errorf("unexpected reason %q", reason)
			}
			evicted = append(evicted, id)
		},
	})

	now := time.Date(2026, 10, 16, 10, 0, 0, 0, time.UTC)
	s.updateAt("alice", now, nil)
	s.updateAt("bob", now.Add(5*time.Minute), nil)

	// At +12m only alice has been idle for more than 10 minutes.
	ids := s.EvictExpired(now.Add(12 * time.Minute))
	if len(ids) != 1 || ids[0] != "alice" {
		t.Fatalf("expected [alice], got %v", ids)
	}
	if _, ok := s.Get("alice"); ok {
		t.Error("alice should be gone")
	}
	if _, ok := s.Get("bob"); !ok {
		t.Error("bob should still be tracked")
	}

	ids = s.EvictExpired(now.Add(20 * time.Minute))
	if len(ids) != 1 || ids[0] != "bob" {
		t.Fatalf("expected [bob], got %v", ids)
	}
	if len(evicted) != 2 {
		t.Errorf("expected 2 OnEvict calls, got %d", len(evicted))
	}
	if s.Len() != 0 {
		t.Errorf("expected empty store, got %d", s.Len())
	}
}

func TestStore_ActivityRefreshesTTL(t *testing.T) {
	s := NewStore(Config{MaxSenders: 10, TTL: 10 * time.Minute})

	now := time.Date(2026, 10, 16, 10, 0, 0, 0, time.UTC)
	s.updateAt("alice", now, nil)
	s.updateAt("alice", now.Add(8*time.Minute), nil)

	if ids := s.EvictExpired(now.Add(15 * time.Minute)); len(ids) != 0 {
		t.Fatalf("alice was active at +8m and must survive, evicted %v", ids)
	}
}

func TestStore_CapacityEvictsLeastRecentlySeen(t *testing.T) {
	var evicted []string
	s := NewStore(Config{
		MaxSenders: 2,
		TTL:        time.Hour,
		OnEvict: func(id string, reason EvictReason) {
			if reason != EvictCapacity {
				t.Errorf("unexpected reason %q", reason)
			}
			evicted = append(evicted, id)
		},
	})

	now := time.Date(2026, 10, 16, 10, 0, 0, 0, time.UTC)
	s.updateAt("alice", now, nil)
	s.updateAt("bob", now.Add(time.Minute), nil)
	// Touch alice so bob becomes the least recently seen.
	s.updateAt("alice", now.Add(2*time.Minute), nil)
	s.updateAt("carol", now.Add(3*time.Minute), nil)

	if s.Len() != 2 {
		t.Fatalf("expected 2 tracked senders, got %d", s.Len())
	}
	if len(evicted) != 1 || evicted[0] != "bob" {
		t.Fatalf("expected bob to be evicted, got %v", evicted)
	}
	if _, ok := s.Get("alice"); !ok {
		t.Error("alice should still be tracked")
	}
	if _, ok := s.Get("carol"); !ok {
		t.Error("carol should be tracked")
	}
}

func TestStore_DefaultsApplied(t *testing.T) {
	s := NewStore(Config{})
	if s.config.MaxSenders != DefaultConfig().MaxSenders {
		t.Errorf("MaxSenders default: got %d", s.config.MaxSenders)
	}
	if s.config.TTL != DefaultConfig().TTL {
		t.Errorf("TTL default: got %v", s.config.TTL)
	}
}

func TestStore_ConcurrentUpdatesSameSender(t *testing.T) {
	s := NewStore(DefaultConfig())

	const n = 200
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Update("alice", func(r *Record) {
				// Non-atomic read-modify-write; only correct if serialized.
				turns := r.Turns
				r.AddTopic(intent.Pricing)
				r.Turns = turns + 1
			})
		}()
	}
	wg.Wait()

	rec, _ := s.Get("alice")
	if rec.Turns != n {
		t.Errorf("expected %d turns, got %d", n, rec.Turns)
	}
	if len(rec.TopicsSeen) != n {
		t.Errorf("expected %d topics, got %d", n, len(rec.TopicsSeen))
	}
}

func TestStore_ConcurrentSenders(t *testing.T) {
	s := NewStore(DefaultConfig())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("sender-%d", i)
			for j := 0; j < 10; j++ {
				s.Update(id, func(r *Record) { r.Turns++ })
			}
		}(i)
	}
	wg.Wait()

	if s.Len() != 50 {
		t.Fatalf("expected 50 senders, got %d", s.Len())
	}
	for i := 0; i < 50; i++ {
		rec, _ := s.Get(fmt.Sprintf("sender-%d", i))
		if rec.Turns != 10 {
			t.Errorf("sender-%d: expected 10 turns, got %d", i, rec.Turns)
		}
	}
}

// tracked reports whether senderID is in the index without taking the
// sender's lock, so it is safe while that sender is mid-update.
func tracked(s *Store, senderID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[senderID]
	return ok
}

func TestStore_RecordInUpdateIsNeverEvicted(t *testing.T) {
	s := NewStore(Config{MaxSenders: 1, TTL: time.Minute})
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	entered := make(chan struct{})
	unblock := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.updateAt("alice", now, func(*Record) {
			close(entered)
			<-unblock
		})
	}()
	<-entered

	// alice is the only record and she is busy: bob overshoots the bound.
	s.updateAt("bob", now.Add(time.Second), nil)
	if got := s.Len(); got != 2 {
		t.Fatalf("expected temporary overshoot to 2 records, got %d", got)
	}

	// carol evicts the idle bob, never the older but busy alice.
	s.updateAt("carol", now.Add(2*time.Second), nil)
	if !tracked(s, "alice") {
		t.Fatal("alice evicted for capacity while updating")
	}
	if tracked(s, "bob") {
		t.Error("bob should have been evicted for capacity")
	}

	evicted := s.EvictExpired(now.Add(time.Hour))
	if !tracked(s, "alice") {
		t.Fatal("alice expired while updating")
	}
	if len(evicted) != 1 || evicted[0] != "carol" {
		t.Errorf("expected only carol to expire, got %v", evicted)
	}

	close(unblock)
	<-done

	evicted = s.EvictExpired(now.Add(2 * time.Hour))
	if len(evicted) != 1 || evicted[0] != "alice" {
		t.Errorf("expected alice to expire once released, got %v", evicted)
	}
	if s.Len() != 0 {
		t.Errorf("expected empty store, got %d records", s.Len())
	}
}

func TestStore_PanickingOnEvictReleasesRecord(t *testing.T) {
	var calls int
	s := NewStore(Config{
		MaxSenders: 1,
		TTL:        time.Minute,
		OnEvict: func(string, EvictReason) {
			calls++
			if calls == 1 {
				panic("hook failed")
			}
		},
	})
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	s.updateAt("alice", now, nil)
	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("expected OnEvict panic to propagate")
			}
		}()
		s.updateAt("bob", now.Add(time.Second), nil)
	}()

	evicted := s.EvictExpired(now.Add(time.Hour))
	if len(evicted) != 1 || evicted[0] != "bob" {
		t.Errorf("bob must still be evictable after the hook panicked, got %v", evicted)
	}
}
