// Package memory keeps the per-sender conversation state the responder uses
// to avoid repeating itself.
//
// State is deliberately small: the last matched intent, the topics seen so
// far and an inferred business type. Nothing is persisted; a restart starts
// every conversation from scratch. The store is bounded both by a maximum
// number of tracked senders (least recently seen is evicted first) and by an
// idle TTL enforced through EvictExpired.
package memory

import (
	"time"

	"github.com/bdobrica/kotae/internal/kotae/intent"
)

// BusinessEducation is the only business type currently inferred.
const BusinessEducation = "education"

// Record is the conversation memory for one sender.
type Record struct {
	SenderID string

	// LastIntent is the intent matched for the previous message, or
	// intent.None for a brand-new conversation.
	LastIntent intent.Intent

	// TopicsSeen is append-only and may contain duplicates. It is kept for
	// reporting and is never consulted for branching.
	TopicsSeen []intent.Intent

	// BusinessType is inferred once (e.g. "education") and tailors later
	// replies. Empty means unknown.
	BusinessType string

	// Turns counts the messages processed for this sender.
	Turns int

	CreatedAt  time.Time
	LastSeenAt time.Time
}

// AddTopic appends topic to TopicsSeen.
func (r *Record) AddTopic(topic intent.Intent) {
	r.TopicsSeen = append(r.TopicsSeen, topic)
}

// clone returns a deep copy of r.
func (r *Record) clone() Record {
	cp := *r
	if r.TopicsSeen != nil {
		cp.TopicsSeen = make([]intent.Intent, len(r.TopicsSeen))
		copy(cp.TopicsSeen, r.TopicsSeen)
	}
	return cp
}
