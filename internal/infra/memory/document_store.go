package memory

import (
	"context"
	"sync"
	"time"

	"ai-quiz-service/internal/domain"
)

// DocumentStore keeps extracted documents in process memory until ttl elapses.
type DocumentStore struct {
	ttl   time.Duration
	clock func() time.Time

	mu   sync.RWMutex
	docs map[string]storedDocument
}

type storedDocument struct {
	doc       domain.Document
	expiresAt time.Time
}

// NewDocumentStore creates a store; a non-positive ttl keeps documents forever.
func NewDocumentStore(ttl time.Duration) *DocumentStore {
	return &DocumentStore{
		ttl:   ttl,
		clock: time.Now,
		docs:  make(map[string]storedDocument),
	}
}

func (s *DocumentStore) Save(_ context.Context, doc domain.Document) error {
	entry := storedDocument{doc: doc}
	if s.ttl > 0 {
		entry.expiresAt = s.clock().Add(s.ttl)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked()
	s.docs[doc.ID] = entry
	return nil
}

func (s *DocumentStore) Get(_ context.Context, id string) (domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.docs[id]
	if !ok || s.expired(entry) {
		return domain.Document{}, domain.ErrDocumentNotFound
	}
	return entry.doc, nil
}

func (s *DocumentStore) expired(entry storedDocument) bool {
	return !entry.expiresAt.IsZero() && !entry.expiresAt.After(s.clock())
}

func (s *DocumentStore) pruneLocked() {
	for id, entry := range s.docs {
		if s.expired(entry) {
			delete(s.docs, id)
		}
	}
}
