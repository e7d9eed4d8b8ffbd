package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ai-quiz-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

// DocumentStore keeps extracted documents as JSON under quiz:document:{id}.
type DocumentStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewDocumentStore(client *redis.Client, ttl time.Duration) *DocumentStore {
	return &DocumentStore{client: client, ttl: ttl}
}

func (s *DocumentStore) Save(ctx context.Context, doc domain.Document) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	if err := s.client.Set(ctx, s.key(doc.ID), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("store document: %w", err)
	}
	return nil
}

func (s *DocumentStore) Get(ctx context.Context, id string) (domain.Document, error) {
	raw, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Document{}, domain.ErrDocumentNotFound
	}
	if err != nil {
		return domain.Document{}, fmt.Errorf("load document: %w", err)
	}
	var doc domain.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return domain.Document{}, fmt.Errorf("decode document: %w", err)
	}
	return doc, nil
}

func (s *DocumentStore) key(id string) string {
	return "quiz:document:" + id
}
