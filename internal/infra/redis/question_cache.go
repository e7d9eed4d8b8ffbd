package redis

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"time"

	"ai-quiz-service/internal/app"
	"ai-quiz-service/internal/domain"
	"ai-quiz-service/internal/logger"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// fillTimeout bounds one shared upstream call made on a cache miss.
const fillTimeout = 2 * time.Minute

// QuestionCache caches generated question sets in Redis and falls back to the
// wrapped source on a miss. Sets are stored as JSON under quiz:questions:{key}.
type QuestionCache struct {
	client *redis.Client
	source app.QuestionSource
	ttl    time.Duration
	log    *logger.Logger
	sf     singleflight.Group
	rndMu  sync.Mutex
	rnd    *rand.Rand
}

func NewQuestionCache(client *redis.Client, source app.QuestionSource, ttl time.Duration, log *logger.Logger) *QuestionCache {
	if log == nil {
		log = logger.Nop()
	}
	return &QuestionCache{
		client: client,
		source: source,
		ttl:    ttl,
		log:    log,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *QuestionCache) Generate(ctx context.Context, topic string, count int, difficulty domain.Difficulty) ([]domain.Question, error) {
	key := c.key(domain.QuestionSetKey(topic, count, difficulty))

	if qs, ok := c.lookup(ctx, key); ok {
		return qs, nil
	}

	ch := c.sf.DoChan(key, func() (interface{}, error) {
		// Detached from the first caller: other waiters share this result.
		fillCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fillTimeout)
		defer cancel()

		// Re-check cache in case another goroutine filled it.
		if qs, ok := c.lookup(fillCtx, key); ok {
			return qs, nil
		}

		qs, err := c.source.Generate(fillCtx, topic, count, difficulty)
		if err != nil {
			return nil, err
		}
		if domain.ValidateQuestions(qs) != nil {
			return qs, nil
		}
		payload, err := json.Marshal(qs)
		if err != nil {
			return qs, nil
		}
		if err := c.client.Set(fillCtx, key, payload, c.ttlWithJitter()).Err(); err != nil {
			c.log.Warn("question cache write failed", "key", key, "error", err.Error())
		}
		return qs, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return cloneQuestions(res.Val.([]domain.Question)), nil
	}
}

func (c *QuestionCache) lookup(ctx context.Context, key string) ([]domain.Question, bool) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("question cache read failed", "key", key, "error", err.Error())
		}
		return nil, false
	}
	var qs []domain.Question
	if err := json.Unmarshal(raw, &qs); err != nil || len(qs) == 0 {
		return nil, false
	}
	return qs, true
}

func (c *QuestionCache) key(setKey string) string {
	return "quiz:questions:" + setKey
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

// cloneQuestions gives every waiter its own copy of a shared set.
func cloneQuestions(qs []domain.Question) []domain.Question {
	out := make([]domain.Question, len(qs))
	for i, q := range qs {
		q.Options = append([]string(nil), q.Options...)
		out[i] = q
	}
	return out
}
