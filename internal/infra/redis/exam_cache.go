package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"exam-session-service/internal/app"
	"exam-session-service/internal/domain"
)

// ExamCache wraps an ExamRepository with a per-exam Redis JSON cache.
// Reads fall back to the backing repository on cache miss (deduplicated via
// singleflight); writes go through and refresh the cached value. List always
// hits the backing store since it is the source of truth for membership.
type ExamCache struct {
	client *redis.Client
	source app.ExamRepository
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewExamCache(client *redis.Client, source app.ExamRepository, ttl time.Duration) *ExamCache {
	return &ExamCache{
		client: client,
		source: source,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *ExamCache) ListExams(ctx context.Context) ([]domain.Exam, error) {
	return c.source.ListExams(ctx)
}

func (c *ExamCache) GetExam(ctx context.Context, id string) (domain.Exam, error) {
	if exam, ok := c.cached(ctx, id); ok {
		return exam, nil
	}

	result, err, _ := c.sf.Do(id, func() (interface{}, error) {
		// Re-check in case another goroutine filled the cache.
		if exam, ok := c.cached(ctx, id); ok {
			return exam, nil
		}
		exam, err := c.source.GetExam(ctx, id)
		if err != nil {
			return domain.Exam{}, err
		}
		c.fill(ctx, exam)
		return exam, nil
	})
	if err != nil {
		return domain.Exam{}, err
	}
	return result.(domain.Exam), nil
}

func (c *ExamCache) UpsertExam(ctx context.Context, exam domain.Exam) error {
	if err := c.source.UpsertExam(ctx, exam); err != nil {
		return err
	}
	c.fill(ctx, exam)
	return nil
}

func (c *ExamCache) DeleteExam(ctx context.Context, id string) error {
	if err := c.source.DeleteExam(ctx, id); err != nil {
		return err
	}
	if err := c.client.Del(ctx, c.key(id)).Err(); err != nil {
		return fmt.Errorf("invalidate exam cache: %w", err)
	}
	return nil
}

func (c *ExamCache) cached(ctx context.Context, id string) (domain.Exam, bool) {
	data, err := c.client.Get(ctx, c.key(id)).Bytes()
	if err != nil {
		return domain.Exam{}, false
	}
	var exam domain.Exam
	if err := json.Unmarshal(data, &exam); err != nil {
		return domain.Exam{}, false
	}
	return exam, true
}

// fill is best-effort; a cache write failure never fails the operation.
func (c *ExamCache) fill(ctx context.Context, exam domain.Exam) {
	data, err := json.Marshal(exam)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, c.key(exam.ID), data, c.ttlWithJitter()).Err()
}

func (c *ExamCache) key(id string) string {
	return "exam:content:" + id
}

func (c *ExamCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
