package redis

import (
	"context"
	"testing"
	"time"

	"exam-session-service/internal/domain"
	"exam-session-service/internal/infra/memory"
)

func TestExamCacheServesFromRedis(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	defer mr.Close()

	source := &countingRepository{ExamRepository: memory.NewExamRepository()}
	if err := source.UpsertExam(ctx, sampleExam()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	cache := NewExamCache(client, source, time.Minute)

	if _, err := cache.GetExam(ctx, "exam-1"); err != nil {
		t.Fatalf("get: %v", err)
	}
	if source.gets != 1 {
		t.Fatalf("expected one source read, got %d", source.gets)
	}

	// Second read is a cache hit.
	if _, err := cache.GetExam(ctx, "exam-1"); err != nil {
		t.Fatalf("get cached: %v", err)
	}
	if source.gets != 1 {
		t.Fatalf("expected cache hit, source reads %d", source.gets)
	}
}

func TestExamCacheWriteThroughAndInvalidate(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	defer mr.Close()

	source := memory.NewExamRepository()
	cache := NewExamCache(client, source, time.Minute)

	exam := sampleExam()
	if err := cache.UpsertExam(ctx, exam); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if !mr.Exists("exam:content:exam-1") {
		t.Fatalf("expected upsert to refresh the cache")
	}

	if err := cache.DeleteExam(ctx, "exam-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if mr.Exists("exam:content:exam-1") {
		t.Fatalf("expected delete to invalidate the cache")
	}
}

type countingRepository struct {
	*memory.ExamRepository
	gets int
}

func (r *countingRepository) GetExam(ctx context.Context, id string) (domain.Exam, error) {
	r.gets++
	return r.ExamRepository.GetExam(ctx, id)
}

func sampleExam() domain.Exam {
	return domain.Exam{
		ID:        "exam-1",
		Title:     "Cardio blocks",
		TimerMode: domain.TimerModeUntimed,
		Questions: []domain.Question{
			{ID: "q1", Stem: "First-line therapy?", Options: []domain.Option{{ID: "a"}, {ID: "b"}}, Answer: "a"},
		},
		Results: []domain.Result{},
	}
}
