package engine

import (
	"sync"
	"time"

	"exam-session-service/internal/domain"
)

// fakeClock drives session time deterministically in tests.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func sampleExam() *domain.Exam {
	return &domain.Exam{
		ID:        "exam-1",
		Title:     "Cardio blocks",
		TimerMode: domain.TimerModeUntimed,
		Questions: []domain.Question{
			{
				ID:   "q1",
				Stem: "First-line therapy?",
				Options: []domain.Option{
					{ID: "a", Text: "Aspirin"},
					{ID: "b", Text: "Heparin"},
				},
				Answer:   "a",
				Lectures: []domain.LectureRef{{LectureID: "lec-1", BlockID: "blk-1", Week: 2}},
			},
			{
				ID:   "q2",
				Stem: "Most likely diagnosis?",
				Options: []domain.Option{
					{ID: "a", Text: "Pericarditis"},
					{ID: "b", Text: "STEMI"},
					{ID: "c", Text: "PE"},
				},
				Answer:   "b",
				Lectures: []domain.LectureRef{{LectureID: "lec-2", BlockID: "blk-1", Week: 3}},
			},
			{
				ID:   "q3",
				Stem: "Next best step?",
				Options: []domain.Option{
					{ID: "a", Text: "Echo"},
					{ID: "b", Text: "CT"},
					{ID: "c", Text: "Catheterization"},
				},
				Answer: "c",
			},
		},
		Results:   []domain.Result{},
		UpdatedAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func timedExam(secondsPerQuestion int) *domain.Exam {
	exam := sampleExam()
	exam.TimerMode = domain.TimerModeTimed
	exam.SecondsPerQuestion = secondsPerQuestion
	return exam
}
