package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"exam-session-service/internal/domain"
)

// ExamRepository is an in-memory implementation of app.ExamRepository.
// Exams are stored as deep copies so callers can't mutate the store through
// shared slices.
type ExamRepository struct {
	mu    sync.RWMutex
	exams map[string]domain.Exam
}

func NewExamRepository() *ExamRepository {
	return &ExamRepository{exams: make(map[string]domain.Exam)}
}

func (r *ExamRepository) ListExams(_ context.Context) ([]domain.Exam, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Exam, 0, len(r.exams))
	for _, exam := range r.exams {
		out = append(out, deepCopyExam(exam))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *ExamRepository) GetExam(_ context.Context, id string) (domain.Exam, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exam, ok := r.exams[id]
	if !ok {
		return domain.Exam{}, domain.ErrExamNotFound
	}
	return deepCopyExam(exam), nil
}

func (r *ExamRepository) UpsertExam(_ context.Context, exam domain.Exam) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exams[exam.ID] = deepCopyExam(exam)
	return nil
}

func (r *ExamRepository) DeleteExam(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.exams, id)
	return nil
}

// deepCopyExam round-trips through JSON, the same shape the durable stores
// persist, so in-memory behavior matches them.
func deepCopyExam(exam domain.Exam) domain.Exam {
	data, err := json.Marshal(exam)
	if err != nil {
		return exam
	}
	var out domain.Exam
	if err := json.Unmarshal(data, &out); err != nil {
		return exam
	}
	return out
}
