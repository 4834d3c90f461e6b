package engine

import (
	"github.com/google/uuid"

	"exam-session-service/internal/domain"
)

// NormalizeExam repairs a loaded exam in place and reports whether anything
// was changed. Malformed data is repaired, never rejected: missing ids are
// generated, nil slices coerced, and an answer that references no option is
// defaulted to the first option. Normalizing an already-normalized exam is a
// no-op.
func NormalizeExam(exam *domain.Exam) bool {
	changed := false

	if exam.ID == "" {
		exam.ID = uuid.NewString()
		changed = true
	}
	if exam.TimerMode != domain.TimerModeTimed && exam.TimerMode != domain.TimerModeUntimed {
		exam.TimerMode = domain.TimerModeUntimed
		changed = true
	}
	if exam.Questions == nil {
		exam.Questions = []domain.Question{}
		changed = true
	}
	if exam.Results == nil {
		exam.Results = []domain.Result{}
		changed = true
	}

	for i := range exam.Questions {
		if normalizeQuestion(&exam.Questions[i]) {
			changed = true
		}
	}
	return changed
}

func normalizeQuestion(q *domain.Question) bool {
	changed := false
	if q.ID == "" {
		q.ID = uuid.NewString()
		changed = true
	}
	if q.Options == nil {
		q.Options = []domain.Option{}
		changed = true
	}
	for i := range q.Options {
		if q.Options[i].ID == "" {
			q.Options[i].ID = uuid.NewString()
			changed = true
		}
	}
	if !hasOption(q, q.Answer) {
		// Dangling answer reference: default to the first option. A question
		// with zero options keeps an empty answer and is not answerable.
		repaired := ""
		if len(q.Options) > 0 {
			repaired = q.Options[0].ID
		}
		if q.Answer != repaired {
			q.Answer = repaired
			changed = true
		}
	}
	return changed
}

func hasOption(q *domain.Question, optionID string) bool {
	if optionID == "" {
		return len(q.Options) == 0
	}
	for _, opt := range q.Options {
		if opt.ID == optionID {
			return true
		}
	}
	return false
}
