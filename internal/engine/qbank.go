package engine

import (
	"fmt"
	"sort"
	"strings"

	"exam-session-service/internal/domain"
)

// QBankID is the reserved exam id of the question bank aggregate.
const QBankID = "qbank"

// QBankTitle is the display title of the aggregate.
const QBankTitle = "Question Bank"

// QBankSignature derives a cache key from the state of the source exams. Any
// change to an exam's id, update time, or question count produces a new
// signature, which is the sole invalidation rule for the aggregate.
func QBankSignature(exams []domain.Exam) string {
	parts := make([]string, 0, len(exams))
	for _, exam := range exams {
		if exam.ID == QBankID {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s:%d:%d", exam.ID, exam.UpdatedAt.UnixMilli(), len(exam.Questions)))
	}
	sort.Strings(parts)
	return strings.Join(parts, "|")
}

// BuildQBank returns the question bank aggregate for the given exams. When
// existing is non-nil and its signature still matches, existing is returned
// untouched (same pointer) and no rebuild happens. A rebuild concatenates
// every question from every non-bank exam, stamped with its source exam and a
// sequential OriginalIndex in aggregate space; the prior aggregate's results
// are carried over in append order so attempt history survives rebuilds.
func BuildQBank(exams []domain.Exam, existing *domain.Exam) *domain.Exam {
	sig := QBankSignature(exams)
	if existing != nil && existing.Signature == sig {
		return existing
	}

	var questions []domain.Question
	var latest int64
	for _, exam := range exams {
		if exam.ID == QBankID {
			continue
		}
		if ts := exam.UpdatedAt.UnixMilli(); ts > latest {
			latest = ts
		}
		for i := range exam.Questions {
			q := exam.Questions[i]
			idx := len(questions)
			q.SourceExamID = exam.ID
			q.SourceExamTitle = exam.Title
			q.OriginalIndex = &idx
			questions = append(questions, q)
		}
	}

	bank := &domain.Exam{
		ID:        QBankID,
		Title:     QBankTitle,
		TimerMode: domain.TimerModeUntimed,
		Questions: questions,
		Results:   []domain.Result{},
		Signature: sig,
	}
	if existing != nil {
		bank.Results = append(bank.Results, existing.Results...)
		bank.UpdatedAt = existing.UpdatedAt
	}
	return bank
}
