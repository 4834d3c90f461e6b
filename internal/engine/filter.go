package engine

import (
	"math/rand"

	"exam-session-service/internal/domain"
)

// BuildAnswerHistory replays every stored result against its owning exam and
// the bank's own results against the aggregate, producing per-question
// history keyed by question id. Ids are content-stable, so the id survives
// bank rebuilds and exam edits that move a question's position.
func BuildAnswerHistory(exams []domain.Exam, qbank *domain.Exam) map[string]domain.QuestionHistory {
	hist := make(map[string]domain.QuestionHistory)

	for i := range exams {
		if exams[i].ID == QBankID {
			continue
		}
		replayResults(&exams[i], hist)
	}
	if qbank != nil {
		replayResults(qbank, hist)
	}
	return hist
}

func replayResults(exam *domain.Exam, hist map[string]domain.QuestionHistory) {
	for _, result := range exam.Results {
		for idx, optionID := range result.Answers {
			if idx < 0 || idx >= len(exam.Questions) {
				continue
			}
			q := &exam.Questions[idx]
			h := hist[q.ID]
			h.Answered = true
			if optionID == q.Answer {
				h.Correct = true
			} else {
				h.Incorrect = true
			}
			hist[q.ID] = h
		}
		for _, idx := range result.Flagged {
			if idx < 0 || idx >= len(exam.Questions) {
				continue
			}
			h := hist[exam.Questions[idx].ID]
			h.Flagged = true
			hist[exam.Questions[idx].ID] = h
		}
	}
}

// IsEligible reports whether a question passes both the tag criteria and the
// answer-history criteria of a selection.
func IsEligible(q *domain.Question, sel domain.Selection, hist map[string]domain.QuestionHistory) bool {
	if !matchesTags(q, sel) {
		return false
	}
	return matchesHistory(hist[q.ID], sel)
}

// matchesTags applies the lecture/block/week criteria. A selection with no
// criteria at all passes every question through. An untagged question (no
// lecture refs) passes only via IncludeUntagged.
func matchesTags(q *domain.Question, sel domain.Selection) bool {
	if len(sel.Blocks) == 0 && len(sel.Weeks) == 0 && len(sel.Lectures) == 0 {
		return true
	}
	if len(q.Lectures) == 0 {
		return sel.IncludeUntagged
	}
	for _, ref := range q.Lectures {
		if sel.Lectures[ref.LectureID] {
			return true
		}
		if ref.BlockID != "" && sel.Weeks[domain.WeekKey(ref.BlockID, ref.Week)] {
			return true
		}
		if sel.Blocks[ref.BlockID] {
			return true
		}
	}
	return false
}

// matchesHistory applies the answer-history rule: with IncludeAnswered off
// only never-answered questions pass; with it on, a question passes only when
// it matches at least one requested answered-filter (logical OR).
func matchesHistory(h domain.QuestionHistory, sel domain.Selection) bool {
	if !sel.IncludeAnswered {
		return !h.Answered
	}
	f := sel.AnsweredFilters
	return (f.Incorrect && h.Incorrect) || (f.Correct && h.Correct) || (f.Flagged && h.Flagged)
}

// EligibleIndices computes the index set of bank questions passing the
// selection, without mutating the bank.
func EligibleIndices(qbank *domain.Exam, sel domain.Selection, hist map[string]domain.QuestionHistory) []int {
	var eligible []int
	for i := range qbank.Questions {
		if IsEligible(&qbank.Questions[i], sel, hist) {
			eligible = append(eligible, i)
		}
	}
	return eligible
}

// DrawQuestions shuffles the eligible indices (Fisher-Yates) and truncates to
// count, clamped to [1, len(indices)]. An empty input draws nothing.
func DrawQuestions(indices []int, count int, rnd *rand.Rand) []int {
	if len(indices) == 0 {
		return nil
	}
	if count < 1 {
		count = 1
	}
	if count > len(indices) {
		count = len(indices)
	}
	drawn := make([]int, len(indices))
	copy(drawn, indices)
	rnd.Shuffle(len(drawn), func(i, j int) {
		drawn[i], drawn[j] = drawn[j], drawn[i]
	})
	return drawn[:count]
}
