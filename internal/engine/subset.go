package engine

import (
	"github.com/google/uuid"

	"exam-session-service/internal/domain"
)

// BuildSubset derives a new exam containing exam.Questions at the given
// positions, in the order given. Invalid, out-of-range, and duplicate indices
// are silently dropped. Each derived question carries OriginalIndex so a later
// finalize can remap back into the source exam's index space. An empty valid
// index set yields (nil, false); callers treat that as a no-op, not an error.
func BuildSubset(exam *domain.Exam, indices []int) (*domain.Exam, bool) {
	valid := validIndices(indices, len(exam.Questions))
	if len(valid) == 0 {
		return nil, false
	}

	questions := make([]domain.Question, 0, len(valid))
	for _, idx := range valid {
		q := exam.Questions[idx]
		orig := idx
		if q.OriginalIndex != nil {
			// Subsetting an already-derived exam: keep provenance pointing at
			// the real owning exam, not at the intermediate.
			orig = *q.OriginalIndex
		}
		q.OriginalIndex = &orig
		if q.SourceExamID == "" {
			q.SourceExamID = exam.ID
			q.SourceExamTitle = exam.Title
		}
		questions = append(questions, q)
	}

	subset := &domain.Exam{
		ID:                 uuid.NewString(),
		Title:              exam.Title,
		TimerMode:          exam.TimerMode,
		SecondsPerQuestion: exam.SecondsPerQuestion,
		Questions:          questions,
		Results:            []domain.Result{},
		UpdatedAt:          exam.UpdatedAt,
	}
	return subset, true
}

// BuildSubsetWithResult builds a subset and reindexes a prior result from the
// source exam's index space into the subset's, so the subset can be reviewed
// against that attempt. Correct/Answered/Total and the change summary are
// recomputed for the subset, never copied.
func BuildSubsetWithResult(exam *domain.Exam, result *domain.Result, indices []int) (*domain.Exam, *domain.Result, bool) {
	subset, ok := BuildSubset(exam, indices)
	if !ok {
		return nil, nil, false
	}

	flaggedSet := make(map[int]bool, len(result.Flagged))
	for _, idx := range result.Flagged {
		flaggedSet[idx] = true
	}

	remapped := domain.Result{
		ID:            result.ID,
		When:          result.When,
		Total:         len(subset.Questions),
		Answers:       make(map[int]string, len(subset.Questions)),
		DurationMs:    result.DurationMs,
		QuestionStats: make([]domain.Stat, len(subset.Questions)),
		AutoSubmitted: result.AutoSubmitted,
	}

	answers := make(map[int]string, len(subset.Questions))
	for newIdx, q := range subset.Questions {
		origIdx := *q.OriginalIndex
		if ans, ok := result.Answers[origIdx]; ok {
			remapped.Answers[newIdx] = ans
			answers[newIdx] = ans
		}
		if flaggedSet[origIdx] {
			remapped.Flagged = append(remapped.Flagged, newIdx)
		}
		if origIdx < len(result.QuestionStats) {
			remapped.QuestionStats[newIdx] = result.QuestionStats[origIdx]
		}
	}

	for newIdx, q := range subset.Questions {
		ans, ok := remapped.Answers[newIdx]
		if !ok {
			continue
		}
		remapped.Answered++
		if ans == q.Answer {
			remapped.Correct++
		}
	}
	remapped.ChangeSummary = SummarizeAnswerChanges(remapped.QuestionStats, subset, answers)

	return subset, &remapped, true
}

// validIndices filters indices down to unique in-range positions, preserving
// the given order.
func validIndices(indices []int, n int) []int {
	seen := make(map[int]bool, len(indices))
	valid := make([]int, 0, len(indices))
	for _, idx := range indices {
		if idx < 0 || idx >= n || seen[idx] {
			continue
		}
		seen[idx] = true
		valid = append(valid, idx)
	}
	return valid
}
