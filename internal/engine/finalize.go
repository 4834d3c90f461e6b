package engine

import (
	"time"

	"github.com/google/uuid"

	"exam-session-service/internal/domain"
)

// Finalize converts a live session into an immutable result. Every in-session
// index is remapped into the owning exam's original index space via the
// question's OriginalIndex (falling back to the in-session index when the
// session was not a subset), so the result stays meaningful after the
// generating subset is discarded. The session itself is left in summary mode
// by the preceding Submit; Finalize only reads.
func Finalize(s *Session, autoSubmit bool) domain.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.foldLocked()

	statSpace := len(s.exam.Questions)
	if s.baseExam != nil && len(s.baseExam.Questions) > statSpace {
		statSpace = len(s.baseExam.Questions)
	}

	result := domain.Result{
		ID:            uuid.NewString(),
		When:          s.now(),
		Total:         len(s.exam.Questions),
		Answers:       make(map[int]string, len(s.answers)),
		DurationMs:    s.elapsed.Milliseconds(),
		QuestionStats: make([]domain.Stat, statSpace),
		AutoSubmitted: autoSubmit,
	}

	for i := range s.exam.Questions {
		q := &s.exam.Questions[i]
		orig := i
		if q.OriginalIndex != nil {
			orig = *q.OriginalIndex
		}
		if ans, ok := s.answers[i]; ok {
			result.Answers[orig] = ans
			result.Answered++
			if ans == q.Answer {
				result.Correct++
			}
		}
		if s.flagged[i] {
			result.Flagged = append(result.Flagged, orig)
		}
		if orig < len(result.QuestionStats) && i < len(s.stats) {
			result.QuestionStats[orig] = s.stats[i]
		}
	}

	result.ChangeSummary = SummarizeAnswerChanges(s.stats, s.exam, s.answers)

	// A strict subset of the owning exam records which original positions it
	// covered, so review and retake can re-derive the packet later.
	if s.baseExam != nil && len(s.exam.Questions) < len(s.baseExam.Questions) {
		indices := make([]int, 0, len(s.exam.Questions))
		for i := range s.exam.Questions {
			orig := i
			if s.exam.Questions[i].OriginalIndex != nil {
				orig = *s.exam.Questions[i].OriginalIndex
			}
			indices = append(indices, orig)
		}
		result.SubsetIndices = indices
	}
	return result
}

// IncorrectIndices returns the original-space indices a result got wrong,
// for building a retake-incorrect subset against the owning exam. Unanswered
// questions count as incorrect.
func IncorrectIndices(exam *domain.Exam, result *domain.Result) []int {
	covered := func(idx int) bool { return true }
	if result.SubsetIndices != nil {
		set := make(map[int]bool, len(result.SubsetIndices))
		for _, idx := range result.SubsetIndices {
			set[idx] = true
		}
		covered = func(idx int) bool { return set[idx] }
	}

	var indices []int
	for i := range exam.Questions {
		if !covered(i) {
			continue
		}
		ans, ok := result.Answers[i]
		if !ok || ans != exam.Questions[i].Answer {
			indices = append(indices, i)
		}
	}
	return indices
}

// StartedAt reports when the live attempt began (or resumed).
func (s *Session) StartedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startedAt
}
