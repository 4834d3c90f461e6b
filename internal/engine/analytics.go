package engine

import (
	"exam-session-service/internal/domain"
)

// Direction classifies the net effect of a question's answer changes.
type Direction string

const (
	DirectionRightToWrong Direction = "right-to-wrong"
	DirectionWrongToRight Direction = "wrong-to-right"
	DirectionNeutral      Direction = "neutral"
)

// ChangeAnalysis is the per-question classification of an answer-change
// ledger. Changed means the attempt ended on a different answer than it
// started with; Switched means the answer moved at all, including "changed
// then changed back".
type ChangeAnalysis struct {
	Changed   bool
	Switched  bool
	Direction Direction
}

// AnalyzeAnswerChange reconstructs the full answer sequence for a question
// (initial answer, every ledger destination in order, then the final answer),
// collapses consecutive duplicates, and classifies the net effect.
func AnalyzeAnswerChange(stat domain.Stat, q *domain.Question, finalAnswer string) ChangeAnalysis {
	seq := make([]string, 0, len(stat.Changes)+2)
	push := func(ans string) {
		if ans == "" {
			return
		}
		if len(seq) == 0 || seq[len(seq)-1] != ans {
			seq = append(seq, ans)
		}
	}
	push(stat.InitialAnswer)
	for _, c := range stat.Changes {
		push(c.To)
	}
	push(finalAnswer)

	analysis := ChangeAnalysis{Direction: DirectionNeutral, Switched: len(seq) > 1}
	if len(seq) < 2 {
		return analysis
	}
	first, last := seq[0], seq[len(seq)-1]
	if first == last {
		return analysis
	}
	analysis.Changed = true
	firstCorrect := first == q.Answer
	lastCorrect := last == q.Answer
	switch {
	case firstCorrect && !lastCorrect:
		analysis.Direction = DirectionRightToWrong
	case !firstCorrect && lastCorrect:
		analysis.Direction = DirectionWrongToRight
	}
	return analysis
}

// SummarizeAnswerChanges aggregates per-question classifications into
// exam-level counts. ReturnedToOriginal counts questions whose answer moved
// but ended where it started.
func SummarizeAnswerChanges(stats []domain.Stat, exam *domain.Exam, answers map[int]string) domain.ChangeSummary {
	var summary domain.ChangeSummary
	for i := range exam.Questions {
		var stat domain.Stat
		if i < len(stats) {
			stat = stats[i]
		}
		analysis := AnalyzeAnswerChange(stat, &exam.Questions[i], answers[i])
		if analysis.Switched {
			summary.Switched++
		}
		if analysis.Changed {
			summary.EndedDifferent++
		}
		switch analysis.Direction {
		case DirectionRightToWrong:
			summary.RightToWrong++
		case DirectionWrongToRight:
			summary.WrongToRight++
		}
	}
	summary.ReturnedToOriginal = summary.Switched - summary.EndedDifferent
	if summary.ReturnedToOriginal < 0 {
		summary.ReturnedToOriginal = 0
	}
	return summary
}
