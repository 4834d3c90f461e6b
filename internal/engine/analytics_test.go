package engine

import (
	"testing"
	"time"

	"exam-session-service/internal/domain"
)

func statWithChanges(initial string, tos ...string) domain.Stat {
	at := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	stat := domain.Stat{InitialAnswer: initial, InitialAnswerAt: &at}
	from := initial
	for _, to := range tos {
		stat.Changes = append(stat.Changes, domain.Change{At: at, From: from, To: to})
		from = to
	}
	return stat
}

func TestAnalyzeRightToWrong(t *testing.T) {
	q := &domain.Question{ID: "q", Answer: "x", Options: []domain.Option{{ID: "x"}, {ID: "y"}}}
	stat := statWithChanges("x", "y")

	got := AnalyzeAnswerChange(stat, q, "y")
	if !got.Changed || !got.Switched || got.Direction != DirectionRightToWrong {
		t.Fatalf("expected right-to-wrong change, got %+v", got)
	}
}

func TestAnalyzeReturnedToOriginal(t *testing.T) {
	q := &domain.Question{ID: "q", Answer: "x", Options: []domain.Option{{ID: "x"}, {ID: "y"}}}
	stat := statWithChanges("x", "y", "x")

	got := AnalyzeAnswerChange(stat, q, "x")
	if got.Changed {
		t.Fatalf("expected no net change, got %+v", got)
	}
	if !got.Switched {
		t.Fatalf("expected switched for changed-then-changed-back")
	}
	if got.Direction != DirectionNeutral {
		t.Fatalf("expected neutral direction, got %s", got.Direction)
	}
}

func TestAnalyzeWrongToRightAndNeutral(t *testing.T) {
	q := &domain.Question{ID: "q", Answer: "x", Options: []domain.Option{{ID: "x"}, {ID: "y"}, {ID: "z"}}}

	got := AnalyzeAnswerChange(statWithChanges("y", "x"), q, "x")
	if got.Direction != DirectionWrongToRight || !got.Changed {
		t.Fatalf("expected wrong-to-right, got %+v", got)
	}

	got = AnalyzeAnswerChange(statWithChanges("y", "z"), q, "z")
	if got.Direction != DirectionNeutral || !got.Changed {
		t.Fatalf("expected neutral change between two wrong answers, got %+v", got)
	}
}

func TestAnalyzeUnansweredIsInert(t *testing.T) {
	q := &domain.Question{ID: "q", Answer: "x", Options: []domain.Option{{ID: "x"}}}

	got := AnalyzeAnswerChange(domain.Stat{}, q, "")
	if got.Changed || got.Switched || got.Direction != DirectionNeutral {
		t.Fatalf("expected inert analysis for untouched question, got %+v", got)
	}
}

func TestSummarizeAnswerChanges(t *testing.T) {
	exam := &domain.Exam{
		Questions: []domain.Question{
			{ID: "q1", Answer: "a", Options: []domain.Option{{ID: "a"}, {ID: "b"}}},
			{ID: "q2", Answer: "a", Options: []domain.Option{{ID: "a"}, {ID: "b"}}},
			{ID: "q3", Answer: "a", Options: []domain.Option{{ID: "a"}, {ID: "b"}}},
		},
	}
	stats := []domain.Stat{
		statWithChanges("a", "b"),      // right -> wrong
		statWithChanges("b", "a"),      // wrong -> right
		statWithChanges("a", "b", "a"), // returned to original
	}
	answers := map[int]string{0: "b", 1: "a", 2: "a"}

	summary := SummarizeAnswerChanges(stats, exam, answers)
	if summary.RightToWrong != 1 || summary.WrongToRight != 1 {
		t.Fatalf("unexpected direction counts: %+v", summary)
	}
	if summary.Switched != 3 || summary.EndedDifferent != 2 {
		t.Fatalf("unexpected switch counts: %+v", summary)
	}
	if summary.ReturnedToOriginal != 1 {
		t.Fatalf("expected one returned-to-original, got %+v", summary)
	}
}
