package engine

import (
	"math/rand"
	"testing"

	"exam-session-service/internal/domain"
)

func bankWithHistory(t *testing.T) (*domain.Exam, []domain.Exam) {
	t.Helper()
	exam := sampleExam()
	// One stored attempt: q1 answered wrong, q2 answered right, q3 flagged.
	exam.Results = append(exam.Results, domain.Result{
		ID:      "r1",
		Answers: map[int]string{0: "b", 1: "b"},
		Flagged: []int{2},
	})
	exams := []domain.Exam{*exam}
	return BuildQBank(exams, nil), exams
}

func TestAnswerHistoryReplay(t *testing.T) {
	bank, exams := bankWithHistory(t)
	hist := BuildAnswerHistory(exams, bank)

	q1 := hist["q1"]
	if !q1.Answered || !q1.Incorrect || q1.Correct {
		t.Fatalf("expected q1 answered incorrectly, got %+v", q1)
	}
	q2 := hist["q2"]
	if !q2.Answered || !q2.Correct || q2.Incorrect {
		t.Fatalf("expected q2 answered correctly, got %+v", q2)
	}
	q3 := hist["q3"]
	if q3.Answered || !q3.Flagged {
		t.Fatalf("expected q3 flagged but unanswered, got %+v", q3)
	}
}

func TestAnswerHistoryIncludesBankResults(t *testing.T) {
	bank, exams := bankWithHistory(t)
	// A direct bank attempt answering aggregate index 2 (q3) correctly.
	bank.Results = append(bank.Results, domain.Result{
		ID:      "r2",
		Answers: map[int]string{2: "c"},
	})
	hist := BuildAnswerHistory(exams, bank)
	if q3 := hist["q3"]; !q3.Answered || !q3.Correct {
		t.Fatalf("expected bank results replayed, got %+v", q3)
	}
}

func TestSelectionFilterORSemantics(t *testing.T) {
	bank, exams := bankWithHistory(t)
	hist := BuildAnswerHistory(exams, bank)

	sel := domain.Selection{
		IncludeAnswered: true,
		AnsweredFilters: domain.AnsweredFilters{Incorrect: true},
	}
	if !IsEligible(&bank.Questions[0], sel, hist) {
		t.Fatalf("expected incorrectly-answered q1 eligible under incorrect filter")
	}

	sel.AnsweredFilters = domain.AnsweredFilters{}
	if IsEligible(&bank.Questions[0], sel, hist) {
		t.Fatalf("expected q1 ineligible when no answered-filter is requested")
	}
}

func TestSelectionFilterUnansweredOnly(t *testing.T) {
	bank, exams := bankWithHistory(t)
	hist := BuildAnswerHistory(exams, bank)

	sel := domain.Selection{}
	got := EligibleIndices(bank, sel, hist)
	// Only q3 has never been answered.
	if len(got) != 1 || got[0] != 2 {
		t.Fatalf("expected only index 2 eligible, got %v", got)
	}
}

func TestSelectionFilterTagMatching(t *testing.T) {
	bank, _ := bankWithHistory(t)
	hist := map[string]domain.QuestionHistory{}

	byLecture := domain.Selection{Lectures: map[string]bool{"lec-2": true}}
	got := EligibleIndices(bank, byLecture, hist)
	if len(got) != 1 || got[0] != 1 {
		t.Fatalf("expected lecture match on index 1, got %v", got)
	}

	byWeek := domain.Selection{Weeks: map[string]bool{domain.WeekKey("blk-1", 2): true}}
	got = EligibleIndices(bank, byWeek, hist)
	if len(got) != 1 || got[0] != 0 {
		t.Fatalf("expected week match on index 0, got %v", got)
	}

	byBlock := domain.Selection{Blocks: map[string]bool{"blk-1": true}}
	got = EligibleIndices(bank, byBlock, hist)
	if len(got) != 2 {
		t.Fatalf("expected block match on both tagged questions, got %v", got)
	}

	// Untagged q3 only passes via IncludeUntagged.
	byBlock.IncludeUntagged = true
	got = EligibleIndices(bank, byBlock, hist)
	if len(got) != 3 {
		t.Fatalf("expected untagged question included, got %v", got)
	}
}

func TestDrawQuestionsClampsCount(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))
	indices := []int{0, 1, 2, 3, 4}

	drawn := DrawQuestions(indices, 100, rnd)
	if len(drawn) != 5 {
		t.Fatalf("expected count clamped to eligible size, got %d", len(drawn))
	}
	drawn = DrawQuestions(indices, 0, rnd)
	if len(drawn) != 1 {
		t.Fatalf("expected count clamped up to 1, got %d", len(drawn))
	}
	if DrawQuestions(nil, 3, rnd) != nil {
		t.Fatalf("expected no draw from an empty set")
	}

	seen := make(map[int]bool)
	for _, idx := range DrawQuestions(indices, 5, rnd) {
		if seen[idx] {
			t.Fatalf("expected a permutation without repeats")
		}
		seen[idx] = true
	}
}
