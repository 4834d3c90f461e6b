package engine

import (
	"testing"
	"time"

	"exam-session-service/internal/domain"
)

func TestBuildQBankConcatenatesWithProvenance(t *testing.T) {
	examA := sampleExam()
	examB := sampleExam()
	examB.ID = "exam-2"
	examB.Title = "Pharm review"
	examB.Questions = examB.Questions[:2]

	bank := BuildQBank([]domain.Exam{*examA, *examB}, nil)
	if bank.ID != QBankID {
		t.Fatalf("expected bank id %q, got %q", QBankID, bank.ID)
	}
	if bank.TimerMode != domain.TimerModeUntimed {
		t.Fatalf("expected bank to be untimed")
	}
	if len(bank.Questions) != 5 {
		t.Fatalf("expected 5 questions, got %d", len(bank.Questions))
	}
	for i, q := range bank.Questions {
		if q.OriginalIndex == nil || *q.OriginalIndex != i {
			t.Fatalf("question %d: expected sequential aggregate index, got %v", i, q.OriginalIndex)
		}
	}
	if bank.Questions[3].SourceExamID != "exam-2" || bank.Questions[3].SourceExamTitle != "Pharm review" {
		t.Fatalf("expected source stamps, got %+v", bank.Questions[3])
	}
}

func TestBuildQBankSignatureStability(t *testing.T) {
	exams := []domain.Exam{*sampleExam()}

	first := BuildQBank(exams, nil)
	second := BuildQBank(exams, first)
	if first != second {
		t.Fatalf("expected unchanged exam list to reuse the aggregate")
	}

	exams[0].UpdatedAt = exams[0].UpdatedAt.Add(time.Hour)
	third := BuildQBank(exams, first)
	if third == first {
		t.Fatalf("expected a bumped updatedAt to force a rebuild")
	}
	if third.Signature == first.Signature {
		t.Fatalf("expected signature to change")
	}
}

func TestBuildQBankAbsorbsPriorResults(t *testing.T) {
	exams := []domain.Exam{*sampleExam()}
	prior := BuildQBank(exams, nil)
	prior.Results = append(prior.Results, domain.Result{ID: "r1", Answers: map[int]string{0: "a"}})

	exams[0].UpdatedAt = exams[0].UpdatedAt.Add(time.Minute)
	rebuilt := BuildQBank(exams, prior)
	if len(rebuilt.Results) != 1 || rebuilt.Results[0].ID != "r1" {
		t.Fatalf("expected attempt history preserved across rebuild, got %+v", rebuilt.Results)
	}
}

func TestBuildQBankSkipsItself(t *testing.T) {
	exams := []domain.Exam{*sampleExam()}
	bank := BuildQBank(exams, nil)

	again := BuildQBank(append(exams, *bank), nil)
	if len(again.Questions) != len(exams[0].Questions) {
		t.Fatalf("expected aggregate to exclude itself, got %d questions", len(again.Questions))
	}
}
