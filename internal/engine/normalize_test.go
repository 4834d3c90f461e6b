package engine

import (
	"reflect"
	"testing"

	"exam-session-service/internal/domain"
)

func TestNormalizeRepairsDanglingAnswer(t *testing.T) {
	exam := sampleExam()
	exam.Questions[1].Answer = "missing-option"

	if !NormalizeExam(exam) {
		t.Fatalf("expected normalization to report a change")
	}
	if got := exam.Questions[1].Answer; got != "a" {
		t.Fatalf("expected answer defaulted to first option, got %q", got)
	}
}

func TestNormalizeGeneratesMissingIDs(t *testing.T) {
	exam := sampleExam()
	exam.ID = ""
	exam.Questions[0].ID = ""
	exam.Questions[0].Options[0].ID = ""

	if !NormalizeExam(exam) {
		t.Fatalf("expected normalization to report a change")
	}
	if exam.ID == "" || exam.Questions[0].ID == "" || exam.Questions[0].Options[0].ID == "" {
		t.Fatalf("expected ids generated, got %+v", exam)
	}
	// The repaired option id must still be what the answer points to.
	if exam.Questions[0].Answer != exam.Questions[0].Options[0].ID {
		t.Fatalf("expected answer repaired to first option id")
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	exam := sampleExam()
	exam.TimerMode = ""
	exam.Results = nil

	NormalizeExam(exam)
	before := *exam
	beforeQuestions := append([]domain.Question(nil), exam.Questions...)

	if NormalizeExam(exam) {
		t.Fatalf("expected second normalization to be a no-op")
	}
	if !reflect.DeepEqual(before.Questions, beforeQuestions) {
		t.Fatalf("expected questions unchanged by second normalization")
	}
}

func TestNormalizeToleratesZeroOptions(t *testing.T) {
	exam := sampleExam()
	exam.Questions[2].Options = []domain.Option{}
	exam.Questions[2].Answer = "c"

	NormalizeExam(exam)
	if exam.Questions[2].Answer != "" {
		t.Fatalf("expected answer cleared for optionless question, got %q", exam.Questions[2].Answer)
	}
	if NormalizeExam(exam) {
		t.Fatalf("expected repaired exam to be stable")
	}
}
