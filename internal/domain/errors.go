package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrExamNotFound indicates the exam could not be loaded.
	ErrExamNotFound = errors.New("exam not found")
	// ErrSnapshotNotFound is returned when no in-progress attempt is saved for an exam.
	ErrSnapshotNotFound = errors.New("saved attempt not found")
	// ErrSessionNotFound is returned when an attempt has not been started.
	ErrSessionNotFound = errors.New("exam session not found")
	// ErrNoQuestions indicates an attempt was requested on an exam with zero questions.
	ErrNoQuestions = errors.New("exam has no questions")
	// ErrNotTaking is returned when a taking-only operation runs in review or summary mode.
	ErrNotTaking = errors.New("session is not in taking mode")
	// ErrIndexOutOfRange indicates a navigation target outside the question list.
	ErrIndexOutOfRange = errors.New("question index out of range")
	// ErrCheckDisabled is returned when check-answer is used on a timed exam.
	ErrCheckDisabled = errors.New("check answer is disabled for timed exams")
	// ErrOptionNotFound indicates a submitted option id is invalid for the question.
	ErrOptionNotFound = errors.New("option not found")
	// ErrResultNotFound indicates a review was requested for a missing result.
	ErrResultNotFound = errors.New("result not found")
	// ErrEmptySelection indicates a question draw matched no eligible questions.
	ErrEmptySelection = errors.New("no eligible questions for selection")
)

// UnansweredError rejects a manual submit while questions remain unanswered.
// Numbers are 1-based question positions, suitable for display.
type UnansweredError struct {
	Numbers []int
}

func (e *UnansweredError) Error() string {
	parts := make([]string, len(e.Numbers))
	for i, n := range e.Numbers {
		parts[i] = strconv.Itoa(n)
	}
	return fmt.Sprintf("unanswered questions: %s", strings.Join(parts, ", "))
}
