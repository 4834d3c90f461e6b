package domain

import (
	"strconv"
	"time"
)

// TimerMode selects between a countdown exam and a free-paced one.
type TimerMode string

const (
	// TimerModeTimed arms a per-exam countdown derived from SecondsPerQuestion.
	TimerModeTimed TimerMode = "timed"
	// TimerModeUntimed leaves the attempt open-ended.
	TimerModeUntimed TimerMode = "untimed"
)

// LectureRef ties a question to a lecture within a block/week of the catalog.
type LectureRef struct {
	LectureID string `json:"lectureId,omitempty"`
	BlockID   string `json:"blockId,omitempty"`
	Week      int    `json:"week,omitempty"`
}

// MediaRef points at an image or audio attachment for a question.
type MediaRef struct {
	Kind string `json:"kind"`
	URL  string `json:"url"`
}

// Option represents a possible answer for a question.
type Option struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Question models an MCQ question with exactly one correct option.
// SourceExamID/SourceExamTitle/OriginalIndex are set only on derived
// questions (subsets and the question bank aggregate) and encode provenance
// back to the owning real exam.
type Question struct {
	ID              string       `json:"id"`
	Stem            string       `json:"stem"`
	Options         []Option     `json:"options"`
	Answer          string       `json:"answer"` // correct option id
	Explanation     string       `json:"explanation,omitempty"`
	Tags            []string     `json:"tags,omitempty"`
	Lectures        []LectureRef `json:"lectures,omitempty"`
	Media           []MediaRef   `json:"media,omitempty"`
	SourceExamID    string       `json:"sourceExamId,omitempty"`
	SourceExamTitle string       `json:"sourceExamTitle,omitempty"`
	OriginalIndex   *int         `json:"originalIndex,omitempty"`
}

// Exam is a question set plus its accumulated attempt history.
// Signature is populated only on the question bank aggregate and records the
// state of the source exams it was built from.
type Exam struct {
	ID                 string     `json:"id"`
	Title              string     `json:"examTitle"`
	TimerMode          TimerMode  `json:"timerMode"`
	SecondsPerQuestion int        `json:"secondsPerQuestion,omitempty"`
	Questions          []Question `json:"questions"`
	Results            []Result   `json:"results"`
	UpdatedAt          time.Time  `json:"updatedAt"`
	Signature          string     `json:"signature,omitempty"`
}

// Change is one entry in a question's answer-change ledger.
type Change struct {
	At          time.Time `json:"at"`
	From        string    `json:"from"`
	To          string    `json:"to"`
	FromCorrect *bool     `json:"fromCorrect,omitempty"`
	ToCorrect   *bool     `json:"toCorrect,omitempty"`
}

// Stat accumulates per-question timing and the answer-change ledger for one
// attempt. TimeMs only advances while the question is active in taking mode.
type Stat struct {
	TimeMs          int64      `json:"timeMs"`
	Changes         []Change   `json:"changes,omitempty"`
	InitialAnswer   string     `json:"initialAnswer,omitempty"`
	InitialAnswerAt *time.Time `json:"initialAnswerAt,omitempty"`
}

// ChangeSummary aggregates answer-change classifications across an attempt.
type ChangeSummary struct {
	RightToWrong       int `json:"rightToWrong"`
	WrongToRight       int `json:"wrongToRight"`
	Switched           int `json:"switched"`
	EndedDifferent     int `json:"endedDifferent"`
	ReturnedToOriginal int `json:"returnedToOriginal"`
}

// Result is an immutable record of a finished attempt. All indices are in the
// owning exam's original index space, so results stay meaningful after the
// generating subset is discarded. SubsetIndices is present only when the
// attempt covered a strict subset of the owning exam's questions.
type Result struct {
	ID            string         `json:"id"`
	When          time.Time      `json:"when"`
	Correct       int            `json:"correct"`
	Total         int            `json:"total"`
	Answered      int            `json:"answered"`
	Answers       map[int]string `json:"answers"`
	Flagged       []int          `json:"flagged,omitempty"`
	DurationMs    int64          `json:"durationMs"`
	QuestionStats []Stat         `json:"questionStats,omitempty"`
	ChangeSummary ChangeSummary  `json:"changeSummary"`
	SubsetIndices []int          `json:"subsetIndices,omitempty"`
	AutoSubmitted bool           `json:"autoSubmitted,omitempty"`
}

// Snapshot is the serializable form of an in-progress attempt, keyed by exam
// id. It is the only shape that crosses the persistence boundary.
type Snapshot struct {
	ExamID        string          `json:"examId"`
	Exam          Exam            `json:"exam"`
	Idx           int             `json:"idx"`
	Mode          string          `json:"mode"`
	Answers       map[int]string  `json:"answers"`
	Flagged       map[int]bool    `json:"flagged,omitempty"`
	Checked       map[int]bool    `json:"checked,omitempty"`
	RemainingMs   *int64          `json:"remainingMs,omitempty"`
	ElapsedMs     int64           `json:"elapsedMs"`
	BaseExam      *Exam           `json:"baseExam,omitempty"`
	SubsetIndices []int           `json:"subsetIndices,omitempty"`
	QuestionStats []Stat          `json:"questionStats,omitempty"`
	Scroll        map[int]float64 `json:"scroll,omitempty"`
	SavedAt       time.Time       `json:"savedAt"`
}

// AnsweredFilters selects which slices of answer history qualify a question.
type AnsweredFilters struct {
	Incorrect bool `json:"incorrect"`
	Correct   bool `json:"correct"`
	Flagged   bool `json:"flagged"`
}

// Selection is the criteria set for drawing questions from the bank. Weeks
// are keyed "blockID|week" so a week is always scoped to its block.
type Selection struct {
	Blocks          map[string]bool `json:"blocks,omitempty"`
	Weeks           map[string]bool `json:"weeks,omitempty"`
	Lectures        map[string]bool `json:"lectures,omitempty"`
	IncludeUntagged bool            `json:"includeUntagged"`
	IncludeAnswered bool            `json:"includeAnswered"`
	AnsweredFilters AnsweredFilters `json:"answeredFilters"`
}

// WeekKey builds the composite key used by Selection.Weeks.
func WeekKey(blockID string, week int) string {
	return blockID + "|" + strconv.Itoa(week)
}

// QuestionHistory is the replayed answer history for one question across all
// stored results, keyed by question id.
type QuestionHistory struct {
	Answered  bool `json:"answered"`
	Correct   bool `json:"correct"`
	Incorrect bool `json:"incorrect"`
	Flagged   bool `json:"flagged"`
}

// Lecture is one entry of a block's lecture list.
type Lecture struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Week  int    `json:"week"`
}

// Block groups lectures into a curricular unit.
type Block struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Catalog supplies the universe of block/week/lecture identifiers the
// selection filter matches against.
type Catalog struct {
	Blocks       []Block              `json:"blocks"`
	LectureLists map[string][]Lecture `json:"lectureLists"`
}
