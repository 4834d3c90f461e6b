package engine

import (
	"sync"
	"time"

	"exam-session-service/internal/domain"
)

// Mode enumerates session lifecycle states.
type Mode string

const (
	// ModeTaking is the live attempt: answers mutable, timing accrues.
	ModeTaking Mode = "taking"
	// ModeSummary is the post-submit score screen.
	ModeSummary Mode = "summary"
	// ModeReview replays a stored result read-only.
	ModeReview Mode = "review"
)

// Session owns the lifecycle of one exam attempt. All mutation goes through
// its methods; the mutex covers both user-triggered operations and the timer
// goroutine. The timer is a resource with an explicit Dispose contract -
// every exit transition (submit, save-and-exit, discard) must tear it down.
type Session struct {
	mu  sync.Mutex
	now func() time.Time

	mode Mode
	exam *domain.Exam

	// Set when the attempt covers a derived question list; provenance back
	// to the owning exam for finalize-time remapping.
	baseExam      *domain.Exam
	subsetIndices []int

	idx     int
	answers map[int]string
	flagged map[int]bool
	checked map[int]bool
	scroll  map[int]float64
	media   map[int]float64

	startedAt time.Time
	elapsed   time.Duration
	remaining *time.Duration
	lastFold  time.Time
	paused    bool

	stats     []domain.Stat
	enteredAt *time.Time // open timing interval for the active question

	ticker    *time.Ticker
	timerStop chan struct{}
	expired   bool
	disposed  bool
}

// NewSession starts a live attempt on an exam. Exams with zero questions
// never enter taking mode.
func NewSession(exam *domain.Exam) (*Session, error) {
	return NewSessionWithClock(exam, time.Now)
}

// NewSessionWithClock allows deterministic timestamps in tests.
func NewSessionWithClock(exam *domain.Exam, now func() time.Time) (*Session, error) {
	if len(exam.Questions) == 0 {
		return nil, domain.ErrNoQuestions
	}
	s := &Session{
		now:     now,
		mode:    ModeTaking,
		exam:    exam,
		answers: make(map[int]string),
		flagged: make(map[int]bool),
		checked: make(map[int]bool),
		scroll:  make(map[int]float64),
		media:   make(map[int]float64),
		stats:   make([]domain.Stat, len(exam.Questions)),
	}
	s.startedAt = now()
	s.lastFold = s.startedAt
	if exam.TimerMode == domain.TimerModeTimed {
		total := time.Duration(exam.SecondsPerQuestion) * time.Duration(len(exam.Questions)) * time.Second
		s.remaining = &total
	}
	s.openIntervalLocked()
	return s, nil
}

// NewSubsetSession starts a live attempt on a derived exam, keeping the
// owning exam around for finalize-time remapping.
func NewSubsetSession(subset, base *domain.Exam, indices []int, now func() time.Time) (*Session, error) {
	s, err := NewSessionWithClock(subset, now)
	if err != nil {
		return nil, err
	}
	s.baseExam = base
	s.subsetIndices = append([]int(nil), indices...)
	return s, nil
}

// NewReviewSession replays a stored result read-only. The result must already
// be expressed in the given exam's index space.
func NewReviewSession(exam *domain.Exam, result *domain.Result, now func() time.Time) *Session {
	s := &Session{
		now:     now,
		mode:    ModeReview,
		exam:    exam,
		answers: make(map[int]string, len(result.Answers)),
		flagged: make(map[int]bool, len(result.Flagged)),
		checked: make(map[int]bool),
		scroll:  make(map[int]float64),
		media:   make(map[int]float64),
		stats:   append([]domain.Stat(nil), result.QuestionStats...),
	}
	s.startedAt = now()
	s.lastFold = s.startedAt
	for idx, ans := range result.Answers {
		s.answers[idx] = ans
	}
	for _, idx := range result.Flagged {
		s.flagged[idx] = true
	}
	if len(s.stats) < len(exam.Questions) {
		s.stats = append(s.stats, make([]domain.Stat, len(exam.Questions)-len(s.stats))...)
	}
	return s
}

// Mode returns the current lifecycle state.
func (s *Session) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Exam returns the question list this session runs against.
func (s *Session) Exam() *domain.Exam {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exam
}

// BaseExam returns the owning exam of a subset attempt, or nil.
func (s *Session) BaseExam() *domain.Exam {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.baseExam
}

// Idx returns the active question index.
func (s *Session) Idx() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.idx
}

// Navigate moves to another question: the leaving question's timing interval
// closes and its scroll offset is stored; the arriving question's interval
// opens and its stored scroll offset (0 if never visited) is returned.
func (s *Session) Navigate(to int, leavingScroll float64) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if to < 0 || to >= len(s.exam.Questions) {
		return 0, domain.ErrIndexOutOfRange
	}
	s.scroll[s.idx] = leavingScroll
	s.closeIntervalLocked()
	s.idx = to
	s.openIntervalLocked()
	return s.scroll[to], nil
}

// Answer records an option selection for the active question, feeding the
// answer-change ledger. The first non-empty answer is captured as the initial
// answer and does not count as a change. Untimed exams clear the question's
// checked state so the reveal reflects the new answer.
func (s *Session) Answer(optionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode != ModeTaking {
		return domain.ErrNotTaking
	}
	q := &s.exam.Questions[s.idx]
	if !hasOption(q, optionID) || optionID == "" {
		return domain.ErrOptionNotFound
	}

	prev, had := s.answers[s.idx]
	if had && prev == optionID {
		return nil
	}
	now := s.now()
	stat := &s.stats[s.idx]
	if !had {
		stat.InitialAnswer = optionID
		stat.InitialAnswerAt = &now
	} else {
		fromCorrect := prev == q.Answer
		toCorrect := optionID == q.Answer
		stat.Changes = append(stat.Changes, domain.Change{
			At:          now,
			From:        prev,
			To:          optionID,
			FromCorrect: &fromCorrect,
			ToCorrect:   &toCorrect,
		})
	}
	s.answers[s.idx] = optionID
	if s.exam.TimerMode != domain.TimerModeTimed {
		delete(s.checked, s.idx)
	}
	return nil
}

// ToggleFlag flips the active question's flag and reports the new state.
func (s *Session) ToggleFlag() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode != ModeTaking {
		return false, domain.ErrNotTaking
	}
	s.flagged[s.idx] = !s.flagged[s.idx]
	return s.flagged[s.idx], nil
}

// Check reveals the active question's answer. Timed exams disable this.
func (s *Session) Check() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode != ModeTaking {
		return domain.ErrNotTaking
	}
	if s.exam.TimerMode == domain.TimerModeTimed {
		return domain.ErrCheckDisabled
	}
	s.checked[s.idx] = true
	return nil
}

// StoreMediaPosition remembers playback position for the active question.
func (s *Session) StoreMediaPosition(seconds float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.media[s.idx] = seconds
}

// MediaPosition returns the stored playback position for the active question.
func (s *Session) MediaPosition() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.media[s.idx]
}

// Unanswered returns the 1-based numbers of questions without an answer.
func (s *Session) Unanswered() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unansweredLocked()
}

func (s *Session) unansweredLocked() []int {
	var nums []int
	for i := range s.exam.Questions {
		if _, ok := s.answers[i]; !ok {
			nums = append(nums, i+1)
		}
	}
	return nums
}

// Submit transitions taking -> summary. A manual submit with unanswered
// questions is rejected with an UnansweredError listing them; callers confirm
// by retrying with force. Auto-submit always forces.
func (s *Session) Submit(force bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode != ModeTaking {
		return domain.ErrNotTaking
	}
	if !force {
		if nums := s.unansweredLocked(); len(nums) > 0 {
			return &domain.UnansweredError{Numbers: nums}
		}
	}
	s.foldLocked()
	s.closeIntervalLocked()
	s.mode = ModeSummary
	s.stopTimerLocked()
	return nil
}

// EnterReview moves a submitted session to review mode.
func (s *Session) EnterReview() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode != ModeSummary {
		return domain.ErrNotTaking
	}
	s.mode = ModeReview
	return nil
}

// Pause freezes the clocks: the wall-clock delta since the last fold is
// accounted and the active timing interval closes.
func (s *Session) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode != ModeTaking || s.paused {
		return
	}
	s.foldLocked()
	s.closeIntervalLocked()
	s.paused = true
}

// Resume reopens the clocks after a Pause.
func (s *Session) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode != ModeTaking || !s.paused {
		return
	}
	s.paused = false
	s.lastFold = s.now()
	s.openIntervalLocked()
}

// ElapsedMs returns total attempt time, including the open interval.
func (s *Session) ElapsedMs() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.foldLocked()
	return s.elapsed.Milliseconds()
}

// RemainingMs returns the countdown state, or nil for untimed exams.
func (s *Session) RemainingMs() *int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.foldLocked()
	if s.remaining == nil {
		return nil
	}
	ms := s.remaining.Milliseconds()
	return &ms
}

// StartTimer arms the countdown for a timed attempt. The tick goroutine fires
// once per second; when the countdown reaches zero the session force-submits
// exactly once (no unanswered-question confirmation) and onExpire runs
// outside the lock. Untimed sessions ignore the call.
func (s *Session) StartTimer(onExpire func()) {
	s.mu.Lock()
	if s.remaining == nil || s.mode != ModeTaking || s.ticker != nil || s.disposed {
		s.mu.Unlock()
		return
	}
	s.ticker = time.NewTicker(time.Second)
	s.timerStop = make(chan struct{})
	ticker, stop := s.ticker, s.timerStop
	s.mu.Unlock()

	go func() {
		for {
			select {
			case <-ticker.C:
				if s.tick(onExpire) {
					return
				}
			case <-stop:
				return
			}
		}
	}()
}

// tick advances the clocks by the wall-clock delta and reports whether the
// countdown expired (terminating the tick goroutine).
func (s *Session) tick(onExpire func()) bool {
	s.mu.Lock()
	if s.mode != ModeTaking || s.paused || s.remaining == nil {
		done := s.mode != ModeTaking
		s.mu.Unlock()
		return done
	}
	s.foldLocked()
	if *s.remaining > 0 {
		s.mu.Unlock()
		return false
	}
	if s.expired {
		s.mu.Unlock()
		return true
	}
	s.expired = true
	s.closeIntervalLocked()
	s.mode = ModeSummary
	s.stopTimerLocked()
	s.mu.Unlock()
	if onExpire != nil {
		onExpire()
	}
	return true
}

// Expired reports whether the countdown force-submitted the attempt.
func (s *Session) Expired() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expired
}

// Dispose tears down the timer. Idempotent; safe on any state. Every exit
// transition must call it - a recurring timer is never left to the garbage
// collector.
func (s *Session) Dispose() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disposed = true
	s.stopTimerLocked()
}

func (s *Session) stopTimerLocked() {
	if s.ticker != nil {
		s.ticker.Stop()
		s.ticker = nil
	}
	if s.timerStop != nil {
		close(s.timerStop)
		s.timerStop = nil
	}
}

// foldLocked folds the wall-clock delta since the last fold into the elapsed
// and remaining accumulators. No-op while paused or outside taking mode.
func (s *Session) foldLocked() {
	if s.mode != ModeTaking || s.paused {
		return
	}
	now := s.now()
	delta := now.Sub(s.lastFold)
	if delta <= 0 {
		return
	}
	s.lastFold = now
	s.elapsed += delta
	if s.remaining != nil {
		*s.remaining -= delta
		if *s.remaining < 0 {
			*s.remaining = 0
		}
	}
}

func (s *Session) openIntervalLocked() {
	if s.mode != ModeTaking || s.paused {
		return
	}
	t := s.now()
	s.enteredAt = &t
}

func (s *Session) closeIntervalLocked() {
	if s.enteredAt == nil {
		return
	}
	if s.mode == ModeTaking && s.idx < len(s.stats) {
		s.stats[s.idx].TimeMs += s.now().Sub(*s.enteredAt).Milliseconds()
	}
	s.enteredAt = nil
}

// Snapshot serializes the in-progress attempt for the persistence adapter.
// The session itself is untouched; saving twice with no interleaved mutation
// produces equivalent snapshots.
func (s *Session) Snapshot() domain.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.foldLocked()

	snap := domain.Snapshot{
		ExamID:        s.exam.ID,
		Exam:          *s.exam,
		Idx:           s.idx,
		Mode:          string(s.mode),
		Answers:       copyIntStringMap(s.answers),
		Flagged:       copyIntBoolMap(s.flagged),
		Checked:       copyIntBoolMap(s.checked),
		ElapsedMs:     s.elapsed.Milliseconds(),
		SubsetIndices: append([]int(nil), s.subsetIndices...),
		QuestionStats: append([]domain.Stat(nil), s.stats...),
		Scroll:        copyIntFloatMap(s.scroll),
		SavedAt:       s.now(),
	}
	if s.baseExam != nil {
		base := *s.baseExam
		snap.BaseExam = &base
		snap.ExamID = base.ID
	}
	if s.remaining != nil {
		ms := s.remaining.Milliseconds()
		snap.RemainingMs = &ms
	}
	return snap
}

// RestoreSession rebuilds a live session from a saved snapshot.
func RestoreSession(snap *domain.Snapshot, now func() time.Time) (*Session, error) {
	exam := snap.Exam
	if len(exam.Questions) == 0 {
		return nil, domain.ErrNoQuestions
	}
	s := &Session{
		now:     now,
		mode:    ModeTaking,
		exam:    &exam,
		answers: copyIntStringMap(snap.Answers),
		flagged: copyIntBoolMap(snap.Flagged),
		checked: copyIntBoolMap(snap.Checked),
		scroll:  copyIntFloatMap(snap.Scroll),
		media:   make(map[int]float64),
		idx:     snap.Idx,
		elapsed: time.Duration(snap.ElapsedMs) * time.Millisecond,
		stats:   append([]domain.Stat(nil), snap.QuestionStats...),
	}
	if s.answers == nil {
		s.answers = make(map[int]string)
	}
	if s.flagged == nil {
		s.flagged = make(map[int]bool)
	}
	if s.checked == nil {
		s.checked = make(map[int]bool)
	}
	if s.scroll == nil {
		s.scroll = make(map[int]float64)
	}
	if len(s.stats) < len(exam.Questions) {
		s.stats = append(s.stats, make([]domain.Stat, len(exam.Questions)-len(s.stats))...)
	}
	if s.idx < 0 || s.idx >= len(exam.Questions) {
		s.idx = 0
	}
	if snap.BaseExam != nil {
		base := *snap.BaseExam
		s.baseExam = &base
		s.subsetIndices = append([]int(nil), snap.SubsetIndices...)
	}
	if snap.RemainingMs != nil {
		rem := time.Duration(*snap.RemainingMs) * time.Millisecond
		s.remaining = &rem
	}
	s.startedAt = now()
	s.lastFold = s.startedAt
	s.openIntervalLocked()
	return s, nil
}

// View is the render-facing projection of the session.
type View struct {
	ExamID        string         `json:"examId"`
	Title         string         `json:"examTitle"`
	Mode          Mode           `json:"mode"`
	Idx           int            `json:"idx"`
	Total         int            `json:"total"`
	Answers       map[int]string `json:"answers"`
	Flagged       map[int]bool   `json:"flagged"`
	Checked       map[int]bool   `json:"checked"`
	RemainingMs   *int64         `json:"remainingMs,omitempty"`
	ElapsedMs     int64          `json:"elapsedMs"`
	Unanswered    []int          `json:"unanswered,omitempty"`
	AutoSubmitted bool           `json:"autoSubmitted,omitempty"`
}

// View snapshots the observable session state for the rendering layer.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.foldLocked()
	v := View{
		ExamID:        s.exam.ID,
		Title:         s.exam.Title,
		Mode:          s.mode,
		Idx:           s.idx,
		Total:         len(s.exam.Questions),
		Answers:       copyIntStringMap(s.answers),
		Flagged:       copyIntBoolMap(s.flagged),
		Checked:       copyIntBoolMap(s.checked),
		ElapsedMs:     s.elapsed.Milliseconds(),
		Unanswered:    s.unansweredLocked(),
		AutoSubmitted: s.expired,
	}
	if s.remaining != nil {
		ms := s.remaining.Milliseconds()
		v.RemainingMs = &ms
	}
	return v
}

func copyIntStringMap(m map[int]string) map[int]string {
	out := make(map[int]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyIntBoolMap(m map[int]bool) map[int]bool {
	out := make(map[int]bool, len(m))
	for k, v := range m {
		if v {
			out[k] = true
		}
	}
	return out
}

func copyIntFloatMap(m map[int]float64) map[int]float64 {
	out := make(map[int]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
