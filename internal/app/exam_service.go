package app

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"exam-session-service/internal/domain"
	"exam-session-service/internal/engine"
)

// ExamRepository abstracts how exams are stored (in-memory, Postgres, etc).
type ExamRepository interface {
	ListExams(ctx context.Context) ([]domain.Exam, error)
	GetExam(ctx context.Context, id string) (domain.Exam, error)
	UpsertExam(ctx context.Context, exam domain.Exam) error
	DeleteExam(ctx context.Context, id string) error
}

// SnapshotStore is the persistence adapter for in-progress attempts, keyed by
// the owning exam id. Save is idempotent; Delete must succeed even when no
// snapshot exists.
type SnapshotStore interface {
	Save(ctx context.Context, snap domain.Snapshot) error
	Load(ctx context.Context, examID string) (*domain.Snapshot, error)
	Delete(ctx context.Context, examID string) error
	List(ctx context.Context) ([]domain.Snapshot, error)
}

// CatalogLoader supplies the block/week/lecture universe for selections.
type CatalogLoader interface {
	LoadCatalog(ctx context.Context) (domain.Catalog, error)
}

// ExamService contains the exam attempt use cases: starting, resuming,
// saving, submitting, and deriving question-bank draws and retakes. Live
// sessions are tracked in-process, keyed by the owning exam id.
type ExamService struct {
	exams     ExamRepository
	snapshots SnapshotStore
	catalog   CatalogLoader
	now       func() time.Time
	rnd       *rand.Rand
	sf        singleflight.Group

	mu       sync.Mutex
	sessions map[string]*engine.Session
	qbank    *domain.Exam
}

func NewExamService(exams ExamRepository, snapshots SnapshotStore, catalog CatalogLoader) *ExamService {
	return NewExamServiceWithClock(exams, snapshots, catalog, time.Now)
}

// NewExamServiceWithClock allows deterministic timestamps in tests.
func NewExamServiceWithClock(exams ExamRepository, snapshots SnapshotStore, catalog CatalogLoader, now func() time.Time) *ExamService {
	return &ExamService{
		exams:     exams,
		snapshots: snapshots,
		catalog:   catalog,
		now:       now,
		rnd:       rand.New(rand.NewSource(now().UnixNano())),
		sessions:  make(map[string]*engine.Session),
	}
}

// ListExams returns all stored exams, normalized, with the bank aggregate
// filtered out. Orphaned snapshots are cleaned up opportunistically here.
func (s *ExamService) ListExams(ctx context.Context) ([]domain.Exam, error) {
	exams, err := s.exams.ListExams(ctx)
	if err != nil {
		return nil, err
	}
	out := exams[:0]
	for i := range exams {
		if exams[i].ID == engine.QBankID {
			continue
		}
		engine.NormalizeExam(&exams[i])
		out = append(out, exams[i])
	}
	// Best effort; a failed cleanup never fails the listing.
	_ = s.CleanupOrphanSnapshots(ctx)
	return out, nil
}

// SaveExam normalizes and persists an exam, bumping its update time.
func (s *ExamService) SaveExam(ctx context.Context, exam domain.Exam) (domain.Exam, error) {
	engine.NormalizeExam(&exam)
	exam.UpdatedAt = s.now()
	if err := s.exams.UpsertExam(ctx, exam); err != nil {
		return domain.Exam{}, err
	}
	return exam, nil
}

// DeleteExam removes an exam along with any saved attempt for it.
func (s *ExamService) DeleteExam(ctx context.Context, id string) error {
	if err := s.exams.DeleteExam(ctx, id); err != nil {
		return err
	}
	return s.snapshots.Delete(ctx, id)
}

// Catalog loads the lecture/block universe for the selection filter.
func (s *ExamService) Catalog(ctx context.Context) (domain.Catalog, error) {
	return s.catalog.LoadCatalog(ctx)
}

// QBank returns the question bank aggregate, rebuilding it only when the
// source exam signature changed. Concurrent callers share one rebuild.
func (s *ExamService) QBank(ctx context.Context) (*domain.Exam, error) {
	result, err, _ := s.sf.Do(engine.QBankID, func() (interface{}, error) {
		exams, err := s.exams.ListExams(ctx)
		if err != nil {
			return nil, err
		}

		s.mu.Lock()
		existing := s.qbank
		s.mu.Unlock()
		if existing == nil {
			if stored, err := s.exams.GetExam(ctx, engine.QBankID); err == nil {
				existing = &stored
			}
		}

		bank := engine.BuildQBank(exams, existing)
		if bank != existing {
			if err := s.exams.UpsertExam(ctx, *bank); err != nil {
				return nil, err
			}
			// A rebuilt bank invalidates any attempt saved against the old one.
			_ = s.snapshots.Delete(ctx, engine.QBankID)
		}
		s.mu.Lock()
		s.qbank = bank
		s.mu.Unlock()
		return bank, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*domain.Exam), nil
}

// StartAttempt begins a live session on a stored exam.
func (s *ExamService) StartAttempt(ctx context.Context, examID string) (*engine.Session, error) {
	exam, err := s.exams.GetExam(ctx, examID)
	if err != nil {
		return nil, err
	}
	engine.NormalizeExam(&exam)
	sess, err := engine.NewSessionWithClock(&exam, s.now)
	if err != nil {
		return nil, err
	}
	s.register(examID, sess)
	return sess, nil
}

// StartRetakeIncorrect derives a subset covering the questions a prior result
// got wrong (or skipped) and starts a live session on it. A result with
// nothing wrong yields ErrEmptySelection; callers disable the affordance.
func (s *ExamService) StartRetakeIncorrect(ctx context.Context, examID string, resultIndex int) (*engine.Session, error) {
	exam, result, err := s.examResult(ctx, examID, resultIndex)
	if err != nil {
		return nil, err
	}
	indices := engine.IncorrectIndices(exam, result)
	subset, ok := engine.BuildSubset(exam, indices)
	if !ok {
		return nil, domain.ErrEmptySelection
	}
	sess, err := engine.NewSubsetSession(subset, exam, indices, s.now)
	if err != nil {
		return nil, err
	}
	s.register(examID, sess)
	return sess, nil
}

// StartReview opens a stored result read-only. Partial results re-derive
// their subset against the current exam; indices that drifted out of range
// since the attempt are silently dropped.
func (s *ExamService) StartReview(ctx context.Context, examID string, resultIndex int) (*engine.Session, error) {
	exam, result, err := s.examResult(ctx, examID, resultIndex)
	if err != nil {
		return nil, err
	}
	if result.SubsetIndices != nil {
		subset, remapped, ok := engine.BuildSubsetWithResult(exam, result, result.SubsetIndices)
		if !ok {
			return nil, domain.ErrEmptySelection
		}
		return engine.NewReviewSession(subset, remapped, s.now), nil
	}
	return engine.NewReviewSession(exam, result, s.now), nil
}

// examResult loads an exam and one of its stored results by index. The result
// pointer aliases the returned exam's Results slice.
func (s *ExamService) examResult(ctx context.Context, examID string, resultIndex int) (*domain.Exam, *domain.Result, error) {
	exam, err := s.exams.GetExam(ctx, examID)
	if err != nil {
		return nil, nil, err
	}
	engine.NormalizeExam(&exam)
	if resultIndex < 0 || resultIndex >= len(exam.Results) {
		return nil, nil, domain.ErrResultNotFound
	}
	return &exam, &exam.Results[resultIndex], nil
}

// StartQBankDraw materializes a shuffled draw from the question bank matching
// the selection and starts a live session on it.
func (s *ExamService) StartQBankDraw(ctx context.Context, sel domain.Selection, count int) (*engine.Session, error) {
	bank, hist, err := s.bankWithHistory(ctx)
	if err != nil {
		return nil, err
	}
	eligible := engine.EligibleIndices(bank, sel, hist)
	drawn := engine.DrawQuestions(eligible, count, s.rnd)
	subset, ok := engine.BuildSubset(bank, drawn)
	if !ok {
		return nil, domain.ErrEmptySelection
	}
	sess, err := engine.NewSubsetSession(subset, bank, drawn, s.now)
	if err != nil {
		return nil, err
	}
	s.register(engine.QBankID, sess)
	return sess, nil
}

// EligibleCount reports how many bank questions match a selection, for the
// start screen. Zero is not an error; the start operation is just disabled.
func (s *ExamService) EligibleCount(ctx context.Context, sel domain.Selection) (int, error) {
	bank, hist, err := s.bankWithHistory(ctx)
	if err != nil {
		return 0, err
	}
	return len(engine.EligibleIndices(bank, sel, hist)), nil
}

func (s *ExamService) bankWithHistory(ctx context.Context) (*domain.Exam, map[string]domain.QuestionHistory, error) {
	bank, err := s.QBank(ctx)
	if err != nil {
		return nil, nil, err
	}
	exams, err := s.exams.ListExams(ctx)
	if err != nil {
		return nil, nil, err
	}
	return bank, engine.BuildAnswerHistory(exams, bank), nil
}

// Resume restores a saved attempt. Finalize and resume are mutually
// exclusive: a submitted attempt has no snapshot left to resume.
func (s *ExamService) Resume(ctx context.Context, examID string) (*engine.Session, error) {
	snap, err := s.snapshots.Load(ctx, examID)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, domain.ErrSnapshotNotFound
	}
	sess, err := engine.RestoreSession(snap, s.now)
	if err != nil {
		return nil, err
	}
	s.register(examID, sess)
	return sess, nil
}

// Session returns the live session for an exam, if one is registered.
func (s *ExamService) Session(examID string) (*engine.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[examID]
	return sess, ok
}

// SaveAndExit checkpoints the attempt and discards the live session. On a
// failed save the session stays registered and untouched; the caller reports
// the error and the attempt continues.
func (s *ExamService) SaveAndExit(ctx context.Context, examID string) error {
	sess, ok := s.Session(examID)
	if !ok {
		return domain.ErrSessionNotFound
	}
	snap := sess.Snapshot()
	if err := s.snapshots.Save(ctx, snap); err != nil {
		return err
	}
	s.discard(examID, sess)
	return nil
}

// Submit finalizes the attempt: the session transitions to summary, the
// result is appended to the owning exam, and the saved snapshot (if any) is
// deleted. Unforced submits with unanswered questions return an
// UnansweredError for the caller to confirm.
func (s *ExamService) Submit(ctx context.Context, examID string, force bool) (*domain.Result, error) {
	sess, ok := s.Session(examID)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	if err := sess.Submit(force); err != nil {
		return nil, err
	}
	return s.finalize(ctx, examID, sess, sess.Expired())
}

// FinalizeExpired persists the result of a session that the countdown
// already force-submitted.
func (s *ExamService) FinalizeExpired(ctx context.Context, examID string) (*domain.Result, error) {
	sess, ok := s.Session(examID)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	if !sess.Expired() {
		return nil, domain.ErrNotTaking
	}
	return s.finalize(ctx, examID, sess, true)
}

func (s *ExamService) finalize(ctx context.Context, examID string, sess *engine.Session, autoSubmit bool) (*domain.Result, error) {
	result := engine.Finalize(sess, autoSubmit)

	owningID := examID
	if base := sess.BaseExam(); base != nil {
		owningID = base.ID
	}
	exam, err := s.exams.GetExam(ctx, owningID)
	if err != nil {
		return nil, err
	}
	exam.Results = append(exam.Results, result)
	if err := s.exams.UpsertExam(ctx, exam); err != nil {
		return nil, err
	}
	if owningID == engine.QBankID {
		s.mu.Lock()
		if s.qbank != nil && s.qbank.ID == exam.ID {
			bank := exam
			s.qbank = &bank
		}
		s.mu.Unlock()
	}
	// The session is spent either way; a failed snapshot delete must not
	// leave it registered.
	err = s.snapshots.Delete(ctx, examID)
	s.discard(examID, sess)
	if err != nil {
		return &result, err
	}
	return &result, nil
}

// Abandon drops a live session without saving, tearing down its timer.
func (s *ExamService) Abandon(examID string) {
	sess, ok := s.Session(examID)
	if !ok {
		return
	}
	s.discard(examID, sess)
}

// CleanupOrphanSnapshots deletes saved attempts whose exam no longer exists.
func (s *ExamService) CleanupOrphanSnapshots(ctx context.Context) error {
	snaps, err := s.snapshots.List(ctx)
	if err != nil {
		return err
	}
	if len(snaps) == 0 {
		return nil
	}
	exams, err := s.exams.ListExams(ctx)
	if err != nil {
		return err
	}
	known := make(map[string]bool, len(exams)+1)
	for _, exam := range exams {
		known[exam.ID] = true
	}
	known[engine.QBankID] = true
	for _, snap := range snaps {
		if !known[snap.ExamID] {
			_ = s.snapshots.Delete(ctx, snap.ExamID)
		}
	}
	return nil
}

func (s *ExamService) register(examID string, sess *engine.Session) {
	s.mu.Lock()
	if prior, ok := s.sessions[examID]; ok && prior != sess {
		prior.Dispose()
	}
	s.sessions[examID] = sess
	s.mu.Unlock()

	sess.StartTimer(func() {
		// Countdown expiry persists the result in the background; the
		// transport learns about it from the next view it renders.
		_, _ = s.FinalizeExpired(context.Background(), examID)
	})
}

func (s *ExamService) discard(examID string, sess *engine.Session) {
	sess.Dispose()
	s.mu.Lock()
	if s.sessions[examID] == sess {
		delete(s.sessions, examID)
	}
	s.mu.Unlock()
}
