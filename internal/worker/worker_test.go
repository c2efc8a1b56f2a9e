package worker

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Nyanko-meow/Smoke-DEMO-sub006/internal/ai"
	"github.com/Nyanko-meow/Smoke-DEMO-sub006/internal/assessment"
	"github.com/Nyanko-meow/Smoke-DEMO-sub006/internal/db"
	"github.com/Nyanko-meow/Smoke-DEMO-sub006/internal/email"
	"github.com/Nyanko-meow/Smoke-DEMO-sub006/internal/store"
)

// ─── STUBS ────────────────────────────────────────────────────────────────────

type stubQuerier struct {
	db.Querier // nil; unimplemented methods panic

	assessment db.Assessment
	getErr     error
	prior      int64
	countArgs  []db.CountAssessmentsBeforeParams
	member     db.Member
	pending    []db.Assessment
}

func (s *stubQuerier) GetAssessmentByID(_ context.Context, _ uuid.UUID) (db.Assessment, error) {
	return s.assessment, s.getErr
}

func (s *stubQuerier) CountAssessmentsBefore(_ context.Context, p db.CountAssessmentsBeforeParams) (int64, error) {
	s.countArgs = append(s.countArgs, p)
	return s.prior, nil
}

func (s *stubQuerier) GetMemberByID(_ context.Context, _ uuid.UUID) (db.Member, error) {
	return s.member, nil
}

func (s *stubQuerier) ListPendingFollowUps(_ context.Context) ([]db.Assessment, error) {
	return s.pending, nil
}

type stubStore struct {
	mu        sync.Mutex
	completed []store.CompleteFollowUpParams
	unlock    []db.Achievement
	failed    map[uuid.UUID]string
}

func (s *stubStore) CompleteFollowUp(_ context.Context, p store.CompleteFollowUpParams) (db.Assessment, []db.Achievement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed = append(s.completed, p)
	return db.Assessment{ID: p.AssessmentID, FollowupStatus: db.FollowupStatusDone}, s.unlock, nil
}

func (s *stubStore) MarkFollowUpFailed(_ context.Context, id uuid.UUID, reason string) (db.Assessment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failed == nil {
		s.failed = map[uuid.UUID]string{}
	}
	s.failed[id] = reason
	return db.Assessment{ID: id, FollowupStatus: db.FollowupStatusError}, nil
}

type stubAdvisor struct {
	note ai.CoachNote
	err  error
}

func (s *stubAdvisor) Advise(_ context.Context, _ assessment.Result) (ai.CoachNote, error) {
	return s.note, s.err
}

type stubMailer struct {
	summaries []email.AssessmentSummaryParams
}

func (s *stubMailer) SendAssessmentSummary(_ context.Context, p email.AssessmentSummaryParams) error {
	s.summaries = append(s.summaries, p)
	return nil
}

func (s *stubMailer) SendMembershipReceipt(_ context.Context, _ email.MembershipReceiptParams) error {
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// storedAssessment runs the calculator on the moderate scenario and wraps the
// result the way SaveAssessment stores it.
func storedAssessment(t *testing.T) db.Assessment {
	t.Helper()
	var answers []assessment.SurveyAnswer
	for _, q := range assessment.DefaultCatalog().Questions() {
		opt := q.Options[len(q.Options)-1]
		switch q.ID {
		case 1:
			opt = q.Options[0]
		case assessment.ConsumptionQuestionID:
			opt = q.Options[2]
		}
		answers = append(answers, assessment.SurveyAnswer{QuestionID: q.ID, OptionID: opt.ID})
	}
	res, err := assessment.NewCalculator(nil, nil).Assess(assessment.Input{
		Answers: answers, YearsSmoked: 10, Age: 30, PackagePrice: 25000,
		Motivation: assessment.MotivationMoney,
	})
	if err != nil {
		t.Fatalf("Assess: %v", err)
	}
	raw, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return db.Assessment{
		ID:             uuid.New(),
		MemberID:       uuid.New(),
		ResultJson:     raw,
		FollowupStatus: db.FollowupStatusPending,
		CreatedAt:      time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
	}
}

// ─── Job ──────────────────────────────────────────────────────────────────────

func TestJobRun_PersistsAchievementsNoteAndEmails(t *testing.T) {
	row := storedAssessment(t)
	q := &stubQuerier{
		assessment: row,
		member: db.Member{
			ID:          row.MemberID,
			Email:       sql.NullString{String: "lan@example.com", Valid: true},
			DisplayName: sql.NullString{String: "Lan", Valid: true},
		},
	}
	st := &stubStore{unlock: []db.Achievement{{Code: "first_assessment"}, {Code: "big_saver"}}}
	mailer := &stubMailer{}
	advisor := &stubAdvisor{note: ai.CoachNote{Summary: "Good start.", Tips: []string{"Set a date"}, Source: ai.SourceAnthropic}}

	job := NewJob(q, st, advisor, mailer, discardLogger())
	if err := job.Run(context.Background(), row.ID); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(st.completed) != 1 {
		t.Fatalf("expected 1 CompleteFollowUp call, got %d", len(st.completed))
	}
	got := st.completed[0]
	want := map[string]bool{"first_assessment": true, "motivated": true, "big_saver": true}
	if len(got.Achievements) != len(want) {
		t.Errorf("achievements: got %v", got.Achievements)
	}
	for _, code := range got.Achievements {
		if !want[code] {
			t.Errorf("unexpected achievement %q", code)
		}
	}
	if note, ok := got.CoachNote.(ai.CoachNote); !ok || note.Summary != "Good start." {
		t.Errorf("coach note: %+v", got.CoachNote)
	}

	if len(mailer.summaries) != 1 {
		t.Fatalf("expected 1 summary email, got %d", len(mailer.summaries))
	}
	sent := mailer.summaries[0]
	if sent.SuccessProbability != 82 || sent.LevelLabel != "Moderate Nicotine Dependence" {
		t.Errorf("summary: %+v", sent)
	}
	if len(sent.Achievements) != 2 || sent.Achievements[0] != "First step" {
		t.Errorf("achievement titles: %v", sent.Achievements)
	}
}

func TestJobRun_PriorCountIsTakenBeforeThisAssessment(t *testing.T) {
	row := storedAssessment(t)
	q := &stubQuerier{assessment: row, prior: 2}
	st := &stubStore{}

	if err := NewJob(q, st, nil, &stubMailer{}, discardLogger()).Run(context.Background(), row.ID); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(q.countArgs) != 1 {
		t.Fatalf("expected one count query, got %d", len(q.countArgs))
	}
	if args := q.countArgs[0]; args.MemberID != row.MemberID || !args.CreatedAt.Equal(row.CreatedAt) {
		t.Errorf("count query args: %+v", args)
	}
	for _, code := range st.completed[0].Achievements {
		if code == "first_assessment" {
			t.Error("first_assessment must not be earned with earlier assessments on record")
		}
	}
}

func TestJobRun_AdvisorFailureFallsBackToStaticNote(t *testing.T) {
	row := storedAssessment(t)
	st := &stubStore{}
	job := NewJob(&stubQuerier{assessment: row}, st, &stubAdvisor{err: errors.New("timeout")}, &stubMailer{}, discardLogger())

	if err := job.Run(context.Background(), row.ID); err != nil {
		t.Fatalf("Run: %v", err)
	}
	note, ok := st.completed[0].CoachNote.(ai.CoachNote)
	if !ok || note.Source != ai.SourceStatic {
		t.Errorf("expected static note, got %+v", st.completed[0].CoachNote)
	}
}

func TestJobRun_NilAdvisorUsesStaticNote(t *testing.T) {
	row := storedAssessment(t)
	st := &stubStore{}
	job := NewJob(&stubQuerier{assessment: row}, st, nil, &stubMailer{}, discardLogger())

	if err := job.Run(context.Background(), row.ID); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if note := st.completed[0].CoachNote.(ai.CoachNote); note.Source != ai.SourceStatic {
		t.Errorf("source: got %q", note.Source)
	}
}

func TestJobRun_AlreadyDoneIsNoop(t *testing.T) {
	row := storedAssessment(t)
	row.FollowupStatus = db.FollowupStatusDone
	st := &stubStore{}

	if err := NewJob(&stubQuerier{assessment: row}, st, nil, &stubMailer{}, discardLogger()).Run(context.Background(), row.ID); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(st.completed) != 0 {
		t.Error("done follow-up must not be persisted again")
	}
}

func TestJobRun_CorruptSnapshotFails(t *testing.T) {
	row := storedAssessment(t)
	row.ResultJson = json.RawMessage(`{"total_score":`)

	err := NewJob(&stubQuerier{assessment: row}, &stubStore{}, nil, &stubMailer{}, discardLogger()).Run(context.Background(), row.ID)
	if err == nil {
		t.Fatal("expected decode error")
	}
}

func TestJobRun_NoEmailSkipsSummary(t *testing.T) {
	row := storedAssessment(t)
	mailer := &stubMailer{}

	if err := NewJob(&stubQuerier{assessment: row, prior: 3}, &stubStore{}, nil, mailer, discardLogger()).Run(context.Background(), row.ID); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(mailer.summaries) != 0 {
		t.Error("expected no email without an address")
	}
}

// ─── Runner ───────────────────────────────────────────────────────────────────

type funcRunnable func(ctx context.Context, id uuid.UUID) error

func (f funcRunnable) Run(ctx context.Context, id uuid.UUID) error { return f(ctx, id) }

func TestRunner_RetriesThenMarksFailed(t *testing.T) {
	calls := 0
	job := funcRunnable(func(context.Context, uuid.UUID) error {
		calls++
		return errors.New("db down")
	})
	st := &stubStore{}
	r := NewRunner(job, st, &stubQuerier{}, RunnerConfig{MaxRetries: 3, BaseBackoff: time.Millisecond}, discardLogger())

	id := uuid.New()
	r.runWithRetry(context.Background(), id, discardLogger())

	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
	if st.failed[id] != "db down" {
		t.Errorf("expected follow-up marked failed, got %q", st.failed[id])
	}
}

func TestRunner_SucceedsOnRetry(t *testing.T) {
	calls := 0
	job := funcRunnable(func(context.Context, uuid.UUID) error {
		calls++
		if calls == 1 {
			return errors.New("transient")
		}
		return nil
	})
	st := &stubStore{}
	r := NewRunner(job, st, &stubQuerier{}, RunnerConfig{BaseBackoff: time.Millisecond}, discardLogger())

	r.runWithRetry(context.Background(), uuid.New(), discardLogger())

	if calls != 2 {
		t.Errorf("expected 2 attempts, got %d", calls)
	}
	if len(st.failed) != 0 {
		t.Error("a job that eventually succeeds must not be marked failed")
	}
}

func TestRunner_EnqueueFullQueue(t *testing.T) {
	r := NewRunner(funcRunnable(func(context.Context, uuid.UUID) error { return nil }),
		&stubStore{}, &stubQuerier{}, RunnerConfig{Workers: 1}, discardLogger())

	ctx := context.Background()
	for n := 0; n < 2; n++ {
		if err := r.Enqueue(ctx, uuid.New()); err != nil {
			t.Fatalf("enqueue within buffer: %v", err)
		}
	}
	if err := r.Enqueue(ctx, uuid.New()); err == nil {
		t.Error("expected an error once the buffer is full")
	}
}

func TestRunner_StartProcessesQueuedAndPolledWork(t *testing.T) {
	polled := uuid.New()
	queued := uuid.New()

	seen := make(chan uuid.UUID, 4)
	job := funcRunnable(func(_ context.Context, id uuid.UUID) error {
		seen <- id
		return nil
	})
	q := &stubQuerier{pending: []db.Assessment{{ID: polled}}}
	r := NewRunner(job, &stubStore{}, q, RunnerConfig{Workers: 2, PollInterval: time.Hour}, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Start(ctx)
		close(done)
	}()

	if err := r.Enqueue(ctx, queued); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	got := map[uuid.UUID]bool{}
	timeout := time.After(2 * time.Second)
	for len(got) < 2 {
		select {
		case id := <-seen:
			got[id] = true
		case <-timeout:
			t.Fatalf("timed out, processed %v", got)
		}
	}
	if !got[polled] || !got[queued] {
		t.Errorf("processed %v", got)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
}
