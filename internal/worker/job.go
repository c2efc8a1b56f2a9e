package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/Nyanko-meow/Smoke-DEMO-sub006/internal/achievement"
	"github.com/Nyanko-meow/Smoke-DEMO-sub006/internal/ai"
	"github.com/Nyanko-meow/Smoke-DEMO-sub006/internal/assessment"
	"github.com/Nyanko-meow/Smoke-DEMO-sub006/internal/db"
	"github.com/Nyanko-meow/Smoke-DEMO-sub006/internal/email"
	"github.com/Nyanko-meow/Smoke-DEMO-sub006/internal/store"
)

// FollowUpStore is the part of *store.Store the pipeline writes through.
type FollowUpStore interface {
	CompleteFollowUp(ctx context.Context, p store.CompleteFollowUpParams) (db.Assessment, []db.Achievement, error)
	MarkFollowUpFailed(ctx context.Context, assessmentID uuid.UUID, reason string) (db.Assessment, error)
}

// Job holds the dependencies of the follow-up pipeline.
type Job struct {
	q       db.Querier
	store   FollowUpStore
	advisor ai.Advisor // nil means static notes only
	mailer  email.Sender
	logger  *slog.Logger
}

func NewJob(
	q db.Querier,
	st FollowUpStore,
	advisor ai.Advisor,
	mailer email.Sender,
	logger *slog.Logger,
) *Job {
	return &Job{
		q:       q,
		store:   st,
		advisor: advisor,
		mailer:  mailer,
		logger:  logger,
	}
}

// Run executes the follow-up for one stored assessment:
//
//  1. Load the assessment and decode its result snapshot.
//  2. Evaluate achievements against the member's history.
//  3. Ask the advisor for a coach note (static note on failure).
//  4. Persist atomically via store.CompleteFollowUp.
//  5. Send the summary email.
//
// Errors go back to the Runner, which retries before MarkFollowUpFailed.
func (j *Job) Run(ctx context.Context, assessmentID uuid.UUID) error {
	log := j.logger.With("assessment_id", assessmentID)
	log.Info("job: starting")

	// ── 1. Load ───────────────────────────────────────────────────────────────
	row, err := j.q.GetAssessmentByID(ctx, assessmentID)
	if err != nil {
		return fmt.Errorf("job: get assessment: %w", err)
	}
	if row.FollowupStatus == db.FollowupStatusDone {
		log.Debug("job: follow-up already done")
		return nil
	}

	var res assessment.Result
	if err := json.Unmarshal(row.ResultJson, &res); err != nil {
		return fmt.Errorf("job: decode result snapshot: %w", err)
	}

	// ── 2. Achievements ───────────────────────────────────────────────────────
	// Only earlier rows count; the poller may reach this one after later
	// submissions.
	prior, err := j.q.CountAssessmentsBefore(ctx, db.CountAssessmentsBeforeParams{
		MemberID:  row.MemberID,
		CreatedAt: row.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("job: count assessments: %w", err)
	}
	earned := achievement.Evaluate(achievement.Context{Result: res, PriorAssessments: prior})

	log.Debug("job: evaluated achievements", "prior", prior, "earned", len(earned))

	// ── 3. Coach note ─────────────────────────────────────────────────────────
	note := ai.StaticNote(res)
	if j.advisor != nil {
		advised, err := j.advisor.Advise(ctx, res)
		if err != nil {
			// Non-fatal: the static note still gives the member something useful.
			log.Warn("job: coach note generation failed, using static note", "error", err)
		} else {
			note = advised
		}
	}

	// ── 4. Persist ────────────────────────────────────────────────────────────
	_, unlocked, err := j.store.CompleteFollowUp(ctx, store.CompleteFollowUpParams{
		AssessmentID: assessmentID,
		MemberID:     row.MemberID,
		Achievements: achievement.Strings(earned),
		CoachNote:    note,
	})
	if err != nil {
		return fmt.Errorf("job: complete follow-up: %w", err)
	}

	log.Info("job: follow-up persisted",
		"tier", res.Level.Tier,
		"note_source", note.Source,
		"unlocked", len(unlocked),
	)

	// ── 5. Email ──────────────────────────────────────────────────────────────
	// Failures from here on are logged only; the result is already stored.
	member, err := j.q.GetMemberByID(ctx, row.MemberID)
	if err != nil {
		log.Error("job: could not load member for email delivery", "error", err)
		return nil
	}
	if !member.Email.Valid || member.Email.String == "" {
		log.Debug("job: member has no email address, skipping summary email")
		return nil
	}

	titles := make([]string, 0, len(unlocked))
	for _, a := range unlocked {
		if def, ok := achievement.Lookup(achievement.Code(a.Code)); ok {
			titles = append(titles, def.Title)
		}
	}

	if err := j.mailer.SendAssessmentSummary(ctx, email.AssessmentSummaryParams{
		To:                 member.Email.String,
		DisplayName:        member.DisplayName.String,
		AssessmentID:       assessmentID.String(),
		LevelLabel:         res.Level.Label,
		SuccessProbability: res.SuccessProbability,
		MonthlySavings:     res.Savings.Monthly,
		YearlySavings:      res.Savings.Yearly,
		Currency:           "vnd",
		CoachSummary:       note.Summary,
		CoachTips:          note.Tips,
		Achievements:       titles,
	}); err != nil {
		log.Error("job: failed to send summary email", "to", member.Email.String, "error", err)
	}

	return nil
}
