package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"

	"github.com/Nyanko-meow/Smoke-DEMO-sub006/internal/assessment"
	"github.com/Nyanko-meow/Smoke-DEMO-sub006/internal/db"
)

// CompleteFollowUpParams is everything the worker hands to the store once
// achievements are evaluated and the coach note is generated.
type CompleteFollowUpParams struct {
	AssessmentID uuid.UUID
	MemberID     uuid.UUID
	Achievements []string // codes earned by this assessment; already-held codes are ignored
	CoachNote    any      // marshalled into coach_note_json; nil leaves it NULL
}

// SaveAssessment writes a computed assessment for a member with follow-up
// status pending. The raw answers and the full result are kept as JSONB
// snapshots next to the scalar columns used for listing.
func (s *Store) SaveAssessment(ctx context.Context, memberID uuid.UUID, in assessment.Input, res assessment.Result) (db.Assessment, error) {
	answersJSON, err := json.Marshal(in.Answers)
	if err != nil {
		return db.Assessment{}, fmt.Errorf("SaveAssessment: marshal answers: %w", err)
	}
	resultJSON, err := json.Marshal(res)
	if err != nil {
		return db.Assessment{}, fmt.Errorf("SaveAssessment: marshal result: %w", err)
	}

	row, err := s.q.CreateAssessment(ctx, db.CreateAssessmentParams{
		MemberID:           memberID,
		Age:                int32(in.Age),
		YearsSmoked:        int32(in.YearsSmoked),
		PackagePrice:       in.PackagePrice,
		Motivation:         string(in.Motivation),
		TotalScore:         res.TotalScore,
		AddictionTier:      string(res.Level.Tier),
		CigarettesPerDay:   int32(res.CigarettesPerDay),
		PackYear:           res.PackYear,
		SuccessProbability: int32(res.SuccessProbability),
		MonthlySavings:     res.Savings.Monthly,
		YearlySavings:      res.Savings.Yearly,
		AnswersJson:        answersJSON,
		ResultJson:         resultJSON,
	})
	if err != nil {
		return db.Assessment{}, fmt.Errorf("SaveAssessment: %w", err)
	}
	return row, nil
}

// CompleteFollowUp is called by the worker after a follow-up job succeeds.
// It atomically:
//
//  1. Claims the assessment (status processing).
//  2. Inserts every earned achievement the member does not hold yet.
//  3. Stores the coach note and marks the follow-up done.
//
// It returns the finalised row and only the achievements newly unlocked by
// this call, so a retried job never reports the same unlock twice.
func (s *Store) CompleteFollowUp(ctx context.Context, p CompleteFollowUpParams) (db.Assessment, []db.Achievement, error) {
	var (
		finalised db.Assessment
		unlocked  []db.Achievement
	)

	note := pqtype.NullRawMessage{}
	if p.CoachNote != nil {
		raw, err := json.Marshal(p.CoachNote)
		if err != nil {
			return db.Assessment{}, nil, fmt.Errorf("CompleteFollowUp: marshal coach note: %w", err)
		}
		note = pqtype.NullRawMessage{RawMessage: raw, Valid: true}
	}

	err := s.withTx(ctx, func(ctx context.Context, q db.Querier) error {
		unlocked = unlocked[:0]

		if _, err := q.SetFollowUpProcessing(ctx, p.AssessmentID); err != nil {
			return fmt.Errorf("CompleteFollowUp: set processing: %w", err)
		}

		for _, code := range p.Achievements {
			a, err := q.UnlockAchievement(ctx, db.UnlockAchievementParams{
				MemberID:     p.MemberID,
				Code:         code,
				AssessmentID: uuid.NullUUID{UUID: p.AssessmentID, Valid: true},
			})
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			if err != nil {
				return fmt.Errorf("CompleteFollowUp: unlock %q: %w", code, err)
			}
			unlocked = append(unlocked, a)
		}

		row, err := q.FinalizeFollowUp(ctx, db.FinalizeFollowUpParams{
			ID:            p.AssessmentID,
			CoachNoteJson: note,
		})
		if err != nil {
			return fmt.Errorf("CompleteFollowUp: finalize: %w", err)
		}
		finalised = row
		return nil
	})
	if err != nil {
		return db.Assessment{}, nil, err
	}
	return finalised, unlocked, nil
}

// MarkFollowUpFailed records a permanent follow-up failure after the worker
// exhausts its retries.
func (s *Store) MarkFollowUpFailed(ctx context.Context, assessmentID uuid.UUID, reason string) (db.Assessment, error) {
	row, err := s.q.SetFollowUpError(ctx, db.SetFollowUpErrorParams{
		ID: assessmentID,
		ErrorMessage: sql.NullString{
			String: reason,
			Valid:  true,
		},
	})
	if err != nil {
		return db.Assessment{}, fmt.Errorf("MarkFollowUpFailed: %w", err)
	}
	return row, nil
}
