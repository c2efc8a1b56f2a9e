package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

const assessmentColumns = `id, member_id, age, years_smoked, package_price, motivation, total_score,
	addiction_tier, cigarettes_per_day, pack_year, success_probability, monthly_savings,
	yearly_savings, answers_json, result_json, followup_status, coach_note_json,
	error_message, created_at, followed_up_at`

func scanAssessment(row interface{ Scan(...interface{}) error }) (Assessment, error) {
	var i Assessment
	err := row.Scan(
		&i.ID,
		&i.MemberID,
		&i.Age,
		&i.YearsSmoked,
		&i.PackagePrice,
		&i.Motivation,
		&i.TotalScore,
		&i.AddictionTier,
		&i.CigarettesPerDay,
		&i.PackYear,
		&i.SuccessProbability,
		&i.MonthlySavings,
		&i.YearlySavings,
		&i.AnswersJson,
		&i.ResultJson,
		&i.FollowupStatus,
		&i.CoachNoteJson,
		&i.ErrorMessage,
		&i.CreatedAt,
		&i.FollowedUpAt,
	)
	return i, err
}

func scanAssessments(rows *sql.Rows) ([]Assessment, error) {
	defer rows.Close()
	var items []Assessment
	for rows.Next() {
		i, err := scanAssessment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createAssessment = `-- name: CreateAssessment :one
INSERT INTO assessments (
    member_id, age, years_smoked, package_price, motivation, total_score,
    addiction_tier, cigarettes_per_day, pack_year, success_probability,
    monthly_savings, yearly_savings, answers_json, result_json
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
RETURNING ` + assessmentColumns

type CreateAssessmentParams struct {
	MemberID           uuid.UUID
	Age                int32
	YearsSmoked        int32
	PackagePrice       float64
	Motivation         string
	TotalScore         float64
	AddictionTier      string
	CigarettesPerDay   int32
	PackYear           float64
	SuccessProbability int32
	MonthlySavings     int64
	YearlySavings      int64
	AnswersJson        json.RawMessage
	ResultJson         json.RawMessage
}

func (q *Queries) CreateAssessment(ctx context.Context, arg CreateAssessmentParams) (Assessment, error) {
	row := q.db.QueryRowContext(ctx, createAssessment,
		arg.MemberID,
		arg.Age,
		arg.YearsSmoked,
		arg.PackagePrice,
		arg.Motivation,
		arg.TotalScore,
		arg.AddictionTier,
		arg.CigarettesPerDay,
		arg.PackYear,
		arg.SuccessProbability,
		arg.MonthlySavings,
		arg.YearlySavings,
		arg.AnswersJson,
		arg.ResultJson,
	)
	return scanAssessment(row)
}

const getAssessmentByID = `-- name: GetAssessmentByID :one
SELECT ` + assessmentColumns + ` FROM assessments WHERE id = $1`

func (q *Queries) GetAssessmentByID(ctx context.Context, id uuid.UUID) (Assessment, error) {
	row := q.db.QueryRowContext(ctx, getAssessmentByID, id)
	return scanAssessment(row)
}

const listAssessmentsByMember = `-- name: ListAssessmentsByMember :many
SELECT ` + assessmentColumns + `
FROM assessments
WHERE member_id = $1
ORDER BY created_at DESC
LIMIT $2`

type ListAssessmentsByMemberParams struct {
	MemberID uuid.UUID
	Limit    int32
}

func (q *Queries) ListAssessmentsByMember(ctx context.Context, arg ListAssessmentsByMemberParams) ([]Assessment, error) {
	rows, err := q.db.QueryContext(ctx, listAssessmentsByMember, arg.MemberID, arg.Limit)
	if err != nil {
		return nil, err
	}
	return scanAssessments(rows)
}

const countAssessmentsBefore = `-- name: CountAssessmentsBefore :one
SELECT count(*) FROM assessments WHERE member_id = $1 AND created_at < $2`

type CountAssessmentsBeforeParams struct {
	MemberID  uuid.UUID
	CreatedAt time.Time
}

func (q *Queries) CountAssessmentsBefore(ctx context.Context, arg CountAssessmentsBeforeParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, countAssessmentsBefore, arg.MemberID, arg.CreatedAt)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const listPendingFollowUps = `-- name: ListPendingFollowUps :many
SELECT ` + assessmentColumns + `
FROM assessments
WHERE followup_status IN ('pending', 'processing')
ORDER BY created_at
LIMIT 100`

func (q *Queries) ListPendingFollowUps(ctx context.Context) ([]Assessment, error) {
	rows, err := q.db.QueryContext(ctx, listPendingFollowUps)
	if err != nil {
		return nil, err
	}
	return scanAssessments(rows)
}

const setFollowUpProcessing = `-- name: SetFollowUpProcessing :one
UPDATE assessments
SET followup_status = 'processing'
WHERE id = $1
RETURNING ` + assessmentColumns

func (q *Queries) SetFollowUpProcessing(ctx context.Context, id uuid.UUID) (Assessment, error) {
	row := q.db.QueryRowContext(ctx, setFollowUpProcessing, id)
	return scanAssessment(row)
}

const finalizeFollowUp = `-- name: FinalizeFollowUp :one
UPDATE assessments
SET followup_status = 'done',
    coach_note_json = $2,
    error_message   = NULL,
    followed_up_at  = now()
WHERE id = $1
RETURNING ` + assessmentColumns

type FinalizeFollowUpParams struct {
	ID            uuid.UUID
	CoachNoteJson pqtype.NullRawMessage
}

func (q *Queries) FinalizeFollowUp(ctx context.Context, arg FinalizeFollowUpParams) (Assessment, error) {
	row := q.db.QueryRowContext(ctx, finalizeFollowUp, arg.ID, arg.CoachNoteJson)
	return scanAssessment(row)
}

const setFollowUpError = `-- name: SetFollowUpError :one
UPDATE assessments
SET followup_status = 'error',
    error_message   = $2
WHERE id = $1
RETURNING ` + assessmentColumns

type SetFollowUpErrorParams struct {
	ID           uuid.UUID
	ErrorMessage sql.NullString
}

func (q *Queries) SetFollowUpError(ctx context.Context, arg SetFollowUpErrorParams) (Assessment, error) {
	row := q.db.QueryRowContext(ctx, setFollowUpError, arg.ID, arg.ErrorMessage)
	return scanAssessment(row)
}
