package db

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/google/uuid"
)

const unlockAchievement = `-- name: UnlockAchievement :one
INSERT INTO achievements (member_id, code, assessment_id)
VALUES ($1, $2, $3)
ON CONFLICT (member_id, code) DO NOTHING
RETURNING id, member_id, code, assessment_id, unlocked_at`

type UnlockAchievementParams struct {
	MemberID     uuid.UUID
	Code         string
	AssessmentID uuid.NullUUID
}

// UnlockAchievement returns sql.ErrNoRows when the member already holds code.
func (q *Queries) UnlockAchievement(ctx context.Context, arg UnlockAchievementParams) (Achievement, error) {
	row := q.db.QueryRowContext(ctx, unlockAchievement, arg.MemberID, arg.Code, arg.AssessmentID)
	var i Achievement
	err := row.Scan(&i.ID, &i.MemberID, &i.Code, &i.AssessmentID, &i.UnlockedAt)
	return i, err
}

const listAchievementsByMember = `-- name: ListAchievementsByMember :many
SELECT id, member_id, code, assessment_id, unlocked_at
FROM achievements
WHERE member_id = $1
ORDER BY unlocked_at`

func (q *Queries) ListAchievementsByMember(ctx context.Context, memberID uuid.UUID) ([]Achievement, error) {
	rows, err := q.db.QueryContext(ctx, listAchievementsByMember, memberID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Achievement
	for rows.Next() {
		var i Achievement
		if err := rows.Scan(&i.ID, &i.MemberID, &i.Code, &i.AssessmentID, &i.UnlockedAt); err != nil {
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

const stripeEventColumns = `stripe_event_id, type, payload, processed_at, error, received_at`

func scanStripeEvent(row *sql.Row) (StripeEvent, error) {
	var i StripeEvent
	err := row.Scan(&i.StripeEventID, &i.Type, &i.Payload, &i.ProcessedAt, &i.Error, &i.ReceivedAt)
	return i, err
}

const upsertStripeEvent = `-- name: UpsertStripeEvent :one
INSERT INTO stripe_events (stripe_event_id, type, payload)
VALUES ($1, $2, $3)
ON CONFLICT (stripe_event_id) DO NOTHING
RETURNING ` + stripeEventColumns

type UpsertStripeEventParams struct {
	StripeEventID string
	Type          string
	Payload       json.RawMessage
}

// UpsertStripeEvent returns sql.ErrNoRows for an event that was already recorded.
func (q *Queries) UpsertStripeEvent(ctx context.Context, arg UpsertStripeEventParams) (StripeEvent, error) {
	row := q.db.QueryRowContext(ctx, upsertStripeEvent, arg.StripeEventID, arg.Type, arg.Payload)
	return scanStripeEvent(row)
}

const markStripeEventProcessed = `-- name: MarkStripeEventProcessed :one
UPDATE stripe_events
SET processed_at = now(), error = NULL
WHERE stripe_event_id = $1
RETURNING ` + stripeEventColumns

func (q *Queries) MarkStripeEventProcessed(ctx context.Context, stripeEventID string) (StripeEvent, error) {
	row := q.db.QueryRowContext(ctx, markStripeEventProcessed, stripeEventID)
	return scanStripeEvent(row)
}

const markStripeEventFailed = `-- name: MarkStripeEventFailed :one
UPDATE stripe_events
SET error = $2
WHERE stripe_event_id = $1
RETURNING ` + stripeEventColumns

type MarkStripeEventFailedParams struct {
	StripeEventID string
	Error         sql.NullString
}

func (q *Queries) MarkStripeEventFailed(ctx context.Context, arg MarkStripeEventFailedParams) (StripeEvent, error) {
	row := q.db.QueryRowContext(ctx, markStripeEventFailed, arg.StripeEventID, arg.Error)
	return scanStripeEvent(row)
}
