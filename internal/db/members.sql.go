package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

const memberColumns = `id, member_token, display_name, email, plan_id, membership_status,
	membership_expires_at, stripe_customer_id, stripe_payment_intent, created_at, updated_at`

func scanMember(row interface{ Scan(...interface{}) error }) (Member, error) {
	var i Member
	err := row.Scan(
		&i.ID,
		&i.MemberToken,
		&i.DisplayName,
		&i.Email,
		&i.PlanID,
		&i.MembershipStatus,
		&i.MembershipExpiresAt,
		&i.StripeCustomerID,
		&i.StripePaymentIntent,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createMember = `-- name: CreateMember :one
INSERT INTO members (member_token, display_name, email)
VALUES ($1, $2, $3)
RETURNING ` + memberColumns

type CreateMemberParams struct {
	MemberToken string
	DisplayName sql.NullString
	Email       sql.NullString
}

func (q *Queries) CreateMember(ctx context.Context, arg CreateMemberParams) (Member, error) {
	row := q.db.QueryRowContext(ctx, createMember, arg.MemberToken, arg.DisplayName, arg.Email)
	return scanMember(row)
}

const getMemberByID = `-- name: GetMemberByID :one
SELECT ` + memberColumns + ` FROM members WHERE id = $1`

func (q *Queries) GetMemberByID(ctx context.Context, id uuid.UUID) (Member, error) {
	row := q.db.QueryRowContext(ctx, getMemberByID, id)
	return scanMember(row)
}

const getMemberByToken = `-- name: GetMemberByToken :one
SELECT ` + memberColumns + ` FROM members WHERE member_token = $1`

func (q *Queries) GetMemberByToken(ctx context.Context, memberToken string) (Member, error) {
	row := q.db.QueryRowContext(ctx, getMemberByToken, memberToken)
	return scanMember(row)
}

const attachStripeCustomer = `-- name: AttachStripeCustomer :one
UPDATE members
SET plan_id               = $2,
    stripe_customer_id    = $3,
    stripe_payment_intent = $4,
    email                 = COALESCE($5, email),
    membership_status     = 'pending',
    updated_at            = now()
WHERE id = $1
RETURNING ` + memberColumns

type AttachStripeCustomerParams struct {
	ID                  uuid.UUID
	PlanID              sql.NullString
	StripeCustomerID    sql.NullString
	StripePaymentIntent sql.NullString
	Email               sql.NullString
}

func (q *Queries) AttachStripeCustomer(ctx context.Context, arg AttachStripeCustomerParams) (Member, error) {
	row := q.db.QueryRowContext(ctx, attachStripeCustomer,
		arg.ID,
		arg.PlanID,
		arg.StripeCustomerID,
		arg.StripePaymentIntent,
		arg.Email,
	)
	return scanMember(row)
}

const getMemberByPaymentIntent = `-- name: GetMemberByPaymentIntent :one
SELECT ` + memberColumns + ` FROM members WHERE stripe_payment_intent = $1`

func (q *Queries) GetMemberByPaymentIntent(ctx context.Context, stripePaymentIntent sql.NullString) (Member, error) {
	row := q.db.QueryRowContext(ctx, getMemberByPaymentIntent, stripePaymentIntent)
	return scanMember(row)
}

const activateMembership = `-- name: ActivateMembership :one
UPDATE members
SET membership_status     = 'active',
    membership_expires_at = $2,
    updated_at            = now()
WHERE id = $1
RETURNING ` + memberColumns

type ActivateMembershipParams struct {
	ID        uuid.UUID
	ExpiresAt time.Time
}

func (q *Queries) ActivateMembership(ctx context.Context, arg ActivateMembershipParams) (Member, error) {
	row := q.db.QueryRowContext(ctx, activateMembership, arg.ID, arg.ExpiresAt)
	return scanMember(row)
}

const markMemberPaymentFailed = `-- name: MarkMemberPaymentFailed :one
UPDATE members
SET membership_status = 'payment_failed',
    updated_at        = now()
WHERE stripe_payment_intent = $1
  AND membership_status <> 'active'
RETURNING ` + memberColumns

func (q *Queries) MarkMemberPaymentFailed(ctx context.Context, stripePaymentIntent sql.NullString) (Member, error) {
	row := q.db.QueryRowContext(ctx, markMemberPaymentFailed, stripePaymentIntent)
	return scanMember(row)
}

const listActivePlans = `-- name: ListActivePlans :many
SELECT id, name, description, price, currency, duration_days, is_active, sort_order
FROM plans
WHERE is_active
ORDER BY sort_order, id`

func (q *Queries) ListActivePlans(ctx context.Context) ([]Plan, error) {
	rows, err := q.db.QueryContext(ctx, listActivePlans)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Plan
	for rows.Next() {
		var i Plan
		if err := rows.Scan(
			&i.ID,
			&i.Name,
			&i.Description,
			&i.Price,
			&i.Currency,
			&i.DurationDays,
			&i.IsActive,
			&i.SortOrder,
		); err != nil {
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

const getPlanByID = `-- name: GetPlanByID :one
SELECT id, name, description, price, currency, duration_days, is_active, sort_order
FROM plans
WHERE id = $1`

func (q *Queries) GetPlanByID(ctx context.Context, id string) (Plan, error) {
	row := q.db.QueryRowContext(ctx, getPlanByID, id)
	var i Plan
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Description,
		&i.Price,
		&i.Currency,
		&i.DurationDays,
		&i.IsActive,
		&i.SortOrder,
	)
	return i, err
}
