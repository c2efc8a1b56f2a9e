package db

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

type MembershipStatus string

const (
	MembershipStatusFree          MembershipStatus = "free"
	MembershipStatusPending       MembershipStatus = "pending"
	MembershipStatusActive        MembershipStatus = "active"
	MembershipStatusPaymentFailed MembershipStatus = "payment_failed"
	MembershipStatusExpired       MembershipStatus = "expired"
)

type FollowupStatus string

const (
	FollowupStatusPending    FollowupStatus = "pending"
	FollowupStatusProcessing FollowupStatus = "processing"
	FollowupStatusDone       FollowupStatus = "done"
	FollowupStatusError      FollowupStatus = "error"
)

type Plan struct {
	ID           string
	Name         string
	Description  string
	Price        int64
	Currency     string
	DurationDays int32
	IsActive     bool
	SortOrder    int32
}

type Member struct {
	ID                  uuid.UUID
	MemberToken         string
	DisplayName         sql.NullString
	Email               sql.NullString
	PlanID              sql.NullString
	MembershipStatus    MembershipStatus
	MembershipExpiresAt sql.NullTime
	StripeCustomerID    sql.NullString
	StripePaymentIntent sql.NullString
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

type Assessment struct {
	ID                 uuid.UUID
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
	FollowupStatus     FollowupStatus
	CoachNoteJson      pqtype.NullRawMessage
	ErrorMessage       sql.NullString
	CreatedAt          time.Time
	FollowedUpAt       sql.NullTime
}

type Achievement struct {
	ID           uuid.UUID
	MemberID     uuid.UUID
	Code         string
	AssessmentID uuid.NullUUID
	UnlockedAt   time.Time
}

type StripeEvent struct {
	StripeEventID string
	Type          string
	Payload       json.RawMessage
	ProcessedAt   sql.NullTime
	Error         sql.NullString
	ReceivedAt    time.Time
}
