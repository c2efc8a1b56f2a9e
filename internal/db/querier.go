package db

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
)

// Querier is the full set of statements. Handlers and the worker depend on
// this interface; tests embed it in stubs and override what they call.
type Querier interface {
	// members
	CreateMember(ctx context.Context, arg CreateMemberParams) (Member, error)
	GetMemberByID(ctx context.Context, id uuid.UUID) (Member, error)
	GetMemberByToken(ctx context.Context, memberToken string) (Member, error)
	GetMemberByPaymentIntent(ctx context.Context, stripePaymentIntent sql.NullString) (Member, error)
	AttachStripeCustomer(ctx context.Context, arg AttachStripeCustomerParams) (Member, error)
	ActivateMembership(ctx context.Context, arg ActivateMembershipParams) (Member, error)
	MarkMemberPaymentFailed(ctx context.Context, stripePaymentIntent sql.NullString) (Member, error)

	// plans
	ListActivePlans(ctx context.Context) ([]Plan, error)
	GetPlanByID(ctx context.Context, id string) (Plan, error)

	// assessments
	CreateAssessment(ctx context.Context, arg CreateAssessmentParams) (Assessment, error)
	GetAssessmentByID(ctx context.Context, id uuid.UUID) (Assessment, error)
	ListAssessmentsByMember(ctx context.Context, arg ListAssessmentsByMemberParams) ([]Assessment, error)
	CountAssessmentsBefore(ctx context.Context, arg CountAssessmentsBeforeParams) (int64, error)
	ListPendingFollowUps(ctx context.Context) ([]Assessment, error)
	SetFollowUpProcessing(ctx context.Context, id uuid.UUID) (Assessment, error)
	FinalizeFollowUp(ctx context.Context, arg FinalizeFollowUpParams) (Assessment, error)
	SetFollowUpError(ctx context.Context, arg SetFollowUpErrorParams) (Assessment, error)

	// achievements
	UnlockAchievement(ctx context.Context, arg UnlockAchievementParams) (Achievement, error)
	ListAchievementsByMember(ctx context.Context, memberID uuid.UUID) ([]Achievement, error)

	// stripe events
	UpsertStripeEvent(ctx context.Context, arg UpsertStripeEventParams) (StripeEvent, error)
	MarkStripeEventProcessed(ctx context.Context, stripeEventID string) (StripeEvent, error)
	MarkStripeEventFailed(ctx context.Context, arg MarkStripeEventFailedParams) (StripeEvent, error)
}

var _ Querier = (*Queries)(nil)
