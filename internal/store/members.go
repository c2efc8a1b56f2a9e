package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Nyanko-meow/Smoke-DEMO-sub006/internal/db"
)

// AttachPaymentIntentParams groups the Stripe and plan fields written
// together when a membership checkout starts.
type AttachPaymentIntentParams struct {
	MemberID            uuid.UUID
	PlanID              string
	StripeCustomerID    string
	StripePaymentIntent string
	Email               string
}

// ErrPaymentIntentAlreadyAttached is returned when the member already has a
// pending PaymentIntent for the same plan. The checkout handler returns the
// existing client_secret instead of creating a second PaymentIntent.
var ErrPaymentIntentAlreadyAttached = errors.New("store: payment intent already attached to member")

// ErrMembershipAlreadyActive is returned by ActivateMembership for a
// duplicate payment_intent.succeeded delivery.
var ErrMembershipAlreadyActive = errors.New("store: membership already active for payment intent")

// AttachPaymentIntent guards against two PaymentIntents on one pending
// checkout, then writes the plan, customer ID, PI and email.
//
// Two tabs opening checkout at once would otherwise both call Stripe and the
// second write would orphan the first PaymentIntent. Under serializable
// isolation the loser sees the first commit and gets
// ErrPaymentIntentAlreadyAttached along with the current member row.
//
// A pending checkout for a different plan is superseded: the new PI is
// written and the old one is returned as replaced so the caller can cancel
// it in Stripe.
func (s *Store) AttachPaymentIntent(ctx context.Context, p AttachPaymentIntentParams) (db.Member, string, error) {
	var (
		member   db.Member
		replaced string
	)

	err := s.withTx(ctx, func(ctx context.Context, q db.Querier) error {
		existing, err := q.GetMemberByID(ctx, p.MemberID)
		if err != nil {
			return fmt.Errorf("AttachPaymentIntent: get member: %w", err)
		}

		// Only a pending checkout is reused; a failed one gets a fresh PI.
		if existing.MembershipStatus == db.MembershipStatusPending &&
			existing.StripePaymentIntent.Valid && existing.StripePaymentIntent.String != "" {
			if existing.PlanID.String == p.PlanID {
				member = existing
				return ErrPaymentIntentAlreadyAttached
			}
			replaced = existing.StripePaymentIntent.String
		}

		updated, err := q.AttachStripeCustomer(ctx, db.AttachStripeCustomerParams{
			ID:     p.MemberID,
			PlanID: sql.NullString{String: p.PlanID, Valid: p.PlanID != ""},
			StripeCustomerID: sql.NullString{
				String: p.StripeCustomerID,
				Valid:  p.StripeCustomerID != "",
			},
			StripePaymentIntent: sql.NullString{
				String: p.StripePaymentIntent,
				Valid:  true,
			},
			Email: sql.NullString{
				String: p.Email,
				Valid:  p.Email != "",
			},
		})
		if err != nil {
			return fmt.Errorf("AttachPaymentIntent: attach stripe customer: %w", err)
		}

		member = updated
		return nil
	})

	if errors.Is(err, ErrPaymentIntentAlreadyAttached) {
		return member, "", ErrPaymentIntentAlreadyAttached
	}
	if err != nil {
		return db.Member{}, "", err
	}
	return member, replaced, nil
}

// ActivateMembership is called by the Stripe webhook on
// payment_intent.succeeded. It looks the member up by PaymentIntent, loads
// the plan they checked out and sets the expiry from the plan duration,
// counted from now.
//
// A member already active on this PaymentIntent yields
// ErrMembershipAlreadyActive with the current row; the webhook acknowledges
// it without sending a second receipt.
func (s *Store) ActivateMembership(ctx context.Context, stripePaymentIntent string, now time.Time) (db.Member, db.Plan, error) {
	var (
		member db.Member
		plan   db.Plan
	)

	err := s.withTx(ctx, func(ctx context.Context, q db.Querier) error {
		existing, err := q.GetMemberByPaymentIntent(ctx, sql.NullString{
			String: stripePaymentIntent,
			Valid:  true,
		})
		if err != nil {
			return fmt.Errorf("ActivateMembership: get member: %w", err)
		}
		if !existing.PlanID.Valid {
			return fmt.Errorf("ActivateMembership: member %s has no plan attached", existing.ID)
		}

		plan, err = q.GetPlanByID(ctx, existing.PlanID.String)
		if err != nil {
			return fmt.Errorf("ActivateMembership: get plan: %w", err)
		}

		if existing.MembershipStatus == db.MembershipStatusActive {
			member = existing
			return ErrMembershipAlreadyActive
		}

		updated, err := q.ActivateMembership(ctx, db.ActivateMembershipParams{
			ID:        existing.ID,
			ExpiresAt: now.AddDate(0, 0, int(plan.DurationDays)),
		})
		if err != nil {
			return fmt.Errorf("ActivateMembership: update member: %w", err)
		}

		member = updated
		return nil
	})

	if errors.Is(err, ErrMembershipAlreadyActive) {
		return member, plan, ErrMembershipAlreadyActive
	}
	if err != nil {
		return db.Member{}, db.Plan{}, err
	}
	return member, plan, nil
}
