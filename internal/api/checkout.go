package api

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/Nyanko-meow/Smoke-DEMO-sub006/internal/db"
	"github.com/Nyanko-meow/Smoke-DEMO-sub006/internal/email"
	"github.com/Nyanko-meow/Smoke-DEMO-sub006/internal/store"
	stripeinternal "github.com/Nyanko-meow/Smoke-DEMO-sub006/internal/stripe"
)

// ─── GET /api/plans ──────────────────────────────────────────────────────────

type planResponse struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	Price        int64  `json:"price"`
	Currency     string `json:"currency"`
	PriceDisplay string `json:"price_display"`
	DurationDays int32  `json:"duration_days"`
}

func (s *Server) handleListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := s.q.ListActivePlans(r.Context())
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("list plans: %w", err))
		return
	}

	out := make([]planResponse, 0, len(plans))
	for _, p := range plans {
		out = append(out, planResponse{
			ID:           p.ID,
			Name:         p.Name,
			Description:  p.Description,
			Price:        p.Price,
			Currency:     p.Currency,
			PriceDisplay: email.FormatAmount(p.Price, p.Currency),
			DurationDays: p.DurationDays,
		})
	}
	respond(w, http.StatusOK, map[string]any{"plans": out})
}

// ─── POST /api/members/:memberID/checkout ────────────────────────────────────

type createCheckoutRequest struct {
	PlanID string `json:"plan_id"`
	Email  string `json:"email"`
}

type createCheckoutResponse struct {
	// ClientSecret is passed to Stripe.js to confirm the charge.
	ClientSecret string `json:"client_secret"`
	PlanID       string `json:"plan_id"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
	// IsExisting is true when the member already had a pending
	// PaymentIntent for this checkout (e.g. checkout opened twice).
	IsExisting bool `json:"is_existing,omitempty"`
}

// handleCreateCheckout creates a Stripe PaymentIntent for a membership plan.
//
// Race-safety: two concurrent calls for the same member are handled by
// store.AttachPaymentIntent using a serializable transaction. The loser gets
// ErrPaymentIntentAlreadyAttached and returns the winner's client_secret,
// priced from the plan the winner stored. Switching plans while a checkout is
// pending supersedes the old PaymentIntent, which is then cancelled.
func (s *Server) handleCreateCheckout(w http.ResponseWriter, r *http.Request) {
	member := memberFrom(r.Context())

	var req createCheckoutRequest
	if !decode(w, r, &req) {
		return
	}
	if req.PlanID == "" {
		respondErr(w, http.StatusBadRequest, "plan_id is required")
		return
	}
	if req.Email == "" && !member.Email.Valid {
		respondErr(w, http.StatusBadRequest, "email is required")
		return
	}

	if member.MembershipStatus == db.MembershipStatusActive &&
		member.MembershipExpiresAt.Valid && member.MembershipExpiresAt.Time.After(s.now()) {
		respondErr(w, http.StatusConflict, "membership already active")
		return
	}

	plan, err := s.q.GetPlanByID(r.Context(), req.PlanID)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !plan.IsActive) {
		respondErr(w, http.StatusBadRequest, "unknown plan")
		return
	}
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("get plan: %w", err))
		return
	}

	// ── Fast path: pending checkout for the same plan ─────────────────────────
	// The store transaction is the authoritative guard; this only skips the
	// Stripe call in the common retry case.
	if member.MembershipStatus == db.MembershipStatusPending &&
		member.StripePaymentIntent.Valid && member.PlanID.String == plan.ID {
		clientSecret, err := s.stripe.GetClientSecret(r.Context(), member.StripePaymentIntent.String)
		if err == nil {
			respond(w, http.StatusOK, checkoutResponse(plan, clientSecret, true))
			return
		}
		s.logger.Warn("checkout: existing PI not found in Stripe, creating new",
			"pi", member.StripePaymentIntent.String,
			"error", err,
			logField(r),
		)
	}

	pi, err := s.stripe.CreatePaymentIntent(r.Context(), stripeinternal.CheckoutParams(member, plan, req.Email))
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("create payment intent: %w", err))
		return
	}

	_, replaced, err := s.store.AttachPaymentIntent(r.Context(), store.AttachPaymentIntentParams{
		MemberID:            member.ID,
		PlanID:              plan.ID,
		StripeCustomerID:    pi.CustomerID,
		StripePaymentIntent: pi.ID,
		Email:               req.Email,
	})
	if errors.Is(err, store.ErrPaymentIntentAlreadyAttached) {
		s.logger.Info("checkout: lost race, returning existing PI", "member_id", member.ID, logField(r))
		s.cancelPaymentIntent(r, pi.ID)

		current, dbErr := s.q.GetMemberByID(r.Context(), member.ID)
		if dbErr != nil {
			s.respondInternalErr(w, r, fmt.Errorf("get member after race: %w", dbErr))
			return
		}
		currentPlan := plan
		if current.PlanID.String != plan.ID {
			currentPlan, dbErr = s.q.GetPlanByID(r.Context(), current.PlanID.String)
			if dbErr != nil {
				s.respondInternalErr(w, r, fmt.Errorf("get plan after race: %w", dbErr))
				return
			}
		}
		clientSecret, stripeErr := s.stripe.GetClientSecret(r.Context(), current.StripePaymentIntent.String)
		if stripeErr != nil {
			s.respondInternalErr(w, r, fmt.Errorf("get client secret after race: %w", stripeErr))
			return
		}
		respond(w, http.StatusOK, checkoutResponse(currentPlan, clientSecret, true))
		return
	}
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("attach payment intent: %w", err))
		return
	}

	if replaced != "" {
		s.logger.Info("checkout: plan switched, cancelling previous PI",
			"member_id", member.ID, "pi", replaced, logField(r))
		s.cancelPaymentIntent(r, replaced)
	}

	respond(w, http.StatusOK, checkoutResponse(plan, pi.ClientSecret, false))
}

// cancelPaymentIntent is best-effort; an uncancelled PI expires in Stripe.
func (s *Server) cancelPaymentIntent(r *http.Request, id string) {
	if err := s.stripe.CancelPaymentIntent(r.Context(), id); err != nil {
		s.logger.Warn("checkout: cancel payment intent failed", "pi", id, "error", err, logField(r))
	}
}

func checkoutResponse(plan db.Plan, clientSecret string, existing bool) createCheckoutResponse {
	return createCheckoutResponse{
		ClientSecret: clientSecret,
		PlanID:       plan.ID,
		Amount:       plan.Price,
		Currency:     plan.Currency,
		IsExisting:   existing,
	}
}
