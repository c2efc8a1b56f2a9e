package api

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/Nyanko-meow/Smoke-DEMO-sub006/internal/email"
	"github.com/Nyanko-meow/Smoke-DEMO-sub006/internal/store"
	stripeinternal "github.com/Nyanko-meow/Smoke-DEMO-sub006/internal/stripe"
)

// ─── POST /api/webhooks/stripe ────────────────────────────────────────────────

// handleStripeWebhook is the entry point for all Stripe webhook deliveries.
//
// Stripe delivers events at-least-once and retries on non-2xx responses, so
// every step here is idempotent. Events acted on:
//   - payment_intent.succeeded      → activate membership + receipt email
//   - payment_intent.payment_failed → mark the pending checkout failed
//   - charge.refunded               → logged
func (s *Server) handleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	// The signature check runs against the exact bytes Stripe signed.
	r.Body = http.MaxBytesReader(w, r.Body, 65536)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		respondErr(w, http.StatusBadRequest, "could not read request body")
		return
	}

	sig := r.Header.Get("Stripe-Signature")
	event, err := s.stripe.VerifyWebhook(payload, sig, s.cfg.StripeWebhookSecret)
	if err != nil {
		s.logger.Warn("webhook: invalid signature", "error", err, logField(r))
		respondErr(w, http.StatusBadRequest, "invalid webhook signature")
		return
	}

	// UpsertStripeEvent is ON CONFLICT DO NOTHING: a replayed event_id yields
	// sql.ErrNoRows, acknowledged so Stripe stops retrying.
	_, err = s.q.UpsertStripeEvent(r.Context(), stripeinternal.ToUpsertParams(event, payload))
	if errors.Is(err, sql.ErrNoRows) {
		s.logger.Debug("webhook: duplicate event, skipping", "event_id", event.ID, logField(r))
		w.WriteHeader(http.StatusOK)
		return
	}
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("upsert stripe event: %w", err))
		return
	}

	var handlerErr error
	switch event.Type {
	case "payment_intent.succeeded":
		handlerErr = s.onPaymentSucceeded(r, event)
	case "payment_intent.payment_failed":
		handlerErr = s.onPaymentFailed(r, event)
	case "charge.refunded":
		handlerErr = s.onChargeRefunded(r, event)
	default:
		s.logger.Debug("webhook: unhandled event type", "type", event.Type, logField(r))
	}

	if handlerErr != nil {
		s.logger.Error("webhook: handler error",
			"event_id", event.ID,
			"type", event.Type,
			"error", handlerErr,
			logField(r),
		)
		_, _ = s.q.MarkStripeEventFailed(r.Context(), stripeinternal.ToMarkFailedParams(event.ID, handlerErr))
		// 500 so Stripe retries delivery.
		respondErr(w, http.StatusInternalServerError, "webhook handler failed")
		return
	}

	_, _ = s.q.MarkStripeEventProcessed(r.Context(), event.ID)
	w.WriteHeader(http.StatusOK)
}

// ─── EVENT HANDLERS ───────────────────────────────────────────────────────────

func (s *Server) onPaymentSucceeded(r *http.Request, event stripeinternal.Event) error {
	piID, err := stripeinternal.ExtractPaymentIntentID(event)
	if err != nil {
		return fmt.Errorf("onPaymentSucceeded: extract PI id: %w", err)
	}

	member, plan, err := s.store.ActivateMembership(r.Context(), piID, s.now())
	switch {
	case errors.Is(err, store.ErrMembershipAlreadyActive):
		s.logger.Debug("webhook: membership already active", "member_id", member.ID, logField(r))
		return nil
	case errors.Is(err, sql.ErrNoRows):
		// Not a membership checkout of ours; retrying would not change that.
		memberID, _ := stripeinternal.ExtractMemberID(event)
		s.logger.Warn("webhook: no member for payment intent",
			"pi_id", piID,
			"metadata_member_id", memberID,
			logField(r),
		)
		return nil
	case err != nil:
		return fmt.Errorf("onPaymentSucceeded: activate membership: %w", err)
	}

	s.logger.Info("webhook: membership activated",
		"member_id", member.ID,
		"plan_id", plan.ID,
		"expires_at", member.MembershipExpiresAt.Time,
		logField(r),
	)

	if member.Email.Valid && member.Email.String != "" {
		receiptErr := s.mailer.SendMembershipReceipt(r.Context(), email.MembershipReceiptParams{
			To:          member.Email.String,
			DisplayName: member.DisplayName.String,
			PlanName:    plan.Name,
			Amount:      plan.Price,
			Currency:    plan.Currency,
			ExpiresAt:   member.MembershipExpiresAt.Time.Format("2006-01-02"),
		})
		s.logAndIgnoreEmailErr(r, receiptErr, "send membership receipt")
	}

	return nil
}

func (s *Server) onPaymentFailed(r *http.Request, event stripeinternal.Event) error {
	piID, err := stripeinternal.ExtractPaymentIntentID(event)
	if err != nil {
		return fmt.Errorf("onPaymentFailed: extract PI id: %w", err)
	}

	member, err := s.q.MarkMemberPaymentFailed(r.Context(), sql.NullString{String: piID, Valid: true})
	if errors.Is(err, sql.ErrNoRows) {
		// Unknown PI, or the member is already active on it.
		s.logger.Debug("webhook: payment failure not applied", "pi_id", piID, logField(r))
		return nil
	}
	if err != nil {
		return fmt.Errorf("onPaymentFailed: mark member failed: %w", err)
	}

	s.logger.Info("webhook: payment failed",
		"member_id", member.ID,
		"pi_id", piID,
		"reason", stripeinternal.ExtractFailureMessage(event),
		logField(r),
	)
	return nil
}

func (s *Server) onChargeRefunded(r *http.Request, event stripeinternal.Event) error {
	piID, err := stripeinternal.ExtractPIFromCharge(event)
	if err != nil {
		// Refunds without a linked PI are informational only.
		s.logger.Warn("webhook: charge.refunded without PI id", "event_id", event.ID, logField(r))
		return nil
	}

	// TODO: expire the membership once refunds are handled by support tooling
	// rather than manually in the Stripe dashboard.
	s.logger.Info("webhook: charge refunded",
		"pi_id", piID,
		"event_id", event.ID,
		logField(r),
	)
	return nil
}
