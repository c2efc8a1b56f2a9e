// Package stripe defines the interface for the membership checkout calls and
// webhook verification, plus the event helpers used by the api package.
package stripe

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/Nyanko-meow/Smoke-DEMO-sub006/internal/db"
)

// Metadata keys attached to every membership PaymentIntent.
const (
	MetaMemberID = "member_id"
	MetaPlanID   = "plan_id"
)

// CreatePaymentIntentParams holds the inputs for creating a Stripe PI.
// Amount is in the currency's smallest unit; VND has no minor unit so a plan
// price of 99000 is sent as-is.
type CreatePaymentIntentParams struct {
	Amount     int64
	Currency   string
	Email      string
	CustomerID string // reuse an existing Customer when set
	Metadata   map[string]string
}

// PaymentIntent is the subset of a Stripe PaymentIntent that callers need.
type PaymentIntent struct {
	ID           string
	ClientSecret string
	CustomerID   string
}

// Event is a parsed webhook event. DataRaw holds the raw JSON of
// data.object so handlers unmarshal only what they need.
type Event struct {
	ID      string
	Type    string
	DataRaw json.RawMessage
}

// Client is what the api package uses for all Stripe calls. Tests inject a
// stub.
type Client interface {
	CreatePaymentIntent(ctx context.Context, p CreatePaymentIntentParams) (PaymentIntent, error)

	// GetClientSecret is the checkout retry path for a member who already
	// has a pending PaymentIntent.
	GetClientSecret(ctx context.Context, paymentIntentID string) (string, error)

	// CancelPaymentIntent abandons a PaymentIntent the member can no longer
	// complete, e.g. after switching plans mid-checkout.
	CancelPaymentIntent(ctx context.Context, paymentIntentID string) error

	// VerifyWebhook validates the Stripe-Signature header and returns the
	// parsed event.
	VerifyWebhook(payload []byte, sigHeader string, secret string) (Event, error)
}

// CheckoutParams builds the PaymentIntent request for a member buying plan.
func CheckoutParams(member db.Member, plan db.Plan, email string) CreatePaymentIntentParams {
	if email == "" && member.Email.Valid {
		email = member.Email.String
	}
	return CreatePaymentIntentParams{
		Amount:     plan.Price,
		Currency:   plan.Currency,
		Email:      email,
		CustomerID: member.StripeCustomerID.String,
		Metadata: map[string]string{
			MetaMemberID: member.ID.String(),
			MetaPlanID:   plan.ID,
		},
	}
}

// ToUpsertParams converts a parsed Event and its raw payload into the params
// for db.Querier.UpsertStripeEvent.
func ToUpsertParams(event Event, rawPayload []byte) db.UpsertStripeEventParams {
	return db.UpsertStripeEventParams{
		StripeEventID: event.ID,
		Type:          event.Type,
		Payload:       json.RawMessage(rawPayload),
	}
}

// ToMarkFailedParams builds the params for db.Querier.MarkStripeEventFailed.
func ToMarkFailedParams(eventID string, err error) db.MarkStripeEventFailedParams {
	return db.MarkStripeEventFailedParams{
		StripeEventID: eventID,
		Error:         sql.NullString{String: err.Error(), Valid: true},
	}
}

// ExtractPaymentIntentID pulls the id field from a payment_intent.* event.
func ExtractPaymentIntentID(event Event) (string, error) {
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(event.DataRaw, &obj); err != nil {
		return "", fmt.Errorf("stripe: unmarshal payment intent id: %w", err)
	}
	if obj.ID == "" {
		return "", fmt.Errorf("stripe: payment intent id is empty in event %s", event.ID)
	}
	return obj.ID, nil
}

// ExtractPIFromCharge pulls the payment_intent field from a charge object
// (charge.refunded).
func ExtractPIFromCharge(event Event) (string, error) {
	var obj struct {
		PaymentIntent string `json:"payment_intent"`
	}
	if err := json.Unmarshal(event.DataRaw, &obj); err != nil {
		return "", fmt.Errorf("stripe: unmarshal charge: %w", err)
	}
	if obj.PaymentIntent == "" {
		return "", fmt.Errorf("stripe: no payment_intent on charge in event %s", event.ID)
	}
	return obj.PaymentIntent, nil
}

// ExtractMemberID reads the member_id metadata written by CheckoutParams.
// ok is false when the key is missing or not a UUID, e.g. for PaymentIntents
// created outside membership checkout.
func ExtractMemberID(event Event) (id uuid.UUID, ok bool) {
	var obj struct {
		Metadata map[string]string `json:"metadata"`
	}
	if err := json.Unmarshal(event.DataRaw, &obj); err != nil {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(obj.Metadata[MetaMemberID])
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// ExtractFailureMessage returns last_payment_error.message from a
// payment_intent.payment_failed event, or "" when Stripe sent none.
func ExtractFailureMessage(event Event) string {
	var obj struct {
		LastPaymentError *struct {
			Message string `json:"message"`
		} `json:"last_payment_error"`
	}
	if err := json.Unmarshal(event.DataRaw, &obj); err != nil || obj.LastPaymentError == nil {
		return ""
	}
	return obj.LastPaymentError.Message
}
