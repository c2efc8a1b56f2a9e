package stripe

import (
	"context"
	"fmt"
	"maps"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/customer"
	"github.com/stripe/stripe-go/v82/paymentintent"
	"github.com/stripe/stripe-go/v82/webhook"
)

// stripeClient implements Client with the official stripe-go SDK.
type stripeClient struct {
	secretKey string
}

// NewClient returns a Client backed by the Stripe SDK.
func NewClient(secretKey string) Client {
	return &stripeClient{secretKey: secretKey}
}

// CreatePaymentIntent creates a Customer on the member's first checkout (so
// the dashboard groups renewals) and a PaymentIntent for the plan price.
func (c *stripeClient) CreatePaymentIntent(ctx context.Context, p CreatePaymentIntentParams) (PaymentIntent, error) {
	stripe.Key = c.secretKey

	customerID := p.CustomerID
	if customerID == "" {
		custParams := &stripe.CustomerParams{}
		if p.Email != "" {
			custParams.Email = stripe.String(p.Email)
		}
		custParams.Context = ctx
		cust, err := customer.New(custParams)
		if err != nil {
			return PaymentIntent{}, fmt.Errorf("stripe: create customer: %w", err)
		}
		customerID = cust.ID
	}

	piParams := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(p.Amount),
		Currency: stripe.String(p.Currency),
		Customer: stripe.String(customerID),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
		Metadata: maps.Clone(p.Metadata),
	}
	if p.Email != "" {
		piParams.ReceiptEmail = stripe.String(p.Email)
	}
	piParams.Context = ctx

	pi, err := paymentintent.New(piParams)
	if err != nil {
		return PaymentIntent{}, fmt.Errorf("stripe: create payment intent: %w", err)
	}

	return PaymentIntent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		CustomerID:   customerID,
	}, nil
}

func (c *stripeClient) GetClientSecret(ctx context.Context, paymentIntentID string) (string, error) {
	stripe.Key = c.secretKey

	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := paymentintent.Get(paymentIntentID, params)
	if err != nil {
		return "", fmt.Errorf("stripe: get payment intent %s: %w", paymentIntentID, err)
	}
	return pi.ClientSecret, nil
}

func (c *stripeClient) CancelPaymentIntent(ctx context.Context, paymentIntentID string) error {
	stripe.Key = c.secretKey

	params := &stripe.PaymentIntentCancelParams{
		CancellationReason: stripe.String("abandoned"),
	}
	params.Context = ctx

	if _, err := paymentintent.Cancel(paymentIntentID, params); err != nil {
		return fmt.Errorf("stripe: cancel payment intent %s: %w", paymentIntentID, err)
	}
	return nil
}

// VerifyWebhook fails on a bad signature or once the SDK's 300 second
// tolerance window has passed.
func (c *stripeClient) VerifyWebhook(payload []byte, sigHeader string, secret string) (Event, error) {
	stripeEvent, err := webhook.ConstructEvent(payload, sigHeader, secret)
	if err != nil {
		return Event{}, fmt.Errorf("stripe: webhook verification failed: %w", err)
	}

	return Event{
		ID:      stripeEvent.ID,
		Type:    string(stripeEvent.Type),
		DataRaw: stripeEvent.Data.Raw,
	}, nil
}
