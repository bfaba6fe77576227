package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/client"
	"github.com/stripe/stripe-go/v74/webhook"
	"go.uber.org/zap"
)

// Intent statuses mirrored from the provider.
const (
	IntentStatusSucceeded = "succeeded"
)

var (
	// ErrGatewayUnavailable means the provider credentials are not configured.
	// Callers present this as a friendly "payment unavailable" state, never a 500.
	ErrGatewayUnavailable = errors.New("payment gateway not configured")
	// ErrIntentNotFound means the provider has no intent with that ID.
	ErrIntentNotFound = errors.New("payment intent not found")
)

// Intent is the provider-agnostic view of a payment intent. The provider copy
// is the single source of truth for payment state; it is always re-fetched,
// never cached.
type Intent struct {
	ID          string            `json:"id"`
	AmountCents int64             `json:"amount_cents"`
	Currency    string            `json:"currency"`
	Status      string            `json:"status"`
	Metadata    map[string]string `json:"metadata"`
	Description string            `json:"description,omitempty"`
}

// IntentResult is returned by CreateIntent. For zero-amount batches
// PaymentRequired is false and no provider call is made.
type IntentResult struct {
	PaymentRequired bool   `json:"payment_required"`
	ClientSecret    string `json:"client_secret,omitempty"`
	IntentID        string `json:"intent_id,omitempty"`
}

// Gateway abstracts the payment provider.
type Gateway interface {
	Configured() bool
	CreateIntent(ctx context.Context, amountCents int64, currency, description string, metadata map[string]string) (*IntentResult, error)
	GetIntent(ctx context.Context, id string) (*Intent, error)
	VerifyWebhook(payload []byte, signatureHeader string) (eventID, eventType string, err error)
}

// StripeGateway implements Gateway over the Stripe API.
type StripeGateway struct {
	api           *client.API
	webhookSecret string
	logger        *zap.Logger
}

// NewStripeGateway creates a Stripe-backed gateway. An empty secretKey yields
// an unconfigured gateway whose calls return ErrGatewayUnavailable.
func NewStripeGateway(secretKey, webhookSecret string, logger *zap.Logger) *StripeGateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &StripeGateway{webhookSecret: webhookSecret, logger: logger}
	if secretKey != "" {
		g.api = &client.API{}
		g.api.Init(secretKey, nil)
	} else {
		logger.Warn("stripe secret key not set; payment gateway disabled")
	}
	return g
}

// Configured reports whether provider credentials are present.
func (g *StripeGateway) Configured() bool {
	return g.api != nil
}

// CreateIntent creates a payment intent, stashing registration context in the
// provider metadata. Zero-amount batches short-circuit without a provider call.
func (g *StripeGateway) CreateIntent(ctx context.Context, amountCents int64, currency, description string, metadata map[string]string) (*IntentResult, error) {
	if amountCents == 0 {
		return &IntentResult{PaymentRequired: false}, nil
	}
	if !g.Configured() {
		return nil, ErrGatewayUnavailable
	}

	params := &stripe.PaymentIntentParams{
		Params:   stripe.Params{Context: ctx},
		Amount:   stripe.Int64(amountCents),
		Currency: stripe.String(currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	if description != "" {
		params.Description = stripe.String(description)
	}
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return nil, fmt.Errorf("create payment intent: %w", err)
	}
	g.logger.Info("payment intent created",
		zap.String("intent_id", pi.ID),
		zap.Int64("amount_cents", pi.Amount),
		zap.String("currency", string(pi.Currency)),
	)
	return &IntentResult{
		PaymentRequired: true,
		ClientSecret:    pi.ClientSecret,
		IntentID:        pi.ID,
	}, nil
}

// GetIntent fetches the authoritative intent state from the provider.
func (g *StripeGateway) GetIntent(ctx context.Context, id string) (*Intent, error) {
	if !g.Configured() {
		return nil, ErrGatewayUnavailable
	}
	params := &stripe.PaymentIntentParams{Params: stripe.Params{Context: ctx}}
	pi, err := g.api.PaymentIntents.Get(id, params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Code == stripe.ErrorCodeResourceMissing {
			return nil, ErrIntentNotFound
		}
		return nil, fmt.Errorf("get payment intent: %w", err)
	}
	return &Intent{
		ID:          pi.ID,
		AmountCents: pi.Amount,
		Currency:    string(pi.Currency),
		Status:      string(pi.Status),
		Metadata:    pi.Metadata,
		Description: pi.Description,
	}, nil
}

// VerifyWebhook checks the provider signature and returns the event identity.
func (g *StripeGateway) VerifyWebhook(payload []byte, signatureHeader string) (string, string, error) {
	if g.webhookSecret == "" {
		return "", "", ErrGatewayUnavailable
	}
	event, err := webhook.ConstructEvent(payload, signatureHeader, g.webhookSecret)
	if err != nil {
		return "", "", fmt.Errorf("verify webhook signature: %w", err)
	}
	return event.ID, string(event.Type), nil
}
