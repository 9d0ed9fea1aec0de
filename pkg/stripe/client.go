package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/storefront-checkout/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
)

const (
	testEnv = "test"
	liveEnv = "live"

	clientSecretMarker = "_secret_"
)

var (
	errAPIKeyRequired   = errors.New("stripe api key is required")
	errInvalidStripeEnv = fmt.Errorf("stripe environment must be %q or %q", testEnv, liveEnv)
)

// PaymentConfirmer confirms a card payment against a PaymentIntent client secret.
type PaymentConfirmer interface {
	ConfirmCardPayment(ctx context.Context, clientSecret, paymentMethodID string) (*Confirmation, error)
}

// Confirmation is the outcome of a successful confirmation.
type Confirmation struct {
	IntentID string
	Status   string
}

type intentConfirmer interface {
	Confirm(ctx context.Context, id string, params *stripe.PaymentIntentConfirmParams) (*stripe.PaymentIntent, error)
}

// Client wraps Stripe's API client plus env-specific metadata.
type Client struct {
	api         *stripe.Client
	intents     intentConfirmer
	environment string
}

// NewClient initializes Stripe once with the configured secret and env.
func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*Client, error) {
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}

	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}

	if err := validateAPIKey(env, apiKey); err != nil {
		return nil, err
	}

	api := stripe.NewClient(apiKey)

	if logg != nil {
		logg.Info(ctx, fmt.Sprintf("stripe client initialized (%s)", env))
	}

	return &Client{
		api:         api,
		intents:     api.V1PaymentIntents,
		environment: env,
	}, nil
}

// API returns the underlying Stripe API client.
func (c *Client) API() *stripe.Client {
	if c == nil {
		return nil
	}
	return c.api
}

// Environment reports the normalized Stripe environment in use.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// ConfirmCardPayment confirms the PaymentIntent owning clientSecret with the
// PaymentMethod tokenized in the browser. Gateway rejections come back as
// CodePaymentDeclined carrying Stripe's message unchanged.
func (c *Client) ConfirmCardPayment(ctx context.Context, clientSecret, paymentMethodID string) (*Confirmation, error) {
	if c == nil || c.intents == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "stripe client not initialized")
	}
	intentID, err := IntentIDFromClientSecret(clientSecret)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(paymentMethodID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment method is required")
	}

	params := &stripe.PaymentIntentConfirmParams{
		PaymentMethod: stripe.String(paymentMethodID),
	}

	intent, err := c.intents.Confirm(ctx, intentID, params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Msg != "" {
			return nil, pkgerrors.Wrap(pkgerrors.CodePaymentDeclined, err, stripeErr.Msg)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "payment confirmation failed")
	}

	switch intent.Status {
	case stripe.PaymentIntentStatusSucceeded,
		stripe.PaymentIntentStatusRequiresCapture,
		stripe.PaymentIntentStatusProcessing:
		return &Confirmation{IntentID: intent.ID, Status: string(intent.Status)}, nil
	case stripe.PaymentIntentStatusRequiresAction:
		return nil, pkgerrors.New(pkgerrors.CodePaymentDeclined, "Your card requires additional authentication.")
	default:
		return nil, pkgerrors.New(pkgerrors.CodePaymentDeclined, fmt.Sprintf("Payment was not completed (status %s).", intent.Status))
	}
}

// IntentIDFromClientSecret extracts "pi_x" from "pi_x_secret_y".
func IntentIDFromClientSecret(clientSecret string) (string, error) {
	secret := strings.TrimSpace(clientSecret)
	idx := strings.Index(secret, clientSecretMarker)
	if idx <= 0 {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "payment session has no client secret")
	}
	return secret[:idx], nil
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = testEnv
	}
	switch env {
	case testEnv, liveEnv:
		return env, nil
	default:
		return "", errInvalidStripeEnv
	}
}

func validateAPIKey(env, key string) error {
	switch env {
	case testEnv:
		if strings.HasPrefix(key, "sk_test") || strings.HasPrefix(key, "rk_test") {
			return nil
		}
		return fmt.Errorf("stripe environment %q requires a test secret key (sk_test/rk_test)", testEnv)
	case liveEnv:
		if strings.HasPrefix(key, "sk_live") || strings.HasPrefix(key, "rk_live") {
			return nil
		}
		return fmt.Errorf("stripe environment %q requires a live secret key (sk_live/rk_live)", liveEnv)
	default:
		return errInvalidStripeEnv
	}
}
