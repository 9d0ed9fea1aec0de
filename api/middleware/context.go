package middleware

import "context"

type contextKey string

const (
	ctxSessionID     contextKey = "session_id"
	ctxCustomerToken contextKey = "customer_token"
)

// SessionIDFromContext returns the storefront session attached by Session.
func SessionIDFromContext(ctx context.Context) string {
	return stringValue(ctx, ctxSessionID)
}

// CustomerTokenFromContext returns the bearer token attached by RequireCustomer.
func CustomerTokenFromContext(ctx context.Context) string {
	return stringValue(ctx, ctxCustomerToken)
}

func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return withString(ctx, ctxSessionID, sessionID)
}

func WithCustomerToken(ctx context.Context, token string) context.Context {
	return withString(ctx, ctxCustomerToken, token)
}

func stringValue(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}

func withString(ctx context.Context, key contextKey, value string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, key, value)
}
