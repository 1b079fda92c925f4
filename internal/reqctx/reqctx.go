// Package reqctx carries request-scoped identifiers through context.Context.
package reqctx

import "context"

type ctxKey string

const (
	ctxCorrelationID ctxKey = "correlation_id"
	ctxUserID        ctxKey = "user_id"
)

func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxCorrelationID, id)
}

func CorrelationID(ctx context.Context) string {
	s, _ := ctx.Value(ctxCorrelationID).(string)
	return s
}

// WithUserID records the authenticated caller.
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxUserID, id)
}

func UserID(ctx context.Context) string {
	s, _ := ctx.Value(ctxUserID).(string)
	return s
}
