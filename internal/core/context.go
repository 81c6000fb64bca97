package core

import "context"

type contextKey string

const (
	ctxKeyRequestedBy contextKey = "requested_by"
)

// ContextWithRequestedBy records who started an import (client IP or API
// key name) so it can be stored with the session and history run.
func ContextWithRequestedBy(ctx context.Context, who string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestedBy, who)
}

// RequestedByFromContext extracts the requester set by ContextWithRequestedBy.
func RequestedByFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyRequestedBy).(string); ok {
		return v
	}
	return ""
}
