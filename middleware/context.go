package middleware

import (
	"context"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// Context key type to avoid collisions
type contextKey string

const (
	// CallbackTypeKey is the context key for the callback type path segment
	CallbackTypeKey contextKey = "callback_type"
)

// GetRequestIDFromContext retrieves the id set by chi's RequestID middleware
func GetRequestIDFromContext(ctx context.Context) string {
	return chimw.GetReqID(ctx)
}

// GetCallbackTypeFromContext retrieves the validated callback type
func GetCallbackTypeFromContext(ctx context.Context) string {
	if val := ctx.Value(CallbackTypeKey); val != nil {
		if callbackType, ok := val.(string); ok {
			return callbackType
		}
	}
	return ""
}

// WithCallbackType adds a callback type to the context
func WithCallbackType(ctx context.Context, callbackType string) context.Context {
	return context.WithValue(ctx, CallbackTypeKey, callbackType)
}
