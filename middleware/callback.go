package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/upb/case-orchestrator/utils"
)

// CallbackTypeParam is the chi URL parameter carrying the callback type
const CallbackTypeParam = "callbackType"

// ValidateCallbackType rejects callback routes whose type segment is not a
// safe identifier and stores the accepted type in the request context.
func ValidateCallbackType(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			callbackType := chi.URLParam(r, CallbackTypeParam)
			if err := utils.ValidateCallbackType(callbackType); err != nil {
				logger.Debug("rejected callback type",
					zap.String("callback_type", callbackType),
					zap.String("request_id", GetRequestIDFromContext(r.Context())))
				_ = utils.WriteBadRequest(w, err.Error(), nil)
				return
			}

			ctx := WithCallbackType(r.Context(), callbackType)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
