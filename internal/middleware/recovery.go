package middleware

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/popeskul/review-sms/internal/metrics"
)

// Recovery turns a handler panic into a 500 response. Aborted handlers keep
// panicking so net/http can drop the connection.
func Recovery(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(rec)
				}

				route := routePattern(r)
				metrics.HTTPPanicsTotal.WithLabelValues(route).Inc()
				logger.Error("Panic recovered",
					zap.Any("panic", rec),
					zap.String("request_id", GetRequestID(r.Context())),
					zap.String("method", r.Method),
					zap.String("route", route),
					zap.Stack("stack"),
				)

				WriteError(w, r, http.StatusInternalServerError, ErrorCodeInternal, ErrorMessageInternal)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
