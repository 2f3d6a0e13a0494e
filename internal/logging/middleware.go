package logging

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Middleware logs the start and completion of each request and stores a
// request-scoped logger (stamped with the chi request ID) in the context.
func Middleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			reqLogger := logger.With(
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("remote", r.RemoteAddr),
			)

			reqLogger.Debug("request started")

			ctx := WithContext(r.Context(), reqLogger)
			next.ServeHTTP(ww, r.WithContext(ctx))

			latency := time.Since(start)
			fields := []zap.Field{
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("latency", latency),
			}
			if ww.Status() >= http.StatusBadRequest {
				fields = append(fields, zap.String("error", http.StatusText(ww.Status())))
			}
			reqLogger.Info("request completed", fields...)
		})
	}
}
