package server

import (
	"context"
	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"net/http"
	"time"
)

type contextKey string

const (
	requestIdHeader            = "X-Request-Id"
	requestIdKey    contextKey = "requestId"
)

func RequestIdFrom(r *http.Request) string {
	if v, ok := r.Context().Value(requestIdKey).(string); ok {
		return v
	}
	return ""
}

// RequestId reuses the caller's X-Request-Id or makes a new one.
func RequestId(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestId := r.Header.Get(requestIdHeader)
		if len(requestId) == 0 {
			requestId = uuid.New().String()
		}

		w.Header().Set(requestIdHeader, requestId)
		ctx := context.WithValue(r.Context(), requestIdKey, requestId)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func AccessLog(logger *log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			logger.Info("access",
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"requestId", RequestIdFrom(r),
			)
		})
	}
}
