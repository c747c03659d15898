// Package server exposes the book lookups over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/larkwiot/bookscout/internal"
	"github.com/larkwiot/bookscout/internal/book"
	"github.com/larkwiot/bookscout/internal/providers"
	"net/http"
	"time"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	bm     *internal.BookManager
	router chi.Router
	logger *log.Logger
}

func New(bm *internal.BookManager, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}

	s := &Server{
		bm:     bm,
		router: chi.NewRouter(),
		logger: logger.WithPrefix("http"),
	}

	s.router.Use(RequestId)
	s.router.Use(AccessLog(s.logger))
	s.router.Use(middleware.Recoverer)

	s.router.Get("/health", s.health)
	s.router.Route("/api", func(r chi.Router) {
		r.Get("/books/prices", s.prices)
		r.Get("/books/links", s.links)
		r.Get("/books/lookup", s.lookup)
		r.Get("/library/check", s.libraryCheck)
		r.Get("/external/books", s.externalBooks)
	})

	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errs <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errs; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type errorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestId string `json:"requestId,omitempty"`
}

func writeJson(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code string, message string) {
	writeJson(w, status, map[string]errorBody{
		"error": {Code: code, Message: message, RequestId: RequestIdFrom(r)},
	})
}

// statusFor maps package errors onto HTTP statuses.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, book.ErrInvalidIsbn), errors.Is(err, providers.ErrUnsupportedSource):
		return http.StatusBadRequest, "BAD_REQUEST"
	case errors.Is(err, providers.ErrNotConfigured):
		return http.StatusServiceUnavailable, "NOT_CONFIGURED"
	case errors.Is(err, providers.ErrUpstream):
		return http.StatusBadGateway, "UPSTREAM_FAILED"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}
