// Package api предоставляет маршруты для основного приложения.
package api

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sofikovaleva/risk-scoring-service/internal/http/handlers/auth/login"
	"github.com/sofikovaleva/risk-scoring-service/internal/http/handlers/auth/me"
	"github.com/sofikovaleva/risk-scoring-service/internal/http/handlers/auth/register"
	"github.com/sofikovaleva/risk-scoring-service/internal/http/handlers/billing/balance"
	billinghistory "github.com/sofikovaleva/risk-scoring-service/internal/http/handlers/billing/history"
	"github.com/sofikovaleva/risk-scoring-service/internal/http/handlers/billing/historydetailed"
	"github.com/sofikovaleva/risk-scoring-service/internal/http/handlers/health"
	taskhistory "github.com/sofikovaleva/risk-scoring-service/internal/http/handlers/inference/history"
	"github.com/sofikovaleva/risk-scoring-service/internal/http/handlers/inference/submit"
	"github.com/sofikovaleva/risk-scoring-service/internal/http/middlewarectx"
	authservice "github.com/sofikovaleva/risk-scoring-service/internal/services/auth"
	billingservice "github.com/sofikovaleva/risk-scoring-service/internal/services/billing"
	inferenceservice "github.com/sofikovaleva/risk-scoring-service/internal/services/inference"
)

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger,
	authService *authservice.Service,
	billingService *billingservice.Service,
	inferenceService *inferenceservice.Service,
) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	r.Route("/api/v1", func(r chi.Router) {
		// Открытые конечные точки
		r.Post("/register", register.New(logger, authService).ServeHTTP)
		r.Post("/login", login.New(logger, authService).ServeHTTP)
		r.Get("/health", health.New(logger).ServeHTTP)

		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(authService, logger))
			r.Use(middlewarectx.RateLimitMiddleware(logger))
			r.Get("/me", me.New(logger, authService).ServeHTTP)
			r.Get("/billing/balance", balance.New(logger, billingService).ServeHTTP)
			r.Get("/billing/history", billinghistory.New(logger, billingService).ServeHTTP)
			r.Get("/billing/history/detailed", historydetailed.New(logger, billingService).ServeHTTP)
			r.Post("/predictions", submit.New(logger, inferenceService).ServeHTTP)
			r.Get("/predictions/history", taskhistory.New(logger, inferenceService).ServeHTTP)
		})
	})

	r.Handle("/metrics", promhttp.Handler())
}
