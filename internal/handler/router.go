package handler

import (
	"github.com/Dan9191/cashflow-risk/internal/config"
	"github.com/Dan9191/cashflow-risk/internal/metrics"
	"github.com/Dan9191/cashflow-risk/internal/middleware"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// NewRouter wires the public and authenticated routes
func NewRouter(h *Handler, cfg *config.Config, logger *logrus.Logger) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.LoggingMiddleware(logger))

	// Public routes
	r.HandleFunc("/", h.Health).Methods("GET")
	r.HandleFunc("/health", h.Health).Methods("GET")
	r.Handle("/metrics", metrics.Handler()).Methods("GET")
	r.HandleFunc("/login", h.Login).Methods("POST")

	// Protected routes
	authRouter := r.PathPrefix("/").Subrouter()
	authRouter.Use(middleware.AuthMiddleware(cfg))
	authRouter.HandleFunc("/predict", h.Predict).Methods("POST")
	authRouter.HandleFunc("/transactions", h.IngestTransactions).Methods("POST")
	authRouter.HandleFunc("/smes/{id}/statements", h.IngestStatement).Methods("POST")
	authRouter.HandleFunc("/smes/{id}/risk", h.RiskHistory).Methods("GET")
	authRouter.HandleFunc("/smes/{id}/simulate", h.Simulate).Methods("POST")
	authRouter.HandleFunc("/model/train", h.Train).Methods("POST")
	authRouter.HandleFunc("/model/reload", h.Reload).Methods("POST")

	return r
}
