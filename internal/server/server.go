// Package server exposes the ledger engine as an authenticated JSON API.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/debtbot/debtcollector/internal/auth"
	"github.com/debtbot/debtcollector/internal/ledger"
	"github.com/debtbot/debtcollector/internal/middleware"
)

// Server routes HTTP requests to the ledger engine.
type Server struct {
	svc *ledger.Service
}

// New builds the HTTP handler: public health/metrics endpoints plus the
// authenticated /v1 API.
func New(svc *ledger.Service, jwtManager *auth.JWTManager) http.Handler {
	s := &Server{svc: svc}

	r := chi.NewRouter()
	r.Use(middleware.RequestLogger)
	r.Use(instrument)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.RequireAuth(jwtManager))

		r.Post("/debts", s.recordDebt)

		r.Get("/users/{id}/debt", s.totalDebt)
		r.Get("/users/{id}/credit", s.totalCredit)

		r.Get("/pairs/{creditor}/{debtor}", s.pairDetails)
		r.Get("/pairs/{creditor}/{debtor}/transactions", s.pairTransactions)

		r.Get("/guilds/{id}/top-debtors", s.topDebtors)
		r.Get("/guilds/{id}/users/{user}/debts", s.debtsByCreditor)
		r.Get("/guilds/{id}/users/{user}/credits", s.creditsByDebtor)

		r.Post("/transactions/{id}/settle", s.settle)
		r.Post("/transactions/{id}/payments", s.applyPayment)
		r.Post("/transactions/{id}/adjustments", s.adjustAmount)
		r.Delete("/transactions/{id}", s.forceClose)
	})

	return r
}
