package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/debtbot/debtcollector/internal/ledger"
	"github.com/debtbot/debtcollector/internal/middleware"
	"github.com/debtbot/debtcollector/internal/models"
	"github.com/debtbot/debtcollector/internal/storage"
)

type transactionResponse struct {
	ID          string  `json:"id"`
	CreditorID  string  `json:"creditor_id"`
	DebtorID    string  `json:"debtor_id"`
	Amount      float64 `json:"amount"`
	Description string  `json:"description,omitempty"`
	GuildID     string  `json:"guild_id"`
	Currency    string  `json:"currency"`
	CreatedAt   int64   `json:"created_at"`
	IsSettled   bool    `json:"is_settled"`
	SettledAt   int64   `json:"settled_at,omitempty"`
}

type summaryResponse struct {
	TotalAmount float64 `json:"total_amount"`
	Count       int     `json:"count"`
}

type debtorRankResponse struct {
	DebtorID    string   `json:"debtor_id"`
	TotalAmount float64  `json:"total_amount"`
	Count       int      `json:"count"`
	CreditorIDs []string `json:"creditor_ids"`
}

type counterpartyResponse struct {
	UserID      string  `json:"user_id"`
	TotalAmount float64 `json:"total_amount"`
	Count       int     `json:"count"`
}

type pairDetailsResponse struct {
	TotalAmount  float64                `json:"total_amount"`
	Count        int                    `json:"count"`
	Transactions []*transactionResponse `json:"transactions"`
}

type pageResponse struct {
	Transactions []*transactionResponse `json:"transactions"`
	Page         int                    `json:"page"`
	TotalPages   int                    `json:"total_pages"`
}

func toTransactionResponse(tx *models.Transaction) *transactionResponse {
	return &transactionResponse{
		ID:          tx.ID,
		CreditorID:  tx.CreditorID,
		DebtorID:    tx.DebtorID,
		Amount:      tx.Amount,
		Description: tx.Description,
		GuildID:     tx.GuildID,
		Currency:    tx.Currency,
		CreatedAt:   tx.CreatedAt,
		IsSettled:   tx.IsSettled,
		SettledAt:   tx.SettledAt,
	}
}

func toTransactionResponses(txs []*models.Transaction) []*transactionResponse {
	out := make([]*transactionResponse, 0, len(txs))
	for _, tx := range txs {
		out = append(out, toTransactionResponse(tx))
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeError maps engine errors to HTTP statuses. A not-found and a
// forbidden mutation produce the same 404, so callers cannot probe for
// other users' transactions.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "transaction not found"})
	case errors.Is(err, ledger.ErrSelfDebt),
		errors.Is(err, ledger.ErrMissingParty),
		errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrInvalidPayment):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	default:
		slog.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

type recordDebtRequest struct {
	GuildID     string  `json:"guild_id"`
	CreditorID  string  `json:"creditor_id"`
	DebtorID    string  `json:"debtor_id"`
	Amount      float64 `json:"amount"`
	Description string  `json:"description"`
}

func (s *Server) recordDebt(w http.ResponseWriter, r *http.Request) {
	var req recordDebtRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	// The authenticated user records the debt as themselves.
	if req.CreditorID == "" {
		req.CreditorID = middleware.GetUserID(r.Context())
	}

	tx, err := s.svc.RecordDebt(r.Context(), req.GuildID, req.CreditorID, req.DebtorID, req.Amount, req.Description)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionResponse(tx))
}

func (s *Server) totalDebt(w http.ResponseWriter, r *http.Request) {
	got, err := s.svc.TotalDebt(r.Context(), chi.URLParam(r, "id"), r.URL.Query().Get("guild_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summaryResponse(got))
}

func (s *Server) totalCredit(w http.ResponseWriter, r *http.Request) {
	got, err := s.svc.TotalCredit(r.Context(), chi.URLParam(r, "id"), r.URL.Query().Get("guild_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summaryResponse(got))
}

func (s *Server) pairDetails(w http.ResponseWriter, r *http.Request) {
	details, err := s.svc.TransactionDetails(r.Context(), chi.URLParam(r, "creditor"), chi.URLParam(r, "debtor"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pairDetailsResponse{
		TotalAmount:  details.TotalAmount,
		Count:        details.Count,
		Transactions: toTransactionResponses(details.Transactions),
	})
}

func (s *Server) pairTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := s.svc.AllUnsettledBetween(r.Context(), chi.URLParam(r, "creditor"), chi.URLParam(r, "debtor"))
	if err != nil {
		writeError(w, err)
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageTxs, current, total := ledger.Page(txs, page)
	writeJSON(w, http.StatusOK, pageResponse{
		Transactions: toTransactionResponses(pageTxs),
		Page:         current,
		TotalPages:   total,
	})
}

func (s *Server) topDebtors(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	ranks, err := s.svc.TopDebtors(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]debtorRankResponse, 0, len(ranks))
	for _, rank := range ranks {
		out = append(out, debtorRankResponse(rank))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) debtsByCreditor(w http.ResponseWriter, r *http.Request) {
	rows, err := s.svc.DebtsByCreditor(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "user"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeCounterparties(w, rows)
}

func (s *Server) creditsByDebtor(w http.ResponseWriter, r *http.Request) {
	rows, err := s.svc.CreditsByDebtor(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "user"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeCounterparties(w, rows)
}

func writeCounterparties(w http.ResponseWriter, rows []models.CounterpartySummary) {
	out := make([]counterpartyResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, counterpartyResponse(row))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) settle(w http.ResponseWriter, r *http.Request) {
	tx, err := s.svc.Settle(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionResponse(tx))
}

type amountRequest struct {
	Amount float64 `json:"amount"`
}

func (s *Server) applyPayment(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	tx, err := s.svc.ApplyPayment(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "id"), req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionResponse(tx))
}

type deltaRequest struct {
	Delta float64 `json:"delta"`
}

func (s *Server) adjustAmount(w http.ResponseWriter, r *http.Request) {
	var req deltaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	tx, err := s.svc.AdjustAmount(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "id"), req.Delta)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionResponse(tx))
}

func (s *Server) forceClose(w http.ResponseWriter, r *http.Request) {
	tx, err := s.svc.ForceClose(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionResponse(tx))
}
