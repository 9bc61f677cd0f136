// Package api provides the HTTP handlers for the fund engine boundary:
// deposit, withdraw, valuation reporting, whitelist/admin management, and
// the read-only price and journal views.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/openvault/fund-engine/internal/access"
	"github.com/openvault/fund-engine/internal/custody"
	"github.com/openvault/fund-engine/internal/ledger"
	"github.com/openvault/fund-engine/internal/model"
	"github.com/openvault/fund-engine/internal/notify"
	"github.com/openvault/fund-engine/internal/pricing"
	"github.com/openvault/fund-engine/internal/shares"
	"github.com/openvault/fund-engine/internal/valuation"
)

// Handler bundles the service dependencies behind the HTTP surface.
type Handler struct {
	ledger      *ledger.Service
	reporter    *pricing.Reporter
	coordinator *notify.Coordinator
}

// NewHandler creates the HTTP handler set.
func NewHandler(lg *ledger.Service, reporter *pricing.Reporter, coordinator *notify.Coordinator) *Handler {
	return &Handler{ledger: lg, reporter: reporter, coordinator: coordinator}
}

// Routes mounts all endpoints on the given router.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/deposit", h.Deposit)
	r.Post("/withdraw", h.Withdraw)
	r.Post("/valuation", h.SetValuation)
	r.Get("/price", h.Price)
	r.Post("/whitelist", h.AddToWhitelist)
	r.Delete("/whitelist/{principal}", h.RemoveFromWhitelist)
	r.Post("/admins", h.SetAdmin)
	r.Get("/balances/{principal}", h.Balance)
	r.Get("/supply", h.Supply)
	r.Get("/events", h.Events)
}

// --- Request types ---

// DepositRequest is the JSON body for POST /deposit.
type DepositRequest struct {
	Principal model.Principal `json:"principal"`
	Amount    decimal.Decimal `json:"amount"`
}

// WithdrawRequest is the JSON body for POST /withdraw.
type WithdrawRequest struct {
	Principal model.Principal `json:"principal"`
	Shares    decimal.Decimal `json:"shares"`
}

// ValuationRequest is the JSON body for POST /valuation.
type ValuationRequest struct {
	Actor model.Principal `json:"actor"`
	Value decimal.Decimal `json:"value"`
}

// WhitelistRequest is the JSON body for POST /whitelist.
type WhitelistRequest struct {
	Actor     model.Principal `json:"actor"`
	Principal model.Principal `json:"principal"`
}

// AdminRequest is the JSON body for POST /admins.
type AdminRequest struct {
	Actor     model.Principal `json:"actor"`
	Principal model.Principal `json:"principal"`
	Enabled   bool            `json:"enabled"`
}

// --- Handlers ---

// Deposit handles POST /api/v1/deposit.
func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	var req DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Principal == "" {
		writeError(w, "principal is required", http.StatusBadRequest)
		return
	}

	receipt, err := h.ledger.Deposit(r.Context(), req.Principal, req.Amount)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

// Withdraw handles POST /api/v1/withdraw.
func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	var req WithdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Principal == "" {
		writeError(w, "principal is required", http.StatusBadRequest)
		return
	}

	receipt, err := h.ledger.Withdraw(r.Context(), req.Principal, req.Shares)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

// SetValuation handles POST /api/v1/valuation.
func (h *Handler) SetValuation(w http.ResponseWriter, r *http.Request) {
	var req ValuationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.ledger.SetValuation(r.Context(), req.Actor, req.Value); err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"value": req.Value.String()})
}

// Price handles GET /api/v1/price.
func (h *Handler) Price(w http.ResponseWriter, r *http.Request) {
	price, err := h.reporter.PricePerShare(r.Context())
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"price_per_share": price.String(),
		"unit":            shares.PriceUnit.String(),
	})
}

// AddToWhitelist handles POST /api/v1/whitelist.
func (h *Handler) AddToWhitelist(w http.ResponseWriter, r *http.Request) {
	var req WhitelistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.ledger.AddToWhitelist(r.Context(), req.Actor, req.Principal); err != nil {
		writeLedgerError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RemoveFromWhitelist handles DELETE /api/v1/whitelist/{principal}.
// The acting admin is passed as the ?actor query parameter.
func (h *Handler) RemoveFromWhitelist(w http.ResponseWriter, r *http.Request) {
	principal := model.Principal(chi.URLParam(r, "principal"))
	actor := model.Principal(r.URL.Query().Get("actor"))

	if err := h.ledger.RemoveFromWhitelist(r.Context(), actor, principal); err != nil {
		writeLedgerError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetAdmin handles POST /api/v1/admins.
func (h *Handler) SetAdmin(w http.ResponseWriter, r *http.Request) {
	var req AdminRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.ledger.SetAdmin(r.Context(), req.Actor, req.Principal, req.Enabled); err != nil {
		writeLedgerError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Balance handles GET /api/v1/balances/{principal}.
func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	principal := model.Principal(chi.URLParam(r, "principal"))

	balance, err := h.ledger.BalanceOf(r.Context(), principal)
	if err != nil {
		writeError(w, "failed to load balance", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"principal": string(principal),
		"balance":   balance.String(),
	})
}

// Supply handles GET /api/v1/supply.
func (h *Handler) Supply(w http.ResponseWriter, r *http.Request) {
	supply, err := h.ledger.TotalSupply(r.Context())
	if err != nil {
		writeError(w, "failed to load supply", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"total_supply": supply.String()})
}

// Events handles GET /api/v1/events?after=<seq>&limit=<n>.
// Fulfillment agents poll this for withdrawal obligations.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	after, _ := strconv.ParseUint(r.URL.Query().Get("after"), 10, 64)
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	events, err := h.coordinator.Events(r.Context(), after, limit)
	if err != nil {
		writeError(w, "failed to list events", http.StatusInternalServerError)
		return
	}
	if events == nil {
		events = []model.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

// --- Error mapping ---

// writeLedgerError maps the ledger error taxonomy onto HTTP statuses.
// Every guard failure surfaces its distinct kind in the response body.
func writeLedgerError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, access.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, shares.ErrInvalidAmount), errors.Is(err, valuation.ErrInvalidValue):
		status = http.StatusBadRequest
	case errors.Is(err, shares.ErrZeroValuation), errors.Is(err, shares.ErrZeroSupply):
		status = http.StatusConflict
	case errors.Is(err, ledger.ErrInsufficientBalance):
		status = http.StatusConflict
	case errors.Is(err, ledger.ErrReentrantCall):
		status = http.StatusConflict
	case errors.Is(err, custody.ErrTransferFailed):
		status = http.StatusBadGateway
	case errors.Is(err, ledger.ErrUnsupported):
		status = http.StatusMethodNotAllowed
	}
	writeError(w, err.Error(), status)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
