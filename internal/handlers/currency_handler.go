package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/guildmint/backend/internal/ledger"
	"github.com/guildmint/backend/internal/services"
)

// CurrencyHandler exposes the currency registry.
type CurrencyHandler struct {
	currencies *services.CurrencyService
	resolver   *services.ResolverService
	validator  *services.ValidationHelper
}

func NewCurrencyHandler(currencies *services.CurrencyService, resolver *services.ResolverService) *CurrencyHandler {
	return &CurrencyHandler{
		currencies: currencies,
		resolver:   resolver,
		validator:  services.NewValidationHelper(),
	}
}

func currencyIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "currency"), 10, 64)
	if err != nil {
		services.SendErrorResponse(w, "Invalid currency id", http.StatusBadRequest, nil)
		return 0, false
	}
	return id, true
}

// Create registers a new currency owned by the caller.
func (h *CurrencyHandler) Create(w http.ResponseWriter, r *http.Request) {
	ident, _, ok := callerFromContext(w, r)
	if !ok {
		return
	}

	var req struct {
		Name   string `json:"name" validate:"required,min=1,max=64"`
		Icon   string `json:"icon" validate:"required"`
		Hidden bool   `json:"hidden"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	currency, err := h.currencies.Create(r.Context(), req.Name, req.Icon, ident.UserID, req.Hidden)
	if err != nil {
		sendLedgerError(w, err)
		return
	}

	sendJSON(w, http.StatusCreated, map[string]any{
		"success":  true,
		"currency": currency,
	})
}

// Get returns a single currency by id.
func (h *CurrencyHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := currencyIDParam(w, r)
	if !ok {
		return
	}

	currency, err := h.currencies.Get(r.Context(), id)
	if err != nil {
		sendLedgerError(w, err)
		return
	}

	sendJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"currency": currency,
	})
}

// Search lists currencies matching ?q= by name or icon. Hidden currencies
// only appear for their owner or an elevated caller.
func (h *CurrencyHandler) Search(w http.ResponseWriter, r *http.Request) {
	ident, _, ok := callerFromContext(w, r)
	if !ok {
		return
	}

	currencies, err := h.currencies.Search(r.Context(), ident, r.URL.Query().Get("q"))
	if err != nil {
		sendLedgerError(w, err)
		return
	}

	sendJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"currencies": currencies,
		"count":      len(currencies),
	})
}

// Info returns a currency together with its usage figures.
func (h *CurrencyHandler) Info(w http.ResponseWriter, r *http.Request) {
	ident, _, ok := callerFromContext(w, r)
	if !ok {
		return
	}
	id, ok := currencyIDParam(w, r)
	if !ok {
		return
	}

	info, err := h.currencies.Info(r.Context(), ident, id)
	if err != nil {
		sendLedgerError(w, err)
		return
	}

	sendJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"info":    info,
	})
}

// Delete removes a currency and every row referencing it. The target may be
// named by id, or by icon or name matched against the caller's own
// currencies. Only the owner or an elevated caller may delete; the response
// reports how many accounts were wiped with it.
func (h *CurrencyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ident, scope, ok := callerFromContext(w, r)
	if !ok {
		return
	}

	currency, err := h.resolver.Resolve(r.Context(), ident, scope, chi.URLParam(r, "currency"), services.ResolveOwned)
	if err != nil {
		sendLedgerError(w, err)
		return
	}
	if currency.OwnerID != ident.UserID && !ident.Sudo {
		sendLedgerError(w, &ledger.MissingPermissionError{Permission: "currency_owner"})
		return
	}

	affected, err := h.currencies.UsageCount(r.Context(), currency.ID)
	if err != nil {
		sendLedgerError(w, err)
		return
	}

	if err := h.currencies.Delete(r.Context(), currency.ID); err != nil {
		sendLedgerError(w, err)
		return
	}

	sendJSON(w, http.StatusOK, map[string]any{
		"success":           true,
		"deleted":           currency.InfoShort(),
		"accounts_affected": affected,
	})
}
