package handlers

import (
	"net/http"
	"strconv"

	"github.com/guildmint/backend/internal/models"
	"github.com/guildmint/backend/internal/services"
)

const (
	defaultTransactionLimit = 10
	maxTransactionLimit     = 100
)

// EconomyHandler exposes balances and balance mutations.
type EconomyHandler struct {
	accounts    *services.AccountService
	resolver    *services.ResolverService
	permissions *services.PermissionService
	validator   *services.ValidationHelper
}

func NewEconomyHandler(accounts *services.AccountService, resolver *services.ResolverService, permissions *services.PermissionService) *EconomyHandler {
	return &EconomyHandler{
		accounts:    accounts,
		resolver:    resolver,
		permissions: permissions,
		validator:   services.NewValidationHelper(),
	}
}

// Balance returns the target user's accounts in the caller's scope. With
// ?currency= only the matching account is returned; ?user= inspects another
// user, defaulting to the caller.
func (h *EconomyHandler) Balance(w http.ResponseWriter, r *http.Request) {
	ident, scope, ok := callerFromContext(w, r)
	if !ok {
		return
	}

	userID := ident.UserID
	if raw := r.URL.Query().Get("user"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			services.SendErrorResponse(w, "Invalid user id", http.StatusBadRequest, nil)
			return
		}
		userID = parsed
	}

	if token := r.URL.Query().Get("currency"); token != "" {
		currency, err := h.resolver.Resolve(r.Context(), ident, scope, token, services.ResolveGuild)
		if err != nil {
			sendLedgerError(w, err)
			return
		}

		account, err := h.accounts.Get(r.Context(), userID, currency.ID)
		if err != nil {
			sendLedgerError(w, err)
			return
		}

		sendJSON(w, http.StatusOK, map[string]any{
			"success":  true,
			"currency": currency.InfoShort(),
			"account":  account,
		})
		return
	}

	accounts, err := h.accounts.GetAll(r.Context(), userID, scope)
	if err != nil {
		sendLedgerError(w, err)
		return
	}

	sendJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"user_id":  userID,
		"accounts": accounts,
	})
}

// AddMoney applies a signed delta to a user's account. It is gated on the
// banker permission of the resolved currency.
func (h *EconomyHandler) AddMoney(w http.ResponseWriter, r *http.Request) {
	ident, scope, ok := callerFromContext(w, r)
	if !ok {
		return
	}

	var req struct {
		UserID   int64  `json:"user_id"`
		Currency string `json:"currency" validate:"required"`
		Amount   int64  `json:"amount" validate:"required"`
		ToWallet bool   `json:"to_wallet"`
		Reason   string `json:"reason" validate:"max=256"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}
	if req.UserID == 0 {
		req.UserID = ident.UserID
	}

	currency, err := h.resolver.Resolve(r.Context(), ident, scope, req.Currency, services.ResolveGuild)
	if err != nil {
		sendLedgerError(w, err)
		return
	}

	if err := h.permissions.Check(ident, scope, currency, services.PermissionBanker); err != nil {
		sendLedgerError(w, err)
		return
	}

	account, err := h.accounts.AddMoney(r.Context(), req.UserID, currency, req.Amount, req.ToWallet, req.Reason)
	if err != nil {
		sendLedgerError(w, err)
		return
	}

	sendJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"currency": currency.InfoShort(),
		"account":  account,
	})
}

// Transfer moves the caller's money: wallet to another user, or between the
// caller's own wallet and bank. The currency and amount arrive either as
// separate fields or combined in the input ("100 gold").
func (h *EconomyHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	ident, scope, ok := callerFromContext(w, r)
	if !ok {
		return
	}

	var req struct {
		Input      string `json:"input" validate:"required"`
		Amount     int64  `json:"amount"`
		TargetUser int64  `json:"target_user"`
		ToWallet   bool   `json:"to_wallet"`
		Reason     string `json:"reason" validate:"max=256"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	currency, amount, err := h.resolveTransfer(r, ident, scope, req.Input, req.Amount)
	if err != nil {
		sendLedgerError(w, err)
		return
	}

	account, err := h.accounts.Transfer(r.Context(), ident.UserID, currency, amount, req.TargetUser, req.ToWallet, req.Reason)
	if err != nil {
		sendLedgerError(w, err)
		return
	}

	sendJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"currency": currency.InfoShort(),
		"account":  account,
	})
}

// Transactions lists the caller's recent log rows, newest first.
func (h *EconomyHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	ident, _, ok := callerFromContext(w, r)
	if !ok {
		return
	}

	limit := defaultTransactionLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			services.SendErrorResponse(w, "Invalid limit", http.StatusBadRequest, nil)
			return
		}
		limit = min(parsed, maxTransactionLimit)
	}

	transactions, err := h.accounts.RecentTransactions(r.Context(), ident.UserID, limit)
	if err != nil {
		sendLedgerError(w, err)
		return
	}

	sendJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"transactions": transactions,
		"count":        len(transactions),
	})
}

func (h *EconomyHandler) resolveTransfer(r *http.Request, ident models.Identity, scope models.Scope, input string, amount int64) (*models.Currency, int64, error) {
	if amount != 0 {
		currency, err := h.resolver.Resolve(r.Context(), ident, scope, input, services.ResolveGuild)
		if err != nil {
			return nil, 0, err
		}
		return currency, amount, nil
	}
	return h.resolver.ResolveWithAmount(r.Context(), ident, scope, input)
}
