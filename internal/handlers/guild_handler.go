package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/guildmint/backend/internal/ledger"
	"github.com/guildmint/backend/internal/services"
)

// GuildHandler manages the enabled-currency list of the caller's scope.
type GuildHandler struct {
	configs     *services.GuildConfigService
	resolver    *services.ResolverService
	permissions *services.PermissionService
	validator   *services.ValidationHelper
}

func NewGuildHandler(configs *services.GuildConfigService, resolver *services.ResolverService, permissions *services.PermissionService) *GuildHandler {
	return &GuildHandler{
		configs:     configs,
		resolver:    resolver,
		permissions: permissions,
		validator:   services.NewValidationHelper(),
	}
}

// List returns the currencies enabled in the caller's scope. An empty list is
// reported as not found, matching the resolution surface.
func (h *GuildHandler) List(w http.ResponseWriter, r *http.Request) {
	_, scope, ok := callerFromContext(w, r)
	if !ok {
		return
	}

	currencies, err := h.configs.GetCurrencies(r.Context(), scope)
	if err != nil {
		sendLedgerError(w, err)
		return
	}
	if len(currencies) == 0 {
		sendLedgerError(w, ledger.ErrNoCurrencies)
		return
	}

	sendJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"currencies": currencies,
		"count":      len(currencies),
		"max":        scope.MaxCurrencies(),
	})
}

// Add enables a currency in the caller's scope. The currency may be named by
// id, icon or (fuzzy) name across the whole registry.
func (h *GuildHandler) Add(w http.ResponseWriter, r *http.Request) {
	ident, scope, ok := callerFromContext(w, r)
	if !ok {
		return
	}

	var req struct {
		Currency string `json:"currency" validate:"required"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	currency, err := h.resolver.Resolve(r.Context(), ident, scope, req.Currency, services.ResolveAll)
	if err != nil {
		sendLedgerError(w, err)
		return
	}

	if err := h.permissions.Check(ident, scope, currency, services.PermissionManageCurrencies); err != nil {
		sendLedgerError(w, err)
		return
	}

	if err := h.configs.AddCurrency(r.Context(), scope, currency, ident.Sudo); err != nil {
		sendLedgerError(w, err)
		return
	}

	sendJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"currency": currency.InfoShort(),
	})
}

// Remove disables a currency in the caller's scope. The currency is resolved
// against the enabled list only.
func (h *GuildHandler) Remove(w http.ResponseWriter, r *http.Request) {
	ident, scope, ok := callerFromContext(w, r)
	if !ok {
		return
	}

	currency, err := h.resolver.Resolve(r.Context(), ident, scope, chi.URLParam(r, "currency"), services.ResolveGuild)
	if err != nil {
		sendLedgerError(w, err)
		return
	}

	if err := h.permissions.Check(ident, scope, currency, services.PermissionManageCurrencies); err != nil {
		sendLedgerError(w, err)
		return
	}

	if err := h.configs.RemoveCurrency(r.Context(), scope, currency.ID); err != nil {
		sendLedgerError(w, err)
		return
	}

	sendJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"currency": currency.InfoShort(),
	})
}
