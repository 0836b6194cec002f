package services

import (
	"github.com/guildmint/backend/internal/ledger"
	"github.com/guildmint/backend/internal/models"
)

// Permission names understood by the gate. Anything else fails closed.
const (
	PermissionManageCurrencies = "manage_currencies"
	PermissionBanker           = "banker"
)

// PermissionService is the explicit authorization gate called at the top of
// every mutating operation. It is pure: everything it needs arrives in the
// identity, scope and target currency, nothing is inferred from the request.
type PermissionService struct{}

func NewPermissionService() *PermissionService {
	return &PermissionService{}
}

// Check returns nil if the caller holds the named permission, and a
// MissingPermissionError otherwise.
func (s *PermissionService) Check(ident models.Identity, scope models.Scope, currency *models.Currency, permission string) error {
	switch permission {
	case PermissionManageCurrencies:
		if !scope.IsGuild() || scope.GuildOwnerID == ident.UserID || ident.Sudo {
			return nil
		}
		if currency != nil && ident.HasRole(currency.AllowedRoles) {
			return nil
		}

	case PermissionBanker:
		if currency == nil {
			break
		}
		if currency.OwnerID == ident.UserID || ident.Sudo || ident.HasRole(currency.AllowedRoles) {
			return nil
		}
	}

	return &ledger.MissingPermissionError{Permission: permission}
}
