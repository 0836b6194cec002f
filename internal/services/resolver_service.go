package services

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/guildmint/backend/internal/ledger"
	"github.com/guildmint/backend/internal/models"
)

// ResolveScope selects the candidate set a free-text token is matched
// against.
type ResolveScope string

const (
	// ResolveOwned matches only currencies created by the caller.
	ResolveOwned ResolveScope = "owned"
	// ResolveGuild matches only currencies enabled in the caller's scope.
	ResolveGuild ResolveScope = "guild"
	// ResolveAll matches the whole registry.
	ResolveAll ResolveScope = "all"
)

// Leading quantity with optional thousands separators, then the currency
// token, e.g. "1,000 gold" or "100🪙".
var amountPattern = regexp.MustCompile(`^\s*([0-9][0-9,]*)\s*([^0-9\s].*?)\s*$`)

// ResolverService turns user-supplied text into a concrete currency. A
// numeric token is treated as an id and resolved directly, ignoring the
// scope; anything else is matched against the scoped candidate set by exact
// icon, fuzzy name (similarity >= 0.9) or substring containment, in that
// order. Candidate sets are ordered by id, so ties resolve to the lowest id.
type ResolverService struct {
	currencies *CurrencyService
	configs    *GuildConfigService
}

func NewResolverService(currencies *CurrencyService, configs *GuildConfigService) *ResolverService {
	return &ResolverService{currencies: currencies, configs: configs}
}

// Resolve matches a single token against the given resolve scope.
func (s *ResolverService) Resolve(ctx context.Context, ident models.Identity, scope models.Scope, token string, mode ResolveScope) (*models.Currency, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ledger.ErrCurrencyNotFound
	}

	if id, err := strconv.ParseInt(token, 10, 64); err == nil {
		return s.currencies.Get(ctx, id)
	}

	candidates, err := s.candidates(ctx, ident, scope, mode)
	if err != nil {
		return nil, err
	}

	if match := matchCurrency(candidates, token); match != nil {
		return match, nil
	}
	return nil, ledger.ErrCurrencyNotFound
}

// ResolveWithAmount parses inputs like "100 gold" into a currency and an
// amount in one pass. Only guild-enabled currencies are considered.
func (s *ResolverService) ResolveWithAmount(ctx context.Context, ident models.Identity, scope models.Scope, text string) (*models.Currency, int64, error) {
	m := amountPattern.FindStringSubmatch(text)
	if m == nil {
		return nil, 0, ledger.ErrBadAmount
	}

	amount, err := strconv.ParseInt(strings.ReplaceAll(m[1], ",", ""), 10, 64)
	if err != nil || amount <= 0 {
		return nil, 0, ledger.ErrBadAmount
	}

	candidates, err := s.configs.GetCurrencies(ctx, scope)
	if err != nil {
		return nil, 0, err
	}
	if len(candidates) == 0 {
		return nil, 0, ledger.ErrNoCurrencies
	}

	if match := matchCurrency(candidates, m[2]); match != nil {
		return match, amount, nil
	}
	return nil, 0, ledger.ErrCurrencyNotFound
}

func (s *ResolverService) candidates(ctx context.Context, ident models.Identity, scope models.Scope, mode ResolveScope) ([]models.Currency, error) {
	switch mode {
	case ResolveOwned:
		return s.currencies.GetByOwner(ctx, ident.UserID)
	case ResolveGuild:
		return s.configs.GetCurrencies(ctx, scope)
	default:
		return s.currencies.List(ctx)
	}
}

// matchCurrency runs the three match passes in priority order over an
// id-ordered candidate slice, so the result is deterministic.
func matchCurrency(candidates []models.Currency, token string) *models.Currency {
	lowered := strings.ToLower(token)

	for i := range candidates {
		if strings.EqualFold(candidates[i].Icon, token) {
			return &candidates[i]
		}
	}
	for i := range candidates {
		if similarityRatio(strings.ToLower(candidates[i].Name), lowered) >= nameSimilarityThreshold {
			return &candidates[i]
		}
	}
	for i := range candidates {
		if strings.Contains(strings.ToLower(candidates[i].Name), lowered) {
			return &candidates[i]
		}
	}
	return nil
}
