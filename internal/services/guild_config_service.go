package services

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"

	"github.com/guildmint/backend/internal/ledger"
	"github.com/guildmint/backend/internal/models"
	"github.com/lib/pq"
)

// GuildConfigService owns the per-scope enabled-currency lists. Configs are
// created lazily on first access and never deleted.
type GuildConfigService struct {
	db    *sql.DB
	cache *CacheService
}

func NewGuildConfigService(db *sql.DB, cache *CacheService) *GuildConfigService {
	return &GuildConfigService{db: db, cache: cache}
}

// Get fetches the config for a scope, creating an empty one if the scope has
// never been seen.
func (s *GuildConfigService) Get(ctx context.Context, scope models.Scope) (*models.GuildConfig, error) {
	cfg := &models.GuildConfig{}
	err := s.db.QueryRowContext(ctx,
		`SELECT scope_id, currencies FROM guild_configs WHERE scope_id = $1`,
		scope.ID()).Scan(&cfg.ScopeID, pq.Array(&cfg.Currencies))

	if err == sql.ErrNoRows {
		err = s.db.QueryRowContext(ctx, `
			INSERT INTO guild_configs (scope_id) VALUES ($1)
			ON CONFLICT (scope_id) DO UPDATE SET scope_id = EXCLUDED.scope_id
			RETURNING scope_id, currencies`,
			scope.ID()).Scan(&cfg.ScopeID, pq.Array(&cfg.Currencies))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch guild config %d: %w", scope.ID(), err)
	}
	return cfg, nil
}

// GetCurrencies returns the currencies enabled in the scope, lowest id first.
// Reads go through the advisory cache; an empty list is a valid result and
// callers decide whether that is an error.
func (s *GuildConfigService) GetCurrencies(ctx context.Context, scope models.Scope) ([]models.Currency, error) {
	if cached, ok := s.cache.GetGuildCurrencies(ctx, scope.ID()); ok {
		return cached, nil
	}

	cfg, err := s.Get(ctx, scope)
	if err != nil {
		return nil, err
	}

	currencies := []models.Currency{}
	if len(cfg.Currencies) > 0 {
		rows, err := s.db.QueryContext(ctx,
			`SELECT `+currencyColumns+` FROM currencies WHERE id = ANY($1) ORDER BY id`,
			pq.Array(cfg.Currencies))
		if err != nil {
			return nil, fmt.Errorf("failed to fetch guild currencies: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			c, err := scanCurrency(rows)
			if err != nil {
				return nil, fmt.Errorf("failed to scan guild currency: %w", err)
			}
			currencies = append(currencies, *c)
		}
		if err := rows.Err(); err != nil {
			return nil, err
		}
	}

	s.cache.SetGuildCurrencies(ctx, scope.ID(), currencies)
	return currencies, nil
}

// AddCurrency enables a currency in the scope. The capacity, duplicate and
// name/icon-collision predicates ride on a single conditional UPDATE, so two
// racing adds cannot both slip past a stale read; a zero-row result is
// diagnosed afterwards to pick the precise error kind. Elevated callers
// bypass the capacity limit only.
func (s *GuildConfigService) AddCurrency(ctx context.Context, scope models.Scope, currency *models.Currency, elevated bool) error {
	// Make sure the config row exists before the conditional update.
	if _, err := s.Get(ctx, scope); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE guild_configs
		SET currencies = array_append(currencies, $1)
		WHERE scope_id = $2
		  AND NOT currencies @> ARRAY[$1]::bigint[]
		  AND (cardinality(currencies) < $3 OR $4)
		  AND NOT EXISTS (
			SELECT 1 FROM currencies c
			WHERE c.id = ANY (guild_configs.currencies)
			  AND (lower(c.name) = lower($5) OR c.icon = $6)
		  )`,
		currency.ID, scope.ID(), scope.MaxCurrencies(), elevated, currency.Name, currency.Icon)
	if err != nil {
		return fmt.Errorf("failed to add currency %d to scope %d: %w", currency.ID, scope.ID(), err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to add currency %d to scope %d: %w", currency.ID, scope.ID(), err)
	}
	if rows == 0 {
		return s.diagnoseAddFailure(ctx, scope, currency, elevated)
	}

	s.cache.Invalidate(ctx, scope.ID())
	log.Printf("[GUILD] Enabled currency %d in scope %d", currency.ID, scope.ID())
	return nil
}

// diagnoseAddFailure re-reads the scope to decide why the conditional add
// matched nothing.
func (s *GuildConfigService) diagnoseAddFailure(ctx context.Context, scope models.Scope, currency *models.Currency, elevated bool) error {
	cfg, err := s.Get(ctx, scope)
	if err != nil {
		return err
	}

	// An already-enabled id always collides with itself on name and icon,
	// so duplicates report the same kind as any other collision.
	if cfg.Contains(currency.ID) {
		return ledger.ErrSimilarCurrency
	}

	enabled, err := s.GetCurrencies(ctx, scope)
	if err != nil {
		return err
	}
	for _, c := range enabled {
		if strings.EqualFold(c.Name, currency.Name) || c.Icon == currency.Icon {
			return ledger.ErrSimilarCurrency
		}
	}

	if !elevated && len(cfg.Currencies) >= scope.MaxCurrencies() {
		return &ledger.TooManyCurrenciesError{Max: scope.MaxCurrencies()}
	}

	// A racing mutation changed the list between the update and this read.
	return fmt.Errorf("failed to add currency %d to scope %d", currency.ID, scope.ID())
}

// RemoveCurrency disables a currency in the scope. Removing an id that is
// not enabled fails.
func (s *GuildConfigService) RemoveCurrency(ctx context.Context, scope models.Scope, currencyID int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE guild_configs
		SET currencies = array_remove(currencies, $1)
		WHERE scope_id = $2 AND currencies @> ARRAY[$1]::bigint[]`,
		currencyID, scope.ID())
	if err != nil {
		return fmt.Errorf("failed to remove currency %d from scope %d: %w", currencyID, scope.ID(), err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to remove currency %d from scope %d: %w", currencyID, scope.ID(), err)
	}
	if rows == 0 {
		return ledger.ErrNoCurrencies
	}

	s.cache.Invalidate(ctx, scope.ID())
	log.Printf("[GUILD] Disabled currency %d in scope %d", currencyID, scope.ID())
	return nil
}
