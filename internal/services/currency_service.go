package services

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"regexp"

	"github.com/guildmint/backend/internal/ledger"
	"github.com/guildmint/backend/internal/models"
	"github.com/lib/pq"
)

const currencyColumns = "id, name, icon, owner_id, hidden, allowed_roles, created_at"

const searchLimit = 10

// Custom emoji references look like <:coin:123456789012345678> with an
// optional animation marker. Anything else must be a short glyph cluster.
var customEmojiPattern = regexp.MustCompile(`^<a?:\w+:\d{18}>$`)

// CurrencyService is the currency registry: creation, lookup, search and the
// cascading delete that purges every row referencing a currency.
type CurrencyService struct {
	db    *sql.DB
	cache *CacheService
}

func NewCurrencyService(db *sql.DB, cache *CacheService) *CurrencyService {
	return &CurrencyService{db: db, cache: cache}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCurrency(row rowScanner) (*models.Currency, error) {
	var c models.Currency
	err := row.Scan(&c.ID, &c.Name, &c.Icon, &c.OwnerID, &c.Hidden, pq.Array(&c.AllowedRoles), &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func validIcon(icon string) bool {
	if customEmojiPattern.MatchString(icon) {
		return true
	}
	// Zero-width joiners and variation selectors glue multi-rune emoji into a
	// single glyph and do not count against the length bound.
	n := 0
	for _, r := range icon {
		if r == '\u200d' || r == '\ufe0f' {
			continue
		}
		n++
	}
	return n >= 1 && n <= 4
}

// Create validates the icon shape and persists a new currency owned by the
// caller. The server assigns the id and creation timestamp.
func (s *CurrencyService) Create(ctx context.Context, name, icon string, ownerID int64, hidden bool) (*models.Currency, error) {
	if !validIcon(icon) {
		return nil, ledger.ErrInvalidIcon
	}

	currency, err := scanCurrency(s.db.QueryRowContext(ctx, `
		INSERT INTO currencies (name, icon, owner_id, hidden)
		VALUES ($1, $2, $3, $4)
		RETURNING `+currencyColumns,
		name, icon, ownerID, hidden))
	if err != nil {
		return nil, fmt.Errorf("failed to create currency: %w", err)
	}

	log.Printf("[CURRENCY] Created currency %d (%s) for user %d", currency.ID, currency.Name, ownerID)
	return currency, nil
}

// Get fetches a currency by id.
func (s *CurrencyService) Get(ctx context.Context, id int64) (*models.Currency, error) {
	currency, err := scanCurrency(s.db.QueryRowContext(ctx,
		`SELECT `+currencyColumns+` FROM currencies WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, ledger.ErrCurrencyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch currency %d: %w", id, err)
	}
	return currency, nil
}

// GetByOwner returns every currency created by a user, lowest id first.
func (s *CurrencyService) GetByOwner(ctx context.Context, ownerID int64) ([]models.Currency, error) {
	return s.queryCurrencies(ctx,
		`SELECT `+currencyColumns+` FROM currencies WHERE owner_id = $1 ORDER BY id`, ownerID)
}

// List returns every currency in the registry, lowest id first.
func (s *CurrencyService) List(ctx context.Context) ([]models.Currency, error) {
	return s.queryCurrencies(ctx,
		`SELECT `+currencyColumns+` FROM currencies ORDER BY id`)
}

// Search matches name or icon case-insensitively, capped at 10 rows. An
// empty query returns an arbitrary 10-row sample. Hidden currencies only
// show up for their owner or an elevated caller.
func (s *CurrencyService) Search(ctx context.Context, ident models.Identity, query string) ([]models.Currency, error) {
	if query == "" {
		return s.queryCurrencies(ctx, `
			SELECT `+currencyColumns+` FROM currencies
			WHERE NOT hidden OR owner_id = $1 OR $2
			LIMIT $3`,
			ident.UserID, ident.Sudo, searchLimit)
	}

	pattern := "%" + query + "%"
	return s.queryCurrencies(ctx, `
		SELECT `+currencyColumns+` FROM currencies
		WHERE (name ILIKE $1 OR icon ILIKE $1)
		  AND (NOT hidden OR owner_id = $2 OR $3)
		LIMIT $4`,
		pattern, ident.UserID, ident.Sudo, searchLimit)
}

// UsageCount returns how many accounts reference the currency.
func (s *CurrencyService) UsageCount(ctx context.Context, id int64) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM accounts WHERE currency_id = $1`, id).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count accounts for currency %d: %w", id, err)
	}
	return count, nil
}

// Info returns the currency plus its usage figures. Hidden currencies are
// indistinguishable from missing ones unless the caller owns them or is
// elevated.
func (s *CurrencyService) Info(ctx context.Context, ident models.Identity, id int64) (*models.CurrencyInfo, error) {
	currency, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if currency.Hidden && currency.OwnerID != ident.UserID && !ident.Sudo {
		return nil, ledger.ErrCurrencyNotFound
	}

	users, err := s.UsageCount(ctx, id)
	if err != nil {
		return nil, err
	}

	var guilds int64
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM guild_configs WHERE currencies @> ARRAY[$1]::bigint[]`, id).Scan(&guilds)
	if err != nil {
		return nil, fmt.Errorf("failed to count guilds for currency %d: %w", id, err)
	}

	return &models.CurrencyInfo{Currency: *currency, Users: users, Guilds: guilds}, nil
}

// Delete removes the currency and everything referencing it: accounts,
// transaction log rows and every guild's enabled-list entry. All four
// statements run in one transaction so a partial cascade is impossible.
func (s *CurrencyService) Delete(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin delete transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM currencies WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete currency %d: %w", id, err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return ledger.ErrCurrencyNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM accounts WHERE currency_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete accounts for currency %d: %w", id, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM transactions WHERE currency_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete transactions for currency %d: %w", id, err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE guild_configs SET currencies = array_remove(currencies, $1)
		WHERE currencies @> ARRAY[$1]::bigint[]`, id); err != nil {
		return fmt.Errorf("failed to disable currency %d in guilds: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit currency delete: %w", err)
	}

	s.cache.InvalidateAll(ctx)
	log.Printf("[CURRENCY] Deleted currency %d and all referencing rows", id)
	return nil
}

func (s *CurrencyService) queryCurrencies(ctx context.Context, query string, args ...any) ([]models.Currency, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query currencies: %w", err)
	}
	defer rows.Close()

	currencies := []models.Currency{}
	for rows.Next() {
		c, err := scanCurrency(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan currency: %w", err)
		}
		currencies = append(currencies, *c)
	}
	return currencies, rows.Err()
}
