package services

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/guildmint/backend/internal/ledger"
	"github.com/guildmint/backend/internal/models"
	"github.com/stretchr/testify/assert"
)

func newResolverService(t *testing.T) (*ResolverService, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	cache := NewCacheService(nil)
	currencies := NewCurrencyService(db, cache)
	configs := NewGuildConfigService(db, cache)
	return NewResolverService(currencies, configs), mock, func() { db.Close() }
}

func TestMatchCurrency(t *testing.T) {
	candidates := []models.Currency{
		{ID: 1, Name: "goldcoins", Icon: "🪙"},
		{ID: 2, Name: "goldcoinsx", Icon: "💰"},
		{ID: 3, Name: "silver", Icon: "🥈"},
	}

	t.Run("exact icon wins over name", func(t *testing.T) {
		match := matchCurrency(candidates, "💰")
		assert.NotNil(t, match)
		assert.Equal(t, int64(2), match.ID)
	})

	t.Run("case insensitive name match", func(t *testing.T) {
		match := matchCurrency(candidates, "GoldCoins")
		assert.NotNil(t, match)
		assert.Equal(t, int64(1), match.ID)
	})

	t.Run("fuzzy tie resolves to lowest id", func(t *testing.T) {
		// "goldcoins1" is one edit from both gold candidates.
		match := matchCurrency(candidates, "goldcoins1")
		assert.NotNil(t, match)
		assert.Equal(t, int64(1), match.ID)
	})

	t.Run("substring fallback", func(t *testing.T) {
		match := matchCurrency(candidates, "ilve")
		assert.NotNil(t, match)
		assert.Equal(t, int64(3), match.ID)
	})

	t.Run("no match", func(t *testing.T) {
		assert.Nil(t, matchCurrency(candidates, "doubloons"))
	})
}

func TestResolverService_Resolve(t *testing.T) {
	ident := models.Identity{UserID: 7}
	scope := models.Scope{GuildID: 100}

	t.Run("numeric token resolves by id ignoring scope", func(t *testing.T) {
		service, mock, closeDB := newResolverService(t)
		defer closeDB()

		mock.ExpectQuery(`FROM currencies WHERE id = \$1`).
			WithArgs(int64(3)).
			WillReturnRows(currencyRows(3))

		currency, err := service.Resolve(context.Background(), ident, scope, "3", ResolveGuild)
		assert.NoError(t, err)
		assert.Equal(t, int64(3), currency.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty token is not found", func(t *testing.T) {
		service, _, closeDB := newResolverService(t)
		defer closeDB()

		_, err := service.Resolve(context.Background(), ident, scope, "   ", ResolveGuild)
		assert.ErrorIs(t, err, ledger.ErrCurrencyNotFound)
	})

	t.Run("name token matches guild candidates", func(t *testing.T) {
		service, mock, closeDB := newResolverService(t)
		defer closeDB()

		mock.ExpectQuery(`SELECT scope_id, currencies FROM guild_configs`).
			WillReturnRows(configRow(100, "{1}"))
		mock.ExpectQuery(`FROM currencies WHERE id = ANY\(\$1\)`).
			WillReturnRows(currencyRows(1))

		currency, err := service.Resolve(context.Background(), ident, scope, "gold", ResolveGuild)
		assert.NoError(t, err)
		assert.Equal(t, int64(1), currency.ID)
	})

	t.Run("unmatched token is not found", func(t *testing.T) {
		service, mock, closeDB := newResolverService(t)
		defer closeDB()

		mock.ExpectQuery(`SELECT scope_id, currencies FROM guild_configs`).
			WillReturnRows(configRow(100, "{1}"))
		mock.ExpectQuery(`FROM currencies WHERE id = ANY\(\$1\)`).
			WillReturnRows(currencyRows(1))

		_, err := service.Resolve(context.Background(), ident, scope, "doubloons", ResolveGuild)
		assert.ErrorIs(t, err, ledger.ErrCurrencyNotFound)
	})

	t.Run("owned mode searches the caller's currencies", func(t *testing.T) {
		service, mock, closeDB := newResolverService(t)
		defer closeDB()

		mock.ExpectQuery(`FROM currencies WHERE owner_id = \$1 ORDER BY id`).
			WithArgs(int64(7)).
			WillReturnRows(currencyRows(1))

		currency, err := service.Resolve(context.Background(), ident, scope, "gold", ResolveOwned)
		assert.NoError(t, err)
		assert.Equal(t, int64(1), currency.ID)
	})
}

func TestResolverService_ResolveWithAmount(t *testing.T) {
	ident := models.Identity{UserID: 7}
	scope := models.Scope{GuildID: 100}

	t.Run("combined amount and currency", func(t *testing.T) {
		service, mock, closeDB := newResolverService(t)
		defer closeDB()

		mock.ExpectQuery(`SELECT scope_id, currencies FROM guild_configs`).
			WillReturnRows(configRow(100, "{1}"))
		mock.ExpectQuery(`FROM currencies WHERE id = ANY\(\$1\)`).
			WillReturnRows(currencyRows(1))

		currency, amount, err := service.ResolveWithAmount(context.Background(), ident, scope, "1,000 gold")
		assert.NoError(t, err)
		assert.Equal(t, int64(1), currency.ID)
		assert.Equal(t, int64(1000), amount)
	})

	t.Run("icon glued to the amount", func(t *testing.T) {
		service, mock, closeDB := newResolverService(t)
		defer closeDB()

		mock.ExpectQuery(`SELECT scope_id, currencies FROM guild_configs`).
			WillReturnRows(configRow(100, "{1}"))
		mock.ExpectQuery(`FROM currencies WHERE id = ANY\(\$1\)`).
			WillReturnRows(currencyRows(1))

		currency, amount, err := service.ResolveWithAmount(context.Background(), ident, scope, "100🪙")
		assert.NoError(t, err)
		assert.Equal(t, int64(1), currency.ID)
		assert.Equal(t, int64(100), amount)
	})

	t.Run("unparseable input", func(t *testing.T) {
		service, _, closeDB := newResolverService(t)
		defer closeDB()

		_, _, err := service.ResolveWithAmount(context.Background(), ident, scope, "gold 100")
		assert.ErrorIs(t, err, ledger.ErrBadAmount)

		_, _, err = service.ResolveWithAmount(context.Background(), ident, scope, "0 gold")
		assert.ErrorIs(t, err, ledger.ErrBadAmount)
	})

	t.Run("empty scope has no candidates", func(t *testing.T) {
		service, mock, closeDB := newResolverService(t)
		defer closeDB()

		mock.ExpectQuery(`SELECT scope_id, currencies FROM guild_configs`).
			WillReturnRows(configRow(100, "{}"))

		_, _, err := service.ResolveWithAmount(context.Background(), ident, scope, "100 gold")
		assert.ErrorIs(t, err, ledger.ErrNoCurrencies)
	})
}
