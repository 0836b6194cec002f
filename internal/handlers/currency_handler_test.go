package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/guildmint/backend/internal/services"
	"github.com/stretchr/testify/assert"
)

func newCurrencyRouter(t *testing.T) (chi.Router, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)

	cache := services.NewCacheService(nil)
	currencies := services.NewCurrencyService(db, cache)
	configs := services.NewGuildConfigService(db, cache)
	handler := NewCurrencyHandler(currencies, services.NewResolverService(currencies, configs))

	r := chi.NewRouter()
	r.Post("/currencies", handler.Create)
	r.Get("/currencies/{currency}", handler.Get)
	r.Delete("/currencies/{currency}", handler.Delete)
	return r, mock, func() { db.Close() }
}

func handlerCurrencyRows(id int64, ownerID int64) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "name", "icon", "owner_id", "hidden", "allowed_roles", "created_at"}).
		AddRow(id, "gold", "🪙", ownerID, false, "{}", time.Now())
}

func TestCurrencyHandler_Create(t *testing.T) {
	t.Run("successful create", func(t *testing.T) {
		router, mock, closeDB := newCurrencyRouter(t)
		defer closeDB()

		mock.ExpectQuery(`INSERT INTO currencies`).
			WithArgs("gold", "🪙", int64(7), false).
			WillReturnRows(handlerCurrencyRows(1, 7))

		body, _ := json.Marshal(map[string]any{"name": "gold", "icon": "🪙"})
		req := authedRequest(t, "POST", "/currencies", bytes.NewReader(body), guildMemberClaims(7))
		w := serve(router, req)

		assert.Equal(t, http.StatusCreated, w.Code)
		var resp map[string]any
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, true, resp["success"])
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing name fails validation", func(t *testing.T) {
		router, _, closeDB := newCurrencyRouter(t)
		defer closeDB()

		body, _ := json.Marshal(map[string]any{"icon": "🪙"})
		req := authedRequest(t, "POST", "/currencies", bytes.NewReader(body), guildMemberClaims(7))
		w := serve(router, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("invalid icon", func(t *testing.T) {
		router, _, closeDB := newCurrencyRouter(t)
		defer closeDB()

		body, _ := json.Marshal(map[string]any{"name": "gold", "icon": "not an icon"})
		req := authedRequest(t, "POST", "/currencies", bytes.NewReader(body), guildMemberClaims(7))
		w := serve(router, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown fields rejected", func(t *testing.T) {
		router, _, closeDB := newCurrencyRouter(t)
		defer closeDB()

		body := []byte(`{"name":"gold","icon":"🪙","owner_id":999}`)
		req := authedRequest(t, "POST", "/currencies", bytes.NewReader(body), guildMemberClaims(7))
		w := serve(router, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestCurrencyHandler_Delete(t *testing.T) {
	t.Run("stranger is forbidden", func(t *testing.T) {
		router, mock, closeDB := newCurrencyRouter(t)
		defer closeDB()

		mock.ExpectQuery(`FROM currencies WHERE id = \$1`).
			WithArgs(int64(1)).
			WillReturnRows(handlerCurrencyRows(1, 42))

		req := authedRequest(t, "DELETE", "/currencies/1", nil, guildMemberClaims(7))
		w := serve(router, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("owner deletes with cascade", func(t *testing.T) {
		router, mock, closeDB := newCurrencyRouter(t)
		defer closeDB()

		mock.ExpectQuery(`FROM currencies WHERE id = \$1`).
			WithArgs(int64(1)).
			WillReturnRows(handlerCurrencyRows(1, 7))
		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM accounts WHERE currency_id = \$1`).
			WithArgs(int64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(12)))
		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM currencies WHERE id = \$1`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`DELETE FROM accounts WHERE currency_id = \$1`).
			WillReturnResult(sqlmock.NewResult(0, 12))
		mock.ExpectExec(`DELETE FROM transactions WHERE currency_id = \$1`).
			WillReturnResult(sqlmock.NewResult(0, 30))
		mock.ExpectExec(`UPDATE guild_configs SET currencies = array_remove`).
			WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectCommit()

		req := authedRequest(t, "DELETE", "/currencies/1", nil, guildMemberClaims(7))
		w := serve(router, req)

		assert.Equal(t, http.StatusOK, w.Code)
		var resp map[string]any
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, float64(12), resp["accounts_affected"])
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("name token resolves against owned currencies", func(t *testing.T) {
		router, mock, closeDB := newCurrencyRouter(t)
		defer closeDB()

		mock.ExpectQuery(`FROM currencies WHERE owner_id = \$1 ORDER BY id`).
			WithArgs(int64(7)).
			WillReturnRows(handlerCurrencyRows(1, 7))
		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM accounts WHERE currency_id = \$1`).
			WithArgs(int64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(0)))
		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM currencies WHERE id = \$1`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`DELETE FROM accounts WHERE currency_id = \$1`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(`DELETE FROM transactions WHERE currency_id = \$1`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(`UPDATE guild_configs SET currencies = array_remove`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		req := authedRequest(t, "DELETE", "/currencies/gold", nil, guildMemberClaims(7))
		w := serve(router, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown id", func(t *testing.T) {
		router, mock, closeDB := newCurrencyRouter(t)
		defer closeDB()

		mock.ExpectQuery(`FROM currencies WHERE id = \$1`).
			WithArgs(int64(99)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "name", "icon", "owner_id", "hidden", "allowed_roles", "created_at"}))

		req := authedRequest(t, "DELETE", "/currencies/99", nil, guildMemberClaims(7))
		w := serve(router, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("token not matching any owned currency", func(t *testing.T) {
		router, mock, closeDB := newCurrencyRouter(t)
		defer closeDB()

		mock.ExpectQuery(`FROM currencies WHERE owner_id = \$1 ORDER BY id`).
			WithArgs(int64(7)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "name", "icon", "owner_id", "hidden", "allowed_roles", "created_at"}))

		req := authedRequest(t, "DELETE", "/currencies/doubloons", nil, guildMemberClaims(7))
		w := serve(router, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
