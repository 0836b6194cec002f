package handlers

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	mW "github.com/guildmint/backend/internal/middleware"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

const testSecret = "test-secret"

// guildMemberClaims is a plain member of guild 100; the guild owner is user 1.
func guildMemberClaims(userID int64) jwt.MapClaims {
	return jwt.MapClaims{
		"user_id":        float64(userID),
		"guild_id":       float64(100),
		"guild_owner_id": float64(1),
	}
}

func authedRequest(t *testing.T, method, target string, body io.Reader, claims jwt.MapClaims) *http.Request {
	t.Helper()
	viper.Set("jwt.secret_key", testSecret)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	assert.NoError(t, err)

	req := httptest.NewRequest(method, target, body)
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func serve(router http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	mW.AuthMiddleware(router).ServeHTTP(w, req)
	return w
}
