package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/guildmint/backend/internal/models"
	"github.com/spf13/viper"
)

type contextKey string

const (
	identityContextKey contextKey = "identity"
	scopeContextKey    contextKey = "scope"
)

// AuthMiddleware resolves the caller once at the boundary: user identity,
// role set, the elevated (sudo) capability and the guild scope all come from
// the token claims. Downstream code never re-derives any of it.
func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Authorization header required", http.StatusUnauthorized)
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			http.Error(w, "Invalid authorization header format", http.StatusUnauthorized)
			return
		}

		ident, scope, err := resolveToken(parts[1])
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), identityContextKey, ident)
		ctx = context.WithValue(ctx, scopeContextKey, scope)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// IdentityFromContext returns the caller identity stored by AuthMiddleware.
func IdentityFromContext(ctx context.Context) (models.Identity, bool) {
	ident, ok := ctx.Value(identityContextKey).(models.Identity)
	return ident, ok
}

// ScopeFromContext returns the acting scope stored by AuthMiddleware.
func ScopeFromContext(ctx context.Context) (models.Scope, bool) {
	scope, ok := ctx.Value(scopeContextKey).(models.Scope)
	return scope, ok
}

func resolveToken(tokenString string) (models.Identity, models.Scope, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		return []byte(viper.GetString("jwt.secret_key")), nil
	})
	if err != nil {
		return models.Identity{}, models.Scope{}, err
	}
	if !token.Valid {
		return models.Identity{}, models.Scope{}, jwt.ErrTokenUnverifiable
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return models.Identity{}, models.Scope{}, jwt.ErrTokenInvalidClaims
	}

	userID := claimInt64(claims, "user_id")
	if userID == 0 {
		return models.Identity{}, models.Scope{}, jwt.ErrTokenInvalidClaims
	}

	ident := models.Identity{
		UserID:  userID,
		RoleIDs: claimInt64Slice(claims, "roles"),
		Sudo:    claimBool(claims, "sudo"),
	}
	scope := models.Scope{
		GuildID:      claimInt64(claims, "guild_id"),
		GuildOwnerID: claimInt64(claims, "guild_owner_id"),
		UserID:       userID,
	}
	return ident, scope, nil
}

// JWT numbers arrive as float64 after JSON decoding.
func claimInt64(claims jwt.MapClaims, key string) int64 {
	switch v := claims[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	}
	return 0
}

func claimInt64Slice(claims jwt.MapClaims, key string) []int64 {
	raw, ok := claims[key].([]any)
	if !ok {
		return nil
	}
	out := make([]int64, 0, len(raw))
	for _, v := range raw {
		if f, ok := v.(float64); ok {
			out = append(out, int64(f))
		}
	}
	return out
}

func claimBool(claims jwt.MapClaims, key string) bool {
	b, _ := claims[key].(bool)
	return b
}
