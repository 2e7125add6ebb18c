package http

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/elsoug/orders/internal/domain"
)

type contextKey string

const actorContextKey contextKey = "actor"

// ActorFromContext возвращает аутентифицированного актора запроса.
func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey).(domain.Actor)
	return actor, ok
}

// AuthMiddleware проверяет Bearer JWT (HS256) и кладёт актора в контекст.
// Запросы без валидного токена отклоняются с 401.
func AuthMiddleware(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeError(w, http.StatusUnauthorized, "unauthorized", "missing authorization header")
				return
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				writeError(w, http.StatusUnauthorized, "unauthorized", "authorization header must use Bearer scheme")
				return
			}

			actor, err := parseActor(tokenString, secret)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), actorContextKey, actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// parseActor валидирует токен и извлекает идентификатор и роль.
func parseActor(tokenString string, secret []byte) (domain.Actor, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		return domain.Actor{}, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return domain.Actor{}, fmt.Errorf("unexpected claims type")
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return domain.Actor{}, fmt.Errorf("sub claim is required")
	}

	role := domain.RoleBuyer
	if raw, ok := claims["role"].(string); ok && raw != "" {
		role = domain.Role(raw)
	}
	if !role.Valid() {
		return domain.Actor{}, fmt.Errorf("unknown role %q", role)
	}

	return domain.Actor{ID: sub, Role: role}, nil
}
