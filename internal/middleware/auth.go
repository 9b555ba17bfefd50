// Package middleware содержит HTTP middleware API-шлюза маркетплейса.
package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/mmeshcher/marketplace-gateway/internal/apperr"
	"github.com/mmeshcher/marketplace-gateway/internal/model"
)

type contextKey string

const userKey contextKey = "user"

// Resolver превращает bearer-токен в профиль пользователя.
type Resolver interface {
	ResolveIdentity(ctx context.Context, token string) (model.User, error)
}

// ErrorFunc пишет ответ с ошибкой.
type ErrorFunc func(w http.ResponseWriter, r *http.Request, err error)

// AuthMiddleware выполняет проверку bearer-токена в заголовке Authorization.
type AuthMiddleware struct {
	resolver Resolver
	onError  ErrorFunc
}

// NewAuthMiddleware создаёт middleware. Если onError не задан, ошибка пишется как {"detail": ...}.
func NewAuthMiddleware(resolver Resolver, onError ErrorFunc) *AuthMiddleware {
	if onError == nil {
		onError = writeDetail
	}
	return &AuthMiddleware{
		resolver: resolver,
		onError:  onError,
	}
}

// Middleware разрешает токен в профиль и добавляет его в контекст запроса.
// Личность проверяется на каждом запросе заново.
func (a *AuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, _ := BearerToken(r)

		user, err := a.resolver.ResolveIdentity(r.Context(), token)
		if err != nil {
			if apperr.Is(err, apperr.EUnauthenticated) {
				w.Header().Set("WWW-Authenticate", "Bearer")
			}
			a.onError(w, r, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

// BearerToken извлекает токен из заголовка "Authorization: Bearer <token>".
func BearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// WithUser кладёт профиль пользователя в контекст.
func WithUser(ctx context.Context, u model.User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

// UserFromContext извлекает профиль пользователя из контекста запроса.
func UserFromContext(ctx context.Context) (model.User, bool) {
	u, ok := ctx.Value(userKey).(model.User)
	return u, ok
}

func writeDetail(w http.ResponseWriter, _ *http.Request, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apperr.StatusCode(err))
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": apperr.Message(err)})
}
