package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"go-videotube/internal/model"
)

const (
	AccessTokenCookie  = "accessToken"
	RefreshTokenCookie = "refreshToken"
)

type accessTokenParser interface {
	ParseAccess(tokenString string) (model.Claims, error)
}

type userFinder interface {
	FindByID(ctx context.Context, id string) (model.User, error)
}

type contextKey string

const userContextKey contextKey = "auth_user"

// AuthMiddleware authorizes requests carrying an access token. It is a pure
// read-through check and never touches the refresh token.
type AuthMiddleware struct {
	tokens accessTokenParser
	users  userFinder
	logger *slog.Logger
}

func NewAuthMiddleware(tokens accessTokenParser, users userFinder, logger *slog.Logger) *AuthMiddleware {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthMiddleware{tokens: tokens, users: users, logger: logger}
}

// Authenticate resolves the request's user. The accessToken cookie wins over
// an Authorization: Bearer header.
func (m *AuthMiddleware) Authenticate(r *http.Request) (model.PublicUser, error) {
	token := AccessTokenFromRequest(r)
	if token == "" {
		return model.PublicUser{}, model.ErrTokenMissing
	}

	claims, err := m.tokens.ParseAccess(token)
	if err != nil {
		return model.PublicUser{}, err
	}

	user, err := m.users.FindByID(r.Context(), claims.SubjectID)
	if errors.Is(err, model.ErrUserNotFound) {
		return model.PublicUser{}, fmt.Errorf("%w: subject no longer exists", model.ErrUnauthorized)
	}
	if err != nil {
		return model.PublicUser{}, err
	}

	return user.Public(), nil
}

func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := m.Authenticate(r)
		switch {
		case errors.Is(err, model.ErrTokenMissing):
			writeErrorJSON(w, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized request")
			return
		case errors.Is(err, model.ErrUnauthorized):
			m.logger.DebugContext(r.Context(), "access token rejected", "error", err)
			writeErrorJSON(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid access token")
			return
		case err != nil:
			m.logger.ErrorContext(r.Context(), "authenticate request", "error", err)
			writeErrorJSON(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

func AccessTokenFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(AccessTokenCookie); err == nil {
		if value := strings.TrimSpace(cookie.Value); value != "" {
			return value
		}
	}

	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}

	return ""
}

func WithUser(ctx context.Context, user model.PublicUser) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

func UserFromContext(ctx context.Context) (model.PublicUser, bool) {
	user, ok := ctx.Value(userContextKey).(model.PublicUser)
	return user, ok
}
