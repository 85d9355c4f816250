package handler

import (
	"net/http"
	"time"

	"go-videotube/internal/middleware"
	"go-videotube/internal/model"
)

type CookieConfig struct {
	Secure     bool
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

func (c CookieConfig) sessionCookie(name string, value string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (c CookieConfig) setSession(w http.ResponseWriter, pair model.TokenPair) {
	http.SetCookie(w, c.sessionCookie(middleware.AccessTokenCookie, pair.AccessToken, c.AccessTTL))
	http.SetCookie(w, c.sessionCookie(middleware.RefreshTokenCookie, pair.RefreshToken, c.RefreshTTL))
}

func (c CookieConfig) clearSession(w http.ResponseWriter) {
	for _, name := range []string{middleware.AccessTokenCookie, middleware.RefreshTokenCookie} {
		cookie := c.sessionCookie(name, "", 0)
		cookie.MaxAge = -1
		http.SetCookie(w, cookie)
	}
}
