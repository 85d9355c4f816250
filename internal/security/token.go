package security

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"go-videotube/internal/model"
)

// Token failure kinds. All of them wrap model.ErrUnauthorized so callers can
// treat them alike while logs keep the distinction.
var (
	ErrTokenExpired   = fmt.Errorf("token expired: %w", model.ErrUnauthorized)
	ErrTokenMalformed = fmt.Errorf("token malformed: %w", model.ErrUnauthorized)
	ErrTokenSignature = fmt.Errorf("token signature invalid: %w", model.ErrUnauthorized)
)

type tokenClaims struct {
	jwt.RegisteredClaims
	Kind model.TokenKind `json:"typ"`
}

// Issue signs a claim set for subjectID that expires after ttl.
func Issue(kind model.TokenKind, subjectID string, secret []byte, ttl time.Duration) (string, error) {
	return issueAt(kind, subjectID, secret, ttl, time.Now())
}

// Parse verifies signature, expiry and kind of a token produced by Issue.
func Parse(kind model.TokenKind, tokenString string, secret []byte) (model.Claims, error) {
	return parseAt(kind, tokenString, secret, time.Now)
}

func issueAt(kind model.TokenKind, subjectID string, secret []byte, ttl time.Duration, now time.Time) (string, error) {
	if strings.TrimSpace(subjectID) == "" {
		return "", errors.New("issue token: subject is required")
	}
	if len(secret) == 0 {
		return "", errors.New("issue token: secret is required")
	}
	if ttl <= 0 {
		return "", errors.New("issue token: ttl must be positive")
	}

	now = now.UTC()
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Kind: kind,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", kind, err)
	}

	return signed, nil
}

func parseAt(kind model.TokenKind, tokenString string, secret []byte, now func() time.Time) (model.Claims, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return model.Claims{}, ErrTokenMalformed
	}

	var claims tokenClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims,
		func(token *jwt.Token) (interface{}, error) {
			return secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(now),
	)
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return model.Claims{}, fmt.Errorf("%w: %w", ErrTokenExpired, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return model.Claims{}, fmt.Errorf("%w: %w", ErrTokenSignature, err)
	default:
		return model.Claims{}, fmt.Errorf("%w: %w", ErrTokenMalformed, err)
	}

	if claims.Kind != kind {
		return model.Claims{}, fmt.Errorf("%w: expected %s token, got %q", ErrTokenMalformed, kind, claims.Kind)
	}
	if claims.Subject == "" {
		return model.Claims{}, fmt.Errorf("%w: missing subject", ErrTokenMalformed)
	}

	out := model.Claims{
		SubjectID: claims.Subject,
		TokenID:   claims.ID,
		Kind:      claims.Kind,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time.UTC()
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time.UTC()
	}

	return out, nil
}

type TokenCodecConfig struct {
	AccessSecret  string
	AccessTTL     time.Duration
	RefreshSecret string
	RefreshTTL    time.Duration
}

// TokenCodec binds each token kind to its own secret and lifetime.
type TokenCodec struct {
	accessSecret  []byte
	accessTTL     time.Duration
	refreshSecret []byte
	refreshTTL    time.Duration
	now           func() time.Time
}

func NewTokenCodec(cfg TokenCodecConfig) (*TokenCodec, error) {
	if strings.TrimSpace(cfg.AccessSecret) == "" || strings.TrimSpace(cfg.RefreshSecret) == "" {
		return nil, errors.New("access and refresh token secrets are required")
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return nil, errors.New("access and refresh token secrets must differ")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("token ttls must be positive")
	}

	return &TokenCodec{
		accessSecret:  []byte(cfg.AccessSecret),
		accessTTL:     cfg.AccessTTL,
		refreshSecret: []byte(cfg.RefreshSecret),
		refreshTTL:    cfg.RefreshTTL,
		now:           time.Now,
	}, nil
}

// SetClock replaces the time source used for issuing and verifying tokens.
func (c *TokenCodec) SetClock(now func() time.Time) {
	c.now = now
}

func (c *TokenCodec) AccessTTL() time.Duration  { return c.accessTTL }
func (c *TokenCodec) RefreshTTL() time.Duration { return c.refreshTTL }

func (c *TokenCodec) IssuePair(subjectID string) (model.TokenPair, error) {
	now := c.now()

	access, err := issueAt(model.TokenKindAccess, subjectID, c.accessSecret, c.accessTTL, now)
	if err != nil {
		return model.TokenPair{}, err
	}

	refresh, err := issueAt(model.TokenKindRefresh, subjectID, c.refreshSecret, c.refreshTTL, now)
	if err != nil {
		return model.TokenPair{}, err
	}

	return model.TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		TokenType:        "Bearer",
		ExpiresIn:        int64(c.accessTTL.Seconds()),
		AccessExpiresAt:  now.Add(c.accessTTL),
		RefreshExpiresAt: now.Add(c.refreshTTL),
	}, nil
}

func (c *TokenCodec) ParseAccess(tokenString string) (model.Claims, error) {
	return parseAt(model.TokenKindAccess, tokenString, c.accessSecret, c.now)
}

func (c *TokenCodec) ParseRefresh(tokenString string) (model.Claims, error) {
	return parseAt(model.TokenKindRefresh, tokenString, c.refreshSecret, c.now)
}

// HashRefreshToken returns the persisted identity of a refresh token.
func HashRefreshToken(tokenString string) string {
	sum := sha256.Sum256([]byte(tokenString))
	return hex.EncodeToString(sum[:])
}

// RefreshTokenMatches reports whether presented is the token whose hash is stored.
func RefreshTokenMatches(stored *string, presented string) bool {
	if stored == nil || *stored == "" {
		return false
	}

	return subtle.ConstantTimeCompare([]byte(*stored), []byte(HashRefreshToken(presented))) == 1
}
