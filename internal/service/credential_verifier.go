package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go-videotube/internal/model"
	"go-videotube/internal/security"
)

var (
	errUnknownIdentifier = fmt.Errorf("%w: unknown identifier", model.ErrInvalidCredentials)
	errPasswordMismatch  = fmt.Errorf("%w: password mismatch", model.ErrInvalidCredentials)
)

// CredentialVerifier checks an identifier (username or email) and password
// pair. Callers only ever see model.ErrInvalidCredentials for a bad pair; the
// wrapped reason is for logs and the audit trail. On a password mismatch the
// returned user is still populated so the failure can be attributed.
type CredentialVerifier struct {
	users  UserStore
	hasher *security.PasswordHasher
	logger *slog.Logger
}

func NewCredentialVerifier(users UserStore, hasher *security.PasswordHasher, logger *slog.Logger) *CredentialVerifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &CredentialVerifier{users: users, hasher: hasher, logger: logger}
}

func (v *CredentialVerifier) Verify(ctx context.Context, identifier string, password string) (model.User, error) {
	identifier = strings.ToLower(strings.TrimSpace(identifier))

	user, err := v.users.FindByUsernameOrEmail(ctx, identifier)
	if errors.Is(err, model.ErrUserNotFound) {
		// Spend the same bcrypt work as a real comparison.
		v.hasher.VerifyDecoy(password)
		v.logger.DebugContext(ctx, "login rejected", "reason", "unknown identifier")
		return model.User{}, errUnknownIdentifier
	}
	if err != nil {
		return model.User{}, fmt.Errorf("lookup credentials: %w", err)
	}

	if !v.hasher.Verify(password, user.PasswordHash) {
		v.logger.DebugContext(ctx, "login rejected", "reason", "password mismatch", "user_id", user.ID)
		return user, errPasswordMismatch
	}

	return user, nil
}
