package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"go-videotube/internal/event"
	"go-videotube/internal/model"
	"go-videotube/internal/security"
	"go-videotube/pkg/apierror"
)

type SessionConfig struct {
	// RevokeOnRefreshReuse clears the stored refresh hash when a stale
	// refresh token is presented outside the rotation grace window.
	RevokeOnRefreshReuse bool
	// RotationGrace is how long the token replaced by the latest rotation is
	// answered with a plain 401 instead of being treated as reuse.
	RotationGrace time.Duration
	// RevokeOnPasswordChange clears the stored refresh hash together with the
	// password update.
	RevokeOnPasswordChange bool
}

// SessionService drives a user's session: Anonymous -> Active on login,
// Active -> Active on refresh, Active -> Anonymous on logout or detected
// refresh token reuse. The refresh token hash on the user row is the only
// session state.
type SessionService struct {
	users    UserStore
	verifier *CredentialVerifier
	hasher   *security.PasswordHasher
	codec    *security.TokenCodec
	bus      event.Bus
	cfg      SessionConfig
	logger   *slog.Logger
	now      func() time.Time
}

func NewSessionService(
	users UserStore,
	verifier *CredentialVerifier,
	hasher *security.PasswordHasher,
	codec *security.TokenCodec,
	bus event.Bus,
	cfg SessionConfig,
	logger *slog.Logger,
) *SessionService {
	if logger == nil {
		logger = slog.Default()
	}

	return &SessionService{
		users:    users,
		verifier: verifier,
		hasher:   hasher,
		codec:    codec,
		bus:      bus,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *SessionService) Login(ctx context.Context, identifier string, password string, actor model.Actor) (result model.LoginResult, err error) {
	ctx, span := tracer.Start(ctx, "SessionService.Login")
	defer func() { endSpan(span, err) }()

	if strings.TrimSpace(identifier) == "" {
		return model.LoginResult{}, apierror.Validation("username or email is required", "identifier: required")
	}
	if password == "" {
		return model.LoginResult{}, apierror.Validation("password is required", "password: required")
	}

	user, err := s.verifier.Verify(ctx, identifier, password)
	if err != nil {
		if errors.Is(err, model.ErrInvalidCredentials) {
			s.publish(event.TypeLoginFailed, user.ID, actor, "failure", err.Error())
			return model.LoginResult{}, apierror.BadCredential("invalid user credentials")
		}
		return model.LoginResult{}, err
	}

	pair, err := s.startSession(ctx, user.ID)
	if err != nil {
		return model.LoginResult{}, err
	}

	span.SetAttributes(attribute.String("user.id", user.ID))
	s.publish(event.TypeLoginSucceeded, user.ID, actor, "success", "")

	return model.LoginResult{User: user.Public(), TokenPair: pair}, nil
}

// startSession issues a fresh pair and overwrites the stored refresh hash,
// which ends any earlier session of the same user.
func (s *SessionService) startSession(ctx context.Context, userID string) (model.TokenPair, error) {
	pair, err := s.codec.IssuePair(userID)
	if err != nil {
		return model.TokenPair{}, fmt.Errorf("issue token pair: %w", err)
	}

	if err := s.users.SetRefreshTokenHash(ctx, userID, security.HashRefreshToken(pair.RefreshToken)); err != nil {
		return model.TokenPair{}, fmt.Errorf("store refresh token: %w", err)
	}

	return pair, nil
}

func (s *SessionService) Refresh(ctx context.Context, presented string, actor model.Actor) (pair model.TokenPair, err error) {
	ctx, span := tracer.Start(ctx, "SessionService.Refresh")
	defer func() { endSpan(span, err) }()

	presented = strings.TrimSpace(presented)
	if presented == "" {
		return model.TokenPair{}, apierror.Unauthorized("refresh token is required")
	}

	claims, err := s.codec.ParseRefresh(presented)
	if err != nil {
		s.logger.DebugContext(ctx, "refresh token rejected", "error", err)
		return model.TokenPair{}, apierror.Unauthorized("invalid refresh token")
	}
	span.SetAttributes(attribute.String("user.id", claims.SubjectID))

	user, err := s.users.FindByID(ctx, claims.SubjectID)
	if errors.Is(err, model.ErrUserNotFound) {
		return model.TokenPair{}, apierror.Unauthorized("invalid refresh token")
	}
	if err != nil {
		return model.TokenPair{}, err
	}

	if user.RefreshTokenHash == nil {
		s.publish(event.TypeTokenRefreshed, user.ID, actor, "failure", "no active session")
		return model.TokenPair{}, apierror.Unauthorized("refresh token is expired or used")
	}

	if !security.RefreshTokenMatches(user.RefreshTokenHash, presented) {
		if s.justRotated(user, presented) {
			s.publish(event.TypeTokenRefreshed, user.ID, actor, "failure", "token already rotated")
			return model.TokenPair{}, apierror.Unauthorized("refresh token is expired or used")
		}
		return model.TokenPair{}, s.rejectReuse(ctx, user, actor)
	}

	next, err := s.codec.IssuePair(user.ID)
	if err != nil {
		return model.TokenPair{}, fmt.Errorf("issue token pair: %w", err)
	}

	swapped, err := s.users.SwapRefreshTokenHash(ctx, user.ID,
		security.HashRefreshToken(presented), security.HashRefreshToken(next.RefreshToken))
	if err != nil {
		return model.TokenPair{}, err
	}
	if !swapped {
		// Lost the race to a concurrent refresh of the same token. The
		// winner's pair stays valid.
		s.publish(event.TypeTokenRefreshed, user.ID, actor, "failure", "token rotated concurrently")
		return model.TokenPair{}, apierror.Unauthorized("refresh token is expired or used")
	}

	s.publish(event.TypeTokenRefreshed, user.ID, actor, "success", "")
	return next, nil
}

// justRotated reports whether presented is the token replaced by the latest
// rotation and that rotation is still inside the grace window.
func (s *SessionService) justRotated(user model.User, presented string) bool {
	if s.cfg.RotationGrace <= 0 || user.RefreshRotatedAt == nil {
		return false
	}
	if !security.RefreshTokenMatches(user.PreviousRefreshTokenHash, presented) {
		return false
	}
	return s.now().Sub(*user.RefreshRotatedAt) <= s.cfg.RotationGrace
}

func (s *SessionService) rejectReuse(ctx context.Context, user model.User, actor model.Actor) error {
	s.logger.WarnContext(ctx, "refresh token reuse detected", "user_id", user.ID, "revoke", s.cfg.RevokeOnRefreshReuse)

	detail := "presented token is not the current one"
	if s.cfg.RevokeOnRefreshReuse {
		// Only the hash read above is revoked. A rotation that committed in
		// between is left alone.
		revoked, err := s.users.RevokeRefreshTokenHash(ctx, user.ID, *user.RefreshTokenHash)
		if err != nil {
			return err
		}
		if revoked {
			detail += "; session revoked"
		}
	}

	s.publish(event.TypeRefreshReuseDetected, user.ID, actor, "failure", detail)
	return apierror.Unauthorized("refresh token is expired or used")
}

// Logout is idempotent.
func (s *SessionService) Logout(ctx context.Context, userID string, actor model.Actor) (err error) {
	ctx, span := tracer.Start(ctx, "SessionService.Logout")
	defer func() { endSpan(span, err) }()

	if err := s.users.ClearRefreshTokenHash(ctx, userID); err != nil {
		return err
	}

	s.publish(event.TypeLogout, userID, actor, "success", "")
	return nil
}

func (s *SessionService) ChangePassword(ctx context.Context, userID string, oldPassword string, newPassword string, actor model.Actor) (err error) {
	ctx, span := tracer.Start(ctx, "SessionService.ChangePassword")
	defer func() { endSpan(span, err) }()

	if oldPassword == "" || strings.TrimSpace(newPassword) == "" {
		return apierror.Validation("old and new passwords are required", "oldPassword: required", "newPassword: required")
	}
	if len(newPassword) > security.MaxPasswordBytes {
		return apierror.Validation("password is too long", fmt.Sprintf("newPassword: at most %d bytes", security.MaxPasswordBytes))
	}

	user, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, model.ErrUserNotFound) {
		return apierror.Unauthorized("unauthorized request")
	}
	if err != nil {
		return err
	}

	if !s.hasher.Verify(oldPassword, user.PasswordHash) {
		s.publish(event.TypePasswordChanged, user.ID, actor, "failure", model.ErrInvalidPassword.Error())
		return apierror.BadCredential(model.ErrInvalidPassword.Error())
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}

	if err := s.users.UpdatePassword(ctx, user.ID, hash, s.cfg.RevokeOnPasswordChange); err != nil {
		return err
	}

	detail := ""
	if s.cfg.RevokeOnPasswordChange {
		detail = "sessions revoked"
	}
	s.publish(event.TypePasswordChanged, user.ID, actor, "success", detail)
	return nil
}

func (s *SessionService) publish(eventType event.Type, userID string, actor model.Actor, status string, detail string) {
	if s.bus == nil {
		return
	}

	if userID == "" {
		userID = actor.UserID
	}

	s.bus.Publish(event.New(eventType, userID, event.SessionPayload{
		UserID: userID,
		IP:     actor.IP,
		Status: status,
		Detail: detail,
	}))
}
