package service

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-videotube/internal/model"
	"go-videotube/internal/security"
	"go-videotube/pkg/apierror"
)

var defaultSessionConfig = SessionConfig{
	RevokeOnRefreshReuse:   true,
	RotationGrace:          10 * time.Second,
	RevokeOnPasswordChange: true,
}

func TestCredentialVerifier(t *testing.T) {
	env := newTestEnv(t, defaultSessionConfig)
	alice := env.seedUser(t, "alice", "S3cr3t!")
	verifier := NewCredentialVerifier(env.repos.Users, env.hasher, nil)
	ctx := context.Background()

	t.Run("accepts username and email in any case", func(t *testing.T) {
		for _, identifier := range []string{"alice", " ALICE ", "alice@x.com", "Alice@X.com"} {
			user, err := verifier.Verify(ctx, identifier, "S3cr3t!")
			require.NoError(t, err, identifier)
			assert.Equal(t, alice.ID, user.ID)
		}
	})

	t.Run("unknown user and wrong password look the same", func(t *testing.T) {
		_, unknownErr := verifier.Verify(ctx, "mallory", "S3cr3t!")
		_, wrongErr := verifier.Verify(ctx, "alice", "wrong")

		require.ErrorIs(t, unknownErr, model.ErrInvalidCredentials)
		require.ErrorIs(t, wrongErr, model.ErrInvalidCredentials)
	})
}

func TestSessionService_Login(t *testing.T) {
	env := newTestEnv(t, defaultSessionConfig)
	alice := env.seedUser(t, "alice", "S3cr3t!")
	ctx := context.Background()

	t.Run("issues a pair and stores the refresh hash", func(t *testing.T) {
		result, err := env.sessions.Login(ctx, "alice@x.com", "S3cr3t!", model.Actor{IP: "127.0.0.1"})
		require.NoError(t, err)

		assert.Equal(t, alice.ID, result.User.ID)
		assert.NotEmpty(t, result.AccessToken)
		assert.NotEmpty(t, result.RefreshToken)

		claims, err := env.codec.ParseAccess(result.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, alice.ID, claims.SubjectID)

		stored, err := env.repos.Users.FindByID(ctx, alice.ID)
		require.NoError(t, err)
		require.NotNil(t, stored.RefreshTokenHash)
		assert.Equal(t, security.HashRefreshToken(result.RefreshToken), *stored.RefreshTokenHash)
	})

	t.Run("bad credentials are a generic 401", func(t *testing.T) {
		_, err := env.sessions.Login(ctx, "alice", "nope", model.Actor{})
		wrong := requireAPIStatus(t, err, http.StatusUnauthorized)

		_, err = env.sessions.Login(ctx, "bob", "S3cr3t!", model.Actor{})
		unknown := requireAPIStatus(t, err, http.StatusUnauthorized)

		assert.Equal(t, unknown.Message, wrong.Message)
	})

	t.Run("missing fields are validation errors", func(t *testing.T) {
		_, err := env.sessions.Login(ctx, "  ", "S3cr3t!", model.Actor{})
		requireAPIStatus(t, err, http.StatusBadRequest)

		_, err = env.sessions.Login(ctx, "alice", "", model.Actor{})
		requireAPIStatus(t, err, http.StatusBadRequest)
	})
}

func TestSessionService_RefreshRotationInvalidatesPreviousToken(t *testing.T) {
	env := newTestEnv(t, SessionConfig{})
	env.seedUser(t, "alice", "S3cr3t!")
	ctx := context.Background()

	login, err := env.sessions.Login(ctx, "alice", "S3cr3t!", model.Actor{})
	require.NoError(t, err)

	rotated, err := env.sessions.Refresh(ctx, login.RefreshToken, model.Actor{})
	require.NoError(t, err)
	assert.NotEqual(t, login.RefreshToken, rotated.RefreshToken)
	assert.NotEqual(t, login.AccessToken, rotated.AccessToken)

	_, err = env.sessions.Refresh(ctx, login.RefreshToken, model.Actor{})
	requireAPIStatus(t, err, http.StatusUnauthorized)

	// Without revocation the current token survives the replay attempt.
	_, err = env.sessions.Refresh(ctx, rotated.RefreshToken, model.Actor{})
	require.NoError(t, err)
}

func TestSessionService_RefreshReuseRevokesSession(t *testing.T) {
	env := newTestEnv(t, defaultSessionConfig)
	alice := env.seedUser(t, "alice", "S3cr3t!")
	ctx := context.Background()

	login, err := env.sessions.Login(ctx, "alice", "S3cr3t!", model.Actor{})
	require.NoError(t, err)

	rotated, err := env.sessions.Refresh(ctx, login.RefreshToken, model.Actor{})
	require.NoError(t, err)

	env.advanceClock(defaultSessionConfig.RotationGrace + time.Second)

	_, err = env.sessions.Refresh(ctx, login.RefreshToken, model.Actor{})
	requireAPIStatus(t, err, http.StatusUnauthorized)

	stored, err := env.repos.Users.FindByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.RefreshTokenHash)
	assert.Nil(t, stored.PreviousRefreshTokenHash)

	_, err = env.sessions.Refresh(ctx, rotated.RefreshToken, model.Actor{})
	requireAPIStatus(t, err, http.StatusUnauthorized)
}

func TestSessionService_RefreshReplayWithinGraceKeepsSession(t *testing.T) {
	env := newTestEnv(t, defaultSessionConfig)
	alice := env.seedUser(t, "alice", "S3cr3t!")
	ctx := context.Background()

	login, err := env.sessions.Login(ctx, "alice", "S3cr3t!", model.Actor{})
	require.NoError(t, err)

	rotated, err := env.sessions.Refresh(ctx, login.RefreshToken, model.Actor{})
	require.NoError(t, err)

	_, err = env.sessions.Refresh(ctx, login.RefreshToken, model.Actor{})
	requireAPIStatus(t, err, http.StatusUnauthorized)

	stored, err := env.repos.Users.FindByID(ctx, alice.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.RefreshTokenHash)
	assert.Equal(t, security.HashRefreshToken(rotated.RefreshToken), *stored.RefreshTokenHash)

	_, err = env.sessions.Refresh(ctx, rotated.RefreshToken, model.Actor{})
	require.NoError(t, err)
}

func TestSessionService_RefreshReuseOfOlderTokenRevokesInsideGrace(t *testing.T) {
	env := newTestEnv(t, defaultSessionConfig)
	alice := env.seedUser(t, "alice", "S3cr3t!")
	ctx := context.Background()

	login, err := env.sessions.Login(ctx, "alice", "S3cr3t!", model.Actor{})
	require.NoError(t, err)
	second, err := env.sessions.Refresh(ctx, login.RefreshToken, model.Actor{})
	require.NoError(t, err)
	third, err := env.sessions.Refresh(ctx, second.RefreshToken, model.Actor{})
	require.NoError(t, err)

	// Only the token replaced by the latest rotation gets grace.
	_, err = env.sessions.Refresh(ctx, login.RefreshToken, model.Actor{})
	requireAPIStatus(t, err, http.StatusUnauthorized)

	stored, err := env.repos.Users.FindByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.RefreshTokenHash)

	_, err = env.sessions.Refresh(ctx, third.RefreshToken, model.Actor{})
	requireAPIStatus(t, err, http.StatusUnauthorized)
}

func TestSessionService_SequentialLoginsInvalidateFirstRefreshToken(t *testing.T) {
	env := newTestEnv(t, SessionConfig{})
	env.seedUser(t, "alice", "S3cr3t!")
	ctx := context.Background()

	first, err := env.sessions.Login(ctx, "alice", "S3cr3t!", model.Actor{})
	require.NoError(t, err)
	second, err := env.sessions.Login(ctx, "alice", "S3cr3t!", model.Actor{})
	require.NoError(t, err)

	_, err = env.sessions.Refresh(ctx, first.RefreshToken, model.Actor{})
	requireAPIStatus(t, err, http.StatusUnauthorized)

	_, err = env.sessions.Refresh(ctx, second.RefreshToken, model.Actor{})
	require.NoError(t, err)
}

func TestSessionService_ConcurrentRefreshExactlyOneWins(t *testing.T) {
	for _, cfg := range []SessionConfig{{}, defaultSessionConfig} {
		env := newTestEnv(t, cfg)
		env.seedUser(t, "alice", "S3cr3t!")
		ctx := context.Background()

		login, err := env.sessions.Login(ctx, "alice", "S3cr3t!", model.Actor{})
		require.NoError(t, err)

		const callers = 2
		var (
			wg    sync.WaitGroup
			start = make(chan struct{})
			pairs = make([]model.TokenPair, callers)
			errs  = make([]error, callers)
		)
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				<-start
				pairs[i], errs[i] = env.sessions.Refresh(ctx, login.RefreshToken, model.Actor{})
			}(i)
		}
		close(start)
		wg.Wait()

		var winner *model.TokenPair
		for i, err := range errs {
			if err == nil {
				require.Nil(t, winner, "more than one refresh succeeded")
				winner = &pairs[i]
				continue
			}
			requireAPIStatus(t, err, http.StatusUnauthorized)
		}
		require.NotNil(t, winner)

		// The losing request must not have revoked the winner's session.
		_, err = env.sessions.Refresh(ctx, winner.RefreshToken, model.Actor{})
		require.NoError(t, err)
	}
}

func TestSessionService_RefreshRejectsInvalidTokens(t *testing.T) {
	env := newTestEnv(t, defaultSessionConfig)
	alice := env.seedUser(t, "alice", "S3cr3t!")
	ctx := context.Background()

	login, err := env.sessions.Login(ctx, "alice", "S3cr3t!", model.Actor{})
	require.NoError(t, err)

	cases := map[string]string{
		"empty":             "",
		"garbage":           "not-a-token",
		"access token":      login.AccessToken,
		"unknown user":      issueRefresh(t, "missing-user", "refresh-secret"),
		"foreign signature": issueRefresh(t, alice.ID, "some-other-secret"),
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := env.sessions.Refresh(ctx, token, model.Actor{})
			requireAPIStatus(t, err, http.StatusUnauthorized)
		})
	}

	// None of the rejected tokens disturbed the real session.
	_, err = env.sessions.Refresh(ctx, login.RefreshToken, model.Actor{})
	require.NoError(t, err)
}

func issueRefresh(t *testing.T, subject string, secret string) string {
	t.Helper()

	token, err := security.Issue(model.TokenKindRefresh, subject, []byte(secret), time.Hour)
	require.NoError(t, err)
	return token
}

func TestSessionService_LogoutIsIdempotent(t *testing.T) {
	env := newTestEnv(t, defaultSessionConfig)
	alice := env.seedUser(t, "alice", "S3cr3t!")
	ctx := context.Background()

	login, err := env.sessions.Login(ctx, "alice", "S3cr3t!", model.Actor{})
	require.NoError(t, err)

	require.NoError(t, env.sessions.Logout(ctx, alice.ID, model.Actor{}))
	require.NoError(t, env.sessions.Logout(ctx, alice.ID, model.Actor{}))

	_, err = env.sessions.Refresh(ctx, login.RefreshToken, model.Actor{})
	requireAPIStatus(t, err, http.StatusUnauthorized)

	// Access tokens stay valid until they expire.
	_, err = env.codec.ParseAccess(login.AccessToken)
	require.NoError(t, err)
}

func TestSessionService_ChangePassword(t *testing.T) {
	ctx := context.Background()

	t.Run("wrong old password", func(t *testing.T) {
		env := newTestEnv(t, defaultSessionConfig)
		alice := env.seedUser(t, "alice", "S3cr3t!")

		login, err := env.sessions.Login(ctx, "alice", "S3cr3t!", model.Actor{})
		require.NoError(t, err)

		err = env.sessions.ChangePassword(ctx, alice.ID, "nope", "N3w!", model.Actor{})
		apiErr := requireAPIStatus(t, err, http.StatusUnauthorized)
		assert.Equal(t, apierror.CodeBadCredential, apiErr.Code)
		assert.Equal(t, model.ErrInvalidPassword.Error(), apiErr.Message)

		_, err = env.sessions.Refresh(ctx, login.RefreshToken, model.Actor{})
		require.NoError(t, err)
	})

	t.Run("blank or oversized new password", func(t *testing.T) {
		env := newTestEnv(t, defaultSessionConfig)
		alice := env.seedUser(t, "alice", "S3cr3t!")

		err := env.sessions.ChangePassword(ctx, alice.ID, "S3cr3t!", "   ", model.Actor{})
		requireAPIStatus(t, err, http.StatusBadRequest)

		err = env.sessions.ChangePassword(ctx, alice.ID, "S3cr3t!", string(make([]byte, 73)), model.Actor{})
		requireAPIStatus(t, err, http.StatusBadRequest)
	})

	t.Run("revokes the refresh token when configured", func(t *testing.T) {
		env := newTestEnv(t, defaultSessionConfig)
		alice := env.seedUser(t, "alice", "S3cr3t!")

		login, err := env.sessions.Login(ctx, "alice", "S3cr3t!", model.Actor{})
		require.NoError(t, err)

		require.NoError(t, env.sessions.ChangePassword(ctx, alice.ID, "S3cr3t!", "N3w-S3cr3t!", model.Actor{}))

		_, err = env.sessions.Refresh(ctx, login.RefreshToken, model.Actor{})
		requireAPIStatus(t, err, http.StatusUnauthorized)

		_, err = env.sessions.Login(ctx, "alice", "S3cr3t!", model.Actor{})
		requireAPIStatus(t, err, http.StatusUnauthorized)

		_, err = env.sessions.Login(ctx, "alice", "N3w-S3cr3t!", model.Actor{})
		require.NoError(t, err)
	})

	t.Run("keeps the session when revocation is off", func(t *testing.T) {
		env := newTestEnv(t, SessionConfig{})
		alice := env.seedUser(t, "alice", "S3cr3t!")

		login, err := env.sessions.Login(ctx, "alice", "S3cr3t!", model.Actor{})
		require.NoError(t, err)

		require.NoError(t, env.sessions.ChangePassword(ctx, alice.ID, "S3cr3t!", "N3w-S3cr3t!", model.Actor{}))

		_, err = env.sessions.Refresh(ctx, login.RefreshToken, model.Actor{})
		require.NoError(t, err)
	})

	t.Run("unknown user", func(t *testing.T) {
		env := newTestEnv(t, defaultSessionConfig)
		err := env.sessions.ChangePassword(ctx, "ghost", "a", "b", model.Actor{})
		requireAPIStatus(t, err, http.StatusUnauthorized)
	})
}
