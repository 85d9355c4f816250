package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-videotube/internal/model"
)

func TestAuditService_RecordsSessionEvents(t *testing.T) {
	env := newTestEnv(t, defaultSessionConfig)
	alice := env.seedUser(t, "alice", "S3cr3t!")
	audit := NewAuditService(env.repos.Audit, nil)
	stop := audit.Start(env.bus)
	ctx := context.Background()

	actor := model.Actor{IP: "10.0.0.7"}
	_, err := env.sessions.Login(ctx, "alice", "wrong", actor)
	require.Error(t, err)

	login, err := env.sessions.Login(ctx, "alice", "S3cr3t!", actor)
	require.NoError(t, err)

	_, err = env.sessions.Refresh(ctx, login.RefreshToken, actor)
	require.NoError(t, err)
	_, err = env.sessions.Refresh(ctx, login.RefreshToken, actor)
	require.Error(t, err)
	env.advanceClock(time.Minute)
	_, err = env.sessions.Refresh(ctx, login.RefreshToken, actor)
	require.Error(t, err)

	require.NoError(t, env.sessions.Logout(ctx, alice.ID, actor))

	stop()

	entries, err := audit.Query(ctx, alice.ID, "", 0)
	require.NoError(t, err)

	actions := make([]string, 0, len(entries))
	for _, entry := range entries {
		actions = append(actions, entry.Action)
		assert.Equal(t, "10.0.0.7", entry.Actor.IP)
	}
	assert.ElementsMatch(t, []string{
		"login.failure",
		"login.success",
		"token.refreshed",
		"token.refreshed",
		"refresh.reuse_detected",
		"logout",
	}, actions)

	failures, err := audit.Query(ctx, alice.ID, "login.failure", 10)
	require.NoError(t, err)
	require.Len(t, failures, 1)
	assert.Equal(t, "failure", failures[0].Status)
	assert.Contains(t, failures[0].Detail, "password mismatch")

	reuse, err := audit.Query(ctx, alice.ID, "refresh.reuse_detected", 10)
	require.NoError(t, err)
	require.Len(t, reuse, 1)
	assert.Contains(t, reuse[0].Detail, "session revoked")
}
