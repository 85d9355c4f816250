package service

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"go-videotube/internal/database"
	"go-videotube/internal/event"
	"go-videotube/internal/model"
	"go-videotube/internal/repository/sqlitestore"
	"go-videotube/internal/security"
	"go-videotube/internal/storage"
	"go-videotube/pkg/apierror"
)

type testEnv struct {
	repos    sqlitestore.Repositories
	hasher   *security.PasswordHasher
	codec    *security.TokenCodec
	bus      *event.InMemoryBus
	uploader *storage.MockUploader
	sessions *SessionService
	accounts *AccountService
}

func newTestEnv(t *testing.T, cfg SessionConfig) *testEnv {
	t.Helper()

	db, err := database.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "videotube.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	hasher, err := security.NewPasswordHasher(bcrypt.MinCost)
	require.NoError(t, err)

	codec, err := security.NewTokenCodec(security.TokenCodecConfig{
		AccessSecret:  "access-secret",
		AccessTTL:     15 * time.Minute,
		RefreshSecret: "refresh-secret",
		RefreshTTL:    24 * time.Hour,
	})
	require.NoError(t, err)

	repos := sqlitestore.New(db)
	bus := event.NewBus(nil)
	uploader := new(storage.MockUploader)
	media := NewMediaService(uploader, nil)

	return &testEnv{
		repos:    repos,
		hasher:   hasher,
		codec:    codec,
		bus:      bus,
		uploader: uploader,
		sessions: NewSessionService(repos.Users, NewCredentialVerifier(repos.Users, hasher, nil), hasher, codec, bus, cfg, nil),
		accounts: NewAccountService(repos.Users, repos.Subscriptions, hasher, media, bus, nil),
	}
}

// advanceClock moves the session service's clock forward by d.
func (e *testEnv) advanceClock(d time.Duration) {
	now := e.sessions.now
	e.sessions.now = func() time.Time { return now().Add(d) }
}

// seedUser inserts a user directly, bypassing registration uploads.
func (e *testEnv) seedUser(t *testing.T, username string, password string) model.User {
	t.Helper()

	hash, err := e.hasher.Hash(password)
	require.NoError(t, err)

	now := time.Now().UTC()
	user := model.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        username + "@x.com",
		FullName:     "User " + username,
		PasswordHash: hash,
		AvatarURL:    "http://cdn/" + username + ".png",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, e.repos.Users.Create(context.Background(), user))
	return user
}

func writePNG(t *testing.T, width int, height int) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}

	path := filepath.Join(t.TempDir(), "upload.png")
	file, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(file, img))
	require.NoError(t, file.Close())
	return path
}

func writeFile(t *testing.T, name string, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func requireAPIStatus(t *testing.T, err error, status int) *apierror.APIError {
	t.Helper()

	var apiErr *apierror.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, status, apiErr.HTTPStatus, apiErr.Error())
	return apiErr
}

func requireRemoved(t *testing.T, path string) {
	t.Helper()

	_, err := os.Stat(path)
	require.ErrorIs(t, err, os.ErrNotExist)
}
