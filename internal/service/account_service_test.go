package service

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"go-videotube/internal/model"
)

func TestAccountService_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("creates a sanitized user with uploaded media", func(t *testing.T) {
		env := newTestEnv(t, defaultSessionConfig)
		avatar := writePNG(t, 16, 16)
		cover := writePNG(t, 16, 16)

		env.uploader.On("Store", mock.Anything, avatar).Return("http://cdn/avatar.png", nil).Once()
		env.uploader.On("Store", mock.Anything, cover).Return("http://cdn/cover.png", nil).Once()

		user, err := env.accounts.Register(ctx, model.RegisterInput{
			Username:       " Alice ",
			Email:          "Alice@X.com",
			FullName:       " Alice Liddell ",
			Password:       "S3cr3t!",
			AvatarPath:     avatar,
			CoverImagePath: cover,
		})
		require.NoError(t, err)

		assert.Equal(t, "alice", user.Username)
		assert.Equal(t, "alice@x.com", user.Email)
		assert.Equal(t, "Alice Liddell", user.FullName)
		assert.Equal(t, "http://cdn/avatar.png", user.AvatarURL)
		assert.Equal(t, "http://cdn/cover.png", user.CoverImageURL)
		requireRemoved(t, avatar)
		requireRemoved(t, cover)

		stored, err := env.repos.Users.FindByID(ctx, user.ID)
		require.NoError(t, err)
		assert.NotEqual(t, "S3cr3t!", stored.PasswordHash)
		assert.True(t, env.hasher.Verify("S3cr3t!", stored.PasswordHash))
		assert.Nil(t, stored.RefreshTokenHash)
		env.uploader.AssertExpectations(t)
	})

	t.Run("duplicate username or email is a conflict and creates nothing", func(t *testing.T) {
		env := newTestEnv(t, defaultSessionConfig)
		alice := env.seedUser(t, "alice", "S3cr3t!")

		for _, input := range []model.RegisterInput{
			{Username: "ALICE", Email: "new@x.com", FullName: "A", Password: "pw"},
			{Username: "someone", Email: alice.Email, FullName: "A", Password: "pw"},
		} {
			input.AvatarPath = writePNG(t, 8, 8)
			_, err := env.accounts.Register(ctx, input)
			requireAPIStatus(t, err, http.StatusConflict)
			requireRemoved(t, input.AvatarPath)
		}

		exists, err := env.repos.Users.ExistsByUsernameOrEmail(ctx, "someone", "new@x.com")
		require.NoError(t, err)
		assert.False(t, exists)
		env.uploader.AssertNotCalled(t, "Store", mock.Anything, mock.Anything)
	})

	t.Run("validation", func(t *testing.T) {
		env := newTestEnv(t, defaultSessionConfig)
		valid := model.RegisterInput{Username: "bob", Email: "bob@x.com", FullName: "Bob", Password: "pw"}

		cases := map[string]func(in *model.RegisterInput){
			"blank username":  func(in *model.RegisterInput) { in.Username = "  " },
			"bad username":    func(in *model.RegisterInput) { in.Username = "bob smith" },
			"blank email":     func(in *model.RegisterInput) { in.Email = "" },
			"bad email":       func(in *model.RegisterInput) { in.Email = "bob-at-x" },
			"blank full name": func(in *model.RegisterInput) { in.FullName = "\t" },
			"blank password":  func(in *model.RegisterInput) { in.Password = "   " },
			"long password":   func(in *model.RegisterInput) { in.Password = string(make([]byte, 80)) },
			"missing avatar":  func(in *model.RegisterInput) { in.AvatarPath = "" },
		}
		for name, mutate := range cases {
			t.Run(name, func(t *testing.T) {
				input := valid
				input.AvatarPath = writePNG(t, 8, 8)
				staged := input.AvatarPath
				mutate(&input)

				_, err := env.accounts.Register(ctx, input)
				requireAPIStatus(t, err, http.StatusBadRequest)
				if input.AvatarPath != "" {
					requireRemoved(t, staged)
				}
			})
		}
		env.uploader.AssertNotCalled(t, "Store", mock.Anything, mock.Anything)
	})
}

func TestAccountService_UpdateAccountDetails(t *testing.T) {
	env := newTestEnv(t, defaultSessionConfig)
	alice := env.seedUser(t, "alice", "S3cr3t!")
	bob := env.seedUser(t, "bob", "S3cr3t!")
	ctx := context.Background()

	updated, err := env.accounts.UpdateAccountDetails(ctx, alice.ID, model.UpdateAccountRequest{FullName: "Alice L", Email: "ALICE@new.com"})
	require.NoError(t, err)
	assert.Equal(t, "Alice L", updated.FullName)
	assert.Equal(t, "alice@new.com", updated.Email)

	_, err = env.accounts.UpdateAccountDetails(ctx, alice.ID, model.UpdateAccountRequest{FullName: "", Email: "a@x.com"})
	requireAPIStatus(t, err, http.StatusBadRequest)

	_, err = env.accounts.UpdateAccountDetails(ctx, alice.ID, model.UpdateAccountRequest{FullName: "A", Email: bob.Email})
	requireAPIStatus(t, err, http.StatusConflict)
}

func TestAccountService_UpdateAvatar(t *testing.T) {
	env := newTestEnv(t, defaultSessionConfig)
	alice := env.seedUser(t, "alice", "S3cr3t!")
	ctx := context.Background()
	path := writePNG(t, 16, 16)

	env.uploader.On("Store", mock.Anything, path).Return("http://cdn/new-avatar.png", nil).Once()

	updated, err := env.accounts.UpdateAvatar(ctx, alice.ID, path)
	require.NoError(t, err)
	assert.Equal(t, "http://cdn/new-avatar.png", updated.AvatarURL)
	requireRemoved(t, path)

	_, err = env.accounts.UpdateCoverImage(ctx, alice.ID, "")
	requireAPIStatus(t, err, http.StatusBadRequest)
}

func TestAccountService_ChannelProfile(t *testing.T) {
	env := newTestEnv(t, defaultSessionConfig)
	alice := env.seedUser(t, "alice", "S3cr3t!")
	bob := env.seedUser(t, "bob", "S3cr3t!")
	carol := env.seedUser(t, "carol", "S3cr3t!")
	ctx := context.Background()

	profile, err := env.accounts.Subscribe(ctx, bob.ID, "ALICE")
	require.NoError(t, err)
	assert.Equal(t, 1, profile.SubscribersCount)
	assert.True(t, profile.IsSubscribed)

	_, err = env.accounts.Subscribe(ctx, bob.ID, "alice")
	require.NoError(t, err)
	_, err = env.accounts.Subscribe(ctx, carol.ID, "alice")
	require.NoError(t, err)
	_, err = env.accounts.Subscribe(ctx, alice.ID, "carol")
	require.NoError(t, err)

	profile, err = env.accounts.GetChannelProfile(ctx, "alice", carol.ID)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, profile.ID)
	assert.Equal(t, 2, profile.SubscribersCount)
	assert.Equal(t, 1, profile.ChannelsSubscribedToCount)
	assert.True(t, profile.IsSubscribed)

	profile, err = env.accounts.GetChannelProfile(ctx, "alice", "")
	require.NoError(t, err)
	assert.False(t, profile.IsSubscribed)

	profile, err = env.accounts.Unsubscribe(ctx, bob.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, profile.SubscribersCount)
	assert.False(t, profile.IsSubscribed)

	_, err = env.accounts.Subscribe(ctx, alice.ID, "alice")
	requireAPIStatus(t, err, http.StatusBadRequest)

	_, err = env.accounts.GetChannelProfile(ctx, "nobody", alice.ID)
	apiErr := requireAPIStatus(t, err, http.StatusNotFound)
	assert.Equal(t, model.ErrChannelNotFound.Error(), apiErr.Message)

	_, err = env.accounts.GetChannelProfile(ctx, "  ", alice.ID)
	requireAPIStatus(t, err, http.StatusBadRequest)
}
