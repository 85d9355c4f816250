package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"go-videotube/internal/event"
	"go-videotube/internal/model"
	"go-videotube/internal/security"
	"go-videotube/pkg/apierror"
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_.-]{0,49}$`)

// AccountService owns registration, profile updates and channel reads.
type AccountService struct {
	users  UserStore
	subs   SubscriptionStore
	hasher *security.PasswordHasher
	media  *MediaService
	bus    event.Bus
	logger *slog.Logger
}

func NewAccountService(
	users UserStore,
	subs SubscriptionStore,
	hasher *security.PasswordHasher,
	media *MediaService,
	bus event.Bus,
	logger *slog.Logger,
) *AccountService {
	if logger == nil {
		logger = slog.Default()
	}

	return &AccountService{
		users:  users,
		subs:   subs,
		hasher: hasher,
		media:  media,
		bus:    bus,
		logger: logger,
	}
}

func (s *AccountService) Register(ctx context.Context, input model.RegisterInput) (created model.PublicUser, err error) {
	ctx, span := tracer.Start(ctx, "AccountService.Register")
	defer func() { endSpan(span, err) }()
	defer removeTemp(s.logger, input.AvatarPath)
	defer removeTemp(s.logger, input.CoverImagePath)

	username := strings.ToLower(strings.TrimSpace(input.Username))
	email := strings.ToLower(strings.TrimSpace(input.Email))
	fullName := strings.TrimSpace(input.FullName)

	if err := validateRegistration(username, email, fullName, input.Password); err != nil {
		return model.PublicUser{}, err
	}

	exists, err := s.users.ExistsByUsernameOrEmail(ctx, username, email)
	if err != nil {
		return model.PublicUser{}, err
	}
	if exists {
		return model.PublicUser{}, apierror.Conflict("user with email or username already exists")
	}

	if strings.TrimSpace(input.AvatarPath) == "" {
		return model.PublicUser{}, apierror.Validation("avatar file is required", "avatar: required")
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return model.PublicUser{}, err
	}

	avatarURL, err := s.media.Upload(ctx, input.AvatarPath, AvatarMedia)
	if err != nil {
		return model.PublicUser{}, err
	}

	coverURL := ""
	if strings.TrimSpace(input.CoverImagePath) != "" {
		coverURL, err = s.media.Upload(ctx, input.CoverImagePath, CoverMedia)
		if err != nil {
			return model.PublicUser{}, err
		}
	}

	now := time.Now().UTC()
	user := model.User{
		ID:            uuid.NewString(),
		Username:      username,
		Email:         email,
		FullName:      fullName,
		PasswordHash:  hash,
		AvatarURL:     avatarURL,
		CoverImageURL: coverURL,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, model.ErrUserAlreadyExists) {
			return model.PublicUser{}, apierror.Conflict("user with email or username already exists")
		}
		return model.PublicUser{}, err
	}

	span.SetAttributes(attribute.String("user.id", user.ID))
	if s.bus != nil {
		s.bus.Publish(event.New(event.TypeUserRegistered, user.ID, event.SessionPayload{UserID: user.ID, Status: "success"}))
	}

	return user.Public(), nil
}

func validateRegistration(username string, email string, fullName string, password string) error {
	fields := make([]string, 0, 4)
	if username == "" {
		fields = append(fields, "username: required")
	} else if !usernamePattern.MatchString(username) {
		fields = append(fields, "username: letters, digits, '.', '_' or '-' only")
	}
	if email == "" {
		fields = append(fields, "email: required")
	} else if !validEmail(email) {
		fields = append(fields, "email: invalid address")
	}
	if fullName == "" {
		fields = append(fields, "fullName: required")
	}
	if strings.TrimSpace(password) == "" {
		fields = append(fields, "password: required")
	} else if len(password) > security.MaxPasswordBytes {
		fields = append(fields, fmt.Sprintf("password: at most %d bytes", security.MaxPasswordBytes))
	}

	if len(fields) > 0 {
		return apierror.Validation("all fields are required", fields...)
	}
	return nil
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

func (s *AccountService) GetCurrentUser(ctx context.Context, userID string) (model.PublicUser, error) {
	user, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, model.ErrUserNotFound) {
		return model.PublicUser{}, apierror.NotFound("user not found", userID)
	}
	if err != nil {
		return model.PublicUser{}, err
	}
	return user.Public(), nil
}

func (s *AccountService) UpdateAccountDetails(ctx context.Context, userID string, req model.UpdateAccountRequest) (updated model.PublicUser, err error) {
	ctx, span := tracer.Start(ctx, "AccountService.UpdateAccountDetails")
	defer func() { endSpan(span, err) }()

	fullName := strings.TrimSpace(req.FullName)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if fullName == "" || email == "" {
		return model.PublicUser{}, apierror.Validation("all fields are required", "fullName: required", "email: required")
	}
	if !validEmail(email) {
		return model.PublicUser{}, apierror.Validation("invalid email address", "email: invalid address")
	}

	user, err := s.users.UpdateDetails(ctx, userID, fullName, email)
	switch {
	case errors.Is(err, model.ErrUserAlreadyExists):
		return model.PublicUser{}, apierror.Conflict("email is already in use")
	case errors.Is(err, model.ErrUserNotFound):
		return model.PublicUser{}, apierror.NotFound("user not found", userID)
	case err != nil:
		return model.PublicUser{}, err
	}

	return user.Public(), nil
}

func (s *AccountService) UpdateAvatar(ctx context.Context, userID string, tempPath string) (model.PublicUser, error) {
	return s.updateMedia(ctx, userID, tempPath, AvatarMedia, s.users.UpdateAvatar)
}

func (s *AccountService) UpdateCoverImage(ctx context.Context, userID string, tempPath string) (model.PublicUser, error) {
	return s.updateMedia(ctx, userID, tempPath, CoverMedia, s.users.UpdateCoverImage)
}

func (s *AccountService) updateMedia(
	ctx context.Context,
	userID string,
	tempPath string,
	kind MediaKind,
	save func(ctx context.Context, id string, url string) (model.User, error),
) (model.PublicUser, error) {
	if strings.TrimSpace(tempPath) == "" {
		return model.PublicUser{}, apierror.Validation(fmt.Sprintf("%s file is missing", kind.Name), kind.Name+": required")
	}

	url, err := s.media.Upload(ctx, tempPath, kind)
	if err != nil {
		return model.PublicUser{}, err
	}

	user, err := save(ctx, userID, url)
	if errors.Is(err, model.ErrUserNotFound) {
		return model.PublicUser{}, apierror.NotFound("user not found", userID)
	}
	if err != nil {
		return model.PublicUser{}, err
	}

	return user.Public(), nil
}

// GetChannelProfile composes a channel view from three explicit queries.
// viewerID may be empty, in which case IsSubscribed is false.
func (s *AccountService) GetChannelProfile(ctx context.Context, username string, viewerID string) (profile model.ChannelProfile, err error) {
	ctx, span := tracer.Start(ctx, "AccountService.GetChannelProfile")
	defer func() { endSpan(span, err) }()

	channel, err := s.findChannel(ctx, username)
	if err != nil {
		return model.ChannelProfile{}, err
	}

	subscribers, err := s.subs.CountSubscribers(ctx, channel.ID)
	if err != nil {
		return model.ChannelProfile{}, err
	}

	subscribedTo, err := s.subs.CountSubscribedTo(ctx, channel.ID)
	if err != nil {
		return model.ChannelProfile{}, err
	}

	isSubscribed := false
	if viewerID != "" {
		isSubscribed, err = s.subs.IsSubscribed(ctx, viewerID, channel.ID)
		if err != nil {
			return model.ChannelProfile{}, err
		}
	}

	return model.ChannelProfile{
		ID:                        channel.ID,
		Username:                  channel.Username,
		FullName:                  channel.FullName,
		Email:                     channel.Email,
		AvatarURL:                 channel.AvatarURL,
		CoverImageURL:             channel.CoverImageURL,
		SubscribersCount:          subscribers,
		ChannelsSubscribedToCount: subscribedTo,
		IsSubscribed:              isSubscribed,
	}, nil
}

func (s *AccountService) Subscribe(ctx context.Context, viewerID string, username string) (model.ChannelProfile, error) {
	channel, err := s.findChannel(ctx, username)
	if err != nil {
		return model.ChannelProfile{}, err
	}
	if channel.ID == viewerID {
		return model.ChannelProfile{}, apierror.Validation("cannot subscribe to your own channel")
	}

	if err := s.subs.Subscribe(ctx, viewerID, channel.ID); err != nil {
		return model.ChannelProfile{}, err
	}

	return s.GetChannelProfile(ctx, channel.Username, viewerID)
}

func (s *AccountService) Unsubscribe(ctx context.Context, viewerID string, username string) (model.ChannelProfile, error) {
	channel, err := s.findChannel(ctx, username)
	if err != nil {
		return model.ChannelProfile{}, err
	}

	if err := s.subs.Unsubscribe(ctx, viewerID, channel.ID); err != nil {
		return model.ChannelProfile{}, err
	}

	return s.GetChannelProfile(ctx, channel.Username, viewerID)
}

func (s *AccountService) findChannel(ctx context.Context, username string) (model.User, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return model.User{}, apierror.Validation("username is missing", "username: required")
	}

	channel, err := s.users.FindByUsername(ctx, username)
	if errors.Is(err, model.ErrUserNotFound) {
		return model.User{}, apierror.NotFound(model.ErrChannelNotFound.Error(), username)
	}
	if err != nil {
		return model.User{}, err
	}
	return channel, nil
}
