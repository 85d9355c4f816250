package service

import (
	"context"

	"go-videotube/internal/model"
)

// UserStore is implemented by repository.UserRepository (Postgres) and
// sqlitestore.UserRepository.
type UserStore interface {
	FindByID(ctx context.Context, id string) (model.User, error)
	FindByUsername(ctx context.Context, username string) (model.User, error)
	FindByUsernameOrEmail(ctx context.Context, identifier string) (model.User, error)
	ExistsByUsernameOrEmail(ctx context.Context, username string, email string) (bool, error)
	Create(ctx context.Context, u model.User) error
	UpdateDetails(ctx context.Context, id string, fullName string, email string) (model.User, error)
	UpdateAvatar(ctx context.Context, id string, url string) (model.User, error)
	UpdateCoverImage(ctx context.Context, id string, url string) (model.User, error)
	UpdatePassword(ctx context.Context, id string, passwordHash string, revokeSessions bool) error
	SetRefreshTokenHash(ctx context.Context, id string, hash string) error
	// SwapRefreshTokenHash replaces current with next only when current is
	// still the stored value, and reports whether it did.
	// The replaced hash is kept as the previous one with the rotation time.
	SwapRefreshTokenHash(ctx context.Context, id string, current string, next string) (bool, error)
	// RevokeRefreshTokenHash ends the session only while current is still
	// the stored value.
	RevokeRefreshTokenHash(ctx context.Context, id string, current string) (bool, error)
	ClearRefreshTokenHash(ctx context.Context, id string) error
}

type SubscriptionStore interface {
	CountSubscribers(ctx context.Context, channelID string) (int, error)
	CountSubscribedTo(ctx context.Context, subscriberID string) (int, error)
	IsSubscribed(ctx context.Context, subscriberID string, channelID string) (bool, error)
	Subscribe(ctx context.Context, subscriberID string, channelID string) error
	Unsubscribe(ctx context.Context, subscriberID string, channelID string) error
}

type AuditStore interface {
	Log(ctx context.Context, entry model.AuditEntry) error
	Query(ctx context.Context, query model.AuditQuery) ([]model.AuditEntry, error)
}
