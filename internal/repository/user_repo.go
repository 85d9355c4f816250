package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"go-videotube/internal/model"
)

const userColumns = `id, username, email, full_name, password_hash, refresh_token_hash,
		        previous_refresh_token_hash, refresh_rotated_at,
		        avatar_url, cover_image_url, created_at, updated_at`

const pgUniqueViolation = "23505"

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func scanUser(row pgx.Row) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.FullName, &u.PasswordHash, &u.RefreshTokenHash,
		&u.PreviousRefreshTokenHash, &u.RefreshRotatedAt,
		&u.AvatarURL, &u.CoverImageURL, &u.CreatedAt, &u.UpdatedAt)
	if u.RefreshRotatedAt != nil {
		rotatedAt := u.RefreshRotatedAt.UTC()
		u.RefreshRotatedAt = &rotatedAt
	}
	return u, err
}

// parseUserID keeps lookups on the uuid primary key index. A subject that is
// not a uuid cannot name a user.
func parseUserID(id string) (uuid.UUID, error) {
	parsed, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return uuid.Nil, model.ErrUserNotFound
	}
	return parsed, nil
}

func (r *UserRepository) findOne(ctx context.Context, op string, query string, args ...any) (model.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, model.ErrUserNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (model.User, error) {
	uid, err := parseUserID(id)
	if err != nil {
		return model.User{}, err
	}
	return r.findOne(ctx, "find user by id",
		`SELECT `+userColumns+` FROM users WHERE id = $1`, uid)
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (model.User, error) {
	return r.findOne(ctx, "find user by username",
		`SELECT `+userColumns+` FROM users WHERE lower(username) = lower($1)`, strings.TrimSpace(username))
}

func (r *UserRepository) FindByUsernameOrEmail(ctx context.Context, identifier string) (model.User, error) {
	return r.findOne(ctx, "find user by username or email",
		`SELECT `+userColumns+` FROM users
		 WHERE lower(username) = lower($1) OR lower(email) = lower($1)
		 LIMIT 1`, strings.TrimSpace(identifier))
}

func (r *UserRepository) ExistsByUsernameOrEmail(ctx context.Context, username string, email string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE lower(username) = lower($1) OR lower(email) = lower($2))`,
		strings.TrimSpace(username), strings.TrimSpace(email)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check user exists: %w", err)
	}
	return exists, nil
}

func (r *UserRepository) Create(ctx context.Context, u model.User) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO users (id, username, email, full_name, password_hash, avatar_url, cover_image_url, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		u.ID, u.Username, u.Email, u.FullName, u.PasswordHash, u.AvatarURL, u.CoverImageURL, u.CreatedAt, u.UpdatedAt)
	if isUniqueViolation(err) {
		return model.ErrUserAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *UserRepository) UpdateDetails(ctx context.Context, id string, fullName string, email string) (model.User, error) {
	uid, err := parseUserID(id)
	if err != nil {
		return model.User{}, err
	}

	u, err := scanUser(r.pool.QueryRow(ctx,
		`UPDATE users SET full_name = $2, email = $3, updated_at = $4
		 WHERE id = $1
		 RETURNING `+userColumns,
		uid, fullName, email, time.Now().UTC()))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, model.ErrUserNotFound
	}
	if isUniqueViolation(err) {
		return model.User{}, model.ErrUserAlreadyExists
	}
	if err != nil {
		return model.User{}, fmt.Errorf("update user details: %w", err)
	}
	return u, nil
}

func (r *UserRepository) UpdateAvatar(ctx context.Context, id string, url string) (model.User, error) {
	uid, err := parseUserID(id)
	if err != nil {
		return model.User{}, err
	}
	return r.findOne(ctx, "update avatar",
		`UPDATE users SET avatar_url = $2, updated_at = $3 WHERE id = $1 RETURNING `+userColumns,
		uid, url, time.Now().UTC())
}

func (r *UserRepository) UpdateCoverImage(ctx context.Context, id string, url string) (model.User, error) {
	uid, err := parseUserID(id)
	if err != nil {
		return model.User{}, err
	}
	return r.findOne(ctx, "update cover image",
		`UPDATE users SET cover_image_url = $2, updated_at = $3 WHERE id = $1 RETURNING `+userColumns,
		uid, url, time.Now().UTC())
}

// UpdatePassword stores a new hash and, when revokeSessions is set, drops the
// refresh token in the same statement.
func (r *UserRepository) UpdatePassword(ctx context.Context, id string, passwordHash string, revokeSessions bool) error {
	uid, err := parseUserID(id)
	if err != nil {
		return err
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE users
		 SET password_hash = $2,
		     refresh_token_hash = CASE WHEN $3 THEN NULL ELSE refresh_token_hash END,
		     previous_refresh_token_hash = CASE WHEN $3 THEN NULL ELSE previous_refresh_token_hash END,
		     refresh_rotated_at = CASE WHEN $3 THEN NULL ELSE refresh_rotated_at END,
		     updated_at = $4
		 WHERE id = $1`,
		uid, passwordHash, revokeSessions, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrUserNotFound
	}
	return nil
}

// SetRefreshTokenHash starts a new session and forgets any earlier rotation.
func (r *UserRepository) SetRefreshTokenHash(ctx context.Context, id string, hash string) error {
	uid, err := parseUserID(id)
	if err != nil {
		return err
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE users
		 SET refresh_token_hash = $2, previous_refresh_token_hash = NULL, refresh_rotated_at = NULL, updated_at = $3
		 WHERE id = $1`,
		uid, hash, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set refresh token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrUserNotFound
	}
	return nil
}

// SwapRefreshTokenHash replaces the stored hash only while it still equals
// current, remembering current as the previous hash. It reports false when
// another writer got there first.
func (r *UserRepository) SwapRefreshTokenHash(ctx context.Context, id string, current string, next string) (bool, error) {
	uid, err := parseUserID(id)
	if err != nil {
		return false, nil
	}

	now := time.Now().UTC()
	tag, err := r.pool.Exec(ctx,
		`UPDATE users
		 SET refresh_token_hash = $3, previous_refresh_token_hash = $2, refresh_rotated_at = $4, updated_at = $4
		 WHERE id = $1 AND refresh_token_hash = $2`,
		uid, current, next, now)
	if err != nil {
		return false, fmt.Errorf("rotate refresh token: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// RevokeRefreshTokenHash ends the session only while current is still the
// stored hash, so a rotation committed in between survives.
func (r *UserRepository) RevokeRefreshTokenHash(ctx context.Context, id string, current string) (bool, error) {
	uid, err := parseUserID(id)
	if err != nil {
		return false, nil
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE users
		 SET refresh_token_hash = NULL, previous_refresh_token_hash = NULL, refresh_rotated_at = NULL, updated_at = $3
		 WHERE id = $1 AND refresh_token_hash = $2`,
		uid, current, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("revoke refresh token: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *UserRepository) ClearRefreshTokenHash(ctx context.Context, id string) error {
	uid, err := parseUserID(id)
	if err != nil {
		return nil
	}

	_, err = r.pool.Exec(ctx,
		`UPDATE users
		 SET refresh_token_hash = NULL, previous_refresh_token_hash = NULL, refresh_rotated_at = NULL, updated_at = $2
		 WHERE id = $1`,
		uid, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("clear refresh token: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
