package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go-videotube/internal/model"
)

const userColumns = `id, username, email, full_name, password_hash, refresh_token_hash,
	previous_refresh_token_hash, refresh_rotated_at, avatar_url, cover_image_url, created_at, updated_at`

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func scanUser(row *sql.Row) (model.User, error) {
	var (
		u         model.User
		refresh   sql.NullString
		previous  sql.NullString
		rotatedAt sql.NullInt64
		createdAt int64
		updatedAt int64
	)
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.FullName, &u.PasswordHash, &refresh,
		&previous, &rotatedAt, &u.AvatarURL, &u.CoverImageURL, &createdAt, &updatedAt)
	if err != nil {
		return model.User{}, err
	}

	if refresh.Valid {
		u.RefreshTokenHash = &refresh.String
	}
	if previous.Valid {
		u.PreviousRefreshTokenHash = &previous.String
	}
	if rotatedAt.Valid {
		at := fromMillis(rotatedAt.Int64)
		u.RefreshRotatedAt = &at
	}
	u.CreatedAt = fromMillis(createdAt)
	u.UpdatedAt = fromMillis(updatedAt)
	return u, nil
}

func (r *UserRepository) findOne(ctx context.Context, op string, query string, args ...any) (model.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, model.ErrUserNotFound
	}
	if isUniqueViolation(err) {
		return model.User{}, model.ErrUserAlreadyExists
	}
	if err != nil {
		return model.User{}, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (model.User, error) {
	return r.findOne(ctx, "find user by id",
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (model.User, error) {
	return r.findOne(ctx, "find user by username",
		`SELECT `+userColumns+` FROM users WHERE username = ?`, strings.TrimSpace(username))
}

func (r *UserRepository) FindByUsernameOrEmail(ctx context.Context, identifier string) (model.User, error) {
	identifier = strings.TrimSpace(identifier)
	return r.findOne(ctx, "find user by username or email",
		`SELECT `+userColumns+` FROM users WHERE username = ? OR email = ? LIMIT 1`, identifier, identifier)
}

func (r *UserRepository) ExistsByUsernameOrEmail(ctx context.Context, username string, email string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE username = ? OR email = ?)`,
		strings.TrimSpace(username), strings.TrimSpace(email)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check user exists: %w", err)
	}
	return exists, nil
}

func (r *UserRepository) Create(ctx context.Context, u model.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, username, email, full_name, password_hash, avatar_url, cover_image_url, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Username, u.Email, u.FullName, u.PasswordHash, u.AvatarURL, u.CoverImageURL,
		toMillis(u.CreatedAt), toMillis(u.UpdatedAt))
	if isUniqueViolation(err) {
		return model.ErrUserAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *UserRepository) UpdateDetails(ctx context.Context, id string, fullName string, email string) (model.User, error) {
	return r.findOne(ctx, "update user details",
		`UPDATE users SET full_name = ?, email = ?, updated_at = ? WHERE id = ? RETURNING `+userColumns,
		fullName, email, toMillis(time.Now()), id)
}

func (r *UserRepository) UpdateAvatar(ctx context.Context, id string, url string) (model.User, error) {
	return r.findOne(ctx, "update avatar",
		`UPDATE users SET avatar_url = ?, updated_at = ? WHERE id = ? RETURNING `+userColumns,
		url, toMillis(time.Now()), id)
}

func (r *UserRepository) UpdateCoverImage(ctx context.Context, id string, url string) (model.User, error) {
	return r.findOne(ctx, "update cover image",
		`UPDATE users SET cover_image_url = ?, updated_at = ? WHERE id = ? RETURNING `+userColumns,
		url, toMillis(time.Now()), id)
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id string, passwordHash string, revokeSessions bool) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users
		 SET password_hash = ?1,
		     refresh_token_hash = CASE WHEN ?2 THEN NULL ELSE refresh_token_hash END,
		     previous_refresh_token_hash = CASE WHEN ?2 THEN NULL ELSE previous_refresh_token_hash END,
		     refresh_rotated_at = CASE WHEN ?2 THEN NULL ELSE refresh_rotated_at END,
		     updated_at = ?3
		 WHERE id = ?4`,
		passwordHash, revokeSessions, toMillis(time.Now()), id)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return requireAffected(result, model.ErrUserNotFound)
}

func (r *UserRepository) SetRefreshTokenHash(ctx context.Context, id string, hash string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users
		 SET refresh_token_hash = ?, previous_refresh_token_hash = NULL, refresh_rotated_at = NULL, updated_at = ?
		 WHERE id = ?`,
		hash, toMillis(time.Now()), id)
	if err != nil {
		return fmt.Errorf("set refresh token: %w", err)
	}
	return requireAffected(result, model.ErrUserNotFound)
}

func (r *UserRepository) SwapRefreshTokenHash(ctx context.Context, id string, current string, next string) (bool, error) {
	now := toMillis(time.Now())
	result, err := r.db.ExecContext(ctx,
		`UPDATE users
		 SET refresh_token_hash = ?, previous_refresh_token_hash = refresh_token_hash, refresh_rotated_at = ?, updated_at = ?
		 WHERE id = ? AND refresh_token_hash = ?`,
		next, now, now, id, current)
	if err != nil {
		return false, fmt.Errorf("rotate refresh token: %w", err)
	}
	return affectedOne(result, "rotate refresh token")
}

func (r *UserRepository) RevokeRefreshTokenHash(ctx context.Context, id string, current string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users
		 SET refresh_token_hash = NULL, previous_refresh_token_hash = NULL, refresh_rotated_at = NULL, updated_at = ?
		 WHERE id = ? AND refresh_token_hash = ?`,
		toMillis(time.Now()), id, current)
	if err != nil {
		return false, fmt.Errorf("revoke refresh token: %w", err)
	}
	return affectedOne(result, "revoke refresh token")
}

func (r *UserRepository) ClearRefreshTokenHash(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users
		 SET refresh_token_hash = NULL, previous_refresh_token_hash = NULL, refresh_rotated_at = NULL, updated_at = ?
		 WHERE id = ?`,
		toMillis(time.Now()), id)
	if err != nil {
		return fmt.Errorf("clear refresh token: %w", err)
	}
	return nil
}

func requireAffected(result sql.Result, notFound error) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return notFound
	}
	return nil
}

func affectedOne(result sql.Result, op string) (bool, error) {
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return affected == 1, nil
}
