package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go-videotube/internal/util"
)

// LocalStore copies uploads under a root directory that the router serves
// at baseURL.
type LocalStore struct {
	validator *PathValidator
	baseURL   string
	now       func() time.Time
}

func NewLocalStore(root string, baseURL string) (*LocalStore, error) {
	validator, err := NewPathValidator(root)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(validator.RootAbs(), 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}

	return &LocalStore{validator: validator, baseURL: baseURL, now: time.Now}, nil
}

func (s *LocalStore) Root() string {
	return s.validator.RootAbs()
}

func (s *LocalStore) Store(ctx context.Context, localPath string) (string, error) {
	src, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	mimeType, err := util.DetectMIMEFromFile(src)
	if err != nil {
		return "", fmt.Errorf("detect upload type: %w", err)
	}

	ext := util.ExtensionForMIME(mimeType)
	if ext == "" {
		ext = filepath.Ext(localPath)
	}

	key := ObjectKey(s.now(), ext)
	target, err := s.validator.ResolveKey(key)
	if err != nil {
		return "", err
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("create media directory: %w", err)
	}

	dst, err := os.Create(target)
	if err != nil {
		return "", fmt.Errorf("create media file: %w", err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		_ = os.Remove(target)
		return "", fmt.Errorf("copy media file: %w", err)
	}

	if err := dst.Close(); err != nil {
		_ = os.Remove(target)
		return "", fmt.Errorf("close media file: %w", err)
	}

	return joinURL(s.baseURL, key), nil
}

// Paths exposes the validator so the media route resolves keys the same way
// Store wrote them.
func (s *LocalStore) Paths() *PathValidator {
	return s.validator
}
