// Package storage holds the media upload backends. Handlers stage multipart
// files on local disk and an Uploader moves them to their public location.
package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Uploader stores a local file and returns the URL it can be fetched from.
type Uploader interface {
	Store(ctx context.Context, localPath string) (string, error)
}

// ObjectKey builds a date-partitioned random key, keeping ext when given.
func ObjectKey(now time.Time, ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	return fmt.Sprintf("media/%d/%02d/%02d/%s%s", now.Year(), now.Month(), now.Day(), uuid.NewString(), ext)
}

func joinURL(base string, key string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(filepath.ToSlash(key), "/")
}
