package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDetectMIMEFromFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "pixel.gif")
	require.NoError(t, os.WriteFile(path, []byte("GIF89a\x01\x00\x01\x00"), 0o600))

	file, err := os.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = file.Close() })

	mimeType, err := DetectMIMEFromFile(file)
	require.NoError(t, err)
	require.Equal(t, "image/gif", mimeType)

	offset, err := file.Seek(0, 1)
	require.NoError(t, err)
	require.Zero(t, offset)
}

func TestDetectMIMEFromFile_Empty(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "empty")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	file, err := os.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = file.Close() })

	mimeType, err := DetectMIMEFromFile(file)
	require.NoError(t, err)
	require.Equal(t, "text/plain; charset=utf-8", mimeType)
}

func TestImageMIMEHelpers(t *testing.T) {
	t.Parallel()

	require.True(t, IsImageMIME(" IMAGE/PNG "))
	require.False(t, IsImageMIME("application/pdf"))

	require.True(t, IsDecodableImageMIME("image/webp"))
	require.True(t, IsDecodableImageMIME("image/jpeg; charset=binary"))
	require.False(t, IsDecodableImageMIME("image/svg+xml"))

	require.Equal(t, ".jpg", ExtensionForMIME("image/jpeg"))
	require.Equal(t, ".png", ExtensionForMIME("image/png"))
	require.Equal(t, "", ExtensionForMIME("text/plain"))
}
