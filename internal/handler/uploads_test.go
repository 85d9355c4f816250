package handler

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-videotube/pkg/apierror"
)

func multipartRequest(t *testing.T, fields map[string]string, files map[string][]byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for name, value := range fields {
		require.NoError(t, writer.WriteField(name, value))
	}
	for name, content := range files {
		part, err := writer.CreateFormFile(name, "../../"+name+".png")
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestReadMultipartStagesWantedFiles(t *testing.T) {
	tempDir := t.TempDir()
	req := multipartRequest(t,
		map[string]string{"username": "alice"},
		map[string][]byte{"avatar": []byte("avatar-bytes"), "other": []byte("ignored")},
	)

	form, err := readMultipart(httptest.NewRecorder(), req, 1<<20, tempDir, "avatar")
	require.NoError(t, err)

	assert.Equal(t, "alice", form.values["username"])
	avatar := form.take("avatar")
	require.NotEmpty(t, avatar)
	assert.Equal(t, tempDir, filepath.Dir(avatar))
	assert.True(t, strings.HasSuffix(avatar, "avatar.png"))

	content, err := os.ReadFile(avatar)
	require.NoError(t, err)
	assert.Equal(t, "avatar-bytes", string(content))

	entries, err := os.ReadDir(tempDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	// taken files are no longer discarded with the form
	form.discard()
	_, err = os.Stat(avatar)
	assert.NoError(t, err)
}

func TestReadMultipartDiscard(t *testing.T) {
	tempDir := t.TempDir()
	req := multipartRequest(t, nil, map[string][]byte{"avatar": []byte("a"), "coverImage": []byte("c")})

	form, err := readMultipart(httptest.NewRecorder(), req, 1<<20, tempDir, "avatar", "coverImage")
	require.NoError(t, err)
	require.Len(t, form.files, 2)

	form.discard()

	entries, err := os.ReadDir(tempDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestReadMultipartTooLarge(t *testing.T) {
	tempDir := t.TempDir()
	req := multipartRequest(t, nil, map[string][]byte{"avatar": bytes.Repeat([]byte("x"), 64<<10)})

	_, err := readMultipart(httptest.NewRecorder(), req, 1<<10, tempDir, "avatar")
	require.Error(t, err)

	var apiErr *apierror.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusRequestEntityTooLarge, apiErr.HTTPStatus)

	entries, err := os.ReadDir(tempDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestReadMultipartRejectsNonMultipart(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader(`{"a":1}`))
	req.Header.Set("Content-Type", "application/json")

	_, err := readMultipart(httptest.NewRecorder(), req, 1<<20, t.TempDir(), "avatar")

	var apiErr *apierror.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.HTTPStatus)
}
