package handler

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"

	"go-videotube/internal/util"
	"go-videotube/pkg/apierror"
)

const maxFormValueBytes = 4 << 10

// multipartForm holds the text fields and staged file paths of an upload
// request. Staged files belong to the caller until handed to a service.
type multipartForm struct {
	values map[string]string
	files  map[string]string
}

func (f *multipartForm) discard() {
	for name, path := range f.files {
		_ = os.Remove(path)
		delete(f.files, name)
	}
}

// take hands ownership of a staged file to the caller.
func (f *multipartForm) take(name string) string {
	path := f.files[name]
	delete(f.files, name)
	return path
}

// readMultipart streams the request, copying wanted file parts into tempDir.
// Parts with other names are skipped without being buffered.
func readMultipart(w http.ResponseWriter, r *http.Request, maxBytes int64, tempDir string, fileFields ...string) (*multipartForm, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	reader, err := r.MultipartReader()
	if err != nil {
		return nil, apierror.New(apierror.CodeValidation, "invalid multipart body", "", http.StatusBadRequest)
	}

	form := &multipartForm{values: map[string]string{}, files: map[string]string{}}
	wanted := map[string]bool{}
	for _, field := range fileFields {
		wanted[field] = true
	}

	for {
		part, nextErr := reader.NextPart()
		if nextErr == io.EOF {
			break
		}
		if nextErr != nil {
			form.discard()
			return nil, multipartError(nextErr)
		}

		name := part.FormName()
		switch {
		case part.FileName() == "":
			value, readErr := io.ReadAll(io.LimitReader(part, maxFormValueBytes))
			if readErr != nil {
				_ = part.Close()
				form.discard()
				return nil, multipartError(readErr)
			}
			form.values[name] = string(value)
		case wanted[name] && form.files[name] == "":
			path, stageErr := stagePart(part, tempDir)
			if stageErr != nil {
				_ = part.Close()
				form.discard()
				return nil, stageErr
			}
			form.files[name] = path
		}
		_ = part.Close()
	}

	return form, nil
}

func stagePart(part *multipart.Part, tempDir string) (string, error) {
	name, err := util.SanitizeUploadName(part.FileName())
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return "", fmt.Errorf("prepare upload directory: %w", err)
	}

	file, err := os.CreateTemp(tempDir, "upload-*-"+name)
	if err != nil {
		return "", fmt.Errorf("stage upload: %w", err)
	}

	if _, err := io.Copy(file, part); err != nil {
		_ = file.Close()
		_ = os.Remove(file.Name())
		return "", multipartError(err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(file.Name())
		return "", fmt.Errorf("stage upload: %w", err)
	}

	return file.Name(), nil
}

func multipartError(err error) error {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return apierror.New("PAYLOAD_TOO_LARGE", "request body exceeds MAX_UPLOAD_SIZE", "", http.StatusRequestEntityTooLarge)
	}
	return apierror.New(apierror.CodeValidation, "invalid multipart stream", err.Error(), http.StatusBadRequest)
}
