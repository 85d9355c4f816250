package util

import (
	"net/http"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"go-videotube/pkg/apierror"
)

var invalidFilenameChars = regexp.MustCompile(`[<>:"/\\|?*]`)

const maxUploadNameRunes = 120

// SanitizeUploadName turns a client supplied multipart filename into a safe
// base name for a temporary file. Directory parts, control characters and
// invisible formatting runes are dropped.
func SanitizeUploadName(name string) (string, error) {
	trimmed := strings.TrimSpace(filepath.Base(strings.ReplaceAll(name, `\`, "/")))
	if trimmed == "" || trimmed == "." || trimmed == "/" {
		return "", apierror.New("INVALID_FILENAME", "filename cannot be empty", "", http.StatusBadRequest)
	}

	builder := strings.Builder{}
	builder.Grow(len(trimmed))

	for _, char := range trimmed {
		if unicode.IsControl(char) || isInvisibleUnicode(char) {
			continue
		}

		builder.WriteRune(char)
	}

	cleaned := strings.TrimSpace(invalidFilenameChars.ReplaceAllString(builder.String(), "_"))
	cleaned = strings.TrimLeft(cleaned, ".")
	if cleaned == "" {
		return "", apierror.New("INVALID_FILENAME", "filename is invalid after sanitization", trimmed, http.StatusBadRequest)
	}

	// Truncate by runes, keeping the extension when there is one.
	runes := []rune(cleaned)
	if len(runes) > maxUploadNameRunes {
		ext := []rune(filepath.Ext(cleaned))
		if len(ext) >= maxUploadNameRunes {
			ext = nil
		}
		runes = append(runes[:maxUploadNameRunes-len(ext)], ext...)
	}

	return string(runes), nil
}

// isInvisibleUnicode reports zero-width and other format characters.
func isInvisibleUnicode(r rune) bool {
	switch r {
	case '\u200B', '\u200C', '\u200D', '\u200E', '\u200F', '\u2060', '\uFEFF':
		return true
	}

	return unicode.Is(unicode.Cf, r)
}
