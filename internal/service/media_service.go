package service

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"math"
	"net/http"
	"os"
	"path/filepath"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"go-videotube/internal/storage"
	"go-videotube/internal/util"
	"go-videotube/pkg/apierror"
)

// MediaKind bounds the stored size of an uploaded picture.
type MediaKind struct {
	Name   string
	MaxDim int
}

var (
	AvatarMedia = MediaKind{Name: "avatar", MaxDim: 512}
	CoverMedia  = MediaKind{Name: "coverImage", MaxDim: 2048}
)

// maxSourcePixels caps decoding so a small file cannot expand into a huge
// bitmap.
const maxSourcePixels = 40_000_000

// MediaService validates staged uploads and hands them to the Uploader.
type MediaService struct {
	uploader storage.Uploader
	logger   *slog.Logger
}

func NewMediaService(uploader storage.Uploader, logger *slog.Logger) *MediaService {
	if logger == nil {
		logger = slog.Default()
	}
	return &MediaService{uploader: uploader, logger: logger}
}

// Upload stores the image at tempPath and returns its public URL. tempPath
// and any intermediate file are removed whatever the outcome.
func (s *MediaService) Upload(ctx context.Context, tempPath string, kind MediaKind) (url string, err error) {
	ctx, span := tracer.Start(ctx, "MediaService.Upload")
	defer func() { endSpan(span, err) }()
	defer removeTemp(s.logger, tempPath)

	uploadPath, err := s.prepare(tempPath, kind)
	if err != nil {
		return "", err
	}
	if uploadPath != tempPath {
		defer removeTemp(s.logger, uploadPath)
	}

	url, err = s.uploader.Store(ctx, uploadPath)
	if err != nil {
		s.logger.ErrorContext(ctx, "media upload failed", "kind", kind.Name, "error", err)
		return "", apierror.New("UPLOAD_FAILED", fmt.Sprintf("error while uploading %s", kind.Name), "", http.StatusBadGateway)
	}

	return url, nil
}

// prepare checks the file really is a supported image and returns the path to
// upload: tempPath itself, or a downscaled JPEG next to it when the image is
// larger than kind allows.
func (s *MediaService) prepare(tempPath string, kind MediaKind) (string, error) {
	file, err := os.Open(tempPath)
	if err != nil {
		return "", fmt.Errorf("open staged upload: %w", err)
	}
	defer file.Close()

	mimeType, err := util.DetectMIMEFromFile(file)
	if err != nil {
		return "", fmt.Errorf("detect staged upload type: %w", err)
	}
	if !util.IsDecodableImageMIME(mimeType) {
		return "", unsupportedMedia(kind, mimeType)
	}

	cfg, _, err := image.DecodeConfig(file)
	if err != nil {
		return "", unsupportedMedia(kind, err.Error())
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width*cfg.Height > maxSourcePixels {
		return "", apierror.New("UNSUPPORTED_MEDIA", "invalid image dimensions", fmt.Sprintf("%dx%d", cfg.Width, cfg.Height), http.StatusUnsupportedMediaType)
	}

	if cfg.Width <= kind.MaxDim && cfg.Height <= kind.MaxDim {
		return tempPath, nil
	}

	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", err
	}

	src, _, err := image.Decode(file)
	if err != nil {
		return "", unsupportedMedia(kind, err.Error())
	}

	return scaleToJPEG(src, tempPath+".scaled.jpg", kind.MaxDim)
}

func scaleToJPEG(src image.Image, target string, maxDim int) (string, error) {
	bounds := src.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	scale := float64(maxDim) / float64(max(width, height))
	if scale > 1 {
		scale = 1
	}

	targetWidth := max(int(math.Round(float64(width)*scale)), 1)
	targetHeight := max(int(math.Round(float64(height)*scale)), 1)

	dst := image.NewRGBA(image.Rect(0, 0, targetWidth, targetHeight))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)

	writer, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return "", err
	}

	encodeErr := jpeg.Encode(writer, dst, &jpeg.Options{Quality: 90})
	closeErr := writer.Close()
	if err := errors.Join(encodeErr, closeErr); err != nil {
		_ = os.Remove(target)
		return "", fmt.Errorf("encode scaled image: %w", err)
	}

	return target, nil
}

func unsupportedMedia(kind MediaKind, details string) error {
	return apierror.New("UNSUPPORTED_MEDIA", fmt.Sprintf("%s must be a jpeg, png, gif, webp, bmp or tiff image", kind.Name), details, http.StatusUnsupportedMediaType)
}

func removeTemp(logger *slog.Logger, path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("remove staged upload", "path", filepath.Base(path), "error", err)
	}
}
