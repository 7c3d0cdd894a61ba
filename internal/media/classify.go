package media

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"

	"lifelog/internal/models"
)

// ErrUnsupportedContentType is returned for content types or categories the
// pipeline cannot interpret.
var ErrUnsupportedContentType = errors.New("unsupported content type")

var categoryBySubtype = map[string]models.MediaCategory{
	"txt":   models.CategoryText,
	"json":  models.CategoryText,
	"csv":   models.CategoryText,
	"md":    models.CategoryText,
	"plain": models.CategoryText,

	"jpg":  models.CategoryImage,
	"jpeg": models.CategoryImage,
	"png":  models.CategoryImage,
	"gif":  models.CategoryImage,

	"mp3":  models.CategoryAudio,
	"wav":  models.CategoryAudio,
	"flac": models.CategoryAudio,
	"ogg":  models.CategoryAudio,
	"webm": models.CategoryAudio,
	"mpeg": models.CategoryAudio,
}

// Classify maps a MIME content type to a media category by its subtype.
// Parameters such as charset are ignored. Video has no mapping.
func Classify(contentType string) (models.MediaCategory, error) {
	mediaType, _, err := mime.ParseMediaType(strings.TrimSpace(contentType))
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedContentType, contentType)
	}
	_, subtype, ok := strings.Cut(strings.ToLower(mediaType), "/")
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedContentType, contentType)
	}
	category, ok := categoryBySubtype[subtype]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedContentType, contentType)
	}
	return category, nil
}

// ToBase64 reads r fully and returns it as a data URL.
func ToBase64(contentType string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read payload: %w", err)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}
