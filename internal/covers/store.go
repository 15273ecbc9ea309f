package covers

import (
	"context"
	"errors"
	"strings"

	"webtoonhub/internal/ingest"
)

// ErrInvalidImage is returned when a cover is neither a data URL nor an
// http(s) link.
var ErrInvalidImage = errors.New("covers: image must be a data url or http(s) url")

// Store turns an accepted cover into the reference persisted on the
// webtoon row.
type Store interface {
	Put(ctx context.Context, key, dataURL string) (string, error)
	Delete(ctx context.Context, ref string) error
}

// Inline keeps covers as data URLs in the database row.
type Inline struct{}

func (Inline) Put(_ context.Context, _ string, dataURL string) (string, error) {
	if _, _, err := ingest.DecodeDataURL(dataURL); err != nil {
		return "", ErrInvalidImage
	}
	return dataURL, nil
}

func (Inline) Delete(context.Context, string) error { return nil }

// Resolve persists image through s when it is a data URL. Remote links are
// kept as they are; an empty image stays empty.
func Resolve(ctx context.Context, s Store, key, image string) (string, error) {
	image = strings.TrimSpace(image)
	switch {
	case image == "":
		return "", nil
	case ingest.IsDataURL(image):
		return s.Put(ctx, key, image)
	case strings.HasPrefix(image, "http://") || strings.HasPrefix(image, "https://"):
		return image, nil
	default:
		return "", ErrInvalidImage
	}
}
