package ingest

import (
	"errors"
	"fmt"
	"mime"
	"strings"

	"github.com/vincent-petithory/dataurl"
)

var ErrNotDataURL = errors.New("ingest: not a data url")

const fallbackMediaType = "application/octet-stream"

// EncodeDataURL renders data as data:<type>;base64,<payload>. Parameters
// on mediaType are dropped; an unparsable type falls back to octet-stream.
func EncodeDataURL(mediaType string, data []byte) string {
	typ, _, err := mime.ParseMediaType(mediaType)
	if err != nil || strings.Count(typ, "/") != 1 {
		typ = fallbackMediaType
	}
	return dataurl.New(data, typ).String()
}

// IsDataURL reports whether s uses the data: scheme.
func IsDataURL(s string) bool {
	return len(s) >= 5 && strings.EqualFold(s[:5], "data:")
}

// DecodeDataURL accepts base64 and percent-encoded payloads and returns
// the lowercased media type without parameters.
func DecodeDataURL(s string) (string, []byte, error) {
	if !IsDataURL(s) {
		return "", nil, ErrNotDataURL
	}
	// the scheme is case-insensitive but the decoder expects "data:"
	du, err := dataurl.DecodeString("data:" + s[5:])
	if err != nil {
		return "", nil, fmt.Errorf("decode data url: %w", err)
	}
	return strings.ToLower(du.ContentType()), du.Data, nil
}
