package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"
)

// ErrUnreachable marks transport failures (refused, DNS, TLS, timeout),
// as opposed to a server that answered with an error status.
var ErrUnreachable = errors.New("ingest: remote unreachable")

// ErrBodyTooLarge is returned when a remote body exceeds the fetcher limit.
var ErrBodyTooLarge = errors.New("ingest: remote body too large")

// Remote is a fetched payload.
type Remote struct {
	ContentType string
	Body        []byte
}

// Fetcher resolves a remote image reference.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*Remote, error)
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("remote status %d", e.Code)
}

// HTTPFetcher is a plain GET with default redirect handling and no
// custom headers. Bodies longer than Limit bytes fail with ErrBodyTooLarge;
// zero means unlimited.
type HTTPFetcher struct {
	Client *http.Client
	Limit  int64
}

func NewHTTPFetcher(timeout time.Duration, limit int64) *HTTPFetcher {
	return &HTTPFetcher{
		Client: &http.Client{Timeout: timeout},
		Limit:  limit,
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (*Remote, error) {
	if IsDataURL(rawURL) {
		typ, data, err := DecodeDataURL(rawURL)
		if err != nil {
			return nil, fmt.Errorf("inline image: %w", err)
		}
		return &Remote{ContentType: typ, Body: data}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{Code: resp.StatusCode}
	}

	var body io.Reader = resp.Body
	if f.Limit > 0 {
		body = io.LimitReader(resp.Body, f.Limit+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if f.Limit > 0 && int64(len(data)) > f.Limit {
		return nil, fmt.Errorf("%w: over %d bytes", ErrBodyTooLarge, f.Limit)
	}

	return &Remote{ContentType: mediaType(resp.Header.Get("Content-Type")), Body: data}, nil
}

func mediaType(header string) string {
	if header == "" {
		return ""
	}
	typ, _, err := mime.ParseMediaType(header)
	if err != nil {
		typ, _, _ = strings.Cut(header, ";")
	}
	return strings.ToLower(strings.TrimSpace(typ))
}
