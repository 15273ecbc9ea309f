package ingest

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/cover.png":
			w.Header().Set("Content-Type", "Image/PNG; charset=binary")
			_, _ = w.Write(pngBytes)
		case "/moved.png":
			http.Redirect(w, r, "/cover.png", http.StatusFound)
		case "/big":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write([]byte(strings.Repeat("x", 100)))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := &HTTPFetcher{Client: srv.Client(), Limit: 16}
	ctx := context.Background()

	r, err := f.Fetch(ctx, srv.URL+"/cover.png")
	require.NoError(t, err)
	assert.Equal(t, "image/png", r.ContentType)
	assert.Equal(t, pngBytes, r.Body)

	r, err = f.Fetch(ctx, srv.URL+"/moved.png")
	require.NoError(t, err)
	assert.Equal(t, pngBytes, r.Body)

	_, err = f.Fetch(ctx, srv.URL+"/big")
	assert.ErrorIs(t, err, ErrBodyTooLarge)

	exact := &HTTPFetcher{Client: srv.Client(), Limit: 100}
	r, err = exact.Fetch(ctx, srv.URL+"/big")
	require.NoError(t, err)
	assert.Len(t, r.Body, 100)

	_, err = f.Fetch(ctx, srv.URL+"/missing")
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.Code)
	assert.NotErrorIs(t, err, ErrUnreachable)
}

func TestHTTPFetcherUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	f := NewHTTPFetcher(2*time.Second, 0)
	_, err := f.Fetch(context.Background(), addr+"/cover.png")
	assert.ErrorIs(t, err, ErrUnreachable)
}

func TestHTTPFetcherDataURL(t *testing.T) {
	f := NewHTTPFetcher(time.Second, 0)

	r, err := f.Fetch(context.Background(), EncodeDataURL("image/gif", []byte("GIF89a")))
	require.NoError(t, err)
	assert.Equal(t, "image/gif", r.ContentType)
	assert.Equal(t, []byte("GIF89a"), r.Body)

	r, err = f.Fetch(context.Background(), "data:image/svg+xml,%3Csvg%2F%3E")
	require.NoError(t, err)
	assert.Equal(t, "image/svg+xml", r.ContentType)
	assert.Equal(t, "<svg/>", string(r.Body))

	_, err = f.Fetch(context.Background(), "data:image/gif;base64,!!!")
	assert.Error(t, err)
}

func TestEngineWithHTTPFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/page" {
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<html></html>"))
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(pngBytes)
	}))
	defer srv.Close()

	e := New(Config{
		Accept:  []string{"image/png"},
		Fetcher: &HTTPFetcher{Client: srv.Client(), Limit: DefaultMaxSize},
	})
	ctx := context.Background()

	out := e.SubmitDrop(ctx, Drop{URIList: srv.URL + "/page"})
	assert.Equal(t, []Kind{NotAnImage}, kindsOf(out))

	out = e.SubmitDrop(ctx, Drop{URIList: srv.URL + "/art/cover.png"})
	require.NotNil(t, out.Accepted)
	assert.Equal(t, "cover.png", out.Accepted.Source.Name)
	assert.Empty(t, e.Errors())

	// inline images from dragged HTML never hit the network
	out = e.SubmitDrop(ctx, Drop{HTML: `<img src="` + EncodeDataURL("image/png", pngBytes) + `">`})
	require.NotNil(t, out.Accepted)
	assert.Equal(t, "image", out.Accepted.Source.Name)
}

func TestEngineRejectsOversizedRemoteBody(t *testing.T) {
	big := append(append([]byte{}, pngBytes...), make([]byte, 2048)...)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(big)
	}))
	defer srv.Close()

	e := New(Config{
		Accept:  []string{"image/png"},
		MaxSize: 1024,
		Fetcher: &HTTPFetcher{Client: srv.Client(), Limit: 1024},
	})

	out := e.SubmitDrop(context.Background(), Drop{URIList: srv.URL + "/cover.png"})
	assert.Nil(t, out.Accepted)
	assert.Equal(t, []Kind{OversizedPayload}, kindsOf(out))
	assert.Nil(t, e.Current())
}

func TestEngineDefaultFetcherUsesDefaultLimit(t *testing.T) {
	body := append(append([]byte{}, pngBytes...), make([]byte, 2048)...)
	e := New(Config{Accept: []string{"image/png"}, MaxSize: 0})

	f, ok := e.cfg.Fetcher.(*HTTPFetcher)
	require.True(t, ok)
	assert.Equal(t, int64(DefaultMaxSize), f.Limit)
	assert.Equal(t, int64(DefaultMaxSize), e.cfg.MaxSize)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(body)
	}))
	defer srv.Close()
	f.Client = srv.Client()

	out := e.SubmitDrop(context.Background(), Drop{URIList: srv.URL + "/cover.png"})
	require.NotNil(t, out.Accepted)
	assert.Equal(t, int64(len(body)), out.Accepted.Source.Size)
}

func TestEnginePercentEncodedSVGDrop(t *testing.T) {
	e := New(Config{Accept: ParseAccept("image/svg+xml,image/png"), Fetcher: NewHTTPFetcher(time.Second, DefaultMaxSize)})

	out := e.SubmitDrop(context.Background(), Drop{
		HTML: `<p><img src="data:image/svg+xml,%3Csvg%20xmlns%3D%22http%3A%2F%2Fwww.w3.org%2F2000%2Fsvg%22%2F%3E"></p>`,
	})
	require.NotNil(t, out.Accepted, "failures: %v", out.Failures)
	assert.Equal(t, "html", out.Via)
	assert.Equal(t, "image/svg+xml", out.Accepted.Source.Type)

	typ, data, err := DecodeDataURL(out.Accepted.DataURL)
	require.NoError(t, err)
	assert.Equal(t, "image/svg+xml", typ)
	assert.Equal(t, `<svg xmlns="http://www.w3.org/2000/svg"/>`, string(data))
}
