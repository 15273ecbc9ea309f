package ingest

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01")

type stubFetcher struct {
	mu     sync.Mutex
	remote *Remote
	err    error
	calls  []string
}

func (s *stubFetcher) Fetch(_ context.Context, rawURL string) (*Remote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, rawURL)
	if s.err != nil {
		return nil, s.err
	}
	return s.remote, nil
}

type uploads struct {
	mu    sync.Mutex
	calls [][]Candidate
}

func (u *uploads) record(cs []Candidate) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.calls = append(u.calls, cs)
}

func (u *uploads) count() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.calls)
}

func newTestEngine(t *testing.T, f Fetcher) (*Engine, *uploads) {
	t.Helper()
	up := &uploads{}
	e := New(Config{
		Accept:   ParseAccept("image/svg+xml,image/png,image/jpeg,image/jpg,image/gif,image/webp"),
		OnUpload: up.record,
		Fetcher:  f,
	})
	return e, up
}

func kindsOf(out Outcome) []Kind {
	ks := make([]Kind, 0, len(out.Failures))
	for _, f := range out.Failures {
		ks = append(ks, f.Kind)
	}
	return ks
}

func TestUnsupportedTypeStoresNothing(t *testing.T) {
	e, up := newTestEngine(t, &stubFetcher{})

	for _, f := range []File{
		NewFile("notes.txt", "text/plain", []byte("hello")),
		NewFile("clip.mp4", "video/mp4", []byte{0, 1, 2}),
		NewFile("blank", "", []byte{1}),
	} {
		out := e.SubmitFiles(context.Background(), []File{f})
		require.Nil(t, out.Accepted)
		assert.Equal(t, []Kind{UnsupportedType}, kindsOf(out))
	}

	assert.Nil(t, e.Current())
	assert.Zero(t, up.count())
	assert.Equal(t, []string{"File type not supported. Please use SVG, PNG, JPEG, JPG, GIF, or WebP"}, e.Errors())
}

func TestOversizedPayloadNamesLimit(t *testing.T) {
	tests := []struct {
		max  int64
		want string
	}{
		{DefaultMaxSize, "File size must be less than 0.1MB"},
		{1536 * 1024, "File size must be less than 1.5MB"},
		{2 * 1024 * 1024, "File size must be less than 2.0MB"},
	}
	for _, tc := range tests {
		up := &uploads{}
		e := New(Config{Accept: []string{"image/png"}, MaxSize: tc.max, OnUpload: up.record, Fetcher: &stubFetcher{}})

		data := make([]byte, tc.max+1)
		out := e.SubmitFiles(context.Background(), []File{NewFile("big.png", "image/png", data)})

		require.Nil(t, out.Accepted)
		require.Len(t, out.Failures, 1)
		assert.Equal(t, OversizedPayload, out.Failures[0].Kind)
		assert.Equal(t, tc.want, out.Failures[0].Message)
		assert.Nil(t, e.Current())
		assert.Zero(t, up.count())
	}
}

func TestUnderstatedSizeIsCaughtOnRead(t *testing.T) {
	e := New(Config{Accept: []string{"image/png"}, MaxSize: 8, Fetcher: &stubFetcher{}})

	f := OpenFile(Descriptor{Name: "liar.png", Type: "image/png", Size: 4}, func() (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(strings.Repeat("x", 64))), nil
	})
	out := e.SubmitFiles(context.Background(), []File{f})

	assert.Nil(t, out.Accepted)
	assert.Equal(t, []Kind{OversizedPayload}, kindsOf(out))
}

func TestValidFileAcceptedOnce(t *testing.T) {
	e, up := newTestEngine(t, &stubFetcher{})

	out := e.SubmitFiles(context.Background(), []File{NewFile("a.png", "image/png", pngBytes)})

	require.NotNil(t, out.Accepted)
	assert.Equal(t, "selection", out.Via)
	assert.Empty(t, out.Failures)
	assert.True(t, strings.HasPrefix(out.Accepted.DataURL, "data:image/png;base64,"))

	require.Equal(t, 1, up.count())
	require.Len(t, up.calls[0], 1)
	assert.Equal(t, out.Accepted.ID, up.calls[0][0].ID)

	cur := e.Current()
	require.NotNil(t, cur)
	assert.Equal(t, "a.png", cur.Source.Name)
	assert.Equal(t, int64(len(pngBytes)), cur.Source.Size)

	typ, data, err := DecodeDataURL(cur.DataURL)
	require.NoError(t, err)
	assert.Equal(t, "image/png", typ)
	assert.Equal(t, pngBytes, data)
}

func TestSecondUploadReplacesFirst(t *testing.T) {
	e, up := newTestEngine(t, &stubFetcher{})
	ctx := context.Background()

	first := e.SubmitFiles(ctx, []File{NewFile("a.png", "image/png", []byte("first"))})
	second := e.SubmitFiles(ctx, []File{NewFile("b.png", "image/png", []byte("second"))})

	require.NotNil(t, first.Accepted)
	require.NotNil(t, second.Accepted)
	assert.NotEqual(t, first.Accepted.ID, second.Accepted.ID)

	cur := e.Current()
	require.NotNil(t, cur)
	assert.Equal(t, "b.png", cur.Source.Name)
	assert.Equal(t, EncodeDataURL("image/png", []byte("second")), cur.DataURL)
	assert.Equal(t, 2, up.count())

	// the old id no longer addresses anything
	assert.False(t, e.Remove(first.Accepted.ID))
	assert.NotNil(t, e.Current())
}

func TestOnlyFirstValidFileIsKept(t *testing.T) {
	e, up := newTestEngine(t, &stubFetcher{})

	out := e.SubmitFiles(context.Background(), []File{
		NewFile("doc.pdf", "application/pdf", []byte("%PDF")),
		NewFile("one.png", "image/png", []byte("one")),
		NewFile("two.gif", "image/gif", []byte("two")),
		NewFile("huge.png", "image/png", make([]byte, DefaultMaxSize+1)),
	})

	require.NotNil(t, out.Accepted)
	assert.Equal(t, "one.png", out.Accepted.Source.Name)
	assert.Equal(t, []Kind{UnsupportedType, OversizedPayload}, kindsOf(out))
	assert.Len(t, e.Errors(), 2)
	assert.Equal(t, 1, up.count())
}

func TestDecodeFailure(t *testing.T) {
	e, up := newTestEngine(t, &stubFetcher{})

	broken := OpenFile(Descriptor{Name: "x.png", Type: "image/png", Size: 3}, func() (io.ReadCloser, error) {
		return nil, errors.New("disk gone")
	})
	out := e.SubmitFiles(context.Background(), []File{broken})

	require.Len(t, out.Failures, 1)
	assert.Equal(t, DecodeFailure, out.Failures[0].Kind)
	assert.Equal(t, "Failed to process x.png", out.Failures[0].Message)
	assert.ErrorContains(t, out.Failures[0], "Failed to process")
	assert.Nil(t, e.Current())
	assert.Zero(t, up.count())
}

func TestFailureKeepsPreviousCandidate(t *testing.T) {
	e, up := newTestEngine(t, &stubFetcher{})
	ctx := context.Background()

	ok := e.SubmitFiles(ctx, []File{NewFile("a.png", "image/png", pngBytes)})
	require.NotNil(t, ok.Accepted)

	bad := e.SubmitFiles(ctx, []File{NewFile("a.txt", "text/plain", []byte("x"))})
	require.Nil(t, bad.Accepted)

	cur := e.Current()
	require.NotNil(t, cur)
	assert.Equal(t, ok.Accepted.ID, cur.ID)
	assert.Len(t, e.Errors(), 1)
	assert.Equal(t, 1, up.count())

	// a later success clears the errors
	e.SubmitFiles(ctx, []File{NewFile("b.png", "image/png", pngBytes)})
	assert.Empty(t, e.Errors())
}

func TestURIListNonImageContentType(t *testing.T) {
	f := &stubFetcher{remote: &Remote{ContentType: "text/html", Body: []byte("<html></html>")}}
	e, up := newTestEngine(t, f)

	out := e.SubmitDrop(context.Background(), Drop{URIList: "https://example.com/cover.jpg"})

	assert.Equal(t, "uri-list", out.Via)
	assert.Equal(t, []string{"https://example.com/cover.jpg"}, f.calls)
	require.Nil(t, out.Accepted)
	assert.Equal(t, []Kind{NotAnImage}, kindsOf(out))
	assert.Equal(t, []string{"Invalid file type. Please use an image file."}, e.Errors())
	assert.Nil(t, e.Current())
	assert.Zero(t, up.count())
}

func TestURIListImageAccepted(t *testing.T) {
	f := &stubFetcher{remote: &Remote{ContentType: "image/jpeg", Body: []byte("jpeg")}}
	e, up := newTestEngine(t, f)

	out := e.SubmitDrop(context.Background(), Drop{
		URIList: "# dragged from a browser\r\nhttps://example.com/covers/tog.jpg?w=300\r\n",
	})

	require.NotNil(t, out.Accepted)
	assert.Equal(t, "tog.jpg", out.Accepted.Source.Name)
	assert.Equal(t, "image/jpeg", out.Accepted.Source.Type)
	assert.True(t, strings.HasPrefix(out.Accepted.DataURL, "data:image/jpeg;base64,"))
	assert.Equal(t, 1, up.count())
}

func TestRemoteFailures(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"unreachable", ErrUnreachable, "Could not load image: the remote host refused the request. Try downloading the image first."},
		{"status", &StatusError{Code: 404}, "Failed to load image from URL. Try downloading the image first."},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e, up := newTestEngine(t, &stubFetcher{err: tc.err})
			out := e.SubmitDrop(context.Background(), Drop{URL: "https://example.com/a.png"})

			require.Len(t, out.Failures, 1)
			assert.Equal(t, RemoteFetchFailure, out.Failures[0].Kind)
			assert.Equal(t, tc.want, out.Failures[0].Message)
			assert.ErrorIs(t, out.Failures[0], tc.err)
			assert.Zero(t, up.count())
		})
	}
}

func TestHTMLDropUsesFirstImage(t *testing.T) {
	f := &stubFetcher{remote: &Remote{ContentType: "image/webp", Body: []byte("webp")}}
	e, _ := newTestEngine(t, f)

	out := e.SubmitDrop(context.Background(), Drop{
		HTML: `<meta charset="utf-8"><a href="/x"><img src="https://cdn.example.com/one.webp"><img src="https://cdn.example.com/two.webp"></a>`,
	})

	assert.Equal(t, "html", out.Via)
	assert.Equal(t, []string{"https://cdn.example.com/one.webp"}, f.calls)
	require.NotNil(t, out.Accepted)
	assert.Equal(t, "one.webp", out.Accepted.Source.Name)
}

func TestPlainTextDrop(t *testing.T) {
	t.Run("image-like url", func(t *testing.T) {
		f := &stubFetcher{remote: &Remote{ContentType: "image/png", Body: pngBytes}}
		e, _ := newTestEngine(t, f)

		out := e.SubmitDrop(context.Background(), Drop{Text: "https://example.com/photos/42"})
		assert.Equal(t, "text", out.Via)
		require.NotNil(t, out.Accepted)
		assert.Equal(t, "42", out.Accepted.Source.Name)
	})

	t.Run("not image-like", func(t *testing.T) {
		f := &stubFetcher{}
		e, up := newTestEngine(t, f)

		out := e.SubmitDrop(context.Background(), Drop{Text: "https://example.com/about"})
		assert.Empty(t, f.calls)
		assert.Equal(t, []Kind{NotAnImage}, kindsOf(out))
		assert.Equal(t, []string{"URL does not appear to be an image. Please use a direct image link."}, e.Errors())
		assert.Zero(t, up.count())
	})
}

func TestAmbiguousDropLeavesCandidate(t *testing.T) {
	f := &stubFetcher{}
	e, up := newTestEngine(t, f)
	ctx := context.Background()

	prev := e.SubmitFiles(ctx, []File{NewFile("a.png", "image/png", pngBytes)})
	require.NotNil(t, prev.Accepted)

	for _, d := range []Drop{{Text: "hello world"}, {}, {HTML: "<p>no image here</p>"}} {
		out := e.SubmitDrop(ctx, d)
		assert.Equal(t, "unrecognized", out.Via)
		assert.Equal(t, []Kind{AmbiguousDrop}, kindsOf(out))
		assert.Equal(t, []string{"Nothing to upload. Drop an image file or a direct image link."}, e.Errors())

		cur := e.Current()
		require.NotNil(t, cur)
		assert.Equal(t, prev.Accepted.ID, cur.ID)
	}
	assert.Empty(t, f.calls)
	assert.Equal(t, 1, up.count())
}

func TestDroppedFiles(t *testing.T) {
	e, up := newTestEngine(t, &stubFetcher{})

	out := e.SubmitDrop(context.Background(), Drop{
		Text:  "hello world",
		Files: []File{NewFile("cover.gif", "image/gif", []byte("GIF89a"))},
	})

	assert.Equal(t, "files", out.Via)
	require.NotNil(t, out.Accepted)
	assert.Equal(t, "cover.gif", out.Accepted.Source.Name)
	assert.Equal(t, 1, up.count())
}

func TestRemoveClearsState(t *testing.T) {
	e, _ := newTestEngine(t, &stubFetcher{})
	ctx := context.Background()

	e.SubmitFiles(ctx, []File{NewFile("bad.txt", "text/plain", []byte("x"))})
	out := e.SubmitFiles(ctx, []File{NewFile("a.png", "image/png", pngBytes), NewFile("bad.txt", "text/plain", nil)})
	require.NotNil(t, out.Accepted)
	require.NotEmpty(t, e.Errors())

	assert.True(t, e.Remove(out.Accepted.ID))

	s := e.Snapshot()
	assert.Nil(t, s.Candidate)
	assert.Empty(t, s.Errors)
	assert.Nil(t, e.Current())
}

func TestDragState(t *testing.T) {
	e, _ := newTestEngine(t, &stubFetcher{})

	assert.False(t, e.Dragging())
	e.DragEnter()
	assert.True(t, e.Dragging())
	e.DragLeave()
	assert.False(t, e.Dragging())

	e.DragEnter()
	e.SubmitDrop(context.Background(), Drop{Text: "hello world"})
	assert.False(t, e.Dragging(), "a drop ends the hover")
}

func TestCancelledContextStillResolves(t *testing.T) {
	f := &stubFetcher{remote: &Remote{ContentType: "image/png", Body: pngBytes}}
	e, _ := newTestEngine(t, f)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := e.SubmitDrop(ctx, Drop{URL: "https://example.com/a.png"})
	assert.NotNil(t, out.Accepted)
}

func TestConcurrentSubmissionsKeepOneCandidate(t *testing.T) {
	e, up := newTestEngine(t, &stubFetcher{})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.SubmitFiles(context.Background(), []File{NewFile("a.png", "image/png", pngBytes)})
		}()
	}
	wg.Wait()

	assert.Equal(t, 16, up.count())
	cur := e.Current()
	require.NotNil(t, cur)
	found := false
	for _, call := range up.calls {
		if call[0].ID == cur.ID {
			found = true
		}
	}
	assert.True(t, found, "retained candidate is one of the accepted ones")
}
