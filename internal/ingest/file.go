package ingest

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Descriptor describes a payload without holding it.
type Descriptor struct {
	Name string `json:"name"`
	Type string `json:"type"` // declared media type, may be empty
	Size int64  `json:"size"`
}

// File is a payload the engine may read exactly once during decoding.
type File struct {
	Descriptor
	open func() (io.ReadCloser, error)
}

// Candidate is the single accepted upload an engine retains.
type Candidate struct {
	ID      string     `json:"id"`
	Source  Descriptor `json:"source"`
	DataURL string     `json:"data_url"`
}

// NewFile wraps an in-memory payload.
func NewFile(name, mediaType string, data []byte) File {
	return File{
		Descriptor: Descriptor{Name: name, Type: mediaType, Size: int64(len(data))},
		open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// OpenFile wraps a payload that is opened lazily.
func OpenFile(d Descriptor, open func() (io.ReadCloser, error)) File {
	return File{Descriptor: d, open: open}
}

// FromMultipart adapts an uploaded form file. Browsers leave the part type
// empty or generic for unknown extensions; in that case the type is sniffed
// from the leading bytes.
func FromMultipart(fh *multipart.FileHeader) File {
	d := Descriptor{
		Name: fh.Filename,
		Type: strings.ToLower(strings.TrimSpace(fh.Header.Get("Content-Type"))),
		Size: fh.Size,
	}
	if d.Type == "" || d.Type == "application/octet-stream" {
		if sniffed := sniff(fh); sniffed != "" {
			d.Type = sniffed
		}
	}
	return OpenFile(d, func() (io.ReadCloser, error) {
		return fh.Open()
	})
}

func sniff(fh *multipart.FileHeader) string {
	f, err := fh.Open()
	if err != nil {
		return ""
	}
	defer f.Close()

	m, err := mimetype.DetectReader(f)
	if err != nil {
		return ""
	}
	typ, _, _ := strings.Cut(m.String(), ";")
	return strings.TrimSpace(typ)
}

// Open returns a reader over the payload.
func (f File) Open() (io.ReadCloser, error) {
	if f.open == nil {
		return nil, fmt.Errorf("open %s: no payload", f.Name)
	}
	return f.open()
}

// read returns at most limit+1 bytes so oversized payloads can be told
// apart from ones that fit exactly. limit <= 0 reads everything.
func (f File) read(limit int64) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var r io.Reader = rc
	if limit > 0 {
		r = io.LimitReader(rc, limit+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Name, err)
	}
	return data, nil
}
