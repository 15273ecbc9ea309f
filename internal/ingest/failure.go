package ingest

import "fmt"

// Kind classifies why a candidate was rejected.
type Kind int

const (
	UnsupportedType Kind = iota + 1
	OversizedPayload
	DecodeFailure
	RemoteFetchFailure
	NotAnImage
	AmbiguousDrop
)

func (k Kind) String() string {
	switch k {
	case UnsupportedType:
		return "unsupported_type"
	case OversizedPayload:
		return "oversized_payload"
	case DecodeFailure:
		return "decode_failure"
	case RemoteFetchFailure:
		return "remote_fetch_failure"
	case NotAnImage:
		return "not_an_image"
	case AmbiguousDrop:
		return "ambiguous_drop"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

const (
	msgUnreachable  = "Could not load image: the remote host refused the request. Try downloading the image first."
	msgRemoteFailed = "Failed to load image from URL. Try downloading the image first."
	msgNotImageBlob = "Invalid file type. Please use an image file."
	msgNotImageURL  = "URL does not appear to be an image. Please use a direct image link."
	msgAmbiguous    = "Nothing to upload. Drop an image file or a direct image link."
)

// Failure is a user-facing rejection. Message is safe to render as is;
// Err keeps the underlying cause for logs.
type Failure struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (f *Failure) Error() string {
	return f.Message
}

func (f *Failure) Unwrap() error {
	return f.Err
}

func newFailure(kind Kind, msg string, cause error) *Failure {
	return &Failure{Kind: kind, Message: msg, Err: cause}
}

func messages(fs []*Failure) []string {
	out := make([]string, 0, len(fs))
	for _, f := range fs {
		out = append(out, f.Message)
	}
	return out
}

func kinds(fs []*Failure) []string {
	out := make([]string, 0, len(fs))
	for _, f := range fs {
		out = append(out, f.Kind.String())
	}
	return out
}
