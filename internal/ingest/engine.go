package ingest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const DefaultMaxSize = 100 * 1024 // 100KB

// MaxSizeOrDefault maps a non-positive size limit to DefaultMaxSize.
func MaxSizeOrDefault(n int64) int64 {
	if n <= 0 {
		return DefaultMaxSize
	}
	return n
}

type Config struct {
	Accept   []string
	MaxSize  int64
	OnUpload func([]Candidate)
	Fetcher  Fetcher
	Logger   *zap.Logger
}

// Outcome reports what a single submission did. Via names the path taken:
// "selection" or the drop shape.
type Outcome struct {
	Via      string     `json:"via"`
	Accepted *Candidate `json:"accepted,omitempty"`
	Failures []*Failure `json:"failures,omitempty"`
}

// Kinds lists the failure kinds for metrics labels.
func (o Outcome) Kinds() []string {
	return kinds(o.Failures)
}

// State is a point-in-time copy of an engine.
type State struct {
	Candidate *Candidate `json:"candidate"`
	Dragging  bool       `json:"dragging"`
	Errors    []string   `json:"errors"`
}

// Engine holds at most one accepted candidate. Fetching and decoding run
// outside the lock; when two submissions overlap, whichever commits last
// owns the slot.
type Engine struct {
	cfg   Config
	rules rules
	log   *zap.Logger

	mu         sync.Mutex
	current    *Candidate
	dragging   bool
	failures   []*Failure
	lastActive time.Time
}

func New(cfg Config) *Engine {
	cfg.MaxSize = MaxSizeOrDefault(cfg.MaxSize)
	cfg.Accept = normalizeAccept(cfg.Accept)
	if cfg.Fetcher == nil {
		cfg.Fetcher = NewHTTPFetcher(10*time.Second, cfg.MaxSize)
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		cfg:        cfg,
		rules:      rules{accept: cfg.Accept, maxSize: cfg.MaxSize},
		log:        log,
		lastActive: time.Now(),
	}
}

// SubmitFiles handles a local file selection.
func (e *Engine) SubmitFiles(ctx context.Context, files []File) Outcome {
	e.touch()
	out := e.process(files)
	out.Via = "selection"
	return out
}

// SubmitDrop handles a drop gesture. Hover state and previous errors are
// cleared before the payload is looked at.
func (e *Engine) SubmitDrop(ctx context.Context, d Drop) Outcome {
	e.mu.Lock()
	e.dragging = false
	e.failures = nil
	e.lastActive = time.Now()
	e.mu.Unlock()

	c := Classify(d)
	var out Outcome
	switch c.Shape {
	case ShapeURIList, ShapeHTML:
		out = e.resolve(ctx, c.Ref)
	case ShapeFiles:
		out = e.process(c.Files)
	case ShapeText:
		if looksLikeImage(c.Ref) {
			out = e.resolve(ctx, c.Ref)
		} else {
			out = e.fail(newFailure(NotAnImage, msgNotImageURL, nil))
		}
	default:
		out = e.fail(newFailure(AmbiguousDrop, msgAmbiguous, nil))
	}
	out.Via = c.Shape.String()
	return out
}

// Remove drops the candidate with the given id. Errors are cleared either way.
func (e *Engine) Remove(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.lastActive = time.Now()
	e.failures = nil
	if e.current == nil || e.current.ID != id {
		return false
	}
	e.current = nil
	return true
}

func (e *Engine) DragEnter() { e.setDragging(true) }

func (e *Engine) DragLeave() { e.setDragging(false) }

func (e *Engine) setDragging(v bool) {
	e.mu.Lock()
	e.dragging = v
	e.lastActive = time.Now()
	e.mu.Unlock()
}

// Current returns a copy of the retained candidate, or nil.
func (e *Engine) Current() *Candidate {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil {
		return nil
	}
	c := *e.current
	return &c
}

func (e *Engine) Dragging() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dragging
}

func (e *Engine) Errors() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return messages(e.failures)
}

func (e *Engine) Failures() []*Failure {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*Failure(nil), e.failures...)
}

func (e *Engine) Snapshot() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := State{Dragging: e.dragging, Errors: messages(e.failures)}
	if e.current != nil {
		c := *e.current
		s.Candidate = &c
	}
	return s
}

// LastActive is the time of the most recent operation on the engine.
func (e *Engine) LastActive() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastActive
}

func (e *Engine) touch() {
	e.mu.Lock()
	e.lastActive = time.Now()
	e.mu.Unlock()
}

// process validates every file, decodes until one succeeds and commits
// the result. Later valid files are ignored: only one candidate is kept.
func (e *Engine) process(files []File) Outcome {
	var (
		accepted *Candidate
		failures []*Failure
	)

	for _, f := range files {
		if fail := e.rules.check(f.Descriptor); fail != nil {
			failures = append(failures, fail)
			continue
		}
		if accepted != nil {
			continue
		}

		data, err := f.read(e.cfg.MaxSize)
		if err != nil {
			failures = append(failures, newFailure(DecodeFailure, "Failed to process "+f.Name, err))
			continue
		}
		// the declared size can be wrong; the bytes decide
		if int64(len(data)) > e.cfg.MaxSize {
			failures = append(failures, e.rules.oversized())
			continue
		}

		src := f.Descriptor
		src.Size = int64(len(data))
		accepted = &Candidate{
			ID:      uuid.NewString(),
			Source:  src,
			DataURL: EncodeDataURL(f.Type, data),
		}
	}

	e.mu.Lock()
	if accepted != nil {
		e.current = accepted
	}
	e.failures = failures
	e.lastActive = time.Now()
	e.mu.Unlock()

	for _, f := range failures {
		e.log.Debug("upload rejected", zap.Stringer("kind", f.Kind), zap.String("message", f.Message), zap.Error(f.Err))
	}

	if accepted == nil {
		return Outcome{Failures: failures}
	}

	e.log.Info("upload accepted",
		zap.String("candidate", accepted.ID),
		zap.String("name", accepted.Source.Name),
		zap.String("type", accepted.Source.Type),
		zap.Int64("size", accepted.Source.Size))

	if e.cfg.OnUpload != nil {
		e.cfg.OnUpload([]Candidate{*accepted})
	}

	c := *accepted
	return Outcome{Accepted: &c, Failures: failures}
}

// resolve fetches a remote reference and feeds it through process.
// The fetch is not tied to the caller's cancellation: once started it
// runs until it completes or the fetcher gives up.
func (e *Engine) resolve(ctx context.Context, ref string) Outcome {
	remote, err := e.cfg.Fetcher.Fetch(context.WithoutCancel(ctx), ref)
	if err != nil {
		e.log.Debug("remote fetch failed", zap.String("url", ref), zap.Error(err))
		if errors.Is(err, ErrBodyTooLarge) {
			return e.fail(e.rules.oversized())
		}
		if errors.Is(err, ErrUnreachable) {
			return e.fail(newFailure(RemoteFetchFailure, msgUnreachable, err))
		}
		return e.fail(newFailure(RemoteFetchFailure, msgRemoteFailed, err))
	}

	if !strings.HasPrefix(remote.ContentType, "image/") {
		return e.fail(newFailure(NotAnImage, msgNotImageBlob, nil))
	}

	return e.process([]File{NewFile(nameFromURL(ref), remote.ContentType, remote.Body)})
}

func (e *Engine) fail(f *Failure) Outcome {
	e.mu.Lock()
	e.failures = []*Failure{f}
	e.lastActive = time.Now()
	e.mu.Unlock()

	e.log.Debug("upload rejected", zap.Stringer("kind", f.Kind), zap.String("message", f.Message), zap.Error(f.Err))
	return Outcome{Failures: []*Failure{f}}
}
