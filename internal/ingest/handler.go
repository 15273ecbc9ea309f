package ingest

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"webtoonhub/internal/auth"
)

// DefaultMaxBody bounds a whole upload request, all parts included.
const DefaultMaxBody = 10 << 20

// Recorder observes finished submissions.
type Recorder interface {
	RecordIngest(via string, accepted bool, kinds []string)
}

// Handler exposes per-user, per-form engines over HTTP.
type Handler struct {
	Registry *Registry
	Recorder Recorder
	MaxBody  int64
}

func NewHandler(reg *Registry, rec Recorder) *Handler {
	return &Handler{Registry: reg, Recorder: rec, MaxBody: DefaultMaxBody}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/uploads/:form")
	g.GET("", h.state)
	g.POST("/files", h.submitFiles)
	g.POST("/drop", h.submitDrop)
	g.POST("/drag", h.drag)
	g.DELETE("/candidates/:id", h.remove)
	g.DELETE("", h.release)
}

func (h *Handler) key(c *gin.Context) (Key, bool) {
	u := auth.MustGetUser(c)
	form := strings.TrimSpace(c.Param("form"))
	if u == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return Key{}, false
	}
	if form == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "form required"})
		return Key{}, false
	}
	return Key{UserID: u.ID, Form: form}, true
}

func (h *Handler) state(c *gin.Context) {
	k, ok := h.key(c)
	if !ok {
		return
	}
	e, found := h.Registry.Lookup(k)
	if !found {
		c.JSON(http.StatusOK, State{Errors: []string{}})
		return
	}
	c.JSON(http.StatusOK, e.Snapshot())
}

// parseForm accepts multipart and urlencoded bodies. Drops that carry
// only text flavors are usually sent urlencoded.
func (h *Handler) parseForm(c *gin.Context) bool {
	if h.MaxBody > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxBody)
	}
	err := c.Request.ParseMultipartForm(h.MaxBody)
	if errors.Is(err, http.ErrNotMultipart) {
		err = c.Request.ParseForm()
	}
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request too large"})
			return false
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid form"})
		return false
	}
	return true
}

func formFiles(c *gin.Context) []File {
	mf := c.Request.MultipartForm
	if mf == nil {
		return nil
	}
	headers := mf.File["file"]
	files := make([]File, 0, len(headers))
	for _, fh := range headers {
		files = append(files, FromMultipart(fh))
	}
	return files
}

func (h *Handler) submitFiles(c *gin.Context) {
	k, ok := h.key(c)
	if !ok || !h.parseForm(c) {
		return
	}

	files := formFiles(c)
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file required"})
		return
	}

	e := h.Registry.Get(k)
	h.respond(c, e, e.SubmitFiles(c.Request.Context(), files))
}

func (h *Handler) submitDrop(c *gin.Context) {
	k, ok := h.key(c)
	if !ok || !h.parseForm(c) {
		return
	}

	form := c.Request.PostForm
	d := Drop{
		URIList: form.Get("uri_list"),
		URL:     form.Get("url"),
		HTML:    form.Get("html"),
		Text:    form.Get("text"),
		Files:   formFiles(c),
	}

	e := h.Registry.Get(k)
	h.respond(c, e, e.SubmitDrop(c.Request.Context(), d))
}

type submitResp struct {
	Outcome
	State State `json:"state"`
}

func (h *Handler) respond(c *gin.Context, e *Engine, out Outcome) {
	if h.Recorder != nil {
		h.Recorder.RecordIngest(out.Via, out.Accepted != nil, out.Kinds())
	}

	status := http.StatusOK
	if out.Accepted == nil && len(out.Failures) > 0 {
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, submitResp{Outcome: out, State: e.Snapshot()})
}

type dragReq struct {
	State string `json:"state"`
}

func (h *Handler) drag(c *gin.Context) {
	k, ok := h.key(c)
	if !ok {
		return
	}

	var req dragReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	e := h.Registry.Get(k)
	switch strings.ToLower(strings.TrimSpace(req.State)) {
	case "enter":
		e.DragEnter()
	case "leave":
		e.DragLeave()
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "state must be enter or leave"})
		return
	}
	c.JSON(http.StatusOK, e.Snapshot())
}

func (h *Handler) remove(c *gin.Context) {
	k, ok := h.key(c)
	if !ok {
		return
	}

	e, found := h.Registry.Lookup(k)
	if !found || !e.Remove(c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "candidate not found"})
		return
	}
	c.JSON(http.StatusOK, e.Snapshot())
}

func (h *Handler) release(c *gin.Context) {
	k, ok := h.key(c)
	if !ok {
		return
	}
	h.Registry.Release(k)
	c.Status(http.StatusNoContent)
}
