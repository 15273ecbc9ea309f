package webtoon

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"webtoonhub/internal/auth"
	"webtoonhub/internal/covers"
	"webtoonhub/internal/ingest"
	"webtoonhub/internal/sync"
	"webtoonhub/pkg/models"
)

const defaultStatus = "in-progress"

var statuses = []string{"on-hold", "in-progress", "completed", "cancelled", "reading"}

type Handler struct {
	Repo    *Repo
	Hub     *sync.Hub
	Uploads *ingest.Registry
	Covers  covers.Store
	Log     *zap.Logger
}

func NewHandler(repo *Repo, hub *sync.Hub, uploads *ingest.Registry, store covers.Store, log *zap.Logger) *Handler {
	if store == nil {
		store = covers.Inline{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{Repo: repo, Hub: hub, Uploads: uploads, Covers: store, Log: log}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/webtoons", h.list)
	rg.POST("/webtoons", h.create)
	rg.GET("/webtoons/stats", h.stats)
	rg.GET("/webtoons/:id", h.getOne)
	rg.PUT("/webtoons/:id", h.replace)
	rg.PATCH("/webtoons/:id", h.patch)
	rg.DELETE("/webtoons/:id", h.remove)
}

type writeReq struct {
	Title      *string  `json:"title"`
	URL        *string  `json:"url"`
	Status     *string  `json:"status"`
	Tags       []string `json:"tags"`
	Image      *string  `json:"image"`
	UploadForm *string  `json:"upload_form"`
}

type badRequest string

func (e badRequest) Error() string { return string(e) }

// patchFrom validates req into a patch. With full set, absent fields are
// cleared (PUT) or defaulted (POST).
func patchFrom(req writeReq, full bool) (models.WebtoonPatch, error) {
	var p models.WebtoonPatch

	if req.Title != nil || full {
		title := ""
		if req.Title != nil {
			title = strings.TrimSpace(*req.Title)
		}
		if title == "" {
			return p, badRequest("title required")
		}
		if len(title) > 200 {
			return p, badRequest("title must be at most 200 chars")
		}
		p.Title = &title
	}

	if req.URL != nil || full {
		link := ""
		if req.URL != nil {
			link = strings.TrimSpace(*req.URL)
		}
		if link != "" && !isHTTPURL(link) {
			return p, badRequest("url must be an http(s) link")
		}
		p.URL = &link
	}

	if req.Status != nil || full {
		status := defaultStatus
		if req.Status != nil && strings.TrimSpace(*req.Status) != "" {
			status = normalizeStatus(*req.Status)
			if status == "" {
				return p, badRequest("status must be one of: " + strings.Join(statuses, ", "))
			}
		}
		p.Status = &status
	}

	if req.Tags != nil || full {
		p.Tags = normalizeTags(req.Tags)
	}

	if req.Image != nil {
		img := strings.TrimSpace(*req.Image)
		p.Image = &img
	} else if full {
		empty := ""
		p.Image = &empty
	}
	return p, nil
}

// applyUpload swaps the image for the accepted candidate of the named form.
func (h *Handler) applyUpload(userID string, req writeReq, p *models.WebtoonPatch) (ingest.Key, error) {
	if req.UploadForm == nil || strings.TrimSpace(*req.UploadForm) == "" {
		return ingest.Key{}, nil
	}
	k := ingest.Key{UserID: userID, Form: strings.TrimSpace(*req.UploadForm)}
	if h.Uploads == nil {
		return k, badRequest("uploads not available")
	}
	e, ok := h.Uploads.Lookup(k)
	if !ok {
		return k, badRequest("no accepted upload for form")
	}
	c := e.Current()
	if c == nil {
		return k, badRequest("no accepted upload for form")
	}
	p.Image = &c.DataURL
	return k, nil
}

// storeImage persists a data-URL image through the cover store.
func (h *Handler) storeImage(ctx context.Context, id string, p *models.WebtoonPatch) error {
	if p.Image == nil {
		return nil
	}
	ref, err := covers.Resolve(ctx, h.Covers, id, *p.Image)
	if err != nil {
		if errors.Is(err, covers.ErrInvalidImage) {
			return badRequest(err.Error())
		}
		return err
	}
	p.Image = &ref
	return nil
}

func (h *Handler) writeError(c *gin.Context, err error, fallback string) {
	var br badRequest
	if errors.As(err, &br) {
		c.JSON(http.StatusBadRequest, gin.H{"error": string(br)})
		return
	}
	h.Log.Error(fallback, zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
}

func (h *Handler) create(c *gin.Context) {
	u := auth.MustGetUser(c)
	if u == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req writeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	p, err := patchFrom(req, true)
	if err != nil {
		h.writeError(c, err, "invalid webtoon")
		return
	}
	form, err := h.applyUpload(u.ID, req, &p)
	if err != nil {
		h.writeError(c, err, "upload lookup failed")
		return
	}

	ctx := c.Request.Context()
	id := uuid.NewString()
	if err := h.storeImage(ctx, id, &p); err != nil {
		h.writeError(c, err, "store cover failed")
		return
	}

	w := models.Webtoon{
		ID:       id,
		Title:    *p.Title,
		URL:      *p.URL,
		Status:   *p.Status,
		Tags:     p.Tags,
		Image:    *p.Image,
		AuthorID: u.ID,
	}
	if err := h.Repo.Create(ctx, w); err != nil {
		h.writeError(c, err, "create failed")
		return
	}

	saved, err := h.Repo.Get(ctx, id)
	if err != nil || saved == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "fetch saved failed"})
		return
	}

	h.releaseForm(form)
	h.emit("webtoon.create", saved)
	c.JSON(http.StatusCreated, saved)
}

func (h *Handler) replace(c *gin.Context) { h.update(c, true) }

func (h *Handler) patch(c *gin.Context) { h.update(c, false) }

func (h *Handler) update(c *gin.Context, full bool) {
	u := auth.MustGetUser(c)
	if u == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	existing, ok := h.owned(c, u.ID)
	if !ok {
		return
	}

	var req writeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	p, err := patchFrom(req, full)
	if err != nil {
		h.writeError(c, err, "invalid webtoon")
		return
	}
	form, err := h.applyUpload(u.ID, req, &p)
	if err != nil {
		h.writeError(c, err, "upload lookup failed")
		return
	}

	ctx := c.Request.Context()
	if err := h.storeImage(ctx, existing.ID, &p); err != nil {
		h.writeError(c, err, "store cover failed")
		return
	}

	if _, err := h.Repo.Update(ctx, existing.ID, p); err != nil {
		h.writeError(c, err, "update failed")
		return
	}

	saved, err := h.Repo.Get(ctx, existing.ID)
	if err != nil || saved == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "fetch saved failed"})
		return
	}

	if existing.Image != "" && existing.Image != saved.Image {
		h.dropCover(ctx, existing.Image)
	}
	h.releaseForm(form)
	h.emit("webtoon.update", saved)
	c.JSON(http.StatusOK, saved)
}

func (h *Handler) remove(c *gin.Context) {
	u := auth.MustGetUser(c)
	if u == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	existing, ok := h.owned(c, u.ID)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	deleted, err := h.Repo.Delete(ctx, existing.ID)
	if err != nil {
		h.writeError(c, err, "delete failed")
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	h.dropCover(ctx, existing.Image)
	h.emit("webtoon.delete", existing)
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}

func (h *Handler) getOne(c *gin.Context) {
	u := auth.MustGetUser(c)
	if u == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	w, ok := h.owned(c, u.ID)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, w)
}

// owned loads :id and hides other users' rows behind a 404.
func (h *Handler) owned(c *gin.Context, userID string) (*models.Webtoon, bool) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id required"})
		return nil, false
	}

	w, err := h.Repo.Get(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err, "get failed")
		return nil, false
	}
	if w == nil || w.AuthorID != userID {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return nil, false
	}
	return w, true
}

func (h *Handler) list(c *gin.Context) {
	u := auth.MustGetUser(c)
	if u == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	status := strings.TrimSpace(c.Query("status"))
	if status != "" {
		status = normalizeStatus(status)
		if status == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status filter"})
			return
		}
	}

	q := ListQuery{
		AuthorID: u.ID,
		Q:        c.Query("q"),
		Status:   status,
		Tag:      c.Query("tag"),
		Limit:    parseInt(c.Query("limit"), 20),
		Offset:   parseInt(c.Query("offset"), 0),
	}
	if q.Limit <= 0 || q.Limit > 100 {
		q.Limit = 20
	}
	if q.Offset < 0 {
		q.Offset = 0
	}

	ctx := c.Request.Context()
	total, err := h.Repo.Count(ctx, q)
	if err != nil {
		h.writeError(c, err, "count failed")
		return
	}
	items, err := h.Repo.List(ctx, q)
	if err != nil {
		h.writeError(c, err, "list failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total":  total,
		"limit":  q.Limit,
		"offset": q.Offset,
		"items":  items,
	})
}

func (h *Handler) stats(c *gin.Context) {
	u := auth.MustGetUser(c)
	if u == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	counts, err := h.Repo.StatusCounts(c.Request.Context(), u.ID)
	if err != nil {
		h.writeError(c, err, "stats failed")
		return
	}

	byStatus := make(map[string]int, len(statuses))
	for _, s := range statuses {
		byStatus[s] = 0
	}
	total := 0
	for s, n := range counts {
		total += n
		if s == "" {
			s = "none"
		}
		byStatus[s] += n
	}
	c.JSON(http.StatusOK, gin.H{"total": total, "by_status": byStatus})
}

func (h *Handler) releaseForm(k ingest.Key) {
	if h.Uploads != nil && k.Form != "" {
		h.Uploads.Release(k)
	}
}

func (h *Handler) dropCover(ctx context.Context, ref string) {
	if ref == "" {
		return
	}
	if err := h.Covers.Delete(ctx, ref); err != nil {
		h.Log.Warn("cover cleanup failed", zap.String("ref", ref), zap.Error(err))
	}
}

func (h *Handler) emit(typ string, w *models.Webtoon) {
	if h.Hub == nil {
		return
	}
	ev := sync.WebtoonEvent{
		Type:      typ,
		UserID:    w.AuthorID,
		WebtoonID: w.ID,
		Title:     w.Title,
		Status:    w.Status,
		At:        time.Now().UTC(),
	}
	go h.Hub.BroadcastJSON(ev)
}

func normalizeStatus(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("_", "-", " ", "-").Replace(s)
	switch s {
	case "on-hold", "onhold":
		return "on-hold"
	case "in-progress", "inprogress", "ongoing":
		return "in-progress"
	case "completed", "complete":
		return "completed"
	case "cancelled", "canceled":
		return "cancelled"
	case "reading":
		return "reading"
	default:
		return ""
	}
}

// normalizeTags removes all whitespace inside each tag and drops empty and
// repeated ones, keeping first-seen order.
func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.Join(strings.Fields(t), "")
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func isHTTPURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func parseInt(s string, def int) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
