package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Handler serves the signed-in user's own profile.
type Handler struct {
	Repo *Repo
}

func NewHandler(repo *Repo) *Handler {
	return &Handler{Repo: repo}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/me", h.me)
	rg.PATCH("/me", h.update)
	rg.DELETE("/me", h.remove)
}

func (h *Handler) me(c *gin.Context) {
	u := MustGetUser(c)
	if u == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.JSON(http.StatusOK, u)
}

type updateReq struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
}

func (h *Handler) update(c *gin.Context) {
	u := MustGetUser(c)
	if u == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req updateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.Name != nil && len(strings.TrimSpace(*req.Name)) > 100 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name must be at most 100 chars"})
		return
	}
	if req.Email != nil {
		email := strings.TrimSpace(*req.Email)
		if !strings.Contains(email, "@") || len(email) > 255 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid email"})
			return
		}
		if other, _ := h.Repo.GetByEmail(c.Request.Context(), email); other != nil && other.ID != u.ID {
			c.JSON(http.StatusConflict, gin.H{"error": "email already exists"})
			return
		}
	}

	if _, err := h.Repo.Update(c.Request.Context(), u.ID, req.Name, req.Email); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}

	saved, err := h.Repo.GetByID(c.Request.Context(), u.ID)
	if err != nil || saved == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "fetch saved failed"})
		return
	}
	c.JSON(http.StatusOK, saved)
}

func (h *Handler) remove(c *gin.Context) {
	u := MustGetUser(c)
	if u == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	ok, err := h.Repo.Delete(c.Request.Context(), u.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}
