package auth

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	svix "github.com/svix/svix-webhooks/go"
	"go.uber.org/zap"

	"webtoonhub/pkg/models"
)

const maxWebhookBody = 1 << 20

// WebhookHandler provisions local users from identity provider events.
type WebhookHandler struct {
	Repo   *Repo
	Secret string // "whsec_..." signing secret; empty skips verification
	Log    *zap.Logger
}

func NewWebhookHandler(repo *Repo, secret string, log *zap.Logger) *WebhookHandler {
	return &WebhookHandler{Repo: repo, Secret: secret, Log: log}
}

func (h *WebhookHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/identity", h.receive)
}

type emailAddress struct {
	ID           string `json:"id"`
	EmailAddress string `json:"email_address"`
}

type providerUser struct {
	ID                    string         `json:"id"`
	EmailAddresses        []emailAddress `json:"email_addresses"`
	PrimaryEmailAddressID string         `json:"primary_email_address_id"`
	FirstName             string         `json:"first_name"`
	FullName              string         `json:"full_name"`
}

type webhookEvent struct {
	Type string       `json:"type"`
	Data providerUser `json:"data"`
}

// Providers post {type, data}; some relays wrap it as {event: {...}}.
type webhookBody struct {
	webhookEvent
	Event *webhookEvent `json:"event"`
}

func (u providerUser) email() string {
	for _, e := range u.EmailAddresses {
		if u.PrimaryEmailAddressID != "" && e.ID == u.PrimaryEmailAddressID {
			return e.EmailAddress
		}
	}
	if len(u.EmailAddresses) > 0 {
		return u.EmailAddresses[0].EmailAddress
	}
	return ""
}

func (u providerUser) displayName() string {
	if n := strings.TrimSpace(u.FirstName); n != "" {
		return n
	}
	if n := strings.TrimSpace(u.FullName); n != "" {
		return n
	}
	return "Unknown"
}

func (h *WebhookHandler) receive(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "read body failed"})
		return
	}

	if h.Secret != "" {
		if err := h.verify(c.Request.Header, body); err != nil {
			h.Log.Warn("webhook signature rejected", zap.Error(err))
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
			return
		}
	}

	var raw webhookBody
	if err := json.Unmarshal(body, &raw); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	ev := raw.webhookEvent
	if raw.Event != nil {
		ev = *raw.Event
	}

	h.Log.Info("webhook received", zap.String("type", ev.Type), zap.String("subject", ev.Data.ID))

	ctx := c.Request.Context()
	switch ev.Type {
	case "user.created", "user.updated":
		if ev.Data.ID == "" || ev.Data.email() == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "user id and email required"})
			return
		}
		existing, err := h.Repo.GetByClerkID(ctx, ev.Data.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
			return
		}
		switch {
		case existing == nil:
			u := models.User{
				ID:      uuid.NewString(),
				ClerkID: ev.Data.ID,
				Email:   ev.Data.email(),
				Name:    ev.Data.displayName(),
			}
			if err := h.Repo.CreateUser(ctx, u); err != nil {
				h.Log.Error("provision user failed", zap.String("subject", ev.Data.ID), zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "create user failed"})
				return
			}
			h.Log.Info("user provisioned", zap.String("user", u.ID), zap.String("subject", u.ClerkID))
		case ev.Type == "user.updated":
			name, email := ev.Data.displayName(), ev.Data.email()
			if _, err := h.Repo.Update(ctx, existing.ID, &name, &email); err != nil {
				h.Log.Error("update user failed", zap.String("user", existing.ID), zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "update user failed"})
				return
			}
		}

	case "user.deleted":
		existing, err := h.Repo.GetByClerkID(ctx, ev.Data.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
			return
		}
		if existing != nil {
			if _, err := h.Repo.Delete(ctx, existing.ID); err != nil {
				h.Log.Error("delete user failed", zap.String("user", existing.ID), zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "delete user failed"})
				return
			}
			h.Log.Info("user removed", zap.String("user", existing.ID))
		}
	}

	c.JSON(http.StatusOK, gin.H{"message": "Webhook received"})
}

// verify checks the svix-id, svix-timestamp and svix-signature headers,
// including the five minute timestamp tolerance.
func (h *WebhookHandler) verify(header http.Header, body []byte) error {
	wh, err := svix.NewWebhook(h.Secret)
	if err != nil {
		return fmt.Errorf("webhook secret: %w", err)
	}
	return wh.Verify(body, header)
}
