package auth

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	svix "github.com/svix/svix-webhooks/go"
	"go.uber.org/zap"
)

const createdBody = `{
	"type": "user.created",
	"data": {
		"id": "clerk_123",
		"first_name": "",
		"full_name": "Demo User 1",
		"email_addresses": [{"id": "e1", "email_address": "User1@example.com"}]
	}
}`

func newWebhookRouter(t *testing.T, secret string) (*gin.Engine, *Repo, *WebhookHandler) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	repo := NewRepo(openTestDB(t))
	h := NewWebhookHandler(repo, secret, zap.NewNop())

	r := gin.New()
	h.RegisterRoutes(r.Group("/webhooks"))
	return r, repo, h
}

func post(r http.Handler, body string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/identity", strings.NewReader(body))
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestWebhookProvisionsUser(t *testing.T) {
	r, repo, _ := newWebhookRouter(t, "")

	w := post(r, createdBody, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"Webhook received"}`, w.Body.String())

	u, err := repo.GetByClerkID(context.Background(), "clerk_123")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "user1@example.com", u.Email)
	assert.Equal(t, "Demo User 1", u.Name)

	// redelivery is a no-op
	w = post(r, createdBody, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	users, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestWebhookWrappedEventAndDefaults(t *testing.T) {
	r, repo, _ := newWebhookRouter(t, "")

	body := `{"event": {"type": "user.created", "data": {
		"id": "clerk_456",
		"primary_email_address_id": "e2",
		"email_addresses": [
			{"id": "e1", "email_address": "old@example.com"},
			{"id": "e2", "email_address": "user2@example.com"}
		]
	}}}`
	w := post(r, body, nil)
	require.Equal(t, http.StatusOK, w.Code)

	u, err := repo.GetByClerkID(context.Background(), "clerk_456")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "user2@example.com", u.Email)
	assert.Equal(t, "Unknown", u.Name)
}

func TestWebhookUpdateAndDelete(t *testing.T) {
	r, repo, _ := newWebhookRouter(t, "")
	require.Equal(t, http.StatusOK, post(r, createdBody, nil).Code)

	updated := strings.Replace(createdBody, "user.created", "user.updated", 1)
	updated = strings.Replace(updated, `"first_name": ""`, `"first_name": "Demo"`, 1)
	require.Equal(t, http.StatusOK, post(r, updated, nil).Code)

	u, err := repo.GetByClerkID(context.Background(), "clerk_123")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "Demo", u.Name)

	require.Equal(t, http.StatusOK, post(r, `{"type":"user.deleted","data":{"id":"clerk_123"}}`, nil).Code)
	u, err = repo.GetByClerkID(context.Background(), "clerk_123")
	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestWebhookMissingEmail(t *testing.T) {
	r, _, _ := newWebhookRouter(t, "")
	w := post(r, `{"type":"user.created","data":{"id":"clerk_9"}}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhookSignature(t *testing.T) {
	secret := "whsec_" + base64.StdEncoding.EncodeToString([]byte("super-secret-key"))
	r, repo, _ := newWebhookRouter(t, secret)

	wh, err := svix.NewWebhook(secret)
	require.NoError(t, err)

	signed := func(at time.Time, body string) http.Header {
		sig, err := wh.Sign("msg_1", at, []byte(body))
		require.NoError(t, err)
		header := http.Header{}
		header.Set("svix-id", "msg_1")
		header.Set("svix-timestamp", strconv.FormatInt(at.Unix(), 10))
		header.Set("svix-signature", "v1,bogus "+sig)
		return header
	}

	assert.Equal(t, http.StatusUnauthorized, post(r, createdBody, nil).Code)

	tampered := strings.Replace(createdBody, "clerk_123", "clerk_999", 1)
	assert.Equal(t, http.StatusUnauthorized, post(r, tampered, signed(time.Now(), createdBody)).Code)

	assert.Equal(t, http.StatusUnauthorized, post(r, createdBody, signed(time.Now().Add(-10*time.Minute), createdBody)).Code)

	require.Equal(t, http.StatusOK, post(r, createdBody, signed(time.Now().Add(-time.Minute), createdBody)).Code)

	u, err := repo.GetByClerkID(context.Background(), "clerk_123")
	require.NoError(t, err)
	assert.NotNil(t, u)
}

func TestWebhookMalformedSecretRejects(t *testing.T) {
	r, _, _ := newWebhookRouter(t, "whsec_***not-base64***")
	header := http.Header{}
	header.Set("svix-id", "msg_1")
	header.Set("svix-timestamp", strconv.FormatInt(time.Now().Unix(), 10))
	header.Set("svix-signature", "v1,abc")
	assert.Equal(t, http.StatusUnauthorized, post(r, createdBody, header).Code)
}
