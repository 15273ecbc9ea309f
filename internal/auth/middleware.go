package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"webtoonhub/pkg/models"
)

const (
	CtxClaimsKey = "auth_claims"
	CtxUserKey   = "auth_user"
)

// AuthMiddleware accepts a provider session token and resolves the local
// user it was provisioned as. Unprovisioned subjects are rejected.
func AuthMiddleware(tokens TokenService, repo *Repo) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if h == "" || !strings.HasPrefix(strings.ToLower(h), "bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		raw := strings.TrimSpace(h[len("Bearer "):])
		claims, err := tokens.Parse(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		u, err := repo.GetByClerkID(c.Request.Context(), claims.Subject)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "user lookup failed"})
			return
		}
		if u == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user not provisioned"})
			return
		}

		c.Set(CtxClaimsKey, claims)
		c.Set(CtxUserKey, u)
		c.Next()
	}
}

func MustGetClaims(c *gin.Context) *Claims {
	v, ok := c.Get(CtxClaimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*Claims)
	return claims
}

func MustGetUser(c *gin.Context) *models.User {
	v, ok := c.Get(CtxUserKey)
	if !ok {
		return nil
	}
	u, _ := v.(*models.User)
	return u
}

var errNotProvisioned = errors.New("user not provisioned")

// Identify resolves the local user id behind a request that cannot carry
// headers easily (websocket upgrades): ?token= first, then the bearer header.
func Identify(tokens TokenService, repo *Repo) func(r *http.Request) (string, error) {
	return func(r *http.Request) (string, error) {
		raw := strings.TrimSpace(r.URL.Query().Get("token"))
		if raw == "" {
			h := r.Header.Get("Authorization")
			if len(h) > len("Bearer ") && strings.EqualFold(h[:len("Bearer ")], "bearer ") {
				raw = strings.TrimSpace(h[len("Bearer "):])
			}
		}

		claims, err := tokens.Parse(raw)
		if err != nil {
			return "", err
		}
		u, err := repo.GetByClerkID(r.Context(), claims.Subject)
		if err != nil {
			return "", err
		}
		if u == nil {
			return "", errNotProvisioned
		}
		return u.ID, nil
	}
}
