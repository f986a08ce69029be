package ginauth

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/JacobCoffee/go-api-auth/apikey"
)

// KeyHandler serves the generated key-management endpoints.
type KeyHandler struct {
	svc *apikey.Service
}

// NewKeyHandler constructs a KeyHandler.
func NewKeyHandler(svc *apikey.Service) *KeyHandler {
	return &KeyHandler{svc: svc}
}

// RegisterRoutes mounts the management endpoints under prefix (defaults to
// /api-keys). The caller decides which middleware protects them.
func (a *Auth) RegisterRoutes(r gin.IRouter, prefix string) {
	if strings.TrimSpace(prefix) == "" {
		prefix = "/api-keys"
	}
	h := NewKeyHandler(a.svc)
	group := r.Group(prefix)
	group.POST("", h.Create)
	group.GET("", h.List)
	group.GET("/:id", h.Get)
	group.PATCH("/:id", h.Update)
	group.POST("/:id/revoke", h.Revoke)
	group.DELETE("/:id", h.Delete)
}

// createKeyRequest defines the request body for creating keys.
type createKeyRequest struct {
	Name      string         `json:"name"`
	Scopes    []string       `json:"scopes"`
	ExpiresIn *int           `json:"expires_in_days"`
	Metadata  map[string]any `json:"metadata"`
}

// Create issues a new key. The raw key appears in this response and nowhere
// else, ever.
func (h *KeyHandler) Create(c *gin.Context) {
	var body createKeyRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	name := strings.TrimSpace(body.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing name"})
		return
	}

	var expiresAt *time.Time
	if body.ExpiresIn != nil && *body.ExpiresIn > 0 {
		exp := time.Now().UTC().AddDate(0, 0, *body.ExpiresIn)
		expiresAt = &exp
	}

	raw, key, errIssue := h.svc.Issue(c.Request.Context(), apikey.IssueParams{
		Name:      name,
		Scopes:    body.Scopes,
		ExpiresAt: expiresAt,
		Metadata:  body.Metadata,
	})
	if errIssue != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create api key failed"})
		return
	}

	payload := serializeKey(key)
	payload["key"] = raw
	c.JSON(http.StatusCreated, payload)
}

// listKeysQuery defines query parameters for listing keys.
type listKeysQuery struct {
	Page  int `form:"page,default=1"`
	Limit int `form:"limit,default=20"`
}

// List returns a paginated list of keys, newest first.
func (h *KeyHandler) List(c *gin.Context) {
	var q listKeysQuery
	if errBind := c.ShouldBindQuery(&q); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query"})
		return
	}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 || q.Limit > 100 {
		q.Limit = 20
	}

	rows, errList := h.svc.List(c.Request.Context(), apikey.ListOptions{
		Limit:  q.Limit,
		Offset: (q.Page - 1) * q.Limit,
	})
	if errList != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list api keys failed"})
		return
	}

	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, serializeKey(row))
	}
	c.JSON(http.StatusOK, gin.H{
		"api_keys": out,
		"page":     q.Page,
		"limit":    q.Limit,
	})
}

// Get returns a single key by its public id.
func (h *KeyHandler) Get(c *gin.Context) {
	key, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, serializeKey(key))
}

// updateKeyRequest defines the request body for updating keys.
type updateKeyRequest struct {
	Name      *string        `json:"name"`
	Scopes    []string       `json:"scopes"`
	IsActive  *bool          `json:"is_active"`
	ExpiresIn *int           `json:"expires_in_days"`
	Metadata  map[string]any `json:"metadata"`
}

// Update patches a key's mutable fields. An expires_in_days of zero or less
// clears the expiry.
func (h *KeyHandler) Update(c *gin.Context) {
	key, ok := h.lookup(c)
	if !ok {
		return
	}

	var body updateKeyRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	patch := apikey.KeyPatch{
		Name:     body.Name,
		Scopes:   body.Scopes,
		IsActive: body.IsActive,
		Metadata: body.Metadata,
	}
	if body.ExpiresIn != nil {
		patch.SetExpiresAt = true
		if *body.ExpiresIn > 0 {
			exp := time.Now().UTC().AddDate(0, 0, *body.ExpiresIn)
			patch.ExpiresAt = &exp
		}
	}

	updated, found, errUpdate := h.svc.Update(c.Request.Context(), key.Hash, patch)
	if errUpdate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "api key not found"})
		return
	}
	c.JSON(http.StatusOK, serializeKey(updated))
}

// Revoke marks a key inactive.
func (h *KeyHandler) Revoke(c *gin.Context) {
	key, ok := h.lookup(c)
	if !ok {
		return
	}

	found, errRevoke := h.svc.Revoke(c.Request.Context(), key.Hash)
	if errRevoke != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "revoke failed"})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "api key not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"revoked": true})
}

// Delete removes a key permanently.
func (h *KeyHandler) Delete(c *gin.Context) {
	key, ok := h.lookup(c)
	if !ok {
		return
	}

	removed, errDelete := h.svc.Delete(c.Request.Context(), key.Hash)
	if errDelete != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	if !removed {
		c.JSON(http.StatusNotFound, gin.H{"error": "api key not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

// lookup resolves the :id path parameter to a record, answering the request
// itself when the id is missing or unknown.
func (h *KeyHandler) lookup(c *gin.Context) (apikey.Key, bool) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return apikey.Key{}, false
	}

	key, found, errGet := h.svc.GetByID(c.Request.Context(), id)
	if errGet != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return apikey.Key{}, false
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "api key not found"})
		return apikey.Key{}, false
	}
	return key, true
}

// serializeKey converts a record to an API response payload. The stored
// hash is included; it cannot be replayed as a credential.
func serializeKey(key apikey.Key) gin.H {
	return gin.H{
		"id":           key.ID,
		"key_hash":     key.Hash,
		"name":         key.Name,
		"scopes":       key.Scopes,
		"is_active":    key.IsActive,
		"state":        key.State(),
		"created_at":   key.CreatedAt,
		"expires_at":   key.ExpiresAt,
		"last_used_at": key.LastUsedAt,
		"metadata":     key.Metadata,
	}
}
