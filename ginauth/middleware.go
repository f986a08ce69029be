// Package ginauth wires the API key engine into gin: an authentication
// middleware, scope guards, and the generated key-management routes.
package ginauth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/JacobCoffee/go-api-auth/apikey"
)

// contextKey is the gin context key the resolved record is stored under.
const contextKey = "ginauth:key"

// Options controls how the middleware locates and validates credentials.
type Options struct {
	// Header carrying the credential. Defaults to "Authorization".
	Header string
	// Scheme expected in the header value. Defaults to "Bearer".
	Scheme string
	// AllowXAPIKey also accepts the key via the X-API-Key header.
	AllowXAPIKey bool
	// QueryParam additionally accepts the key via the named query
	// parameter. Empty disables query extraction.
	QueryParam string
	// BypassPathPrefixes lists paths the middleware ignores entirely.
	BypassPathPrefixes []string
}

// DefaultOptions returns the options used when none are supplied.
func DefaultOptions() Options {
	return Options{
		Header:       "Authorization",
		Scheme:       "Bearer",
		AllowXAPIKey: true,
	}
}

// Auth binds a key service to gin middleware and route handlers.
type Auth struct {
	svc  *apikey.Service
	opts Options
}

// New constructs an Auth wrapper around svc.
func New(svc *apikey.Service, opts Options) (*Auth, error) {
	if svc == nil {
		return nil, errors.New("ginauth: nil service")
	}
	if strings.TrimSpace(opts.Header) == "" {
		opts.Header = "Authorization"
	}
	return &Auth{svc: svc, opts: opts}, nil
}

// Middleware authenticates each request's API key and attaches the resolved
// record to the gin context. Lifecycle failures answer with the specific
// reason; the raw key never appears in a response or a log line unmasked.
func (a *Auth) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		for _, prefix := range a.opts.BypassPathPrefixes {
			if prefix != "" && strings.HasPrefix(path, prefix) {
				c.Next()
				return
			}
		}

		raw := extractToken(c, a.opts)
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing api key"})
			return
		}

		key, errAuth := a.svc.Authenticate(c.Request.Context(), raw)
		if errAuth != nil {
			status, message := authFailureResponse(errAuth)
			if status == http.StatusInternalServerError {
				log.Errorf("ginauth: authenticate %s: %v", apikey.MaskKey(raw), errAuth)
			} else {
				log.Debugf("ginauth: rejected %s: %s", apikey.MaskKey(raw), message)
			}
			c.AbortWithStatusJSON(status, gin.H{"error": message})
			return
		}

		c.Set(contextKey, key)
		c.Next()
	}
}

// RequireScope guards a route behind a single scope.
func (a *Auth) RequireScope(scope string) gin.HandlerFunc {
	return a.RequireScopes(apikey.RequireAll, scope)
}

// RequireScopes guards a route behind a scope list under the given
// requirement. It must run after Middleware.
func (a *Auth) RequireScopes(requirement apikey.Requirement, scopes ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key, ok := KeyFromContext(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing api key"})
			return
		}
		if errAuthz := a.svc.Authorize(key, scopes, requirement); errAuthz != nil {
			missing := a.svc.Checker().Missing(key.Scopes, scopes)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":          "insufficient scope",
				"missing_scopes": missing,
			})
			return
		}
		c.Next()
	}
}

// KeyFromContext returns the record the middleware resolved for the request.
func KeyFromContext(c *gin.Context) (apikey.Key, bool) {
	value, exists := c.Get(contextKey)
	if !exists {
		return apikey.Key{}, false
	}
	key, ok := value.(apikey.Key)
	return key, ok
}

// extractToken pulls an API key from the configured header or X-API-Key.
func extractToken(c *gin.Context, opts Options) string {
	val := strings.TrimSpace(c.GetHeader(opts.Header))
	if val != "" {
		if opts.Scheme == "" {
			return val
		}
		prefix := opts.Scheme + " "
		if strings.HasPrefix(val, prefix) {
			return strings.TrimSpace(strings.TrimPrefix(val, prefix))
		}
	}
	if opts.AllowXAPIKey {
		if v := strings.TrimSpace(c.GetHeader("X-API-Key")); v != "" {
			return v
		}
	}
	if opts.QueryParam != "" {
		if v := strings.TrimSpace(c.Query(opts.QueryParam)); v != "" {
			return v
		}
	}
	return ""
}

// authFailureResponse maps a core failure to an HTTP status and message.
// Storage faults stay a generic 500 so no backend detail leaks.
func authFailureResponse(err error) (int, string) {
	switch {
	case errors.Is(err, apikey.ErrMalformedKey), errors.Is(err, apikey.ErrKeyNotFound):
		return http.StatusUnauthorized, "invalid api key"
	case errors.Is(err, apikey.ErrKeyRevoked):
		return http.StatusUnauthorized, "api key revoked"
	case errors.Is(err, apikey.ErrKeyExpired):
		return http.StatusUnauthorized, "api key expired"
	default:
		return http.StatusInternalServerError, "authentication failed"
	}
}
