package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// HeaderTrackAPIKey is the header reporting SDKs use to identify themselves.
const HeaderTrackAPIKey = "X-Track-Api-Key"

// ContextAPIKey is the gin context key the extracted key is stored under.
const ContextAPIKey = "track_api_key"

// APIKeyMiddleware lifts the tracking key out of the header into the request
// context. The key is an application identifier, not a credential; it is
// never checked against a registry here, so an empty key only fails on the
// handlers that require one.
func APIKeyMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(ContextAPIKey, strings.TrimSpace(c.GetHeader(HeaderTrackAPIKey)))
		c.Next()
	}
}

// APIKey returns the tracking key for the current request, "" when absent.
func APIKey(c *gin.Context) string {
	v, _ := c.Get(ContextAPIKey)
	s, _ := v.(string)
	return s
}
