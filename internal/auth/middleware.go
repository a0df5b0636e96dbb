package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	headerName   = "Authorization"
	apiKeyHeader = "X-API-Key"
)

// Service guards routes with a single shared API key.
type Service struct {
	apiKey string
}

// NewService returns a guard for key. An empty key disables the check.
func NewService(key string) *Service {
	return &Service{apiKey: key}
}

// Enabled reports whether a key is configured.
func (s *Service) Enabled() bool {
	return s != nil && s.apiKey != ""
}

// Middleware accepts "Authorization: Bearer <key>" or "X-API-Key: <key>".
func (s *Service) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.Enabled() {
			c.Next()
			return
		}
		token := s.extractToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
			return
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.apiKey)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid api key"})
			return
		}
		c.Next()
	}
}

func (s *Service) extractToken(c *gin.Context) string {
	authHeader := c.GetHeader(headerName)
	if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	return strings.TrimSpace(c.GetHeader(apiKeyHeader))
}
