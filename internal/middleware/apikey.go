package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// APIKeyHeader заголовок с ключом доступа к API управления
const APIKeyHeader = "X-API-Key"

const ctxKeyName = "api_key_name"

// APIKey проверяет ключ доступа. Ключ берётся из X-API-Key,
// затем из Authorization: Bearer.
type APIKey struct {
	keys   map[string]string // ключ -> имя клиента
	logger *zap.Logger
}

func NewAPIKey(keys map[string]string, logger *zap.Logger) *APIKey {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &APIKey{keys: keys, logger: logger}
}

// RequireAPIKey middleware, отклоняющий запросы без валидного ключа
func RequireAPIKey(keys map[string]string, logger *zap.Logger) gin.HandlerFunc {
	return NewAPIKey(keys, logger).Middleware()
}

func (ak *APIKey) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := extractKey(c)
		if key == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "missing_api_key",
				"message": "API key is required in the " + APIKeyHeader + " header or as a Bearer token",
			})
			return
		}

		name, ok := ak.lookup(key)
		if !ok {
			ak.logger.Warn("Rejected request with invalid API key",
				zap.String("path", c.Request.URL.Path),
				zap.String("ip", c.ClientIP()),
			)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "invalid_api_key",
				"message": "Invalid API key",
			})
			return
		}

		c.Set(ctxKeyName, name)
		c.Next()
	}
}

// lookup сравнивает ключ со всеми известными за постоянное время
func (ak *APIKey) lookup(key string) (string, bool) {
	var (
		name  string
		found bool
	)
	for valid, owner := range ak.keys {
		if subtle.ConstantTimeCompare([]byte(key), []byte(valid)) == 1 {
			name, found = owner, true
		}
	}
	return name, found
}

func extractKey(c *gin.Context) string {
	if key := strings.TrimSpace(c.GetHeader(APIKeyHeader)); key != "" {
		return key
	}
	if token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

// KeyName имя клиента, прошедшего проверку ключа, или пустая строка
func KeyName(c *gin.Context) string {
	return c.GetString(ctxKeyName)
}
