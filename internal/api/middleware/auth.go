package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ImportKeyHeader is the shared-secret header of the import endpoints.
const ImportKeyHeader = "X-Import-Key"

// ImportKey rejects requests whose X-Import-Key does not match key. An
// empty key rejects everything.
func ImportKey(key string) gin.HandlerFunc {
	want := []byte(key)
	return func(c *gin.Context) {
		got := []byte(c.GetHeader(ImportKeyHeader))
		if len(want) == 0 || subtle.ConstantTimeCompare(got, want) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "invalid import key",
			})
			return
		}
		c.Next()
	}
}
