package httpapi

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ServiceAuth requires "Authorization: Bearer <token>" matching token.
// An empty token means the privileged routes are not configured and every
// request fails with SERVER_CONFIG_ERROR.
func ServiceAuth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		presented, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || presented == "" {
			abortWithError(c, NewError(http.StatusUnauthorized, CodeUnauthorized, "Missing token"))
			return
		}

		if token == "" {
			abortWithError(c, NewError(http.StatusInternalServerError, CodeServerConfigError, "Service token not configured"))
			return
		}

		if subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
			abortWithError(c, NewError(http.StatusUnauthorized, CodeInvalidToken, "Token verification failed"))
			return
		}
		c.Next()
	}
}
