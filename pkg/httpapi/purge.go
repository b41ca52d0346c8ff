package httpapi

import (
	"net/http"

	"github.com/7and1/famouspeople.id-sub000/pkg/cache"
	"github.com/gin-gonic/gin"
)

// PurgeRequest is the body of POST /api/v1/cache/purge.
type PurgeRequest struct {
	Keys    []string `json:"keys"`
	Pattern string   `json:"pattern"`
}

// PurgeHandler deletes cache keys. Mount it behind ServiceAuth.
func PurgeHandler(m *cache.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req PurgeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			abortWithError(c, NewError(http.StatusBadRequest, CodeInvalidBody, err.Error()))
			return
		}

		res := m.Purge(c.Request.Context(), req.Keys, req.Pattern)
		c.Header("Cache-Control", "no-store")
		c.JSON(http.StatusOK, res)
	}
}
