package middleware

import (
	"net/http"

	"github.com/damoang/angple-collab/internal/common"
	"github.com/gin-gonic/gin"
)

// AdminLevel is the minimum member level for maintenance endpoints
const AdminLevel = 10

// RequireAdmin checks that the authenticated user has admin level
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetActorLevel(c) < AdminLevel {
			common.ErrorResponse(c, http.StatusForbidden, "관리자 권한이 필요합니다", nil)
			c.Abort()
			return
		}
		c.Next()
	}
}
