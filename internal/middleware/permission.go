package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/damoang/angple-collab/internal/common"
	"github.com/damoang/angple-collab/pkg/logger"
	"github.com/gin-gonic/gin"
)

// EditPermissionChecker decides whether an actor may edit a content item.
// The collaboration core never calls it; routes check it before invoking
// lock or save operations.
type EditPermissionChecker interface {
	HasEditPermission(ctx context.Context, contentID, actorID string) (bool, error)
}

// EditPermissionFunc adapts a function to EditPermissionChecker
type EditPermissionFunc func(ctx context.Context, contentID, actorID string) (bool, error)

func (f EditPermissionFunc) HasEditPermission(ctx context.Context, contentID, actorID string) (bool, error) {
	return f(ctx, contentID, actorID)
}

// AllowAuthenticated grants edit permission to every authenticated actor
var AllowAuthenticated EditPermissionChecker = EditPermissionFunc(func(_ context.Context, _, actorID string) (bool, error) {
	return actorID != "", nil
})

// RequireEditPermission checks the :id content param against checker.
// It requires JWTAuth middleware to be applied first.
func RequireEditPermission(checker EditPermissionChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		contentID := c.Param("id")
		if contentID == "" {
			common.ErrorResponse(c, http.StatusBadRequest, "콘텐츠 ID가 필요합니다", nil)
			c.Abort()
			return
		}

		actorID := GetActorID(c)
		if actorID == "" {
			common.ErrorResponse(c, http.StatusUnauthorized, "로그인이 필요합니다", nil)
			c.Abort()
			return
		}

		allowed, err := checker.HasEditPermission(c.Request.Context(), contentID, actorID)
		if err != nil {
			if errors.Is(err, common.ErrNotFound) {
				common.ErrorResponse(c, http.StatusNotFound, "콘텐츠를 찾을 수 없습니다", err)
			} else {
				logger.Error("edit permission check failed for %s: %v", contentID, err)
				common.ErrorResponse(c, http.StatusInternalServerError, "권한 확인 중 오류가 발생했습니다", err)
			}
			c.Abort()
			return
		}

		if !allowed {
			common.ErrorResponse(c, http.StatusForbidden, "편집 권한이 없습니다", nil)
			c.Abort()
			return
		}

		c.Next()
	}
}
