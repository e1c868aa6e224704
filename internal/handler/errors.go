package handler

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/damoang/angple-collab/internal/common"
	"github.com/damoang/angple-collab/pkg/logger"
	"github.com/gin-gonic/gin"
)

// retryAfterSeconds is suggested to clients on transient failures
const retryAfterSeconds = "1"

// lockConflictDetails is the structured payload of a LOCK_CONFLICT error
type lockConflictDetails struct {
	Holder    string    `json:"holder"`
	ExpiresAt time.Time `json:"expires_at"`
}

// respondError maps the error taxonomy onto HTTP responses
func respondError(c *gin.Context, err error) {
	var lockConflict *common.LockConflictError
	var versionConflict *common.VersionConflictError

	switch {
	case errors.As(err, &lockConflict):
		common.ErrorResponseWithCode(c, http.StatusConflict, "LOCK_CONFLICT", "다른 편집자가 편집 중입니다",
			lockConflictDetails{Holder: lockConflict.Holder, ExpiresAt: lockConflict.ExpiresAt})
	case errors.As(err, &versionConflict):
		common.ErrorResponseWithCode(c, http.StatusConflict, "VERSION_CONFLICT", "충돌하는 변경 사항이 있습니다",
			versionConflict.Report)
	case errors.Is(err, common.ErrLockRequired):
		common.ErrorResponseWithCode(c, http.StatusLocked, "LOCK_REQUIRED", "편집 잠금이 필요합니다", nil)
	case errors.Is(err, common.ErrContentNotFound):
		common.ErrorResponse(c, http.StatusNotFound, "콘텐츠를 찾을 수 없습니다", err)
	case errors.Is(err, common.ErrVersionNotFound):
		common.ErrorResponse(c, http.StatusNotFound, "버전을 찾을 수 없습니다", err)
	case errors.Is(err, common.ErrLockNotFound):
		common.ErrorResponse(c, http.StatusNotFound, "편집 잠금이 없습니다", err)
	case errors.Is(err, common.ErrNotFound):
		common.ErrorResponse(c, http.StatusNotFound, "리소스를 찾을 수 없습니다", err)
	case errors.Is(err, common.ErrForbidden):
		common.ErrorResponse(c, http.StatusForbidden, "잠금 보유자만 할 수 있습니다", err)
	case errors.Is(err, common.ErrInvalidInput):
		common.ErrorResponse(c, http.StatusBadRequest, "요청 값이 올바르지 않습니다", err)
	case errors.Is(err, common.ErrRaceRetryExhausted):
		c.Header("Retry-After", retryAfterSeconds)
		common.ErrorResponseWithCode(c, http.StatusServiceUnavailable, "RACE_RETRY_EXHAUSTED", "동시 저장이 많습니다. 다시 시도해주세요", nil)
	case errors.Is(err, common.ErrStoreUnavailable):
		logger.Error("store failure on %s %s: %v", c.Request.Method, c.FullPath(), err)
		c.Header("Retry-After", retryAfterSeconds)
		common.ErrorResponseWithCode(c, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "저장소를 사용할 수 없습니다", nil)
	default:
		logger.Error("unhandled error on %s %s: %v", c.Request.Method, c.FullPath(), err)
		common.ErrorResponse(c, http.StatusInternalServerError, "서버 오류가 발생했습니다", nil)
	}
}

// bindError responds to a malformed request body
func bindError(c *gin.Context, err error) {
	common.ErrorResponse(c, http.StatusBadRequest, "요청 형식이 올바르지 않습니다", err)
}

// bindOptionalJSON binds a body that may be omitted entirely
func bindOptionalJSON(c *gin.Context, obj interface{}) error {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return nil
	}
	if err := c.ShouldBindJSON(obj); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
