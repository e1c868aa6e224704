package handler

import (
	"net/http"
	"time"

	"github.com/damoang/angple-collab/internal/common"
	"github.com/damoang/angple-collab/internal/domain"
	"github.com/damoang/angple-collab/internal/middleware"
	"github.com/damoang/angple-collab/internal/service"
	"github.com/gin-gonic/gin"
)

// LockHandler handles edit lock requests
type LockHandler struct {
	service service.LockService
}

// NewLockHandler creates a new LockHandler
func NewLockHandler(service service.LockService) *LockHandler {
	return &LockHandler{service: service}
}

// Acquire handles POST /api/v1/content/:id/lock
// @Summary 편집 잠금 획득
// @Description 콘텐츠 편집 잠금을 획득합니다. ttl_minutes를 생략하면 기본값을 씁니다
// @Tags locks
// @Accept json
// @Produce json
// @Param id path string true "콘텐츠 ID"
// @Param request body domain.AcquireLockRequest false "잠금 시간"
// @Success 200 {object} common.APIResponse{data=domain.EditLock}
// @Failure 404 {object} common.APIResponse
// @Failure 409 {object} common.APIResponse
// @Security BearerAuth
// @Router /content/{id}/lock [post]
func (h *LockHandler) Acquire(c *gin.Context) {
	var req domain.AcquireLockRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		bindError(c, err)
		return
	}
	if req.TTLMinutes < 0 {
		common.ErrorResponse(c, http.StatusBadRequest, "ttl_minutes는 0 이상이어야 합니다", nil)
		return
	}

	ttl := time.Duration(req.TTLMinutes) * time.Minute
	lock, err := h.service.AcquireLock(c.Request.Context(), c.Param("id"), middleware.GetActorID(c), ttl)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, common.APIResponse{Data: lock})
}

// Status handles GET /api/v1/content/:id/lock
// @Summary 편집 잠금 조회
// @Tags locks
// @Produce json
// @Param id path string true "콘텐츠 ID"
// @Success 200 {object} common.APIResponse{data=domain.EditLock}
// @Failure 404 {object} common.APIResponse
// @Security BearerAuth
// @Router /content/{id}/lock [get]
func (h *LockHandler) Status(c *gin.Context) {
	lock, err := h.service.GetLock(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, common.APIResponse{Data: lock})
}

// Release handles DELETE /api/v1/content/:id/lock
// @Summary 편집 잠금 해제
// @Tags locks
// @Produce json
// @Param id path string true "콘텐츠 ID"
// @Success 204
// @Failure 403 {object} common.APIResponse
// @Failure 404 {object} common.APIResponse
// @Security BearerAuth
// @Router /content/{id}/lock [delete]
func (h *LockHandler) Release(c *gin.Context) {
	if err := h.service.ReleaseLock(c.Request.Context(), c.Param("id"), middleware.GetActorID(c)); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Extend handles POST /api/v1/content/:id/lock/extend
// @Summary 편집 잠금 연장
// @Description 현재 시각부터 minutes만큼 잠금 만료를 연장합니다
// @Tags locks
// @Accept json
// @Produce json
// @Param id path string true "콘텐츠 ID"
// @Param request body domain.ExtendLockRequest true "연장 시간"
// @Success 200 {object} common.APIResponse{data=domain.EditLock}
// @Failure 403 {object} common.APIResponse
// @Failure 404 {object} common.APIResponse
// @Security BearerAuth
// @Router /content/{id}/lock/extend [post]
func (h *LockHandler) Extend(c *gin.Context) {
	var req domain.ExtendLockRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		bindError(c, err)
		return
	}
	if req.Minutes < 0 {
		common.ErrorResponse(c, http.StatusBadRequest, "minutes는 0 이상이어야 합니다", nil)
		return
	}

	ttl := time.Duration(req.Minutes) * time.Minute
	lock, err := h.service.ExtendLock(c.Request.Context(), c.Param("id"), middleware.GetActorID(c), ttl)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, common.APIResponse{Data: lock})
}
