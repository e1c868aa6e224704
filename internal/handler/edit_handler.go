package handler

import (
	"net/http"

	"github.com/damoang/angple-collab/internal/common"
	"github.com/damoang/angple-collab/internal/domain"
	"github.com/damoang/angple-collab/internal/middleware"
	"github.com/damoang/angple-collab/internal/service"
	"github.com/gin-gonic/gin"
)

// EditHandler handles conflict checks and saves
type EditHandler struct {
	detector service.ConflictDetector
	saver    service.SaveCoordinator
}

// NewEditHandler creates a new EditHandler
func NewEditHandler(detector service.ConflictDetector, saver service.SaveCoordinator) *EditHandler {
	return &EditHandler{detector: detector, saver: saver}
}

// DetectConflicts handles POST /api/v1/content/:id/detect-conflicts
// @Summary 충돌 검사
// @Description base_version 이후 서버 변경과 로컬 편집을 필드별로 비교합니다. 상태를 바꾸지 않습니다
// @Tags edit
// @Accept json
// @Produce json
// @Param id path string true "콘텐츠 ID"
// @Param request body domain.DetectConflictsRequest true "편집 내용"
// @Success 200 {object} common.APIResponse{data=domain.ConflictReport}
// @Failure 400 {object} common.APIResponse
// @Failure 404 {object} common.APIResponse
// @Security BearerAuth
// @Router /content/{id}/detect-conflicts [post]
func (h *EditHandler) DetectConflicts(c *gin.Context) {
	var req domain.DetectConflictsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	report, err := h.detector.DetectConflicts(c.Request.Context(), c.Param("id"), req.Snapshot(), req.BaseVersion)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, common.APIResponse{Data: report})
}

// Save handles POST /api/v1/content/:id/save
// @Summary 콘텐츠 저장
// @Description 잠금 보유자의 편집을 새 버전으로 저장합니다. 충돌 시 force_overwrite 없이는 거부됩니다
// @Tags edit
// @Accept json
// @Produce json
// @Param id path string true "콘텐츠 ID"
// @Param request body domain.SaveContentRequest true "편집 내용"
// @Success 201 {object} common.APIResponse{data=domain.ContentVersion}
// @Failure 409 {object} common.APIResponse
// @Failure 423 {object} common.APIResponse
// @Failure 503 {object} common.APIResponse
// @Security BearerAuth
// @Router /content/{id}/save [post]
func (h *EditHandler) Save(c *gin.Context) {
	var req domain.SaveContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	version, err := h.saver.SaveContent(c.Request.Context(), c.Param("id"), middleware.GetActorID(c),
		req.Snapshot(), req.BaseVersion, req.ForceOverwrite)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, common.APIResponse{Data: version})
}
