package handler

import (
	"net/http"

	"github.com/damoang/angple-collab/internal/common"
	"github.com/damoang/angple-collab/internal/domain"
	"github.com/damoang/angple-collab/internal/middleware"
	"github.com/damoang/angple-collab/internal/service"
	"github.com/damoang/angple-collab/pkg/ginutil"
	"github.com/gin-gonic/gin"
)

// VersionHandler handles version history requests
type VersionHandler struct {
	versions service.VersionService
	saver    service.SaveCoordinator
}

// NewVersionHandler creates a new VersionHandler
func NewVersionHandler(versions service.VersionService, saver service.SaveCoordinator) *VersionHandler {
	return &VersionHandler{versions: versions, saver: saver}
}

// List handles GET /api/v1/content/:id/versions
// @Summary 버전 목록 조회
// @Description 최신 버전부터 버전 이력을 조회합니다
// @Tags versions
// @Produce json
// @Param id path string true "콘텐츠 ID"
// @Param limit query int false "페이지 크기" default(20)
// @Param offset query int false "시작 위치" default(0)
// @Success 200 {object} common.APIResponse{data=[]domain.ContentVersion}
// @Failure 404 {object} common.APIResponse
// @Security BearerAuth
// @Router /content/{id}/versions [get]
func (h *VersionHandler) List(c *gin.Context) {
	limit := ginutil.QueryInt(c, "limit", 0)
	offset := ginutil.QueryInt(c, "offset", 0)

	versions, meta, err := h.versions.ListVersions(c.Request.Context(), c.Param("id"), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	common.SuccessResponse(c, versions, meta)
}

// Get handles GET /api/v1/content/:id/versions/:n
// @Summary 버전 조회
// @Tags versions
// @Produce json
// @Param id path string true "콘텐츠 ID"
// @Param n path int true "버전 번호"
// @Success 200 {object} common.APIResponse{data=domain.ContentVersion}
// @Failure 400 {object} common.APIResponse
// @Failure 404 {object} common.APIResponse
// @Security BearerAuth
// @Router /content/{id}/versions/{n} [get]
func (h *VersionHandler) Get(c *gin.Context) {
	n, err := ginutil.ParamPositiveInt(c, "n")
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "잘못된 버전 번호입니다", err)
		return
	}

	version, err := h.versions.GetVersion(c.Request.Context(), c.Param("id"), n)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, common.APIResponse{Data: version})
}

// Compare handles GET /api/v1/content/:id/versions/compare?v1=&v2=
// @Summary 버전 비교
// @Description 두 버전의 필드별 차이와 본문 줄 단위 차이를 보여줍니다
// @Tags versions
// @Produce json
// @Param id path string true "콘텐츠 ID"
// @Param v1 query int true "기준 버전"
// @Param v2 query int true "비교 버전"
// @Success 200 {object} common.APIResponse{data=domain.VersionComparison}
// @Failure 400 {object} common.APIResponse
// @Failure 404 {object} common.APIResponse
// @Security BearerAuth
// @Router /content/{id}/versions/compare [get]
func (h *VersionHandler) Compare(c *gin.Context) {
	v1, err := ginutil.QueryPositiveInt(c, "v1")
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "v1이 올바르지 않습니다", err)
		return
	}
	v2, err := ginutil.QueryPositiveInt(c, "v2")
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "v2가 올바르지 않습니다", err)
		return
	}

	cmp, err := h.versions.CompareVersions(c.Request.Context(), c.Param("id"), v1, v2)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, common.APIResponse{Data: cmp})
}

// Restore handles POST /api/v1/content/:id/versions/:n/restore
// @Summary 버전 복원
// @Description 지정한 버전의 내용을 새 버전으로 기록합니다. 기존 이력은 바뀌지 않습니다
// @Tags versions
// @Produce json
// @Param id path string true "콘텐츠 ID"
// @Param n path int true "복원할 버전 번호"
// @Success 201 {object} common.APIResponse{data=domain.ContentVersion}
// @Failure 404 {object} common.APIResponse
// @Failure 409 {object} common.APIResponse
// @Security BearerAuth
// @Router /content/{id}/versions/{n}/restore [post]
func (h *VersionHandler) Restore(c *gin.Context) {
	n, err := ginutil.ParamPositiveInt(c, "n")
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "잘못된 버전 번호입니다", err)
		return
	}

	version, err := h.saver.RestoreContent(c.Request.Context(), c.Param("id"), n, middleware.GetActorID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	common.CreatedResponse(c, version)
}

// Cleanup handles POST /api/v1/content/:id/versions/cleanup
// @Summary 오래된 버전 정리
// @Description 최근 keep개 버전과 복원 원본을 남기고 삭제합니다 (관리자 전용)
// @Tags versions
// @Accept json
// @Produce json
// @Param id path string true "콘텐츠 ID"
// @Param request body domain.CleanupRequest true "보존 개수"
// @Success 200 {object} common.APIResponse{data=domain.CleanupResponse}
// @Failure 403 {object} common.APIResponse
// @Security BearerAuth
// @Router /content/{id}/versions/cleanup [post]
func (h *VersionHandler) Cleanup(c *gin.Context) {
	var req domain.CleanupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	deleted, err := h.versions.CleanupOldVersions(c.Request.Context(), c.Param("id"), req.Keep)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, common.APIResponse{Data: domain.CleanupResponse{Deleted: deleted}})
}
