package handler

import (
	"net/http"

	"github.com/damoang/angple-collab/internal/common"
	"github.com/damoang/angple-collab/internal/domain"
	"github.com/damoang/angple-collab/internal/middleware"
	"github.com/damoang/angple-collab/internal/service"
	"github.com/gin-gonic/gin"
)

// ContentHandler handles content record requests
type ContentHandler struct {
	service service.ContentService
}

// NewContentHandler creates a new ContentHandler
func NewContentHandler(service service.ContentService) *ContentHandler {
	return &ContentHandler{service: service}
}

// Create handles POST /api/v1/content
// @Summary 콘텐츠 생성
// @Description 새 콘텐츠를 만들고 버전 1을 기록합니다
// @Tags content
// @Accept json
// @Produce json
// @Param request body domain.CreateContentRequest true "콘텐츠 내용"
// @Success 201 {object} common.APIResponse{data=domain.Content}
// @Failure 400 {object} common.APIResponse
// @Failure 401 {object} common.APIResponse
// @Security BearerAuth
// @Router /content [post]
func (h *ContentHandler) Create(c *gin.Context) {
	var req domain.CreateContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	content, err := h.service.CreateContent(c.Request.Context(), &req, middleware.GetActorID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	common.CreatedResponse(c, content)
}

// Get handles GET /api/v1/content/:id
// @Summary 콘텐츠 조회
// @Description 콘텐츠의 현재 상태와 현재 버전 번호를 조회합니다
// @Tags content
// @Produce json
// @Param id path string true "콘텐츠 ID"
// @Success 200 {object} common.APIResponse{data=domain.Content}
// @Failure 404 {object} common.APIResponse
// @Security BearerAuth
// @Router /content/{id} [get]
func (h *ContentHandler) Get(c *gin.Context) {
	content, err := h.service.GetContent(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, common.APIResponse{Data: content})
}
