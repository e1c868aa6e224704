package handler

import (
	"net/http"

	"github.com/damoang/angple-collab/internal/middleware"
	"github.com/damoang/angple-collab/internal/service"
	"github.com/damoang/angple-collab/internal/ws"
	"github.com/damoang/angple-collab/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// EventHandler streams lock and version events of a content item over WebSocket
type EventHandler struct {
	hub            *ws.Hub
	contents       service.ContentService
	allowedOrigins []string
	upgrader       websocket.Upgrader
}

// NewEventHandler creates a new EventHandler. An empty allowedOrigins accepts any origin.
func NewEventHandler(hub *ws.Hub, contents service.ContentService, allowedOrigins []string) *EventHandler {
	h := &EventHandler{
		hub:            hub,
		contents:       contents,
		allowedOrigins: allowedOrigins,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// checkOrigin validates the request origin against allowed origins
func (h *EventHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.allowedOrigins) == 0 {
		return true
	}
	for _, allowed := range h.allowedOrigins {
		if allowed == "*" || origin == allowed {
			return true
		}
	}
	return false
}

// Watch handles GET /api/v1/content/:id/events
// @Summary 편집 이벤트 구독 (WebSocket)
// @Description 잠금 획득/해제/연장과 버전 저장/복원 이벤트를 실시간으로 받습니다
// @Tags content
// @Param id path string true "콘텐츠 ID"
// @Success 101
// @Failure 404 {object} common.APIResponse
// @Router /content/{id}/events [get]
func (h *EventHandler) Watch(c *gin.Context) {
	contentID := c.Param("id")
	if _, err := h.contents.GetContent(c.Request.Context(), contentID); err != nil {
		respondError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error
		return
	}

	logger.WithComponent("events").Debug().
		Str("content_id", contentID).
		Str("actor", middleware.GetActorID(c)).
		Msg("subscriber joined")
	ws.NewClient(h.hub, conn, contentID).Serve()
}
