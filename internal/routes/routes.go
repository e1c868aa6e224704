package routes

import (
	"github.com/damoang/angple-collab/internal/handler"
	"github.com/damoang/angple-collab/internal/middleware"
	"github.com/damoang/angple-collab/pkg/jwt"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// Handlers groups the API handlers registered by Setup
type Handlers struct {
	Content  *handler.ContentHandler
	Versions *handler.VersionHandler
	Locks    *handler.LockHandler
	Edit     *handler.EditHandler
	// Events is optional; nil leaves the WebSocket feed unmounted
	Events *handler.EventHandler
}

// Deps are the cross-cutting collaborators of the routes
type Deps struct {
	JWT         *jwt.Manager
	Permissions middleware.EditPermissionChecker
	// Redis enables write rate limiting when set
	Redis     *redis.Client
	RateLimit middleware.RateLimitConfig
}

// Setup configures all API routes
func Setup(router *gin.Engine, h Handlers, deps Deps) {
	permissions := deps.Permissions
	if permissions == nil {
		permissions = middleware.AllowAuthenticated
	}

	api := router.Group("/api/v1", middleware.JWTAuth(deps.JWT))

	api.POST("/content", h.Content.Create)

	content := api.Group("/content/:id")
	content.GET("", h.Content.Get)

	// Version history (읽기 전용은 인증만 필요)
	content.GET("/versions", h.Versions.List)
	content.GET("/versions/compare", h.Versions.Compare)
	content.GET("/versions/:n", h.Versions.Get)
	content.GET("/lock", h.Locks.Status)
	content.POST("/detect-conflicts", h.Edit.DetectConflicts)
	if h.Events != nil {
		content.GET("/events", h.Events.Watch)
	}

	// Writes require edit permission on the content
	edit := content.Group("",
		middleware.RequireEditPermission(permissions),
		middleware.RateLimitPerUser(deps.Redis, deps.RateLimit),
	)
	edit.POST("/lock", h.Locks.Acquire)
	edit.DELETE("/lock", h.Locks.Release)
	edit.POST("/lock/extend", h.Locks.Extend)
	edit.POST("/save", h.Edit.Save)
	edit.POST("/versions/:n/restore", h.Versions.Restore)

	// Maintenance (관리자)
	content.POST("/versions/cleanup", middleware.RequireAdmin(), h.Versions.Cleanup)
}
