package middleware

import (
	"net/http"
	"time"

	"github.com/damoang/angple-collab/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	requestIDHeader = "X-Request-ID"
	RequestIDKey    = "requestID"
)

// RequestLogger writes one structured line per request and propagates X-Request-ID.
// Lock and version conflicts are ordinary outcomes for editors and log at info.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(RequestIDKey, requestID)
		c.Header(requestIDHeader, requestID)

		c.Next()

		if unobserved(c.Request.URL.Path) {
			return
		}

		status := c.Writer.Status()
		log := logger.WithRequestID(requestID)
		var event *zerolog.Event
		switch {
		case status >= http.StatusInternalServerError:
			event = log.Error()
		case status == http.StatusConflict || status == http.StatusLocked:
			event = log.Info()
		case status >= http.StatusBadRequest:
			event = log.Warn()
		default:
			event = log.Info()
		}

		if id := c.Param("id"); id != "" {
			event = event.Str("content_id", id)
		}
		if len(c.Errors) > 0 {
			event = event.Str("errors", c.Errors.String())
		}
		event.
			Str("method", c.Request.Method).
			Str("route", c.FullPath()).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("actor", GetActorID(c)).
			Str("client_ip", c.ClientIP()).
			Msg("request")
	}
}

// GetRequestID returns the request ID assigned by RequestLogger
func GetRequestID(c *gin.Context) string {
	return c.GetString(RequestIDKey)
}
