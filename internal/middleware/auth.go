package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/damoang/angple-collab/internal/common"
	"github.com/damoang/angple-collab/pkg/jwt"
	"github.com/gin-gonic/gin"
)

// Context keys set by JWTAuth
const (
	ActorIDKey    = "actorID"
	ActorNameKey  = "actorName"
	ActorLevelKey = "actorLevel"
)

// JWTAuth authenticates the actor from a Bearer token. WebSocket upgrades
// may pass the token as ?access_token= since browsers cannot set headers there.
func JWTAuth(jwtManager *jwt.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, msg := bearerToken(c)
		if tokenString == "" {
			common.ErrorResponse(c, http.StatusUnauthorized, msg, nil)
			c.Abort()
			return
		}

		claims, err := jwtManager.VerifyToken(tokenString)
		if err != nil {
			if errors.Is(err, jwt.ErrExpiredToken) {
				common.ErrorResponse(c, http.StatusUnauthorized, "토큰이 만료되었습니다", err)
			} else {
				common.ErrorResponse(c, http.StatusUnauthorized, "유효하지 않은 토큰입니다", err)
			}
			c.Abort()
			return
		}

		c.Set(ActorIDKey, claims.UserID)
		c.Set(ActorNameKey, claims.Nickname)
		c.Set(ActorLevelKey, claims.Level)

		c.Next()
	}
}

// bearerToken returns the token, or "" with the message to respond with
func bearerToken(c *gin.Context) (string, string) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		if isWebSocketUpgrade(c.Request) {
			if token := c.Query("access_token"); token != "" {
				return token, ""
			}
		}
		return "", "인증 헤더가 없습니다"
	}

	scheme, token, ok := strings.Cut(authHeader, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", "인증 헤더 형식이 올바르지 않습니다"
	}
	return token, ""
}

func isWebSocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

// GetActorID returns the authenticated actor, or "" when anonymous
func GetActorID(c *gin.Context) string {
	return c.GetString(ActorIDKey)
}

// GetActorLevel returns the authenticated actor's member level
func GetActorLevel(c *gin.Context) int {
	return c.GetInt(ActorLevelKey)
}
