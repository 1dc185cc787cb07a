package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/virtualidentityag/caritas-rework-onlineBeratung-videoService/internal/domain"
	"github.com/virtualidentityag/caritas-rework-onlineBeratung-videoService/pkg/jwt"
	"github.com/virtualidentityag/caritas-rework-onlineBeratung-videoService/pkg/response"
)

// HeaderRCUserID carries the caller's Rocket.Chat user id
const HeaderRCUserID = "RCUserId"

const callerKey = "caller"

// AuthMiddleware validates the bearer token and stores the resulting
// caller in the Gin context. Websocket upgrades may pass the token as the
// access_token query parameter since browsers cannot set headers there.
func AuthMiddleware(jwtManager *jwt.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c)
		if !ok {
			response.Unauthorized(c, "Authorization header required")
			c.Abort()
			return
		}

		claims, err := jwtManager.ValidateToken(tokenString)
		if err != nil {
			response.Unauthorized(c, "Invalid token")
			c.Abort()
			return
		}

		role := domain.UserRoleAsker
		if claims.HasRole(jwt.RoleConsultant) {
			role = domain.UserRoleConsultant
		}

		c.Set("user_id", claims.UserID)
		c.Set("username", claims.Username)
		c.Set("roles", claims.Roles)
		c.Set(callerKey, &domain.Caller{
			UserID:      claims.UserID,
			Username:    claims.Username,
			RCUserID:    c.GetHeader(HeaderRCUserID),
			AccessToken: tokenString,
			Role:        role,
		})
		c.Next()
	}
}

// RequireRole rejects callers whose token lacks every one of roles
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		granted, _ := c.Get("roles")
		have, _ := granted.([]string)
		for _, want := range roles {
			for _, r := range have {
				if r == want {
					c.Next()
					return
				}
			}
		}
		response.Forbidden(c, "Insufficient role")
		c.Abort()
	}
}

// CallerFromContext returns the caller stored by AuthMiddleware
func CallerFromContext(c *gin.Context) (*domain.Caller, bool) {
	v, exists := c.Get(callerKey)
	if !exists {
		return nil, false
	}
	caller, ok := v.(*domain.Caller)
	return caller, ok
}

func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		if websocketUpgrade(c) {
			if token := c.Query("access_token"); token != "" {
				return token, true
			}
		}
		return "", false
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func websocketUpgrade(c *gin.Context) bool {
	return strings.EqualFold(c.GetHeader("Upgrade"), "websocket")
}
