package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/nexusportal/backend/pkg/auth"
	"github.com/nexusportal/backend/pkg/constants"
)

// IdentifyVisitor resolves the requesting visitor from a bearer token.
// The portal serves anonymous visitors, so a missing header passes
// through with no user in context; a present but invalid token is
// rejected rather than silently downgraded to anonymous.
func IdentifyVisitor() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader(constants.HeaderAuthorization)
		if authHeader == "" {
			c.Next()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			unauthorized(c, "Invalid authorization header format")
			return
		}

		claims, err := auth.ValidateToken(parts[1])
		if err != nil {
			unauthorized(c, err.Error())
			return
		}

		user := claims.User
		c.Set(constants.ContextKeyUser, &user)
		c.Next()
	}
}

func unauthorized(c *gin.Context, message string) {
	c.JSON(http.StatusUnauthorized, gin.H{
		constants.ResponseError:   "Unauthorized",
		constants.ResponseMessage: message,
		"code":                    "UNAUTHORIZED",
		constants.ResponseData:    nil,
	})
	c.Abort()
}
