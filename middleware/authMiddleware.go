package middleware

import (
	"net/http"
	"strings"

	"scilems/utils"

	"github.com/gin-gonic/gin"
)

const TokenCookie = "token"

// AuthMiddleware accepts a token from the "token" cookie or an
// "Authorization: Bearer" header, and requires its role to be one of roles.
func AuthMiddleware(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(TokenCookie)
		if err != nil || token == "" {
			authHeader := c.GetHeader("Authorization")
			if authHeader == "" {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization token not provided"})
				c.Abort()
				return
			}
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid Authorization header format"})
				c.Abort()
				return
			}
			token = parts[1]
		}

		claims, err := utils.ValidateToken(token)
		if err != nil || !hasRole(roles, claims.Role) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization token"})
			c.Abort()
			return
		}

		c.Set("clientID", claims.ID)
		c.Set("role", claims.Role)

		c.Next()
	}
}

func hasRole(roles []string, role string) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
