// file: internal/transport/http/middleware/auth.go
package middleware

import (
	"net/http"
	"strings"

	"DataAgents/internal/service"

	"github.com/gin-gonic/gin"
)

const claimsKey = "dataagents.claims"

// JWTAuth 要求请求携带有效的 Bearer token
func JWTAuth(tokens *service.TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		tokenString, found := strings.CutPrefix(header, "Bearer ")
		if !found || tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "需要认证"})
			return
		}
		claims, err := tokens.Parse(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token 无效或已过期"})
			return
		}
		c.Set(claimsKey, claims)
		c.Next()
	}
}

// ClaimsFrom 返回 JWTAuth 放入上下文的载荷，未认证时返回 nil
func ClaimsFrom(c *gin.Context) *service.Claims {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*service.Claims)
	return claims
}
