package middleware

import (
	"net/http"
	"strings"

	"resto_platform_backend/internal/models"
	"resto_platform_backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

// PrincipalKey is the gin context key the authenticated principal is stored
// under.
const PrincipalKey = "principal"

// AuthMiddleware creates a Gin middleware for JWT authentication. It parses
// the bearer token into a Principal and stores it in the request context;
// every downstream handler reads tenant scope from there, never from the URL.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			utils.RespondWithError(c, utils.NewAPIError(http.StatusUnauthorized, utils.ErrCodeUnauthorized, "Authorization header required", ""))
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			utils.RespondWithError(c, utils.NewAPIError(http.StatusUnauthorized, utils.ErrCodeUnauthorized, "Invalid authorization header format. Use Bearer <token>", ""))
			c.Abort()
			return
		}

		claims, err := utils.ValidateToken(parts[1])
		if err != nil {
			utils.RespondWithError(c, utils.NewAPIError(http.StatusUnauthorized, utils.ErrCodeUnauthorized, "Invalid or expired token", err.Error()))
			c.Abort()
			return
		}

		c.Set(PrincipalKey, models.Principal{
			UserID:      claims.UserID,
			Email:       claims.Email,
			ChainID:     claims.ChainID,
			BranchID:    claims.BranchID,
			Role:        claims.Role,
			Permissions: claims.Permissions,
		})

		c.Next()
	}
}

// GetPrincipal extracts the authenticated principal set by AuthMiddleware.
func GetPrincipal(c *gin.Context) (models.Principal, bool) {
	v, exists := c.Get(PrincipalKey)
	if !exists {
		return models.Principal{}, false
	}
	p, ok := v.(models.Principal)
	return p, ok
}

// RoleAuthMiddleware creates a Gin middleware for role-based authorization.
// Chain owners pass every role gate; their scope check happens per branch in
// the service layer.
func RoleAuthMiddleware(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := GetPrincipal(c)
		if !ok {
			utils.RespondWithError(c, utils.NewAPIError(http.StatusForbidden, utils.ErrCodeForbidden, "Principal not found in context. Ensure AuthMiddleware runs first.", ""))
			c.Abort()
			return
		}

		if p.IsChainOwner() {
			c.Next()
			return
		}

		for _, r := range allowedRoles {
			if strings.EqualFold(p.Role, r) {
				c.Next()
				return
			}
		}

		utils.RespondWithError(c, utils.NewAPIError(http.StatusForbidden, utils.ErrCodeForbidden, "You do not have permission to access this resource. Required roles: "+strings.Join(allowedRoles, ", "), ""))
		c.Abort()
	}
}
