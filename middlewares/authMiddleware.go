package middlewares

import (
	"context"
	"net/http"
	"strings"

	"bitbucket.org/mmdatafocus/receivables_backend/config"
	"bitbucket.org/mmdatafocus/receivables_backend/models"
	"bitbucket.org/mmdatafocus/receivables_backend/utils"
	"github.com/gin-gonic/gin"
)

type authString string

func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.Request.Header.Get("Authorization")

		if auth == "" {
			c.Next()
			return
		}

		bearer := "Bearer "
		if !strings.HasPrefix(auth, bearer) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}
		auth = auth[len(bearer):]

		validate, err := utils.JwtValidate(auth)
		if err != nil || !validate.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		customClaim, _ := validate.Claims.(*utils.JwtCustomClaim)

		ctx := context.WithValue(c.Request.Context(), authString("auth"), customClaim)
		ctx = utils.SetUserIdInContext(ctx, customClaim.ID)
		ctx = utils.SetIsAdminInContext(ctx, customClaim.Role == string(models.UserRoleAdmin))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func CtxValue(ctx context.Context) *utils.JwtCustomClaim {
	raw, _ := ctx.Value(authString("auth")).(*utils.JwtCustomClaim)
	return raw
}

// RequireSession aborts requests that carry neither a redis token session nor
// a valid JWT claim.
func RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if _, ok := utils.GetUsernameFromContext(ctx); ok {
			c.Next()
			return
		}
		if userId, ok := utils.GetUserIdFromContext(ctx); ok && userId != 0 {
			c.Next()
			return
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		c.Abort()
	}
}

// RequireAdmin gates destructive routes. JWT requests carry the role in the
// claim; token sessions resolve it from the users table.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		if isAdmin, ok := utils.GetIsAdminFromContext(ctx); ok {
			if isAdmin {
				c.Next()
				return
			}
			c.JSON(http.StatusForbidden, gin.H{"error": "admin role required"})
			c.Abort()
			return
		}

		if username, ok := utils.GetUsernameFromContext(ctx); ok && username != "" {
			var user models.User
			err := config.GetDB().WithContext(ctx).Where("username = ?", username).Take(&user).Error
			if err == nil && user.Role == models.UserRoleAdmin {
				c.Request = c.Request.WithContext(utils.SetIsAdminInContext(ctx, true))
				c.Next()
				return
			}
		}

		c.JSON(http.StatusForbidden, gin.H{"error": "admin role required"})
		c.Abort()
	}
}
