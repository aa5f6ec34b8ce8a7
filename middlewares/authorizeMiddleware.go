package middlewares

import (
	"context"
	"net/http"
	"os"
	"strconv"
	"time"

	"bitbucket.org/nordfoods/mrp_backend/config"
	"bitbucket.org/nordfoods/mrp_backend/models"
	"bitbucket.org/nordfoods/mrp_backend/utils"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// retrieve user from redis or db
func getSessionUser(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	exists, err := config.GetRedisObject("User:"+username, &user)
	if err != nil {
		return nil, err
	}

	if !exists {

		db := config.GetDB()
		if err := db.WithContext(ctx).Model(&models.User{}).Where("username = ?", username).Take(&user).Error; err != nil {
			return nil, err
		}

		token_lifespan, err := strconv.Atoi(os.Getenv("TOKEN_HOUR_LIFESPAN"))
		if err != nil {
			return nil, err
		}

		if err := config.SetRedisObject("User:"+user.Username, &user, time.Duration(token_lifespan)*time.Hour); err != nil {
			return nil, err
		}
	}
	return &user, nil
}

// Authorize resolves the session user (SessionMiddleware puts the username in
// context) and attaches business/user identity for the model layer. Requests
// without a valid session are rejected.
func Authorize() gin.HandlerFunc {
	return func(c *gin.Context) {
		username, ok := utils.GetUsernameFromContext(c.Request.Context())
		if !ok || username == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		user, err := getSessionUser(c.Request.Context(), username)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				// destroy current session if user has been deleted
				models.Logout(c.Request.Context())
			}
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}
		if !*user.IsActive {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "user is disabled"})
			c.Abort()
			return
		}

		ctx := context.WithValue(c.Request.Context(), utils.ContextKeyBusinessId, user.BusinessId)
		ctx = context.WithValue(ctx, utils.ContextKeyUserId, user.ID)
		ctx = context.WithValue(ctx, utils.ContextKeyUserName, user.Name)
		ctx = utils.SetIsAdminInContext(ctx, user.Role == models.UserRoleAdmin)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// AdminOnly gates ops endpoints. Must run after Authorize.
func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		isAdmin, ok := utils.GetIsAdminFromContext(c.Request.Context())
		if !ok || !isAdmin {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}
		c.Next()
	}
}
