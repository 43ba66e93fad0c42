package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/parkpal-server/internal/service"
	"github.com/parkpal-server/pkg/response"
)

const (
	// ContextKeyUserID is the key for user ID in gin context
	ContextKeyUserID = "user_id"
	// ContextKeyUsername is the key for username in gin context
	ContextKeyUsername = "username"
	// ContextKeyEmail is the key for email in gin context
	ContextKeyEmail = "email"
	// ContextKeyAdmin is the key for the admin flag in gin context
	ContextKeyAdmin = "admin"
)

// TokenValidator parses access tokens
type TokenValidator interface {
	ValidateToken(tokenString string) (*service.JWTClaims, error)
}

// AuthMiddleware creates a JWT authentication middleware.
// Browsers cannot set headers on a websocket handshake, so a token query
// parameter is accepted when the header is absent.
func AuthMiddleware(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var tokenString string

		authHeader := c.GetHeader("Authorization")
		switch {
		case authHeader != "":
			// Check Bearer prefix
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				response.Unauthorized(c, "invalid authorization header format")
				c.Abort()
				return
			}
			tokenString = parts[1]
		case c.Query("token") != "":
			tokenString = c.Query("token")
		default:
			response.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}

		claims, err := validator.ValidateToken(tokenString)
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}

		// Set user info in context
		c.Set(ContextKeyUserID, claims.UserID)
		c.Set(ContextKeyUsername, claims.Username)
		c.Set(ContextKeyEmail, claims.Email)
		c.Set(ContextKeyAdmin, claims.Admin)

		c.Next()
	}
}

// AdminRequired lets only admin tokens through. Must run after AuthMiddleware.
func AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !IsAdmin(c) {
			response.Unauthorized(c, "Only admin can access this endpoint")
			c.Abort()
			return
		}
		c.Next()
	}
}

// UserRequired lets only regular user tokens through. Must run after AuthMiddleware.
func UserRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsAdmin(c) {
			response.Unauthorized(c, "Login as user to access this endpoint")
			c.Abort()
			return
		}
		c.Next()
	}
}

// GetUserID gets the user ID from the gin context
func GetUserID(c *gin.Context) uint {
	userID, exists := c.Get(ContextKeyUserID)
	if !exists {
		return 0
	}
	return userID.(uint)
}

// GetUsername gets the username from the gin context
func GetUsername(c *gin.Context) string {
	return c.GetString(ContextKeyUsername)
}

// GetEmail gets the email from the gin context
func GetEmail(c *gin.Context) string {
	return c.GetString(ContextKeyEmail)
}

// IsAdmin reports whether the authenticated token carries the admin claim
func IsAdmin(c *gin.Context) bool {
	return c.GetBool(ContextKeyAdmin)
}
