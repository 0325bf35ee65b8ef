// internal/middleware/helpers.go
package middleware

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	ctxUserID    = "user_id"
	ctxUserType  = "user_type"
	ctxJTI       = "jti"
	ctxDevice    = "device"
	ctxExpiresAt = "expires_at"
)

var ErrSessionRevoked = errors.New("session has been logged out")

// GetUserID gets the authenticated user id from context
func GetUserID(c *gin.Context) (string, bool) {
	return getString(c, ctxUserID)
}

// MustGetUserID gets user ID from context or panics
func MustGetUserID(c *gin.Context) string {
	id, exists := GetUserID(c)
	if !exists {
		panic("user_id not found in context")
	}
	return id
}

// GetJTI gets the token id from context
func GetJTI(c *gin.Context) (string, bool) {
	return getString(c, ctxJTI)
}

// MustGetJTI gets JTI from context or panics
func MustGetJTI(c *gin.Context) string {
	jti, exists := GetJTI(c)
	if !exists {
		panic("jti not found in context")
	}
	return jti
}

func GetUserType(c *gin.Context) string {
	t, _ := getString(c, ctxUserType)
	return t
}

func GetDevice(c *gin.Context) string {
	d, _ := getString(c, ctxDevice)
	return d
}

// GetExpiresAt returns the expiry of the access token in use.
func GetExpiresAt(c *gin.Context) (time.Time, bool) {
	v, exists := c.Get(ctxExpiresAt)
	if !exists {
		return time.Time{}, false
	}
	t, ok := v.(time.Time)
	return t, ok
}

// IsAuthenticated checks if request is authenticated
func IsAuthenticated(c *gin.Context) bool {
	_, exists := c.Get(ctxUserID)
	return exists
}

func getString(c *gin.Context, key string) (string, bool) {
	v, exists := c.Get(key)
	if !exists {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
