// internal/pkg/response/response.go
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response defines the standard PipX API envelope.
type Response struct {
	StatusCode   int         `json:"statusCode"`
	Message      string      `json:"message"`
	Data         interface{} `json:"data,omitempty"`
	HasNextPage  *bool       `json:"hasNextPage,omitempty"`
	Token        string      `json:"token,omitempty"`
	UserType     string      `json:"user_type,omitempty"`
	RefreshToken string      `json:"refresh_token,omitempty"`
	Error        string      `json:"error,omitempty"`
}

// Success sends a successful response with a message and optional data.
func Success(c *gin.Context, status int, message string, data interface{}) {
	if status == 0 {
		status = http.StatusOK
	}

	c.JSON(status, Response{
		StatusCode: status,
		Message:    message,
		Data:       data,
	})
}

// Page sends one page of a list.
func Page(c *gin.Context, message string, data interface{}, hasNextPage bool) {
	c.JSON(http.StatusOK, Response{
		StatusCode:  http.StatusOK,
		Message:     message,
		Data:        data,
		HasNextPage: &hasNextPage,
	})
}

// Session sends a login style response carrying the token set.
func Session(c *gin.Context, status int, message, token, userType, refreshToken string) {
	c.JSON(status, Response{
		StatusCode:   status,
		Message:      message,
		Token:        token,
		UserType:     userType,
		RefreshToken: refreshToken,
	})
}

// NoContent answers 204 with an empty body.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Error sends a standardized error response.
func Error(c *gin.Context, code int, message string, err error, data ...interface{}) {
	// Abort first so later handlers do not write
	c.Abort()

	response := Response{
		StatusCode: code,
		Message:    message,
	}

	if err != nil {
		response.Error = err.Error()
	}

	if len(data) > 0 {
		response.Data = data[0]
	}

	c.JSON(code, response)
}

// ValidationError sends a 400 Bad Request response for invalid input.
func ValidationError(c *gin.Context, message string, err error) {
	Error(c, http.StatusBadRequest, message, err)
}

// Unauthorized sends a 401 Unauthorized response.
func Unauthorized(c *gin.Context, message string) {
	Error(c, http.StatusUnauthorized, message, nil)
}

// Forbidden sends a 403 Forbidden response.
func Forbidden(c *gin.Context, message string) {
	Error(c, http.StatusForbidden, message, nil)
}

// NotFound sends a 404 Not Found response.
func NotFound(c *gin.Context, message string) {
	Error(c, http.StatusNotFound, message, nil)
}
