package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/parkpal-server/internal/middleware"
	"github.com/parkpal-server/internal/service"
	"github.com/parkpal-server/pkg/response"
)

// respondError maps service error kinds onto HTTP statuses.
// Anything unclassified is logged and reported as a generic 500.
func respondError(c *gin.Context, err error) {
	msg := err.Error()
	switch {
	case errors.Is(err, service.ErrValidation):
		response.BadRequest(c, msg)
	case errors.Is(err, service.ErrNotFound):
		response.NotFound(c, msg)
	case errors.Is(err, service.ErrConflict):
		response.Conflict(c, msg)
	case errors.Is(err, service.ErrForbidden):
		response.Forbidden(c, msg)
	default:
		_ = c.Error(err)
		middleware.LogError("%s %s: %v", c.Request.Method, c.FullPath(), err)
		response.InternalError(c, "internal server error")
	}
}

// parseID reads a positive numeric path parameter
func parseID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		response.BadRequest(c, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}
