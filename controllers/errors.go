package controllers

import (
	"errors"
	"net/http"

	"scilems/lending"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ToHTTPStatus maps a domain error code to its HTTP status.
func ToHTTPStatus(code string) int {
	switch code {
	case lending.ErrCodeNotFound:
		return http.StatusNotFound
	case lending.ErrCodeInsufficientStock, lending.ErrCodeInvalidTransition:
		return http.StatusConflict
	case lending.ErrCodeValidation:
		return http.StatusBadRequest
	case lending.ErrCodeUnauthorized:
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

// respondError writes err as JSON. Infrastructure faults are logged and
// reported without detail.
func (s *Srv) respondError(c *gin.Context, err error) {
	var de *lending.DomainError
	if errors.As(err, &de) && ToHTTPStatus(de.Code) != http.StatusInternalServerError {
		c.JSON(ToHTTPStatus(de.Code), gin.H{"error": de.Message, "code": de.Code})
		return
	}
	s.Log.Error("request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.Error(err),
	)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error", "code": lending.ErrCodeInternal})
}
