package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-cimit-stub/internal/apperrors"
)

func statusFor(code apperrors.Code) int {
	switch code {
	case apperrors.CodeValidation:
		return http.StatusBadRequest
	case apperrors.CodeAlreadyExists:
		return http.StatusConflict
	case apperrors.CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as {"error": code, "msg": message}. Internal
// failures are logged and their detail is not exposed.
func (h *Handler) writeError(c *gin.Context, err error) {
	code := apperrors.CodeOf(err)
	status := statusFor(code)
	msg := apperrors.MessageOf(err)
	if status == http.StatusInternalServerError {
		h.logger.ErrorContext(c.Request.Context(), "request failed",
			"path", c.FullPath(), "user_id", c.Param("userId"), "error", err)
		msg = "internal error"
	}
	c.AbortWithStatusJSON(status, gin.H{"error": string(code), "msg": msg})
}
