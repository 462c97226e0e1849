package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-cimit-stub/internal/apperrors"
	"github.com/imrishuroy/go-cimit-stub/internal/credential"
	"github.com/imrishuroy/go-cimit-stub/internal/pending"
	"github.com/imrishuroy/go-cimit-stub/internal/validation"
)

// issueCredential answers {"vc": token}. Any failure past request
// validation is rendered as the bare Failure sentinel.
func (h *Handler) issueCredential(c *gin.Context) {
	ctx := c.Request.Context()

	var req validation.CredentialRequest
	if err := validation.BindAndValidate(c, &req, h.validate); err != nil {
		return
	}

	token, err := h.issuer.Issue(ctx, req.UserID)
	if err != nil {
		h.logger.ErrorContext(ctx, "credential issuance failed",
			"user_id", req.UserID, "code", string(apperrors.CodeOf(err)), "error", err)
		c.String(http.StatusInternalServerError, credential.FailureSentinel)
		return
	}
	h.metrics.IncrementCredentialsIssued(ctx)
	c.JSON(http.StatusOK, gin.H{"vc": token})
}

func (h *Handler) submitMitigatingCredential(c *gin.Context) {
	ctx := c.Request.Context()

	var sub pending.Submission
	if err := c.ShouldBindJSON(&sub); err != nil || h.validate.Struct(sub) != nil {
		c.JSON(http.StatusBadRequest, gin.H{"result": pending.ResultFail})
		return
	}

	if err := h.submitter.Submit(ctx, sub); err != nil {
		status := statusFor(apperrors.CodeOf(err))
		if status == http.StatusInternalServerError {
			h.logger.ErrorContext(ctx, "mitigating credential submission failed", "error", err)
		}
		c.JSON(status, gin.H{"result": pending.ResultFail})
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": pending.ResultSuccess})
}
