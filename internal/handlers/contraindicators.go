package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-cimit-stub/internal/pending"
	"github.com/imrishuroy/go-cimit-stub/internal/validation"
)

func (h *Handler) createContraIndicators(c *gin.Context) {
	userID := c.Param("userId")
	batch, err := validation.BindBatch(c, h.validate)
	if err != nil {
		// BindBatch already wrote a 400
		return
	}

	records, err := h.cis.CreateAll(c.Request.Context(), userID, batch.Inputs(userID))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, records)
}

func (h *Handler) updateContraIndicators(c *gin.Context) {
	userID := c.Param("userId")
	batch, err := validation.BindBatch(c, h.validate)
	if err != nil {
		return
	}

	records, err := h.cis.UpdateAll(c.Request.Context(), userID, batch.Inputs(userID))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

func (h *Handler) listContraIndicators(c *gin.Context) {
	records, err := h.cis.GetAll(c.Request.Context(), c.Param("userId"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

func (h *Handler) createMitigations(c *gin.Context) {
	h.mitigate(c, pending.MethodCreate)
}

func (h *Handler) updateMitigations(c *gin.Context) {
	h.mitigate(c, pending.MethodUpdate)
}

// mitigate applies the request to the CI, or records it in the pending
// ledger when it names the credential that asserted it.
func (h *Handler) mitigate(c *gin.Context, method pending.RequestMethod) {
	ctx := c.Request.Context()
	userID, code := c.Param("userId"), c.Param("ci")

	var req validation.MitigationRequest
	if err := validation.BindAndValidate(c, &req, h.validate); err != nil {
		return
	}

	if req.VcJti != "" {
		rec, err := h.pending.RecordPendingMitigation(ctx, pending.Record{
			VcJti:           req.VcJti,
			UserID:          userID,
			MitigatedCi:     code,
			MitigationCodes: req.Mitigations,
			RequestMethod:   method,
		})
		if err != nil {
			h.writeError(c, err)
			return
		}
		h.metrics.IncrementPendingMitigations(ctx, string(method))
		h.logger.InfoContext(ctx, "pending mitigation recorded", "user_id", userID, "ci", code, "vc_jti", req.VcJti)
		c.JSON(http.StatusAccepted, rec)
		return
	}

	apply, status := h.cis.UpdateMitigations, http.StatusOK
	if method == pending.MethodCreate {
		apply, status = h.cis.CreateMitigations, http.StatusCreated
	}
	rec, err := apply(ctx, userID, code, req.Mitigations)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(status, rec)
}
