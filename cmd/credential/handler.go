package main

import (
	"context"
	"log/slog"

	"github.com/imrishuroy/go-cimit-stub/internal/apperrors"
	"github.com/imrishuroy/go-cimit-stub/internal/credential"
	"github.com/imrishuroy/go-cimit-stub/internal/metrics"
)

type issuer interface {
	Issue(ctx context.Context, userID string) (string, error)
}

// Handler answers direct Lambda invocations for a user's credential.
type Handler struct {
	issuer  issuer
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewHandler(iss issuer, m *metrics.Metrics, logger *slog.Logger) *Handler {
	return &Handler{issuer: iss, metrics: m, logger: logger}
}

// Handle never returns an error to the runtime: failures become the
// Failure sentinel string.
func (h *Handler) Handle(ctx context.Context, req IssueRequest) (any, error) {
	token, err := h.issuer.Issue(ctx, req.UserID)
	if err != nil {
		h.logger.ErrorContext(ctx, "credential issuance failed",
			"user_id", req.UserID, "code", string(apperrors.CodeOf(err)), "error", err)
		return credential.FailureSentinel, nil
	}
	h.metrics.IncrementCredentialsIssued(ctx)
	return IssueResponse{VC: token}, nil
}
