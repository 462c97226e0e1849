package handlers

import (
	"context"
	"log/slog"

	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/imrishuroy/go-cimit-stub/internal/contraindicators"
	"github.com/imrishuroy/go-cimit-stub/internal/metrics"
	"github.com/imrishuroy/go-cimit-stub/internal/pending"
	"github.com/imrishuroy/go-cimit-stub/internal/validation"
)

// ContraIndicatorStore is the repository surface the API needs.
type ContraIndicatorStore interface {
	CreateAll(ctx context.Context, userID string, inputs []contraindicators.Input) ([]contraindicators.Record, error)
	UpdateAll(ctx context.Context, userID string, inputs []contraindicators.Input) ([]contraindicators.Record, error)
	GetAll(ctx context.Context, userID string) ([]contraindicators.Record, error)
	CreateMitigations(ctx context.Context, userID, code string, mitigations []string) (*contraindicators.Record, error)
	UpdateMitigations(ctx context.Context, userID, code string, mitigations []string) (*contraindicators.Record, error)
}

type PendingRecorder interface {
	RecordPendingMitigation(ctx context.Context, rec pending.Record) (*pending.Record, error)
}

type CredentialIssuer interface {
	Issue(ctx context.Context, userID string) (string, error)
}

type CredentialSubmitter interface {
	Submit(ctx context.Context, sub pending.Submission) error
}

// HandlerConfig groups dependencies for the API handlers.
type HandlerConfig struct {
	ContraIndicators ContraIndicatorStore
	Pending          PendingRecorder
	Issuer           CredentialIssuer
	Submitter        CredentialSubmitter
	Metrics          *metrics.Metrics
	Logger           *slog.Logger
}

// Handler serves the contra-indicator API.
type Handler struct {
	cis       ContraIndicatorStore
	pending   PendingRecorder
	issuer    CredentialIssuer
	submitter CredentialSubmitter
	metrics   *metrics.Metrics
	logger    *slog.Logger
	validate  *validatorv10.Validate
}

func New(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		cis:       cfg.ContraIndicators,
		pending:   cfg.Pending,
		issuer:    cfg.Issuer,
		submitter: cfg.Submitter,
		metrics:   cfg.Metrics,
		logger:    logger,
		validate:  validation.New(),
	}
}
