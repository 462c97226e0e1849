// Package app wires configuration and AWS clients into the service components.
package app

import (
	"log/slog"

	"github.com/imrishuroy/go-cimit-stub/internal/aws"
	"github.com/imrishuroy/go-cimit-stub/internal/config"
	"github.com/imrishuroy/go-cimit-stub/internal/contraindicators"
	"github.com/imrishuroy/go-cimit-stub/internal/credential"
	"github.com/imrishuroy/go-cimit-stub/internal/handlers"
	"github.com/imrishuroy/go-cimit-stub/internal/metrics"
	"github.com/imrishuroy/go-cimit-stub/internal/pending"
)

// App holds the constructed components. Nothing in it is mutated after New.
type App struct {
	ContraIndicators *contraindicators.Store
	Ledger           *pending.Ledger
	Issuer           *credential.Service
	Submitter        *pending.Submitter
	Metrics          *metrics.Metrics
	Logger           *slog.Logger
}

func New(cfg config.Config, clients *aws.AWSClients, logger *slog.Logger) (*App, error) {
	keys, err := KeyProvider(cfg, clients)
	if err != nil {
		return nil, err
	}

	cis := contraindicators.NewStore(clients.DynamoDB, cfg.ContraIndicatorsTable, cfg.Retention,
		contraindicators.WithLogger(logger))
	ledger := pending.NewLedger(clients.DynamoDB, cfg.PendingMitigationsTable, cfg.Retention)

	var trigger pending.Trigger = pending.NopTrigger{}
	if cfg.ReconciliationQueueURL != "" {
		trigger = pending.NewQueueTrigger(aws.NewPublisher(clients.SQS, cfg.ReconciliationQueueURL))
	}

	return &App{
		ContraIndicators: cis,
		Ledger:           ledger,
		Issuer: credential.NewService(cis, keys, cfg.ComponentID,
			credential.WithValidity(cfg.VCValidity),
			credential.WithEvidenceMode(cfg.EvidenceMode),
			credential.WithLogger(logger),
		),
		Submitter: pending.NewSubmitter(ledger, trigger, logger),
		Metrics:   metrics.New(clients.CloudWatch, cfg.MetricsNamespace, logger),
		Logger:    logger,
	}, nil
}

// KeyProvider prefers inline PEM material over the parameter store.
func KeyProvider(cfg config.Config, clients *aws.AWSClients) (credential.KeyProvider, error) {
	if cfg.SigningKeyPEM != "" {
		return credential.StaticKeyFromMaterial(cfg.SigningKeyPEM)
	}
	return credential.NewSSMKeyProvider(clients.SSM, cfg.SigningKeyParam), nil
}

// Handler builds the API handler over the app's components.
func (a *App) Handler() *handlers.Handler {
	return handlers.New(handlers.HandlerConfig{
		ContraIndicators: a.ContraIndicators,
		Pending:          a.Ledger,
		Issuer:           a.Issuer,
		Submitter:        a.Submitter,
		Metrics:          a.Metrics,
		Logger:           a.Logger,
	})
}
