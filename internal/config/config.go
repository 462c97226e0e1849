// Package config builds the process configuration once at startup.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// EvidenceMode selects how the issued credential's evidence block is built.
type EvidenceMode string

const (
	// EvidenceMinimal always emits the fixed evidence block with no contra-indicators.
	EvidenceMinimal EvidenceMode = "minimal"
	// EvidenceFull aggregates the user's stored contra-indicators.
	EvidenceFull EvidenceMode = "full"
)

const (
	DefaultRetention  = 720 * time.Hour
	DefaultVCValidity = 15 * time.Minute
	DefaultAddr       = ":8080"
	DefaultNamespace  = "CimitStub"
)

// Config is the full process configuration.
type Config struct {
	Region           string
	EndpointOverride string

	ContraIndicatorsTable   string
	PendingMitigationsTable string

	// ComponentID is the `iss` of issued credentials.
	ComponentID     string
	SigningKeyParam string
	SigningKeyPEM   string
	VCValidity      time.Duration
	EvidenceMode    EvidenceMode

	// Retention is added to the current time to compute every record's ttl.
	Retention time.Duration

	ReconciliationQueueURL string
	MetricsNamespace       string

	RunLocal bool
	Addr     string
	// LocalEvent is the payload a RUN_LOCAL direct-invoke binary handles once.
	LocalEvent string
}

// FromEnv reads the configuration from environment variables.
func FromEnv() (Config, error) {
	return fromLookup(os.Getenv)
}

func fromLookup(getenv func(string) string) (Config, error) {
	cfg := Config{
		Region:                  getenv("AWS_REGION"),
		EndpointOverride:        getenv("AWS_ENDPOINT_OVERRIDE"),
		ContraIndicatorsTable:   getenv("CONTRA_INDICATORS_TABLE"),
		PendingMitigationsTable: getenv("PENDING_MITIGATIONS_TABLE"),
		ComponentID:             getenv("COMPONENT_ID"),
		SigningKeyParam:         getenv("SIGNING_KEY_PARAM"),
		SigningKeyPEM:           getenv("SIGNING_KEY_PEM"),
		EvidenceMode:            EvidenceMode(strings.ToLower(getenv("EVIDENCE_MODE"))),
		ReconciliationQueueURL:  getenv("RECONCILIATION_QUEUE_URL"),
		MetricsNamespace:        getenv("METRICS_NAMESPACE"),
		RunLocal:                getenv("RUN_LOCAL") == "true",
		Addr:                    getenv("ADDR"),
		LocalEvent:              getenv("LOCAL_EVENT"),
	}

	var err error
	if cfg.Retention, err = durationOr(getenv("CI_RETENTION"), DefaultRetention); err != nil {
		return Config{}, fmt.Errorf("CI_RETENTION: %w", err)
	}
	if cfg.VCValidity, err = durationOr(getenv("VC_VALIDITY"), DefaultVCValidity); err != nil {
		return Config{}, fmt.Errorf("VC_VALIDITY: %w", err)
	}
	if cfg.EvidenceMode == "" {
		cfg.EvidenceMode = EvidenceMinimal
	}
	if cfg.MetricsNamespace == "" {
		cfg.MetricsNamespace = DefaultNamespace
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every missing or inconsistent setting at once.
func (c Config) Validate() error {
	var errs []error
	if c.ContraIndicatorsTable == "" {
		errs = append(errs, errors.New("CONTRA_INDICATORS_TABLE is required"))
	}
	if c.PendingMitigationsTable == "" {
		errs = append(errs, errors.New("PENDING_MITIGATIONS_TABLE is required"))
	}
	if c.ComponentID == "" {
		errs = append(errs, errors.New("COMPONENT_ID is required"))
	}
	if c.SigningKeyParam == "" && c.SigningKeyPEM == "" {
		errs = append(errs, errors.New("one of SIGNING_KEY_PARAM or SIGNING_KEY_PEM is required"))
	}
	if c.EvidenceMode != EvidenceMinimal && c.EvidenceMode != EvidenceFull {
		errs = append(errs, fmt.Errorf("EVIDENCE_MODE %q must be %q or %q", c.EvidenceMode, EvidenceMinimal, EvidenceFull))
	}
	if c.Retention <= 0 {
		errs = append(errs, errors.New("CI_RETENTION must be positive"))
	}
	if c.VCValidity <= 0 {
		errs = append(errs, errors.New("VC_VALIDITY must be positive"))
	}
	return errors.Join(errs...)
}

func durationOr(raw string, def time.Duration) (time.Duration, error) {
	if raw == "" {
		return def, nil
	}
	return time.ParseDuration(raw)
}
