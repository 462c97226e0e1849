package pending

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/golang-jwt/jwt/v5"

	"github.com/imrishuroy/go-cimit-stub/internal/apperrors"
)

// Submission is a mitigating credential presented by a caller.
type Submission struct {
	SignedJWT string `json:"signed_jwt" validate:"required"`
	JourneyID string `json:"govuk_signin_journey_id,omitempty"`
	IPAddress string `json:"ip_address,omitempty"`
}

// Result is the outcome rendered to callers of Submit.
type Result string

const (
	ResultSuccess Result = "success"
	ResultFail    Result = "fail"
)

// PendingReader looks up pending records by jti.
type PendingReader interface {
	Get(ctx context.Context, vcJti string) (*Record, error)
}

// Submitter accepts mitigating credentials and fires the Trigger for the
// ones that match a pending record. Credentials are parsed, not verified.
type Submitter struct {
	ledger  PendingReader
	trigger Trigger
	parser  *jwt.Parser
	logger  *slog.Logger
}

func NewSubmitter(ledger PendingReader, trigger Trigger, logger *slog.Logger) *Submitter {
	if trigger == nil {
		trigger = NopTrigger{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Submitter{
		ledger:  ledger,
		trigger: trigger,
		parser:  jwt.NewParser(),
		logger:  logger,
	}
}

// Submit returns nil when the credential was accepted, whether or not a
// pending record matched it.
func (s *Submitter) Submit(ctx context.Context, sub Submission) error {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := s.parser.ParseUnverified(sub.SignedJWT, claims); err != nil {
		return apperrors.Wrap(err, apperrors.CodeValidation, "signed_jwt is not a parseable JWT")
	}
	if claims.ID == "" {
		return apperrors.New(apperrors.CodeValidation, "signed_jwt has no jti")
	}

	rec, err := s.ledger.Get(ctx, claims.ID)
	if err != nil {
		return err
	}
	if rec == nil {
		s.logger.InfoContext(ctx, "no pending mitigation for credential", "vc_jti", claims.ID)
		return nil
	}

	if err := s.trigger.Fire(ctx, *rec, sub); err != nil {
		return apperrors.Wrap(err, apperrors.CodeStoreFailure, fmt.Sprintf("trigger reconciliation for %s", claims.ID))
	}
	s.logger.InfoContext(ctx, "pending mitigation matched",
		"vc_jti", rec.VcJti, "ci", rec.MitigatedCi, "journey_id", sub.JourneyID)
	return nil
}
