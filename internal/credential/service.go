// Package credential issues signed contra-indicator credentials.
package credential

import (
	"context"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/imrishuroy/go-cimit-stub/internal/apperrors"
	"github.com/imrishuroy/go-cimit-stub/internal/config"
	"github.com/imrishuroy/go-cimit-stub/internal/contraindicators"
)

// RecordReader lists a user's live contra-indicators.
type RecordReader interface {
	GetAll(ctx context.Context, userID string) ([]contraindicators.Record, error)
}

type Service struct {
	records     RecordReader
	keys        KeyProvider
	componentID string
	validity    time.Duration
	mode        config.EvidenceMode
	nowFunc     func() time.Time
	newTxn      func() string
	logger      *slog.Logger
}

type Option func(*Service)

func WithValidity(d time.Duration) Option {
	return func(s *Service) { s.validity = d }
}

func WithEvidenceMode(m config.EvidenceMode) Option {
	return func(s *Service) { s.mode = m }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.nowFunc = now }
}

// WithTxnGenerator replaces the uuid source of the evidence txn.
func WithTxnGenerator(gen func() string) Option {
	return func(s *Service) { s.newTxn = gen }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// NewService builds an issuer whose tokens carry componentID as `iss`.
func NewService(records RecordReader, keys KeyProvider, componentID string, opts ...Option) *Service {
	s := &Service{
		records:     records,
		keys:        keys,
		componentID: componentID,
		validity:    config.DefaultVCValidity,
		mode:        config.EvidenceMinimal,
		nowFunc:     time.Now,
		newTxn:      uuid.NewString,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue returns a compact ES256 JWS summarizing userID's contra-indicators.
// Errors carry CodeValidation, CodeStoreFailure or CodeSigningFailure.
func (s *Service) Issue(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", apperrors.New(apperrors.CodeValidation, "user_id is required")
	}

	evidence := MinimalEvidence(s.newTxn())
	if s.mode == config.EvidenceFull {
		records, err := s.records.GetAll(ctx, userID)
		if err != nil {
			return "", err
		}
		evidence = BuildEvidence(records, evidence.Txn)
	}

	key, err := s.keys.SigningKey(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "signing key unavailable", "error", err)
		return "", apperrors.Wrap(err, apperrors.CodeSigningFailure, "signing key unavailable")
	}

	now := s.nowFunc()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.componentID,
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.validity)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		VC: VerifiableCredential{
			Type:     []string{TypeVerifiableCredential, TypeSecurityCheckCredential},
			Evidence: []Evidence{evidence},
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodES256, claims).SignedString(key)
	if err != nil {
		s.logger.ErrorContext(ctx, "signing credential failed", "user_id", userID, "error", err)
		return "", apperrors.Wrap(err, apperrors.CodeSigningFailure, "sign credential")
	}
	return signed, nil
}
