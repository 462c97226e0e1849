package credential

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/imrishuroy/go-cimit-stub/internal/apperrors"
	"github.com/imrishuroy/go-cimit-stub/internal/config"
	"github.com/imrishuroy/go-cimit-stub/internal/contraindicators"
)

const componentID = "https://cimit.stubs.example"

type fakeRecords struct {
	byUser map[string][]contraindicators.Record
	err    error
}

func (f *fakeRecords) GetAll(ctx context.Context, userID string) ([]contraindicators.Record, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byUser[userID], nil
}

type failingKeys struct{}

func (failingKeys) SigningKey(context.Context) (*ecdsa.PrivateKey, error) {
	return nil, errors.New("parameter store unreachable")
}

type IssueSuite struct {
	suite.Suite
	key     *ecdsa.PrivateKey
	records *fakeRecords
	now     time.Time
}

func TestIssueSuite(t *testing.T) {
	suite.Run(t, new(IssueSuite))
}

func (s *IssueSuite) SetupTest() {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	s.Require().NoError(err)
	s.key = key
	s.records = &fakeRecords{byUser: map[string][]contraindicators.Record{}}
	s.now = time.Now().Truncate(time.Second)
}

func (s *IssueSuite) service(opts ...Option) *Service {
	base := []Option{
		WithClock(func() time.Time { return s.now }),
		WithTxnGenerator(func() string { return "txn-fixed" }),
	}
	return NewService(s.records, NewStaticKeyProvider(s.key), componentID, append(base, opts...)...)
}

func (s *IssueSuite) parse(token string) *Claims {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return &s.key.PublicKey, nil
	}, jwt.WithValidMethods([]string{"ES256"}))
	s.Require().NoError(err)
	s.Require().True(parsed.Valid)
	return claims
}

func (s *IssueSuite) TestEmptyUserMinimalMode() {
	token, err := s.service().Issue(context.Background(), "u1")
	s.Require().NoError(err)
	s.Len(strings.Split(token, "."), 3)

	claims := s.parse(token)
	s.Equal("u1", claims.Subject)
	s.Equal(componentID, claims.Issuer)
	s.Equal(int64(900), claims.ExpiresAt.Unix()-claims.NotBefore.Unix())
	s.Equal(s.now.Unix(), claims.IssuedAt.Unix())
	s.Equal([]string{"VerifiableCredential", "SecurityCheckCredential"}, claims.VC.Type)
	s.Require().Len(claims.VC.Evidence, 1)
	s.Equal("SecurityCheck", claims.VC.Evidence[0].Type)
	s.Equal("txn-fixed", claims.VC.Evidence[0].Txn)
	s.Empty(claims.VC.Evidence[0].ContraIndicator)
}

func (s *IssueSuite) TestMinimalModeIgnoresStoredRecords() {
	s.records.byUser["u1"] = []contraindicators.Record{{UserID: "u1", Code: "C01"}}

	claims := s.parse(s.mustIssue(s.service(), "u1"))
	s.Empty(claims.VC.Evidence[0].ContraIndicator)
}

func (s *IssueSuite) TestFullModeAggregatesRecords() {
	issued := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	s.records.byUser["u1"] = []contraindicators.Record{
		{UserID: "u1", Code: "C01", IssuanceDate: issued, Document: "passport/GBR/123", Issuers: []string{"https://z-cri", "https://a-cri"}, Txn: []string{"t1"}, Mitigations: []string{"M02", "M01"}},
		{UserID: "u1", Code: "C02", IssuanceDate: issued},
	}

	claims := s.parse(s.mustIssue(s.service(WithEvidenceMode(config.EvidenceFull)), "u1"))
	cis := claims.VC.Evidence[0].ContraIndicator
	s.Require().Len(cis, 2)

	s.Equal("C01", cis[0].Code)
	s.Equal("passport/GBR/123", cis[0].Document)
	s.Equal("2026-01-05T10:00:00Z", cis[0].IssuanceDate)
	s.Equal([]string{"https://a-cri", "https://z-cri"}, cis[0].Issuers)
	s.Equal([]Mitigation{{Code: "M02"}, {Code: "M01"}}, cis[0].Mitigation)
	s.Equal([]string{"t1"}, cis[0].Txn)
	s.NotNil(cis[0].IncompleteMitigation)

	s.Equal([]string{}, cis[1].Issuers)
	s.Equal([]string{}, cis[1].Txn)
	s.Equal([]Mitigation{}, cis[1].Mitigation)
}

func (s *IssueSuite) TestPayloadIsDeterministic() {
	svc := s.service(WithEvidenceMode(config.EvidenceFull))
	a := strings.Split(s.mustIssue(svc, "u1"), ".")
	b := strings.Split(s.mustIssue(svc, "u1"), ".")
	s.Equal(a[0], b[0])
	s.Equal(a[1], b[1])

	payload, err := base64.RawURLEncoding.DecodeString(a[1])
	s.Require().NoError(err)
	s.True(strings.HasPrefix(string(payload), `{"iss":"`+componentID+`","sub":"u1","exp":`), string(payload))

	var header map[string]string
	h, err := base64.RawURLEncoding.DecodeString(a[0])
	s.Require().NoError(err)
	s.Require().NoError(json.Unmarshal(h, &header))
	s.Equal("ES256", header["alg"])
}

func (s *IssueSuite) TestFailures() {
	ctx := context.Background()

	s.Run("missing user", func() {
		_, err := s.service().Issue(ctx, "")
		s.ErrorIs(err, apperrors.ErrValidation)
	})

	s.Run("key unavailable", func() {
		svc := NewService(s.records, failingKeys{}, componentID)
		_, err := svc.Issue(ctx, "u1")
		s.ErrorIs(err, apperrors.ErrSigningFailure)
	})

	s.Run("wrong curve", func() {
		p384, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
		s.Require().NoError(err)
		svc := NewService(s.records, NewStaticKeyProvider(p384), componentID)
		_, err = svc.Issue(ctx, "u1")
		s.ErrorIs(err, apperrors.ErrSigningFailure)
	})

	s.Run("store failure in full mode", func() {
		s.records.err = apperrors.New(apperrors.CodeStoreFailure, "query contra-indicators")
		defer func() { s.records.err = nil }()
		_, err := s.service(WithEvidenceMode(config.EvidenceFull)).Issue(ctx, "u1")
		s.ErrorIs(err, apperrors.ErrStoreFailure)
	})

	s.Run("nil static key", func() {
		svc := NewService(s.records, NewStaticKeyProvider(nil), componentID)
		_, err := svc.Issue(ctx, "u1")
		s.ErrorIs(err, apperrors.ErrSigningFailure)
	})
}

func (s *IssueSuite) mustIssue(svc *Service, userID string) string {
	token, err := svc.Issue(context.Background(), userID)
	s.Require().NoError(err)
	return token
}

func TestBuildEvidence_DoesNotReorderStoredIssuers(t *testing.T) {
	recs := []contraindicators.Record{{Code: "C01", Issuers: []string{"b", "a"}}}
	ev := BuildEvidence(recs, "txn")
	require.Equal(t, []string{"a", "b"}, ev.ContraIndicator[0].Issuers)
	assert.Equal(t, []string{"b", "a"}, recs[0].Issuers)
}
