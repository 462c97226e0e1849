package handlers

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/imrishuroy/go-cimit-stub/internal/contraindicators"
	"github.com/imrishuroy/go-cimit-stub/internal/credential"
	"github.com/imrishuroy/go-cimit-stub/internal/pending"
	"github.com/imrishuroy/go-cimit-stub/internal/testutil"
)

const (
	ciTable      = "contra-indicators"
	pendingTable = "pending-mitigations"
)

type recordingTrigger struct {
	fired []pending.Record
}

func (r *recordingTrigger) Fire(ctx context.Context, rec pending.Record, sub pending.Submission) error {
	r.fired = append(r.fired, rec)
	return nil
}

type failingIssuer struct{}

func (failingIssuer) Issue(context.Context, string) (string, error) {
	return "", errors.New("kms down")
}

type HandlerSuite struct {
	suite.Suite
	fake    *testutil.FakeDynamo
	cis     *contraindicators.Store
	ledger  *pending.Ledger
	trigger *recordingTrigger
	key     *ecdsa.PrivateKey
	cfg     HandlerConfig
	router  *gin.Engine
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	gin.SetMode(gin.TestMode)

	s.fake = testutil.NewFakeDynamo()
	s.fake.CreateTable(ciTable, testutil.KeySchema{PartitionKey: "userId", SortKey: "contraIndicatorCode"})
	s.fake.CreateTable(pendingTable, testutil.KeySchema{PartitionKey: "vcJti"})

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	s.Require().NoError(err)
	s.key = key

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.cis = contraindicators.NewStore(s.fake, ciTable, 720*time.Hour, contraindicators.WithLogger(logger))
	s.ledger = pending.NewLedger(s.fake, pendingTable, 720*time.Hour)
	s.trigger = &recordingTrigger{}

	s.cfg = HandlerConfig{
		ContraIndicators: s.cis,
		Pending:          s.ledger,
		Issuer:           credential.NewService(s.cis, credential.NewStaticKeyProvider(key), "https://cimit.stubs.example"),
		Submitter:        pending.NewSubmitter(s.ledger, s.trigger, logger),
		Logger:           logger,
	}
	s.router = s.newRouter(s.cfg)
}

func (s *HandlerSuite) newRouter(cfg HandlerConfig) *gin.Engine {
	r := gin.New()
	h := New(cfg)
	s.Require().NoError(h.Register(r, h.Routes()))
	return r
}

func (s *HandlerSuite) do(method, path, body string) *httptest.ResponseRecorder {
	return s.doWith(s.router, method, path, body)
}

func (s *HandlerSuite) doWith(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func (s *HandlerSuite) TestHealth() {
	w := s.do(http.MethodGet, "/health", "")
	s.Equal(http.StatusOK, w.Code)
	s.JSONEq(`{"status":"ok"}`, w.Body.String())
}

func (s *HandlerSuite) TestContraIndicatorLifecycle() {
	w := s.do(http.MethodPost, "/user/u1/contra-indicators",
		`[{"code":"C01","issuer":"https://cri","mitigations":["M01"]},{"code":"C02","issuanceDate":"2026-01-02T03:04:05Z"}]`)
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())

	w = s.do(http.MethodPost, "/user/u1/contra-indicators", `[{"code":"C03"},{"code":"C01"}]`)
	s.Equal(http.StatusConflict, w.Code)
	s.Contains(w.Body.String(), "already_exists")
	s.Len(s.fake.Items(ciTable), 2)

	w = s.do(http.MethodPut, "/user/u1/contra-indicators", `[{"code":"C09"}]`)
	s.Equal(http.StatusNotFound, w.Code)

	w = s.do(http.MethodPut, "/user/u1/contra-indicators", `[{"code":"C01","mitigations":["M02","M01"]}]`)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodGet, "/user/u1/contra-indicators", "")
	s.Require().Equal(http.StatusOK, w.Code)
	var records []contraindicators.Record
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &records))
	s.Require().Len(records, 2)
	s.Equal("C01", records[0].Code)
	s.Equal([]string{"M01", "M02"}, records[0].Mitigations)
	s.Equal(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), records[1].IssuanceDate)
	s.NotNil(records[1].Mitigations)
	s.Contains(w.Body.String(), `"mitigations":[]`)

	w = s.do(http.MethodGet, "/user/nobody/contra-indicators", "")
	s.Equal(http.StatusOK, w.Code)
	s.JSONEq(`[]`, w.Body.String())
}

func (s *HandlerSuite) TestValidationHappensBeforeStore() {
	for _, body := range []string{
		`[]`,
		`[{"issuer":"x"}]`,
		`[{"code":"C01"},{"code":"C01"}]`,
		`not json`,
	} {
		w := s.do(http.MethodPost, "/user/u1/contra-indicators", body)
		s.Equal(http.StatusBadRequest, w.Code, body)
	}
	s.Zero(s.fake.TransactCalls)
	s.Zero(s.fake.GetCalls)
}

func (s *HandlerSuite) TestMitigations() {
	path := "/user/u1/contra-indicators/C01/mitigations"

	w := s.do(http.MethodPost, path, `{"mitigations":["M01"]}`)
	s.Equal(http.StatusNotFound, w.Code)

	s.Require().Equal(http.StatusCreated, s.do(http.MethodPost, "/user/u1/contra-indicators", `[{"code":"C01"}]`).Code)

	w = s.do(http.MethodPut, path, `{"mitigations":["M01"]}`)
	s.Equal(http.StatusNotFound, w.Code)

	w = s.do(http.MethodPost, path, `{"mitigations":["M01","M01"]}`)
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())

	w = s.do(http.MethodPost, path, `{"mitigations":["M03"]}`)
	s.Equal(http.StatusConflict, w.Code)

	w = s.do(http.MethodPut, path, `{"mitigations":["M02","M01"]}`)
	s.Require().Equal(http.StatusOK, w.Code)
	var rec contraindicators.Record
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &rec))
	s.Equal([]string{"M01", "M02"}, rec.Mitigations)

	w = s.do(http.MethodPut, path, `{"mitigations":[]}`)
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *HandlerSuite) TestMitigationWithVcJtiIsDeferred() {
	s.Require().Equal(http.StatusCreated, s.do(http.MethodPost, "/user/u1/contra-indicators", `[{"code":"C01"}]`).Code)

	w := s.do(http.MethodPut, "/user/u1/contra-indicators/C01/mitigations", `{"mitigations":["M05"],"vcJti":"jti-9"}`)
	s.Require().Equal(http.StatusAccepted, w.Code, w.Body.String())

	rec, err := s.ledger.Get(context.Background(), "jti-9")
	s.Require().NoError(err)
	s.Require().NotNil(rec)
	s.Equal(pending.MethodUpdate, rec.RequestMethod)
	s.Equal("C01", rec.MitigatedCi)
	s.Equal("u1", rec.UserID)

	ci, err := s.cis.Get(context.Background(), "u1", "C01")
	s.Require().NoError(err)
	s.Empty(ci.Mitigations)
}

func (s *HandlerSuite) TestIssueCredential() {
	w := s.do(http.MethodPost, "/contra-indicators/credential", `{"user_id":"u1"}`)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	var body struct {
		VC string `json:"vc"`
	}
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &body))

	claims := &credential.Claims{}
	_, err := jwt.ParseWithClaims(body.VC, claims, func(*jwt.Token) (interface{}, error) {
		return &s.key.PublicKey, nil
	}, jwt.WithValidMethods([]string{"ES256"}))
	s.Require().NoError(err)
	s.Equal("u1", claims.Subject)

	w = s.do(http.MethodPost, "/contra-indicators/credential", `{}`)
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *HandlerSuite) TestIssueCredentialFailureSentinel() {
	cfg := s.cfg
	cfg.Issuer = failingIssuer{}
	w := s.doWith(s.newRouter(cfg), http.MethodPost, "/contra-indicators/credential", `{"user_id":"u1"}`)
	s.Equal(http.StatusInternalServerError, w.Code)
	s.Equal(credential.FailureSentinel, w.Body.String())
}

func (s *HandlerSuite) TestSubmitMitigatingCredential() {
	_, err := s.ledger.RecordPendingMitigation(context.Background(), pending.Record{
		VcJti: "jti-1", UserID: "u1", MitigatedCi: "C01", MitigationCodes: []string{"M01"}, RequestMethod: pending.MethodCreate,
	})
	s.Require().NoError(err)

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{ID: "jti-1"}).SignedString([]byte("any"))
	s.Require().NoError(err)

	w := s.do(http.MethodPost, "/contra-indicators/mitigate",
		`{"signed_jwt":"`+signed+`","govuk_signin_journey_id":"j-1","ip_address":"10.0.0.1"}`)
	s.Require().Equal(http.StatusOK, w.Code)
	s.JSONEq(`{"result":"success"}`, w.Body.String())
	s.Require().Len(s.trigger.fired, 1)
	s.Equal("C01", s.trigger.fired[0].MitigatedCi)

	w = s.do(http.MethodPost, "/contra-indicators/mitigate", `{"signed_jwt":"not-a-jwt"}`)
	s.Equal(http.StatusBadRequest, w.Code)
	s.JSONEq(`{"result":"fail"}`, w.Body.String())

	w = s.do(http.MethodPost, "/contra-indicators/mitigate", `{}`)
	s.Equal(http.StatusBadRequest, w.Code)
	s.JSONEq(`{"result":"fail"}`, w.Body.String())
}

func (s *HandlerSuite) TestStoreFailureHidesDetail() {
	s.fake.Err = errors.New("dial tcp: connection refused")

	w := s.do(http.MethodGet, "/user/u1/contra-indicators", "")
	s.Equal(http.StatusInternalServerError, w.Code)
	s.NotContains(w.Body.String(), "connection refused")
	s.Contains(w.Body.String(), "store_failure")
}

func TestValidateRoutes(t *testing.T) {
	noop := func(*gin.Context) {}

	require.NoError(t, ValidateRoutes(New(HandlerConfig{}).Routes()))

	err := ValidateRoutes([]Route{
		{http.MethodPost, "/a", noop},
		{http.MethodPost, "/a", noop},
		{"FETCH", "/b", noop},
		{http.MethodGet, "c", noop},
		{http.MethodGet, "/d", nil},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "POST /a: registered twice")
	assert.Contains(t, err.Error(), "FETCH /b: unknown method")
	assert.Contains(t, err.Error(), "GET c: path must start with /")
	assert.Contains(t, err.Error(), "GET /d: no handler")
}

func TestRegisterRejectsInvalidTable(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := New(HandlerConfig{})
	routes := append(h.Routes(), Route{http.MethodGet, "/health", h.health})
	assert.Error(t, h.Register(gin.New(), routes))
}
